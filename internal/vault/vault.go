package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// File is a live handle to a note, re-resolved at processing time. Handles
// captured at enqueue time can go stale when notes are renamed or deleted,
// so bookkeeping always uses the canonical path of a fresh handle.
type File struct {
	// Path is the canonical vault-relative path, slash separated.
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// Vault is a directory tree of markdown notes.
type Vault struct {
	root string
}

// Open validates the vault root and returns a handle to it.
func Open(root string) (*Vault, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve vault path: %w", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("vault directory not accessible: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vault path is not a directory: %s", abs)
	}

	return &Vault{root: abs}, nil
}

// Root returns the absolute vault root.
func (v *Vault) Root() string {
	return v.root
}

// Canonical normalizes a path (absolute or vault-relative) to the canonical
// slash-separated vault-relative form used as the store identifier.
func (v *Vault) Canonical(path string) string {
	if filepath.IsAbs(path) {
		if rel, err := filepath.Rel(v.root, path); err == nil {
			path = rel
		}
	}
	return filepath.ToSlash(filepath.Clean(path))
}

// Resolve re-stats a path and returns a fresh handle, or false when the
// note no longer exists or is not a markdown file.
func (v *Vault) Resolve(path string) (*File, bool) {
	rel := v.Canonical(path)
	if rel == "." || strings.HasPrefix(rel, "..") {
		return nil, false
	}
	if !IsNote(rel) {
		return nil, false
	}

	info, err := os.Stat(filepath.Join(v.root, filepath.FromSlash(rel)))
	if err != nil || info.IsDir() {
		return nil, false
	}

	return &File{
		Path:    rel,
		Name:    info.Name(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, true
}

// AbsPath returns the absolute on-disk path for a canonical identifier.
func (v *Vault) AbsPath(path string) string {
	return filepath.Join(v.root, filepath.FromSlash(v.Canonical(path)))
}

// IsNote reports whether a path looks like a markdown note.
func IsNote(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return true
	}
	return false
}
