package content

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"

	"notebook-navigator/internal/limiter"
	"notebook-navigator/internal/logging"
	"notebook-navigator/internal/render"
	"notebook-navigator/internal/settings"
	"notebook-navigator/internal/store"
	"notebook-navigator/internal/vault"
)

// ThumbnailProvider renders a thumbnail for the first image embedded in a
// note. Decoding large images is the single most memory-hungry operation in
// the system, so renders are admission-gated through a weighted budget
// limiter with weight proportional to the source file size.
type ThumbnailProvider struct {
	vault    *vault.Vault
	renderer *render.Renderer
	budget   *limiter.Weighted
}

func NewThumbnailProvider(v *vault.Vault, r *render.Renderer, budget *limiter.Weighted) *ThumbnailProvider {
	return &ThumbnailProvider{vault: v, renderer: r, budget: budget}
}

func (p *ThumbnailProvider) Kind() string { return store.KindThumbnail }

func (p *ThumbnailProvider) RelevantSettings() []string {
	return []string{
		settings.FieldThumbnailSize,
		settings.FieldThumbnailQuality,
	}
}

func (p *ThumbnailProvider) NeedsProcessing(rec *store.Record, file *vault.File, s settings.Settings) bool {
	return stale(store.KindThumbnail, rec, file)
}

func (p *ThumbnailProvider) ProcessFile(ctx context.Context, file *vault.File, rec *store.Record, s settings.Settings) (*store.ContentUpdate, bool, error) {
	note, err := readNote(ctx, p.vault, file)
	if err != nil {
		return nil, false, err
	}

	_, body := splitFrontmatter(note)
	ref := firstEmbeddedImage(body)
	if ref == "" {
		// No embedded image is a final answer, not a failure; an empty
		// thumbnail clears whatever was stored before.
		empty := ""
		return &store.ContentUpdate{Thumbnail: &empty}, true, nil
	}

	imgPath, ok := p.resolveImage(file, ref)
	if !ok {
		logging.Debug("thumbnail: %s references missing image %q", file.Path, ref)
		empty := ""
		return &store.ContentUpdate{Thumbnail: &empty}, true, nil
	}

	info, err := os.Stat(imgPath)
	if err != nil {
		empty := ""
		return &store.ContentUpdate{Thumbnail: &empty}, true, nil
	}

	// One budget unit per MiB of source image, minimum one.
	weight := (info.Size() + 1<<20 - 1) >> 20
	release, err := p.budget.Acquire(ctx, weight)
	if err != nil {
		return nil, false, err
	}
	defer release()

	data, err := p.renderer.Thumbnail(imgPath, s.ThumbnailSize, s.ThumbnailQuality)
	if err != nil {
		return nil, false, err
	}

	uri := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data)
	return &store.ContentUpdate{Thumbnail: &uri}, true, nil
}

// resolveImage locates an embedded image reference: first relative to the
// note's own directory, then relative to the vault root. Escapes outside
// the vault are rejected.
func (p *ThumbnailProvider) resolveImage(file *vault.File, ref string) (string, bool) {
	ref = filepath.FromSlash(strings.TrimSpace(ref))
	if filepath.IsAbs(ref) {
		return "", false
	}

	candidates := []string{
		filepath.Join(filepath.Dir(file.Path), ref),
		ref,
	}
	for _, rel := range candidates {
		rel = filepath.ToSlash(filepath.Clean(rel))
		if rel == ".." || strings.HasPrefix(rel, "../") {
			continue
		}
		abs := p.vault.AbsPath(rel)
		if info, err := os.Stat(abs); err == nil && !info.IsDir() {
			return abs, true
		}
	}
	return "", false
}
