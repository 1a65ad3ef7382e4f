package content

import (
	"os"
	"path/filepath"
	"testing"

	"notebook-navigator/internal/vault"
)

// testVault builds a vault directory from a map of relative path to file
// content and returns an opened handle.
func testVault(t *testing.T, files map[string]string) *vault.Vault {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
			t.Fatalf("failed to create dir for %s: %v", rel, err)
		}
		if err := os.WriteFile(abs, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", rel, err)
		}
	}
	v, err := vault.Open(root)
	if err != nil {
		t.Fatalf("failed to open vault: %v", err)
	}
	return v
}

func resolve(t *testing.T, v *vault.Vault, path string) *vault.File {
	t.Helper()
	file, ok := v.Resolve(path)
	if !ok {
		t.Fatalf("failed to resolve %s", path)
	}
	return file
}
