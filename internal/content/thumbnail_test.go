package content

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"notebook-navigator/internal/limiter"
	"notebook-navigator/internal/render"
	"notebook-navigator/internal/settings"
	"notebook-navigator/internal/vault"
)

func writePNG(t *testing.T, v *vault.Vault, rel string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: uint8(x % 256), B: uint8(y % 256), A: 255})
		}
	}
	abs := filepath.Join(v.Root(), filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(abs)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func newThumbnailProvider(t *testing.T, v *vault.Vault) *ThumbnailProvider {
	t.Helper()
	r := render.New(time.Minute)
	t.Cleanup(r.Close)
	return NewThumbnailProvider(v, r, limiter.NewWeighted("thumbnail-test", 10))
}

func TestThumbnailProviderRendersEmbeddedImage(t *testing.T) {
	t.Parallel()
	v := testVault(t, map[string]string{
		"notes/photo log.md": "# Photos\n\n![[attachments/shot.png]]\n",
	})
	writePNG(t, v, "notes/attachments/shot.png", 60, 40)

	p := newThumbnailProvider(t, v)
	file := resolve(t, v, "notes/photo log.md")

	update, processed, err := p.ProcessFile(context.Background(), file, nil, settings.Default())
	if err != nil || !processed {
		t.Fatalf("ProcessFile: processed=%v err=%v", processed, err)
	}
	if update.Thumbnail == nil || !strings.HasPrefix(*update.Thumbnail, "data:image/jpeg;base64,") {
		t.Errorf("thumbnail = %v, want base64 JPEG data URI", update.Thumbnail)
	}
}

func TestThumbnailProviderVaultRootFallback(t *testing.T) {
	t.Parallel()
	v := testVault(t, map[string]string{
		"deep/nested/note.md": "![alt](attachments/shot.png)\n",
	})
	// The image lives relative to the vault root, not the note.
	writePNG(t, v, "attachments/shot.png", 30, 30)

	p := newThumbnailProvider(t, v)
	file := resolve(t, v, "deep/nested/note.md")

	update, processed, err := p.ProcessFile(context.Background(), file, nil, settings.Default())
	if err != nil || !processed {
		t.Fatalf("ProcessFile: processed=%v err=%v", processed, err)
	}
	if update.Thumbnail == nil || *update.Thumbnail == "" {
		t.Error("expected thumbnail from root-relative image")
	}
}

func TestThumbnailProviderNoImage(t *testing.T) {
	t.Parallel()
	v := testVault(t, map[string]string{
		"a.md": "Just text, no images.\n",
	})
	p := newThumbnailProvider(t, v)
	file := resolve(t, v, "a.md")

	update, processed, err := p.ProcessFile(context.Background(), file, nil, settings.Default())
	if err != nil || !processed {
		t.Fatalf("ProcessFile: processed=%v err=%v", processed, err)
	}
	if update.Thumbnail == nil || *update.Thumbnail != "" {
		t.Errorf("thumbnail = %v, want empty string to clear stored value", update.Thumbnail)
	}
}

func TestThumbnailProviderMissingImageIsFinal(t *testing.T) {
	t.Parallel()
	v := testVault(t, map[string]string{
		"a.md": "![[does-not-exist.png]]\n",
	})
	p := newThumbnailProvider(t, v)
	file := resolve(t, v, "a.md")

	update, processed, err := p.ProcessFile(context.Background(), file, nil, settings.Default())
	if err != nil || !processed {
		t.Fatalf("ProcessFile: processed=%v err=%v", processed, err)
	}
	if update.Thumbnail == nil || *update.Thumbnail != "" {
		t.Errorf("thumbnail = %v, want empty string", update.Thumbnail)
	}
}

func TestThumbnailProviderRejectsEscapingPaths(t *testing.T) {
	t.Parallel()
	v := testVault(t, map[string]string{
		"a.md": "![[../../etc/passwd.png]]\n",
	})
	p := newThumbnailProvider(t, v)
	file := resolve(t, v, "a.md")

	update, processed, err := p.ProcessFile(context.Background(), file, nil, settings.Default())
	if err != nil || !processed {
		t.Fatalf("ProcessFile: processed=%v err=%v", processed, err)
	}
	if update.Thumbnail == nil || *update.Thumbnail != "" {
		t.Errorf("thumbnail = %v, want empty string for escaping reference", update.Thumbnail)
	}
}

func TestThumbnailProviderCanceledAcquireIsRecoverable(t *testing.T) {
	t.Parallel()
	v := testVault(t, map[string]string{
		"a.md": "![[shot.png]]\n",
	})
	writePNG(t, v, "shot.png", 30, 30)

	r := render.New(time.Minute)
	t.Cleanup(r.Close)
	budget := limiter.NewWeighted("thumbnail-cancel-test", 1)

	// Exhaust the budget so the provider has to wait, then cancel.
	release, err := budget.Acquire(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	p := NewThumbnailProvider(v, r, budget)
	file := resolve(t, v, "a.md")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, processed, err := p.ProcessFile(ctx, file, nil, settings.Default())
	if processed || err == nil {
		t.Errorf("processed=%v err=%v, want recoverable failure on canceled acquire", processed, err)
	}
}
