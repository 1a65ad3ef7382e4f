package render

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"
	"time"

	"notebook-navigator/internal/logging"
	"notebook-navigator/internal/metrics"

	_ "image/gif"
	_ "image/png"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// DefaultIdleTimeout is how long the scratch cache survives without a
// render before being evicted.
const DefaultIdleTimeout = 2 * time.Minute

// vipsThreshold is the source file size above which decode-time shrinking
// via libvips is worth the cgo round trip.
const vipsThreshold = 2 * 1024 * 1024

// Renderer produces JPEG thumbnails from image files referenced by notes.
// The libvips handle is started lazily on first use and lives until Close;
// libvips cannot be restarted once shut down in the same process. The
// decoded-image scratch cache is evicted after an idle period instead.
type Renderer struct {
	idleTimeout time.Duration

	mu        sync.Mutex
	closed    bool
	scratch   map[string][]byte
	idleTimer *time.Timer

	vipsOnce  sync.Once
	vipsReady bool
}

// New creates a renderer. idleTimeout <= 0 selects DefaultIdleTimeout.
func New(idleTimeout time.Duration) *Renderer {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &Renderer{
		idleTimeout: idleTimeout,
		scratch:     make(map[string][]byte),
	}
}

// initVips configures libvips logging to match the application log level
// and starts it with conservative memory settings. Runs at most once.
func (r *Renderer) initVips() {
	r.vipsOnce.Do(func() {
		var vipsLogLevel vips.LogLevel
		if logging.IsDebugEnabled() {
			vipsLogLevel = vips.LogLevelInfo
		} else {
			vipsLogLevel = vips.LogLevelError
		}
		vips.LoggingSettings(func(domain string, level vips.LogLevel, msg string) {
			switch {
			case level <= vips.LogLevelError:
				logging.Error("[%s] %s", domain, msg)
			case level == vips.LogLevelWarning:
				logging.Warn("[%s] %s", domain, msg)
			default:
				logging.Debug("[%s] %s", domain, msg)
			}
		}, vipsLogLevel)

		vips.Startup(&vips.Config{
			ConcurrencyLevel: 1,
			MaxCacheMem:      50 * 1024 * 1024,
			MaxCacheSize:     100,
			ReportLeaks:      false,
			CacheTrace:       false,
			CollectStats:     false,
		})
		r.vipsReady = true
		logging.Info("libvips initialized (version: %s)", vips.Version)
	})
}

// Thumbnail renders the image at path into a JPEG no larger than
// maxDim on either side, encoded at the given quality.
func (r *Renderer) Thumbnail(path string, maxDim, quality int) ([]byte, error) {
	if maxDim <= 0 {
		return nil, fmt.Errorf("invalid thumbnail dimension %d", maxDim)
	}
	if quality <= 0 || quality > 100 {
		quality = 80
	}

	key := fmt.Sprintf("%s|%d|%d", path, maxDim, quality)
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, fmt.Errorf("renderer closed")
	}
	if data, ok := r.scratch[key]; ok {
		r.touchLocked()
		r.mu.Unlock()
		return data, nil
	}
	r.mu.Unlock()

	img, backend, err := r.decode(path, maxDim)
	if err != nil {
		return nil, err
	}

	thumb := imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	metrics.ThumbnailsRendered.WithLabelValues(backend).Inc()

	data := buf.Bytes()
	r.mu.Lock()
	if !r.closed {
		r.scratch[key] = data
		r.touchLocked()
	}
	r.mu.Unlock()
	return data, nil
}

// decode loads the source image, shrinking at decode time through libvips
// for large files and falling back to imaging for everything else.
func (r *Renderer) decode(path string, maxDim int) (image.Image, string, error) {
	if size := fileSize(path); size >= vipsThreshold {
		if img, err := r.decodeWithVips(path, maxDim); err == nil {
			return img, "vips", nil
		} else {
			logging.Debug("vips decode failed for %s: %v, falling back", filepath.Base(path), err)
		}
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return img, "imaging", nil
}

// decodeWithVips uses libvips decode-time shrinking, which avoids holding
// the full-resolution bitmap in memory.
func (r *Renderer) decodeWithVips(path string, maxDim int) (image.Image, error) {
	r.initVips()
	if !r.vipsReady {
		return nil, fmt.Errorf("libvips not available")
	}

	ref, err := vips.LoadImageFromFile(path, vips.NewImportParams())
	if err != nil {
		return nil, fmt.Errorf("vips failed to load image: %w", err)
	}
	defer ref.Close()

	if err := ref.Thumbnail(maxDim, maxDim, vips.InterestingNone); err != nil {
		return nil, fmt.Errorf("vips resize failed: %w", err)
	}

	imgBytes, _, err := ref.ExportJpeg(&vips.JpegExportParams{
		Quality:        95,
		StripMetadata:  false,
		OptimizeCoding: true,
	})
	if err != nil {
		return nil, fmt.Errorf("vips export failed: %w", err)
	}

	img, err := imaging.Decode(bytes.NewReader(imgBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to decode vips output: %w", err)
	}
	return img, nil
}

// touchLocked re-arms the idle eviction timer. Caller holds r.mu.
func (r *Renderer) touchLocked() {
	if r.idleTimer != nil {
		r.idleTimer.Stop()
	}
	r.idleTimer = time.AfterFunc(r.idleTimeout, r.evict)
}

// evict drops the scratch cache after the idle period.
func (r *Renderer) evict() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || len(r.scratch) == 0 {
		return
	}
	logging.Debug("renderer: evicting %d cached thumbnails after idle period", len(r.scratch))
	r.scratch = make(map[string][]byte)
	metrics.RendererEvictions.Inc()
}

// CachedCount reports the current scratch cache size.
func (r *Renderer) CachedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.scratch)
}

// Close evicts the cache and shuts libvips down. The renderer cannot be
// used again afterwards.
func (r *Renderer) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	if r.idleTimer != nil {
		r.idleTimer.Stop()
		r.idleTimer = nil
	}
	r.scratch = nil
	ready := r.vipsReady
	r.mu.Unlock()

	if ready {
		vips.Shutdown()
		logging.Info("libvips shutdown complete")
	}
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
