package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"

	"github.com/pagegrab/pagegrab/internal/logger"
)

// Shooter is the live-page surface the screenshot loop drives. Implemented
// by the browser page; faked in tests.
type Shooter interface {
	// Metrics reports the page's scrollable height and viewport height.
	Metrics(ctx context.Context) (pageHeight, viewportHeight int64, err error)
	// ScrollTo scrolls the viewport to a vertical offset.
	ScrollTo(ctx context.Context, y int64) error
	// Screenshot captures the current viewport as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
	// FullScreenshot captures the entire page as PNG.
	FullScreenshot(ctx context.Context) ([]byte, error)
}

// ScreenshotConfig tunes the scroll-and-capture series.
type ScreenshotConfig struct {
	// Count is the number of viewport captures taken while scrolling.
	Count int
	// ScrollPause is how long to let the page settle after each scroll.
	ScrollPause time.Duration
	// Sleep is injectable for tests; nil means time.Sleep.
	Sleep func(time.Duration)
}

// CaptureScreenshots scrolls through the page, capturing the viewport at
// evenly interpolated positions plus one full-page shot at the end. Files go
// into a {title}_screenshots folder: screenshot_{n}.png and full_page.png.
// Returns the folder name.
func CaptureScreenshots(ctx context.Context, fs afero.Fs, sh Shooter, title string, cfg ScreenshotConfig) (string, error) {
	if cfg.Count < 1 {
		cfg.Count = 1
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	folder := SafeFilename(title) + "_screenshots"
	if err := fs.MkdirAll(folder, 0o755); err != nil {
		return "", fmt.Errorf("create screenshot folder %s: %w", folder, err)
	}

	pageHeight, viewportHeight, err := sh.Metrics(ctx)
	if err != nil {
		return "", fmt.Errorf("read page metrics: %w", err)
	}
	logger.Info("capturing screenshots",
		"folder", folder,
		"count", cfg.Count,
		"page_height", pageHeight,
		"viewport_height", viewportHeight)

	scrollable := pageHeight - viewportHeight
	if scrollable < 0 {
		scrollable = 0
	}

	for i := 0; i < cfg.Count; i++ {
		var scrollY int64
		if cfg.Count > 1 {
			scrollY = scrollable * int64(i) / int64(cfg.Count-1)
		}

		if i > 0 {
			if err := sh.ScrollTo(ctx, scrollY); err != nil {
				return folder, fmt.Errorf("scroll to %d: %w", scrollY, err)
			}
			sleep(cfg.ScrollPause)
		}

		shot, err := sh.Screenshot(ctx)
		if err != nil {
			return folder, fmt.Errorf("capture screenshot %d: %w", i+1, err)
		}

		name := filepath.Join(folder, fmt.Sprintf("screenshot_%d.png", i+1))
		if err := afero.WriteFile(fs, name, shot, 0o644); err != nil {
			return folder, fmt.Errorf("write %s: %w", name, err)
		}
		logger.Debug("screenshot saved",
			"path", name,
			"size", humanize.Bytes(uint64(len(shot))))
	}

	full, err := sh.FullScreenshot(ctx)
	if err != nil {
		return folder, fmt.Errorf("capture full-page screenshot: %w", err)
	}
	fullPath := filepath.Join(folder, "full_page.png")
	if err := afero.WriteFile(fs, fullPath, full, 0o644); err != nil {
		return folder, fmt.Errorf("write %s: %w", fullPath, err)
	}
	logger.Info("full page screenshot saved",
		"path", fullPath,
		"size", humanize.Bytes(uint64(len(full))))

	return folder, nil
}
