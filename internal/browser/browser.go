package browser

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/chromedp/chromedp"

	"github.com/pagegrab/pagegrab/internal/logger"
)

// Browser wraps a Chrome exec allocator. One Browser serves one target URL:
// the driving loop launches a fresh instance per entry and closes it on every
// exit path.
type Browser struct {
	cfg         Config
	allocCtx    context.Context
	cancelAlloc context.CancelFunc
}

// New validates the config and prepares a Chrome allocator. The process
// itself starts lazily with the first page.
func New(cfg Config) (*Browser, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid browser config: %w", err)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", cfg.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
		chromedp.UserAgent(cfg.UserAgent),
	)
	if cfg.Stealth {
		opts = append(opts, stealthExecAllocatorOptions()...)
	}
	if chromePath := findChromePath(); chromePath != "" {
		opts = append(opts, chromedp.ExecPath(chromePath))
	}

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)

	logger.Debug("browser allocator created",
		"headless", cfg.Headless,
		"stealth", cfg.Stealth,
		"window", fmt.Sprintf("%dx%d", cfg.WindowWidth, cfg.WindowHeight))

	return &Browser{cfg: cfg, allocCtx: allocCtx, cancelAlloc: cancel}, nil
}

// NewPage opens a tab and returns it with its release function. The release
// function must run on every exit path, including authentication failure.
func (b *Browser) NewPage(ctx context.Context) (*Page, func(), error) {
	tabCtx, cancelTab := chromedp.NewContext(b.allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			logger.Debug("chromedp", "msg", fmt.Sprintf(format, args...))
		}),
	)

	// Start the browser process and queue the stealth init script before
	// anything navigates.
	actions := []chromedp.Action{}
	if b.cfg.Stealth {
		actions = append(actions, injectStealthScript())
	}
	if len(actions) == 0 {
		actions = append(actions, chromedp.ActionFunc(func(context.Context) error { return nil }))
	}
	if err := chromedp.Run(tabCtx, actions...); err != nil {
		cancelTab()
		return nil, nil, fmt.Errorf("start browser: %w", err)
	}

	page := &Page{tabCtx: tabCtx, opTimeout: b.cfg.NavTimeout}
	return page, cancelTab, nil
}

// Close shuts the browser process down.
func (b *Browser) Close() error {
	if b.cancelAlloc != nil {
		b.cancelAlloc()
	}
	return nil
}

// findChromePath resolves a Chrome or Chromium binary through PATH. An empty
// result is fine: chromedp falls back to its own platform-specific lookup.
func findChromePath() string {
	for _, name := range []string{
		"google-chrome-stable",
		"google-chrome",
		"chromium",
		"chromium-browser",
		"chrome",
	} {
		if path, err := exec.LookPath(name); err == nil {
			logger.Debug("found Chrome binary", "path", path)
			return path
		}
	}
	return ""
}
