package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// Page is one live Chrome tab. It implements the auth package's Page and
// CookieJar interfaces and carries the primitives the extractors need.
//
// Every operation runs against the tab's own chromedp context, bounded by the
// configured timeout; the caller's context cancels the operation early. Any
// call may fail while the page navigates, which callers treat as an
// inconclusive probe rather than a hard error.
type Page struct {
	tabCtx    context.Context
	opTimeout time.Duration
}

func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(p.tabCtx, p.opTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

// Navigate drives the tab to a URL and waits for the document to be ready.
func (p *Page) Navigate(ctx context.Context, rawURL string) error {
	if err := p.run(ctx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body"),
	); err != nil {
		return fmt.Errorf("navigate %s: %w", rawURL, err)
	}
	return nil
}

// URL returns the tab's current location.
func (p *Page) URL(ctx context.Context) (string, error) {
	var u string
	if err := p.run(ctx, chromedp.Location(&u)); err != nil {
		return "", err
	}
	return u, nil
}

// Title returns the current document title.
func (p *Page) Title(ctx context.Context) (string, error) {
	var title string
	if err := p.run(ctx, chromedp.Title(&title)); err != nil {
		return "", err
	}
	return title, nil
}

// HasSelector reports whether any element matches the CSS selector.
func (p *Page) HasSelector(ctx context.Context, selector string) (bool, error) {
	expr := fmt.Sprintf(`document.querySelector(%s) !== null`, jsString(selector))
	var found bool
	if err := p.run(ctx, chromedp.Evaluate(expr, &found)); err != nil {
		return false, err
	}
	return found, nil
}

// HasElementWithText reports whether any element matching tag contains the
// given visible text, case-insensitively. An empty tag matches any element.
func (p *Page) HasElementWithText(ctx context.Context, tag, text string) (bool, error) {
	sel := tag
	if sel == "" {
		sel = "body *"
	}
	expr := fmt.Sprintf(`(() => {
		const want = %s.toLowerCase();
		for (const el of document.querySelectorAll(%s)) {
			const t = (el.innerText || el.textContent || '').trim().toLowerCase();
			if (t.includes(want)) return true;
		}
		return false;
	})()`, jsString(text), jsString(sel))

	var found bool
	if err := p.run(ctx, chromedp.Evaluate(expr, &found)); err != nil {
		return false, err
	}
	return found, nil
}

// HTML returns the full document markup.
func (p *Page) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, chromedp.OuterHTML("html", &html)); err != nil {
		return "", err
	}
	return html, nil
}

// Text returns the visible text of the first element matching the selector.
func (p *Page) Text(ctx context.Context, selector string) (string, error) {
	var text string
	if err := p.run(ctx, chromedp.Text(selector, &text, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return text, nil
}

// Cookies returns all cookies from the browsing context, in the engine's
// native representation.
func (p *Page) Cookies(ctx context.Context) ([]*network.Cookie, error) {
	var cookies []*network.Cookie
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}
	return cookies, nil
}

// SetCookies injects cookies into the browsing context.
func (p *Page) SetCookies(ctx context.Context, cookies []*network.CookieParam) error {
	if len(cookies) == 0 {
		return nil
	}
	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return network.SetCookies(cookies).Do(ctx)
	}))
}

// Metrics reports the document's scrollable height and the viewport height,
// both in CSS pixels.
func (p *Page) Metrics(ctx context.Context) (pageHeight, viewportHeight int64, err error) {
	var m struct {
		Height   int64 `json:"height"`
		Viewport int64 `json:"viewport"`
	}
	expr := `({height: document.body.scrollHeight, viewport: window.innerHeight})`
	if err := p.run(ctx, chromedp.Evaluate(expr, &m)); err != nil {
		return 0, 0, err
	}
	return m.Height, m.Viewport, nil
}

// ScrollTo smooth-scrolls the viewport to a vertical offset.
func (p *Page) ScrollTo(ctx context.Context, y int64) error {
	expr := fmt.Sprintf(`window.scrollTo({top: %d, behavior: 'smooth'})`, y)
	return p.run(ctx, chromedp.Evaluate(expr, nil))
}

// Screenshot captures the current viewport as PNG.
func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

// FullScreenshot captures the entire page as PNG, regardless of viewport.
func (p *Page) FullScreenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, err
	}
	return buf, nil
}

// jsString quotes a Go string as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
