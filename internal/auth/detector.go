package auth

import (
	"context"
	"strings"

	"github.com/pagegrab/pagegrab/internal/logger"
)

// Page is the live browsing page the detector and authenticator operate on.
// The page may still be loading, or navigate away mid-call; implementations
// return an error for probes against a torn-down document rather than
// blocking.
type Page interface {
	// Navigate drives the page to a URL.
	Navigate(ctx context.Context, rawURL string) error
	// URL returns the page's current location.
	URL(ctx context.Context) (string, error)
	// Title returns the current document title.
	Title(ctx context.Context) (string, error)
	// HasSelector reports whether any element matches the CSS selector.
	HasSelector(ctx context.Context, selector string) (bool, error)
	// HasElementWithText reports whether any element matching tag contains
	// the given visible text (case-insensitive). An empty tag matches any
	// element.
	HasElementWithText(ctx context.Context, tag, text string) (bool, error)
}

// Login-indicating substrings checked against the page URL.
var urlLoginIndicators = []string{
	"login", "signin", "sign-in", "signup", "sign-up", "register", "auth", "accounts",
}

// Login-indicating substrings checked against the page title.
var titleLoginIndicators = []string{
	"login", "sign in", "sign up", "register", "log in",
}

var loginButtonTexts = []string{"Log in", "Sign in", "Login", "Log In", "Sign In"}

var loginLinkTexts = []string{"Log in", "Sign in"}

// Inputs that identify the username half of a login form.
const usernameSelector = `input[name="username"], input[name="email"], input[type="email"], input[autocomplete="username"]`

// marker is a single positive-indicator probe: either a CSS selector, or a
// tag plus a visible-text match.
type marker struct {
	Selector string
	Tag      string
	Text     string
}

// PlatformProbe maps a domain pattern to the markers that only appear for a
// logged-in session on that platform.
type PlatformProbe struct {
	Domain  string
	Markers []marker
}

func defaultPlatforms() []PlatformProbe {
	return []PlatformProbe{
		{
			Domain: "instagram.com",
			Markers: []marker{
				{Selector: `header img[alt*="profile picture"]`},
				{Tag: "section", Text: "posts"},
				{Tag: "section", Text: "followers"},
				{Selector: "article"},
				{Tag: "div", Text: "Posts"},
				{Selector: `svg[aria-label="Home"]`},
				{Selector: `svg[aria-label="Profile"]`},
			},
		},
		{
			Domain: "facebook.com",
			Markers: []marker{
				{Selector: `a[aria-label="Home"]`},
				{Selector: `a[aria-label="Profile"]`},
				{Selector: `div[role="navigation"]`},
				{Selector: `svg[aria-label="Notifications"]`},
				{Tag: "div", Text: "Friends"},
				{Selector: `div[aria-label="Your profile"]`},
				{Selector: `a[href*="/friends/"]`},
			},
		},
	}
}

// Detector classifies a live page as login-gated or authenticated. Evidence
// is computed fresh on every call; nothing is cached, since the page can
// navigate between checks.
type Detector struct {
	platforms []PlatformProbe
}

// NewDetector creates a detector with the built-in platform probes.
func NewDetector() *Detector {
	return &Detector{platforms: defaultPlatforms()}
}

// RegisterPlatform adds a platform-specific marker set. Probes run in
// registration order after the built-ins.
func (d *Detector) RegisterPlatform(p PlatformProbe) {
	d.platforms = append(d.platforms, p)
}

// LoginRequired reports whether the page appears to be gated behind a login.
// Heuristics run in priority order and the first positive wins. Each probe is
// guarded on its own: a probe that fails (document torn down mid-navigation)
// is inconclusive, not an error. If the page handle itself is unreachable the
// detector fails safe and assumes login is still pending.
func (d *Detector) LoginRequired(ctx context.Context, p Page) bool {
	currentURL, err := p.URL(ctx)
	if err != nil {
		logger.Debug("page unreachable during login check, assuming login required", "error", err)
		return true
	}

	// Site-specific signup prompt.
	if ok, err := p.HasElementWithText(ctx, "", "Sign up for Instagram"); err == nil && ok {
		logger.Debug("login evidence: Instagram signup prompt")
		return true
	}

	// Classic login form: username-like input plus a password input.
	if user, err := p.HasSelector(ctx, usernameSelector); err == nil && user {
		if pass, err := p.HasSelector(ctx, `input[type="password"]`); err == nil && pass {
			logger.Debug("login evidence: username and password inputs")
			return true
		}
	}

	lowerURL := strings.ToLower(currentURL)
	for _, ind := range urlLoginIndicators {
		if strings.Contains(lowerURL, ind) {
			logger.Debug("login evidence: URL indicator", "indicator", ind)
			return true
		}
	}

	if title, err := p.Title(ctx); err == nil {
		lowerTitle := strings.ToLower(title)
		for _, ind := range titleLoginIndicators {
			if strings.Contains(lowerTitle, ind) {
				logger.Debug("login evidence: title indicator", "indicator", ind)
				return true
			}
		}
	}

	for _, text := range loginButtonTexts {
		if ok, err := p.HasElementWithText(ctx, "button", text); err == nil && ok {
			logger.Debug("login evidence: login button", "text", text)
			return true
		}
	}
	for _, text := range loginLinkTexts {
		if ok, err := p.HasElementWithText(ctx, "a", text); err == nil && ok {
			logger.Debug("login evidence: login link", "text", text)
			return true
		}
	}

	if ok, err := p.HasElementWithText(ctx, "a", "Create new account"); err == nil && ok {
		logger.Debug("login evidence: create-account link")
		return true
	}

	return false
}

// LoggedIn reports whether the page looks like an authenticated content page
// for originalURL. Known platforms are probed for positive logged-in markers
// first; when none matches, or the domain is unknown, the result falls back
// to the absence of login evidence. The fallback can misread pages that are
// neither login walls nor authenticated content (a public marketing page
// passes), which is a known limit of the heuristic. Any failure yields false:
// the wait loop is safe to keep polling.
func (d *Detector) LoggedIn(ctx context.Context, p Page, originalURL string) bool {
	if d.LoginRequired(ctx, p) {
		return false
	}

	for _, plat := range d.platforms {
		if !strings.Contains(originalURL, plat.Domain) {
			continue
		}
		for _, m := range plat.Markers {
			ok, err := d.probe(ctx, p, m)
			if err != nil {
				continue
			}
			if ok {
				logger.Debug("logged-in marker found", "domain", plat.Domain, "selector", m.Selector, "text", m.Text)
				return true
			}
		}
	}

	// Evidence is never cached: the page may have navigated since the check
	// above, so re-classify rather than reuse the earlier result.
	return !d.LoginRequired(ctx, p)
}

func (d *Detector) probe(ctx context.Context, p Page, m marker) (bool, error) {
	if m.Selector != "" {
		return p.HasSelector(ctx, m.Selector)
	}
	return p.HasElementWithText(ctx, m.Tag, m.Text)
}
