// Package auth handles per-domain session persistence and the manual-login
// wait flow. A CookieStore keeps one JSON cookie file per site so a login
// survives across runs; a Detector classifies the current page as login-gated
// or authenticated; an Authenticator ties the two together.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/spf13/afero"

	"github.com/pagegrab/pagegrab/internal/logger"
)

// CookieJar is the browsing context's cookie storage. The live implementation
// is backed by the DevTools Network domain; tests use an in-memory fake.
type CookieJar interface {
	// Cookies returns all cookies currently held by the browsing context.
	Cookies(ctx context.Context) ([]*network.Cookie, error)
	// SetCookies injects cookies into the browsing context.
	SetCookies(ctx context.Context, cookies []*network.CookieParam) error
}

// SessionStore persists and restores a browsing context's cookies per site.
type SessionStore interface {
	// Load injects a previously saved cookie record, if one exists for the
	// URL's domain. Returns whether a record was found and applied.
	Load(ctx context.Context, jar CookieJar, rawURL string) bool
	// Save overwrites the domain's cookie record with the jar's current
	// cookies. A failed save means the session will not persist.
	Save(ctx context.Context, jar CookieJar, rawURL string) error
}

// CookieStore is the file-backed SessionStore. Records are stored as
// {dir}/{domain key}_cookies.json, one JSON array of engine-native cookies
// per site. The cookie schema is pass-through: entries are replayed into the
// jar exactly as the browser produced them.
type CookieStore struct {
	fs  afero.Fs
	dir string
}

// NewCookieStore creates a store rooted at dir on the given filesystem.
func NewCookieStore(fs afero.Fs, dir string) *CookieStore {
	return &CookieStore{fs: fs, dir: dir}
}

// DeriveKey normalizes a URL into the identity used for its cookie file:
// lowercase host, leading "www." and any port stripped, and every character
// outside [A-Za-z0-9._-] replaced with an underscore. The key is independent
// of scheme, path, and query, so all pages of a site share one record.
func DeriveKey(rawURL string) string {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Host
	}
	host = strings.ToLower(host)
	host = strings.TrimPrefix(host, "www.")
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return sanitizeKey(host)
}

func sanitizeKey(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Path returns the cookie file path for a URL.
func (s *CookieStore) Path(rawURL string) string {
	return filepath.Join(s.dir, DeriveKey(rawURL)+"_cookies.json")
}

// Load reads the domain's cookie record and injects every entry into the jar.
// Missing or corrupt files are non-fatal: they are logged and treated as "no
// cookies available".
func (s *CookieStore) Load(ctx context.Context, jar CookieJar, rawURL string) bool {
	path := s.Path(rawURL)

	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		logger.Debug("no saved cookies", "path", path)
		return false
	}

	var cookies []*network.Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		logger.Warn("cookie file unreadable, ignoring", "path", path, "error", err)
		return false
	}

	if err := jar.SetCookies(ctx, cookieParams(cookies)); err != nil {
		logger.Warn("failed to inject saved cookies", "path", path, "error", err)
		return false
	}

	logger.Info("loaded saved cookies", "path", path, "count", len(cookies))
	return true
}

// Save serializes the jar's current cookies to the domain's record,
// overwriting any prior one. I/O failures are returned to the caller; there
// is no recovery path and the session will not persist.
func (s *CookieStore) Save(ctx context.Context, jar CookieJar, rawURL string) error {
	cookies, err := jar.Cookies(ctx)
	if err != nil {
		return fmt.Errorf("read cookies from browsing context: %w", err)
	}

	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cookies: %w", err)
	}

	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create cookie dir %s: %w", s.dir, err)
	}

	path := s.Path(rawURL)
	if err := afero.WriteFile(s.fs, path, data, 0o644); err != nil {
		return fmt.Errorf("write cookie file %s: %w", path, err)
	}

	logger.Info("saved cookies", "path", path, "count", len(cookies))
	return nil
}

// cookieParams converts stored cookies back into the parameters accepted by
// the browsing context. Fields are passed through untouched.
func cookieParams(cookies []*network.Cookie) []*network.CookieParam {
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: c.SameSite,
		}
		// Session cookies carry a negative expiry.
		if c.Expires > 0 {
			exp := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
			p.Expires = &exp
		}
		params = append(params, p)
	}
	return params
}
