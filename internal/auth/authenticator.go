package auth

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/pagegrab/pagegrab/internal/logger"
)

// Clock abstracts time for the wait loop so tests can run it instantly.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// LoginChecker classifies the page. Satisfied by *Detector.
type LoginChecker interface {
	LoginRequired(ctx context.Context, p Page) bool
	LoggedIn(ctx context.Context, p Page, originalURL string) bool
}

// Config tunes the authentication flow. The zero value is not usable; start
// from DefaultConfig.
type Config struct {
	// LoginTimeout is the total budget for the manual-login wait.
	LoginTimeout time.Duration `validate:"required,min=1s"`
	// Tick is the wait loop's polling interval.
	Tick time.Duration `validate:"required,min=1ms"`
	// CheckEvery re-runs the logged-in check every Nth remaining tick.
	CheckEvery int `validate:"required,min=1"`
	// RemindEvery emits a still-waiting reminder every Nth remaining tick.
	RemindEvery int `validate:"required,min=1"`
	// VerifyAttempts bounds the post-login verification retries.
	VerifyAttempts int `validate:"required,min=1"`

	// Settle delays give client-side rendering time to finish after each
	// navigation before the DOM is probed.
	InitialSettle   time.Duration `validate:"min=0"`
	PostLoginSettle time.Duration `validate:"min=0"`
	RenavSettle     time.Duration `validate:"min=0"`
	NavRetryDelay   time.Duration `validate:"min=0"`
	VerifyBackoff   time.Duration `validate:"min=0"`
	VerifySettle    time.Duration `validate:"min=0"`
}

// DefaultConfig mirrors the observable timing of the manual flow: a 60s wait
// budget polled once a second, with checks every 3s and reminders every 9s.
func DefaultConfig() Config {
	return Config{
		LoginTimeout:    60 * time.Second,
		Tick:            time.Second,
		CheckEvery:      3,
		RemindEvery:     9,
		VerifyAttempts:  3,
		InitialSettle:   5 * time.Second,
		PostLoginSettle: 2 * time.Second,
		RenavSettle:     5 * time.Second,
		NavRetryDelay:   3 * time.Second,
		VerifyBackoff:   2 * time.Second,
		VerifySettle:    3 * time.Second,
	}
}

// Authenticator drives a page through cookie restore, login detection, a
// bounded wait for manual login, and post-login verification. It owns the
// page and jar exclusively for the duration of one call.
type Authenticator struct {
	cfg    Config
	store  SessionStore
	detect LoginChecker
	clock  Clock
}

// Option customizes an Authenticator.
type Option func(*Authenticator)

// WithClock injects a clock, used by tests to fake the wait loop.
func WithClock(c Clock) Option {
	return func(a *Authenticator) { a.clock = c }
}

// WithDetector replaces the default login detector.
func WithDetector(d LoginChecker) Option {
	return func(a *Authenticator) { a.detect = d }
}

// New creates an Authenticator persisting sessions through store.
func New(cfg Config, store SessionStore, opts ...Option) (*Authenticator, error) {
	if err := validator.New().Struct(cfg); err != nil {
		return nil, err
	}

	a := &Authenticator{
		cfg:    cfg,
		store:  store,
		detect: NewDetector(),
		clock:  realClock{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Authenticate takes the page to originalURL and returns whether the page is
// authenticated and showing the target. The only outcomes are true and false:
// navigation errors along the way are transient and retried, a consumed wait
// budget or exhausted verification is a defined failure, not an error.
//
// Cookies are written back only on a confirmed successful login; a failed
// attempt never touches the domain's cookie file.
func (a *Authenticator) Authenticate(ctx context.Context, page Page, jar CookieJar, originalURL string) bool {
	logger.Info("checking authentication", "url", originalURL)

	cookiesLoaded := a.store.Load(ctx, jar, originalURL)

	logger.Info("navigating", "url", originalURL)
	if err := page.Navigate(ctx, originalURL); err != nil {
		logger.Warn("initial navigation failed, continuing", "url", originalURL, "error", err)
	}
	a.clock.Sleep(a.cfg.InitialSettle)

	if a.detect.LoggedIn(ctx, page, originalURL) {
		logger.Info("already authenticated, no login needed", "url", originalURL)
		return true
	}

	logger.Info("login required, waiting for manual login",
		"url", originalURL,
		"timeout", a.cfg.LoginTimeout)
	if cookiesLoaded {
		logger.Warn("saved cookies no longer valid, a fresh login will refresh them")
	}

	elapsed, ok := a.waitForLogin(ctx, page, originalURL)
	if !ok {
		logger.Error("login wait timed out, authentication failed", "url", originalURL)
		return false
	}
	logger.Info("login detected", "elapsed", elapsed)

	// The user may have landed on the platform's home page; take the page
	// back to the original target before verifying.
	a.clock.Sleep(a.cfg.PostLoginSettle)
	a.renavigate(ctx, page, originalURL)
	a.clock.Sleep(a.cfg.RenavSettle)

	return a.verify(ctx, page, jar, originalURL)
}

// waitForLogin polls until the page reports logged-in or the budget runs out.
// It returns the elapsed wait and whether login was detected. The loop is a
// cooperative countdown over remaining ticks: a check every CheckEvery-th
// remaining tick, a reminder every RemindEvery-th, one Tick of sleep per
// iteration regardless.
func (a *Authenticator) waitForLogin(ctx context.Context, page Page, originalURL string) (time.Duration, bool) {
	total := int(a.cfg.LoginTimeout / a.cfg.Tick)

	for i := total; i > 0; i-- {
		if i%a.cfg.CheckEvery == 0 {
			if a.detect.LoggedIn(ctx, page, originalURL) {
				return time.Duration(total-i) * a.cfg.Tick, true
			}
		}
		if i%a.cfg.RemindEvery == 0 {
			logger.Info("still waiting for manual login",
				"remaining", time.Duration(i)*a.cfg.Tick)
		}
		a.clock.Sleep(a.cfg.Tick)
	}
	return a.cfg.LoginTimeout, false
}

// renavigate drives the page back to the target, retrying once after a short
// delay. Navigation errors here are transient by contract.
func (a *Authenticator) renavigate(ctx context.Context, page Page, originalURL string) {
	err := page.Navigate(ctx, originalURL)
	if err == nil {
		return
	}
	logger.Warn("navigation to target failed, retrying", "url", originalURL, "error", err)
	a.clock.Sleep(a.cfg.NavRetryDelay)
	if err := page.Navigate(ctx, originalURL); err != nil {
		logger.Warn("retry navigation failed, verification will decide", "url", originalURL, "error", err)
	}
}

// verify confirms the authenticated session actually reaches the target page,
// retrying with a backoff and re-navigation between attempts. Cookies are
// saved exactly once, on the confirming attempt.
func (a *Authenticator) verify(ctx context.Context, page Page, jar CookieJar, originalURL string) bool {
	for attempt := 1; attempt <= a.cfg.VerifyAttempts; attempt++ {
		if a.detect.LoggedIn(ctx, page, originalURL) {
			logger.Info("reached target page while authenticated", "url", originalURL)
			if err := a.store.Save(ctx, jar, originalURL); err != nil {
				logger.Error("session will not persist", "url", originalURL, "error", err)
				return false
			}
			return true
		}
		logger.Warn("verification attempt failed", "attempt", attempt, "of", a.cfg.VerifyAttempts)

		if attempt < a.cfg.VerifyAttempts {
			a.clock.Sleep(a.cfg.VerifyBackoff)
			if err := page.Navigate(ctx, originalURL); err != nil {
				logger.Warn("re-navigation during verification failed", "error", err)
			}
			a.clock.Sleep(a.cfg.VerifySettle)
		}
	}

	logger.Error("logged in during wait but could not confirm target page", "url", originalURL)
	return false
}
