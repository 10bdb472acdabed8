package auth

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/spf13/afero"

	"github.com/pagegrab/pagegrab/internal/logger"
)

// fakeClock records sleeps instead of performing them.
type fakeClock struct {
	now   time.Time
	slept []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(d time.Duration) {
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
}

func (c *fakeClock) sleepsOf(d time.Duration) int {
	n := 0
	for _, s := range c.slept {
		if s == d {
			n++
		}
	}
	return n
}

// scriptDetector returns a scripted sequence of logged-in results; the last
// entry repeats once the script is exhausted.
type scriptDetector struct {
	script []bool
	calls  int
}

func (d *scriptDetector) LoginRequired(context.Context, Page) bool { return false }

func (d *scriptDetector) LoggedIn(context.Context, Page, string) bool {
	i := d.calls
	d.calls++
	if i >= len(d.script) {
		i = len(d.script) - 1
	}
	return d.script[i]
}

func testConfig(timeout time.Duration) Config {
	cfg := DefaultConfig()
	cfg.LoginTimeout = timeout
	return cfg
}

func newTestAuthenticator(t *testing.T, cfg Config, store SessionStore, det LoginChecker) (*Authenticator, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	a, err := New(cfg, store, WithDetector(det), WithClock(clock))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return a, clock
}

func TestNew_InvalidConfig(t *testing.T) {
	if _, err := New(Config{}, NewCookieStore(afero.NewMemMapFs(), "cookies")); err == nil {
		t.Error("New() with zero config should fail validation")
	}
}

// Scenario: saved cookies still work. Authentication succeeds on the first
// check, the wait loop is never entered, and the cookie file is not
// rewritten.
func TestAuthenticator_CookiesStillValid(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewCookieStore(fs, "cookies")
	ctx := context.Background()
	target := "https://a.com/profile"

	seed := &fakeJar{cookies: []*network.Cookie{{Name: "sessionid", Value: "old", Domain: ".a.com"}}}
	if err := store.Save(ctx, seed, target); err != nil {
		t.Fatal(err)
	}
	before, err := afero.ReadFile(fs, store.Path(target))
	if err != nil {
		t.Fatal(err)
	}

	det := &scriptDetector{script: []bool{true}}
	a, clock := newTestAuthenticator(t, testConfig(60*time.Second), store, det)

	jar := &fakeJar{}
	if !a.Authenticate(ctx, cleanPage(), jar, target) {
		t.Fatal("Authenticate() = false, want immediate success")
	}

	if det.calls != 1 {
		t.Errorf("logged-in checked %d times, want 1 (wait loop must not run)", det.calls)
	}
	if ticks := clock.sleepsOf(time.Second); ticks != 0 {
		t.Errorf("wait loop ticked %d times, want 0", ticks)
	}

	after, err := afero.ReadFile(fs, store.Path(target))
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Error("cookie file was rewritten despite cookies already being valid")
	}
}

// Scenario: no login ever happens. The wait budget is fully consumed, the
// result is false, and no cookie file appears.
func TestAuthenticator_WaitTimeout(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewCookieStore(fs, "cookies")
	target := "https://a.com/profile"

	det := &scriptDetector{script: []bool{false}}
	a, clock := newTestAuthenticator(t, testConfig(9*time.Second), store, det)

	if a.Authenticate(context.Background(), cleanPage(), &fakeJar{}, target) {
		t.Fatal("Authenticate() = true, want timeout failure")
	}

	if ticks := clock.sleepsOf(time.Second); ticks != 9 {
		t.Errorf("wait loop ticked %d times, want the full 9", ticks)
	}

	if exists, _ := afero.Exists(fs, store.Path(target)); exists {
		t.Error("cookie file written on a failed attempt")
	}
}

// Reminders follow their own cadence, even when it never lines up with the
// check cadence.
func TestAuthenticator_WaitReminderCadence(t *testing.T) {
	var buf bytes.Buffer
	logger.Init(logger.Options{Output: &buf})
	defer logger.Init(logger.Options{})

	cfg := testConfig(10 * time.Second)
	cfg.CheckEvery = 3
	cfg.RemindEvery = 4

	store := NewCookieStore(afero.NewMemMapFs(), "cookies")
	det := &scriptDetector{script: []bool{false}}
	a, _ := newTestAuthenticator(t, cfg, store, det)

	a.Authenticate(context.Background(), cleanPage(), &fakeJar{}, "https://a.com")

	// remaining ticks 8 and 4 are reminder points
	got := strings.Count(buf.String(), "still waiting for manual login")
	if got != 2 {
		t.Errorf("logged %d reminders over a 10 tick wait, want 2", got)
	}
}

// Scenario: manual login lands mid-wait. Checks run at 0s, 3s, and 6s of
// elapsed wait; the third one succeeds, verification confirms, and cookies
// are saved exactly once.
func TestAuthenticator_LoginDuringWait(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewCookieStore(fs, "cookies")
	ctx := context.Background()
	target := "https://a.com/profile"

	// initial check, then checks at remaining=15 and 12 fail, remaining=9
	// (6s elapsed) succeeds, then verification succeeds.
	det := &scriptDetector{script: []bool{false, false, false, true, true}}
	a, clock := newTestAuthenticator(t, testConfig(15*time.Second), store, det)

	jar := &fakeJar{cookies: []*network.Cookie{{Name: "sessionid", Value: "fresh", Domain: ".a.com"}}}
	if !a.Authenticate(ctx, cleanPage(), jar, target) {
		t.Fatal("Authenticate() = false, want success after mid-wait login")
	}

	if ticks := clock.sleepsOf(time.Second); ticks != 6 {
		t.Errorf("waited %d ticks of the 15s budget, want 6", ticks)
	}

	if jar.getCalls != 1 {
		t.Errorf("jar read %d times, want exactly 1 cookie save", jar.getCalls)
	}

	data, err := afero.ReadFile(fs, store.Path(target))
	if err != nil {
		t.Fatalf("cookie file missing after confirmed login: %v", err)
	}
	if len(data) == 0 {
		t.Error("cookie file empty")
	}
}

// Scenario: login detected during the wait, but the target page never
// verifies. All three attempts fail, the result is false, and cookies are
// never saved.
func TestAuthenticator_VerificationExhausted(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewCookieStore(fs, "cookies")
	target := "https://a.com/profile"

	// initial false, first wait check true, then three verification
	// failures.
	det := &scriptDetector{script: []bool{false, true, false, false, false}}
	a, _ := newTestAuthenticator(t, testConfig(15*time.Second), store, det)

	page := cleanPage()
	jar := &fakeJar{}
	if a.Authenticate(context.Background(), page, jar, target) {
		t.Fatal("Authenticate() = true, want failure after exhausted verification")
	}

	if det.calls != 5 {
		t.Errorf("logged-in checked %d times, want 5 (initial + wait + 3 verifications)", det.calls)
	}
	if jar.getCalls != 0 {
		t.Error("cookies were read for saving despite verification failure")
	}
	if exists, _ := afero.Exists(fs, store.Path(target)); exists {
		t.Error("cookie file written despite verification failure")
	}

	// initial navigation, post-wait re-navigation, and one per retried
	// verification attempt.
	if len(page.navigations) != 4 {
		t.Errorf("page navigated %d times, want 4", len(page.navigations))
	}
}

// Navigation errors are transient: a failing first navigation still reaches
// the wait loop, and a failing re-navigation still reaches verification.
func TestAuthenticator_NavigationErrorsAreTransient(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewCookieStore(fs, "cookies")

	det := &scriptDetector{script: []bool{false, true, true}}
	a, _ := newTestAuthenticator(t, testConfig(9*time.Second), store, det)

	page := cleanPage()
	page.navErr = context.DeadlineExceeded

	if !a.Authenticate(context.Background(), page, &fakeJar{}, "https://a.com") {
		t.Error("Authenticate() = false, navigation errors must not fail the flow")
	}
}

// A cookie save failure after a confirmed login is fatal for the URL: the
// session will not persist, so the attempt reports failure.
func TestAuthenticator_SaveFailureFailsAttempt(t *testing.T) {
	store := NewCookieStore(afero.NewReadOnlyFs(afero.NewMemMapFs()), "cookies")

	det := &scriptDetector{script: []bool{false, true, true}}
	a, _ := newTestAuthenticator(t, testConfig(9*time.Second), store, det)

	jar := &fakeJar{cookies: []*network.Cookie{{Name: "s", Value: "v"}}}
	if a.Authenticate(context.Background(), cleanPage(), jar, "https://a.com") {
		t.Error("Authenticate() = true despite cookie save failure")
	}
}
