// Package browser owns the Chrome instance: process launch flags, tab
// lifecycle, and the page primitives the rest of pagegrab drives (navigation,
// DOM probes, cookies, screenshots). Login is performed manually, so the
// browser runs headful by default.
package browser

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds browser launch settings.
type Config struct {
	UserAgent string `validate:"required"`
	// Headless hides the browser window. Manual login needs a visible
	// window, so this stays off unless the caller knows cookies will carry
	// the session.
	Headless bool
	// Stealth applies the anti-automation cosmetic flags and init script.
	Stealth bool
	// NavTimeout bounds a single navigation or DOM operation.
	NavTimeout time.Duration `validate:"required,min=1s"`

	WindowWidth  int `validate:"required,min=320"`
	WindowHeight int `validate:"required,min=240"`
}

// DefaultConfig returns the settings the archiver runs with out of the box.
func DefaultConfig() Config {
	return Config{
		UserAgent:    defaultUserAgent,
		Headless:     false,
		Stealth:      true,
		NavTimeout:   60 * time.Second,
		WindowWidth:  1024,
		WindowHeight: 768,
	}
}

func (c Config) validate() error {
	return validator.New().Struct(c)
}

// Chrome user agent for better compatibility
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
