package browser

import "time"

// By identifies the location strategy for a Selector.
type By string

const (
	ByCSS   By = "css selector"
	ByXPath By = "xpath"
)

// Selector locates an element on the page.
type Selector struct {
	By    By
	Value string
}

// CSS builds a CSS selector.
func CSS(value string) Selector {
	return Selector{By: ByCSS, Value: value}
}

// XPath builds an XPath selector.
func XPath(value string) Selector {
	return Selector{By: ByXPath, Value: value}
}

// SessionConfig configures a browser session.
type SessionConfig struct {
	// SessionID is the caller-chosen identity for the session, also used to
	// derive log and registry keys.
	SessionID string

	// ProfileDir is the persistent browser profile directory. Reusing the
	// same directory across runs preserves cookies and login state.
	ProfileDir string

	// DownloadDir receives files downloaded by the page.
	DownloadDir string

	Headless  bool
	UserAgent string

	WindowWidth  int
	WindowHeight int

	PageLoadTimeout time.Duration
}

// DefaultSessionConfig returns the recommended session defaults.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		WindowWidth:     1280,
		WindowHeight:    720,
		PageLoadTimeout: 60 * time.Second,
	}
}
