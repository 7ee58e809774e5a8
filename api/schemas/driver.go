// Package schemas defines the narrow contracts shared between the polling
// core and the browser-driver adapters: the Driver and Element interfaces,
// the Locator union, the failure taxonomy, and log entry types.
//
// The core never talks to a concrete driver library; it only sees these
// interfaces. Adapters live under internal/driver.
package schemas

import (
	"context"
	"time"
)

// Driver is the minimum capability set the polling core requires from a
// browser-control session. Every method is context-first; adapters over
// non-context-aware clients must at least check ctx before each wire call.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	Refresh(ctx context.Context) error

	// FindElement resolves a single element. A miss must surface as a
	// *DriverError with KindNotFound, never as a nil element with nil error.
	FindElement(ctx context.Context, strategy Strategy, value string) (Element, error)
	FindElements(ctx context.Context, strategy Strategy, value string) ([]Element, error)

	// ExecuteScript runs src as a script body (WebDriver semantics: the
	// script may use `arguments` and `return`). Args are limited to
	// numbers, booleans, strings, Elements, and lists thereof.
	ExecuteScript(ctx context.Context, src string, args []any) (any, error)

	WindowHandles(ctx context.Context) ([]string, error)
	ActiveWindowHandle(ctx context.Context) (string, error)
	SwitchToWindow(ctx context.Context, handle string) error
	SwitchToFrame(ctx context.Context, frame Element) error
	SwitchToDefaultFrame(ctx context.Context) error

	// Logs performs a destructive read: entries returned once are gone
	// from the driver-side buffer. Callers that poll must accumulate.
	Logs(ctx context.Context, logType LogType) ([]LogEntry, error)

	SetImplicitWait(ctx context.Context, d time.Duration) error
	DeleteAllCookies(ctx context.Context) error
	WindowSize(ctx context.Context) (width, height int, err error)
	SetWindowSize(ctx context.Context, width, height int) error
	Screenshot(ctx context.Context) ([]byte, error)
	Quit(ctx context.Context) error
}

// Element is an opaque reference to a driver-side DOM node. It becomes
// stale when the backing node is removed or replaced; the polling core
// re-resolves from the original Locator rather than caching handles.
type Element interface {
	Click(ctx context.Context) error
	Text(ctx context.Context) (string, error)

	// Attribute returns the attribute's raw value, or "" with a nil error
	// when the attribute is absent. Boolean attributes come back as the
	// string "true" when present (W3C behavior); normalization happens in
	// the action layer, not here.
	Attribute(ctx context.Context, name string) (string, error)

	TagName(ctx context.Context) (string, error)
	Displayed(ctx context.Context) (bool, error)
	Selected(ctx context.Context) (bool, error)
	Enabled(ctx context.Context) (bool, error)
	SendKeys(ctx context.Context, keys string) error
}

// LogType selects a driver-side log stream.
type LogType string

const (
	// LogPerformance carries network/trace events (chromedriver's
	// "performance" log, CDP Network.* events on the cdp adapter).
	LogPerformance LogType = "performance"
	// LogBrowser carries console output.
	LogBrowser LogType = "browser"
)

// LogEntry is one drained log record.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}
