// Package drivertest provides hook-based fakes for the schemas.Driver and
// schemas.Element contracts. Tests override only the hooks they care
// about; everything else has a permissive default.
package drivertest

import (
	"context"
	"sync"
	"time"

	"github.com/xkilldash9x/stakeout/api/schemas"
)

// FakeDriver implements schemas.Driver via overridable func fields.
type FakeDriver struct {
	mu sync.Mutex

	NavigateFunc           func(ctx context.Context, url string) error
	CurrentURLFunc         func(ctx context.Context) (string, error)
	RefreshFunc            func(ctx context.Context) error
	FindElementFunc        func(ctx context.Context, strategy schemas.Strategy, value string) (schemas.Element, error)
	FindElementsFunc       func(ctx context.Context, strategy schemas.Strategy, value string) ([]schemas.Element, error)
	ExecuteScriptFunc      func(ctx context.Context, src string, args []any) (any, error)
	WindowHandlesFunc      func(ctx context.Context) ([]string, error)
	ActiveWindowFunc       func(ctx context.Context) (string, error)
	SwitchToWindowFunc     func(ctx context.Context, handle string) error
	SwitchToFrameFunc      func(ctx context.Context, frame schemas.Element) error
	SwitchToDefaultFunc    func(ctx context.Context) error
	LogsFunc               func(ctx context.Context, logType schemas.LogType) ([]schemas.LogEntry, error)
	SetImplicitWaitFunc    func(ctx context.Context, d time.Duration) error
	DeleteAllCookiesFunc   func(ctx context.Context) error
	WindowSizeFunc         func(ctx context.Context) (int, int, error)
	SetWindowSizeFunc      func(ctx context.Context, w, h int) error
	ScreenshotFunc         func(ctx context.Context) ([]byte, error)
	QuitFunc               func(ctx context.Context) error

	// NavigatedTo records every Navigate call when NavigateFunc is unset.
	NavigatedTo []string
	// SwitchedTo records every SwitchToWindow call.
	SwitchedTo []string
}

var _ schemas.Driver = (*FakeDriver)(nil)

func (f *FakeDriver) Navigate(ctx context.Context, url string) error {
	if f.NavigateFunc != nil {
		return f.NavigateFunc(ctx, url)
	}
	f.mu.Lock()
	f.NavigatedTo = append(f.NavigatedTo, url)
	f.mu.Unlock()
	return nil
}

func (f *FakeDriver) CurrentURL(ctx context.Context) (string, error) {
	if f.CurrentURLFunc != nil {
		return f.CurrentURLFunc(ctx)
	}
	return "about:blank", nil
}

func (f *FakeDriver) Refresh(ctx context.Context) error {
	if f.RefreshFunc != nil {
		return f.RefreshFunc(ctx)
	}
	return nil
}

func (f *FakeDriver) FindElement(ctx context.Context, strategy schemas.Strategy, value string) (schemas.Element, error) {
	if f.FindElementFunc != nil {
		return f.FindElementFunc(ctx, strategy, value)
	}
	return nil, schemas.NewDriverError(schemas.KindNotFound, "find element", string(strategy)+"="+value, nil)
}

func (f *FakeDriver) FindElements(ctx context.Context, strategy schemas.Strategy, value string) ([]schemas.Element, error) {
	if f.FindElementsFunc != nil {
		return f.FindElementsFunc(ctx, strategy, value)
	}
	return nil, nil
}

func (f *FakeDriver) ExecuteScript(ctx context.Context, src string, args []any) (any, error) {
	if f.ExecuteScriptFunc != nil {
		return f.ExecuteScriptFunc(ctx, src, args)
	}
	return nil, nil
}

func (f *FakeDriver) WindowHandles(ctx context.Context) ([]string, error) {
	if f.WindowHandlesFunc != nil {
		return f.WindowHandlesFunc(ctx)
	}
	return []string{"main"}, nil
}

func (f *FakeDriver) ActiveWindowHandle(ctx context.Context) (string, error) {
	if f.ActiveWindowFunc != nil {
		return f.ActiveWindowFunc(ctx)
	}
	return "main", nil
}

func (f *FakeDriver) SwitchToWindow(ctx context.Context, handle string) error {
	if f.SwitchToWindowFunc != nil {
		return f.SwitchToWindowFunc(ctx, handle)
	}
	f.mu.Lock()
	f.SwitchedTo = append(f.SwitchedTo, handle)
	f.mu.Unlock()
	return nil
}

func (f *FakeDriver) SwitchToFrame(ctx context.Context, frame schemas.Element) error {
	if f.SwitchToFrameFunc != nil {
		return f.SwitchToFrameFunc(ctx, frame)
	}
	return nil
}

func (f *FakeDriver) SwitchToDefaultFrame(ctx context.Context) error {
	if f.SwitchToDefaultFunc != nil {
		return f.SwitchToDefaultFunc(ctx)
	}
	return nil
}

func (f *FakeDriver) Logs(ctx context.Context, logType schemas.LogType) ([]schemas.LogEntry, error) {
	if f.LogsFunc != nil {
		return f.LogsFunc(ctx, logType)
	}
	return nil, nil
}

func (f *FakeDriver) SetImplicitWait(ctx context.Context, d time.Duration) error {
	if f.SetImplicitWaitFunc != nil {
		return f.SetImplicitWaitFunc(ctx, d)
	}
	return nil
}

func (f *FakeDriver) DeleteAllCookies(ctx context.Context) error {
	if f.DeleteAllCookiesFunc != nil {
		return f.DeleteAllCookiesFunc(ctx)
	}
	return nil
}

func (f *FakeDriver) WindowSize(ctx context.Context) (int, int, error) {
	if f.WindowSizeFunc != nil {
		return f.WindowSizeFunc(ctx)
	}
	return 1280, 800, nil
}

func (f *FakeDriver) SetWindowSize(ctx context.Context, w, h int) error {
	if f.SetWindowSizeFunc != nil {
		return f.SetWindowSizeFunc(ctx, w, h)
	}
	return nil
}

func (f *FakeDriver) Screenshot(ctx context.Context) ([]byte, error) {
	if f.ScreenshotFunc != nil {
		return f.ScreenshotFunc(ctx)
	}
	return nil, nil
}

func (f *FakeDriver) Quit(ctx context.Context) error {
	if f.QuitFunc != nil {
		return f.QuitFunc(ctx)
	}
	return nil
}

// FakeElement implements schemas.Element via overridable func fields and
// records interactions for assertion.
type FakeElement struct {
	mu sync.Mutex

	ClickFunc     func(ctx context.Context) error
	TextFunc      func(ctx context.Context) (string, error)
	AttributeFunc func(ctx context.Context, name string) (string, error)
	TagNameFunc   func(ctx context.Context) (string, error)
	DisplayedFunc func(ctx context.Context) (bool, error)
	SelectedFunc  func(ctx context.Context) (bool, error)
	EnabledFunc   func(ctx context.Context) (bool, error)
	SendKeysFunc  func(ctx context.Context, keys string) error

	// Clicks counts Click calls made through the default hook.
	Clicks int
	// Keys records each SendKeys payload made through the default hook.
	Keys []string
}

var _ schemas.Element = (*FakeElement)(nil)

func (f *FakeElement) Click(ctx context.Context) error {
	if f.ClickFunc != nil {
		return f.ClickFunc(ctx)
	}
	f.mu.Lock()
	f.Clicks++
	f.mu.Unlock()
	return nil
}

func (f *FakeElement) Text(ctx context.Context) (string, error) {
	if f.TextFunc != nil {
		return f.TextFunc(ctx)
	}
	return "", nil
}

func (f *FakeElement) Attribute(ctx context.Context, name string) (string, error) {
	if f.AttributeFunc != nil {
		return f.AttributeFunc(ctx, name)
	}
	return "", nil
}

func (f *FakeElement) TagName(ctx context.Context) (string, error) {
	if f.TagNameFunc != nil {
		return f.TagNameFunc(ctx)
	}
	return "div", nil
}

func (f *FakeElement) Displayed(ctx context.Context) (bool, error) {
	if f.DisplayedFunc != nil {
		return f.DisplayedFunc(ctx)
	}
	return true, nil
}

func (f *FakeElement) Selected(ctx context.Context) (bool, error) {
	if f.SelectedFunc != nil {
		return f.SelectedFunc(ctx)
	}
	return false, nil
}

func (f *FakeElement) Enabled(ctx context.Context) (bool, error) {
	if f.EnabledFunc != nil {
		return f.EnabledFunc(ctx)
	}
	return true, nil
}

func (f *FakeElement) SendKeys(ctx context.Context, keys string) error {
	if f.SendKeysFunc != nil {
		return f.SendKeysFunc(ctx, keys)
	}
	f.mu.Lock()
	f.Keys = append(f.Keys, keys)
	f.mu.Unlock()
	return nil
}

// SentKeys returns a copy of the recorded SendKeys payloads.
func (f *FakeElement) SentKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.Keys))
	copy(out, f.Keys)
	return out
}
