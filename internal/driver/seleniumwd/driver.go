// Package seleniumwd adapts a remote WebDriver session (via tebeka/selenium)
// to the schemas.Driver contract. The wire client is not context-aware, so
// every method checks ctx before touching the network; a call already in
// flight runs to completion.
package seleniumwd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tebeka/selenium"
	slog "github.com/tebeka/selenium/log"
	"go.uber.org/zap"

	"github.com/xkilldash9x/stakeout/api/schemas"
	"github.com/xkilldash9x/stakeout/internal/config"
)

// Driver wraps a selenium.WebDriver session.
type Driver struct {
	wd  selenium.WebDriver
	id  string
	log *zap.Logger
}

var _ schemas.Driver = (*Driver)(nil)

// Connect opens a remote session against cfg.URL. Chrome logging prefs are
// always requested so the performance and browser log streams exist for
// draining.
func Connect(cfg config.WebDriverConfig, logger *zap.Logger) (*Driver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	caps := selenium.Capabilities{
		"browserName": cfg.Browser,
		"goog:loggingPrefs": map[string]string{
			"performance": "ALL",
			"browser":     "ALL",
		},
	}
	wd, err := selenium.NewRemote(caps, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connecting to webdriver at %s: %w", cfg.URL, err)
	}
	if cfg.ImplicitWait > 0 {
		if err := wd.SetImplicitWaitTimeout(cfg.ImplicitWait); err != nil {
			_ = wd.Quit()
			return nil, fmt.Errorf("setting implicit wait: %w", err)
		}
	}

	id := uuid.NewString()
	log := logger.Named("seleniumwd").With(zap.String("session", id))
	log.Info("webdriver session established",
		zap.String("url", cfg.URL), zap.String("browser", cfg.Browser))
	return &Driver{wd: wd, id: id, log: log}, nil
}

// SessionID returns the adapter's local session identifier.
func (d *Driver) SessionID() string { return d.id }

// mapErr classifies a selenium client failure into the shared taxonomy.
func mapErr(op, selector string, err error) error {
	if err == nil {
		return nil
	}
	kind := schemas.KindUnknown

	var serr *selenium.Error
	if errors.As(err, &serr) {
		switch serr.Err {
		case "no such element":
			kind = schemas.KindNotFound
		case "stale element reference":
			kind = schemas.KindStale
		case "element not interactable", "invalid element state":
			kind = schemas.KindNotInteractable
		case "element click intercepted":
			kind = schemas.KindClickIntercepted
		case "timeout", "script timeout":
			kind = schemas.KindTimeout
		case "javascript error":
			kind = schemas.KindScriptError
		}
	}
	if kind == schemas.KindUnknown {
		// Older chromedriver builds report legacy-protocol messages with no
		// structured code; fall back to sniffing the text.
		msg := strings.ToLower(err.Error())
		switch {
		case strings.Contains(msg, "no such element"):
			kind = schemas.KindNotFound
		case strings.Contains(msg, "stale element"):
			kind = schemas.KindStale
		case strings.Contains(msg, "not interactable"):
			kind = schemas.KindNotInteractable
		case strings.Contains(msg, "click intercepted"):
			kind = schemas.KindClickIntercepted
		case strings.Contains(msg, "timeout"):
			kind = schemas.KindTimeout
		case strings.Contains(msg, "javascript error"):
			kind = schemas.KindScriptError
		}
	}
	return schemas.NewDriverError(kind, op, selector, err)
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return mapErr("navigate", url, d.wd.Get(url))
}

func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	u, err := d.wd.CurrentURL()
	return u, mapErr("current url", "", err)
}

func (d *Driver) Refresh(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return mapErr("refresh", "", d.wd.Refresh())
}

func (d *Driver) FindElement(ctx context.Context, strategy schemas.Strategy, value string) (schemas.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	desc := fmt.Sprintf("%s=%q", strategy, value)
	we, err := d.wd.FindElement(string(strategy), value)
	if err != nil {
		return nil, mapErr("find element", desc, err)
	}
	return &element{d: d, we: we, desc: desc}, nil
}

func (d *Driver) FindElements(ctx context.Context, strategy schemas.Strategy, value string) ([]schemas.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	desc := fmt.Sprintf("%s=%q", strategy, value)
	wes, err := d.wd.FindElements(string(strategy), value)
	if err != nil {
		return nil, mapErr("find elements", desc, err)
	}
	out := make([]schemas.Element, 0, len(wes))
	for _, we := range wes {
		out = append(out, &element{d: d, we: we, desc: desc})
	}
	return out, nil
}

// unwrapArgs converts schemas.Element arguments back into the client's
// element type so the wire layer serializes them as element references.
func unwrapArgs(args []any) ([]any, error) {
	out := make([]any, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case *element:
			out[i] = v.we
		case schemas.Element:
			return nil, fmt.Errorf("script argument %d is a foreign element type %T", i, a)
		case []any:
			inner, err := unwrapArgs(v)
			if err != nil {
				return nil, err
			}
			out[i] = inner
		default:
			out[i] = a
		}
	}
	return out, nil
}

func (d *Driver) ExecuteScript(ctx context.Context, src string, args []any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	wireArgs, err := unwrapArgs(args)
	if err != nil {
		return nil, schemas.NewDriverError(schemas.KindScriptError, "execute script", "", err)
	}
	res, err := d.wd.ExecuteScript(src, wireArgs)
	if err != nil {
		return nil, mapErr("execute script", "", err)
	}
	return res, nil
}

func (d *Driver) WindowHandles(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hs, err := d.wd.WindowHandles()
	return hs, mapErr("window handles", "", err)
}

func (d *Driver) ActiveWindowHandle(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	h, err := d.wd.CurrentWindowHandle()
	return h, mapErr("active window handle", "", err)
}

func (d *Driver) SwitchToWindow(ctx context.Context, handle string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return mapErr("switch to window", handle, d.wd.SwitchWindow(handle))
}

func (d *Driver) SwitchToFrame(ctx context.Context, frame schemas.Element) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	el, ok := frame.(*element)
	if !ok {
		return schemas.NewDriverError(schemas.KindUnknown, "switch to frame", "",
			fmt.Errorf("foreign element type %T", frame))
	}
	return mapErr("switch to frame", el.desc, d.wd.SwitchFrame(el.we))
}

func (d *Driver) SwitchToDefaultFrame(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return mapErr("switch to default frame", "", d.wd.SwitchFrame(nil))
}

func (d *Driver) Logs(ctx context.Context, logType schemas.LogType) ([]schemas.LogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	msgs, err := d.wd.Log(slog.Type(logType))
	if err != nil {
		return nil, mapErr("get logs", string(logType), err)
	}
	out := make([]schemas.LogEntry, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, schemas.LogEntry{
			Timestamp: m.Timestamp,
			Level:     string(m.Level),
			Message:   m.Message,
		})
	}
	d.log.Debug("drained remote logs", zap.String("type", string(logType)), zap.Int("entries", len(out)))
	return out, nil
}

func (d *Driver) SetImplicitWait(ctx context.Context, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return mapErr("set implicit wait", "", d.wd.SetImplicitWaitTimeout(timeout))
}

func (d *Driver) DeleteAllCookies(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return mapErr("delete cookies", "", d.wd.DeleteAllCookies())
}

// WindowSize reads the viewport through script; the wire protocol's window
// rect includes browser chrome, which is not what layout checks want.
func (d *Driver) WindowSize(ctx context.Context) (int, int, error) {
	res, err := d.ExecuteScript(ctx, "return [window.innerWidth, window.innerHeight];", nil)
	if err != nil {
		return 0, 0, err
	}
	dims, ok := res.([]any)
	if !ok || len(dims) != 2 {
		return 0, 0, schemas.NewDriverError(schemas.KindScriptError, "window size", "",
			fmt.Errorf("unexpected script result %T", res))
	}
	w, wok := dims[0].(float64)
	h, hok := dims[1].(float64)
	if !wok || !hok {
		return 0, 0, schemas.NewDriverError(schemas.KindScriptError, "window size", "",
			fmt.Errorf("non-numeric dimensions %v", dims))
	}
	return int(w), int(h), nil
}

func (d *Driver) SetWindowSize(ctx context.Context, width, height int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	handle, err := d.wd.CurrentWindowHandle()
	if err != nil {
		return mapErr("set window size", "", err)
	}
	return mapErr("set window size", "", d.wd.ResizeWindow(handle, width, height))
}

func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	png, err := d.wd.Screenshot()
	return png, mapErr("screenshot", "", err)
}

func (d *Driver) Quit(ctx context.Context) error {
	d.log.Info("closing webdriver session")
	return mapErr("quit", "", d.wd.Quit())
}

// element adapts a selenium.WebElement.
type element struct {
	d    *Driver
	we   selenium.WebElement
	desc string
}

var _ schemas.Element = (*element)(nil)

func (e *element) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return mapErr("click", e.desc, e.we.Click())
}

func (e *element) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s, err := e.we.Text()
	return s, mapErr("text", e.desc, err)
}

// absentAttribute matches the client's sentinel for a null wire value on
// a string command ("<url>: nil return value"). Only that exact phrase is
// treated as absence; any other error text stays an error.
func absentAttribute(err error) bool {
	return err != nil && strings.Contains(err.Error(), "nil return value")
}

func (e *element) Attribute(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v, err := e.we.GetAttribute(name)
	if err != nil {
		// An absent attribute comes back as the nil-return sentinel; the
		// contract wants "" with no error.
		if absentAttribute(err) {
			return "", nil
		}
		return "", mapErr("attribute "+name, e.desc, err)
	}
	return v, nil
}

func (e *element) TagName(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s, err := e.we.TagName()
	return s, mapErr("tag name", e.desc, err)
}

func (e *element) Displayed(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	b, err := e.we.IsDisplayed()
	return b, mapErr("displayed", e.desc, err)
}

func (e *element) Selected(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	b, err := e.we.IsSelected()
	return b, mapErr("selected", e.desc, err)
}

func (e *element) Enabled(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	b, err := e.we.IsEnabled()
	return b, mapErr("enabled", e.desc, err)
}

func (e *element) SendKeys(ctx context.Context, keys string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return mapErr("send keys", e.desc, e.we.SendKeys(keys))
}
