// Package actions is the user-facing verb layer: click, type, read,
// predicate checks, window switching. Every verb re-resolves its locator
// inside the polling probe, so a handle going stale between polls is just
// another retryable miss, never a crash.
package actions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/stakeout/api/schemas"
	"github.com/xkilldash9x/stakeout/internal/locator"
	"github.com/xkilldash9x/stakeout/internal/retry"
)

// ScrollOptions mirror the scrollIntoView() options bag.
type ScrollOptions struct {
	Behavior string // "auto" | "smooth"
	Block    string // "start" | "center" | "end" | "nearest"
	Inline   string
}

// DefaultScroll snaps the element to the viewport center instantly, which
// keeps sticky headers and cookie banners from eating the click.
func DefaultScroll() ScrollOptions {
	return ScrollOptions{Behavior: "auto", Block: "center", Inline: "nearest"}
}

// Actions wraps a driver with polling semantics. The zero value is not
// usable; construct with New.
type Actions struct {
	d      schemas.Driver
	cfg    retry.Config
	scroll ScrollOptions
	log    *zap.Logger
}

// Option customizes an Actions instance.
type Option func(*Actions)

// WithScroll overrides the pre-click scroll behavior.
func WithScroll(s ScrollOptions) Option {
	return func(a *Actions) { a.scroll = s }
}

// New builds the verb layer over d. cfg governs every polling call made
// through the returned value.
func New(d schemas.Driver, cfg retry.Config, opts ...Option) *Actions {
	a := &Actions{
		d:      d,
		cfg:    cfg,
		scroll: DefaultScroll(),
		log:    zap.NewNop(),
	}
	if cfg.Logger != nil {
		a.log = cfg.Logger.Named("actions")
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Driver exposes the underlying driver for callers that need raw access.
func (a *Actions) Driver() schemas.Driver { return a.d }

const scrollScript = `arguments[0].scrollIntoView({behavior: arguments[1], block: arguments[2], inline: arguments[3]});`

const onScreenScript = `
var r = arguments[0].getBoundingClientRect();
return r.bottom > 0 && r.right > 0 &&
  r.top < (window.innerHeight || document.documentElement.clientHeight) &&
  r.left < (window.innerWidth || document.documentElement.clientWidth);`

// Native selection via click does not fire framework change handlers, so
// selects are driven through the DOM with an explicit bubbled event.
const selectByValueScript = `
var el = arguments[0];
el.value = arguments[1];
el.dispatchEvent(new Event('change', {bubbles: true}));`

type clickConfig struct {
	scroll bool
}

// ClickOption customizes a single Click call.
type ClickOption func(*clickConfig)

// WithoutScroll skips the pre-click scroll-into-view pass.
func WithoutScroll() ClickOption {
	return func(c *clickConfig) { c.scroll = false }
}

// Click scrolls the element into view (unless disabled), waits for it to
// be displayed, and clicks it, retrying the whole sequence on transient
// failures. Handles are never carried between attempts.
func (a *Actions) Click(ctx context.Context, loc schemas.Locator, opts ...ClickOption) error {
	cc := clickConfig{scroll: true}
	for _, o := range opts {
		o(&cc)
	}
	_, err := retry.Do(ctx, a.cfg, "click", func(ctx context.Context) (struct{}, error) {
		el, err := locator.Resolve(ctx, a.d, loc)
		if err != nil {
			return struct{}{}, err
		}
		if cc.scroll {
			// Nested polling call; the outer loop owns the clock.
			if err := a.ScrollIntoView(ctx, schemas.FromElement(el)); err != nil {
				return struct{}{}, err
			}
		}
		shown, err := el.Displayed(ctx)
		if err != nil {
			return struct{}{}, err
		}
		if !shown {
			return struct{}{}, schemas.NewDriverError(schemas.KindNotInteractable, "click", loc.String(), nil)
		}
		return struct{}{}, el.Click(ctx)
	})
	if err != nil {
		return fmt.Errorf("click %s: %w", loc, err)
	}
	return nil
}

// ScrollIntoView scrolls the element to the viewport and polls until its
// bounding box actually intersects the viewport. Script failures during
// the check are treated as "not there yet": a mid-scroll layout shift is
// routine, not fatal.
func (a *Actions) ScrollIntoView(ctx context.Context, loc schemas.Locator) error {
	return retry.Until(ctx, a.cfg, "scroll into view", func(ctx context.Context) (bool, error) {
		el, err := locator.Resolve(ctx, a.d, loc)
		if err != nil {
			return false, err
		}
		args := []any{el, a.scroll.Behavior, a.scroll.Block, a.scroll.Inline}
		if _, err := a.d.ExecuteScript(ctx, scrollScript, args); err != nil {
			if schemas.KindOf(err) == schemas.KindScriptError {
				return false, nil
			}
			return false, err
		}
		res, err := a.d.ExecuteScript(ctx, onScreenScript, []any{el})
		if err != nil {
			if schemas.KindOf(err) == schemas.KindScriptError {
				return false, nil
			}
			return false, err
		}
		on, _ := res.(bool)
		return on, nil
	})
}

// SendKeys waits for the element and types into it. An empty payload is a
// no-op that touches the driver not at all, so callers can feed optional
// form values straight through.
func (a *Actions) SendKeys(ctx context.Context, loc schemas.Locator, keys string) error {
	if keys == "" {
		return nil
	}
	_, err := retry.Do(ctx, a.cfg, "send keys", func(ctx context.Context) (struct{}, error) {
		el, err := locator.Resolve(ctx, a.d, loc)
		if err != nil {
			return struct{}{}, err
		}
		return struct{}{}, el.SendKeys(ctx, keys)
	})
	if err != nil {
		return fmt.Errorf("send keys to %s: %w", loc, err)
	}
	return nil
}

// SelectByValue sets a <select>'s value through the DOM and fires a
// bubbled change event so framework listeners notice.
func (a *Actions) SelectByValue(ctx context.Context, loc schemas.Locator, value string) error {
	_, err := retry.Do(ctx, a.cfg, "select by value", func(ctx context.Context) (struct{}, error) {
		el, err := locator.Resolve(ctx, a.d, loc)
		if err != nil {
			return struct{}{}, err
		}
		_, err = a.d.ExecuteScript(ctx, selectByValueScript, []any{el, value})
		return struct{}{}, err
	})
	if err != nil {
		return fmt.Errorf("select by value on %s: %w", loc, err)
	}
	return nil
}

// transient reports whether err's kind sits in the configured allow-list,
// i.e. whether a soft read should swallow it.
func (a *Actions) transient(err error) bool {
	allow := a.cfg.Retryable
	if allow == nil {
		allow = retry.DefaultRetryable()
	}
	return allow[schemas.KindOf(err)]
}

// Text reads the element's visible text. The read is soft: if the element
// never turns up within the budget the result is "" with a nil error.
// Fatal failures still propagate.
func (a *Actions) Text(ctx context.Context, loc schemas.Locator) (string, error) {
	v, err := retry.Do(ctx, a.cfg, "read text", func(ctx context.Context) (string, error) {
		el, err := locator.Resolve(ctx, a.d, loc)
		if err != nil {
			return "", err
		}
		return el.Text(ctx)
	})
	if err != nil {
		if a.transient(err) {
			return "", nil
		}
		return "", err
	}
	return v, nil
}

// Attribute reads an attribute softly. Boolean attributes are normalized
// to their HTML serialization: a raw "true" reads as the attribute's own
// name (checked="checked"); any other raw value, "false" included, reads
// as absence.
func (a *Actions) Attribute(ctx context.Context, loc schemas.Locator, name string) (string, error) {
	v, err := retry.Do(ctx, a.cfg, "read attribute", func(ctx context.Context) (string, error) {
		el, err := locator.Resolve(ctx, a.d, loc)
		if err != nil {
			return "", err
		}
		return el.Attribute(ctx, name)
	})
	if err != nil {
		if a.transient(err) {
			return "", nil
		}
		return "", err
	}
	if schemas.IsBooleanAttribute(name) {
		if strings.EqualFold(v, "true") {
			return name, nil
		}
		return "", nil
	}
	return v, nil
}

// Value reads the value attribute softly.
func (a *Actions) Value(ctx context.Context, loc schemas.Locator) (string, error) {
	return a.Attribute(ctx, loc, "value")
}

// TagName reads the element's tag name softly, lower-cased.
func (a *Actions) TagName(ctx context.Context, loc schemas.Locator) (string, error) {
	v, err := retry.Do(ctx, a.cfg, "read tag name", func(ctx context.Context) (string, error) {
		el, err := locator.Resolve(ctx, a.d, loc)
		if err != nil {
			return "", err
		}
		return el.TagName(ctx)
	})
	if err != nil {
		if a.transient(err) {
			return "", nil
		}
		return "", err
	}
	return strings.ToLower(v), nil
}

// Selected reports whether the element is selected. Soft: a missing
// element reads as false.
func (a *Actions) Selected(ctx context.Context, loc schemas.Locator) (bool, error) {
	v, err := retry.Do(ctx, a.cfg, "read selected", func(ctx context.Context) (bool, error) {
		el, err := locator.Resolve(ctx, a.d, loc)
		if err != nil {
			return false, err
		}
		return el.Selected(ctx)
	})
	if err != nil {
		if a.transient(err) {
			return false, nil
		}
		return false, err
	}
	return v, nil
}

// TextIs polls until the element's text equals want, ignoring case. The
// answer is a plain bool: exhaustion and driver trouble both read as
// "no", which is what an assertion caller wants from a predicate.
func (a *Actions) TextIs(ctx context.Context, loc schemas.Locator, want string) bool {
	err := retry.Until(ctx, a.cfg, "text is", func(ctx context.Context) (bool, error) {
		el, err := locator.Resolve(ctx, a.d, loc)
		if err != nil {
			return false, err
		}
		got, err := el.Text(ctx)
		if err != nil {
			return false, err
		}
		return strings.EqualFold(got, want), nil
	})
	return err == nil
}

// ContainsText polls until the element's text contains want, ignoring case.
func (a *Actions) ContainsText(ctx context.Context, loc schemas.Locator, want string) bool {
	err := retry.Until(ctx, a.cfg, "contains text", func(ctx context.Context) (bool, error) {
		el, err := locator.Resolve(ctx, a.d, loc)
		if err != nil {
			return false, err
		}
		got, err := el.Text(ctx)
		if err != nil {
			return false, err
		}
		return strings.Contains(strings.ToLower(got), strings.ToLower(want)), nil
	})
	return err == nil
}

// ValueIs polls until the element's value attribute equals want, ignoring
// case.
func (a *Actions) ValueIs(ctx context.Context, loc schemas.Locator, want string) bool {
	err := retry.Until(ctx, a.cfg, "value is", func(ctx context.Context) (bool, error) {
		el, err := locator.Resolve(ctx, a.d, loc)
		if err != nil {
			return false, err
		}
		got, err := el.Attribute(ctx, "value")
		if err != nil {
			return false, err
		}
		return strings.EqualFold(got, want), nil
	})
	return err == nil
}

// WaitVisible blocks until the element exists and is displayed.
func (a *Actions) WaitVisible(ctx context.Context, loc schemas.Locator) error {
	err := retry.Until(ctx, a.cfg, "wait visible", func(ctx context.Context) (bool, error) {
		el, err := locator.Resolve(ctx, a.d, loc)
		if err != nil {
			return false, err
		}
		return el.Displayed(ctx)
	})
	if err != nil {
		return fmt.Errorf("wait visible %s: %w", loc, err)
	}
	return nil
}

// SwitchToWindow polls the handle list until the target window exists,
// then switches to it. Popups open asynchronously, so the handle is
// usually absent on the first look.
func (a *Actions) SwitchToWindow(ctx context.Context, handle string) error {
	err := retry.Until(ctx, a.cfg, "switch to window", func(ctx context.Context) (bool, error) {
		handles, err := a.d.WindowHandles(ctx)
		if err != nil {
			return false, err
		}
		for _, h := range handles {
			if h == handle {
				return true, nil
			}
		}
		return false, nil
	})
	if err != nil {
		return fmt.Errorf("window %q never appeared: %w", handle, err)
	}
	return a.d.SwitchToWindow(ctx, handle)
}

// Navigate loads url in the current window.
func (a *Actions) Navigate(ctx context.Context, url string) error {
	a.log.Debug("navigating", zap.String("url", url))
	return a.d.Navigate(ctx, url)
}

// CurrentURL returns the current window's URL.
func (a *Actions) CurrentURL(ctx context.Context) (string, error) {
	return a.d.CurrentURL(ctx)
}

// Refresh reloads the current page.
func (a *Actions) Refresh(ctx context.Context) error {
	return a.d.Refresh(ctx)
}

// Screenshot captures the current viewport as PNG bytes.
func (a *Actions) Screenshot(ctx context.Context) ([]byte, error) {
	return a.d.Screenshot(ctx)
}

// SetImplicitWait forwards the driver-side implicit element wait.
func (a *Actions) SetImplicitWait(ctx context.Context, d time.Duration) error {
	return a.d.SetImplicitWait(ctx, d)
}
