// Package stakeout is a polling automation layer over a browser driver.
// It wraps a schemas.Driver with bounded-retry verbs (internal/actions),
// a phased form filler (internal/formfill), and destructive-log draining
// (internal/logdrain), and offers an ambient API bound to a process-wide
// implicit client.
//
// The implicit client is one shared slot: Use from two goroutines at once
// and they will stomp on each other. Scripted, single-goroutine flows are
// the intended audience; concurrent code should pass *Client around
// explicitly instead.
package stakeout

import (
	"context"
	"errors"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/xkilldash9x/stakeout/api/schemas"
	"github.com/xkilldash9x/stakeout/internal/actions"
	"github.com/xkilldash9x/stakeout/internal/config"
	"github.com/xkilldash9x/stakeout/internal/formfill"
	"github.com/xkilldash9x/stakeout/internal/logdrain"
	"github.com/xkilldash9x/stakeout/internal/observability"
	"github.com/xkilldash9x/stakeout/internal/retry"
)

// ErrNoSession is returned by the ambient API when no client is bound.
var ErrNoSession = errors.New("no active stakeout session; call Use first")

// Client bundles the automation layers over one driver.
type Client struct {
	driver  schemas.Driver
	Actions *actions.Actions
	Forms   *formfill.Filler
	Logs    *logdrain.Drainer
	log     *zap.Logger
}

// NewClient builds a Client over d. A nil cfg means defaults; a nil
// logger means the process-wide logger.
func NewClient(d schemas.Driver, cfg *config.Config, logger *zap.Logger) *Client {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	if logger == nil {
		logger = observability.GetLogger()
	}
	rcfg := retry.Config{
		Timeout:   cfg.Poll.Timeout,
		Interval:  cfg.Poll.Interval,
		Retryable: cfg.Poll.RetryableKinds(),
		Logger:    logger,
	}
	act := actions.New(d, rcfg, actions.WithScroll(actions.ScrollOptions{
		Behavior: cfg.Poll.Scroll.Behavior,
		Block:    cfg.Poll.Scroll.Block,
		Inline:   cfg.Poll.Scroll.Inline,
	}))
	return &Client{
		driver:  d,
		Actions: act,
		Forms:   formfill.New(act, logger),
		Logs: logdrain.New(d, logdrain.Config{
			Timeout:  cfg.LogDrain.Timeout,
			Interval: cfg.LogDrain.Interval,
			Logger:   logger,
		}),
		log: logger.Named("stakeout"),
	}
}

// Driver exposes the client's underlying driver.
func (c *Client) Driver() schemas.Driver { return c.driver }

// Quit tears down the underlying driver session.
func (c *Client) Quit(ctx context.Context) error {
	return c.driver.Quit(ctx)
}

// current is the process-wide implicit client slot.
var current atomic.Pointer[Client]

// Use binds c as the implicit client and returns a restore function that
// reinstates whatever was bound before. Typical use:
//
//	defer stakeout.Use(client)()
func Use(c *Client) func() {
	prev := current.Swap(c)
	return func() { current.Store(prev) }
}

// Clear unbinds the implicit client.
func Clear() { current.Store(nil) }

// Current returns the implicit client, or ErrNoSession when none is bound.
func Current() (*Client, error) {
	c := current.Load()
	if c == nil {
		return nil, ErrNoSession
	}
	return c, nil
}

// --- Ambient API ---
//
// Thin wrappers over the implicit client. Each returns ErrNoSession (or a
// zero value, for the soft reads and predicates) when no client is bound.

func Navigate(ctx context.Context, url string) error {
	c, err := Current()
	if err != nil {
		return err
	}
	return c.Actions.Navigate(ctx, url)
}

func Click(ctx context.Context, loc schemas.Locator, opts ...actions.ClickOption) error {
	c, err := Current()
	if err != nil {
		return err
	}
	return c.Actions.Click(ctx, loc, opts...)
}

func SendKeys(ctx context.Context, loc schemas.Locator, keys string) error {
	c, err := Current()
	if err != nil {
		return err
	}
	return c.Actions.SendKeys(ctx, loc, keys)
}

func Text(ctx context.Context, loc schemas.Locator) (string, error) {
	c, err := Current()
	if err != nil {
		return "", err
	}
	return c.Actions.Text(ctx, loc)
}

func Value(ctx context.Context, loc schemas.Locator) (string, error) {
	c, err := Current()
	if err != nil {
		return "", err
	}
	return c.Actions.Value(ctx, loc)
}

func Attribute(ctx context.Context, loc schemas.Locator, name string) (string, error) {
	c, err := Current()
	if err != nil {
		return "", err
	}
	return c.Actions.Attribute(ctx, loc, name)
}

func TextIs(ctx context.Context, loc schemas.Locator, want string) bool {
	c, err := Current()
	if err != nil {
		return false
	}
	return c.Actions.TextIs(ctx, loc, want)
}

func ContainsText(ctx context.Context, loc schemas.Locator, want string) bool {
	c, err := Current()
	if err != nil {
		return false
	}
	return c.Actions.ContainsText(ctx, loc, want)
}

func ValueIs(ctx context.Context, loc schemas.Locator, want string) bool {
	c, err := Current()
	if err != nil {
		return false
	}
	return c.Actions.ValueIs(ctx, loc, want)
}

func WaitVisible(ctx context.Context, loc schemas.Locator) error {
	c, err := Current()
	if err != nil {
		return err
	}
	return c.Actions.WaitVisible(ctx, loc)
}

func SwitchToWindow(ctx context.Context, handle string) error {
	c, err := Current()
	if err != nil {
		return err
	}
	return c.Actions.SwitchToWindow(ctx, handle)
}

func FillForm(ctx context.Context, groups ...formfill.Group) error {
	c, err := Current()
	if err != nil {
		return err
	}
	return c.Forms.Fill(ctx, groups...)
}

func DrainLogsUntil(ctx context.Context, logType schemas.LogType, assert logdrain.Assertion) (*logdrain.Accumulator, error) {
	c, err := Current()
	if err != nil {
		return nil, err
	}
	return c.Logs.RetryUntil(ctx, logType, assert)
}
