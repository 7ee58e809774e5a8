// Package cdp adapts a locally launched Chrome (via chromedp) to the
// schemas.Driver contract. Elements are tracked by DOM node id; a node
// that disappears between calls surfaces as a stale-element failure, the
// same way a remote WebDriver session reports it.
package cdp

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	cdpcore "github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/stakeout/api/schemas"
	"github.com/xkilldash9x/stakeout/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Driver drives one Chrome process over CDP.
type Driver struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc

	mu      sync.Mutex
	tabCtx  context.Context
	cancels []context.CancelFunc

	implicitMu   sync.Mutex
	implicitWait time.Duration

	logs *logBuffers
	log  *zap.Logger
}

var _ schemas.Driver = (*Driver)(nil)

// Launch starts a Chrome instance and opens the initial tab. Network
// events start flowing into the performance log buffer immediately.
func Launch(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Driver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts, chromedp.Flag("headless", cfg.Headless))
	if cfg.IgnoreTLSErrors {
		opts = append(opts, chromedp.Flag("ignore-certificate-errors", true))
	}
	for _, arg := range cfg.Args {
		name, value, found := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		if found {
			opts = append(opts, chromedp.Flag(name, value))
		} else {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	d := &Driver{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		tabCtx:      tabCtx,
		cancels:     []context.CancelFunc{tabCancel},
		logs:        newLogBuffers(),
		log:         logger.Named("cdp"),
	}
	d.listen(tabCtx)

	if err := chromedp.Run(tabCtx, network.Enable()); err != nil {
		allocCancel()
		return nil, fmt.Errorf("launching browser: %w", err)
	}
	d.log.Info("browser launched", zap.Bool("headless", cfg.Headless))
	return d, nil
}

// tab returns the context of the currently active tab.
func (d *Driver) tab() context.Context {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tabCtx
}

// run executes chromedp actions against the active tab under the caller's
// deadline.
func (d *Driver) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	opCtx, cancel := combineContext(d.tab(), ctx)
	defer cancel()
	return chromedp.Run(opCtx, actions...)
}

// mapErr classifies a chromedp failure.
func mapErr(op, selector string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	kind := schemas.KindUnknown
	var exc *runtime.ExceptionDetails
	switch {
	case errors.As(err, &exc):
		kind = schemas.KindScriptError
	case errors.Is(err, context.DeadlineExceeded):
		kind = schemas.KindTimeout
	// CDP error -32000 ("Could not find node with given id") means the
	// node id no longer resolves: the element went stale.
	case strings.Contains(err.Error(), "Could not find node"),
		strings.Contains(err.Error(), "-32000"):
		kind = schemas.KindStale
	}
	return schemas.NewDriverError(kind, op, selector, err)
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	d.log.Debug("navigating", zap.String("url", url))
	return mapErr("navigate", url, d.run(ctx, chromedp.Navigate(url)))
}

func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	var u string
	err := d.run(ctx, chromedp.Location(&u))
	return u, mapErr("current url", "", err)
}

func (d *Driver) Refresh(ctx context.Context) error {
	return mapErr("refresh", "", d.run(ctx, chromedp.Reload()))
}

// translate converts a locator strategy into a chromedp selector and
// query option. Strategies with no CSS equivalent go through DOM search,
// which accepts XPath.
func translate(strategy schemas.Strategy, value string) (string, chromedp.QueryOption, error) {
	switch strategy {
	case schemas.ByCSS:
		return value, chromedp.ByQueryAll, nil
	case schemas.ByID:
		return fmt.Sprintf("[id=%s]", strconv.Quote(value)), chromedp.ByQueryAll, nil
	case schemas.ByName:
		return fmt.Sprintf("[name=%s]", strconv.Quote(value)), chromedp.ByQueryAll, nil
	case schemas.ByClass:
		return fmt.Sprintf("[class~=%s]", strconv.Quote(value)), chromedp.ByQueryAll, nil
	case schemas.ByTag:
		return value, chromedp.ByQueryAll, nil
	case schemas.ByXPath:
		return value, chromedp.BySearch, nil
	case schemas.ByLinkText:
		return fmt.Sprintf(`//a[normalize-space(.)=%s]`, strconv.Quote(value)), chromedp.BySearch, nil
	case schemas.ByPartialLinkText:
		return fmt.Sprintf(`//a[contains(., %s)]`, strconv.Quote(value)), chromedp.BySearch, nil
	default:
		return "", nil, fmt.Errorf("unsupported locator strategy %q", strategy)
	}
}

func (d *Driver) implicit() time.Duration {
	d.implicitMu.Lock()
	defer d.implicitMu.Unlock()
	return d.implicitWait
}

// findNodes queries matching nodes, re-polling until the implicit wait
// window closes. AtLeast(0) keeps chromedp from blocking forever on an
// empty result.
func (d *Driver) findNodes(ctx context.Context, strategy schemas.Strategy, value string) ([]*cdpcore.Node, error) {
	sel, opt, err := translate(strategy, value)
	if err != nil {
		return nil, schemas.NewDriverError(schemas.KindUnknown, "find element", string(strategy)+"="+value, err)
	}
	desc := fmt.Sprintf("%s=%q", strategy, value)
	deadline := time.Now().Add(d.implicit())
	for {
		var nodes []*cdpcore.Node
		if err := d.run(ctx, chromedp.Nodes(sel, &nodes, opt, chromedp.AtLeast(0))); err != nil {
			return nil, mapErr("find element", desc, err)
		}
		if len(nodes) > 0 {
			return nodes, nil
		}
		if time.Now().After(deadline) {
			return nil, schemas.NewDriverError(schemas.KindNotFound, "find element", desc, nil)
		}
		select {
		case <-time.After(50 * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (d *Driver) FindElement(ctx context.Context, strategy schemas.Strategy, value string) (schemas.Element, error) {
	nodes, err := d.findNodes(ctx, strategy, value)
	if err != nil {
		return nil, err
	}
	return &element{d: d, id: nodes[0].NodeID, desc: fmt.Sprintf("%s=%q", strategy, value)}, nil
}

func (d *Driver) FindElements(ctx context.Context, strategy schemas.Strategy, value string) ([]schemas.Element, error) {
	nodes, err := d.findNodes(ctx, strategy, value)
	if err != nil {
		// An empty result is a successful empty slice here; only the
		// single-element lookup promises not-found.
		var de *schemas.DriverError
		if errors.As(err, &de) && de.Kind == schemas.KindNotFound {
			return nil, nil
		}
		return nil, err
	}
	desc := fmt.Sprintf("%s=%q", strategy, value)
	out := make([]schemas.Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &element{d: d, id: n.NodeID, desc: desc})
	}
	return out, nil
}

// elementArgs returns the positions of node-backed element arguments.
// Element implementations from another driver carry no node id here and
// are rejected.
func elementArgs(args []any) (map[int]*element, error) {
	var els map[int]*element
	for i, a := range args {
		switch v := a.(type) {
		case *element:
			if els == nil {
				els = make(map[int]*element)
			}
			els[i] = v
		case schemas.Element:
			return nil, schemas.NewDriverError(schemas.KindScriptError, "execute script", "",
				fmt.Errorf("element argument %d was not produced by this driver", i))
		}
	}
	return els, nil
}

// ExecuteScript runs src with WebDriver semantics: the body may use
// `arguments` and `return`. Plain values travel by JSON through
// Runtime.evaluate; element arguments force the Runtime.callFunctionOn
// path so their nodes can be passed by remote object id.
func (d *Driver) ExecuteScript(ctx context.Context, src string, args []any) (any, error) {
	els, err := elementArgs(args)
	if err != nil {
		return nil, err
	}
	if len(els) > 0 {
		return d.callWithElements(ctx, src, args, els)
	}
	if args == nil {
		args = []any{}
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		return nil, schemas.NewDriverError(schemas.KindScriptError, "execute script", "",
			fmt.Errorf("encoding script arguments: %w", err))
	}
	wrapped := fmt.Sprintf("(function(){ %s\n}).apply(null, %s)", src, encoded)

	var raw []byte
	err = d.run(ctx, chromedp.Evaluate(wrapped, &raw,
		func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithReturnByValue(true).WithAwaitPromise(true).WithSilent(true)
		}))
	if err != nil {
		if errors.Is(err, chromedp.ErrJSUndefined) || errors.Is(err, chromedp.ErrJSNull) {
			return nil, nil
		}
		return nil, mapErr("execute script", "", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, schemas.NewDriverError(schemas.KindScriptError, "execute script", "",
			fmt.Errorf("decoding script result: %w", err))
	}
	return out, nil
}

// callWithElements invokes src through Runtime.callFunctionOn. Each element
// argument's node is resolved to a remote object and passed by ObjectID;
// everything else travels by value. The first resolved object anchors the
// call's execution context.
func (d *Driver) callWithElements(ctx context.Context, src string, args []any, els map[int]*element) (any, error) {
	fnDecl := fmt.Sprintf("function(){ %s\n}", src)
	var raw []byte
	err := d.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var anchor runtime.RemoteObjectID
		callArgs := make([]*runtime.CallArgument, 0, len(args))
		for i, a := range args {
			if el, ok := els[i]; ok {
				obj, err := dom.ResolveNode().WithNodeID(el.id).Do(ctx)
				if err != nil {
					return err
				}
				callArgs = append(callArgs, &runtime.CallArgument{ObjectID: obj.ObjectID})
				if anchor == "" {
					anchor = obj.ObjectID
				}
				continue
			}
			v, err := json.Marshal(a)
			if err != nil {
				return fmt.Errorf("encoding script argument: %w", err)
			}
			callArgs = append(callArgs, &runtime.CallArgument{Value: v})
		}
		res, exc, err := runtime.CallFunctionOn(fnDecl).
			WithObjectID(anchor).
			WithArguments(callArgs).
			WithReturnByValue(true).
			WithSilent(true).
			Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		if res != nil && len(res.Value) > 0 {
			raw = res.Value
		}
		return nil
	}))
	if err != nil {
		return nil, mapErr("execute script", "", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, schemas.NewDriverError(schemas.KindScriptError, "execute script", "",
			fmt.Errorf("decoding script result: %w", err))
	}
	return out, nil
}

func (d *Driver) WindowHandles(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	infos, err := chromedp.Targets(d.tab())
	if err != nil {
		return nil, mapErr("window handles", "", err)
	}
	var out []string
	for _, t := range infos {
		if t.Type == "page" {
			out = append(out, string(t.TargetID))
		}
	}
	return out, nil
}

func (d *Driver) ActiveWindowHandle(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c := chromedp.FromContext(d.tab())
	if c == nil || c.Target == nil {
		return "", schemas.NewDriverError(schemas.KindUnknown, "active window handle", "",
			errors.New("no attached target"))
	}
	return string(c.Target.TargetID), nil
}

// SwitchToWindow attaches a fresh chromedp context to the target. The
// previous tab context stays alive (its cancel is retained for Quit) so
// switching back later still works.
func (d *Driver) SwitchToWindow(ctx context.Context, handle string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	newCtx, cancel := chromedp.NewContext(d.allocCtx, chromedp.WithTargetID(target.ID(handle)))
	// An empty Run attaches to the target.
	if err := chromedp.Run(newCtx); err != nil {
		cancel()
		return mapErr("switch to window", handle, err)
	}
	d.listen(newCtx)
	if err := chromedp.Run(newCtx, network.Enable()); err != nil {
		cancel()
		return mapErr("switch to window", handle, err)
	}

	d.mu.Lock()
	d.tabCtx = newCtx
	d.cancels = append(d.cancels, cancel)
	d.mu.Unlock()
	d.log.Debug("switched window", zap.String("target", handle))
	return nil
}

// SwitchToFrame is not supported on this adapter: chromedp scopes a
// context to one target and cross-frame node queries need frame-aware
// sessions. Use the seleniumwd driver when frame switching is required.
func (d *Driver) SwitchToFrame(ctx context.Context, frame schemas.Element) error {
	return schemas.NewDriverError(schemas.KindUnknown, "switch to frame", "",
		errors.New("frame switching not supported by the cdp adapter"))
}

func (d *Driver) SwitchToDefaultFrame(ctx context.Context) error {
	return nil
}

func (d *Driver) Logs(ctx context.Context, logType schemas.LogType) ([]schemas.LogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return d.logs.drain(logType), nil
}

// SetImplicitWait sets how long element lookups keep re-querying before
// reporting not-found.
func (d *Driver) SetImplicitWait(ctx context.Context, timeout time.Duration) error {
	d.implicitMu.Lock()
	d.implicitWait = timeout
	d.implicitMu.Unlock()
	return nil
}

func (d *Driver) DeleteAllCookies(ctx context.Context) error {
	return mapErr("delete cookies", "", d.run(ctx, network.ClearBrowserCookies()))
}

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
	return mapErr("set window size", "",
		d.run(ctx, chromedp.EmulateViewport(int64(width), int64(height))))
}

func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := d.run(ctx, chromedp.CaptureScreenshot(&buf))
	return buf, mapErr("screenshot", "", err)
}

// Quit tears down every tab context and the browser process.
func (d *Driver) Quit(ctx context.Context) error {
	d.log.Info("closing browser")
	d.mu.Lock()
	cancels := d.cancels
	d.cancels = nil
	d.mu.Unlock()
	for i := len(cancels) - 1; i >= 0; i-- {
		cancels[i]()
	}
	d.allocCancel()
	return nil
}
