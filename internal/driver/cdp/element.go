package cdp

import (
	"context"
	"fmt"

	cdpcore "github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/stakeout/api/schemas"
)

// element references a DOM node by id. Node ids die with the node, so a
// removed or re-rendered element reports stale on its next use.
type element struct {
	d    *Driver
	id   cdpcore.NodeID
	desc string
}

var _ schemas.Element = (*element)(nil)

// callOnNode resolves the node to a remote object and invokes fnDecl with
// the node as `this`. Args are JSON-encoded into call arguments; the
// by-value result is decoded into a plain Go value.
func (e *element) callOnNode(ctx context.Context, op, fnDecl string, args ...any) (any, error) {
	var raw []byte
	err := e.d.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithNodeID(e.id).Do(ctx)
		if err != nil {
			return err
		}
		callArgs := make([]*runtime.CallArgument, 0, len(args))
		for _, a := range args {
			v, err := json.Marshal(a)
			if err != nil {
				return fmt.Errorf("encoding call argument: %w", err)
			}
			callArgs = append(callArgs, &runtime.CallArgument{Value: v})
		}
		res, exc, err := runtime.CallFunctionOn(fnDecl).
			WithObjectID(obj.ObjectID).
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
		return nil, mapErr(op, e.desc, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, schemas.NewDriverError(schemas.KindScriptError, op, e.desc,
			fmt.Errorf("decoding result: %w", err))
	}
	return out, nil
}

func (e *element) callString(ctx context.Context, op, fnDecl string, args ...any) (string, error) {
	res, err := e.callOnNode(ctx, op, fnDecl, args...)
	if err != nil {
		return "", err
	}
	if res == nil {
		return "", nil
	}
	s, ok := res.(string)
	if !ok {
		return "", schemas.NewDriverError(schemas.KindScriptError, op, e.desc,
			fmt.Errorf("expected string result, got %T", res))
	}
	return s, nil
}

func (e *element) callBool(ctx context.Context, op, fnDecl string) (bool, error) {
	res, err := e.callOnNode(ctx, op, fnDecl)
	if err != nil {
		return false, err
	}
	b, _ := res.(bool)
	return b, nil
}

func (e *element) Click(ctx context.Context) error {
	err := e.d.run(ctx, chromedp.Click([]cdpcore.NodeID{e.id}, chromedp.ByNodeID))
	return mapErr("click", e.desc, err)
}

func (e *element) Text(ctx context.Context) (string, error) {
	return e.callString(ctx, "text",
		`function() { return this.innerText !== undefined ? this.innerText : this.textContent; }`)
}

// Attribute mimics the W3C getAttribute behavior: boolean properties
// backed by an absent-or-empty attribute read as "true" when set, null
// when unset.
func (e *element) Attribute(ctx context.Context, name string) (string, error) {
	return e.callString(ctx, "attribute "+name, `function(name) {
		var v = this.getAttribute(name);
		if (typeof this[name] === 'boolean' && (v === null || v === '')) {
			return this[name] ? 'true' : null;
		}
		return v;
	}`, name)
}

func (e *element) TagName(ctx context.Context) (string, error) {
	return e.callString(ctx, "tag name", `function() { return this.tagName.toLowerCase(); }`)
}

func (e *element) Displayed(ctx context.Context) (bool, error) {
	return e.callBool(ctx, "displayed", `function() {
		var r = this.getBoundingClientRect();
		var s = window.getComputedStyle(this);
		return r.width > 0 && r.height > 0 && s.visibility !== 'hidden' && s.display !== 'none';
	}`)
}

func (e *element) Selected(ctx context.Context) (bool, error) {
	return e.callBool(ctx, "selected",
		`function() { return this.tagName === 'OPTION' ? !!this.selected : !!this.checked; }`)
}

func (e *element) Enabled(ctx context.Context) (bool, error) {
	return e.callBool(ctx, "enabled", `function() { return !this.disabled; }`)
}

func (e *element) SendKeys(ctx context.Context, keys string) error {
	err := e.d.run(ctx, chromedp.SendKeys([]cdpcore.NodeID{e.id}, keys, chromedp.ByNodeID))
	return mapErr("send keys", e.desc, err)
}
