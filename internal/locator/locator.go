// Package locator resolves schemas.Locator values against a live driver.
// It is the single choke point between "how to find it" and "a handle to
// it": validation of the locator shape happens here, and a pre-resolved
// handle short-circuits the driver entirely.
package locator

import (
	"context"

	"github.com/xkilldash9x/stakeout/api/schemas"
)

// Resolve finds the single element the locator describes. A handle-backed
// locator returns its handle untouched. A lookup miss is a *DriverError
// with KindNotFound so the retry engine can poll on it.
func Resolve(ctx context.Context, d schemas.Driver, loc schemas.Locator) (schemas.Element, error) {
	if el, ok := loc.Handle(); ok {
		return el, nil
	}
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	el, err := d.FindElement(ctx, loc.Strategy(), loc.Value())
	if err != nil {
		return nil, err
	}
	return el, nil
}

// ResolveAll finds every element the locator matches. A handle-backed
// locator yields a one-element slice. Zero matches is a KindNotFound
// failure, never a successful empty slice, so "none yet" polls the same
// way a single-element miss does.
func ResolveAll(ctx context.Context, d schemas.Driver, loc schemas.Locator) ([]schemas.Element, error) {
	if el, ok := loc.Handle(); ok {
		return []schemas.Element{el}, nil
	}
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	els, err := d.FindElements(ctx, loc.Strategy(), loc.Value())
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, schemas.NewDriverError(schemas.KindNotFound, "find elements", loc.String(), nil)
	}
	return els, nil
}
