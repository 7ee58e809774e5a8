package cdp

import (
	"context"
)

// combineContext derives a context from tabCtx (which carries the CDP
// target values chromedp needs) that is additionally canceled when opCtx
// is. chromedp requires its own context chain, so the caller's deadline
// cannot simply be passed through.
func combineContext(tabCtx, opCtx context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(tabCtx)
	go func() {
		select {
		case <-opCtx.Done():
			cancel()
		case <-combined.Done():
		}
	}()
	return combined, cancel
}
