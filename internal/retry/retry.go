// Package retry implements the bounded-time polling loop at the heart of
// stakeout: evaluate a probe repeatedly until it succeeds, the failure is
// fatal, or the time budget runs out.
//
// A single user-visible action usually needs several driver calls (locate,
// check visibility, click), each of which can transiently fail for
// unrelated timing reasons. Retrying each call with its own deadline would
// multiply timeouts, so the engine enforces at-most-one active deadline
// clock per logical call chain: a nested invocation inside an active scope
// evaluates its probe exactly once and converts a retryable failure into a
// force-retry signal for the outer loop.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/stakeout/api/schemas"
)

// DefaultTimeout bounds a polling call when the config carries no timeout.
const DefaultTimeout = 30 * time.Second

// ErrConditionNotMet is the retryable "not yet" signal produced when an
// Until predicate returns false. It surfaces to the caller only when the
// budget is exhausted and the final attempt still reports false.
var ErrConditionNotMet = errors.New("condition not met")

// ErrForceRetry marks a failure raised by a nested polling call inside an
// active retry scope. The outer loop always treats it as retryable; the
// inner call never opens its own deadline clock.
var ErrForceRetry = errors.New("nested wait not satisfied")

// forceRetryError wraps the probe's original failure so the eventual final
// attempt (and any logging) still sees the real kind.
type forceRetryError struct {
	err error
}

func (e *forceRetryError) Error() string {
	return fmt.Sprintf("%v: %v", ErrForceRetry, e.err)
}

func (e *forceRetryError) Is(target error) bool { return target == ErrForceRetry }

func (e *forceRetryError) Unwrap() error { return e.err }

// scopeState tracks where in a retry call chain an invocation sits. It is
// carried on the context, which makes the nesting guard per-call-chain and
// goroutine-safe without any process-global state.
type scopeState int8

const (
	scopeNone scopeState = iota
	// scopeActive: a polling loop is already running above us.
	scopeActive
	// scopeSuppress: the outer loop is making its final honest attempt;
	// nested calls evaluate single-shot and surface their natural error.
	scopeSuppress
)

type scopeKey struct{}

func scopeFrom(ctx context.Context) scopeState {
	if s, ok := ctx.Value(scopeKey{}).(scopeState); ok {
		return s
	}
	return scopeNone
}

func withScope(ctx context.Context, s scopeState) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// Config tunes one polling call.
type Config struct {
	// Timeout is the total budget. Zero or negative means DefaultTimeout.
	Timeout time.Duration
	// Interval is the pause between polls. Zero (the default) re-polls
	// immediately, leaning on the driver's implicit element wait.
	Interval time.Duration
	// Retryable is the allow-list of failure kinds treated as "not yet
	// ready". Nil means DefaultRetryable(). Anything outside the list is
	// fatal and propagates on first occurrence.
	Retryable map[schemas.FailureKind]bool
	// Logger receives poll-boundary narration at debug level.
	Logger *zap.Logger
}

// DefaultRetryable returns the stock allow-list: failures that mean the
// page has not settled yet, not that the test is wrong.
func DefaultRetryable() map[schemas.FailureKind]bool {
	return map[schemas.FailureKind]bool{
		schemas.KindNotFound:         true,
		schemas.KindStale:            true,
		schemas.KindNotInteractable:  true,
		schemas.KindClickIntercepted: true,
		schemas.KindTimeout:          true,
	}
}

func (c Config) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

func (c Config) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return zap.NewNop()
}

func (c Config) retryable() map[schemas.FailureKind]bool {
	if c.Retryable != nil {
		return c.Retryable
	}
	return DefaultRetryable()
}

func isRetryable(err error, allow map[schemas.FailureKind]bool) bool {
	if errors.Is(err, ErrForceRetry) || errors.Is(err, ErrConditionNotMet) {
		return true
	}
	return allow[schemas.KindOf(err)]
}

// Do evaluates fn until it succeeds (nil error), fails fatally, or the
// budget is exhausted. On exhaustion fn runs one final time with nested
// suppression engaged, and whatever that attempt produces - value or the
// probe's own classified error - is returned. The caller therefore sees
// the precise failure kind, never a generic "gave up".
func Do[T any](ctx context.Context, cfg Config, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	log := cfg.logger()
	allow := cfg.retryable()

	switch scopeFrom(ctx) {
	case scopeSuppress:
		// Final attempt of an enclosing loop: single shot, natural error.
		return fn(ctx)
	case scopeActive:
		// An outer loop owns the deadline clock. Evaluate once; a
		// retryable failure becomes a force-retry for that loop.
		v, err := fn(ctx)
		if err != nil && isRetryable(err, allow) {
			log.Debug("nested wait deferring to outer deadline",
				zap.String("op", op), zap.String("kind", string(schemas.KindOf(err))))
			return zero, &forceRetryError{err: err}
		}
		return v, err
	}

	start := time.Now()
	timeout := cfg.timeout()
	polling := withScope(ctx, scopeActive)

	for attempt := 1; ; attempt++ {
		v, err := fn(polling)
		if err == nil {
			if attempt > 1 {
				log.Debug("probe succeeded after retries",
					zap.String("op", op), zap.Int("attempt", attempt),
					zap.Duration("elapsed", time.Since(start)))
			}
			return v, nil
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if !isRetryable(err, allow) {
			// Fatal: retrying a genuine bug only burns the budget and
			// obscures the root cause.
			return zero, err
		}

		elapsed := time.Since(start)
		if elapsed >= timeout {
			log.Debug("retry budget exhausted, making final attempt",
				zap.String("op", op), zap.Int("attempts", attempt),
				zap.Duration("elapsed", elapsed))
			return fn(withScope(ctx, scopeSuppress))
		}

		log.Debug("probe not ready, polling",
			zap.String("op", op), zap.Int("attempt", attempt),
			zap.String("kind", string(schemas.KindOf(err))),
			zap.Duration("elapsed", elapsed))

		if cfg.Interval > 0 {
			select {
			case <-time.After(cfg.Interval):
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}
	}
}

// Until polls a boolean predicate. A false result is the retryable
// ErrConditionNotMet; a nil return means the predicate reported true
// within the budget.
func Until(ctx context.Context, cfg Config, op string, pred func(context.Context) (bool, error)) error {
	_, err := Do(ctx, cfg, op, func(ctx context.Context) (struct{}, error) {
		ok, err := pred(ctx)
		if err != nil {
			return struct{}{}, err
		}
		if !ok {
			return struct{}{}, ErrConditionNotMet
		}
		return struct{}{}, nil
	})
	return err
}
