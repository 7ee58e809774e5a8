// Package logdrain polls driver-side log buffers that empty on read.
// Because each Logs call destroys what it returns, a naive poll-and-check
// loop would lose every entry that arrived before the one it was waiting
// for. The drainer accumulates across polls and hands assertions the full
// history each time.
package logdrain

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/stakeout/api/schemas"
)

// Accumulator collects drained entries across polls.
type Accumulator struct {
	mu      sync.Mutex
	entries []schemas.LogEntry
}

func (a *Accumulator) add(batch []schemas.LogEntry) {
	a.mu.Lock()
	a.entries = append(a.entries, batch...)
	a.mu.Unlock()
}

// Entries returns a copy of everything drained so far.
func (a *Accumulator) Entries() []schemas.LogEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]schemas.LogEntry, len(a.entries))
	copy(out, a.entries)
	return out
}

// Len reports how many entries have been drained so far.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

// Assertion inspects the accumulated history. A nil return stops the
// drain loop; any other error means "not yet" and keeps it polling.
type Assertion func(entries []schemas.LogEntry) error

// Config tunes a drain loop.
type Config struct {
	// Timeout bounds the whole loop. Zero means DefaultTimeout.
	Timeout time.Duration
	// Interval is the pause between drains.
	Interval time.Duration
	// Logger receives drain narration at debug level.
	Logger *zap.Logger
}

// DefaultTimeout bounds a drain loop when the config has no timeout.
const DefaultTimeout = 30 * time.Second

// DefaultInterval paces the drains; log delivery is bursty, so hammering
// the endpoint buys nothing.
const DefaultInterval = 250 * time.Millisecond

// Drainer runs drain loops against one driver.
type Drainer struct {
	d   schemas.Driver
	cfg Config
	log *zap.Logger
}

// New builds a Drainer over d.
func New(d schemas.Driver, cfg Config) *Drainer {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Drainer{d: d, cfg: cfg, log: log.Named("logdrain")}
}

// RetryUntil drains logType repeatedly, feeding the accumulated history to
// assert after every drain, until assert passes or the budget runs out.
// On timeout the last assertion failure is returned, annotated with how
// much was drained; driver failures abort immediately. The accumulator is
// returned either way so callers can inspect what arrived.
func (dr *Drainer) RetryUntil(ctx context.Context, logType schemas.LogType, assert Assertion) (*Accumulator, error) {
	acc := &Accumulator{}
	timeout := dr.cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	interval := dr.cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	start := time.Now()
	drains := 0
	for {
		batch, err := dr.d.Logs(ctx, logType)
		if err != nil {
			return acc, fmt.Errorf("drain %s logs: %w", logType, err)
		}
		drains++
		acc.add(batch)
		dr.log.Debug("drained log batch",
			zap.String("type", string(logType)),
			zap.Int("batch", len(batch)),
			zap.Int("total", acc.Len()))

		lastErr := assert(acc.Entries())
		if lastErr == nil {
			return acc, nil
		}

		if time.Since(start) >= timeout {
			return acc, fmt.Errorf("log assertion unmet after %d drains (%d entries accumulated): %w",
				drains, acc.Len(), lastErr)
		}
		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return acc, ctx.Err()
		}
	}
}

// ContainsMessage is a ready-made assertion matching any entry whose
// message contains substr.
func ContainsMessage(substr string) Assertion {
	needle := strings.ToLower(substr)
	return func(entries []schemas.LogEntry) error {
		for _, e := range entries {
			if strings.Contains(strings.ToLower(e.Message), needle) {
				return nil
			}
		}
		return fmt.Errorf("no log entry containing %q", substr)
	}
}
