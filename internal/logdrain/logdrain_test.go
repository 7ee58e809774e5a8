package logdrain

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/stakeout/api/schemas"
	"github.com/xkilldash9x/stakeout/internal/driver/drivertest"
)

func entry(msg string) schemas.LogEntry {
	return schemas.LogEntry{Timestamp: time.Now(), Level: "INFO", Message: msg}
}

// batchedLogs fakes a destructive log endpoint: each call hands out the
// next batch exactly once.
func batchedLogs(batches ...[]schemas.LogEntry) *drivertest.FakeDriver {
	var n atomic.Int32
	return &drivertest.FakeDriver{
		LogsFunc: func(ctx context.Context, logType schemas.LogType) ([]schemas.LogEntry, error) {
			i := int(n.Add(1)) - 1
			if i < len(batches) {
				return batches[i], nil
			}
			return nil, nil
		},
	}
}

func fastCfg() Config {
	return Config{Timeout: 200 * time.Millisecond, Interval: 5 * time.Millisecond}
}

func TestRetryUntilFindsMessageInLaterDrain(t *testing.T) {
	d := batchedLogs(
		[]schemas.LogEntry{entry("request started")},
		nil,
		[]schemas.LogEntry{entry("request FINISHED")},
	)
	dr := New(d, fastCfg())

	acc, err := dr.RetryUntil(context.Background(), schemas.LogPerformance, ContainsMessage("finished"))
	require.NoError(t, err)
	assert.Equal(t, 2, acc.Len(), "earlier batches survive the later drains")
}

func TestRetryUntilAccumulatesAcrossDrains(t *testing.T) {
	// The assertion needs entries from two different drains; neither batch
	// alone is enough. This is the whole point of accumulating.
	d := batchedLogs(
		[]schemas.LogEntry{entry("part-one")},
		[]schemas.LogEntry{entry("part-two")},
	)
	dr := New(d, fastCfg())

	acc, err := dr.RetryUntil(context.Background(), schemas.LogBrowser, func(entries []schemas.LogEntry) error {
		var one, two bool
		for _, e := range entries {
			one = one || e.Message == "part-one"
			two = two || e.Message == "part-two"
		}
		if one && two {
			return nil
		}
		return fmt.Errorf("still waiting: one=%v two=%v", one, two)
	})
	require.NoError(t, err)
	assert.Equal(t, 2, acc.Len())
}

func TestRetryUntilTimeoutWrapsLastAssertionError(t *testing.T) {
	d := batchedLogs([]schemas.LogEntry{entry("noise")})
	dr := New(d, Config{Timeout: 30 * time.Millisecond, Interval: 5 * time.Millisecond})

	acc, err := dr.RetryUntil(context.Background(), schemas.LogBrowser, ContainsMessage("signal"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "drains")
	assert.Contains(t, err.Error(), `"signal"`)
	assert.Equal(t, 1, acc.Len(), "drained entries are still available after a timeout")
}

func TestRetryUntilDriverErrorAborts(t *testing.T) {
	boom := errors.New("session closed")
	var calls atomic.Int32
	d := &drivertest.FakeDriver{
		LogsFunc: func(ctx context.Context, logType schemas.LogType) ([]schemas.LogEntry, error) {
			calls.Add(1)
			return nil, boom
		},
	}
	dr := New(d, fastCfg())

	_, err := dr.RetryUntil(context.Background(), schemas.LogPerformance, ContainsMessage("x"))
	require.ErrorIs(t, err, boom)
	assert.Equal(t, int32(1), calls.Load(), "no retry on driver failure")
}

func TestRetryUntilHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	d := batchedLogs()
	dr := New(d, Config{Timeout: time.Minute, Interval: 10 * time.Millisecond})

	go func() {
		time.Sleep(25 * time.Millisecond)
		cancel()
	}()

	_, err := dr.RetryUntil(ctx, schemas.LogBrowser, ContainsMessage("never"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestAccumulatorEntriesReturnsACopy(t *testing.T) {
	acc := &Accumulator{}
	acc.add([]schemas.LogEntry{entry("a")})

	got := acc.Entries()
	got[0].Message = "mutated"
	assert.Equal(t, "a", acc.Entries()[0].Message)
}
