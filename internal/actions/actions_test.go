package actions

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/stakeout/api/schemas"
	"github.com/xkilldash9x/stakeout/internal/driver/drivertest"
	"github.com/xkilldash9x/stakeout/internal/retry"
)

func fastCfg() retry.Config {
	return retry.Config{Timeout: 100 * time.Millisecond, Interval: 5 * time.Millisecond}
}

func driverWith(el schemas.Element) *drivertest.FakeDriver {
	return &drivertest.FakeDriver{
		FindElementFunc: func(ctx context.Context, strategy schemas.Strategy, value string) (schemas.Element, error) {
			return el, nil
		},
		ExecuteScriptFunc: func(ctx context.Context, src string, args []any) (any, error) {
			return true, nil
		},
	}
}

func TestClickScrollsBeforeClicking(t *testing.T) {
	el := &drivertest.FakeElement{}
	var scripts []string
	d := driverWith(el)
	d.ExecuteScriptFunc = func(ctx context.Context, src string, args []any) (any, error) {
		scripts = append(scripts, src)
		return true, nil
	}

	a := New(d, fastCfg())
	require.NoError(t, a.Click(context.Background(), schemas.CSS("#go")))

	assert.Equal(t, 1, el.Clicks)
	require.NotEmpty(t, scripts)
	assert.Contains(t, scripts[0], "scrollIntoView")
}

func TestClickWithoutScrollSkipsScripts(t *testing.T) {
	el := &drivertest.FakeElement{}
	d := driverWith(el)
	d.ExecuteScriptFunc = func(ctx context.Context, src string, args []any) (any, error) {
		t.Fatal("no script expected when scrolling is disabled")
		return nil, nil
	}

	a := New(d, fastCfg())
	require.NoError(t, a.Click(context.Background(), schemas.CSS("#go"), WithoutScroll()))
	assert.Equal(t, 1, el.Clicks)
}

func TestClickRetriesUntilElementAppears(t *testing.T) {
	el := &drivertest.FakeElement{}
	var calls atomic.Int32
	d := driverWith(el)
	d.FindElementFunc = func(ctx context.Context, strategy schemas.Strategy, value string) (schemas.Element, error) {
		if calls.Add(1) < 3 {
			return nil, schemas.NewDriverError(schemas.KindNotFound, "find element", value, nil)
		}
		return el, nil
	}

	a := New(d, fastCfg())
	require.NoError(t, a.Click(context.Background(), schemas.ID("late")))
	assert.Equal(t, 1, el.Clicks)
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}

func TestClickOnHiddenElementReportsNotInteractable(t *testing.T) {
	el := &drivertest.FakeElement{
		DisplayedFunc: func(ctx context.Context) (bool, error) { return false, nil },
	}
	a := New(driverWith(el), retry.Config{Timeout: 30 * time.Millisecond, Interval: 5 * time.Millisecond})

	err := a.Click(context.Background(), schemas.CSS(".hidden"))
	require.Error(t, err)
	assert.Equal(t, schemas.KindNotInteractable, schemas.KindOf(err))
	assert.Equal(t, 0, el.Clicks)
}

func TestSendKeysEmptyPayloadIsANoOp(t *testing.T) {
	d := &drivertest.FakeDriver{
		FindElementFunc: func(ctx context.Context, strategy schemas.Strategy, value string) (schemas.Element, error) {
			t.Fatal("empty send-keys must not touch the driver")
			return nil, nil
		},
	}
	a := New(d, fastCfg())
	require.NoError(t, a.SendKeys(context.Background(), schemas.Name("q"), ""))
}

func TestSendKeysWaitsForElement(t *testing.T) {
	el := &drivertest.FakeElement{}
	var calls atomic.Int32
	d := driverWith(el)
	d.FindElementFunc = func(ctx context.Context, strategy schemas.Strategy, value string) (schemas.Element, error) {
		if calls.Add(1) < 2 {
			return nil, schemas.NewDriverError(schemas.KindNotFound, "find element", value, nil)
		}
		return el, nil
	}

	a := New(d, fastCfg())
	require.NoError(t, a.SendKeys(context.Background(), schemas.Name("q"), "hello"))
	assert.Equal(t, []string{"hello"}, el.SentKeys())
}

func TestAttributeNormalizesBooleanAttributes(t *testing.T) {
	el := &drivertest.FakeElement{
		AttributeFunc: func(ctx context.Context, name string) (string, error) {
			if name == "checked" {
				return "true", nil
			}
			return "", nil
		},
	}
	a := New(driverWith(el), fastCfg())

	got, err := a.Attribute(context.Background(), schemas.ID("opt"), "checked")
	require.NoError(t, err)
	assert.Equal(t, "checked", got, "present boolean attribute reads as its own name")

	got, err = a.Attribute(context.Background(), schemas.ID("opt"), "disabled")
	require.NoError(t, err)
	assert.Equal(t, "", got, "absent boolean attribute reads as empty")
}

func TestAttributeTreatsNonTrueBooleanValuesAsAbsent(t *testing.T) {
	raw := map[string]string{"checked": "false", "disabled": "disabled", "required": "yes"}
	el := &drivertest.FakeElement{
		AttributeFunc: func(ctx context.Context, name string) (string, error) {
			return raw[name], nil
		},
	}
	a := New(driverWith(el), fastCfg())

	for name := range raw {
		got, err := a.Attribute(context.Background(), schemas.ID("opt"), name)
		require.NoError(t, err)
		assert.Equal(t, "", got, "raw %q on %s should read as absence", raw[name], name)
	}
}

func TestAttributePassesOrdinaryValuesThrough(t *testing.T) {
	el := &drivertest.FakeElement{
		AttributeFunc: func(ctx context.Context, name string) (string, error) {
			return "true", nil
		},
	}
	a := New(driverWith(el), fastCfg())

	got, err := a.Attribute(context.Background(), schemas.ID("opt"), "data-ready")
	require.NoError(t, err)
	assert.Equal(t, "true", got, "non-boolean attributes are not rewritten")
}

func TestTextSoftReadSwallowsMissingElement(t *testing.T) {
	d := &drivertest.FakeDriver{} // default find reports not-found
	a := New(d, retry.Config{Timeout: 20 * time.Millisecond, Interval: 5 * time.Millisecond})

	got, err := a.Text(context.Background(), schemas.CSS("#nope"))
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestTextSoftReadPropagatesFatalFailures(t *testing.T) {
	d := &drivertest.FakeDriver{
		FindElementFunc: func(ctx context.Context, strategy schemas.Strategy, value string) (schemas.Element, error) {
			return nil, schemas.NewDriverError(schemas.KindUnknown, "find element", value, nil)
		},
	}
	a := New(d, fastCfg())

	_, err := a.Text(context.Background(), schemas.CSS("#x"))
	require.Error(t, err)
}

func TestTextIsComparesCaseInsensitively(t *testing.T) {
	el := &drivertest.FakeElement{
		TextFunc: func(ctx context.Context) (string, error) { return "Hello", nil },
	}
	a := New(driverWith(el), fastCfg())

	assert.True(t, a.TextIs(context.Background(), schemas.ID("msg"), "HELLO"))
}

func TestTextIsFalseOnlyAfterFullBudget(t *testing.T) {
	el := &drivertest.FakeElement{
		TextFunc: func(ctx context.Context) (string, error) { return "Hello", nil },
	}
	timeout := 40 * time.Millisecond
	a := New(driverWith(el), retry.Config{Timeout: timeout, Interval: 5 * time.Millisecond})

	start := time.Now()
	ok := a.TextIs(context.Background(), schemas.ID("msg"), "Goodbye")
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), timeout, "mismatch keeps polling for the text to change")
}

func TestContainsTextIgnoresCase(t *testing.T) {
	el := &drivertest.FakeElement{
		TextFunc: func(ctx context.Context) (string, error) { return "Welcome back, Admin", nil },
	}
	a := New(driverWith(el), fastCfg())

	assert.True(t, a.ContainsText(context.Background(), schemas.Tag("h1"), "ADMIN"))
	assert.False(t, New(driverWith(el), retry.Config{Timeout: 20 * time.Millisecond}).
		ContainsText(context.Background(), schemas.Tag("h1"), "guest"))
}

func TestValueIsReadsTheValueAttribute(t *testing.T) {
	el := &drivertest.FakeElement{
		AttributeFunc: func(ctx context.Context, name string) (string, error) {
			require.Equal(t, "value", name)
			return "abc", nil
		},
	}
	a := New(driverWith(el), fastCfg())
	assert.True(t, a.ValueIs(context.Background(), schemas.Name("f"), "ABC"))
}

func TestSwitchToWindowWaitsForHandle(t *testing.T) {
	var polls atomic.Int32
	d := &drivertest.FakeDriver{
		WindowHandlesFunc: func(ctx context.Context) ([]string, error) {
			if polls.Add(1) < 3 {
				return []string{"main"}, nil
			}
			return []string{"main", "popup"}, nil
		},
	}
	a := New(d, fastCfg())

	require.NoError(t, a.SwitchToWindow(context.Background(), "popup"))
	assert.Equal(t, []string{"popup"}, d.SwitchedTo)
	assert.GreaterOrEqual(t, polls.Load(), int32(3))
}

func TestSwitchToWindowTimesOutOnMissingHandle(t *testing.T) {
	d := &drivertest.FakeDriver{} // only "main" exists
	a := New(d, retry.Config{Timeout: 20 * time.Millisecond, Interval: 5 * time.Millisecond})

	err := a.SwitchToWindow(context.Background(), "popup")
	require.Error(t, err)
	assert.Empty(t, d.SwitchedTo)
}

func TestSelectByValueDispatchesChangeEvent(t *testing.T) {
	el := &drivertest.FakeElement{}
	var src string
	var gotArgs []any
	d := driverWith(el)
	d.ExecuteScriptFunc = func(ctx context.Context, s string, args []any) (any, error) {
		src = s
		gotArgs = args
		return nil, nil
	}
	a := New(d, fastCfg())

	require.NoError(t, a.SelectByValue(context.Background(), schemas.ID("country"), "NL"))
	assert.True(t, strings.Contains(src, "dispatchEvent"))
	require.Len(t, gotArgs, 2)
	assert.Equal(t, "NL", gotArgs[1])
}

func TestScrollIntoViewTreatsScriptErrorAsNotYet(t *testing.T) {
	el := &drivertest.FakeElement{}
	var calls atomic.Int32
	d := driverWith(el)
	d.ExecuteScriptFunc = func(ctx context.Context, src string, args []any) (any, error) {
		if calls.Add(1) < 3 {
			return nil, schemas.NewDriverError(schemas.KindScriptError, "execute script", "", nil)
		}
		return true, nil
	}
	a := New(d, fastCfg())

	require.NoError(t, a.ScrollIntoView(context.Background(), schemas.ID("deep")))
}

func TestWaitVisiblePollsDisplayedState(t *testing.T) {
	var checks atomic.Int32
	el := &drivertest.FakeElement{
		DisplayedFunc: func(ctx context.Context) (bool, error) {
			return checks.Add(1) >= 2, nil
		},
	}
	a := New(driverWith(el), fastCfg())

	require.NoError(t, a.WaitVisible(context.Background(), schemas.CSS(".modal")))
	assert.GreaterOrEqual(t, checks.Load(), int32(2))
}
