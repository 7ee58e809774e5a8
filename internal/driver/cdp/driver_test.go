package cdp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/stakeout/api/schemas"
)

func TestTranslateStrategies(t *testing.T) {
	tests := []struct {
		strategy schemas.Strategy
		value    string
		wantSel  string
	}{
		{schemas.ByCSS, "#login", "#login"},
		{schemas.ByID, "user-name", `[id="user-name"]`},
		{schemas.ByName, "q", `[name="q"]`},
		{schemas.ByClass, "btn", `[class~="btn"]`},
		{schemas.ByTag, "textarea", "textarea"},
		{schemas.ByXPath, "//div[@id='x']", "//div[@id='x']"},
		{schemas.ByLinkText, "Sign out", `//a[normalize-space(.)="Sign out"]`},
		{schemas.ByPartialLinkText, "Sign", `//a[contains(., "Sign")]`},
	}
	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			sel, opt, err := translate(tt.strategy, tt.value)
			require.NoError(t, err)
			require.NotNil(t, opt)
			assert.Equal(t, tt.wantSel, sel)
		})
	}
}

func TestTranslateRejectsUnknownStrategy(t *testing.T) {
	_, _, err := translate(schemas.Strategy("accessibility id"), "x")
	require.Error(t, err)
}

func TestMapErrClassification(t *testing.T) {
	t.Run("stale node", func(t *testing.T) {
		err := mapErr("click", "#x", errors.New("Could not find node with given id (-32000)"))
		assert.Equal(t, schemas.KindStale, schemas.KindOf(err))
	})
	t.Run("deadline", func(t *testing.T) {
		err := mapErr("navigate", "", context.DeadlineExceeded)
		assert.Equal(t, schemas.KindTimeout, schemas.KindOf(err))
	})
	t.Run("script exception", func(t *testing.T) {
		exc := &runtime.ExceptionDetails{Text: "Uncaught ReferenceError"}
		err := mapErr("execute script", "", exc)
		assert.Equal(t, schemas.KindScriptError, schemas.KindOf(err))
	})
	t.Run("cancellation passes through unclassified", func(t *testing.T) {
		err := mapErr("click", "#x", context.Canceled)
		assert.True(t, errors.Is(err, context.Canceled))
		var de *schemas.DriverError
		assert.False(t, errors.As(err, &de))
	})
	t.Run("anything else is unknown", func(t *testing.T) {
		err := mapErr("click", "#x", errors.New("websocket closed"))
		assert.Equal(t, schemas.KindUnknown, schemas.KindOf(err))
	})
}

func TestElementArgsAcceptsOwnElements(t *testing.T) {
	el := &element{id: 7, desc: `css selector="#go"`}
	els, err := elementArgs([]any{el, "smooth", 42, el})
	require.NoError(t, err)
	require.Len(t, els, 2, "both element positions found")
	assert.Same(t, el, els[0])
	assert.Same(t, el, els[3])

	els, err = elementArgs([]any{"plain", 1.5})
	require.NoError(t, err)
	assert.Empty(t, els, "value-only args stay on the evaluate path")
}

func TestElementArgsRejectsForeignElements(t *testing.T) {
	_, err := elementArgs([]any{foreignElement{}})
	require.Error(t, err)
	assert.Equal(t, schemas.KindScriptError, schemas.KindOf(err))
}

type foreignElement struct{}

func (foreignElement) Click(context.Context) error                        { return nil }
func (foreignElement) Text(context.Context) (string, error)              { return "", nil }
func (foreignElement) Attribute(context.Context, string) (string, error) { return "", nil }
func (foreignElement) TagName(context.Context) (string, error)           { return "", nil }
func (foreignElement) Displayed(context.Context) (bool, error)           { return false, nil }
func (foreignElement) Selected(context.Context) (bool, error)            { return false, nil }
func (foreignElement) Enabled(context.Context) (bool, error)             { return false, nil }
func (foreignElement) SendKeys(context.Context, string) error            { return nil }

func TestLogBuffersDrainIsDestructive(t *testing.T) {
	b := newLogBuffers()
	b.add(schemas.LogBrowser, schemas.LogEntry{Timestamp: time.Now(), Level: "INFO", Message: "one"})
	b.add(schemas.LogBrowser, schemas.LogEntry{Timestamp: time.Now(), Level: "INFO", Message: "two"})
	b.add(schemas.LogPerformance, schemas.LogEntry{Timestamp: time.Now(), Level: "INFO", Message: "net"})

	got := b.drain(schemas.LogBrowser)
	require.Len(t, got, 2)
	assert.Empty(t, b.drain(schemas.LogBrowser), "second drain finds nothing")
	assert.Len(t, b.drain(schemas.LogPerformance), 1, "streams drain independently")
}

func TestPerfEnvelopeShape(t *testing.T) {
	msg, err := json.Marshal(perfEnvelope{
		Method: "Network.responseReceived",
		Params: map[string]any{"requestId": "1"},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"method":"Network.responseReceived","params":{"requestId":"1"}}`, string(msg))
}
