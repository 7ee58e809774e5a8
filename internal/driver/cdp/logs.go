package cdp

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/stakeout/api/schemas"
)

// logBuffers collects CDP events into per-stream buffers so they can be
// served through the destructive Logs contract the way a chromedriver
// session serves its "performance" and "browser" logs.
type logBuffers struct {
	mu      sync.Mutex
	streams map[schemas.LogType][]schemas.LogEntry
}

func newLogBuffers() *logBuffers {
	return &logBuffers{streams: make(map[schemas.LogType][]schemas.LogEntry)}
}

func (b *logBuffers) add(t schemas.LogType, e schemas.LogEntry) {
	b.mu.Lock()
	b.streams[t] = append(b.streams[t], e)
	b.mu.Unlock()
}

// drain returns the buffered entries for t and empties the buffer.
func (b *logBuffers) drain(t schemas.LogType) []schemas.LogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.streams[t]
	b.streams[t] = nil
	return out
}

// perfEnvelope mirrors the chromedriver performance-log message shape:
// a JSON object with the CDP method and its params.
type perfEnvelope struct {
	Method string `json:"method"`
	Params any    `json:"params"`
}

// listen wires CDP events from tabCtx into the log buffers. Console API
// calls feed the browser stream; network lifecycle events feed the
// performance stream.
func (d *Driver) listen(tabCtx context.Context) {
	chromedp.ListenTarget(tabCtx, func(ev any) {
		switch e := ev.(type) {
		case *runtime.EventConsoleAPICalled:
			var parts []string
			for _, arg := range e.Args {
				if len(arg.Value) > 0 {
					parts = append(parts, string(arg.Value))
				} else if arg.Description != "" {
					parts = append(parts, arg.Description)
				}
			}
			d.logs.add(schemas.LogBrowser, schemas.LogEntry{
				Timestamp: time.Now(),
				Level:     strings.ToUpper(string(e.Type)),
				Message:   strings.Join(parts, " "),
			})
		case *network.EventRequestWillBeSent:
			d.addPerf("Network.requestWillBeSent", e)
		case *network.EventResponseReceived:
			d.addPerf("Network.responseReceived", e)
		case *network.EventLoadingFailed:
			d.addPerf("Network.loadingFailed", e)
		case *network.EventLoadingFinished:
			d.addPerf("Network.loadingFinished", e)
		}
	})
}

func (d *Driver) addPerf(method string, params any) {
	msg, err := json.Marshal(perfEnvelope{Method: method, Params: params})
	if err != nil {
		return
	}
	d.logs.add(schemas.LogPerformance, schemas.LogEntry{
		Timestamp: time.Now(),
		Level:     "INFO",
		Message:   string(msg),
	})
}
