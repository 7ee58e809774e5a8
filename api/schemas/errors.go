package schemas

import (
	"context"
	"errors"
	"fmt"
)

// FailureKind classifies a driver failure for the retry engine's allow-list.
// The string values match the W3C WebDriver error codes where one exists.
type FailureKind string

const (
	KindNotFound         FailureKind = "no such element"
	KindStale            FailureKind = "stale element reference"
	KindNotInteractable  FailureKind = "element not interactable"
	KindClickIntercepted FailureKind = "element click intercepted"
	KindTimeout          FailureKind = "timeout"
	KindScriptError      FailureKind = "javascript error"
	KindUnknown          FailureKind = "unknown error"
)

// DriverError is a classified driver failure. The retry engine pattern
// matches on Kind instead of catching by error type, so adapters must map
// their client library's failures into one of the kinds above.
type DriverError struct {
	Kind     FailureKind
	Op       string // the operation that failed, e.g. "find element"
	Selector string // locator description when one was involved
	Err      error  // underlying adapter/client error, may be nil
}

func (e *DriverError) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Selector != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Selector)
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *DriverError) Unwrap() error { return e.Err }

// NewDriverError builds a classified failure.
func NewDriverError(kind FailureKind, op, selector string, err error) *DriverError {
	return &DriverError{Kind: kind, Op: op, Selector: selector, Err: err}
}

// KindOf extracts the failure kind from an error chain. Context deadline
// errors classify as KindTimeout; anything unclassified is KindUnknown,
// which no default allow-list retries.
func KindOf(err error) FailureKind {
	if err == nil {
		return ""
	}
	var de *DriverError
	if errors.As(err, &de) {
		return de.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindUnknown
}
