package pricing

import (
	"errors"
	"fmt"
)

// Error taxonomy. Every one of these is recovered at the provider boundary.
var (
	ErrTransport    = errors.New("transport error")
	ErrTimeout      = errors.New("fetch timeout")
	ErrBlocked      = errors.New("blocked by provider")
	ErrTooSmall     = errors.New("response too small")
	ErrParse        = errors.New("unexpected page structure")
	ErrValidation   = errors.New("invalid candidate")
	ErrNoCandidate  = errors.New("no candidate found")
	ErrNotFound     = errors.New("not found")
	ErrRenderFailed = errors.New("render fallback failed")
	ErrQueueClosed  = errors.New("queue closed")
)

// FetchReason is the terminal reason reported by the fetch layer.
type FetchReason string

// Fetch failure reasons.
const (
	ReasonBlocked   FetchReason = "blocked"
	ReasonTimeout   FetchReason = "timeout"
	ReasonTransport FetchReason = "transport"
	ReasonTooSmall  FetchReason = "too_small"
)

func (r FetchReason) sentinel() error {
	switch r {
	case ReasonBlocked:
		return ErrBlocked
	case ReasonTimeout:
		return ErrTimeout
	case ReasonTooSmall:
		return ErrTooSmall
	default:
		return ErrTransport
	}
}

// FetchError is the only error the fetch layer returns once its retries are exhausted.
type FetchError struct {
	Reason     FetchReason
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch %s: %s", e.URL, e.Reason)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the reason sentinel and the underlying cause.
func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Reason.sentinel()}
	}
	return []error{e.Reason.sentinel(), e.Err}
}

// ParseError reports schema drift on a provider page and carries the offending body.
type ParseError struct {
	Provider string
	URL      string
	Body     []byte
	Err      error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: parse %s: %s", e.Provider, e.URL, ErrParse)
	}
	return fmt.Sprintf("%s: parse %s: %v", e.Provider, e.URL, e.Err)
}

// Unwrap matches ErrParse and the underlying cause.
func (e *ParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrParse}
	}
	return []error{ErrParse, e.Err}
}
