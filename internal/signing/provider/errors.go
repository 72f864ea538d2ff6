package provider

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidSignature = errors.New("provider: webhook signature mismatch")
	ErrMalformedPayload = errors.New("provider: malformed webhook payload")
)

// Error is a failed provider call. Permanent errors (4xx) were not retried.
type Error struct {
	Provider   Kind
	Op         string
	StatusCode int
	Body       string
	Permanent  bool
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s %s: status %d: %s", e.Provider, e.Op, e.StatusCode, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
	default:
		return fmt.Sprintf("%s %s failed", e.Provider, e.Op)
	}
}

func (e *Error) Unwrap() error { return e.Err }
