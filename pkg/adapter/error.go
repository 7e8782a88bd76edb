package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// AdapterError wraps a provider failure with enough metadata for the caller
// to decide whether a retry is worthwhile.
type AdapterError struct {
	Provider  string
	Status    int
	Temporary bool
	Err       error
}

func (e *AdapterError) Error() string {
	if e == nil {
		return "adapter error"
	}
	provider := e.Provider
	if provider == "" {
		provider = "adapter"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", provider, e.Err)
	}
	return fmt.Sprintf("%s: status %d", provider, e.Status)
}

func (e *AdapterError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsTransient reports whether retrying the call could plausibly succeed.
// The classifier tier allows itself exactly one retry inside its deadline,
// so this errs toward false: an explicit cancellation or a 4xx other than
// rate limiting or request timeout is never retried.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var adapterErr *AdapterError
	if !errors.As(err, &adapterErr) {
		return false
	}
	switch {
	case adapterErr.Temporary:
		return true
	case adapterErr.Status == 408, adapterErr.Status == 429:
		return true
	case adapterErr.Status >= 500 && adapterErr.Status <= 599:
		return true
	}
	return false
}
