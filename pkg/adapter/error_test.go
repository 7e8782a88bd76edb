package adapter

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{"nil", nil, false},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"temporary adapter error", &AdapterError{Temporary: true, Err: errors.New("conn reset")}, true},
		{"rate limited", &AdapterError{Status: 429, Err: errors.New("too many requests")}, true},
		{"request timeout", &AdapterError{Status: 408, Err: errors.New("timeout")}, true},
		{"server error", &AdapterError{Status: 503, Err: errors.New("unavailable")}, true},
		{"client error", &AdapterError{Status: 400, Err: errors.New("bad request")}, false},
		{"auth error", &AdapterError{Status: 401, Err: errors.New("bad key")}, false},
		{"wrapped adapter error", fmt.Errorf("call failed: %w", &AdapterError{Status: 500}), true},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.transient {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.transient)
			}
		})
	}
}

func TestAdapterErrorUnwrap(t *testing.T) {
	inner := errors.New("inner")
	err := &AdapterError{Status: 500, Err: inner}

	if !errors.Is(err, inner) {
		t.Error("Unwrap must expose the inner error")
	}
	if err.Error() != "adapter: inner" {
		t.Errorf("Error() = %q, want wrapped inner message", err.Error())
	}
	if got := (&AdapterError{Provider: "deepseek", Status: 503}).Error(); got != "deepseek: status 503" {
		t.Errorf("status-only message wrong: %q", got)
	}
}
