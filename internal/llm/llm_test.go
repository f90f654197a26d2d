package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestIsTimeout(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "deadline", err: context.DeadlineExceeded, want: true},
		{name: "wrappedDeadline", err: fmt.Errorf("generate: %w", context.DeadlineExceeded), want: true},
		{name: "netTimeout", err: &net.OpError{Op: "read", Err: timeoutError{}}, want: true},
		{name: "canceled", err: context.Canceled, want: false},
		{name: "rejected", err: errors.New("401 unauthorized"), want: false},
		{name: "empty", err: ErrEmptyResponse, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTimeout(tt.err); got != tt.want {
				t.Errorf("IsTimeout(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
