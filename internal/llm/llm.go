package llm

import (
	"context"
	"errors"
	"net"
)

var (
	ErrNoResponse    = errors.New("no response")
	ErrEmptyResponse = errors.New("empty response")
)

// Prompt is a single-turn request: a system instruction plus the rendered
// user prompt.
type Prompt struct {
	System string
	User   string
}

// Client returns the raw text reply of a generative model. Replies are not
// parsed here; callers own normalization.
type Client interface {
	Generate(ctx context.Context, prompt Prompt) (string, error)
}

// IsTimeout reports whether err was caused by a deadline rather than by the
// service rejecting the request.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
