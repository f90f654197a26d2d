package outline

import "fmt"

// NormalizationError reports a reply that holds no usable structured payload.
// The raw reply is kept for server-side diagnostics and is not part of Error().
type NormalizationError struct {
	Reason string
	Raw    string
	Err    error
}

func (e *NormalizationError) Error() string {
	if e.Err == nil {
		return "normalize reply: " + e.Reason
	}
	return fmt.Sprintf("normalize reply: %s: %v", e.Reason, e.Err)
}

func (e *NormalizationError) Unwrap() error { return e.Err }

// ValidationError reports a parseable outline that breaks the slide contract.
// Index is -1 when the problem is the slides list itself.
type ValidationError struct {
	Index  int
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("validate outline: %s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("validate outline: slide %d: %s %s", e.Index, e.Field, e.Reason)
}
