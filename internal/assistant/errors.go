package assistant

import "fmt"

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "Validation error" }

type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

// UpstreamError wraps a model client failure. It aborts the turn.
type UpstreamError struct{ Err error }

func (e *UpstreamError) Error() string { return fmt.Sprintf("model request failed: %v", e.Err) }

func (e *UpstreamError) Unwrap() error { return e.Err }
