package job

import (
	"context"
	"errors"
	"fmt"
)

// Failure codes recorded by the executor.
const (
	CodeHandler = "handler"
	CodeTimeout = "timeout"
	CodePanic   = "panic"
)

// Failure records why the last attempt of a job failed. It is set only
// on failed and dead_letter jobs and cleared by a manual retry.
type Failure struct {
	Message string         `json:"message"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Clone returns a deep copy of the failure.
func (f *Failure) Clone() *Failure {
	if f == nil {
		return nil
	}
	cp := *f
	if f.Details != nil {
		cp.Details = make(map[string]any, len(f.Details))
		for k, v := range f.Details {
			cp.Details[k] = v
		}
	}
	return &cp
}

// Error is a typed failure a handler can return to control the code
// and details recorded on the job. Any other error is recorded with
// code "handler".
type Error struct {
	Code    string
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError creates a typed handler error.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithDetail attaches a detail entry and returns the error for chaining.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// FailureFromError converts a handler error into the Failure recorded
// on the job. Typed *Error values keep their code and details; context
// deadline errors read as timeouts; everything else is a plain handler
// failure.
func FailureFromError(err error) *Failure {
	if err == nil {
		return nil
	}

	var typed *Error
	if errors.As(err, &typed) {
		return &Failure{
			Message: typed.Message,
			Code:    typed.Code,
			Details: typed.Details,
		}
	}

	code := CodeHandler
	if errors.Is(err, context.DeadlineExceeded) {
		code = CodeTimeout
	}
	return &Failure{Message: err.Error(), Code: code}
}
