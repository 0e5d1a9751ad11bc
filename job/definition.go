package job

import "context"

// Definition is a typed job definition with a handler function.
// T is the payload type (must be JSON-serializable; struct fields may
// carry `validate` tags, enforced at admission).
type Definition[T any] struct {
	// Type is the job type this definition handles.
	Type Type

	// Handler processes the decoded payload. It reports progress and
	// observes cancel/pause requests through the Reporter; returning
	// a Reporter error propagates the request to the executor.
	Handler func(ctx context.Context, payload T, rep *Reporter) error

	// Opts configures retries, timeout, pausability, and priority.
	Opts Options
}

// NewDefinition creates a typed job definition.
func NewDefinition[T any](typ Type, handler func(ctx context.Context, payload T, rep *Reporter) error, opts ...Option) *Definition[T] {
	def := &Definition[T]{
		Type:    typ,
		Handler: handler,
		Opts:    DefaultOptions(),
	}
	for _, opt := range opts {
		opt(&def.Opts)
	}
	return def
}
