package job

import "time"

// Options configures per-type behavior: retry budget, execution
// deadline, pausability, and scheduling hints.
type Options struct {
	// MaxRetries is the number of failures before a job is parked in
	// dead_letter. A job that fails MaxRetries times never runs again
	// without a manual retry.
	MaxRetries int

	// Timeout is the maximum duration one attempt may run. Zero means
	// unlimited; expiry is recorded as a timeout failure.
	Timeout time.Duration

	// Priority is the default priority for jobs of this type. Admission
	// options may override it per job.
	Priority Priority

	// Pausable marks the type as supporting cooperative suspension.
	// PauseJob on other types is rejected.
	Pausable bool

	// EstimatedDuration seeds the estimatedDuration bookkeeping field
	// so the dashboard can show an ETA before the first attempt.
	EstimatedDuration time.Duration

	// WorkspaceID scopes a job at admission time. When empty, the
	// workspace is taken from the context instead.
	WorkspaceID string

	// NotBefore delays the first attempt until the given instant. Zero
	// means eligible immediately.
	NotBefore time.Time
}

// DefaultOptions returns Options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		MaxRetries: 3,
		Priority:   PriorityMedium,
	}
}

// Option is a functional option for configuring a job definition.
type Option func(*Options)

// WithMaxRetries sets the failure budget before dead_letter.
func WithMaxRetries(n int) Option {
	return func(o *Options) {
		o.MaxRetries = n
	}
}

// WithTimeout sets the maximum execution duration per attempt.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = d
	}
}

// WithDefaultPriority sets the default priority for this type.
func WithDefaultPriority(p Priority) Option {
	return func(o *Options) {
		o.Priority = p
	}
}

// WithPausable marks the type as supporting cooperative suspension.
func WithPausable() Option {
	return func(o *Options) {
		o.Pausable = true
	}
}

// WithEstimatedDuration seeds the ETA bookkeeping for this type.
func WithEstimatedDuration(d time.Duration) Option {
	return func(o *Options) {
		o.EstimatedDuration = d
	}
}

// WithWorkspace scopes the job to the given workspace, overriding any
// workspace carried by the context.
func WithWorkspace(workspaceID string) Option {
	return func(o *Options) {
		o.WorkspaceID = workspaceID
	}
}

// WithNotBefore delays the first attempt until t.
func WithNotBefore(t time.Time) Option {
	return func(o *Options) {
		o.NotBefore = t
	}
}
