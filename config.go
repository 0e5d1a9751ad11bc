package dutyleak

import "time"

// Config holds configuration for the Dispatcher.
type Config struct {
	// MaxConcurrency is the number of worker slots. At most this many
	// jobs hold status running at any instant.
	MaxConcurrency int

	// TickInterval is the scheduler's safety-net poll interval. The
	// scheduler normally wakes on new work and freed slots; the tick
	// catches retry backoffs becoming due.
	TickInterval time.Duration

	// ShutdownTimeout is the grace period running jobs get before their
	// contexts are cancelled during Stop.
	ShutdownTimeout time.Duration

	// DefaultMaxRetries applies to jobs whose definition does not set
	// its own retry budget.
	DefaultMaxRetries int

	// BackoffBase and BackoffCap bound the exponential retry delay:
	// min(BackoffBase * 2^retryCount, BackoffCap).
	BackoffBase time.Duration
	BackoffCap  time.Duration

	// MirrorRetries and MirrorRetryDelay govern how persistence writes
	// are retried before a mutation is abandoned. Independent of job
	// retry counts.
	MirrorRetries    int
	MirrorRetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency:    4,
		TickInterval:      1 * time.Second,
		ShutdownTimeout:   30 * time.Second,
		DefaultMaxRetries: 3,
		BackoffBase:       1 * time.Second,
		BackoffCap:        1 * time.Minute,
		MirrorRetries:     3,
		MirrorRetryDelay:  100 * time.Millisecond,
	}
}
