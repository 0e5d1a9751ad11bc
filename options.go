package dutyleak

import (
	"context"
	"log/slog"
	"time"
)

// Option configures a Dispatcher.
type Option func(*Dispatcher) error

// Mirror is the minimal durable-store interface held by the Dispatcher.
// It covers lifecycle operations only; the full interface (job.Mirror)
// is consumed by the subsystem layers, which would create an import
// cycle if referenced here.
type Mirror interface {
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// poolRunner is an internal interface for worker pool lifecycle.
type poolRunner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// extensionEmitter is an internal interface for extension lifecycle events.
type extensionEmitter interface {
	EmitShutdown(ctx context.Context)
}

// Dispatcher is the central coordinator for job processing. Create one
// with New() and functional options, then wire the subsystems together
// with engine.Build. The Dispatcher holds subsystem references via
// internal interfaces to avoid import cycles.
type Dispatcher struct {
	config     Config
	logger     *slog.Logger
	mirror     Mirror
	extensions extensionEmitter
	pool       poolRunner

	// started tracks whether Start has been called.
	started bool
}

// New creates a new Dispatcher with the given options.
func New(opts ...Option) (*Dispatcher, error) {
	d := &Dispatcher{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Logger returns the dispatcher's logger.
func (d *Dispatcher) Logger() *slog.Logger { return d.logger }

// Mirror returns the dispatcher's durable mirror.
func (d *Dispatcher) Mirror() Mirror { return d.mirror }

// Config returns a copy of the dispatcher's configuration.
func (d *Dispatcher) Config() Config { return d.config }

// SetPool sets the worker pool (called by engine.Build).
func (d *Dispatcher) SetPool(p poolRunner) { d.pool = p }

// SetExtensions sets the extension emitter (called by engine.Build).
func (d *Dispatcher) SetExtensions(e extensionEmitter) { d.extensions = e }

// Start begins job processing.
func (d *Dispatcher) Start(ctx context.Context) error {
	if d.pool == nil {
		return ErrNoMirror
	}
	if err := d.pool.Start(ctx); err != nil {
		return err
	}
	d.started = true
	return nil
}

// Stop gracefully shuts down the dispatcher.
func (d *Dispatcher) Stop(ctx context.Context) error {
	if d.pool != nil && d.started {
		if err := d.pool.Stop(ctx); err != nil {
			d.logger.Error("pool stop error", "error", err)
		}
	}
	if d.extensions != nil {
		d.extensions.EmitShutdown(ctx)
	}
	if d.mirror != nil {
		return d.mirror.Close()
	}
	return nil
}

// WithConcurrency sets the number of worker slots.
func WithConcurrency(n int) Option {
	return func(d *Dispatcher) error {
		d.config.MaxConcurrency = n
		return nil
	}
}

// WithTickInterval sets the scheduler's safety-net poll interval.
func WithTickInterval(iv time.Duration) Option {
	return func(d *Dispatcher) error {
		d.config.TickInterval = iv
		return nil
	}
}

// WithShutdownTimeout sets the grace period for running jobs during Stop.
func WithShutdownTimeout(t time.Duration) Option {
	return func(d *Dispatcher) error {
		d.config.ShutdownTimeout = t
		return nil
	}
}

// WithDefaultMaxRetries sets the retry budget for definitions that do
// not declare their own.
func WithDefaultMaxRetries(n int) Option {
	return func(d *Dispatcher) error {
		d.config.DefaultMaxRetries = n
		return nil
	}
}

// WithBackoff bounds the exponential retry delay.
func WithBackoff(base, cap time.Duration) Option {
	return func(d *Dispatcher) error {
		d.config.BackoffBase = base
		d.config.BackoffCap = cap
		return nil
	}
}

// WithLogger sets the structured logger for the dispatcher.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) error {
		d.logger = l
		return nil
	}
}

// WithMirror sets the durable mirror for the dispatcher. The mirror
// must implement Mirror at minimum; typically it is a job.Mirror from
// one of the store/ packages.
func WithMirror(m Mirror) Option {
	return func(d *Dispatcher) error {
		d.mirror = m
		return nil
	}
}
