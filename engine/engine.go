package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	dutyleak "github.com/Milo6x/dutyleak-app-sub004"
	"github.com/Milo6x/dutyleak-app-sub004/backoff"
	"github.com/Milo6x/dutyleak-app-sub004/ext"
	"github.com/Milo6x/dutyleak-app-sub004/job"
	mw "github.com/Milo6x/dutyleak-app-sub004/middleware"
	"github.com/Milo6x/dutyleak-app-sub004/observability"
	"github.com/Milo6x/dutyleak-app-sub004/retry"
	"github.com/Milo6x/dutyleak-app-sub004/schedule"
	"github.com/Milo6x/dutyleak-app-sub004/scheduler"
	"github.com/Milo6x/dutyleak-app-sub004/store"
	"github.com/Milo6x/dutyleak-app-sub004/throttle"
	"github.com/Milo6x/dutyleak-app-sub004/watch"
	"github.com/Milo6x/dutyleak-app-sub004/worker"
)

// instrumentationName scopes the tracer and meter the engine builds when
// custom providers are supplied.
const instrumentationName = "github.com/Milo6x/dutyleak-app-sub004"

// Engine wires the handler registry, store, worker pool, scheduler, and
// schedule runner around a Dispatcher. Use Build to create one.
type Engine struct {
	d          *dutyleak.Dispatcher
	store      *store.Store
	registry   *job.Registry
	extensions *ext.Registry
	policy     *retry.Policy
	pool       *worker.Pool
	sched      *scheduler.Scheduler
	runner     *schedule.Runner
	hub        *watch.Hub
	throttles  *throttle.Manager
	bo         backoff.Strategy
	mws        []mw.Middleware
	logger     *slog.Logger
	cfg        dutyleak.Config

	// closed latches on Stop; admission and steering reject new work after.
	closed atomic.Bool

	throttleConfigs []throttle.Config

	// Optional OpenTelemetry providers. Nil means the globals are used.
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures an Engine during Build.
type Option func(*Engine)

// WithExtension registers a lifecycle extension. Extensions receive events
// in registration order, after the built-in watch hub and metrics.
func WithExtension(x ext.Extension) Option {
	return func(eng *Engine) { eng.extensions.Register(x) }
}

// WithMiddleware appends execution middleware after the default stack
// (recover, tracing, metrics, logging, workspace scope, timeout).
func WithMiddleware(mws ...mw.Middleware) Option {
	return func(eng *Engine) { eng.mws = append(eng.mws, mws...) }
}

// WithBackoff overrides the retry delay strategy. The default is
// exponential with the dispatcher's BackoffBase and BackoffCap.
func WithBackoff(s backoff.Strategy) Option {
	return func(eng *Engine) { eng.bo = s }
}

// WithThrottleConfig installs per-type concurrency caps and rate limits.
func WithThrottleConfig(configs ...throttle.Config) Option {
	return func(eng *Engine) {
		eng.throttleConfigs = append(eng.throttleConfigs, configs...)
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider used for
// per-execution spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) { eng.tracerProvider = tp }
}

// WithMeterProvider sets the OpenTelemetry meter provider used for
// lifecycle counters and execution metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) { eng.meterProvider = mp }
}

// Build assembles an Engine from a configured Dispatcher. The dispatcher's
// mirror must implement both job.Mirror and schedule.Store; the built-in
// memory and postgres mirrors implement both.
func Build(d *dutyleak.Dispatcher, opts ...Option) (*Engine, error) {
	logger := d.Logger()
	mirror := d.Mirror()

	if mirror == nil {
		return nil, dutyleak.ErrNoMirror
	}
	jm, ok := mirror.(job.Mirror)
	if !ok {
		return nil, fmt.Errorf("dutyleak: mirror does not implement job.Mirror")
	}
	ss, ok := mirror.(schedule.Store)
	if !ok {
		return nil, fmt.Errorf("dutyleak: mirror does not implement schedule.Store")
	}

	cfg := d.Config()
	eng := &Engine{
		d:          d,
		extensions: ext.NewRegistry(logger),
		registry:   job.NewRegistry(),
		hub:        watch.NewHub(logger),
		logger:     logger,
		cfg:        cfg,
	}

	// The hub feeds Watch and Wait; registering it first guarantees
	// watchers observe every event before user extensions run.
	eng.extensions.Register(eng.hub)

	for _, opt := range opts {
		opt(eng)
	}

	if eng.bo == nil {
		eng.bo = backoff.NewExponential(cfg.BackoffBase, cfg.BackoffCap)
	}
	eng.policy = retry.NewPolicy(eng.bo)

	var obsExt *observability.MetricsExtension
	if eng.meterProvider != nil {
		meter := eng.meterProvider.Meter(instrumentationName + "/observability")
		obsExt = observability.NewMetricsExtensionWithMeter(meter)
	} else {
		obsExt = observability.NewMetricsExtension()
	}
	eng.extensions.Register(obsExt)

	eng.store = store.New(jm,
		store.WithLogger(logger),
		store.WithMirrorRetry(cfg.MirrorRetries, cfg.MirrorRetryDelay),
	)

	var tracingMw mw.Middleware
	if eng.tracerProvider != nil {
		tracingMw = mw.TracingWithTracer(eng.tracerProvider.Tracer(instrumentationName))
	} else {
		tracingMw = mw.Tracing()
	}

	var metricsMw mw.Middleware
	if eng.meterProvider != nil {
		metricsMw = mw.MetricsWithMeter(eng.meterProvider.Meter(instrumentationName))
	} else {
		metricsMw = mw.Metrics()
	}

	// Per-type execution deadlines come from registered options.
	timeoutFor := func(typ job.Type) time.Duration {
		if entry, ok := eng.registry.Get(typ); ok {
			return entry.Opts.Timeout
		}
		return 0
	}

	defaultMws := []mw.Middleware{
		mw.Recover(logger),
		tracingMw,
		metricsMw,
		mw.Logging(logger),
		mw.WorkspaceScope(),
		mw.Timeout(logger, timeoutFor),
	}
	allMws := make([]mw.Middleware, 0, len(defaultMws)+len(eng.mws))
	allMws = append(allMws, defaultMws...)
	allMws = append(allMws, eng.mws...)

	executor := worker.NewExecutor(eng.registry, eng.store, eng.policy, eng.extensions, logger, allMws...)

	poolOpts := []worker.PoolOption{
		worker.WithMaxConcurrency(cfg.MaxConcurrency),
	}
	schedOpts := []scheduler.Option{
		scheduler.WithTickInterval(cfg.TickInterval),
	}
	if len(eng.throttleConfigs) > 0 {
		eng.throttles = throttle.NewManager(eng.throttleConfigs...)
		poolOpts = append(poolOpts, worker.WithThrottle(eng.throttles))
		schedOpts = append(schedOpts, scheduler.WithThrottle(eng.throttles))
	}

	eng.pool = worker.NewPool(executor, logger, poolOpts...)
	eng.sched = scheduler.New(eng.store, eng.pool, eng.extensions, logger, schedOpts...)

	// A freed slot may unblock the next ready job.
	eng.pool.OnSlotFreed(eng.sched.Wake)

	// Recurring schedules enqueue through the engine's own admission path,
	// so scheduled jobs get the same validation and events as manual ones.
	eng.runner = schedule.NewRunner(ss, eng.AddJob, eng.extensions, logger,
		schedule.WithTickInterval(cfg.TickInterval),
	)

	d.SetPool(eng.pool)
	d.SetExtensions(eng.extensions)

	return eng, nil
}

// Register binds a typed job definition to the engine's registry. Payloads
// are decoded strictly and validated before the handler runs.
func Register[T any](eng *Engine, def *job.Definition[T]) error {
	return job.RegisterDefinition(eng.registry, def)
}

// RegisterHandler binds an untyped handler to a job type. The dispatcher's
// DefaultMaxRetries applies unless the options override it.
func (eng *Engine) RegisterHandler(typ job.Type, h job.HandlerFunc, opts ...job.Option) error {
	withDefaults := make([]job.Option, 0, len(opts)+1)
	withDefaults = append(withDefaults, job.WithMaxRetries(eng.cfg.DefaultMaxRetries))
	withDefaults = append(withDefaults, opts...)
	return eng.registry.Register(typ, h, withDefaults...)
}

// Start migrates and loads the mirror, recovers interrupted work, and
// begins dispatching ready jobs and firing recurring schedules.
func (eng *Engine) Start(ctx context.Context) error {
	if err := eng.d.Mirror().Migrate(ctx); err != nil {
		return fmt.Errorf("%w: %v", dutyleak.ErrMigrationFailed, err)
	}
	if err := eng.store.Bootstrap(ctx); err != nil {
		return fmt.Errorf("dutyleak: bootstrap store: %w", err)
	}
	if err := eng.recover(ctx); err != nil {
		return fmt.Errorf("dutyleak: recover interrupted jobs: %w", err)
	}
	if err := eng.d.Start(ctx); err != nil {
		return err
	}
	if err := eng.sched.Start(ctx); err != nil {
		return fmt.Errorf("dutyleak: start scheduler: %w", err)
	}
	if err := eng.runner.Start(ctx); err != nil {
		return fmt.Errorf("dutyleak: start schedule runner: %w", err)
	}
	eng.sched.Wake()
	return nil
}

// Stop halts dispatching, drains running jobs within the shutdown timeout,
// notifies extensions, and closes the mirror. It is safe to call once;
// later calls return nil.
func (eng *Engine) Stop(ctx context.Context) error {
	if !eng.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := eng.sched.Stop(ctx); err != nil {
		eng.logger.Error("failed to stop scheduler", "error", err)
	}
	if err := eng.runner.Stop(ctx); err != nil {
		eng.logger.Error("failed to stop schedule runner", "error", err)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline && eng.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, eng.cfg.ShutdownTimeout)
		defer cancel()
	}
	return eng.d.Stop(ctx)
}

// ── Accessors ───────────────────────────────────────────────────────────────

// Dispatcher returns the dispatcher the engine was built from.
func (eng *Engine) Dispatcher() *dutyleak.Dispatcher { return eng.d }

// Store returns the authoritative job store.
func (eng *Engine) Store() *store.Store { return eng.store }

// Registry returns the handler registry.
func (eng *Engine) Registry() *job.Registry { return eng.registry }

// Extensions returns the extension registry.
func (eng *Engine) Extensions() *ext.Registry { return eng.extensions }

// Hub returns the watch hub backing Watch and Wait.
func (eng *Engine) Hub() *watch.Hub { return eng.hub }

// Throttles returns the throttle manager, or nil when no throttle
// configs were installed.
func (eng *Engine) Throttles() *throttle.Manager { return eng.throttles }
