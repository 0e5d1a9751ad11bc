package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Milo6x/dutyleak-app-sub004/ext"
	"github.com/Milo6x/dutyleak-app-sub004/id"
	"github.com/Milo6x/dutyleak-app-sub004/job"
)

// meterName is the instrumentation scope name for lifecycle counters.
const meterName = "github.com/Milo6x/dutyleak-app-sub004/observability"

// Compile-time interface checks.
var (
	_ ext.Extension       = (*MetricsExtension)(nil)
	_ ext.JobEnqueued     = (*MetricsExtension)(nil)
	_ ext.JobStarted      = (*MetricsExtension)(nil)
	_ ext.JobCompleted    = (*MetricsExtension)(nil)
	_ ext.JobFailed       = (*MetricsExtension)(nil)
	_ ext.JobRetrying     = (*MetricsExtension)(nil)
	_ ext.JobDeadLettered = (*MetricsExtension)(nil)
	_ ext.JobCancelled    = (*MetricsExtension)(nil)
	_ ext.ScheduleFired   = (*MetricsExtension)(nil)
)

// MetricsExtension records system-wide lifecycle counters. Register it
// as an engine extension to track enqueue rates, completions, failures,
// retries, dead-letter entries, cancellations, and schedule fires.
// Every job counter carries a job_type attribute.
type MetricsExtension struct {
	enqueued      metric.Int64Counter
	started       metric.Int64Counter
	completed     metric.Int64Counter
	failed        metric.Int64Counter
	retried       metric.Int64Counter
	deadLettered  metric.Int64Counter
	cancelled     metric.Int64Counter
	scheduleFired metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension using the global OTel
// MeterProvider. If no provider is configured the instruments are noop.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the
// provided meter. Use this variant to inject a specific MeterProvider.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	m := &MetricsExtension{}

	// On error, the OTel API returns noop instruments, so the extension
	// degrades gracefully.
	m.enqueued, _ = meter.Int64Counter("dutyleak.jobs.enqueued",
		metric.WithDescription("Total jobs admitted"),
		metric.WithUnit("{job}"))
	m.started, _ = meter.Int64Counter("dutyleak.jobs.started",
		metric.WithDescription("Total job attempts started"),
		metric.WithUnit("{job}"))
	m.completed, _ = meter.Int64Counter("dutyleak.jobs.completed",
		metric.WithDescription("Total jobs completed successfully"),
		metric.WithUnit("{job}"))
	m.failed, _ = meter.Int64Counter("dutyleak.jobs.failed",
		metric.WithDescription("Total failed job attempts"),
		metric.WithUnit("{job}"))
	m.retried, _ = meter.Int64Counter("dutyleak.jobs.retried",
		metric.WithDescription("Total retries scheduled"),
		metric.WithUnit("{job}"))
	m.deadLettered, _ = meter.Int64Counter("dutyleak.jobs.dead_lettered",
		metric.WithDescription("Total jobs parked after exhausting retries"),
		metric.WithUnit("{job}"))
	m.cancelled, _ = meter.Int64Counter("dutyleak.jobs.cancelled",
		metric.WithDescription("Total jobs cancelled"),
		metric.WithUnit("{job}"))
	m.scheduleFired, _ = meter.Int64Counter("dutyleak.schedules.fired",
		metric.WithDescription("Total schedule fires"),
		metric.WithUnit("{fire}"))

	return m
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

func typeAttr(j *job.Job) metric.AddOption {
	return metric.WithAttributes(attribute.String("job_type", string(j.Type)))
}

// ── Job lifecycle hooks ─────────────────────────────

func (m *MetricsExtension) OnJobEnqueued(ctx context.Context, j *job.Job) error {
	m.enqueued.Add(ctx, 1, typeAttr(j))
	return nil
}

func (m *MetricsExtension) OnJobStarted(ctx context.Context, j *job.Job) error {
	m.started.Add(ctx, 1, typeAttr(j))
	return nil
}

func (m *MetricsExtension) OnJobCompleted(ctx context.Context, j *job.Job, _ time.Duration) error {
	m.completed.Add(ctx, 1, typeAttr(j))
	return nil
}

func (m *MetricsExtension) OnJobFailed(ctx context.Context, j *job.Job, _ error) error {
	m.failed.Add(ctx, 1, typeAttr(j))
	return nil
}

func (m *MetricsExtension) OnJobRetrying(ctx context.Context, j *job.Job, _ int, _ time.Time) error {
	m.retried.Add(ctx, 1, typeAttr(j))
	return nil
}

func (m *MetricsExtension) OnJobDeadLettered(ctx context.Context, j *job.Job, _ error) error {
	m.deadLettered.Add(ctx, 1, typeAttr(j))
	return nil
}

func (m *MetricsExtension) OnJobCancelled(ctx context.Context, j *job.Job) error {
	m.cancelled.Add(ctx, 1, typeAttr(j))
	return nil
}

// ── Schedule lifecycle hooks ────────────────────────

func (m *MetricsExtension) OnScheduleFired(ctx context.Context, scheduleName string, _ id.JobID) error {
	m.scheduleFired.Add(ctx, 1, metric.WithAttributes(
		attribute.String("schedule_name", scheduleName),
	))
	return nil
}
