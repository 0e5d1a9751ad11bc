package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Milo6x/dutyleak-app-sub004/job"
)

// tracerName is the instrumentation scope name for engine tracing.
const tracerName = "github.com/Milo6x/dutyleak-app-sub004"

// Tracing returns middleware that wraps job execution in an OpenTelemetry span.
// If no TracerProvider is configured globally, the default noop tracer is used
// and this middleware becomes a pass-through with zero overhead.
//
// Span attributes include: dutyleak.job.id, dutyleak.job.type,
// dutyleak.priority, dutyleak.retry_count, dutyleak.workspace_id.
// On error, the span status is set to codes.Error with the error message.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided tracer.
// This variant allows injecting a specific TracerProvider for testing or
// when multiple providers are in use.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		ctx, span := tracer.Start(ctx, "dutyleak.job.execute",
			trace.WithAttributes(
				attribute.String("dutyleak.job.id", j.ID.String()),
				attribute.String("dutyleak.job.type", string(j.Type)),
				attribute.String("dutyleak.priority", j.Priority.String()),
				attribute.Int("dutyleak.retry_count", j.RetryCount),
				attribute.String("dutyleak.workspace_id", j.WorkspaceID),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}
