package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/Milo6x/dutyleak-app-sub004/job"
)

// Timeout returns middleware that enforces a per-type execution deadline.
// Deadlines live in the registration options rather than on the job record,
// so the middleware takes a lookup instead of reading a field. A zero or
// negative duration (or a nil lookup) disables the deadline for that job.
// When the deadline expires the context is cancelled and the handler should
// return context.DeadlineExceeded, which the executor records as a timeout
// failure.
func Timeout(logger *slog.Logger, timeoutFor func(job.Type) time.Duration) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		var d time.Duration
		if timeoutFor != nil {
			d = timeoutFor(j.Type)
		}
		if d <= 0 {
			return next(ctx)
		}

		logger.Debug("job timeout set",
			slog.String("job_id", j.ID.String()),
			slog.Duration("timeout", d),
		)
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
		return next(ctx)
	}
}
