package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/Milo6x/dutyleak-app-sub004/job"
)

// Recover returns middleware that recovers from panics in the handler chain.
// A panic surfaces as a typed *job.Error with code "panic" so the failure
// recorded on the job keeps the stack trace; the executor then treats it
// like any other attempt failure.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) (retErr error) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				logger.Error("job handler panicked",
					slog.String("job_type", string(j.Type)),
					slog.String("job_id", j.ID.String()),
					slog.Any("panic", r),
					slog.String("stack", stack),
				)
				retErr = job.NewError(job.CodePanic, fmt.Sprintf("%v", r)).
					WithDetail("stack", stack)
			}
		}()
		return next(ctx)
	}
}
