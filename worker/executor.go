// Package worker provides the job execution engine — an Executor that
// runs one claimed job through middleware and the registered handler
// and converts the outcome into a status transition, and a Pool that
// bounds how many executions run at once and carries cancellation into
// them.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	dutyleak "github.com/Milo6x/dutyleak-app-sub004"
	"github.com/Milo6x/dutyleak-app-sub004/ext"
	"github.com/Milo6x/dutyleak-app-sub004/id"
	"github.com/Milo6x/dutyleak-app-sub004/job"
	"github.com/Milo6x/dutyleak-app-sub004/middleware"
	"github.com/Milo6x/dutyleak-app-sub004/retry"
	"github.com/Milo6x/dutyleak-app-sub004/store"
)

// Executor runs a single job attempt: handler lookup, middleware chain,
// progress plumbing, then the outcome transition (completed, cancelled,
// paused, or failed plus the retry decision).
type Executor struct {
	registry   *job.Registry
	store      *store.Store
	policy     *retry.Policy
	extensions *ext.Registry
	mw         middleware.Middleware
	logger     *slog.Logger
}

// NewExecutor creates an Executor with the given dependencies.
func NewExecutor(
	registry *job.Registry,
	st *store.Store,
	policy *retry.Policy,
	extensions *ext.Registry,
	logger *slog.Logger,
	mws ...middleware.Middleware,
) *Executor {
	return &Executor{
		registry:   registry,
		store:      st,
		policy:     policy,
		extensions: extensions,
		mw:         middleware.Chain(mws...),
		logger:     logger,
	}
}

// Execute runs a claimed (already running) job to its next status.
// On success: running→completed, result stored, JobCompleted emitted.
// On a cancel request: running→cancelled.
// On a pause yield: running→paused with progress kept.
// On failure: running→failed, then the retry policy either requeues
// with backoff or parks the job in dead_letter.
// When engine shutdown cancels the context mid-attempt, the job is left
// running; the next start's recovery pass re-pends it without charging
// a retry.
func (e *Executor) Execute(ctx context.Context, j *job.Job) error {
	entry, ok := e.registry.Get(j.Type)
	if !ok {
		// The registered set can shrink across restarts; a recovered
		// job whose type is gone fails like any other attempt.
		return e.handleFailure(ctx, j, fmt.Errorf("%w: %q", dutyleak.ErrNoHandler, j.Type), 0)
	}

	// Progress writes go through the store first, then fan out to
	// extensions. The reporter is seeded with current counters so a
	// resumed job continues where it paused.
	rep := job.NewReporter(j.ID, j.Progress, &progressFan{
		store:      e.store,
		extensions: e.extensions,
		j:          j,
	}, e.store)

	start := time.Now()

	// The terminal handler invokes the registered job handler.
	terminal := func(ctx context.Context) error {
		return entry.Handler(ctx, j.Payload, rep)
	}

	err := e.mw(ctx, j, terminal)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		// Success wins over a late cancel request.
		return e.handleSuccess(ctx, j, rep, elapsed)

	case errors.Is(err, dutyleak.ErrCancelRequested) || e.store.CancelRequested(j.ID):
		return e.handleCancelled(ctx, j, elapsed)

	case errors.Is(err, dutyleak.ErrPauseRequested):
		return e.handlePaused(ctx, j, elapsed)

	case ctx.Err() != nil:
		// Shutdown interrupted the attempt. Interruption is not a
		// failure: leave the job running in the mirror for recovery.
		e.logger.Info("job interrupted by shutdown",
			slog.String("job_id", j.ID.String()),
			slog.String("job_type", string(j.Type)),
		)
		return nil

	default:
		return e.handleFailure(ctx, j, err, elapsed)
	}
}

// handleSuccess commits running→completed with the result payload.
func (e *Executor) handleSuccess(ctx context.Context, j *job.Job, rep *job.Reporter, elapsed time.Duration) error {
	ctx = context.WithoutCancel(ctx)
	now := time.Now().UTC()

	updated, err := e.store.ApplyTransition(ctx, j.ID, job.StatusRunning, job.StatusCompleted, func(cur *job.Job) {
		cur.CompletedAt = &now
		cur.ActualDuration += elapsed
		if result := rep.Result(); result != nil {
			cur.Result = result
		}
	})
	if err != nil {
		e.logger.Error("failed to complete job",
			slog.String("job_id", j.ID.String()),
			slog.String("job_type", string(j.Type)),
			slog.String("error", err.Error()),
		)
		return err
	}

	e.extensions.EmitJobCompleted(ctx, updated, elapsed)
	return nil
}

// handleCancelled commits running→cancelled after a cancel request
// reached the handler.
func (e *Executor) handleCancelled(ctx context.Context, j *job.Job, elapsed time.Duration) error {
	ctx = context.WithoutCancel(ctx)
	now := time.Now().UTC()

	updated, err := e.store.ApplyTransition(ctx, j.ID, job.StatusRunning, job.StatusCancelled, func(cur *job.Job) {
		cur.CompletedAt = &now
		cur.ActualDuration += elapsed
	})
	if err != nil {
		e.logger.Error("failed to cancel job",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
		return err
	}

	e.extensions.EmitJobCancelled(ctx, updated)

	e.logger.Info("job cancelled",
		slog.String("job_id", j.ID.String()),
		slog.String("job_type", string(j.Type)),
	)
	return nil
}

// handlePaused commits running→paused. Progress stays on the record so
// a later resume picks up from the same counters.
func (e *Executor) handlePaused(ctx context.Context, j *job.Job, elapsed time.Duration) error {
	ctx = context.WithoutCancel(ctx)

	updated, err := e.store.ApplyTransition(ctx, j.ID, job.StatusRunning, job.StatusPaused, func(cur *job.Job) {
		cur.ActualDuration += elapsed
	})
	if err != nil {
		e.logger.Error("failed to pause job",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
		return err
	}

	e.extensions.EmitJobPaused(ctx, updated)

	e.logger.Info("job paused",
		slog.String("job_id", j.ID.String()),
		slog.String("job_type", string(j.Type)),
		slog.Int("completed", updated.Progress.Completed),
		slog.Int("total", updated.Progress.Total),
	)
	return nil
}

// handleFailure records the failed attempt, then asks the retry policy
// whether the job gets another run or parks in dead_letter. The retry
// counter advances in the same atomic transition as the failure record,
// so a crash between the two steps cannot double-charge an attempt.
func (e *Executor) handleFailure(ctx context.Context, j *job.Job, handlerErr error, elapsed time.Duration) error {
	ctx = context.WithoutCancel(ctx)
	failure := job.FailureFromError(handlerErr)

	failed, err := e.store.ApplyTransition(ctx, j.ID, job.StatusRunning, job.StatusFailed, func(cur *job.Job) {
		cur.Failure = failure
		cur.RetryCount++
		cur.ActualDuration += elapsed
	})
	if err != nil {
		e.logger.Error("failed to record job failure",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
		return err
	}

	e.extensions.EmitJobFailed(ctx, failed, handlerErr)

	decision := e.policy.Decide(failed.RetryCount, failed.MaxRetries)
	if decision.DeadLetter {
		return e.deadLetter(ctx, failed, handlerErr)
	}
	return e.scheduleRetry(ctx, failed, handlerErr, decision.Delay)
}

// scheduleRetry requeues a failed job with a backoff delay.
func (e *Executor) scheduleRetry(ctx context.Context, j *job.Job, handlerErr error, delay time.Duration) error {
	notBefore := time.Now().UTC().Add(delay)

	pending, err := e.store.ApplyTransition(ctx, j.ID, job.StatusFailed, job.StatusPending, func(cur *job.Job) {
		cur.NotBefore = notBefore
		cur.StartedAt = nil
	})
	if err != nil {
		e.logger.Error("failed to requeue job for retry",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
		return err
	}

	e.extensions.EmitJobRetrying(ctx, pending, pending.RetryCount, notBefore)

	e.logger.Info("job scheduled for retry",
		slog.String("job_id", j.ID.String()),
		slog.String("job_type", string(j.Type)),
		slog.Int("attempt", pending.RetryCount),
		slog.Int("max_retries", pending.MaxRetries),
		slog.Duration("delay", delay),
	)

	return handlerErr
}

// deadLetter parks a job whose retries are exhausted.
func (e *Executor) deadLetter(ctx context.Context, j *job.Job, handlerErr error) error {
	parked, err := e.store.ApplyTransition(ctx, j.ID, job.StatusFailed, job.StatusDeadLetter, nil)
	if err != nil {
		e.logger.Error("failed to dead-letter job",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
		return err
	}

	e.extensions.EmitJobDeadLettered(ctx, parked, handlerErr)

	e.logger.Warn("job dead-lettered after exhausting retries",
		slog.String("job_id", j.ID.String()),
		slog.String("job_type", string(j.Type)),
		slog.Int("retry_count", parked.RetryCount),
		slog.String("error", handlerErr.Error()),
	)

	return handlerErr
}

// progressFan is the reporter's sink: write through the store first,
// then notify extensions with the fresh counters.
type progressFan struct {
	store      *store.Store
	extensions *ext.Registry
	j          *job.Job
}

func (f *progressFan) UpdateProgress(ctx context.Context, jobID id.JobID, p job.Progress) error {
	if err := f.store.UpdateProgress(ctx, jobID, p); err != nil {
		return err
	}
	f.extensions.EmitJobProgressed(ctx, f.j, p)
	return nil
}
