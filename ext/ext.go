// Package ext defines the extension system for the job engine.
// Extensions are notified of lifecycle events (job enqueued, completed,
// failed, etc.) and can react to them — audit trails, notifications,
// metrics, tracing.
//
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
package ext

import (
	"context"
	"time"

	"github.com/Milo6x/dutyleak-app-sub004/id"
	"github.com/Milo6x/dutyleak-app-sub004/job"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Job lifecycle hooks
// ──────────────────────────────────────────────────

// JobEnqueued is called after a job is successfully enqueued.
type JobEnqueued interface {
	OnJobEnqueued(ctx context.Context, j *job.Job) error
}

// JobStarted is called when a worker slot begins executing a job.
type JobStarted interface {
	OnJobStarted(ctx context.Context, j *job.Job) error
}

// JobProgressed is called after a running job reports new progress
// counters. High-volume handlers can fire this often; implementations
// should stay cheap.
type JobProgressed interface {
	OnJobProgressed(ctx context.Context, j *job.Job, p job.Progress) error
}

// JobCompleted is called after a job finishes successfully.
type JobCompleted interface {
	OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error
}

// JobFailed is called after every failed attempt, before the retry
// decision is made.
type JobFailed interface {
	OnJobFailed(ctx context.Context, j *job.Job, err error) error
}

// JobRetrying is called when a failed job is scheduled for another
// attempt after a backoff delay.
type JobRetrying interface {
	OnJobRetrying(ctx context.Context, j *job.Job, attempt int, notBefore time.Time) error
}

// JobDeadLettered is called when a job exhausts its retries and parks.
type JobDeadLettered interface {
	OnJobDeadLettered(ctx context.Context, j *job.Job, err error) error
}

// JobCancelled is called when a job reaches the cancelled state,
// whether it was cancelled while waiting or while running.
type JobCancelled interface {
	OnJobCancelled(ctx context.Context, j *job.Job) error
}

// JobPaused is called when a running job yields to a pause request.
type JobPaused interface {
	OnJobPaused(ctx context.Context, j *job.Job) error
}

// JobResumed is called when a paused job re-enters a worker slot.
type JobResumed interface {
	OnJobResumed(ctx context.Context, j *job.Job) error
}

// ──────────────────────────────────────────────────
// Other lifecycle hooks
// ──────────────────────────────────────────────────

// ScheduleFired is called when a recurring schedule fires and enqueues
// a job.
type ScheduleFired interface {
	OnScheduleFired(ctx context.Context, scheduleName string, jobID id.JobID) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
