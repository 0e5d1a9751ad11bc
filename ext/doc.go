// Package ext defines the extension system for the job engine.
//
// Extensions are notified of lifecycle events and can react to them —
// writing audit trails, sending notifications, recording metrics.
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	// Opt in to specific hooks by implementing their interfaces.
//	func (e *MyExtension) OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error {
//	    log.Printf("job %s completed in %s", j.ID, elapsed)
//	    return nil
//	}
//
// # Job Lifecycle Hooks
//
//   - [JobEnqueued] — job was accepted into the engine
//   - [JobStarted] — a worker slot began executing the job
//   - [JobProgressed] — a running job reported new progress counters
//   - [JobCompleted] — job finished successfully
//   - [JobFailed] — an attempt failed (fires before the retry decision)
//   - [JobRetrying] — the failed job will be retried after a delay
//   - [JobDeadLettered] — retries are exhausted; the job is parked
//   - [JobCancelled] — the job reached the cancelled state
//   - [JobPaused] — a running job yielded to a pause request
//   - [JobResumed] — a paused job re-entered a worker slot
//
// # Other Hooks
//
//   - [ScheduleFired] — a recurring schedule enqueued a job
//   - [Shutdown] — the engine is shutting down gracefully
//
// The [Registry] fans out each event to all registered extensions that
// implement the corresponding hook interface. Hook errors are logged
// and swallowed; an extension can never stall job execution.
package ext
