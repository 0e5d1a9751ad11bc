// Package schedule provides recurring job schedules.
//
// An [Entry] is a named template: a cron spec plus the job type,
// payload, priority, and workspace to enqueue each time the spec comes
// due. The [Runner] evaluates entries on a tick loop, enqueues one job
// per due entry through the engine, and advances NextRunAt.
//
// # Specs
//
// Specs use the standard 5-field cron syntax (minute precision) or
// descriptors:
//
//	"0 6 * * *"     every day at 06:00 UTC
//	"*/15 * * * *"  every 15 minutes
//	"@hourly"       descriptor form
//	"@every 30m"    fixed interval
//
// # Catch-up policy
//
// An entry that is overdue when the runner looks at it (after downtime,
// or after re-enabling) fires exactly once and then advances from the
// current time. Missed windows are never replayed.
//
// # Persistence
//
// Entries live in an authoritative in-memory map with write-through
// persistence via [Store], the same shape the job store has. The job
// mirrors implement Store alongside job.Mirror.
package schedule
