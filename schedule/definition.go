package schedule

import "github.com/Milo6x/dutyleak-app-sub004/job"

// Definition is a typed schedule definition. T is the payload type
// (must be JSON-serializable) every fired job receives.
type Definition[T any] struct {
	// Name is the unique identifier for this schedule.
	Name string

	// Spec is a cron expression (e.g., "0 6 * * *" or "@every 30m").
	Spec string

	// JobType is the job type to enqueue on each tick.
	JobType job.Type

	// Payload is the static payload enqueued with every fired job.
	Payload T

	// Priority is the priority fired jobs are enqueued with.
	Priority job.Priority

	// WorkspaceID scopes fired jobs to a workspace.
	WorkspaceID string
}
