package audithook

// Audit event actions. Each constant corresponds to one ext lifecycle hook
// and becomes the Action field of the audit event.
const (
	ActionJobEnqueued     = "job.enqueued"
	ActionJobStarted      = "job.started"
	ActionJobCompleted    = "job.completed"
	ActionJobFailed       = "job.failed"
	ActionJobRetrying     = "job.retrying"
	ActionJobDeadLettered = "job.dead_lettered"
	ActionJobCancelled    = "job.cancelled"
	ActionJobPaused       = "job.paused"
	ActionJobResumed      = "job.resumed"
	ActionScheduleFired   = "schedule.fired"
)

// Audit event categories group related actions.
const (
	CategoryJob      = "dutyleak.job"
	CategorySchedule = "dutyleak.schedule"
)

// Resource types used as the Resource field in audit events.
const (
	ResourceJob      = "job"
	ResourceSchedule = "schedule_entry"
)

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionJobEnqueued,
		ActionJobStarted,
		ActionJobCompleted,
		ActionJobFailed,
		ActionJobRetrying,
		ActionJobDeadLettered,
		ActionJobCancelled,
		ActionJobPaused,
		ActionJobResumed,
		ActionScheduleFired,
	}
}
