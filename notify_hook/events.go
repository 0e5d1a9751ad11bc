package notifyhook

// Terminal outcome event types. Each constant maps to one ext lifecycle
// hook and is used as the Notification.Event when sending.
const (
	EventJobCompleted    = "dutyleak.job.completed"
	EventJobDeadLettered = "dutyleak.job.dead_lettered"
	EventJobCancelled    = "dutyleak.job.cancelled"
)

// AllEvents returns every event type this extension can emit.
func AllEvents() []string {
	return []string{
		EventJobCompleted,
		EventJobDeadLettered,
		EventJobCancelled,
	}
}
