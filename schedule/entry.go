package schedule

import (
	"encoding/json"
	"time"

	dutyleak "github.com/Milo6x/dutyleak-app-sub004"
	"github.com/Milo6x/dutyleak-app-sub004/id"
	"github.com/Milo6x/dutyleak-app-sub004/job"
)

// Entry is a named recurring job template. Each time it comes due, the
// runner enqueues one job with the entry's type, payload, priority, and
// workspace.
type Entry struct {
	dutyleak.Entity

	ID   id.ScheduleID `json:"id"`
	Name string        `json:"name"`

	// Spec is a standard 5-field cron expression (minute precision) or
	// a descriptor such as "@hourly" or "@every 30m".
	Spec string `json:"spec"`

	JobType job.Type        `json:"jobType"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// Priority is the priority fired jobs are enqueued with. The zero
	// value is PriorityLow.
	Priority    job.Priority `json:"priority"`
	WorkspaceID string       `json:"workspaceId"`

	Enabled bool `json:"enabled"`

	LastFiredAt *time.Time `json:"lastFiredAt,omitempty"`
	NextRunAt   *time.Time `json:"nextRunAt,omitempty"`
}

// Clone returns a deep copy. The runner and stores hand out clones so
// callers can never mutate live schedule state through a snapshot.
func (e *Entry) Clone() *Entry {
	cp := *e
	if e.Payload != nil {
		cp.Payload = append(json.RawMessage(nil), e.Payload...)
	}
	if e.LastFiredAt != nil {
		t := *e.LastFiredAt
		cp.LastFiredAt = &t
	}
	if e.NextRunAt != nil {
		t := *e.NextRunAt
		cp.NextRunAt = &t
	}
	return &cp
}
