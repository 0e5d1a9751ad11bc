package schedule

import (
	"context"

	"github.com/Milo6x/dutyleak-app-sub004/id"
)

// Store defines the persistence contract for schedule entries. The job
// mirrors implement it alongside job.Mirror so one backend carries both
// record kinds.
type Store interface {
	// UpsertSchedule persists the full entry, inserting or replacing.
	UpsertSchedule(ctx context.Context, e *Entry) error

	// GetSchedule retrieves an entry by ID. Returns
	// dutyleak.ErrScheduleNotFound when absent.
	GetSchedule(ctx context.Context, scheduleID id.ScheduleID) (*Entry, error)

	// ListSchedules returns all entries.
	ListSchedules(ctx context.Context) ([]*Entry, error)

	// DeleteSchedule removes an entry by ID. Returns
	// dutyleak.ErrScheduleNotFound when absent.
	DeleteSchedule(ctx context.Context, scheduleID id.ScheduleID) error
}
