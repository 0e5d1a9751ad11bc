package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	dutyleak "github.com/Milo6x/dutyleak-app-sub004"
	"github.com/Milo6x/dutyleak-app-sub004/id"
	"github.com/Milo6x/dutyleak-app-sub004/schedule"
)

// AddSchedule registers a recurring schedule entry. The job type must be
// registered and the payload must pass its validation; the entry fires
// enabled from the next matching instant.
func (eng *Engine) AddSchedule(ctx context.Context, e *schedule.Entry) error {
	if eng.closed.Load() {
		return dutyleak.ErrEngineClosed
	}
	if e.WorkspaceID == "" {
		return dutyleak.ErrMissingWorkspace
	}
	entry, ok := eng.registry.Get(e.JobType)
	if !ok {
		return fmt.Errorf("%w: %q", dutyleak.ErrUnknownType, e.JobType)
	}
	if entry.Validate != nil {
		if err := entry.Validate(e.Payload); err != nil {
			return err
		}
	}
	return eng.runner.Add(ctx, e)
}

// RegisterSchedule declares a typed recurring schedule. Registering the
// same name twice is a no-op, so applications can declare their schedules
// unconditionally at startup.
func RegisterSchedule[T any](ctx context.Context, eng *Engine, def *schedule.Definition[T]) error {
	raw, err := json.Marshal(def.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload for schedule %q: %w", def.Name, err)
	}
	e := &schedule.Entry{
		Name:        def.Name,
		Spec:        def.Spec,
		JobType:     def.JobType,
		Payload:     raw,
		Priority:    def.Priority,
		WorkspaceID: def.WorkspaceID,
	}
	if err := eng.AddSchedule(ctx, e); err != nil {
		if errors.Is(err, dutyleak.ErrDuplicateSchedule) {
			return nil
		}
		return fmt.Errorf("register schedule %q: %w", def.Name, err)
	}
	eng.logger.Info("schedule registered",
		"name", def.Name,
		"spec", def.Spec,
		"job_type", def.JobType,
	)
	return nil
}

// RemoveSchedule deletes a schedule entry. Jobs already enqueued by the
// entry are unaffected.
func (eng *Engine) RemoveSchedule(ctx context.Context, scheduleID id.ScheduleID) error {
	return eng.runner.Remove(ctx, scheduleID)
}

// GetSchedule returns a snapshot of one schedule entry.
func (eng *Engine) GetSchedule(ctx context.Context, scheduleID id.ScheduleID) (*schedule.Entry, error) {
	return eng.runner.Get(ctx, scheduleID)
}

// Schedules returns snapshots of all schedule entries, sorted by name.
func (eng *Engine) Schedules(ctx context.Context) []*schedule.Entry {
	return eng.runner.List(ctx)
}

// EnableSchedule resumes firing a disabled schedule from the next
// matching instant; missed occurrences are not backfilled.
func (eng *Engine) EnableSchedule(ctx context.Context, scheduleID id.ScheduleID) error {
	return eng.runner.Enable(ctx, scheduleID)
}

// DisableSchedule stops a schedule from firing without deleting it.
func (eng *Engine) DisableSchedule(ctx context.Context, scheduleID id.ScheduleID) error {
	return eng.runner.Disable(ctx, scheduleID)
}
