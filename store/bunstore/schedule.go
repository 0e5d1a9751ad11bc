package bunstore

import (
	"context"
	"fmt"

	dutyleak "github.com/Milo6x/dutyleak-app-sub004"
	"github.com/Milo6x/dutyleak-app-sub004/id"
	"github.com/Milo6x/dutyleak-app-sub004/schedule"
)

// UpsertSchedule writes the full schedule row, inserting or replacing
// by ID. A unique index on name rejects a second entry with the same
// name under a different ID.
func (m *Mirror) UpsertSchedule(ctx context.Context, e *schedule.Entry) error {
	mdl := toScheduleModel(e)

	_, err := m.db.NewInsert().
		Model(mdl).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("spec = EXCLUDED.spec").
		Set("job_type = EXCLUDED.job_type").
		Set("payload = EXCLUDED.payload").
		Set("priority = EXCLUDED.priority").
		Set("workspace_id = EXCLUDED.workspace_id").
		Set("enabled = EXCLUDED.enabled").
		Set("last_fired_at = EXCLUDED.last_fired_at").
		Set("next_run_at = EXCLUDED.next_run_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		if isDuplicateKey(err) {
			return dutyleak.ErrDuplicateSchedule
		}
		return fmt.Errorf("dutyleak/bun: upsert schedule %s: %w", e.ID, err)
	}
	return nil
}

// GetSchedule loads a single schedule entry by ID.
func (m *Mirror) GetSchedule(ctx context.Context, scheduleID id.ScheduleID) (*schedule.Entry, error) {
	mdl := new(scheduleModel)
	err := m.db.NewSelect().
		Model(mdl).
		Where("id = ?", scheduleID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, dutyleak.ErrScheduleNotFound
		}
		return nil, fmt.Errorf("dutyleak/bun: get schedule %s: %w", scheduleID, err)
	}
	return fromScheduleModel(mdl)
}

// ListSchedules returns every schedule entry, oldest first.
func (m *Mirror) ListSchedules(ctx context.Context) ([]*schedule.Entry, error) {
	var models []scheduleModel
	err := m.db.NewSelect().
		Model(&models).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("dutyleak/bun: list schedules: %w", err)
	}

	entries := make([]*schedule.Entry, 0, len(models))
	for i := range models {
		e, err := fromScheduleModel(&models[i])
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// DeleteSchedule removes a schedule entry by ID.
func (m *Mirror) DeleteSchedule(ctx context.Context, scheduleID id.ScheduleID) error {
	res, err := m.db.NewDelete().
		Model((*scheduleModel)(nil)).
		Where("id = ?", scheduleID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("dutyleak/bun: delete schedule %s: %w", scheduleID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("dutyleak/bun: delete schedule %s: %w", scheduleID, err)
	}
	if affected == 0 {
		return dutyleak.ErrScheduleNotFound
	}
	return nil
}
