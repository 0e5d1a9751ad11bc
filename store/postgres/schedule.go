package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	dutyleak "github.com/Milo6x/dutyleak-app-sub004"
	"github.com/Milo6x/dutyleak-app-sub004/id"
	"github.com/Milo6x/dutyleak-app-sub004/job"
	"github.com/Milo6x/dutyleak-app-sub004/schedule"
)

// UpsertSchedule durably writes the full schedule entry. Reusing the
// name of a different entry violates the unique name index and reads
// back as ErrDuplicateSchedule.
func (m *Mirror) UpsertSchedule(ctx context.Context, e *schedule.Entry) error {
	_, err := m.pool.Exec(ctx, `
		INSERT INTO dutyleak_schedules (
			id, name, spec, job_type, payload, priority, workspace_id,
			enabled, last_fired_at, next_run_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12
		)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			spec = EXCLUDED.spec,
			job_type = EXCLUDED.job_type,
			payload = EXCLUDED.payload,
			priority = EXCLUDED.priority,
			workspace_id = EXCLUDED.workspace_id,
			enabled = EXCLUDED.enabled,
			last_fired_at = EXCLUDED.last_fired_at,
			next_run_at = EXCLUDED.next_run_at,
			updated_at = EXCLUDED.updated_at`,
		e.ID.String(), e.Name, e.Spec, string(e.JobType), []byte(e.Payload), int(e.Priority), e.WorkspaceID,
		e.Enabled, e.LastFiredAt, e.NextRunAt, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return dutyleak.ErrDuplicateSchedule
		}
		return fmt.Errorf("dutyleak/postgres: upsert schedule: %w", err)
	}
	return nil
}

// GetSchedule retrieves a schedule entry by ID.
func (m *Mirror) GetSchedule(ctx context.Context, scheduleID id.ScheduleID) (*schedule.Entry, error) {
	row := m.pool.QueryRow(ctx, `
		SELECT
			id, name, spec, job_type, payload, priority, workspace_id,
			enabled, last_fired_at, next_run_at, created_at, updated_at
		FROM dutyleak_schedules
		WHERE id = $1`,
		scheduleID.String(),
	)

	e, err := scanSchedule(row)
	if err != nil {
		if isNoRows(err) {
			return nil, dutyleak.ErrScheduleNotFound
		}
		return nil, fmt.Errorf("dutyleak/postgres: get schedule: %w", err)
	}
	return e, nil
}

// ListSchedules returns all schedule entries, oldest first.
func (m *Mirror) ListSchedules(ctx context.Context) ([]*schedule.Entry, error) {
	rows, err := m.pool.Query(ctx, `
		SELECT
			id, name, spec, job_type, payload, priority, workspace_id,
			enabled, last_fired_at, next_run_at, created_at, updated_at
		FROM dutyleak_schedules
		ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("dutyleak/postgres: list schedules: %w", err)
	}
	defer rows.Close()

	var entries []*schedule.Entry
	for rows.Next() {
		e, scanErr := scanSchedule(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("dutyleak/postgres: scan schedule row: %w", scanErr)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dutyleak/postgres: iterate schedule rows: %w", err)
	}
	return entries, nil
}

// DeleteSchedule removes a schedule entry by ID.
func (m *Mirror) DeleteSchedule(ctx context.Context, scheduleID id.ScheduleID) error {
	tag, err := m.pool.Exec(ctx,
		`DELETE FROM dutyleak_schedules WHERE id = $1`,
		scheduleID.String(),
	)
	if err != nil {
		return fmt.Errorf("dutyleak/postgres: delete schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return dutyleak.ErrScheduleNotFound
	}
	return nil
}

// scanSchedule scans a single schedule row.
func scanSchedule(row pgx.Row) (*schedule.Entry, error) {
	var (
		e        schedule.Entry
		idStr    string
		typeStr  string
		priority int
		payload  []byte
	)
	err := row.Scan(
		&idStr, &e.Name, &e.Spec, &typeStr, &payload, &priority, &e.WorkspaceID,
		&e.Enabled, &e.LastFiredAt, &e.NextRunAt, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.JobType = job.Type(typeStr)
	e.Priority = job.Priority(priority)
	e.Payload = payload

	parsedID, parseErr := id.ParseScheduleID(idStr)
	if parseErr != nil {
		return nil, fmt.Errorf("dutyleak/postgres: parse schedule id %q: %w", idStr, parseErr)
	}
	e.ID = parsedID

	return &e, nil
}
