package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	dutyleak "github.com/Milo6x/dutyleak-app-sub004"
	"github.com/Milo6x/dutyleak-app-sub004/id"
	"github.com/Milo6x/dutyleak-app-sub004/job"
)

// UpsertJob durably writes the full job record. The in-memory store is
// authoritative, so every write replaces the whole row.
func (m *Mirror) UpsertJob(ctx context.Context, j *job.Job) error {
	failure, err := marshalFailure(j.Failure)
	if err != nil {
		return fmt.Errorf("dutyleak/postgres: marshal failure: %w", err)
	}

	_, err = m.pool.Exec(ctx, `
		INSERT INTO dutyleak_jobs (
			id, type, status, priority, workspace_id, payload, result,
			progress_total, progress_completed, progress_failed, progress_current,
			failure, max_retries, retry_count, not_before,
			estimated_duration, actual_duration,
			started_at, completed_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11,
			$12, $13, $14, $15,
			$16, $17,
			$18, $19, $20, $21
		)
		ON CONFLICT (id) DO UPDATE SET
			type = EXCLUDED.type,
			status = EXCLUDED.status,
			priority = EXCLUDED.priority,
			workspace_id = EXCLUDED.workspace_id,
			payload = EXCLUDED.payload,
			result = EXCLUDED.result,
			progress_total = EXCLUDED.progress_total,
			progress_completed = EXCLUDED.progress_completed,
			progress_failed = EXCLUDED.progress_failed,
			progress_current = EXCLUDED.progress_current,
			failure = EXCLUDED.failure,
			max_retries = EXCLUDED.max_retries,
			retry_count = EXCLUDED.retry_count,
			not_before = EXCLUDED.not_before,
			estimated_duration = EXCLUDED.estimated_duration,
			actual_duration = EXCLUDED.actual_duration,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at,
			updated_at = EXCLUDED.updated_at`,
		j.ID.String(), string(j.Type), string(j.Status), int(j.Priority), j.WorkspaceID,
		[]byte(j.Payload), []byte(j.Result),
		j.Progress.Total, j.Progress.Completed, j.Progress.Failed, j.Progress.Current,
		failure, j.MaxRetries, j.RetryCount, j.NotBefore,
		j.EstimatedDuration.Nanoseconds(), j.ActualDuration.Nanoseconds(),
		j.StartedAt, j.CompletedAt, j.CreatedAt, j.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("dutyleak/postgres: upsert job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (m *Mirror) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	row := m.pool.QueryRow(ctx, `
		SELECT
			id, type, status, priority, workspace_id, payload, result,
			progress_total, progress_completed, progress_failed, progress_current,
			failure, max_retries, retry_count, not_before,
			estimated_duration, actual_duration,
			started_at, completed_at, created_at, updated_at
		FROM dutyleak_jobs
		WHERE id = $1`,
		jobID.String(),
	)

	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, dutyleak.ErrJobNotFound
		}
		return nil, fmt.Errorf("dutyleak/postgres: get job: %w", err)
	}
	return j, nil
}

// JobsByStatus returns all jobs holding the given status, oldest first.
// Bootstrap calls this once per status to rebuild the in-memory store.
func (m *Mirror) JobsByStatus(ctx context.Context, status job.Status) ([]*job.Job, error) {
	rows, err := m.pool.Query(ctx, `
		SELECT
			id, type, status, priority, workspace_id, payload, result,
			progress_total, progress_completed, progress_failed, progress_current,
			failure, max_retries, retry_count, not_before,
			estimated_duration, actual_duration,
			started_at, completed_at, created_at, updated_at
		FROM dutyleak_jobs
		WHERE status = $1
		ORDER BY created_at ASC`,
		string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("dutyleak/postgres: jobs by status: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// scanJob scans a single job row.
func scanJob(row pgx.Row) (*job.Job, error) {
	var (
		j          job.Job
		idStr      string
		typeStr    string
		statusStr  string
		priority   int
		payload    []byte
		result     []byte
		failureRaw []byte
		estNs      int64
		actNs      int64
	)
	err := row.Scan(
		&idStr, &typeStr, &statusStr, &priority, &j.WorkspaceID, &payload, &result,
		&j.Progress.Total, &j.Progress.Completed, &j.Progress.Failed, &j.Progress.Current,
		&failureRaw, &j.MaxRetries, &j.RetryCount, &j.NotBefore,
		&estNs, &actNs,
		&j.StartedAt, &j.CompletedAt, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	j.Type = job.Type(typeStr)
	j.Status = job.Status(statusStr)
	j.Priority = job.Priority(priority)
	j.Payload = payload
	j.Result = result
	j.EstimatedDuration = time.Duration(estNs)
	j.ActualDuration = time.Duration(actNs)

	if len(failureRaw) > 0 {
		var f job.Failure
		if unmarshalErr := json.Unmarshal(failureRaw, &f); unmarshalErr != nil {
			return nil, fmt.Errorf("dutyleak/postgres: unmarshal failure: %w", unmarshalErr)
		}
		j.Failure = &f
	}

	parsedID, parseErr := id.ParseJobID(idStr)
	if parseErr != nil {
		return nil, fmt.Errorf("dutyleak/postgres: parse job id %q: %w", idStr, parseErr)
	}
	j.ID = parsedID

	return &j, nil
}

// collectJobs collects all jobs from query rows.
func collectJobs(rows pgx.Rows) ([]*job.Job, error) {
	var jobs []*job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("dutyleak/postgres: scan job row: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dutyleak/postgres: iterate job rows: %w", err)
	}
	return jobs, nil
}

// marshalFailure serializes the failure record for the JSONB column.
// A nil failure stores NULL.
func marshalFailure(f *job.Failure) ([]byte, error) {
	if f == nil {
		return nil, nil
	}
	return json.Marshal(f)
}
