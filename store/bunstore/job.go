package bunstore

import (
	"context"
	"fmt"

	dutyleak "github.com/Milo6x/dutyleak-app-sub004"
	"github.com/Milo6x/dutyleak-app-sub004/id"
	"github.com/Milo6x/dutyleak-app-sub004/job"
)

// UpsertJob writes the full job row, inserting or replacing by ID.
// created_at is kept from the original insert; everything else follows
// the in-memory copy.
func (m *Mirror) UpsertJob(ctx context.Context, j *job.Job) error {
	mdl, err := toJobModel(j)
	if err != nil {
		return err
	}

	_, err = m.db.NewInsert().
		Model(mdl).
		On("CONFLICT (id) DO UPDATE").
		Set("type = EXCLUDED.type").
		Set("status = EXCLUDED.status").
		Set("priority = EXCLUDED.priority").
		Set("workspace_id = EXCLUDED.workspace_id").
		Set("payload = EXCLUDED.payload").
		Set("result = EXCLUDED.result").
		Set("progress_total = EXCLUDED.progress_total").
		Set("progress_completed = EXCLUDED.progress_completed").
		Set("progress_failed = EXCLUDED.progress_failed").
		Set("progress_current = EXCLUDED.progress_current").
		Set("failure = EXCLUDED.failure").
		Set("max_retries = EXCLUDED.max_retries").
		Set("retry_count = EXCLUDED.retry_count").
		Set("not_before = EXCLUDED.not_before").
		Set("estimated_duration = EXCLUDED.estimated_duration").
		Set("actual_duration = EXCLUDED.actual_duration").
		Set("started_at = EXCLUDED.started_at").
		Set("completed_at = EXCLUDED.completed_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("dutyleak/bun: upsert job %s: %w", j.ID, err)
	}
	return nil
}

// GetJob loads a single job by ID.
func (m *Mirror) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	mdl := new(jobModel)
	err := m.db.NewSelect().
		Model(mdl).
		Where("id = ?", jobID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, dutyleak.ErrJobNotFound
		}
		return nil, fmt.Errorf("dutyleak/bun: get job %s: %w", jobID, err)
	}
	return fromJobModel(mdl)
}

// JobsByStatus returns every job in the given status, oldest first.
// Bootstrap calls this once per status to rebuild the in-memory store
// after a restart.
func (m *Mirror) JobsByStatus(ctx context.Context, status job.Status) ([]*job.Job, error) {
	var models []jobModel
	err := m.db.NewSelect().
		Model(&models).
		Where("status = ?", string(status)).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("dutyleak/bun: jobs by status %s: %w", status, err)
	}

	jobs := make([]*job.Job, 0, len(models))
	for i := range models {
		j, err := fromJobModel(&models[i])
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}
