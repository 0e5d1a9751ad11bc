package bunstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/Milo6x/dutyleak-app-sub004/id"
	"github.com/Milo6x/dutyleak-app-sub004/job"
	"github.com/Milo6x/dutyleak-app-sub004/schedule"
)

// jobModel is the bun row mapping for dutyleak_jobs. Durations are
// stored as nanoseconds; payload, result and failure are JSONB.
type jobModel struct {
	bun.BaseModel `bun:"table:dutyleak_jobs"`

	ID                string     `bun:"id,pk"`
	Type              string     `bun:"type,notnull"`
	Status            string     `bun:"status,notnull"`
	Priority          int        `bun:"priority,notnull"`
	WorkspaceID       string     `bun:"workspace_id,notnull"`
	Payload           []byte     `bun:"payload,type:jsonb"`
	Result            []byte     `bun:"result,type:jsonb"`
	ProgressTotal     int        `bun:"progress_total,notnull"`
	ProgressCompleted int        `bun:"progress_completed,notnull"`
	ProgressFailed    int        `bun:"progress_failed,notnull"`
	ProgressCurrent   string     `bun:"progress_current,notnull"`
	Failure           []byte     `bun:"failure,type:jsonb"`
	MaxRetries        int        `bun:"max_retries,notnull"`
	RetryCount        int        `bun:"retry_count,notnull"`
	NotBefore         time.Time  `bun:"not_before,notnull"`
	EstimatedDuration int64      `bun:"estimated_duration,notnull"`
	ActualDuration    int64      `bun:"actual_duration,notnull"`
	StartedAt         *time.Time `bun:"started_at"`
	CompletedAt       *time.Time `bun:"completed_at"`
	CreatedAt         time.Time  `bun:"created_at,notnull"`
	UpdatedAt         time.Time  `bun:"updated_at,notnull"`
}

func toJobModel(j *job.Job) (*jobModel, error) {
	var failure []byte
	if j.Failure != nil {
		b, err := json.Marshal(j.Failure)
		if err != nil {
			return nil, fmt.Errorf("dutyleak/bun: marshal failure: %w", err)
		}
		failure = b
	}
	return &jobModel{
		ID:                j.ID.String(),
		Type:              string(j.Type),
		Status:            string(j.Status),
		Priority:          int(j.Priority),
		WorkspaceID:       j.WorkspaceID,
		Payload:           []byte(j.Payload),
		Result:            []byte(j.Result),
		ProgressTotal:     j.Progress.Total,
		ProgressCompleted: j.Progress.Completed,
		ProgressFailed:    j.Progress.Failed,
		ProgressCurrent:   j.Progress.Current,
		Failure:           failure,
		MaxRetries:        j.MaxRetries,
		RetryCount:        j.RetryCount,
		NotBefore:         j.NotBefore,
		EstimatedDuration: j.EstimatedDuration.Nanoseconds(),
		ActualDuration:    j.ActualDuration.Nanoseconds(),
		StartedAt:         j.StartedAt,
		CompletedAt:       j.CompletedAt,
		CreatedAt:         j.CreatedAt,
		UpdatedAt:         j.UpdatedAt,
	}, nil
}

func fromJobModel(m *jobModel) (*job.Job, error) {
	jobID, err := id.ParseJobID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("dutyleak/bun: parse job id %q: %w", m.ID, err)
	}

	j := &job.Job{
		ID:          jobID,
		Type:        job.Type(m.Type),
		Status:      job.Status(m.Status),
		Priority:    job.Priority(m.Priority),
		WorkspaceID: m.WorkspaceID,
		Progress: job.Progress{
			Total:     m.ProgressTotal,
			Completed: m.ProgressCompleted,
			Failed:    m.ProgressFailed,
			Current:   m.ProgressCurrent,
		},
		MaxRetries:        m.MaxRetries,
		RetryCount:        m.RetryCount,
		NotBefore:         m.NotBefore,
		EstimatedDuration: time.Duration(m.EstimatedDuration),
		ActualDuration:    time.Duration(m.ActualDuration),
		StartedAt:         m.StartedAt,
		CompletedAt:       m.CompletedAt,
	}
	j.CreatedAt = m.CreatedAt
	j.UpdatedAt = m.UpdatedAt
	if len(m.Payload) > 0 {
		j.Payload = json.RawMessage(m.Payload)
	}
	if len(m.Result) > 0 {
		j.Result = json.RawMessage(m.Result)
	}
	if len(m.Failure) > 0 {
		var f job.Failure
		if err := json.Unmarshal(m.Failure, &f); err != nil {
			return nil, fmt.Errorf("dutyleak/bun: unmarshal failure for %s: %w", m.ID, err)
		}
		j.Failure = &f
	}
	return j, nil
}

// scheduleModel is the bun row mapping for dutyleak_schedules.
type scheduleModel struct {
	bun.BaseModel `bun:"table:dutyleak_schedules"`

	ID          string     `bun:"id,pk"`
	Name        string     `bun:"name,notnull"`
	Spec        string     `bun:"spec,notnull"`
	JobType     string     `bun:"job_type,notnull"`
	Payload     []byte     `bun:"payload,type:jsonb"`
	Priority    int        `bun:"priority,notnull"`
	WorkspaceID string     `bun:"workspace_id,notnull"`
	Enabled     bool       `bun:"enabled,notnull"`
	LastFiredAt *time.Time `bun:"last_fired_at"`
	NextRunAt   *time.Time `bun:"next_run_at"`
	CreatedAt   time.Time  `bun:"created_at,notnull"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull"`
}

func toScheduleModel(e *schedule.Entry) *scheduleModel {
	return &scheduleModel{
		ID:          e.ID.String(),
		Name:        e.Name,
		Spec:        e.Spec,
		JobType:     string(e.JobType),
		Payload:     []byte(e.Payload),
		Priority:    int(e.Priority),
		WorkspaceID: e.WorkspaceID,
		Enabled:     e.Enabled,
		LastFiredAt: e.LastFiredAt,
		NextRunAt:   e.NextRunAt,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func fromScheduleModel(m *scheduleModel) (*schedule.Entry, error) {
	scheduleID, err := id.ParseScheduleID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("dutyleak/bun: parse schedule id %q: %w", m.ID, err)
	}

	e := &schedule.Entry{
		ID:          scheduleID,
		Name:        m.Name,
		Spec:        m.Spec,
		JobType:     job.Type(m.JobType),
		Priority:    job.Priority(m.Priority),
		WorkspaceID: m.WorkspaceID,
		Enabled:     m.Enabled,
		LastFiredAt: m.LastFiredAt,
		NextRunAt:   m.NextRunAt,
	}
	e.CreatedAt = m.CreatedAt
	e.UpdatedAt = m.UpdatedAt
	if len(m.Payload) > 0 {
		e.Payload = json.RawMessage(m.Payload)
	}
	return e, nil
}
