package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	dutyleak "github.com/Milo6x/dutyleak-app-sub004"
	"github.com/Milo6x/dutyleak-app-sub004/id"
	"github.com/Milo6x/dutyleak-app-sub004/job"
)

// UpsertJob stores the job as a Hash and reindexes it under its current
// status Set. All fields are written on every call, so a cleared field
// (a retried job's failure, say) never resurrects after a restart.
func (m *Mirror) UpsertJob(ctx context.Context, j *job.Job) error {
	jID := j.ID.String()
	fields := jobToMap(j)

	pipe := m.client.TxPipeline()
	pipe.HSet(ctx, jobKey(jID), fields)
	pipe.SAdd(ctx, jobIDsKey, jID)
	for _, st := range job.Statuses() {
		if st == j.Status {
			pipe.SAdd(ctx, statusKey(st), jID)
		} else {
			pipe.SRem(ctx, statusKey(st), jID)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("dutyleak/redis: upsert job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (m *Mirror) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	return m.getJobByKey(ctx, jobKey(jobID.String()))
}

// JobsByStatus returns all jobs holding the given status, oldest first.
func (m *Mirror) JobsByStatus(ctx context.Context, status job.Status) ([]*job.Job, error) {
	ids, err := m.client.SMembers(ctx, statusKey(status)).Result()
	if err != nil {
		return nil, fmt.Errorf("dutyleak/redis: jobs by status smembers: %w", err)
	}

	jobs := make([]*job.Job, 0, len(ids))
	for _, jID := range ids {
		j, getErr := m.getJobByKey(ctx, jobKey(jID))
		if getErr != nil {
			if errors.Is(getErr, dutyleak.ErrJobNotFound) {
				continue // index raced a deletion
			}
			return nil, getErr
		}
		jobs = append(jobs, j)
	}

	sort.Slice(jobs, func(i, k int) bool {
		if jobs[i].CreatedAt.Equal(jobs[k].CreatedAt) {
			return jobs[i].ID.String() < jobs[k].ID.String()
		}
		return jobs[i].CreatedAt.Before(jobs[k].CreatedAt)
	})
	return jobs, nil
}

// ── helpers ──

func jobToMap(j *job.Job) map[string]interface{} {
	m := map[string]interface{}{
		"id":                 j.ID.String(),
		"type":               string(j.Type),
		"status":             string(j.Status),
		"priority":           strconv.Itoa(int(j.Priority)),
		"workspace_id":       j.WorkspaceID,
		"payload":            string(j.Payload),
		"result":             string(j.Result),
		"progress_total":     strconv.Itoa(j.Progress.Total),
		"progress_completed": strconv.Itoa(j.Progress.Completed),
		"progress_failed":    strconv.Itoa(j.Progress.Failed),
		"progress_current":   j.Progress.Current,
		"failure":            "",
		"max_retries":        strconv.Itoa(j.MaxRetries),
		"retry_count":        strconv.Itoa(j.RetryCount),
		"not_before":         j.NotBefore.Format(time.RFC3339Nano),
		"estimated_duration": strconv.FormatInt(int64(j.EstimatedDuration), 10),
		"actual_duration":    strconv.FormatInt(int64(j.ActualDuration), 10),
		"started_at":         "",
		"completed_at":       "",
		"created_at":         j.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":         j.UpdatedAt.Format(time.RFC3339Nano),
	}
	if j.Failure != nil {
		m["failure"] = marshalJSON(j.Failure)
	}
	if j.StartedAt != nil {
		m["started_at"] = j.StartedAt.Format(time.RFC3339Nano)
	}
	if j.CompletedAt != nil {
		m["completed_at"] = j.CompletedAt.Format(time.RFC3339Nano)
	}
	return m
}

func (m *Mirror) getJobByKey(ctx context.Context, key string) (*job.Job, error) {
	vals, err := m.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("dutyleak/redis: get job: %w", err)
	}
	if len(vals) == 0 {
		return nil, dutyleak.ErrJobNotFound
	}
	return mapToJob(vals)
}

func mapToJob(m map[string]string) (*job.Job, error) {
	jID, err := id.ParseJobID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("dutyleak/redis: parse job id: %w", err)
	}

	priority, _ := strconv.Atoi(m["priority"])                        //nolint:errcheck // best-effort parse from trusted Redis data
	progressTotal, _ := strconv.Atoi(m["progress_total"])             //nolint:errcheck // best-effort parse from trusted Redis data
	progressCompleted, _ := strconv.Atoi(m["progress_completed"])     //nolint:errcheck // best-effort parse from trusted Redis data
	progressFailed, _ := strconv.Atoi(m["progress_failed"])           //nolint:errcheck // best-effort parse from trusted Redis data
	maxRetries, _ := strconv.Atoi(m["max_retries"])                   //nolint:errcheck // best-effort parse from trusted Redis data
	retryCount, _ := strconv.Atoi(m["retry_count"])                   //nolint:errcheck // best-effort parse from trusted Redis data
	estimated, _ := strconv.ParseInt(m["estimated_duration"], 10, 64) //nolint:errcheck // best-effort parse from trusted Redis data
	actual, _ := strconv.ParseInt(m["actual_duration"], 10, 64)       //nolint:errcheck // best-effort parse from trusted Redis data

	notBefore, _ := time.Parse(time.RFC3339Nano, m["not_before"])     //nolint:errcheck // best-effort parse from trusted Redis data
	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"])     //nolint:errcheck // best-effort parse from trusted Redis data
	updatedAt, _ := time.Parse(time.RFC3339Nano, m["updated_at"])     //nolint:errcheck // best-effort parse from trusted Redis data

	j := &job.Job{
		Entity: dutyleak.Entity{
			CreatedAt: createdAt,
			UpdatedAt: updatedAt,
		},
		ID:          jID,
		Type:        job.Type(m["type"]),
		Status:      job.Status(m["status"]),
		Priority:    job.Priority(priority),
		WorkspaceID: m["workspace_id"],
		Progress: job.Progress{
			Total:     progressTotal,
			Completed: progressCompleted,
			Failed:    progressFailed,
			Current:   m["progress_current"],
		},
		MaxRetries:        maxRetries,
		RetryCount:        retryCount,
		NotBefore:         notBefore,
		EstimatedDuration: time.Duration(estimated),
		ActualDuration:    time.Duration(actual),
	}

	if v := m["payload"]; v != "" {
		j.Payload = []byte(v)
	}
	if v := m["result"]; v != "" {
		j.Result = []byte(v)
	}
	if v := m["failure"]; v != "" && v != "null" {
		var f job.Failure
		if unmarshalErr := json.Unmarshal([]byte(v), &f); unmarshalErr != nil {
			return nil, fmt.Errorf("dutyleak/redis: unmarshal failure: %w", unmarshalErr)
		}
		j.Failure = &f
	}
	if v := m["started_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		j.StartedAt = &t
	}
	if v := m["completed_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		j.CompletedAt = &t
	}

	return j, nil
}

// marshalJSON is a helper to marshal to JSON string.
func marshalJSON(v interface{}) string {
	b, _ := json.Marshal(v) //nolint:errcheck // marshal should not fail for basic types
	return string(b)
}

// isRedisNil reports whether err is the go-redis missing-key sentinel.
func isRedisNil(err error) bool {
	return errors.Is(err, goredis.Nil)
}
