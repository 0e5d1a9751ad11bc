package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	dutyleak "github.com/Milo6x/dutyleak-app-sub004"
	"github.com/Milo6x/dutyleak-app-sub004/id"
	"github.com/Milo6x/dutyleak-app-sub004/job"
	"github.com/Milo6x/dutyleak-app-sub004/schedule"
)

// ── JSON model for schedule storage ──

type scheduleEntity struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Spec        string     `json:"spec"`
	JobType     string     `json:"job_type"`
	Payload     []byte     `json:"payload,omitempty"`
	Priority    int        `json:"priority"`
	WorkspaceID string     `json:"workspace_id"`
	Enabled     bool       `json:"enabled"`
	LastFiredAt *time.Time `json:"last_fired_at,omitempty"`
	NextRunAt   *time.Time `json:"next_run_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func toScheduleEntity(e *schedule.Entry) *scheduleEntity {
	return &scheduleEntity{
		ID:          e.ID.String(),
		Name:        e.Name,
		Spec:        e.Spec,
		JobType:     string(e.JobType),
		Payload:     e.Payload,
		Priority:    int(e.Priority),
		WorkspaceID: e.WorkspaceID,
		Enabled:     e.Enabled,
		LastFiredAt: e.LastFiredAt,
		NextRunAt:   e.NextRunAt,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func fromScheduleEntity(e *scheduleEntity) (*schedule.Entry, error) {
	eID, err := id.ParseScheduleID(e.ID)
	if err != nil {
		return nil, fmt.Errorf("dutyleak/redis: parse schedule id: %w", err)
	}

	return &schedule.Entry{
		Entity: dutyleak.Entity{
			CreatedAt: e.CreatedAt,
			UpdatedAt: e.UpdatedAt,
		},
		ID:          eID,
		Name:        e.Name,
		Spec:        e.Spec,
		JobType:     job.Type(e.JobType),
		Payload:     e.Payload,
		Priority:    job.Priority(e.Priority),
		WorkspaceID: e.WorkspaceID,
		Enabled:     e.Enabled,
		LastFiredAt: e.LastFiredAt,
		NextRunAt:   e.NextRunAt,
	}, nil
}

// ── schedule.Store ──

// UpsertSchedule durably writes the full schedule entry. A name already
// claimed by a different entry fails with ErrDuplicateSchedule.
func (m *Mirror) UpsertSchedule(ctx context.Context, e *schedule.Entry) error {
	eID := e.ID.String()
	key := scheduleKey(eID)

	owner, err := m.client.HGet(ctx, scheduleNamesKey, e.Name).Result()
	if err != nil && !isRedisNil(err) {
		return fmt.Errorf("dutyleak/redis: upsert schedule check name: %w", err)
	}
	if owner != "" && owner != eID {
		return dutyleak.ErrDuplicateSchedule
	}

	// A rename leaves a stale name mapping behind; drop it.
	var prev scheduleEntity
	if getErr := m.getEntity(ctx, key, &prev); getErr == nil && prev.Name != e.Name {
		if delErr := m.client.HDel(ctx, scheduleNamesKey, prev.Name).Err(); delErr != nil {
			return fmt.Errorf("dutyleak/redis: upsert schedule drop old name: %w", delErr)
		}
	}

	if setErr := m.setEntity(ctx, key, toScheduleEntity(e)); setErr != nil {
		return fmt.Errorf("dutyleak/redis: upsert schedule set: %w", setErr)
	}

	pipe := m.client.TxPipeline()
	pipe.SAdd(ctx, scheduleIDsKey, eID)
	pipe.HSet(ctx, scheduleNamesKey, e.Name, eID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("dutyleak/redis: upsert schedule indexes: %w", err)
	}
	return nil
}

// GetSchedule retrieves a schedule entry by ID.
func (m *Mirror) GetSchedule(ctx context.Context, scheduleID id.ScheduleID) (*schedule.Entry, error) {
	var e scheduleEntity
	if err := m.getEntity(ctx, scheduleKey(scheduleID.String()), &e); err != nil {
		if isRedisNil(err) {
			return nil, dutyleak.ErrScheduleNotFound
		}
		return nil, fmt.Errorf("dutyleak/redis: get schedule: %w", err)
	}
	return fromScheduleEntity(&e)
}

// ListSchedules returns all schedule entries, oldest first.
func (m *Mirror) ListSchedules(ctx context.Context) ([]*schedule.Entry, error) {
	ids, err := m.client.SMembers(ctx, scheduleIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("dutyleak/redis: list schedules: %w", err)
	}

	entries := make([]*schedule.Entry, 0, len(ids))
	for _, eID := range ids {
		var e scheduleEntity
		if getErr := m.getEntity(ctx, scheduleKey(eID), &e); getErr != nil {
			continue // index raced a deletion
		}
		entry, convErr := fromScheduleEntity(&e)
		if convErr != nil {
			continue
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, k int) bool {
		if entries[i].CreatedAt.Equal(entries[k].CreatedAt) {
			return entries[i].Name < entries[k].Name
		}
		return entries[i].CreatedAt.Before(entries[k].CreatedAt)
	})
	return entries, nil
}

// DeleteSchedule removes a schedule entry by ID.
func (m *Mirror) DeleteSchedule(ctx context.Context, scheduleID id.ScheduleID) error {
	eID := scheduleID.String()
	key := scheduleKey(eID)

	var e scheduleEntity
	if err := m.getEntity(ctx, key, &e); err != nil {
		if isRedisNil(err) {
			return dutyleak.ErrScheduleNotFound
		}
		return fmt.Errorf("dutyleak/redis: delete schedule get: %w", err)
	}

	pipe := m.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SRem(ctx, scheduleIDsKey, eID)
	pipe.HDel(ctx, scheduleNamesKey, e.Name)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("dutyleak/redis: delete schedule: %w", err)
	}
	return nil
}

// ── entity helpers ──

// setEntity marshals v as JSON and stores it under key.
func (m *Mirror) setEntity(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return m.client.Set(ctx, key, data, 0).Err()
}

// getEntity loads the JSON value at key into v. Missing keys surface
// the go-redis Nil sentinel.
func (m *Mirror) getEntity(ctx context.Context, key string, v interface{}) error {
	data, err := m.client.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
