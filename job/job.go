package job

import (
	"encoding/json"
	"time"

	dutyleak "github.com/Milo6x/dutyleak-app-sub004"
	"github.com/Milo6x/dutyleak-app-sub004/id"
)

// Job represents one asynchronous unit of work tracked by the engine.
type Job struct {
	dutyleak.Entity

	ID          id.JobID        `json:"id"`
	Type        Type            `json:"type"`
	Status      Status          `json:"status"`
	Priority    Priority        `json:"priority"`
	WorkspaceID string          `json:"workspaceId"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Progress    Progress        `json:"progress"`
	Failure     *Failure        `json:"error,omitempty"`

	// Engine bookkeeping.
	MaxRetries        int           `json:"maxRetries"`
	RetryCount        int           `json:"retryCount"`
	NotBefore         time.Time     `json:"notBefore"`
	EstimatedDuration time.Duration `json:"estimatedDuration,omitempty"`
	ActualDuration    time.Duration `json:"actualDuration,omitempty"`

	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Clone returns a deep copy. Stores hand out clones so callers can
// never mutate engine state through a snapshot.
func (j *Job) Clone() *Job {
	cp := *j
	if j.Payload != nil {
		cp.Payload = append(json.RawMessage(nil), j.Payload...)
	}
	if j.Result != nil {
		cp.Result = append(json.RawMessage(nil), j.Result...)
	}
	cp.Failure = j.Failure.Clone()
	if j.StartedAt != nil {
		t := *j.StartedAt
		cp.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

// Due reports whether the job's backoff eligibility time has passed.
func (j *Job) Due(now time.Time) bool {
	return !j.NotBefore.After(now)
}
