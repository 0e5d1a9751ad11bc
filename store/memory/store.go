// Package memory provides a map-backed job.Mirror and schedule.Store
// for development and testing. Nothing survives process exit, but the
// engine's write-through and bootstrap paths behave exactly as they
// would against a durable mirror, so restart flows can be exercised by
// reusing one Mirror across engine instances.
package memory

import (
	"context"
	"sort"
	"sync"

	dutyleak "github.com/Milo6x/dutyleak-app-sub004"
	"github.com/Milo6x/dutyleak-app-sub004/id"
	"github.com/Milo6x/dutyleak-app-sub004/job"
	"github.com/Milo6x/dutyleak-app-sub004/schedule"
)

var _ job.Mirror = (*Mirror)(nil)

// Mirror is a fully in-memory job.Mirror and schedule.Store. Safe for
// concurrent use.
type Mirror struct {
	mu        sync.RWMutex
	jobs      map[string]*job.Job
	schedules map[string]*schedule.Entry
}

// New returns a new empty Mirror.
func New() *Mirror {
	return &Mirror{
		jobs:      make(map[string]*job.Job),
		schedules: make(map[string]*schedule.Entry),
	}
}

// Migrate is a no-op for the memory mirror.
func (m *Mirror) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory mirror.
func (m *Mirror) Ping(_ context.Context) error { return nil }

// Close is a no-op so the same Mirror can back a later engine
// instance when tests simulate a restart.
func (m *Mirror) Close() error { return nil }

// UpsertJob stores a copy of the full job record.
func (m *Mirror) UpsertJob(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.jobs[j.ID.String()] = j.Clone()
	return nil
}

// GetJob retrieves a job by ID.
func (m *Mirror) GetJob(_ context.Context, jobID id.JobID) (*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return nil, dutyleak.ErrJobNotFound
	}
	return j.Clone(), nil
}

// JobsByStatus returns all jobs holding the given status, oldest first.
func (m *Mirror) JobsByStatus(_ context.Context, status job.Status) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*job.Job
	for _, j := range m.jobs {
		if j.Status == status {
			result = append(result, j.Clone())
		}
	}

	sort.Slice(result, func(i, k int) bool {
		return result[i].CreatedAt.Before(result[k].CreatedAt)
	})

	return result, nil
}
