package store

import (
	"context"
	"slices"
	"sort"
	"time"

	dutyleak "github.com/Milo6x/dutyleak-app-sub004"
	"github.com/Milo6x/dutyleak-app-sub004/id"
	"github.com/Milo6x/dutyleak-app-sub004/job"
)

// Filter narrows List results. Zero-valued fields match everything.
type Filter struct {
	WorkspaceID string
	Statuses    []job.Status
	Types       []job.Type
	Limit       int
	Offset      int
}

func (f Filter) matches(j *job.Job) bool {
	if f.WorkspaceID != "" && j.WorkspaceID != f.WorkspaceID {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, j.Status) {
		return false
	}
	if len(f.Types) > 0 && !slices.Contains(f.Types, j.Type) {
		return false
	}
	return true
}

// Get retrieves a snapshot of a job by ID.
func (s *Store) Get(_ context.Context, jobID id.JobID) (*job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[jobID.String()]
	if !ok {
		return nil, dutyleak.ErrJobNotFound
	}
	return j.Clone(), nil
}

// List returns jobs matching the filter, newest first, plus the total
// match count before Limit and Offset were applied.
func (s *Store) List(_ context.Context, f Filter) ([]*job.Job, int, error) {
	s.mu.RLock()
	matched := make([]*job.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		if f.matches(j) {
			matched = append(matched, j.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, k int) bool {
		if !matched[i].CreatedAt.Equal(matched[k].CreatedAt) {
			return matched[i].CreatedAt.After(matched[k].CreatedAt)
		}
		return matched[i].ID.String() > matched[k].ID.String()
	})

	total := len(matched)

	if f.Offset > 0 {
		if f.Offset >= len(matched) {
			return nil, total, nil
		}
		matched = matched[f.Offset:]
	}
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}

	return matched, total, nil
}

// Counts returns the number of jobs per status. An empty workspaceID
// counts across all workspaces. Every status appears in the map, zero
// included.
func (s *Store) Counts(_ context.Context, workspaceID string) (map[job.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[job.Status]int, len(job.Statuses()))
	for _, status := range job.Statuses() {
		counts[status] = 0
	}
	for _, j := range s.jobs {
		if workspaceID != "" && j.WorkspaceID != workspaceID {
			continue
		}
		counts[j.Status]++
	}
	return counts, nil
}

// Ready returns snapshots of every job eligible to run right now:
// pending jobs whose backoff eligibility time has passed, and paused
// jobs with a resume request. Ordered by priority descending, then
// creation time ascending, so urgent work always goes first and equal
// priorities run in arrival order.
func (s *Store) Ready(now time.Time) []*job.Job {
	s.mu.RLock()
	var ready []*job.Job
	for key, j := range s.jobs {
		switch j.Status {
		case job.StatusPending:
			if j.Due(now) {
				ready = append(ready, j.Clone())
			}
		case job.StatusPaused:
			if f := s.intents[key]; f != nil && f.resume {
				ready = append(ready, j.Clone())
			}
		}
	}
	s.mu.RUnlock()

	sort.Slice(ready, func(i, k int) bool {
		if ready[i].Priority != ready[k].Priority {
			return ready[i].Priority > ready[k].Priority
		}
		if !ready[i].CreatedAt.Equal(ready[k].CreatedAt) {
			return ready[i].CreatedAt.Before(ready[k].CreatedAt)
		}
		return ready[i].ID.String() < ready[k].ID.String()
	})
	return ready
}

// NextWake returns the earliest backoff eligibility time among pending
// jobs that are not yet due, so the scheduler can sleep exactly until
// new work surfaces. ok is false when nothing is waiting on the clock.
func (s *Store) NextWake(now time.Time) (next time.Time, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, j := range s.jobs {
		if j.Status != job.StatusPending || j.Due(now) {
			continue
		}
		if next.IsZero() || j.NotBefore.Before(next) {
			next = j.NotBefore
		}
	}
	return next, !next.IsZero()
}
