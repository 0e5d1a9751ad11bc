package memory

import (
	"context"
	"sort"

	dutyleak "github.com/Milo6x/dutyleak-app-sub004"
	"github.com/Milo6x/dutyleak-app-sub004/id"
	"github.com/Milo6x/dutyleak-app-sub004/schedule"
)

var _ schedule.Store = (*Mirror)(nil)

// UpsertSchedule stores a copy of the full entry.
func (m *Mirror) UpsertSchedule(_ context.Context, e *schedule.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.schedules[e.ID.String()] = e.Clone()
	return nil
}

// GetSchedule retrieves an entry by ID.
func (m *Mirror) GetSchedule(_ context.Context, scheduleID id.ScheduleID) (*schedule.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.schedules[scheduleID.String()]
	if !ok {
		return nil, dutyleak.ErrScheduleNotFound
	}
	return e.Clone(), nil
}

// ListSchedules returns all entries, oldest first.
func (m *Mirror) ListSchedules(_ context.Context) ([]*schedule.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*schedule.Entry, 0, len(m.schedules))
	for _, e := range m.schedules {
		result = append(result, e.Clone())
	}

	sort.Slice(result, func(i, k int) bool {
		return result[i].CreatedAt.Before(result[k].CreatedAt)
	})

	return result, nil
}

// DeleteSchedule removes an entry by ID.
func (m *Mirror) DeleteSchedule(_ context.Context, scheduleID id.ScheduleID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := scheduleID.String()
	if _, ok := m.schedules[key]; !ok {
		return dutyleak.ErrScheduleNotFound
	}
	delete(m.schedules, key)
	return nil
}
