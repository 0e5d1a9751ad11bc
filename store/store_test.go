package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	dutyleak "github.com/Milo6x/dutyleak-app-sub004"
	"github.com/Milo6x/dutyleak-app-sub004/id"
	"github.com/Milo6x/dutyleak-app-sub004/job"
	"github.com/Milo6x/dutyleak-app-sub004/store/memory"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newJob(typ job.Type, workspace string, status job.Status, priority job.Priority) *job.Job {
	return &job.Job{
		Entity:      dutyleak.NewEntity(),
		ID:          id.NewJobID(),
		Type:        typ,
		Status:      status,
		Priority:    priority,
		WorkspaceID: workspace,
		Payload:     []byte(`{"test":true}`),
		MaxRetries:  3,
	}
}

// flakyMirror fails the first n upserts, then delegates to a real
// memory mirror.
type flakyMirror struct {
	*memory.Mirror

	mu       sync.Mutex
	failures int
	upserts  int
}

func (m *flakyMirror) UpsertJob(ctx context.Context, j *job.Job) error {
	m.mu.Lock()
	m.upserts++
	fail := m.failures > 0
	if fail {
		m.failures--
	}
	m.mu.Unlock()

	if fail {
		return errors.New("mirror down")
	}
	return m.Mirror.UpsertJob(ctx, j)
}

func (m *flakyMirror) upsertCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upserts
}

// ──────────────────────────────────────────────────
// Create / Get
// ──────────────────────────────────────────────────

func TestStore_CreateAndGet(t *testing.T) {
	t.Parallel()
	mirror := memory.New()
	s := New(mirror, WithLogger(discardLogger()))
	ctx := context.Background()

	j := newJob(job.TypeDataExport, "ws_1", job.StatusPending, job.PriorityMedium)

	tests := []struct {
		name    string
		fn      func() error
		wantErr error
	}{
		{
			name:    "create new job",
			fn:      func() error { return s.Create(ctx, j) },
			wantErr: nil,
		},
		{
			name:    "create duplicate job",
			fn:      func() error { return s.Create(ctx, j) },
			wantErr: dutyleak.ErrJobAlreadyExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !errors.Is(err, tt.wantErr) {
				t.Fatalf("got error %v, want %v", err, tt.wantErr)
			}
		})
	}

	got, err := s.Get(ctx, j.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Type != j.Type {
		t.Fatalf("got type %q, want %q", got.Type, j.Type)
	}

	// Write-through: the mirror holds the record too.
	mirrored, err := mirror.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("mirror GetJob: %v", err)
	}
	if mirrored.Status != job.StatusPending {
		t.Fatalf("mirrored status = %q, want %q", mirrored.Status, job.StatusPending)
	}

	_, err = s.Get(ctx, id.NewJobID())
	if !errors.Is(err, dutyleak.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestStore_GetReturnsSnapshot(t *testing.T) {
	t.Parallel()
	s := New(memory.New(), WithLogger(discardLogger()))
	ctx := context.Background()

	j := newJob(job.TypeDataImport, "ws_1", job.StatusPending, job.PriorityMedium)
	if err := s.Create(ctx, j); err != nil {
		t.Fatal(err)
	}

	got, _ := s.Get(ctx, j.ID)
	got.Status = job.StatusCompleted
	got.Payload[0] = 'X'

	again, _ := s.Get(ctx, j.ID)
	if again.Status != job.StatusPending || again.Payload[0] != '{' {
		t.Fatal("mutating a snapshot leaked into the store")
	}
}

// ──────────────────────────────────────────────────
// Transitions
// ──────────────────────────────────────────────────

func TestStore_ApplyTransition(t *testing.T) {
	t.Parallel()
	mirror := memory.New()
	s := New(mirror, WithLogger(discardLogger()))
	ctx := context.Background()

	j := newJob(job.TypeBulkClassification, "ws_1", job.StatusPending, job.PriorityHigh)
	if err := s.Create(ctx, j); err != nil {
		t.Fatal(err)
	}

	updated, err := s.ApplyTransition(ctx, j.ID, job.StatusPending, job.StatusRunning, func(jb *job.Job) {
		now := time.Now().UTC()
		jb.StartedAt = &now
	})
	if err != nil {
		t.Fatalf("ApplyTransition: %v", err)
	}
	if updated.Status != job.StatusRunning {
		t.Fatalf("status = %q, want %q", updated.Status, job.StatusRunning)
	}
	if updated.StartedAt == nil {
		t.Fatal("patch did not apply: StartedAt is nil")
	}

	// The mirror sees the committed record.
	mirrored, _ := mirror.GetJob(ctx, j.ID)
	if mirrored.Status != job.StatusRunning {
		t.Fatalf("mirrored status = %q, want %q", mirrored.Status, job.StatusRunning)
	}

	// A second claim naming the old status loses the race.
	_, err = s.ApplyTransition(ctx, j.ID, job.StatusPending, job.StatusRunning, nil)
	if !errors.Is(err, dutyleak.ErrStaleTransition) {
		t.Fatalf("expected ErrStaleTransition, got %v", err)
	}

	// An edge the lifecycle forbids is rejected up front.
	_, err = s.ApplyTransition(ctx, j.ID, job.StatusCompleted, job.StatusRunning, nil)
	if !errors.Is(err, dutyleak.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	_, err = s.ApplyTransition(ctx, id.NewJobID(), job.StatusPending, job.StatusRunning, nil)
	if !errors.Is(err, dutyleak.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestStore_ApplyTransition_ConsumesIntents(t *testing.T) {
	t.Parallel()
	s := New(memory.New(), WithLogger(discardLogger()))
	ctx := context.Background()

	j := newJob(job.TypeOptimization, "ws_1", job.StatusRunning, job.PriorityMedium)
	if err := s.Create(ctx, j); err != nil {
		t.Fatal(err)
	}
	if err := s.RequestPause(j.ID); err != nil {
		t.Fatal(err)
	}
	if !s.PauseRequested(j.ID) {
		t.Fatal("pause intent not recorded")
	}

	if _, err := s.ApplyTransition(ctx, j.ID, job.StatusRunning, job.StatusPaused, nil); err != nil {
		t.Fatal(err)
	}

	if s.PauseRequested(j.ID) {
		t.Fatal("committed transition should consume the pause intent")
	}
}

func TestStore_ApplyTransition_MirrorFailureAborts(t *testing.T) {
	t.Parallel()
	flaky := &flakyMirror{Mirror: memory.New()}
	s := New(flaky, WithLogger(discardLogger()), WithMirrorRetry(1, time.Millisecond))
	ctx := context.Background()

	j := newJob(job.TypeScenarioAnalysis, "ws_1", job.StatusPending, job.PriorityMedium)
	if err := s.Create(ctx, j); err != nil {
		t.Fatal(err)
	}

	// Exhaust all upsert attempts.
	flaky.mu.Lock()
	flaky.failures = 10
	flaky.mu.Unlock()

	_, err := s.ApplyTransition(ctx, j.ID, job.StatusPending, job.StatusRunning, nil)
	if err == nil {
		t.Fatal("expected transition to fail when the mirror stays down")
	}

	// Memory must not run ahead of the mirror.
	got, _ := s.Get(ctx, j.ID)
	if got.Status != job.StatusPending {
		t.Fatalf("status = %q after aborted transition, want %q", got.Status, job.StatusPending)
	}
}

func TestStore_WriteThroughRetries(t *testing.T) {
	t.Parallel()
	flaky := &flakyMirror{Mirror: memory.New(), failures: 2}
	s := New(flaky, WithLogger(discardLogger()), WithMirrorRetry(3, time.Millisecond))
	ctx := context.Background()

	j := newJob(job.TypeDataExport, "ws_1", job.StatusPending, job.PriorityMedium)
	if err := s.Create(ctx, j); err != nil {
		t.Fatalf("Create should survive two transient mirror failures: %v", err)
	}
	if got := flaky.upsertCount(); got != 3 {
		t.Fatalf("upsert attempts = %d, want 3", got)
	}
}

// ──────────────────────────────────────────────────
// Progress
// ──────────────────────────────────────────────────

func TestStore_UpdateProgress(t *testing.T) {
	t.Parallel()
	s := New(memory.New(), WithLogger(discardLogger()))
	ctx := context.Background()

	j := newJob(job.TypeBulkFeeCalculation, "ws_1", job.StatusRunning, job.PriorityMedium)
	j.Progress = job.Progress{Total: 10}
	if err := s.Create(ctx, j); err != nil {
		t.Fatal(err)
	}

	if err := s.UpdateProgress(ctx, j.ID, job.Progress{Total: 10, Completed: 4, Failed: 1}); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	got, _ := s.Get(ctx, j.ID)
	if got.Progress.Completed != 4 || got.Progress.Failed != 1 {
		t.Fatalf("progress = %+v, want Completed 4 Failed 1", got.Progress)
	}

	// Counters may not move backwards.
	err := s.UpdateProgress(ctx, j.ID, job.Progress{Total: 10, Completed: 3})
	if !errors.Is(err, dutyleak.ErrInvalidProgress) {
		t.Fatalf("expected ErrInvalidProgress for regression, got %v", err)
	}

	// Only running jobs report progress.
	done := newJob(job.TypeDataExport, "ws_1", job.StatusCompleted, job.PriorityMedium)
	if err := s.Create(ctx, done); err != nil {
		t.Fatal(err)
	}
	err = s.UpdateProgress(ctx, done.ID, job.Progress{Total: 1})
	if !errors.Is(err, dutyleak.ErrInvalidProgress) {
		t.Fatalf("expected ErrInvalidProgress for completed job, got %v", err)
	}

	err = s.UpdateProgress(ctx, id.NewJobID(), job.Progress{Total: 1})
	if !errors.Is(err, dutyleak.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

// ──────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────

func TestStore_List(t *testing.T) {
	t.Parallel()
	s := New(memory.New(), WithLogger(discardLogger()))
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	mk := func(typ job.Type, ws string, status job.Status, age time.Duration) *job.Job {
		j := newJob(typ, ws, status, job.PriorityMedium)
		j.CreatedAt = base.Add(age)
		j.UpdatedAt = j.CreatedAt
		if err := s.Create(ctx, j); err != nil {
			t.Fatalf("Create: %v", err)
		}
		return j
	}

	oldest := mk(job.TypeDataExport, "ws_1", job.StatusCompleted, 0)
	middle := mk(job.TypeDataImport, "ws_1", job.StatusPending, time.Minute)
	newest := mk(job.TypeDataExport, "ws_2", job.StatusPending, 2*time.Minute)

	// No filter: everything, newest first.
	jobs, total, err := s.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 3 || len(jobs) != 3 {
		t.Fatalf("got %d jobs (total %d), want 3", len(jobs), total)
	}
	if jobs[0].ID != newest.ID || jobs[2].ID != oldest.ID {
		t.Fatal("expected newest-first ordering")
	}

	// Workspace filter.
	jobs, total, _ = s.List(ctx, Filter{WorkspaceID: "ws_1"})
	if total != 2 {
		t.Fatalf("ws_1 total = %d, want 2", total)
	}
	for _, j := range jobs {
		if j.WorkspaceID != "ws_1" {
			t.Fatalf("job %s leaked from workspace %q", j.ID, j.WorkspaceID)
		}
	}

	// Status and type filters combine.
	jobs, total, _ = s.List(ctx, Filter{
		Statuses: []job.Status{job.StatusPending},
		Types:    []job.Type{job.TypeDataImport},
	})
	if total != 1 || jobs[0].ID != middle.ID {
		t.Fatalf("combined filter returned %d jobs, want only the pending import", total)
	}

	// Pagination reports the pre-page total.
	jobs, total, _ = s.List(ctx, Filter{Limit: 1, Offset: 1})
	if total != 3 {
		t.Fatalf("paged total = %d, want 3", total)
	}
	if len(jobs) != 1 || jobs[0].ID != middle.ID {
		t.Fatal("expected the second-newest job on page two")
	}

	// Offset past the end yields an empty page, same total.
	jobs, total, _ = s.List(ctx, Filter{Offset: 10})
	if len(jobs) != 0 || total != 3 {
		t.Fatalf("got %d jobs (total %d), want 0 (total 3)", len(jobs), total)
	}
}

func TestStore_Counts(t *testing.T) {
	t.Parallel()
	s := New(memory.New(), WithLogger(discardLogger()))
	ctx := context.Background()

	seed := []struct {
		ws     string
		status job.Status
	}{
		{"ws_1", job.StatusPending},
		{"ws_1", job.StatusPending},
		{"ws_1", job.StatusRunning},
		{"ws_2", job.StatusCompleted},
	}
	for _, sd := range seed {
		if err := s.Create(ctx, newJob(job.TypeOptimization, sd.ws, sd.status, job.PriorityMedium)); err != nil {
			t.Fatal(err)
		}
	}

	counts, err := s.Counts(ctx, "ws_1")
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts[job.StatusPending] != 2 || counts[job.StatusRunning] != 1 {
		t.Fatalf("ws_1 counts = %v", counts)
	}
	if counts[job.StatusCompleted] != 0 {
		t.Fatalf("ws_1 completed = %d, want 0", counts[job.StatusCompleted])
	}
	if _, ok := counts[job.StatusDeadLetter]; !ok {
		t.Fatal("zero statuses should still appear in the map")
	}

	all, _ := s.Counts(ctx, "")
	if all[job.StatusCompleted] != 1 {
		t.Fatalf("global completed = %d, want 1", all[job.StatusCompleted])
	}
}

func TestStore_Ready(t *testing.T) {
	t.Parallel()
	s := New(memory.New(), WithLogger(discardLogger()))
	ctx := context.Background()
	now := time.Now().UTC()

	base := now.Add(-time.Hour)
	mk := func(status job.Status, priority job.Priority, age time.Duration) *job.Job {
		j := newJob(job.TypeDataExport, "ws_1", status, priority)
		j.CreatedAt = base.Add(age)
		j.UpdatedAt = j.CreatedAt
		if err := s.Create(ctx, j); err != nil {
			t.Fatalf("Create: %v", err)
		}
		return j
	}

	lowOld := mk(job.StatusPending, job.PriorityLow, 0)
	lowNew := mk(job.StatusPending, job.PriorityLow, time.Minute)
	urgent := mk(job.StatusPending, job.PriorityUrgent, 2*time.Minute)
	mk(job.StatusRunning, job.PriorityUrgent, 0)

	// A backoff delay keeps a pending job out of the ready set.
	delayed := mk(job.StatusPending, job.PriorityUrgent, 0)
	if _, err := s.ApplyTransition(ctx, delayed.ID, job.StatusPending, job.StatusRunning, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ApplyTransition(ctx, delayed.ID, job.StatusRunning, job.StatusFailed, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ApplyTransition(ctx, delayed.ID, job.StatusFailed, job.StatusPending, func(jb *job.Job) {
		jb.NotBefore = now.Add(time.Hour)
	}); err != nil {
		t.Fatal(err)
	}

	// A paused job joins the ready set only once resume is requested.
	pausedIdle := mk(job.StatusPaused, job.PriorityHigh, 0)
	pausedResume := mk(job.StatusPaused, job.PriorityHigh, time.Minute)
	if err := s.RequestResume(pausedResume.ID); err != nil {
		t.Fatal(err)
	}

	ready := s.Ready(now)

	wantOrder := []id.JobID{urgent.ID, pausedResume.ID, lowOld.ID, lowNew.ID}
	if len(ready) != len(wantOrder) {
		t.Fatalf("ready set has %d jobs, want %d", len(ready), len(wantOrder))
	}
	for i, want := range wantOrder {
		if ready[i].ID != want {
			t.Fatalf("ready[%d] = %s (%s), want %s", i, ready[i].ID, ready[i].Status, want)
		}
	}

	for _, j := range ready {
		if j.ID == delayed.ID {
			t.Fatal("job with future NotBefore must not be ready")
		}
		if j.ID == pausedIdle.ID {
			t.Fatal("paused job without resume request must not be ready")
		}
	}
}

func TestStore_NextWake(t *testing.T) {
	t.Parallel()
	s := New(memory.New(), WithLogger(discardLogger()))
	ctx := context.Background()
	now := time.Now().UTC()

	if _, ok := s.NextWake(now); ok {
		t.Fatal("empty store should have no wake time")
	}

	far := newJob(job.TypeDataExport, "ws_1", job.StatusPending, job.PriorityMedium)
	far.NotBefore = now.Add(time.Hour)
	near := newJob(job.TypeDataExport, "ws_1", job.StatusPending, job.PriorityMedium)
	near.NotBefore = now.Add(time.Minute)
	due := newJob(job.TypeDataExport, "ws_1", job.StatusPending, job.PriorityMedium)

	for _, j := range []*job.Job{far, near, due} {
		if err := s.Create(ctx, j); err != nil {
			t.Fatal(err)
		}
	}

	next, ok := s.NextWake(now)
	if !ok {
		t.Fatal("expected a wake time")
	}
	if !next.Equal(near.NotBefore) {
		t.Fatalf("next wake = %v, want %v", next, near.NotBefore)
	}
}

// ──────────────────────────────────────────────────
// Intents
// ──────────────────────────────────────────────────

func TestStore_Intents(t *testing.T) {
	t.Parallel()
	s := New(memory.New(), WithLogger(discardLogger()))
	ctx := context.Background()

	j := newJob(job.TypeDataImport, "ws_1", job.StatusRunning, job.PriorityMedium)
	if err := s.Create(ctx, j); err != nil {
		t.Fatal(err)
	}

	if s.CancelRequested(j.ID) || s.PauseRequested(j.ID) || s.ResumeRequested(j.ID) {
		t.Fatal("fresh job should have no intents")
	}

	if err := s.RequestCancel(j.ID); err != nil {
		t.Fatal(err)
	}
	if !s.CancelRequested(j.ID) {
		t.Fatal("cancel intent not visible")
	}
	if s.PauseRequested(j.ID) {
		t.Fatal("cancel must not imply pause")
	}

	if err := s.RequestCancel(id.NewJobID()); !errors.Is(err, dutyleak.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

// ──────────────────────────────────────────────────
// Bootstrap
// ──────────────────────────────────────────────────

func TestStore_Bootstrap(t *testing.T) {
	t.Parallel()
	mirror := memory.New()
	ctx := context.Background()

	// First engine life: create jobs in assorted statuses.
	first := New(mirror, WithLogger(discardLogger()))
	seeded := []*job.Job{
		newJob(job.TypeDataExport, "ws_1", job.StatusPending, job.PriorityMedium),
		newJob(job.TypeDataImport, "ws_1", job.StatusRunning, job.PriorityHigh),
		newJob(job.TypeOptimization, "ws_2", job.StatusDeadLetter, job.PriorityLow),
	}
	for _, j := range seeded {
		if err := first.Create(ctx, j); err != nil {
			t.Fatal(err)
		}
	}

	// Second life: a fresh store over the same mirror sees everything.
	second := New(mirror, WithLogger(discardLogger()))
	if err := second.Bootstrap(ctx); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	for _, want := range seeded {
		got, err := second.Get(ctx, want.ID)
		if err != nil {
			t.Fatalf("job %s missing after bootstrap: %v", want.ID, err)
		}
		if got.Status != want.Status {
			t.Fatalf("job %s status = %q, want %q", want.ID, got.Status, want.Status)
		}
	}

	counts, _ := second.Counts(ctx, "")
	if counts[job.StatusPending] != 1 || counts[job.StatusRunning] != 1 || counts[job.StatusDeadLetter] != 1 {
		t.Fatalf("counts after bootstrap = %v", counts)
	}
}

func TestStore_NilMirror(t *testing.T) {
	t.Parallel()
	s := New(nil, WithLogger(discardLogger()))
	ctx := context.Background()

	j := newJob(job.TypeDataExport, "ws_1", job.StatusPending, job.PriorityMedium)
	if err := s.Create(ctx, j); err != nil {
		t.Fatalf("Create without mirror: %v", err)
	}
	if err := s.Bootstrap(ctx); err != nil {
		t.Fatalf("Bootstrap without mirror: %v", err)
	}
	if _, err := s.Get(ctx, j.ID); err != nil {
		t.Fatalf("Get: %v", err)
	}
}
