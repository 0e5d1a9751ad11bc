package schedule_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	dutyleak "github.com/Milo6x/dutyleak-app-sub004"
	"github.com/Milo6x/dutyleak-app-sub004/id"
	"github.com/Milo6x/dutyleak-app-sub004/job"
	"github.com/Milo6x/dutyleak-app-sub004/schedule"
	"github.com/Milo6x/dutyleak-app-sub004/scope"
	"github.com/Milo6x/dutyleak-app-sub004/store/memory"
)

// stubEmitter records EmitScheduleFired calls.
type stubEmitter struct {
	mu    sync.Mutex
	calls []scheduleFiredCall
}

type scheduleFiredCall struct {
	ScheduleName string
	JobID        id.JobID
}

func (e *stubEmitter) EmitScheduleFired(_ context.Context, scheduleName string, jobID id.JobID) {
	e.mu.Lock()
	e.calls = append(e.calls, scheduleFiredCall{ScheduleName: scheduleName, JobID: jobID})
	e.mu.Unlock()
}

func (e *stubEmitter) getCalls() []scheduleFiredCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]scheduleFiredCall, len(e.calls))
	copy(out, e.calls)
	return out
}

// enqueueSpy tracks enqueue calls with thread safety.
type enqueueSpy struct {
	mu    sync.Mutex
	calls []enqueueCall
}

type enqueueCall struct {
	Type      job.Type
	Payload   json.RawMessage
	Workspace string
	Priority  job.Priority
}

func (e *enqueueSpy) Fn() schedule.EnqueueFunc {
	return func(ctx context.Context, typ job.Type, payload json.RawMessage, opts ...job.Option) (*job.Job, error) {
		o := job.DefaultOptions()
		for _, opt := range opts {
			opt(&o)
		}
		e.mu.Lock()
		e.calls = append(e.calls, enqueueCall{
			Type:      typ,
			Payload:   payload,
			Workspace: scope.Capture(ctx),
			Priority:  o.Priority,
		})
		e.mu.Unlock()
		return &job.Job{ID: id.NewJobID()}, nil
	}
}

func (e *enqueueSpy) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

func (e *enqueueSpy) getCalls() []enqueueCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]enqueueCall, len(e.calls))
	copy(out, e.calls)
	return out
}

// seedDueEntry persists an entry whose NextRunAt is already in the
// past, so the runner's first tick fires it.
func seedDueEntry(t *testing.T, s *memory.Mirror, name string, typ job.Type) *schedule.Entry {
	t.Helper()

	past := time.Now().UTC().Add(-1 * time.Second)
	entry := &schedule.Entry{
		Entity:      dutyleak.NewEntity(),
		ID:          id.NewScheduleID(),
		Name:        name,
		Spec:        "@every 1s",
		JobType:     typ,
		Payload:     []byte(`{"reportId":"rpt_1"}`),
		Priority:    job.PriorityHigh,
		WorkspaceID: "ws_acme",
		Enabled:     true,
		NextRunAt:   &past,
	}

	if err := s.UpsertSchedule(context.Background(), entry); err != nil {
		t.Fatalf("UpsertSchedule: %v", err)
	}
	return entry
}

func newTestRunner(t *testing.T) (*schedule.Runner, *memory.Mirror, *stubEmitter, *enqueueSpy) {
	t.Helper()

	s := memory.New()
	emitter := &stubEmitter{}
	spy := &enqueueSpy{}

	r := schedule.NewRunner(s, spy.Fn(), emitter, nil,
		schedule.WithTickInterval(50*time.Millisecond),
	)
	return r, s, emitter, spy
}

// waitForFires polls until the spy has seen at least n enqueues.
func waitForFires(t *testing.T, spy *enqueueSpy, n int) {
	t.Helper()

	deadline := time.After(3 * time.Second)
	for spy.Count() < n {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %d schedule fire(s), got %d", n, spy.Count())
		default:
			time.Sleep(20 * time.Millisecond)
		}
	}
}

// ──────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────

func TestRunner_FiresDueEntry(t *testing.T) {
	r, s, emitter, spy := newTestRunner(t)

	seedDueEntry(t, s, "nightly-export", job.TypeDataExport)

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForFires(t, spy, 1)
	if err := r.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	calls := spy.getCalls()
	if len(calls) == 0 {
		t.Fatal("expected at least one enqueue call")
	}
	if calls[0].Type != job.TypeDataExport {
		t.Errorf("enqueued type = %q, want %q", calls[0].Type, job.TypeDataExport)
	}
	if !bytes.Equal(calls[0].Payload, []byte(`{"reportId":"rpt_1"}`)) {
		t.Errorf("enqueued payload = %s, want entry payload", calls[0].Payload)
	}

	fired := emitter.getCalls()
	if len(fired) == 0 {
		t.Fatal("expected at least one EmitScheduleFired call")
	}
	if fired[0].ScheduleName != "nightly-export" {
		t.Errorf("emitter schedule name = %q, want %q", fired[0].ScheduleName, "nightly-export")
	}
	if fired[0].JobID.IsNil() {
		t.Error("emitter job ID should be the enqueued job's ID")
	}
}

func TestRunner_PropagatesWorkspaceAndPriority(t *testing.T) {
	r, s, _, spy := newTestRunner(t)

	seedDueEntry(t, s, "tenant-sync", job.TypeDataImport)

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForFires(t, spy, 1)
	if err := r.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	calls := spy.getCalls()
	if calls[0].Workspace != "ws_acme" {
		t.Errorf("enqueue workspace = %q, want %q", calls[0].Workspace, "ws_acme")
	}
	if calls[0].Priority != job.PriorityHigh {
		t.Errorf("enqueue priority = %v, want %v", calls[0].Priority, job.PriorityHigh)
	}
}

func TestRunner_SkipsDisabled(t *testing.T) {
	r, s, _, spy := newTestRunner(t)

	entry := seedDueEntry(t, s, "disabled-schedule", job.TypeOptimization)
	entry.Enabled = false
	if err := s.UpsertSchedule(context.Background(), entry); err != nil {
		t.Fatalf("UpsertSchedule: %v", err)
	}

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Wait a bit; the entry should NOT fire.
	time.Sleep(300 * time.Millisecond)

	if err := r.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if spy.Count() != 0 {
		t.Errorf("expected 0 enqueue calls for disabled entry, got %d", spy.Count())
	}
}

func TestRunner_AdvancesAfterFire(t *testing.T) {
	r, s, _, spy := newTestRunner(t)

	entry := seedDueEntry(t, s, "advance-me", job.TypeBulkFeeCalculation)

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForFires(t, spy, 1)
	if err := r.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	// The persisted entry carries the advanced state.
	updated, err := s.GetSchedule(context.Background(), entry.ID)
	if err != nil {
		t.Fatalf("GetSchedule: %v", err)
	}
	if updated.LastFiredAt == nil {
		t.Fatal("expected LastFiredAt to be set after firing")
	}
	if updated.NextRunAt == nil {
		t.Fatal("expected NextRunAt to be set after firing")
	}
	if !updated.NextRunAt.After(*updated.LastFiredAt) {
		t.Errorf("NextRunAt %v should be after LastFiredAt %v", updated.NextRunAt, updated.LastFiredAt)
	}

	// The runner's own snapshot agrees.
	snap, err := r.Get(context.Background(), entry.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if snap.LastFiredAt == nil || !snap.LastFiredAt.Equal(*updated.LastFiredAt) {
		t.Errorf("runner snapshot LastFiredAt = %v, store has %v", snap.LastFiredAt, updated.LastFiredAt)
	}
}

func TestRunner_OverdueEntryFiresOnce(t *testing.T) {
	r, s, _, spy := newTestRunner(t)

	// Three days overdue on a daily interval. Catch-up policy: one fire,
	// then the next window is computed from now; missed windows are not
	// replayed.
	past := time.Now().UTC().Add(-72 * time.Hour)
	entry := &schedule.Entry{
		Entity:    dutyleak.NewEntity(),
		ID:        id.NewScheduleID(),
		Name:      "daily-digest",
		Spec:      "@every 24h",
		JobType:   job.TypeDataExport,
		Enabled:   true,
		NextRunAt: &past,
	}
	if err := s.UpsertSchedule(context.Background(), entry); err != nil {
		t.Fatalf("UpsertSchedule: %v", err)
	}

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForFires(t, spy, 1)

	// Give the runner several more ticks; no replay should happen.
	time.Sleep(300 * time.Millisecond)

	if err := r.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if got := spy.Count(); got != 1 {
		t.Errorf("overdue entry fired %d times, want exactly 1", got)
	}

	updated, err := s.GetSchedule(context.Background(), entry.ID)
	if err != nil {
		t.Fatalf("GetSchedule: %v", err)
	}
	if updated.NextRunAt == nil || !updated.NextRunAt.After(time.Now().UTC()) {
		t.Errorf("NextRunAt = %v, want a future time", updated.NextRunAt)
	}
}

func TestRunner_Add(t *testing.T) {
	r, s, _, _ := newTestRunner(t)
	ctx := context.Background()

	entry := &schedule.Entry{
		Name:        "morning-classification",
		Spec:        "0 6 * * *",
		JobType:     job.TypeBulkClassification,
		Payload:     []byte(`{"batchSize":200}`),
		Priority:    job.PriorityMedium,
		WorkspaceID: "ws_acme",
		Enabled:     true,
	}
	if err := r.Add(ctx, entry); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if entry.ID.IsNil() {
		t.Error("Add should assign an ID")
	}
	if entry.CreatedAt.IsZero() {
		t.Error("Add should stamp the entity timestamps")
	}
	if entry.NextRunAt == nil || !entry.NextRunAt.After(time.Now().UTC()) {
		t.Errorf("NextRunAt = %v, want a future time", entry.NextRunAt)
	}

	// Persisted write-through.
	stored, err := s.GetSchedule(ctx, entry.ID)
	if err != nil {
		t.Fatalf("GetSchedule: %v", err)
	}
	if stored.Name != "morning-classification" {
		t.Errorf("stored name = %q, want %q", stored.Name, "morning-classification")
	}

	list := r.List(ctx)
	if len(list) != 1 {
		t.Fatalf("List returned %d entries, want 1", len(list))
	}
}

func TestRunner_AddValidation(t *testing.T) {
	r, _, _, _ := newTestRunner(t)
	ctx := context.Background()

	// Missing name.
	err := r.Add(ctx, &schedule.Entry{Spec: "@hourly", JobType: job.TypeDataExport})
	if err == nil {
		t.Error("expected error for missing name")
	}

	// Unknown job type.
	err = r.Add(ctx, &schedule.Entry{Name: "bad-type", Spec: "@hourly", JobType: job.Type("mystery")})
	if !errors.Is(err, dutyleak.ErrUnknownType) {
		t.Errorf("err = %v, want ErrUnknownType", err)
	}

	// Unparseable spec.
	err = r.Add(ctx, &schedule.Entry{Name: "bad-spec", Spec: "not-a-cron", JobType: job.TypeDataExport})
	if err == nil {
		t.Error("expected error for invalid spec")
	}

	// Duplicate name.
	first := &schedule.Entry{Name: "dupe", Spec: "@hourly", JobType: job.TypeDataExport, Enabled: true}
	if err := r.Add(ctx, first); err != nil {
		t.Fatalf("Add: %v", err)
	}
	err = r.Add(ctx, &schedule.Entry{Name: "dupe", Spec: "@daily", JobType: job.TypeDataImport})
	if !errors.Is(err, dutyleak.ErrDuplicateSchedule) {
		t.Errorf("err = %v, want ErrDuplicateSchedule", err)
	}
}

func TestRunner_Remove(t *testing.T) {
	r, s, _, _ := newTestRunner(t)
	ctx := context.Background()

	if err := r.Remove(ctx, id.NewScheduleID()); !errors.Is(err, dutyleak.ErrScheduleNotFound) {
		t.Errorf("Remove unknown: err = %v, want ErrScheduleNotFound", err)
	}

	entry := &schedule.Entry{Name: "short-lived", Spec: "@hourly", JobType: job.TypeDataExport, Enabled: true}
	if err := r.Add(ctx, entry); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := r.Remove(ctx, entry.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	if _, err := r.Get(ctx, entry.ID); !errors.Is(err, dutyleak.ErrScheduleNotFound) {
		t.Errorf("Get after Remove: err = %v, want ErrScheduleNotFound", err)
	}
	if _, err := s.GetSchedule(ctx, entry.ID); !errors.Is(err, dutyleak.ErrScheduleNotFound) {
		t.Errorf("store Get after Remove: err = %v, want ErrScheduleNotFound", err)
	}
}

func TestRunner_EnableDisable(t *testing.T) {
	r, s, _, _ := newTestRunner(t)
	ctx := context.Background()

	if err := r.Enable(ctx, id.NewScheduleID()); !errors.Is(err, dutyleak.ErrScheduleNotFound) {
		t.Errorf("Enable unknown: err = %v, want ErrScheduleNotFound", err)
	}

	entry := &schedule.Entry{Name: "toggle-me", Spec: "@every 1h", JobType: job.TypeScenarioAnalysis, Enabled: true}
	if err := r.Add(ctx, entry); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := r.Disable(ctx, entry.ID); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	stored, err := s.GetSchedule(ctx, entry.ID)
	if err != nil {
		t.Fatalf("GetSchedule: %v", err)
	}
	if stored.Enabled {
		t.Error("expected persisted entry to be disabled")
	}

	// Disabling again is a no-op.
	if err := r.Disable(ctx, entry.ID); err != nil {
		t.Fatalf("Disable twice: %v", err)
	}

	if err := r.Enable(ctx, entry.ID); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	stored, err = s.GetSchedule(ctx, entry.ID)
	if err != nil {
		t.Fatalf("GetSchedule: %v", err)
	}
	if !stored.Enabled {
		t.Error("expected persisted entry to be enabled")
	}
	// Re-enabling restarts the schedule from now instead of replaying
	// windows slept through while disabled.
	if stored.NextRunAt == nil || !stored.NextRunAt.After(time.Now().UTC()) {
		t.Errorf("NextRunAt = %v, want a future time", stored.NextRunAt)
	}
}

func TestRunner_LoadsPersistedEntries(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	// One entry persisted without NextRunAt: load computes it.
	fresh := &schedule.Entry{
		Entity:  dutyleak.NewEntity(),
		ID:      id.NewScheduleID(),
		Name:    "computed-on-load",
		Spec:    "@every 1h",
		JobType: job.TypeDataExport,
		Enabled: true,
	}
	if err := s.UpsertSchedule(ctx, fresh); err != nil {
		t.Fatalf("UpsertSchedule: %v", err)
	}

	// One entry with a spec that no longer parses: load skips it.
	broken := &schedule.Entry{
		Entity:  dutyleak.NewEntity(),
		ID:      id.NewScheduleID(),
		Name:    "broken-spec",
		Spec:    "every day at dawn",
		JobType: job.TypeDataExport,
		Enabled: true,
	}
	if err := s.UpsertSchedule(ctx, broken); err != nil {
		t.Fatalf("UpsertSchedule: %v", err)
	}

	spy := &enqueueSpy{}
	r := schedule.NewRunner(s, spy.Fn(), &stubEmitter{}, nil,
		schedule.WithTickInterval(50*time.Millisecond),
	)
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer r.Stop(ctx)

	list := r.List(ctx)
	if len(list) != 1 {
		t.Fatalf("List returned %d entries, want 1 (broken spec skipped)", len(list))
	}
	if list[0].Name != "computed-on-load" {
		t.Errorf("loaded entry name = %q, want %q", list[0].Name, "computed-on-load")
	}
	if list[0].NextRunAt == nil || !list[0].NextRunAt.After(time.Now().UTC()) {
		t.Errorf("NextRunAt = %v, want a future time computed at load", list[0].NextRunAt)
	}
}

func TestParseSpec(t *testing.T) {
	// Descriptor format.
	sched, err := schedule.ParseSpec("@every 30s")
	if err != nil {
		t.Fatalf("ParseSpec(@every 30s): %v", err)
	}
	now := time.Now().UTC()
	next := sched.Next(now)
	if !next.After(now) {
		t.Errorf("Next(%v) = %v, expected future time", now, next)
	}

	// Standard 5-field expression.
	sched2, err := schedule.ParseSpec("*/5 * * * *")
	if err != nil {
		t.Fatalf("ParseSpec(*/5 * * * *): %v", err)
	}
	next2 := sched2.Next(now)
	if !next2.After(now) {
		t.Errorf("Next(%v) = %v, expected future time", now, next2)
	}

	// Invalid expression.
	if _, err := schedule.ParseSpec("not-a-cron"); err == nil {
		t.Error("expected error for invalid cron expression")
	}
}
