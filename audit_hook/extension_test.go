package audithook_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	dutyleak "github.com/Milo6x/dutyleak-app-sub004"
	ah "github.com/Milo6x/dutyleak-app-sub004/audit_hook"
	"github.com/Milo6x/dutyleak-app-sub004/ext"
	"github.com/Milo6x/dutyleak-app-sub004/id"
	"github.com/Milo6x/dutyleak-app-sub004/job"
)

// ── Mock recorder ────────────────────────────────────

// mockRecorder captures audit events for verification.
type mockRecorder struct {
	mu     sync.Mutex
	events []*ah.AuditEvent
}

func (m *mockRecorder) Record(_ context.Context, evt *ah.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
	return nil
}

func (m *mockRecorder) last() *ah.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == 0 {
		return nil
	}
	return m.events[len(m.events)-1]
}

func (m *mockRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func (m *mockRecorder) findByAction(action string) *ah.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, evt := range m.events {
		if evt.Action == action {
			return evt
		}
	}
	return nil
}

// ── Test helpers ─────────────────────────────────────

func newTestJob() *job.Job {
	return &job.Job{
		Entity:      dutyleak.NewEntity(),
		ID:          id.NewJobID(),
		Type:        job.TypeBulkClassification,
		Status:      job.StatusPending,
		Priority:    job.PriorityHigh,
		WorkspaceID: "ws_acme",
		MaxRetries:  3,
		RetryCount:  1,
	}
}

// ── Tests ────────────────────────────────────────────

func TestExtension_Name(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)
	if e.Name() != "audit-hook" {
		t.Errorf("expected name %q, got %q", "audit-hook", e.Name())
	}
}

// ── Job lifecycle tests ──────────────────────────────

func TestExtension_JobEnqueued(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)
	ctx := context.Background()
	j := newTestJob()

	if err := e.OnJobEnqueued(ctx, j); err != nil {
		t.Fatalf("OnJobEnqueued: %v", err)
	}

	evt := rec.last()
	if evt == nil {
		t.Fatal("no event recorded")
	}
	if evt.Action != ah.ActionJobEnqueued {
		t.Errorf("Action: want %q, got %q", ah.ActionJobEnqueued, evt.Action)
	}
	if evt.Resource != ah.ResourceJob {
		t.Errorf("Resource: want %q, got %q", ah.ResourceJob, evt.Resource)
	}
	if evt.Category != ah.CategoryJob {
		t.Errorf("Category: want %q, got %q", ah.CategoryJob, evt.Category)
	}
	if evt.ResourceID != j.ID.String() {
		t.Errorf("ResourceID: want %q, got %q", j.ID.String(), evt.ResourceID)
	}
	if evt.Severity != ah.SeverityInfo {
		t.Errorf("Severity: want %q, got %q", ah.SeverityInfo, evt.Severity)
	}
	if evt.Outcome != ah.OutcomeSuccess {
		t.Errorf("Outcome: want %q, got %q", ah.OutcomeSuccess, evt.Outcome)
	}
	if evt.Metadata["job_type"] != "bulk-classification" {
		t.Errorf("Metadata[job_type]: want %q, got %v", "bulk-classification", evt.Metadata["job_type"])
	}
	if evt.Metadata["workspace"] != "ws_acme" {
		t.Errorf("Metadata[workspace]: want %q, got %v", "ws_acme", evt.Metadata["workspace"])
	}
	if evt.Metadata["priority"] != "high" {
		t.Errorf("Metadata[priority]: want %q, got %v", "high", evt.Metadata["priority"])
	}
}

func TestExtension_JobStarted(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)

	j := newTestJob()

	if err := e.OnJobStarted(context.Background(), j); err != nil {
		t.Fatalf("OnJobStarted: %v", err)
	}

	evt := rec.last()
	if evt.Action != ah.ActionJobStarted {
		t.Errorf("Action: want %q, got %q", ah.ActionJobStarted, evt.Action)
	}
	if evt.Metadata["attempt"] != 2 {
		t.Errorf("Metadata[attempt]: want %d, got %v", 2, evt.Metadata["attempt"])
	}
}

func TestExtension_JobCompleted(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)

	j := newTestJob()
	elapsed := 150 * time.Millisecond

	if err := e.OnJobCompleted(context.Background(), j, elapsed); err != nil {
		t.Fatalf("OnJobCompleted: %v", err)
	}

	evt := rec.last()
	if evt.Action != ah.ActionJobCompleted {
		t.Errorf("Action: want %q, got %q", ah.ActionJobCompleted, evt.Action)
	}
	if evt.Severity != ah.SeverityInfo {
		t.Errorf("Severity: want %q, got %q", ah.SeverityInfo, evt.Severity)
	}
	if evt.Metadata["elapsed_ms"] != elapsed.Milliseconds() {
		t.Errorf("Metadata[elapsed_ms]: want %d, got %v", elapsed.Milliseconds(), evt.Metadata["elapsed_ms"])
	}
}

func TestExtension_JobFailed(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)

	j := newTestJob()
	jobErr := errors.New("provider timeout")

	if err := e.OnJobFailed(context.Background(), j, jobErr); err != nil {
		t.Fatalf("OnJobFailed: %v", err)
	}

	evt := rec.last()
	if evt.Action != ah.ActionJobFailed {
		t.Errorf("Action: want %q, got %q", ah.ActionJobFailed, evt.Action)
	}
	if evt.Severity != ah.SeverityCritical {
		t.Errorf("Severity: want %q, got %q", ah.SeverityCritical, evt.Severity)
	}
	if evt.Outcome != ah.OutcomeFailure {
		t.Errorf("Outcome: want %q, got %q", ah.OutcomeFailure, evt.Outcome)
	}
	if evt.Reason != "provider timeout" {
		t.Errorf("Reason: want %q, got %q", "provider timeout", evt.Reason)
	}
	if evt.Metadata["error"] != "provider timeout" {
		t.Errorf("Metadata[error]: want %q, got %v", "provider timeout", evt.Metadata["error"])
	}
	if evt.Metadata["retry_count"] != 1 {
		t.Errorf("Metadata[retry_count]: want %d, got %v", 1, evt.Metadata["retry_count"])
	}
}

func TestExtension_JobRetrying(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)

	j := newTestJob()
	notBefore := time.Now().Add(30 * time.Second)

	if err := e.OnJobRetrying(context.Background(), j, 2, notBefore); err != nil {
		t.Fatalf("OnJobRetrying: %v", err)
	}

	evt := rec.last()
	if evt.Action != ah.ActionJobRetrying {
		t.Errorf("Action: want %q, got %q", ah.ActionJobRetrying, evt.Action)
	}
	if evt.Severity != ah.SeverityWarning {
		t.Errorf("Severity: want %q, got %q", ah.SeverityWarning, evt.Severity)
	}
	if evt.Outcome != ah.OutcomeFailure {
		t.Errorf("Outcome: want %q, got %q", ah.OutcomeFailure, evt.Outcome)
	}
	if evt.Metadata["attempt"] != 2 {
		t.Errorf("Metadata[attempt]: want %d, got %v", 2, evt.Metadata["attempt"])
	}
}

func TestExtension_JobDeadLettered(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)

	j := newTestJob()
	jobErr := errors.New("retries exhausted")

	if err := e.OnJobDeadLettered(context.Background(), j, jobErr); err != nil {
		t.Fatalf("OnJobDeadLettered: %v", err)
	}

	evt := rec.last()
	if evt.Action != ah.ActionJobDeadLettered {
		t.Errorf("Action: want %q, got %q", ah.ActionJobDeadLettered, evt.Action)
	}
	if evt.Severity != ah.SeverityCritical {
		t.Errorf("Severity: want %q, got %q", ah.SeverityCritical, evt.Severity)
	}
	if evt.Metadata["error"] != "retries exhausted" {
		t.Errorf("Metadata[error]: want %q, got %v", "retries exhausted", evt.Metadata["error"])
	}
}

func TestExtension_JobCancelled(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)

	if err := e.OnJobCancelled(context.Background(), newTestJob()); err != nil {
		t.Fatalf("OnJobCancelled: %v", err)
	}

	evt := rec.last()
	if evt.Action != ah.ActionJobCancelled {
		t.Errorf("Action: want %q, got %q", ah.ActionJobCancelled, evt.Action)
	}
	if evt.Severity != ah.SeverityInfo {
		t.Errorf("Severity: want %q, got %q", ah.SeverityInfo, evt.Severity)
	}
}

func TestExtension_JobPausedAndResumed(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)

	j := newTestJob()
	j.Progress = job.Progress{Total: 500, Completed: 120}

	if err := e.OnJobPaused(context.Background(), j); err != nil {
		t.Fatalf("OnJobPaused: %v", err)
	}
	evt := rec.last()
	if evt.Action != ah.ActionJobPaused {
		t.Errorf("Action: want %q, got %q", ah.ActionJobPaused, evt.Action)
	}
	if evt.Severity != ah.SeverityWarning {
		t.Errorf("Severity: want %q, got %q", ah.SeverityWarning, evt.Severity)
	}
	if evt.Metadata["completed"] != 120 {
		t.Errorf("Metadata[completed]: want %d, got %v", 120, evt.Metadata["completed"])
	}

	if err := e.OnJobResumed(context.Background(), j); err != nil {
		t.Fatalf("OnJobResumed: %v", err)
	}
	evt = rec.last()
	if evt.Action != ah.ActionJobResumed {
		t.Errorf("Action: want %q, got %q", ah.ActionJobResumed, evt.Action)
	}
	if evt.Metadata["total"] != 500 {
		t.Errorf("Metadata[total]: want %d, got %v", 500, evt.Metadata["total"])
	}
}

// ── Schedule lifecycle tests ─────────────────────────

func TestExtension_ScheduleFired(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)
	jobID := id.NewJobID()

	if err := e.OnScheduleFired(context.Background(), "nightly-refresh", jobID); err != nil {
		t.Fatalf("OnScheduleFired: %v", err)
	}

	evt := rec.last()
	if evt.Action != ah.ActionScheduleFired {
		t.Errorf("Action: want %q, got %q", ah.ActionScheduleFired, evt.Action)
	}
	if evt.Resource != ah.ResourceSchedule {
		t.Errorf("Resource: want %q, got %q", ah.ResourceSchedule, evt.Resource)
	}
	if evt.Category != ah.CategorySchedule {
		t.Errorf("Category: want %q, got %q", ah.CategorySchedule, evt.Category)
	}
	if evt.ResourceID != "nightly-refresh" {
		t.Errorf("ResourceID: want %q, got %q", "nightly-refresh", evt.ResourceID)
	}
	if evt.Metadata["job_id"] != jobID.String() {
		t.Errorf("Metadata[job_id]: want %q, got %v", jobID.String(), evt.Metadata["job_id"])
	}
}

// ── WithActions filter tests ─────────────────────────

func TestExtension_WithActions_FiltersDisabled(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec, ah.WithActions(ah.ActionJobCompleted, ah.ActionJobFailed))

	ctx := context.Background()
	j := newTestJob()

	// Enqueued is NOT enabled — should be silently skipped.
	if err := e.OnJobEnqueued(ctx, j); err != nil {
		t.Fatalf("OnJobEnqueued: %v", err)
	}
	if rec.count() != 0 {
		t.Errorf("expected 0 events (enqueued disabled), got %d", rec.count())
	}

	// Completed IS enabled — should be recorded.
	if err := e.OnJobCompleted(ctx, j, 50*time.Millisecond); err != nil {
		t.Fatalf("OnJobCompleted: %v", err)
	}
	if rec.count() != 1 {
		t.Errorf("expected 1 event (completed enabled), got %d", rec.count())
	}

	// Failed IS enabled — should be recorded.
	if err := e.OnJobFailed(ctx, j, errors.New("boom")); err != nil {
		t.Fatalf("OnJobFailed: %v", err)
	}
	if rec.count() != 2 {
		t.Errorf("expected 2 events, got %d", rec.count())
	}
}

// ── RecorderFunc adapter test ────────────────────────

func TestRecorderFunc(t *testing.T) {
	var captured *ah.AuditEvent
	fn := ah.RecorderFunc(func(_ context.Context, evt *ah.AuditEvent) error {
		captured = evt
		return nil
	})

	e := ah.New(fn)
	j := newTestJob()

	if err := e.OnJobEnqueued(context.Background(), j); err != nil {
		t.Fatalf("OnJobEnqueued: %v", err)
	}
	if captured == nil {
		t.Fatal("RecorderFunc was not called")
	}
	if captured.Action != ah.ActionJobEnqueued {
		t.Errorf("Action: want %q, got %q", ah.ActionJobEnqueued, captured.Action)
	}
}

// ── Recorder error handling test ─────────────────────

func TestExtension_RecorderError_DoesNotPropagate(t *testing.T) {
	failingRecorder := ah.RecorderFunc(func(_ context.Context, _ *ah.AuditEvent) error {
		return errors.New("audit backend down")
	})

	e := ah.New(failingRecorder)
	j := newTestJob()

	// Hook should NOT return an error — audit failures must not block
	// the job pipeline.
	if err := e.OnJobEnqueued(context.Background(), j); err != nil {
		t.Fatalf("expected no error (audit failure swallowed), got: %v", err)
	}
}

// ── Registry integration test ────────────────────────

func TestExtension_ViaRegistry(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)
	logger := slog.Default()

	reg := ext.NewRegistry(logger)
	reg.Register(e)

	ctx := context.Background()
	j := newTestJob()

	reg.EmitJobEnqueued(ctx, j)
	reg.EmitJobStarted(ctx, j)
	reg.EmitJobCompleted(ctx, j, 50*time.Millisecond)
	reg.EmitJobFailed(ctx, j, errors.New("fail"))
	reg.EmitJobRetrying(ctx, j, 1, time.Now())
	reg.EmitJobDeadLettered(ctx, j, errors.New("dead"))
	reg.EmitJobCancelled(ctx, j)
	reg.EmitJobPaused(ctx, j)
	reg.EmitJobResumed(ctx, j)
	reg.EmitScheduleFired(ctx, "hourly", id.NewJobID())

	// Verify all 10 event types were recorded.
	allActions := ah.AllActions()
	if rec.count() != len(allActions) {
		t.Fatalf("expected %d events, got %d", len(allActions), rec.count())
	}

	for _, action := range allActions {
		evt := rec.findByAction(action)
		if evt == nil {
			t.Errorf("missing event for action %q", action)
		}
	}
}

// ── AllActions test ──────────────────────────────────

func TestAllActions(t *testing.T) {
	actions := ah.AllActions()
	if len(actions) != 10 {
		t.Errorf("expected 10 actions, got %d", len(actions))
	}
}
