package scheduler_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	dutyleak "github.com/Milo6x/dutyleak-app-sub004"
	"github.com/Milo6x/dutyleak-app-sub004/ext"
	"github.com/Milo6x/dutyleak-app-sub004/id"
	"github.com/Milo6x/dutyleak-app-sub004/job"
	"github.com/Milo6x/dutyleak-app-sub004/scheduler"
	"github.com/Milo6x/dutyleak-app-sub004/store"
	"github.com/Milo6x/dutyleak-app-sub004/store/memory"
	"github.com/Milo6x/dutyleak-app-sub004/throttle"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubPool implements scheduler.Dispatcher. When complete is set, Run
// finishes each job synchronously so order of execution is the order
// of dispatch; otherwise jobs hold their slot until the test releases
// them.
type stubPool struct {
	st       *store.Store
	slots    chan struct{}
	complete bool

	mu    sync.Mutex
	order []string
}

func newStubPool(st *store.Store, capacity int, complete bool) *stubPool {
	return &stubPool{
		st:       st,
		slots:    make(chan struct{}, capacity),
		complete: complete,
	}
}

func (p *stubPool) TryReserve() bool {
	select {
	case p.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

func (p *stubPool) ReleaseReservation() { <-p.slots }

func (p *stubPool) Run(j *job.Job) {
	p.mu.Lock()
	p.order = append(p.order, j.ID.String())
	p.mu.Unlock()

	if p.complete {
		_, _ = p.st.ApplyTransition(context.Background(), j.ID, job.StatusRunning, job.StatusCompleted, nil)
		<-p.slots
	}
}

func (p *stubPool) dispatched() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.order...)
}

func newStore(t *testing.T) *store.Store {
	t.Helper()
	return store.New(memory.New(), store.WithLogger(testLogger()))
}

func addJob(t *testing.T, st *store.Store, priority job.Priority, createdAt time.Time) *job.Job {
	t.Helper()
	j := &job.Job{
		Entity:      dutyleak.Entity{CreatedAt: createdAt, UpdatedAt: createdAt},
		ID:          id.NewJobID(),
		Type:        job.TypeBulkClassification,
		Status:      job.StatusPending,
		Priority:    priority,
		WorkspaceID: "ws-1",
		MaxRetries:  3,
	}
	if err := st.Create(context.Background(), j); err != nil {
		t.Fatalf("create job: %v", err)
	}
	return j
}

func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.After(d)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal("condition not met before deadline")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}

func TestScheduler_PriorityOrder(t *testing.T) {
	t.Parallel()

	st := newStore(t)
	pool := newStubPool(st, 1, true)
	sched := scheduler.New(st, pool, ext.NewRegistry(testLogger()), testLogger(),
		scheduler.WithTickInterval(10*time.Millisecond),
	)

	t0 := time.Now().UTC().Add(-3 * time.Second)
	low := addJob(t, st, job.PriorityLow, t0)
	urgent1 := addJob(t, st, job.PriorityUrgent, t0.Add(time.Second))
	urgent2 := addJob(t, st, job.PriorityUrgent, t0.Add(2*time.Second))

	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sched.Stop(context.Background())

	waitFor(t, 2*time.Second, func() bool { return len(pool.dispatched()) == 3 })

	want := []string{urgent1.ID.String(), urgent2.ID.String(), low.ID.String()}
	got := pool.dispatched()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("dispatch order = %v, want %v", got, want)
		}
	}
}

func TestScheduler_FIFOWithinPriority(t *testing.T) {
	t.Parallel()

	st := newStore(t)
	pool := newStubPool(st, 1, true)
	sched := scheduler.New(st, pool, ext.NewRegistry(testLogger()), testLogger(),
		scheduler.WithTickInterval(10*time.Millisecond),
	)

	t0 := time.Now().UTC().Add(-3 * time.Second)
	first := addJob(t, st, job.PriorityMedium, t0)
	second := addJob(t, st, job.PriorityMedium, t0.Add(time.Second))
	third := addJob(t, st, job.PriorityMedium, t0.Add(2*time.Second))

	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sched.Stop(context.Background())

	waitFor(t, 2*time.Second, func() bool { return len(pool.dispatched()) == 3 })

	want := []string{first.ID.String(), second.ID.String(), third.ID.String()}
	got := pool.dispatched()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("dispatch order = %v, want %v", got, want)
		}
	}
}

func TestScheduler_HonorsNotBefore(t *testing.T) {
	t.Parallel()

	st := newStore(t)
	pool := newStubPool(st, 1, true)

	// Long tick: only the NotBefore timer can fire in time.
	sched := scheduler.New(st, pool, ext.NewRegistry(testLogger()), testLogger(),
		scheduler.WithTickInterval(time.Hour),
	)

	j := addJob(t, st, job.PriorityMedium, time.Now().UTC())
	notBefore := time.Now().UTC().Add(80 * time.Millisecond)
	mustTransition(t, st, j.ID, job.StatusPending, job.StatusRunning, nil)
	mustTransition(t, st, j.ID, job.StatusRunning, job.StatusFailed, func(cur *job.Job) {
		cur.RetryCount = 1
	})
	mustTransition(t, st, j.ID, job.StatusFailed, job.StatusPending, func(cur *job.Job) {
		cur.NotBefore = notBefore
	})

	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sched.Stop(context.Background())

	// Not dispatched while the backoff delay is pending.
	time.Sleep(40 * time.Millisecond)
	if n := len(pool.dispatched()); n != 0 {
		t.Fatalf("dispatched %d jobs before NotBefore", n)
	}

	// Dispatched once the delay elapses, via the armed timer.
	waitFor(t, 2*time.Second, func() bool { return len(pool.dispatched()) == 1 })
}

func TestScheduler_ClaimsPausedOnResume(t *testing.T) {
	t.Parallel()

	st := newStore(t)
	pool := newStubPool(st, 1, false)
	extensions := ext.NewRegistry(testLogger())
	tracker := &resumeTracker{}
	extensions.Register(tracker)

	sched := scheduler.New(st, pool, extensions, testLogger(),
		scheduler.WithTickInterval(10*time.Millisecond),
	)

	j := addJob(t, st, job.PriorityMedium, time.Now().UTC())
	mustTransition(t, st, j.ID, job.StatusPending, job.StatusRunning, nil)
	mustTransition(t, st, j.ID, job.StatusRunning, job.StatusPaused, nil)

	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sched.Stop(context.Background())

	// Paused without a resume request: stays parked.
	time.Sleep(50 * time.Millisecond)
	if n := len(pool.dispatched()); n != 0 {
		t.Fatalf("dispatched %d jobs without resume request", n)
	}

	if err := st.RequestResume(j.ID); err != nil {
		t.Fatalf("request resume: %v", err)
	}
	sched.Wake()

	waitFor(t, 2*time.Second, func() bool { return len(pool.dispatched()) == 1 })

	got, err := st.Get(context.Background(), j.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != job.StatusRunning {
		t.Errorf("status = %q, want %q", got.Status, job.StatusRunning)
	}
	if !tracker.resumed.Load() {
		t.Error("expected OnJobResumed to fire for a resume claim")
	}
	if tracker.started.Load() {
		t.Error("OnJobStarted should not fire for a resume claim")
	}
}

func TestScheduler_ThrottledCandidateSkipped(t *testing.T) {
	t.Parallel()

	st := newStore(t)
	pool := newStubPool(st, 4, false)

	limits := throttle.NewManager(throttle.Config{
		Type:           job.TypeBulkClassification,
		MaxConcurrency: 1,
	})

	sched := scheduler.New(st, pool, ext.NewRegistry(testLogger()), testLogger(),
		scheduler.WithTickInterval(10*time.Millisecond),
		scheduler.WithThrottle(limits),
	)

	t0 := time.Now().UTC().Add(-3 * time.Second)
	// Two of the capped type, one of another type.
	capped1 := addJob(t, st, job.PriorityMedium, t0)
	capped2 := addJob(t, st, job.PriorityMedium, t0.Add(time.Second))

	other := &job.Job{
		Entity:      dutyleak.Entity{CreatedAt: t0.Add(2 * time.Second), UpdatedAt: t0.Add(2 * time.Second)},
		ID:          id.NewJobID(),
		Type:        job.TypeDataExport,
		Status:      job.StatusPending,
		Priority:    job.PriorityMedium,
		WorkspaceID: "ws-1",
		MaxRetries:  3,
	}
	if err := st.Create(context.Background(), other); err != nil {
		t.Fatalf("create job: %v", err)
	}

	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sched.Stop(context.Background())

	// The first capped job and the other-type job run; the second
	// capped job is skipped, not blocking the set behind it.
	waitFor(t, 2*time.Second, func() bool { return len(pool.dispatched()) == 2 })
	time.Sleep(50 * time.Millisecond)

	statuses := map[string]job.Status{}
	for _, jid := range []id.JobID{capped1.ID, capped2.ID, other.ID} {
		got, err := st.Get(context.Background(), jid)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		statuses[jid.String()] = got.Status
	}

	if statuses[capped1.ID.String()] != job.StatusRunning {
		t.Errorf("capped1 = %q, want running", statuses[capped1.ID.String()])
	}
	if statuses[capped2.ID.String()] != job.StatusPending {
		t.Errorf("capped2 = %q, want pending (throttled)", statuses[capped2.ID.String()])
	}
	if statuses[other.ID.String()] != job.StatusRunning {
		t.Errorf("other = %q, want running", statuses[other.ID.String()])
	}
}

func TestScheduler_StopHaltsDispatch(t *testing.T) {
	t.Parallel()

	st := newStore(t)
	pool := newStubPool(st, 1, true)
	sched := scheduler.New(st, pool, ext.NewRegistry(testLogger()), testLogger(),
		scheduler.WithTickInterval(10*time.Millisecond),
	)

	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := sched.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}

	addJob(t, st, job.PriorityUrgent, time.Now().UTC())
	sched.Wake()

	time.Sleep(50 * time.Millisecond)
	if n := len(pool.dispatched()); n != 0 {
		t.Fatalf("dispatched %d jobs after stop", n)
	}

	// Double stop is a no-op.
	if err := sched.Stop(context.Background()); err != nil {
		t.Fatalf("double stop: %v", err)
	}
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func mustTransition(t *testing.T, st *store.Store, jobID id.JobID, from, to job.Status, patch func(*job.Job)) {
	t.Helper()
	if _, err := st.ApplyTransition(context.Background(), jobID, from, to, patch); err != nil {
		t.Fatalf("transition %s to %s: %v", from, to, err)
	}
}

// resumeTracker records which claim hooks fired.
type resumeTracker struct {
	started atomic.Bool
	resumed atomic.Bool
}

func (e *resumeTracker) Name() string { return "resume-tracker" }

func (e *resumeTracker) OnJobStarted(_ context.Context, _ *job.Job) error {
	e.started.Store(true)
	return nil
}

func (e *resumeTracker) OnJobResumed(_ context.Context, _ *job.Job) error {
	e.resumed.Store(true)
	return nil
}
