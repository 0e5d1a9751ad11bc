package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"

	dutyleak "github.com/Milo6x/dutyleak-app-sub004"
	"github.com/Milo6x/dutyleak-app-sub004/id"
	"github.com/Milo6x/dutyleak-app-sub004/job"
	"github.com/Milo6x/dutyleak-app-sub004/scope"
)

// EnqueueFunc is the callback the runner uses to enqueue fired jobs.
// This breaks the import cycle: the engine provides the implementation.
type EnqueueFunc func(ctx context.Context, typ job.Type, payload json.RawMessage, opts ...job.Option) (*job.Job, error)

// Emitter emits schedule lifecycle events.
// ext.Registry satisfies this interface via EmitScheduleFired.
type Emitter interface {
	EmitScheduleFired(ctx context.Context, scheduleName string, jobID id.JobID)
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithTickInterval sets how often the runner checks for due entries.
func WithTickInterval(d time.Duration) RunnerOption {
	return func(r *Runner) { r.tick = d }
}

// specParser supports standard 5-field cron and descriptors like "@every 30s".
var specParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseSpec parses a cron expression and returns the schedule.
func ParseSpec(expr string) (cronlib.Schedule, error) {
	return specParser.Parse(expr)
}

// Runner fires due schedule entries on a tick loop. Entries live in an
// authoritative in-memory map with write-through persistence, the same
// shape the job store has. Catch-up policy: an overdue entry fires once
// and then advances from the current time; missed windows are never
// replayed.
type Runner struct {
	store   Store
	enqueue EnqueueFunc
	emitter Emitter
	logger  *slog.Logger

	tick time.Duration

	mu      sync.Mutex
	entries map[string]*Entry

	// parsed caches compiled cron expressions by spec.
	parsedMu sync.RWMutex
	parsed   map[string]cronlib.Schedule

	lifecycleMu sync.Mutex
	running     bool
	stopCh      chan struct{}
	wg          sync.WaitGroup
}

// NewRunner creates a Runner.
func NewRunner(store Store, enqueue EnqueueFunc, emitter Emitter, logger *slog.Logger, opts ...RunnerOption) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		store:   store,
		enqueue: enqueue,
		emitter: emitter,
		logger:  logger,
		tick:    1 * time.Second,
		entries: make(map[string]*Entry),
		parsed:  make(map[string]cronlib.Schedule),
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ──────────────────────────────────────────────────
// Entry management
// ──────────────────────────────────────────────────

// Add validates and registers a schedule entry, assigning an ID and the
// first NextRunAt. Duplicate names fail with ErrDuplicateSchedule.
func (r *Runner) Add(ctx context.Context, e *Entry) error {
	if e.Name == "" {
		return fmt.Errorf("dutyleak/schedule: entry name is required")
	}
	if !e.JobType.Valid() {
		return fmt.Errorf("%w: %q", dutyleak.ErrUnknownType, e.JobType)
	}
	sched, err := r.compile(e.Spec)
	if err != nil {
		return fmt.Errorf("dutyleak/schedule: parse spec %q: %w", e.Spec, err)
	}

	if e.ID.IsNil() {
		e.ID = id.NewScheduleID()
	}
	if e.CreatedAt.IsZero() {
		e.Entity = dutyleak.NewEntity()
	}
	next := sched.Next(time.Now().UTC())
	e.NextRunAt = &next

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.entries {
		if existing.Name == e.Name {
			return fmt.Errorf("%w: %q", dutyleak.ErrDuplicateSchedule, e.Name)
		}
	}

	cp := e.Clone()
	if err := r.store.UpsertSchedule(ctx, cp); err != nil {
		return fmt.Errorf("dutyleak/schedule: persist entry %q: %w", e.Name, err)
	}
	r.entries[e.ID.String()] = cp
	return nil
}

// Remove deletes an entry. An entry mid-fire still completes that fire.
func (r *Runner) Remove(ctx context.Context, scheduleID id.ScheduleID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := scheduleID.String()
	if _, ok := r.entries[key]; !ok {
		return dutyleak.ErrScheduleNotFound
	}
	if err := r.store.DeleteSchedule(ctx, scheduleID); err != nil {
		return fmt.Errorf("dutyleak/schedule: delete entry: %w", err)
	}
	delete(r.entries, key)
	return nil
}

// Get returns a snapshot of one entry.
func (r *Runner) Get(_ context.Context, scheduleID id.ScheduleID) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[scheduleID.String()]
	if !ok {
		return nil, dutyleak.ErrScheduleNotFound
	}
	return e.Clone(), nil
}

// List returns snapshots of all entries, sorted by name.
func (r *Runner) List(_ context.Context) []*Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Clone())
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out
}

// Enable turns an entry back on. NextRunAt restarts from now, so a
// long-disabled entry does not fire immediately for windows it slept
// through.
func (r *Runner) Enable(ctx context.Context, scheduleID id.ScheduleID) error {
	return r.setEnabled(ctx, scheduleID, true)
}

// Disable stops an entry from firing without deleting it.
func (r *Runner) Disable(ctx context.Context, scheduleID id.ScheduleID) error {
	return r.setEnabled(ctx, scheduleID, false)
}

func (r *Runner) setEnabled(ctx context.Context, scheduleID id.ScheduleID, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[scheduleID.String()]
	if !ok {
		return dutyleak.ErrScheduleNotFound
	}
	if e.Enabled == enabled {
		return nil
	}

	if enabled {
		sched, err := r.compile(e.Spec)
		if err != nil {
			return fmt.Errorf("dutyleak/schedule: parse spec %q: %w", e.Spec, err)
		}
		next := sched.Next(time.Now().UTC())
		e.NextRunAt = &next
	}
	e.Enabled = enabled
	e.Touch()

	if err := r.store.UpsertSchedule(ctx, e.Clone()); err != nil {
		return fmt.Errorf("dutyleak/schedule: persist entry %q: %w", e.Name, err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Start loads persisted entries and launches the tick loop.
func (r *Runner) Start(ctx context.Context) error {
	r.lifecycleMu.Lock()
	defer r.lifecycleMu.Unlock()

	if r.running {
		return nil
	}

	if err := r.load(ctx); err != nil {
		return err
	}
	r.running = true

	r.wg.Add(1)
	go r.tickLoop()

	r.logger.Info("schedule runner started",
		slog.Int("entries", len(r.entries)),
		slog.Duration("tick", r.tick),
	)
	return nil
}

// Stop halts the tick loop. An in-flight fire completes first.
func (r *Runner) Stop(_ context.Context) error {
	r.lifecycleMu.Lock()
	defer r.lifecycleMu.Unlock()

	if !r.running {
		return nil
	}
	r.running = false

	close(r.stopCh)
	r.wg.Wait()

	r.logger.Info("schedule runner stopped")
	return nil
}

// load pulls persisted entries into the authoritative map. Entries
// persisted without a NextRunAt get one computed from now.
func (r *Runner) load(ctx context.Context) error {
	entries, err := r.store.ListSchedules(ctx)
	if err != nil {
		return fmt.Errorf("dutyleak/schedule: load entries: %w", err)
	}

	now := time.Now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range entries {
		if e.NextRunAt == nil && e.Enabled {
			sched, parseErr := r.compile(e.Spec)
			if parseErr != nil {
				r.logger.Warn("schedule entry has invalid spec, skipping",
					slog.String("schedule_name", e.Name),
					slog.String("spec", e.Spec),
					slog.String("error", parseErr.Error()),
				)
				continue
			}
			next := sched.Next(now)
			e.NextRunAt = &next
		}
		r.entries[e.ID.String()] = e
	}
	return nil
}

func (r *Runner) tickLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.fireDue(time.Now().UTC())
		}
	}
}

// ──────────────────────────────────────────────────
// Firing
// ──────────────────────────────────────────────────

func (r *Runner) fireDue(now time.Time) {
	for _, e := range r.dueEntries(now) {
		r.fire(context.Background(), e, now)
	}
}

// dueEntries snapshots the entries due at now, in name order so a tick
// fires deterministically.
func (r *Runner) dueEntries(now time.Time) []*Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	var due []*Entry
	for _, e := range r.entries {
		if !e.Enabled || e.NextRunAt == nil || e.NextRunAt.After(now) {
			continue
		}
		due = append(due, e.Clone())
	}
	sort.Slice(due, func(i, k int) bool { return due[i].Name < due[k].Name })
	return due
}

func (r *Runner) fire(ctx context.Context, e *Entry, now time.Time) {
	sched, err := r.compile(e.Spec)
	if err != nil {
		// Bad persisted data. Disable rather than refiring the error
		// every tick.
		r.logger.Error("schedule entry has invalid spec, disabling",
			slog.String("schedule_name", e.Name),
			slog.String("spec", e.Spec),
			slog.String("error", err.Error()),
		)
		if disableErr := r.Disable(ctx, e.ID); disableErr != nil {
			r.logger.Error("failed to disable schedule entry",
				slog.String("schedule_name", e.Name),
				slog.String("error", disableErr.Error()),
			)
		}
		return
	}

	// Fired jobs carry the entry's workspace, same as a synchronous
	// enqueue from that tenant.
	ctx = scope.With(ctx, e.WorkspaceID)

	created, err := r.enqueue(ctx, e.JobType, e.Payload, job.WithDefaultPriority(e.Priority))
	if err != nil {
		// NextRunAt stays in the past so the next tick retries.
		r.logger.Error("schedule enqueue failed",
			slog.String("schedule_name", e.Name),
			slog.String("job_type", string(e.JobType)),
			slog.String("error", err.Error()),
		)
		return
	}

	next := sched.Next(now)
	r.commitFired(ctx, e.ID, now, next)

	if r.emitter != nil {
		r.emitter.EmitScheduleFired(ctx, e.Name, created.ID)
	}

	r.logger.Info("schedule fired",
		slog.String("schedule_name", e.Name),
		slog.String("job_type", string(e.JobType)),
		slog.String("job_id", created.ID.String()),
		slog.Time("next_run", next),
	)
}

// commitFired advances the entry past the window that just fired. An
// entry removed mid-fire is left alone; the job is already enqueued.
func (r *Runner) commitFired(ctx context.Context, scheduleID id.ScheduleID, firedAt, next time.Time) {
	r.mu.Lock()
	e, ok := r.entries[scheduleID.String()]
	if !ok {
		r.mu.Unlock()
		return
	}
	e.LastFiredAt = &firedAt
	e.NextRunAt = &next
	e.Touch()
	cp := e.Clone()
	r.mu.Unlock()

	if err := r.store.UpsertSchedule(ctx, cp); err != nil {
		r.logger.Warn("failed to persist schedule state",
			slog.String("schedule_name", cp.Name),
			slog.String("error", err.Error()),
		)
	}
}

// compile caches parsed cron expressions.
func (r *Runner) compile(expr string) (cronlib.Schedule, error) {
	r.parsedMu.RLock()
	sched, ok := r.parsed[expr]
	r.parsedMu.RUnlock()
	if ok {
		return sched, nil
	}

	sched, err := ParseSpec(expr)
	if err != nil {
		return nil, err
	}

	r.parsedMu.Lock()
	r.parsed[expr] = sched
	r.parsedMu.Unlock()
	return sched, nil
}
