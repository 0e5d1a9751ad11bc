package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	dutyleak "github.com/Milo6x/dutyleak-app-sub004"
	"github.com/Milo6x/dutyleak-app-sub004/backoff"
	"github.com/Milo6x/dutyleak-app-sub004/id"
	"github.com/Milo6x/dutyleak-app-sub004/job"
)

// Ensure Store satisfies the handler-facing contracts at compile time.
var (
	_ job.ProgressSink = (*Store)(nil)
	_ job.IntentSource = (*Store)(nil)
)

// Store is the authoritative in-memory job table. All reads are served
// from memory; all writes go through the mirror before they commit.
// Safe for concurrent use.
type Store struct {
	mirror     job.Mirror
	logger     *slog.Logger
	retries    int
	retryDelay backoff.Strategy

	mu      sync.RWMutex
	jobs    map[string]*job.Job
	intents map[string]*intentFlags
	locks   map[string]*sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for mirror retry warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMirrorRetry sets how many times a failed mirror write is retried
// and the fixed delay between attempts.
func WithMirrorRetry(retries int, delay time.Duration) Option {
	return func(s *Store) {
		if retries >= 0 {
			s.retries = retries
		}
		if delay > 0 {
			s.retryDelay = backoff.NewConstant(delay)
		}
	}
}

// New creates a Store writing through the given mirror. A nil mirror
// keeps jobs only in memory; the engine always configures one, but a
// bare Store is convenient in tests.
func New(mirror job.Mirror, opts ...Option) *Store {
	s := &Store{
		mirror:     mirror,
		logger:     slog.Default(),
		retries:    3,
		retryDelay: backoff.NewConstant(100 * time.Millisecond),
		jobs:       make(map[string]*job.Job),
		intents:    make(map[string]*intentFlags),
		locks:      make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bootstrap loads the full job population from the mirror into memory.
// Existing in-memory entries are replaced. Call once before the engine
// starts admitting work.
func (s *Store) Bootstrap(ctx context.Context) error {
	if s.mirror == nil {
		return nil
	}

	var (
		loadMu sync.Mutex
		loaded []*job.Job
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, status := range job.Statuses() {
		g.Go(func() error {
			jobs, err := s.mirror.JobsByStatus(gctx, status)
			if err != nil {
				return fmt.Errorf("dutyleak/store: load %s jobs: %w", status, err)
			}
			loadMu.Lock()
			loaded = append(loaded, jobs...)
			loadMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.mu.Lock()
	for _, j := range loaded {
		s.jobs[j.ID.String()] = j.Clone()
	}
	s.mu.Unlock()

	s.logger.Info("store bootstrapped from mirror", slog.Int("jobs", len(loaded)))
	return nil
}

// ──────────────────────────────────────────────────
// Mutations
// ──────────────────────────────────────────────────

// Create persists a new job. The caller stamps timestamps and status;
// the store only guards ID uniqueness and durability.
func (s *Store) Create(ctx context.Context, j *job.Job) error {
	key := j.ID.String()

	lock := s.jobLock(key)
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	_, exists := s.jobs[key]
	s.mu.RUnlock()
	if exists {
		return dutyleak.ErrJobAlreadyExists
	}

	cp := j.Clone()
	if err := s.writeThrough(ctx, cp); err != nil {
		return err
	}

	s.mu.Lock()
	s.jobs[key] = cp
	s.mu.Unlock()
	return nil
}

// ApplyTransition moves a job from one status to another with
// compare-and-set semantics. The patch runs on a private copy after the
// status is set, so it can fill in failure details, retry bookkeeping,
// or timestamps that belong to the same atomic change. Returns the
// committed record.
//
// The job must currently hold the from status or the call fails with
// dutyleak.ErrStaleTransition; an edge the lifecycle does not allow
// fails with dutyleak.ErrInvalidTransition. Any pending cancel, pause,
// or resume request is consumed by a committed transition.
func (s *Store) ApplyTransition(ctx context.Context, jobID id.JobID, from, to job.Status, patch func(*job.Job)) (*job.Job, error) {
	if !job.CanTransition(from, to) {
		return nil, fmt.Errorf("dutyleak/store: %s to %s: %w", from, to, dutyleak.ErrInvalidTransition)
	}

	key := jobID.String()
	lock := s.jobLock(key)
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	cur, ok := s.jobs[key]
	s.mu.RUnlock()
	if !ok {
		return nil, dutyleak.ErrJobNotFound
	}
	if cur.Status != from {
		return nil, fmt.Errorf("dutyleak/store: job %s is %s, not %s: %w", jobID, cur.Status, from, dutyleak.ErrStaleTransition)
	}

	next := cur.Clone()
	next.Status = to
	if patch != nil {
		patch(next)
	}
	next.Touch()

	if err := s.writeThrough(ctx, next); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.jobs[key] = next
	delete(s.intents, key)
	s.mu.Unlock()

	return next.Clone(), nil
}

// UpdateProgress write-throughs new progress counters for a running
// job. Counters may only move forward; a violation fails with
// dutyleak.ErrInvalidProgress and changes nothing.
func (s *Store) UpdateProgress(ctx context.Context, jobID id.JobID, p job.Progress) error {
	if err := p.Validate(); err != nil {
		return err
	}

	key := jobID.String()
	lock := s.jobLock(key)
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	cur, ok := s.jobs[key]
	s.mu.RUnlock()
	if !ok {
		return dutyleak.ErrJobNotFound
	}
	if cur.Status != job.StatusRunning {
		return fmt.Errorf("dutyleak/store: progress on %s job: %w", cur.Status, dutyleak.ErrInvalidProgress)
	}
	if err := p.AdvancesFrom(cur.Progress); err != nil {
		return err
	}

	next := cur.Clone()
	next.Progress = p
	next.Touch()

	if err := s.writeThrough(ctx, next); err != nil {
		return err
	}

	s.mu.Lock()
	s.jobs[key] = next
	s.mu.Unlock()
	return nil
}

// ──────────────────────────────────────────────────
// Internals
// ──────────────────────────────────────────────────

// jobLock returns the per-job write lock, creating it on first use.
// Write paths hold it across the mirror write and the memory commit, so
// two mutations of the same job serialize while unrelated jobs proceed
// in parallel.
func (s *Store) jobLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// writeThrough durably writes the record to the mirror, retrying
// transient failures with a fixed delay. The caller must not commit to
// memory unless this returns nil.
func (s *Store) writeThrough(ctx context.Context, j *job.Job) error {
	if s.mirror == nil {
		return nil
	}

	var err error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			s.logger.Warn("mirror write failed, retrying",
				slog.String("job_id", j.ID.String()),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.retryDelay.Delay(attempt)):
			}
		}
		if err = s.mirror.UpsertJob(ctx, j); err == nil {
			return nil
		}
	}

	return fmt.Errorf("dutyleak/store: mirror write for job %s: %w", j.ID, err)
}
