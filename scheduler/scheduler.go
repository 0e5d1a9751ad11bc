// Package scheduler decides which ready job runs next. It consumes the
// store's ready set (priority descending, FIFO within a tier), reserves
// a worker slot, claims the job via compare-and-set, and hands it to
// the pool. The loop wakes on new work, freed slots, a safety-net tick,
// and a timer armed to the earliest future backoff eligibility.
//
// There is no aging across priority tiers: a continuous stream of
// urgent work starves lower tiers indefinitely.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	dutyleak "github.com/Milo6x/dutyleak-app-sub004"
	"github.com/Milo6x/dutyleak-app-sub004/ext"
	"github.com/Milo6x/dutyleak-app-sub004/job"
	"github.com/Milo6x/dutyleak-app-sub004/store"
	"github.com/Milo6x/dutyleak-app-sub004/throttle"
)

// Dispatcher runs claimed jobs on bounded worker slots. The scheduler
// reserves a slot before claiming so a claimed job always has
// somewhere to run. Implemented by worker.Pool.
type Dispatcher interface {
	// TryReserve acquires a slot without blocking.
	TryReserve() bool
	// ReleaseReservation returns an unused slot after a claim fell
	// through.
	ReleaseReservation()
	// Run executes a claimed job on the reserved slot.
	Run(j *job.Job)
}

// Scheduler owns the claim loop.
type Scheduler struct {
	store      *store.Store
	pool       Dispatcher
	throttle   *throttle.Manager
	extensions *ext.Registry
	logger     *slog.Logger
	tick       time.Duration

	wake   chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithTickInterval sets the safety-net poll interval.
func WithTickInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.tick = d }
}

// WithThrottle sets the manager consulted at claim time for per-type
// caps and per-workspace rate limits. A throttled candidate is skipped,
// not blocking the rest of the ready set.
func WithThrottle(m *throttle.Manager) Option {
	return func(s *Scheduler) { s.throttle = m }
}

// New creates a Scheduler.
func New(st *store.Store, pool Dispatcher, extensions *ext.Registry, logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:      st,
		pool:       pool,
		extensions: extensions,
		logger:     logger,
		tick:       time.Second,
		wake:       make(chan struct{}, 1),
		stopCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Wake nudges the loop to re-scan the ready set. Called on new pending
// jobs, resume requests, and freed slots. Coalesces while a pass is in
// flight.
func (s *Scheduler) Wake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Start launches the scheduling loop. It returns immediately.
func (s *Scheduler) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	s.running = true

	s.logger.Info("scheduler starting", slog.Duration("tick", s.tick))

	s.wg.Add(1)
	go s.run()
	return nil
}

// Stop halts the loop and waits for the in-flight pass to finish.
// Nothing new is claimed afterwards.
func (s *Scheduler) Stop(_ context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()

	s.logger.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	// Armed after each pass to the earliest future NotBefore so retry
	// backoffs fire on time instead of waiting out a full tick.
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		s.dispatchReady()

		if next, ok := s.store.NextWake(time.Now().UTC()); ok {
			timer.Reset(time.Until(next))
		} else {
			timer.Stop()
		}

		select {
		case <-s.stopCh:
			return
		case <-s.wake:
		case <-ticker.C:
		case <-timer.C:
		}
	}
}

// dispatchReady hands ready jobs to free slots in priority order. The
// scan stops when slots run out and resumes on the next slot-freed
// wake; a throttled or stale candidate is skipped.
func (s *Scheduler) dispatchReady() {
	now := time.Now().UTC()

	for _, cand := range s.store.Ready(now) {
		select {
		case <-s.stopCh:
			return
		default:
		}

		if !s.pool.TryReserve() {
			return
		}

		if s.throttle != nil && !s.throttle.Acquire(cand.Type, cand.WorkspaceID) {
			s.pool.ReleaseReservation()
			continue
		}

		claimed, err := s.claim(cand, now)
		if err != nil {
			if s.throttle != nil {
				s.throttle.Release(cand.Type, cand.WorkspaceID)
			}
			s.pool.ReleaseReservation()

			if errors.Is(err, dutyleak.ErrStaleTransition) || errors.Is(err, dutyleak.ErrJobNotFound) {
				s.logger.Debug("claim lost", slog.String("job_id", cand.ID.String()))
			} else {
				s.logger.Warn("claim failed",
					slog.String("job_id", cand.ID.String()),
					slog.String("error", err.Error()),
				)
			}
			continue
		}

		s.pool.Run(claimed)
	}
}

// claim moves a candidate into running via compare-and-set on the
// status it was selected under, so no two slots ever run the same job.
func (s *Scheduler) claim(cand *job.Job, now time.Time) (*job.Job, error) {
	ctx := context.Background()
	resumed := cand.Status == job.StatusPaused

	claimed, err := s.store.ApplyTransition(ctx, cand.ID, cand.Status, job.StatusRunning, func(cur *job.Job) {
		started := now
		cur.StartedAt = &started
	})
	if err != nil {
		return nil, err
	}

	if resumed {
		s.extensions.EmitJobResumed(ctx, claimed)
	} else {
		s.extensions.EmitJobStarted(ctx, claimed)
	}

	s.logger.Debug("job dispatched",
		slog.String("job_id", claimed.ID.String()),
		slog.String("job_type", string(claimed.Type)),
		slog.String("priority", claimed.Priority.String()),
	)

	return claimed, nil
}
