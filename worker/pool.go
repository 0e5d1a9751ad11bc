package worker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Milo6x/dutyleak-app-sub004/id"
	"github.com/Milo6x/dutyleak-app-sub004/job"
	"github.com/Milo6x/dutyleak-app-sub004/throttle"
)

// Pool runs claimed jobs on a bounded set of slots. The scheduler
// reserves a slot before claiming a job and hands the claimed job to
// Run; the slot frees when the attempt finishes. At most MaxConcurrency
// jobs execute at any instant.
type Pool struct {
	executor *Executor
	throttle *throttle.Manager
	logger   *slog.Logger
	workerID id.WorkerID

	concurrency int
	slots       chan struct{}

	running atomic.Bool
	wg      sync.WaitGroup

	activeJobs map[string]context.CancelFunc
	activeMu   sync.Mutex

	// onSlotFreed nudges the scheduler after each finished attempt.
	// Set once during engine wiring, before Start.
	onSlotFreed func()
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithMaxConcurrency sets the number of worker slots.
func WithMaxConcurrency(n int) PoolOption {
	return func(p *Pool) { p.concurrency = n }
}

// WithThrottle sets the throttle manager whose claim-time acquisitions
// the pool releases after each attempt.
func WithThrottle(m *throttle.Manager) PoolOption {
	return func(p *Pool) { p.throttle = m }
}

// NewPool creates a worker pool.
func NewPool(executor *Executor, logger *slog.Logger, opts ...PoolOption) *Pool {
	p := &Pool{
		executor:    executor,
		logger:      logger,
		workerID:    id.NewWorkerID(),
		concurrency: 4,
		activeJobs:  make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.slots = make(chan struct{}, p.concurrency)
	return p
}

// WorkerID returns the pool's unique worker identifier.
func (p *Pool) WorkerID() id.WorkerID { return p.workerID }

// OnSlotFreed registers the callback invoked after each attempt
// finishes and its slot returns. Must be set before Start.
func (p *Pool) OnSlotFreed(fn func()) { p.onSlotFreed = fn }

// Start marks the pool as accepting work. It returns immediately;
// slots are goroutines spawned per dispatched job, not long-lived
// pollers.
func (p *Pool) Start(_ context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return nil
	}

	p.logger.Info("worker pool starting",
		slog.String("worker_id", p.workerID.String()),
		slog.Int("concurrency", p.concurrency),
	)
	return nil
}

// Stop waits for in-flight jobs to finish. If the context has a
// deadline, active jobs are cancelled when time runs out; interrupted
// jobs stay running in the mirror and are re-pended by the next
// start's recovery pass.
func (p *Pool) Stop(ctx context.Context) error {
	if !p.running.CompareAndSwap(true, false) {
		return nil
	}

	p.logger.Info("worker pool stopping", slog.String("worker_id", p.workerID.String()))

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
	case <-ctx.Done():
		p.logger.Warn("worker pool shutdown timed out, cancelling active jobs")
		p.cancelActiveJobs()
		p.wg.Wait()
	}

	return nil
}

// TryReserve acquires a slot without blocking. The scheduler reserves
// before claiming so a claimed job always has somewhere to run.
func (p *Pool) TryReserve() bool {
	if !p.running.Load() {
		return false
	}
	select {
	case p.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

// ReleaseReservation returns an unused slot after a claim fell through.
func (p *Pool) ReleaseReservation() {
	<-p.slots
}

// Run executes a claimed job on the reserved slot. It returns
// immediately; the attempt runs on its own goroutine.
func (p *Pool) Run(j *job.Job) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.freeSlot(j)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		p.trackJob(j.ID.String(), cancel)
		defer p.untrackJob(j.ID.String())

		if err := p.executor.Execute(ctx, j); err != nil {
			p.logger.Debug("job execution failed",
				slog.String("job_id", j.ID.String()),
				slog.String("job_type", string(j.Type)),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// Cancel cancels the context of an active job. Returns false if the
// job is not currently executing on this pool.
func (p *Pool) Cancel(jobID id.JobID) bool {
	p.activeMu.Lock()
	cancel, ok := p.activeJobs[jobID.String()]
	p.activeMu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// ActiveCount returns the number of reserved slots.
func (p *Pool) ActiveCount() int {
	return len(p.slots)
}

func (p *Pool) freeSlot(j *job.Job) {
	if p.throttle != nil {
		p.throttle.Release(j.Type, j.WorkspaceID)
	}
	<-p.slots
	if p.onSlotFreed != nil {
		p.onSlotFreed()
	}
}

func (p *Pool) trackJob(jobID string, cancel context.CancelFunc) {
	p.activeMu.Lock()
	p.activeJobs[jobID] = cancel
	p.activeMu.Unlock()
}

func (p *Pool) untrackJob(jobID string) {
	p.activeMu.Lock()
	delete(p.activeJobs, jobID)
	p.activeMu.Unlock()
}

func (p *Pool) cancelActiveJobs() {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()
	for jobID, cancel := range p.activeJobs {
		p.logger.Warn("cancelling active job", slog.String("job_id", jobID))
		cancel()
	}
}
