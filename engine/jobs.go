package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	dutyleak "github.com/Milo6x/dutyleak-app-sub004"
	"github.com/Milo6x/dutyleak-app-sub004/id"
	"github.com/Milo6x/dutyleak-app-sub004/job"
	"github.com/Milo6x/dutyleak-app-sub004/scope"
	"github.com/Milo6x/dutyleak-app-sub004/store"
	"github.com/Milo6x/dutyleak-app-sub004/watch"
)

// Add marshals a typed payload and enqueues a job of the given type.
func Add[T any](ctx context.Context, eng *Engine, typ job.Type, payload T, opts ...job.Option) (*job.Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload for job type %q: %w", typ, err)
	}
	return eng.AddJob(ctx, typ, raw, opts...)
}

// AddJob validates and persists a new pending job, notifies extensions,
// and wakes the scheduler. The workspace comes from the options or, when
// absent, from the context via scope.With.
func (eng *Engine) AddJob(ctx context.Context, typ job.Type, payload json.RawMessage, opts ...job.Option) (*job.Job, error) {
	if eng.closed.Load() {
		return nil, dutyleak.ErrEngineClosed
	}

	entry, ok := eng.registry.Get(typ)
	if !ok {
		return nil, fmt.Errorf("%w: %q", dutyleak.ErrUnknownType, typ)
	}
	if entry.Validate != nil {
		if err := entry.Validate(payload); err != nil {
			return nil, err
		}
	}

	o := entry.Opts
	for _, opt := range opts {
		opt(&o)
	}

	workspace := o.WorkspaceID
	if workspace == "" {
		workspace = scope.Capture(ctx)
	}
	if workspace == "" {
		return nil, dutyleak.ErrMissingWorkspace
	}

	now := time.Now().UTC()
	notBefore := o.NotBefore
	if notBefore.IsZero() {
		notBefore = now
	}

	j := &job.Job{
		Entity:            dutyleak.NewEntity(),
		ID:                id.NewJobID(),
		Type:              typ,
		Status:            job.StatusPending,
		Priority:          o.Priority,
		WorkspaceID:       workspace,
		Payload:           append(json.RawMessage(nil), payload...),
		MaxRetries:        o.MaxRetries,
		NotBefore:         notBefore,
		EstimatedDuration: o.EstimatedDuration,
	}

	if err := eng.store.Create(ctx, j); err != nil {
		return nil, err
	}
	eng.extensions.EmitJobEnqueued(ctx, j)
	eng.sched.Wake()
	return j, nil
}

// GetJob returns a snapshot of the job with the given ID.
func (eng *Engine) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	return eng.store.Get(ctx, jobID)
}

// ListJobs returns jobs matching the filter plus the total count before
// pagination, newest first.
func (eng *Engine) ListJobs(ctx context.Context, f store.Filter) ([]*job.Job, int, error) {
	return eng.store.List(ctx, f)
}

// JobCounts returns the number of jobs per status for a workspace. An
// empty workspace counts across all workspaces.
func (eng *Engine) JobCounts(ctx context.Context, workspaceID string) (map[job.Status]int, error) {
	return eng.store.Counts(ctx, workspaceID)
}

// CancelJob cancels a job. Pending and paused jobs settle immediately;
// running jobs are signalled and settle cooperatively when the handler
// next reports progress or returns.
func (eng *Engine) CancelJob(ctx context.Context, jobID id.JobID) error {
	j, err := eng.store.Get(ctx, jobID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	switch j.Status {
	case job.StatusPending:
		cancelled, err := eng.store.ApplyTransition(ctx, jobID, job.StatusPending, job.StatusCancelled, func(c *job.Job) {
			c.CompletedAt = &now
		})
		if err == nil {
			eng.extensions.EmitJobCancelled(ctx, cancelled)
			return nil
		}
		if !errors.Is(err, dutyleak.ErrStaleTransition) {
			return err
		}
		// Claimed by a worker between the read and the transition; fall
		// through to the cooperative path.
		fallthrough

	case job.StatusRunning:
		if err := eng.store.RequestCancel(jobID); err != nil {
			return err
		}
		eng.pool.Cancel(jobID)
		return nil

	case job.StatusPaused:
		cancelled, err := eng.store.ApplyTransition(ctx, jobID, job.StatusPaused, job.StatusCancelled, func(c *job.Job) {
			c.CompletedAt = &now
		})
		if err != nil {
			return err
		}
		eng.extensions.EmitJobCancelled(ctx, cancelled)
		return nil

	default:
		return fmt.Errorf("dutyleak: cancel %s job: %w", j.Status, dutyleak.ErrInvalidTransition)
	}
}

// PauseJob asks a running job to pause at its next progress report. Only
// job types registered as pausable accept the request.
func (eng *Engine) PauseJob(ctx context.Context, jobID id.JobID) error {
	j, err := eng.store.Get(ctx, jobID)
	if err != nil {
		return err
	}
	entry, ok := eng.registry.Get(j.Type)
	if !ok {
		return fmt.Errorf("%w: %q", dutyleak.ErrUnknownType, j.Type)
	}
	if !entry.Opts.Pausable {
		return fmt.Errorf("%w: %q", dutyleak.ErrNotPausable, j.Type)
	}
	if j.Status != job.StatusRunning {
		return fmt.Errorf("dutyleak: pause %s job: %w", j.Status, dutyleak.ErrInvalidTransition)
	}
	return eng.store.RequestPause(jobID)
}

// ResumeJob returns a paused job to the pending queue; accumulated
// progress is preserved and the handler restarts from it.
func (eng *Engine) ResumeJob(ctx context.Context, jobID id.JobID) error {
	j, err := eng.store.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if j.Status != job.StatusPaused {
		return fmt.Errorf("dutyleak: resume %s job: %w", j.Status, dutyleak.ErrInvalidTransition)
	}
	if err := eng.store.RequestResume(jobID); err != nil {
		return err
	}
	eng.sched.Wake()
	return nil
}

// RetryJob requeues a failed, cancelled, or dead-lettered job as a fresh
// pending attempt with its retry budget reset. Options may override the
// priority, retry budget, or earliest start. Completed jobs are final and
// return ErrInvalidTransition.
func (eng *Engine) RetryJob(ctx context.Context, jobID id.JobID, opts ...job.Option) (*job.Job, error) {
	if eng.closed.Load() {
		return nil, dutyleak.ErrEngineClosed
	}

	cur, err := eng.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	o := job.Options{MaxRetries: cur.MaxRetries, Priority: cur.Priority}
	for _, opt := range opts {
		opt(&o)
	}

	now := time.Now().UTC()
	notBefore := o.NotBefore
	if notBefore.IsZero() {
		notBefore = now
	}

	requeued, err := eng.store.ApplyTransition(ctx, jobID, cur.Status, job.StatusPending, func(j *job.Job) {
		j.Priority = o.Priority
		j.MaxRetries = o.MaxRetries
		j.RetryCount = 0
		j.Failure = nil
		j.Result = nil
		j.Progress = job.Progress{}
		j.NotBefore = notBefore
		j.StartedAt = nil
		j.CompletedAt = nil
	})
	if err != nil {
		return nil, err
	}

	eng.extensions.EmitJobEnqueued(ctx, requeued)
	eng.sched.Wake()
	return requeued, nil
}

// Watch subscribes to lifecycle and progress updates for one job.
func (eng *Engine) Watch(jobID id.JobID) *watch.Subscription {
	return eng.hub.Watch(watch.JobTopic(jobID.String()))
}

// WatchWorkspace subscribes to updates for every job in a workspace.
func (eng *Engine) WatchWorkspace(workspaceID string) *watch.Subscription {
	return eng.hub.Watch(watch.WorkspaceTopic(workspaceID))
}

// Wait blocks until the job reaches a terminal status and returns its
// final snapshot, or until the context is done. If the engine shuts down
// first, Wait returns ErrEngineClosed.
func (eng *Engine) Wait(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	sub := eng.Watch(jobID)
	defer sub.Close()

	// Snapshot after subscribing so a terminal transition between the two
	// cannot be missed.
	j, err := eng.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.Status.Terminal() {
		return j, nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case u, ok := <-sub.Updates():
			if !ok {
				return nil, dutyleak.ErrEngineClosed
			}
			sub.AddCredits(1)
			if u.Terminal() {
				return u.Job.Clone(), nil
			}
		}
	}
}
