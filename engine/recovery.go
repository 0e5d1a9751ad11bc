package engine

import (
	"context"
	"errors"
	"time"

	"github.com/Milo6x/dutyleak-app-sub004/job"
	"github.com/Milo6x/dutyleak-app-sub004/store"
)

// recover settles jobs left mid-flight by a previous process. Jobs found
// running were interrupted and requeue without consuming a retry; jobs
// found failed had their verdict pending when the process died, so the
// retry policy is re-applied now.
func (eng *Engine) recover(ctx context.Context) error {
	if err := eng.recoverRunning(ctx); err != nil {
		return err
	}
	return eng.recoverFailed(ctx)
}

func (eng *Engine) recoverRunning(ctx context.Context) error {
	interrupted, _, err := eng.store.List(ctx, store.Filter{
		Statuses: []job.Status{job.StatusRunning},
	})
	if err != nil {
		return err
	}
	for _, j := range interrupted {
		_, err := eng.store.ApplyTransition(ctx, j.ID, job.StatusRunning, job.StatusPending, func(p *job.Job) {
			p.StartedAt = nil
		})
		if err != nil {
			return err
		}
		eng.logger.Info("recovered interrupted job",
			"job_id", j.ID,
			"job_type", j.Type,
		)
	}
	return nil
}

func (eng *Engine) recoverFailed(ctx context.Context) error {
	undecided, _, err := eng.store.List(ctx, store.Filter{
		Statuses: []job.Status{job.StatusFailed},
	})
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, j := range undecided {
		decision := eng.policy.Decide(j.RetryCount, j.MaxRetries)
		if decision.DeadLetter {
			parked, err := eng.store.ApplyTransition(ctx, j.ID, job.StatusFailed, job.StatusDeadLetter, nil)
			if err != nil {
				return err
			}
			cause := errors.New("retries exhausted")
			if parked.Failure != nil {
				cause = errors.New(parked.Failure.Message)
			}
			eng.extensions.EmitJobDeadLettered(ctx, parked, cause)
			eng.logger.Warn("dead-lettered job on recovery",
				"job_id", j.ID,
				"job_type", j.Type,
				"retry_count", parked.RetryCount,
			)
			continue
		}

		notBefore := now.Add(decision.Delay)
		requeued, err := eng.store.ApplyTransition(ctx, j.ID, job.StatusFailed, job.StatusPending, func(p *job.Job) {
			p.NotBefore = notBefore
			p.StartedAt = nil
		})
		if err != nil {
			return err
		}
		eng.extensions.EmitJobRetrying(ctx, requeued, requeued.RetryCount, notBefore)
		eng.logger.Info("requeued failed job on recovery",
			"job_id", j.ID,
			"job_type", j.Type,
			"retry_count", requeued.RetryCount,
			"not_before", notBefore,
		)
	}
	return nil
}
