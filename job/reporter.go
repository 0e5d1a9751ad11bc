package job

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	dutyleak "github.com/Milo6x/dutyleak-app-sub004"
	"github.com/Milo6x/dutyleak-app-sub004/id"
)

// ProgressSink receives write-through progress updates from a running
// job. The authoritative store implements it.
type ProgressSink interface {
	UpdateProgress(ctx context.Context, jobID id.JobID, p Progress) error
}

// IntentSource reports cooperative cancel and pause requests for a job.
type IntentSource interface {
	CancelRequested(jobID id.JobID) bool
	PauseRequested(jobID id.JobID) bool
}

// Reporter is a handler's view of its own job while it runs. Progress
// calls are the handler's safe points: each one first observes pending
// cancel/pause requests (returning dutyleak.ErrCancelRequested or
// dutyleak.ErrPauseRequested, which the handler propagates up), then
// writes the new counters through the store.
//
// A Reporter serializes its own calls; handlers may report from
// multiple goroutines.
type Reporter struct {
	jobID   id.JobID
	sink    ProgressSink
	intents IntentSource

	mu       sync.Mutex
	progress Progress
	result   json.RawMessage
}

// NewReporter creates a Reporter seeded with the job's current progress
// (non-zero when a paused job resumes).
func NewReporter(jobID id.JobID, start Progress, sink ProgressSink, intents IntentSource) *Reporter {
	return &Reporter{
		jobID:    jobID,
		sink:     sink,
		intents:  intents,
		progress: start,
	}
}

// Checkpoint observes the context and any pending cancel/pause request
// without changing progress. Handlers call it inside long stretches
// that produce no countable units.
func (r *Reporter) Checkpoint(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.intents.CancelRequested(r.jobID) {
		return dutyleak.ErrCancelRequested
	}
	if r.intents.PauseRequested(r.jobID) {
		return dutyleak.ErrPauseRequested
	}
	return nil
}

// SetTotal declares (or adjusts) the number of sub-units in the job.
func (r *Reporter) SetTotal(ctx context.Context, total int) error {
	return r.apply(ctx, func(p *Progress) {
		p.Total = total
	})
}

// Advance adds completed and failed sub-units to the counters.
func (r *Reporter) Advance(ctx context.Context, completed, failed int) error {
	return r.apply(ctx, func(p *Progress) {
		p.Completed += completed
		p.Failed += failed
	})
}

// SetCurrent labels the sub-unit being worked on right now.
func (r *Reporter) SetCurrent(ctx context.Context, label string) error {
	return r.apply(ctx, func(p *Progress) {
		p.Current = label
	})
}

// Update replaces the progress counters wholesale.
func (r *Reporter) Update(ctx context.Context, p Progress) error {
	return r.apply(ctx, func(cur *Progress) {
		*cur = p
	})
}

// apply runs one serialized report: safe-point check, mutate a local
// candidate, write through the sink, and only then commit locally.
func (r *Reporter) apply(ctx context.Context, mutate func(*Progress)) error {
	if err := r.Checkpoint(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	candidate := r.progress
	mutate(&candidate)
	if err := r.sink.UpdateProgress(ctx, r.jobID, candidate); err != nil {
		return err
	}
	r.progress = candidate
	return nil
}

// Progress returns the last successfully reported counters.
func (r *Reporter) Progress() Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.progress
}

// SetResult records a result payload stored on the job when the
// handler returns success.
func (r *Reporter) SetResult(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("job: marshal result: %w", err)
	}
	r.mu.Lock()
	r.result = data
	r.mu.Unlock()
	return nil
}

// Result returns the recorded result payload, if any.
func (r *Reporter) Result() json.RawMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result
}
