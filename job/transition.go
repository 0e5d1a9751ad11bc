package job

import (
	"fmt"

	dutyleak "github.com/Milo6x/dutyleak-app-sub004"
)

// transitions is the allowed-edge table of the job state machine.
//
//	pending    → running, cancelled
//	running    → completed, failed, paused, cancelled, pending (recovery)
//	paused     → running, cancelled
//	failed     → pending (retry), dead_letter
//	cancelled  → pending (manual retry)
//	dead_letter → pending (manual retry)
//	completed  → (terminal)
//
// The running→pending edge exists solely for the recovery pass over
// jobs orphaned by a crash or shutdown; nothing else uses it.
var transitions = map[Status][]Status{
	StatusPending:    {StatusRunning, StatusCancelled},
	StatusRunning:    {StatusCompleted, StatusFailed, StatusPaused, StatusCancelled, StatusPending},
	StatusPaused:     {StatusRunning, StatusCancelled},
	StatusFailed:     {StatusPending, StatusDeadLetter},
	StatusCancelled:  {StatusPending},
	StatusDeadLetter: {StatusPending},
	StatusCompleted:  nil,
}

// CanTransition reports whether the state machine allows moving from
// one status to another. It is a pure function over the edge table.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition validates and applies a status change on the job.
// Returns a wrapped dutyleak.ErrInvalidTransition if the edge is not
// in the table. Callers that need compare-and-set semantics check the
// current status before calling (see store.ApplyTransition).
func Transition(j *Job, to Status) error {
	if !CanTransition(j.Status, to) {
		return fmt.Errorf("%w: %s to %s", dutyleak.ErrInvalidTransition, j.Status, to)
	}
	j.Status = to
	return nil
}
