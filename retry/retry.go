// Package retry decides what happens after a failed job attempt: another
// run after a backoff delay, or parking in the dead-letter state.
//
// The policy is pure. It never touches the store or the clock, so the
// same decision can be made during live execution and during crash
// recovery, when a restart finds a job whose failure was recorded but
// whose follow-up was never chosen.
package retry

import (
	"time"

	"github.com/Milo6x/dutyleak-app-sub004/backoff"
)

// Decision is the follow-up chosen for a single failed attempt.
type Decision struct {
	// DeadLetter reports that the job has exhausted its attempts and
	// must be parked rather than retried.
	DeadLetter bool

	// Delay is how long the job must wait before it becomes eligible
	// to run again. Zero when DeadLetter is set.
	Delay time.Duration
}

// Policy chooses between another attempt and the dead-letter state.
type Policy struct {
	strategy backoff.Strategy
}

// NewPolicy builds a Policy that spaces retries using the given backoff
// strategy. A nil strategy falls back to backoff.DefaultStrategy.
func NewPolicy(strategy backoff.Strategy) *Policy {
	if strategy == nil {
		strategy = backoff.DefaultStrategy()
	}
	return &Policy{strategy: strategy}
}

// Decide chooses the follow-up for a job whose attempt just failed.
//
// failures is the total number of failed attempts so far, including the
// one being decided; maxRetries is the job's attempt ceiling. A job
// dead-letters once failures reaches maxRetries, so a job with
// maxRetries 3 runs at most three times before parking.
func (p *Policy) Decide(failures, maxRetries int) Decision {
	if failures >= maxRetries {
		return Decision{DeadLetter: true}
	}
	return Decision{Delay: p.strategy.Delay(failures)}
}
