// Package watch provides real-time observation of job lifecycle
// events. It bridges the ext.Extension system to in-process watchers
// via topic-based pub/sub, backing the engine's Watch and Wait
// operations.
package watch

import (
	"time"

	"github.com/Milo6x/dutyleak-app-sub004/job"
)

// Kind identifies the kind of lifecycle update.
type Kind string

const (
	// Job updates.
	KindEnqueued   Kind = "job.enqueued"
	KindStarted    Kind = "job.started"
	KindProgressed Kind = "job.progressed"
	KindCompleted  Kind = "job.completed"
	KindFailed     Kind = "job.failed"
	KindRetrying   Kind = "job.retrying"
	KindDeadLetter Kind = "job.dead_letter"
	KindCancelled  Kind = "job.cancelled"
	KindPaused     Kind = "job.paused"
	KindResumed    Kind = "job.resumed"

	// Schedule updates.
	KindScheduleFired Kind = "schedule.fired"
)

// Update is the envelope delivered to watchers. Treat it as read-only;
// one Update instance fans out to every subscriber on the topic.
type Update struct {
	// Kind identifies the lifecycle event.
	Kind Kind `json:"kind"`

	// Timestamp is when the update was emitted.
	Timestamp time.Time `json:"ts"`

	// Topic is the channel this update was published on.
	Topic string `json:"topic"`

	// Job is a snapshot taken when the event fired. Nil for schedule
	// updates.
	Job *job.Job `json:"job,omitempty"`

	// Error is the failure message for failed, retrying, and
	// dead-letter updates.
	Error string `json:"error,omitempty"`

	// Attempt and NotBefore describe a retry decision.
	Attempt   int       `json:"attempt,omitempty"`
	NotBefore time.Time `json:"notBefore,omitzero"`

	// Schedule is the schedule name for KindScheduleFired.
	Schedule string `json:"schedule,omitempty"`
}

// Terminal reports whether this update announces a terminal status, so
// a watcher waiting for the end of a job can stop here.
func (u *Update) Terminal() bool {
	return u.Job != nil && u.Job.Status.Terminal()
}
