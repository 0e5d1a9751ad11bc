package store

import (
	dutyleak "github.com/Milo6x/dutyleak-app-sub004"
	"github.com/Milo6x/dutyleak-app-sub004/id"
)

// intentFlags are volatile, in-memory only. They carry advisory
// requests to the goroutine that owns a job right now: cancel and
// pause address a running job, resume addresses a paused one. A
// committed status transition consumes them, and they are deliberately
// not mirrored; after a crash a running job is recovered to pending
// anyway, which makes a persisted intent meaningless.
type intentFlags struct {
	cancel bool
	pause  bool
	resume bool
}

// RequestCancel records an advisory cancel request for the job. The
// running handler observes it at its next safe point.
func (s *Store) RequestCancel(jobID id.JobID) error {
	return s.setIntent(jobID, func(f *intentFlags) { f.cancel = true })
}

// RequestPause records an advisory pause request for the job.
func (s *Store) RequestPause(jobID id.JobID) error {
	return s.setIntent(jobID, func(f *intentFlags) { f.pause = true })
}

// RequestResume marks a paused job as wanting to run again. The
// scheduler picks it up on its next pass.
func (s *Store) RequestResume(jobID id.JobID) error {
	return s.setIntent(jobID, func(f *intentFlags) { f.resume = true })
}

// CancelRequested reports a pending cancel request.
func (s *Store) CancelRequested(jobID id.JobID) bool { return s.flags(jobID).cancel }

// PauseRequested reports a pending pause request.
func (s *Store) PauseRequested(jobID id.JobID) bool { return s.flags(jobID).pause }

// ResumeRequested reports a pending resume request.
func (s *Store) ResumeRequested(jobID id.JobID) bool { return s.flags(jobID).resume }

func (s *Store) setIntent(jobID id.JobID, set func(*intentFlags)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := jobID.String()
	if _, ok := s.jobs[key]; !ok {
		return dutyleak.ErrJobNotFound
	}
	f := s.intents[key]
	if f == nil {
		f = &intentFlags{}
		s.intents[key] = f
	}
	set(f)
	return nil
}

func (s *Store) flags(jobID id.JobID) intentFlags {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if f := s.intents[jobID.String()]; f != nil {
		return *f
	}
	return intentFlags{}
}
