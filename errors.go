package dutyleak

import "errors"

var (
	// Mirror errors.
	ErrNoMirror        = errors.New("dutyleak: no mirror configured")
	ErrMirrorClosed    = errors.New("dutyleak: mirror closed")
	ErrMigrationFailed = errors.New("dutyleak: migration failed")

	// Not found errors.
	ErrJobNotFound      = errors.New("dutyleak: job not found")
	ErrScheduleNotFound = errors.New("dutyleak: schedule not found")

	// Conflict errors.
	ErrJobAlreadyExists  = errors.New("dutyleak: job already exists")
	ErrDuplicateSchedule = errors.New("dutyleak: duplicate schedule")

	// State errors.
	ErrInvalidTransition = errors.New("dutyleak: invalid status transition")
	ErrStaleTransition   = errors.New("dutyleak: stale status transition")
	ErrInvalidProgress   = errors.New("dutyleak: invalid progress update")
	ErrNotPausable       = errors.New("dutyleak: job type does not support pause")

	// Cooperation signals. Reporter methods return these from inside a
	// handler when the engine has flagged the job; handlers propagate
	// them up and the executor converts them into transitions.
	ErrCancelRequested = errors.New("dutyleak: cancel requested")
	ErrPauseRequested  = errors.New("dutyleak: pause requested")

	// Admission errors.
	ErrUnknownType      = errors.New("dutyleak: unknown job type")
	ErrNoHandler        = errors.New("dutyleak: no handler registered for job type")
	ErrValidation       = errors.New("dutyleak: invalid job payload")
	ErrMissingWorkspace = errors.New("dutyleak: no workspace in scope")
	ErrEngineClosed     = errors.New("dutyleak: engine is shut down")
)
