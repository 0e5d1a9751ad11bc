package job

import "fmt"

// Status represents the lifecycle state of a job.
type Status string

const (
	// StatusPending means the job is waiting for a worker slot.
	StatusPending Status = "pending"
	// StatusRunning means a worker slot is currently executing the job.
	StatusRunning Status = "running"
	// StatusPaused means a pausable job yielded and is waiting for an
	// explicit resume.
	StatusPaused Status = "paused"
	// StatusCompleted means the job finished successfully.
	StatusCompleted Status = "completed"
	// StatusFailed means the last attempt failed; the retry policy
	// decides whether the job is requeued or parked.
	StatusFailed Status = "failed"
	// StatusCancelled means the job was explicitly cancelled.
	StatusCancelled Status = "cancelled"
	// StatusDeadLetter means automatic retries are exhausted; only a
	// manual retry revives the job.
	StatusDeadLetter Status = "dead_letter"
)

// Statuses returns every status, in a stable order. Bootstrap scans the
// mirror once per status.
func Statuses() []Status {
	return []Status{
		StatusPending,
		StatusRunning,
		StatusPaused,
		StatusCompleted,
		StatusFailed,
		StatusCancelled,
		StatusDeadLetter,
	}
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusPaused, StatusCompleted,
		StatusFailed, StatusCancelled, StatusDeadLetter:
		return true
	}
	return false
}

// Terminal reports whether s ends the automatic lifecycle. Terminal
// jobs are only revived by an explicit manual retry.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusDeadLetter:
		return true
	}
	return false
}

// ParseStatus converts a string into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("job: unknown status %q", s)
	}
	return st, nil
}
