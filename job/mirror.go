package job

import (
	"context"

	"github.com/Milo6x/dutyleak-app-sub004/id"
)

// Mirror is the durable persistence boundary. The in-memory store is
// authoritative at runtime; every mutation is written through a Mirror
// before it commits, and bootstrap reloads the full population from it.
// Schema ownership belongs to the implementation; the engine dictates
// only the fields of Job.
type Mirror interface {
	// UpsertJob durably writes the full job record.
	UpsertJob(ctx context.Context, j *Job) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID id.JobID) (*Job, error)

	// JobsByStatus returns all jobs holding the given status.
	JobsByStatus(ctx context.Context, status Status) ([]*Job, error)

	// Migrate prepares the underlying schema.
	Migrate(ctx context.Context) error

	// Ping verifies connectivity.
	Ping(ctx context.Context) error

	// Close releases resources held by the mirror.
	Close() error
}
