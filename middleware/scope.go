package middleware

import (
	"context"

	"github.com/Milo6x/dutyleak-app-sub004/job"
	"github.com/Milo6x/dutyleak-app-sub004/scope"
)

// WorkspaceScope returns middleware that restores the owning workspace
// from the job record into the context. Handlers see the same tenant
// identity the original enqueue caller carried, so downstream business
// logic behaves as it would on a synchronous call path.
func WorkspaceScope() Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		ctx = scope.Restore(ctx, j.WorkspaceID)
		return next(ctx)
	}
}
