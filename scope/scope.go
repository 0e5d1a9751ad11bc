// Package scope carries the owning workspace of a request on the
// context. Every job belongs to exactly one workspace; admission
// captures it from the caller's context and the executor restores it
// before invoking a handler, so business logic downstream of the engine
// sees the same tenant identity it would on a synchronous call path.
package scope

import "context"

type ctxKey struct{}

// With attaches a workspace to the context. An empty workspace returns
// the context unchanged.
func With(ctx context.Context, workspaceID string) context.Context {
	if workspaceID == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, workspaceID)
}

// From extracts the workspace from the context, reporting whether one
// is present.
func From(ctx context.Context) (string, bool) {
	ws, ok := ctx.Value(ctxKey{}).(string)
	return ws, ok && ws != ""
}

// Capture extracts the workspace identifier from the context.
// Returns an empty string if no scope is present.
func Capture(ctx context.Context) string {
	ws, _ := From(ctx)
	return ws
}

// Restore attaches a workspace to the context. If the workspace is
// empty, the context is returned unchanged (no-op).
func Restore(ctx context.Context, workspaceID string) context.Context {
	return With(ctx, workspaceID)
}
