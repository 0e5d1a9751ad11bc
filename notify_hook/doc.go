// Package notifyhook bridges terminal job outcomes to a user-facing
// notification backend. When registered as an extension, it emits typed
// notification events (dutyleak.job.completed, dutyleak.job.dead_lettered,
// dutyleak.job.cancelled) whenever a job reaches a terminal state.
//
// Dashboard users kick off long-running bulk jobs and close the tab; the
// notification tells them the run finished, parked, or was cancelled.
// In-flight events (started, retrying, progress) are deliberately not
// forwarded — they belong in the live watch stream, not a notification
// inbox.
//
// The [Notifier] interface is defined locally so this package does not
// depend on any particular delivery channel. Callers inject their email,
// chat, or in-app notification client at wiring time:
//
//	hook := notifyhook.New(notifyhook.NotifierFunc(func(ctx context.Context, n *notifyhook.Notification) error {
//	    return inbox.Push(ctx, n.WorkspaceID, n.Event, n.Data)
//	}))
//	engine.WithExtension(hook)
//
// To restrict which outcomes are forwarded:
//
//	hook := notifyhook.New(notifier,
//	    notifyhook.WithEvents(
//	        notifyhook.EventJobCompleted,
//	        notifyhook.EventJobDeadLettered,
//	    ),
//	)
package notifyhook
