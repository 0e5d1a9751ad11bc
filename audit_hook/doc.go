// Package audithook is an engine extension that bridges lifecycle events
// to an append-only audit trail backend.
//
// Every job and schedule lifecycle hook emits a structured audit event
// through the [Recorder] interface. The extension assigns appropriate
// severity levels (info for normal operations, warning for retries and
// pauses, critical for terminal failures) and rich metadata (job type,
// workspace, elapsed time, errors).
//
// Compliance-sensitive job types — duty rate refreshes, landed cost
// recalculations — get a durable record of who ran what and how it ended
// without the handlers themselves knowing about auditing.
//
// # Usage
//
//	audithook.New(audithook.RecorderFunc(func(ctx context.Context, evt *audithook.AuditEvent) error {
//	    return auditClient.Write(ctx, evt.Action, evt.Resource, evt.ResourceID, evt.Metadata)
//	}))
//
// # Selective filtering
//
//	audithook.New(recorder,
//	    audithook.WithActions(
//	        audithook.ActionJobFailed,
//	        audithook.ActionJobDeadLettered,
//	        audithook.ActionJobCancelled,
//	    ),
//	)
package audithook
