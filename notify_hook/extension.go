package notifyhook

import (
	"context"
	"time"

	"github.com/Milo6x/dutyleak-app-sub004/ext"
	"github.com/Milo6x/dutyleak-app-sub004/job"
)

// Compile-time interface checks.
var (
	_ ext.Extension       = (*Extension)(nil)
	_ ext.JobCompleted    = (*Extension)(nil)
	_ ext.JobDeadLettered = (*Extension)(nil)
	_ ext.JobCancelled    = (*Extension)(nil)
)

// Notifier is the interface that notification backends must implement.
// Callers inject their concrete delivery client at wiring time.
type Notifier interface {
	// Notify delivers a fully-formed notification.
	Notify(ctx context.Context, n *Notification) error
}

// NotifierFunc is an adapter to use a plain function as a Notifier.
type NotifierFunc func(ctx context.Context, n *Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n *Notification) error {
	return f(ctx, n)
}

// Notification is the envelope delivered to the Notifier. WorkspaceID
// routes the notification to the right tenant; Data carries the typed
// payload for the event.
type Notification struct {
	Event       string `json:"event"`
	WorkspaceID string `json:"workspace_id"`
	Data        any    `json:"data"`
}

// Extension forwards terminal job outcomes to a notification backend.
// Each terminal lifecycle hook emits a typed event via [Notifier.Notify].
type Extension struct {
	notifier Notifier
	enabled  map[string]bool        // nil = all enabled
	payloads map[string]PayloadFunc // custom payload builders
}

// New creates an Extension that forwards terminal job outcomes through
// the provided Notifier.
func New(n Notifier, opts ...Option) *Extension {
	h := &Extension{notifier: n}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name implements ext.Extension.
func (h *Extension) Name() string { return "notify-hook" }

// ── Terminal lifecycle hooks ────────────────────────

// OnJobCompleted implements ext.JobCompleted.
func (h *Extension) OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error {
	return h.send(ctx, EventJobCompleted, j.WorkspaceID, &jobCompletedPayload{
		jobPayload: *newJobPayload(j),
		ElapsedMs:  elapsed.Milliseconds(),
	})
}

// OnJobDeadLettered implements ext.JobDeadLettered.
func (h *Extension) OnJobDeadLettered(ctx context.Context, j *job.Job, jobErr error) error {
	return h.send(ctx, EventJobDeadLettered, j.WorkspaceID, &jobDeadLetteredPayload{
		jobPayload: *newJobPayload(j),
		Error:      jobErr.Error(),
		RetryCount: j.RetryCount,
	})
}

// OnJobCancelled implements ext.JobCancelled.
func (h *Extension) OnJobCancelled(ctx context.Context, j *job.Job) error {
	return h.send(ctx, EventJobCancelled, j.WorkspaceID, newJobPayload(j))
}

// ── Internal helpers ────────────────────────────────

// send delivers a notification if the event type is enabled.
func (h *Extension) send(ctx context.Context, eventType, workspaceID string, defaultData any) error {
	if h.enabled != nil && !h.enabled[eventType] {
		return nil
	}

	data := defaultData
	if fn, ok := h.payloads[eventType]; ok {
		custom, err := fn(defaultData)
		if err != nil {
			return err
		}
		data = custom
	}

	return h.notifier.Notify(ctx, &Notification{
		Event:       eventType,
		WorkspaceID: workspaceID,
		Data:        data,
	})
}

// ── Default payload types ───────────────────────────

type jobPayload struct {
	JobID       string `json:"job_id"`
	JobType     string `json:"job_type"`
	WorkspaceID string `json:"workspace_id,omitempty"`
}

func newJobPayload(j *job.Job) *jobPayload {
	return &jobPayload{
		JobID:       j.ID.String(),
		JobType:     string(j.Type),
		WorkspaceID: j.WorkspaceID,
	}
}

type jobCompletedPayload struct {
	jobPayload
	ElapsedMs int64 `json:"elapsed_ms"`
}

type jobDeadLetteredPayload struct {
	jobPayload
	Error      string `json:"error"`
	RetryCount int    `json:"retry_count"`
}
