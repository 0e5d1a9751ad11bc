package watch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Milo6x/dutyleak-app-sub004/ext"
	"github.com/Milo6x/dutyleak-app-sub004/id"
	"github.com/Milo6x/dutyleak-app-sub004/job"
)

// Compile-time interface checks.
var (
	_ ext.Extension       = (*Hub)(nil)
	_ ext.JobEnqueued     = (*Hub)(nil)
	_ ext.JobStarted      = (*Hub)(nil)
	_ ext.JobProgressed   = (*Hub)(nil)
	_ ext.JobCompleted    = (*Hub)(nil)
	_ ext.JobFailed       = (*Hub)(nil)
	_ ext.JobRetrying     = (*Hub)(nil)
	_ ext.JobDeadLettered = (*Hub)(nil)
	_ ext.JobCancelled    = (*Hub)(nil)
	_ ext.JobPaused       = (*Hub)(nil)
	_ ext.JobResumed      = (*Hub)(nil)
	_ ext.ScheduleFired   = (*Hub)(nil)
	_ ext.Shutdown        = (*Hub)(nil)
)

// DefaultBufferSize is the default per-subscriber update buffer.
const DefaultBufferSize = 256

// DefaultCredits is the default initial credits for new subscribers.
const DefaultCredits int64 = 1000

// Hub is the real-time watch hub. It implements the ext.Extension
// lifecycle hooks to receive engine events and fans them out to
// subscribers via topic-based pub/sub.
type Hub struct {
	topics *TopicRegistry
	logger *slog.Logger

	// Subscriber management.
	subscribers sync.Map // subscriberID → *Subscriber
	nextID      atomic.Int64

	// Metrics.
	totalPublished atomic.Int64
	totalDropped   atomic.Int64

	// Config.
	bufferSize     int
	defaultCredits int64
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithBufferSize sets the per-subscriber update buffer size.
func WithBufferSize(size int) HubOption {
	return func(h *Hub) { h.bufferSize = size }
}

// WithDefaultCredits sets the initial credits for new subscribers.
func WithDefaultCredits(credits int64) HubOption {
	return func(h *Hub) { h.defaultCredits = credits }
}

// NewHub creates a new watch hub.
func NewHub(logger *slog.Logger, opts ...HubOption) *Hub {
	h := &Hub{
		topics:         NewTopicRegistry(),
		logger:         logger,
		bufferSize:     DefaultBufferSize,
		defaultCredits: DefaultCredits,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name implements ext.Extension.
func (h *Hub) Name() string { return "watch-hub" }

// Topics returns the topic registry for external use.
func (h *Hub) Topics() *TopicRegistry { return h.topics }

// Subscribe creates a new subscriber on the given topics.
func (h *Hub) Subscribe(subscriberID string, topics ...string) *Subscriber {
	sub := NewSubscriber(subscriberID, h.bufferSize, h.defaultCredits)
	h.subscribers.Store(subscriberID, sub)
	for _, topic := range topics {
		h.topics.Subscribe(topic, sub)
	}
	return sub
}

// SubscribeTo adds an existing subscriber to additional topics.
func (h *Hub) SubscribeTo(subscriberID string, topics ...string) {
	val, ok := h.subscribers.Load(subscriberID)
	if !ok {
		return
	}
	sub := val.(*Subscriber) //nolint:errcheck // sync.Map always stores *Subscriber
	for _, topic := range topics {
		h.topics.Subscribe(topic, sub)
	}
}

// Unsubscribe removes a subscriber from specific topics.
func (h *Hub) Unsubscribe(subscriberID string, topics ...string) {
	for _, topic := range topics {
		h.topics.Unsubscribe(topic, subscriberID)
	}
}

// RemoveSubscriber removes a subscriber from all topics and closes it.
func (h *Hub) RemoveSubscriber(subscriberID string) {
	h.topics.UnsubscribeAll(subscriberID)
	if val, ok := h.subscribers.LoadAndDelete(subscriberID); ok {
		val.(*Subscriber).Close() //nolint:errcheck // sync.Map always stores *Subscriber
	}
}

// GetSubscriber returns a subscriber by ID.
func (h *Hub) GetSubscriber(subscriberID string) (*Subscriber, bool) {
	val, ok := h.subscribers.Load(subscriberID)
	if !ok {
		return nil, false
	}
	return val.(*Subscriber), true //nolint:errcheck // sync.Map always stores *Subscriber
}

// Watch creates a subscription on the given topics with a generated
// subscriber ID. It is the convenience path behind the engine's Watch
// operation.
func (h *Hub) Watch(topics ...string) *Subscription {
	subID := fmt.Sprintf("watch-%d", h.nextID.Add(1))
	sub := h.Subscribe(subID, topics...)
	return &Subscription{hub: h, sub: sub}
}

// Subscription is a handle on a stream of updates created by Watch.
type Subscription struct {
	hub *Hub
	sub *Subscriber
}

// Updates returns the channel updates are delivered on. The channel
// closes when the subscription is closed or the hub shuts down.
func (s *Subscription) Updates() <-chan *Update { return s.sub.C() }

// AddCredits replenishes flow-control credits for slow consumers.
// Each delivered update consumes one credit.
func (s *Subscription) AddCredits(n int64) { s.sub.AddCredits(n) }

// Close removes the subscription from all topics and closes the
// update channel.
func (s *Subscription) Close() { s.hub.RemoveSubscriber(s.sub.ID()) }

// Stats returns hub statistics.
func (h *Hub) Stats() HubStats {
	count := 0
	h.subscribers.Range(func(_, _ any) bool {
		count++
		return true
	})
	return HubStats{
		TopicCount:      h.topics.TopicCount(),
		SubscriberCount: count,
		TotalPublished:  h.totalPublished.Load(),
		TotalDropped:    h.totalDropped.Load(),
	}
}

// HubStats contains hub metrics.
type HubStats struct {
	TopicCount      int   `json:"topic_count"`
	SubscriberCount int   `json:"subscriber_count"`
	TotalPublished  int64 `json:"total_published"`
	TotalDropped    int64 `json:"total_dropped"`
}

// publish broadcasts an update to all matching topics. The update's
// Job snapshot is shared read-only across subscribers.
func (h *Hub) publish(u *Update) {
	topics := resolveTopics(u)
	delivered, dropped := h.topics.Broadcast(topics, u)
	h.totalPublished.Add(int64(delivered))
	h.totalDropped.Add(int64(dropped))
}

// ── Job lifecycle hooks ─────────────────────────────

func (h *Hub) OnJobEnqueued(_ context.Context, j *job.Job) error {
	h.publish(&Update{
		Kind:      KindEnqueued,
		Timestamp: time.Now().UTC(),
		Topic:     JobTopic(j.ID.String()),
		Job:       j.Clone(),
	})
	return nil
}

func (h *Hub) OnJobStarted(_ context.Context, j *job.Job) error {
	h.publish(&Update{
		Kind:      KindStarted,
		Timestamp: time.Now().UTC(),
		Topic:     JobTopic(j.ID.String()),
		Job:       j.Clone(),
	})
	return nil
}

func (h *Hub) OnJobProgressed(_ context.Context, j *job.Job, p job.Progress) error {
	snap := j.Clone()
	snap.Progress = p
	h.publish(&Update{
		Kind:      KindProgressed,
		Timestamp: time.Now().UTC(),
		Topic:     JobTopic(j.ID.String()),
		Job:       snap,
	})
	return nil
}

func (h *Hub) OnJobCompleted(_ context.Context, j *job.Job, _ time.Duration) error {
	h.publish(&Update{
		Kind:      KindCompleted,
		Timestamp: time.Now().UTC(),
		Topic:     JobTopic(j.ID.String()),
		Job:       j.Clone(),
	})
	return nil
}

func (h *Hub) OnJobFailed(_ context.Context, j *job.Job, jobErr error) error {
	h.publish(&Update{
		Kind:      KindFailed,
		Timestamp: time.Now().UTC(),
		Topic:     JobTopic(j.ID.String()),
		Job:       j.Clone(),
		Error:     jobErr.Error(),
	})
	return nil
}

func (h *Hub) OnJobRetrying(_ context.Context, j *job.Job, attempt int, notBefore time.Time) error {
	h.publish(&Update{
		Kind:      KindRetrying,
		Timestamp: time.Now().UTC(),
		Topic:     JobTopic(j.ID.String()),
		Job:       j.Clone(),
		Attempt:   attempt,
		NotBefore: notBefore,
	})
	return nil
}

func (h *Hub) OnJobDeadLettered(_ context.Context, j *job.Job, jobErr error) error {
	h.publish(&Update{
		Kind:      KindDeadLetter,
		Timestamp: time.Now().UTC(),
		Topic:     JobTopic(j.ID.String()),
		Job:       j.Clone(),
		Error:     jobErr.Error(),
	})
	return nil
}

func (h *Hub) OnJobCancelled(_ context.Context, j *job.Job) error {
	h.publish(&Update{
		Kind:      KindCancelled,
		Timestamp: time.Now().UTC(),
		Topic:     JobTopic(j.ID.String()),
		Job:       j.Clone(),
	})
	return nil
}

func (h *Hub) OnJobPaused(_ context.Context, j *job.Job) error {
	h.publish(&Update{
		Kind:      KindPaused,
		Timestamp: time.Now().UTC(),
		Topic:     JobTopic(j.ID.String()),
		Job:       j.Clone(),
	})
	return nil
}

func (h *Hub) OnJobResumed(_ context.Context, j *job.Job) error {
	h.publish(&Update{
		Kind:      KindResumed,
		Timestamp: time.Now().UTC(),
		Topic:     JobTopic(j.ID.String()),
		Job:       j.Clone(),
	})
	return nil
}

// ── Schedule lifecycle hooks ────────────────────────

func (h *Hub) OnScheduleFired(_ context.Context, scheduleName string, jobID id.JobID) error {
	h.publish(&Update{
		Kind:      KindScheduleFired,
		Timestamp: time.Now().UTC(),
		Topic:     JobTopic(jobID.String()),
		Schedule:  scheduleName,
	})
	return nil
}

// ── Shutdown ────────────────────────────────────────

func (h *Hub) OnShutdown(_ context.Context) error {
	h.subscribers.Range(func(key, value any) bool {
		sub := value.(*Subscriber) //nolint:errcheck // sync.Map always stores *Subscriber
		sub.Close()
		h.subscribers.Delete(key)
		return true
	})
	h.logger.Info("watch hub shut down")
	return nil
}
