// Package redis implements the durable job mirror using Redis for
// deployments that favor operational simplicity over SQL queryability.
// Jobs are stored as Hashes with per-status index Sets for bootstrap
// scans; schedule entries are stored as JSON strings.
//
// The caller owns the Redis client lifecycle — the mirror never closes
// it. Pass the client through the constructor:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	m := redisstore.New(client)
//	if err := m.Ping(ctx); err != nil { ... }
package redis

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/Milo6x/dutyleak-app-sub004/job"
	"github.com/Milo6x/dutyleak-app-sub004/schedule"
)

// Compile-time interface checks.
var (
	_ job.Mirror     = (*Mirror)(nil)
	_ schedule.Store = (*Mirror)(nil)
)

// Option configures the Mirror.
type Option func(*Mirror)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Mirror) { m.logger = l }
}

// Mirror implements the durable persistence boundary backed by Redis.
type Mirror struct {
	client redis.Cmdable
	logger *slog.Logger
}

// New creates a new Redis-backed mirror. The caller owns the Redis
// client lifecycle.
func New(client redis.Cmdable, opts ...Option) *Mirror {
	m := &Mirror{client: client, logger: slog.Default()}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Client returns the underlying Redis client.
func (m *Mirror) Client() redis.Cmdable { return m.client }

// Migrate is a no-op for Redis (schemaless).
func (m *Mirror) Migrate(_ context.Context) error { return nil }

// Ping verifies the Redis connection is alive.
func (m *Mirror) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

// Close is a no-op — the caller owns the Redis client lifecycle.
func (m *Mirror) Close() error { return nil }
