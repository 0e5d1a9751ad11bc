package bunstore

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"

	"github.com/uptrace/bun"

	"github.com/Milo6x/dutyleak-app-sub004/job"
	"github.com/Milo6x/dutyleak-app-sub004/schedule"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Compile-time interface checks.
var (
	_ job.Mirror     = (*Mirror)(nil)
	_ schedule.Store = (*Mirror)(nil)
)

// Mirror persists jobs and schedule entries through a caller-supplied
// *bun.DB. All writes are synchronous upserts; the in-memory store
// remains the source of truth while the engine is running.
type Mirror struct {
	db     *bun.DB
	logger *slog.Logger
}

// Option configures the bun mirror.
type Option func(*Mirror)

// WithLogger sets the logger used for migration progress messages.
func WithLogger(l *slog.Logger) Option {
	return func(m *Mirror) {
		if l != nil {
			m.logger = l
		}
	}
}

// New wraps an existing bun database handle. The caller keeps ownership:
// Close on the mirror is a no-op and the handle is usable for the host
// application's own queries alongside the mirror's.
func New(db *bun.DB, opts ...Option) *Mirror {
	m := &Mirror{
		db:     db,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// DB returns the underlying bun handle.
func (m *Mirror) DB() *bun.DB { return m.db }

// Migrate applies the embedded SQL migrations that have not run yet.
// Applied file names are tracked in dutyleak_migrations, so calling it
// on every engine start is safe.
func (m *Mirror) Migrate(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS dutyleak_migrations (
			name       TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("dutyleak/bun: create migrations table: %w", err)
	}

	entries, err := fs.ReadDir(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("dutyleak/bun: read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		var applied int
		err := m.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM dutyleak_migrations WHERE name = ?`, entry.Name(),
		).Scan(&applied)
		if err != nil {
			return fmt.Errorf("dutyleak/bun: check migration %s: %w", entry.Name(), err)
		}
		if applied > 0 {
			continue
		}

		sql, err := fs.ReadFile(migrationFiles, "migrations/"+entry.Name())
		if err != nil {
			return fmt.Errorf("dutyleak/bun: read migration %s: %w", entry.Name(), err)
		}
		if _, err := m.db.ExecContext(ctx, string(sql)); err != nil {
			return fmt.Errorf("dutyleak/bun: apply migration %s: %w", entry.Name(), err)
		}
		if _, err := m.db.ExecContext(ctx,
			`INSERT INTO dutyleak_migrations (name) VALUES (?)`, entry.Name(),
		); err != nil {
			return fmt.Errorf("dutyleak/bun: record migration %s: %w", entry.Name(), err)
		}
		m.logger.Info("applied migration", "file", entry.Name())
	}
	return nil
}

// Ping verifies database connectivity.
func (m *Mirror) Ping(ctx context.Context) error {
	if err := m.db.PingContext(ctx); err != nil {
		return fmt.Errorf("dutyleak/bun: ping: %w", err)
	}
	return nil
}

// Close is a no-op; the *bun.DB belongs to the caller.
func (m *Mirror) Close() error { return nil }
