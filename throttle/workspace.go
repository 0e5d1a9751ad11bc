package throttle

import (
	"fmt"

	"golang.org/x/time/rate"

	"github.com/Milo6x/dutyleak-app-sub004/job"
)

// WorkspaceConfig defines rate limits and concurrency for a specific
// workspace on a specific job type, identified by the job's WorkspaceID.
type WorkspaceConfig struct {
	// Type is the job type this config applies to.
	Type job.Type

	// WorkspaceID is the workspace identifier (job.WorkspaceID).
	WorkspaceID string

	// RateLimit is the sustained job starts per second for this
	// workspace. Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the burst size for the workspace's rate limiter.
	RateBurst int

	// MaxConcurrency limits simultaneous jobs for this workspace on
	// this type. Zero means no workspace-specific concurrency limit.
	MaxConcurrency int
}

// workspaceState tracks runtime state for a single type+workspace pair.
type workspaceState struct {
	limiter        *rate.Limiter
	maxConcurrency int
	active         int
}

// workspaceKey builds the map key for a type+workspace pair.
func workspaceKey(typ job.Type, workspaceID string) string {
	return fmt.Sprintf("%s:%s", typ, workspaceID)
}

// SetWorkspaceConfig configures rate limits and concurrency for a
// specific workspace on a specific job type. Calling this multiple
// times for the same type+workspace replaces the previous
// configuration.
func (m *Manager) SetWorkspaceConfig(cfg WorkspaceConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := workspaceKey(cfg.Type, cfg.WorkspaceID)
	existing := m.workspaces[key]

	ws := &workspaceState{
		maxConcurrency: cfg.MaxConcurrency,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		ws.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	// Preserve current active count if reconfiguring.
	if existing != nil {
		ws.active = existing.active
	}
	m.workspaces[key] = ws
}

// WorkspaceActiveCount returns the current number of active jobs for a
// type+workspace pair.
func (m *Manager) WorkspaceActiveCount(typ job.Type, workspaceID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ws := m.workspaces[workspaceKey(typ, workspaceID)]; ws != nil {
		return ws.active
	}
	return 0
}
