package throttle

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/Milo6x/dutyleak-app-sub004/job"
)

// Config defines per-type behaviour such as rate limiting and concurrency.
type Config struct {
	// Type is the job type this configuration applies to.
	Type job.Type

	// MaxConcurrency limits how many jobs of this type may run
	// simultaneously across the worker pool. Zero means no
	// type-specific limit (pool-wide concurrency still applies).
	MaxConcurrency int

	// RateLimit is the maximum sustained job starts per second for
	// this type. Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the burst size for the token-bucket rate limiter.
	// Defaults to 1 if RateLimit is set but RateBurst is zero.
	RateBurst int
}

// typeState tracks runtime state for a single job type.
type typeState struct {
	config  Config
	limiter *rate.Limiter
	active  int
}

// Manager gates job starts with per-type and per-workspace rate limits
// and concurrency caps. It is safe for concurrent use.
type Manager struct {
	mu         sync.Mutex
	types      map[job.Type]*typeState
	workspaces map[string]*workspaceState
}

// NewManager creates a Manager with the given type configurations.
// Types not listed here have no limits.
func NewManager(configs ...Config) *Manager {
	m := &Manager{
		types:      make(map[job.Type]*typeState, len(configs)),
		workspaces: make(map[string]*workspaceState),
	}
	for _, cfg := range configs {
		m.types[cfg.Type] = newTypeState(cfg)
	}
	return m
}

func newTypeState(cfg Config) *typeState {
	ts := &typeState{config: cfg}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		ts.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return ts
}

// Acquire checks rate limits and concurrency for the given type and
// workspace. If the job is allowed to start it increments the active
// counters and returns true. The caller MUST call Release when the job
// leaves its worker slot.
func (m *Manager) Acquire(typ job.Type, workspaceID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Check type-level constraints.
	ts := m.types[typ]
	if ts != nil {
		if ts.limiter != nil && !ts.limiter.Allow() {
			return false
		}
		if ts.config.MaxConcurrency > 0 && ts.active >= ts.config.MaxConcurrency {
			return false
		}
	}

	// Check workspace-level constraints.
	if workspaceID != "" {
		ws := m.workspaces[workspaceKey(typ, workspaceID)]
		if ws != nil {
			if ws.limiter != nil && !ws.limiter.Allow() {
				return false
			}
			if ws.maxConcurrency > 0 && ws.active >= ws.maxConcurrency {
				return false
			}
			ws.active++
		}
	}

	// Increment type active count.
	if ts != nil {
		ts.active++
	}

	return true
}

// Release decrements the active job count for the type and workspace.
func (m *Manager) Release(typ job.Type, workspaceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ts := m.types[typ]; ts != nil && ts.active > 0 {
		ts.active--
	}

	if workspaceID != "" {
		if ws := m.workspaces[workspaceKey(typ, workspaceID)]; ws != nil && ws.active > 0 {
			ws.active--
		}
	}
}

// SetTypeConfig dynamically updates (or creates) a type configuration.
func (m *Manager) SetTypeConfig(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.types[cfg.Type]
	ts := newTypeState(cfg)

	// Preserve current active count if reconfiguring.
	if existing != nil {
		ts.active = existing.active
	}
	m.types[cfg.Type] = ts
}

// ActiveCount returns the current number of active jobs for a type.
func (m *Manager) ActiveCount(typ job.Type) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ts := m.types[typ]; ts != nil {
		return ts.active
	}
	return 0
}
