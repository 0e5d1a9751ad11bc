// Package throttle gates job starts with per-type and per-workspace
// rate limiting and concurrency caps.
//
// Job types that lean on external services need tighter limits than the
// pool-wide concurrency cap. A bulk classification run calls a tariff
// classification API for every product; letting four of those run at
// once multiplies the request rate without making any of them finish
// sooner.
//
// # Per-Type Configuration
//
// Use [Config] to cap a single type:
//
//	throttle.Config{
//	    Type:           job.TypeBulkClassification,
//	    MaxConcurrency: 1,   // one classification run at a time
//	    RateLimit:      2,   // at most 2 starts/s
//	    RateBurst:      2,
//	}
//
// Pass configs when building the engine:
//
//	engine.Build(d,
//	    engine.WithThrottle(
//	        throttle.Config{Type: job.TypeBulkClassification, MaxConcurrency: 1},
//	        throttle.Config{Type: job.TypeDataExport, MaxConcurrency: 2},
//	    ),
//	)
//
// # Per-Workspace Fairness
//
// [WorkspaceConfig] keeps one workspace's burst of work from starving
// the rest:
//
//	m.SetWorkspaceConfig(throttle.WorkspaceConfig{
//	    Type:           job.TypeDataImport,
//	    WorkspaceID:    "ws_1",
//	    MaxConcurrency: 1,
//	})
//
// # Manager
//
// The scheduler consults [Manager] before claiming a ready job. It uses
// a token-bucket rate limiter (golang.org/x/time/rate) and an
// active-count gate for concurrency limits:
//
//	if m.Acquire(j.Type, j.WorkspaceID) {
//	    // claim and dispatch; Release when the slot frees
//	}
//
// A throttled job simply stays pending; the scheduler moves on to the
// next ready job and comes back on a later pass. Types without a
// [Config] have no limits beyond the pool-wide concurrency cap.
package throttle
