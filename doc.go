// Package dutyleak provides the background job engine for the DutyLeak
// dashboard. It accepts asynchronous units of work (bulk classification,
// bulk fee calculation, data import/export, optimization runs), queues
// them by priority, executes them under a bounded concurrency budget,
// tracks fine-grained progress, and applies retry/backoff/dead-letter
// policy on failure.
//
// The engine is a library, not a service. Import it, configure a durable
// mirror, register handlers for the job types your application supports,
// and call Start.
//
// # Quick Start
//
//	d, err := dutyleak.New(
//	    dutyleak.WithMirror(pgMirror),
//	    dutyleak.WithConcurrency(8),
//	)
//
// # Architecture
//
// The in-memory job store is authoritative and every mutation is written
// through to a durable mirror (job.Mirror) before it becomes visible, so
// a restart never observes state that was not persisted. Postgres, Redis,
// Bun and in-memory mirrors ship under store/.
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based,
// compile-time safe identifiers.
package dutyleak
