// Package store holds the authoritative runtime state of the engine: an
// in-memory job table with write-through persistence to a [job.Mirror].
//
// Every mutation follows the same discipline. The change is validated
// against the current in-memory record, written durably to the mirror,
// and only then committed to memory. A failed mirror write aborts the
// whole mutation, so memory never runs ahead of what the mirror holds.
// On startup, Bootstrap reloads the full job population from the mirror
// and the engine reconciles whatever a crash left behind.
//
// Status changes go through ApplyTransition, a compare-and-set keyed on
// the expected current status:
//
//	updated, err := st.ApplyTransition(ctx, jobID,
//	    job.StatusPending, job.StatusRunning,
//	    func(j *job.Job) {
//	        now := time.Now().UTC()
//	        j.StartedAt = &now
//	    })
//
// Two goroutines racing to move the same job both name the status they
// saw; the loser gets dutyleak.ErrStaleTransition and no partial state.
//
// # Available Mirrors
//
//   - store/memory — map-backed mirror for development and testing
//   - store/postgres — PostgreSQL mirror using pgx/v5
//   - store/bunstore — Bun ORM mirror
//   - store/redis — Redis mirror
//
// Call Migrate on the mirror once at startup to create or update its
// schema.
package store
