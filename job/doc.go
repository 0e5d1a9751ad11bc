// Package job defines the job entity, its state machine, typed
// definitions with payload validation, and the persistence boundary.
//
// # Job Entity
//
// A [Job] represents one asynchronous unit of work. It embeds
// [dutyleak.Entity] for timestamps, carries an opaque JSON payload,
// fine-grained [Progress] counters, and moves through a state machine:
//
//	pending → running → completed
//	pending → running → failed → pending (backoff) → running → ...
//	pending → running → failed → dead_letter
//	pending → running → paused → running
//	pending | running | paused → cancelled
//
// Fields of note:
//   - Priority: low/medium/high/urgent, ordering hint for the scheduler
//   - MaxRetries / RetryCount: controls the automatic retry budget
//   - NotBefore: earliest time a retried job becomes schedulable again
//   - WorkspaceID: the single owning tenant
//
// # Defining a Job Type
//
// Use [Definition] with a typed handler. The payload is validated at
// admission (strict decode plus `validate` struct tags) and decoded
// again before the handler runs:
//
//	var Export = job.NewDefinition(job.TypeDataExport,
//	    func(ctx context.Context, req ExportRequest, rep *job.Reporter) error {
//	        rep.SetTotal(ctx, len(req.ProductIDs))
//	        for _, pid := range req.ProductIDs {
//	            if err := exportOne(ctx, pid); err != nil {
//	                rep.Advance(ctx, 0, 1)
//	                continue
//	            }
//	            rep.Advance(ctx, 1, 0)
//	        }
//	        return nil
//	    },
//	    job.WithTimeout(10*time.Minute),
//	)
//
// # Registry
//
// [Registry] maps job types to type-erased [HandlerFunc] values plus
// their validators and options. Register definitions at startup via
// [RegisterDefinition]; the engine package provides higher-level
// engine.Register and engine.Add wrappers.
package job
