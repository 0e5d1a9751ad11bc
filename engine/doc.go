// Package engine assembles the dutyleak subsystems into a runnable whole
// and exposes the application-facing API for registering, enqueuing, and
// steering background work.
//
// The root dutyleak package defines the shared building blocks (Entity,
// Config, errors) that the subsystem packages import, so it cannot import
// them back. Engine sits above every subsystem and below the application:
// it owns the handler registry, the authoritative store, the worker pool,
// the priority scheduler, and the recurring-schedule runner, and wires
// them into the Dispatcher it was built from.
//
// # Building an Engine
//
//	d, err := dutyleak.New(
//		dutyleak.WithMirror(memory.New()),
//		dutyleak.WithConcurrency(8),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	eng, err := engine.Build(d)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	err = engine.Register(eng, &job.Definition[RecalcPayload]{
//		Type: job.TypeBulkFeeCalculation,
//		Handler: func(ctx context.Context, p RecalcPayload, rep *job.Reporter) error {
//			return recalc(ctx, p, rep)
//		},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	if err := eng.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
//	defer eng.Stop(context.Background())
//
//	j, err := engine.Add(ctx, eng, job.TypeBulkFeeCalculation, RecalcPayload{WorkspaceID: "ws_acme"},
//		job.WithWorkspace("ws_acme"))
//
// Build options:
//
//   - WithExtension registers lifecycle extensions (audit, notify, custom).
//   - WithMiddleware appends execution middleware after the default stack.
//   - WithBackoff overrides the retry delay strategy.
//   - WithThrottleConfig installs per-type concurrency and rate limits.
//   - WithTracerProvider / WithMeterProvider plug in OpenTelemetry
//     providers; absent these, the global providers are used.
//
// Start migrates the mirror, loads persisted jobs, recovers work that was
// interrupted by a previous shutdown, and begins dispatching. Stop drains
// running jobs within the configured shutdown timeout, closes watch
// subscriptions, and closes the mirror.
package engine
