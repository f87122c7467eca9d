/*
Package bench runs benchmarks against a document store.

A benchmark is described by a Spec: a dataset, a phase plan (warmup runs,
measured runs and iterations per run) and an action label. The Controller
runs a Unit of work according to the plan, timing every measured invocation
at its outer boundary, and returns a Result with the collected samples.

	ctrl := bench.NewController()
	result, err := ctrl.Run(ctx, spec, bench.BulkUnit(workload), setup, teardown)
	if err != nil {
		// err is a *PhaseError naming the phase that failed. result holds
		// whatever was measured before the failure.
	}

Two workloads are provided. BulkUnit streams the dataset through a batch
Batcher and Dispatcher into a sink; SearchUnit issues a query a fixed number
of times. Index cleanup around a run is done with CleanupHook.
*/
package bench
