// Package batch contains the core of the ingestion pipeline. Records are pulled
// from a RecordSource, grouped into fixed-size batches by a Batcher, and handed
// to a Sink by a Dispatcher, which reports one Outcome per batch.
//
// Everything is pull-based. The Batcher never reads a record it does not need
// to complete the current batch, and the Dispatcher never pulls a batch it has
// no free slot for, so memory stays bounded by the batch size N and the
// concurrency bound K regardless of how large the input is:
//
//	peak records held = N (batch being filled) + K*N (batches in flight)
//
// A minimal pipeline looks like this:
//
//	src, err := source.Open("stackoverflow.json")
//	if err != nil {
//		return err
//	}
//	defer src.Close()
//
//	batcher, err := batch.NewBatcher(src, 10000)
//	if err != nil {
//		return err
//	}
//
//	d, err := batch.NewDispatcher(sink, batch.Policy{})
//	if err != nil {
//		return err
//	}
//	for o := range d.Go(ctx, batcher) {
//		log.Printf("batch %d: %s", o.Seq, o.Status)
//	}
//	if err := d.Err(); err != nil {
//		// The source or batcher failed; the run's input is invalid.
//		return err
//	}
//
// Errors below the Dispatcher (an unreadable source, a malformed record) are
// fatal and reported by Dispatcher.Err. Sink errors are contained per batch and
// reported on the Outcome, unless Policy.StopOnError is set.
package batch
