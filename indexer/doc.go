// Package indexer provides a blocking, per-document API for writing to a
// batch.Sink. Concurrent Index calls are grouped into batches behind the
// scenes and each call returns once the batch holding its document has been
// handled by the sink.
//
// Basic usage:
//
//	ix, err := indexer.New(indexer.Config{
//		Sink:          openSearchSink,
//		BatchSize:     500,
//		FlushInterval: 50 * time.Millisecond,
//	})
//	if err != nil {
//		// handle error
//	}
//	defer ix.Close()
//
//	// Blocks until the batch holding the document was sent.
//	err = ix.Index(ctx, json.RawMessage(`{"title":"safe"}`))
//
// A batch is sent as soon as BatchSize documents are waiting, or when
// FlushInterval has passed since the first waiting document arrived. Batches
// are dispatched with a batch.Dispatcher, so up to Policy.Concurrency batches
// may be in flight at once.
//
// Index returns nil when the sink accepted the batch, a *batch.SinkError when
// the sink failed it, and a *RejectedError when the sink rejected some of its
// documents. Sinks report rejections as counts, so every caller of a
// partially rejected batch receives the RejectedError.
package indexer
