// Package sink contains implementations of the batch.Sink interface and
// middleware that wraps them:
//
//   - OpenSearch: bulk indexing, search and index cleanup against an
//     OpenSearch or Elasticsearch cluster
//   - Kafka: one message per document on a Kafka topic
//   - Discard: drops batches, optionally after a delay, for dry runs
//   - Collector: keeps every batch in memory, for tests
//
// Middleware:
//
//   - Retry: retries failed sink calls with exponential backoff
//   - RateLimit: caps the number of records sent per second
//   - Logging: logs every sink call
//
// Middleware composes by wrapping:
//
//	es, err := sink.NewOpenSearch(sink.OpenSearchConfig{
//		URL:   "http://localhost:9200",
//		Index: "stackoverflow",
//	})
//	if err != nil {
//		return err
//	}
//	s := sink.WithLogging(sink.NewRetry(es, sink.RetryConfig{Attempts: 3}), logger, "opensearch")
package sink
