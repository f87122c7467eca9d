package batch

// Defaults used by the CLI and by callers that leave sizes unset.
const (
	// DefaultBatchSize is the number of records per batch. It matches the size
	// of the bulk requests the benchmark issues against the cluster.
	DefaultBatchSize = 10000

	// DefaultConcurrency is the number of sink calls allowed in flight. One
	// means sequential dispatch.
	DefaultConcurrency = 1
)
