package batch

import (
	"sync"
	"sync/atomic"
	"time"
)

// StatsCollector defines the interface for collecting metrics during dispatch.
// Implementations can keep metrics in memory or export them to a monitoring
// system. Methods may be called from several goroutines at once.
type StatsCollector interface {
	// RecordBatchStart is called right before a batch is handed to the sink.
	RecordBatchStart(batchSize int)

	// RecordBatchComplete is called when the sink returns, whatever the result.
	// duration is the time the sink call took.
	RecordBatchComplete(batchSize int, duration time.Duration)

	// RecordItemsAccepted is called with the number of records the sink accepted.
	RecordItemsAccepted(n int)

	// RecordItemsRejected is called with the number of records the sink rejected.
	RecordItemsRejected(n int)

	// RecordSourceError is called when the batch sequence fails.
	RecordSourceError()

	// RecordSinkError is called when the sink fails a whole batch.
	RecordSinkError()

	// GetStats returns a snapshot of the current statistics.
	GetStats() Stats
}

// Stats holds aggregated statistics about dispatched batches.
type Stats struct {
	// BatchesStarted is the total number of batches handed to the sink.
	BatchesStarted uint64

	// BatchesCompleted is the total number of sink calls that returned.
	BatchesCompleted uint64

	// ItemsAccepted is the total number of records the sink accepted.
	ItemsAccepted uint64

	// ItemsRejected is the total number of records the sink rejected.
	ItemsRejected uint64

	// SourceErrors is the total number of errors from the batch sequence.
	SourceErrors uint64

	// SinkErrors is the total number of batches the sink failed.
	SinkErrors uint64

	// InFlight is the number of sink calls currently running.
	InFlight int64

	// PeakInFlight is the highest value InFlight has reached.
	PeakInFlight int64

	// TotalSendTime is the cumulative time spent in sink calls.
	TotalSendTime time.Duration

	// MinBatchTime is the shortest sink call.
	MinBatchTime time.Duration

	// MaxBatchTime is the longest sink call.
	MaxBatchTime time.Duration

	// MinBatchSize is the smallest batch size dispatched.
	MinBatchSize int

	// MaxBatchSize is the largest batch size dispatched.
	MaxBatchSize int

	// StartTime is when statistics collection began.
	StartTime time.Time

	// LastUpdateTime is when statistics were last updated.
	LastUpdateTime time.Time
}

// NoOpStatsCollector is a stats collector that discards all metrics.
// This is the default stats collector when none is specified.
type NoOpStatsCollector struct{}

// RecordBatchStart implements the StatsCollector interface.
func (n *NoOpStatsCollector) RecordBatchStart(batchSize int) {}

// RecordBatchComplete implements the StatsCollector interface.
func (n *NoOpStatsCollector) RecordBatchComplete(batchSize int, duration time.Duration) {}

// RecordItemsAccepted implements the StatsCollector interface.
func (n *NoOpStatsCollector) RecordItemsAccepted(int) {}

// RecordItemsRejected implements the StatsCollector interface.
func (n *NoOpStatsCollector) RecordItemsRejected(int) {}

// RecordSourceError implements the StatsCollector interface.
func (n *NoOpStatsCollector) RecordSourceError() {}

// RecordSinkError implements the StatsCollector interface.
func (n *NoOpStatsCollector) RecordSinkError() {}

// GetStats implements the StatsCollector interface.
func (n *NoOpStatsCollector) GetStats() Stats {
	return Stats{}
}

// BasicStatsCollector is a simple in-memory implementation of StatsCollector.
// All operations are thread-safe.
type BasicStatsCollector struct {
	mu    sync.RWMutex
	stats Stats

	batchesStarted   uint64
	batchesCompleted uint64
	itemsAccepted    uint64
	itemsRejected    uint64
	sourceErrors     uint64
	sinkErrors       uint64
	inFlight         int64
	peakInFlight     int64
}

// NewBasicStatsCollector creates a new BasicStatsCollector.
func NewBasicStatsCollector() *BasicStatsCollector {
	now := time.Now()
	return &BasicStatsCollector{
		stats: Stats{
			StartTime:      now,
			LastUpdateTime: now,
			MinBatchTime:   time.Duration(1<<63 - 1),
		},
	}
}

// RecordBatchStart implements the StatsCollector interface.
func (b *BasicStatsCollector) RecordBatchStart(batchSize int) {
	atomic.AddUint64(&b.batchesStarted, 1)

	cur := atomic.AddInt64(&b.inFlight, 1)
	for {
		peak := atomic.LoadInt64(&b.peakInFlight)
		if cur <= peak || atomic.CompareAndSwapInt64(&b.peakInFlight, peak, cur) {
			break
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.stats.LastUpdateTime = time.Now()

	if batchSize < b.stats.MinBatchSize || b.stats.MinBatchSize == 0 {
		b.stats.MinBatchSize = batchSize
	}
	if batchSize > b.stats.MaxBatchSize {
		b.stats.MaxBatchSize = batchSize
	}
}

// RecordBatchComplete implements the StatsCollector interface.
func (b *BasicStatsCollector) RecordBatchComplete(batchSize int, duration time.Duration) {
	atomic.AddUint64(&b.batchesCompleted, 1)
	atomic.AddInt64(&b.inFlight, -1)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.stats.LastUpdateTime = time.Now()
	b.stats.TotalSendTime += duration

	if duration < b.stats.MinBatchTime {
		b.stats.MinBatchTime = duration
	}
	if duration > b.stats.MaxBatchTime {
		b.stats.MaxBatchTime = duration
	}
}

// RecordItemsAccepted implements the StatsCollector interface.
func (b *BasicStatsCollector) RecordItemsAccepted(n int) {
	if n > 0 {
		atomic.AddUint64(&b.itemsAccepted, uint64(n))
	}
}

// RecordItemsRejected implements the StatsCollector interface.
func (b *BasicStatsCollector) RecordItemsRejected(n int) {
	if n > 0 {
		atomic.AddUint64(&b.itemsRejected, uint64(n))
	}
}

// RecordSourceError implements the StatsCollector interface.
func (b *BasicStatsCollector) RecordSourceError() {
	atomic.AddUint64(&b.sourceErrors, 1)
}

// RecordSinkError implements the StatsCollector interface.
func (b *BasicStatsCollector) RecordSinkError() {
	atomic.AddUint64(&b.sinkErrors, 1)
}

// GetStats implements the StatsCollector interface.
// It returns a snapshot of the current statistics.
func (b *BasicStatsCollector) GetStats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	stats := b.stats
	stats.BatchesStarted = atomic.LoadUint64(&b.batchesStarted)
	stats.BatchesCompleted = atomic.LoadUint64(&b.batchesCompleted)
	stats.ItemsAccepted = atomic.LoadUint64(&b.itemsAccepted)
	stats.ItemsRejected = atomic.LoadUint64(&b.itemsRejected)
	stats.SourceErrors = atomic.LoadUint64(&b.sourceErrors)
	stats.SinkErrors = atomic.LoadUint64(&b.sinkErrors)
	stats.InFlight = atomic.LoadInt64(&b.inFlight)
	stats.PeakInFlight = atomic.LoadInt64(&b.peakInFlight)

	if stats.BatchesCompleted == 0 {
		stats.MinBatchTime = 0
	}

	return stats
}

// AverageBatchTime returns the average sink call duration.
// Returns 0 if no batches have been completed.
func (s *Stats) AverageBatchTime() time.Duration {
	if s.BatchesCompleted == 0 {
		return 0
	}
	return s.TotalSendTime / time.Duration(s.BatchesCompleted)
}

// AverageBatchSize returns the average number of records handled per batch.
// Returns 0 if no batches have been completed.
func (s *Stats) AverageBatchSize() float64 {
	if s.BatchesCompleted == 0 {
		return 0
	}
	return float64(s.ItemsAccepted+s.ItemsRejected) / float64(s.BatchesCompleted)
}

// RejectionRate returns the percentage of records the sink rejected.
// Returns 0 if no records have been handled.
func (s *Stats) RejectionRate() float64 {
	total := s.ItemsAccepted + s.ItemsRejected
	if total == 0 {
		return 0
	}
	return float64(s.ItemsRejected) / float64(total) * 100
}

// Duration returns the total duration since statistics collection started.
func (s *Stats) Duration() time.Duration {
	return s.LastUpdateTime.Sub(s.StartTime)
}
