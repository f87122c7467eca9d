package sink

import (
	"context"
	"sort"
	"sync"

	"github.com/MasterOfBinary/bulkbench/batch"
)

// Collector is a Sink that keeps every batch it receives. It is meant for
// tests and small fixtures.
//
// All methods are safe for concurrent use. Batches are stored as received;
// their records share memory with the batch, which is fine because records
// are immutable.
type Collector struct {
	// MaxRecords stops collection once that many records are held (0 for
	// unlimited). Batches beyond the limit are still acknowledged.
	MaxRecords int

	mu      sync.RWMutex
	batches []*batch.Batch
	records int
}

// Send implements batch.Sink.
func (c *Collector) Send(_ context.Context, b *batch.Batch) (batch.Ack, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.MaxRecords == 0 || c.records+b.Len() <= c.MaxRecords {
		c.batches = append(c.batches, b)
		c.records += b.Len()
	}
	return batch.Ack{Accepted: b.Len()}, nil
}

// Batches returns the collected batches ordered by sequence number. If reset
// is true, the collection is cleared in the same operation.
func (c *Collector) Batches(reset bool) []*batch.Batch {
	if reset {
		c.mu.Lock()
		defer c.mu.Unlock()
	} else {
		c.mu.RLock()
		defer c.mu.RUnlock()
	}

	result := make([]*batch.Batch, len(c.batches))
	copy(result, c.batches)
	sort.Slice(result, func(i, j int) bool {
		return result[i].Seq < result[j].Seq
	})

	if reset {
		c.batches = nil
		c.records = 0
	}
	return result
}

// Records returns every collected record in source order.
func (c *Collector) Records() []batch.Record {
	var records []batch.Record
	for _, b := range c.Batches(false) {
		records = append(records, b.Records()...)
	}
	return records
}

// Count returns the number of records collected.
func (c *Collector) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.records
}

// Reset clears the collection.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = nil
	c.records = 0
}
