package batch_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MasterOfBinary/bulkbench/batch"
)

// testSource emits count records. If FailAt is set, the FailAt-th pull returns
// FailErr instead of a record.
type testSource struct {
	Count   int
	FailAt  int
	FailErr error

	pulled int
	calls  int
}

func newTestSource(count int) *testSource {
	return &testSource{Count: count}
}

func (s *testSource) Next(ctx context.Context) (batch.Record, error) {
	if err := ctx.Err(); err != nil {
		return batch.Record{}, err
	}
	s.calls++
	if s.FailAt > 0 && s.pulled+1 == s.FailAt {
		return batch.Record{}, s.FailErr
	}
	if s.pulled >= s.Count {
		return batch.Record{}, io.EOF
	}
	s.pulled++
	seq := uint64(s.pulled)
	return batch.NewRecord(seq, seq, json.RawMessage(fmt.Sprintf(`{"n":%d}`, seq))), nil
}

// Pulled returns the number of records handed out so far.
func (s *testSource) Pulled() int {
	return s.pulled
}

// chanSource turns each value received on C into a record. Next blocks until
// a value arrives, C is closed or ctx is done.
type chanSource struct {
	C chan json.RawMessage

	seq uint64
}

func (s *chanSource) Next(ctx context.Context) (batch.Record, error) {
	select {
	case doc, ok := <-s.C:
		if !ok {
			return batch.Record{}, io.EOF
		}
		s.seq++
		return batch.NewRecord(s.seq, s.seq, doc), nil
	case <-ctx.Done():
		return batch.Record{}, ctx.Err()
	}
}

// testSink records every batch it receives. Fn, if set, decides the result of
// each call; call numbers start at 1.
type testSink struct {
	Fn    func(ctx context.Context, call int, b *batch.Batch) (batch.Ack, error)
	Delay time.Duration

	mu       sync.Mutex
	calls    int
	seqs     []uint64
	sizes    []int
	records  []uint64
	inFlight int32
	peak     int32
}

func (s *testSink) Send(ctx context.Context, b *batch.Batch) (batch.Ack, error) {
	cur := atomic.AddInt32(&s.inFlight, 1)
	defer atomic.AddInt32(&s.inFlight, -1)
	for {
		peak := atomic.LoadInt32(&s.peak)
		if cur <= peak || atomic.CompareAndSwapInt32(&s.peak, peak, cur) {
			break
		}
	}

	s.mu.Lock()
	s.calls++
	call := s.calls
	s.seqs = append(s.seqs, b.Seq)
	s.sizes = append(s.sizes, b.Len())
	for _, r := range b.Records() {
		s.records = append(s.records, r.Seq())
	}
	s.mu.Unlock()

	if s.Delay > 0 {
		time.Sleep(s.Delay)
	}
	if s.Fn != nil {
		return s.Fn(ctx, call, b)
	}
	return batch.Ack{}, nil
}

func (s *testSink) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *testSink) Sizes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.sizes...)
}

func (s *testSink) Records() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint64(nil), s.records...)
}

func (s *testSink) Peak() int {
	return int(atomic.LoadInt32(&s.peak))
}

// failOn returns a sink func that fails the given call numbers.
func failOn(calls ...int) func(context.Context, int, *batch.Batch) (batch.Ack, error) {
	return func(_ context.Context, call int, _ *batch.Batch) (batch.Ack, error) {
		for _, c := range calls {
			if c == call {
				return batch.Ack{}, fmt.Errorf("bulk request %d rejected", call)
			}
		}
		return batch.Ack{}, nil
	}
}

func mustBatcher(src batch.RecordSource, size int) *batch.Batcher {
	b, err := batch.NewBatcher(src, size)
	if err != nil {
		panic(err)
	}
	return b
}

func mustDispatcher(sink batch.Sink, policy batch.Policy) *batch.Dispatcher {
	d, err := batch.NewDispatcher(sink, policy)
	if err != nil {
		panic(err)
	}
	return d
}
