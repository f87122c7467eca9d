package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MasterOfBinary/bulkbench/batch"
)

const (
	DefaultBatchSize     = 500
	DefaultFlushInterval = 50 * time.Millisecond
)

// ErrClosed is returned by Index after Close.
var ErrClosed = errors.New("indexer closed")

// RejectedError reports that the sink rejected some documents of the batch
// the caller's document was sent in.
type RejectedError struct {
	Seq      uint64
	Size     int
	Rejected int
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("batch %d: %d of %d documents rejected", e.Seq, e.Rejected, e.Size)
}

// Config configures an Indexer.
type Config struct {
	// Sink receives the batches. This field is required.
	Sink batch.Sink

	// BatchSize is the largest number of documents per batch. Defaults to
	// DefaultBatchSize.
	BatchSize int

	// FlushInterval is how long a batch waits for more documents after the
	// first one arrived. Defaults to DefaultFlushInterval.
	FlushInterval time.Duration

	// Policy controls how many batches may be in flight at once. StopOnError
	// is ignored; a failed batch only fails its own callers.
	Policy batch.Policy

	// Action assigns the bulk action per document. Optional.
	Action batch.ActionFunc

	Logger batch.Logger
	Stats  batch.StatsCollector
}

// Validate checks if the Config is valid.
func (c Config) Validate() error {
	if c.Sink == nil {
		return errors.New("sink cannot be nil")
	}
	if c.BatchSize < 0 {
		return batch.ErrInvalidBatchSize
	}
	if c.FlushInterval < 0 {
		return errors.New("FlushInterval cannot be negative")
	}
	return c.Policy.Validate()
}

// Indexer groups single-document writes into batches. It is safe for
// concurrent use.
type Indexer struct {
	input   chan *request
	windows *windowBatches
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

type request struct {
	ctx      context.Context
	doc      json.RawMessage
	response chan error
}

func (r *request) respond(err error) {
	select {
	case r.response <- err:
	default:
	}
}

// New starts an Indexer. Close must be called to release it.
func New(config Config) (*Indexer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.BatchSize == 0 {
		config.BatchSize = DefaultBatchSize
	}
	if config.FlushInterval == 0 {
		config.FlushInterval = DefaultFlushInterval
	}
	if config.Action == nil {
		config.Action = batch.IndexInto("")
	}
	config.Policy.StopOnError = false

	d, err := batch.NewDispatcher(config.Sink, config.Policy)
	if err != nil {
		return nil, err
	}
	d.WithLogger(config.Logger).WithStats(config.Stats)

	input := make(chan *request, config.BatchSize)
	ix := &Indexer{
		input: input,
		windows: &windowBatches{
			input:    input,
			size:     config.BatchSize,
			interval: config.FlushInterval,
			action:   config.Action,
			pending:  make(map[uint64][]*request),
		},
		done: make(chan struct{}),
	}

	go ix.run(d)
	return ix, nil
}

func (ix *Indexer) run(d *batch.Dispatcher) {
	defer close(ix.done)

	for o := range d.Go(context.Background(), ix.windows) {
		var err error
		switch {
		case o.Status != batch.Succeeded:
			err = o.Err
		case o.Rejected > 0:
			err = &RejectedError{Seq: o.Seq, Size: o.Size, Rejected: o.Rejected}
		}
		for _, req := range ix.windows.take(o.Seq) {
			req.respond(err)
		}
	}
}

// Index writes doc and blocks until the sink has handled the batch holding
// it or ctx is done. doc must be a single JSON value.
func (ix *Indexer) Index(ctx context.Context, doc json.RawMessage) error {
	if !json.Valid(doc) {
		return fmt.Errorf("%w: invalid JSON", batch.ErrRecordMalformed)
	}

	req := &request{
		ctx:      ctx,
		doc:      doc,
		response: make(chan error, 1),
	}

	ix.mu.RLock()
	if ix.closed {
		ix.mu.RUnlock()
		return ErrClosed
	}
	select {
	case ix.input <- req:
		ix.mu.RUnlock()
	case <-ctx.Done():
		ix.mu.RUnlock()
		return ctx.Err()
	}

	select {
	case err := <-req.response:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes the waiting documents and blocks until every batch has been
// handled. Index calls made after Close return ErrClosed.
func (ix *Indexer) Close() {
	ix.mu.Lock()
	if !ix.closed {
		ix.closed = true
		close(ix.input)
	}
	ix.mu.Unlock()

	<-ix.done
}

// windowBatches cuts the request stream into batches by size and time. It
// remembers the requests of every batch until the outcome is taken.
type windowBatches struct {
	input    <-chan *request
	size     int
	interval time.Duration
	action   batch.ActionFunc

	seq     uint64
	records uint64
	eof     bool

	mu      sync.Mutex
	pending map[uint64][]*request
}

// Next implements batch.Batches.
func (w *windowBatches) Next(ctx context.Context) (*batch.Batch, error) {
	for {
		if w.eof {
			return nil, io.EOF
		}

		reqs, err := w.collect(ctx)
		if err != nil {
			return nil, err
		}

		b := w.build(reqs)
		if b == nil {
			continue
		}
		return b, nil
	}
}

// collect waits for the first request, then gathers more until the batch is
// full, the interval has passed or the input is closed.
func (w *windowBatches) collect(ctx context.Context) ([]*request, error) {
	var reqs []*request

	select {
	case req, ok := <-w.input:
		if !ok {
			w.eof = true
			return nil, nil
		}
		reqs = append(reqs, req)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	timer := time.NewTimer(w.interval)
	defer timer.Stop()

	for len(reqs) < w.size {
		select {
		case req, ok := <-w.input:
			if !ok {
				w.eof = true
				return reqs, nil
			}
			reqs = append(reqs, req)
		case <-timer.C:
			return reqs, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return reqs, nil
}

// build turns the live requests into a batch. Requests whose caller gave up
// are answered and left out. It returns nil if no request is left.
func (w *windowBatches) build(reqs []*request) *batch.Batch {
	live := reqs[:0]
	for _, req := range reqs {
		if err := req.ctx.Err(); err != nil {
			req.respond(err)
			continue
		}
		live = append(live, req)
	}
	if len(live) == 0 {
		return nil
	}

	ops := make([]batch.Op, len(live))
	for i, req := range live {
		w.records++
		rec := batch.NewRecord(w.records, 0, req.doc)
		ops[i] = batch.Op{Action: w.action(rec), Record: rec}
	}

	w.seq++
	w.mu.Lock()
	w.pending[w.seq] = live
	w.mu.Unlock()

	return &batch.Batch{
		ID:    uuid.NewString(),
		Seq:   w.seq,
		Limit: w.size,
		Ops:   ops,
	}
}

func (w *windowBatches) take(seq uint64) []*request {
	w.mu.Lock()
	defer w.mu.Unlock()

	reqs := w.pending[seq]
	delete(w.pending, seq)
	return reqs
}
