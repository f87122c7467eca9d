package sink

import (
	"context"
	"net/http"
	"time"

	"github.com/olivere/elastic/v7"
	"github.com/pkg/errors"

	"github.com/MasterOfBinary/bulkbench/batch"
	"github.com/MasterOfBinary/bulkbench/bench"
)

// DefaultURL is the cluster address used when none is configured.
const DefaultURL = "http://localhost:9200"

// OpenSearchConfig provides configuration options for creating an OpenSearch
// sink.
type OpenSearchConfig struct {
	// URL is the cluster address. Defaults to DefaultURL.
	URL string

	// Index is the default index for documents whose action names none, and
	// for searches that name none.
	Index string

	// Refresh is passed as the refresh parameter of bulk requests: "",
	// "true", "false" or "wait_for".
	Refresh string

	// Timeout bounds each request. Zero means no timeout.
	Timeout time.Duration

	// Gzip compresses request bodies.
	Gzip bool

	// HTTPClient replaces the default HTTP client. Optional.
	HTTPClient *http.Client
}

// Validate checks if the OpenSearchConfig is valid.
func (c OpenSearchConfig) Validate() error {
	switch c.Refresh {
	case "", "true", "false", "wait_for":
	default:
		return errors.Errorf("invalid refresh value %q", c.Refresh)
	}
	if c.Timeout < 0 {
		return errors.New("Timeout cannot be negative")
	}
	return nil
}

// OpenSearch sends each batch as one bulk request. Documents the cluster
// rejects are counted in Ack.Rejected; the batch fails only if the request
// as a whole fails.
//
// OpenSearch also implements bench.Querier and bench.IndexDeleter, so one
// client serves every workload.
type OpenSearch struct {
	client  *elastic.Client
	index   string
	refresh string
	timeout time.Duration
}

// NewOpenSearch creates an OpenSearch sink. No request is made until the
// first batch is sent.
func NewOpenSearch(config OpenSearchConfig) (*OpenSearch, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.WithMessage(err, "invalid opensearch config")
	}

	url := config.URL
	if url == "" {
		url = DefaultURL
	}

	opts := []elastic.ClientOptionFunc{
		elastic.SetURL(url),
		elastic.SetSniff(false),
		elastic.SetHealthcheck(false),
		elastic.SetGzip(config.Gzip),
	}
	if config.HTTPClient != nil {
		opts = append(opts, elastic.SetHttpClient(config.HTTPClient))
	}

	client, err := elastic.NewClient(opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "creating client for %s", url)
	}

	return &OpenSearch{
		client:  client,
		index:   config.Index,
		refresh: config.Refresh,
		timeout: config.Timeout,
	}, nil
}

// Send implements batch.Sink.
func (s *OpenSearch) Send(ctx context.Context, b *batch.Batch) (batch.Ack, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	bulk := s.client.Bulk()
	if s.refresh != "" {
		bulk = bulk.Refresh(s.refresh)
	}
	for _, op := range b.Ops {
		bulk = bulk.Add(s.request(op))
	}

	resp, err := bulk.Do(ctx)
	if err != nil {
		return batch.Ack{}, errors.Wrapf(err, "bulk request for batch %d", b.Seq)
	}

	return batch.Ack{
		Accepted: len(resp.Succeeded()),
		Rejected: len(resp.Failed()),
	}, nil
}

func (s *OpenSearch) request(op batch.Op) elastic.BulkableRequest {
	index := op.Action.Index
	if index == "" {
		index = s.index
	}

	if op.Action.Type == batch.ActionCreate {
		r := elastic.NewBulkCreateRequest().Index(index).Doc(op.Record.Doc())
		if op.Action.ID != "" {
			r = r.Id(op.Action.ID)
		}
		return r
	}

	r := elastic.NewBulkIndexRequest().Index(index).Doc(op.Record.Doc())
	if op.Action.ID != "" {
		r = r.Id(op.Action.ID)
	}
	return r
}

// Search implements bench.Querier.
func (s *OpenSearch) Search(ctx context.Context, req bench.QueryRequest) (bench.SearchResult, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	index := req.Index
	if index == "" {
		index = s.index
	}

	svc := s.client.Search()
	if index != "" {
		svc = s.client.Search(index)
	}
	if len(req.Body) > 0 {
		svc = svc.Source(req.Body)
	}

	res, err := svc.Do(ctx)
	if err != nil {
		return bench.SearchResult{}, errors.Wrapf(err, "search on %q", index)
	}

	return bench.SearchResult{
		Hits: res.TotalHits(),
		Took: res.TookInMillis,
	}, nil
}

// DeleteIndex implements bench.IndexDeleter. A missing index is not an error.
func (s *OpenSearch) DeleteIndex(ctx context.Context, pattern string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.client.DeleteIndex(pattern).Do(ctx)
	if err != nil && !elastic.IsNotFound(err) {
		return errors.Wrapf(err, "deleting index %q", pattern)
	}
	return nil
}

// Count returns the number of documents in index, refreshing it first so
// documents indexed just before are included.
func (s *OpenSearch) Count(ctx context.Context, index string) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if index == "" {
		index = s.index
	}
	if _, err := s.client.Refresh(index).Do(ctx); err != nil {
		return 0, errors.Wrapf(err, "refreshing %q", index)
	}
	n, err := s.client.Count(index).Do(ctx)
	if err != nil {
		return 0, errors.Wrapf(err, "counting %q", index)
	}
	return n, nil
}

// Close stops the client.
func (s *OpenSearch) Close() error {
	s.client.Stop()
	return nil
}

func (s *OpenSearch) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}

// Transient reports whether err is worth retrying. Cluster responses in the
// 4xx range, other than 408 and 429, are not; neither is context
// cancellation.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var e *elastic.Error
	if errors.As(err, &e) {
		switch {
		case e.Status == http.StatusRequestTimeout, e.Status == http.StatusTooManyRequests:
			return true
		case e.Status >= 400 && e.Status < 500:
			return false
		}
	}
	return true
}
