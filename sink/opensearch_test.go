package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/olivere/elastic/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MasterOfBinary/bulkbench/batch"
	"github.com/MasterOfBinary/bulkbench/bench"
)

// fakeCluster answers the handful of endpoints the sink uses. Documents whose
// body contains "reject" fail with a mapping error.
type fakeCluster struct {
	mu       sync.Mutex
	actions  []map[string]map[string]interface{}
	docs     []string
	searches []string
	deleted  []string
	bulkFail int
}

func (c *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/_bulk"):
		if c.bulkFail > 0 {
			c.bulkFail--
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, `{"error":{"type":"unavailable","reason":"busy"},"status":503}`)
			return
		}
		c.bulk(w, r)

	case strings.HasSuffix(r.URL.Path, "/_search"):
		body, _ := io.ReadAll(r.Body)
		c.searches = append(c.searches, r.URL.Path+" "+string(body))
		fmt.Fprint(w, `{"took":4,"timed_out":false,"hits":{"total":{"value":12,"relation":"eq"},"hits":[]}}`)

	case r.Method == http.MethodDelete:
		name := strings.TrimPrefix(r.URL.Path, "/")
		if name == "missing" {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":{"type":"index_not_found_exception","reason":"no such index"},"status":404}`)
			return
		}
		if name == "locked" {
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"error":{"type":"cluster_block_exception","reason":"blocked"},"status":403}`)
			return
		}
		c.deleted = append(c.deleted, name)
		fmt.Fprint(w, `{"acknowledged":true}`)

	case strings.HasSuffix(r.URL.Path, "/_refresh"):
		fmt.Fprint(w, `{"_shards":{"total":1,"successful":1,"failed":0}}`)

	case strings.HasSuffix(r.URL.Path, "/_count"):
		fmt.Fprintf(w, `{"count":%d}`, len(c.docs))

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (c *fakeCluster) bulk(w http.ResponseWriter, r *http.Request) {
	type item map[string]map[string]interface{}
	var items []item
	var hasErrors bool

	scanner := bufio.NewScanner(r.Body)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		var action map[string]map[string]interface{}
		if err := json.Unmarshal(scanner.Bytes(), &action); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if !scanner.Scan() {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		doc := scanner.Text()
		c.actions = append(c.actions, action)

		for op, meta := range action {
			status := 201
			result := map[string]interface{}{"_index": meta["_index"], "status": status}
			if strings.Contains(doc, "reject") {
				hasErrors = true
				result["status"] = 400
				result["error"] = map[string]interface{}{"type": "mapper_parsing_exception", "reason": "bad field"}
			} else {
				c.docs = append(c.docs, doc)
			}
			items = append(items, item{op: result})
		}
	}

	resp, _ := json.Marshal(map[string]interface{}{"took": 3, "errors": hasErrors, "items": items})
	w.Write(resp)
}

func newTestOpenSearch(t *testing.T, config OpenSearchConfig) (*OpenSearch, *fakeCluster) {
	t.Helper()
	cluster := &fakeCluster{}
	srv := httptest.NewServer(cluster)
	t.Cleanup(srv.Close)

	config.URL = srv.URL
	s, err := NewOpenSearch(config)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, cluster
}

func testBatch(seq uint64, docs ...string) *batch.Batch {
	b := &batch.Batch{ID: fmt.Sprintf("batch-%d", seq), Seq: seq, Limit: len(docs)}
	for i, d := range docs {
		rec := batch.NewRecord(uint64(i+1), uint64(i+1), json.RawMessage(d))
		b.Ops = append(b.Ops, batch.Op{Action: batch.Action{Type: batch.ActionIndex}, Record: rec})
	}
	return b
}

func TestOpenSearch_Send(t *testing.T) {
	s, cluster := newTestOpenSearch(t, OpenSearchConfig{Index: "stackoverflow"})

	b := testBatch(1, `{"title":"a"}`, `{"title":"b"}`, `{"title":"c"}`)
	b.Ops[2].Action = batch.Action{Type: batch.ActionCreate, Index: "test-other", ID: "q-3"}

	ack, err := s.Send(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, batch.Ack{Accepted: 3}, ack)

	require.Len(t, cluster.actions, 3)
	assert.Equal(t, "stackoverflow", cluster.actions[0]["index"]["_index"])
	assert.Equal(t, "test-other", cluster.actions[2]["create"]["_index"])
	assert.Equal(t, "q-3", cluster.actions[2]["create"]["_id"])
	assert.Equal(t, []string{`{"title":"a"}`, `{"title":"b"}`, `{"title":"c"}`}, cluster.docs)
}

func TestOpenSearch_PartialRejection(t *testing.T) {
	s, _ := newTestOpenSearch(t, OpenSearchConfig{Index: "stackoverflow"})

	ack, err := s.Send(context.Background(), testBatch(1, `{"a":1}`, `{"reject":true}`, `{"a":3}`))
	require.NoError(t, err)
	assert.Equal(t, batch.Ack{Accepted: 2, Rejected: 1}, ack)
}

func TestOpenSearch_BulkFailure(t *testing.T) {
	s, cluster := newTestOpenSearch(t, OpenSearchConfig{Index: "stackoverflow"})
	cluster.bulkFail = 1

	_, err := s.Send(context.Background(), testBatch(4, `{"a":1}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch 4")
	var esErr *elastic.Error
	require.True(t, errors.As(err, &esErr))
	assert.Equal(t, http.StatusServiceUnavailable, esErr.Status)
	assert.True(t, Transient(err))
}

func TestOpenSearch_Search(t *testing.T) {
	s, cluster := newTestOpenSearch(t, OpenSearchConfig{Index: "stackoverflow"})

	res, err := s.Search(context.Background(), bench.QueryRequest{Body: bench.DefaultQuery})
	require.NoError(t, err)
	assert.Equal(t, int64(12), res.Hits)
	assert.Equal(t, int64(4), res.Took)

	require.Len(t, cluster.searches, 1)
	assert.True(t, strings.HasPrefix(cluster.searches[0], "/stackoverflow/_search "))
	assert.Contains(t, cluster.searches[0], `"match":{"title":"safe"}`)
}

func TestOpenSearch_DeleteIndex(t *testing.T) {
	s, cluster := newTestOpenSearch(t, OpenSearchConfig{})
	ctx := context.Background()

	assert.NoError(t, s.DeleteIndex(ctx, "test-*"))
	assert.NoError(t, s.DeleteIndex(ctx, "missing"), "not found is ignored")
	assert.Error(t, s.DeleteIndex(ctx, "locked"))
	assert.Equal(t, []string{"test-*"}, cluster.deleted)
}

func TestOpenSearch_Count(t *testing.T) {
	s, _ := newTestOpenSearch(t, OpenSearchConfig{Index: "stackoverflow"})
	ctx := context.Background()

	_, err := s.Send(ctx, testBatch(1, `{"a":1}`, `{"a":2}`))
	require.NoError(t, err)

	n, err := s.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestOpenSearchConfig_Validate(t *testing.T) {
	assert.NoError(t, OpenSearchConfig{Refresh: "wait_for"}.Validate())
	assert.Error(t, OpenSearchConfig{Refresh: "sometimes"}.Validate())
	assert.Error(t, OpenSearchConfig{Timeout: -1}.Validate())

	_, err := NewOpenSearch(OpenSearchConfig{Refresh: "sometimes"})
	assert.Error(t, err)
}

func TestTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"cancelled", context.Canceled, false},
		{"network", io.ErrUnexpectedEOF, true},
		{"bad request", &elastic.Error{Status: http.StatusBadRequest}, false},
		{"too many requests", &elastic.Error{Status: http.StatusTooManyRequests}, true},
		{"request timeout", &elastic.Error{Status: http.StatusRequestTimeout}, true},
		{"server error", &elastic.Error{Status: http.StatusBadGateway}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Transient(tt.err))
		})
	}
}
