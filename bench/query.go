package bench

import (
	"context"
	"encoding/json"
)

// DefaultQuery is the search request issued by the search workload.
var DefaultQuery = json.RawMessage(`{"query":{"match":{"title":"safe"}}}`)

// QueryRequest is a search request. Body is sent as is.
type QueryRequest struct {
	// Index to search. Empty means the querier's default index.
	Index string
	Body  json.RawMessage
}

// SearchResult is the part of a search response the benchmark looks at.
type SearchResult struct {
	// Hits is the total number of matching documents.
	Hits int64
	// Took is the server-side execution time in milliseconds.
	Took int64
}

// Querier runs search requests.
type Querier interface {
	Search(ctx context.Context, req QueryRequest) (SearchResult, error)
}

// QuerierFunc is a function type that implements the Querier interface.
type QuerierFunc func(ctx context.Context, req QueryRequest) (SearchResult, error)

// Search implements the Querier interface.
func (f QuerierFunc) Search(ctx context.Context, req QueryRequest) (SearchResult, error) {
	return f(ctx, req)
}

// IndexDeleter deletes indices matching a name or wildcard pattern. Deleting a
// pattern that matches nothing is not an error.
type IndexDeleter interface {
	DeleteIndex(ctx context.Context, pattern string) error
}
