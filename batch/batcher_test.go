package batch_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MasterOfBinary/bulkbench/batch"
)

func TestNewBatcher_InvalidSize(t *testing.T) {
	for _, size := range []int{0, -1, -10000} {
		t.Run(fmt.Sprint(size), func(t *testing.T) {
			src := newTestSource(10)
			b, err := batch.NewBatcher(src, size)
			assert.Nil(t, b)
			assert.ErrorIs(t, err, batch.ErrInvalidBatchSize)
			assert.Equal(t, 0, src.calls, "source must not be touched")
		})
	}
}

func TestNewBatcher_NilSource(t *testing.T) {
	_, err := batch.NewBatcher(nil, 10)
	assert.Error(t, err)
}

func TestBatcher_Sizes(t *testing.T) {
	lengths := []int{0, 1, 2, 9, 10, 11, 99, 100, 101, 250, 1000}
	sizes := []int{1, 3, 10, 100}

	for _, l := range lengths {
		for _, n := range sizes {
			t.Run(fmt.Sprintf("L=%d/N=%d", l, n), func(t *testing.T) {
				src := newTestSource(l)
				b := mustBatcher(src, n)

				var batches []*batch.Batch
				for {
					next, err := b.Next(context.Background())
					if err == io.EOF {
						break
					}
					require.NoError(t, err)
					batches = append(batches, next)
				}

				assert.Len(t, batches, (l+n-1)/n)

				var seen []uint64
				ids := make(map[string]bool)
				for i, bt := range batches {
					assert.Equal(t, uint64(i+1), bt.Seq)
					assert.Equal(t, n, bt.Limit)
					if i < len(batches)-1 {
						assert.Equal(t, n, bt.Len())
					} else {
						assert.True(t, bt.Len() > 0 && bt.Len() <= n, "last batch size %d", bt.Len())
					}
					assert.NotEmpty(t, bt.ID)
					assert.False(t, ids[bt.ID], "duplicate batch id")
					ids[bt.ID] = true
					for _, r := range bt.Records() {
						seen = append(seen, r.Seq())
					}
				}

				require.Len(t, seen, l)
				for i, s := range seen {
					assert.Equal(t, uint64(i+1), s)
				}

				calls := src.calls
				_, err := b.Next(context.Background())
				assert.Equal(t, io.EOF, err)
				assert.Equal(t, calls, src.calls, "source pulled after end")
			})
		}
	}
}

func TestBatcher_NoPrefetch(t *testing.T) {
	src := newTestSource(25)
	b := mustBatcher(src, 10)
	ctx := context.Background()

	assert.Equal(t, 0, src.Pulled())

	_, err := b.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, src.Pulled())

	_, err = b.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, src.Pulled())

	last, err := b.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, last.Len())
	assert.Equal(t, 25, src.Pulled())
}

func TestBatcher_SourceError(t *testing.T) {
	src := &testSource{
		Count:   1000,
		FailAt:  500,
		FailErr: fmt.Errorf("line 500: %w", batch.ErrRecordMalformed),
	}
	b := mustBatcher(src, 100)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		bt, err := b.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, 100, bt.Len())
	}

	bt, err := b.Next(ctx)
	assert.Nil(t, bt, "records before the failure must be dropped")
	require.Error(t, err)
	assert.ErrorIs(t, err, batch.ErrRecordMalformed)

	var srcErr *batch.SourceError
	assert.True(t, errors.As(err, &srcErr))

	calls := src.calls
	_, again := b.Next(ctx)
	assert.Equal(t, err, again)
	assert.Equal(t, calls, src.calls)
}

func TestBatcher_ContextCancelled(t *testing.T) {
	src := newTestSource(10)
	b := mustBatcher(src, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	var srcErr *batch.SourceError
	assert.False(t, errors.As(err, &srcErr))
}

func TestBatcher_WithAction(t *testing.T) {
	src := newTestSource(3)
	b := mustBatcher(src, 3).WithAction(func(r batch.Record) batch.Action {
		return batch.Action{
			Type:  batch.ActionCreate,
			Index: "test-create",
			ID:    fmt.Sprintf("doc-%d", r.Seq()),
		}
	})

	bt, err := b.Next(context.Background())
	require.NoError(t, err)
	require.Len(t, bt.Ops, 3)
	assert.Equal(t, batch.ActionCreate, bt.Ops[0].Action.Type)
	assert.Equal(t, "test-create", bt.Ops[1].Action.Index)
	assert.Equal(t, "doc-3", bt.Ops[2].Action.ID)
}

func TestBatcher_DefaultAction(t *testing.T) {
	b := mustBatcher(newTestSource(1), 1)

	bt, err := b.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, batch.Action{Type: batch.ActionIndex}, bt.Ops[0].Action)
}

func TestRecord_Decode(t *testing.T) {
	r := batch.NewRecord(1, 3, []byte(`{"title":"safe","score":7}`))

	var doc struct {
		Title string `json:"title"`
		Score int    `json:"score"`
	}
	require.NoError(t, r.Decode(&doc))
	assert.Equal(t, "safe", doc.Title)
	assert.Equal(t, 7, doc.Score)
	assert.Equal(t, uint64(1), r.Seq())
	assert.Equal(t, uint64(3), r.Line())
}
