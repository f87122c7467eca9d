package source

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MasterOfBinary/bulkbench/batch"
)

func TestSlice(t *testing.T) {
	s := NewSlice(json.RawMessage(`{"a":1}`), json.RawMessage(`{"a":2}`))
	assert.Equal(t, 2, s.Len())

	ctx := context.Background()
	for i := 1; i <= 2; i++ {
		rec, err := s.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(i), rec.Seq())
	}
	_, err := s.Next(ctx)
	assert.Equal(t, io.EOF, err)

	s.Reset()
	rec, err := s.Next(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(rec.Doc()))
}

func TestSlice_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSlice(json.RawMessage(`{}`)).Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewSliceOf(t *testing.T) {
	type question struct {
		Title string `json:"title"`
	}

	s, err := NewSliceOf([]question{{Title: "safe"}, {Title: "unsafe"}})
	require.NoError(t, err)

	rec, err := s.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `{"title":"safe"}`, string(rec.Doc()))

	_, err = NewSliceOf([]interface{}{make(chan int)})
	var me *MalformedError
	assert.ErrorAs(t, err, &me)
}

func TestSliceOf_ReadAll(t *testing.T) {
	type question struct {
		Title string `json:"title"`
	}

	src, err := NewSliceOf([]question{{"safe"}, {"unsafe"}, {"safe code"}})
	require.NoError(t, err)
	assert.Equal(t, 3, src.Len())

	records, err := readAll(t, src)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, `{"title":"unsafe"}`, string(records[1].Doc()))

	src.Reset()
	again, err := readAll(t, src)
	require.NoError(t, err)
	assert.Len(t, again, 3)
}

func TestSliceOf_Unmarshalable(t *testing.T) {
	_, err := NewSliceOf([]interface{}{1, make(chan int)})
	assert.ErrorIs(t, err, batch.ErrRecordMalformed)
}
