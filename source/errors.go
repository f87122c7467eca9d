package source

import (
	"fmt"

	"github.com/MasterOfBinary/bulkbench/batch"
)

// UnreadableError is returned when a dataset cannot be opened or read. It
// matches batch.ErrSourceUnreadable.
type UnreadableError struct {
	Path string
	Err  error
}

func (e *UnreadableError) Error() string {
	return fmt.Sprintf("source %s unreadable: %v", e.Path, e.Err)
}

func (e *UnreadableError) Unwrap() error {
	return e.Err
}

// Is reports whether target is batch.ErrSourceUnreadable.
func (e *UnreadableError) Is(target error) bool {
	return target == batch.ErrSourceUnreadable
}

// MalformedError is returned when a line is not a valid JSON value. It matches
// batch.ErrRecordMalformed.
type MalformedError struct {
	Path string

	// Line is the 1-based line number in the stream, or 0 when the source is
	// not line-based.
	Line uint64

	// Seq is the sequence number the record would have had.
	Seq uint64

	Err error
}

func (e *MalformedError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("record %d malformed: %v", e.Seq, e.Err)
	}
	return fmt.Sprintf("%s:%d: record %d malformed: %v", e.Path, e.Line, e.Seq, e.Err)
}

func (e *MalformedError) Unwrap() error {
	return e.Err
}

// Is reports whether target is batch.ErrRecordMalformed.
func (e *MalformedError) Is(target error) bool {
	return target == batch.ErrRecordMalformed
}
