package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"github.com/MasterOfBinary/bulkbench/batch"
)

// File reads newline-delimited JSON, one record per line. Blank lines are
// skipped and "\r\n" line endings are accepted. There is no limit on the
// length of a line.
//
// The underlying file is closed as soon as the stream ends or fails, so a
// File that has been read to the end does not need to be closed, although
// Close is always safe to call.
//
// File is not safe for concurrent use.
type File struct {
	path          string
	skipMalformed bool
	logger        batch.Logger

	r       *bufio.Reader
	closers []io.Closer

	closeOnce sync.Once
	closeErr  error

	line    uint64
	seq     uint64
	skipped uint64
	done    bool
	err     error
}

func openFile(config FileConfig) (*File, error) {
	var (
		rc  io.ReadCloser
		err error
	)
	if config.Path == Stdin {
		rc = io.NopCloser(os.Stdin)
	} else {
		rc, err = os.Open(config.Path)
		if err != nil {
			return nil, &UnreadableError{Path: config.Path, Err: err}
		}
	}

	f, err := newFile(config, rc)
	if err != nil {
		rc.Close()
		return nil, err
	}
	return f, nil
}

// newFile builds a File around rc, which is closed when the File is.
func newFile(config FileConfig, rc io.ReadCloser) (*File, error) {
	f := &File{
		path:          config.Path,
		skipMalformed: config.SkipMalformed,
		logger:        config.Logger,
		closers:       []io.Closer{rc},
	}
	if f.logger == nil {
		f.logger = &batch.NoOpLogger{}
	}

	var r io.Reader = rc
	switch config.compression() {
	case CompressionGzip:
		gz, err := gzip.NewReader(rc)
		if err != nil {
			return nil, &UnreadableError{Path: config.Path, Err: errors.Wrap(err, "gzip")}
		}
		f.closers = append([]io.Closer{gz}, f.closers...)
		r = gz
	case CompressionZstd:
		zr, err := zstd.NewReader(rc)
		if err != nil {
			return nil, &UnreadableError{Path: config.Path, Err: errors.Wrap(err, "zstd")}
		}
		zrc := zr.IOReadCloser()
		f.closers = append([]io.Closer{zrc}, f.closers...)
		r = zrc
	}

	size := config.BufferSize
	if size <= 0 {
		size = defaultReadBuffer
	}
	f.r = bufio.NewReaderSize(r, size)

	return f, nil
}

// Path returns the dataset path.
func (f *File) Path() string {
	return f.path
}

// Skipped returns the number of malformed lines skipped so far.
func (f *File) Skipped() uint64 {
	return f.skipped
}

// Next returns the next record. It returns io.EOF at the end of the stream, a
// *MalformedError for a line that is not valid JSON (unless malformed lines
// are skipped), and an *UnreadableError if the stream cannot be read. After
// an error, Next keeps returning it.
func (f *File) Next(ctx context.Context) (batch.Record, error) {
	if err := ctx.Err(); err != nil {
		return batch.Record{}, err
	}
	if f.err != nil {
		return batch.Record{}, f.err
	}
	if f.done {
		return batch.Record{}, io.EOF
	}

	for {
		raw, readErr := f.r.ReadBytes('\n')
		if readErr != nil && readErr != io.EOF {
			return batch.Record{}, f.fail(&UnreadableError{Path: f.path, Err: readErr})
		}

		if len(raw) > 0 {
			f.line++
			doc := bytes.TrimRight(raw, "\r\n")
			if len(bytes.TrimSpace(doc)) > 0 {
				if err := validate(doc); err != nil {
					malformed := &MalformedError{Path: f.path, Line: f.line, Seq: f.seq + 1, Err: err}
					if !f.skipMalformed {
						return batch.Record{}, f.fail(malformed)
					}
					f.skipped++
					f.logger.Warn("Skipping %v", malformed)
				} else {
					f.seq++
					if readErr == io.EOF {
						f.finish()
					}
					return batch.NewRecord(f.seq, f.line, doc), nil
				}
			}
		}

		if readErr == io.EOF {
			f.finish()
			return batch.Record{}, io.EOF
		}
	}
}

// Close releases the underlying file. It is safe to call more than once.
func (f *File) Close() error {
	f.closeOnce.Do(func() {
		for _, c := range f.closers {
			if err := c.Close(); err != nil && f.closeErr == nil {
				f.closeErr = err
			}
		}
	})
	return f.closeErr
}

func (f *File) finish() {
	f.done = true
	if err := f.Close(); err != nil {
		f.logger.Warn("Closing %s: %v", f.path, err)
	}
}

func (f *File) fail(err error) error {
	f.err = err
	if cerr := f.Close(); cerr != nil {
		f.logger.Warn("Closing %s: %v", f.path, cerr)
	}
	return err
}

// validate returns nil if doc is a single valid JSON value.
func validate(doc []byte) error {
	if json.Valid(doc) {
		return nil
	}
	var v json.RawMessage
	if err := json.Unmarshal(doc, &v); err != nil {
		return err
	}
	return errors.New("invalid JSON")
}
