package source

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/MasterOfBinary/bulkbench/batch"
)

// Stdin is the path that makes a File read from standard input.
const Stdin = "-"

// defaultReadBuffer is the size of the buffered reader in front of a file.
const defaultReadBuffer = 64 * 1024

// Compression selects how a dataset is decompressed.
type Compression string

const (
	// CompressionAuto picks the codec from the file extension.
	CompressionAuto Compression = ""
	// CompressionNone reads the file as is.
	CompressionNone Compression = "none"
	// CompressionGzip reads a gzip stream.
	CompressionGzip Compression = "gzip"
	// CompressionZstd reads a zstd stream.
	CompressionZstd Compression = "zstd"
)

// FileConfig provides configuration options for creating a File source.
type FileConfig struct {
	// Path is the dataset to read, or Stdin. This field is required.
	Path string

	// SkipMalformed makes the source log and skip lines that are not valid
	// JSON instead of failing. Skipped lines are counted by File.Skipped.
	SkipMalformed bool

	// Compression selects the codec. By default it is chosen from the
	// extension: ".gz" for gzip and ".zst" for zstd.
	Compression Compression

	// BufferSize is the size of the read buffer in bytes. Lines longer than
	// the buffer are still read whole. If zero or negative,
	// defaultReadBuffer is used.
	BufferSize int

	// Logger receives warnings about skipped lines. Optional.
	Logger batch.Logger
}

// Validate checks if the FileConfig is valid.
func (c FileConfig) Validate() error {
	if c.Path == "" {
		return errors.New("path cannot be empty")
	}
	switch c.Compression {
	case CompressionAuto, CompressionNone, CompressionGzip, CompressionZstd:
	default:
		return errors.Errorf("unknown compression %q", c.Compression)
	}
	return nil
}

func (c FileConfig) compression() Compression {
	if c.Compression != CompressionAuto {
		return c.Compression
	}
	switch strings.ToLower(filepath.Ext(c.Path)) {
	case ".gz", ".gzip":
		return CompressionGzip
	case ".zst", ".zstd":
		return CompressionZstd
	default:
		return CompressionNone
	}
}

// NewFile opens the dataset described by config. It returns an error matching
// batch.ErrSourceUnreadable if the file cannot be opened.
//
// Example:
//
//	src, err := source.NewFile(source.FileConfig{
//		Path:          "stackoverflow.json.zst",
//		SkipMalformed: true,
//	})
//	if err != nil {
//		// handle error
//	}
//	defer src.Close()
func NewFile(config FileConfig) (*File, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.WithMessage(err, "invalid file config")
	}
	return openFile(config)
}

// Open opens a dataset with the default configuration.
func Open(path string) (*File, error) {
	return NewFile(FileConfig{Path: path})
}

// ChannelConfig provides configuration options for creating a Channel source.
type ChannelConfig struct {
	// Input is the channel from which this source will read documents.
	// This field is required.
	Input <-chan []byte
}

// Validate checks if the ChannelConfig is valid.
func (c ChannelConfig) Validate() error {
	if c.Input == nil {
		return errors.New("input channel cannot be nil")
	}
	return nil
}

// NewChannel creates a new Channel source with the given configuration.
func NewChannel(config ChannelConfig) (*Channel, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.WithMessage(err, "invalid channel config")
	}
	return &Channel{Input: config.Input}, nil
}
