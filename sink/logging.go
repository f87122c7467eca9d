package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/MasterOfBinary/bulkbench/batch"
)

// Logging wraps another sink and logs each call along with its result.
type Logging struct {
	// Sink is the wrapped sink that does the actual work.
	Sink batch.Sink

	// Logger is used to log calls. If nil, no logging occurs.
	Logger batch.Logger

	// Name is used in log messages. If empty, the sink's type is used.
	Name string
}

// Send implements batch.Sink by delegating to the wrapped sink.
func (l *Logging) Send(ctx context.Context, b *batch.Batch) (batch.Ack, error) {
	if l.Logger == nil {
		return l.Sink.Send(ctx, b)
	}

	name := l.Name
	if name == "" {
		name = fmt.Sprintf("%T", l.Sink)
	}

	start := time.Now()
	l.Logger.Debug("Sink '%s' sending batch %d (%s) with %d records", name, b.Seq, b.ID, b.Len())

	ack, err := l.Sink.Send(ctx, b)

	duration := time.Since(start)
	if err != nil {
		l.Logger.Error("Sink '%s' failed batch %d after %v: %v", name, b.Seq, duration, err)
	} else {
		l.Logger.Debug("Sink '%s' completed batch %d in %v: %d accepted, %d rejected",
			name, b.Seq, duration, ack.Accepted, ack.Rejected)
	}
	return ack, err
}

// WithLogging wraps a sink with logging.
//
// Example:
//
//	logger := batch.NewLogrusLogger(log.WithField("component", "sink"))
//	wrapped := sink.WithLogging(es, logger, "opensearch")
func WithLogging(s batch.Sink, logger batch.Logger, name string) *Logging {
	return &Logging{
		Sink:   s,
		Logger: logger,
		Name:   name,
	}
}
