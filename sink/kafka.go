package sink

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"github.com/MasterOfBinary/bulkbench/batch"
)

// KafkaConfig provides configuration options for creating a Kafka sink.
type KafkaConfig struct {
	// Brokers lists the bootstrap brokers. This field is required.
	Brokers []string

	// Topic receives the documents. This field is required.
	Topic string

	// BatchSize is the maximum number of messages the writer groups into one
	// produce request. Defaults to batch.DefaultBatchSize, so a batch usually
	// goes out in a single request.
	BatchSize int

	// WriteTimeout bounds each write. Defaults to 10 seconds.
	WriteTimeout time.Duration
}

// Validate checks if the KafkaConfig is valid.
func (c KafkaConfig) Validate() error {
	if len(c.Brokers) == 0 {
		return errors.New("at least one broker is required")
	}
	if c.Topic == "" {
		return errors.New("topic cannot be empty")
	}
	if c.BatchSize < 0 {
		return errors.New("BatchSize cannot be negative")
	}
	return nil
}

// messageWriter is the part of kafka.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes every document of a batch as one message. Messages are
// keyed by the document ID when the action has one, and carry the batch ID,
// the action and the target index as headers.
type Kafka struct {
	writer messageWriter
}

// NewKafka creates a Kafka sink. Connections are made lazily on the first
// write.
func NewKafka(config KafkaConfig) (*Kafka, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.WithMessage(err, "invalid kafka config")
	}

	batchSize := config.BatchSize
	if batchSize == 0 {
		batchSize = batch.DefaultBatchSize
	}
	timeout := config.WriteTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Kafka{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(config.Brokers...),
			Topic:                  config.Topic,
			RequiredAcks:           kafka.RequireAll,
			Balancer:               &kafka.LeastBytes{},
			BatchSize:              batchSize,
			BatchTimeout:           10 * time.Millisecond,
			WriteTimeout:           timeout,
			AllowAutoTopicCreation: true,
		},
	}, nil
}

// Send implements batch.Sink. If the writer reports per-message errors, the
// failed messages are counted as rejected and the batch still succeeds.
func (k *Kafka) Send(ctx context.Context, b *batch.Batch) (batch.Ack, error) {
	msgs := make([]kafka.Message, len(b.Ops))
	now := time.Now()
	for i, op := range b.Ops {
		msgs[i] = kafka.Message{
			Value: op.Record.Doc(),
			Time:  now,
			Headers: []kafka.Header{
				{Key: "batch-id", Value: []byte(b.ID)},
				{Key: "action", Value: []byte(op.Action.Type)},
				{Key: "index", Value: []byte(op.Action.Index)},
			},
		}
		if op.Action.ID != "" {
			msgs[i].Key = []byte(op.Action.ID)
		}
	}

	err := k.writer.WriteMessages(ctx, msgs...)
	if err == nil {
		return batch.Ack{Accepted: len(msgs)}, nil
	}

	var writeErrs kafka.WriteErrors
	if errors.As(err, &writeErrs) && writeErrs.Count() < len(msgs) {
		rejected := writeErrs.Count()
		return batch.Ack{Accepted: len(msgs) - rejected, Rejected: rejected}, nil
	}

	return batch.Ack{}, errors.Wrapf(err, "writing batch %d", b.Seq)
}

// Close flushes and closes the writer.
func (k *Kafka) Close() error {
	return k.writer.Close()
}
