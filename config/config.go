// Package config loads and validates the bulkbench configuration.
package config

import (
	"time"
)

type Config struct {
	OpenSearch OpenSearchConfig `mapstructure:"opensearch"`
	Dataset    DatasetConfig    `mapstructure:"dataset"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Bulk       PhasesConfig     `mapstructure:"bulk"`
	Search     SearchConfig     `mapstructure:"search"`
	Sink       SinkConfig       `mapstructure:"sink"`
	Retry      RetryConfig      `mapstructure:"retry"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Log        LogConfig        `mapstructure:"log"`
}

type OpenSearchConfig struct {
	URL            string        `mapstructure:"url" validate:"required,url"`
	Index          string        `mapstructure:"index" validate:"required"`
	CleanupPattern string        `mapstructure:"cleanupPattern"`
	Refresh        string        `mapstructure:"refresh" validate:"omitempty,oneof=true false wait_for"`
	Timeout        time.Duration `mapstructure:"timeout" validate:"gte=0"`
	Gzip           bool          `mapstructure:"gzip"`
}

type DatasetConfig struct {
	Path          string `mapstructure:"path" validate:"required"`
	Name          string `mapstructure:"name" validate:"required"`
	Documents     int64  `mapstructure:"documents" validate:"gte=0"`
	SkipMalformed bool   `mapstructure:"skipMalformed"`
	// Compression is empty to detect it from the file name.
	Compression string `mapstructure:"compression" validate:"omitempty,oneof=none gzip zstd"`
}

type PipelineConfig struct {
	BatchSize   int  `mapstructure:"batchSize" validate:"gte=1"`
	Concurrency int  `mapstructure:"concurrency" validate:"gte=0"`
	StopOnError bool `mapstructure:"stopOnError"`
}

type PhasesConfig struct {
	Warmup     int `mapstructure:"warmup" validate:"gte=0"`
	Measure    int `mapstructure:"measure" validate:"gte=1"`
	Iterations int `mapstructure:"iterations" validate:"gte=1"`
}

type SearchConfig struct {
	PhasesConfig `mapstructure:",squash"`
	// Index defaults to OpenSearch.Index.
	Index string `mapstructure:"index"`
	Query string `mapstructure:"query" validate:"required,json"`
}

const (
	SinkOpenSearch = "opensearch"
	SinkKafka      = "kafka"
	SinkDiscard    = "discard"
)

type SinkConfig struct {
	Type  string      `mapstructure:"type" validate:"oneof=opensearch kafka discard"`
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout" validate:"gte=0"`
}

type RetryConfig struct {
	// Attempts is the total number of sink calls per batch; 1 disables
	// retries.
	Attempts uint          `mapstructure:"attempts" validate:"gte=1"`
	Delay    time.Duration `mapstructure:"delay" validate:"gte=0"`
	MaxDelay time.Duration `mapstructure:"maxDelay" validate:"gte=0"`
}

type RateLimitConfig struct {
	// RecordsPerSecond of zero disables rate limiting.
	RecordsPerSecond float64 `mapstructure:"recordsPerSecond" validate:"gte=0"`
	Burst            int     `mapstructure:"burst" validate:"gte=0"`
}

type MetricsConfig struct {
	// Addr is the listen address of the metrics server. Empty disables it.
	Addr string `mapstructure:"addr" validate:"omitempty,hostname_port"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}
