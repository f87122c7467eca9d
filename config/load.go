package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/MasterOfBinary/bulkbench/batch"
	"github.com/MasterOfBinary/bulkbench/bench"
	"github.com/MasterOfBinary/bulkbench/sink"
)

const EnvPrefix = "BULKBENCH"

// SetDefaults registers the default value of every key with v. Keys without
// a default are invisible to environment lookups, so every field has one.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("opensearch.url", sink.DefaultURL)
	v.SetDefault("opensearch.index", bench.DefaultIndex)
	v.SetDefault("opensearch.cleanupPattern", bench.DefaultCleanupPattern)
	v.SetDefault("opensearch.refresh", "")
	v.SetDefault("opensearch.timeout", "0s")
	v.SetDefault("opensearch.gzip", false)

	v.SetDefault("dataset.path", bench.DefaultDatasetPath)
	v.SetDefault("dataset.name", bench.DefaultDatasetName)
	v.SetDefault("dataset.documents", bench.DefaultDocuments)
	v.SetDefault("dataset.skipMalformed", false)
	v.SetDefault("dataset.compression", "")

	v.SetDefault("pipeline.batchSize", batch.DefaultBatchSize)
	v.SetDefault("pipeline.concurrency", batch.DefaultConcurrency)
	v.SetDefault("pipeline.stopOnError", false)

	bulk := bench.BulkSpec(bench.Dataset{}).Phases
	v.SetDefault("bulk.warmup", bulk.Warmup)
	v.SetDefault("bulk.measure", bulk.Measure)
	v.SetDefault("bulk.iterations", bulk.Iterations)

	search := bench.SearchSpec(bench.Dataset{}).Phases
	v.SetDefault("search.warmup", search.Warmup)
	v.SetDefault("search.measure", search.Measure)
	v.SetDefault("search.iterations", search.Iterations)
	v.SetDefault("search.index", "")
	v.SetDefault("search.query", string(bench.DefaultQuery))

	v.SetDefault("sink.type", SinkOpenSearch)
	v.SetDefault("sink.kafka.brokers", []string{})
	v.SetDefault("sink.kafka.topic", "")
	v.SetDefault("sink.kafka.writeTimeout", "10s")

	v.SetDefault("retry.attempts", 1)
	v.SetDefault("retry.delay", "100ms")
	v.SetDefault("retry.maxDelay", "5s")

	v.SetDefault("ratelimit.recordsPerSecond", 0)
	v.SetDefault("ratelimit.burst", 0)

	v.SetDefault("metrics.addr", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// LoadDotEnv loads environment variables from the given .env files, or from
// .env in the working directory when none are given. Missing files are
// ignored; variables already set are not overridden.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			log.Debugf("Not loading %s: %v", f, err)
		}
	}
}

// Load reads the configuration from defaults, the optional file at path and
// the environment, in increasing order of precedence, then validates it.
// Environment variables are named after the key with the BULKBENCH_ prefix,
// e.g. BULKBENCH_PIPELINE_BATCHSIZE. OPENSEARCH_URL is also accepted for the
// node URL.
func Load(v *viper.Viper, path string) (Config, error) {
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "reading config file %s", path)
		}
		log.Debugf("Loaded config from %s", v.ConfigFileUsed())
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("opensearch.url", EnvPrefix+"_OPENSEARCH_URL", "OPENSEARCH_URL"); err != nil {
		return Config{}, errors.WithStack(err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, errors.Wrap(err, "decoding config")
	}

	if err := Validate(config); err != nil {
		LogValidationErrors(err)
		return config, err
	}
	return config, nil
}
