package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MasterOfBinary/bulkbench/config"
)

// Version is set at build time with -ldflags "-X ...cmd.Version=...".
var Version = "dev"

const CustomConfigLocation string = "config"

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"url":            "opensearch.url",
	"index":          "opensearch.index",
	"cleanup":        "opensearch.cleanupPattern",
	"dataset":        "dataset.path",
	"documents":      "dataset.documents",
	"skip-malformed": "dataset.skipMalformed",
	"batch-size":     "pipeline.batchSize",
	"concurrency":    "pipeline.concurrency",
	"stop-on-error":  "pipeline.stopOnError",
	"sink":           "sink.type",
	"retries":        "retry.attempts",
	"rate":           "ratelimit.recordsPerSecond",
	"metrics-addr":   "metrics.addr",
	"log-level":      "log.level",
	"log-format":     "log.format",
}

// RootCmd is the root Cobra command that gets called from the main func.
// All other sub-commands should be registered here.
func RootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:          "bulkbench",
		SilenceUsage: true,
		Short:        "bulkbench measures bulk ingestion and search performance of an OpenSearch cluster.",
		Long: `bulkbench measures bulk ingestion and search performance of an OpenSearch cluster.

The bulk benchmark streams an NDJSON dataset through a batching pipeline into
the configured sink. The search benchmark runs a fixed query repeatedly.

Settings are read from defaults, an optional YAML file (--config), a .env file
in the working directory, BULKBENCH_* environment variables and flags, in
increasing order of precedence. OPENSEARCH_URL is honoured for the node URL.`,
	}

	flags := cmd.PersistentFlags()
	flags.String(CustomConfigLocation, "", "Path to a YAML configuration file")
	flags.String("url", "", "OpenSearch node URL")
	flags.String("index", "", "Target index")
	flags.String("cleanup", "", "Index pattern deleted before and after each benchmark")
	flags.String("dataset", "", "Path to the NDJSON dataset")
	flags.Int64("documents", 0, "Number of documents in the dataset, for throughput figures")
	flags.Bool("skip-malformed", false, "Skip dataset lines that are not valid JSON")
	flags.Int("batch-size", 0, "Records per bulk request")
	flags.Int("concurrency", 0, "Bulk requests in flight (0 or 1 is sequential)")
	flags.Bool("stop-on-error", false, "Stop dispatching after the first failed batch")
	flags.String("sink", "", "Bulk sink: opensearch, kafka or discard")
	flags.Uint("retries", 0, "Sink calls per batch, including the first")
	flags.Float64("rate", 0, "Maximum records per second (0 is unlimited)")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
	flags.String("log-format", "", "Log format: text or json")

	if err := v.BindPFlag(CustomConfigLocation, flags.Lookup(CustomConfigLocation)); err != nil {
		panic(err)
	}
	for flag, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	cmd.AddCommand(
		versionCmd(),
		benchCmd(v, "bulk", "Run the bulk indexing benchmark.", benchBulk),
		benchCmd(v, "search", "Run the search benchmark.", benchSearch),
		benchCmd(v, "all", "Run the bulk benchmark, then the search benchmark.", benchBulk, benchSearch),
	)

	return cmd
}

// Print version info and exit.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "bulkbench %s\n", Version)
			return err
		},
	}
}

func benchCmd(v *viper.Viper, use, short string, benchmarks ...benchmark) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			if err := configureLogging(cfg.Log); err != nil {
				return err
			}

			app, err := New(cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			// Cancelled on SIGINT and SIGTERM; running benchmarks stop after
			// their in-flight requests complete.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return app.Run(ctx, benchmarks...)
		},
	}
}

func loadConfig(v *viper.Viper) (config.Config, error) {
	config.LoadDotEnv()
	return config.Load(v, v.GetString(CustomConfigLocation))
}

func configureLogging(c config.LogConfig) error {
	level, err := log.ParseLevel(c.Level)
	if err != nil {
		return errors.WithStack(err)
	}
	log.SetLevel(level)
	log.SetOutput(os.Stdout)

	switch c.Format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}
