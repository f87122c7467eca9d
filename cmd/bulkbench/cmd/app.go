package cmd

import (
	"context"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/MasterOfBinary/bulkbench/batch"
	"github.com/MasterOfBinary/bulkbench/bench"
	"github.com/MasterOfBinary/bulkbench/config"
	"github.com/MasterOfBinary/bulkbench/metrics"
	"github.com/MasterOfBinary/bulkbench/sink"
	"github.com/MasterOfBinary/bulkbench/source"
)

// benchmark runs one benchmark against an App.
type benchmark func(ctx context.Context, app *App) (*bench.Result, error)

// App holds the clients and collectors shared by the benchmarks of one
// invocation of the command.
type App struct {
	Config config.Config

	registry   *prometheus.Registry
	stats      *metrics.Collector
	reporters  []bench.Reporter
	controller *bench.Controller
	logger     batch.Logger

	// client talks to the cluster for searches and index cleanup even when
	// documents go to another sink.
	client  *sink.OpenSearch
	sink    batch.Sink
	closers []io.Closer
}

// New connects the clients configured in cfg. Nothing is sent until Run.
func New(cfg config.Config) (*App, error) {
	client, err := sink.NewOpenSearch(sink.OpenSearchConfig{
		URL:     cfg.OpenSearch.URL,
		Index:   cfg.OpenSearch.Index,
		Refresh: cfg.OpenSearch.Refresh,
		Timeout: cfg.OpenSearch.Timeout,
		Gzip:    cfg.OpenSearch.Gzip,
	})
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	app := &App{
		Config:     cfg,
		registry:   registry,
		stats:      metrics.NewCollector(registry, metrics.BulkbenchMetricsPrefix),
		controller: bench.NewController(),
		logger:     batch.NewLogrusLogger(log.StandardLogger()),
		client:     client,
		closers:    []io.Closer{client},
	}
	app.reporters = []bench.Reporter{
		&bench.LogReporter{Logger: log.StandardLogger()},
		metrics.NewReporter(registry, metrics.BulkbenchMetricsPrefix),
	}

	app.sink, err = app.newSink()
	if err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

// newSink builds the bulk sink and wraps it with the configured retry and
// rate limiting.
func (a *App) newSink() (batch.Sink, error) {
	cfg := a.Config

	var s batch.Sink
	switch cfg.Sink.Type {
	case config.SinkOpenSearch:
		s = a.client
	case config.SinkKafka:
		k, err := sink.NewKafka(sink.KafkaConfig{
			Brokers:      cfg.Sink.Kafka.Brokers,
			Topic:        cfg.Sink.Kafka.Topic,
			BatchSize:    cfg.Pipeline.BatchSize,
			WriteTimeout: cfg.Sink.Kafka.WriteTimeout,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, k)
		s = k
	case config.SinkDiscard:
		s = &sink.Discard{}
	default:
		return nil, errors.Errorf("unknown sink type %q", cfg.Sink.Type)
	}

	if cfg.Retry.Attempts > 1 {
		s = sink.NewRetry(s, sink.RetryConfig{
			Attempts: cfg.Retry.Attempts,
			Delay:    cfg.Retry.Delay,
			MaxDelay: cfg.Retry.MaxDelay,
			Logger:   a.logger,
		})
	}
	if cfg.RateLimit.RecordsPerSecond > 0 {
		limited, err := sink.NewRateLimit(s, cfg.RateLimit.RecordsPerSecond, cfg.RateLimit.Burst)
		if err != nil {
			return nil, err
		}
		s = limited
	}

	return sink.WithLogging(s, a.logger, cfg.Sink.Type), nil
}

// Run runs the benchmarks in order, serving metrics alongside if an address
// is configured. It stops at the first failing benchmark.
func (a *App) Run(ctx context.Context, benchmarks ...benchmark) error {
	g, ctx := errgroup.WithContext(ctx)
	serverCtx, stopServer := context.WithCancel(ctx)
	defer stopServer()

	if a.Config.Metrics.Addr != "" {
		server := metrics.NewServer(a.Config.Metrics.Addr, a.registry)
		g.Go(func() error {
			return server.Run(serverCtx)
		})
	}

	g.Go(func() error {
		defer stopServer()
		for _, run := range benchmarks {
			result, err := run(ctx, a)
			if result != nil && len(result.Samples) > 0 {
				a.report(result)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})

	return g.Wait()
}

func (a *App) report(result *bench.Result) {
	for _, r := range a.reporters {
		if err := r.Report(result); err != nil {
			log.WithError(err).Warn("Failed to report benchmark result")
		}
	}
}

// Close releases the clients.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Errorf("closing clients: %v", errs)
	}
	return nil
}

func benchBulk(ctx context.Context, a *App) (*bench.Result, error) {
	cfg := a.Config

	ds, err := bench.DatasetFromFile(cfg.Dataset.Path, cfg.Dataset.Name, cfg.Dataset.Documents)
	if err != nil {
		return nil, errors.WithMessage(err, "bulk benchmark")
	}

	spec := bench.BulkSpec(ds)
	spec.Phases = phases(cfg.Bulk)

	unit := bench.BulkUnit(bench.BulkWorkload{
		Open: bench.OpenFile(source.FileConfig{
			Path:          cfg.Dataset.Path,
			SkipMalformed: cfg.Dataset.SkipMalformed,
			Compression:   source.Compression(cfg.Dataset.Compression),
			Logger:        a.logger,
		}),
		Sink:      a.sink,
		BatchSize: cfg.Pipeline.BatchSize,
		Policy: batch.Policy{
			Concurrency: cfg.Pipeline.Concurrency,
			StopOnError: cfg.Pipeline.StopOnError,
		},
		Action: batch.IndexInto(cfg.OpenSearch.Index),
		Logger: a.logger,
		Stats:  a.stats,
	})

	cleanup := bench.CleanupHook(a.client, cfg.OpenSearch.CleanupPattern)
	teardown := cleanup
	if cfg.Sink.Type == config.SinkOpenSearch && ds.Documents > 0 {
		passes := int64(spec.Phases.Warmup+spec.Phases.Measure) * int64(spec.Phases.Iterations)
		teardown = a.countHook(cfg.OpenSearch.Index, ds.Documents*passes, cleanup)
	}
	return a.controller.Run(ctx, spec, unit, cleanup, teardown)
}

// countHook logs how many documents index holds against the number the
// benchmark should have written, then runs next. A failed count is logged,
// not returned.
func (a *App) countHook(index string, expected int64, next bench.Hook) bench.Hook {
	return func(ctx context.Context) error {
		logger := log.WithFields(log.Fields{"index": index, "expected": expected})

		indexed, err := a.client.Count(ctx, index)
		switch {
		case err != nil:
			logger.WithError(err).Warn("Failed to count indexed documents")
		case indexed != expected:
			logger.WithField("indexed", indexed).Warn("Indexed document count differs from dataset")
		default:
			logger.WithField("indexed", indexed).Info("Indexed documents match dataset")
		}
		return next(ctx)
	}
}

func benchSearch(ctx context.Context, a *App) (*bench.Result, error) {
	cfg := a.Config

	ds, err := bench.DatasetFromFile(cfg.Dataset.Path, cfg.Dataset.Name, cfg.Dataset.Documents)
	if err != nil {
		log.WithError(err).Debug("Dataset size unknown")
		ds = bench.Dataset{Name: cfg.Dataset.Name, Path: cfg.Dataset.Path, Documents: cfg.Dataset.Documents}
	}

	spec := bench.SearchSpec(ds)
	spec.Phases = phases(cfg.Search.PhasesConfig)

	index := cfg.Search.Index
	if index == "" {
		index = cfg.OpenSearch.Index
	}
	unit := bench.SearchUnit(a.client, bench.QueryRequest{
		Index: index,
		Body:  json.RawMessage(cfg.Search.Query),
	})

	cleanup := bench.CleanupHook(a.client, cfg.OpenSearch.CleanupPattern)
	return a.controller.Run(ctx, spec, unit, cleanup, cleanup)
}

func phases(c config.PhasesConfig) bench.Phases {
	return bench.Phases{
		Warmup:     c.Warmup,
		Measure:    c.Measure,
		Iterations: c.Iterations,
	}
}
