// Package metrics exports dispatch and benchmark statistics to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/MasterOfBinary/bulkbench/batch"
	"github.com/MasterOfBinary/bulkbench/bench"
)

const BulkbenchMetricsPrefix = "bulkbench_"

// Collector is a batch.StatsCollector that exports dispatch statistics to
// Prometheus. It also keeps the in-memory statistics of a
// batch.BasicStatsCollector, which GetStats returns.
type Collector struct {
	*batch.BasicStatsCollector

	batchesStarted   prometheus.Counter
	batchesCompleted prometheus.Counter
	recordsCounter   *prometheus.CounterVec
	errorsCounter    *prometheus.CounterVec
	inFlight         prometheus.Gauge
	batchDuration    prometheus.Histogram
	batchSize        prometheus.Histogram
}

// NewCollector registers the dispatch metrics with reg under prefix. A nil
// reg registers with the default registry.
func NewCollector(reg prometheus.Registerer, prefix string) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		BasicStatsCollector: batch.NewBasicStatsCollector(),
		batchesStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: prefix + "batches_started_total",
			Help: "Number of batches handed to the sink",
		}),
		batchesCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: prefix + "batches_completed_total",
			Help: "Number of sink calls that returned",
		}),
		recordsCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "records_total",
			Help: "Number of records sent, grouped by sink result",
		}, []string{"result"}),
		errorsCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "errors_total",
			Help: "Number of dispatch errors grouped by component",
		}, []string{"component"}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "batches_in_flight",
			Help: "Number of sink calls currently running",
		}),
		batchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    prefix + "batch_duration_seconds",
			Help:    "Duration of sink calls",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
		}),
		batchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    prefix + "batch_size_records",
			Help:    "Number of records per dispatched batch",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}),
	}
}

func (c *Collector) RecordBatchStart(batchSize int) {
	c.BasicStatsCollector.RecordBatchStart(batchSize)
	c.batchesStarted.Inc()
	c.inFlight.Inc()
	c.batchSize.Observe(float64(batchSize))
}

func (c *Collector) RecordBatchComplete(batchSize int, duration time.Duration) {
	c.BasicStatsCollector.RecordBatchComplete(batchSize, duration)
	c.batchesCompleted.Inc()
	c.inFlight.Dec()
	c.batchDuration.Observe(duration.Seconds())
}

func (c *Collector) RecordItemsAccepted(n int) {
	c.BasicStatsCollector.RecordItemsAccepted(n)
	if n > 0 {
		c.recordsCounter.WithLabelValues("accepted").Add(float64(n))
	}
}

func (c *Collector) RecordItemsRejected(n int) {
	c.BasicStatsCollector.RecordItemsRejected(n)
	if n > 0 {
		c.recordsCounter.WithLabelValues("rejected").Add(float64(n))
	}
}

func (c *Collector) RecordSourceError() {
	c.BasicStatsCollector.RecordSourceError()
	c.errorsCounter.WithLabelValues("source").Inc()
}

func (c *Collector) RecordSinkError() {
	c.BasicStatsCollector.RecordSinkError()
	c.errorsCounter.WithLabelValues("sink").Inc()
}

// Reporter is a bench.Reporter that publishes benchmark results as gauges
// labelled with the benchmark name.
type Reporter struct {
	mean       *prometheus.GaugeVec
	p90        *prometheus.GaugeVec
	docsPerSec *prometheus.GaugeVec
	failures   *prometheus.GaugeVec
}

// NewReporter registers the result gauges with reg under prefix.
func NewReporter(reg prometheus.Registerer, prefix string) *Reporter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	labels := []string{"benchmark", "action"}

	return &Reporter{
		mean: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: prefix + "benchmark_mean_seconds",
			Help: "Mean duration of a measured invocation",
		}, labels),
		p90: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: prefix + "benchmark_p90_seconds",
			Help: "90th percentile duration of a measured invocation",
		}, labels),
		docsPerSec: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: prefix + "benchmark_documents_per_second",
			Help: "Dataset documents processed per second",
		}, labels),
		failures: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: prefix + "benchmark_failures",
			Help: "Units of work reported as failed in the measured phase",
		}, labels),
	}
}

// Report implements bench.Reporter.
func (r *Reporter) Report(result *bench.Result) error {
	labels := prometheus.Labels{"benchmark": result.Name, "action": result.Action}
	r.mean.With(labels).Set(result.Mean().Seconds())
	r.p90.With(labels).Set(result.Percentile(90).Seconds())
	r.docsPerSec.With(labels).Set(result.DocsPerSecond())
	r.failures.With(labels).Set(float64(result.Failures()))
	return nil
}
