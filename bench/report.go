package bench

import (
	log "github.com/sirupsen/logrus"
)

// Reporter publishes the result of a run.
type Reporter interface {
	Report(result *Result) error
}

// ReporterFunc is a function type that implements the Reporter interface.
type ReporterFunc func(result *Result) error

// Report implements the Reporter interface.
func (f ReporterFunc) Report(result *Result) error {
	return f(result)
}

// LogReporter writes a result as a single structured log entry.
type LogReporter struct {
	Logger log.FieldLogger
}

// Report implements the Reporter interface.
func (r *LogReporter) Report(result *Result) error {
	logger := r.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}

	fields := log.Fields{
		"benchmark":  result.Name,
		"action":     result.Action,
		"dataset":    result.Dataset.Name,
		"warmup":     result.Phases.Warmup,
		"measure":    result.Phases.Measure,
		"iterations": result.Phases.Iterations,
		"samples":    len(result.Samples),
		"failures":   result.Failures(),
	}
	if len(result.Samples) > 0 {
		fields["mean"] = result.Mean()
		fields["min"] = result.Min()
		fields["max"] = result.Max()
		fields["p50"] = result.Percentile(50)
		fields["p90"] = result.Percentile(90)
		fields["ops_per_sec"] = round(result.OpsPerSecond())
		if result.Dataset.Documents > 0 {
			fields["docs_per_sec"] = round(result.DocsPerSecond())
		}
		if result.Dataset.Size > 0 {
			fields["bytes_per_sec"] = round(result.BytesPerSecond())
		}
	}

	logger.WithFields(fields).Info("Benchmark result")
	return nil
}

func round(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
