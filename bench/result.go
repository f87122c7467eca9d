package bench

import (
	"math"
	"sort"
	"time"
)

// Sample is one measured invocation.
type Sample struct {
	Start time.Time
	End   time.Time
	// Failures is the number of units of work the invocation reported as
	// failed without aborting, such as records rejected by the sink.
	Failures int64
}

// Duration returns the wall time of the invocation.
func (s Sample) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// Result holds the samples of a run. A Result returned with an error holds
// the samples taken before the failure.
type Result struct {
	Name    string
	Action  string
	Phases  Phases
	Dataset Dataset

	Samples []Sample

	// Started and Finished bound the measured phase. Finished is zero if
	// the measured phase did not complete.
	Started  time.Time
	Finished time.Time
}

// Durations returns the sample durations in invocation order.
func (r *Result) Durations() []time.Duration {
	d := make([]time.Duration, len(r.Samples))
	for i, s := range r.Samples {
		d[i] = s.Duration()
	}
	return d
}

// Total returns the sum of all sample durations.
func (r *Result) Total() time.Duration {
	var total time.Duration
	for _, s := range r.Samples {
		total += s.Duration()
	}
	return total
}

// Mean returns the average sample duration, or zero without samples.
func (r *Result) Mean() time.Duration {
	if len(r.Samples) == 0 {
		return 0
	}
	return r.Total() / time.Duration(len(r.Samples))
}

// Min returns the shortest sample duration.
func (r *Result) Min() time.Duration {
	if len(r.Samples) == 0 {
		return 0
	}
	m := r.Samples[0].Duration()
	for _, s := range r.Samples[1:] {
		if d := s.Duration(); d < m {
			m = d
		}
	}
	return m
}

// Max returns the longest sample duration.
func (r *Result) Max() time.Duration {
	var m time.Duration
	for _, s := range r.Samples {
		if d := s.Duration(); d > m {
			m = d
		}
	}
	return m
}

// Percentile returns the nearest-rank p-th percentile of the sample
// durations. p is clamped to [0, 100].
func (r *Result) Percentile(p float64) time.Duration {
	n := len(r.Samples)
	if n == 0 {
		return 0
	}

	d := r.Durations()
	sort.Slice(d, func(i, j int) bool { return d[i] < d[j] })

	switch {
	case p <= 0:
		return d[0]
	case p >= 100:
		return d[n-1]
	}
	rank := int(math.Ceil(p / 100 * float64(n)))
	if rank < 1 {
		rank = 1
	}
	return d[rank-1]
}

// Failures returns the failures reported across all samples.
func (r *Result) Failures() int64 {
	var n int64
	for _, s := range r.Samples {
		n += s.Failures
	}
	return n
}

// OpsPerSecond returns the iterations completed per second of mean
// invocation time.
func (r *Result) OpsPerSecond() float64 {
	return r.rate(float64(r.Phases.Iterations))
}

// DocsPerSecond returns the dataset documents processed per second,
// assuming every iteration covers the whole dataset.
func (r *Result) DocsPerSecond() float64 {
	return r.rate(float64(r.Dataset.Documents) * float64(r.Phases.Iterations))
}

// BytesPerSecond is like DocsPerSecond for the dataset size in bytes.
func (r *Result) BytesPerSecond() float64 {
	return r.rate(float64(r.Dataset.Size) * float64(r.Phases.Iterations))
}

func (r *Result) rate(units float64) float64 {
	mean := r.Mean()
	if mean <= 0 || units <= 0 {
		return 0
	}
	return units / mean.Seconds()
}
