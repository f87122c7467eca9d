package bench

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
)

// Default values for the built-in benchmarks.
const (
	DefaultIndex          = "stackoverflow"
	DefaultDatasetName    = "stackoverflow.json"
	DefaultDatasetPath    = "fixtures/stackoverflow.json"
	DefaultDocuments      = 2000000
	DefaultCleanupPattern = "test-*"

	ActionBulk   = "bulk"
	ActionSearch = "search"
)

// Phases is the run plan of a benchmark.
type Phases struct {
	// Warmup is the number of unmeasured invocations before measuring.
	Warmup int
	// Measure is the number of timed invocations.
	Measure int
	// Iterations is passed to every invocation; the unit repeats its work
	// that many times.
	Iterations int
}

// Validate checks the plan. At least one measured invocation and one
// iteration are required.
func (p Phases) Validate() error {
	if p.Warmup < 0 {
		return fmt.Errorf("warmup must not be negative, got %d", p.Warmup)
	}
	if p.Measure < 1 {
		return fmt.Errorf("measure must be at least 1, got %d", p.Measure)
	}
	if p.Iterations < 1 {
		return fmt.Errorf("iterations must be at least 1, got %d", p.Iterations)
	}
	return nil
}

// Dataset describes the data a benchmark works on. Size and Documents are
// used to normalize throughput and may be zero.
type Dataset struct {
	Name      string
	Path      string
	Size      int64
	Documents int64
}

// DatasetFromFile describes the dataset at path, taking its size in bytes
// from the file system.
func DatasetFromFile(path, name string, docs int64) (Dataset, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Dataset{}, errors.Wrapf(err, "dataset %s", name)
	}
	if info.IsDir() {
		return Dataset{}, errors.Errorf("dataset %s: %s is a directory", name, path)
	}

	return Dataset{
		Name:      name,
		Path:      path,
		Size:      info.Size(),
		Documents: docs,
	}, nil
}

// Spec describes one benchmark.
type Spec struct {
	Name    string
	Action  string
	Phases  Phases
	Dataset Dataset
}

// BulkSpec is the default bulk ingestion benchmark: one warmup pass over
// the dataset, then one measured pass.
func BulkSpec(ds Dataset) Spec {
	return Spec{
		Name:    "Bulk index documents",
		Action:  ActionBulk,
		Phases:  Phases{Warmup: 1, Measure: 1, Iterations: 1},
		Dataset: ds,
	}
}

// SearchSpec is the default search benchmark: 3 warmup and 5 measured
// invocations of 100 queries each.
func SearchSpec(ds Dataset) Spec {
	return Spec{
		Name:    "Complex search request",
		Action:  ActionSearch,
		Phases:  Phases{Warmup: 3, Measure: 5, Iterations: 100},
		Dataset: ds,
	}
}
