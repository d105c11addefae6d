// Package batch runs feature extraction over a labeled image corpus and
// writes the resulting feature table.
package batch

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/MeKo-Tech/arsl/internal/detector"
	"github.com/MeKo-Tech/arsl/internal/pipeline"
)

// DefaultMinClassYield is the per-class retention below which a warning is logged.
const DefaultMinClassYield = 0.5

// Config holds all configuration for a batch extraction run.
type Config struct {
	CorpusRoot string
	OutputPath string // empty skips writing the feature table

	// Detector settings; Factory overrides Detector when set.
	Detector detector.Config
	Factory  detector.Factory
	Loader   pipeline.ImageLoader

	// Parallel processing settings
	Workers int // 0 = runtime.NumCPU()

	// File discovery settings
	IncludePatterns []string
	ExcludePatterns []string

	// Progress settings
	ShowProgress     bool
	Quiet            bool
	ProgressInterval time.Duration
	ProgressWriter   io.Writer

	// Audit settings. Classes retaining less than MinClassYield of their
	// attempted images are reported; 0 disables the audit.
	MinClassYield float64
}

// DefaultConfig returns an extraction configuration using the offline
// detector threshold.
func DefaultConfig() Config {
	return Config{
		Detector:         detector.ExtractionConfig(),
		Workers:          runtime.NumCPU(),
		ShowProgress:     true,
		ProgressInterval: 100 * time.Millisecond,
		MinClassYield:    DefaultMinClassYield,
	}
}

// validate checks the run configuration.
func (c *Config) validate() error {
	if c.CorpusRoot == "" {
		return errors.New("corpus root cannot be empty")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	if c.MinClassYield < 0 || c.MinClassYield > 1 {
		return fmt.Errorf("min class yield must be in [0,1], got %f", c.MinClassYield)
	}
	return nil
}

// Result holds the yield audit of a batch run.
type Result struct {
	RunID           string                         `json:"run_id"            yaml:"run_id"`
	CorpusRoot      string                         `json:"corpus_root"       yaml:"corpus_root"`
	OutputPath      string                         `json:"output_path"       yaml:"output_path"`
	Attempted       int                            `json:"attempted"         yaml:"attempted"`
	Retained        int                            `json:"retained"          yaml:"retained"`
	NoHand          int                            `json:"no_hand"           yaml:"no_hand"`
	Failed          int                            `json:"failed"            yaml:"failed"`
	PerClass        map[string]pipeline.ClassStats `json:"per_class"         yaml:"per_class"`
	LowYieldClasses []string                       `json:"low_yield_classes" yaml:"low_yield_classes"`
	WorkerCount     int                            `json:"worker_count"      yaml:"worker_count"`
	Duration        time.Duration                  `json:"duration_ns"       yaml:"duration"`
}

// Yield returns Retained/Attempted.
func (r *Result) Yield() float64 {
	if r.Attempted == 0 {
		return 0
	}
	return float64(r.Retained) / float64(r.Attempted)
}
