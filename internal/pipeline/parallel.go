// Package pipeline extracts landmark features from many images in parallel,
// each worker owning its own detector.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/MeKo-Tech/arsl/internal/detector"
	"github.com/MeKo-Tech/arsl/internal/features"
	"github.com/MeKo-Tech/arsl/internal/utils"
)

// ErrNoTasks is returned when there is nothing to extract.
var ErrNoTasks = errors.New("no tasks provided")

// Task is one labeled image to process.
type Task struct {
	Path  string
	Label string
}

// Sample is a retained feature vector with its label.
type Sample struct {
	Features []float64
	Label    string
	Path     string
}

// Outcome is the per-image result category.
type Outcome int

const (
	OutcomeRetained Outcome = iota
	OutcomeNoHand
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRetained:
		return "retained"
	case OutcomeNoHand:
		return "no_hand"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// ImageLoader loads the image behind a task path.
type ImageLoader func(path string) (image.Image, error)

// ParallelConfig holds configuration for parallel extraction.
type ParallelConfig struct {
	MaxWorkers       int              // Number of parallel workers (0 = runtime.NumCPU())
	ProgressCallback ProgressCallback // Optional progress reporting
	Loader           ImageLoader      // Image loader (default: utils.LoadImage)
}

// DefaultParallelConfig returns a pool sized to the available CPUs.
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{
		MaxWorkers: runtime.NumCPU(),
		Loader:     loadImage,
	}
}

func loadImage(path string) (image.Image, error) {
	img, _, err := utils.LoadImage(path)
	return img, err
}

// ClassStats counts outcomes for one label.
type ClassStats struct {
	Attempted int `json:"attempted" yaml:"attempted"`
	Retained  int `json:"retained"  yaml:"retained"`
	NoHand    int `json:"no_hand"   yaml:"no_hand"`
	Failed    int `json:"failed"    yaml:"failed"`
}

// Yield returns Retained/Attempted, or 0 for an empty class.
func (c ClassStats) Yield() float64 {
	if c.Attempted == 0 {
		return 0
	}
	return float64(c.Retained) / float64(c.Attempted)
}

// ParallelStats holds statistics about an extraction run.
type ParallelStats struct {
	Attempted        int                   `json:"attempted"            yaml:"attempted"`
	Retained         int                   `json:"retained"             yaml:"retained"`
	NoHand           int                   `json:"no_hand"              yaml:"no_hand"`
	Failed           int                   `json:"failed"               yaml:"failed"`
	PerClass         map[string]ClassStats `json:"per_class"            yaml:"per_class"`
	WorkerCount      int                   `json:"worker_count"         yaml:"worker_count"`
	TotalDuration    time.Duration         `json:"total_duration_ns"    yaml:"total_duration"`
	AveragePerImage  time.Duration         `json:"average_per_image_ns" yaml:"average_per_image"`
	ThroughputPerSec float64               `json:"throughput_per_sec"   yaml:"throughput_per_sec"`
}

func (s *ParallelStats) record(label string, o Outcome) {
	c := s.PerClass[label]
	c.Attempted++
	s.Attempted++
	switch o {
	case OutcomeRetained:
		c.Retained++
		s.Retained++
	case OutcomeNoHand:
		c.NoHand++
		s.NoHand++
	case OutcomeFailed:
		c.Failed++
		s.Failed++
	}
	s.PerClass[label] = c
}

func (s *ParallelStats) finish(duration time.Duration) {
	s.TotalDuration = duration
	if s.Attempted > 0 {
		s.AveragePerImage = duration / time.Duration(s.Attempted)
		if duration > 0 {
			s.ThroughputPerSec = float64(s.Attempted) / duration.Seconds()
		}
	}
}

// taskJob represents a single extraction job.
type taskJob struct {
	index int
	task  Task
}

// taskResult represents the result of processing a single task.
type taskResult struct {
	index    int
	outcome  Outcome
	features []float64
	err      error
}

// ExtractParallel runs detector + feature extraction over tasks using a pool
// of workers. Each worker builds one detector with factory at startup and
// closes it on exit; a factory failure aborts the whole run. Per-image
// failures, including panics, are counted and dropped. Samples are returned
// in task order.
func ExtractParallel(
	ctx context.Context,
	tasks []Task,
	factory detector.Factory,
	config ParallelConfig,
) ([]Sample, ParallelStats, error) {
	stats := ParallelStats{PerClass: make(map[string]ClassStats)}
	if len(tasks) == 0 {
		return nil, stats, ErrNoTasks
	}
	if factory == nil {
		return nil, stats, errors.New("detector factory is nil")
	}

	if config.MaxWorkers <= 0 {
		config.MaxWorkers = runtime.NumCPU()
	}
	if config.Loader == nil {
		config.Loader = loadImage
	}
	progress := config.ProgressCallback
	if progress == nil {
		progress = NoOpProgressCallback{}
	}

	workers := min(config.MaxWorkers, len(tasks))
	stats.WorkerCount = workers
	start := time.Now()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Build detectors before any task is handed out.
	detectors, err := startDetectors(factory, workers)
	if err != nil {
		return nil, stats, err
	}

	progress.OnStart(len(tasks))
	defer progress.OnComplete()

	jobs := make(chan taskJob, len(tasks))
	results := make(chan taskResult, len(tasks))

	var wg sync.WaitGroup
	for id, det := range detectors {
		wg.Add(1)
		go worker(ctx, id, det, config.Loader, jobs, results, &wg)
	}

	go func() {
		defer close(jobs)
		for i, t := range tasks {
			select {
			case jobs <- taskJob{index: i, task: t}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	vectors := make([][]float64, len(tasks))
	processed := 0
	for r := range results {
		processed++
		task := tasks[r.index]
		stats.record(task.Label, r.outcome)
		if r.outcome == OutcomeRetained {
			vectors[r.index] = r.features
		}
		progress.OnImage(processed, len(tasks), task.Path, r.outcome, r.err)
	}

	if err := ctx.Err(); err != nil {
		return nil, stats, err
	}

	samples := make([]Sample, 0, stats.Retained)
	for i, v := range vectors {
		if v != nil {
			samples = append(samples, Sample{Features: v, Label: tasks[i].Label, Path: tasks[i].Path})
		}
	}
	stats.finish(time.Since(start))
	return samples, stats, nil
}

// startDetectors creates one detector per worker concurrently. On failure
// every detector already built is closed.
func startDetectors(factory detector.Factory, n int) ([]detector.Detector, error) {
	detectors := make([]detector.Detector, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			detectors[i], errs[i] = factory()
		}()
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		closeDetectors(detectors)
		return nil, fmt.Errorf("failed to start detector: %w", err)
	}
	return detectors, nil
}

func closeDetectors(detectors []detector.Detector) {
	for _, d := range detectors {
		if d == nil {
			continue
		}
		if err := d.Close(); err != nil {
			slog.Warn("Failed to close detector", "error", err)
		}
	}
}

// worker processes tasks from the jobs channel with its own detector.
func worker(
	ctx context.Context,
	id int,
	det detector.Detector,
	load ImageLoader,
	jobs <-chan taskJob,
	results chan<- taskResult,
	wg *sync.WaitGroup,
) {
	defer wg.Done()
	defer closeDetectors([]detector.Detector{det})

	slog.Debug("Extraction worker started", "worker", id)
	defer slog.Debug("Extraction worker stopped", "worker", id)

	for {
		select {
		case job, ok := <-jobs:
			if !ok {
				return
			}
			outcome, vec, err := processTask(det, load, job.task)
			if err != nil {
				slog.Debug("Dropped image", "path", job.task.Path, "label", job.task.Label, "error", err)
			}

			select {
			case results <- taskResult{index: job.index, outcome: outcome, features: vec, err: err}:
			case <-ctx.Done():
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

// processTask loads, detects and extracts one image. Panics are converted
// into OutcomeFailed.
func processTask(det detector.Detector, load ImageLoader, task Task) (outcome Outcome, vec []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome, vec, err = OutcomeFailed, nil, fmt.Errorf("panic while processing %s: %v", task.Path, r)
		}
	}()

	img, err := load(task.Path)
	if err != nil {
		return OutcomeFailed, nil, err
	}

	result, err := det.Detect(img)
	if err != nil {
		return OutcomeFailed, nil, fmt.Errorf("detection failed: %w", err)
	}

	hand, ok := result.First()
	if !ok {
		return OutcomeNoHand, nil, nil
	}

	vec, err = features.Extract(hand)
	if err != nil {
		return OutcomeFailed, nil, err
	}
	return OutcomeRetained, vec, nil
}
