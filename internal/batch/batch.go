package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/MeKo-Tech/arsl/internal/dataset"
	"github.com/MeKo-Tech/arsl/internal/detector"
	"github.com/MeKo-Tech/arsl/internal/features"
	"github.com/MeKo-Tech/arsl/internal/models"
	"github.com/MeKo-Tech/arsl/internal/pipeline"
	"github.com/google/uuid"
)

// Run extracts features from every image under cfg.CorpusRoot and writes the
// feature table to cfg.OutputPath, replacing any previous file. Images
// without a detected hand or failing to process are dropped and counted. A
// detector that cannot be built is fatal.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	tasks, err := discoverCorpus(cfg.CorpusRoot, cfg.IncludePatterns, cfg.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover image files: %w", err)
	}
	if len(tasks) == 0 {
		return nil, ErrNoImages
	}

	factory := cfg.Factory
	if factory == nil {
		if err := models.ValidateModelExists(cfg.Detector.ModelPath); err != nil {
			return nil, fmt.Errorf("%w: %s", detector.ErrModelNotFound, cfg.Detector.ModelPath)
		}
		if palm := cfg.Detector.PalmModelPath; palm != "" {
			if err := models.ValidateModelExists(palm); err != nil {
				return nil, fmt.Errorf("%w: %s", detector.ErrModelNotFound, palm)
			}
		}
		factory = detector.NewFactory(cfg.Detector)
	}

	runID := uuid.NewString()
	slog.Info("Starting batch extraction",
		"run_id", runID,
		"corpus", cfg.CorpusRoot,
		"images", len(tasks),
		"workers", cfg.Workers)

	samples, stats, err := pipeline.ExtractParallel(ctx, tasks, factory, pipeline.ParallelConfig{
		MaxWorkers:       cfg.Workers,
		ProgressCallback: buildProgress(cfg),
		Loader:           cfg.Loader,
	})
	if err != nil {
		return nil, fmt.Errorf("batch extraction failed: %w", err)
	}

	result := &Result{
		RunID:       runID,
		CorpusRoot:  cfg.CorpusRoot,
		OutputPath:  cfg.OutputPath,
		Attempted:   stats.Attempted,
		Retained:    stats.Retained,
		NoHand:      stats.NoHand,
		Failed:      stats.Failed,
		PerClass:    stats.PerClass,
		WorkerCount: stats.WorkerCount,
		Duration:    stats.TotalDuration,
	}
	result.LowYieldClasses = auditYield(stats.PerClass, cfg.MinClassYield)

	if cfg.OutputPath != "" {
		table := buildTable(samples)
		table.Stats = &dataset.Stats{RunID: runID, Attempted: result.Attempted, Retained: result.Retained}
		if err := dataset.Save(cfg.OutputPath, table); err != nil {
			return nil, err
		}
	}

	slog.Info("Batch extraction completed",
		"run_id", runID,
		"attempted", result.Attempted,
		"retained", result.Retained,
		"no_hand", result.NoHand,
		"failed", result.Failed,
		"duration", result.Duration)
	return result, nil
}

func buildProgress(cfg Config) pipeline.ProgressCallback {
	logCB := pipeline.NewLogProgressCallback(slog.Default())
	if !cfg.ShowProgress || cfg.Quiet {
		return logCB
	}
	w := cfg.ProgressWriter
	if w == nil {
		w = os.Stderr
	}
	console := pipeline.NewConsoleProgressCallback(w, "Extracting: ")
	if cfg.ProgressInterval > 0 {
		console = console.WithUpdateInterval(cfg.ProgressInterval)
	}
	return pipeline.MultiProgressCallback{console, logCB}
}

// buildTable collects samples into a sorted feature table.
func buildTable(samples []pipeline.Sample) *dataset.Table {
	table := dataset.New(features.Width)
	for _, s := range samples {
		table.Add(s.Features, s.Label)
	}
	table.Sort()
	return table
}

// auditYield warns about classes whose retention falls below threshold. The
// table is not rebalanced.
func auditYield(perClass map[string]pipeline.ClassStats, threshold float64) []string {
	low := []string{}
	for label, c := range perClass {
		if c.Attempted == 0 || c.Yield() >= threshold {
			continue
		}
		low = append(low, label)
		slog.Warn("Low per-class yield",
			"class", label,
			"attempted", c.Attempted,
			"retained", c.Retained,
			"yield", fmt.Sprintf("%.2f", c.Yield()))
	}
	sort.Strings(low)
	return low
}
