// Package trainer fits a classifier on a feature table, evaluates it on a
// stratified hold-out split and writes the artifact.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/arsl/internal/classifier"
	"github.com/MeKo-Tech/arsl/internal/common"
	"github.com/MeKo-Tech/arsl/internal/dataset"
	"github.com/MeKo-Tech/arsl/internal/features"
)

// DefaultTestSize is the held-out fraction.
const DefaultTestSize = 0.2

// ErrFeatureWidth is returned when the table's vectors are not extractor-wide.
var ErrFeatureWidth = classifier.ErrFeatureWidth

// Config holds configuration for a training run.
type Config struct {
	FeatureTablePath string
	ModelOutputPath  string // empty skips writing the artifact
	TestSize         float64
	Options          classifier.Options
}

// DefaultConfig returns the fixed training configuration.
func DefaultConfig() Config {
	return Config{
		TestSize: DefaultTestSize,
		Options:  classifier.DefaultOptions(),
	}
}

// Train loads the feature table, validates it, fits on the train split,
// evaluates on the test split and persists the model. Width mismatches and
// classes too small to stratify are fatal.
func Train(ctx context.Context, cfg Config) (*Report, error) {
	if cfg.FeatureTablePath == "" {
		return nil, errors.New("feature table path cannot be empty")
	}
	if cfg.TestSize == 0 {
		cfg.TestSize = DefaultTestSize
	}

	timer := common.NewNamedTimer("train")

	table, err := dataset.Load(cfg.FeatureTablePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load feature table: %w", err)
	}
	if err := checkWidth(table); err != nil {
		return nil, err
	}
	timer.Lap("load")

	split, err := StratifiedSplit(table.Labels, cfg.TestSize, uint64(cfg.Options.Seed)) //nolint:gosec // G115: seed bits only
	if err != nil {
		return nil, err
	}
	xTrain, yTrain := gather(table.Data, split.Train), gather(table.Labels, split.Train)
	xTest, yTest := gather(table.Data, split.Test), gather(table.Labels, split.Test)
	timer.Lap("split")

	slog.Info("Fitting classifier",
		"algorithm", cfg.Options.Algorithm,
		"train", len(xTrain),
		"test", len(xTest),
		"classes", len(table.Classes()))

	model, err := classifier.Fit(ctx, xTrain, yTrain, cfg.Options)
	if err != nil {
		return nil, fmt.Errorf("failed to fit classifier: %w", err)
	}
	timer.Lap("fit")

	predicted := make([]string, len(xTest))
	for i, x := range xTest {
		p, err := model.Predict(x)
		if err != nil {
			return nil, fmt.Errorf("failed to predict test row %d: %w", i, err)
		}
		predicted[i] = p
	}
	report := Evaluate(yTest, predicted, table.Classes())
	report.Algorithm = model.Algorithm()
	report.TrainSize = len(xTrain)
	timer.Lap("evaluate")

	if cfg.ModelOutputPath != "" {
		if err := classifier.SaveArtifact(cfg.ModelOutputPath, model, cfg.Options); err != nil {
			return nil, fmt.Errorf("failed to save classifier: %w", err)
		}
		report.ModelPath = cfg.ModelOutputPath
		timer.Lap("save")
	}

	report.Duration = timer.Stop()
	report.Stages = timer.Stages()
	slog.Info("Training completed",
		"accuracy", fmt.Sprintf("%.4f", report.Accuracy),
		"macro_f1", fmt.Sprintf("%.4f", report.MacroAvg.F1),
		"timing", timer.String())
	return report, nil
}

// checkWidth requires every vector to be exactly features.Width wide.
func checkWidth(table *dataset.Table) error {
	if table.FeatureWidth != features.Width {
		return fmt.Errorf("%w: table declares %d, want %d", ErrFeatureWidth, table.FeatureWidth, features.Width)
	}
	for i, row := range table.Data {
		if len(row) != features.Width {
			return fmt.Errorf("%w: row %d has %d values, want %d", ErrFeatureWidth, i, len(row), features.Width)
		}
	}
	return nil
}
