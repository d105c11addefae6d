// Package classifier provides the tabular models that map a feature vector to
// a class label, along with their versioned on-disk artifact.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
)

// Supported algorithms.
const (
	AlgorithmRandomForest = "random_forest"
	AlgorithmKNN          = "knn"
)

var (
	// ErrEmptyTrainingSet is returned when Fit receives no samples.
	ErrEmptyTrainingSet = errors.New("empty training set")
	// ErrUnknownAlgorithm is returned for an unsupported algorithm name.
	ErrUnknownAlgorithm = errors.New("unknown algorithm")
	// ErrFeatureWidth is returned when a vector does not match the model width.
	ErrFeatureWidth = errors.New("feature width mismatch")
)

// Classifier predicts a raw class label for one feature vector.
type Classifier interface {
	Predict(features []float64) (string, error)
}

// Model is a fitted classifier that can be persisted as an artifact.
type Model interface {
	Classifier
	Algorithm() string
	Classes() []string
	FeatureWidth() int
}

// Options holds training hyperparameters. Zero values select defaults.
type Options struct {
	Algorithm      string `json:"algorithm"                  yaml:"algorithm"`
	NEstimators    int    `json:"n_estimators,omitempty"     yaml:"n_estimators"`     // Trees in the forest
	MaxDepth       int    `json:"max_depth,omitempty"        yaml:"max_depth"`        // 0 = unlimited
	MinSamplesLeaf int    `json:"min_samples_leaf,omitempty" yaml:"min_samples_leaf"` // Minimum samples per leaf
	MaxFeatures    int    `json:"max_features,omitempty"     yaml:"max_features"`     // 0 = sqrt(width)
	K              int    `json:"k,omitempty"                yaml:"k"`                // Neighbours for KNN
	Seed           int64  `json:"seed"                       yaml:"seed"`
	Workers        int    `json:"-"                          yaml:"-"` // 0 = runtime.NumCPU()
}

// DefaultOptions returns the standard forest configuration.
func DefaultOptions() Options {
	return Options{
		Algorithm:      AlgorithmRandomForest,
		NEstimators:    200,
		MinSamplesLeaf: 1,
		K:              5,
		Seed:           42,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Algorithm == "" {
		o.Algorithm = d.Algorithm
	}
	if o.NEstimators <= 0 {
		o.NEstimators = d.NEstimators
	}
	if o.MinSamplesLeaf <= 0 {
		o.MinSamplesLeaf = d.MinSamplesLeaf
	}
	if o.K <= 0 {
		o.K = d.K
	}
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	return o
}

// Fit trains a model of the configured algorithm on x and y.
func Fit(ctx context.Context, x [][]float64, y []string, opts Options) (Model, error) {
	opts = opts.withDefaults()
	switch opts.Algorithm {
	case AlgorithmRandomForest:
		return FitRandomForest(ctx, x, y, opts)
	case AlgorithmKNN:
		return FitKNN(x, y, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, opts.Algorithm)
	}
}

// checkTrainingSet verifies x and y are non-empty, aligned and of uniform width.
func checkTrainingSet(x [][]float64, y []string) (int, error) {
	if len(x) == 0 {
		return 0, ErrEmptyTrainingSet
	}
	if len(x) != len(y) {
		return 0, fmt.Errorf("got %d vectors but %d labels", len(x), len(y))
	}
	width := len(x[0])
	if width == 0 {
		return 0, fmt.Errorf("%w: zero-width vectors", ErrFeatureWidth)
	}
	for i, row := range x {
		if len(row) != width {
			return 0, fmt.Errorf("%w: row %d has %d values, want %d", ErrFeatureWidth, i, len(row), width)
		}
	}
	return width, nil
}

// encodeLabels returns the sorted distinct classes and each label's class index.
func encodeLabels(y []string) ([]string, []int) {
	classes := slices.Clone(y)
	slices.Sort(classes)
	classes = slices.Compact(classes)

	index := make(map[string]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	enc := make([]int, len(y))
	for i, label := range y {
		enc[i] = index[label]
	}
	return classes, enc
}

func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

func checkWidth(features []float64, width int) error {
	if len(features) != width {
		return fmt.Errorf("%w: got %d, want %d", ErrFeatureWidth, len(features), width)
	}
	return nil
}
