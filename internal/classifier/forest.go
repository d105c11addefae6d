package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"
	"sync"
)

// RandomForest is a bagged ensemble of Gini CART trees. Class probabilities
// are the mean of the trees' leaf distributions.
type RandomForest struct {
	classes []string
	width   int
	opts    Options
	trees   []*decisionTree
}

type treeJob struct {
	index int
}

type treeResult struct {
	index int
	tree  *decisionTree
}

// FitRandomForest trains a forest with opts.NEstimators trees on a worker pool.
// Each tree draws its bootstrap sample from its own seeded source, so the
// result does not depend on the number of workers.
func FitRandomForest(ctx context.Context, x [][]float64, y []string, opts Options) (*RandomForest, error) {
	opts = opts.withDefaults()
	width, err := checkTrainingSet(x, y)
	if err != nil {
		return nil, err
	}

	classes, enc := encodeLabels(y)
	params := treeParams{
		maxDepth:       opts.MaxDepth,
		minSamplesLeaf: opts.MinSamplesLeaf,
		maxFeatures:    opts.MaxFeatures,
		numClasses:     len(classes),
	}
	if params.maxFeatures <= 0 || params.maxFeatures > width {
		params.maxFeatures = max(1, int(math.Sqrt(float64(width))))
	}

	workers := min(opts.Workers, opts.NEstimators)
	slog.Debug("Fitting random forest",
		"trees", opts.NEstimators, "samples", len(x), "classes", len(classes),
		"max_features", params.maxFeatures, "workers", workers)

	jobs := make(chan treeJob, opts.NEstimators)
	results := make(chan treeResult, opts.NEstimators)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				if ctx.Err() != nil {
					return
				}
				rng := rand.New(rand.NewPCG(uint64(opts.Seed), uint64(job.index)))
				samples := bootstrap(len(x), rng)
				results <- treeResult{index: job.index, tree: buildTree(x, enc, samples, params, rng)}
			}
		}()
	}

	for i := range opts.NEstimators {
		jobs <- treeJob{index: i}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	trees := make([]*decisionTree, opts.NEstimators)
	for r := range results {
		trees[r.index] = r.tree
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &RandomForest{classes: classes, width: width, opts: opts, trees: trees}, nil
}

func bootstrap(n int, rng *rand.Rand) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = rng.IntN(n)
	}
	return out
}

// Predict returns the most probable class for features.
func (f *RandomForest) Predict(features []float64) (string, error) {
	proba, err := f.PredictProba(features)
	if err != nil {
		return "", err
	}
	return f.classes[argmax(proba)], nil
}

// PredictProba returns the class probabilities in Classes order.
func (f *RandomForest) PredictProba(features []float64) ([]float64, error) {
	if err := checkWidth(features, f.width); err != nil {
		return nil, err
	}
	proba := make([]float64, len(f.classes))
	for _, t := range f.trees {
		for i, p := range t.predict(features) {
			proba[i] += p
		}
	}
	for i := range proba {
		proba[i] /= float64(len(f.trees))
	}
	return proba, nil
}

// Algorithm implements Model.
func (f *RandomForest) Algorithm() string { return AlgorithmRandomForest }

// Classes implements Model.
func (f *RandomForest) Classes() []string { return slices.Clone(f.classes) }

// FeatureWidth implements Model.
func (f *RandomForest) FeatureWidth() int { return f.width }

// NumTrees returns the ensemble size.
func (f *RandomForest) NumTrees() int { return len(f.trees) }

type forestState struct {
	Trees []*decisionTree `json:"trees"`
}

func (f *RandomForest) state() any {
	return forestState{Trees: f.trees}
}

func restoreForest(s forestState, meta Metadata) (*RandomForest, error) {
	if len(s.Trees) == 0 {
		return nil, fmt.Errorf("%w: forest has no trees", ErrIncompatibleArtifact)
	}
	for i, t := range s.Trees {
		if t == nil || !t.validate(meta.FeatureWidth, len(meta.Classes)) {
			return nil, fmt.Errorf("%w: tree %d is malformed", ErrIncompatibleArtifact, i)
		}
	}
	return &RandomForest{
		classes: slices.Clone(meta.Classes),
		width:   meta.FeatureWidth,
		opts:    meta.Params,
		trees:   s.Trees,
	}, nil
}
