package classifier

import (
	"fmt"
	"slices"
)

// KNN is a k-nearest-neighbours classifier over Euclidean distance. Votes are
// unweighted; ties go to the class whose voters are closer in total.
type KNN struct {
	k       int
	classes []string
	width   int
	x       [][]float64
	y       []int
}

// FitKNN stores the training set.
func FitKNN(x [][]float64, y []string, opts Options) (*KNN, error) {
	opts = opts.withDefaults()
	width, err := checkTrainingSet(x, y)
	if err != nil {
		return nil, err
	}
	classes, enc := encodeLabels(y)
	rows := make([][]float64, len(x))
	for i, r := range x {
		rows[i] = slices.Clone(r)
	}
	return &KNN{k: opts.K, classes: classes, width: width, x: rows, y: enc}, nil
}

type neighbour struct {
	dist  float64
	class int
}

// Predict implements Classifier.
func (m *KNN) Predict(features []float64) (string, error) {
	if err := checkWidth(features, m.width); err != nil {
		return "", err
	}

	ns := make([]neighbour, len(m.x))
	for i, row := range m.x {
		d := 0.0
		for j, v := range row {
			diff := v - features[j]
			d += diff * diff
		}
		ns[i] = neighbour{dist: d, class: m.y[i]}
	}
	slices.SortStableFunc(ns, func(a, b neighbour) int {
		switch {
		case a.dist < b.dist:
			return -1
		case a.dist > b.dist:
			return 1
		}
		return 0
	})

	k := min(m.k, len(ns))
	votes := make([]int, len(m.classes))
	total := make([]float64, len(m.classes))
	for _, n := range ns[:k] {
		votes[n.class]++
		total[n.class] += n.dist
	}

	best := -1
	for c := range votes {
		if votes[c] == 0 {
			continue
		}
		if best < 0 || votes[c] > votes[best] || (votes[c] == votes[best] && total[c] < total[best]) {
			best = c
		}
	}
	return m.classes[best], nil
}

// Algorithm implements Model.
func (m *KNN) Algorithm() string { return AlgorithmKNN }

// Classes implements Model.
func (m *KNN) Classes() []string { return slices.Clone(m.classes) }

// FeatureWidth implements Model.
func (m *KNN) FeatureWidth() int { return m.width }

type knnState struct {
	K int         `json:"k"`
	X [][]float64 `json:"x"`
	Y []int       `json:"y"`
}

func (m *KNN) state() any {
	return knnState{K: m.k, X: m.x, Y: m.y}
}

func restoreKNN(s knnState, meta Metadata) (*KNN, error) {
	if s.K <= 0 || len(s.X) == 0 || len(s.X) != len(s.Y) {
		return nil, fmt.Errorf("%w: malformed knn state", ErrIncompatibleArtifact)
	}
	for i, row := range s.X {
		if len(row) != meta.FeatureWidth {
			return nil, fmt.Errorf("%w: knn row %d has width %d", ErrIncompatibleArtifact, i, len(row))
		}
		if s.Y[i] < 0 || s.Y[i] >= len(meta.Classes) {
			return nil, fmt.Errorf("%w: knn label %d out of range", ErrIncompatibleArtifact, s.Y[i])
		}
	}
	return &KNN{k: s.K, classes: slices.Clone(meta.Classes), width: meta.FeatureWidth, x: s.X, y: s.Y}, nil
}
