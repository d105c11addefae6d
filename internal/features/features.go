// Package features turns detected hand keypoints into the fixed-width vector
// consumed by the classifier.
package features

import (
	"errors"
	"fmt"
	"math"

	"github.com/MeKo-Tech/arsl/internal/landmarks"
)

// Width is the length of every feature vector: one (x, y) pair per keypoint.
const Width = 2 * landmarks.NumLandmarks

var (
	// ErrKeypointCount is returned when a hand does not carry exactly 21 keypoints.
	ErrKeypointCount = errors.New("unexpected keypoint count")
	// ErrNonFinite is returned when a keypoint coordinate is NaN or infinite.
	ErrNonFinite = errors.New("non-finite keypoint coordinate")
)

// Extract computes the translation-invariant feature vector of a hand.
// The output interleaves (x - min_x, y - min_y) for each keypoint in the
// order received. No scaling or rotation normalization is applied.
func Extract(h landmarks.Hand) ([]float64, error) {
	return ExtractPoints(h.Points)
}

// ExtractPoints is Extract over a bare keypoint slice.
func ExtractPoints(points []landmarks.Keypoint) ([]float64, error) {
	if len(points) != landmarks.NumLandmarks {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrKeypointCount, len(points), landmarks.NumLandmarks)
	}

	minX, minY := math.Inf(1), math.Inf(1)
	for i, p := range points {
		if !finite(p.X) || !finite(p.Y) {
			return nil, fmt.Errorf("%w at %s", ErrNonFinite, landmarks.Name(i))
		}
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
	}

	out := make([]float64, 0, Width)
	for _, p := range points {
		out = append(out, p.X-minX, p.Y-minY)
	}
	return out, nil
}

// Validate checks that v has the fixed feature width and only finite values.
func Validate(v []float64) error {
	if len(v) != Width {
		return fmt.Errorf("feature vector has %d values, want %d", len(v), Width)
	}
	for i, f := range v {
		if !finite(f) {
			return fmt.Errorf("feature %d: %w", i, ErrNonFinite)
		}
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
