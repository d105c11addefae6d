package trainer

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
)

// ErrTooFewSamples is returned when a class cannot be stratified.
var ErrTooFewSamples = errors.New("too few samples to stratify")

// Split holds row indices of the train and test partitions.
type Split struct {
	Train []int
	Test  []int
}

// StratifiedSplit partitions row indices so every class keeps its
// proportion in both parts. Each class contributes round(n*testSize) rows to
// the test part, clamped to [1, n-1]; a class with fewer than two rows is an
// error. Output is deterministic for a given seed.
func StratifiedSplit(labels []string, testSize float64, seed uint64) (Split, error) {
	if testSize <= 0 || testSize >= 1 {
		return Split{}, fmt.Errorf("test size must be in (0,1), got %f", testSize)
	}

	byClass := make(map[string][]int)
	for i, l := range labels {
		byClass[l] = append(byClass[l], i)
	}
	classes := make([]string, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Strings(classes)

	var short []string
	for _, c := range classes {
		if len(byClass[c]) < 2 {
			short = append(short, fmt.Sprintf("%q (%d)", c, len(byClass[c])))
		}
	}
	if len(short) > 0 {
		return Split{}, fmt.Errorf("%w: every class needs at least 2 samples, got %v", ErrTooFewSamples, short)
	}

	rng := rand.New(rand.NewPCG(seed, 0x5eed))
	var split Split
	for _, c := range classes {
		idx := append([]int(nil), byClass[c]...)
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

		nTest := testCount(len(idx), testSize)
		split.Test = append(split.Test, idx[:nTest]...)
		split.Train = append(split.Train, idx[nTest:]...)
	}
	sort.Ints(split.Train)
	sort.Ints(split.Test)
	return split, nil
}

func testCount(n int, testSize float64) int {
	k := int(math.Round(float64(n) * testSize))
	return min(max(k, 1), n-1)
}

func gather[T any](src []T, idx []int) []T {
	out := make([]T, len(idx))
	for i, j := range idx {
		out[i] = src[j]
	}
	return out
}
