package trainer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func repeat(label string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = label
	}
	return out
}

func TestStratifiedSplit_Proportions(t *testing.T) {
	labels := append(repeat("a", 50), repeat("b", 10)...)
	labels = append(labels, repeat("c", 2)...)

	split, err := StratifiedSplit(labels, 0.2, 42)
	require.NoError(t, err)

	count := func(idx []int, label string) int {
		n := 0
		for _, i := range idx {
			if labels[i] == label {
				n++
			}
		}
		return n
	}
	assert.Equal(t, 10, count(split.Test, "a"))
	assert.Equal(t, 2, count(split.Test, "b"))
	assert.Equal(t, 1, count(split.Test, "c"))
	assert.Equal(t, 1, count(split.Train, "c"))
	assert.Len(t, split.Train, len(labels)-len(split.Test))
}

func TestStratifiedSplit_Deterministic(t *testing.T) {
	labels := append(repeat("a", 20), repeat("b", 20)...)

	s1, err := StratifiedSplit(labels, 0.2, 7)
	require.NoError(t, err)
	s2, err := StratifiedSplit(labels, 0.2, 7)
	require.NoError(t, err)
	assert.Equal(t, s1, s2)

	s3, err := StratifiedSplit(labels, 0.2, 8)
	require.NoError(t, err)
	assert.NotEqual(t, s1.Test, s3.Test)
}

func TestStratifiedSplit_SingleSampleClassIsFatal(t *testing.T) {
	labels := append(repeat("a", 10), "lonely")

	_, err := StratifiedSplit(labels, 0.2, 1)
	require.ErrorIs(t, err, ErrTooFewSamples)
	assert.Contains(t, err.Error(), `"lonely"`)
}

func TestStratifiedSplit_InvalidTestSize(t *testing.T) {
	for _, size := range []float64{0, 1, -0.1, 1.5} {
		_, err := StratifiedSplit(repeat("a", 5), size, 1)
		require.Error(t, err, "size %v", size)
	}
}

func TestTestCount(t *testing.T) {
	assert.Equal(t, 1, testCount(2, 0.2))
	assert.Equal(t, 1, testCount(3, 0.2))
	assert.Equal(t, 1, testCount(5, 0.2))
	assert.Equal(t, 2, testCount(10, 0.2))
	assert.Equal(t, 1, testCount(2, 0.9))
	assert.Equal(t, 9, testCount(10, 0.95))
}
