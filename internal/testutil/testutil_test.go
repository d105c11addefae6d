package testutil

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/arsl/internal/landmarks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetProjectRoot(t *testing.T) {
	root, err := GetProjectRoot()
	require.NoError(t, err)
	assert.True(t, FileExists(filepath.Join(root, "go.mod")))
}

func TestOpenPalmHand(t *testing.T) {
	h := OpenPalmHand()
	require.True(t, h.Valid())
	for _, p := range h.Points {
		assert.True(t, p.X > 0 && p.X < 1 && p.Y > 0 && p.Y < 1)
	}
	assert.Less(t, h.Points[landmarks.MiddleTip].Y, h.Points[landmarks.Wrist].Y)

	s := ShiftedHand(h, 0.1, -0.1)
	assert.InDelta(t, h.Points[0].X+0.1, s.Points[0].X, 1e-12)
	assert.InDelta(t, 0.8, h.Points[0].Y, 1e-12, "original untouched")
}

func TestClusteredSamples(t *testing.T) {
	x, y := ClusteredSamples([]string{"a", "b"}, 4, 3, 1)
	require.Len(t, x, 8)
	require.Len(t, y, 8)
	for i, row := range x {
		require.Len(t, row, 3)
		center := 0.0
		if y[i] == "b" {
			center = 1
		}
		for _, v := range row {
			assert.InDelta(t, center, v, 0.1)
		}
	}
}

func TestCreateCorpus(t *testing.T) {
	root := CreateTempDir(t)
	n := CreateCorpus(t, root, map[string]CorpusClass{
		"0": {Hands: 2, Blank: 1},
		"1": {Hands: 1, Corrupt: 1},
	})
	assert.Equal(t, 5, n)

	entries, err := os.ReadDir(filepath.Join(root, "0"))
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	hand := LoadImage(t, filepath.Join(root, "0", "hand_0.png"))
	assert.True(t, ContainsColor(hand, SkinTone))
	blank := LoadImage(t, filepath.Join(root, "0", "blank_0.jpg"))
	assert.False(t, ContainsColor(blank, SkinTone))
}

func TestCompareImages(t *testing.T) {
	a := CreateTestImage(10, 10, color.White)
	b := CreateTestImage(10, 10, color.White)
	assert.True(t, CompareImages(a, b, 0))
	assert.False(t, CompareImages(a, CreateTestImage(10, 10, color.Black), 0.1))
	assert.False(t, CompareImages(a, CreateTestImage(5, 5, color.White), 1))
}

func TestEncodeDataURL(t *testing.T) {
	u := EncodeDataURL(t, CreateTestImage(4, 4, color.White), "png")
	assert.Contains(t, u, "data:image/png;base64,")
	u = EncodeDataURL(t, CreateTestImage(4, 4, color.White), "jpeg")
	assert.Contains(t, u, "data:image/jpeg;base64,")
}
