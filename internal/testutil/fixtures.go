package testutil

import (
	"image/color"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/MeKo-Tech/arsl/internal/landmarks"
	"github.com/stretchr/testify/require"
)

// OpenPalmHand returns a right hand with all fingers extended, in normalized
// frame coordinates.
func OpenPalmHand() landmarks.Hand {
	pts := make([]landmarks.Keypoint, landmarks.NumLandmarks)

	pts[landmarks.Wrist] = landmarks.Keypoint{X: 0.5, Y: 0.8}

	pts[landmarks.ThumbCMC] = landmarks.Keypoint{X: 0.55, Y: 0.75, Z: 0.02}
	pts[landmarks.ThumbMCP] = landmarks.Keypoint{X: 0.62, Y: 0.70, Z: 0.03}
	pts[landmarks.ThumbIP] = landmarks.Keypoint{X: 0.68, Y: 0.65, Z: 0.03}
	pts[landmarks.ThumbTip] = landmarks.Keypoint{X: 0.73, Y: 0.60, Z: 0.03}

	pts[landmarks.IndexMCP] = landmarks.Keypoint{X: 0.55, Y: 0.68}
	pts[landmarks.IndexPIP] = landmarks.Keypoint{X: 0.57, Y: 0.55}
	pts[landmarks.IndexDIP] = landmarks.Keypoint{X: 0.58, Y: 0.45}
	pts[landmarks.IndexTip] = landmarks.Keypoint{X: 0.58, Y: 0.35}

	pts[landmarks.MiddleMCP] = landmarks.Keypoint{X: 0.50, Y: 0.66}
	pts[landmarks.MiddlePIP] = landmarks.Keypoint{X: 0.50, Y: 0.52}
	pts[landmarks.MiddleDIP] = landmarks.Keypoint{X: 0.50, Y: 0.40}
	pts[landmarks.MiddleTip] = landmarks.Keypoint{X: 0.50, Y: 0.28}

	pts[landmarks.RingMCP] = landmarks.Keypoint{X: 0.45, Y: 0.68}
	pts[landmarks.RingPIP] = landmarks.Keypoint{X: 0.43, Y: 0.55}
	pts[landmarks.RingDIP] = landmarks.Keypoint{X: 0.42, Y: 0.45}
	pts[landmarks.RingTip] = landmarks.Keypoint{X: 0.42, Y: 0.35}

	pts[landmarks.PinkyMCP] = landmarks.Keypoint{X: 0.40, Y: 0.70}
	pts[landmarks.PinkyPIP] = landmarks.Keypoint{X: 0.37, Y: 0.60}
	pts[landmarks.PinkyDIP] = landmarks.Keypoint{X: 0.35, Y: 0.50}
	pts[landmarks.PinkyTip] = landmarks.Keypoint{X: 0.34, Y: 0.42}

	return landmarks.Hand{Points: pts, Handedness: "Right", Score: 0.95}
}

// ShiftedHand returns h translated by (dx, dy).
func ShiftedHand(h landmarks.Hand, dx, dy float64) landmarks.Hand {
	out := h
	out.Points = make([]landmarks.Keypoint, len(h.Points))
	for i, p := range h.Points {
		out.Points[i] = landmarks.Keypoint{X: p.X + dx, Y: p.Y + dy, Z: p.Z}
	}
	return out
}

// ClusteredSamples returns perClass vectors of the given width per class.
// Class i is centred at i on every axis with uniform noise of ±0.1, so the
// classes are linearly separable on any single feature.
func ClusteredSamples(classes []string, perClass, width int, seed uint64) ([][]float64, []string) {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	var x [][]float64
	var y []string
	for ci, c := range classes {
		for range perClass {
			row := make([]float64, width)
			for j := range row {
				row[j] = float64(ci) + (rng.Float64()-0.5)*0.2
			}
			x = append(x, row)
			y = append(y, c)
		}
	}
	return x, y
}

// CorpusClass describes the contents of one synthetic class directory.
type CorpusClass struct {
	Hands   int // images containing a synthetic hand
	Blank   int // images with no hand
	Corrupt int // files with an image extension but undecodable content
}

// CreateCorpus writes a labeled corpus under root, one directory per class,
// and returns the number of files written.
func CreateCorpus(t *testing.T, root string, classes map[string]CorpusClass) int {
	t.Helper()

	total := 0
	for name, class := range classes {
		dir := filepath.Join(root, name)
		require.NoError(t, EnsureDir(dir))

		for i := range class.Hands {
			SaveImage(t, CreateHandImage(SmallSize.Width, SmallSize.Height), filepath.Join(dir, "hand_"+strconv.Itoa(i)+".png"))
			total++
		}
		for i := range class.Blank {
			SaveImage(t, CreateTestImage(SmallSize.Width, SmallSize.Height, color.White), filepath.Join(dir, "blank_"+strconv.Itoa(i)+".jpg"))
			total++
		}
		for i := range class.Corrupt {
			path := filepath.Join(dir, "corrupt_"+strconv.Itoa(i)+".png")
			require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o600))
			total++
		}
	}
	return total
}
