package cmd

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MeKo-Tech/arsl/internal/detector"
	"github.com/MeKo-Tech/arsl/internal/inference"
	"github.com/MeKo-Tech/arsl/internal/labels"
	"github.com/MeKo-Tech/arsl/internal/landmarks"
	"github.com/MeKo-Tech/arsl/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func glyph(t *testing.T, id int) string {
	t.Helper()
	g, ok := labels.Glyph(id)
	require.True(t, ok)
	return g
}

func TestPredictCommand(t *testing.T) {
	assert.NotNil(t, predictCmd)
	assert.True(t, strings.HasPrefix(predictCmd.Use, "predict"))
	assert.NotEmpty(t, predictCmd.Short)
	for _, name := range []string{"format", "classifier", "overlay-dir", "det-model", "min-confidence"} {
		assert.NotNil(t, predictCmd.Flags().Lookup(name), name)
	}
	assert.Equal(t, "0.3", predictCmd.Flags().Lookup("min-confidence").DefValue)
}

func TestPredictCommand_SingleImage(t *testing.T) {
	setupCommandTest(t)
	artifact := writeArtifact(t)
	hand, _ := writeFrames(t)

	out, _, err := executeCommand(t, "predict", hand, "--classifier", artifact)
	require.NoError(t, err)
	assert.Equal(t, glyph(t, 3)+"\n", out)
}

func TestPredictCommand_NoHandPrintsDash(t *testing.T) {
	setupCommandTest(t)
	artifact := writeArtifact(t)
	hand, blank := writeFrames(t)

	out, _, err := executeCommand(t, "predict", hand, blank, "--classifier", artifact)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, hand+": "+glyph(t, 3), lines[0])
	assert.Equal(t, blank+": -", lines[1])
}

func TestPredictCommand_JSON(t *testing.T) {
	setupCommandTest(t)
	artifact := writeArtifact(t)
	hand, blank := writeFrames(t)

	out, _, err := executeCommand(t, "predict", hand, blank, "--classifier", artifact, "--format", "json")
	require.NoError(t, err)

	var results []ImagePrediction
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)

	require.NotNil(t, results[0].Prediction)
	assert.Equal(t, glyph(t, 3), *results[0].Prediction)
	assert.Equal(t, inference.StatusRecognized, results[0].Status)
	assert.Equal(t, "3", results[0].RawClass)
	require.Len(t, results[0].Landmarks, 1)
	assert.Len(t, results[0].Landmarks[0], landmarks.NumLandmarks)

	assert.Nil(t, results[1].Prediction)
	assert.Equal(t, inference.StatusNoHand, results[1].Status)
	assert.Empty(t, results[1].Landmarks)
	assert.Contains(t, out, `"prediction": null`)
}

func TestPredictCommand_Overlay(t *testing.T) {
	setupCommandTest(t)
	artifact := writeArtifact(t)
	hand, blank := writeFrames(t)
	overlays := filepath.Join(t.TempDir(), "overlays")

	_, _, err := executeCommand(t, "predict", hand, blank, "--classifier", artifact, "--overlay-dir", overlays)
	require.NoError(t, err)

	assert.True(t, testutil.FileExists(filepath.Join(overlays, "hand_overlay.png")))
	assert.False(t, testutil.FileExists(filepath.Join(overlays, "blank_overlay.png")))
}

func TestPredictCommand_Errors(t *testing.T) {
	t.Run("no images", func(t *testing.T) {
		setupCommandTest(t)
		_, _, err := executeCommand(t, "predict")
		require.Error(t, err)
	})

	t.Run("missing classifier", func(t *testing.T) {
		setupCommandTest(t)
		hand, _ := writeFrames(t)
		_, _, err := executeCommand(t, "predict", hand, "--classifier", filepath.Join(t.TempDir(), "none.json"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to load classifier")
	})

	t.Run("missing image", func(t *testing.T) {
		setupCommandTest(t)
		artifact := writeArtifact(t)
		_, _, err := executeCommand(t, "predict", filepath.Join(t.TempDir(), "none.png"), "--classifier", artifact)
		require.Error(t, err)
	})

	t.Run("invalid format", func(t *testing.T) {
		setupCommandTest(t)
		_, _, err := executeCommand(t, "predict", "x.png", "--format", "yaml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid output format")
	})

	t.Run("detector failure on every image", func(t *testing.T) {
		setupCommandTest(t)
		detectorFactory = func(detector.Config) detector.Factory {
			return func() (detector.Detector, error) {
				m := detector.NewMock()
				m.SetError(errors.New("session crashed"))
				return m, nil
			}
		}
		artifact := writeArtifact(t)
		hand, _ := writeFrames(t)

		out, _, err := executeCommand(t, "predict", hand, "--classifier", artifact)
		require.Error(t, err)
		assert.Equal(t, "-\n", out)
	})
}
