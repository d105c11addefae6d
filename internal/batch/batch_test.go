package batch

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/arsl/internal/dataset"
	"github.com/MeKo-Tech/arsl/internal/detector"
	"github.com/MeKo-Tech/arsl/internal/features"
	"github.com/MeKo-Tech/arsl/internal/landmarks"
	"github.com/MeKo-Tech/arsl/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// skinFactory builds mock detectors that find a hand in skin-coloured frames.
func skinFactory() (detector.Detector, error) {
	m := detector.NewMock()
	m.DetectFunc = func(img image.Image) (landmarks.Detection, error) {
		if testutil.ContainsColor(img, testutil.SkinTone) {
			return landmarks.Detection{Hands: []landmarks.Hand{testutil.OpenPalmHand()}}, nil
		}
		return landmarks.Detection{}, nil
	}
	return m, nil
}

func testConfig(root, output string) Config {
	cfg := DefaultConfig()
	cfg.CorpusRoot = root
	cfg.OutputPath = output
	cfg.Factory = skinFactory
	cfg.Workers = 3
	cfg.Quiet = true
	return cfg
}

func TestRun_RetainsOnlyDetectedHands(t *testing.T) {
	root := t.TempDir()
	n := testutil.CreateCorpus(t, root, map[string]testutil.CorpusClass{
		"alef": {Hands: 4, Blank: 1},
		"beh":  {Hands: 3, Blank: 2, Corrupt: 1},
		"teh":  {Hands: 2},
	})
	output := filepath.Join(t.TempDir(), "features.json")

	result, err := Run(context.Background(), testConfig(root, output))
	require.NoError(t, err)

	// N images, M without a usable hand
	m := 1 + 2 + 1
	assert.Equal(t, n, result.Attempted)
	assert.Equal(t, n-m, result.Retained)
	assert.Equal(t, 3, result.NoHand)
	assert.Equal(t, 1, result.Failed)
	assert.NotEmpty(t, result.RunID)

	table, err := dataset.Load(output)
	require.NoError(t, err)
	assert.Equal(t, n-m, table.Len())
	assert.Equal(t, features.Width, table.FeatureWidth)
	assert.Equal(t, map[string]int{"alef": 4, "beh": 3, "teh": 2}, table.ClassCounts())
	for _, row := range table.Data {
		assert.Len(t, row, features.Width)
	}
	require.NotNil(t, table.Stats)
	assert.Equal(t, result.RunID, table.Stats.RunID)
	assert.Equal(t, n, table.Stats.Attempted)
}

func TestRun_OverwritesPreviousTable(t *testing.T) {
	root := t.TempDir()
	testutil.CreateCorpus(t, root, map[string]testutil.CorpusClass{"alef": {Hands: 2}})
	output := filepath.Join(t.TempDir(), "features.json")

	_, err := Run(context.Background(), testConfig(root, output))
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(filepath.Join(root, "alef")))
	testutil.CreateCorpus(t, root, map[string]testutil.CorpusClass{"beh": {Hands: 1}})

	_, err = Run(context.Background(), testConfig(root, output))
	require.NoError(t, err)

	table, err := dataset.Load(output)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"beh": 1}, table.ClassCounts())
}

func TestRun_LowYieldClassesFlagged(t *testing.T) {
	root := t.TempDir()
	testutil.CreateCorpus(t, root, map[string]testutil.CorpusClass{
		"alef": {Hands: 3},
		"beh":  {Hands: 1, Blank: 3},
	})

	result, err := Run(context.Background(), testConfig(root, ""))
	require.NoError(t, err)
	assert.Equal(t, []string{"beh"}, result.LowYieldClasses)
	assert.InDelta(t, 0.25, result.PerClass["beh"].Yield(), 1e-9)
}

func TestRun_ZeroMinClassYieldDisablesAudit(t *testing.T) {
	root := t.TempDir()
	testutil.CreateCorpus(t, root, map[string]testutil.CorpusClass{
		"alef": {Hands: 1, Blank: 3},
	})

	cfg := testConfig(root, "")
	cfg.MinClassYield = 0
	result, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, result.PerClass["alef"].Yield(), 1e-9)
	assert.Empty(t, result.LowYieldClasses)
}

func TestRun_HiddenFilesCountAsAttempted(t *testing.T) {
	root := t.TempDir()
	testutil.CreateCorpus(t, root, map[string]testutil.CorpusClass{"alef": {Hands: 2}})
	require.NoError(t, os.WriteFile(filepath.Join(root, "alef", ".DS_Store"), []byte("x"), 0o600))

	result, err := Run(context.Background(), testConfig(root, ""))
	require.NoError(t, err)
	assert.Equal(t, 3, result.Attempted)
	assert.Equal(t, 2, result.Retained)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 3, result.PerClass["alef"].Attempted)
}

func TestRun_FactoryFailureIsFatal(t *testing.T) {
	root := t.TempDir()
	testutil.CreateCorpus(t, root, map[string]testutil.CorpusClass{"alef": {Hands: 2}})
	output := filepath.Join(t.TempDir(), "features.json")

	cfg := testConfig(root, output)
	cfg.Factory = func() (detector.Detector, error) { return nil, errors.New("cannot load model") }

	result, err := Run(context.Background(), cfg)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.NoFileExists(t, output)
}

func TestRun_MissingModelIsFatal(t *testing.T) {
	root := t.TempDir()
	testutil.CreateCorpus(t, root, map[string]testutil.CorpusClass{"alef": {Hands: 1}})

	cfg := testConfig(root, "")
	cfg.Factory = nil
	cfg.Detector.ModelPath = filepath.Join(t.TempDir(), "missing.onnx")

	_, err := Run(context.Background(), cfg)
	require.ErrorIs(t, err, detector.ErrModelNotFound)
}

func TestRun_Errors(t *testing.T) {
	_, err := Run(context.Background(), Config{})
	require.Error(t, err)

	_, err = Run(context.Background(), testConfig(filepath.Join(t.TempDir(), "missing"), ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot access")

	_, err = Run(context.Background(), testConfig(t.TempDir(), ""))
	require.ErrorIs(t, err, ErrNoImages)

	cfg := testConfig(t.TempDir(), "")
	cfg.MinClassYield = 2
	_, err = Run(context.Background(), cfg)
	require.Error(t, err)
}

func TestRun_ProgressOutput(t *testing.T) {
	root := t.TempDir()
	testutil.CreateCorpus(t, root, map[string]testutil.CorpusClass{"alef": {Hands: 2}})

	var buf safeBuffer
	cfg := testConfig(root, "")
	cfg.Quiet = false
	cfg.ShowProgress = true
	cfg.ProgressWriter = &buf

	_, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Extracting: ")
	assert.Contains(t, buf.String(), "done in")
}
