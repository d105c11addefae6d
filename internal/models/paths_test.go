package models

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetModelsDir(t *testing.T) {
	assert.Equal(t, "/explicit", GetModelsDir("/explicit"))

	t.Setenv(EnvModelsDir, "/from/env")
	assert.Equal(t, "/from/env", GetModelsDir(""))

	t.Setenv(EnvModelsDir, "")
	dir := GetModelsDir("")
	assert.Equal(t, DefaultModelsDir, filepath.Base(dir))
}

func TestResolveModelPath(t *testing.T) {
	base := t.TempDir()

	// flat layout when organized file is absent
	assert.Equal(t, filepath.Join(base, HandLandmark), GetHandLandmarkModelPath(base))

	organized := filepath.Join(base, TypeLandmark, HandLandmark)
	require.NoError(t, os.MkdirAll(filepath.Dir(organized), 0o750))
	require.NoError(t, os.WriteFile(organized, []byte("x"), 0o600))
	assert.Equal(t, organized, GetHandLandmarkModelPath(base))

	assert.Equal(t, filepath.Join(base, PalmDetection), GetPalmDetectionModelPath(base))
	palm := filepath.Join(base, TypeDetection, PalmDetection)
	require.NoError(t, os.MkdirAll(filepath.Dir(palm), 0o750))
	require.NoError(t, os.WriteFile(palm, []byte("x"), 0o600))
	assert.Equal(t, palm, GetPalmDetectionModelPath(base))

	assert.Equal(t, filepath.Join(base, ClassifierArtifact), GetClassifierPath(base))
	assert.Equal(t, filepath.Join(base, "x.bin"), ResolveModelPath(base, "", "x.bin"))
}

func TestValidateModelExists(t *testing.T) {
	base := t.TempDir()
	err := ValidateModelExists(filepath.Join(base, "missing.onnx"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model file not found")

	p := filepath.Join(base, "present.onnx")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o600))
	require.NoError(t, ValidateModelExists(p))
}

func TestListAvailableModels(t *testing.T) {
	list := ListAvailableModels()
	require.Len(t, list, 3)
	assert.Equal(t, PalmDetection, list[0].Filename)
	assert.Equal(t, HandLandmark, list[1].Filename)
	assert.Equal(t, ClassifierArtifact, list[2].Filename)
}
