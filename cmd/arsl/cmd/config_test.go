package cmd

import (
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/arsl/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigGenerateCommand(t *testing.T) {
	setupCommandTest(t)

	path := filepath.Join(t.TempDir(), "custom.yaml")
	out, _, err := executeCommand(t, "config", "generate", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	cfg, err := config.NewIsolatedLoader().LoadWithFile(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.3, cfg.Detector.ServingMinConfidence, 1e-9)
	assert.InDelta(t, 0.5, cfg.Detector.ExtractionMinConfidence, 1e-9)
}

func TestConfigGenerateCommand_DefaultName(t *testing.T) {
	setupCommandTest(t)

	_, _, err := executeCommand(t, "config", "generate")
	require.NoError(t, err)
	assert.FileExists(t, config.ConfigFileName+".yaml")
}

func TestConfigGenerateCommand_Stdout(t *testing.T) {
	setupCommandTest(t)

	out, _, err := executeCommand(t, "config", "generate", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "serving_min_confidence: 0.3")
	assert.Contains(t, out, "extraction_min_confidence: 0.5")
}

func TestConfigShowCommand(t *testing.T) {
	setupCommandTest(t)
	t.Setenv("ARSL_SERVER_PORT", "9191")

	out, _, err := executeCommand(t, "config", "show", "--info")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration search paths")
	assert.Contains(t, out, "port: 9191")
}
