package cmd

import (
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/arsl/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeCommand(t *testing.T) {
	assert.NotNil(t, serveCmd)
	assert.Equal(t, "serve", serveCmd.Use)
	assert.Contains(t, serveCmd.Long, "/predict")
	assert.Contains(t, serveCmd.Long, "/ws/predict")
}

func TestConfigToServerConfig(t *testing.T) {
	setupCommandTest(t)

	cfg := config.DefaultConfig()
	require.NoError(t, serveCmd.ParseFlags([]string{
		"--host", "0.0.0.0",
		"--port", "9090",
		"--max-upload-size", "4",
		"--rate-limit-enabled",
		"--requests-per-minute", "12",
	}))

	sc := configToServerConfig(&cfg, serveCmd)
	assert.Equal(t, "0.0.0.0", sc.Host)
	assert.Equal(t, 9090, sc.Port)
	assert.Equal(t, int64(4), sc.MaxUploadMB)
	assert.True(t, sc.RateLimit.Enabled)
	assert.Equal(t, 12, sc.RateLimit.RequestsPerMinute)
	// Untouched flags keep the configured values
	assert.Equal(t, cfg.Server.CORSOrigin, sc.CORSOrigin)
	assert.Equal(t, cfg.Server.RateLimit.RequestsPerHour, sc.RateLimit.RequestsPerHour)
}

func TestServeCommand_InvalidPort(t *testing.T) {
	setupCommandTest(t)

	_, _, err := executeCommand(t, "serve", "--port", "70000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port number")
}

func TestServeCommand_MissingClassifier(t *testing.T) {
	setupCommandTest(t)

	_, _, err := executeCommand(t, "serve", "--port", "18080", "--classifier", filepath.Join(t.TempDir(), "none.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize server")
}
