package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/arsl/internal/classifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestNewLoader(t *testing.T) {
	loader := NewLoader()
	require.NotNil(t, loader)
	assert.NotNil(t, loader.GetViper())
}

func TestLoadWithNoConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := NewIsolatedLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.InDelta(t, 0.3, cfg.Detector.ServingMinConfidence, 1e-9)
	assert.InDelta(t, 0.5, cfg.Detector.ExtractionMinConfidence, 1e-9)
}

func TestLoadFromSearchPath(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	content := `
log_level: debug
trainer:
  algorithm: knn
  k: 3
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "arsl.yaml"), []byte(content), 0o600))

	loader := NewIsolatedLoader()
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, classifier.AlgorithmKNN, cfg.Trainer.Algorithm)
	assert.Equal(t, 3, cfg.Trainer.K)
	// Untouched keys keep their defaults
	assert.Equal(t, 200, cfg.Trainer.NEstimators)
	assert.Contains(t, loader.GetConfigFileUsed(), "arsl.yaml")
}

func TestLoadWithFile(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "custom.yaml")
	content := `
models_dir: /custom/models
detector:
  serving_min_confidence: 0.35
  extraction_min_confidence: 0.6
  layout: nchw
classifier:
  artifact_path: /srv/classifier.json
  label_aliases:
    alef: 0
    baa: 1
batch:
  workers: 2
  exclude_patterns: ["*.tmp"]
server:
  port: 9090
  rate_limit:
    enabled: true
    requests_per_minute: 30
`
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0o600))

	cfg, err := NewIsolatedLoader().LoadWithFile(configFile)
	require.NoError(t, err)

	assert.Equal(t, "/custom/models", cfg.ModelsDir)
	assert.InDelta(t, 0.35, cfg.Detector.ServingMinConfidence, 1e-9)
	assert.InDelta(t, 0.6, cfg.Detector.ExtractionMinConfidence, 1e-9)
	assert.Equal(t, "nchw", cfg.Detector.Layout)
	assert.Equal(t, "/srv/classifier.json", cfg.Classifier.ArtifactPath)
	assert.Equal(t, map[string]int{"alef": 0, "baa": 1}, cfg.Classifier.LabelAliases)
	assert.Equal(t, 2, cfg.Batch.Workers)
	assert.Equal(t, []string{"*.tmp"}, cfg.Batch.ExcludePatterns)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Server.RateLimit.Enabled)
	assert.Equal(t, 30, cfg.Server.RateLimit.RequestsPerMinute)
}

func TestLoadWithFileMissing(t *testing.T) {
	_, err := NewIsolatedLoader().LoadWithFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestLoadWithFileInvalidValues(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("trainer:\n  test_size: 1.5\n"), 0o600))

	_, err := NewIsolatedLoader().LoadWithFile(configFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")

	cfg, err := NewIsolatedLoader().LoadWithFileWithoutValidation(configFile)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, cfg.Trainer.TestSize, 1e-9)
}

func TestLoadWithFileMalformedYAML(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("server: [port: 1\n"), 0o600))

	_, err := NewIsolatedLoader().LoadWithFile(configFile)
	assert.Error(t, err)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("ARSL_LOG_LEVEL", "warn")
	t.Setenv("ARSL_DETECTOR_SERVING_MIN_CONFIDENCE", "0.4")
	t.Setenv("ARSL_SERVER_PORT", "7070")
	t.Setenv("ARSL_TRAINER_ALGORITHM", "knn")

	cfg, err := NewIsolatedLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.InDelta(t, 0.4, cfg.Detector.ServingMinConfidence, 1e-9)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, classifier.AlgorithmKNN, cfg.Trainer.Algorithm)
}

func TestWriteDefaultConfigRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDefaultConfig(&buf))

	var decoded Config
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, DefaultConfig().Trainer, decoded.Trainer)
	assert.Equal(t, DefaultConfig().Detector, decoded.Detector)
}

func TestGenerateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arsl.yaml")
	require.NoError(t, GenerateDefaultConfigFile(path))

	cfg, err := NewIsolatedLoader().LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Server, cfg.Server)
	assert.Equal(t, DefaultConfig().Trainer, cfg.Trainer)
}

func TestGetConfigSearchPaths(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	paths := GetConfigSearchPaths()
	assert.Equal(t, ".", paths[0])
	assert.Contains(t, paths, filepath.Join(xdg, "arsl"))
	assert.Contains(t, paths, "/etc/arsl")
}

func TestPrintConfigInfo(t *testing.T) {
	var buf bytes.Buffer
	NewIsolatedLoader().PrintConfigInfo(&buf)
	assert.Contains(t, buf.String(), "Environment prefix: ARSL")
}
