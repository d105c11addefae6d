package config

import (
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/arsl/internal/classifier"
	"github.com/MeKo-Tech/arsl/internal/detector"
	"github.com/MeKo-Tech/arsl/internal/models"
	"github.com/MeKo-Tech/arsl/internal/trainer"
	"github.com/MeKo-Tech/arsl/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, models.DefaultModelsDir, cfg.ModelsDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.Verbose)

	assert.Equal(t, 1, cfg.Detector.MaxHands)
	assert.InDelta(t, 0.3, cfg.Detector.ServingMinConfidence, 1e-9)
	assert.InDelta(t, 0.5, cfg.Detector.ExtractionMinConfidence, 1e-9)
	assert.Equal(t, string(utils.LayoutNHWC), cfg.Detector.Layout)
	assert.Equal(t, detector.DefaultInputName, cfg.Detector.InputName)

	assert.Equal(t, classifier.AlgorithmRandomForest, cfg.Trainer.Algorithm)
	assert.Equal(t, 200, cfg.Trainer.NEstimators)
	assert.Equal(t, 5, cfg.Trainer.K)
	assert.InDelta(t, 0.2, cfg.Trainer.TestSize, 1e-9)
	assert.Equal(t, trainer.FormatText, cfg.Trainer.ReportFormat)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.False(t, cfg.Server.RateLimit.Enabled)
	assert.Equal(t, "auto", cfg.GPU.MemoryLimit)

	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }, "invalid log level"},
		{"serving threshold above one", func(c *Config) { c.Detector.ServingMinConfidence = 1.5 }, "serving_min_confidence"},
		{"negative extraction threshold", func(c *Config) { c.Detector.ExtractionMinConfidence = -0.1 }, "extraction_min_confidence"},
		{"zero max hands", func(c *Config) { c.Detector.MaxHands = 0 }, "max hands"},
		{"unknown layout", func(c *Config) { c.Detector.Layout = "hwc" }, "invalid detector layout"},
		{"palm score above one", func(c *Config) { c.Detector.PalmMinScore = 2 }, "palm_min_score"},
		{"zero palm NMS threshold", func(c *Config) { c.Detector.PalmNMSThreshold = 0 }, "palm_nms_threshold"},
		{"unknown palm NMS method", func(c *Config) { c.Detector.PalmNMSMethod = "soft" }, "palm_nms_method"},
		{"alias out of range", func(c *Config) { c.Classifier.LabelAliases = map[string]int{"alef": 30} }, "invalid label alias"},
		{"unknown algorithm", func(c *Config) { c.Trainer.Algorithm = "svm" }, "invalid trainer algorithm"},
		{"test size zero", func(c *Config) { c.Trainer.TestSize = 0 }, "test size"},
		{"test size one", func(c *Config) { c.Trainer.TestSize = 1 }, "test size"},
		{"bad report format", func(c *Config) { c.Trainer.ReportFormat = "csv" }, "report format"},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, "invalid server port"},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"bad memory limit", func(c *Config) { c.GPU.MemoryLimit = "lots" }, "GPU memory limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ValidateAcceptsKNNAndAliases(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Trainer.Algorithm = classifier.AlgorithmKNN
	cfg.Detector.Layout = "NCHW"
	cfg.Classifier.LabelAliases = map[string]int{"alef": 0, "yaa": 29}
	cfg.GPU.MemoryLimit = "512MB"
	assert.NoError(t, cfg.Validate())
}

func TestConfig_DetectorThresholds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Detector.ServingMinConfidence = 0.25
	cfg.Detector.ExtractionMinConfidence = 0.6

	serving := cfg.ServingDetectorConfig()
	extraction := cfg.ExtractionDetectorConfig()

	assert.InDelta(t, 0.25, serving.MinConfidence, 1e-9)
	assert.InDelta(t, 0.6, extraction.MinConfidence, 1e-9)
	assert.Equal(t, serving.ModelPath, extraction.ModelPath)
}

func TestConfig_ToDetectorConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ModelsDir = "/custom/models"
	cfg.Detector.Layout = "NCHW"
	cfg.Detector.HandednessOutput = detector.DefaultHandednessOutput
	cfg.GPU.Enabled = true
	cfg.GPU.Device = 1
	cfg.GPU.MemoryLimit = "1GB"

	det := cfg.ServingDetectorConfig()
	assert.Equal(t, filepath.Join("/custom/models", models.HandLandmark), det.ModelPath)
	assert.Equal(t, utils.LayoutNCHW, det.Layout)
	assert.Equal(t, detector.DefaultHandednessOutput, det.HandednessOutput)
	assert.True(t, det.GPU.UseGPU)
	assert.Equal(t, 1, det.GPU.DeviceID)
	assert.Equal(t, uint64(1<<30), det.GPU.GPUMemLimit)

	cfg.Detector.ModelPath = "/explicit/hand.onnx"
	assert.Equal(t, "/explicit/hand.onnx", cfg.ServingDetectorConfig().ModelPath)
}

func TestConfig_PalmStage(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ModelsDir = "/custom/models"
	cfg.Detector.PalmNMSMethod = "HARD"
	cfg.Detector.PalmMinScore = 0.6

	det := cfg.ExtractionDetectorConfig()
	assert.Equal(t, filepath.Join("/custom/models", models.PalmDetection), det.PalmModelPath)
	assert.Equal(t, "hard", det.PalmNMSMethod)
	assert.InDelta(t, 0.6, det.PalmMinScore, 1e-9)
	assert.Equal(t, detector.DefaultPalmInputSize, det.PalmInputSize)
	assert.Equal(t, detector.DefaultPalmBoxesOutput, det.PalmBoxesOutput)

	cfg.Detector.PalmModelPath = "/explicit/palm.onnx"
	assert.Equal(t, "/explicit/palm.onnx", cfg.ServingDetectorConfig().PalmModelPath)

	cfg.Detector.PalmDetection = false
	assert.Empty(t, cfg.ServingDetectorConfig().PalmModelPath)
}

func TestConfig_ToBatchConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Batch.Workers = 3
	cfg.Batch.OutputPath = "out.json"
	cfg.Batch.IncludePatterns = []string{"*.png"}

	b := cfg.ToBatchConfig()
	assert.Equal(t, 3, b.Workers)
	assert.Equal(t, "out.json", b.OutputPath)
	assert.Equal(t, []string{"*.png"}, b.IncludePatterns)
	assert.InDelta(t, detector.ExtractionMinConfidence, b.Detector.MinConfidence, 1e-9)
}

func TestConfig_ToTrainerConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Trainer.Algorithm = classifier.AlgorithmKNN
	cfg.Trainer.K = 3
	cfg.Trainer.Seed = 7
	cfg.Classifier.ArtifactPath = "/tmp/model.json"

	tc := cfg.ToTrainerConfig()
	assert.Equal(t, classifier.AlgorithmKNN, tc.Options.Algorithm)
	assert.Equal(t, 3, tc.Options.K)
	assert.Equal(t, int64(7), tc.Options.Seed)
	assert.Equal(t, "/tmp/model.json", tc.ModelOutputPath)
	assert.Equal(t, cfg.Trainer.FeatureTablePath, tc.FeatureTablePath)
}

func TestConfig_ClassifierArtifactPathFallback(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ModelsDir = "/m"
	assert.Equal(t, filepath.Join("/m", models.ClassifierArtifact), cfg.ClassifierArtifactPath())
}

func TestConfig_LabelMapper(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Classifier.LabelAliases = map[string]int{"alef": 0}
	mapper := cfg.LabelMapper()
	assert.Equal(t, mapper.Label("0"), mapper.Label("alef"))
}

func TestConfig_ToServerConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = 9000
	cfg.Server.MaxUploadMB = 4
	cfg.Server.RateLimit.Enabled = true
	cfg.Server.RateLimit.RequestsPerMinute = 5

	s := cfg.ToServerConfig()
	assert.Equal(t, 9000, s.Port)
	assert.Equal(t, int64(4), s.MaxUploadMB)
	assert.True(t, s.RateLimit.Enabled)
	assert.Equal(t, 5, s.RateLimit.RequestsPerMinute)
}

func TestParseMemoryLimit(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{"", 0, false},
		{"auto", 0, false},
		{"1024B", 1024, false},
		{"2KB", 2048, false},
		{"512mb", 512 << 20, false},
		{"1.5GB", 3 << 29, false},
		{"12", 0, true},
		{"xGB", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseMemoryLimit(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
