package config

import (
	"errors"
	"fmt"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/arsl/internal/batch"
	"github.com/MeKo-Tech/arsl/internal/classifier"
	"github.com/MeKo-Tech/arsl/internal/detector"
	"github.com/MeKo-Tech/arsl/internal/labels"
	"github.com/MeKo-Tech/arsl/internal/models"
	"github.com/MeKo-Tech/arsl/internal/onnx"
	"github.com/MeKo-Tech/arsl/internal/server"
	"github.com/MeKo-Tech/arsl/internal/trainer"
	"github.com/MeKo-Tech/arsl/internal/utils"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ModelsDir:  models.DefaultModelsDir,
		LogLevel:   "info",
		Verbose:    false,
		Detector:   defaultDetectorConfig(),
		GPU:        defaultGPUConfig(),
		Classifier: ClassifierConfig{},
		Batch: BatchConfig{
			Workers:       runtime.NumCPU(),
			OutputPath:    "features.json",
			ShowProgress:  true,
			MinClassYield: batch.DefaultMinClassYield,
		},
		Trainer: defaultTrainerConfig(),
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     10,
			TimeoutSec:      30,
			ShutdownTimeout: 10,
			RateLimit: RateLimitConfig{
				Enabled:           false,
				RequestsPerMinute: 600,
				RequestsPerHour:   10000,
				MaxRequestsPerDay: 50000,
				MaxDataPerDay:     1024 * 1024 * 1024,
			},
		},
	}
}

// defaultDetectorConfig returns default detector configuration.
func defaultDetectorConfig() DetectorConfig {
	cfg := detector.DefaultConfig()
	return DetectorConfig{
		MaxHands:                cfg.MaxHands,
		ServingMinConfidence:    detector.ServingMinConfidence,
		ExtractionMinConfidence: detector.ExtractionMinConfidence,
		NumThreads:              cfg.NumThreads,
		Layout:                  string(cfg.Layout),
		InputSize:               cfg.InputSize,
		ScoreSigmoid:            cfg.ScoreSigmoid,
		InputName:               cfg.InputName,
		LandmarksOutput:         cfg.LandmarksOutput,
		ScoreOutput:             cfg.ScoreOutput,
		HandednessOutput:        cfg.HandednessOutput,
		PalmDetection:           true,
		PalmInputSize:           cfg.PalmInputSize,
		PalmMinScore:            cfg.PalmMinScore,
		PalmNMSThreshold:        cfg.PalmNMSThreshold,
		PalmNMSMethod:           cfg.PalmNMSMethod,
		PalmInputName:           cfg.PalmInputName,
		PalmBoxesOutput:         cfg.PalmBoxesOutput,
		PalmScoresOutput:        cfg.PalmScoresOutput,
	}
}

// defaultGPUConfig returns default GPU configuration.
func defaultGPUConfig() GPUConfig {
	return GPUConfig{
		Enabled:     false,
		Device:      0,
		MemoryLimit: "auto",
	}
}

// defaultTrainerConfig returns default trainer configuration.
func defaultTrainerConfig() TrainerConfig {
	opts := classifier.DefaultOptions()
	return TrainerConfig{
		FeatureTablePath: "features.json",
		Algorithm:        opts.Algorithm,
		NEstimators:      opts.NEstimators,
		MaxDepth:         opts.MaxDepth,
		MinSamplesLeaf:   opts.MinSamplesLeaf,
		MaxFeatures:      opts.MaxFeatures,
		K:                opts.K,
		TestSize:         trainer.DefaultTestSize,
		Seed:             opts.Seed,
		ReportFormat:     trainer.FormatText,
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	// Validate log level
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	// Validate thresholds (must be between 0.0 and 1.0)
	if err := validateThreshold(c.Detector.ServingMinConfidence, "detector.serving_min_confidence"); err != nil {
		return err
	}
	if err := validateThreshold(c.Detector.ExtractionMinConfidence, "detector.extraction_min_confidence"); err != nil {
		return err
	}
	if err := validateThreshold(c.Batch.MinClassYield, "batch.min_class_yield"); err != nil {
		return err
	}
	if err := validateThreshold(c.Detector.PalmMinScore, "detector.palm_min_score"); err != nil {
		return err
	}
	if c.Detector.PalmNMSThreshold <= 0 || c.Detector.PalmNMSThreshold > 1 {
		return fmt.Errorf("invalid detector.palm_nms_threshold: %f (must be in (0,1])", c.Detector.PalmNMSThreshold)
	}
	validNMS := []string{"weighted", "hard"}
	if !slices.Contains(validNMS, strings.ToLower(c.Detector.PalmNMSMethod)) {
		return fmt.Errorf("invalid detector.palm_nms_method: %s (must be one of: %s)", c.Detector.PalmNMSMethod, strings.Join(validNMS, ", "))
	}

	if c.Detector.MaxHands < 1 {
		return fmt.Errorf("invalid detector max hands: %d (must be positive)", c.Detector.MaxHands)
	}
	validLayouts := []string{string(utils.LayoutNHWC), string(utils.LayoutNCHW)}
	if !slices.Contains(validLayouts, strings.ToLower(c.Detector.Layout)) {
		return fmt.Errorf("invalid detector layout: %s (must be one of: %s)", c.Detector.Layout, strings.Join(validLayouts, ", "))
	}
	if c.Detector.WarmupIterations < 0 {
		return fmt.Errorf("invalid warmup iterations: %d (must be >= 0)", c.Detector.WarmupIterations)
	}

	for alias, id := range c.Classifier.LabelAliases {
		if _, ok := labels.Glyph(id); !ok {
			return fmt.Errorf("invalid label alias %q: class id %d out of range [0,%d)", alias, id, labels.Count)
		}
	}

	if c.Batch.Workers < 0 {
		return fmt.Errorf("invalid batch workers: %d (must be >= 0)", c.Batch.Workers)
	}

	if err := c.validateTrainer(); err != nil {
		return err
	}

	// Validate server settings
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}

	// Validate GPU memory limit format
	if _, err := parseMemoryLimit(c.GPU.MemoryLimit); err != nil {
		return fmt.Errorf("invalid GPU memory limit: %w", err)
	}

	return nil
}

func (c *Config) validateTrainer() error {
	t := c.Trainer
	switch t.Algorithm {
	case classifier.AlgorithmRandomForest, classifier.AlgorithmKNN:
	default:
		return fmt.Errorf("invalid trainer algorithm: %s (must be one of: %s, %s)",
			t.Algorithm, classifier.AlgorithmRandomForest, classifier.AlgorithmKNN)
	}
	if t.TestSize <= 0 || t.TestSize >= 1 {
		return fmt.Errorf("invalid trainer test size: %.2f (must be between 0 and 1 exclusive)", t.TestSize)
	}
	if t.NEstimators < 0 || t.MaxDepth < 0 || t.MinSamplesLeaf < 0 || t.MaxFeatures < 0 || t.K < 0 {
		return errors.New("invalid trainer hyperparameters: values must be >= 0")
	}
	switch t.ReportFormat {
	case "", trainer.FormatText, trainer.FormatJSON:
	default:
		return fmt.Errorf("invalid trainer report format: %s (must be text or json)", t.ReportFormat)
	}
	return nil
}

// ServingDetectorConfig returns the detector configuration used for live
// prediction.
func (c *Config) ServingDetectorConfig() detector.Config {
	return c.toDetectorConfig(c.Detector.ServingMinConfidence)
}

// ExtractionDetectorConfig returns the detector configuration used when
// building a feature table.
func (c *Config) ExtractionDetectorConfig() detector.Config {
	return c.toDetectorConfig(c.Detector.ExtractionMinConfidence)
}

// toDetectorConfig converts to detector.Config.
func (c *Config) toDetectorConfig(minConfidence float64) detector.Config {
	cfg := detector.DefaultConfig()
	cfg.UpdateModelPath(c.ModelsDir)
	if c.Detector.ModelPath != "" {
		cfg.ModelPath = c.Detector.ModelPath
	}
	cfg.LibraryPath = c.Detector.LibraryPath
	cfg.MaxHands = c.Detector.MaxHands
	cfg.MinConfidence = minConfidence
	cfg.NumThreads = c.Detector.NumThreads
	cfg.Layout = utils.Layout(strings.ToLower(c.Detector.Layout))
	cfg.InputSize = c.Detector.InputSize
	cfg.ScoreSigmoid = c.Detector.ScoreSigmoid
	if c.Detector.InputName != "" {
		cfg.InputName = c.Detector.InputName
	}
	if c.Detector.LandmarksOutput != "" {
		cfg.LandmarksOutput = c.Detector.LandmarksOutput
	}
	if c.Detector.ScoreOutput != "" {
		cfg.ScoreOutput = c.Detector.ScoreOutput
	}
	cfg.HandednessOutput = c.Detector.HandednessOutput
	c.applyPalmConfig(&cfg)
	cfg.GPU = c.toGPUConfig()
	return cfg
}

// applyPalmConfig copies the palm stage settings, clearing the palm model
// path when the stage is disabled.
func (c *Config) applyPalmConfig(cfg *detector.Config) {
	if !c.Detector.PalmDetection {
		cfg.PalmModelPath = ""
		return
	}
	if c.Detector.PalmModelPath != "" {
		cfg.PalmModelPath = c.Detector.PalmModelPath
	}
	cfg.PalmInputSize = c.Detector.PalmInputSize
	cfg.PalmMinScore = c.Detector.PalmMinScore
	cfg.PalmNMSThreshold = c.Detector.PalmNMSThreshold
	if c.Detector.PalmNMSMethod != "" {
		cfg.PalmNMSMethod = strings.ToLower(c.Detector.PalmNMSMethod)
	}
	if c.Detector.PalmInputName != "" {
		cfg.PalmInputName = c.Detector.PalmInputName
	}
	if c.Detector.PalmBoxesOutput != "" {
		cfg.PalmBoxesOutput = c.Detector.PalmBoxesOutput
	}
	if c.Detector.PalmScoresOutput != "" {
		cfg.PalmScoresOutput = c.Detector.PalmScoresOutput
	}
}

// toGPUConfig converts to onnx.GPUConfig.
func (c *Config) toGPUConfig() onnx.GPUConfig {
	cfg := onnx.DefaultGPUConfig()
	cfg.UseGPU = c.GPU.Enabled
	cfg.DeviceID = c.GPU.Device
	if limit, err := parseMemoryLimit(c.GPU.MemoryLimit); err == nil {
		cfg.GPUMemLimit = limit
	}
	return cfg
}

// ClassifierArtifactPath returns the configured artifact path, falling back
// to the models directory.
func (c *Config) ClassifierArtifactPath() string {
	if c.Classifier.ArtifactPath != "" {
		return c.Classifier.ArtifactPath
	}
	return models.GetClassifierPath(c.ModelsDir)
}

// LabelMapper builds the label mapper with the configured aliases.
func (c *Config) LabelMapper() *labels.Mapper {
	return labels.NewMapper(c.Classifier.LabelAliases)
}

// ToBatchConfig converts to batch.Config. The corpus root is supplied by the
// caller.
func (c *Config) ToBatchConfig() batch.Config {
	cfg := batch.DefaultConfig()
	cfg.Detector = c.ExtractionDetectorConfig()
	cfg.OutputPath = c.Batch.OutputPath
	cfg.Workers = c.Batch.Workers
	cfg.IncludePatterns = slices.Clone(c.Batch.IncludePatterns)
	cfg.ExcludePatterns = slices.Clone(c.Batch.ExcludePatterns)
	cfg.ShowProgress = c.Batch.ShowProgress
	cfg.MinClassYield = c.Batch.MinClassYield
	return cfg
}

// ToTrainerConfig converts to trainer.Config.
func (c *Config) ToTrainerConfig() trainer.Config {
	cfg := trainer.DefaultConfig()
	cfg.FeatureTablePath = c.Trainer.FeatureTablePath
	cfg.ModelOutputPath = c.ClassifierArtifactPath()
	cfg.TestSize = c.Trainer.TestSize
	cfg.Options = classifier.Options{
		Algorithm:      c.Trainer.Algorithm,
		NEstimators:    c.Trainer.NEstimators,
		MaxDepth:       c.Trainer.MaxDepth,
		MinSamplesLeaf: c.Trainer.MinSamplesLeaf,
		MaxFeatures:    c.Trainer.MaxFeatures,
		K:              c.Trainer.K,
		Seed:           c.Trainer.Seed,
	}
	return cfg
}

// ToServerConfig converts to server.Config.
func (c *Config) ToServerConfig() server.Config {
	return server.Config{
		Host:        c.Server.Host,
		Port:        c.Server.Port,
		CORSOrigin:  c.Server.CORSOrigin,
		MaxUploadMB: int64(c.Server.MaxUploadMB),
		TimeoutSec:  c.Server.TimeoutSec,
		RateLimit: server.RateLimitConfig{
			Enabled:           c.Server.RateLimit.Enabled,
			RequestsPerMinute: c.Server.RateLimit.RequestsPerMinute,
			RequestsPerHour:   c.Server.RateLimit.RequestsPerHour,
			MaxRequestsPerDay: c.Server.RateLimit.MaxRequestsPerDay,
			MaxDataPerDay:     c.Server.RateLimit.MaxDataPerDay,
		},
	}
}

// ShutdownTimeout returns the graceful shutdown window.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeout) * time.Second
}

// Helper functions

// validateThreshold validates that a value is between 0.0 and 1.0.
func validateThreshold(value float64, name string) error {
	if value < 0.0 || value > 1.0 {
		return fmt.Errorf("invalid %s: %.2f (must be between 0.0 and 1.0)", name, value)
	}
	return nil
}

// parseMemoryLimit parses a GPU memory limit such as "1GB" or "512MB" into
// bytes. Empty and "auto" mean unlimited.
func parseMemoryLimit(limit string) (uint64, error) {
	if limit == "" || limit == "auto" {
		return 0, nil
	}

	upper := strings.ToUpper(strings.TrimSpace(limit))
	units := []struct {
		suffix string
		scale  float64
	}{
		{"KB", 1 << 10},
		{"MB", 1 << 20},
		{"GB", 1 << 30},
		{"B", 1},
	}
	for _, u := range units {
		if !strings.HasSuffix(upper, u.suffix) {
			continue
		}
		n, err := strconv.ParseFloat(strings.TrimSuffix(upper, u.suffix), 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid number in memory limit: %s", limit)
		}
		return uint64(n * u.scale), nil
	}
	return 0, errors.New("memory limit must end with one of: B, KB, MB, GB")
}
