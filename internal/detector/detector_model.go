package detector

import (
	"errors"
	"fmt"
	"os"

	"github.com/MeKo-Tech/arsl/internal/landmarks"
	"github.com/MeKo-Tech/arsl/internal/models"
	"github.com/MeKo-Tech/arsl/internal/onnx"
	"github.com/MeKo-Tech/arsl/internal/utils"
)

// Confidence thresholds. Offline extraction favours precision, live serving
// favours recall.
const (
	ServingMinConfidence    = 0.3
	ExtractionMinConfidence = 0.5
)

// Default tensor names of the converted MediaPipe hand landmark model.
const (
	DefaultInputName        = "input_1"
	DefaultLandmarksOutput  = "Identity"
	DefaultScoreOutput      = "Identity_1"
	DefaultHandednessOutput = "Identity_2"
	DefaultInputSize        = 224
)

// Defaults of the converted MediaPipe palm detection model.
const (
	DefaultPalmInputName    = "input_1"
	DefaultPalmBoxesOutput  = "Identity"
	DefaultPalmScoresOutput = "Identity_1"
	DefaultPalmInputSize    = 192
	DefaultPalmMinScore     = 0.5
	DefaultPalmNMSThreshold = 0.3
	DefaultPalmNMSMethod    = nmsMethodWeighted
)

// ErrModelNotFound is returned when a detector model file is missing.
var ErrModelNotFound = errors.New("detector model not found")

// Config holds configuration for the hand landmark detector.
type Config struct {
	ModelPath        string         // Path to ONNX hand landmark model
	LibraryPath      string         // Explicit ONNX Runtime shared library (optional)
	MaxHands         int            // Maximum hands returned (default: 1)
	MinConfidence    float64        // Minimum hand presence score (default: 0.3)
	NumThreads       int            // Number of CPU threads (default: 0 for auto)
	InputName        string         // Image input tensor name
	LandmarksOutput  string         // [1,63] landmark output name
	ScoreOutput      string         // [1,1] presence output name
	HandednessOutput string         // Optional [1,1] handedness output name; empty disables it
	Layout           utils.Layout   // Input tensor layout (default: NHWC)
	InputSize        int            // Square input side when the model declares a dynamic shape
	ScoreSigmoid     bool           // Apply a sigmoid to the raw presence score
	GPU              onnx.GPUConfig // GPU acceleration configuration

	// Palm detection stage. An empty PalmModelPath runs the landmark model
	// on the letterboxed whole frame.
	PalmModelPath    string  // Path to ONNX palm detection model
	PalmInputName    string  // Palm image input tensor name
	PalmBoxesOutput  string  // [1,N,18] box and keypoint regressors
	PalmScoresOutput string  // [1,N,1] palm logits
	PalmInputSize    int     // Square palm input side when the model declares a dynamic shape
	PalmMinScore     float64 // Minimum palm score after sigmoid (default: 0.5)
	PalmNMSThreshold float64 // IoU above which palms are merged (default: 0.3)
	PalmNMSMethod    string  // "weighted" or "hard"
}

// DefaultConfig returns a serving configuration.
func DefaultConfig() Config {
	return Config{
		ModelPath:       models.GetHandLandmarkModelPath(""),
		MaxHands:        1,
		MinConfidence:   ServingMinConfidence,
		InputName:       DefaultInputName,
		LandmarksOutput: DefaultLandmarksOutput,
		ScoreOutput:     DefaultScoreOutput,
		Layout:          utils.LayoutNHWC,
		InputSize:       DefaultInputSize,
		GPU:             onnx.DefaultGPUConfig(),

		PalmModelPath:    models.GetPalmDetectionModelPath(""),
		PalmInputName:    DefaultPalmInputName,
		PalmBoxesOutput:  DefaultPalmBoxesOutput,
		PalmScoresOutput: DefaultPalmScoresOutput,
		PalmInputSize:    DefaultPalmInputSize,
		PalmMinScore:     DefaultPalmMinScore,
		PalmNMSThreshold: DefaultPalmNMSThreshold,
		PalmNMSMethod:    DefaultPalmNMSMethod,
	}
}

// ExtractionConfig returns the configuration used for offline corpus extraction.
func ExtractionConfig() Config {
	cfg := DefaultConfig()
	cfg.MinConfidence = ExtractionMinConfidence
	return cfg
}

// UpdateModelPath updates the model paths based on modelsDir. A disabled
// palm stage stays disabled.
func (c *Config) UpdateModelPath(modelsDir string) {
	c.ModelPath = models.GetHandLandmarkModelPath(modelsDir)
	if c.PalmModelPath != "" {
		c.PalmModelPath = models.GetPalmDetectionModelPath(modelsDir)
	}
}

// twoStage reports whether palms are detected before landmarking.
func (c Config) twoStage() bool {
	return c.PalmModelPath != ""
}

// outputNames returns the session outputs in run order.
func (c Config) outputNames() []string {
	names := []string{c.LandmarksOutput, c.ScoreOutput}
	if c.HandednessOutput != "" {
		names = append(names, c.HandednessOutput)
	}
	return names
}

// validateConfig validates the detector configuration.
func validateConfig(config Config) error {
	if config.ModelPath == "" {
		return errors.New("model path cannot be empty")
	}
	if config.MaxHands < 1 {
		return fmt.Errorf("max hands must be >= 1, got %d", config.MaxHands)
	}
	if config.MinConfidence < 0 || config.MinConfidence > 1 {
		return fmt.Errorf("min confidence must be in [0,1], got %f", config.MinConfidence)
	}
	if config.InputName == "" || config.LandmarksOutput == "" || config.ScoreOutput == "" {
		return errors.New("input and output tensor names cannot be empty")
	}
	switch config.Layout {
	case utils.LayoutNHWC, utils.LayoutNCHW:
	default:
		return fmt.Errorf("unknown input layout %q", config.Layout)
	}
	if err := validatePalmConfig(config); err != nil {
		return err
	}
	return onnx.ValidateGPUConfig(config.GPU)
}

// validatePalmConfig validates the palm stage settings when it is enabled.
func validatePalmConfig(config Config) error {
	if !config.twoStage() {
		return nil
	}
	if config.PalmInputName == "" || config.PalmBoxesOutput == "" || config.PalmScoresOutput == "" {
		return errors.New("palm input and output tensor names cannot be empty")
	}
	if config.PalmMinScore < 0 || config.PalmMinScore > 1 {
		return fmt.Errorf("palm min score must be in [0,1], got %f", config.PalmMinScore)
	}
	if config.PalmNMSThreshold <= 0 || config.PalmNMSThreshold > 1 {
		return fmt.Errorf("palm NMS threshold must be in (0,1], got %f", config.PalmNMSThreshold)
	}
	switch config.PalmNMSMethod {
	case nmsMethodHard, nmsMethodWeighted:
	default:
		return fmt.Errorf("unknown palm NMS method %q", config.PalmNMSMethod)
	}
	return nil
}

// validateModelFile checks if the model file exists.
func validateModelFile(modelPath string) error {
	if err := models.ValidateModelExists(modelPath); err != nil {
		return fmt.Errorf("%w: %s", ErrModelNotFound, modelPath)
	}
	if info, err := os.Stat(modelPath); err == nil && info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrModelNotFound, modelPath)
	}
	return nil
}

// validateModelInfo checks the model exposes the configured tensors and
// resolves the square input side.
func validateModelInfo(config Config) (onnx.ModelIO, int, error) {
	io, err := onnx.InspectModel(config.ModelPath)
	if err != nil {
		return onnx.ModelIO{}, 0, err
	}

	input, ok := io.Input(config.InputName)
	if !ok {
		return onnx.ModelIO{}, 0, fmt.Errorf("model has no input %q", config.InputName)
	}
	if len(input.Dimensions) != 4 {
		return onnx.ModelIO{}, 0, fmt.Errorf("expected 4D input tensor, got %dD", len(input.Dimensions))
	}

	for _, name := range config.outputNames() {
		if _, ok := io.Output(name); !ok {
			return onnx.ModelIO{}, 0, fmt.Errorf("model has no output %q", name)
		}
	}
	landmarkOut, _ := io.Output(config.LandmarksOutput)
	if n := elementCount(landmarkOut.Dimensions); n > 0 && n < 3*landmarks.NumLandmarks {
		return onnx.ModelIO{}, 0, fmt.Errorf("landmark output %q has %d values, want %d",
			config.LandmarksOutput, n, 3*landmarks.NumLandmarks)
	}

	c, h, w, err := onnx.ImageSize(input.Dimensions, config.Layout)
	if err != nil {
		return onnx.ModelIO{}, 0, err
	}
	if c != 0 && c != 3 {
		return onnx.ModelIO{}, 0, fmt.Errorf("expected 3 input channels for layout %s, got %d", config.Layout, c)
	}
	size := config.InputSize
	if h > 0 && w > 0 {
		if h != w {
			return onnx.ModelIO{}, 0, fmt.Errorf("expected square input, got %dx%d", w, h)
		}
		size = h
	}
	if size <= 0 {
		size = DefaultInputSize
	}
	return io, size, nil
}

// validatePalmModelInfo checks the palm model exposes the configured tensors
// and resolves its square input side.
func validatePalmModelInfo(config Config) (int, error) {
	io, err := onnx.InspectModel(config.PalmModelPath)
	if err != nil {
		return 0, err
	}

	input, ok := io.Input(config.PalmInputName)
	if !ok {
		return 0, fmt.Errorf("palm model has no input %q", config.PalmInputName)
	}
	if len(input.Dimensions) != 4 {
		return 0, fmt.Errorf("expected 4D palm input tensor, got %dD", len(input.Dimensions))
	}
	for _, name := range config.palmOutputNames() {
		if _, ok := io.Output(name); !ok {
			return 0, fmt.Errorf("palm model has no output %q", name)
		}
	}

	_, h, w, err := onnx.ImageSize(input.Dimensions, config.Layout)
	if err != nil {
		return 0, err
	}
	size := config.PalmInputSize
	if h > 0 && w > 0 {
		if h != w {
			return 0, fmt.Errorf("expected square palm input, got %dx%d", w, h)
		}
		size = h
	}
	if size <= 0 {
		size = DefaultPalmInputSize
	}
	if size%palmStrides[0] != 0 {
		return 0, fmt.Errorf("palm input size %d is not a multiple of %d", size, palmStrides[0])
	}
	return size, nil
}

// palmOutputNames returns the palm session outputs in run order.
func (c Config) palmOutputNames() []string {
	return []string{c.PalmBoxesOutput, c.PalmScoresOutput}
}

// elementCount returns the product of the static dimensions, or 0 when any
// dimension is dynamic.
func elementCount(dims []int64) int {
	if len(dims) == 0 {
		return 0
	}
	n := 1
	for _, d := range dims {
		if d <= 0 {
			return 0
		}
		n *= int(d)
	}
	return n
}
