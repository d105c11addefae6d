// Package detector finds hands in RGB frames and returns the 21 canonical
// keypoints of each. A palm detection model locates hands first; each palm
// is cropped, oriented upright and passed to the hand landmark model.
package detector

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"sync"

	"github.com/MeKo-Tech/arsl/internal/landmarks"
	"github.com/MeKo-Tech/arsl/internal/mempool"
	"github.com/MeKo-Tech/arsl/internal/onnx"
	"github.com/MeKo-Tech/arsl/internal/utils"
	"github.com/disintegration/imaging"
)

// ErrClosed is returned by Detect after Close.
var ErrClosed = errors.New("detector is closed")

// Detector finds hands in a frame. Implementations hold an expensive model
// and are meant to be created once and reused.
type Detector interface {
	Detect(img image.Image) (landmarks.Detection, error)
	Close() error
}

// Factory creates a Detector. Worker pools call it once per worker.
type Factory func() (Detector, error)

// NewFactory returns a Factory building ONNX detectors from cfg.
func NewFactory(cfg Config) Factory {
	return func() (Detector, error) {
		d, err := New(cfg)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
}

// ModelInfo describes the loaded models.
type ModelInfo struct {
	ModelPath     string       `json:"model_path"`
	InputName     string       `json:"input_name"`
	InputShape    []int64      `json:"input_shape"`
	Outputs       []string     `json:"outputs"`
	InputSize     int          `json:"input_size"`
	Layout        utils.Layout `json:"layout"`
	PalmModelPath string       `json:"palm_model_path,omitempty"`
	PalmInputSize int          `json:"palm_input_size,omitempty"`
	Anchors       int          `json:"anchors,omitempty"`
}

// HandDetector performs palm detection and hand landmarking using ONNX
// Runtime. Model runs are serialised per instance.
type HandDetector struct {
	config    Config
	landmark  runner
	palm      runner // nil when the palm stage is disabled
	modelIO   onnx.ModelIO
	inputSize int
	palmSize  int
	anchors   []anchor
	mu        sync.Mutex
}

// New creates a hand detector with the given configuration.
func New(config Config) (*HandDetector, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}

	if err := validateModelFile(config.ModelPath); err != nil {
		return nil, err
	}
	if config.twoStage() {
		if err := validateModelFile(config.PalmModelPath); err != nil {
			return nil, err
		}
	}

	slog.Debug("Initializing hand detector",
		"model_path", config.ModelPath,
		"palm_model_path", config.PalmModelPath,
		"gpu_enabled", config.GPU.UseGPU,
		"min_confidence", config.MinConfidence,
		"max_hands", config.MaxHands)

	if err := setupONNXEnvironment(config); err != nil {
		return nil, err
	}

	modelIO, inputSize, err := validateModelInfo(config)
	if err != nil {
		return nil, err
	}

	d := &HandDetector{
		config:    config,
		modelIO:   modelIO,
		inputSize: inputSize,
	}

	if config.twoStage() {
		if d.palmSize, err = validatePalmModelInfo(config); err != nil {
			return nil, err
		}
		d.anchors = generateAnchors(d.palmSize, palmStrides)
		palmSession, err := createPalmSession(config)
		if err != nil {
			return nil, err
		}
		d.palm = palmSession
	}

	landmark, err := createSession(config)
	if err != nil {
		_ = d.Close()
		return nil, err
	}
	d.landmark = landmark

	slog.Debug("Hand detector initialized",
		"input_size", inputSize,
		"palm_input_size", d.palmSize,
		"anchors", len(d.anchors),
		"layout", config.Layout)
	return d, nil
}

// Close releases the sessions. The process-wide runtime stays initialized.
func (d *HandDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, r := range []*runner{&d.palm, &d.landmark} {
		if *r == nil {
			continue
		}
		if err := (*r).Destroy(); err != nil {
			slog.Warn("Failed to destroy detector session", "error", err)
		}
		*r = nil
	}
	return nil
}

func (d *HandDetector) closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.landmark == nil
}

// GetConfig returns a copy of the detector's configuration.
func (d *HandDetector) GetConfig() Config {
	return d.config
}

// GetModelInfo returns information about the loaded models.
func (d *HandDetector) GetModelInfo() ModelInfo {
	info := ModelInfo{
		ModelPath:     d.config.ModelPath,
		InputName:     d.config.InputName,
		Outputs:       d.config.outputNames(),
		InputSize:     d.inputSize,
		Layout:        d.config.Layout,
		PalmModelPath: d.config.PalmModelPath,
		PalmInputSize: d.palmSize,
		Anchors:       len(d.anchors),
	}
	if in, ok := d.modelIO.Input(d.config.InputName); ok {
		info.InputShape = append([]int64(nil), in.Dimensions...)
	}
	return info
}

// Detect finds up to MaxHands hands in img.
func (d *HandDetector) Detect(img image.Image) (landmarks.Detection, error) {
	if img == nil {
		return landmarks.Detection{}, errors.New("input image is nil")
	}
	if d.closed() {
		return landmarks.Detection{}, ErrClosed
	}
	if d.config.twoStage() {
		return d.detectPalms(img)
	}
	return d.detectFullFrame(img)
}

// detectFullFrame runs the landmark model on the letterboxed whole frame.
func (d *HandDetector) detectFullFrame(img image.Image) (landmarks.Detection, error) {
	lb, err := utils.LetterboxImage(img, d.inputSize)
	if err != nil {
		return landmarks.Detection{}, fmt.Errorf("failed to preprocess image: %w", err)
	}

	out, err := d.infer(lb.Image)
	if err != nil {
		return landmarks.Detection{}, err
	}
	out.Frame = lb
	return buildDetection([]rawOutput{out}, lb.Width, lb.Height, d.config)
}

// detectPalms locates palms and landmarks each upright hand crop.
func (d *HandDetector) detectPalms(img image.Image) (landmarks.Detection, error) {
	lb, err := utils.LetterboxImage(img, d.palmSize)
	if err != nil {
		return landmarks.Detection{}, fmt.Errorf("failed to preprocess image: %w", err)
	}

	palms, err := d.findPalms(lb.Image)
	if err != nil {
		return landmarks.Detection{}, err
	}
	if len(palms) == 0 {
		return landmarks.Detection{Width: lb.Width, Height: lb.Height}, nil
	}

	src := imaging.Clone(img)
	outs := make([]rawOutput, 0, len(palms))
	for _, p := range palms {
		roi := roiFromPalm(p, lb, d.inputSize)
		out, err := d.infer(cropROI(src, roi))
		if err != nil {
			return landmarks.Detection{}, err
		}
		out.Frame = roi
		outs = append(outs, out)
	}
	return buildDetection(outs, lb.Width, lb.Height, d.config)
}

// findPalms runs the palm model on a letterboxed frame and returns at most
// MaxHands palms, best first.
func (d *HandDetector) findPalms(img image.Image) ([]palm, error) {
	values, err := d.forward(stagePalm, img)
	if err != nil {
		return nil, err
	}
	if len(values) < 2 {
		return nil, fmt.Errorf("palm model returned %d outputs, want 2", len(values))
	}

	palms, err := decodePalms(values[0], values[1], d.anchors, d.palmSize, d.config.PalmMinScore)
	if err != nil {
		return nil, err
	}
	palms = suppressPalms(palms, d.config.PalmNMSMethod, d.config.PalmNMSThreshold)
	if len(palms) > d.config.MaxHands {
		palms = palms[:d.config.MaxHands]
	}
	return palms, nil
}

// preprocessImage converts a model-sized image into an input tensor.
// The returned data buffer belongs to mempool.
func (d *HandDetector) preprocessImage(img image.Image) (onnx.Tensor, error) {
	data, width, height, err := utils.NormalizeImage(img, d.config.Layout)
	if err != nil {
		return onnx.Tensor{}, fmt.Errorf("failed to normalize image: %w", err)
	}
	tensor, err := onnx.NewImageTensor(data, d.config.Layout, 3, height, width)
	if err != nil {
		mempool.PutFloat32(data)
		return onnx.Tensor{}, fmt.Errorf("failed to create tensor: %w", err)
	}
	return tensor, nil
}

type stage int

const (
	stageLandmark stage = iota
	stagePalm
)

// forward runs one model on img and returns its copied outputs.
func (d *HandDetector) forward(s stage, img image.Image) ([][]float32, error) {
	tensor, err := d.preprocessImage(img)
	if err != nil {
		return nil, err
	}
	defer mempool.PutFloat32(tensor.Data)

	if err := onnx.VerifyImageTensor(tensor); err != nil {
		return nil, fmt.Errorf("invalid tensor: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	r := d.landmark
	if s == stagePalm {
		r = d.palm
	}
	if r == nil {
		return nil, ErrClosed
	}
	return r.Run(tensor)
}

// infer runs the landmark model on a crop or letterboxed frame.
func (d *HandDetector) infer(img image.Image) (rawOutput, error) {
	values, err := d.forward(stageLandmark, img)
	if err != nil {
		return rawOutput{}, err
	}
	if len(values) < 2 {
		return rawOutput{}, fmt.Errorf("landmark model returned %d outputs, want at least 2", len(values))
	}

	out := rawOutput{Landmarks: values[0], Handedness: float32(math.NaN())}
	if len(values[1]) == 0 {
		return rawOutput{}, errors.New("empty presence output")
	}
	out.Score = values[1][0]
	if len(values) > 2 && len(values[2]) > 0 {
		out.Handedness = values[2][0]
	}
	return out, nil
}
