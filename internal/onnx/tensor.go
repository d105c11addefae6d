package onnx

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/arsl/internal/utils"
)

// Tensor is a float32 tensor prepared for model input. Data is row-major.
type Tensor struct {
	Data  []float32
	Shape []int64
}

// NewImageTensor wraps a single-image buffer of c*h*w values as
// [1, H, W, C] (NHWC) or [1, C, H, W] (NCHW).
func NewImageTensor(data []float32, layout utils.Layout, c, h, w int) (Tensor, error) {
	if data == nil {
		return Tensor{}, errors.New("nil data")
	}
	if expected := c * h * w; len(data) != expected {
		return Tensor{}, fmt.Errorf("unexpected data length: got %d, want %d", len(data), expected)
	}
	shape := []int64{1, int64(h), int64(w), int64(c)}
	if layout == utils.LayoutNCHW {
		shape = []int64{1, int64(c), int64(h), int64(w)}
	}
	return Tensor{Data: data, Shape: shape}, nil
}

// ValidateImageShape ensures a shape is rank 4 with positive dimensions.
func ValidateImageShape(shape []int64) error {
	if len(shape) != 4 {
		return fmt.Errorf("shape rank %d != 4", len(shape))
	}
	for i, v := range shape {
		if v <= 0 {
			return fmt.Errorf("dimension %d must be > 0, got %d", i, v)
		}
	}
	return nil
}

// ImageSize extracts (channels, height, width) from a model input shape in
// the given layout. Dynamic dimensions (<= 0) are returned as 0.
func ImageSize(shape []int64, layout utils.Layout) (int, int, int, error) {
	if len(shape) != 4 {
		return 0, 0, 0, fmt.Errorf("shape rank %d != 4", len(shape))
	}
	dim := func(v int64) int {
		if v <= 0 {
			return 0
		}
		return int(v)
	}
	if layout == utils.LayoutNCHW {
		return dim(shape[1]), dim(shape[2]), dim(shape[3]), nil
	}
	return dim(shape[3]), dim(shape[1]), dim(shape[2]), nil
}

// TensorStats computes min, max and mean for debug output.
func TensorStats(data []float32) (float32, float32, float32) {
	if len(data) == 0 {
		return 0, 0, 0
	}
	minVal, maxVal := data[0], data[0]
	var sum float64
	for _, v := range data {
		minVal = min(minVal, v)
		maxVal = max(maxVal, v)
		sum += float64(v)
	}
	return minVal, maxVal, float32(sum / float64(len(data)))
}

// VerifyImageTensor checks the data length matches the shape.
func VerifyImageTensor(t Tensor) error {
	if err := ValidateImageShape(t.Shape); err != nil {
		return err
	}
	expected := int(t.Shape[0] * t.Shape[1] * t.Shape[2] * t.Shape[3])
	if len(t.Data) != expected {
		return fmt.Errorf("tensor data length %d != expected %d for shape %v", len(t.Data), expected, t.Shape)
	}
	return nil
}
