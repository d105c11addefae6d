package onnx

import (
	"testing"

	"github.com/MeKo-Tech/arsl/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewImageTensor(t *testing.T) {
	data := make([]float32, 3*4*5)

	nhwc, err := NewImageTensor(data, utils.LayoutNHWC, 3, 4, 5)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 4, 5, 3}, nhwc.Shape)
	require.NoError(t, VerifyImageTensor(nhwc))

	nchw, err := NewImageTensor(data, utils.LayoutNCHW, 3, 4, 5)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 4, 5}, nchw.Shape)

	_, err = NewImageTensor(nil, utils.LayoutNHWC, 3, 4, 5)
	require.Error(t, err)
	_, err = NewImageTensor(data[:10], utils.LayoutNHWC, 3, 4, 5)
	require.Error(t, err)
}

func TestValidateImageShape(t *testing.T) {
	require.NoError(t, ValidateImageShape([]int64{1, 224, 224, 3}))
	require.Error(t, ValidateImageShape([]int64{1, 224, 224}))
	require.Error(t, ValidateImageShape([]int64{1, -1, 224, 3}))
}

func TestImageSize(t *testing.T) {
	c, h, w, err := ImageSize([]int64{1, 224, 192, 3}, utils.LayoutNHWC)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 224, 192}, []int{c, h, w})

	c, h, w, err = ImageSize([]int64{1, 3, -1, -1}, utils.LayoutNCHW)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 0, 0}, []int{c, h, w})

	_, _, _, err = ImageSize([]int64{1, 3}, utils.LayoutNCHW)
	require.Error(t, err)
}

func TestTensorStats(t *testing.T) {
	lo, hi, mean := TensorStats([]float32{0.5, -1, 2, 0.5})
	assert.InDelta(t, -1, lo, 1e-6)
	assert.InDelta(t, 2, hi, 1e-6)
	assert.InDelta(t, 0.5, mean, 1e-6)

	lo, hi, mean = TensorStats(nil)
	assert.Zero(t, lo+hi+mean)
}

func TestVerifyImageTensor_LengthMismatch(t *testing.T) {
	err := VerifyImageTensor(Tensor{Data: make([]float32, 5), Shape: []int64{1, 1, 2, 3}})
	require.Error(t, err)
}
