package utils

import (
	"encoding/base64"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/arsl/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSupportedImage(t *testing.T) {
	for _, p := range []string{"a.jpg", "a.JPEG", "b.png", "c.bmp", "d.webp"} {
		assert.True(t, IsSupportedImage(p), p)
	}
	for _, p := range []string{"a.gif", "notes.txt", "noext"} {
		assert.False(t, IsSupportedImage(p), p)
	}
}

func TestLoadImage(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	path := filepath.Join(dir, "frame.png")
	testutil.SaveImage(t, testutil.CreateTestImage(40, 30, color.White), path)

	img, meta, err := LoadImage(path)
	require.NoError(t, err)
	assert.Equal(t, 40, img.Bounds().Dx())
	assert.Equal(t, "png", meta.Format)
	assert.Equal(t, 30, meta.Height)
	assert.Positive(t, meta.SizeBytes)
}

func TestLoadImage_Errors(t *testing.T) {
	_, _, err := LoadImage("")
	var perr *ImageProcessingError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "load", perr.Operation)

	_, _, err = LoadImage(filepath.Join(testutil.CreateTempDir(t), "missing.png"))
	require.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(testutil.CreateTempDir(t), "bad.jpg")
	require.NoError(t, os.WriteFile(bad, []byte("garbage"), 0o600))
	_, _, err = LoadImage(bad)
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "decode", perr.Operation)
}

func TestDecodeDataURL(t *testing.T) {
	img := testutil.CreateTestImage(8, 6, color.White)

	for _, format := range []string{"png", "jpeg"} {
		t.Run(format, func(t *testing.T) {
			got, err := DecodeDataURL(testutil.EncodeDataURL(t, img, format))
			require.NoError(t, err)
			assert.Equal(t, 8, got.Bounds().Dx())
			assert.Equal(t, 6, got.Bounds().Dy())
		})
	}

	t.Run("bare base64", func(t *testing.T) {
		url := testutil.EncodeDataURL(t, img, "png")
		_, payload, _ := cutComma(url)
		got, err := DecodeDataURL(payload)
		require.NoError(t, err)
		assert.Equal(t, 8, got.Bounds().Dx())
	})
}

func cutComma(s string) (string, string, bool) {
	for i := range s {
		if s[i] == ',' {
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}

func TestDecodeDataURL_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", "   "},
		{"no payload", "data:image/png;base64"},
		{"not base64 header", "data:image/png,abc"},
		{"wrong media type", "data:text/plain;base64,aGVsbG8="},
		{"bad base64", "data:image/png;base64,!!!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeDataURL(tt.input)
			require.ErrorIs(t, err, ErrInvalidDataURL)
		})
	}

	// valid base64 of something that is not an image
	_, err := DecodeDataURL("data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("hello")))
	var perr *ImageProcessingError
	require.ErrorAs(t, err, &perr)
	assert.NotErrorIs(t, err, ErrInvalidDataURL)
}

func TestDecodeImage_Empty(t *testing.T) {
	_, _, err := DecodeImage(nil)
	require.Error(t, err)
}
