package testutil

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

// ImageSize represents common image dimensions.
type ImageSize struct {
	Width  int
	Height int
}

var (
	// Common test frame sizes.
	SmallSize  = ImageSize{160, 120}
	MediumSize = ImageSize{640, 480}
)

// SkinTone is the fill colour of synthetic hand images.
var SkinTone = color.RGBA{R: 224, G: 172, B: 105, A: 255}

// CreateTestImage creates a uniformly coloured image.
func CreateTestImage(width, height int, backgroundColor color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{backgroundColor}, image.Point{}, draw.Src)
	return img
}

// CreateHandImage draws a skin-toned palm with five fingers on a white frame.
// It is not a photograph; detectors under test key on SkinTone.
func CreateHandImage(width, height int) image.Image {
	bg := imaging.New(width, height, color.White)
	palmW, palmH := width/3, height/3
	palm := imaging.New(palmW, palmH, SkinTone)
	x0, y0 := (width-palmW)/2, height/2
	out := imaging.Paste(bg, palm, image.Pt(x0, y0))

	fingerW := max(1, palmW/7)
	finger := imaging.New(fingerW, palmH, SkinTone)
	for i := range 5 {
		fx := x0 + i*(palmW-fingerW)/4
		out = imaging.Paste(out, finger, image.Pt(fx, max(0, y0-palmH)))
	}
	return out
}

// ContainsColor reports whether any pixel of img equals c.
func ContainsColor(img image.Image, c color.Color) bool {
	r0, g0, b0, _ := c.RGBA()
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			if r == r0 && g == g0 && bl == b0 {
				return true
			}
		}
	}
	return false
}

// SaveImage saves an image as PNG, or JPEG when path ends in .jpg/.jpeg.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()

	require.NoError(t, EnsureDir(filepath.Dir(path)))
	require.NoError(t, imaging.Save(img, path, imaging.JPEGQuality(95)), "Failed to save image %s", path)
}

// LoadImage loads an image from the specified path.
func LoadImage(t *testing.T, path string) image.Image {
	t.Helper()

	file, err := os.Open(path) //nolint:gosec // G304: Test file reading with controlled path
	require.NoError(t, err, "Failed to open image file %s", path)
	defer func() { _ = file.Close() }()

	img, _, err := image.Decode(file)
	require.NoError(t, err, "Failed to decode image")
	return img
}

// EncodeDataURL encodes img as a PNG or JPEG data URL.
func EncodeDataURL(t *testing.T, img image.Image, format string) string {
	t.Helper()

	var buf bytes.Buffer
	mime := "image/png"
	if format == "jpeg" {
		mime = "image/jpeg"
		require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}))
	} else {
		require.NoError(t, png.Encode(&buf, img))
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

// CompareImages compares two images and returns true if they are similar.
func CompareImages(img1, img2 image.Image, tolerance float64) bool {
	bounds1 := img1.Bounds()
	if bounds1 != img2.Bounds() {
		return false
	}

	var totalDiff, pixelCount float64
	for y := bounds1.Min.Y; y < bounds1.Max.Y; y++ {
		for x := bounds1.Min.X; x < bounds1.Max.X; x++ {
			r1, g1, b1, a1 := img1.At(x, y).RGBA()
			r2, g2, b2, a2 := img2.At(x, y).RGBA()

			dr := float64(r1) - float64(r2)
			dg := float64(g1) - float64(g2)
			db := float64(b1) - float64(b2)
			da := float64(a1) - float64(a2)

			totalDiff += math.Sqrt(dr*dr + dg*dg + db*db + da*da)
			pixelCount++
		}
	}

	maxDiff := math.Sqrt(4 * 65535 * 65535)
	return (totalDiff/pixelCount)/maxDiff <= tolerance
}
