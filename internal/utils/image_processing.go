// Package utils provides image loading, decoding and model preprocessing helpers.
package utils

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/MeKo-Tech/arsl/internal/mempool"
	"github.com/disintegration/imaging"
)

// ImageProcessingError represents errors that can occur during image processing.
type ImageProcessingError struct {
	Operation string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("image processing error in %s: %v", e.Operation, e.Err)
}

func (e *ImageProcessingError) Unwrap() error {
	return e.Err
}

// Layout is the memory order of an image tensor.
type Layout string

const (
	LayoutNHWC Layout = "nhwc"
	LayoutNCHW Layout = "nchw"
)

// Letterbox is a square model input produced from an arbitrary frame, plus
// the transform needed to map model coordinates back to the frame.
type Letterbox struct {
	Image  image.Image
	Size   int     // side of the square input
	Scale  float64 // frame pixels -> input pixels
	PadX   int     // left padding in input pixels
	PadY   int     // top padding in input pixels
	Width  int     // source frame width
	Height int     // source frame height
}

// LetterboxImage resizes img to fit a size x size square preserving aspect
// ratio and centers it on a black background.
func LetterboxImage(img image.Image, size int) (Letterbox, error) {
	if img == nil {
		return Letterbox{}, &ImageProcessingError{Operation: "letterbox", Err: errors.New("input image is nil")}
	}
	if size <= 0 {
		return Letterbox{}, &ImageProcessingError{Operation: "letterbox", Err: fmt.Errorf("invalid target size: %d", size)}
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return Letterbox{}, &ImageProcessingError{Operation: "letterbox", Err: fmt.Errorf("invalid image dimensions: %dx%d", w, h)}
	}

	scale := math.Min(float64(size)/float64(w), float64(size)/float64(h))
	newW := max(1, int(math.Round(float64(w)*scale)))
	newH := max(1, int(math.Round(float64(h)*scale)))

	resized := imaging.Resize(img, newW, newH, imaging.Lanczos)
	padX, padY := (size-newW)/2, (size-newH)/2
	canvas := imaging.New(size, size, color.Black)
	out := imaging.Paste(canvas, resized, image.Pt(padX, padY))

	return Letterbox{
		Image:  out,
		Size:   size,
		Scale:  scale,
		PadX:   padX,
		PadY:   padY,
		Width:  w,
		Height: h,
	}, nil
}

// ToFrame maps a point in model input pixels to normalized frame
// coordinates ([0,1] on each axis inside the frame).
func (l Letterbox) ToFrame(x, y float64) (float64, float64) {
	fx := (x - float64(l.PadX)) / l.Scale
	fy := (y - float64(l.PadY)) / l.Scale
	return fx / float64(l.Width), fy / float64(l.Height)
}

// ToFrameDepth scales a model-space depth value by the input side.
func (l Letterbox) ToFrameDepth(z float64) float64 {
	return z / float64(l.Size)
}

// NormalizeImage converts img to a float tensor scaled to [0,1] in the given
// layout. The buffer comes from mempool; release it with mempool.PutFloat32.
func NormalizeImage(img image.Image, layout Layout) ([]float32, int, int, error) {
	if img == nil {
		return nil, 0, 0, &ImageProcessingError{Operation: "normalize", Err: errors.New("input image is nil")}
	}

	nrgba := imaging.Clone(img)
	width, height := nrgba.Bounds().Dx(), nrgba.Bounds().Dy()
	if width <= 0 || height <= 0 {
		return nil, 0, 0, &ImageProcessingError{Operation: "normalize", Err: errors.New("invalid image dimensions")}
	}

	plane := width * height
	tensor := mempool.GetFloat32(3 * plane)
	for y := range height {
		row := nrgba.Pix[y*nrgba.Stride:]
		for x := range width {
			r := float32(row[4*x]) / 255.0
			g := float32(row[4*x+1]) / 255.0
			b := float32(row[4*x+2]) / 255.0

			switch layout {
			case LayoutNCHW:
				i := y*width + x
				tensor[i] = r
				tensor[plane+i] = g
				tensor[2*plane+i] = b
			default:
				i := 3 * (y*width + x)
				tensor[i] = r
				tensor[i+1] = g
				tensor[i+2] = b
			}
		}
	}

	return tensor, width, height, nil
}
