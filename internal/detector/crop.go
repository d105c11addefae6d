package detector

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// cropROI samples the rotated hand region of src into a Size x Size image.
// Samples outside the frame are black.
func cropROI(src *image.NRGBA, r handROI) *image.NRGBA {
	dst := imaging.New(r.Size, r.Size, color.Black)
	n := float64(r.Size)
	for y := range r.Size {
		for x := range r.Size {
			fx, fy := r.framePixel((float64(x)+0.5)/n, (float64(y)+0.5)/n)
			i := dst.PixOffset(x, y)
			sampleBilinear(src, fx-0.5, fy-0.5, dst.Pix[i:i+4])
		}
	}
	return dst
}

// sampleBilinear writes the bilinear sample of src at pixel centre (x, y)
// into out.
func sampleBilinear(src *image.NRGBA, x, y float64, out []uint8) {
	b := src.Bounds()
	x0, y0 := math.Floor(x), math.Floor(y)
	dx, dy := x-x0, y-y0

	var acc [4]float64
	for _, tap := range [4]struct {
		ox, oy int
		w      float64
	}{
		{0, 0, (1 - dx) * (1 - dy)},
		{1, 0, dx * (1 - dy)},
		{0, 1, (1 - dx) * dy},
		{1, 1, dx * dy},
	} {
		px, py := int(x0)+tap.ox+b.Min.X, int(y0)+tap.oy+b.Min.Y
		if tap.w == 0 || px < b.Min.X || py < b.Min.Y || px >= b.Max.X || py >= b.Max.Y {
			continue
		}
		i := src.PixOffset(px, py)
		for c := range acc {
			acc[c] += tap.w * float64(src.Pix[i+c])
		}
	}
	for c := range 3 {
		out[c] = uint8(math.Round(math.Min(255, acc[c])))
	}
	out[3] = 255
}
