package utils

import (
	"image"
	"image/color"
	"math"

	"github.com/MeKo-Tech/arsl/internal/landmarks"
	"github.com/disintegration/imaging"
)

// Overlay colours.
var (
	BoneColor  = color.NRGBA{R: 0, G: 255, B: 0, A: 255}
	JointColor = color.NRGBA{R: 255, G: 0, B: 0, A: 255}
)

// DrawLandmarks returns a copy of img with each detected hand skeleton drawn on it.
func DrawLandmarks(img image.Image, det landmarks.Detection, thickness int) *image.NRGBA {
	dst := imaging.Clone(img)
	w, h := float64(dst.Bounds().Dx()), float64(dst.Bounds().Dy())

	for _, hand := range det.Hands {
		if !hand.Valid() {
			continue
		}
		px := make([]image.Point, len(hand.Points))
		for i, p := range hand.Points {
			px[i] = image.Pt(int(math.Round(p.X*w)), int(math.Round(p.Y*h)))
		}
		for _, c := range landmarks.Connections {
			drawLine(dst, px[c[0]], px[c[1]], BoneColor, thickness)
		}
		for _, p := range px {
			drawThickPoint(dst, p.X, p.Y, JointColor, thickness+2)
		}
	}
	return dst
}

// drawLine draws a line between two points using a simple Bresenham variant.
func drawLine(dst *image.NRGBA, a, b image.Point, col color.Color, thickness int) {
	x0, y0 := a.X, a.Y
	x1, y1 := b.X, b.Y
	dx := int(math.Abs(float64(x1 - x0)))
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	dy := -int(math.Abs(float64(y1 - y0)))
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		drawThickPoint(dst, x0, y0, col, thickness)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func drawThickPoint(dst *image.NRGBA, x, y int, col color.Color, thickness int) {
	if thickness < 1 {
		thickness = 1
	}
	r := (thickness - 1) / 2
	for yy := y - r; yy <= y+r; yy++ {
		for xx := x - r; xx <= x+r; xx++ {
			if image.Pt(xx, yy).In(dst.Bounds()) {
				dst.Set(xx, yy, col)
			}
		}
	}
}
