package detector

import (
	"fmt"
	"math"

	"github.com/MeKo-Tech/arsl/internal/utils"
)

// Palm model output layout: per anchor a box (cx, cy, w, h) followed by seven
// (x, y) keypoints, all in palm input pixels relative to the anchor.
const (
	palmKeypoints    = 7
	palmValuesPerBox = 4 + 2*palmKeypoints
	palmScoreClip    = 100.0
)

// Keypoints used to orient the hand crop.
const (
	palmWristKeypoint     = 0
	palmMiddleMCPKeypoint = 2
)

// SSD feature map strides of the palm model. Consecutive layers sharing a
// stride share one grid with two anchors per layer and cell.
var palmStrides = []int{8, 16, 16, 16}

type point struct {
	X, Y float64
}

// box is an axis-aligned rectangle.
type box struct {
	MinX, MinY, MaxX, MaxY float64
}

func (b box) Width() float64  { return b.MaxX - b.MinX }
func (b box) Height() float64 { return b.MaxY - b.MinY }

func (b box) center() point {
	return point{X: (b.MinX + b.MaxX) / 2, Y: (b.MinY + b.MaxY) / 2}
}

// palm is one decoded palm detection in normalized palm input coordinates.
type palm struct {
	Box       box
	Keypoints [palmKeypoints]point
	Score     float64
}

// anchor is an SSD prior centre in normalized palm input coordinates.
type anchor struct {
	X, Y float64
}

// generateAnchors builds the anchor grid for a square input of the given side.
func generateAnchors(inputSize int, strides []int) []anchor {
	var anchors []anchor
	for layer := 0; layer < len(strides); {
		last := layer
		for last < len(strides) && strides[last] == strides[layer] {
			last++
		}
		perCell := 2 * (last - layer)
		grid := int(math.Ceil(float64(inputSize) / float64(strides[layer])))

		for y := range grid {
			for x := range grid {
				a := anchor{
					X: (float64(x) + 0.5) / float64(grid),
					Y: (float64(y) + 0.5) / float64(grid),
				}
				for range perCell {
					anchors = append(anchors, a)
				}
			}
		}
		layer = last
	}
	return anchors
}

// decodePalms converts raw palm outputs into scored detections above minScore.
func decodePalms(boxes, scores []float32, anchors []anchor, inputSize int, minScore float64) ([]palm, error) {
	if len(scores) < len(anchors) {
		return nil, fmt.Errorf("palm score output has %d values, want %d", len(scores), len(anchors))
	}
	if len(boxes) < len(anchors)*palmValuesPerBox {
		return nil, fmt.Errorf("palm box output has %d values, want %d", len(boxes), len(anchors)*palmValuesPerBox)
	}

	size := float64(inputSize)
	var palms []palm
	for i, a := range anchors {
		raw := math.Max(-palmScoreClip, math.Min(palmScoreClip, float64(scores[i])))
		score := sigmoid(raw)
		if score < minScore {
			continue
		}

		r := boxes[i*palmValuesPerBox : (i+1)*palmValuesPerBox]
		cx := float64(r[0])/size + a.X
		cy := float64(r[1])/size + a.Y
		w := float64(r[2]) / size
		h := float64(r[3]) / size
		if !(w > 0 && h > 0) || math.IsInf(cx, 0) || math.IsInf(cy, 0) || math.IsNaN(cx) || math.IsNaN(cy) {
			continue
		}

		p := palm{
			Box:   box{MinX: cx - w/2, MinY: cy - h/2, MaxX: cx + w/2, MaxY: cy + h/2},
			Score: score,
		}
		for k := range palmKeypoints {
			p.Keypoints[k] = point{
				X: float64(r[4+2*k])/size + a.X,
				Y: float64(r[4+2*k+1])/size + a.Y,
			}
		}
		palms = append(palms, p)
	}
	return palms, nil
}

// Hand crop geometry relative to the palm box.
const (
	roiScale  = 2.6
	roiShiftY = -0.5
)

// handROI is a rotated square hand region in frame pixels. It maps landmark
// input pixels of the crop back to normalized frame coordinates.
type handROI struct {
	CX, CY   float64 // centre in frame pixels
	Side     float64 // side in frame pixels
	Rotation float64 // radians, clockwise in image coordinates
	Size     int     // crop side in landmark input pixels
	Width    int     // frame width
	Height   int     // frame height
}

// roiFromPalm builds the hand crop for a palm found in the letterboxed frame.
// The crop is rotated so the wrist to middle finger axis points up, shifted
// towards the fingers and enlarged to cover the whole hand.
func roiFromPalm(p palm, lb utils.Letterbox, cropSize int) handROI {
	toPixels := func(q point) point {
		x, y := lb.ToFrame(q.X*float64(lb.Size), q.Y*float64(lb.Size))
		return point{X: x * float64(lb.Width), Y: y * float64(lb.Height)}
	}

	c := toPixels(p.Box.center())
	w := p.Box.Width() * float64(lb.Size) / lb.Scale
	h := p.Box.Height() * float64(lb.Size) / lb.Scale

	wrist := toPixels(p.Keypoints[palmWristKeypoint])
	mcp := toPixels(p.Keypoints[palmMiddleMCPKeypoint])
	rotation := normalizeRadians(math.Pi/2 - math.Atan2(-(mcp.Y-wrist.Y), mcp.X-wrist.X))

	sin, cos := math.Sincos(rotation)
	return handROI{
		CX:       c.X - h*roiShiftY*sin,
		CY:       c.Y + h*roiShiftY*cos,
		Side:     math.Max(w, h) * roiScale,
		Rotation: rotation,
		Size:     cropSize,
		Width:    lb.Width,
		Height:   lb.Height,
	}
}

func normalizeRadians(a float64) float64 {
	return a - 2*math.Pi*math.Floor((a+math.Pi)/(2*math.Pi))
}

// framePixel maps a crop position in [0,1] to frame pixels.
func (r handROI) framePixel(u, v float64) (float64, float64) {
	sin, cos := math.Sincos(r.Rotation)
	u -= 0.5
	v -= 0.5
	return r.CX + r.Side*(u*cos-v*sin), r.CY + r.Side*(u*sin+v*cos)
}

// ToFrame maps a point in landmark input pixels to normalized frame
// coordinates.
func (r handROI) ToFrame(x, y float64) (float64, float64) {
	fx, fy := r.framePixel(x/float64(r.Size), y/float64(r.Size))
	return fx / float64(r.Width), fy / float64(r.Height)
}

// ToFrameDepth scales a landmark depth to frame widths.
func (r handROI) ToFrameDepth(z float64) float64 {
	return z / float64(r.Size) * r.Side / float64(r.Width)
}
