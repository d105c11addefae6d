// Package landmarks defines hand keypoint types shared by detection, feature
// extraction and training. The keypoint order is the MediaPipe hand model
// order and must be identical wherever features are produced.
package landmarks

import "fmt"

// Hand landmark indices following the MediaPipe convention.
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

var names = [NumLandmarks]string{
	"wrist",
	"thumb_cmc", "thumb_mcp", "thumb_ip", "thumb_tip",
	"index_mcp", "index_pip", "index_dip", "index_tip",
	"middle_mcp", "middle_pip", "middle_dip", "middle_tip",
	"ring_mcp", "ring_pip", "ring_dip", "ring_tip",
	"pinky_mcp", "pinky_pip", "pinky_dip", "pinky_tip",
}

// Name returns the canonical name of landmark index i.
func Name(i int) string {
	if i < 0 || i >= NumLandmarks {
		return fmt.Sprintf("landmark_%d", i)
	}
	return names[i]
}

// Keypoint is a landmark position in normalized image coordinates
// ([0,1], origin top-left). Z is the model's relative depth and is not
// used for classification.
type Keypoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z,omitempty"`
}

// Hand is one detected hand.
type Hand struct {
	Points     []Keypoint `json:"points"`
	Handedness string     `json:"handedness,omitempty"` // "Left" or "Right"
	Score      float64    `json:"score"`
}

// Valid reports whether the hand carries exactly NumLandmarks points.
func (h Hand) Valid() bool {
	return len(h.Points) == NumLandmarks
}

// Detection is the outcome of running a detector over one frame. Hands are
// ordered by the detector; consumers only ever use the first one.
type Detection struct {
	Hands  []Hand `json:"hands"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Empty reports whether no hand was detected.
func (d Detection) Empty() bool {
	return len(d.Hands) == 0
}

// First returns the first detected hand.
func (d Detection) First() (Hand, bool) {
	if len(d.Hands) == 0 {
		return Hand{}, false
	}
	return d.Hands[0], true
}

// XY returns the hands as plain (x, y) pairs, the shape returned to clients.
func (d Detection) XY() [][]Point2D {
	out := make([][]Point2D, 0, len(d.Hands))
	for _, h := range d.Hands {
		pts := make([]Point2D, len(h.Points))
		for i, p := range h.Points {
			pts[i] = Point2D{X: p.X, Y: p.Y}
		}
		out = append(out, pts)
	}
	return out
}

// Point2D is a keypoint without depth.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Connections lists the bone segments of the MediaPipe hand skeleton.
var Connections = [][2]int{
	{Wrist, ThumbCMC}, {ThumbCMC, ThumbMCP}, {ThumbMCP, ThumbIP}, {ThumbIP, ThumbTip},
	{Wrist, IndexMCP}, {IndexMCP, IndexPIP}, {IndexPIP, IndexDIP}, {IndexDIP, IndexTip},
	{IndexMCP, MiddleMCP}, {MiddleMCP, MiddlePIP}, {MiddlePIP, MiddleDIP}, {MiddleDIP, MiddleTip},
	{MiddleMCP, RingMCP}, {RingMCP, RingPIP}, {RingPIP, RingDIP}, {RingDIP, RingTip},
	{RingMCP, PinkyMCP}, {Wrist, PinkyMCP}, {PinkyMCP, PinkyPIP}, {PinkyPIP, PinkyDIP}, {PinkyDIP, PinkyTip},
}
