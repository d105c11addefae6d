package detector

import (
	"errors"
	"fmt"
	"math"

	"github.com/MeKo-Tech/arsl/internal/landmarks"
)

// Handedness labels.
const (
	HandLeft  = "Left"
	HandRight = "Right"
)

// frameMapper maps landmark input pixels back to the source frame.
// utils.Letterbox covers whole-frame input, handROI covers palm crops.
type frameMapper interface {
	ToFrame(x, y float64) (float64, float64)
	ToFrameDepth(z float64) float64
}

// rawOutput is the copied landmark output for one model input.
type rawOutput struct {
	Landmarks  []float32 // 21 * (x, y, z) in model input pixels
	Score      float32
	Handedness float32 // probability of a right hand; NaN when not produced
	Frame      frameMapper
}

func sigmoid(v float64) float64 {
	return 1 / (1 + math.Exp(-v))
}

// presence converts the raw score into a probability.
func presence(raw float32, applySigmoid bool) float64 {
	s := float64(raw)
	if applySigmoid {
		return sigmoid(s)
	}
	return s
}

// decodeHand maps model-space landmarks back to normalized frame coordinates.
// Points outside the frame are kept as produced by the model.
func decodeHand(out rawOutput, score float64) (landmarks.Hand, error) {
	if len(out.Landmarks) < 3*landmarks.NumLandmarks {
		return landmarks.Hand{}, fmt.Errorf("landmark output has %d values, want %d",
			len(out.Landmarks), 3*landmarks.NumLandmarks)
	}
	if out.Frame == nil {
		return landmarks.Hand{}, errors.New("landmark output has no frame mapping")
	}

	points := make([]landmarks.Keypoint, landmarks.NumLandmarks)
	for i := range points {
		x, y := out.Frame.ToFrame(float64(out.Landmarks[3*i]), float64(out.Landmarks[3*i+1]))
		if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
			return landmarks.Hand{}, fmt.Errorf("non-finite landmark %d", i)
		}
		points[i] = landmarks.Keypoint{
			X: x,
			Y: y,
			Z: out.Frame.ToFrameDepth(float64(out.Landmarks[3*i+2])),
		}
	}

	hand := landmarks.Hand{Points: points, Score: score}
	if !math.IsNaN(float64(out.Handedness)) {
		hand.Handedness = HandLeft
		if out.Handedness >= 0.5 {
			hand.Handedness = HandRight
		}
	}
	return hand, nil
}

// buildDetection filters by presence and caps the number of hands.
func buildDetection(outs []rawOutput, width, height int, cfg Config) (landmarks.Detection, error) {
	det := landmarks.Detection{Width: width, Height: height}
	for _, out := range outs {
		if len(det.Hands) >= cfg.MaxHands {
			break
		}
		score := presence(out.Score, cfg.ScoreSigmoid)
		if score < cfg.MinConfidence {
			continue
		}
		hand, err := decodeHand(out, score)
		if err != nil {
			return landmarks.Detection{}, err
		}
		det.Hands = append(det.Hands, hand)
	}
	return det, nil
}
