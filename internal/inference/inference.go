// Package inference composes the detector, feature extractor, classifier and
// label mapper into the per-frame prediction call.
package inference

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/arsl/internal/classifier"
	"github.com/MeKo-Tech/arsl/internal/detector"
	"github.com/MeKo-Tech/arsl/internal/features"
	"github.com/MeKo-Tech/arsl/internal/labels"
	"github.com/MeKo-Tech/arsl/internal/landmarks"
)

// Status classifies the outcome of a prediction.
type Status string

const (
	StatusRecognized Status = "recognized"
	StatusNoHand     Status = "no_hand"
	StatusFailed     Status = "failed"
)

// Result is the typed outcome of Predict. Only StatusRecognized carries a
// label; the other two both surface as "no prediction".
type Result struct {
	Label     string              `json:"label,omitempty"`
	RawClass  string              `json:"raw_class,omitempty"`
	Status    Status              `json:"status"`
	Detection landmarks.Detection `json:"detection"`
	Features  []float64           `json:"-"`
	Err       error               `json:"-"`
	Duration  time.Duration       `json:"-"`
}

// Prediction returns the label, or nil when there is none.
func (r Result) Prediction() *string {
	if r.Status != StatusRecognized {
		return nil
	}
	label := r.Label
	return &label
}

// Orchestrator runs one frame through detector, extractor, classifier and
// mapper. It holds no per-frame state; concurrent calls are safe as long as
// the detector and classifier are.
type Orchestrator struct {
	detector   detector.Detector
	classifier classifier.Classifier
	mapper     *labels.Mapper
}

// New creates an orchestrator. A nil mapper uses the plain glyph table.
func New(det detector.Detector, clf classifier.Classifier, mapper *labels.Mapper) *Orchestrator {
	if mapper == nil {
		mapper = labels.NewMapper(nil)
	}
	return &Orchestrator{detector: det, classifier: clf, mapper: mapper}
}

// Predict classifies img. A returned error means the detector itself failed;
// missing hands and classifier failures are reported through Result.Status.
func (o *Orchestrator) Predict(img image.Image) (Result, error) {
	start := time.Now()

	det, err := o.detector.Detect(img)
	if err != nil {
		return Result{Status: StatusFailed, Err: err, Duration: time.Since(start)},
			fmt.Errorf("hand detection failed: %w", err)
	}

	res := o.classify(det)
	res.Duration = time.Since(start)
	return res, nil
}

// PredictDetection classifies an existing detection.
func (o *Orchestrator) PredictDetection(det landmarks.Detection) Result {
	return o.classify(det)
}

func (o *Orchestrator) classify(det landmarks.Detection) Result {
	res := Result{Detection: det}

	hand, ok := det.First()
	if !ok {
		res.Status = StatusNoHand
		return res
	}

	vec, err := features.Extract(hand)
	if err != nil {
		slog.Warn("Malformed feature vector", "error", err)
		res.Status = StatusFailed
		res.Err = err
		return res
	}
	res.Features = vec

	raw, err := o.predictSafe(vec)
	if err != nil {
		slog.Warn("Classifier failed", "error", err)
		res.Status = StatusFailed
		res.Err = err
		return res
	}

	res.RawClass = raw
	res.Label = o.mapper.Label(raw)
	res.Status = StatusRecognized
	return res
}

// predictSafe calls the classifier, converting a panic into an error.
func (o *Orchestrator) predictSafe(vec []float64) (raw string, err error) {
	if o.classifier == nil {
		return "", errors.New("no classifier loaded")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("classifier panic: %v", r)
		}
	}()
	return o.classifier.Predict(vec)
}

// Mapper returns the label mapper in use.
func (o *Orchestrator) Mapper() *labels.Mapper {
	return o.mapper
}
