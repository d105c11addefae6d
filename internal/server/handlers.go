package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/arsl/internal/inference"
	"github.com/MeKo-Tech/arsl/internal/labels"
	"github.com/MeKo-Tech/arsl/internal/landmarks"
	"github.com/MeKo-Tech/arsl/internal/utils"
	"github.com/MeKo-Tech/arsl/internal/version"
)

// errNoPredictor is reported when the server was built without a predictor.
var errNoPredictor = errors.New("prediction pipeline not initialized")

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}
	if !s.startTime.IsZero() {
		response.Uptime = time.Since(s.startTime).Round(time.Second).String()
	}
	writeJSON(w, http.StatusOK, response)
}

// labelsHandler returns the glyph table and configured aliases.
func (s *Server) labelsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	table := labels.Table()
	response := LabelsResponse{Labels: table, Count: len(table)}
	if s.predictor != nil {
		if m := s.predictor.Mapper(); m != nil {
			if aliases := m.Aliases(); len(aliases) > 0 {
				response.Aliases = aliases
			}
		}
	}
	writeJSON(w, http.StatusOK, response)
}

// predictHandler classifies one frame sent as a data URL.
func (s *Server) predictHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := requestID(r.Context())
	if r.ContentLength > 0 {
		uploadSizeBytes.Observe(float64(r.ContentLength))
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes())
	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeErrorResponse(w, id, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		decodeFailuresTotal.WithLabelValues("http").Inc()
		s.writeErrorResponse(w, id, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	resp, status := s.predictFrame(req, "http")
	resp.RequestID = id
	writeJSON(w, status, resp)
}

// predictFrame decodes and classifies one request. It never panics; decode
// failures are kept distinct from frames without a hand.
func (s *Server) predictFrame(req PredictRequest, source string) (PredictResponse, int) {
	img, err := decodeFrame(req.Image)
	if err != nil {
		decodeFailuresTotal.WithLabelValues(source).Inc()
		slog.Debug("Failed to decode frame", "source", source, "error", err)
		return errorResponse(err.Error(), req.ID), http.StatusBadRequest
	}

	if s.predictor == nil {
		return errorResponse(errNoPredictor.Error(), req.ID), http.StatusServiceUnavailable
	}

	start := time.Now()
	res, err := s.predictor.Predict(img)
	elapsed := time.Since(start)
	predictionDuration.WithLabelValues(source).Observe(elapsed.Seconds())
	predictionsTotal.WithLabelValues(source, string(res.Status)).Inc()

	if err != nil {
		slog.Error("Prediction failed", "source", source, "error", err)
		resp := errorResponse(fmt.Sprintf("prediction failed: %v", err), req.ID)
		resp.Status = string(inference.StatusFailed)
		return resp, http.StatusInternalServerError
	}

	return PredictResponse{
		Prediction: res.Prediction(),
		Landmarks:  res.Detection.XY(),
		Status:     string(res.Status),
		ID:         req.ID,
		DurationMs: float64(elapsed.Microseconds()) / 1000,
	}, http.StatusOK
}

// decodeFrame turns a data URL into an image.
func decodeFrame(dataURL string) (image.Image, error) {
	if dataURL == "" {
		return nil, errors.New("no image provided")
	}
	img, err := utils.DecodeDataURL(dataURL)
	if err != nil {
		return nil, fmt.Errorf("invalid image: %w", err)
	}
	return img, nil
}

func errorResponse(message, id string) PredictResponse {
	return PredictResponse{
		Prediction: nil,
		Landmarks:  [][]landmarks.Point2D{},
		Error:      message,
		ID:         id,
	}
}

// writeErrorResponse writes a JSON error response in the prediction shape.
func (s *Server) writeErrorResponse(w http.ResponseWriter, id, message string, statusCode int) {
	resp := errorResponse(message, "")
	resp.RequestID = id
	writeJSON(w, statusCode, resp)
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
