// Package server exposes the prediction orchestrator over HTTP and WebSocket.
package server

import (
	"fmt"
	"image"
	"net/http"
	"time"

	"github.com/MeKo-Tech/arsl/internal/inference"
	"github.com/MeKo-Tech/arsl/internal/labels"
	"github.com/MeKo-Tech/arsl/internal/landmarks"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Predictor classifies a single frame. *inference.Orchestrator implements it.
type Predictor interface {
	Predict(img image.Image) (inference.Result, error)
	Mapper() *labels.Mapper
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	predictor   Predictor
	corsOrigin  string
	maxUploadMB int64
	rateLimiter *RateLimiter
	startTime   time.Time
}

// Config holds server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigin  string
	MaxUploadMB int64
	TimeoutSec  int
	RateLimit   RateLimitConfig
}

// RateLimitConfig holds per-client limits. Zero values disable a limit.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	RequestsPerHour   int
	MaxRequestsPerDay int
	MaxDataPerDay     int64
}

// PredictRequest is the body of POST /predict and of each WebSocket message.
type PredictRequest struct {
	Image string `json:"image"` // data URL, e.g. data:image/jpeg;base64,...
	ID    string `json:"id,omitempty"`
}

// PredictResponse is the per-frame reply. Prediction is null both when no
// hand was found and when classification failed; Status tells them apart.
type PredictResponse struct {
	Prediction *string               `json:"prediction"`
	Landmarks  [][]landmarks.Point2D `json:"landmarks"`
	Status     string                `json:"status,omitempty"`
	Error      string                `json:"error,omitempty"`
	RequestID  string                `json:"request_id,omitempty"`
	ID         string                `json:"id,omitempty"`
	DurationMs float64               `json:"duration_ms,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
	Uptime  string `json:"uptime,omitempty"`
}

// LabelsResponse is the body of GET /labels.
type LabelsResponse struct {
	Labels  []labels.Entry `json:"labels"`
	Aliases map[string]int `json:"aliases,omitempty"`
	Count   int            `json:"count"`
}

// NewServer creates a server around p. The predictor must be safe for
// concurrent use.
func NewServer(config Config, p Predictor) *Server {
	s := &Server{
		predictor:   p,
		corsOrigin:  config.CORSOrigin,
		maxUploadMB: config.MaxUploadMB,
		startTime:   time.Now(),
	}
	if s.maxUploadMB <= 0 {
		s.maxUploadMB = 10
	}
	if config.RateLimit.Enabled {
		s.rateLimiter = NewRateLimiter(
			config.RateLimit.RequestsPerMinute,
			config.RateLimit.RequestsPerHour,
			config.RateLimit.MaxRequestsPerDay,
			config.RateLimit.MaxDataPerDay,
		)
	}
	return s
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/labels", s.corsMiddleware(s.labelsHandler))
	mux.HandleFunc("/predict", s.corsMiddleware(s.rateLimitMiddleware(s.predictHandler)))
	mux.HandleFunc("/ws/predict", s.rateLimitMiddleware(s.predictWebSocketHandler))
	mux.Handle("/metrics", promhttp.Handler())
}

// maxUploadBytes returns the request body limit.
func (s *Server) maxUploadBytes() int64 {
	return s.maxUploadMB * 1024 * 1024
}

// NewHTTPServer wraps handler in an http.Server listening on the configured
// address with the configured request timeout.
func NewHTTPServer(config Config, handler http.Handler) *http.Server {
	timeout := time.Duration(max(config.TimeoutSec, 1)) * time.Second
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout,
	}
}
