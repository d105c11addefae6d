package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MeKo-Tech/arsl/internal/detector"
	"github.com/MeKo-Tech/arsl/internal/inference"
	"github.com/MeKo-Tech/arsl/internal/labels"
	"github.com/MeKo-Tech/arsl/internal/testutil"
	"github.com/stretchr/testify/require"
)

// fixedClassifier always predicts the same raw class.
type fixedClassifier struct {
	class string
	err   error
}

func (f fixedClassifier) Predict([]float64) (string, error) {
	return f.class, f.err
}

// newTestServer builds a server around a mock detector holding the given
// hands and a classifier predicting class "3".
func newTestServer(t *testing.T, cfg Config, det *detector.Mock) *Server {
	t.Helper()
	mapper := labels.NewMapper(map[string]int{"alef": 0})
	orch := inference.New(det, fixedClassifier{class: "3"}, mapper)
	return NewServer(cfg, orch)
}

func handMock() *detector.Mock {
	m := detector.NewMock()
	m.SetHands(testutil.OpenPalmHand())
	return m
}

func failingMock() *detector.Mock {
	m := detector.NewMock()
	m.SetError(errors.New("session crashed"))
	return m
}

func frameDataURL(t *testing.T) string {
	t.Helper()
	img := testutil.CreateHandImage(testutil.SmallSize.Width, testutil.SmallSize.Height)
	return testutil.EncodeDataURL(t, img, "png")
}

func glyph(t *testing.T, id int) string {
	t.Helper()
	g, ok := labels.Glyph(id)
	require.True(t, ok)
	return g
}

// startServer serves s on an httptest server with all routes.
func startServer(t *testing.T, s *Server) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}
