package support

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"

	"github.com/MeKo-Tech/arsl/internal/detector"
	"github.com/MeKo-Tech/arsl/internal/inference"
	"github.com/MeKo-Tech/arsl/internal/labels"
	"github.com/MeKo-Tech/arsl/internal/landmarks"
	"github.com/MeKo-Tech/arsl/internal/server"
	"github.com/MeKo-Tech/arsl/internal/testutil"
	"github.com/cucumber/godog"
)

// HTTPTestServerWrapper wraps httptest.Server for integration tests.
type HTTPTestServerWrapper struct {
	Server     *httptest.Server
	TestServer *server.Server
	Detector   *detector.Mock
}

// skinDetector finds the open palm fixture in frames that contain skin tone.
func skinDetector() *detector.Mock {
	m := detector.NewMock()
	m.DetectFunc = func(img image.Image) (landmarks.Detection, error) {
		if testutil.ContainsColor(img, testutil.SkinTone) {
			return landmarks.Detection{Hands: []landmarks.Hand{testutil.OpenPalmHand()}}, nil
		}
		return landmarks.Detection{}, nil
	}
	return m
}

// startTestHTTPServer serves the prediction routes with a mock detector and
// a classifier mapping the open palm to class.
func (testCtx *TestContext) startTestHTTPServer(class string, cfg server.Config) error {
	if err := testCtx.stopTestHTTPServer(); err != nil {
		return err
	}

	model, err := palmClassifier(class)
	if err != nil {
		return fmt.Errorf("failed to build classifier: %w", err)
	}
	det := skinDetector()
	orch := inference.New(det, model, labels.NewMapper(nil))

	srv := server.NewServer(cfg, orch)
	mux := http.NewServeMux()
	srv.SetupRoutes(mux)

	testCtx.HTTPTestServer = &HTTPTestServerWrapper{
		Server:     httptest.NewServer(mux),
		TestServer: srv,
		Detector:   det,
	}
	return nil
}

func (testCtx *TestContext) stopTestHTTPServer() error {
	if testCtx.HTTPTestServer != nil {
		testCtx.HTTPTestServer.Server.Close()
		testCtx.HTTPTestServer = nil
	}
	return nil
}

func (testCtx *TestContext) thePredictionServerIsRunning(class string) error {
	return testCtx.startTestHTTPServer(class, server.Config{CORSOrigin: "*", MaxUploadMB: 1})
}

func (testCtx *TestContext) thePredictionServerIsRunningWithRateLimit(class string, perMinute int) error {
	return testCtx.startTestHTTPServer(class, server.Config{
		CORSOrigin:  "*",
		MaxUploadMB: 1,
		RateLimit:   server.RateLimitConfig{Enabled: true, RequestsPerMinute: perMinute},
	})
}

func (testCtx *TestContext) do(method, path, contentType string, body io.Reader) error {
	if testCtx.HTTPTestServer == nil {
		return errors.New("test server is not running")
	}

	req, err := http.NewRequest(method, testCtx.HTTPTestServer.Server.URL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := testCtx.HTTPTestServer.Server.Client().Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = string(data)
	testCtx.LastHTTPHeaders = make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		testCtx.LastHTTPHeaders[k] = resp.Header.Get(k)
	}
	return nil
}

func (testCtx *TestContext) iGET(path string) error {
	return testCtx.do(http.MethodGet, path, "", nil)
}

// iPOSTTheFrame sends a registered frame as a data URL.
func (testCtx *TestContext) iPOSTTheFrame(name, path string) error {
	file, ok := testCtx.Paths[name]
	if !ok {
		return fmt.Errorf("unknown frame %q", name)
	}
	raw, err := os.ReadFile(file) //nolint:gosec // G304: test reads its own frames
	if err != nil {
		return err
	}
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw)
	body, err := json.Marshal(server.PredictRequest{Image: dataURL, ID: name})
	if err != nil {
		return err
	}
	return testCtx.do(http.MethodPost, path, "application/json", bytes.NewReader(body))
}

func (testCtx *TestContext) iPOSTTheBody(body, path string) error {
	return testCtx.do(http.MethodPost, path, "application/json", strings.NewReader(body))
}

func (testCtx *TestContext) theResponseStatusShouldBe(code int) error {
	if testCtx.LastHTTPStatusCode != code {
		return fmt.Errorf("expected status %d, got %d\nBody: %s", code, testCtx.LastHTTPStatusCode, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldContain(text string) error {
	if !strings.Contains(testCtx.LastHTTPResponse, text) {
		return fmt.Errorf("response does not contain '%s'\nBody: %s", text, testCtx.LastHTTPResponse)
	}
	return nil
}

// theResponseFieldShouldEqual compares a top-level JSON field; "null"
// matches a JSON null.
func (testCtx *TestContext) theResponseFieldShouldEqual(field, expected string) error {
	var data map[string]any
	if err := json.Unmarshal([]byte(testCtx.LastHTTPResponse), &data); err != nil {
		return fmt.Errorf("response is not JSON: %w", err)
	}
	val, err := lookupField(data, field)
	if err != nil {
		return err
	}
	got := fmt.Sprint(val)
	if val == nil {
		got = "null"
	}
	if got != expected {
		return fmt.Errorf("field '%s' is %q, expected %q", field, got, expected)
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldBeSet(name string) error {
	if testCtx.LastHTTPHeaders[http.CanonicalHeaderKey(name)] == "" {
		return fmt.Errorf("header %s is not set", name)
	}
	return nil
}

func (testCtx *TestContext) theResponseFieldShouldBeTheGlyphFor(field string, id int) error {
	glyph, ok := labels.Glyph(id)
	if !ok {
		return fmt.Errorf("no glyph for class %d", id)
	}
	return testCtx.theResponseFieldShouldEqual(field, glyph)
}

// RegisterServerSteps registers HTTP server steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the prediction server is running with the open palm as class "([^"]*)"$`, testCtx.thePredictionServerIsRunning)
	sc.Step(`^the prediction server is running with the open palm as class "([^"]*)" and (\d+) requests per minute$`,
		testCtx.thePredictionServerIsRunningWithRateLimit)
	sc.Step(`^I GET "([^"]*)"$`, testCtx.iGET)
	sc.Step(`^I POST the frame "([^"]*)" to "([^"]*)"$`, testCtx.iPOSTTheFrame)
	sc.Step(`^I POST '([^']*)' to "([^"]*)"$`, testCtx.iPOSTTheBody)
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
	sc.Step(`^the response field "([^"]*)" should equal "([^"]*)"$`, testCtx.theResponseFieldShouldEqual)
	sc.Step(`^the response field "([^"]*)" should be the glyph for class (\d+)$`, testCtx.theResponseFieldShouldBeTheGlyphFor)
	sc.Step(`^the response header "([^"]*)" should be set$`, testCtx.theResponseHeaderShouldBeSet)
}
