package support

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// TestContext holds the state for integration tests.
type TestContext struct {
	// Command execution state
	LastCommand   string
	LastOutput    string
	LastStderr    string
	LastError     error
	LastExitCode  int
	LastStartTime time.Time
	LastDuration  time.Duration

	// Test environment
	TempDir string
	EnvVars []string

	// Paths of generated inputs, substituted into commands as {name}
	Paths map[string]string

	// Server state
	HTTPTestServer *HTTPTestServerWrapper

	// HTTP response state
	LastHTTPStatusCode int
	LastHTTPResponse   string
	LastHTTPHeaders    map[string]string
}

// NewTestContext creates a new test context with its own temporary
// directory. Commands run there with an isolated config home.
func NewTestContext() (*TestContext, error) {
	tempDir, err := os.MkdirTemp("", "arsl-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	ctx := &TestContext{
		TempDir: tempDir,
		Paths:   map[string]string{"tmp": tempDir},
	}
	ctx.AddEnvVar("XDG_CONFIG_HOME", tempDir)
	ctx.AddEnvVar("HOME", tempDir)
	ctx.AddEnvVar("ARSL_MODELS_DIR", filepath.Join(tempDir, "models"))
	return ctx, nil
}

// Cleanup stops the test server and removes the temporary directory.
func (testCtx *TestContext) Cleanup() error {
	var errs []error

	if err := testCtx.stopTestHTTPServer(); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop server: %w", err))
	}
	if err := os.RemoveAll(testCtx.TempDir); err != nil && !os.IsNotExist(err) {
		errs = append(errs, fmt.Errorf("failed to remove temp directory %s: %w", testCtx.TempDir, err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %v", errs)
	}
	return nil
}

// AddEnvVar adds an environment variable for command execution.
func (testCtx *TestContext) AddEnvVar(name, value string) {
	testCtx.EnvVars = append(testCtx.EnvVars, fmt.Sprintf("%s=%s", name, value))
}

// path resolves a name relative to the temporary directory.
func (testCtx *TestContext) path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(testCtx.TempDir, name)
}

// substituteCommandVariables replaces {name} placeholders with the paths
// registered in Paths.
func (testCtx *TestContext) substituteCommandVariables(command string) string {
	for name, p := range testCtx.Paths {
		command = strings.ReplaceAll(command, "{"+name+"}", p)
	}
	return command
}
