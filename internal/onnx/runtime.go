// Package onnx wraps ONNX Runtime setup: shared library discovery,
// environment initialization, session creation and tensor helpers.
package onnx

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/yalue/onnxruntime_go"
)

// LibraryEnv overrides shared library discovery when set.
const LibraryEnv = "ARSL_ONNXRUNTIME_LIB"

const (
	osLinux    = "linux"
	osDarwin   = "darwin"
	osWindows  = "windows"
	libLinux   = "libonnxruntime.so"
	libDarwin  = "libonnxruntime.dylib"
	libWindows = "onnxruntime.dll"
)

// ErrLibraryNotFound is returned when no ONNX Runtime shared library can be located.
var ErrLibraryNotFound = errors.New("ONNX Runtime library not found")

var envMu sync.Mutex

// getSystemLibraryPaths returns system library paths to try, GPU builds first when useGPU is set.
func getSystemLibraryPaths(useGPU bool) []string {
	paths := []string{
		"/usr/local/lib/libonnxruntime.so",
		"/usr/lib/libonnxruntime.so",
		"/opt/onnxruntime/cpu/lib/libonnxruntime.so",
	}
	if useGPU {
		paths = append([]string{"/opt/onnxruntime/gpu/lib/libonnxruntime.so"}, paths...)
	}
	return paths
}

// findProjectRoot finds the project root directory by looking for go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("could not find project root")
		}
		dir = parent
	}
}

// getLibraryName returns the library filename for the current OS.
func getLibraryName() (string, error) {
	switch runtime.GOOS {
	case osLinux:
		return libLinux, nil
	case osDarwin:
		return libDarwin, nil
	case osWindows:
		return libWindows, nil
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}
}

// candidateLibraryPaths lists the paths tried in order for the shared library.
func candidateLibraryPaths(explicit string, useGPU bool) []string {
	var paths []string
	if explicit != "" {
		paths = append(paths, explicit)
	}
	if env := os.Getenv(LibraryEnv); env != "" {
		paths = append(paths, env)
	}
	paths = append(paths, getSystemLibraryPaths(useGPU)...)

	if root, err := findProjectRoot(); err == nil {
		if name, err := getLibraryName(); err == nil {
			if useGPU {
				paths = append(paths, filepath.Join(root, "onnxruntime", "gpu", "lib", name))
			}
			paths = append(paths, filepath.Join(root, "onnxruntime", "lib", name))
		}
	}
	return paths
}

// FindLibrary returns the first existing ONNX Runtime shared library.
func FindLibrary(explicit string, useGPU bool) (string, error) {
	for _, p := range candidateLibraryPaths(explicit, useGPU) {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", ErrLibraryNotFound
}

// InitRuntime locates the shared library and initializes the process-wide
// ONNX Runtime environment once. Later calls are no-ops.
func InitRuntime(libraryPath string, useGPU bool) error {
	envMu.Lock()
	defer envMu.Unlock()

	if onnxruntime_go.IsInitialized() {
		return nil
	}

	lib, err := FindLibrary(libraryPath, useGPU)
	if err != nil {
		return fmt.Errorf("failed to set ONNX Runtime library path: %w", err)
	}
	onnxruntime_go.SetSharedLibraryPath(lib)

	if err := onnxruntime_go.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
	}
	slog.Debug("ONNX Runtime initialized", "library", lib, "gpu", useGPU)
	return nil
}

// SessionConfig configures a model session.
type SessionConfig struct {
	ModelPath  string
	Inputs     []string
	Outputs    []string
	NumThreads int // 0 = runtime default
	GPU        GPUConfig
}

// NewSession creates a dynamic session bound to the named inputs and outputs.
func NewSession(cfg SessionConfig) (*onnxruntime_go.DynamicAdvancedSession, error) {
	sessionOptions, err := onnxruntime_go.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer func() {
		if err := sessionOptions.Destroy(); err != nil {
			slog.Warn("Failed to destroy session options", "error", err)
		}
	}()

	if err := ConfigureSessionForGPU(sessionOptions, cfg.GPU); err != nil {
		return nil, fmt.Errorf("failed to configure GPU: %w", err)
	}

	if cfg.NumThreads > 0 {
		if err := sessionOptions.SetIntraOpNumThreads(cfg.NumThreads); err != nil {
			return nil, fmt.Errorf("failed to set thread count: %w", err)
		}
	}

	session, err := onnxruntime_go.NewDynamicAdvancedSession(cfg.ModelPath, cfg.Inputs, cfg.Outputs, sessionOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	return session, nil
}

// ModelIO describes a model's input and output tensors.
type ModelIO struct {
	Inputs  []onnxruntime_go.InputOutputInfo
	Outputs []onnxruntime_go.InputOutputInfo
}

// InspectModel reads tensor metadata from a model file.
func InspectModel(modelPath string) (ModelIO, error) {
	inputs, outputs, err := onnxruntime_go.GetInputOutputInfo(modelPath)
	if err != nil {
		return ModelIO{}, fmt.Errorf("failed to get model info: %w", err)
	}
	return ModelIO{Inputs: inputs, Outputs: outputs}, nil
}

// Input returns the named input, or the first input when name is empty.
func (m ModelIO) Input(name string) (onnxruntime_go.InputOutputInfo, bool) {
	return pick(m.Inputs, name)
}

// Output returns the named output.
func (m ModelIO) Output(name string) (onnxruntime_go.InputOutputInfo, bool) {
	return pick(m.Outputs, name)
}

func pick(infos []onnxruntime_go.InputOutputInfo, name string) (onnxruntime_go.InputOutputInfo, bool) {
	for _, info := range infos {
		if name == "" || info.Name == name {
			return info, true
		}
	}
	return onnxruntime_go.InputOutputInfo{}, false
}
