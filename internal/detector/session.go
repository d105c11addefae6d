package detector

import (
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/arsl/internal/onnx"
	"github.com/yalue/onnxruntime_go"
)

// runner executes one model and returns a copy of every output in run order.
type runner interface {
	Run(input onnx.Tensor) ([][]float32, error)
	Destroy() error
}

// setupONNXEnvironment sets up the ONNX Runtime environment.
func setupONNXEnvironment(config Config) error {
	if err := onnx.InitRuntime(config.LibraryPath, config.GPU.UseGPU); err != nil {
		return fmt.Errorf("failed to set up ONNX Runtime: %w", err)
	}
	return nil
}

// createSession creates the landmark session bound to the configured tensors.
func createSession(config Config) (*sessionRunner, error) {
	return newSessionRunner(config, config.ModelPath, config.InputName, config.outputNames())
}

// createPalmSession creates the palm detection session.
func createPalmSession(config Config) (*sessionRunner, error) {
	return newSessionRunner(config, config.PalmModelPath, config.PalmInputName, config.palmOutputNames())
}

func newSessionRunner(config Config, modelPath, input string, outputs []string) (*sessionRunner, error) {
	session, err := onnx.NewSession(onnx.SessionConfig{
		ModelPath:  modelPath,
		Inputs:     []string{input},
		Outputs:    outputs,
		NumThreads: config.NumThreads,
		GPU:        config.GPU,
	})
	if err != nil {
		return nil, err
	}
	return &sessionRunner{session: session, outputs: len(outputs)}, nil
}

// sessionRunner runs an ONNX Runtime session. It is not safe for concurrent
// use; HandDetector serialises calls.
type sessionRunner struct {
	session *onnxruntime_go.DynamicAdvancedSession
	outputs int
}

// Run executes the session and returns a copy of every output.
func (r *sessionRunner) Run(tensor onnx.Tensor) ([][]float32, error) {
	inputTensor, err := onnxruntime_go.NewTensor(onnxruntime_go.NewShape(tensor.Shape...), tensor.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer func() {
		if err := inputTensor.Destroy(); err != nil {
			slog.Warn("Error destroying input tensor", "error", err)
		}
	}()

	// ONNX Runtime allocates the outputs
	outputs := make([]onnxruntime_go.Value, r.outputs)
	if err := r.session.Run([]onnxruntime_go.Value{inputTensor}, outputs); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	defer func() {
		for _, o := range outputs {
			if o == nil {
				continue
			}
			if err := o.Destroy(); err != nil {
				slog.Warn("Error destroying output tensor", "error", err)
			}
		}
	}()

	values := make([][]float32, len(outputs))
	for i, o := range outputs {
		floatTensor, ok := o.(*onnxruntime_go.Tensor[float32])
		if !ok {
			return nil, fmt.Errorf("output %d is not a float32 tensor", i)
		}
		values[i] = append([]float32(nil), floatTensor.GetData()...)
	}
	return values, nil
}

// Destroy releases the session.
func (r *sessionRunner) Destroy() error {
	return r.session.Destroy()
}
