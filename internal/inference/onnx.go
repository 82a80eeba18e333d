package inference

import (
	"fmt"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/dudu/ruse/internal/log"
)

var (
	initialized bool
	initMu      sync.Mutex
)

// DefaultLibraryPath returns the ONNX Runtime shared library for this platform
func DefaultLibraryPath() string {
	switch runtime.GOOS {
	case "darwin":
		return "lib/libonnxruntime.dylib"
	case "windows":
		return "lib/onnxruntime.dll"
	default:
		return "lib/libonnxruntime.so"
	}
}

// Initialize sets up the ONNX Runtime environment (call once at startup).
// An empty libPath uses DefaultLibraryPath.
func Initialize(libPath string) error {
	initMu.Lock()
	defer initMu.Unlock()

	if initialized {
		return nil
	}

	if libPath == "" {
		libPath = DefaultLibraryPath()
	}
	ort.SetSharedLibraryPath(libPath)

	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
	}

	initialized = true
	return nil
}

// Shutdown cleans up the ONNX Runtime environment
func Shutdown() error {
	initMu.Lock()
	defer initMu.Unlock()

	if !initialized {
		return nil
	}

	if err := ort.DestroyEnvironment(); err != nil {
		return err
	}

	initialized = false
	return nil
}

func isInitialized() bool {
	initMu.Lock()
	defer initMu.Unlock()
	return initialized
}

// ONNXInterpreter wraps an ONNX Runtime session
type ONNXInterpreter struct {
	session     *ort.DynamicAdvancedSession
	modelPath   string
	inputNames  []string
	outputNames []string
}

// NewONNXInterpreter creates a session for modelPath. With opts.Accelerate
// the CoreML execution provider is appended; if it is unavailable the
// session runs on CPU.
func NewONNXInterpreter(modelPath string, inputNames, outputNames []string, opts Options) (*ONNXInterpreter, error) {
	if !isInitialized() {
		return nil, ErrNotInitialized
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	if opts.Threads > 0 {
		if err := options.SetIntraOpNumThreads(opts.Threads); err != nil {
			return nil, fmt.Errorf("failed to set thread count: %w", err)
		}
	}

	if opts.Accelerate {
		// 0 = default flags, Neural Engine + GPU
		if err := options.AppendExecutionProviderCoreML(0); err != nil {
			log.Warn(log.Fields{
				"model": modelPath,
				"error": err.Error(),
			}, "[inference.NewONNXInterpreter] CoreML unavailable, using CPU")
		} else {
			log.Debug(log.Fields{"model": modelPath}, "[inference.NewONNXInterpreter] CoreML enabled")
		}
	}

	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		inputNames,
		outputNames,
		options,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session for %s: %w", modelPath, err)
	}

	return &ONNXInterpreter{
		session:     session,
		modelPath:   modelPath,
		inputNames:  inputNames,
		outputNames: outputNames,
	}, nil
}

// Run executes inference. Output tensors must already have their final
// shapes.
func (s *ONNXInterpreter) Run(inputs []Tensor, outputs []Tensor) error {
	if len(inputs) != len(s.inputNames) || len(outputs) != len(s.outputNames) {
		return fmt.Errorf("%s expects %d inputs and %d outputs, got %d and %d",
			s.modelPath, len(s.inputNames), len(s.outputNames), len(inputs), len(outputs))
	}

	values := make([]ort.Value, 0, len(inputs)+len(outputs))
	defer func() {
		for _, v := range values {
			v.Destroy()
		}
	}()

	in := make([]ort.Value, len(inputs))
	for i, t := range inputs {
		tensor, err := ort.NewTensor(ort.NewShape(t.Shape...), t.Data)
		if err != nil {
			return fmt.Errorf("failed to create input tensor %s: %w", s.inputNames[i], err)
		}
		values = append(values, tensor)
		in[i] = tensor
	}

	out := make([]ort.Value, len(outputs))
	outTensors := make([]*ort.Tensor[float32], len(outputs))
	for i, t := range outputs {
		tensor, err := ort.NewTensor(ort.NewShape(t.Shape...), t.Data)
		if err != nil {
			return fmt.Errorf("failed to create output tensor %s: %w", s.outputNames[i], err)
		}
		values = append(values, tensor)
		out[i] = tensor
		outTensors[i] = tensor
	}

	if err := s.session.Run(in, out); err != nil {
		return fmt.Errorf("inference failed for %s: %w", s.modelPath, err)
	}

	for i, t := range outTensors {
		copy(outputs[i].Data, t.GetData())
	}
	return nil
}

// Close releases session resources
func (s *ONNXInterpreter) Close() error {
	if s.session != nil {
		return s.session.Destroy()
	}
	return nil
}

// ModelInfo describes the graph endpoints of a model file
type ModelInfo struct {
	Inputs  []ort.InputOutputInfo
	Outputs []ort.InputOutputInfo
}

// Inspect reads input/output metadata without creating a session
func Inspect(modelPath string) (ModelInfo, error) {
	if !isInitialized() {
		return ModelInfo{}, ErrNotInitialized
	}
	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return ModelInfo{}, fmt.Errorf("failed to read model info for %s: %w", modelPath, err)
	}
	return ModelInfo{Inputs: inputs, Outputs: outputs}, nil
}
