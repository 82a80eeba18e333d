package inference

import (
	"errors"
	"fmt"
	"path/filepath"
)

// ErrNotInitialized is returned when a runtime is used before Initialize
var ErrNotInitialized = errors.New("inference runtime not initialized")

// Backend names a model runtime
type Backend string

const (
	BackendTFLite Backend = "tflite"
	BackendONNX   Backend = "onnx"
)

// Extension returns the model file extension for the backend
func (b Backend) Extension() string {
	switch b {
	case BackendONNX:
		return ".onnx"
	default:
		return ".tflite"
	}
}

// ParseBackend validates a backend name
func ParseBackend(s string) (Backend, error) {
	switch Backend(s) {
	case BackendTFLite, BackendONNX:
		return Backend(s), nil
	}
	return "", fmt.Errorf("invalid backend: %s (use 'tflite' or 'onnx')", s)
}

// Tensor is a dense float32 tensor
type Tensor struct {
	Shape []int64
	Data  []float32
}

// NewTensor allocates a zeroed tensor
func NewTensor(shape ...int64) Tensor {
	return Tensor{Shape: shape, Data: make([]float32, numElements(shape))}
}

func numElements(shape []int64) int64 {
	size := int64(1)
	for _, dim := range shape {
		size *= dim
	}
	return size
}

// Interpreter runs a loaded model synchronously. Outputs are preallocated
// by the caller and filled in place. Implementations are not safe for
// concurrent use.
type Interpreter interface {
	Run(inputs []Tensor, outputs []Tensor) error
	Close() error
}

// Options configures an interpreter
type Options struct {
	Threads int
	// Accelerate attaches the backend's GPU/accelerator delegate
	Accelerate bool
}

// ModelSpec names a model file and its graph endpoints. Names are used by
// ONNX Runtime; TFLite binds by index.
type ModelSpec struct {
	Name    string
	Inputs  []string
	Outputs []string
}

// Loader creates interpreters from model specs
type Loader interface {
	Load(spec ModelSpec, opts Options) (Interpreter, error)
	Backend() Backend
}

// FileLoader loads models from a directory using the configured backend
type FileLoader struct {
	Dir     string
	backend Backend
}

// NewFileLoader creates a loader. For ONNX the runtime environment is
// initialized from ortLibrary (empty picks the platform default).
func NewFileLoader(dir string, backend Backend, ortLibrary string) (*FileLoader, error) {
	if backend == BackendONNX {
		if err := Initialize(ortLibrary); err != nil {
			return nil, err
		}
	}
	return &FileLoader{Dir: dir, backend: backend}, nil
}

// Backend returns the loader backend
func (l *FileLoader) Backend() Backend {
	return l.backend
}

// Path returns the model path for spec
func (l *FileLoader) Path(spec ModelSpec) string {
	return filepath.Join(l.Dir, spec.Name+l.backend.Extension())
}

// Load opens the model file for spec
func (l *FileLoader) Load(spec ModelSpec, opts Options) (Interpreter, error) {
	path := l.Path(spec)
	switch l.backend {
	case BackendONNX:
		return NewONNXInterpreter(path, spec.Inputs, spec.Outputs, opts)
	default:
		return NewTFLiteInterpreter(path, opts)
	}
}

// Close shuts down the runtime environment if this loader started it
func (l *FileLoader) Close() error {
	if l.backend == BackendONNX {
		return Shutdown()
	}
	return nil
}
