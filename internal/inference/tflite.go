package inference

import (
	"fmt"

	"github.com/mattn/go-tflite"
	"github.com/mattn/go-tflite/delegates"
	"github.com/mattn/go-tflite/delegates/xnnpack"

	"github.com/dudu/ruse/internal/log"
)

// TFLiteInterpreter wraps a TensorFlow Lite interpreter. Tensors bind by
// index.
type TFLiteInterpreter struct {
	model       *tflite.Model
	options     *tflite.InterpreterOptions
	delegate    delegates.Delegater
	interpreter *tflite.Interpreter
	modelPath   string
}

// NewTFLiteInterpreter loads modelPath read-only with a fixed thread count.
// With opts.Accelerate an XNNPACK delegate is attached.
func NewTFLiteInterpreter(modelPath string, opts Options) (*TFLiteInterpreter, error) {
	model := tflite.NewModelFromFile(modelPath)
	if model == nil {
		return nil, fmt.Errorf("failed to load model %s", modelPath)
	}

	t := &TFLiteInterpreter{model: model, modelPath: modelPath}

	t.options = tflite.NewInterpreterOptions()
	if opts.Threads > 0 {
		t.options.SetNumThread(opts.Threads)
	}
	t.options.SetErrorReporter(func(msg string, _ interface{}) {
		log.Warn(log.Fields{"model": modelPath}, "[inference.TFLite] "+msg)
	}, nil)

	if opts.Accelerate {
		// typed nil must not reach the Delegater field
		if d := xnnpack.New(xnnpack.DelegateOptions{NumThreads: int32(max(opts.Threads, 1))}); d != nil {
			t.delegate = d
			t.options.AddDelegate(d)
		} else {
			log.Warn(log.Fields{"model": modelPath}, "[inference.NewTFLiteInterpreter] delegate unavailable, using CPU")
		}
	}

	t.interpreter = tflite.NewInterpreter(model, t.options)
	if t.interpreter == nil {
		t.Close()
		return nil, fmt.Errorf("failed to create interpreter for %s", modelPath)
	}

	if status := t.interpreter.AllocateTensors(); status != tflite.OK {
		t.Close()
		return nil, fmt.Errorf("failed to allocate tensors for %s: status %d", modelPath, status)
	}

	return t, nil
}

// Run copies inputs into the interpreter, invokes it and reads outputs back
func (t *TFLiteInterpreter) Run(inputs []Tensor, outputs []Tensor) error {
	if n := t.interpreter.GetInputTensorCount(); n != len(inputs) {
		return fmt.Errorf("%s expects %d inputs, got %d", t.modelPath, n, len(inputs))
	}
	if n := t.interpreter.GetOutputTensorCount(); n < len(outputs) {
		return fmt.Errorf("%s has %d outputs, asked for %d", t.modelPath, n, len(outputs))
	}

	for i, in := range inputs {
		tensor := t.interpreter.GetInputTensor(i)
		if want := tensor.ByteSize(); want != uint(len(in.Data)*4) {
			return fmt.Errorf("input %d of %s: size mismatch (%d bytes, got %d floats)", i, t.modelPath, want, len(in.Data))
		}
		if status := tensor.CopyFromBuffer(in.Data); status != tflite.OK {
			return fmt.Errorf("failed to copy input %d: status %d", i, status)
		}
	}

	if status := t.interpreter.Invoke(); status != tflite.OK {
		return fmt.Errorf("inference failed for %s: status %d", t.modelPath, status)
	}

	for i := range outputs {
		data := t.interpreter.GetOutputTensor(i).Float32s()
		if len(data) != len(outputs[i].Data) {
			return fmt.Errorf("output %d of %s: got %d values, want %d", i, t.modelPath, len(data), len(outputs[i].Data))
		}
		copy(outputs[i].Data, data)
	}
	return nil
}

// Close releases the interpreter, delegate, options and model in that order
func (t *TFLiteInterpreter) Close() error {
	if t.interpreter != nil {
		t.interpreter.Delete()
		t.interpreter = nil
	}
	if t.delegate != nil {
		t.delegate.Delete()
		t.delegate = nil
	}
	if t.options != nil {
		t.options.Delete()
		t.options = nil
	}
	if t.model != nil {
		t.model.Delete()
		t.model = nil
	}
	return nil
}
