package inference

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBackend(t *testing.T) {
	tests := []struct {
		in      string
		want    Backend
		wantErr bool
	}{
		{"tflite", BackendTFLite, false},
		{"onnx", BackendONNX, false},
		{"coreml", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBackend(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewTensorSize(t *testing.T) {
	tensor := NewTensor(1, 384, 384, 3)
	assert.Len(t, tensor.Data, 384*384*3)
	assert.Equal(t, []int64{1, 384, 384, 3}, tensor.Shape)

	bottleneck := NewTensor(1, 1, 1, 100)
	assert.Len(t, bottleneck.Data, 100)
}

func TestFileLoaderPath(t *testing.T) {
	l, err := NewFileLoader("models", BackendTFLite, "")
	require.NoError(t, err)

	spec := ModelSpec{Name: "style_predict_quantized_256"}
	assert.Equal(t, filepath.Join("models", "style_predict_quantized_256.tflite"), l.Path(spec))
	assert.Equal(t, BackendTFLite, l.Backend())
	assert.NoError(t, l.Close())
}

func TestONNXRequiresInitialize(t *testing.T) {
	_, err := NewONNXInterpreter("missing.onnx", []string{"in"}, []string{"out"}, Options{})
	assert.ErrorIs(t, err, ErrNotInitialized)

	_, err = Inspect("missing.onnx")
	assert.ErrorIs(t, err, ErrNotInitialized)
}
