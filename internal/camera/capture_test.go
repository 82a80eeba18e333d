package camera

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestNewCaptureMissingDevice(t *testing.T) {
	_, err := NewCapture(97, 30)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoDevice)
}

func TestStill(t *testing.T) {
	path := filepath.Join(t.TempDir(), "still.png")
	src := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(10, 20, 30, 0), 24, 32, gocv.MatTypeCV8UC3)
	defer src.Close()
	require.True(t, gocv.IMWrite(path, src))

	var source Source
	still, err := NewStill(path)
	require.NoError(t, err)
	source = still
	defer source.Close()

	assert.Equal(t, 32, source.Width())
	assert.Equal(t, 24, source.Height())

	frame := gocv.NewMat()
	defer frame.Close()
	require.True(t, source.Read(&frame))
	v := frame.GetVecbAt(0, 0)
	assert.Equal(t, uint8(10), v[0])
	assert.Equal(t, uint8(30), v[2])
}

func TestNewStillMissingFile(t *testing.T) {
	_, err := NewStill(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}
