package obfuscate

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/dudu/ruse/internal/detector"
	"github.com/dudu/ruse/internal/geometry"
	"github.com/dudu/ruse/internal/styletransfer"
)

// solidStylizer returns a flat image of one colour
type solidStylizer struct {
	c     color.RGBA
	calls int
	fail  bool
}

func (s *solidStylizer) ExecuteImage(_ image.Image, _ styletransfer.Request) styletransfer.Result {
	s.calls++
	if s.fail {
		return styletransfer.Result{ErrorMessage: "model missing"}
	}
	img := image.NewRGBA(image.Rect(0, 0, styletransfer.ContentImageSize, styletransfer.ContentImageSize))
	for y := 0; y < img.Rect.Dy(); y++ {
		for x := 0; x < img.Rect.Dx(); x++ {
			img.SetRGBA(x, y, s.c)
		}
	}
	return styletransfer.Result{Image: img}
}

func blackFrame(w, h int) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), h, w, gocv.MatTypeCV8UC3)
}

func TestPaddedRegion(t *testing.T) {
	bounds := image.Rect(0, 0, 100, 100)

	r := PaddedRegion(geometry.Rect{X: 20, Y: 20, Width: 40, Height: 20}, 0.25, bounds)
	assert.Equal(t, image.Rect(10, 15, 70, 45), r)

	// clipped at the frame edge
	r = PaddedRegion(geometry.Rect{X: 90, Y: -5, Width: 20, Height: 20}, 0, bounds)
	assert.Equal(t, image.Rect(90, 0, 100, 15), r)

	assert.True(t, PaddedRegion(geometry.Rect{X: 200, Y: 200, Width: 5, Height: 5}, 0, bounds).Empty())
}

func TestApplyStylesFaceRegionOnly(t *testing.T) {
	frame := blackFrame(120, 80)
	defer frame.Close()

	s := &solidStylizer{c: color.RGBA{R: 255, A: 255}}
	o := New(s, Config{Padding: 0.1, BlurSize: 3})
	defer o.Close()

	face := detector.Face{Frame: geometry.Rect{X: 40, Y: 20, Width: 40, Height: 40}}
	report, err := o.Apply(&frame, []detector.Face{face})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Regions)
	assert.Equal(t, 1, s.calls)

	// BGR: centre of the face turns red, far corner stays black
	centre := frame.GetVecbAt(40, 60)
	assert.Greater(t, centre[2], uint8(200))
	assert.Less(t, centre[0], uint8(50))

	corner := frame.GetVecbAt(2, 2)
	assert.Equal(t, uint8(0), corner[2])
}

func TestApplyWithoutFacesStylesWholeFrame(t *testing.T) {
	frame := blackFrame(50, 30)
	defer frame.Close()

	s := &solidStylizer{c: color.RGBA{B: 255, A: 255}}
	o := New(s, Config{BlurSize: 5})
	defer o.Close()

	report, err := o.Apply(&frame, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Regions)
	assert.Equal(t, 50, frame.Cols())
	assert.Equal(t, 30, frame.Rows())

	v := frame.GetVecbAt(0, 0)
	assert.Equal(t, uint8(255), v[0])
}

func TestApplyReportsStyleFailure(t *testing.T) {
	frame := blackFrame(40, 40)
	defer frame.Close()

	o := New(&solidStylizer{fail: true}, Config{BlurSize: 3})
	defer o.Close()

	_, err := o.Apply(&frame, []detector.Face{{Frame: geometry.Rect{X: 5, Y: 5, Width: 20, Height: 20}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model missing")
}

func TestApplyEmptyFrame(t *testing.T) {
	frame := gocv.NewMat()
	defer frame.Close()

	o := New(&solidStylizer{}, Config{})
	defer o.Close()

	_, err := o.Apply(&frame, nil)
	assert.Error(t, err)
}

func TestLandmarkCenter(t *testing.T) {
	face := detector.Face{Landmarks: map[detector.LandmarkType]geometry.Point{
		detector.LandmarkLeftEye:    {X: 0, Y: 0},
		detector.LandmarkRightEye:   {X: 10, Y: 0},
		detector.LandmarkNoseBase:   {X: 5, Y: 5},
		detector.LandmarkMouthLeft:  {X: 0, Y: 10},
		detector.LandmarkMouthRight: {X: 10, Y: 10},
	}}
	c, ok := landmarkCenter(face)
	require.True(t, ok)
	assert.Equal(t, geometry.Point{X: 5, Y: 5}, c)

	delete(face.Landmarks, detector.LandmarkNoseBase)
	_, ok = landmarkCenter(face)
	assert.False(t, ok)
}
