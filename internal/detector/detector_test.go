package detector

import (
	"context"
	"errors"
	"image"
	"sync/atomic"
	"testing"
	"time"

	pigo "github.com/esimov/pigo/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dudu/ruse/internal/geometry"
	"github.com/dudu/ruse/internal/inference"
)

func testImage() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 64, 48))
}

func oneFace() []Face {
	return []Face{{Frame: geometry.Rect{X: 1, Y: 2, Width: 10, Height: 12}, Score: 0.9}}
}

func TestDetectDeliversFaces(t *testing.T) {
	d := Func(func(context.Context, image.Image) ([]Face, error) {
		return oneFace(), nil
	})

	faces, err := Detect(context.Background(), d, testImage())
	require.NoError(t, err)
	require.Len(t, faces, 1)
	assert.Equal(t, 10.0, faces[0].Frame.Width)
}

func TestDetectEmptyIsNoResults(t *testing.T) {
	d := Func(func(context.Context, image.Image) ([]Face, error) {
		return nil, nil
	})

	faces, err := Detect(context.Background(), d, testImage())
	assert.ErrorIs(t, err, ErrNoResults)
	assert.Empty(t, faces)
}

func TestDetectErrorIsDistinctFromNoResults(t *testing.T) {
	boom := errors.New("boom")
	d := Func(func(context.Context, image.Image) ([]Face, error) {
		return nil, boom
	})

	_, err := Detect(context.Background(), d, testImage())
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrNoResults)
}

func TestProcessRecoversPanic(t *testing.T) {
	d := Func(func(context.Context, image.Image) ([]Face, error) {
		panic("model exploded")
	})

	_, err := Detect(context.Background(), d, testImage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model exploded")
}

func TestProcessNilImage(t *testing.T) {
	d := Func(func(context.Context, image.Image) ([]Face, error) {
		return oneFace(), nil
	})
	_, err := Detect(context.Background(), d, nil)
	assert.Error(t, err)
}

func TestProcessHandlerCalledOnceOnCancel(t *testing.T) {
	release := make(chan struct{})
	d := Func(func(context.Context, image.Image) ([]Face, error) {
		<-release
		return oneFace(), nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	got := make(chan error, 2)
	d.Process(ctx, testImage(), func(_ []Face, err error) {
		calls.Add(1)
		got <- err
	})

	cancel()
	select {
	case err := <-got:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("handler not called after cancel")
	}

	// the late result must be dropped
	close(release)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestProcessAlreadyCancelled(t *testing.T) {
	var ran atomic.Bool
	d := Func(func(context.Context, image.Image) ([]Face, error) {
		ran.Store(true)
		return oneFace(), nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Detect(ctx, d, testImage())
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran.Load())
}

func TestNMS(t *testing.T) {
	faces := []Face{
		{Frame: geometry.Rect{X: 0, Y: 0, Width: 10, Height: 10}, Score: 0.6},
		{Frame: geometry.Rect{X: 1, Y: 1, Width: 10, Height: 10}, Score: 0.9},
		{Frame: geometry.Rect{X: 50, Y: 50, Width: 10, Height: 10}, Score: 0.7},
	}

	kept := nms(faces, 0.4)
	require.Len(t, kept, 2)
	assert.Equal(t, float32(0.9), kept[0].Score)
	assert.Equal(t, float32(0.7), kept[1].Score)
}

func TestIoU(t *testing.T) {
	a := geometry.Rect{Width: 10, Height: 10}
	assert.InDelta(t, 1.0, iou(a, a), 1e-9)
	assert.Equal(t, 0.0, iou(a, geometry.Rect{X: 20, Y: 20, Width: 5, Height: 5}))

	b := geometry.Rect{X: 5, Width: 10, Height: 10}
	assert.InDelta(t, 50.0/150.0, iou(a, b), 1e-9)
}

func TestSCRFDPostprocess(t *testing.T) {
	s := NewSCRFDWithInterpreter(nil, SCRFDConfig{InputSize: 32, ConfThreshold: 0.5, NMSThreshold: 0.4})

	outputs := make([]inference.Tensor, 9)
	for i, stride := range s.featureStrides {
		fm := s.inputSize / stride
		n := int64(fm * fm * s.numAnchors)
		outputs[i] = inference.NewTensor(n, 1)
		outputs[i+3] = inference.NewTensor(n, 4)
		outputs[i+6] = inference.NewTensor(n, 10)
		for j := range outputs[i].Data {
			outputs[i].Data[j] = -10 // sigmoid ~ 0
		}
	}

	// stride 8, anchor at grid (1,1), first anchor: index (1*4+1)*2 = 10
	idx := 10
	outputs[0].Data[idx] = 10
	copy(outputs[3].Data[idx*4:], []float32{1, 1, 1, 1})
	copy(outputs[6].Data[idx*10:], []float32{-0.5, -0.5, 0.5, -0.5, 0, 0, -0.5, 0.5, 0.5, 0.5})

	faces := s.postprocess(outputs, 0.5, 100, 100)
	require.Len(t, faces, 1)

	f := faces[0]
	// centre (12,12), distances 8 at scale 0.5
	assert.InDelta(t, 8.0, f.Frame.X, 1e-4)
	assert.InDelta(t, 8.0, f.Frame.Y, 1e-4)
	assert.InDelta(t, 32.0, f.Frame.Width, 1e-4)
	assert.InDelta(t, 32.0, f.Frame.Height, 1e-4)

	nose, ok := f.Landmark(LandmarkNoseBase)
	require.True(t, ok)
	assert.InDelta(t, 24.0, nose.X, 1e-4)
	assert.InDelta(t, 24.0, nose.Y, 1e-4)

	left, _ := f.Landmark(LandmarkLeftEye)
	assert.InDelta(t, 16.0, left.X, 1e-4)
	assert.Len(t, f.Landmarks, 5)
	assert.Nil(t, f.HeadPose)
	assert.Nil(t, f.SmilingProbability)
}

func TestContourPostprocess(t *testing.T) {
	c := NewContourerWithInterpreter(nil)
	output := make([]float32, contourPoints*2)
	output[0], output[1] = 1, -1 // point 0 at the crop's top-right corner

	center := geometry.Point{X: 100, Y: 50}
	points := c.postprocess(output, center, 2)
	require.Len(t, points, contourPoints)

	// half = 96, so (96, -96) / 2 + center
	assert.InDelta(t, 148.0, points[0].X, 1e-9)
	assert.InDelta(t, 2.0, points[0].Y, 1e-9)
	assert.Equal(t, center, points[1])

	contours := c.contours(points)
	for _, kind := range AllContours {
		assert.NotEmpty(t, contours[kind], kind.String())
	}
	assert.Len(t, contours[ContourFace], 33)
	assert.Equal(t, points[0], contours[ContourFace][0])
}

func TestPigoFrame(t *testing.T) {
	r := pigoFrame(pigo.Detection{Row: 100, Col: 80, Scale: 40, Q: 10})
	assert.Equal(t, geometry.Rect{X: 60, Y: 80, Width: 40, Height: 40}, r)
}

func TestTypeNames(t *testing.T) {
	assert.Equal(t, "mouth_bottom", LandmarkMouthBottom.String())
	assert.Equal(t, "nose_bottom", ContourNoseBottom.String())
	assert.Len(t, AllLandmarks, 10)
	assert.Len(t, AllContours, 13)
}
