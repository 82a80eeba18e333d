package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitTransform(t *testing.T) {
	tests := []struct {
		name      string
		src, dst  Size
		wantScale float64
		wantTx    float64
		wantTy    float64
	}{
		{"wider view letterboxes horizontally", Size{400, 300}, Size{800, 300}, 1, 200, 0},
		{"taller view letterboxes vertically", Size{400, 300}, Size{400, 600}, 1, 0, 150},
		{"same aspect scales down", Size{1000, 500}, Size{500, 250}, 0.5, 0, 0},
		{"portrait photo in landscape view", Size{300, 600}, Size{900, 300}, 0.5, 375, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := FitTransform(tt.src, tt.dst)
			assert.InDelta(t, tt.wantScale, tr.A, 1e-9)
			assert.InDelta(t, tt.wantScale, tr.D, 1e-9)
			assert.InDelta(t, tt.wantTx, tr.Tx, 1e-9)
			assert.InDelta(t, tt.wantTy, tr.Ty, 1e-9)
		})
	}
}

func TestFitTransformCornersStayInsideView(t *testing.T) {
	cases := []struct{ src, dst Size }{
		{Size{640, 480}, Size{375, 812}},
		{Size{1920, 1080}, Size{1280, 720}},
		{Size{384, 384}, Size{390, 844}},
		{Size{3024, 4032}, Size{414, 736}},
		{Size{100, 37}, Size{61, 901}},
	}

	for _, c := range cases {
		tr := FitTransform(c.src, c.dst)
		mapped := tr.ApplyRect(Rect{Width: c.src.Width, Height: c.src.Height})

		assert.GreaterOrEqual(t, mapped.X, -1e-9)
		assert.GreaterOrEqual(t, mapped.Y, -1e-9)
		assert.LessOrEqual(t, mapped.MaxX(), c.dst.Width+1e-9)
		assert.LessOrEqual(t, mapped.MaxY(), c.dst.Height+1e-9)

		// centered
		assert.InDelta(t, c.dst.Width/2, mapped.Center().X, 1e-6)
		assert.InDelta(t, c.dst.Height/2, mapped.Center().Y, 1e-6)

		// one axis fills the view
		fillsWidth := mapped.Width > c.dst.Width-1e-6
		fillsHeight := mapped.Height > c.dst.Height-1e-6
		assert.True(t, fillsWidth || fillsHeight)

		// aspect ratio preserved
		assert.InDelta(t, c.src.AspectRatio(), mapped.Width/mapped.Height, 1e-6)
	}
}

func TestFitTransformDegenerateSizes(t *testing.T) {
	assert.Equal(t, Identity(), FitTransform(Size{}, Size{100, 100}))
	assert.Equal(t, Identity(), FitTransform(Size{100, 100}, Size{0, 50}))
}

func TestAffineInvertRoundTrip(t *testing.T) {
	tr := FitTransform(Size{640, 480}, Size{375, 812})
	inv := tr.Invert()

	p := Point{X: 123.5, Y: 321.25}
	back := inv.ApplyPoint(tr.ApplyPoint(p))
	require.InDelta(t, p.X, back.X, 1e-9)
	require.InDelta(t, p.Y, back.Y, 1e-9)
}

func TestRectStandardized(t *testing.T) {
	r := Rect{X: 10, Y: 10, Width: -4, Height: -6}.Standardized()
	assert.Equal(t, Rect{X: 6, Y: 4, Width: 4, Height: 6}, r)
}

func TestRectIntersect(t *testing.T) {
	a := Rect{X: 0, Y: 0, Width: 10, Height: 10}
	b := Rect{X: 5, Y: 5, Width: 10, Height: 10}
	assert.Equal(t, Rect{X: 5, Y: 5, Width: 5, Height: 5}, a.Intersect(b))
	assert.Equal(t, Rect{}, a.Intersect(Rect{X: 20, Y: 20, Width: 1, Height: 1}))
}
