package noise

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFastFloor(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{-0.5, -1},
		{0.5, 0},
		{2.0, 2},
		{-2.0, -2},
		{-1.0000001, -2},
		{0, 0},
		{7.999, 7},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, fastFloor(tt.in), "fastFloor(%v)", tt.in)
	}
}

func TestPermutationTables(t *testing.T) {
	s := NewSimplex()
	require.Len(t, s.perm, 512)
	require.Len(t, s.permMod12, 512)

	for i := 0; i < 512; i++ {
		assert.Equal(t, basePerm[i&255], s.perm[i])
		assert.GreaterOrEqual(t, s.permMod12[i], 0)
		assert.LessOrEqual(t, s.permMod12[i], 11)
		assert.Equal(t, s.perm[i]%12, s.permMod12[i])
	}
}

func TestNoise2DRange(t *testing.T) {
	s := NewSimplex()
	r := rand.New(rand.NewSource(42))

	for i := 0; i < 200000; i++ {
		x := (r.Float64() - 0.5) * 2000
		y := (r.Float64() - 0.5) * 2000
		v := s.Noise2D(x, y)
		require.False(t, math.IsNaN(v))
		require.GreaterOrEqual(t, v, -1.0, "noise(%v,%v)", x, y)
		require.LessOrEqual(t, v, 1.0, "noise(%v,%v)", x, y)
	}
}

func TestNoise2DDeterministic(t *testing.T) {
	a := NewSimplex()
	b := NewSimplex()

	points := [][2]float64{{0, 0}, {0.3, 0.7}, {-12.25, 4.5}, {1000.1, -999.9}, {-0.5, -0.5}}
	for _, p := range points {
		assert.Equal(t, a.Noise2D(p[0], p[1]), a.Noise2D(p[0], p[1]))
		assert.Equal(t, a.Noise2D(p[0], p[1]), b.Noise2D(p[0], p[1]))
	}
}

func TestNoise2DLatticeOriginIsZero(t *testing.T) {
	s := NewSimplex()
	// Every corner contribution vanishes or is dotted with a zero offset
	// at integer lattice points on the diagonal origin
	assert.InDelta(t, 0.0, s.Noise2D(0, 0), 1e-12)
}

func TestNoise2DVaries(t *testing.T) {
	s := NewSimplex()
	seen := map[float64]bool{}
	for i := 0; i < 50; i++ {
		seen[s.Noise2D(float64(i)*0.37, float64(i)*0.11)] = true
	}
	assert.Greater(t, len(seen), 40)
}

func TestGenerateRange(t *testing.T) {
	gen := NewGenerator(DefaultChunkWidth, DefaultChunkHeight, nil)

	params := []struct {
		octaves   int
		roughness float64
		scale     float64
	}{
		{1, 0.5, 0.05},
		{4, 0.5, 0.01},
		{6, 1.5, 0.2},
		{8, 0.9, 3.0},
	}

	for _, p := range params {
		grid, err := gen.Generate(ChunkCoord{X: -3, Y: 7}, p.octaves, p.roughness, p.scale)
		require.NoError(t, err)
		require.Equal(t, DefaultChunkHeight, grid.Height())
		require.Equal(t, DefaultChunkWidth, grid.Width())

		for _, row := range grid {
			for _, v := range row {
				assert.GreaterOrEqual(t, v, 0.0)
				assert.LessOrEqual(t, v, 1.0)
			}
		}
	}
}

func TestGenerateSumsOctaves(t *testing.T) {
	gen := NewGenerator(4, 3, nil)
	grid, err := gen.Generate(ChunkCoord{X: 1, Y: 2}, 3, 0.5, 0.1)
	require.NoError(t, err)

	s := NewSimplex()
	for row := 0; row < 3; row++ {
		for col := 0; col < 4; col++ {
			x := float64(1*4 + col)
			y := float64(2*3 + row)
			sum := s.Noise2D(x*0.1, y*0.1)*1 +
				s.Noise2D(x*0.2, y*0.2)*0.5 +
				s.Noise2D(x*0.4, y*0.4)*0.25
			want := (sum/1.75 + 1) / 2
			assert.InDelta(t, want, grid[row][col], 1e-12)
		}
	}
}

func TestGenerateInvalidParams(t *testing.T) {
	gen := NewGenerator(8, 8, nil)

	_, err := gen.Generate(ChunkCoord{}, 0, 0.5, 0.1)
	assert.ErrorIs(t, err, ErrInvalidParams)

	_, err = gen.Generate(ChunkCoord{}, 2, 0, 0.1)
	assert.ErrorIs(t, err, ErrInvalidParams)

	_, err = gen.Generate(ChunkCoord{}, 2, 0.5, -1)
	assert.ErrorIs(t, err, ErrInvalidParams)

	for _, v := range []float64{math.Inf(1), math.Inf(-1), math.NaN()} {
		_, err = gen.Generate(ChunkCoord{}, 2, v, 0.1)
		assert.ErrorIs(t, err, ErrInvalidParams, "roughness %v", v)

		_, err = gen.Generate(ChunkCoord{}, 2, 0.5, v)
		assert.ErrorIs(t, err, ErrInvalidParams, "scale %v", v)
	}
}

func TestGenerateAdjacentChunksAreContinuous(t *testing.T) {
	gen := NewGenerator(8, 8, nil)
	left, err := gen.Generate(ChunkCoord{X: 0, Y: 0}, 1, 0.5, 0.05)
	require.NoError(t, err)
	right, err := gen.Generate(ChunkCoord{X: 1, Y: 0}, 1, 0.5, 0.05)
	require.NoError(t, err)

	// The last column of the left chunk and the first of the right chunk
	// are neighbouring world tiles, so they should be close.
	for row := 0; row < 8; row++ {
		assert.InDelta(t, left[row][7], right[row][0], 0.2)
	}
}

func TestIsometricMapper(t *testing.T) {
	m := IsometricMapper{ChunkWidth: 16, ChunkHeight: 16, TileWidth: 2, TileHeight: 1}
	x, y := m.World(ChunkCoord{X: 1, Y: 0}, 0, 0)
	assert.Equal(t, 16.0, x)
	assert.Equal(t, 8.0, y)
}

func TestGridImage(t *testing.T) {
	g := Grid{{0, 1}, {0.5, 0.25}}
	img := g.Image()
	assert.Equal(t, 2, img.Bounds().Dx())
	assert.Equal(t, 2, img.Bounds().Dy())
	assert.Equal(t, uint8(0), img.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(255), img.GrayAt(1, 0).Y)
	assert.Equal(t, uint8(128), img.GrayAt(0, 1).Y)
}
