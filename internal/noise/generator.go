package noise

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
)

// ErrInvalidParams is returned for octaves < 1 or roughness/scale that are
// not positive finite numbers
var ErrInvalidParams = errors.New("invalid noise parameters")

// Default chunk dimensions in tiles
const (
	DefaultChunkWidth  = 32
	DefaultChunkHeight = 32
)

// ChunkCoord addresses a chunk in the map
type ChunkCoord struct {
	X, Y int
}

// Grid is a Height x Width array of values in [0, 1], indexed [row][col]
type Grid [][]float64

// Width returns the number of columns
func (g Grid) Width() int {
	if len(g) == 0 {
		return 0
	}
	return len(g[0])
}

// Height returns the number of rows
func (g Grid) Height() int {
	return len(g)
}

// Image renders the grid as 8-bit grayscale
func (g Grid) Image() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, g.Width(), g.Height()))
	for row := range g {
		for col, v := range g[row] {
			img.SetGray(col, row, color.Gray{Y: uint8(v*255 + 0.5)})
		}
	}
	return img
}

// Generator produces multi-octave noise grids for map chunks
type Generator struct {
	simplex *Simplex
	mapper  ChunkMapper
	width   int
	height  int
}

// NewGenerator creates a generator for chunks of width x height tiles.
// A nil mapper uses GridMapper for the same dimensions.
func NewGenerator(width, height int, mapper ChunkMapper) *Generator {
	if mapper == nil {
		mapper = GridMapper{ChunkWidth: width, ChunkHeight: height}
	}
	return &Generator{
		simplex: NewSimplex(),
		mapper:  mapper,
		width:   width,
		height:  height,
	}
}

// Noise2D samples the underlying simplex field
func (g *Generator) Noise2D(x, y float64) float64 {
	return g.simplex.Noise2D(x, y)
}

// Generate sums octaves of noise over the chunk: frequency starts at scale
// and doubles each octave, weight starts at 1 and is multiplied by roughness.
// The sum is normalized by the total weight and remapped from [-1,1] to [0,1].
func (g *Generator) Generate(chunk ChunkCoord, octaves int, roughness, scale float64) (Grid, error) {
	if octaves < 1 || !positiveFinite(roughness) || !positiveFinite(scale) {
		return nil, fmt.Errorf("%w: octaves=%d roughness=%g scale=%g", ErrInvalidParams, octaves, roughness, scale)
	}
	if g.width <= 0 || g.height <= 0 {
		return nil, fmt.Errorf("%w: chunk size %dx%d", ErrInvalidParams, g.width, g.height)
	}

	grid := make(Grid, g.height)
	for row := range grid {
		grid[row] = make([]float64, g.width)
	}

	// World coordinates do not depend on the octave
	world := make([][2]float64, g.width*g.height)
	for row := 0; row < g.height; row++ {
		for col := 0; col < g.width; col++ {
			x, y := g.mapper.World(chunk, col, row)
			world[row*g.width+col] = [2]float64{x, y}
		}
	}

	frequency := scale
	weight := 1.0
	weightSum := 0.0

	for o := 0; o < octaves; o++ {
		for row := 0; row < g.height; row++ {
			for col := 0; col < g.width; col++ {
				w := world[row*g.width+col]
				grid[row][col] += g.simplex.Noise2D(w[0]*frequency, w[1]*frequency) * weight
			}
		}
		frequency *= 2
		weightSum += weight
		weight *= roughness
	}

	for row := range grid {
		for col := range grid[row] {
			v := (grid[row][col]/weightSum + 1) / 2
			grid[row][col] = clamp01(v)
		}
	}

	return grid, nil
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}

// clamp01 absorbs floating point drift at the interval ends
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
