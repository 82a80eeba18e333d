// Package noise implements 2D simplex noise and multi-octave chunk grids
// for procedural map generation.
package noise

import "math"

// Skew and unskew factors for 2D
var (
	f2 = 0.5 * (math.Sqrt(3.0) - 1.0)
	g2 = (3.0 - math.Sqrt(3.0)) / 6.0
)

// grad3 gradient vectors; only x and y are used in 2D
var grad3 = [12][3]float64{
	{1, 1, 0}, {-1, 1, 0}, {1, -1, 0}, {-1, -1, 0},
	{1, 0, 1}, {-1, 0, 1}, {1, 0, -1}, {-1, 0, -1},
	{0, 1, 1}, {0, -1, 1}, {0, 1, -1}, {0, -1, -1},
}

// basePerm is Ken Perlin's reference permutation of 0..255
var basePerm = [256]int{
	151, 160, 137, 91, 90, 15, 131, 13, 201, 95, 96, 53, 194, 233, 7, 225, 140, 36, 103, 30, 69, 142, 8, 99, 37, 240, 21, 10, 23,
	190, 6, 148, 247, 120, 234, 75, 0, 26, 197, 62, 94, 252, 219, 203, 117, 35, 11, 32, 57, 177, 33,
	88, 237, 149, 56, 87, 174, 20, 125, 136, 171, 168, 68, 175, 74, 165, 71, 134, 139, 48, 27, 166,
	77, 146, 158, 231, 83, 111, 229, 122, 60, 211, 133, 230, 220, 105, 92, 41, 55, 46, 245, 40, 244,
	102, 143, 54, 65, 25, 63, 161, 1, 216, 80, 73, 209, 76, 132, 187, 208, 89, 18, 169, 200, 196,
	135, 130, 116, 188, 159, 86, 164, 100, 109, 198, 173, 186, 3, 64, 52, 217, 226, 250, 124, 123,
	5, 202, 38, 147, 118, 126, 255, 82, 85, 212, 207, 206, 59, 227, 47, 16, 58, 17, 182, 189, 28, 42,
	223, 183, 170, 213, 119, 248, 152, 2, 44, 154, 163, 70, 221, 153, 101, 155, 167, 43, 172, 9,
	129, 22, 39, 253, 19, 98, 108, 110, 79, 113, 224, 232, 178, 185, 112, 104, 218, 246, 97, 228,
	251, 34, 242, 193, 238, 210, 144, 12, 191, 179, 162, 241, 81, 51, 145, 235, 249, 14, 239, 107,
	49, 192, 214, 31, 181, 199, 106, 157, 184, 84, 204, 176, 115, 121, 50, 45, 127, 4, 150, 254,
	138, 236, 205, 93, 222, 114, 67, 29, 24, 72, 243, 141, 128, 195, 78, 66, 215, 61, 156, 180,
}

// Simplex holds the lookup tables for 2D simplex noise. The tables are
// fixed, so every Simplex produces the same field.
type Simplex struct {
	perm      [512]int
	permMod12 [512]int
}

// NewSimplex builds the doubled permutation tables
func NewSimplex() *Simplex {
	s := &Simplex{}
	for i := 0; i < 512; i++ {
		s.perm[i] = basePerm[i&255]
		s.permMod12[i] = s.perm[i] % 12
	}
	return s
}

// fastFloor rounds toward negative infinity
func fastFloor(x float64) int {
	xi := int(x)
	if x < float64(xi) {
		return xi - 1
	}
	return xi
}

func dot(g [3]float64, x, y float64) float64 {
	return g[0]*x + g[1]*y
}

// Noise2D returns simplex noise at (x, y) in the range [-1, 1]
func (s *Simplex) Noise2D(x, y float64) float64 {
	var n0, n1, n2 float64

	// Skew input space to find the simplex cell
	skew := (x + y) * f2
	i := fastFloor(x + skew)
	j := fastFloor(y + skew)
	t := float64(i+j) * g2

	// Distances from the unskewed cell origin
	x0 := x - (float64(i) - t)
	y0 := y - (float64(j) - t)

	// Lower triangle (0,0)->(1,0)->(1,1) or upper (0,0)->(0,1)->(1,1)
	var i1, j1 int
	if x0 > y0 {
		i1, j1 = 1, 0
	} else {
		i1, j1 = 0, 1
	}

	x1 := x0 - float64(i1) + g2
	y1 := y0 - float64(j1) + g2
	x2 := x0 - 1.0 + 2.0*g2
	y2 := y0 - 1.0 + 2.0*g2

	ii := i & 255
	jj := j & 255
	gi0 := s.permMod12[ii+s.perm[jj]]
	gi1 := s.permMod12[ii+i1+s.perm[jj+j1]]
	gi2 := s.permMod12[ii+1+s.perm[jj+1]]

	t0 := 0.5 - x0*x0 - y0*y0
	if t0 >= 0 {
		t0 *= t0
		n0 = t0 * t0 * dot(grad3[gi0], x0, y0)
	}

	t1 := 0.5 - x1*x1 - y1*y1
	if t1 >= 0 {
		t1 *= t1
		n1 = t1 * t1 * dot(grad3[gi1], x1, y1)
	}

	t2 := 0.5 - x2*x2 - y2*y2
	if t2 >= 0 {
		t2 *= t2
		n2 = t2 * t2 * dot(grad3[gi2], x2, y2)
	}

	// Scale the sum into [-1, 1]
	return 70 * (n0 + n1 + n2)
}
