package geometry

// Affine is a 2x3 affine transform:
//
//	x' = A*x + C*y + Tx
//	y' = B*x + D*y + Ty
type Affine struct {
	A, B, C, D float64
	Tx, Ty     float64
}

// Identity returns the identity transform
func Identity() Affine {
	return Affine{A: 1, D: 1}
}

// Translated returns t with a translation applied before it
func (t Affine) Translated(tx, ty float64) Affine {
	t.Tx += t.A*tx + t.C*ty
	t.Ty += t.B*tx + t.D*ty
	return t
}

// Scaled returns t with a scale applied before it
func (t Affine) Scaled(sx, sy float64) Affine {
	t.A *= sx
	t.B *= sx
	t.C *= sy
	t.D *= sy
	return t
}

// ApplyPoint maps p through the transform
func (t Affine) ApplyPoint(p Point) Point {
	return Point{
		X: t.A*p.X + t.C*p.Y + t.Tx,
		Y: t.B*p.X + t.D*p.Y + t.Ty,
	}
}

// ApplyPoints maps every point through the transform
func (t Affine) ApplyPoints(pts []Point) []Point {
	out := make([]Point, len(pts))
	for i, p := range pts {
		out[i] = t.ApplyPoint(p)
	}
	return out
}

// ApplyRect returns the standardized bounding box of the transformed rectangle
func (t Affine) ApplyRect(r Rect) Rect {
	c := r.Corners()
	p := t.ApplyPoint(c[0])
	minX, minY, maxX, maxY := p.X, p.Y, p.X, p.Y
	for _, corner := range c[1:] {
		p = t.ApplyPoint(corner)
		minX = min(minX, p.X)
		minY = min(minY, p.Y)
		maxX = max(maxX, p.X)
		maxY = max(maxY, p.Y)
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Determinant of the linear part
func (t Affine) Determinant() float64 {
	return t.A*t.D - t.B*t.C
}

// Invert returns the inverse transform. A singular transform yields identity.
func (t Affine) Invert() Affine {
	det := t.Determinant()
	if det == 0 {
		return Identity()
	}
	inv := Affine{
		A: t.D / det,
		B: -t.B / det,
		C: -t.C / det,
		D: t.A / det,
	}
	inv.Tx = -(inv.A*t.Tx + inv.C*t.Ty)
	inv.Ty = -(inv.B*t.Tx + inv.D*t.Ty)
	return inv
}

// FitScale returns the uniform scale that fits src inside dst
// while preserving aspect ratio
func FitScale(src, dst Size) float64 {
	if src.Empty() || dst.Empty() {
		return 1
	}
	if dst.AspectRatio() > src.AspectRatio() {
		return dst.Height / src.Height
	}
	return dst.Width / src.Width
}

// FitTransform maps image pixel space onto a view that renders the image
// aspect-fit and centered. It is derived from the current sizes on every
// call; view bounds can change between frames.
func FitTransform(src, dst Size) Affine {
	if src.Empty() || dst.Empty() {
		return Identity()
	}
	scale := FitScale(src, dst)
	xOffset := (dst.Width - src.Width*scale) / 2
	yOffset := (dst.Height - src.Height*scale) / 2
	return Identity().Translated(xOffset, yOffset).Scaled(scale, scale)
}
