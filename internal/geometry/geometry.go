package geometry

import "math"

// Point represents a 2D point
type Point struct {
	X, Y float64
}

// Size represents pixel dimensions
type Size struct {
	Width, Height float64
}

// Empty reports whether either dimension is non-positive
func (s Size) Empty() bool {
	return s.Width <= 0 || s.Height <= 0
}

// AspectRatio returns width / height, or 0 for an empty size
func (s Size) AspectRatio() float64 {
	if s.Empty() {
		return 0
	}
	return s.Width / s.Height
}

// Rect is an origin + size rectangle
type Rect struct {
	X, Y          float64
	Width, Height float64
}

// RectFromCorners builds a rectangle from two opposite corners
func RectFromCorners(a, b Point) Rect {
	return Rect{X: a.X, Y: a.Y, Width: b.X - a.X, Height: b.Y - a.Y}.Standardized()
}

// Standardized returns the rectangle with non-negative width and height
func (r Rect) Standardized() Rect {
	if r.Width < 0 {
		r.X += r.Width
		r.Width = -r.Width
	}
	if r.Height < 0 {
		r.Y += r.Height
		r.Height = -r.Height
	}
	return r
}

// MaxX returns the right edge
func (r Rect) MaxX() float64 {
	return r.X + r.Width
}

// MaxY returns the bottom edge
func (r Rect) MaxY() float64 {
	return r.Y + r.Height
}

// Center returns rectangle center point
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Area returns rectangle area
func (r Rect) Area() float64 {
	return r.Width * r.Height
}

// Corners returns the four corners clockwise from the origin
func (r Rect) Corners() [4]Point {
	return [4]Point{
		{X: r.X, Y: r.Y},
		{X: r.MaxX(), Y: r.Y},
		{X: r.MaxX(), Y: r.MaxY()},
		{X: r.X, Y: r.MaxY()},
	}
}

// Inset grows (negative d) or shrinks (positive d) the rectangle on every side
func (r Rect) Inset(dx, dy float64) Rect {
	return Rect{X: r.X + dx, Y: r.Y + dy, Width: r.Width - 2*dx, Height: r.Height - 2*dy}
}

// Intersect returns the overlap of two rectangles, or an empty rectangle
func (r Rect) Intersect(o Rect) Rect {
	x1 := math.Max(r.X, o.X)
	y1 := math.Max(r.Y, o.Y)
	x2 := math.Min(r.MaxX(), o.MaxX())
	y2 := math.Min(r.MaxY(), o.MaxY())
	if x1 >= x2 || y1 >= y2 {
		return Rect{}
	}
	return Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}
