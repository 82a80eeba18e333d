// Package overlay holds annotation shapes in view space and draws them onto
// frames. An Overlay is owned by the UI goroutine and is not safe for
// concurrent use.
package overlay

import (
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"

	"github.com/dudu/ruse/internal/geometry"
)

const (
	SmallDotRadius = 5.0
	LargeDotRadius = 10.0
	LineWidth      = 3.0
)

var (
	Green  = color.RGBA{G: 255, A: 255}
	Red    = color.RGBA{R: 255, A: 255}
	Yellow = color.RGBA{R: 255, G: 255, A: 255}
	Cyan   = color.RGBA{G: 255, B: 255, A: 255}
	Purple = color.RGBA{R: 128, B: 128, A: 255}
	Orange = color.RGBA{R: 255, G: 128, A: 255}
	Blue   = color.RGBA{B: 255, A: 255}
)

// ShapeKind distinguishes overlay shapes
type ShapeKind string

const (
	KindRectangle ShapeKind = "rectangle"
	KindCircle    ShapeKind = "circle"
)

// Shape is a single annotation. Rectangles use Rect and Width; circles use
// Center and Radius and are filled.
type Shape struct {
	Kind   ShapeKind      `json:"kind"`
	Rect   geometry.Rect  `json:"rect,omitempty"`
	Center geometry.Point `json:"center,omitempty"`
	Radius float64        `json:"radius,omitempty"`
	Width  float64        `json:"width,omitempty"`
	Color  color.RGBA     `json:"color"`
}

// Overlay is an ordered list of shapes
type Overlay struct {
	shapes []Shape
}

// New creates an empty overlay
func New() *Overlay {
	return &Overlay{}
}

// Clear removes every shape
func (o *Overlay) Clear() {
	o.shapes = o.shapes[:0]
}

// AddRectangle outlines r
func (o *Overlay) AddRectangle(r geometry.Rect, c color.RGBA, width float64) {
	o.shapes = append(o.shapes, Shape{Kind: KindRectangle, Rect: r.Standardized(), Width: width, Color: c})
}

// AddCircle adds a filled dot
func (o *Overlay) AddCircle(center geometry.Point, radius float64, c color.RGBA) {
	o.shapes = append(o.shapes, Shape{Kind: KindCircle, Center: center, Radius: radius, Color: c})
}

// Add appends already built shapes
func (o *Overlay) Add(shapes ...Shape) {
	o.shapes = append(o.shapes, shapes...)
}

// Replace swaps the content for shapes
func (o *Overlay) Replace(shapes []Shape) {
	o.Clear()
	o.Add(shapes...)
}

// Len returns the number of shapes
func (o *Overlay) Len() int {
	return len(o.shapes)
}

// Shapes returns a copy of the shapes
func (o *Overlay) Shapes() []Shape {
	return append([]Shape(nil), o.shapes...)
}

// Draw renders every shape onto dst
func (o *Overlay) Draw(dst *gocv.Mat) {
	for _, s := range o.shapes {
		switch s.Kind {
		case KindRectangle:
			gocv.Rectangle(dst, toRectangle(s.Rect), s.Color, max(1, round(s.Width)))
		case KindCircle:
			gocv.Circle(dst, toPoint(s.Center), max(1, round(s.Radius)), s.Color, -1)
		}
	}
}

func toRectangle(r geometry.Rect) image.Rectangle {
	return image.Rect(round(r.X), round(r.Y), round(r.MaxX()), round(r.MaxY()))
}

func toPoint(p geometry.Point) image.Point {
	return image.Pt(round(p.X), round(p.Y))
}

func round(v float64) int {
	return int(math.Round(v))
}
