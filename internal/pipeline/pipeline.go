package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"
	"time"

	"github.com/dudu/ruse/internal/detector"
	"github.com/dudu/ruse/internal/geometry"
	"github.com/dudu/ruse/internal/overlay"
)

// NoResultsMessage is shown when a detection finds no faces
const NoResultsMessage = "On-Device face detection failed with error: No results returned."

// Timing holds performance timing information
type Timing struct {
	Detection  time.Duration
	Annotation time.Duration
	Total      time.Duration
}

// Outcome is everything the UI needs to redraw after one detection
type Outcome struct {
	Faces       []detector.Face
	Transform   geometry.Affine
	Shapes      []overlay.Shape
	ResultsText string
	Timing      Timing
}

// Pipeline runs the selected detector and maps results into view space.
// It owns its detectors.
type Pipeline struct {
	detectors map[DetectorKind]detector.Detector
	selector  *Selector
}

// New creates a pipeline with det as the face detector
func New(det detector.Detector) *Pipeline {
	return &Pipeline{
		detectors: map[DetectorKind]detector.Detector{FaceDetection: det},
		selector:  NewSelector(FaceDetection),
	}
}

// Selector returns the current-detector flag
func (p *Pipeline) Selector() *Selector {
	return p.selector
}

// DetectImage detects faces in img and builds overlay shapes for a view of
// the given size. Zero faces is not an error: the outcome has no shapes and
// carries NoResultsMessage.
func (p *Pipeline) DetectImage(ctx context.Context, img image.Image, view geometry.Size) (Outcome, error) {
	totalStart := time.Now()
	var out Outcome

	kind := p.selector.Load()
	det, ok := p.detectors[kind]
	if !ok {
		return out, fmt.Errorf("no detector for %s", kind)
	}

	detectStart := time.Now()
	faces, err := detector.Detect(ctx, det, img)
	out.Timing.Detection = time.Since(detectStart)

	if err != nil {
		if errors.Is(err, detector.ErrNoResults) {
			out.ResultsText = NoResultsMessage
			out.Timing.Total = time.Since(totalStart)
			return out, nil
		}
		out.ResultsText = "On-Device face detection failed with error: " + err.Error()
		return out, fmt.Errorf("detection failed: %w", err)
	}

	annotateStart := time.Now()
	b := img.Bounds()
	src := geometry.Size{Width: float64(b.Dx()), Height: float64(b.Dy())}
	transform := geometry.FitTransform(src, view)

	out.Faces = faces
	out.Transform = transform
	for _, face := range faces {
		out.Shapes = append(out.Shapes, Annotate(face, transform)...)
	}
	out.ResultsText = ResultsText(faces)
	out.Timing.Annotation = time.Since(annotateStart)

	out.Timing.Total = time.Since(totalStart)
	return out, nil
}

// Annotate maps one face into view space: a frame rectangle, large dots
// for landmarks and small dots for contour points
func Annotate(face detector.Face, transform geometry.Affine) []overlay.Shape {
	o := overlay.New()
	o.AddRectangle(transform.ApplyRect(face.Frame), overlay.Green, overlay.LineWidth)

	for _, kind := range detector.AllLandmarks {
		p, ok := face.Landmark(kind)
		if !ok {
			continue
		}
		o.AddCircle(transform.ApplyPoint(p), overlay.LargeDotRadius, landmarkColor(kind))
	}

	for _, kind := range detector.AllContours {
		pts, ok := face.Contour(kind)
		if !ok {
			continue
		}
		for _, p := range transform.ApplyPoints(pts) {
			o.AddCircle(p, overlay.SmallDotRadius, overlay.Yellow)
		}
	}

	return o.Shapes()
}

var landmarkColors = map[detector.LandmarkType]color.RGBA{
	detector.LandmarkMouthBottom: overlay.Red,
	detector.LandmarkMouthLeft:   overlay.Red,
	detector.LandmarkMouthRight:  overlay.Red,
	detector.LandmarkNoseBase:    overlay.Yellow,
	detector.LandmarkLeftEye:     overlay.Cyan,
	detector.LandmarkRightEye:    overlay.Cyan,
	detector.LandmarkLeftEar:     overlay.Purple,
	detector.LandmarkRightEar:    overlay.Purple,
	detector.LandmarkLeftCheek:   overlay.Orange,
	detector.LandmarkRightCheek:  overlay.Orange,
}

func landmarkColor(kind detector.LandmarkType) color.RGBA {
	if c, ok := landmarkColors[kind]; ok {
		return c
	}
	return overlay.Blue
}

// ResultsText describes each face, one block per face
func ResultsText(faces []detector.Face) string {
	blocks := make([]string, len(faces))
	for i, face := range faces {
		var pose [3]string
		for j := range pose {
			pose[j] = "NA"
		}
		if face.HeadPose != nil {
			pose[0] = formatFloat(face.HeadPose.X)
			pose[1] = formatFloat(face.HeadPose.Y)
			pose[2] = formatFloat(face.HeadPose.Z)
		}

		f := face.Frame
		blocks[i] = strings.Join([]string{
			fmt.Sprintf("Frame: (%s, %s, %s, %s)", formatFloat(f.X), formatFloat(f.Y), formatFloat(f.Width), formatFloat(f.Height)),
			"Head Euler Angle X: " + pose[0],
			"Head Euler Angle Y: " + pose[1],
			"Head Euler Angle Z: " + pose[2],
			"Left Eye Open Probability: " + formatProbability(face.LeftEyeOpenProbability),
			"Right Eye Open Probability: " + formatProbability(face.RightEyeOpenProbability),
			"Smiling Probability: " + formatProbability(face.SmilingProbability),
		}, "\n")
	}
	return strings.Join(blocks, "\n")
}

func formatProbability(p *float32) string {
	if p == nil {
		return "NA"
	}
	return formatBits(float64(*p), 32)
}

func formatFloat(v float64) string {
	return formatBits(v, 64)
}

func formatBits(v float64, bitSize int) string {
	s := strconv.FormatFloat(v, 'f', -1, bitSize)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// Close releases every detector
func (p *Pipeline) Close() error {
	var errs []error
	for _, det := range p.detectors {
		if det == nil {
			continue
		}
		if err := det.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %v", errs)
	}
	return nil
}
