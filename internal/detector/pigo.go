package detector

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	pigo "github.com/esimov/pigo/core"

	"github.com/dudu/ruse/internal/geometry"
)

// perturbFact is the perturbation factor used for pupil localization
const perturbFact = 63

// PigoConfig tunes the cascade detector
type PigoConfig struct {
	MinSize      int
	MaxSize      int
	ShiftFactor  float64
	ScaleFactor  float64
	IoUThreshold float64
	// MinQuality drops detections scoring below it
	MinQuality float32
}

// DefaultPigoConfig returns parameters that work for webcam-sized frames
func DefaultPigoConfig() PigoConfig {
	return PigoConfig{
		MinSize:      20,
		MaxSize:      1000,
		ShiftFactor:  0.1,
		ScaleFactor:  1.1,
		IoUThreshold: 0.2,
		MinQuality:   5.0,
	}
}

// Pigo detects faces with a pixel-intensity cascade. When a puploc cascade
// is loaded, pupils are reported as eye landmarks.
type Pigo struct {
	mu         sync.Mutex
	classifier *pigo.Pigo
	puploc     *pigo.PuplocCascade
	cfg        PigoConfig
}

// NewPigo reads and unpacks the face cascade and, if puplocPath is not
// empty, the pupil localization cascade
func NewPigo(cascadePath, puplocPath string, cfg PigoConfig) (*Pigo, error) {
	data, err := os.ReadFile(cascadePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read cascade file: %w", err)
	}

	classifier, err := pigo.NewPigo().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack cascade: %w", err)
	}

	p := &Pigo{classifier: classifier, cfg: cfg}

	if puplocPath != "" {
		data, err := os.ReadFile(puplocPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read puploc cascade: %w", err)
		}
		p.puploc, err = pigo.NewPuplocCascade().UnpackCascade(data)
		if err != nil {
			return nil, fmt.Errorf("failed to unpack puploc cascade: %w", err)
		}
	}

	return p, nil
}

// Process implements Detector
func (p *Pigo) Process(ctx context.Context, img image.Image, handler Handler) {
	process(ctx, img, p.detect, handler)
}

func (p *Pigo) detect(_ context.Context, img image.Image) ([]Face, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	bounds := img.Bounds()
	pixels := pigo.RgbToGrayscale(pigo.ImgToNRGBA(img))

	imgParams := pigo.ImageParams{
		Pixels: pixels,
		Rows:   bounds.Dy(),
		Cols:   bounds.Dx(),
		Dim:    bounds.Dx(),
	}
	cParams := pigo.CascadeParams{
		MinSize:     p.cfg.MinSize,
		MaxSize:     p.cfg.MaxSize,
		ShiftFactor: p.cfg.ShiftFactor,
		ScaleFactor: p.cfg.ScaleFactor,
		ImageParams: imgParams,
	}

	// 0.0 = no rotation
	dets := p.classifier.RunCascade(cParams, 0.0)
	dets = p.classifier.ClusterDetections(dets, p.cfg.IoUThreshold)

	faces := make([]Face, 0, len(dets))
	for _, det := range dets {
		if det.Q < p.cfg.MinQuality {
			continue
		}
		face := Face{
			Frame: pigoFrame(det),
			Score: det.Q,
		}
		if p.puploc != nil {
			face.Landmarks = p.pupils(det, imgParams)
		}
		faces = append(faces, face)
	}

	return faces, nil
}

// pigoFrame converts a detection centre (Row, Col) and window size to a rect
func pigoFrame(det pigo.Detection) geometry.Rect {
	size := float64(det.Scale)
	return geometry.Rect{
		X:      float64(det.Col) - size/2,
		Y:      float64(det.Row) - size/2,
		Width:  size,
		Height: size,
	}
}

func (p *Pigo) pupils(det pigo.Detection, imgParams pigo.ImageParams) map[LandmarkType]geometry.Point {
	landmarks := make(map[LandmarkType]geometry.Point, 2)

	// left and right are from the viewer's point of view
	offsets := []struct {
		kind LandmarkType
		sign int
	}{
		{LandmarkLeftEye, -1},
		{LandmarkRightEye, 1},
	}

	for _, o := range offsets {
		loc := pigo.Puploc{
			Row:      det.Row - int(0.085*float32(det.Scale)),
			Col:      det.Col + o.sign*int(0.185*float32(det.Scale)),
			Scale:    float32(det.Scale) * 0.4,
			Perturbs: perturbFact,
		}
		eye := p.puploc.RunDetector(loc, imgParams, 0.0, false)
		if eye != nil && eye.Row > 0 && eye.Col > 0 {
			landmarks[o.kind] = geometry.Point{X: float64(eye.Col), Y: float64(eye.Row)}
		}
	}
	return landmarks
}

// Close releases detector resources
func (p *Pigo) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.classifier = nil
	p.puploc = nil
	return nil
}
