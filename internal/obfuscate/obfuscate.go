// Package obfuscate restyles detected faces so they are no longer
// recognisable while the rest of the frame is kept.
package obfuscate

import (
	"errors"
	"fmt"
	"image"
	"time"

	"gocv.io/x/gocv"

	"github.com/dudu/ruse/internal/detector"
	"github.com/dudu/ruse/internal/geometry"
	"github.com/dudu/ruse/internal/log"
	"github.com/dudu/ruse/internal/styletransfer"
)

// Stylizer restyles an in-memory image
type Stylizer interface {
	ExecuteImage(content image.Image, req styletransfer.Request) styletransfer.Result
}

// Config tunes obfuscation
type Config struct {
	// Padding grows each face box by this fraction on every side
	Padding  float64
	BlurSize int
	// MatchColors keeps the patch close to the original skin tones
	MatchColors bool
	Request     styletransfer.Request
}

// Report summarizes one Apply call
type Report struct {
	Regions  int
	Timings  []styletransfer.Timing
	Duration time.Duration
}

// Obfuscator styles face regions and blends them back into frames
type Obfuscator struct {
	stylizer Stylizer
	blender  *Blender
	cfg      Config
}

// New creates an obfuscator
func New(stylizer Stylizer, cfg Config) *Obfuscator {
	return &Obfuscator{
		stylizer: stylizer,
		blender:  NewBlender(cfg.BlurSize),
		cfg:      cfg,
	}
}

// Apply restyles each face in frame in place. With no faces the whole
// frame is restyled.
func (o *Obfuscator) Apply(frame *gocv.Mat, faces []detector.Face) (Report, error) {
	start := time.Now()
	var report Report

	if frame.Empty() {
		return report, errors.New("empty frame")
	}
	bounds := image.Rect(0, 0, frame.Cols(), frame.Rows())

	if len(faces) == 0 {
		timing, err := o.styleWhole(frame)
		if err != nil {
			return report, err
		}
		report.Regions = 1
		report.Timings = append(report.Timings, timing)
		report.Duration = time.Since(start)
		return report, nil
	}

	for i, face := range faces {
		region := PaddedRegion(face.Frame, o.cfg.Padding, bounds)
		if region.Empty() {
			continue
		}

		timing, err := o.styleRegion(frame, region, face)
		if err != nil {
			return report, fmt.Errorf("face %d: %w", i, err)
		}
		report.Regions++
		report.Timings = append(report.Timings, timing)
	}

	report.Duration = time.Since(start)
	log.Debug(log.Fields{
		"faces":   len(faces),
		"regions": report.Regions,
		"ms":      report.Duration.Milliseconds(),
	}, "[obfuscate.Apply] done")
	return report, nil
}

// PaddedRegion grows r by padding on every side and clips it to bounds
func PaddedRegion(r geometry.Rect, padding float64, bounds image.Rectangle) image.Rectangle {
	r = r.Standardized().Inset(-r.Width*padding, -r.Height*padding)
	rect := image.Rect(int(r.X), int(r.Y), int(r.MaxX()+0.5), int(r.MaxY()+0.5))
	return rect.Intersect(bounds)
}

func (o *Obfuscator) styleRegion(frame *gocv.Mat, region image.Rectangle, face detector.Face) (styletransfer.Timing, error) {
	roi := frame.Region(region)
	crop := roi.Clone()
	roi.Close()
	defer crop.Close()

	patch, timing, err := o.stylize(crop)
	if err != nil {
		return timing, err
	}
	defer patch.Close()

	if o.cfg.MatchColors {
		o.blender.MatchColors(&patch, crop)
	}
	o.blender.BlendRegion(frame, patch, region, face)
	return timing, nil
}

func (o *Obfuscator) styleWhole(frame *gocv.Mat) (styletransfer.Timing, error) {
	patch, timing, err := o.stylize(*frame)
	if err != nil {
		return timing, err
	}
	defer patch.Close()

	patch.CopyTo(frame)
	return timing, nil
}

// stylize runs the executor on src and returns a BGR patch of src's size
func (o *Obfuscator) stylize(src gocv.Mat) (gocv.Mat, styletransfer.Timing, error) {
	img, err := src.ToImage()
	if err != nil {
		return gocv.Mat{}, styletransfer.Timing{}, fmt.Errorf("failed to convert region: %w", err)
	}

	res := o.stylizer.ExecuteImage(img, o.cfg.Request)
	if res.Failed() {
		return gocv.Mat{}, res.Timing, fmt.Errorf("style transfer failed: %s", res.ErrorMessage)
	}

	styled, err := gocv.ImageToMatRGB(res.Image)
	if err != nil {
		return gocv.Mat{}, res.Timing, fmt.Errorf("failed to convert styled image: %w", err)
	}
	defer styled.Close()

	patch := gocv.NewMat()
	gocv.Resize(styled, &patch, image.Pt(src.Cols(), src.Rows()), 0, 0, gocv.InterpolationLinear)
	return patch, res.Timing, nil
}

// Close releases obfuscator resources. The stylizer is not closed.
func (o *Obfuscator) Close() {
	o.blender.Close()
}
