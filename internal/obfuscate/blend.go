package obfuscate

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/dudu/ruse/internal/detector"
	"github.com/dudu/ruse/internal/geometry"
)

// Blender pastes styled patches back into a frame through a feathered
// elliptical mask
type Blender struct {
	erosionKernel gocv.Mat
	blurSize      int
}

// NewBlender creates a new blender. blurSize is forced odd.
func NewBlender(blurSize int) *Blender {
	if blurSize < 1 {
		blurSize = 1
	}
	if blurSize%2 == 0 {
		blurSize++
	}
	return &Blender{
		erosionKernel: gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(3, 3)),
		blurSize:      blurSize,
	}
}

// BlendRegion blends patch (same size as region) into frame at region.
// The mask ellipse follows the face: centred on its landmarks when present,
// otherwise on its frame.
func (b *Blender) BlendRegion(frame *gocv.Mat, patch gocv.Mat, region image.Rectangle, face detector.Face) {
	mask := b.createEllipseMask(region, face)
	defer mask.Close()

	soft := b.softenMask(mask)
	defer soft.Close()

	roi := frame.Region(region)
	defer roi.Close()

	blended := alphaBlend(patch, roi, soft)
	defer blended.Close()
	blended.CopyTo(&roi)
}

// createEllipseMask draws the face ellipse in region-local coordinates
func (b *Blender) createEllipseMask(region image.Rectangle, face detector.Face) gocv.Mat {
	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), region.Dy(), region.Dx(), gocv.MatTypeCV8U)

	center := face.Frame.Center()
	if c, ok := landmarkCenter(face); ok {
		center = c
	}
	axes := image.Pt(int(face.Frame.Width/2), int(face.Frame.Height/2))
	if axes.X < 1 || axes.Y < 1 {
		axes = image.Pt(region.Dx()/2, region.Dy()/2)
	}

	gocv.Ellipse(&mask,
		image.Pt(int(center.X)-region.Min.X, int(center.Y)-region.Min.Y),
		axes,
		0, 0, 360,
		color.RGBA{R: 255, G: 255, B: 255, A: 255},
		-1,
	)

	return mask
}

// landmarkCenter averages the five-point landmarks
func landmarkCenter(face detector.Face) (geometry.Point, bool) {
	kinds := []detector.LandmarkType{
		detector.LandmarkLeftEye, detector.LandmarkRightEye, detector.LandmarkNoseBase,
		detector.LandmarkMouthLeft, detector.LandmarkMouthRight,
	}
	var sum geometry.Point
	n := 0
	for _, k := range kinds {
		if p, ok := face.Landmark(k); ok {
			sum.X += p.X
			sum.Y += p.Y
			n++
		}
	}
	if n < len(kinds) {
		return geometry.Point{}, false
	}
	return geometry.Point{X: sum.X / float64(n), Y: sum.Y / float64(n)}, true
}

// softenMask applies erosion and blur to create soft edges
func (b *Blender) softenMask(mask gocv.Mat) gocv.Mat {
	eroded := gocv.NewMat()
	defer eroded.Close()
	gocv.Erode(mask, &eroded, b.erosionKernel)

	blurred := gocv.NewMat()
	gocv.GaussianBlur(eroded, &blurred, image.Pt(b.blurSize, b.blurSize), 0, 0, gocv.BorderDefault)
	return blurred
}

// alphaBlend returns fg*m + bg*(1-m) with m = mask/255. fg and bg are
// 8-bit 3-channel Mats of the mask's size.
func alphaBlend(fg, bg, mask gocv.Mat) gocv.Mat {
	fgC, bgC, maskC := fg.Clone(), bg.Clone(), mask.Clone()
	defer fgC.Close()
	defer bgC.Close()
	defer maskC.Close()

	f, bgb, m := fgC.ToBytes(), bgC.ToBytes(), maskC.ToBytes()
	out := make([]byte, len(bgb))
	for i := range m {
		a := uint32(m[i])
		for c := 0; c < 3; c++ {
			j := i*3 + c
			out[j] = uint8((uint32(f[j])*a + uint32(bgb[j])*(255-a) + 127) / 255)
		}
	}

	result, err := gocv.NewMatFromBytes(bg.Rows(), bg.Cols(), gocv.MatTypeCV8UC3, out)
	if err != nil {
		return bg.Clone()
	}
	return result
}

// MatchColors shifts patch colour statistics towards reference in Lab space
func (b *Blender) MatchColors(patch *gocv.Mat, reference gocv.Mat) {
	sourceLab := gocv.NewMat()
	defer sourceLab.Close()
	targetLab := gocv.NewMat()
	defer targetLab.Close()

	gocv.CvtColor(*patch, &sourceLab, gocv.ColorBGRToLab)
	gocv.CvtColor(reference, &targetLab, gocv.ColorBGRToLab)

	sourceMean := gocv.NewMat()
	defer sourceMean.Close()
	sourceStd := gocv.NewMat()
	defer sourceStd.Close()
	targetMean := gocv.NewMat()
	defer targetMean.Close()
	targetStd := gocv.NewMat()
	defer targetStd.Close()

	gocv.MeanStdDev(sourceLab, &sourceMean, &sourceStd)
	gocv.MeanStdDev(targetLab, &targetMean, &targetStd)

	sourceFloat := gocv.NewMat()
	defer sourceFloat.Close()
	sourceLab.ConvertTo(&sourceFloat, gocv.MatTypeCV32FC3)

	channels := gocv.Split(sourceFloat)
	result := make([]gocv.Mat, len(channels))
	for i := range channels {
		defer channels[i].Close()
		result[i] = gocv.NewMat()
		defer result[i].Close()

		srcStd := max(sourceStd.GetDoubleAt(i, 0), 1e-6)
		scale := targetStd.GetDoubleAt(i, 0) / srcStd
		offset := targetMean.GetDoubleAt(i, 0) - sourceMean.GetDoubleAt(i, 0)*scale

		gocv.AddWeighted(channels[i], scale, channels[i], 0, offset, &result[i])
	}

	merged := gocv.NewMat()
	defer merged.Close()
	gocv.Merge(result, &merged)

	lab := gocv.NewMat()
	defer lab.Close()
	merged.ConvertTo(&lab, gocv.MatTypeCV8UC3)

	gocv.CvtColor(lab, patch, gocv.ColorLabToBGR)
}

// Close releases blender resources
func (b *Blender) Close() {
	b.erosionKernel.Close()
}
