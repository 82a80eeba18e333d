package detector

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/dudu/ruse/internal/geometry"
	"github.com/dudu/ruse/internal/inference"
)

// ContourModel is insightface's 2d106det graph
var ContourModel = inference.ModelSpec{
	Name:    "2d106det",
	Inputs:  []string{"data"},
	Outputs: []string{"fc1"},
}

const contourPoints = 106

// contourIndices maps the 106-point layout onto contour types
var contourIndices = map[ContourType][]int{
	ContourFace:               seq(0, 32),
	ContourLeftEyebrowTop:     {43, 48, 49, 51, 50},
	ContourLeftEyebrowBottom:  {43, 44, 45, 47, 46},
	ContourRightEyebrowTop:    {101, 105, 104, 103, 102},
	ContourRightEyebrowBottom: {101, 100, 99, 98, 97},
	ContourLeftEye:            seq(33, 42),
	ContourRightEye:           seq(87, 96),
	ContourUpperLipTop:        {52, 64, 63, 71, 67, 68, 61},
	ContourUpperLipBottom:     {52, 55, 56, 53, 59, 58, 61},
	ContourLowerLipTop:        {52, 65, 54, 60, 57, 69, 61},
	ContourLowerLipBottom:     {52, 66, 62, 70, 61},
	ContourNoseBridge:         {72, 73, 74, 86},
	ContourNoseBottom:         {77, 78, 79, 80, 85, 84, 83, 82, 81},
}

func seq(from, to int) []int {
	out := make([]int, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

// Contourer fills Face.Contours from a 106-point landmark model
type Contourer struct {
	interp    inference.Interpreter
	inputSize int
	inputMean float64
	inputStd  float64
}

// NewContourer loads the 2d106det model through ONNX Runtime
func NewContourer(modelPath string, opts inference.Options) (*Contourer, error) {
	interp, err := inference.NewONNXInterpreter(modelPath, ContourModel.Inputs, ContourModel.Outputs, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create landmark session: %w", err)
	}
	return NewContourerWithInterpreter(interp), nil
}

// NewContourerWithInterpreter wraps an already loaded interpreter
func NewContourerWithInterpreter(interp inference.Interpreter) *Contourer {
	return &Contourer{
		interp:    interp,
		inputSize: 192,
		inputMean: 127.5,
		inputStd:  128.0,
	}
}

// Detect runs the landmark model on the face crop and sets face.Contours
func (c *Contourer) Detect(img gocv.Mat, face *Face) error {
	frame := face.Frame
	if frame.Width <= 0 || frame.Height <= 0 {
		return nil
	}
	center := frame.Center()

	// 1.5x expansion like insightface
	scale := float64(c.inputSize) / (max(frame.Width, frame.Height) * 1.5)

	m := c.cropMatrix(center, scale)
	defer m.Close()

	aligned := gocv.NewMat()
	defer aligned.Close()
	gocv.WarpAffine(img, &aligned, m, image.Pt(c.inputSize, c.inputSize))

	blob := gocv.BlobFromImage(aligned, 1.0/c.inputStd, image.Pt(c.inputSize, c.inputSize),
		gocv.NewScalar(c.inputMean, c.inputMean, c.inputMean, 0), true, false)
	defer blob.Close()

	data, err := blob.DataPtrFloat32()
	if err != nil {
		return fmt.Errorf("failed to read blob: %w", err)
	}

	input := inference.NewTensor(1, 3, int64(c.inputSize), int64(c.inputSize))
	copy(input.Data, data)
	output := inference.NewTensor(1, contourPoints*2)

	if err := c.interp.Run([]inference.Tensor{input}, []inference.Tensor{output}); err != nil {
		return fmt.Errorf("landmark inference failed: %w", err)
	}

	face.Contours = c.contours(c.postprocess(output.Data, center, scale))
	return nil
}

// cropMatrix scales around the face center into the model input square
func (c *Contourer) cropMatrix(center geometry.Point, scale float64) gocv.Mat {
	half := float64(c.inputSize) / 2

	m := gocv.NewMatWithSize(2, 3, gocv.MatTypeCV64F)
	m.SetDoubleAt(0, 0, scale)
	m.SetDoubleAt(0, 1, 0)
	m.SetDoubleAt(0, 2, half-center.X*scale)
	m.SetDoubleAt(1, 0, 0)
	m.SetDoubleAt(1, 1, scale)
	m.SetDoubleAt(1, 2, half-center.Y*scale)
	return m
}

// postprocess maps model output in [-1, 1] back to source coordinates
func (c *Contourer) postprocess(output []float32, center geometry.Point, scale float64) []geometry.Point {
	half := float64(c.inputSize) / 2
	toSource := geometry.Identity().
		Translated(center.X, center.Y).
		Scaled(1/scale, 1/scale)

	points := make([]geometry.Point, contourPoints)
	for i := range points {
		// model space centred on the crop
		p := geometry.Point{
			X: float64(output[i*2]) * half,
			Y: float64(output[i*2+1]) * half,
		}
		points[i] = toSource.ApplyPoint(p)
	}
	return points
}

func (c *Contourer) contours(points []geometry.Point) map[ContourType][]geometry.Point {
	out := make(map[ContourType][]geometry.Point, len(contourIndices))
	for kind, indices := range contourIndices {
		pts := make([]geometry.Point, 0, len(indices))
		for _, idx := range indices {
			if idx < len(points) {
				pts = append(pts, points[idx])
			}
		}
		out[kind] = pts
	}
	return out
}

// Close releases detector resources
func (c *Contourer) Close() error {
	return c.interp.Close()
}
