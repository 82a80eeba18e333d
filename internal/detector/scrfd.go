package detector

import (
	"context"
	"fmt"
	"image"
	"math"
	"sync"

	"gocv.io/x/gocv"

	"github.com/dudu/ruse/internal/geometry"
	"github.com/dudu/ruse/internal/inference"
)

// SCRFDModel describes the SCRFD graph: one input and 9 outputs
// (3 levels × score, bbox, kps)
var SCRFDModel = inference.ModelSpec{
	Name:   "scrfd_10g",
	Inputs: []string{"input.1"},
	Outputs: []string{
		"score_8", "score_16", "score_32",
		"bbox_8", "bbox_16", "bbox_32",
		"kps_8", "kps_16", "kps_32",
	},
}

// SCRFDConfig tunes the SCRFD detector
type SCRFDConfig struct {
	InputSize     int
	ConfThreshold float32
	NMSThreshold  float32
}

// SCRFD implements the SCRFD face detector. Its five keypoints are reported
// as the eye, nose base and mouth corner landmarks.
type SCRFD struct {
	mu             sync.Mutex
	interp         inference.Interpreter
	contours       *Contourer
	inputSize      int
	confThreshold  float32
	nmsThreshold   float32
	featureStrides []int
	numAnchors     int
}

// NewSCRFD loads the SCRFD model from modelPath through ONNX Runtime
func NewSCRFD(modelPath string, cfg SCRFDConfig, opts inference.Options) (*SCRFD, error) {
	interp, err := inference.NewONNXInterpreter(modelPath, SCRFDModel.Inputs, SCRFDModel.Outputs, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create SCRFD session: %w", err)
	}
	return NewSCRFDWithInterpreter(interp, cfg), nil
}

// NewSCRFDWithInterpreter wraps an already loaded interpreter
func NewSCRFDWithInterpreter(interp inference.Interpreter, cfg SCRFDConfig) *SCRFD {
	if cfg.InputSize <= 0 {
		cfg.InputSize = 640
	}
	return &SCRFD{
		interp:         interp,
		inputSize:      cfg.InputSize,
		confThreshold:  cfg.ConfThreshold,
		nmsThreshold:   cfg.NMSThreshold,
		featureStrides: []int{8, 16, 32},
		numAnchors:     2, // anchors per position
	}
}

// WithContours attaches a 106-point contour model. Faces then carry contours.
func (s *SCRFD) WithContours(c *Contourer) *SCRFD {
	s.contours = c
	return s
}

// Process implements Detector
func (s *SCRFD) Process(ctx context.Context, img image.Image, handler Handler) {
	process(ctx, img, s.detect, handler)
}

func (s *SCRFD) detect(_ context.Context, src image.Image) ([]Face, error) {
	img, err := gocv.ImageToMatRGB(src)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer img.Close()

	return s.DetectMat(img)
}

// DetectMat finds faces in a BGR Mat
func (s *SCRFD) DetectMat(img gocv.Mat) ([]Face, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	origHeight := img.Rows()
	origWidth := img.Cols()
	if origWidth == 0 || origHeight == 0 {
		return nil, fmt.Errorf("empty image")
	}

	input, scale, err := s.preprocess(img)
	if err != nil {
		return nil, err
	}

	outputs := make([]inference.Tensor, 9)
	for i, stride := range s.featureStrides {
		fm := s.inputSize / stride
		anchors := int64(fm * fm * s.numAnchors)
		outputs[i] = inference.NewTensor(anchors, 1)
		outputs[i+3] = inference.NewTensor(anchors, 4)
		outputs[i+6] = inference.NewTensor(anchors, 10)
	}

	if err := s.interp.Run([]inference.Tensor{input}, outputs); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	faces := s.postprocess(outputs, scale, origWidth, origHeight)
	faces = nms(faces, float64(s.nmsThreshold))

	if s.contours != nil {
		for i := range faces {
			if err := s.contours.Detect(img, &faces[i]); err != nil {
				return nil, err
			}
		}
	}

	return faces, nil
}

// preprocess letterboxes the image into the top-left of an inputSize square
// and normalizes to NCHW (x - 127.5) / 128
func (s *SCRFD) preprocess(img gocv.Mat) (inference.Tensor, float32, error) {
	scale := float32(s.inputSize) / float32(max(img.Rows(), img.Cols()))

	newWidth := int(float32(img.Cols()) * scale)
	newHeight := int(float32(img.Rows()) * scale)

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(img, &resized, image.Pt(newWidth, newHeight), 0, 0, gocv.InterpolationLinear)

	padded := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), s.inputSize, s.inputSize, gocv.MatTypeCV8UC3)
	defer padded.Close()

	roi := padded.Region(image.Rect(0, 0, newWidth, newHeight))
	resized.CopyTo(&roi)
	roi.Close()

	blob := gocv.BlobFromImage(padded, 1.0/128.0, image.Pt(s.inputSize, s.inputSize),
		gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	data, err := blob.DataPtrFloat32()
	if err != nil {
		return inference.Tensor{}, 0, fmt.Errorf("failed to read blob: %w", err)
	}

	input := inference.NewTensor(1, 3, int64(s.inputSize), int64(s.inputSize))
	copy(input.Data, data)
	return input, scale, nil
}

// postprocess decodes model outputs to faces in source pixel space
func (s *SCRFD) postprocess(outputs []inference.Tensor, scale float32, origWidth, origHeight int) []Face {
	var faces []Face

	for level, stride := range s.featureStrides {
		fmSize := s.inputSize / stride
		st := float32(stride)

		scoreData := outputs[level].Data
		bboxData := outputs[level+3].Data
		kpsData := outputs[level+6].Data

		anchorIdx := 0
		for y := 0; y < fmSize; y++ {
			for x := 0; x < fmSize; x++ {
				for a := 0; a < s.numAnchors; a++ {
					score := sigmoid(scoreData[anchorIdx])
					if score <= s.confThreshold {
						anchorIdx++
						continue
					}

					// Anchor center
					cx := (float32(x) + 0.5) * st
					cy := (float32(y) + 0.5) * st

					// Decode bbox (distance to edges)
					b := bboxData[anchorIdx*4:]
					x1 := clamp((cx-b[0]*st)/scale, 0, float32(origWidth))
					y1 := clamp((cy-b[1]*st)/scale, 0, float32(origHeight))
					x2 := clamp((cx+b[2]*st)/scale, 0, float32(origWidth))
					y2 := clamp((cy+b[3]*st)/scale, 0, float32(origHeight))

					k := kpsData[anchorIdx*10:]
					kp := func(i int) geometry.Point {
						return geometry.Point{
							X: float64((cx + k[i*2]*st) / scale),
							Y: float64((cy + k[i*2+1]*st) / scale),
						}
					}

					faces = append(faces, Face{
						Frame: geometry.RectFromCorners(
							geometry.Point{X: float64(x1), Y: float64(y1)},
							geometry.Point{X: float64(x2), Y: float64(y2)},
						),
						Landmarks: map[LandmarkType]geometry.Point{
							LandmarkLeftEye:    kp(0),
							LandmarkRightEye:   kp(1),
							LandmarkNoseBase:   kp(2),
							LandmarkMouthLeft:  kp(3),
							LandmarkMouthRight: kp(4),
						},
						Score: score,
					})
					anchorIdx++
				}
			}
		}
	}

	return faces
}

// Close releases detector resources
func (s *SCRFD) Close() error {
	if s.contours != nil {
		s.contours.Close()
	}
	return s.interp.Close()
}

func sigmoid(x float32) float32 {
	return 1.0 / (1.0 + float32(math.Exp(float64(-x))))
}

func clamp(x, lo, hi float32) float32 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
