package detector

import (
	"github.com/dudu/ruse/internal/geometry"
)

// ContourType names a point-set outlining a facial feature
type ContourType int

const (
	ContourFace ContourType = iota
	ContourLeftEyebrowTop
	ContourLeftEyebrowBottom
	ContourRightEyebrowTop
	ContourRightEyebrowBottom
	ContourLeftEye
	ContourRightEye
	ContourUpperLipTop
	ContourUpperLipBottom
	ContourLowerLipTop
	ContourLowerLipBottom
	ContourNoseBridge
	ContourNoseBottom
)

// AllContours lists contour types in drawing order
var AllContours = []ContourType{
	ContourFace,
	ContourLeftEyebrowTop, ContourLeftEyebrowBottom,
	ContourRightEyebrowTop, ContourRightEyebrowBottom,
	ContourLeftEye, ContourRightEye,
	ContourUpperLipTop, ContourUpperLipBottom,
	ContourLowerLipTop, ContourLowerLipBottom,
	ContourNoseBridge, ContourNoseBottom,
}

func (c ContourType) String() string {
	switch c {
	case ContourFace:
		return "face"
	case ContourLeftEyebrowTop:
		return "left_eyebrow_top"
	case ContourLeftEyebrowBottom:
		return "left_eyebrow_bottom"
	case ContourRightEyebrowTop:
		return "right_eyebrow_top"
	case ContourRightEyebrowBottom:
		return "right_eyebrow_bottom"
	case ContourLeftEye:
		return "left_eye"
	case ContourRightEye:
		return "right_eye"
	case ContourUpperLipTop:
		return "upper_lip_top"
	case ContourUpperLipBottom:
		return "upper_lip_bottom"
	case ContourLowerLipTop:
		return "lower_lip_top"
	case ContourLowerLipBottom:
		return "lower_lip_bottom"
	case ContourNoseBridge:
		return "nose_bridge"
	case ContourNoseBottom:
		return "nose_bottom"
	}
	return "unknown"
}

// LandmarkType names a single-point facial feature
type LandmarkType int

const (
	LandmarkMouthBottom LandmarkType = iota
	LandmarkMouthLeft
	LandmarkMouthRight
	LandmarkNoseBase
	LandmarkLeftEye
	LandmarkRightEye
	LandmarkLeftEar
	LandmarkRightEar
	LandmarkLeftCheek
	LandmarkRightCheek
)

// AllLandmarks lists landmark types in drawing order
var AllLandmarks = []LandmarkType{
	LandmarkMouthBottom, LandmarkMouthLeft, LandmarkMouthRight,
	LandmarkNoseBase,
	LandmarkLeftEye, LandmarkRightEye,
	LandmarkLeftEar, LandmarkRightEar,
	LandmarkLeftCheek, LandmarkRightCheek,
}

func (l LandmarkType) String() string {
	switch l {
	case LandmarkMouthBottom:
		return "mouth_bottom"
	case LandmarkMouthLeft:
		return "mouth_left"
	case LandmarkMouthRight:
		return "mouth_right"
	case LandmarkNoseBase:
		return "nose_base"
	case LandmarkLeftEye:
		return "left_eye"
	case LandmarkRightEye:
		return "right_eye"
	case LandmarkLeftEar:
		return "left_ear"
	case LandmarkRightEar:
		return "right_ear"
	case LandmarkLeftCheek:
		return "left_cheek"
	case LandmarkRightCheek:
		return "right_cheek"
	}
	return "unknown"
}

// HeadPose holds Euler angles in degrees
type HeadPose struct {
	X, Y, Z float64
}

// Face represents a detected face in source image pixel space.
// Optional fields are nil when the detector does not produce them.
type Face struct {
	Frame     geometry.Rect
	Contours  map[ContourType][]geometry.Point
	Landmarks map[LandmarkType]geometry.Point
	HeadPose  *HeadPose

	LeftEyeOpenProbability  *float32
	RightEyeOpenProbability *float32
	SmilingProbability      *float32

	Score float32
}

// Landmark returns the named landmark if present
func (f Face) Landmark(t LandmarkType) (geometry.Point, bool) {
	p, ok := f.Landmarks[t]
	return p, ok
}

// Contour returns the named contour if present
func (f Face) Contour(t ContourType) ([]geometry.Point, bool) {
	pts, ok := f.Contours[t]
	return pts, ok && len(pts) > 0
}
