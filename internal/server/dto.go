package server

import (
	"github.com/dudu/ruse/internal/detector"
	"github.com/dudu/ruse/internal/geometry"
	"github.com/dudu/ruse/internal/overlay"
	"github.com/dudu/ruse/internal/pipeline"
)

// DetectRequest holds optional view dimensions for /v1/detect. Zero means
// the uploaded image's own size.
type DetectRequest struct {
	ViewWidth  int `query:"view_width" validate:"gte=0,lte=8192"`
	ViewHeight int `query:"view_height" validate:"gte=0,lte=8192"`
}

// StylizeRequest is the form accompanying the uploaded content image
type StylizeRequest struct {
	Style string  `form:"style" validate:"required,style_name"`
	Blend float64 `form:"blend" validate:"gte=0,lte=1"`
}

// NoiseRequest selects one chunk of the noise map. Zero octaves,
// roughness or scale fall back to configured defaults.
type NoiseRequest struct {
	X         int     `query:"x"`
	Y         int     `query:"y"`
	Octaves   int     `query:"octaves" validate:"gte=0,lte=16"`
	Roughness float64 `query:"roughness" validate:"gte=0,lte=1000"`
	Scale     float64 `query:"scale" validate:"gte=0,lte=1000"`
	Isometric bool    `query:"iso"`
}

type HeadPoseResponse struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type FaceResponse struct {
	Frame     geometry.Rect               `json:"frame"`
	Landmarks map[string]geometry.Point   `json:"landmarks,omitempty"`
	Contours  map[string][]geometry.Point `json:"contours,omitempty"`
	HeadPose  *HeadPoseResponse           `json:"head_pose,omitempty"`

	LeftEyeOpenProbability  *float32 `json:"left_eye_open_probability,omitempty"`
	RightEyeOpenProbability *float32 `json:"right_eye_open_probability,omitempty"`
	SmilingProbability      *float32 `json:"smiling_probability,omitempty"`

	Score float32 `json:"score"`
}

type TimingResponse struct {
	DetectionMs  int64 `json:"detection_ms"`
	AnnotationMs int64 `json:"annotation_ms"`
	TotalMs      int64 `json:"total_ms"`
}

type DetectResponse struct {
	Faces       []FaceResponse  `json:"faces"`
	Shapes      []overlay.Shape `json:"shapes"`
	ResultsText string          `json:"results_text"`
	Timing      TimingResponse  `json:"timing"`
}

func newDetectResponse(out pipeline.Outcome) DetectResponse {
	resp := DetectResponse{
		Faces:       make([]FaceResponse, 0, len(out.Faces)),
		Shapes:      out.Shapes,
		ResultsText: out.ResultsText,
		Timing: TimingResponse{
			DetectionMs:  out.Timing.Detection.Milliseconds(),
			AnnotationMs: out.Timing.Annotation.Milliseconds(),
			TotalMs:      out.Timing.Total.Milliseconds(),
		},
	}
	if resp.Shapes == nil {
		resp.Shapes = []overlay.Shape{}
	}
	for _, f := range out.Faces {
		resp.Faces = append(resp.Faces, newFaceResponse(f))
	}
	return resp
}

func newFaceResponse(f detector.Face) FaceResponse {
	fr := FaceResponse{
		Frame:                   f.Frame,
		LeftEyeOpenProbability:  f.LeftEyeOpenProbability,
		RightEyeOpenProbability: f.RightEyeOpenProbability,
		SmilingProbability:      f.SmilingProbability,
		Score:                   f.Score,
	}
	if len(f.Landmarks) > 0 {
		fr.Landmarks = make(map[string]geometry.Point, len(f.Landmarks))
		for kind, p := range f.Landmarks {
			fr.Landmarks[kind.String()] = p
		}
	}
	if len(f.Contours) > 0 {
		fr.Contours = make(map[string][]geometry.Point, len(f.Contours))
		for kind, pts := range f.Contours {
			fr.Contours[kind.String()] = pts
		}
	}
	if f.HeadPose != nil {
		fr.HeadPose = &HeadPoseResponse{X: f.HeadPose.X, Y: f.HeadPose.Y, Z: f.HeadPose.Z}
	}
	return fr
}
