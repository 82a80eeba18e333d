package pipeline

import "sync/atomic"

// DetectorKind names the detector the pipeline runs
type DetectorKind int32

const (
	FaceDetection DetectorKind = iota
)

func (k DetectorKind) String() string {
	switch k {
	case FaceDetection:
		return "face detection"
	}
	return "unknown detector"
}

// Selector holds the current detector. It is written by the UI and read
// once per frame by the worker.
type Selector struct {
	kind atomic.Int32
}

// NewSelector creates a selector set to kind
func NewSelector(kind DetectorKind) *Selector {
	s := &Selector{}
	s.Store(kind)
	return s
}

// Load returns the current kind
func (s *Selector) Load() DetectorKind {
	return DetectorKind(s.kind.Load())
}

// Store sets the current kind
func (s *Selector) Store(kind DetectorKind) {
	s.kind.Store(int32(kind))
}
