package camera

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// ErrNoDevice is returned when no capture device can be opened
var ErrNoDevice = errors.New("no capture device available")

// Source yields BGR frames
type Source interface {
	Read(frame *gocv.Mat) bool
	Width() int
	Height() int
	Close() error
}

// Capture manages webcam capture
type Capture struct {
	webcam    *gocv.VideoCapture
	deviceID  int
	targetFPS int
	width     int
	height    int
	mu        sync.Mutex
}

// NewCapture creates a new camera capture from device with default 720p resolution
func NewCapture(deviceID int, targetFPS int) (*Capture, error) {
	return NewCaptureWithResolution(deviceID, targetFPS, 1280, 720)
}

// NewCaptureWithResolution opens deviceID at the requested resolution. The
// device may pick a different one; Width and Height report the actual size.
func NewCaptureWithResolution(deviceID int, targetFPS int, width, height int) (*Capture, error) {
	webcam, err := gocv.OpenVideoCapture(deviceID)
	if err != nil {
		return nil, fmt.Errorf("%w: camera %d: %v", ErrNoDevice, deviceID, err)
	}
	if !webcam.IsOpened() {
		webcam.Close()
		return nil, fmt.Errorf("%w: camera %d did not open", ErrNoDevice, deviceID)
	}

	webcam.Set(gocv.VideoCaptureFrameWidth, float64(width))
	webcam.Set(gocv.VideoCaptureFrameHeight, float64(height))
	webcam.Set(gocv.VideoCaptureFPS, float64(targetFPS))

	return &Capture{
		webcam:    webcam,
		deviceID:  deviceID,
		targetFPS: targetFPS,
		width:     int(webcam.Get(gocv.VideoCaptureFrameWidth)),
		height:    int(webcam.Get(gocv.VideoCaptureFrameHeight)),
	}, nil
}

// Read captures a frame into the provided Mat
func (c *Capture) Read(frame *gocv.Mat) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.webcam == nil {
		return false
	}

	return c.webcam.Read(frame) && !frame.Empty()
}

// Width returns frame width
func (c *Capture) Width() int {
	return c.width
}

// Height returns frame height
func (c *Capture) Height() int {
	return c.height
}

// Close releases the camera
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.webcam != nil {
		err := c.webcam.Close()
		c.webcam = nil
		return err
	}
	return nil
}

// Still serves the same picture as every frame
type Still struct {
	img gocv.Mat
}

// NewStill loads the picture at path
func NewStill(path string) (*Still, error) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		img.Close()
		return nil, fmt.Errorf("failed to load image: %s", path)
	}
	return &Still{img: img}, nil
}

// Read copies the picture into frame
func (s *Still) Read(frame *gocv.Mat) bool {
	if s.img.Empty() {
		return false
	}
	s.img.CopyTo(frame)
	return true
}

// Width returns the picture width
func (s *Still) Width() int {
	return s.img.Cols()
}

// Height returns the picture height
func (s *Still) Height() int {
	return s.img.Rows()
}

// Close releases the picture
func (s *Still) Close() error {
	return s.img.Close()
}
