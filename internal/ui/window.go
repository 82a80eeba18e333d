package ui

import (
	"fmt"
	"image"
	"image/color"
	"strings"
	"time"

	"gocv.io/x/gocv"

	"github.com/dudu/ruse/internal/overlay"
)

const (
	KeyEsc = 27
	KeyQ   = 'q'
)

var textColor = color.RGBA{R: 0, G: 255, B: 0, A: 255}

// Window manages the preview display
type Window struct {
	window     *gocv.Window
	name       string
	lastFrame  time.Time
	frameCount int
	fps        float64
}

// NewWindow creates a new preview window
func NewWindow(name string, width, height int) *Window {
	window := gocv.NewWindow(name)
	// Force window to appear on macOS
	window.ResizeWindow(width, height)
	window.MoveWindow(100, 100)
	return &Window{
		window:    window,
		name:      name,
		lastFrame: time.Now(),
	}
}

// Show draws the overlay, the status lines and the FPS counter onto frame
// and displays it. Must be called from the UI goroutine.
func (w *Window) Show(frame *gocv.Mat, o *overlay.Overlay, status string) {
	w.frameCount++
	now := time.Now()

	// Calculate FPS every second
	elapsed := now.Sub(w.lastFrame)
	if elapsed >= time.Second {
		w.fps = float64(w.frameCount) / elapsed.Seconds()
		w.frameCount = 0
		w.lastFrame = now
	}

	if o != nil {
		o.Draw(frame)
	}

	gocv.PutText(frame, fmt.Sprintf("FPS: %.1f", w.fps), image.Pt(10, 30),
		gocv.FontHersheyPlain, 2, textColor, 2)

	for i, line := range strings.Split(status, "\n") {
		if line == "" {
			continue
		}
		gocv.PutText(frame, line, image.Pt(10, 60+i*18),
			gocv.FontHersheyPlain, 1.1, textColor, 1)
	}

	w.window.IMShow(*frame)
}

// WaitKey waits for key press, returns key code or -1
func (w *Window) WaitKey(delayMs int) int {
	return w.window.WaitKey(delayMs)
}

// IsQuit reports whether key closes the preview
func IsQuit(key int) bool {
	return key == KeyEsc || key == KeyQ
}

// FPS returns current frames per second
func (w *Window) FPS() float64 {
	return w.fps
}

// Close closes the window
func (w *Window) Close() error {
	if w.window != nil {
		return w.window.Close()
	}
	return nil
}
