package pipeline

import (
	"context"
	"image"
	"sync"
	"sync/atomic"

	"github.com/dudu/ruse/internal/geometry"
	"github.com/dudu/ruse/internal/log"
)

// Frame is one captured image handed to the worker. The image must not be
// mutated after Submit.
type Frame struct {
	Seq   uint64
	Image image.Image
	View  geometry.Size
}

// FrameResult pairs a frame with its detection outcome
type FrameResult struct {
	Seq     uint64
	Outcome Outcome
	Err     error
}

// FrameProcessor runs one detection at a time on a background worker.
// Frames submitted while the worker is busy are dropped, never queued.
// In-flight detections are not cancelled by new frames.
type FrameProcessor struct {
	pipeline *Pipeline
	frames   chan Frame
	results  chan FrameResult

	submitted atomic.Uint64
	dropped   atomic.Uint64

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewFrameProcessor starts the worker. Results are buffered up to
// resultBuffer; while the buffer is full the worker waits and new frames
// are dropped.
func NewFrameProcessor(ctx context.Context, p *Pipeline, resultBuffer int) *FrameProcessor {
	if resultBuffer < 1 {
		resultBuffer = 1
	}
	ctx, cancel := context.WithCancel(ctx)

	fp := &FrameProcessor{
		pipeline: p,
		// unbuffered: a send succeeds only while the worker is idle
		frames:  make(chan Frame),
		results: make(chan FrameResult, resultBuffer),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go fp.run(ctx)
	return fp
}

// Submit hands f to the worker. It returns false if the frame was dropped.
func (fp *FrameProcessor) Submit(f Frame) bool {
	fp.submitted.Add(1)
	select {
	case fp.frames <- f:
		return true
	default:
		fp.dropped.Add(1)
		return false
	}
}

// Results is drained by the UI goroutine. It is closed after Stop.
func (fp *FrameProcessor) Results() <-chan FrameResult {
	return fp.results
}

// Submitted returns the number of frames offered
func (fp *FrameProcessor) Submitted() uint64 {
	return fp.submitted.Load()
}

// Dropped returns the number of frames discarded because the worker was busy
func (fp *FrameProcessor) Dropped() uint64 {
	return fp.dropped.Load()
}

// Stop terminates the worker and waits for it to exit
func (fp *FrameProcessor) Stop() {
	fp.once.Do(func() {
		fp.cancel()
		<-fp.done
		log.Debug(log.Fields{
			"submitted": fp.Submitted(),
			"dropped":   fp.Dropped(),
		}, "[pipeline.FrameProcessor] stopped")
	})
}

func (fp *FrameProcessor) run(ctx context.Context) {
	defer close(fp.done)
	defer close(fp.results)

	for {
		select {
		case <-ctx.Done():
			return
		case f := <-fp.frames:
			out, err := fp.pipeline.DetectImage(ctx, f.Image, f.View)
			select {
			case fp.results <- FrameResult{Seq: f.Seq, Outcome: out, Err: err}:
			case <-ctx.Done():
				return
			}
		}
	}
}
