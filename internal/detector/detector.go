// Package detector finds faces in images. Detectors report results through
// a single-shot handler so callers can treat them as asynchronous vision
// services.
package detector

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
)

// ErrNoResults is delivered when detection succeeded but found no faces
var ErrNoResults = errors.New("no results returned")

// Handler receives the outcome of one detection call. It is invoked exactly
// once per Process call. faces is non-empty when err is nil.
type Handler func(faces []Face, err error)

// Detector processes images asynchronously
type Detector interface {
	Process(ctx context.Context, img image.Image, handler Handler)
	Close() error
}

// Func adapts a synchronous detection function to Detector
type Func func(ctx context.Context, img image.Image) ([]Face, error)

// Process runs f in the background and delivers its result once
func (f Func) Process(ctx context.Context, img image.Image, handler Handler) {
	process(ctx, img, f, handler)
}

// Close is a no-op
func (f Func) Close() error {
	return nil
}

// Detect runs d and waits for its single result
func Detect(ctx context.Context, d Detector, img image.Image) ([]Face, error) {
	type result struct {
		faces []Face
		err   error
	}
	ch := make(chan result, 1)
	d.Process(ctx, img, func(faces []Face, err error) {
		ch <- result{faces: faces, err: err}
	})
	r := <-ch
	return r.faces, r.err
}

// process runs detect on its own goroutine. The handler fires once with the
// first of: the detection result, a recovered panic, or ctx cancellation.
// A result arriving after cancellation is discarded.
func process(ctx context.Context, img image.Image, detect Func, handler Handler) {
	var once sync.Once
	deliver := func(faces []Face, err error) {
		once.Do(func() { handler(faces, err) })
	}

	if img == nil {
		deliver(nil, errors.New("nil image"))
		return
	}
	if err := ctx.Err(); err != nil {
		deliver(nil, err)
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				deliver(nil, fmt.Errorf("detector panic: %v", r))
			}
		}()

		faces, err := detect(ctx, img)
		switch {
		case err != nil:
			deliver(nil, err)
		case len(faces) == 0:
			deliver(nil, ErrNoResults)
		default:
			deliver(faces, nil)
		}
	}()

	go func() {
		select {
		case <-ctx.Done():
			deliver(nil, ctx.Err())
		case <-done:
		}
	}()
}
