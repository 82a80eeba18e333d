package styletransfer

import (
	"fmt"
	"image"
	"strings"
	"time"
)

// Timing holds per-stage execution times. Total is measured end to end and
// is not the sum of the stages.
type Timing struct {
	PreProcess    time.Duration
	StylePredict  time.Duration
	StyleTransfer time.Duration
	PostProcess   time.Duration
	Total         time.Duration
}

// Result is the outcome of one executor run. On failure Image is a blank
// ContentImageSize square and ErrorMessage is set.
type Result struct {
	Image *image.RGBA
	Timing
	Log          string
	ErrorMessage string
}

// Failed reports whether the run failed
func (r Result) Failed() bool {
	return r.ErrorMessage != ""
}

func failure(err error) Result {
	msg := "unknown error"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return Result{
		Image:        blankImage(),
		ErrorMessage: msg,
	}
}

func blankImage() *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, ContentImageSize, ContentImageSize))
}

// FormatLog renders the execution log shown after a run
func FormatLog(useGPU bool, threads int, t Timing) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Input Image Size: %d x %d\n", ContentImageSize, ContentImageSize)
	fmt.Fprintf(&sb, "GPU enabled: %t\n", useGPU)
	fmt.Fprintf(&sb, "Number of threads: %d\n", threads)
	fmt.Fprintf(&sb, "Pre-process execution time: %d ms\n", t.PreProcess.Milliseconds())
	fmt.Fprintf(&sb, "Predicting style execution time: %d ms\n", t.StylePredict.Milliseconds())
	fmt.Fprintf(&sb, "Transferring style execution time: %d ms\n", t.StyleTransfer.Milliseconds())
	fmt.Fprintf(&sb, "Post-process execution time: %d ms\n", t.PostProcess.Milliseconds())
	fmt.Fprintf(&sb, "Full execution time: %d ms\n", t.Total.Milliseconds())
	return sb.String()
}
