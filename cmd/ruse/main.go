package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"gocv.io/x/gocv"

	"github.com/dudu/ruse/internal/camera"
	"github.com/dudu/ruse/internal/config"
	"github.com/dudu/ruse/internal/geometry"
	"github.com/dudu/ruse/internal/inference"
	"github.com/dudu/ruse/internal/log"
	"github.com/dudu/ruse/internal/overlay"
	"github.com/dudu/ruse/internal/pipeline"
	"github.com/dudu/ruse/internal/ui"
)

func init() {
	// Lock the main goroutine to the main OS thread.
	// This is required on macOS for OpenCV's highgui (window creation).
	runtime.LockOSThread()
}

type Config struct {
	ConfigFile  string
	ImagePath   string
	Fallback    string
	CameraIndex int
	TargetFPS   int
	Preview     bool
	Detector    string
}

func main() {
	config := parseFlags()

	if err := run(config); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() Config {
	config := Config{}

	flag.StringVar(&config.ConfigFile, "config", "", "YAML config file")
	flag.StringVar(&config.ConfigFile, "f", "", "YAML config file (shorthand)")
	flag.StringVar(&config.ImagePath, "image", "", "Detect on a still image instead of the camera")
	flag.StringVar(&config.ImagePath, "i", "", "Still image (shorthand)")
	flag.StringVar(&config.Fallback, "fallback", "assets/face.jpg", "Still image used when no camera is available")
	flag.IntVar(&config.CameraIndex, "camera", -1, "Camera device index (overrides config)")
	flag.IntVar(&config.CameraIndex, "c", -1, "Camera device index (shorthand)")
	flag.IntVar(&config.TargetFPS, "fps", 0, "Target frames per second (overrides config)")
	flag.BoolVar(&config.Preview, "preview", true, "Show preview window")
	flag.BoolVar(&config.Preview, "p", true, "Show preview window (shorthand)")
	flag.StringVar(&config.Detector, "detector", "", "Face detector: scrfd or pigo (overrides config)")
	flag.StringVar(&config.Detector, "d", "", "Face detector (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Ruse - Live face detection with landmark and contour overlay\n\n")
		fmt.Fprintf(os.Stderr, "Usage: ruse [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  ruse\n")
		fmt.Fprintf(os.Stderr, "  ruse --camera 1 --detector pigo\n")
		fmt.Fprintf(os.Stderr, "  ruse --image group.jpg\n")
	}

	flag.Parse()
	return config
}

func run(flags Config) error {
	fmt.Println("Ruse starting...")

	cfg, err := config.Load(flags.ConfigFile)
	if err != nil {
		return err
	}
	if flags.CameraIndex >= 0 {
		cfg.Camera.Device = flags.CameraIndex
	}
	if flags.TargetFPS > 0 {
		cfg.Camera.TargetFPS = flags.TargetFPS
	}
	if flags.Detector != "" {
		cfg.Detector.Kind = flags.Detector
	}
	log.NewLogger(log.Options{Level: cfg.Log.Level, Dir: cfg.Log.Dir})
	// sessions must be released before the runtime
	defer inference.Shutdown()

	fmt.Printf("Loading %s detector...\n", cfg.Detector.Kind)
	det, err := pipeline.NewDetector(cfg.Detector, cfg.Style.OrtLib, inference.Options{
		Threads:    cfg.Style.Threads,
		Accelerate: cfg.Style.UseGPU,
	})
	if err != nil {
		return fmt.Errorf("failed to create detector: %w", err)
	}
	p := pipeline.New(det)
	defer p.Close()
	fmt.Println("Detector loaded successfully")

	src, err := openSource(flags.ImagePath, flags.Fallback, cfg.Camera)
	if err != nil {
		return err
	}
	defer src.Close()
	fmt.Printf("Source opened: %dx%d\n", src.Width(), src.Height())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if !flags.Preview {
		return runHeadless(ctx, p, src)
	}

	window := ui.NewWindow("Ruse", src.Width(), src.Height())
	defer window.Close()

	fp := pipeline.NewFrameProcessor(ctx, p, 1)
	defer fp.Stop()

	// Handle signals for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	frame := gocv.NewMat()
	defer frame.Close()

	shapes := overlay.New()
	status := ""
	var seq uint64

	fmt.Println("\nRunning... Press 'q' to quit")

	for {
		select {
		case <-sigChan:
			fmt.Println("\nShutting down...")
			return nil
		default:
		}

		if !src.Read(&frame) {
			continue
		}

		if img, err := frame.ToImage(); err == nil {
			seq++
			fp.Submit(pipeline.Frame{
				Seq:   seq,
				Image: img,
				View:  geometry.Size{Width: float64(frame.Cols()), Height: float64(frame.Rows())},
			})
		}

		// The overlay is only touched here, on the UI goroutine
	drain:
		for {
			select {
			case res, ok := <-fp.Results():
				if !ok {
					return nil
				}
				if res.Err != nil {
					log.Warn(log.Fields{"seq": res.Seq, "error": res.Err.Error()}, "[main.run] detection failed")
				}
				shapes.Replace(res.Outcome.Shapes)
				status = res.Outcome.ResultsText
			default:
				break drain
			}
		}

		window.Show(&frame, shapes, status)
		// WaitKey must be called to process window events on macOS
		if ui.IsQuit(window.WaitKey(10)) {
			fmt.Printf("\nQuitting... (%d frames, %d dropped)\n", fp.Submitted(), fp.Dropped())
			return nil
		}
	}
}

// openSource prefers the camera and degrades to the fallback still image
// when no device can be opened
func openSource(imagePath, fallback string, cam config.CameraConfig) (camera.Source, error) {
	if imagePath != "" {
		return camera.NewStill(imagePath)
	}

	fmt.Printf("Opening camera %d...\n", cam.Device)
	capture, err := camera.NewCaptureWithResolution(cam.Device, cam.TargetFPS, cam.Width, cam.Height)
	if err == nil {
		return capture, nil
	}
	if !errors.Is(err, camera.ErrNoDevice) || fallback == "" {
		return nil, fmt.Errorf("failed to open camera: %w", err)
	}

	log.Warn(log.Fields{"error": err.Error(), "image": fallback}, "[main.openSource] no camera, using still image")
	still, stillErr := camera.NewStill(fallback)
	if stillErr != nil {
		return nil, fmt.Errorf("%w (fallback: %v)", err, stillErr)
	}
	return still, nil
}

// runHeadless detects once on the first frame and prints the results
func runHeadless(ctx context.Context, p *pipeline.Pipeline, src camera.Source) error {
	frame := gocv.NewMat()
	defer frame.Close()

	if !src.Read(&frame) {
		return errors.New("failed to read frame")
	}
	img, err := frame.ToImage()
	if err != nil {
		return fmt.Errorf("failed to convert frame: %w", err)
	}

	out, err := p.DetectImage(ctx, img, geometry.Size{Width: float64(frame.Cols()), Height: float64(frame.Rows())})
	fmt.Println(out.ResultsText)
	if err != nil {
		return err
	}
	fmt.Printf("D:%dms A:%dms T:%dms\n",
		out.Timing.Detection.Milliseconds(),
		out.Timing.Annotation.Milliseconds(),
		out.Timing.Total.Milliseconds())
	return nil
}
