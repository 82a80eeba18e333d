package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"gocv.io/x/gocv"

	"github.com/dudu/ruse/internal/config"
	"github.com/dudu/ruse/internal/detector"
	"github.com/dudu/ruse/internal/inference"
	"github.com/dudu/ruse/internal/log"
	"github.com/dudu/ruse/internal/obfuscate"
	"github.com/dudu/ruse/internal/pipeline"
	"github.com/dudu/ruse/internal/styletransfer"
)

type Config struct {
	ConfigFile  string
	Input       string
	Output      string
	Style       string
	Blend       float64
	Padding     float64
	MatchColors bool
	Detector    string
}

func main() {
	config := parseFlags()

	if config.Input == "" || config.Style == "" {
		fmt.Fprintln(os.Stderr, "Error: --input and --style flags are required")
		flag.Usage()
		os.Exit(1)
	}

	if err := run(config); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() Config {
	config := Config{}

	flag.StringVar(&config.ConfigFile, "config", "", "YAML config file")
	flag.StringVar(&config.ConfigFile, "f", "", "YAML config file (shorthand)")
	flag.StringVar(&config.Input, "input", "", "Input image")
	flag.StringVar(&config.Input, "i", "", "Input image (shorthand)")
	flag.StringVar(&config.Output, "output", "obfuscated.png", "Output image")
	flag.StringVar(&config.Output, "o", "obfuscated.png", "Output image (shorthand)")
	flag.StringVar(&config.Style, "style", "", "Style image name inside the style directory")
	flag.StringVar(&config.Style, "s", "", "Style image name (shorthand)")
	flag.Float64Var(&config.Blend, "blend", -1, "Content blend ratio 0..1 (overrides config)")
	flag.Float64Var(&config.Padding, "padding", -1, "Face box padding fraction (overrides config)")
	flag.BoolVar(&config.MatchColors, "match-colors", true, "Keep styled faces close to the original skin tones")
	flag.StringVar(&config.Detector, "detector", "", "Face detector: scrfd or pigo (overrides config)")
	flag.StringVar(&config.Detector, "d", "", "Face detector (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Obfuscate - Restyle every face in a picture\n\n")
		fmt.Fprintf(os.Stderr, "Usage: obfuscate [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  obfuscate --input group.jpg --style style5.jpg\n")
		fmt.Fprintf(os.Stderr, "  obfuscate -i group.jpg -s style5.jpg --blend 0.3 --detector pigo\n")
	}

	flag.Parse()
	return config
}

func run(flags Config) error {
	cfg, err := config.Load(flags.ConfigFile)
	if err != nil {
		return err
	}
	if flags.Detector != "" {
		cfg.Detector.Kind = flags.Detector
	}
	if flags.Blend >= 0 {
		cfg.Style.BlendRate = flags.Blend
	}
	if flags.Padding >= 0 {
		cfg.Obfuscate.Padding = flags.Padding
	}
	log.NewLogger(log.Options{Level: cfg.Log.Level, Dir: cfg.Log.Dir})
	// sessions must be released before the runtime
	defer inference.Shutdown()

	frame := gocv.IMRead(flags.Input, gocv.IMReadColor)
	if frame.Empty() {
		return fmt.Errorf("failed to load image: %s", flags.Input)
	}
	defer frame.Close()

	det, err := pipeline.NewDetector(cfg.Detector, cfg.Style.OrtLib, inference.Options{Threads: cfg.Style.Threads})
	if err != nil {
		return fmt.Errorf("failed to create detector: %w", err)
	}
	defer det.Close()

	backend, err := inference.ParseBackend(cfg.Style.Backend)
	if err != nil {
		return err
	}
	loader, err := inference.NewFileLoader(cfg.Style.ModelDir, backend, cfg.Style.OrtLib)
	if err != nil {
		return err
	}

	executor, err := styletransfer.New(styletransfer.Config{
		UseGPU:   cfg.Style.UseGPU,
		Threads:  cfg.Style.Threads,
		StyleDir: cfg.Style.StyleDir,
	}, loader)
	if err != nil {
		return fmt.Errorf("failed to create executor: %w", err)
	}
	defer executor.Close()

	img, err := frame.ToImage()
	if err != nil {
		return fmt.Errorf("failed to convert image: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	faces, err := detector.Detect(ctx, det, img)
	if err != nil && !errors.Is(err, detector.ErrNoResults) {
		return fmt.Errorf("detection failed: %w", err)
	}
	if len(faces) == 0 {
		fmt.Println("No faces found, styling the whole image")
	} else {
		fmt.Printf("Found %d face(s)\n", len(faces))
	}

	o := obfuscate.New(executor, obfuscate.Config{
		Padding:     cfg.Obfuscate.Padding,
		BlurSize:    cfg.Obfuscate.BlurSize,
		MatchColors: flags.MatchColors,
		Request: styletransfer.Request{
			StyleName:         flags.Style,
			ContentBlendRatio: cfg.Style.BlendRate,
		},
	})
	defer o.Close()

	report, err := o.Apply(&frame, faces)
	if err != nil {
		return err
	}

	if !gocv.IMWrite(flags.Output, frame) {
		return fmt.Errorf("failed to write %s", flags.Output)
	}

	for i, t := range report.Timings {
		fmt.Printf("Region %d: predict %dms, transfer %dms, total %dms\n",
			i+1, t.StylePredict.Milliseconds(), t.StyleTransfer.Milliseconds(), t.Total.Milliseconds())
	}
	fmt.Printf("Saved %s (%d regions in %dms)\n", flags.Output, report.Regions, report.Duration.Milliseconds())
	return nil
}
