package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dudu/ruse/internal/config"
	"github.com/dudu/ruse/internal/inference"
	"github.com/dudu/ruse/internal/log"
	"github.com/dudu/ruse/internal/pipeline"
	"github.com/dudu/ruse/internal/server"
	"github.com/dudu/ruse/internal/styletransfer"
)

type Config struct {
	ConfigFile string
	Addr       string
	NoDetect   bool
	NoStyle    bool
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
	flag.StringVar(&config.Addr, "addr", "", "Listen address (overrides config)")
	flag.StringVar(&config.Addr, "a", "", "Listen address (shorthand)")
	flag.BoolVar(&config.NoDetect, "no-detect", false, "Do not load the face detector")
	flag.BoolVar(&config.NoStyle, "no-style", false, "Do not load the style transfer models")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Ruse server - HTTP API for detection, style transfer and noise maps\n\n")
		fmt.Fprintf(os.Stderr, "Usage: ruse-server [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  ruse-server --addr :9000\n")
		fmt.Fprintf(os.Stderr, "  ruse-server --config ruse.yaml --no-style\n")
	}

	flag.Parse()
	return config
}

func run(flags Config) error {
	cfg, err := config.Load(flags.ConfigFile)
	if err != nil {
		return err
	}
	if flags.Addr != "" {
		cfg.Server.Addr = flags.Addr
	}
	log.NewLogger(log.Options{Level: cfg.Log.Level, Dir: cfg.Log.Dir})
	// sessions must be released before the runtime
	defer inference.Shutdown()

	opts := inference.Options{Threads: cfg.Style.Threads, Accelerate: cfg.Style.UseGPU}

	var det server.Detector
	if !flags.NoDetect {
		d, err := pipeline.NewDetector(cfg.Detector, cfg.Style.OrtLib, opts)
		if err != nil {
			return fmt.Errorf("failed to create detector: %w", err)
		}
		p := pipeline.New(d)
		defer p.Close()
		det = p
	}

	var stylizer server.Stylizer
	if !flags.NoStyle {
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
		stylizer = executor
	}

	srv := server.New(cfg.Server, cfg.Noise, det, stylizer)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Listen()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-sigChan:
		fmt.Println("\nShutting down...")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
