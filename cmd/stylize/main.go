package main

import (
	"flag"
	"fmt"
	"image/png"
	"os"

	"github.com/dudu/ruse/internal/config"
	"github.com/dudu/ruse/internal/inference"
	"github.com/dudu/ruse/internal/log"
	"github.com/dudu/ruse/internal/styletransfer"
)

type Config struct {
	ConfigFile string
	Content    string
	Style      string
	Output     string
	GPU        bool
	Threads    int
	List       bool
}

func main() {
	config := parseFlags()

	if !config.List && (config.Content == "" || config.Style == "") {
		fmt.Fprintln(os.Stderr, "Error: --content and --style flags are required")
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
	flag.StringVar(&config.Content, "content", "", "Content image")
	flag.StringVar(&config.Content, "c", "", "Content image (shorthand)")
	flag.StringVar(&config.Style, "style", "", "Style image name inside the style directory")
	flag.StringVar(&config.Style, "s", "", "Style image name (shorthand)")
	flag.StringVar(&config.Output, "output", "styled.png", "Output PNG path")
	flag.StringVar(&config.Output, "o", "styled.png", "Output PNG path (shorthand)")
	flag.BoolVar(&config.GPU, "gpu", false, "Use the float16 models with an accelerator delegate")
	flag.IntVar(&config.Threads, "threads", 0, "Interpreter threads (overrides config)")
	flag.IntVar(&config.Threads, "t", 0, "Interpreter threads (shorthand)")
	flag.BoolVar(&config.List, "list", false, "List available styles and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Stylize - Arbitrary style transfer on a single image\n\n")
		fmt.Fprintf(os.Stderr, "Usage: stylize [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  stylize --list\n")
		fmt.Fprintf(os.Stderr, "  stylize --content photo.jpg --style style0.jpg\n")
		fmt.Fprintf(os.Stderr, "  stylize -c photo.jpg -s style3.jpg --gpu -o out.png\n")
	}

	flag.Parse()
	return config
}

func run(flags Config) error {
	cfg, err := config.Load(flags.ConfigFile)
	if err != nil {
		return err
	}
	if flags.GPU {
		cfg.Style.UseGPU = true
	}
	if flags.Threads > 0 {
		cfg.Style.Threads = flags.Threads
	}
	log.NewLogger(log.Options{Level: cfg.Log.Level, Dir: cfg.Log.Dir})

	if flags.List {
		styles, err := styletransfer.ListStyles(cfg.Style.StyleDir)
		if err != nil {
			return err
		}
		for _, name := range styles {
			fmt.Println(name)
		}
		return nil
	}

	backend, err := inference.ParseBackend(cfg.Style.Backend)
	if err != nil {
		return err
	}
	loader, err := inference.NewFileLoader(cfg.Style.ModelDir, backend, cfg.Style.OrtLib)
	if err != nil {
		return err
	}
	defer loader.Close()

	fmt.Printf("Loading style models (backend: %s, gpu: %t)...\n", backend, cfg.Style.UseGPU)
	executor, err := styletransfer.New(styletransfer.Config{
		UseGPU:   cfg.Style.UseGPU,
		Threads:  cfg.Style.Threads,
		StyleDir: cfg.Style.StyleDir,
	}, loader)
	if err != nil {
		return fmt.Errorf("failed to create executor: %w", err)
	}
	defer executor.Close()

	res := executor.Execute(flags.Content, flags.Style)
	if res.Failed() {
		return fmt.Errorf("style transfer failed: %s", res.ErrorMessage)
	}

	out, err := os.Create(flags.Output)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	defer out.Close()
	if err := png.Encode(out, res.Image); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}

	fmt.Print(res.Log)
	fmt.Printf("Saved %s\n", flags.Output)
	return nil
}
