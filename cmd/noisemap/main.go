package main

import (
	"flag"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"

	"github.com/dudu/ruse/internal/config"
	"github.com/dudu/ruse/internal/log"
	"github.com/dudu/ruse/internal/noise"
)

type Config struct {
	ConfigFile string
	Output     string
	ChunkX     int
	ChunkY     int
	Span       int
	Octaves    int
	Roughness  float64
	Scale      float64
	Isometric  bool
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
	flag.StringVar(&config.Output, "output", "noise.png", "Output PNG path")
	flag.StringVar(&config.Output, "o", "noise.png", "Output PNG path (shorthand)")
	flag.IntVar(&config.ChunkX, "x", 0, "First chunk column")
	flag.IntVar(&config.ChunkY, "y", 0, "First chunk row")
	flag.IntVar(&config.Span, "span", 1, "Number of chunks per side to stitch")
	flag.IntVar(&config.Octaves, "octaves", 0, "Octaves (overrides config)")
	flag.Float64Var(&config.Roughness, "roughness", 0, "Per-octave weight factor (overrides config)")
	flag.Float64Var(&config.Scale, "scale", 0, "Base frequency (overrides config)")
	flag.BoolVar(&config.Isometric, "iso", false, "Sample on an isometric grid")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Noisemap - Render simplex noise map chunks\n\n")
		fmt.Fprintf(os.Stderr, "Usage: noisemap [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  noisemap -o chunk.png\n")
		fmt.Fprintf(os.Stderr, "  noisemap -x -2 -y -2 --span 4 --octaves 6 --roughness 0.45\n")
	}

	flag.Parse()
	return config
}

func run(flags Config) error {
	cfg, err := config.Load(flags.ConfigFile)
	if err != nil {
		return err
	}
	log.NewLogger(log.Options{Level: cfg.Log.Level, Dir: cfg.Log.Dir})

	n := cfg.Noise
	if flags.Octaves > 0 {
		n.Octaves = flags.Octaves
	}
	if flags.Roughness > 0 {
		n.Roughness = flags.Roughness
	}
	if flags.Scale > 0 {
		n.Scale = flags.Scale
	}
	if flags.Isometric {
		n.Isometric = true
	}
	if flags.Span < 1 {
		return fmt.Errorf("invalid span: %d", flags.Span)
	}

	var mapper noise.ChunkMapper
	if n.Isometric {
		mapper = noise.IsometricMapper{ChunkWidth: n.ChunkWidth, ChunkHeight: n.ChunkHeight, TileWidth: 2, TileHeight: 1}
	}
	gen := noise.NewGenerator(n.ChunkWidth, n.ChunkHeight, mapper)

	out := image.NewGray(image.Rect(0, 0, n.ChunkWidth*flags.Span, n.ChunkHeight*flags.Span))
	for dy := 0; dy < flags.Span; dy++ {
		for dx := 0; dx < flags.Span; dx++ {
			chunk := noise.ChunkCoord{X: flags.ChunkX + dx, Y: flags.ChunkY + dy}
			grid, err := gen.Generate(chunk, n.Octaves, n.Roughness, n.Scale)
			if err != nil {
				return err
			}
			tile := grid.Image()
			at := image.Pt(dx*n.ChunkWidth, dy*n.ChunkHeight)
			draw.Draw(out, tile.Bounds().Add(at), tile, image.Point{}, draw.Src)
		}
	}

	f, err := os.Create(flags.Output)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	defer f.Close()
	if err := png.Encode(f, out); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}

	fmt.Printf("Saved %s (%dx%d, %d octaves, roughness %g, scale %g)\n",
		flags.Output, out.Rect.Dx(), out.Rect.Dy(), n.Octaves, n.Roughness, n.Scale)
	return nil
}
