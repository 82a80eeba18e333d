package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tsawler/go-metal/checkpoints"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/dudu/ruse/internal/inference"
)

type Config struct {
	OrtLibrary string
	Metal      bool
	Bench      int
	Accelerate bool
}

func main() {
	config := parseFlags()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}

	failed := false
	for _, path := range flag.Args() {
		if err := check(path, config); err != nil {
			fmt.Printf("\n❌ %s: %v\n", path, err)
			failed = true
		}
	}
	inference.Shutdown()

	if failed {
		os.Exit(1)
	}
}

func parseFlags() Config {
	config := Config{}

	flag.StringVar(&config.OrtLibrary, "ort-lib", "", "ONNX Runtime shared library (default: platform path)")
	flag.BoolVar(&config.Metal, "metal", false, "Also try importing the model with go-metal")
	flag.BoolVar(&config.Metal, "m", false, "Also try importing with go-metal (shorthand)")
	flag.IntVar(&config.Bench, "bench", 0, "Run N inferences on zero input and report the average")
	flag.IntVar(&config.Bench, "b", 0, "Benchmark iterations (shorthand)")
	flag.BoolVar(&config.Accelerate, "accelerate", false, "Use the CoreML execution provider for --bench")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Modelcheck - Inspect ONNX models used by ruse\n\n")
		fmt.Fprintf(os.Stderr, "Usage: modelcheck [options] <model.onnx>...\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  modelcheck models/scrfd_10g.onnx\n")
		fmt.Fprintf(os.Stderr, "  modelcheck --metal models/2d106det.onnx\n")
		fmt.Fprintf(os.Stderr, "  modelcheck --bench 10 --accelerate models/*.onnx\n")
	}

	flag.Parse()
	return config
}

func check(modelPath string, config Config) error {
	fmt.Printf("Testing ONNX model: %s\n", modelPath)

	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return fmt.Errorf("file not found (run ./scripts/download_models.sh)")
	}
	if !strings.EqualFold(filepath.Ext(modelPath), inference.BackendONNX.Extension()) {
		return errors.New("not an .onnx file")
	}

	if err := inference.Initialize(config.OrtLibrary); err != nil {
		return fmt.Errorf("%w (install ONNX Runtime or pass --ort-lib)", err)
	}

	info, err := inference.Inspect(modelPath)
	if err != nil {
		return err
	}

	fmt.Printf("\nInputs (%d):\n", len(info.Inputs))
	for _, in := range info.Inputs {
		fmt.Printf("  %s: shape=%v, type=%v\n", in.Name, in.Dimensions, in.DataType)
	}
	fmt.Printf("\nOutputs (%d):\n", len(info.Outputs))
	for _, out := range info.Outputs {
		fmt.Printf("  %s: shape=%v, type=%v\n", out.Name, out.Dimensions, out.DataType)
	}

	printMetadata(modelPath)

	if config.Bench > 0 {
		if err := bench(modelPath, info, config); err != nil {
			fmt.Printf("\n  (Benchmark skipped: %v)\n", err)
		}
	}

	if config.Metal {
		if err := importMetal(modelPath); err != nil {
			return err
		}
	}

	fmt.Println("\n✅ SUCCESS!")
	return nil
}

func printMetadata(modelPath string) {
	fmt.Println("\nMetadata:")
	metadata, err := ort.GetModelMetadata(modelPath)
	if err != nil {
		fmt.Printf("  (Could not read metadata: %v)\n", err)
		return
	}
	defer metadata.Destroy()

	if producer, err := metadata.GetProducerName(); err == nil {
		fmt.Printf("  Producer: %s\n", producer)
	}
	if version, err := metadata.GetVersion(); err == nil {
		fmt.Printf("  Version: %d\n", version)
	}
	if domain, err := metadata.GetDomain(); err == nil {
		fmt.Printf("  Domain: %s\n", domain)
	}
	if desc, err := metadata.GetDescription(); err == nil {
		fmt.Printf("  Description: %s\n", desc)
	}
}

// bench runs the model on zero tensors. Dynamic input dimensions are set
// to 1; dynamic outputs cannot be preallocated and abort the benchmark.
func bench(modelPath string, info inference.ModelInfo, config Config) error {
	var inNames, outNames []string
	var inputs, outputs []inference.Tensor

	for _, in := range info.Inputs {
		shape := make([]int64, len(in.Dimensions))
		for i, d := range in.Dimensions {
			shape[i] = max(d, 1)
		}
		inNames = append(inNames, in.Name)
		inputs = append(inputs, inference.NewTensor(shape...))
	}
	for _, out := range info.Outputs {
		for _, d := range out.Dimensions {
			if d < 1 {
				return fmt.Errorf("output %s has dynamic shape %v", out.Name, out.Dimensions)
			}
		}
		outNames = append(outNames, out.Name)
		outputs = append(outputs, inference.NewTensor(out.Dimensions...))
	}

	interp, err := inference.NewONNXInterpreter(modelPath, inNames, outNames, inference.Options{Accelerate: config.Accelerate})
	if err != nil {
		return err
	}
	defer interp.Close()

	// Warm up
	if err := interp.Run(inputs, outputs); err != nil {
		return err
	}

	start := time.Now()
	for i := 0; i < config.Bench; i++ {
		if err := interp.Run(inputs, outputs); err != nil {
			return err
		}
	}
	avg := time.Since(start) / time.Duration(config.Bench)
	fmt.Printf("\nBenchmark: %d runs, avg %.2fms (%.1f FPS)\n",
		config.Bench, float64(avg.Microseconds())/1000, float64(time.Second)/float64(avg))
	return nil
}

func importMetal(modelPath string) error {
	fmt.Println("\nAttempting to import with go-metal...")
	importer := checkpoints.NewONNXImporter()
	checkpoint, err := importer.ImportFromONNX(modelPath)
	if err != nil {
		fmt.Println("\nThis likely means the model uses unsupported operations.")
		fmt.Println("go-metal only supports: Conv, MatMul, Add, Relu, LeakyRelu,")
		fmt.Println("Sigmoid, Tanh, BatchNorm, Dropout, Softmax, Flatten")
		return fmt.Errorf("go-metal import failed: %w", err)
	}

	fmt.Printf("  Layers: %d\n", len(checkpoint.ModelSpec.Layers))
	fmt.Printf("  Weights: %d tensors\n", len(checkpoint.Weights))
	for i, layer := range checkpoint.ModelSpec.Layers {
		fmt.Printf("  %d: %s (%s)\n", i+1, layer.Name, layer.Type)
	}
	return nil
}
