// Package styletransfer runs the two-stage arbitrary style transfer models.
// A predict network turns a style image into a bottleneck vector and a
// transfer network applies it to the content image.
package styletransfer

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"gocv.io/x/gocv"

	"github.com/dudu/ruse/internal/inference"
	"github.com/dudu/ruse/internal/log"
)

const (
	StyleImageSize   = 256
	ContentImageSize = 384
	BottleneckSize   = 100

	DefaultThreads = 4
)

// ErrUnknownStyle is returned for style names that are not an image file
// directly inside the style directory
var ErrUnknownStyle = errors.New("unknown style")

// Model pairs. Endpoint names match the published Magenta graphs.
var (
	PredictQuantized = inference.ModelSpec{
		Name:    "style_predict_quantized_256",
		Inputs:  []string{"style_image"},
		Outputs: []string{"mobilenet_conv/Conv/BiasAdd"},
	}
	TransferQuantized = inference.ModelSpec{
		Name:    "style_transfer_quantized_384",
		Inputs:  []string{"content_image", "mobilenet_conv/Conv/BiasAdd"},
		Outputs: []string{"transformer/expand/conv3/conv/Sigmoid"},
	}
	PredictFloat16 = inference.ModelSpec{
		Name:    "style_predict_f16_256",
		Inputs:  PredictQuantized.Inputs,
		Outputs: PredictQuantized.Outputs,
	}
	TransferFloat16 = inference.ModelSpec{
		Name:    "style_transfer_f16_384",
		Inputs:  TransferQuantized.Inputs,
		Outputs: TransferQuantized.Outputs,
	}
)

// Config configures an Executor
type Config struct {
	// UseGPU selects the float16 pair with an accelerator delegate,
	// otherwise the int8 pair on CPU
	UseGPU   bool
	Threads  int
	StyleDir string
	// CacheTTL bounds how long a style bottleneck is reused. Entries are
	// keyed by file modification time, so a replaced style file is predicted again.
	CacheTTL time.Duration
}

// Request selects the style for one run
type Request struct {
	StyleName string
	// ContentBlendRatio mixes the content image's own bottleneck into the
	// style bottleneck: ratio*content + (1-ratio)*style
	ContentBlendRatio float64
}

// Executor owns the predict and transfer interpreters. Runs are serialized.
type Executor struct {
	mu       sync.Mutex
	cfg      Config
	predict  inference.Interpreter
	transfer inference.Interpreter
	styles   *cache.Cache
}

// New loads the model pair chosen by cfg.UseGPU through loader
func New(cfg Config, loader inference.Loader) (*Executor, error) {
	cfg = withDefaults(cfg)
	predictSpec, transferSpec := PredictQuantized, TransferQuantized
	if cfg.UseGPU {
		predictSpec, transferSpec = PredictFloat16, TransferFloat16
	}
	opts := inference.Options{Threads: cfg.Threads, Accelerate: cfg.UseGPU}

	predict, err := loader.Load(predictSpec, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", predictSpec.Name, err)
	}
	transfer, err := loader.Load(transferSpec, opts)
	if err != nil {
		predict.Close()
		return nil, fmt.Errorf("failed to load %s: %w", transferSpec.Name, err)
	}

	log.Info(log.Fields{
		"backend": loader.Backend(),
		"gpu":     cfg.UseGPU,
		"threads": cfg.Threads,
		"predict": predictSpec.Name,
	}, "[styletransfer.New] models loaded")

	return NewWithInterpreters(cfg, predict, transfer), nil
}

// NewWithInterpreters builds an executor around already loaded interpreters
func NewWithInterpreters(cfg Config, predict, transfer inference.Interpreter) *Executor {
	cfg = withDefaults(cfg)
	return &Executor{
		cfg:      cfg,
		predict:  predict,
		transfer: transfer,
		styles:   cache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
	}
}

func withDefaults(cfg Config) Config {
	if cfg.Threads <= 0 {
		cfg.Threads = DefaultThreads
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	return cfg
}

// Execute styles the image at contentImagePath with the style image
// styleImageName from the style directory. It never panics; failures are
// reported in the Result.
func (e *Executor) Execute(contentImagePath, styleImageName string) Result {
	return e.run(Request{StyleName: styleImageName}, func() (gocv.Mat, error) {
		return readImage(contentImagePath)
	})
}

// ExecuteImage styles an in-memory image
func (e *Executor) ExecuteImage(content image.Image, req Request) Result {
	return e.run(req, func() (gocv.Mat, error) {
		return imageToMat(content)
	})
}

func (e *Executor) run(req Request, loadContent func() (gocv.Mat, error)) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = failure(fmt.Errorf("%v", r))
		}
		if res.Failed() {
			log.Warn(log.Fields{"style": req.StyleName}, "[styletransfer.Execute] something went wrong: "+res.ErrorMessage)
		}
	}()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.predict == nil || e.transfer == nil {
		return failure(fmt.Errorf("executor is closed"))
	}
	if req.ContentBlendRatio < 0 || req.ContentBlendRatio > 1 {
		return failure(fmt.Errorf("content blend ratio %.2f out of range [0,1]", req.ContentBlendRatio))
	}

	var t Timing
	fullStart := time.Now()

	// pre-process
	stageStart := fullStart
	content, err := loadContent()
	if err != nil {
		return failure(err)
	}
	defer content.Close()

	contentTensor, err := toTensor(content, ContentImageSize)
	if err != nil {
		return failure(err)
	}

	stylePath, styleInfo, err := e.resolveStyle(req.StyleName)
	if err != nil {
		return failure(err)
	}
	styleKey := e.cacheKey(req.StyleName, styleInfo)
	cached, haveStyle := e.styles.Get(styleKey)

	var styleInput inference.Tensor
	if !haveStyle {
		styleInput, err = loadStyle(stylePath)
		if err != nil {
			return failure(err)
		}
	}

	var contentStyleInput inference.Tensor
	if req.ContentBlendRatio > 0 {
		contentStyleInput, err = toTensor(content, StyleImageSize)
		if err != nil {
			return failure(err)
		}
	}
	t.PreProcess = time.Since(stageStart)

	// predict
	stageStart = time.Now()
	var bottleneck inference.Tensor
	if haveStyle {
		bottleneck = newBottleneck()
		copy(bottleneck.Data, cached.([]float32))
	} else {
		bottleneck, err = e.predictBottleneck(styleInput)
		if err != nil {
			return failure(err)
		}
		e.styles.SetDefault(styleKey, append([]float32(nil), bottleneck.Data...))
	}

	if req.ContentBlendRatio > 0 {
		contentBottleneck, err := e.predictBottleneck(contentStyleInput)
		if err != nil {
			return failure(err)
		}
		blendBottlenecks(bottleneck.Data, contentBottleneck.Data, req.ContentBlendRatio)
	}
	t.StylePredict = time.Since(stageStart)

	// transfer
	stageStart = time.Now()
	output := inference.NewTensor(1, ContentImageSize, ContentImageSize, 3)
	if err := e.transfer.Run([]inference.Tensor{contentTensor, bottleneck}, []inference.Tensor{output}); err != nil {
		return failure(fmt.Errorf("style transfer failed: %w", err))
	}
	t.StyleTransfer = time.Since(stageStart)

	// post-process
	stageStart = time.Now()
	styled, err := tensorToImage(output.Data, ContentImageSize, ContentImageSize)
	if err != nil {
		return failure(err)
	}
	t.PostProcess = time.Since(stageStart)

	t.Total = time.Since(fullStart)

	log.Debug(log.Fields{
		"style":    req.StyleName,
		"cached":   haveStyle,
		"total_ms": t.Total.Milliseconds(),
	}, "[styletransfer.Execute] done")

	return Result{
		Image:  styled,
		Timing: t,
		Log:    FormatLog(e.cfg.UseGPU, e.cfg.Threads, t),
	}
}

func (e *Executor) cacheKey(styleName string, info os.FileInfo) string {
	return fmt.Sprintf("%s|mtime=%d|size=%d|gpu=%t", styleName, info.ModTime().UnixNano(), info.Size(), e.cfg.UseGPU)
}

// resolveStyle confines name to a regular image file inside the style
// directory. Failures never include the resolved path.
func (e *Executor) resolveStyle(name string) (string, os.FileInfo, error) {
	if name == "" {
		return "", nil, fmt.Errorf("style image name is empty")
	}
	if name == "." || name == ".." || filepath.Base(name) != name || strings.ContainsAny(name, `/\`) || !isStyleImage(name) {
		return "", nil, fmt.Errorf("%w: %q", ErrUnknownStyle, name)
	}

	path := filepath.Join(e.cfg.StyleDir, name)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", nil, fmt.Errorf("%w: %q", ErrUnknownStyle, name)
	}
	return path, info, nil
}

func loadStyle(path string) (inference.Tensor, error) {
	style, err := readImage(path)
	if err != nil {
		return inference.Tensor{}, fmt.Errorf("%w: %s", ErrUnknownStyle, filepath.Base(path))
	}
	defer style.Close()
	return toTensor(style, StyleImageSize)
}

func (e *Executor) predictBottleneck(input inference.Tensor) (inference.Tensor, error) {
	bottleneck := newBottleneck()
	if err := e.predict.Run([]inference.Tensor{input}, []inference.Tensor{bottleneck}); err != nil {
		return inference.Tensor{}, fmt.Errorf("style predict failed: %w", err)
	}
	return bottleneck, nil
}

func newBottleneck() inference.Tensor {
	return inference.NewTensor(1, 1, 1, BottleneckSize)
}

// blendBottlenecks writes ratio*content + (1-ratio)*style into style
func blendBottlenecks(style, content []float32, ratio float64) {
	r := float32(ratio)
	for i := range style {
		style[i] = r*content[i] + (1-r)*style[i]
	}
}

// ForgetStyles drops all cached bottlenecks
func (e *Executor) ForgetStyles() {
	e.styles.Flush()
}

// Close releases both interpreters
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	if e.predict != nil {
		if err := e.predict.Close(); err != nil {
			errs = append(errs, err)
		}
		e.predict = nil
	}
	if e.transfer != nil {
		if err := e.transfer.Close(); err != nil {
			errs = append(errs, err)
		}
		e.transfer = nil
	}
	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %v", errs)
	}
	return nil
}

// ListStyles returns the image files in dir usable as style names
func ListStyles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read style dir: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !isStyleImage(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

func isStyleImage(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}
