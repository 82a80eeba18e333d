package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Detector  DetectorConfig  `yaml:"detector"`
	Style     StyleConfig     `yaml:"style"`
	Camera    CameraConfig    `yaml:"camera"`
	Noise     NoiseConfig     `yaml:"noise"`
	Server    ServerConfig    `yaml:"server"`
	Obfuscate ObfuscateConfig `yaml:"obfuscate"`
}

type LogConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error fatal panic"`
	Dir   string `yaml:"dir"`
}

// DetectorConfig selects and tunes the face detector
type DetectorConfig struct {
	Kind          string  `yaml:"kind" validate:"oneof=scrfd pigo"`
	SCRFDModel    string  `yaml:"scrfd_model" validate:"required_if=Kind scrfd"`
	PigoCascade   string  `yaml:"pigo_cascade" validate:"required_if=Kind pigo"`
	PuplocCascade string  `yaml:"puploc_cascade"`
	ContourModel  string  `yaml:"contour_model"`
	InputSize     int     `yaml:"input_size" validate:"gt=0"`
	ConfThreshold float32 `yaml:"conf_threshold" validate:"gt=0,lte=1"`
	NMSThreshold  float32 `yaml:"nms_threshold" validate:"gt=0,lte=1"`
}

// StyleConfig configures the style transfer executor
type StyleConfig struct {
	Backend   string  `yaml:"backend" validate:"oneof=tflite onnx"`
	ModelDir  string  `yaml:"model_dir" validate:"required"`
	StyleDir  string  `yaml:"style_dir" validate:"required"`
	UseGPU    bool    `yaml:"use_gpu"`
	Threads   int     `yaml:"threads" validate:"gte=1,lte=64"`
	OrtLib    string  `yaml:"ort_library"`
	BlendRate float64 `yaml:"content_blend_ratio" validate:"gte=0,lte=1"`
}

type CameraConfig struct {
	Device    int `yaml:"device" validate:"gte=0"`
	TargetFPS int `yaml:"target_fps" validate:"gt=0,lte=240"`
	Width     int `yaml:"width" validate:"gt=0"`
	Height    int `yaml:"height" validate:"gt=0"`
}

// NoiseConfig holds map generation defaults
type NoiseConfig struct {
	ChunkWidth  int     `yaml:"chunk_width" validate:"gt=0,lte=4096"`
	ChunkHeight int     `yaml:"chunk_height" validate:"gt=0,lte=4096"`
	Octaves     int     `yaml:"octaves" validate:"gte=1,lte=16"`
	Roughness   float64 `yaml:"roughness" validate:"gt=0,lte=1000"`
	Scale       float64 `yaml:"scale" validate:"gt=0,lte=1000"`
	Isometric   bool    `yaml:"isometric"`
}

type ServerConfig struct {
	Addr        string `yaml:"addr" validate:"required"`
	BodyLimitMB int    `yaml:"body_limit_mb" validate:"gt=0"`
}

type ObfuscateConfig struct {
	Padding  float64 `yaml:"padding" validate:"gte=0,lte=1"`
	BlurSize int     `yaml:"blur_size" validate:"gte=1"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info", Dir: "./storage/logs"},
		Detector: DetectorConfig{
			Kind:          "scrfd",
			SCRFDModel:    "models/scrfd_10g.onnx",
			PigoCascade:   "cascade/facefinder",
			InputSize:     640,
			ConfThreshold: 0.5,
			NMSThreshold:  0.4,
		},
		Style: StyleConfig{
			Backend:  "tflite",
			ModelDir: "models",
			StyleDir: "assets/thumbnails",
			Threads:  4,
		},
		Camera: CameraConfig{TargetFPS: 30, Width: 1280, Height: 720},
		Noise: NoiseConfig{
			ChunkWidth:  32,
			ChunkHeight: 32,
			Octaves:     4,
			Roughness:   0.5,
			Scale:       0.02,
		},
		Server:    ServerConfig{Addr: ":8080", BodyLimitMB: 16},
		Obfuscate: ObfuscateConfig{Padding: 0.15, BlurSize: 31},
	}
}

// Load reads path (optional) over the defaults, then applies environment
// overrides from the process and an optional .env file, then validates.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("failed to load .env: %w", err)
	}
	applyEnv(&cfg)

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks field constraints
func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Log.Level, "RUSE_LOG_LEVEL")
	setString(&cfg.Log.Dir, "RUSE_LOG_DIR")
	setString(&cfg.Detector.Kind, "RUSE_DETECTOR")
	setString(&cfg.Detector.SCRFDModel, "RUSE_SCRFD_MODEL")
	setString(&cfg.Detector.PigoCascade, "RUSE_PIGO_CASCADE")
	setString(&cfg.Detector.PuplocCascade, "RUSE_PUPLOC_CASCADE")
	setString(&cfg.Detector.ContourModel, "RUSE_CONTOUR_MODEL")
	setString(&cfg.Style.Backend, "RUSE_STYLE_BACKEND")
	setString(&cfg.Style.ModelDir, "RUSE_MODEL_DIR")
	setString(&cfg.Style.StyleDir, "RUSE_STYLE_DIR")
	setString(&cfg.Style.OrtLib, "RUSE_ORT_LIBRARY")
	setBool(&cfg.Style.UseGPU, "RUSE_USE_GPU")
	setInt(&cfg.Style.Threads, "RUSE_THREADS")
	setInt(&cfg.Camera.Device, "RUSE_CAMERA")
	setString(&cfg.Server.Addr, "RUSE_ADDR")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
