package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Validate(Default()))
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ruse.yaml")
	content := `
detector:
  kind: pigo
  pigo_cascade: cascade/facefinder
style:
  backend: onnx
  use_gpu: true
  threads: 2
noise:
  octaves: 6
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "pigo", cfg.Detector.Kind)
	assert.Equal(t, "onnx", cfg.Style.Backend)
	assert.True(t, cfg.Style.UseGPU)
	assert.Equal(t, 2, cfg.Style.Threads)
	assert.Equal(t, 6, cfg.Noise.Octaves)
	// untouched defaults survive
	assert.Equal(t, 0.5, cfg.Noise.Roughness)
	assert.Equal(t, 640, cfg.Detector.InputSize)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("RUSE_STYLE_BACKEND", "onnx")
	t.Setenv("RUSE_USE_GPU", "true")
	t.Setenv("RUSE_THREADS", "8")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "onnx", cfg.Style.Backend)
	assert.True(t, cfg.Style.UseGPU)
	assert.Equal(t, 8, cfg.Style.Threads)
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("style:\n  backend: coreml\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidateNoiseBounds(t *testing.T) {
	cfg := Default()
	cfg.Noise.Roughness = 0
	assert.Error(t, Validate(cfg))

	cfg = Default()
	cfg.Noise.Octaves = 0
	assert.Error(t, Validate(cfg))

	cfg = Default()
	cfg.Noise.Roughness = math.Inf(1)
	assert.Error(t, Validate(cfg))

	cfg = Default()
	cfg.Noise.Scale = math.NaN()
	assert.Error(t, Validate(cfg))
}
