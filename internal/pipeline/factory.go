package pipeline

import (
	"fmt"

	"github.com/dudu/ruse/internal/config"
	"github.com/dudu/ruse/internal/detector"
	"github.com/dudu/ruse/internal/inference"
)

// NewDetector builds the detector named by cfg.Kind. SCRFD needs the ONNX
// Runtime library at ortLibrary (empty uses the platform default).
func NewDetector(cfg config.DetectorConfig, ortLibrary string, opts inference.Options) (detector.Detector, error) {
	switch cfg.Kind {
	case "pigo":
		return detector.NewPigo(cfg.PigoCascade, cfg.PuplocCascade, detector.DefaultPigoConfig())

	case "scrfd", "":
		if err := inference.Initialize(ortLibrary); err != nil {
			return nil, fmt.Errorf("failed to initialize inference: %w", err)
		}

		det, err := detector.NewSCRFD(cfg.SCRFDModel, detector.SCRFDConfig{
			InputSize:     cfg.InputSize,
			ConfThreshold: cfg.ConfThreshold,
			NMSThreshold:  cfg.NMSThreshold,
		}, opts)
		if err != nil {
			return nil, err
		}

		if cfg.ContourModel != "" {
			contours, err := detector.NewContourer(cfg.ContourModel, opts)
			if err != nil {
				det.Close()
				return nil, err
			}
			det.WithContours(contours)
		}
		return det, nil
	}

	return nil, fmt.Errorf("unknown detector: %s", cfg.Kind)
}
