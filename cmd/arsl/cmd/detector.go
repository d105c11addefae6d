package cmd

import (
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/arsl/internal/classifier"
	"github.com/MeKo-Tech/arsl/internal/config"
	"github.com/MeKo-Tech/arsl/internal/detector"
	"github.com/MeKo-Tech/arsl/internal/features"
	"github.com/MeKo-Tech/arsl/internal/inference"
	"github.com/spf13/cobra"
)

// detectorFactory overrides how commands build detectors; nil uses the ONNX
// detector. Tests set it to run without ONNX Runtime.
var detectorFactory func(cfg detector.Config) detector.Factory

// detectorOverrides applies the detector flags shared by several commands.
func detectorOverrides(cmd *cobra.Command, dc *detector.Config) {
	if cmd.Flags().Changed("det-model") {
		dc.ModelPath, _ = cmd.Flags().GetString("det-model")
	}
	if cmd.Flags().Changed("min-confidence") {
		dc.MinConfidence, _ = cmd.Flags().GetFloat64("min-confidence")
	}
	if cmd.Flags().Changed("max-hands") {
		dc.MaxHands, _ = cmd.Flags().GetInt("max-hands")
	}
	if cmd.Flags().Changed("palm-model") {
		dc.PalmModelPath, _ = cmd.Flags().GetString("palm-model")
	}
	if cmd.Flags().Changed("palm-detection") {
		if enabled, _ := cmd.Flags().GetBool("palm-detection"); !enabled {
			dc.PalmModelPath = ""
		}
	}
}

func addDetectorFlags(cmd *cobra.Command, minConfidence float64) {
	cmd.Flags().String("det-model", "", "path to the hand landmark model (overrides default)")
	cmd.Flags().Float64("min-confidence", minConfidence, "minimum hand presence confidence (0.0-1.0)")
	cmd.Flags().Int("max-hands", 1, "maximum number of hands to report")
	cmd.Flags().String("palm-model", "", "path to the palm detection model (overrides default)")
	cmd.Flags().Bool("palm-detection", true, "locate palms before landmarking; false runs the landmark model on the whole frame")
}

// openDetector creates a serving detector and warms it up when configured.
func openDetector(dc detector.Config, warmup int) (detector.Detector, error) {
	factory := detector.NewFactory
	if detectorFactory != nil {
		factory = detectorFactory
	}
	det, err := factory(dc)()
	if err != nil {
		return nil, fmt.Errorf("failed to create hand detector: %w", err)
	}
	if hd, ok := det.(*detector.HandDetector); ok && warmup > 0 {
		slog.Debug("Warming up hand detector", "iterations", warmup)
		if err := hd.Warmup(warmup); err != nil {
			_ = det.Close()
			return nil, fmt.Errorf("detector warmup failed: %w", err)
		}
	}
	return det, nil
}

// buildOrchestrator opens the serving detector and the persisted classifier.
// The caller owns the returned detector.
func buildOrchestrator(cmd *cobra.Command, cfg *config.Config) (*inference.Orchestrator, detector.Detector, error) {
	artifact := cfg.ClassifierArtifactPath()
	if cmd.Flags().Changed("classifier") {
		artifact, _ = cmd.Flags().GetString("classifier")
	}
	model, meta, err := classifier.LoadArtifact(artifact, features.Width)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load classifier: %w", err)
	}
	slog.Debug("Loaded classifier",
		"path", artifact,
		"algorithm", model.Algorithm(),
		"classes", len(model.Classes()),
		"created_at", meta.CreatedAt)

	dc := cfg.ServingDetectorConfig()
	detectorOverrides(cmd, &dc)
	det, err := openDetector(dc, cfg.Detector.WarmupIterations)
	if err != nil {
		return nil, nil, err
	}

	return inference.New(det, model, cfg.LabelMapper()), det, nil
}
