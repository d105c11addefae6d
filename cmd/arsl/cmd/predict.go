package cmd

import (
	"encoding/json"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/arsl/internal/detector"
	"github.com/MeKo-Tech/arsl/internal/inference"
	"github.com/MeKo-Tech/arsl/internal/landmarks"
	"github.com/MeKo-Tech/arsl/internal/utils"
	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"
)

const (
	outputFormatJSON = "json"
	outputFormatText = "text"
)

// noPrediction is printed in text output for frames without a label.
const noPrediction = "-"

// predictCmd classifies single images.
var predictCmd = &cobra.Command{
	Use:   "predict <image>...",
	Short: "Predict the glyph shown in one or more images",
	Long: `Detect the hand in each image and print the recognized glyph, or "-"
when no hand was found or classification failed.

Supported formats: JPEG, PNG, BMP, WEBP

Examples:
  arsl predict hand.jpg
  arsl predict frames/*.png --format json
  arsl predict hand.jpg --overlay-dir overlays/`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runPredictCommand,
}

// ImagePrediction is the JSON form of one predicted image.
type ImagePrediction struct {
	File       string                `json:"file"`
	Prediction *string               `json:"prediction"`
	Status     inference.Status      `json:"status"`
	RawClass   string                `json:"raw_class,omitempty"`
	Landmarks  [][]landmarks.Point2D `json:"landmarks"`
	Error      string                `json:"error,omitempty"`
	DurationMs float64               `json:"duration_ms"`
}

func runPredictCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	format, _ := cmd.Flags().GetString("format")
	if format != outputFormatText && format != outputFormatJSON {
		return fmt.Errorf("invalid output format: %s (must be one of: %s, %s)", format, outputFormatText, outputFormatJSON)
	}
	overlayDir, _ := cmd.Flags().GetString("overlay-dir")

	orch, det, err := buildOrchestrator(cmd, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = det.Close() }()

	results := make([]ImagePrediction, 0, len(args))
	var failed int
	for _, path := range args {
		p, err := predictFile(orch, path, overlayDir)
		if err != nil {
			return err
		}
		if p.Status == inference.StatusFailed {
			failed++
		}
		results = append(results, p)
	}

	if err := writePredictions(cmd.OutOrStdout(), format, results); err != nil {
		return err
	}
	if failed == len(results) {
		return fmt.Errorf("prediction failed for all %d image(s)", failed)
	}
	return nil
}

// predictFile runs one image through the orchestrator. Only an unreadable
// file is an error; detector and classifier failures are reported per image.
func predictFile(orch *inference.Orchestrator, path, overlayDir string) (ImagePrediction, error) {
	img, _, err := utils.LoadImage(path)
	if err != nil {
		return ImagePrediction{}, fmt.Errorf("failed to load image %s: %w", path, err)
	}

	res, perr := orch.Predict(img)
	p := ImagePrediction{
		File:       path,
		Prediction: res.Prediction(),
		Status:     res.Status,
		RawClass:   res.RawClass,
		Landmarks:  res.Detection.XY(),
		DurationMs: float64(res.Duration.Microseconds()) / 1000,
	}
	switch {
	case perr != nil:
		p.Error = perr.Error()
	case res.Err != nil:
		p.Error = res.Err.Error()
	}

	if overlayDir != "" && len(res.Detection.Hands) > 0 {
		if err := saveOverlay(overlayDir, path, img, res.Detection); err != nil {
			return ImagePrediction{}, err
		}
	}
	return p, nil
}

// saveOverlay writes img with the detected keypoints drawn to
// dir/<name>_overlay.png.
func saveOverlay(dir, path string, img image.Image, det landmarks.Detection) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create overlay directory: %w", err)
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	out := filepath.Join(dir, base+"_overlay.png")
	if err := imaging.Save(utils.DrawLandmarks(img, det, 2), out); err != nil {
		return fmt.Errorf("failed to save overlay %s: %w", out, err)
	}
	return nil
}

func writePredictions(w io.Writer, format string, results []ImagePrediction) error {
	if format == outputFormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	single := len(results) == 1
	for _, r := range results {
		label := noPrediction
		if r.Prediction != nil {
			label = *r.Prediction
		}
		var err error
		if single {
			_, err = fmt.Fprintln(w, label)
		} else {
			_, err = fmt.Fprintf(w, "%s: %s\n", r.File, label)
		}
		if err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(predictCmd)

	predictCmd.Flags().StringP("format", "f", outputFormatText, "output format: text, json")
	predictCmd.Flags().String("classifier", "", "classifier artifact path (overrides config)")
	predictCmd.Flags().String("overlay-dir", "", "directory to save images with drawn landmarks")
	addDetectorFlags(predictCmd, detector.ServingMinConfidence)
}
