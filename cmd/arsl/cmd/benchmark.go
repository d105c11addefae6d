package cmd

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/MeKo-Tech/arsl/internal/benchmark"
	"github.com/MeKo-Tech/arsl/internal/landmarks"
	"github.com/MeKo-Tech/arsl/internal/utils"
	"github.com/spf13/cobra"
)

// benchmarkCmd times the serving path stage by stage.
var benchmarkCmd = &cobra.Command{
	Use:   "benchmark <image>...",
	Short: "Measure per-frame prediction latency",
	Long: `Run the serving detector and classifier repeatedly on the given frames
and report latency per stage:

  detect    hand landmark detection only
  classify  feature extraction and classification of a detected hand
  predict   the full per-frame path

Frames are cycled in order. The classify stage is skipped when no frame
contains a hand.

Examples:
  arsl benchmark hand.jpg
  arsl benchmark frames/*.png --iterations 200 --format json`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runBenchmarkCommand,
}

func runBenchmarkCommand(cmd *cobra.Command, args []string) error {
	iterations, _ := cmd.Flags().GetInt("iterations")
	warmup, _ := cmd.Flags().GetInt("warmup")
	format, _ := cmd.Flags().GetString("format")
	if iterations < 1 {
		return fmt.Errorf("iterations must be positive, got %d", iterations)
	}
	if format != outputFormatText && format != outputFormatJSON {
		return fmt.Errorf("unsupported format: %s", format)
	}

	frames := make([]image.Image, 0, len(args))
	for _, path := range args {
		img, _, err := utils.LoadImage(path)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
		frames = append(frames, img)
	}

	orch, det, err := buildOrchestrator(cmd, GetConfig())
	if err != nil {
		return err
	}
	defer func() {
		_ = det.Close()
	}()

	var detections []landmarks.Detection
	for _, img := range frames {
		d, err := det.Detect(img)
		if err != nil {
			return fmt.Errorf("detection failed: %w", err)
		}
		if !d.Empty() {
			detections = append(detections, d)
		}
	}

	suite := benchmark.NewSuite(warmup)

	nextDetect := cycle(len(frames))
	suite.Add("detect", func() error {
		_, err := det.Detect(frames[nextDetect()])
		return err
	})
	if len(detections) > 0 {
		nextDet := cycle(len(detections))
		suite.Add("classify", func() error {
			return orch.PredictDetection(detections[nextDet()]).Err
		})
	} else {
		slog.Warn("No hand found in any frame, skipping classify stage", "frames", len(frames))
	}
	nextFrame := cycle(len(frames))
	suite.Add("predict", func() error {
		_, err := orch.Predict(frames[nextFrame()])
		return err
	})

	results := suite.RunAll(iterations)
	out, err := benchmark.Format(results, format)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprint(cmd.OutOrStdout(), out); err != nil {
		return err
	}

	for _, r := range results {
		if r.Error != nil {
			return fmt.Errorf("benchmark %s failed: %w", r.Name, r.Error)
		}
	}
	return nil
}

// cycle returns a function yielding 0..n-1 repeatedly.
func cycle(n int) func() int {
	i := -1
	return func() int {
		i = (i + 1) % n
		return i
	}
}

func init() {
	rootCmd.AddCommand(benchmarkCmd)

	benchmarkCmd.Flags().IntP("iterations", "n", 50, "timed iterations per stage")
	benchmarkCmd.Flags().Int("warmup", 3, "untimed iterations per stage before timing")
	benchmarkCmd.Flags().StringP("format", "f", outputFormatText, "output format: text, json")
	benchmarkCmd.Flags().String("classifier", "", "path to the classifier artifact (overrides config)")
	addDetectorFlags(benchmarkCmd, 0.3)
}
