package cmd

import (
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/MeKo-Tech/arsl/internal/config"
	"github.com/MeKo-Tech/arsl/internal/trainer"
	"github.com/MeKo-Tech/arsl/internal/utils"
	"github.com/spf13/cobra"
)

// trainCmd fits the classifier on a feature table.
var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the glyph classifier on a feature table",
	Long: `Split a feature table into stratified train and test sets, fit the
classifier, print an evaluation report and save the classifier artifact.

Every class needs at least two samples so that both splits can hold it.

Examples:
  arsl train
  arsl train --features features.json --model models/classifier/classifier.json
  arsl train --algorithm knn --k 3 --format json`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runTrainCommand,
}

// configToTrainerConfig maps centralized configuration to trainer.Config
// with CLI flag overrides.
func configToTrainerConfig(cfg *config.Config, cmd *cobra.Command) trainer.Config {
	tc := cfg.ToTrainerConfig()

	if cmd.Flags().Changed("features") {
		tc.FeatureTablePath, _ = cmd.Flags().GetString("features")
	}
	if cmd.Flags().Changed("model") {
		tc.ModelOutputPath, _ = cmd.Flags().GetString("model")
	}
	if cmd.Flags().Changed("test-size") {
		tc.TestSize, _ = cmd.Flags().GetFloat64("test-size")
	}
	if cmd.Flags().Changed("algorithm") {
		tc.Options.Algorithm, _ = cmd.Flags().GetString("algorithm")
	}
	if cmd.Flags().Changed("n-estimators") {
		tc.Options.NEstimators, _ = cmd.Flags().GetInt("n-estimators")
	}
	if cmd.Flags().Changed("max-depth") {
		tc.Options.MaxDepth, _ = cmd.Flags().GetInt("max-depth")
	}
	if cmd.Flags().Changed("k") {
		tc.Options.K, _ = cmd.Flags().GetInt("k")
	}
	if cmd.Flags().Changed("seed") {
		tc.Options.Seed, _ = cmd.Flags().GetInt64("seed")
	}
	if cmd.Flags().Changed("workers") {
		tc.Options.Workers, _ = cmd.Flags().GetInt("workers")
	}
	return tc
}

func runTrainCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	tc := configToTrainerConfig(cfg, cmd)

	format := cfg.Trainer.ReportFormat
	if cmd.Flags().Changed("format") {
		format, _ = cmd.Flags().GetString("format")
	}
	switch format {
	case "", trainer.FormatText, trainer.FormatJSON:
	default:
		return fmt.Errorf("invalid output format: %s (must be one of: text, json)", format)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := trainer.Train(ctx, tc)
	if err != nil {
		return fmt.Errorf("training failed: %w", err)
	}

	output, err := report.Format(format)
	if err != nil {
		return err
	}

	reportFile, _ := cmd.Flags().GetString("report")
	if reportFile != "" {
		if err := utils.WriteFileAtomic(reportFile, func(w io.Writer) error {
			_, err := io.WriteString(w, output)
			return err
		}); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		return nil
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), output)
	return err
}

func init() {
	rootCmd.AddCommand(trainCmd)

	trainCmd.Flags().String("features", "", "feature table path (default from config: features.json)")
	trainCmd.Flags().String("model", "", "classifier artifact output path (default: <models-dir>/classifier/classifier.json)")
	trainCmd.Flags().Float64("test-size", trainer.DefaultTestSize, "fraction of each class held out for evaluation (0.0-1.0, exclusive)")
	trainCmd.Flags().String("algorithm", "random_forest", "classifier algorithm: random_forest, knn")
	trainCmd.Flags().Int("n-estimators", 200, "number of trees in the random forest")
	trainCmd.Flags().Int("max-depth", 0, "maximum tree depth (0 = unlimited)")
	trainCmd.Flags().Int("k", 5, "neighbours for knn")
	trainCmd.Flags().Int64("seed", 42, "random seed for the split and the forest")
	trainCmd.Flags().IntP("workers", "w", 0, "parallel tree builders (0 = number of CPUs)")
	trainCmd.Flags().StringP("format", "f", "text", "report format: text, json")
	trainCmd.Flags().String("report", "", "write the report to a file instead of stdout")
}
