package cmd

import (
	"fmt"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/MeKo-Tech/arsl/internal/batch"
	"github.com/MeKo-Tech/arsl/internal/config"
	"github.com/MeKo-Tech/arsl/internal/detector"
	"github.com/spf13/cobra"
)

// extractCmd builds a feature table from a labeled image corpus.
var extractCmd = &cobra.Command{
	Use:   "extract <corpus-root>",
	Short: "Extract landmark features from a labeled image corpus",
	Long: `Run the hand landmark detector over every image of a labeled corpus and
write the resulting feature table.

The corpus root holds one subdirectory per class; the directory name is the
label of every image inside it. Images without a detected hand are dropped and
counted. An existing feature table at the output path is replaced.

Supported formats: JPEG, PNG, BMP, WEBP

Examples:
  arsl extract dataset/
  arsl extract dataset/ --output features.json --workers 8
  arsl extract dataset/ --format json --summary audit.json`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runExtractCommand,
}

// configToBatchConfig maps centralized configuration to batch.Config with
// CLI flag overrides.
func configToBatchConfig(cfg *config.Config, cmd *cobra.Command, corpusRoot string) batch.Config {
	bc := cfg.ToBatchConfig()
	bc.CorpusRoot = corpusRoot

	if cmd.Flags().Changed("output") {
		bc.OutputPath, _ = cmd.Flags().GetString("output")
	}
	if cmd.Flags().Changed("workers") {
		bc.Workers, _ = cmd.Flags().GetInt("workers")
	}
	if cmd.Flags().Changed("include") {
		bc.IncludePatterns, _ = cmd.Flags().GetStringSlice("include")
	}
	if cmd.Flags().Changed("exclude") {
		bc.ExcludePatterns, _ = cmd.Flags().GetStringSlice("exclude")
	}
	if cmd.Flags().Changed("progress") {
		bc.ShowProgress, _ = cmd.Flags().GetBool("progress")
	}
	if cmd.Flags().Changed("min-class-yield") {
		bc.MinClassYield, _ = cmd.Flags().GetFloat64("min-class-yield")
	}
	bc.Quiet, _ = cmd.Flags().GetBool("quiet")
	bc.ProgressWriter = cmd.ErrOrStderr()

	detectorOverrides(cmd, &bc.Detector)
	if detectorFactory != nil {
		bc.Factory = detectorFactory(bc.Detector)
	}
	return bc
}

func runExtractCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	bc := configToBatchConfig(cfg, cmd, args[0])

	format, _ := cmd.Flags().GetString("format")
	summary, _ := cmd.Flags().GetString("summary")
	switch format {
	case batch.FormatText, batch.FormatJSON, batch.FormatYAML:
	default:
		return fmt.Errorf("invalid output format: %s (must be one of: text, json, yaml)", format)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !bc.Quiet {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Extracting features from %s...\n", bc.CorpusRoot)
	}

	result, err := batch.Run(ctx, bc)
	if err != nil {
		return fmt.Errorf("feature extraction failed: %w", err)
	}

	if err := result.SaveResults(format, summary, cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("failed to save results: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringP("output", "o", "", "feature table output path (default from config: features.json)")
	extractCmd.Flags().IntP("workers", "w", 0, fmt.Sprintf("number of parallel workers (default: %d)", runtime.NumCPU()))
	extractCmd.Flags().StringSlice("include", nil, "file patterns to include (default: all supported images)")
	extractCmd.Flags().StringSlice("exclude", nil, "file patterns to exclude")
	extractCmd.Flags().Bool("progress", true, "show progress bar on stderr")
	extractCmd.Flags().Bool("quiet", false, "suppress progress output")
	extractCmd.Flags().Float64("min-class-yield", batch.DefaultMinClassYield,
		"per-class retention below which a warning is logged (0.0-1.0)")
	extractCmd.Flags().StringP("format", "f", "text", "summary format: text, json, yaml")
	extractCmd.Flags().String("summary", "", "write the summary to a file instead of stdout")
	addDetectorFlags(extractCmd, detector.ExtractionMinConfidence)
}
