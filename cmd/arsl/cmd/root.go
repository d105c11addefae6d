package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/MeKo-Tech/arsl/internal/config"
	"github.com/MeKo-Tech/arsl/internal/models"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Shared by every subcommand; set by initConfig.
var (
	configLoader *config.Loader
	globalConfig *config.Config
	cfgFile      string
)

// rootCmd prints help, or the version with --version.
var rootCmd = &cobra.Command{
	Use:   "arsl",
	Short: "Arabic sign language glyph recognition from hand landmarks",
	Long: `Recognize static Arabic sign language hand shapes in images.

A palm detector finds each hand and a landmark model locates its 21
keypoints, which are turned into a translation-invariant feature vector and classified into one of the
30 Arabic alphabet glyphs.

This tool provides:
- Feature extraction over a labeled image corpus
- Classifier training with an evaluation report
- Single image prediction
- An HTTP and WebSocket server for live frames

Examples:
  arsl extract dataset/ --output features.json
  arsl train --features features.json
  arsl predict hand.jpg
  arsl serve --port 8080`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, _ := cmd.PersistentFlags().GetBool("version")
		if v {
			printVersion(cmd.OutOrStdout())
			return nil
		}
		return cmd.Help()
	},
}

// Execute runs the command tree and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetRootCommand returns the root command so callers can run it without
// os.Exit.
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is search in ., $HOME/.config/arsl, /etc/arsl)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	defaultModelsDir := models.DefaultModelsDir
	if envDir := os.Getenv(models.EnvModelsDir); envDir != "" {
		defaultModelsDir = envDir
	}
	rootCmd.PersistentFlags().String("models-dir", defaultModelsDir,
		"directory containing the palm, hand landmark and classifier models (can also be set via "+models.EnvModelsDir+")")

	rootCmd.PersistentFlags().Bool("version", false, "print version information and exit")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("models_dir", rootCmd.PersistentFlags().Lookup("models-dir"))

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if globalConfig == nil {
			initConfig()
		}
		setupLogging(cmd, globalConfig)
	}
}

// setupLogging installs a JSON handler on stderr at the configured level.
func setupLogging(cmd *cobra.Command, cfg *config.Config) {
	logger := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel(cfg),
	}))
	slog.SetDefault(logger)
}

// logLevel maps the configured level name; unknown names fall back to info.
func logLevel(cfg *config.Config) slog.Level {
	if cfg.Verbose {
		return slog.LevelDebug
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// initConfig loads the configuration file (explicit or searched) and ARSL_
// environment variables.
func initConfig() {
	configLoader = config.NewLoader()

	var err error
	if cfgFile != "" {
		globalConfig, err = configLoader.LoadWithFile(cfgFile)
	} else {
		globalConfig, err = configLoader.Load()
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "arsl: failed to load configuration: %v\n", err)
		os.Exit(1)
	}
}

// GetConfig returns the global configuration.
func GetConfig() *config.Config {
	if globalConfig == nil {
		initConfig()
	}

	// Flag binding happens after the first load, so unmarshal again to pick
	// up CLI values.
	loader := GetConfigLoader()
	var cfg config.Config
	if err := loader.GetViper().Unmarshal(&cfg); err != nil {
		slog.Warn("Failed to re-read configuration, using the initial load", "error", err)
		return globalConfig
	}

	return &cfg
}

// GetConfigLoader returns the global configuration loader.
func GetConfigLoader() *config.Loader {
	if configLoader == nil {
		configLoader = config.NewLoader()
	}
	return configLoader
}
