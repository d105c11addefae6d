package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/MeKo-Tech/arsl/internal/config"
	"github.com/MeKo-Tech/arsl/internal/detector"
	"github.com/MeKo-Tech/arsl/internal/server"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for live glyph prediction",
	Long: `Start an HTTP server that classifies frames sent by a browser or client.

The server provides the following endpoints:
  POST /predict     - Classify one frame sent as a data URL
  GET  /ws/predict  - WebSocket stream, one reply per frame
  GET  /labels      - The glyph table and configured aliases
  GET  /health      - Health check endpoint
  GET  /metrics     - Prometheus metrics

Examples:
  arsl serve
  arsl serve --port 8080
  arsl serve --host 0.0.0.0 --port 3000 --rate-limit-enabled`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runServeCommand,
}

// configToServerConfig maps centralized configuration to server.Config with
// CLI flag overrides.
func configToServerConfig(cfg *config.Config, cmd *cobra.Command) server.Config {
	sc := cfg.ToServerConfig()

	if cmd.Flags().Changed("host") {
		sc.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		sc.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("cors-origin") {
		sc.CORSOrigin, _ = cmd.Flags().GetString("cors-origin")
	}
	if cmd.Flags().Changed("max-upload-size") {
		maxUpload, _ := cmd.Flags().GetInt("max-upload-size")
		sc.MaxUploadMB = int64(maxUpload)
	}
	if cmd.Flags().Changed("timeout") {
		sc.TimeoutSec, _ = cmd.Flags().GetInt("timeout")
	}
	if cmd.Flags().Changed("rate-limit-enabled") {
		sc.RateLimit.Enabled, _ = cmd.Flags().GetBool("rate-limit-enabled")
	}
	if cmd.Flags().Changed("requests-per-minute") {
		sc.RateLimit.RequestsPerMinute, _ = cmd.Flags().GetInt("requests-per-minute")
	}
	if cmd.Flags().Changed("requests-per-hour") {
		sc.RateLimit.RequestsPerHour, _ = cmd.Flags().GetInt("requests-per-hour")
	}
	if cmd.Flags().Changed("max-requests-per-day") {
		sc.RateLimit.MaxRequestsPerDay, _ = cmd.Flags().GetInt("max-requests-per-day")
	}
	if cmd.Flags().Changed("max-data-per-day") {
		sc.RateLimit.MaxDataPerDay, _ = cmd.Flags().GetInt64("max-data-per-day")
	}
	return sc
}

func runServeCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	sc := configToServerConfig(cfg, cmd)

	if sc.Port < 1 || sc.Port > 65535 {
		return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", sc.Port)
	}

	shutdownTimeout := cfg.ShutdownTimeout()
	if cmd.Flags().Changed("shutdown-timeout") {
		secs, _ := cmd.Flags().GetInt("shutdown-timeout")
		cfg.Server.ShutdownTimeout = secs
		shutdownTimeout = cfg.ShutdownTimeout()
	}

	orch, det, err := buildOrchestrator(cmd, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}
	defer func() { _ = det.Close() }()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	srv := server.NewServer(sc, orch)
	mux := http.NewServeMux()
	srv.SetupRoutes(mux)
	httpServer := server.NewHTTPServer(sc, mux)

	go func() {
		slog.Info("Starting prediction server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		slog.Info("Context cancelled, initiating shutdown")
	}

	slog.Info("Starting graceful shutdown", "timeout", shutdownTimeout.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server shutdown completed")
	}

	if err := det.Close(); err != nil {
		slog.Error("Detector cleanup error", "error", err)
	}

	slog.Info("Graceful shutdown completed")
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("max-upload-size", 10, "maximum request size in MB")
	serveCmd.Flags().Int("timeout", 30, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	serveCmd.Flags().String("classifier", "", "classifier artifact path (overrides config)")
	addDetectorFlags(serveCmd, detector.ServingMinConfidence)
	// Rate limiting flags
	serveCmd.Flags().Bool("rate-limit-enabled", false, "enable rate limiting")
	serveCmd.Flags().Int("requests-per-minute", 600, "maximum requests per minute per client")
	serveCmd.Flags().Int("requests-per-hour", 10000, "maximum requests per hour per client")
	serveCmd.Flags().Int("max-requests-per-day", 50000, "maximum requests per day per client")
	serveCmd.Flags().Int64("max-data-per-day", 1024*1024*1024, "maximum data processed per day per client (bytes)")
}
