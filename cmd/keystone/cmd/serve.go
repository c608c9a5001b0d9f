package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/MeKo-Tech/keystone/internal/config"
	"github.com/MeKo-Tech/keystone/internal/server"
	"github.com/MeKo-Tech/keystone/internal/warp"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for remote corner editing",
	Long: `Start an HTTP server that exposes the corner editor to remote clients.

The server provides the following endpoints:
  GET    /health      - Health check endpoint
  GET    /corners     - Current corners and edit mode
  PUT    /corners     - Replace the corners (JSON array of four points)
  DELETE /corners     - Reset the corners to the unit square
  GET    /homography  - Current correction matrix
  POST   /edit        - Enter or leave edit mode ({"enabled": true})
  GET    /preview     - PNG of the calibration grid through the current matrix
  GET    /ws          - WebSocket editing session
  GET    /metrics     - Prometheus metrics

Examples:
  keystone serve
  keystone serve --port 8080 --store corners.yaml
  keystone serve --host 0.0.0.0 --port 3000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		applyStoreFlags(cmd, cfg)

		if cmd.Flags().Changed("host") {
			cfg.Server.Host, _ = cmd.Flags().GetString("host")
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port, _ = cmd.Flags().GetInt("port")
		}
		if cmd.Flags().Changed("cors-origin") {
			cfg.Server.CORSOrigin, _ = cmd.Flags().GetString("cors-origin")
		}
		if cmd.Flags().Changed("tick-ms") {
			cfg.Server.TickMS, _ = cmd.Flags().GetInt("tick-ms")
		}
		if cmd.Flags().Changed("shutdown-timeout") {
			cfg.Server.ShutdownTimeout, _ = cmd.Flags().GetInt("shutdown-timeout")
		}
		if cmd.Flags().Changed("mutations-per-minute") {
			cfg.Server.MutationsPerMinute, _ = cmd.Flags().GetInt("mutations-per-minute")
		}

		if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
			return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", cfg.Server.Port)
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer cancel()

		return runServer(ctx, cfg)
	},
}

// runServer serves until ctx is done, then shuts down gracefully.
func runServer(ctx context.Context, cfg *config.Config) error {
	logger := slog.Default()

	renderer := warp.NewRenderer(cfg.Server.PreviewWidth, cfg.Server.PreviewHeight)
	ctrl, _, err := newController(cfg, renderer)
	if err != nil {
		return err
	}
	grid := warp.Grid(cfg.Server.PreviewWidth, cfg.Server.PreviewHeight, cfg.Viewer.GridCells)

	editServer := server.NewServer(ctrl, renderer, grid, cfg.ToServerConfig(logger))
	mux := http.NewServeMux()
	editServer.SetupRoutes(mux)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		editServer.Run(ctx)
	}()

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Starting keystone server", "addr", addr, "store", cfg.Store.Path)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			serveErr <- err
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("Starting graceful shutdown", "timeout", fmt.Sprintf("%ds", cfg.Server.ShutdownTimeout))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
	if err := editServer.Close(); err != nil {
		slog.Error("Server cleanup error", "error", err)
	}
	<-loopDone

	// Edits applied over the WebSocket are only persisted when edit mode is
	// left; persist whatever is pending now.
	saveErr := ctrl.Save()

	select {
	case err := <-serveErr:
		return errors.Join(err, saveErr)
	default:
	}
	slog.Info("Graceful shutdown completed")
	return saveErr
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addStoreFlags(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("tick-ms", 16, "period of the editing loop in milliseconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	serveCmd.Flags().Int("mutations-per-minute", 120, "maximum PUT/POST/DELETE requests per minute per client (0 disables)")
}
