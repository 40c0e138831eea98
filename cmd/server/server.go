// Package server implements the server command running the agent API and the connection sweeper.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/demos-sh/demos/app"
	"github.com/demos-sh/demos/config"
	"github.com/demos-sh/demos/web/routes"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

// NewCmdServer creates a command to run the HTTP API and the watcher
func NewCmdServer() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the demos server (agent API + connection sweeper)",
		Long: `Starts the HTTP endpoints used by the tunnel agent together with the
periodic sweep that reverts projects whose agent stopped sending keep-alives.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			go handleShutdown(cancel)

			return runServer(ctx, app.GetConfig())
		},
	}

	return cmd
}

// runServer runs both services until ctx is cancelled
func runServer(ctx context.Context, cfg *config.Config) error {
	if cfg == nil {
		return errors.New("application is not initialized")
	}

	slog.Info("Starting demos server", "version", app.Version, "base_host", cfg.BaseHost)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	watcherDone := make(chan struct{})
	go func() {
		defer close(watcherDone)
		if err := app.GetWatcherService().Start(ctx); err != nil {
			slog.Error("Watcher service failed", "error", err)
			cancel()
		}
	}()

	serverErr := startWebServer(ctx, cfg)
	cancel()
	<-watcherDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		slog.Error("Application shutdown failed", "error", err)
	}

	return serverErr
}

// startWebServer serves the router until ctx is done, then shuts down gracefully
func startWebServer(ctx context.Context, cfg *config.Config) error {
	address := net.JoinHostPort(cfg.HTTPHost, strconv.Itoa(cfg.HTTPPort))
	server := &http.Server{
		Addr:              address,
		Handler:           routes.NewRouter(cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	listenErr := make(chan error, 1)
	go func() {
		slog.Info("Web server starting", "address", address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
		close(listenErr)
	}()

	select {
	case <-ctx.Done():
	case err, ok := <-listenErr:
		if ok {
			return fmt.Errorf("web server failed: %w", err)
		}
	}

	slog.Info("Shutting down web server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("web server shutdown failed: %w", err)
	}

	slog.Info("Web server stopped")
	return nil
}

// handleShutdown handles OS signals for graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	slog.Info("Shutdown signal received")
	cancel()
}
