package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gametester/runctl/cmd/runctl/server"
	"github.com/gametester/runctl/internal/config"
	"github.com/gametester/runctl/internal/logging"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the local run API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(ctx context.Context, opts *rootOptions) error {
	logger, logShutdown, err := logging.NewLogger()
	if err != nil {
		return startUpFailed(nil, err, "Failed to create service logger", logging.FallbackLogger())
	}

	a, err := newApp(ctx, opts, logger, logShutdown)
	defer a.close()
	if err != nil {
		return startUpFailed(a.conf, err, "Failed to set up the service", logger)
	}

	srv, err := server.NewServer(logger, a.conf, a.controller, a.feedback, a.store, a.validate)
	if err != nil {
		return startUpFailed(a.conf, err, "Failed to create server", logger)
	}

	logger.Info("Server starting",
		"server_port", srv.GetPort(),
		"version", a.conf.Service.Version,
		"build", a.conf.Service.Build,
		"build_date", a.conf.Service.BuildDate,
		"backend", a.backend.Name(),
		"local", a.conf.Service.LocalMode,
		"history", a.store != nil,
	)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return startUpFailed(a.conf, err, "Server failed to start", logger)
		}
		return nil
	case <-quit:
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err.Error(), "timeout", shutdownTimeout)
		return err
	}
	logger.Info("Server shutdown gracefully")
	return nil
}

// startUpFailed writes the termination message for the process supervisor
// and returns the start up error.
func startUpFailed(conf *config.Config, err error, msg string, logger *slog.Logger) error {
	termErr := server.SetTerminationMessage(server.GetTerminationFile(conf, logger), fmt.Sprintf("%s: %s", msg, err.Error()), logger)
	if termErr != nil {
		logger.Error("Failed to set termination message", "message", msg, "error", termErr.Error())
	}
	return fmt.Errorf("%s: %w", msg, err)
}
