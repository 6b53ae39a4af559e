package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikey/inbox-triage/internal/adapters/mail"
	"github.com/mikey/inbox-triage/internal/config"
	"github.com/mikey/inbox-triage/internal/di"
	"github.com/mikey/inbox-triage/internal/instrumentation"
	"github.com/mikey/inbox-triage/internal/ports"
	"github.com/mikey/inbox-triage/internal/server"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the poll loop and HTTP server until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := di.BuildContainer(*configFile)
			if err != nil {
				return fmt.Errorf("failed to build dependency container: %w", err)
			}
			return container.Invoke(serve)
		},
	}
}

// serve is the main daemon function that gets all dependencies injected
func serve(
	cfg *config.Config,
	logger *zap.Logger,
	store ports.Store,
	runner ports.Runner,
	httpServer *server.Server,
	ingest *mail.IngestServer,
	metrics *instrumentation.Provider,
) error {
	defer logger.Sync()

	if err := httpServer.Start(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	if cfg.GetIngest().Enabled {
		if err := ingest.Start(); err != nil {
			return fmt.Errorf("failed to start SMTP ingest: %w", err)
		}
	}
	if err := runner.Start(); err != nil {
		return fmt.Errorf("failed to start poller: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("Shutting down...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := runner.Stop(); err != nil {
		logger.Error("Failed to stop poller", zap.Error(err))
	}
	if err := ingest.Stop(); err != nil {
		logger.Error("Failed to stop SMTP ingest", zap.Error(err))
	}
	if err := httpServer.Stop(ctx); err != nil {
		logger.Error("Failed to stop HTTP server", zap.Error(err))
	}
	if err := metrics.Shutdown(ctx); err != nil {
		logger.Error("Failed to stop metrics", zap.Error(err))
	}
	if err := store.Close(); err != nil {
		logger.Error("Failed to close store", zap.Error(err))
	}

	logger.Info("Shutdown complete")
	return nil
}
