package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/boardimport/internal/backend"
	"github.com/JonMunkholm/boardimport/internal/config"
	"github.com/JonMunkholm/boardimport/internal/importer"
	"github.com/JonMunkholm/boardimport/internal/logging"
	"github.com/JonMunkholm/boardimport/internal/web"
)

func main() {
	if err := config.LoadEnvFiles(); err != nil {
		slog.Warn("could not load .env file", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("configuration loaded", "config", cfg.String())

	ctx := context.Background()
	store, err := backend.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to open board store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	serviceCfg := cfg.Import.ServiceConfig()
	serviceCfg.Importer.Logger = logger
	service := importer.NewService(store.Store, serviceCfg)

	server := web.NewServer(service, cfg)

	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := service.LimiterStatus(); status.Active > 0 {
			logger.Info("waiting for imports to complete", "active", status.Active)
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown did not complete cleanly", "error", err)
		} else {
			logger.Info("all imports completed")
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
	<-done
}
