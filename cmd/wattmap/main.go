package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/wattmap-nz/wattmap/internal/config"
	"github.com/wattmap-nz/wattmap/internal/queryapi"
	"github.com/wattmap-nz/wattmap/internal/registry"
	"github.com/wattmap-nz/wattmap/internal/repository"
	"github.com/wattmap-nz/wattmap/internal/server"
)

func main() {
	configPath := flag.String("config", "wattmap.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded config", "config", cfg)

	// 2. Initialize Dataset Registry
	reg, err := registry.New(registry.Default(cfg.Data.Dir))
	if err != nil {
		slog.Error("Failed to build dataset registry", "error", err)
		os.Exit(1)
	}

	// 3. Initialize Query Layer
	repo := repository.New(reg)
	querySvc := queryapi.NewService(reg, repo)

	// 4. Initialize Server
	srv := server.New(cfg.Server.Addr(), querySvc, cfg.Server.Mode)
	querySvc.RegisterRoutes(srv.Engine)

	// 5. Start Services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Signal handler triggers the shutdown sequence below.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	// HTTP server blocks until ctx is cancelled.
	if err := srv.Run(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}

	slog.Info("Shutdown complete")
}
