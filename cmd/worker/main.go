package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"engram-backend/infrastructure/config"
	"engram-backend/infrastructure/di"
)

// The worker runs the embedding refresh loop and the maintenance scheduler
// without the HTTP surface.
func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	container, cleanup, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	defer cleanup()
	defer container.Logger.Sync()

	container.Logger.Info("starting worker",
		zap.String("environment", cfg.Environment),
		zap.Duration("refreshPollInterval", cfg.Worker.RefreshPollInterval),
		zap.Duration("maintenanceInterval", cfg.Worker.MaintenanceInterval))

	container.Worker.Start(ctx)
	container.Scheduler.Start(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	container.Logger.Info("stopping worker")
	container.Worker.Stop()
	container.Scheduler.Stop()
}
