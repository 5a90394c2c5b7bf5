package main

import (
	"context"
	"os/signal"
	"syscall"

	"cutx/catalog/internal/config"
	"cutx/catalog/internal/container"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file, using the process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	container.SetupLogging(cfg.Log)
	log.Info("🚀 Starting CutX catalogue API...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := container.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	defer app.Close()

	app.BuildCatalog(ctx)
	if err := app.RunAPI(ctx); err != nil {
		log.Errorf("API exited with error: %v", err)
		return
	}

	log.Info("API stopped")
}
