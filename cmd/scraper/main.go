package main

import (
	"context"
	"errors"
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
	log.Info("🚀 Starting CutX scraper...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := container.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	defer app.Close()

	if err := app.BuildScraper(ctx); err != nil {
		log.Fatalf("Failed to initialize scraper: %v", err)
	}

	if err := app.RunScraper(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Errorf("Scraper exited with error: %v", err)
		return
	}

	log.Info("Scraper stopped")
}
