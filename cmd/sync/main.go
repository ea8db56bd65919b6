// Command sync runs a single Lightspeed sync and exits, for cron hosts that
// prefer a process over the HTTP trigger.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"plantshop/internal/app"
	"plantshop/internal/config"
	"plantshop/internal/logger"
	"plantshop/internal/models"
)

func main() {
	syncType := flag.String("type", "full", `sync type: "full" or "inventory"`)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}
	logger := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize: %v", err)
	}

	result, err := a.Syncer.Run(ctx, models.ParseSyncType(*syncType))
	a.Close()
	if err != nil {
		logger.Error("Sync failed: %v", err)
		os.Exit(1)
	}
	logger.Info("Synced %d items (%d archived) in %s", result.ItemsSynced, result.Archived, result.FinishedAt.Sub(result.StartedAt))
}
