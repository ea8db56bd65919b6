package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"plantshop/internal/api"
	"plantshop/internal/api/handlers"
	"plantshop/internal/app"
	"plantshop/internal/config"
	"plantshop/internal/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Initialize logger
	logger := logger.New(cfg.LogLevel)

	a, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize: %v", err)
	}
	defer a.Close()

	deps := api.Deps{
		Syncer:     a.Syncer,
		SyncLogs:   a.Store,
		Products:   a.Store,
		Dispatcher: a.Dispatcher,
		DB:         a.DB,
	}
	// a nil *events.Publisher must not become a non-nil interface
	var publisher handlers.EventPublisher
	if a.Publisher != nil {
		publisher = a.Publisher
		logger.Info("Webhook events are queued to Kafka topic %s", cfg.KafkaTopic)
	}
	deps.Publisher = publisher

	server := api.New(cfg, logger, deps)

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		logger.Error("Server shutdown failed: %v", err)
	}
}
