package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"plantshop/internal/app"
	"plantshop/internal/config"
	"plantshop/internal/logger"
	"plantshop/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Initialize logger
	logger := logger.New(cfg.LogLevel)

	brokers := cfg.Brokers()
	if len(brokers) == 0 {
		logger.Fatal("KAFKA_BROKERS is required for the worker")
	}

	a, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize: %v", err)
	}
	defer a.Close()

	w := worker.New(worker.NewKafkaSource(brokers, cfg.KafkaTopic), a.Dispatcher, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting worker...")
	w.Run(ctx)
	w.Stop()
}
