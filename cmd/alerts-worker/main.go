package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/lucasll37/guia-financeiro/internal/alerts"
	"github.com/lucasll37/guia-financeiro/internal/amqp"
	"github.com/lucasll37/guia-financeiro/internal/config"
	applog "github.com/lucasll37/guia-financeiro/internal/log"
	"github.com/lucasll37/guia-financeiro/internal/storage"
	"github.com/lucasll37/guia-financeiro/internal/worker"
)

func main() {
	// Load .env for local development; production sets real env vars.
	_ = godotenv.Load()

	cfg := config.Load()

	logger := applog.New(applog.Config{
		Handler: applog.NewHandler(cfg.LogFormat, applog.ParseLevel(cfg.LogLevel)),
	})
	applog.SetDefault(logger)
	log := logger.WithComponent(applog.ComponentWorker)

	log.Info("Starting alerts-worker")

	if err := cfg.Validate(); err != nil {
		log.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		log.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	var publisher alerts.Publisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			log.Warn("Failed to initialize AMQP client, continuing without fan-out", "error", err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
			log.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	} else {
		log.Info("AMQP disabled - notification events will not be published")
	}

	evaluator := alerts.NewEvaluator(repo, publisher,
		alerts.Rules{VarianceThresholdPct: cfg.VarianceThresholdPct}, cfg.DedupWindow)

	alertsWorker := worker.NewAlertsWorker(repo, evaluator, cfg.AlertsInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		alertsWorker.Run(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info("Shutdown signal received", "signal", sig.String())
	cancel()

	select {
	case <-done:
		log.Info("Alerts-worker shutdown complete")
	case <-time.After(30 * time.Second):
		log.Warn("Shutdown timeout reached")
	}
}
