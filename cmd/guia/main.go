package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"

	"github.com/lucasll37/guia-financeiro/internal/alerts"
	"github.com/lucasll37/guia-financeiro/internal/amqp"
	"github.com/lucasll37/guia-financeiro/internal/config"
	apphttp "github.com/lucasll37/guia-financeiro/internal/http"
	applog "github.com/lucasll37/guia-financeiro/internal/log"
	"github.com/lucasll37/guia-financeiro/internal/storage"
)

func main() {
	// Load .env for local development; production sets real env vars.
	_ = godotenv.Load()

	cfg := config.Load()

	logger := applog.New(applog.Config{
		Handler: applog.NewHandler(cfg.LogFormat, applog.ParseLevel(cfg.LogLevel)),
	})
	applog.SetDefault(logger)
	log := logger.WithComponent(applog.ComponentApp)

	log.Info("Starting guia-financeiro server")

	if err := cfg.Validate(); err != nil {
		log.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: os.Getenv("ENVIRONMENT"),
		}); err != nil {
			log.Warn("Failed to initialize Sentry, continuing without it", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		log.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// Notification fan-out is optional; without a broker the engine still
	// persists notifications.
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

	srv := apphttp.NewServer(":"+cfg.Port, repo, evaluator)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		log.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	log.Info("Starting HTTP server", "port", cfg.Port, "db", cfg.SQLiteDBPath)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	log.Info("Server stopped gracefully")
}
