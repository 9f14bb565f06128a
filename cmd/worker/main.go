package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/marcelsud/webhook-dispatch/config"
	"github.com/marcelsud/webhook-dispatch/metrics"
	"github.com/marcelsud/webhook-dispatch/webhook/delivery"
	"github.com/marcelsud/webhook-dispatch/webhook/postgres"
	whredis "github.com/marcelsud/webhook-dispatch/webhook/redis"
	"github.com/marcelsud/webhook-dispatch/webhook/urlguard"
	"github.com/rs/zerolog"
)

const (
	promoteInterval = time.Second
	consumeBlock    = 5 * time.Second
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "webhook-worker").Logger()

	cfg, err := config.GetConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("loading config")
	}
	deliveryCfg, err := cfg.DeliveryConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("loading config")
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT,
	)
	defer stop()

	db, err := postgres.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connecting to postgres")
	}
	webhooks := postgres.NewWebhookStore(db)
	defer webhooks.Close(context.Background())
	attempts := postgres.NewAttemptStore(db)

	queue, err := whredis.NewQueue(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.QueueName, consumeBlock)
	if err != nil {
		logger.Fatal().Err(err).Msg("connecting to redis")
	}
	defer queue.Close(context.Background())

	exporter, err := metrics.NewOTelExporter(nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("creating metrics exporter")
	}
	defer exporter.Shutdown(context.Background())

	guard := urlguard.New(urlguard.WithAllowedSchemes(cfg.Schemes()...))
	executor := delivery.NewExecutor(webhooks, attempts, guard, deliveryCfg,
		delivery.WithObserver(exporter),
		delivery.WithLogger(logger),
	)

	workerID := cfg.WorkerID
	if workerID == "" {
		workerID, _ = os.Hostname()
	}
	worker := delivery.NewWorker(queue, queue, executor, queue, delivery.WorkerConfig{
		ID:          workerID,
		Queue:       cfg.QueueName,
		Concurrency: cfg.WorkerConcurrency,
		BatchSize:   10,
	}, logger)

	mux := http.NewServeMux()
	mux.Handle("/metrics", exporter.ServeHTTP())
	srv := &http.Server{
		Addr:              ":" + cfg.MetricsPort,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		queue.RunPromoter(ctx, promoteInterval, logger)
	}()
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("serving metrics")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("stopping metrics server")
	}
	wg.Wait()
}
