package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marcelsud/webhook-dispatch/config"
	"github.com/marcelsud/webhook-dispatch/internal/http/chi"
	"github.com/marcelsud/webhook-dispatch/metrics"
	"github.com/marcelsud/webhook-dispatch/subscriptions"
	"github.com/marcelsud/webhook-dispatch/webhook"
	"github.com/marcelsud/webhook-dispatch/webhook/delivery"
	"github.com/marcelsud/webhook-dispatch/webhook/postgres"
	whredis "github.com/marcelsud/webhook-dispatch/webhook/redis"
	"github.com/marcelsud/webhook-dispatch/webhook/urlguard"
	"github.com/rs/zerolog"
)

const TIMEOUT = 30 * time.Second

/* api wires storage, queue and services behind the HTTP router
 * Imports only flow downwards: cmd -> services -> storage
 */

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "webhook-api").Logger()

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
	if err := postgres.CreateSchema(ctx, db); err != nil {
		logger.Fatal().Err(err).Msg("creating schema")
	}
	webhooks := postgres.NewWebhookStore(db)
	defer webhooks.Close(ctx)
	attempts := postgres.NewAttemptStore(db)

	queue, err := whredis.NewQueue(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.QueueName, time.Second)
	if err != nil {
		logger.Fatal().Err(err).Msg("connecting to redis")
	}
	defer queue.Close(ctx)

	guard := urlguard.New(urlguard.WithAllowedSchemes(cfg.Schemes()...))
	dispatcher := delivery.NewDispatcher(webhooks, queue, deliveryCfg, logger)
	service := webhook.NewService(webhooks, attempts, guard, dispatcher, cfg.TimeoutBounds())

	if cfg.SeedFile != "" {
		loader := subscriptions.NewLoader(cfg.TimeoutBounds())
		if err := loader.Load(cfg.SeedFile); err != nil {
			logger.Fatal().Err(err).Str("file", cfg.SeedFile).Msg("loading seed file")
		}
		if _, err := subscriptions.Seed(ctx, loader, service, logger); err != nil {
			logger.Fatal().Err(err).Msg("seeding webhooks")
		}
	}

	exporter, err := metrics.NewOTelExporter(metrics.NewRedisCollector(queue))
	if err != nil {
		logger.Fatal().Err(err).Msg("creating metrics exporter")
	}
	defer exporter.Shutdown(context.Background())

	r := chi.Handlers(ctx, service, dispatcher, exporter.ServeHTTP())
	srv := &http.Server{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		Addr:         ":" + cfg.Port,
		Handler:      r,
	}

	errShutdown := make(chan error, 1)
	go shutdown(srv, ctx, errShutdown)
	logger.Info().Str("port", cfg.Port).Msg("listening")
	err = srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("serving http")
		return
	}
	if err := <-errShutdown; err != nil {
		logger.Error().Err(err).Msg("shutting down")
	}
}

func shutdown(server *http.Server, ctxShutdown context.Context, errShutdown chan error) {
	<-ctxShutdown.Done()

	ctxTimeout, stop := context.WithTimeout(context.Background(), TIMEOUT)
	defer stop()

	err := server.Shutdown(ctxTimeout)
	switch err {
	case nil:
		errShutdown <- nil
	case context.DeadlineExceeded:
		errShutdown <- fmt.Errorf("forcing closing the server")
	default:
		errShutdown <- fmt.Errorf("forcing closing the server: %w", err)
	}
}
