// Telemetria - Behavioral Telemetry Analytics and Session Replay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemetria

// Package main is the entry point for the Telemetria server.
//
// Telemetria ingests behavioral telemetry batches (page views, clicks,
// inputs, session replay frames) over HTTP, queues them durably in NATS
// JetStream, and processes them into DuckDB for the read-side analytics
// API: heatmaps, session replays, rage-click detection, retention
// cohorts, and traffic breakdowns.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: environment variables and config file (Koanf v2)
//  2. Database: DuckDB with the telemetry schema
//  3. Geo resolver: IP-to-country lookup backed by the geo_networks table
//  4. Queue: NATS JetStream (embedded or external) with a Watermill router
//  5. Worker: batch consumer with per-event processors and a DLQ
//  6. HTTP Server: ingest plus analytics REST API
//
// All long-running components run under a suture supervisor tree and are
// restarted with backoff on failure.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): environment variables (TELEMETRIA_ prefix), config
// file (config.yaml), built-in defaults.
//
// Single-binary mode needs no external services:
//
//	TELEMETRIA_QUEUE_EMBEDDED_SERVER=true ./telemetria
//
// With an external NATS cluster:
//
//	TELEMETRIA_QUEUE_URL=nats://nats:4222 ./telemetria
//
// # Signal Handling
//
// The server shuts down gracefully on SIGINT and SIGTERM: the HTTP
// server stops accepting connections and drains in-flight requests, the
// queue router finishes the batches it holds, and the database runs a
// final checkpoint before closing.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/telemetria/internal/api"
	"github.com/tomtom215/telemetria/internal/config"
	"github.com/tomtom215/telemetria/internal/database"
	"github.com/tomtom215/telemetria/internal/geo"
	"github.com/tomtom215/telemetria/internal/logging"
	"github.com/tomtom215/telemetria/internal/metrics"
	"github.com/tomtom215/telemetria/internal/queue"
	"github.com/tomtom215/telemetria/internal/supervisor"
	"github.com/tomtom215/telemetria/internal/worker"
)

// version is set at build time via -ldflags.
var version = "dev"

const natsReconnectWait = 2 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("version", version).
		Str("db_path", cfg.Database.Path).
		Int("port", cfg.Server.Port).
		Bool("embedded_queue", cfg.Queue.EmbeddedServer).
		Msg("Starting Telemetria")

	metrics.AppInfo.WithLabelValues(version, runtime.Version()).Set(1)

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Geo.SeedPath != "" {
		if err := db.SeedGeoNetworks(ctx, cfg.Geo.SeedPath); err != nil {
			logging.Fatal().Err(err).Str("path", cfg.Geo.SeedPath).Msg("Failed to seed geo networks")
		}
		logging.Info().Str("path", cfg.Geo.SeedPath).Msg("Geo networks seeded")
	}
	resolver := geo.NewResolver(db, cfg.Geo.DefaultCountry)

	natsURL := cfg.Queue.URL
	var embedded *queue.EmbeddedServer
	if cfg.Queue.EmbeddedServer {
		embedded, err = queue.NewEmbeddedServer(cfg.Queue.StoreDir, 0)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to start embedded NATS server")
		}
		natsURL = embedded.ClientURL()
		logging.Info().Str("url", natsURL).Msg("Embedded NATS server started")
	}

	nc, err := natsgo.Connect(natsURL,
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(natsReconnectWait),
	)
	if err != nil {
		logging.Fatal().Err(err).Str("url", natsURL).Msg("Failed to connect to NATS")
	}
	defer nc.Close()

	streams, err := queue.NewStreamManager(nc, &cfg.Queue)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create stream manager")
	}
	if _, err := streams.EnsureStream(ctx); err != nil {
		logging.Fatal().Err(err).Str("stream", cfg.Queue.StreamName).Msg("Failed to ensure stream")
	}
	logging.Info().
		Str("stream", cfg.Queue.StreamName).
		Str("subject", cfg.Queue.Subject).
		Dur("duplicate_window", cfg.Queue.DuplicateWindow).
		Msg("JetStream stream ready")

	wmLogger := queue.NewLoggerAdapter()

	pub, err := queue.NewPublisher(&cfg.Queue, natsURL, wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create publisher")
	}
	pub.SetCircuitBreaker(queue.NewCircuitBreaker(queue.DefaultCircuitBreakerConfig()))
	defer func() {
		if err := pub.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing publisher")
		}
	}()

	sub, err := queue.NewSubscriber(&cfg.Queue, natsURL, wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create subscriber")
	}
	defer func() {
		if err := sub.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing subscriber")
		}
	}()

	router, err := queue.NewRouter(&cfg.Queue, pub.WatermillPublisher(), wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create router")
	}

	stats := queue.NewStats(streams, db)
	worker.New(db, stats).Register(router, cfg.Queue.Subject, sub.WatermillSubscriber())
	queue.NewDLQConsumer(db, &cfg.Queue, wmLogger).Register(router, sub.WatermillSubscriber())

	handler := api.NewHandler(db, pub, resolver, stats, cfg)
	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      api.NewRouter(handler, &cfg.Server),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddStoreService(&supervisor.CheckpointService{DB: db})
	tree.AddQueueService(&supervisor.RunnerService{Name: "batch-router", Runner: router})
	tree.AddAPIService(&supervisor.HTTPService{
		Server:          httpServer,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})

	errCh := tree.ServeBackground(ctx)
	logging.Info().Str("addr", httpServer.Addr).Msg("Supervisor tree started")

	go trackUptime(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
		cancel()
		if err := <-errCh; err != nil && err != context.Canceled {
			logging.Error().Err(err).Msg("Supervisor tree stopped with error")
		}
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			logging.Error().Err(err).Msg("Supervisor tree exited")
		}
	}

	if err := router.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing queue router")
	}
	if embedded != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := embedded.Shutdown(shutdownCtx); err != nil {
			logging.Error().Err(err).Msg("Error shutting down embedded NATS server")
		}
		shutdownCancel()
	}

	logging.Info().Msg("Shutdown complete")
}

func trackUptime(ctx context.Context) {
	start := time.Now()
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.AppUptime.Set(time.Since(start).Seconds())
		}
	}
}
