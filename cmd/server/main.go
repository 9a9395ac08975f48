package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/numena-dex/bookd/config"
	"github.com/numena-dex/bookd/pkg/archive"
	"github.com/numena-dex/bookd/pkg/core"
	"github.com/numena-dex/bookd/pkg/logging"
	"github.com/numena-dex/bookd/pkg/messaging"
	"github.com/numena-dex/bookd/pkg/messaging/kafka"
	"github.com/numena-dex/bookd/pkg/otel"
	"github.com/numena-dex/bookd/pkg/server"
	"github.com/numena-dex/bookd/pkg/stream"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Setup logging
	logging.Setup(logging.Config{
		Level:  cfg.Server.LogLevel,
		Pretty: cfg.Server.LogFormat == "pretty",
		Output: os.Stdout,
	})
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.Server.LogFormat == "pretty" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	ctx := logger.WithContext(context.Background())

	// Initialize OpenTelemetry
	cleanup, err := otel.Init(otel.Config{
		ServiceName:    "bookd",
		ServiceVersion: "1.0.0",
		Endpoint:       "localhost:4317",
	})
	if err != nil {
		log.Fatalf("Failed to initialize OpenTelemetry: %v", err)
	}
	defer cleanup()

	// Streaming hub for WebSocket subscribers
	hub := stream.NewHub(cfg.Engine.SubscriberQueue)
	defer hub.Close()

	// Trade archive: Redis when configured, in-memory ring otherwise
	var trades archive.TradeArchive
	if cfg.Redis.Enabled {
		archive.SetDefaultRedisOptions(&archive.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		trades = archive.NewRedisArchive(archive.GetRedisClient(), "bookd", 0)
	} else {
		trades = archive.NewMemoryArchive(0)
	}
	defer trades.Close()

	// Books publish into the hub and the archive
	registry := server.NewBookRegistry(core.Config{
		ExpiryHorizon:  cfg.Engine.ExpiryHorizon,
		NonceWindow:    cfg.Engine.NonceWindow,
		MaxSlippageBps: cfg.Engine.MaxSlippageBps,
		SnapshotDepth:  cfg.Engine.SnapshotDepth,
	}, stream.NewFanoutSink(hub, trades))
	defer registry.Close()
	registry.StartSweeper(cfg.Engine.SweepInterval)

	// Kafka execution feed (optional)
	var sender messaging.MessageSender
	if cfg.Kafka.Enabled {
		kafkaSender, err := kafka.NewKafkaMessageSender(cfg.Kafka.BrokerAddr, cfg.Kafka.Topic)
		if err != nil {
			logger.Warn().Err(err).Msg("Kafka sender unavailable, execution feed disabled")
		} else {
			sender = kafkaSender
			defer kafkaSender.Close()
		}

		// The consumer is for developer purposes: it pretty prints the
		// execution feed coming back off the queue.
		if kafkaConsumer, err := kafka.SetupConsumer(ctx, logger); err == nil && kafkaConsumer != nil {
			defer kafkaConsumer.Close()
		}
	}

	// HTTP server
	api := server.NewServer(registry, hub, trades, sender)
	httpServer := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: api.Router(),
	}

	go func() {
		logger.Info().Str("addr", cfg.Server.HTTPAddr).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to serve HTTP")
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh

	logger.Info().Str("signal", sig.String()).Msg("Received signal, shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	logger.Info().Msg("Server shutdown complete")
}
