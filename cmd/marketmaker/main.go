package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/numena-dex/bookd/pkg/core"
	"github.com/numena-dex/bookd/pkg/marketmaker"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	logger := log.Logger

	cfg, err := marketmaker.LoadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if err := ensureBook(cfg); err != nil {
		logger.Fatal().Err(err).Str("book_id", cfg.BookID).Msg("Failed to ensure book exists")
	}

	fetcher, err := marketmaker.NewPriceFetcher(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create price fetcher")
	}
	defer fetcher.Close()

	strategy := marketmaker.NewLayeredSymmetricQuoting(cfg, logger)

	trader, err := core.GenerateTraderAddress()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to generate trader address")
	}

	placer := marketmaker.NewRESTOrderPlacer(cfg, trader, logger)
	mm, err := marketmaker.NewMarketMaker(cfg, logger, placer, fetcher, strategy, trader)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create market maker")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := mm.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start market maker")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := mm.Stop(stopCtx); err != nil {
		logger.Error().Err(err).Msg("Shutdown incomplete")
	}
}

// ensureBook creates the target book; creation is idempotent.
func ensureBook(cfg *marketmaker.Config) error {
	body, err := json.Marshal(map[string]string{"book_id": cfg.BookID})
	if err != nil {
		return err
	}
	resp, err := http.Post(cfg.ServerAddr+"/api/books", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
