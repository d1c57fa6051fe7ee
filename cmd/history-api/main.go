// Command history-api serves the read-only price-history HTTP surface
// backed by the ClickHouse column store.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mattsre/poeledger/internal/config"
	"github.com/mattsre/poeledger/internal/history"
	"github.com/mattsre/poeledger/internal/httpapi"
	"github.com/mattsre/poeledger/internal/metrics"
	"github.com/mattsre/poeledger/internal/store"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	configPath := flag.String("config", "", "optional yaml config override path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("history-api: loading config")
	}

	reg := metrics.New(prometheus.DefaultRegisterer)
	_ = reg // registered against the default registerer mounted at /metrics

	columnStore, err := store.Open(store.DefaultConfig(cfg.ClickHouseURL))
	if err != nil {
		log.Fatal().Err(err).Msg("history-api: opening column store")
	}
	defer columnStore.Close()

	engine := history.New(columnStore.DB(), reg)

	srv, err := httpapi.New(httpapi.DefaultConfig(cfg.Port), engine, columnStore)
	if err != nil {
		log.Fatal().Err(err).Msg("history-api: building server")
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("history-api: shutdown signal received")
	case err := <-serverErr:
		log.Error().Err(err).Msg("history-api: server error")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("history-api: shutdown error")
	}

	log.Info().Msg("history-api: stopped")
}
