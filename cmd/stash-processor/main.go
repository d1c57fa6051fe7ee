// Command stash-processor consumes stash changes published by
// river-crawler, filters and prices their items, and batch-inserts the
// resulting listings into the column store.
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

	"github.com/mattsre/poeledger/internal/audit"
	"github.com/mattsre/poeledger/internal/bus"
	"github.com/mattsre/poeledger/internal/bus/natsbus"
	"github.com/mattsre/poeledger/internal/config"
	"github.com/mattsre/poeledger/internal/metrics"
	"github.com/mattsre/poeledger/internal/processor"
	"github.com/mattsre/poeledger/internal/store"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	configPath := flag.String("config", "", "optional yaml config override path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("stash-processor: loading config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := metrics.New(prometheus.DefaultRegisterer)

	auditSink, err := audit.Open(cfg.AuditDSN, 5*time.Second)
	if err != nil {
		log.Fatal().Err(err).Msg("stash-processor: opening audit sink")
	}
	defer auditSink.Close()

	columnStore, err := store.Open(store.DefaultConfig(cfg.ClickHouseURL))
	if err != nil {
		log.Fatal().Err(err).Msg("stash-processor: opening column store")
	}
	defer columnStore.Close()

	b := natsbus.New(cfg.NATSURL, bus.DefaultFetchConfig())
	if err := b.Connect(ctx); err != nil {
		log.Fatal().Err(err).Msg("stash-processor: connecting to bus")
	}
	defer b.Close()

	proc := processor.New(columnStore, b, reg, auditSink)

	runErr := make(chan error, 1)
	go func() { runErr <- proc.Run(ctx) }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("stash-processor: shutdown signal received")
		cancel()
	case err := <-runErr:
		if err != nil {
			log.Error().Err(err).Msg("stash-processor: run exited with error")
		}
	}

	log.Info().Msg("stash-processor: stopped")
}
