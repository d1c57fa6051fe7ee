// Command river-crawler pumps the public stash change-id chain: it
// authenticates against the trading API, fetches pages, and fans
// qualifying stash changes out over the bus for stash-processor to
// consume.
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
	"github.com/mattsre/poeledger/internal/crawler"
	"github.com/mattsre/poeledger/internal/metrics"
	"github.com/mattsre/poeledger/internal/poeapi"
	"github.com/mattsre/poeledger/internal/ratelimit"
	"github.com/mattsre/poeledger/internal/ratelimit/redisstore"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	configPath := flag.String("config", "", "optional yaml config override path")
	seedChangeID := flag.String("seed", "", "initial change id to seed the chain with (first run only)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("river-crawler: loading config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := metrics.New(prometheus.DefaultRegisterer)

	auditSink, err := audit.Open(cfg.AuditDSN, 5*time.Second)
	if err != nil {
		log.Fatal().Err(err).Msg("river-crawler: opening audit sink")
	}
	defer auditSink.Close()

	store, err := redisstore.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatal().Err(err).Msg("river-crawler: connecting to rate limit store")
	}
	limiter := ratelimit.New(store)

	client, err := poeapi.New(cfg.UserAgent, limiter, reg)
	if err != nil {
		log.Fatal().Err(err).Msg("river-crawler: building API client")
	}
	if err := client.Authorize(ctx, cfg.ClientID, cfg.ClientSecret); err != nil {
		log.Fatal().Err(err).Msg("river-crawler: authorizing")
	}

	b := natsbus.New(cfg.NATSURL, bus.DefaultFetchConfig())
	if err := b.Connect(ctx); err != nil {
		log.Fatal().Err(err).Msg("river-crawler: connecting to bus")
	}
	defer b.Close()

	pump := crawler.New(client, b, auditSink)

	if *seedChangeID != "" {
		if err := pump.Seed(ctx, *seedChangeID); err != nil {
			log.Fatal().Err(err).Msg("river-crawler: seeding change id")
		}
		log.Info().Str("change_id", *seedChangeID).Msg("river-crawler: seeded chain")
	}

	runErr := make(chan error, 1)
	go func() { runErr <- pump.Run(ctx) }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("river-crawler: shutdown signal received")
		cancel()
	case err := <-runErr:
		if err != nil {
			log.Error().Err(err).Msg("river-crawler: pump exited with error")
		}
	}

	log.Info().Msg("river-crawler: stopped")
}
