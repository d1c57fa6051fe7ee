package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mattsre/poeledger/internal/config"
	"github.com/mattsre/poeledger/internal/history"
	"github.com/mattsre/poeledger/internal/httpapi"
	"github.com/mattsre/poeledger/internal/metrics"
	"github.com/mattsre/poeledger/internal/store"
)

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the history API in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "port override (defaults to the configured one)")
	return cmd
}

func runServe(ctx context.Context, portOverride int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if portOverride != 0 {
		cfg.Port = portOverride
	}

	reg := metrics.New(prometheus.DefaultRegisterer)

	columnStore, err := store.Open(store.DefaultConfig(cfg.ClickHouseURL))
	if err != nil {
		return fmt.Errorf("opening column store: %w", err)
	}
	defer columnStore.Close()

	engine := history.New(columnStore.DB(), reg)

	srv, err := httpapi.New(httpapi.DefaultConfig(cfg.Port), engine, columnStore)
	if err != nil {
		return fmt.Errorf("building server: %w", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("ledgerctl serve: shutdown requested")
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
