package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mattsre/poeledger/internal/config"
	"github.com/mattsre/poeledger/internal/ratelimit/redisstore"
	"github.com/mattsre/poeledger/internal/store"
)

func healthCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check connectivity to the column store and rate-limit store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealth(cmd.Context(), timeout)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "per-dependency check timeout")
	return cmd
}

func runHealth(ctx context.Context, timeout time.Duration) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	columnStore, err := store.Open(store.DefaultConfig(cfg.ClickHouseURL))
	if err != nil {
		fmt.Printf("clickhouse: UNHEALTHY (%v)\n", err)
	} else {
		defer columnStore.Close()
		if err := columnStore.Ping(checkCtx); err != nil {
			fmt.Printf("clickhouse: UNHEALTHY (%v)\n", err)
		} else {
			fmt.Println("clickhouse: healthy")
		}
	}

	rlStore, err := redisstore.New(checkCtx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		fmt.Printf("redis: UNHEALTHY (%v)\n", err)
		return nil
	}
	if _, _, err := rlStore.Get(checkCtx, "healthcheck"); err != nil {
		fmt.Printf("redis: UNHEALTHY (%v)\n", err)
	} else {
		fmt.Println("redis: healthy")
	}

	return nil
}
