package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mattsre/poeledger/internal/bus"
	"github.com/mattsre/poeledger/internal/bus/natsbus"
	"github.com/mattsre/poeledger/internal/config"
	"github.com/mattsre/poeledger/internal/crawler"
)

func seedCmd() *cobra.Command {
	var changeID string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Publish the initial change id that starts the crawler's chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), changeID)
		},
	}
	cmd.Flags().StringVar(&changeID, "change-id", "", "change id to seed the chain with (required)")
	cmd.MarkFlagRequired("change-id")
	return cmd
}

func runSeed(ctx context.Context, changeID string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	b := natsbus.New(cfg.NATSURL, bus.DefaultFetchConfig())
	if err := b.Connect(ctx); err != nil {
		return fmt.Errorf("connecting to bus: %w", err)
	}
	defer b.Close()

	if err := b.Publish(ctx, crawler.SubjectChangeIDs, []byte(changeID)); err != nil {
		return fmt.Errorf("publishing seed change id: %w", err)
	}

	fmt.Printf("seeded river.changeids with %q\n", changeID)
	return nil
}
