package main

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var configPath string

// Execute builds and runs the ledgerctl command tree.
func Execute(ctx context.Context) error {
	root := &cobra.Command{Use: "ledgerctl", Short: "Operator CLI for the stash ledger pipeline"}
	root.PersistentFlags().StringVar(&configPath, "config", "", "optional yaml config override path")

	root.AddCommand(healthCmd())
	root.AddCommand(seedCmd())
	root.AddCommand(serveCmd())

	log.Info().Msg("ledgerctl starting")
	return root.ExecuteContext(ctx)
}
