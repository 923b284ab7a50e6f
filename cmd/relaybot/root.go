package main

import (
	"context"
	"os"

	"github.com/sandevgo/relaybot/internal/config"
	"github.com/sandevgo/relaybot/pkg/log"
	"github.com/spf13/cobra"
)

var (
	debug bool
)

var rootCmd = &cobra.Command{
	Use:   "relaybot",
	Short: "RelayBot — a conversational messaging orchestrator",
	Long:  `RelayBot ingests chat events, advances per-conversation booking flows and replies over the configured channels.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Global flags available to all subcommands
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", config.IsDebug(), "enable debug logging")
}

func setupLogger(ctx context.Context) (context.Context, func()) {
	isDebug := debug || config.IsDebug()
	return log.NewContextWithLogger(ctx, isDebug)
}
