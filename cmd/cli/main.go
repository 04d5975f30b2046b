package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/akeren/waitlist-api/config"
	"github.com/akeren/waitlist-api/internal/log"
	"github.com/spf13/cobra"
)

func main() {
	// stdout carries command output (export writes JSON there).
	logger := log.NewLogger(os.Stderr, log.ParseLevel(os.Getenv("LOG_LEVEL")))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(logger).ExecuteContext(ctx); err != nil {
		logger.Error("Command failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd(logger *log.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "cli",
		Short:         "Operator commands for the waitlist API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.InitializeEnvFile(logger)
		},
	}

	root.AddCommand(
		newMigrateCmd(logger),
		newSyncCmd(logger),
		newExportCmd(logger),
	)

	return root
}
