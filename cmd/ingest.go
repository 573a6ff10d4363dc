package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/koopa0/dormchat/internal/app"
	"github.com/koopa0/dormchat/internal/config"
	"github.com/koopa0/dormchat/internal/log"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Rebuild the document index once and exit",
	Long: `Runs one full ingestion cycle: load the document corpus, chunk and
embed it, persist a new index generation, and retire superseded ones.

A file lock prevents this from interleaving with a rebuild triggered by a
running server; if the lock is held the command reports it and exits.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runIngest(cmd)
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := log.New(log.Config{Level: slog.LevelInfo})

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	summary, err := a.Coordinator.Reload(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(),
		"indexed %d documents (%d chunks) as generation %d in %s\n",
		summary.Documents, summary.Chunks, summary.Generation, summary.Duration)
	return nil
}
