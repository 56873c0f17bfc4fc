package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/amodell/mailsnap/internal/config"
)

var (
	cfgFile      string
	snapshotFile string
	verbose      bool
	cfg          *config.Config
	logger       *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "mailsnap",
	Short: "Read-only mailbox snapshot browser",
	Long: `mailsnap fetches mailbox snapshots published by an agent mail server
and lets you browse, search, and query them offline.

A snapshot is an immutable SQLite database described by a manifest. mailsnap
never writes to it: every command here is a read-only view over the snapshot
as of the moment it was exported.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}

		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		opts := &slog.HandlerOptions{Level: level}
		// Structured JSON when stderr is redirected to a file or pipe.
		if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
			logger = slog.New(slog.NewTextHandler(os.Stderr, opts))
		} else {
			logger = slog.New(slog.NewJSONHandler(os.Stderr, opts))
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		if err := cfg.EnsureHomeDir(); err != nil {
			return fmt.Errorf("create data directory %s: %w", cfg.HomeDir, err)
		}

		return nil
	},
}

// Execute runs the root command with a background context.
// Prefer ExecuteContext for signal-aware execution.
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with the given context,
// enabling graceful shutdown when the context is cancelled.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.mailsnap/config.toml)")
	rootCmd.PersistentFlags().StringVar(&snapshotFile, "snapshot", "", "local snapshot database (skips fetching)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
