// Package cmd implements Engram's cobra command tree: serve (the stdio
// MCP entry point), init (vault bootstrap), recovery (Shamir kit
// generation/combination), and device (authorize/revoke/list),
// grounded on the teacher's own cobra root-command wiring.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/engramhq/engram/internal/config"
)

var (
	cfg    config.Config
	logger *slog.Logger
)

// Root builds the engram root command and attaches every subcommand.
func Root() *cobra.Command {
	root := &cobra.Command{
		Use:   "engram",
		Short: "Engram: a local-first, end-to-end-encrypted memory and secrets layer for AI assistants",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			cfg = loaded
			logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}))
			return nil
		},
	}

	root.AddCommand(
		newServeCmd(),
		newInitCmd(),
		newRecoveryCmd(),
		newDeviceCmd(),
	)
	return root
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
