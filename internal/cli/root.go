package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dwizi/chat-skills/internal/app"
	"github.com/dwizi/chat-skills/internal/config"
)

const version = "0.1.0"

func NewRoot(logger *slog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "chat-skills",
		Short:         "chat-skills runs link bookmarking and code evaluation handlers for chat rooms",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCommand(logger))
	root.AddCommand(newChatCommand())
	root.AddCommand(newEvalCommand())
	root.AddCommand(newLedgerCommand(logger))
	root.AddCommand(newSettingsCommand())
	root.AddCommand(newStatusCommand())
	root.AddCommand(newVersionCommand())

	return root
}

func newServeCommand(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run chat connectors, the settings watcher and the http api",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			runtime, err := app.New(cfg, logger)
			if err != nil {
				return err
			}
			defer runtime.Close()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runtime.Run(ctx)
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version)
		},
	}
}
