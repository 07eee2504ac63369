package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dwizi/chat-skills/internal/adminclient"
	"github.com/dwizi/chat-skills/internal/app"
	"github.com/dwizi/chat-skills/internal/config"
	"github.com/dwizi/chat-skills/internal/connectors/console"
	"github.com/dwizi/chat-skills/internal/handlers"
	"github.com/dwizi/chat-skills/internal/logging"
	"github.com/dwizi/chat-skills/internal/store"
)

func newChatCommand() *cobra.Command {
	var (
		chatID     string
		message    string
		noLedger   bool
		remote     bool
		timeoutSec int
	)

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Run the handler chain against local input",
		Long:  "Reads messages from stdin (a blank line ends a message) and prints handler replies. With a message argument only that message is dispatched.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			logger, _ := logging.New(cfg.LogLevel, cmd.ErrOrStderr())

			text := strings.TrimSpace(message)
			if text == "" && len(args) > 0 {
				text = strings.TrimSpace(strings.Join(args, " "))
			}
			if remote {
				if text == "" {
					return fmt.Errorf("--remote needs a message")
				}
				return sendRemote(cmd, cfg, chatID, text, timeoutSec)
			}

			live, err := config.NewLiveSettings(cfg.SettingsPath, logger)
			if err != nil {
				return err
			}
			var ledger app.Ledger
			if !noLedger {
				sqlStore, err := openLedger(commandContext(cmd), cfg)
				if err != nil {
					return err
				}
				defer sqlStore.Close()
				ledger = sqlStore
			}
			dispatcher, err := app.BuildDispatcher(cfg, live, ledger, logger)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			connector := console.New(cmd.InOrStdin(), cmd.OutOrStdout(), chatID, dispatcher, logger)
			if text != "" {
				handled := dispatcher.Dispatch(ctx, handlers.Message{
					Connector: connector.Name(),
					ChatID:    chatID,
					SenderID:  "local",
					Body:      text,
				}, connector)
				logger.Debug("message dispatched", "handled", handled)
				return nil
			}
			return connector.Start(ctx)
		},
	}
	cmd.Flags().StringVar(&chatID, "chat-id", "console", "chat id the messages are attributed to")
	cmd.Flags().StringVarP(&message, "message", "m", "", "single message to dispatch (non-interactive mode)")
	cmd.Flags().BoolVar(&noLedger, "no-ledger", false, "do not record bookmarks and evaluations")
	cmd.Flags().BoolVar(&remote, "remote", false, "send the message to the server at CHAT_SKILLS_API_URL instead")
	cmd.Flags().IntVar(&timeoutSec, "timeout-sec", 0, "remote request timeout in seconds")
	return cmd
}

func sendRemote(cmd *cobra.Command, cfg config.Config, chatID, text string, timeoutSec int) error {
	client, err := adminclient.New(cfg)
	if err != nil {
		return err
	}
	client = client.WithTimeout(time.Duration(timeoutSec) * time.Second)
	response, err := client.SendMessage(commandContext(cmd), adminclient.MessageRequest{
		Connector: "cli",
		ChatID:    chatID,
		SenderID:  "local",
		Body:      text,
	})
	if err != nil {
		return err
	}
	if len(response.Replies) == 0 {
		cmd.Println("(no reply)")
		return nil
	}
	for _, reply := range response.Replies {
		cmd.Printf("[%s] %s\n", chatID, reply)
	}
	return nil
}

func openLedger(ctx context.Context, cfg config.Config) (*store.Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, err
	}
	sqlStore, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := sqlStore.AutoMigrate(ctx); err != nil {
		sqlStore.Close()
		return nil, err
	}
	return sqlStore, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
