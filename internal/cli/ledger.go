package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/dwizi/chat-skills/internal/config"
	"github.com/dwizi/chat-skills/internal/durafmt"
	"github.com/dwizi/chat-skills/internal/scheduler"
	"github.com/dwizi/chat-skills/internal/store"
)

func newLedgerCommand(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect and prune the bookmark and evaluation ledger",
	}
	cmd.AddCommand(newLedgerBookmarksCommand())
	cmd.AddCommand(newLedgerEvaluationsCommand())
	cmd.AddCommand(newLedgerPruneCommand(logger))
	return cmd
}

func newLedgerBookmarksCommand() *cobra.Command {
	var (
		chatID string
		status string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "bookmarks",
		Short: "List recorded bookmarks, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			sqlStore, err := openLedger(commandContext(cmd), config.FromEnv())
			if err != nil {
				return err
			}
			defer sqlStore.Close()

			items, err := sqlStore.ListBookmarks(commandContext(cmd), store.ListBookmarksInput{
				ChatID: chatID,
				Status: status,
				Limit:  limit,
			})
			if err != nil {
				return err
			}
			if len(items) == 0 {
				cmd.Println("(no bookmarks)")
				return nil
			}
			now := time.Now().UTC()
			for _, item := range items {
				line := fmt.Sprintf("%s  %-6s  %s/%s  %s", durafmt.Since(item.CreatedAt, now), item.Status, item.Connector, item.ChatID, item.URI)
				if item.ErrorMessage != "" {
					line += "  error=" + item.ErrorMessage
				}
				cmd.Println(line)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&chatID, "chat-id", "", "only this chat")
	cmd.Flags().StringVar(&status, "status", "", "posted or failed")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rows")
	return cmd
}

func newLedgerEvaluationsCommand() *cobra.Command {
	var (
		chatID  string
		outcome string
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "evaluations",
		Short: "List recorded code evaluations, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			sqlStore, err := openLedger(commandContext(cmd), config.FromEnv())
			if err != nil {
				return err
			}
			defer sqlStore.Close()

			items, err := sqlStore.ListEvaluations(commandContext(cmd), store.ListEvaluationsInput{
				ChatID:  chatID,
				Outcome: outcome,
				Limit:   limit,
			})
			if err != nil {
				return err
			}
			if len(items) == 0 {
				cmd.Println("(no evaluations)")
				return nil
			}
			now := time.Now().UTC()
			for _, item := range items {
				language := item.Language
				if language == "" {
					language = "-"
				}
				line := fmt.Sprintf("%s  %-12s  %s/%s  %s %dB", durafmt.Since(item.CreatedAt, now), item.Outcome, item.Connector, item.ChatID, language, item.SourceBytes)
				if item.ErrorMessage != "" {
					line += "  error=" + item.ErrorMessage
				}
				cmd.Println(line)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&chatID, "chat-id", "", "only this chat")
	cmd.Flags().StringVar(&outcome, "outcome", "", "ok, error or rate_limited")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rows")
	return cmd
}

func newLedgerPruneCommand(logger *slog.Logger) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete ledger rows older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			if cmd.Flags().Changed("days") {
				cfg.LedgerRetentionDays = days
			}
			sqlStore, err := openLedger(commandContext(cmd), cfg)
			if err != nil {
				return err
			}
			defer sqlStore.Close()

			service, err := scheduler.New(sqlStore, scheduler.Config{
				CronExpr:      cfg.LedgerRetentionCron,
				RetentionDays: cfg.LedgerRetentionDays,
			}, logger)
			if err != nil {
				return err
			}
			result, err := service.RunOnce(commandContext(cmd))
			if err != nil {
				return err
			}
			cmd.Printf("pruned %d bookmarks and %d evaluations older than %d days\n", result.Bookmarks, result.Evaluations, cfg.LedgerRetentionDays)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "retention window in days (defaults to CHAT_SKILLS_LEDGER_RETENTION_DAYS)")
	return cmd
}
