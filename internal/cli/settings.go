package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dwizi/chat-skills/internal/config"
)

func newSettingsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Work with the handler settings file",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check [path]",
		Short: "Validate a settings file and print the effective values",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.FromEnv().SettingsPath
			if len(args) == 1 {
				path = args[0]
			}
			settings, err := config.LoadSettings(path)
			if err != nil {
				if !errors.Is(err, config.ErrSettingsNotFound) {
					return err
				}
				cmd.Printf("%s not found, showing defaults\n", path)
			}
			printSettings(cmd, settings)
			return nil
		},
	})
	return cmd
}

func printSettings(cmd *cobra.Command, settings config.Settings) {
	cmd.Printf("uri.regexp: %s\n", settings.URI.Regexp)
	cmd.Printf("uri.enable_notification: %t\n", settings.URI.EnableNotification)
	cmd.Printf("uri.history_limit_per_chat: %d\n", settings.URI.HistoryLimitPerChat)
	cmd.Printf("uri.notification_formats: %d\n", len(settings.URI.NotificationFormats))
	for _, format := range settings.URI.NotificationFormats {
		cmd.Printf("  - %s\n", format)
	}
	credentials := "incomplete"
	if strings.TrimSpace(settings.Hatena.ClientKey) != "" &&
		strings.TrimSpace(settings.Hatena.ClientSecret) != "" &&
		strings.TrimSpace(settings.Hatena.AccessToken) != "" &&
		strings.TrimSpace(settings.Hatena.AccessTokenSecret) != "" {
		credentials = "set"
	}
	cmd.Printf("hatena.enabled: %t (credentials %s)\n", settings.Hatena.Enabled, credentials)
	cmd.Printf("lleval.enabled: %t\n", settings.LLEval.Enabled)
	cmd.Printf("lleval.endpoint: %s\n", settings.LLEval.Endpoint)
	cmd.Printf("lleval.rate_per_minute: %g burst %d\n", settings.LLEval.RatePerMinute, settings.LLEval.Burst)
}
