package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dwizi/chat-skills/internal/config"
	"github.com/dwizi/chat-skills/internal/handlers/plugins/lleval"
)

func newEvalCommand() *cobra.Command {
	var (
		language string
		endpoint string
	)

	cmd := &cobra.Command{
		Use:   "eval [source]",
		Short: "Evaluate source code with the configured lleval service",
		Long:  "Sends source (the arguments, or stdin when none are given) to the lleval endpoint and prints the program output. Without --lang the interpreter is taken from a #! line in the source.",
		RunE: func(cmd *cobra.Command, args []string) error {
			source := strings.Join(args, " ")
			if strings.TrimSpace(source) == "" {
				raw, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read source: %w", err)
				}
				source = string(raw)
			}
			if strings.TrimSpace(source) == "" {
				return fmt.Errorf("source is required")
			}

			settings, err := config.LoadSettings(config.FromEnv().SettingsPath)
			if err != nil && !errors.Is(err, config.ErrSettingsNotFound) {
				return err
			}
			target := strings.TrimSpace(endpoint)
			if target == "" {
				target = settings.LLEval.Endpoint
			}

			client := lleval.NewClient(settings.LLEval.Timeout)
			result, err := client.Evaluate(commandContext(cmd), lleval.Request{
				Endpoint: target,
				Language: strings.TrimSpace(language),
				Source:   source,
			})
			if err != nil {
				return err
			}
			return printEvalResult(cmd, result)
		},
	}
	cmd.Flags().StringVarP(&language, "lang", "l", "", "interpreter name, e.g. perl or ruby")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "lleval endpoint (defaults to the settings file)")
	return cmd
}

func printEvalResult(cmd *cobra.Command, result lleval.Result) error {
	text := lleval.FormatResult(result)
	if text == "" {
		cmd.Println("(no output)")
	} else {
		cmd.Println(strings.TrimRight(text, "\n"))
	}
	if result.Status != 0 {
		return fmt.Errorf("program exited with status %d", result.Status)
	}
	return nil
}
