package cli

import (
	"github.com/spf13/cobra"

	"github.com/dwizi/chat-skills/internal/adminclient"
	"github.com/dwizi/chat-skills/internal/config"
	"github.com/dwizi/chat-skills/internal/heartbeat"
)

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show component heartbeats of a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := adminclient.New(config.FromEnv())
			if err != nil {
				return err
			}
			snapshot, err := client.Heartbeat(commandContext(cmd))
			if err != nil {
				return err
			}
			cmd.Printf("overall: %s\n", snapshot.Overall)
			for _, component := range snapshot.Components {
				line := "  " + component.Name + ": " + component.State
				if component.Message != "" {
					line += " (" + component.Message + ")"
				}
				if heartbeat.IsDegradedState(component.State) && component.Error != "" {
					line += " error=" + component.Error
				}
				cmd.Println(line)
			}
			return nil
		},
	}
}
