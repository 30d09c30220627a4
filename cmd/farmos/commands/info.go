package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewInfoCommand creates the info command.
func NewInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Display server information",
		Long:  "Display the farmOS server description (api for farmOS 2.x, farm.json for 1.x)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			client, err := createClient(ctx, cmd)
			if err != nil {
				return err
			}

			info, err := client.Info(ctx)
			if err != nil {
				return fmt.Errorf("failed to get server info: %w", err)
			}

			return writeOutput(cmd, info, propertyTable(info))
		},
	}
}
