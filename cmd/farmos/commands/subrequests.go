package commands

import (
	"context"
	"fmt"
	"sort"

	"github.com/fivetwenty-io/farmos/pkg/farmos"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// NewSubrequestsCommand creates the subrequests command.
func NewSubrequestsCommand() *cobra.Command {
	var (
		file   string
		data   string
		format string
	)

	cmd := &cobra.Command{
		Use:   "subrequests",
		Short: "Send a blueprint of subrequests in one call",
		Long: `Send a blueprint, a list of subrequests, to the subrequests endpoint.

Each entry has an action (view, create, update, replace, delete, exists,
discover or noop), a uri or an endpoint relative to the server, and
optionally a requestId, body, headers and waitFor.`,
		Example: `  farmos subrequests --file blueprint.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var blueprint farmos.Blueprint

			err := readDocument(file, data, &blueprint)
			if err != nil {
				return err
			}

			ctx := context.Background()

			client, err := createClient(ctx, cmd)
			if err != nil {
				return err
			}

			result, err := client.Subrequests().Send(ctx, blueprint, farmos.Format(format))
			if err != nil {
				return fmt.Errorf("failed to send subrequests: %w", err)
			}

			if result.Format == farmos.FormatHTML {
				_, err = cmd.OutOrStdout().Write(result.Raw)

				return err //nolint:wrapcheck // writing to stdout
			}

			err = writeOutput(cmd, result.Responses, func(table *tablewriter.Table) error {
				table.Header("Request", "Status", "Body")

				keys := make([]string, 0, len(result.Responses))
				for key := range result.Responses {
					keys = append(keys, key)
				}

				sort.Strings(keys)

				for _, key := range keys {
					response := result.Responses[key]

					err := table.Append(key, fmt.Sprintf("%d", response.Status()), response.Body)
					if err != nil {
						return fmt.Errorf("failed to append row: %w", err)
					}
				}

				return nil
			})
			if err != nil {
				return err
			}

			return result.Err()
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "JSON or YAML blueprint file")
	cmd.Flags().StringVar(&data, "data", "", "inline JSON or YAML blueprint")
	cmd.Flags().StringVar(&format, "format", string(farmos.FormatJSON), "response format: json or html")

	return cmd
}
