package commands

import (
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// NewProfilesCommand creates the profiles command group.
func NewProfilesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "profiles",
		Aliases: []string{"profile"},
		Short:   "Manage saved profiles",
	}

	cmd.AddCommand(newProfilesListCommand())
	cmd.AddCommand(newProfilesUseCommand())
	cmd.AddCommand(newProfilesDeleteCommand())

	return cmd
}

type profileRow struct {
	Name     string `json:"name"      yaml:"name"`
	Hostname string `json:"hostname"  yaml:"hostname"`
	APIStyle string `json:"api_style" yaml:"api_style"`
	Username string `json:"username"  yaml:"username"`
	Token    bool   `json:"token"     yaml:"token"`
	Current  bool   `json:"current"   yaml:"current"`
}

func newProfilesListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := profileStore()
			if err != nil {
				return err
			}

			names, current, err := store.List()
			if err != nil {
				return err //nolint:wrapcheck // store errors name the file
			}

			rows := make([]profileRow, 0, len(names))

			for _, name := range names {
				prof, err := store.Get(name)
				if err != nil {
					return err //nolint:wrapcheck // store errors name the profile
				}

				rows = append(rows, profileRow{
					Name:     name,
					Hostname: prof.Hostname,
					APIStyle: string(prof.APIStyle),
					Username: prof.Username,
					Token:    prof.Token != nil,
					Current:  name == current,
				})
			}

			return writeOutput(cmd, rows, func(table *tablewriter.Table) error {
				table.Header("", "Name", "Hostname", "API", "Username", "Token")

				for _, row := range rows {
					marker := ""
					if row.Current {
						marker = "*"
					}

					err := table.Append(marker, row.Name, row.Hostname, valueOr(row.APIStyle), valueOr(row.Username), fmt.Sprintf("%t", row.Token))
					if err != nil {
						return fmt.Errorf("failed to append row: %w", err)
					}
				}

				return nil
			})
		},
	}
}

func newProfilesUseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "use NAME",
		Short: "Select the current profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := profileStore()
			if err != nil {
				return err
			}

			err = store.Use(args[0])
			if err != nil {
				return err //nolint:wrapcheck // store errors name the profile
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Using profile %s\n", args[0])

			return nil
		},
	}
}

func newProfilesDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a saved profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := profileStore()
			if err != nil {
				return err
			}

			err = store.Delete(args[0])
			if err != nil {
				return err //nolint:wrapcheck // store errors name the profile
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted profile %s\n", args[0])

			return nil
		},
	}
}
