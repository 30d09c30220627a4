package commands

import (
	"context"
	"fmt"

	"github.com/fivetwenty-io/farmos/internal/constants"
	"github.com/fivetwenty-io/farmos/pkg/farmos"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// queryFlags are shared by get and iterate.
type queryFlags struct {
	filters []string
	params  []string
	sort    []string
	limit   int
}

func (q *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&q.filters, "filter", "f", nil, "filter as path=value or path:OPERATOR=value (repeatable)")
	cmd.Flags().StringArrayVar(&q.params, "param", nil, "raw query parameter key=value (repeatable)")
	cmd.Flags().StringSliceVar(&q.sort, "sort", nil, "sort fields, prefix with - for descending")
	cmd.Flags().IntVar(&q.limit, "limit", 0, "page size (JSONAPI only)")
}

func (q *queryFlags) build(style farmos.APIStyle) (farmos.Filters, error) {
	filters, err := parseFilters(style, q.filters, q.params)
	if err != nil {
		return nil, err
	}

	if len(q.sort) > 0 {
		filters = farmos.And(filters, farmos.Sort(q.sort...))
	}

	if q.limit > 0 && style != farmos.APIStyleLegacy {
		filters = farmos.And(filters, farmos.PageLimit(q.limit))
	}

	return filters, nil
}

func entityArgs(args []string) (string, string, error) {
	if len(args) == 0 || args[0] == "" {
		return "", "", constants.ErrEntityTypeRequired
	}

	bundle := ""
	if len(args) > 1 {
		bundle = args[1]
	}

	return args[0], bundle, nil
}

// NewGetCommand creates the get command.
func NewGetCommand() *cobra.Command {
	var (
		query queryFlags
		id    string
	)

	cmd := &cobra.Command{
		Use:   "get ENTITY [BUNDLE]",
		Short: "Fetch one page of records, or one record with --id",
		Example: `  farmos get log activity --filter status=done --sort -timestamp
  farmos get asset land --id 8a0e4bc6-...
  farmos --api-style legacy get log farm_activity --filter done=1`,
		Args: cobra.RangeArgs(1, 2), //nolint:mnd // entity and bundle
		RunE: func(cmd *cobra.Command, args []string) error {
			entityType, bundle, err := entityArgs(args)
			if err != nil {
				return err
			}

			ctx := context.Background()

			client, err := createClient(ctx, cmd)
			if err != nil {
				return err
			}

			if id != "" {
				params, err := query.build(client.APIStyle())
				if err != nil {
					return err
				}

				record, err := client.Resource().GetID(ctx, entityType, bundle, id, params)
				if err != nil {
					return fmt.Errorf("failed to get %s %s: %w", entityType, id, err)
				}

				return writeOutput(cmd, record, propertyTable(record))
			}

			filters, err := query.build(client.APIStyle())
			if err != nil {
				return err
			}

			page, err := client.Resource().Get(ctx, entityType, bundle, filters)
			if err != nil {
				return fmt.Errorf("failed to get %s: %w", entityType, err)
			}

			return writeOutput(cmd, page, func(table *tablewriter.Table) error {
				err := recordTable(page.Records)(table)
				if err != nil {
					return err
				}

				if page.HasNext() {
					table.Footer("", "more", "use iterate for all pages")
				}

				return nil
			})
		},
	}

	query.register(cmd)
	cmd.Flags().StringVar(&id, "id", "", "fetch a single record by id")

	return cmd
}

// NewIterateCommand creates the iterate command.
func NewIterateCommand() *cobra.Command {
	var (
		query      queryFlags
		maxRecords int
	)

	cmd := &cobra.Command{
		Use:   "iterate ENTITY [BUNDLE]",
		Short: "Fetch every matching record across pages",
		Args:  cobra.RangeArgs(1, 2), //nolint:mnd // entity and bundle
		RunE: func(cmd *cobra.Command, args []string) error {
			entityType, bundle, err := entityArgs(args)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			client, err := createClient(ctx, cmd)
			if err != nil {
				return err
			}

			filters, err := query.build(client.APIStyle())
			if err != nil {
				return err
			}

			records := make([]farmos.Record, 0)

			for record, err := range client.Resource().Iterate(ctx, entityType, bundle, filters).Seq() {
				if err != nil {
					return fmt.Errorf("failed to iterate %s: %w", entityType, err)
				}

				records = append(records, record)

				if maxRecords > 0 && len(records) >= maxRecords {
					break
				}
			}

			return writeOutput(cmd, records, recordTable(records))
		},
	}

	query.register(cmd)
	cmd.Flags().IntVar(&maxRecords, "max", 0, "stop after this many records")

	return cmd
}

// NewSendCommand creates the send command.
func NewSendCommand() *cobra.Command {
	var (
		file string
		data string
	)

	cmd := &cobra.Command{
		Use:   "send ENTITY [BUNDLE]",
		Short: "Create a record, or update it when the payload has an id",
		Example: `  farmos send log observation --data '{"attributes":{"name":"Scouting"}}'
  farmos send asset plant --file plant.yaml`,
		Args: cobra.RangeArgs(1, 2), //nolint:mnd // entity and bundle
		RunE: func(cmd *cobra.Command, args []string) error {
			entityType, bundle, err := entityArgs(args)
			if err != nil {
				return err
			}

			var payload farmos.Record

			err = readDocument(file, data, &payload)
			if err != nil {
				return err
			}

			if payload == nil {
				return constants.ErrPayloadNotJSONObject
			}

			ctx := context.Background()

			client, err := createClient(ctx, cmd)
			if err != nil {
				return err
			}

			record, err := client.Resource().Send(ctx, entityType, bundle, payload)
			if err != nil {
				return fmt.Errorf("failed to send %s: %w", entityType, err)
			}

			return writeOutput(cmd, record, propertyTable(record))
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "JSON or YAML payload file")
	cmd.Flags().StringVar(&data, "data", "", "inline JSON or YAML payload")

	return cmd
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ENTITY [BUNDLE] ID",
		Short: "Delete a record",
		Args:  cobra.RangeArgs(2, 3), //nolint:mnd // entity, bundle and id
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[len(args)-1]

			entityType, bundle, err := entityArgs(args[:len(args)-1])
			if err != nil {
				return err
			}

			ctx := context.Background()

			client, err := createClient(ctx, cmd)
			if err != nil {
				return err
			}

			resp, err := client.Resource().Delete(ctx, entityType, bundle, id)
			if err != nil {
				return fmt.Errorf("failed to delete %s %s: %w", entityType, id, err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s %s (HTTP %d)\n", entityType, id, resp.StatusCode)

			return nil
		},
	}
}
