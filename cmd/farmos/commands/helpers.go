package commands

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fivetwenty-io/farmos/internal/auth"
	"github.com/fivetwenty-io/farmos/internal/constants"
	"github.com/fivetwenty-io/farmos/pkg/farmclient"
	"github.com/fivetwenty-io/farmos/pkg/farmos"
	"github.com/fivetwenty-io/farmos/pkg/profile"
	"github.com/fivetwenty-io/farmos/pkg/tokenstore"
	"github.com/hashicorp/go-hclog"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// Common string constants used throughout the commands package.
const (
	NotAvailable = "N/A"

	defaultJSONIndent = 2
)

// Common static errors used throughout the commands package.
var (
	ErrInvalidFilter    = errors.New("filter must look like path=value or path:OPERATOR=value")
	ErrInvalidParameter = errors.New("parameter must look like key=value")
	ErrPayloadRequired  = errors.New("a payload is required (use --file or --data)")
)

// fs is the filesystem profiles and payload files are read from.
var fs = afero.NewOsFs()

// profileStore opens the profile file named by --config, or the default one.
func profileStore() (*profile.Store, error) {
	path := viper.GetString("config")
	if path == "" {
		var err error

		path, err = profile.DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	return profile.NewStore(fs, path), nil
}

// newLogger returns an hclog backed logger at debug level with --verbose.
func newLogger(stderr io.Writer) farmos.Logger {
	level := hclog.Warn
	if viper.GetBool("verbose") {
		level = hclog.Debug
	}

	return farmos.NewHCLogger(hclog.New(&hclog.LoggerOptions{
		Name:   "farmos",
		Level:  level,
		Output: stderr,
	}))
}

// resolveProfile merges the stored profile, the FARMOS_* environment and
// the global flags, in that order. It returns the env password, if any.
func resolveProfile(store *profile.Store) (*profile.Profile, string, error) {
	name := viper.GetString("profile")

	prof, err := store.Get(name)
	if errors.Is(err, constants.ErrNoProfileConfigured) || errors.Is(err, constants.ErrProfileNotFound) {
		prof = &profile.Profile{Name: strings.ToLower(name)}
	} else if err != nil {
		return nil, "", err
	}

	env, password, err := profile.FromEnv()
	if err != nil {
		return nil, "", err
	}

	prof.Overlay(env)
	prof.Overlay(&profile.Profile{
		Hostname: viper.GetString("hostname"),
		APIStyle: farmos.APIStyle(viper.GetString("api-style")),
	})

	if prof.Hostname == "" {
		return nil, "", constants.ErrNoHostname
	}

	prof.Hostname, err = farmclient.NormalizeHostname(prof.Hostname)
	if err != nil {
		return nil, "", err
	}

	if prof.Name == "" {
		prof.Name = profile.DefaultName
	}

	return prof, password, nil
}

// createClient builds a client for the selected profile. Refreshed tokens
// are written back to the profile.
func createClient(ctx context.Context, cmd *cobra.Command) (farmos.Client, error) {
	store, err := profileStore()
	if err != nil {
		return nil, err
	}

	prof, password, err := resolveProfile(store)
	if err != nil {
		return nil, err
	}

	config := prof.Config()
	config.Password = password
	config.Logger = newLogger(cmd.ErrOrStderr())
	config.Debug = viper.GetBool("verbose")

	config.TokenUpdater, err = tokenUpdater(ctx, store, prof, config)
	if err != nil {
		return nil, err
	}

	if config.APIStyle == farmos.APIStyleLegacy && config.Username != "" && config.Password == "" {
		config.Password, err = readPassword(cmd)
		if err != nil {
			return nil, err
		}
	}

	client, err := farmclient.New(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return client, nil
}

// tokenUpdater writes new tokens back to the profile and, with
// --token-store, to the shared store. A token found in the shared store
// replaces a missing or expired profile token.
func tokenUpdater(ctx context.Context, store *profile.Store, prof *profile.Profile, config *farmos.Config) (farmos.TokenUpdater, error) {
	updater := store.Updater(prof.Name, prof.Hostname)

	storeType := viper.GetString("token-store")
	if storeType == "" || prof.APIStyle == farmos.APIStyleLegacy {
		return updater, nil
	}

	storeConfig, err := tokenstore.ConfigFromEnv(tokenstore.Type(storeType))
	if err != nil {
		return nil, err
	}

	shared, err := tokenstore.New(ctx, storeConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open token store: %w", err)
	}

	key := tokenstore.Key(prof.Hostname, prof.Name)

	if !config.Token.Valid() {
		token, err := shared.Load(ctx, key)

		switch {
		case err == nil:
			config.Token = token
		case !errors.Is(err, tokenstore.ErrTokenNotFound):
			return nil, fmt.Errorf("failed to load shared token: %w", err)
		}
	}

	return auth.ChainUpdaters(updater, tokenstore.Updater(shared, key)), nil
}

// readLine prompts on stderr and reads one line from stdin.
func readLine(cmd *cobra.Command, prompt string) (string, error) {
	_, _ = fmt.Fprint(cmd.ErrOrStderr(), prompt)

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read input: %w", err)
	}

	return strings.TrimSpace(line), nil
}

// readPassword reads without echo when stdin is a terminal.
func readPassword(cmd *cobra.Command) (string, error) {
	stdin, ok := cmd.InOrStdin().(*os.File)
	if !ok || !term.IsTerminal(int(stdin.Fd())) {
		return readLine(cmd, "Password: ")
	}

	_, _ = fmt.Fprint(cmd.ErrOrStderr(), "Password: ")

	password, err := term.ReadPassword(int(stdin.Fd()))
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	_, _ = fmt.Fprintln(cmd.ErrOrStderr())

	return string(password), nil
}

// parseFilters turns --filter and --param values into query parameters.
// "path=value" is an equality filter and "path:OP=value" uses operator OP;
// comma separated values feed IN style operators. Legacy servers get
// path=value verbatim.
func parseFilters(style farmos.APIStyle, filters, params []string) (farmos.Filters, error) {
	out := farmos.Filters{}

	for _, raw := range filters {
		key, value, ok := strings.Cut(raw, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidFilter, raw)
		}

		if style == farmos.APIStyleLegacy {
			out.Add(key, value)

			continue
		}

		path, operator, _ := strings.Cut(key, ":")

		var filterValue any = value
		if strings.Contains(value, ",") {
			filterValue = strings.Split(value, ",")
		}

		out = farmos.And(out, farmos.Filter(path, filterValue, farmos.Operator(strings.ToUpper(operator))))
	}

	for _, raw := range params {
		key, value, ok := strings.Cut(raw, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidParameter, raw)
		}

		out.Add(key, value)
	}

	return out, nil
}

// readDocument decodes inline data or a JSON/YAML file into v. YAML is a
// superset of JSON, so one decoder serves both.
func readDocument(path, data string, v interface{}) error {
	var raw []byte

	switch {
	case data != "":
		raw = []byte(data)
	case path != "":
		var err error

		raw, err = afero.ReadFile(fs, path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
	default:
		return ErrPayloadRequired
	}

	err := yaml.Unmarshal(raw, v)
	if err != nil {
		return fmt.Errorf("failed to parse document: %w", err)
	}

	return nil
}

// writeOutput renders v as JSON or YAML, or calls table for table output.
func writeOutput(cmd *cobra.Command, v interface{}, table func(*tablewriter.Table) error) error {
	out := cmd.OutOrStdout()

	switch viper.GetString("output") {
	case constants.FormatJSON:
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", strings.Repeat(" ", defaultJSONIndent))

		return encoder.Encode(v) //nolint:wrapcheck // encoder errors are self-explanatory
	case constants.FormatYAML:
		encoder := yaml.NewEncoder(out)

		defer func() { _ = encoder.Close() }()

		return encoder.Encode(v) //nolint:wrapcheck // encoder errors are self-explanatory
	case constants.FormatTable, "":
		writer := tablewriter.NewWriter(out)

		err := table(writer)
		if err != nil {
			return err
		}

		err = writer.Render()
		if err != nil {
			return fmt.Errorf("failed to render table: %w", err)
		}

		return nil
	default:
		return fmt.Errorf("%w: %s", constants.ErrUnsupportedOutput, viper.GetString("output"))
	}
}

// recordTable lists id, type and name of each record.
func recordTable(records []farmos.Record) func(*tablewriter.Table) error {
	return func(table *tablewriter.Table) error {
		table.Header("ID", "Type", "Name")

		for _, record := range records {
			err := table.Append(valueOr(record.ID()), valueOr(record.Type()), valueOr(recordName(record)))
			if err != nil {
				return fmt.Errorf("failed to append row: %w", err)
			}
		}

		return nil
	}
}

// propertyTable lists the top level fields of a document, with
// attributes flattened in.
func propertyTable(record farmos.Record) func(*tablewriter.Table) error {
	return func(table *tablewriter.Table) error {
		table.Header("Property", "Value")

		fields := map[string]any{}
		for key, value := range record {
			if key != "attributes" {
				fields[key] = value
			}
		}

		for key, value := range record.Attributes() {
			fields[key] = value
		}

		keys := make([]string, 0, len(fields))
		for key := range fields {
			keys = append(keys, key)
		}

		sort.Strings(keys)

		for _, key := range keys {
			err := table.Append(key, formatValue(fields[key]))
			if err != nil {
				return fmt.Errorf("failed to append row: %w", err)
			}
		}

		return nil
	}
}

func recordName(record farmos.Record) string {
	if name, ok := record.Attributes()["name"].(string); ok {
		return name
	}

	if name, ok := record["name"].(string); ok {
		return name
	}

	return ""
}

func formatValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return NotAvailable
	case string:
		return typed
	case map[string]any, []any:
		raw, err := json.Marshal(typed)
		if err != nil {
			return fmt.Sprint(typed)
		}

		return string(raw)
	default:
		return fmt.Sprint(typed)
	}
}

func valueOr(value string) string {
	if value == "" {
		return NotAvailable
	}

	return value
}
