package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/fivetwenty-io/farmos/internal/constants"
	"github.com/fivetwenty-io/farmos/pkg/farmos"
	"github.com/fivetwenty-io/farmos/pkg/profile"
	"github.com/fivetwenty-io/farmos/pkg/tokenstore"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withViper resets the global viper state after the test.
func withViper(t *testing.T, settings map[string]interface{}) {
	t.Helper()

	viper.Reset()
	t.Cleanup(viper.Reset)

	for key, value := range settings {
		viper.Set(key, value)
	}
}

// execute runs cmd with args and returns what it wrote to stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(&bytes.Buffer{})
	cmd.SetArgs(args)

	err := cmd.Execute()

	return out.String(), err
}

//nolint:paralleltest // parseFilters is pure but the package tests share viper
func TestParseFilters(t *testing.T) {
	tests := []struct {
		name    string
		style   farmos.APIStyle
		filters []string
		params  []string
		want    farmos.Filters
		wantErr error
	}{
		{
			name:    "equality",
			style:   farmos.APIStyleJSONAPI,
			filters: []string{"status=done"},
			want:    farmos.Filters{"filter[status]": {"done"}},
		},
		{
			name:    "operator with list",
			style:   farmos.APIStyleJSONAPI,
			filters: []string{"type:in=seeding,harvest"},
			want: farmos.Filters{
				"filter[type_in][condition][path]":     {"type"},
				"filter[type_in][condition][operator]": {"IN"},
				"filter[type_in][condition][value][]":  {"seeding", "harvest"},
			},
		},
		{
			name:    "legacy passes through",
			style:   farmos.APIStyleLegacy,
			filters: []string{"done=1", "type=farm_activity"},
			params:  []string{"page=2"},
			want:    farmos.Filters{"done": {"1"}, "type": {"farm_activity"}, "page": {"2"}},
		},
		{
			name:   "raw parameters",
			style:  farmos.APIStyleJSONAPI,
			params: []string{"include=asset"},
			want:   farmos.Filters{"include": {"asset"}},
		},
		{
			name:    "missing value",
			style:   farmos.APIStyleJSONAPI,
			filters: []string{"status"},
			wantErr: ErrInvalidFilter,
		},
		{
			name:    "missing parameter key",
			style:   farmos.APIStyleJSONAPI,
			params:  []string{"=x"},
			wantErr: ErrInvalidParameter,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFilters(tt.style, tt.filters, tt.params)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

//nolint:paralleltest // uses the global viper instance
func TestWriteOutput(t *testing.T) {
	record := farmos.Record{
		"id":         "a1",
		"type":       "log--activity",
		"attributes": map[string]any{"name": "Mow", "status": "done"},
	}

	t.Run("json", func(t *testing.T) {
		withViper(t, map[string]interface{}{"output": "json"})

		var out bytes.Buffer

		cmd := &cobra.Command{}
		cmd.SetOut(&out)

		require.NoError(t, writeOutput(cmd, record, propertyTable(record)))
		assert.JSONEq(t, `{"id":"a1","type":"log--activity","attributes":{"name":"Mow","status":"done"}}`, out.String())
	})

	t.Run("yaml", func(t *testing.T) {
		withViper(t, map[string]interface{}{"output": "yaml"})

		var out bytes.Buffer

		cmd := &cobra.Command{}
		cmd.SetOut(&out)

		require.NoError(t, writeOutput(cmd, record, propertyTable(record)))
		assert.Contains(t, out.String(), "id: a1")
	})

	t.Run("table", func(t *testing.T) {
		withViper(t, map[string]interface{}{"output": "table"})

		var out bytes.Buffer

		cmd := &cobra.Command{}
		cmd.SetOut(&out)

		require.NoError(t, writeOutput(cmd, []farmos.Record{record}, recordTable([]farmos.Record{record})))
		assert.Contains(t, out.String(), "Mow")
		assert.Contains(t, out.String(), "log--activity")
	})

	t.Run("unsupported", func(t *testing.T) {
		withViper(t, map[string]interface{}{"output": "xml"})

		err := writeOutput(&cobra.Command{}, record, propertyTable(record))
		require.ErrorIs(t, err, constants.ErrUnsupportedOutput)
	})
}

//nolint:paralleltest // uses the global viper instance
func TestReadDocument(t *testing.T) {
	var record farmos.Record

	require.NoError(t, readDocument("", `{"attributes": {"name": "Corn"}}`, &record))
	assert.Equal(t, "Corn", record.Attributes()["name"])

	path := filepath.Join(t.TempDir(), "blueprint.yaml")
	require.NoError(t, afero.WriteFile(fs, path, []byte(`
- requestId: view
  action: view
  endpoint: api/log/activity
`), 0o600))

	var blueprint farmos.Blueprint

	require.NoError(t, readDocument(path, "", &blueprint))
	require.Len(t, blueprint, 1)
	assert.Equal(t, farmos.ActionView, blueprint[0].Action)

	require.ErrorIs(t, readDocument("", "", &record), ErrPayloadRequired)
}

//nolint:paralleltest,funlen // uses the global viper instance
func TestResourceCommands(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "Bearer stored-token", request.Header.Get("Authorization"))
		writer.Header().Set("Content-Type", "application/vnd.api+json")

		switch {
		case request.Method == http.MethodGet && request.URL.Path == "/api":
			_ = json.NewEncoder(writer).Encode(map[string]interface{}{"meta": map[string]interface{}{}})
		case request.Method == http.MethodGet && request.URL.Path == "/api/log/activity":
			assert.Equal(t, "done", request.URL.Query().Get("filter[status]"))
			_ = json.NewEncoder(writer).Encode(map[string]interface{}{
				"data": []map[string]interface{}{
					{"id": "a1", "type": "log--activity", "attributes": map[string]interface{}{"name": "Mow"}},
				},
			})
		case request.Method == http.MethodPost && request.URL.Path == "/api/log/observation":
			writer.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(writer).Encode(map[string]interface{}{
				"data": map[string]interface{}{"id": "o1", "type": "log--observation"},
			})
		case request.Method == http.MethodDelete && request.URL.Path == "/api/log/activity/a1":
			writer.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected %s %s", request.Method, request.URL.Path)
		}
	}))
	defer server.Close()

	configPath := filepath.Join(t.TempDir(), "config.yml")
	store := profile.NewStore(fs, configPath)
	require.NoError(t, store.Put(&profile.Profile{
		Name:     "farm",
		Hostname: server.URL,
		Token:    &farmos.Token{AccessToken: "stored-token"},
	}))

	withViper(t, map[string]interface{}{"config": configPath, "output": "json"})

	t.Run("get", func(t *testing.T) {
		out, err := execute(t, NewGetCommand(), "log", "activity", "--filter", "status=done")
		require.NoError(t, err)
		assert.Contains(t, out, `"a1"`)
	})

	t.Run("send", func(t *testing.T) {
		out, err := execute(t, NewSendCommand(), "log", "observation", "--data", `{"attributes":{"name":"Scouting"}}`)
		require.NoError(t, err)
		assert.Contains(t, out, `"o1"`)
	})

	t.Run("delete", func(t *testing.T) {
		out, err := execute(t, NewDeleteCommand(), "log", "activity", "a1")
		require.NoError(t, err)
		assert.Contains(t, out, "Deleted log a1")
	})

	t.Run("entity required", func(t *testing.T) {
		_, err := execute(t, NewGetCommand(), "")
		require.ErrorIs(t, err, constants.ErrEntityTypeRequired)
	})
}

//nolint:paralleltest // uses the global viper instance
func TestProfilesCommand(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yml")
	store := profile.NewStore(fs, configPath)
	require.NoError(t, store.Put(&profile.Profile{Name: "home", Hostname: "https://home.example.com"}))
	require.NoError(t, store.Put(&profile.Profile{Name: "work", Hostname: "https://work.example.com"}))

	withViper(t, map[string]interface{}{"config": configPath, "output": "table"})

	_, err := execute(t, NewProfilesCommand(), "use", "work")
	require.NoError(t, err)

	_, current, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, "work", current)

	out, err := execute(t, NewProfilesCommand(), "list")
	require.NoError(t, err)
	assert.Contains(t, out, "home.example.com")

	_, err = execute(t, NewProfilesCommand(), "delete", "home")
	require.NoError(t, err)

	_, err = store.Get("home")
	require.ErrorIs(t, err, constants.ErrProfileNotFound)
}

func TestNewCommands(t *testing.T) {
	t.Parallel()

	for _, cmd := range []*cobra.Command{
		NewGetCommand(), NewIterateCommand(), NewSendCommand(), NewDeleteCommand(),
		NewSubrequestsCommand(), NewInfoCommand(), NewLoginCommand(), NewLogoutCommand(),
	} {
		assert.NotNil(t, cmd.RunE, cmd.Name())
		assert.NotEmpty(t, cmd.Short, cmd.Name())
	}

	for _, name := range []string{"filter", "param", "sort", "limit"} {
		assert.NotNil(t, NewGetCommand().Flags().Lookup(name), name)
	}

	assert.NotNil(t, NewIterateCommand().Flags().Lookup("max"))
	assert.NotNil(t, NewSubrequestsCommand().Flags().Lookup("format"))
}

func TestTokenUpdater(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yml")
	store := profile.NewStore(afero.NewMemMapFs(), configPath)
	prof := &profile.Profile{Name: "farm", Hostname: "https://farm.example.com"}
	require.NoError(t, store.Put(prof))

	t.Run("profile only", func(t *testing.T) {
		withViper(t, nil)

		updater, err := tokenUpdater(context.Background(), store, prof, prof.Config())
		require.NoError(t, err)
		require.NoError(t, updater.UpdateToken(context.Background(), &farmos.Token{AccessToken: "fresh"}))

		saved, err := store.Get("farm")
		require.NoError(t, err)
		assert.Equal(t, "fresh", saved.Token.AccessToken)
	})

	t.Run("shared memory store", func(t *testing.T) {
		withViper(t, map[string]interface{}{"token-store": "memory"})

		config := prof.Config()

		updater, err := tokenUpdater(context.Background(), store, prof, config)
		require.NoError(t, err)
		assert.Nil(t, config.Token)
		require.NoError(t, updater.UpdateToken(context.Background(), &farmos.Token{AccessToken: "chained"}))

		saved, err := store.Get("farm")
		require.NoError(t, err)
		assert.Equal(t, "chained", saved.Token.AccessToken)
	})

	t.Run("unsupported store", func(t *testing.T) {
		withViper(t, map[string]interface{}{"token-store": "etcd"})

		_, err := tokenUpdater(context.Background(), store, prof, prof.Config())
		require.ErrorIs(t, err, tokenstore.ErrUnsupportedStoreType)
	})
}
