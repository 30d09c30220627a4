package client

import (
	"context"
	"net/http"
	"testing"

	"github.com/fivetwenty-io/farmos/pkg/farmos"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("requires a config", func(t *testing.T) {
		t.Parallel()

		_, err := New(context.Background(), nil)
		require.ErrorIs(t, err, farmos.ErrConfigRequired)
	})

	t.Run("requires a hostname", func(t *testing.T) {
		t.Parallel()

		_, err := New(context.Background(), &farmos.Config{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Hostname")
	})

	t.Run("rejects unknown api style", func(t *testing.T) {
		t.Parallel()

		_, err := New(context.Background(), &farmos.Config{Hostname: "https://farm.example.com", APIStyle: "soap"})
		require.Error(t, err)
	})

	t.Run("skips authentication", func(t *testing.T) {
		t.Parallel()

		client, err := New(context.Background(), &farmos.Config{
			Hostname:           "https://farm.example.com",
			Username:           "farmer",
			Password:           "secret",
			SkipAuthentication: true,
		})
		require.NoError(t, err)
		assert.False(t, client.IsAuthenticated())
		assert.Equal(t, farmos.APIStyleJSONAPI, client.APIStyle())
		assert.Equal(t, "https://farm.example.com", client.Hostname())
	})

	t.Run("authenticates with the password grant", func(t *testing.T) {
		t.Parallel()

		server := newFarmServer(t, func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "/oauth/token", request.URL.Path)
			assert.NoError(t, request.ParseForm())
			assert.Equal(t, "farm_manager user_access", request.Form.Get("scope"))
			assert.Equal(t, "custom", request.Form.Get("client_id"))

			writeJSON(writer, http.StatusOK, map[string]interface{}{
				"access_token": "test-token",
				"expires_in":   3600,
				"scope":        "farm_manager user_access",
			})
		})
		defer server.Close()

		var saved *farmos.Token

		client, err := New(context.Background(), &farmos.Config{
			Hostname: server.URL,
			Username: "farmer",
			Password: "secret",
			ClientID: "custom",
			Scope:    "farm_manager user_access",
			TokenUpdater: farmos.TokenUpdaterFunc(func(_ context.Context, token *farmos.Token) error {
				saved = token

				return nil
			}),
		})
		require.NoError(t, err)
		assert.True(t, client.IsAuthenticated())
		assert.True(t, client.HasUserAccess())
		require.NotNil(t, saved)
		assert.Equal(t, "test-token", saved.AccessToken)
		assert.Equal(t, "test-token", client.Token().AccessToken)
	})

	t.Run("reports authentication failures", func(t *testing.T) {
		t.Parallel()

		server := newFarmServer(t, func(writer http.ResponseWriter, request *http.Request) {
			writeJSON(writer, http.StatusBadRequest, map[string]string{"error": "invalid_client"})
		})
		defer server.Close()

		_, err := New(context.Background(), &farmos.Config{
			Hostname: server.URL,
			Username: "farmer",
			Password: "secret",
		})
		require.ErrorIs(t, err, farmos.ErrInvalidClient)
	})
}

func TestClient_Info(t *testing.T) {
	t.Parallel()

	server := newFarmServer(t, func(writer http.ResponseWriter, request *http.Request) {
		t.Errorf("unexpected request %s", request.URL.Path)
	})
	t.Cleanup(server.Close)

	t.Run("jsonapi", func(t *testing.T) {
		t.Parallel()

		info, err := newTestClient(t, server.URL, farmos.APIStyleJSONAPI).Info(context.Background())
		require.NoError(t, err)
		assert.Contains(t, info, "meta")
	})

	t.Run("legacy", func(t *testing.T) {
		t.Parallel()

		client := newTestClient(t, server.URL, farmos.APIStyleLegacy)

		info, err := client.Info(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "Test Farm", info["name"])
		assert.Nil(t, client.Token())
	})
}

func TestClient_Metrics(t *testing.T) {
	t.Parallel()

	server := newFarmServer(t, func(writer http.ResponseWriter, request *http.Request) {
		writeJSON(writer, http.StatusOK, map[string]interface{}{"data": []interface{}{}})
	})
	defer server.Close()

	registry := prometheus.NewRegistry()
	metrics := farmos.NewMetrics(registry)

	client, err := New(context.Background(), &farmos.Config{
		Hostname: server.URL,
		Token:    &farmos.Token{AccessToken: "test-token", ExpiresIn: 3600},
		Metrics:  metrics,
	})
	require.NoError(t, err)

	_, err = client.Log().Get(context.Background(), "activity", nil)
	require.NoError(t, err)

	assert.InDelta(t, 2, testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues("GET", "200")), 0)
}
