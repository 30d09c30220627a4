package farmclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fivetwenty-io/farmos/pkg/farmclient"
	"github.com/fivetwenty-io/farmos/pkg/farmos"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeHostname(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "adds https", input: "farm.example.com", expected: "https://farm.example.com"},
		{name: "keeps http", input: "http://localhost:8080/", expected: "http://localhost:8080"},
		{name: "trims slashes", input: "https://farm.example.com//", expected: "https://farm.example.com"},
		{name: "trims spaces", input: "  farm.example.com ", expected: "https://farm.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			hostname, err := farmclient.NormalizeHostname(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, hostname)
		})
	}

	_, err := farmclient.NormalizeHostname(" ")
	require.ErrorIs(t, err, farmos.ErrHostnameRequired)
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("requires config", func(t *testing.T) {
		t.Parallel()

		_, err := farmclient.New(context.Background(), nil)
		require.ErrorIs(t, err, farmos.ErrConfigRequired)
	})

	t.Run("creates unauthenticated client", func(t *testing.T) {
		t.Parallel()

		config := &farmos.Config{Hostname: "farm.example.com/"}

		client, err := farmclient.New(context.Background(), config)
		require.NoError(t, err)
		assert.Equal(t, "https://farm.example.com", client.Hostname())
		assert.Equal(t, "https://farm.example.com", config.Hostname)
		assert.False(t, client.IsAuthenticated())
	})
}

func TestNewWithToken(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.Header.Get("Authorization") != "Bearer test-token" {
			writer.WriteHeader(http.StatusUnauthorized)

			return
		}

		writer.Header().Set("Content-Type", "application/vnd.api+json")
		_ = json.NewEncoder(writer).Encode(map[string]interface{}{
			"meta": map[string]interface{}{"farm": map[string]interface{}{"name": "Test Farm", "version": "2.x"}},
		})
	}))
	defer server.Close()

	client, err := farmclient.NewWithToken(context.Background(), server.URL+"/",
		&farmos.Token{AccessToken: "test-token", ExpiresIn: 3600}, nil)
	require.NoError(t, err)
	assert.True(t, client.IsAuthenticated())

	info, err := client.Info(context.Background())
	require.NoError(t, err)

	meta, ok := info["meta"].(map[string]any)
	require.True(t, ok)

	farm, ok := meta["farm"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Test Farm", farm["name"])
}

func TestNewLegacy(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		switch request.URL.Path {
		case "/user/login":
			writer.WriteHeader(http.StatusOK)
		case "/restws/session/token":
			_, _ = writer.Write([]byte("csrf"))
		case "/farm.json":
			writer.Header().Set("Content-Type", "application/json")
			_, _ = writer.Write([]byte(`{"name":"Legacy Farm"}`))
		default:
			writer.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client, err := farmclient.NewLegacy(context.Background(), server.URL, "farmer", "secret")
	require.NoError(t, err)
	assert.Equal(t, farmos.APIStyleLegacy, client.APIStyle())
	assert.True(t, client.IsAuthenticated())
	assert.Nil(t, client.Token())
}

func TestNewWithPassword(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "application/json")
		writer.WriteHeader(http.StatusBadRequest)
		_, _ = writer.Write([]byte(`{"error":"invalid_grant","error_description":"bad credentials"}`))
	}))
	defer server.Close()

	_, err := farmclient.NewWithPassword(context.Background(), server.URL, "farmer", "wrong")
	require.ErrorIs(t, err, farmos.ErrInvalidGrant)
}
