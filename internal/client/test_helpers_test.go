package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fivetwenty-io/farmos/pkg/farmos"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCSRF = "test-csrf"

// newFarmServer serves the authentication endpoints of both API styles and
// hands everything else to handler.
func newFarmServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()

	mux.HandleFunc("/api", func(writer http.ResponseWriter, request *http.Request) {
		if request.Header.Get("Authorization") != "Bearer test-token" {
			writer.WriteHeader(http.StatusUnauthorized)

			return
		}

		writeJSON(writer, http.StatusOK, map[string]interface{}{
			"meta": map[string]interface{}{"farm": map[string]interface{}{"name": "Test Farm"}},
		})
	})

	mux.HandleFunc("/user/login", func(writer http.ResponseWriter, request *http.Request) {
		http.SetCookie(writer, &http.Cookie{Name: "SESStest", Value: "1", Path: "/"})
	})

	mux.HandleFunc("/restws/session/token", func(writer http.ResponseWriter, request *http.Request) {
		_, _ = writer.Write([]byte(testCSRF))
	})

	mux.HandleFunc("/farm.json", func(writer http.ResponseWriter, request *http.Request) {
		if request.Header.Get("X-CSRF-Token") != testCSRF {
			writer.WriteHeader(http.StatusForbidden)

			return
		}

		writeJSON(writer, http.StatusOK, map[string]interface{}{"name": "Test Farm", "api_version": "1.3"})
	})

	mux.HandleFunc("/", handler)

	return httptest.NewServer(mux)
}

// newTestClient creates an authenticated client against server.
func newTestClient(t *testing.T, serverURL string, style farmos.APIStyle) *Client {
	t.Helper()

	config := &farmos.Config{
		Hostname: serverURL,
		APIStyle: style,
	}

	if style == farmos.APIStyleLegacy {
		config.Username = "farmer"
		config.Password = "secret"
	} else {
		config.Token = &farmos.Token{AccessToken: "test-token", ExpiresIn: 3600}
	}

	client, err := New(context.Background(), config)
	require.NoError(t, err)
	require.True(t, client.IsAuthenticated())

	return client
}

func writeJSON(writer http.ResponseWriter, status int, body interface{}) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)

	if body != nil {
		_ = json.NewEncoder(writer).Encode(body)
	}
}

func decodeBody(t *testing.T, request *http.Request) map[string]interface{} {
	t.Helper()

	var body map[string]interface{}

	assert.NoError(t, json.NewDecoder(request.Body).Decode(&body))

	return body
}
