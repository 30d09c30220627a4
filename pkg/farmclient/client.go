package farmclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/fivetwenty-io/farmos/internal/client"
	"github.com/fivetwenty-io/farmos/pkg/farmos"
)

// New creates a farmOS client. The config is normalised in place.
func New(ctx context.Context, config *farmos.Config) (farmos.Client, error) {
	if config == nil {
		return nil, farmos.ErrConfigRequired
	}

	hostname, err := NormalizeHostname(config.Hostname)
	if err != nil {
		return nil, err
	}

	config.Hostname = hostname

	client, err := client.New(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create new client: %w", err)
	}

	return client, nil
}

// NormalizeHostname adds "https://" when no scheme is given and trims
// trailing slashes.
func NormalizeHostname(hostname string) (string, error) {
	hostname = strings.TrimSpace(hostname)
	if hostname == "" {
		return "", farmos.ErrHostnameRequired
	}

	if !strings.HasPrefix(hostname, "http://") && !strings.HasPrefix(hostname, "https://") {
		hostname = "https://" + hostname
	}

	return strings.TrimRight(hostname, "/"), nil
}

// NewWithToken creates a client from an existing OAuth token. updater may
// be nil.
func NewWithToken(ctx context.Context, hostname string, token *farmos.Token, updater farmos.TokenUpdater) (farmos.Client, error) {
	return New(ctx, &farmos.Config{
		Hostname:     hostname,
		Token:        token,
		TokenUpdater: updater,
	})
}

// NewWithPassword creates a client using the OAuth2 password grant.
func NewWithPassword(ctx context.Context, hostname, username, password string) (farmos.Client, error) {
	return New(ctx, &farmos.Config{
		Hostname: hostname,
		Username: username,
		Password: password,
	})
}

// NewWithAuthorizationCode creates a client using the OAuth2 authorization
// code grant. A nil prompt uses the console.
func NewWithAuthorizationCode(ctx context.Context, hostname string, prompt farmos.AuthorizationPrompt) (farmos.Client, error) {
	return New(ctx, &farmos.Config{
		Hostname:  hostname,
		GrantType: farmos.GrantAuthorizationCode,
		Prompt:    prompt,
	})
}

// NewLegacy creates a client for a farmOS 1.x server.
func NewLegacy(ctx context.Context, hostname, username, password string) (farmos.Client, error) {
	return New(ctx, &farmos.Config{
		Hostname: hostname,
		APIStyle: farmos.APIStyleLegacy,
		Username: username,
		Password: password,
	})
}
