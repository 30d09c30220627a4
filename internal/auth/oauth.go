package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fivetwenty-io/farmos/internal/constants"
	"github.com/fivetwenty-io/farmos/pkg/farmos"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// ErrNoValidCredentials is returned when no token can be obtained.
var ErrNoValidCredentials = errors.New("no valid credentials available")

// OAuth2Config configures an OAuth2TokenManager.
type OAuth2Config struct {
	TokenURL     string
	AuthorizeURL string
	RedirectURL  string
	ClientID     string
	ClientSecret string
	Scopes       []string

	// Username and Password enable the password grant as a fallback when no
	// refresh token is held.
	Username string
	Password string

	// HTTPClient is used for token endpoint calls.
	HTTPClient *http.Client
	// Updater receives every newly minted or refreshed token.
	Updater farmos.TokenUpdater
	Logger  farmos.Logger
	Metrics *farmos.Metrics
}

// NewFarmOSConfig returns a config with the farmOS endpoints under hostname.
func NewFarmOSConfig(hostname string) *OAuth2Config {
	base := strings.TrimRight(hostname, "/")

	return &OAuth2Config{
		TokenURL:     base + "/" + constants.OAuthTokenPath,
		AuthorizeURL: base + "/" + constants.OAuthAuthorizePath,
		RedirectURL:  base + "/" + constants.OAuthRedirectPath,
		ClientID:     constants.DefaultOAuthClientID,
		Scopes:       []string{constants.DefaultOAuthScope},
	}
}

// OAuth2TokenManager mints, stores and refreshes OAuth2 tokens. Refreshes
// are single-flight: concurrent callers that find an expired token share
// one token request.
type OAuth2TokenManager struct {
	config *OAuth2Config
	oauth  *oauth2.Config
	store  *TokenStore
	flight singleflight.Group
	logger farmos.Logger
	now    func() time.Time
}

// NewOAuth2TokenManager creates a manager. Empty client id and scopes get
// the farmOS defaults.
func NewOAuth2TokenManager(config *OAuth2Config) *OAuth2TokenManager {
	if config.ClientID == "" {
		config.ClientID = constants.DefaultOAuthClientID
	}

	if len(config.Scopes) == 0 {
		config.Scopes = []string{constants.DefaultOAuthScope}
	}

	logger := config.Logger
	if logger == nil {
		logger = farmos.NoopLogger{}
	}

	return &OAuth2TokenManager{
		config: config,
		oauth: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:   config.AuthorizeURL,
				TokenURL:  config.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
			RedirectURL: config.RedirectURL,
			Scopes:      config.Scopes,
		},
		store:  NewTokenStore(),
		logger: logger,
		now:    time.Now,
	}
}

// GetToken returns a valid access token, refreshing or minting one if needed.
func (m *OAuth2TokenManager) GetToken(ctx context.Context) (string, error) {
	token := m.store.Get()
	if token.Valid() {
		return token.AccessToken, nil
	}

	result, err, _ := m.flight.Do(constants.RefreshFlightKey, func() (interface{}, error) {
		current := m.store.Get()
		if current.Valid() {
			return current, nil
		}

		return m.renew(ctx, current)
	})
	if err != nil {
		return "", err
	}

	return result.(*Token).AccessToken, nil
}

// RefreshToken forces a refresh with the stored refresh token, falling back
// to the password grant when credentials are configured.
func (m *OAuth2TokenManager) RefreshToken(ctx context.Context) error {
	_, err, _ := m.flight.Do(constants.RefreshFlightKey, func() (interface{}, error) {
		return m.renew(ctx, m.store.Get())
	})

	return err
}

// SetToken stores token as is, after filling in its expiry fields.
func (m *OAuth2TokenManager) SetToken(token *Token) {
	if token == nil {
		m.store.Clear()

		return
	}

	stored := token.Clone()
	stored.Normalize(m.now())
	fillFromClaims(stored, m.now())
	m.store.Set(stored)
}

// Config returns the manager configuration.
func (m *OAuth2TokenManager) Config() *OAuth2Config {
	return m.config
}

// Token returns a copy of the current token, or nil.
func (m *OAuth2TokenManager) Token() *Token {
	return m.store.Get()
}

// ClearToken drops the current token.
func (m *OAuth2TokenManager) ClearToken() {
	m.store.Clear()
}

// PasswordGrant fetches a token with the resource owner password grant.
func (m *OAuth2TokenManager) PasswordGrant(ctx context.Context, username, password string) (*Token, error) {
	token, err := m.oauth.PasswordCredentialsToken(m.withHTTPClient(ctx), username, password)
	if err != nil {
		return nil, mapTokenError(err)
	}

	return m.accept(ctx, token), nil
}

// AuthCodeURL returns the authorization URL for state.
func (m *OAuth2TokenManager) AuthCodeURL(state string) string {
	return m.oauth.AuthCodeURL(state)
}

// AuthorizationCodeGrant shows the authorization URL through prompt, checks
// the state of the returned redirect URL and exchanges its code.
func (m *OAuth2TokenManager) AuthorizationCodeGrant(ctx context.Context, prompt farmos.AuthorizationPrompt) (*Token, error) {
	if prompt == nil {
		return nil, farmos.ErrNoPrompt
	}

	state := uuid.NewString()

	redirect, err := prompt.Authorize(ctx, m.AuthCodeURL(state))
	if err != nil {
		return nil, fmt.Errorf("authorization prompt failed: %w", err)
	}

	code, err := parseAuthorizationResponse(redirect, state)
	if err != nil {
		return nil, err
	}

	return m.Exchange(ctx, code)
}

// Exchange trades an authorization code for a token.
func (m *OAuth2TokenManager) Exchange(ctx context.Context, code string) (*Token, error) {
	token, err := m.oauth.Exchange(m.withHTTPClient(ctx), code)
	if err != nil {
		return nil, mapTokenError(err)
	}

	return m.accept(ctx, token), nil
}

func (m *OAuth2TokenManager) renew(ctx context.Context, current *Token) (*Token, error) {
	switch {
	case current != nil && current.RefreshToken != "":
		token, err := m.refresh(ctx, current.RefreshToken)
		m.config.Metrics.ObserveRefresh(err)

		return token, err
	case m.config.Username != "" && m.config.Password != "":
		return m.PasswordGrant(ctx, m.config.Username, m.config.Password)
	case current != nil:
		return nil, constants.ErrNoRefreshToken
	default:
		return nil, ErrNoValidCredentials
	}
}

func (m *OAuth2TokenManager) refresh(ctx context.Context, refreshToken string) (*Token, error) {
	m.logger.Debug("Refreshing OAuth token", map[string]interface{}{
		"token_url": m.config.TokenURL,
	})

	source := m.oauth.TokenSource(m.withHTTPClient(ctx), &oauth2.Token{RefreshToken: refreshToken})

	token, err := source.Token()
	if err != nil {
		return nil, mapTokenError(err)
	}

	// Servers may omit the refresh token on refresh; keep the old one.
	if token.RefreshToken == "" {
		token.RefreshToken = refreshToken
	}

	return m.accept(ctx, token), nil
}

// accept stores a freshly issued token and hands it to the updater.
func (m *OAuth2TokenManager) accept(ctx context.Context, issued *oauth2.Token) *Token {
	token := fromOAuth2(issued, m.now())
	fillFromClaims(token, m.now())
	m.store.Set(token)

	if m.config.Updater == nil {
		m.logger.Debug("No token updater configured, token kept in memory", nil)

		return token
	}

	err := m.config.Updater.UpdateToken(ctx, token.Clone())
	if err != nil {
		m.logger.Warn("Token updater failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return token
}

func (m *OAuth2TokenManager) withHTTPClient(ctx context.Context) context.Context {
	if m.config.HTTPClient == nil {
		return ctx
	}

	return context.WithValue(ctx, oauth2.HTTPClient, m.config.HTTPClient)
}

func fromOAuth2(issued *oauth2.Token, now time.Time) *Token {
	token := &Token{
		AccessToken:  issued.AccessToken,
		RefreshToken: issued.RefreshToken,
		TokenType:    issued.TokenType,
		ExpiresIn:    issued.ExpiresIn,
		ExpiresAt:    issued.Expiry,
	}

	if scope, ok := issued.Extra("scope").(string); ok {
		token.Scope = scope
	}

	token.Normalize(now)

	return token
}

// mapTokenError turns OAuth2 error responses into the farmos error kinds.
func mapTokenError(err error) error {
	retrieveErr := &oauth2.RetrieveError{}
	if !errors.As(err, &retrieveErr) {
		return fmt.Errorf("%w: %w", constants.ErrFailedRetrieveToken, err)
	}

	kind := constants.ErrFailedRetrieveToken

	switch retrieveErr.ErrorCode {
	case constants.OAuthErrorInvalidGrant:
		kind = farmos.ErrInvalidGrant
	case constants.OAuthErrorInvalidClient, constants.OAuthErrorUnauthorized:
		kind = farmos.ErrInvalidClient
	case constants.OAuthErrorInvalidScope:
		kind = farmos.ErrInvalidScope
	}

	return &farmos.AuthError{
		Kind:        kind,
		Code:        retrieveErr.ErrorCode,
		Description: retrieveErr.ErrorDescription,
		Err:         err,
	}
}

func parseAuthorizationResponse(redirect, state string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(redirect))
	if err != nil {
		return "", fmt.Errorf("invalid redirect URL: %w", err)
	}

	query := parsed.Query()

	if code := query.Get("error"); code != "" {
		kind := farmos.ErrInvalidGrant
		if code == constants.OAuthErrorInvalidScope {
			kind = farmos.ErrInvalidScope
		}

		return "", &farmos.AuthError{
			Kind:        kind,
			Code:        code,
			Description: query.Get("error_description"),
		}
	}

	if query.Get(constants.OAuthStateQueryParameter) != state {
		return "", farmos.ErrStateMismatch
	}

	code := query.Get(constants.OAuthCodeQueryParameter)
	if code == "" {
		return "", farmos.ErrMissingAuthCode
	}

	return code, nil
}
