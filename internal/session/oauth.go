package session

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/fivetwenty-io/farmos/internal/auth"
	"github.com/fivetwenty-io/farmos/internal/constants"
	internalhttp "github.com/fivetwenty-io/farmos/internal/http"
	"github.com/fivetwenty-io/farmos/pkg/farmos"
)

// OAuthConfig configures an OAuthSession.
type OAuthConfig struct {
	Hostname  string
	GrantType farmos.GrantType
	// OAuth configures the token manager. Its HTTPClient defaults to the
	// session transport's client.
	OAuth *auth.OAuth2Config
	// Token is an existing token. The session probes the server with it on creation.
	Token  *farmos.Token
	Prompt farmos.AuthorizationPrompt
	Logger farmos.Logger
	// Options configure the transport.
	Options []internalhttp.Option
}

// OAuthSession authenticates against farmOS 2.x with OAuth2 bearer tokens.
type OAuthSession struct {
	tracker

	transport *internalhttp.Client
	manager   *auth.OAuth2TokenManager
	grantType farmos.GrantType
	prompt    farmos.AuthorizationPrompt
	logger    farmos.Logger

	csrfMu sync.Mutex
	csrf   string
}

// NewOAuthSession creates a session. When config.Token carries an access
// token the session probes the server and may start out authenticated.
func NewOAuthSession(ctx context.Context, config OAuthConfig) (*OAuthSession, error) {
	grantType := config.GrantType
	if grantType == "" {
		grantType = farmos.GrantPassword
	}

	if grantType != farmos.GrantPassword && grantType != farmos.GrantAuthorizationCode {
		return nil, fmt.Errorf("%w: %s", farmos.ErrUnsupportedGrantType, grantType)
	}

	logger := config.Logger
	if logger == nil {
		logger = farmos.NoopLogger{}
	}

	oauthConfig := config.OAuth
	if oauthConfig == nil {
		oauthConfig = auth.NewFarmOSConfig(config.Hostname)
	}

	if oauthConfig.Logger == nil {
		oauthConfig.Logger = logger
	}

	session := &OAuthSession{
		grantType: grantType,
		prompt:    config.Prompt,
		logger:    logger,
	}

	session.transport = internalhttp.NewClient(config.Hostname, bearerSource{session: session}, config.Options...)

	if oauthConfig.HTTPClient == nil {
		oauthConfig.HTTPClient = session.transport.HTTPClient()
	}

	session.manager = auth.NewOAuth2TokenManager(oauthConfig)

	if config.Token != nil && config.Token.AccessToken != "" {
		session.manager.SetToken(config.Token)

		_, err := session.CheckAuthenticated(ctx)
		if err != nil {
			logger.Warn("Could not verify the supplied token", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	return session, nil
}

// Authenticate runs the configured grant and probes the server.
func (s *OAuthSession) Authenticate(ctx context.Context) error {
	s.setState(Authenticating)

	var err error

	switch s.grantType {
	case farmos.GrantPassword:
		_, err = s.manager.PasswordGrant(ctx, s.manager.Config().Username, s.manager.Config().Password)
	case farmos.GrantAuthorizationCode:
		_, err = s.manager.AuthorizationCodeGrant(ctx, s.prompt)
	default:
		err = fmt.Errorf("%w: %s", farmos.ErrUnsupportedGrantType, s.grantType)
	}

	if err != nil {
		s.setState(Unauthenticated)

		return err
	}

	s.resetCSRF()

	ok, err := s.CheckAuthenticated(ctx)
	if err != nil {
		s.setState(Unauthenticated)

		return err
	}

	if !ok {
		return fmt.Errorf("%w: %s rejected the token", farmos.ErrNotAuthenticated, constants.APIPathRoot)
	}

	s.logger.Info("Authenticated with farmOS", map[string]interface{}{
		"hostname": s.Hostname(),
		"api":      string(farmos.APIStyleJSONAPI),
		"grant":    string(s.grantType),
	})

	return nil
}

// CheckAuthenticated probes the api root.
func (s *OAuthSession) CheckAuthenticated(ctx context.Context) (bool, error) {
	return probe(ctx, s.transport.Do, &s.tracker, constants.APIPathRoot)
}

// Do sends req with the bearer token. When the token grants user_access,
// non-GET requests also carry the CSRF token of the Drupal session.
func (s *OAuthSession) Do(ctx context.Context, req *internalhttp.Request, force bool) (*internalhttp.Response, error) {
	if !force && !s.IsAuthenticated() {
		return nil, farmos.ErrNotAuthenticated
	}

	if req.Method != http.MethodGet && s.HasUserAccess() && !hasHeader(req, constants.HeaderCSRFToken) {
		token, err := s.csrfToken(ctx)
		if err != nil {
			return nil, err
		}

		req = withHeader(req, constants.HeaderCSRFToken, token)
	}

	return s.transport.Do(ctx, req)
}

// Hostname returns the server base URL.
func (s *OAuthSession) Hostname() string {
	return s.transport.BaseURL()
}

// Token returns a copy of the current token.
func (s *OAuthSession) Token() *farmos.Token {
	return s.manager.Token()
}

// HasUserAccess reports whether the token grants user_access.
func (s *OAuthSession) HasUserAccess() bool {
	return s.manager.Token().HasScope(constants.UserAccessScope)
}

// ResolveURL returns the absolute URL of path.
func (s *OAuthSession) ResolveURL(path string) (string, error) {
	return s.transport.ResolveURL(path, nil)
}

// Manager returns the token manager.
func (s *OAuthSession) Manager() *auth.OAuth2TokenManager {
	return s.manager
}

// csrfToken fetches the session token once and caches it.
func (s *OAuthSession) csrfToken(ctx context.Context) (string, error) {
	s.csrfMu.Lock()
	defer s.csrfMu.Unlock()

	if s.csrf != "" {
		return s.csrf, nil
	}

	resp, err := s.transport.Get(ctx, constants.APIPathSessionToken, nil)
	if err != nil {
		return "", fmt.Errorf("failed to fetch CSRF token: %w", err)
	}

	s.csrf = strings.TrimSpace(string(resp.Body))

	return s.csrf, nil
}

func (s *OAuthSession) resetCSRF() {
	s.csrfMu.Lock()
	s.csrf = ""
	s.csrfMu.Unlock()
}

// bearerSource feeds the transport. Without a token requests go out
// anonymously so that forced probes still reach the server.
type bearerSource struct {
	session *OAuthSession
}

func (b bearerSource) GetToken(ctx context.Context) (string, error) {
	if b.session.manager == nil || b.session.manager.Token() == nil {
		return "", nil
	}

	token, err := b.session.manager.GetToken(ctx)
	if err != nil {
		return "", err //nolint:wrapcheck // wrapped by the transport
	}

	return token, nil
}
