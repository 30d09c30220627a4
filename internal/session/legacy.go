package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"

	"github.com/fivetwenty-io/farmos/internal/constants"
	internalhttp "github.com/fivetwenty-io/farmos/internal/http"
	"github.com/fivetwenty-io/farmos/pkg/farmos"
)

// LegacyConfig configures a LegacySession.
type LegacyConfig struct {
	Hostname string
	Username string
	Password string
	Logger   farmos.Logger
	Options  []internalhttp.Option
}

// LegacySession authenticates against farmOS 1.x with the Drupal login
// form. The session cookie lives in a cookie jar and the CSRF token from
// restws is sent with every request.
type LegacySession struct {
	tracker

	transport *internalhttp.Client
	username  string
	password  string
	logger    farmos.Logger

	csrfMu sync.RWMutex
	csrf   string
}

// NewLegacySession creates an unauthenticated session.
func NewLegacySession(config LegacyConfig) (*LegacySession, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	logger := config.Logger
	if logger == nil {
		logger = farmos.NoopLogger{}
	}

	opts := append([]internalhttp.Option{internalhttp.WithCookieJar(jar)}, config.Options...)

	return &LegacySession{
		transport: internalhttp.NewClient(config.Hostname, nil, opts...),
		username:  config.Username,
		password:  config.Password,
		logger:    logger,
	}, nil
}

// Authenticate logs in through user/login, fetches the CSRF token and
// probes farm.json.
func (s *LegacySession) Authenticate(ctx context.Context) error {
	if s.username == "" {
		return farmos.ErrNoAuthMethod
	}

	s.setState(Authenticating)
	s.setCSRF("")

	err := s.login(ctx)
	if err != nil {
		s.setState(Unauthenticated)

		return err
	}

	ok, err := s.CheckAuthenticated(ctx)
	if err != nil {
		s.setState(Unauthenticated)

		return err
	}

	if !ok {
		return fmt.Errorf("%w: %s rejected the session", farmos.ErrNotAuthenticated, constants.LegacyPathInfo)
	}

	s.logger.Info("Authenticated with farmOS", map[string]interface{}{
		"hostname": s.Hostname(),
		"api":      string(farmos.APIStyleLegacy),
	})

	return nil
}

func (s *LegacySession) login(ctx context.Context) error {
	form := url.Values{}
	form.Set("name", s.username)
	form.Set("pass", s.password)
	form.Set("form_id", constants.LegacyLoginFormID)

	resp, err := s.Do(ctx, &internalhttp.Request{
		Method: http.MethodPost,
		Path:   constants.LegacyPathLogin,
		Form:   form,
	}, true)
	if err != nil {
		return loginError(err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: login returned status %d", farmos.ErrInvalidGrant, resp.StatusCode)
	}

	resp, err = s.Do(ctx, &internalhttp.Request{
		Method: http.MethodGet,
		Path:   constants.LegacyPathSessionToken,
	}, true)
	if err != nil {
		return loginError(err)
	}

	token := strings.TrimSpace(string(resp.Body))
	if resp.StatusCode != http.StatusOK || token == "" {
		return fmt.Errorf("%w: no session token issued", farmos.ErrInvalidGrant)
	}

	s.setCSRF(token)

	return nil
}

// CheckAuthenticated probes farm.json. The probe is forced and carries the
// CSRF token like any other request.
func (s *LegacySession) CheckAuthenticated(ctx context.Context) (bool, error) {
	return probe(ctx, func(ctx context.Context, req *internalhttp.Request) (*internalhttp.Response, error) {
		return s.Do(ctx, req, true)
	}, &s.tracker, constants.LegacyPathInfo)
}

// Do sends req with the CSRF token. The token held by the session takes
// precedence over one supplied by the caller.
func (s *LegacySession) Do(ctx context.Context, req *internalhttp.Request, force bool) (*internalhttp.Response, error) {
	if !force && !s.IsAuthenticated() {
		return nil, farmos.ErrNotAuthenticated
	}

	if token := s.csrfToken(); token != "" {
		req = withHeader(req, constants.HeaderCSRFToken, token)
	}

	return s.transport.Do(ctx, req)
}

// Hostname returns the server base URL.
func (s *LegacySession) Hostname() string {
	return s.transport.BaseURL()
}

// Token always returns nil; legacy sessions hold no OAuth token.
func (s *LegacySession) Token() *farmos.Token {
	return nil
}

// HasUserAccess always returns false.
func (s *LegacySession) HasUserAccess() bool {
	return false
}

// ResolveURL returns the absolute URL of path.
func (s *LegacySession) ResolveURL(path string) (string, error) {
	return s.transport.ResolveURL(path, nil)
}

func (s *LegacySession) csrfToken() string {
	s.csrfMu.RLock()
	defer s.csrfMu.RUnlock()

	return s.csrf
}

func (s *LegacySession) setCSRF(token string) {
	s.csrfMu.Lock()
	s.csrf = token
	s.csrfMu.Unlock()
}

func loginError(err error) error {
	responseErr := &farmos.ResponseError{}
	if errors.As(err, &responseErr) {
		return fmt.Errorf("%w: %w", farmos.ErrInvalidGrant, err)
	}

	return fmt.Errorf("login failed: %w", err)
}
