package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/fivetwenty-io/farmos/internal/auth"
	"github.com/fivetwenty-io/farmos/internal/constants"
	internalhttp "github.com/fivetwenty-io/farmos/internal/http"
	"github.com/fivetwenty-io/farmos/internal/session"
	"github.com/fivetwenty-io/farmos/pkg/farmos"
)

// Client implements the farmos.Client interface.
type Client struct {
	session session.Session
	style   farmos.APIStyle
	logger  farmos.Logger

	// Resource clients
	logs        farmos.ResourceClient
	assets      farmos.ResourceClient
	terms       farmos.ResourceClient
	areas       farmos.ResourceClient
	resources   farmos.ResourceAPI
	subrequests farmos.SubrequestsClient
}

// createHTTPClientOptions builds transport options from config.
func createHTTPClientOptions(config *farmos.Config) []internalhttp.Option {
	var httpOpts []internalhttp.Option

	if config.Logger != nil {
		httpOpts = append(httpOpts, internalhttp.WithLogger(config.Logger))
	}

	if config.Debug {
		httpOpts = append(httpOpts, internalhttp.WithDebug(true))
	}

	if config.UserAgent != "" {
		httpOpts = append(httpOpts, internalhttp.WithUserAgent(config.UserAgent))
	}

	if config.HTTPClient != nil {
		httpOpts = append(httpOpts, internalhttp.WithHTTPClient(config.HTTPClient))
	}

	if config.HTTPTimeout > 0 {
		httpOpts = append(httpOpts, internalhttp.WithTimeout(config.HTTPTimeout))
	}

	if config.RetryMax > 0 {
		retryWaitMin := constants.DefaultRetryWaitMin
		retryWaitMax := constants.DefaultRetryWaitMax

		if config.RetryWaitMin > 0 {
			retryWaitMin = config.RetryWaitMin
		}

		if config.RetryWaitMax > 0 {
			retryWaitMax = config.RetryWaitMax
		}

		httpOpts = append(httpOpts, internalhttp.WithRetryConfig(config.RetryMax, retryWaitMin, retryWaitMax))
	}

	chain := config.Interceptors
	if config.Metrics != nil {
		if chain == nil {
			chain = farmos.NewInterceptorChain()
		}

		chain = chain.WithMetrics(config.Metrics)
	}

	if chain != nil {
		httpOpts = append(httpOpts, internalhttp.WithInterceptors(chain))
	}

	return httpOpts
}

// createOAuth2Config maps the client config onto the token manager config.
func createOAuth2Config(config *farmos.Config) *auth.OAuth2Config {
	oauthConfig := auth.NewFarmOSConfig(config.Hostname)

	if config.TokenURL != "" {
		oauthConfig.TokenURL = config.TokenURL
	}

	if config.AuthorizeURL != "" {
		oauthConfig.AuthorizeURL = config.AuthorizeURL
	}

	if config.RedirectURL != "" {
		oauthConfig.RedirectURL = config.RedirectURL
	}

	if config.ClientID != "" {
		oauthConfig.ClientID = config.ClientID
	}

	if scopes := strings.Fields(config.Scope); len(scopes) > 0 {
		oauthConfig.Scopes = scopes
	}

	oauthConfig.ClientSecret = config.ClientSecret
	oauthConfig.Username = config.Username
	oauthConfig.Password = config.Password
	oauthConfig.Updater = config.TokenUpdater
	oauthConfig.Logger = config.Logger
	oauthConfig.Metrics = config.Metrics

	return oauthConfig
}

// createSession picks the session for the configured API style.
func createSession(ctx context.Context, config *farmos.Config, httpOpts []internalhttp.Option) (session.Session, error) {
	if config.APIStyle == farmos.APIStyleLegacy {
		return session.NewLegacySession(session.LegacyConfig{
			Hostname: config.Hostname,
			Username: config.Username,
			Password: config.Password,
			Logger:   config.Logger,
			Options:  httpOpts,
		})
	}

	grantType := config.GrantType
	if grantType == "" {
		grantType = farmos.GrantPassword
	}

	prompt := config.Prompt
	if prompt == nil && grantType == farmos.GrantAuthorizationCode {
		prompt = auth.NewConsolePrompt()
	}

	return session.NewOAuthSession(ctx, session.OAuthConfig{
		Hostname:  config.Hostname,
		GrantType: grantType,
		OAuth:     createOAuth2Config(config),
		Token:     config.Token,
		Prompt:    prompt,
		Logger:    config.Logger,
		Options:   httpOpts,
	})
}

// hasCredentials reports whether Authenticate can run without a token.
func hasCredentials(config *farmos.Config) bool {
	if config.GrantType == farmos.GrantAuthorizationCode && config.APIStyle != farmos.APIStyleLegacy {
		return true
	}

	return config.Username != ""
}

// New creates a farmOS client. Unless config.SkipAuthentication is set, a
// client with credentials authenticates before it is returned.
func New(ctx context.Context, config *farmos.Config) (*Client, error) {
	if config == nil {
		return nil, farmos.ErrConfigRequired
	}

	if config.APIStyle == "" {
		config.APIStyle = farmos.APIStyleJSONAPI
	}

	err := config.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := config.Logger
	if logger == nil {
		logger = farmos.NoopLogger{}
		config.Logger = logger
	}

	sess, err := createSession(ctx, config, createHTTPClientOptions(config))
	if err != nil {
		return nil, err
	}

	client := NewWithSession(sess, config.APIStyle, logger)

	if !config.SkipAuthentication && !sess.IsAuthenticated() && hasCredentials(config) {
		err = sess.Authenticate(ctx)
		if err != nil {
			return nil, fmt.Errorf("authenticating with %s: %w", sess.Hostname(), err)
		}
	}

	return client, nil
}

// NewWithSession creates a client around an existing session.
func NewWithSession(sess session.Session, style farmos.APIStyle, logger farmos.Logger) *Client {
	if logger == nil {
		logger = farmos.NoopLogger{}
	}

	client := &Client{
		session: sess,
		style:   style,
		logger:  logger,
	}

	client.initializeResourceClients()

	return client
}

func (c *Client) initializeResourceClients() {
	c.subrequests = NewSubrequestsClient(c.session, c.logger)

	if c.style == farmos.APIStyleLegacy {
		legacy := NewLegacyResources(c.session, c.logger)

		c.resources = legacy
		c.logs = NewEntityClient(legacy, constants.EntityLog, "")
		c.assets = NewEntityClient(legacy, constants.EntityLegacyAsset, "")
		c.terms = NewEntityClient(legacy, constants.EntityTerm, "")
		c.areas = NewEntityClient(
			legacy.WithFilters(farmos.Filters{constants.LegacyBundleFilter: {constants.LegacyAreaBundle}}).
				WithIDFilter(constants.LegacyTermIDFilter),
			constants.EntityTerm, "")

		return
	}

	jsonapi := NewJSONAPIResources(c.session, c.logger)

	c.resources = jsonapi
	c.logs = NewEntityClient(jsonapi, constants.EntityLog, "")
	c.assets = NewEntityClient(jsonapi, constants.EntityAsset, "")
	c.terms = NewEntityClient(jsonapi, constants.EntityTerm, "")
	c.areas = NewEntityClient(jsonapi, constants.EntityAsset, constants.AreaAssetBundle)
}

// Session returns the underlying session.
func (c *Client) Session() session.Session {
	return c.session
}

// Authenticate implements farmos.Client.Authenticate.
func (c *Client) Authenticate(ctx context.Context) error {
	return c.session.Authenticate(ctx) //nolint:wrapcheck // session errors carry their kind
}

// IsAuthenticated implements farmos.Client.IsAuthenticated.
func (c *Client) IsAuthenticated() bool {
	return c.session.IsAuthenticated()
}

// CheckAuthenticated implements farmos.Client.CheckAuthenticated.
func (c *Client) CheckAuthenticated(ctx context.Context) (bool, error) {
	return c.session.CheckAuthenticated(ctx) //nolint:wrapcheck // session errors carry their kind
}

// Token implements farmos.Client.Token.
func (c *Client) Token() *farmos.Token {
	return c.session.Token()
}

// HasUserAccess implements farmos.Client.HasUserAccess.
func (c *Client) HasUserAccess() bool {
	return c.session.HasUserAccess()
}

// Info implements farmos.Client.Info.
func (c *Client) Info(ctx context.Context) (farmos.Record, error) {
	path := constants.APIPathRoot
	if c.style == farmos.APIStyleLegacy {
		path = constants.LegacyPathInfo
	}

	c.logger.Debug("Retrieving farmOS server info", map[string]interface{}{"path": path})

	resp, err := c.session.Do(ctx, &internalhttp.Request{Method: http.MethodGet, Path: path}, false)
	if err != nil {
		return nil, fmt.Errorf("getting info: %w", err)
	}

	var info farmos.Record

	err = internalhttp.DecodeJSON(resp, &info)
	if err != nil {
		return nil, fmt.Errorf("parsing info response: %w", err)
	}

	return info, nil
}

// Hostname implements farmos.Client.Hostname.
func (c *Client) Hostname() string {
	return c.session.Hostname()
}

// APIStyle implements farmos.Client.APIStyle.
func (c *Client) APIStyle() farmos.APIStyle {
	return c.style
}

// Resource client accessors

// Log implements farmos.Client.Log.
func (c *Client) Log() farmos.ResourceClient {
	return c.logs
}

// Asset implements farmos.Client.Asset.
func (c *Client) Asset() farmos.ResourceClient {
	return c.assets
}

// Term implements farmos.Client.Term.
func (c *Client) Term() farmos.ResourceClient {
	return c.terms
}

// Area implements farmos.Client.Area.
func (c *Client) Area() farmos.ResourceClient {
	return c.areas
}

// Resource implements farmos.Client.Resource.
func (c *Client) Resource() farmos.ResourceAPI {
	return c.resources
}

// Subrequests implements farmos.Client.Subrequests.
func (c *Client) Subrequests() farmos.SubrequestsClient {
	return c.subrequests
}

var _ farmos.Client = (*Client)(nil)
