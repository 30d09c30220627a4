package farmos

import (
	"context"
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// APIStyle selects the server API the client speaks.
type APIStyle string

// API styles.
const (
	// APIStyleJSONAPI targets farmOS 2.x and later (/api, OAuth2).
	APIStyleJSONAPI APIStyle = "jsonapi"
	// APIStyleLegacy targets farmOS 1.x (*.json endpoints, Drupal session cookie).
	APIStyleLegacy APIStyle = "legacy"
)

// GrantType is an OAuth2 grant supported by OAuth sessions.
type GrantType string

// Supported grants.
const (
	GrantPassword          GrantType = "password"
	GrantAuthorizationCode GrantType = "authorization_code"
)

// ResourceClient accesses one entity type. bundle selects the bundle
// (JSONAPI) or the type/vocabulary filter (legacy).
type ResourceClient interface {
	// Get fetches one page.
	Get(ctx context.Context, bundle string, filters Filters) (*Page, error)
	// GetID fetches one record. filters carries extra query parameters such
	// as include; it may be nil. It returns ErrNotFound when the record does
	// not exist.
	GetID(ctx context.Context, bundle, id string, filters Filters) (Record, error)
	// Iterate walks every matching record page by page.
	Iterate(ctx context.Context, bundle string, filters Filters) *Iterator
	// Send creates the record, or updates it when the payload carries an id.
	Send(ctx context.Context, bundle string, payload Record) (Record, error)
	// Delete removes a record and returns the raw response.
	Delete(ctx context.Context, bundle, id string) (*Response, error)
}

// ResourceAPI accesses any entity type.
type ResourceAPI interface {
	Get(ctx context.Context, entityType, bundle string, filters Filters) (*Page, error)
	GetID(ctx context.Context, entityType, bundle, id string, filters Filters) (Record, error)
	Iterate(ctx context.Context, entityType, bundle string, filters Filters) *Iterator
	Send(ctx context.Context, entityType, bundle string, payload Record) (Record, error)
	Delete(ctx context.Context, entityType, bundle, id string) (*Response, error)
}

// SubrequestsClient sends blueprints to the subrequests endpoint.
type SubrequestsClient interface {
	Send(ctx context.Context, blueprint Blueprint, format Format) (*SubrequestsResult, error)
}

// AuthClient exposes the session of a client.
type AuthClient interface {
	// Authenticate logs in with the configured credentials.
	Authenticate(ctx context.Context) error
	// IsAuthenticated reports the last known session state without a request.
	IsAuthenticated() bool
	// CheckAuthenticated probes the server.
	CheckAuthenticated(ctx context.Context) (bool, error)
	// Token returns a copy of the current OAuth token, nil for legacy sessions.
	Token() *Token
	// HasUserAccess reports whether the token grants the user_access scope.
	HasUserAccess() bool
}

// Client is a farmOS client.
type Client interface {
	AuthClient

	Log() ResourceClient
	Asset() ResourceClient
	Term() ResourceClient
	Area() ResourceClient
	Resource() ResourceAPI
	Subrequests() SubrequestsClient

	// Info returns the server description (JSONAPI "api" or legacy "farm.json").
	Info(ctx context.Context) (Record, error)
	Hostname() string
	APIStyle() APIStyle
}

// Config represents client configuration for building a farmos.Client.
//
// # Authentication precedence
//
// The concrete client (see pkg/farmclient) applies this order:
//  1. Legacy API style: Username and Password log in through the Drupal
//     login form; the session cookie and CSRF token are kept in memory.
//  2. Token: an existing OAuth token is used as is and refreshed with its
//     refresh token when it expires.
//  3. GrantType password (the default when Username is set): the token is
//     fetched with the OAuth2 password grant.
//  4. GrantType authorization_code: Prompt is shown the authorization URL
//     and returns the redirect URL carrying the code.
//  5. Nothing: the client is created unauthenticated and calls fail with
//     ErrNotAuthenticated until Authenticate succeeds.
//
// # Token persistence
//
// TokenUpdater is called synchronously with every new token. Errors it
// returns are logged and do not fail the request.
type Config struct {
	// Hostname of the farmOS server. farmclient.New adds "https://" when no
	// scheme is given and trims trailing slashes.
	Hostname string
	// APIStyle defaults to APIStyleJSONAPI.
	APIStyle APIStyle

	// Username and Password are used by the legacy login and the password grant.
	Username string
	Password string

	// ClientID defaults to "farm".
	ClientID     string
	ClientSecret string
	// Scope defaults to "farm_manager".
	Scope     string
	GrantType GrantType
	// Token is an existing OAuth token, e.g. loaded from a profile.
	Token *Token
	// TokenUpdater receives every newly minted or refreshed token.
	TokenUpdater TokenUpdater
	// Prompt drives the authorization code grant. Defaults to a console prompt.
	Prompt AuthorizationPrompt

	// TokenURL, AuthorizeURL and RedirectURL default to the farmOS paths
	// under Hostname.
	TokenURL     string
	AuthorizeURL string
	RedirectURL  string

	// HTTPTimeout applies to the underlying http.Client. Zero means no timeout.
	HTTPTimeout time.Duration
	// RetryMax is the number of retries for 5xx, 429 and connection errors. Zero disables retries.
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// HTTPClient replaces the default http.Client. Its CheckRedirect and Jar
	// are overwritten.
	HTTPClient *http.Client
	// Debug enables request/response logging through Logger.
	Debug bool
	// Logger defaults to a no-op logger.
	Logger    Logger
	UserAgent string
	// Interceptors run around every HTTP request.
	Interceptors *InterceptorChain
	// Metrics records requests and token refreshes.
	Metrics *Metrics
	// SkipAuthentication creates the client without calling Authenticate.
	SkipAuthentication bool
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c, //nolint:wrapcheck // ozzo errors are already descriptive
		validation.Field(&c.Hostname, validation.Required),
		validation.Field(&c.APIStyle, validation.In(APIStyleJSONAPI, APIStyleLegacy)),
		validation.Field(&c.GrantType, validation.In(GrantPassword, GrantAuthorizationCode)),
		validation.Field(&c.RetryMax, validation.Min(0)),
		validation.Field(&c.Password, validation.When(c.APIStyle == APIStyleLegacy && c.Username != "", validation.Required)),
	)
}
