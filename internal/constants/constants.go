package constants

import "time"

// File and directory permissions.
const (
	// ConfigDirPerm is the permission for configuration directories.
	ConfigDirPerm = 0750

	// ConfigFilePerm is the permission for configuration files.
	ConfigFilePerm = 0600
)

// HTTP and network timeouts.
const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests made by helpers.
	DefaultHTTPTimeout = 30 * time.Second

	// ShortHTTPTimeout is used for quick operations such as probes.
	ShortHTTPTimeout = 10 * time.Second
)

// Retry limits. Retries are opt-in; the transport does not retry by default.
const (
	// DefaultRetryMax is the default maximum number of retries.
	DefaultRetryMax = 0

	// DefaultRetryWaitMin is the minimum wait time between retries.
	DefaultRetryWaitMin = 1 * time.Second

	// DefaultRetryWaitMax is the maximum wait time between retries.
	DefaultRetryWaitMax = 10 * time.Second
)

// DefaultBatchConcurrency bounds in-flight requests of a client side batch.
const DefaultBatchConcurrency = 5

// Token handling.
const (
	// TokenExpirationBuffer is subtracted from a token's expiry when checking validity.
	TokenExpirationBuffer = 30 * time.Second

	// TokenTypeBearer is the default OAuth2 token type.
	TokenTypeBearer = "bearer"

	// RefreshFlightKey is the singleflight key for token refreshes.
	RefreshFlightKey = "refresh"
)

// HTTP status codes commonly used.
const (
	// HTTPStatusOK represents a successful HTTP response.
	HTTPStatusOK = 200

	// HTTPStatusMultipleChoices is the first redirect status re-issued for POST and PUT.
	HTTPStatusMultipleChoices = 300

	// HTTPStatusPermanentRedirect is the last redirect status re-issued for POST and PUT.
	HTTPStatusPermanentRedirect = 308

	// HTTPStatusBadRequest represents a client error.
	HTTPStatusBadRequest = 400
)

// Media types.
const (
	// MediaTypeJSON is the plain JSON media type.
	MediaTypeJSON = "application/json"

	// MediaTypeJSONAPI is the JSONAPI media type.
	MediaTypeJSONAPI = "application/vnd.api+json"

	// MediaTypeForm is the form encoding used by the legacy login endpoint.
	MediaTypeForm = "application/x-www-form-urlencoded"

	// MediaTypeHTML is returned by Drupal when a JSON endpoint falls back to a page.
	MediaTypeHTML = "text/html"
)

// Header names.
const (
	HeaderAccept      = "Accept"
	HeaderContentType = "Content-Type"
	HeaderCSRFToken   = "X-CSRF-Token"
	HeaderLocation    = "Location"
	HeaderUserAgent   = "User-Agent"
)

// DefaultUserAgent is sent unless the caller overrides it.
const DefaultUserAgent = "farmos-go/1"

// Legacy (farmOS 1.x) API paths.
const (
	LegacyPathLogin        = "user/login"
	LegacyPathSessionToken = "restws/session/token"
	LegacyPathInfo         = "farm.json"
	LegacyLoginFormID      = "user_login"
	LegacyJSONSuffix       = ".json"
	LegacyPageParam        = "page"
)

// JSONAPI (farmOS 2.x) API paths.
const (
	APIPathRoot         = "api"
	APIPathSessionToken = "session/token"
	APIPathSubrequests  = "subrequests"
	SubrequestsFormat   = "_format"
)

// OAuth2 defaults.
const (
	DefaultOAuthClientID     = "farm"
	DefaultOAuthScope        = "farm_manager"
	UserAccessScope          = "user_access"
	OAuthTokenPath           = "oauth/token"
	OAuthAuthorizePath       = "oauth/authorize"
	OAuthRedirectPath        = "api/authorized"
	GrantTypePassword        = "password"
	GrantTypeAuthorization   = "authorization_code"
	GrantTypeRefreshToken    = "refresh_token"
	OAuthErrorInvalidGrant   = "invalid_grant"
	OAuthErrorInvalidClient  = "invalid_client"
	OAuthErrorInvalidScope   = "invalid_scope"
	OAuthErrorUnauthorized   = "unauthorized_client"
	OAuthErrorAccessDenied   = "access_denied"
	OAuthStateQueryParameter = "state"
	OAuthCodeQueryParameter  = "code"
)

// Entity types and bundles.
const (
	EntityLog          = "log"
	EntityAsset        = "asset"
	EntityTerm         = "taxonomy_term"
	EntityLegacyAsset  = "farm_asset"
	LegacyAreaBundle   = "farm_areas"
	AreaAssetBundle    = "land"
	LegacyBundleFilter = "bundle"
	LegacyTypeFilter   = "type"
	LegacyTermIDFilter = "tid"
	ResourceTypeSep    = "--"
)

// Format constants.
const (
	// FormatJSON selects JSON output.
	FormatJSON = "json"

	// FormatYAML selects YAML output.
	FormatYAML = "yaml"

	// FormatTable selects tabular output.
	FormatTable = "table"
)
