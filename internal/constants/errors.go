package constants

import "errors"

// Profile and configuration errors.
var (
	ErrNoProfileConfigured = errors.New("no profile configured, use 'farmos login --profile <name>' to create one")
	ErrProfileNotFound     = errors.New("profile not found")
	ErrNoHostname          = errors.New("no farmOS hostname configured")
)

// Token errors.
var (
	ErrNoRefreshToken      = errors.New("no refresh token available, authenticate again")
	ErrInvalidJWTFormat    = errors.New("invalid JWT format")
	ErrNoExpirationClaim   = errors.New("no expiration claim found")
	ErrFailedRetrieveToken = errors.New("failed to retrieve refreshed token")
)

// CLI errors.
var (
	ErrHostnameRequired     = errors.New("hostname is required")
	ErrEntityTypeRequired   = errors.New("entity type is required")
	ErrUnsupportedOutput    = errors.New("unsupported output format")
	ErrUnsupportedAPIStyle  = errors.New("unsupported API style")
	ErrPayloadNotJSONObject = errors.New("payload must be a JSON object")
)
