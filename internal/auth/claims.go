package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/fivetwenty-io/farmos/internal/constants"
	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenClaims are the claims farmOS puts into its JWT access tokens.
type AccessTokenClaims struct {
	ExpiresAt time.Time
	Scopes    []string
	Subject   string
}

// ParseAccessToken reads the claims of a JWT access token without
// verifying its signature. The token is only inspected to learn its
// expiry and scopes; the server remains the authority.
func ParseAccessToken(accessToken string) (*AccessTokenClaims, error) {
	if strings.Count(accessToken, ".") != 2 { //nolint:mnd // header.payload.signature
		return nil, constants.ErrInvalidJWTFormat
	}

	claims := jwt.MapClaims{}

	_, _, err := jwt.NewParser().ParseUnverified(accessToken, claims)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", constants.ErrInvalidJWTFormat, err)
	}

	out := &AccessTokenClaims{}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, constants.ErrNoExpirationClaim
	}

	out.ExpiresAt = exp.Time

	if sub, err := claims.GetSubject(); err == nil {
		out.Subject = sub
	}

	switch scope := claims["scope"].(type) {
	case string:
		out.Scopes = strings.Fields(scope)
	case []interface{}:
		for _, value := range scope {
			if s, ok := value.(string); ok {
				out.Scopes = append(out.Scopes, s)
			}
		}
	}

	return out, nil
}

// fillFromClaims completes a token whose response omitted expires_in or
// scope. Opaque tokens are left alone.
func fillFromClaims(token *Token, now time.Time) {
	if !token.ExpiresAt.IsZero() && token.Scope != "" {
		return
	}

	claims, err := ParseAccessToken(token.AccessToken)
	if err != nil {
		return
	}

	if token.ExpiresAt.IsZero() {
		token.ExpiresAt = claims.ExpiresAt
		token.Normalize(now)
	}

	if token.Scope == "" {
		token.Scope = strings.Join(claims.Scopes, " ")
	}
}
