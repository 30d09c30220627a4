package farmos

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/fivetwenty-io/farmos/internal/constants"
	"github.com/mitchellh/mapstructure"
)

// Token is an OAuth2 token as issued by the farmOS token endpoint.
// ExpiresAt is authoritative once set; ExpiresIn is kept for persistence
// and for tokens that only carry a lifetime.
type Token struct {
	AccessToken  string    `json:"access_token"            mapstructure:"access_token"  yaml:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty" mapstructure:"refresh_token" yaml:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"    mapstructure:"token_type"    yaml:"token_type,omitempty"`
	ExpiresIn    int64     `json:"expires_in,omitempty"    mapstructure:"expires_in"    yaml:"expires_in,omitempty"`
	ExpiresAt    time.Time `json:"-"                       mapstructure:"-"             yaml:"-"`
	Scope        string    `json:"scope,omitempty"         mapstructure:"scope"         yaml:"scope,omitempty"`
}

type tokenJSON struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// MarshalJSON writes expires_at as unix seconds.
func (t Token) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.toJSON())
}

// UnmarshalJSON reads expires_at as unix seconds.
func (t *Token) UnmarshalJSON(data []byte) error {
	var raw tokenJSON

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return fmt.Errorf("failed to decode token: %w", err)
	}

	t.fromJSON(raw)

	return nil
}

func (t Token) toJSON() tokenJSON {
	raw := tokenJSON{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		ExpiresIn:    t.ExpiresIn,
		Scope:        t.Scope,
	}
	if !t.ExpiresAt.IsZero() {
		raw.ExpiresAt = t.ExpiresAt.Unix()
	}

	return raw
}

func (t *Token) fromJSON(raw tokenJSON) {
	t.AccessToken = raw.AccessToken
	t.RefreshToken = raw.RefreshToken
	t.TokenType = raw.TokenType
	t.ExpiresIn = raw.ExpiresIn
	t.Scope = raw.Scope
	t.ExpiresAt = time.Time{}

	if raw.ExpiresAt > 0 {
		t.ExpiresAt = time.Unix(raw.ExpiresAt, 0)
	}
}

// Normalize fills in whichever of ExpiresAt and ExpiresIn is missing,
// measured from now. A persisted token carrying both gets ExpiresIn
// recomputed from ExpiresAt.
func (t *Token) Normalize(now time.Time) {
	if t.TokenType == "" {
		t.TokenType = constants.TokenTypeBearer
	}

	switch {
	case !t.ExpiresAt.IsZero():
		t.ExpiresIn = int64(t.ExpiresAt.Sub(now) / time.Second)
	case t.ExpiresIn > 0:
		t.ExpiresAt = now.Add(time.Duration(t.ExpiresIn) * time.Second)
	}
}

// Valid reports whether the access token can be used. A token without an
// expiry is treated as valid.
func (t *Token) Valid() bool {
	if t == nil || t.AccessToken == "" {
		return false
	}

	if t.ExpiresAt.IsZero() {
		return true
	}

	return time.Now().Add(constants.TokenExpirationBuffer).Before(t.ExpiresAt)
}

// Scopes splits the space separated scope string.
func (t *Token) Scopes() []string {
	if t == nil {
		return nil
	}

	return strings.Fields(t.Scope)
}

// HasScope reports whether scope was granted.
func (t *Token) HasScope(scope string) bool {
	return slices.Contains(t.Scopes(), scope)
}

// Clone returns a copy that can be handed to other goroutines.
func (t *Token) Clone() *Token {
	if t == nil {
		return nil
	}

	out := *t

	return &out
}

// ToMap returns the token in its persisted form, with expires_at as unix seconds.
func (t *Token) ToMap() map[string]any {
	raw := t.toJSON()
	out := map[string]any{
		"access_token": raw.AccessToken,
	}

	if raw.RefreshToken != "" {
		out["refresh_token"] = raw.RefreshToken
	}

	if raw.TokenType != "" {
		out["token_type"] = raw.TokenType
	}

	if raw.ExpiresIn != 0 {
		out["expires_in"] = raw.ExpiresIn
	}

	if raw.ExpiresAt != 0 {
		out["expires_at"] = raw.ExpiresAt
	}

	if raw.Scope != "" {
		out["scope"] = raw.Scope
	}

	return out
}

// TokenFromMap decodes a persisted token map. Numeric fields may be strings,
// as they are when read back from YAML or environment sources.
func TokenFromMap(values map[string]any) (*Token, error) {
	var raw tokenJSON

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		TagName:          "json",
		Result:           &raw,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create token decoder: %w", err)
	}

	err = decoder.Decode(values)
	if err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}

	token := &Token{}
	token.fromJSON(raw)

	return token, nil
}

// TokenUpdater receives every newly minted or refreshed token.
type TokenUpdater interface {
	UpdateToken(ctx context.Context, token *Token) error
}

// TokenUpdaterFunc adapts a function to TokenUpdater.
type TokenUpdaterFunc func(ctx context.Context, token *Token) error

// UpdateToken calls f.
func (f TokenUpdaterFunc) UpdateToken(ctx context.Context, token *Token) error {
	return f(ctx, token)
}

// AuthorizationPrompt drives the interactive part of the Authorization Code
// grant. It is given the authorization URL and returns the full redirect URL
// the user landed on.
type AuthorizationPrompt interface {
	Authorize(ctx context.Context, authorizationURL string) (string, error)
}

// AuthorizationPromptFunc adapts a function to AuthorizationPrompt.
type AuthorizationPromptFunc func(ctx context.Context, authorizationURL string) (string, error)

// Authorize calls f.
func (f AuthorizationPromptFunc) Authorize(ctx context.Context, authorizationURL string) (string, error) {
	return f(ctx, authorizationURL)
}
