package auth_test

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fivetwenty-io/farmos/internal/auth"
	"github.com/fivetwenty-io/farmos/pkg/farmos"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// farmOS persists tokens as the raw /oauth/token answer plus expires_at.
func persistedToken(t *testing.T, values map[string]any) *auth.Token {
	t.Helper()

	token, err := farmos.TokenFromMap(values)
	require.NoError(t, err)

	return token
}

func TestToken_ValidAfterLoading(t *testing.T) {
	t.Parallel()

	now := time.Now()

	tests := []struct {
		name   string
		values map[string]any
		valid  bool
	}{
		{
			name:   "fresh password grant",
			values: map[string]any{"access_token": "a", "expires_in": 3600, "token_type": "Bearer"},
			valid:  true,
		},
		{
			name:   "persisted expiry in the future",
			values: map[string]any{"access_token": "a", "expires_at": now.Add(time.Hour).Unix()},
			valid:  true,
		},
		{
			name:   "persisted expiry read back from yaml as a string",
			values: map[string]any{"access_token": "a", "expires_at": fmt.Sprint(now.Add(time.Hour).Unix())},
			valid:  true,
		},
		{
			name:   "persisted expiry in the past",
			values: map[string]any{"access_token": "a", "refresh_token": "r", "expires_at": now.Add(-time.Minute).Unix()},
			valid:  false,
		},
		{
			name:   "expiry inside the refresh margin",
			values: map[string]any{"access_token": "a", "expires_at": now.Add(10 * time.Second).Unix()},
			valid:  false,
		},
		{
			name:   "refresh token only",
			values: map[string]any{"refresh_token": "r", "expires_in": 3600},
			valid:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			token := persistedToken(t, tt.values)
			token.Normalize(now)

			assert.Equal(t, tt.valid, token.Valid())
		})
	}

	var missing *auth.Token

	assert.False(t, missing.Valid())
}

func TestToken_Normalize(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)

	t.Run("issued token gets an absolute expiry", func(t *testing.T) {
		t.Parallel()

		token := &auth.Token{AccessToken: "a", ExpiresIn: 3600}
		token.Normalize(now)

		assert.Equal(t, now.Add(time.Hour), token.ExpiresAt)
		assert.Equal(t, "bearer", token.TokenType)
	})

	t.Run("loaded token counts down from expires_at", func(t *testing.T) {
		t.Parallel()

		token := persistedToken(t, map[string]any{
			"access_token": "a",
			"expires_in":   3600,
			"expires_at":   now.Add(10 * time.Minute).Unix(),
			"token_type":   "Bearer",
		})
		token.Normalize(now)

		assert.Equal(t, int64(600), token.ExpiresIn)
		assert.Equal(t, "Bearer", token.TokenType)
	})
}

func TestToken_Scopes(t *testing.T) {
	t.Parallel()

	manager := &auth.Token{AccessToken: "a", Scope: "farm_manager user_access"}
	assert.Equal(t, []string{"farm_manager", "user_access"}, manager.Scopes())
	assert.True(t, manager.HasScope("user_access"))
	assert.False(t, manager.HasScope("farm_worker"))

	viewer := &auth.Token{AccessToken: "a", Scope: "farm_viewer"}
	assert.False(t, viewer.HasScope("user_access"))
}

func TestToken_ProfileRoundTrip(t *testing.T) {
	t.Parallel()

	token := &auth.Token{
		AccessToken:  "a",
		RefreshToken: "r",
		TokenType:    "Bearer",
		ExpiresAt:    time.Unix(1_700_000_000, 0),
		Scope:        "farm_manager user_access",
	}

	data, err := json.Marshal(token)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"expires_at":1700000000`)

	loaded := persistedToken(t, token.ToMap())
	assert.True(t, token.ExpiresAt.Equal(loaded.ExpiresAt))
	assert.Equal(t, "r", loaded.RefreshToken)
	assert.True(t, loaded.HasScope("user_access"))
}

func TestTokenStore(t *testing.T) {
	t.Parallel()

	t.Run("starts empty", func(t *testing.T) {
		t.Parallel()

		assert.Nil(t, auth.NewTokenStore().Get())
	})

	t.Run("holds copies", func(t *testing.T) {
		t.Parallel()

		store := auth.NewTokenStore()
		issued := &auth.Token{AccessToken: "access-1", RefreshToken: "refresh-1"}

		store.Set(issued)
		issued.AccessToken = "changed"

		held := store.Get()
		require.NotNil(t, held)
		assert.Equal(t, "access-1", held.AccessToken)

		held.RefreshToken = "changed"
		assert.Equal(t, "refresh-1", store.Get().RefreshToken)
	})

	t.Run("clear forgets the token", func(t *testing.T) {
		t.Parallel()

		store := auth.NewTokenStore()
		store.Set(&auth.Token{AccessToken: "access-1"})
		store.Clear()

		assert.Nil(t, store.Get())
	})

	t.Run("refresh and requests race", func(t *testing.T) {
		t.Parallel()

		store := auth.NewTokenStore()
		store.Set(&auth.Token{AccessToken: "access-0"})

		var wg sync.WaitGroup

		for i := range 4 {
			wg.Add(1)

			go func() {
				defer wg.Done()

				for range 50 {
					if i%2 == 0 {
						store.Set(&auth.Token{AccessToken: fmt.Sprintf("access-%d", i)})
					} else {
						assert.NotNil(t, store.Get())
					}
				}
			}()
		}

		wg.Wait()

		assert.Contains(t, []string{"access-0", "access-2"}, store.Get().AccessToken)
	})
}
