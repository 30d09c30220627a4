// Package auth holds OAuth2 token handling for farmOS sessions.
package auth

import (
	"sync"

	"github.com/fivetwenty-io/farmos/pkg/farmos"
)

// Token is the OAuth2 token type shared with the public API.
type Token = farmos.Token

// TokenStore holds the current token. It is safe for concurrent use.
type TokenStore struct {
	mu    sync.RWMutex
	token *Token
}

// NewTokenStore creates an empty store.
func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

// Get returns a copy of the current token, or nil.
func (s *TokenStore) Get() *Token {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.token.Clone()
}

// Set replaces the current token with a copy of token.
func (s *TokenStore) Set(token *Token) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token.Clone()
}

// Clear removes the current token.
func (s *TokenStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = nil
}
