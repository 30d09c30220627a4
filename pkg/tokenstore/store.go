// Package tokenstore keeps OAuth tokens outside the process so several
// clients, or several runs of one program, share a refreshed token.
//
// A Store is plugged into a client through Updater:
//
//	store, err := tokenstore.New(ctx, &tokenstore.Config{Type: tokenstore.TypeRedis})
//	key := tokenstore.Key(hostname, "farmer")
//	token, _ := store.Load(ctx, key)
//	client, err := farmclient.New(ctx, &farmos.Config{
//	  Hostname:     hostname,
//	  Token:        token,
//	  TokenUpdater: tokenstore.Updater(store, key),
//	})
package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/fivetwenty-io/farmos/pkg/farmos"
	"github.com/joeshaw/envdecode"
)

// Type is the backend of a Store.
type Type string

// Store backends.
const (
	TypeMemory Type = "memory"
	TypeNATS   Type = "nats"
	TypeRedis  Type = "redis"
)

// Static errors for err113 compliance.
var (
	ErrTokenNotFound         = errors.New("token not found")
	ErrNATSConfigRequired    = errors.New("NATS configuration required for NATS token store")
	ErrUnsupportedStoreType  = errors.New("unsupported token store type")
	ErrTokenWithoutAccessKey = errors.New("token has no access token")
)

// Store loads and saves tokens by key.
type Store interface {
	// Load returns ErrTokenNotFound when nothing is stored under key.
	Load(ctx context.Context, key string) (*farmos.Token, error)
	Save(ctx context.Context, key string, token *farmos.Token) error
	Delete(ctx context.Context, key string) error
}

// Config selects and configures a backend.
type Config struct {
	Type  Type
	NATS  *NATSConfig
	Redis *RedisConfig
}

// New creates a store from config. A nil config gives a memory store.
func New(ctx context.Context, config *Config) (Store, error) {
	if config == nil {
		return NewMemory(), nil
	}

	switch config.Type {
	case TypeMemory, "":
		return NewMemory(), nil

	case TypeNATS:
		if config.NATS == nil {
			return nil, ErrNATSConfigRequired
		}

		return NewNATS(ctx, config.NATS)

	case TypeRedis:
		redisConfig := config.Redis
		if redisConfig == nil {
			redisConfig = &RedisConfig{}
		}

		return NewRedis(ctx, redisConfig)

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedStoreType, config.Type)
	}
}

// ConfigFromEnv returns a Config for storeType with the backend settings
// read from the environment (NATS_URL, REDIS_ADDR and friends).
func ConfigFromEnv(storeType Type) (*Config, error) {
	config := &Config{Type: storeType}

	var target interface{}

	switch storeType {
	case TypeNATS:
		config.NATS = &NATSConfig{}
		target = config.NATS
	case TypeRedis:
		config.Redis = &RedisConfig{}
		target = config.Redis
	case TypeMemory, "":
		return config, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedStoreType, storeType)
	}

	err := envdecode.Decode(target)
	if err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	return config, nil
}

// Updater saves every new token of a client under key.
func Updater(store Store, key string) farmos.TokenUpdater {
	return farmos.TokenUpdaterFunc(func(ctx context.Context, token *farmos.Token) error {
		return store.Save(ctx, key, token)
	})
}

var invalidKeyChars = regexp.MustCompile(`[^-_=.a-zA-Z0-9]+`)

// Key builds a store key from a hostname and a user or profile name. The
// result is valid for both NATS KV and Redis.
func Key(hostname, name string) string {
	hostname = strings.TrimPrefix(strings.TrimPrefix(hostname, "https://"), "http://")
	hostname = strings.TrimRight(hostname, "/")

	key := hostname
	if name != "" {
		key += "." + name
	}

	return invalidKeyChars.ReplaceAllString(key, "_")
}

func encode(token *farmos.Token) ([]byte, error) {
	if token == nil || token.AccessToken == "" {
		return nil, ErrTokenWithoutAccessKey
	}

	data, err := json.Marshal(token)
	if err != nil {
		return nil, fmt.Errorf("failed to encode token: %w", err)
	}

	return data, nil
}

func decode(data []byte) (*farmos.Token, error) {
	token := &farmos.Token{}

	err := json.Unmarshal(data, token)
	if err != nil {
		return nil, fmt.Errorf("failed to decode stored token: %w", err)
	}

	return token, nil
}

// Memory keeps tokens in process memory.
type Memory struct {
	mutex  sync.RWMutex
	tokens map[string][]byte
}

// NewMemory creates an empty memory store.
func NewMemory() *Memory {
	return &Memory{tokens: make(map[string][]byte)}
}

// Load implements Store.
func (m *Memory) Load(_ context.Context, key string) (*farmos.Token, error) {
	m.mutex.RLock()
	data, ok := m.tokens[key]
	m.mutex.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTokenNotFound, key)
	}

	return decode(data)
}

// Save implements Store.
func (m *Memory) Save(_ context.Context, key string, token *farmos.Token) error {
	data, err := encode(token)
	if err != nil {
		return err
	}

	m.mutex.Lock()
	m.tokens[key] = data
	m.mutex.Unlock()

	return nil
}

// Delete implements Store.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mutex.Lock()
	delete(m.tokens, key)
	m.mutex.Unlock()

	return nil
}
