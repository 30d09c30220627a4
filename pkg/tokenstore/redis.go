package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fivetwenty-io/farmos/pkg/farmos"
	"github.com/joeshaw/envdecode"
	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the Redis store. Defaults can be loaded via envdecode.
type RedisConfig struct {
	// Addr like "localhost:6379". ENV: REDIS_ADDR
	Addr string `env:"REDIS_ADDR,default=localhost:6379"`
	// KeyPrefix for all keys. ENV: FARMOS_TOKENS_KEY_PREFIX
	KeyPrefix string `env:"FARMOS_TOKENS_KEY_PREFIX,default=farmos:tokens:"`
	// TTL expires entries; zero keeps them.
	TTL time.Duration
}

// Redis stores tokens as JSON strings.
type Redis struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, config *RedisConfig) (*Redis, error) {
	addr := config.Addr
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})

	err := client.Ping(ctx).Err()
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return NewRedisWithClient(client, config.KeyPrefix, config.TTL), nil
}

// NewRedisFromEnv builds a store using envdecode to populate RedisConfig.
func NewRedisFromEnv(ctx context.Context) (*Redis, error) {
	var config RedisConfig

	err := envdecode.Decode(&config)
	if err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	return NewRedis(ctx, &config)
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, keyPrefix string, ttl time.Duration) *Redis {
	if keyPrefix == "" {
		keyPrefix = "farmos:tokens:"
	}

	return &Redis{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

// Load implements Store.
func (r *Redis) Load(ctx context.Context, key string) (*farmos.Token, error) {
	data, err := r.client.Get(ctx, r.keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrTokenNotFound, key)
	}

	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}

	return decode(data)
}

// Save implements Store.
func (r *Redis) Save(ctx context.Context, key string, token *farmos.Token) error {
	data, err := encode(token)
	if err != nil {
		return err
	}

	err = r.client.Set(ctx, r.keyPrefix+key, data, r.ttl).Err()
	if err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}

	return nil
}

// Delete implements Store.
func (r *Redis) Delete(ctx context.Context, key string) error {
	err := r.client.Del(ctx, r.keyPrefix+key).Err()
	if err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}

	return nil
}

// Close closes the Redis client.
func (r *Redis) Close() error {
	return r.client.Close() //nolint:wrapcheck // closing errors need no context
}
