package tokenstore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/fivetwenty-io/farmos/pkg/farmos"
	"github.com/fivetwenty-io/farmos/pkg/tokenstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "farm.example.com.farmer", tokenstore.Key("https://farm.example.com/", "farmer"))
	assert.Equal(t, "localhost_8080", tokenstore.Key("http://localhost:8080", ""))
	assert.Equal(t, "farm.example.com_sub.me_example.com", tokenstore.Key("farm.example.com/sub", "me@example.com"))
}

func TestNew(t *testing.T) {
	t.Parallel()

	store, err := tokenstore.New(context.Background(), nil)
	require.NoError(t, err)
	assert.IsType(t, &tokenstore.Memory{}, store)

	_, err = tokenstore.New(context.Background(), &tokenstore.Config{Type: tokenstore.TypeNATS})
	require.ErrorIs(t, err, tokenstore.ErrNATSConfigRequired)

	_, err = tokenstore.New(context.Background(), &tokenstore.Config{Type: "etcd"})
	require.ErrorIs(t, err, tokenstore.ErrUnsupportedStoreType)
}

// exerciseStore runs the Store contract against a backend.
func exerciseStore(t *testing.T, store tokenstore.Store, key string) {
	t.Helper()

	ctx := context.Background()

	_, err := store.Load(ctx, key)
	require.ErrorIs(t, err, tokenstore.ErrTokenNotFound)

	expiresAt := time.Unix(time.Now().Add(time.Hour).Unix(), 0)

	err = tokenstore.Updater(store, key).UpdateToken(ctx, &farmos.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    expiresAt,
		Scope:        "farm_manager",
	})
	require.NoError(t, err)

	token, err := store.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "access", token.AccessToken)
	assert.Equal(t, "refresh", token.RefreshToken)
	assert.True(t, expiresAt.Equal(token.ExpiresAt))
	assert.True(t, token.Valid())

	require.ErrorIs(t, store.Save(ctx, key, &farmos.Token{}), tokenstore.ErrTokenWithoutAccessKey)

	require.NoError(t, store.Delete(ctx, key))

	_, err = store.Load(ctx, key)
	require.ErrorIs(t, err, tokenstore.ErrTokenNotFound)
}

func TestMemory(t *testing.T) {
	t.Parallel()

	exerciseStore(t, tokenstore.NewMemory(), "farm.example.com.farmer")
}

func TestRedis(t *testing.T) {
	t.Parallel()

	if os.Getenv("REDIS_ADDR") == "" {
		t.Skip("REDIS_ADDR not set")
	}

	store, err := tokenstore.NewRedisFromEnv(context.Background())
	require.NoError(t, err)

	defer func() { _ = store.Close() }()

	exerciseStore(t, store, tokenstore.Key("farm.example.com", t.Name()))
}

func TestNATS(t *testing.T) {
	t.Parallel()

	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set")
	}

	store, err := tokenstore.NewNATS(context.Background(), &tokenstore.NATSConfig{URL: url, Bucket: "farmos_tokens_test"})
	require.NoError(t, err)

	defer func() { _ = store.Close() }()

	exerciseStore(t, store, tokenstore.Key("farm.example.com", "nats"))
}

//nolint:paralleltest // uses t.Setenv
func TestConfigFromEnv(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis.example.com:6380")
	t.Setenv("FARMOS_TOKENS_BUCKET", "tokens")
	t.Setenv("NATS_URL", "")
	t.Setenv("FARMOS_TOKENS_KEY_PREFIX", "")

	config, err := tokenstore.ConfigFromEnv(tokenstore.TypeRedis)
	require.NoError(t, err)
	require.NotNil(t, config.Redis)
	assert.Equal(t, "redis.example.com:6380", config.Redis.Addr)
	assert.Equal(t, "farmos:tokens:", config.Redis.KeyPrefix)

	config, err = tokenstore.ConfigFromEnv(tokenstore.TypeNATS)
	require.NoError(t, err)
	require.NotNil(t, config.NATS)
	assert.Equal(t, "tokens", config.NATS.Bucket)
	assert.Equal(t, "nats://127.0.0.1:4222", config.NATS.URL)

	config, err = tokenstore.ConfigFromEnv(tokenstore.TypeMemory)
	require.NoError(t, err)
	assert.Nil(t, config.NATS)
	assert.Nil(t, config.Redis)

	_, err = tokenstore.ConfigFromEnv("etcd")
	require.ErrorIs(t, err, tokenstore.ErrUnsupportedStoreType)
}
