package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fivetwenty-io/farmos/pkg/farmos"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// DefaultNATSBucket is the KV bucket used when none is configured.
const DefaultNATSBucket = "farmos_tokens"

// NATSConfig configures the NATS JetStream KV store.
type NATSConfig struct {
	// URL of the NATS server. ENV: NATS_URL
	URL string `env:"NATS_URL,default=nats://127.0.0.1:4222"`
	// Bucket is created when missing. ENV: FARMOS_TOKENS_BUCKET
	Bucket string `env:"FARMOS_TOKENS_BUCKET,default=farmos_tokens"`
	// TTL expires entries; zero keeps them.
	TTL time.Duration
	// Options are passed to nats.Connect.
	Options []nats.Option
}

// NATS stores tokens in a JetStream key-value bucket.
type NATS struct {
	conn *nats.Conn
	kv   jetstream.KeyValue
}

// NewNATS connects and creates or binds the bucket.
func NewNATS(ctx context.Context, config *NATSConfig) (*NATS, error) {
	url := config.URL
	if url == "" {
		url = nats.DefaultURL
	}

	bucket := config.Bucket
	if bucket == "" {
		bucket = DefaultNATSBucket
	}

	conn, err := nats.Connect(url, config.Options...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()

		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "farmOS OAuth tokens",
		TTL:         config.TTL,
		History:     1,
	})
	if err != nil {
		conn.Close()

		return nil, fmt.Errorf("failed to open KV bucket %s: %w", bucket, err)
	}

	return &NATS{conn: conn, kv: kv}, nil
}

// NewNATSWithKV wraps an existing bucket. The caller owns its connection.
func NewNATSWithKV(kv jetstream.KeyValue) *NATS {
	return &NATS{kv: kv}
}

// Load implements Store.
func (n *NATS) Load(ctx context.Context, key string) (*farmos.Token, error) {
	entry, err := n.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrTokenNotFound, key)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}

	return decode(entry.Value())
}

// Save implements Store.
func (n *NATS) Save(ctx context.Context, key string, token *farmos.Token) error {
	data, err := encode(token)
	if err != nil {
		return err
	}

	_, err = n.kv.Put(ctx, key, data)
	if err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}

	return nil
}

// Delete implements Store.
func (n *NATS) Delete(ctx context.Context, key string) error {
	err := n.kv.Delete(ctx, key)
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}

	return nil
}

// Close drains the connection opened by NewNATS.
func (n *NATS) Close() error {
	if n.conn == nil {
		return nil
	}

	err := n.conn.Drain()
	if err != nil {
		return fmt.Errorf("failed to drain NATS connection: %w", err)
	}

	return nil
}
