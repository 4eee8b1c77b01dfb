// Package redis implements store.Store on Redis. Runs, checkpoints, users
// and code attempts are Redis Hashes; Sorted Sets index them by time, and
// Hash fields written with HSETNX enforce uniqueness of run keys, emails
// and single-use codes.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	s := redisstore.New(client)
//	if err := s.Ping(ctx); err != nil { ... }
package redis

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	posauth "github.com/vndocker/pos-AI-community"
	"github.com/vndocker/pos-AI-community/otp"
	"github.com/vndocker/pos-AI-community/workflow"
)

// Compile-time interface checks.
var (
	_ workflow.Store = (*Store)(nil)
	_ otp.Store      = (*Store)(nil)
	_ posauth.Storer = (*Store)(nil)
)

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithKeyPrefix namespaces every key. The default is "posauth:".
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) { s.keys = keys(prefix) }
}

// Store implements the composite store.Store interface backed by Redis.
type Store struct {
	client redis.Cmdable
	keys   keys
	logger *slog.Logger
}

// New creates a new Redis-backed store. The caller owns the Redis client
// lifecycle.
func New(client redis.Cmdable, opts ...Option) *Store {
	s := &Store{client: client, keys: defaultPrefix, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Client returns the underlying Redis client.
func (s *Store) Client() redis.Cmdable { return s.client }

// Migrate is a no-op for Redis (schemaless).
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close is a no-op; the caller owns the Redis client lifecycle.
func (s *Store) Close() error { return nil }
