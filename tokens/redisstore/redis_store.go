package redisstore

import (
	"context"
	"errors"
	"fmt"

	clienterrors "github.com/jrsteele09/go-officehours-client/internal/errors"
	"github.com/jrsteele09/go-officehours-client/tokens"
	"github.com/redis/go-redis/v9"
)

var _ tokens.Store = (*RedisStore)(nil)

// RedisStore keeps session keys in Redis under a per-installation prefix.
// Keys carry no TTL: the refresh token's lifetime is decided by the server.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// New creates a Redis-backed token store. Keys are stored as prefix+key.
func New(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
	}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", clienterrors.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get: %w", err)
	}
	return v, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, s.prefixed(keys)...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Apply runs the batch in a MULTI/EXEC transaction
func (s *RedisStore) Apply(ctx context.Context, b tokens.Batch) error {
	if b.Empty() {
		return nil
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range b.Set {
			pipe.Set(ctx, s.prefix+k, v, 0)
		}
		if len(b.Delete) > 0 {
			pipe.Del(ctx, s.prefixed(b.Delete)...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis apply: %w", err)
	}
	return nil
}

func (s *RedisStore) prefixed(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.prefix+k)
	}
	return out
}
