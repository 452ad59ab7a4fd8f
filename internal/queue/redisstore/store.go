// Package redisstore implements queue.Store on Redis.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	q := queue.New(redisstore.New(client), &queue.Config{Name: "issues"})
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cuongbtq/issue-runner/internal/queue"
)

var _ queue.Store = (*Store)(nil)

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Store implements queue.Store backed by Redis. The caller owns the client lifecycle.
type Store struct {
	client redis.Cmdable
	logger *slog.Logger
}

// New creates a new Redis-backed store
func New(client redis.Cmdable, opts ...Option) *Store {
	s := &Store{client: client, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) LPush(ctx context.Context, key string, values ...string) error {
	if err := s.client.LPush(ctx, key, toArgs(values)...).Err(); err != nil {
		return fmt.Errorf("redisstore: lpush %s: %w", key, err)
	}
	return nil
}

func (s *Store) RPush(ctx context.Context, key string, values ...string) error {
	if err := s.client.RPush(ctx, key, toArgs(values)...).Err(); err != nil {
		return fmt.Errorf("redisstore: rpush %s: %w", key, err)
	}
	return nil
}

// LPop pops the list head; ok is false when the list is empty.
func (s *Store) LPop(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.LPop(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redisstore: lpop %s: %w", key, err)
	}
	return v, true, nil
}

func (s *Store) LLen(ctx context.Context, key string) (int64, error) {
	n, err := s.client.LLen(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redisstore: llen %s: %w", key, err)
	}
	return n, nil
}

func (s *Store) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	vals, err := s.client.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: lrange %s: %w", key, err)
	}
	return vals, nil
}

// LRem removes every occurrence of value.
func (s *Store) LRem(ctx context.Context, key string, value string) (int64, error) {
	n, err := s.client.LRem(ctx, key, 0, value).Result()
	if err != nil {
		return 0, fmt.Errorf("redisstore: lrem %s: %w", key, err)
	}
	return n, nil
}

func (s *Store) HSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	values := make(map[string]any, len(fields))
	for k, v := range fields {
		values[k] = v
	}
	if err := s.client.HSet(ctx, key, values).Err(); err != nil {
		return fmt.Errorf("redisstore: hset %s: %w", key, err)
	}
	return nil
}

func (s *Store) HGet(ctx context.Context, key, field string) (string, bool, error) {
	v, err := s.client.HGet(ctx, key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redisstore: hget %s: %w", key, err)
	}
	return v, true, nil
}

func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	vals, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: hgetall %s: %w", key, err)
	}
	return vals, nil
}

func (s *Store) HIncrBy(ctx context.Context, key, field string, incr int64) (int64, error) {
	n, err := s.client.HIncrBy(ctx, key, field, incr).Result()
	if err != nil {
		return 0, fmt.Errorf("redisstore: hincrby %s: %w", key, err)
	}
	return n, nil
}

func (s *Store) SAdd(ctx context.Context, key string, members ...string) error {
	if err := s.client.SAdd(ctx, key, toArgs(members)...).Err(); err != nil {
		return fmt.Errorf("redisstore: sadd %s: %w", key, err)
	}
	return nil
}

func (s *Store) SRem(ctx context.Context, key string, members ...string) (int64, error) {
	n, err := s.client.SRem(ctx, key, toArgs(members)...).Result()
	if err != nil {
		return 0, fmt.Errorf("redisstore: srem %s: %w", key, err)
	}
	return n, nil
}

// SMove is atomic on the server; false means member was not in src.
func (s *Store) SMove(ctx context.Context, src, dst, member string) (bool, error) {
	ok, err := s.client.SMove(ctx, src, dst, member).Result()
	if err != nil {
		return false, fmt.Errorf("redisstore: smove %s -> %s: %w", src, dst, err)
	}
	return ok, nil
}

func (s *Store) SMembers(ctx context.Context, key string) ([]string, error) {
	vals, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: smembers %s: %w", key, err)
	}
	return vals, nil
}

func (s *Store) SIsMember(ctx context.Context, key, member string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, key, member).Result()
	if err != nil {
		return false, fmt.Errorf("redisstore: sismember %s: %w", key, err)
	}
	return ok, nil
}

func (s *Store) SCard(ctx context.Context, key string) (int64, error) {
	n, err := s.client.SCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redisstore: scard %s: %w", key, err)
	}
	return n, nil
}

func (s *Store) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redisstore: del: %w", err)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redisstore: exists %s: %w", key, err)
	}
	return n > 0, nil
}

func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("redisstore: expire %s: %w", key, err)
	}
	return nil
}

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		s.logger.Error("Redis ping failed", slog.String("error", err.Error()))
		return err
	}
	return nil
}

func toArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}
