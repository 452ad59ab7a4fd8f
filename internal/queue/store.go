package queue

import (
	"context"
	"time"
)

// Store is the persistence collaborator the Queue is written against.
// Every method must be atomic on its own; the Queue never relies on
// multi-key transactions. LPop and SMove are the serialization points
// that keep a job in flight on at most one worker.
type Store interface {
	LPush(ctx context.Context, key string, values ...string) error
	RPush(ctx context.Context, key string, values ...string) error
	// LPop returns ok=false when the list is empty.
	LPop(ctx context.Context, key string) (value string, ok bool, err error)
	LLen(ctx context.Context, key string) (int64, error)
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LRem(ctx context.Context, key string, value string) (int64, error)

	HSet(ctx context.Context, key string, fields map[string]string) error
	// HGet returns ok=false when the key or field does not exist.
	HGet(ctx context.Context, key, field string) (value string, ok bool, err error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HIncrBy(ctx context.Context, key, field string, incr int64) (int64, error)

	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) (int64, error)
	// SMove reports whether member was present in src and is now in dst.
	SMove(ctx context.Context, src, dst, member string) (bool, error)
	SMembers(ctx context.Context, key string) ([]string, error)
	SIsMember(ctx context.Context, key, member string) (bool, error)
	SCard(ctx context.Context, key string) (int64, error)

	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Ping(ctx context.Context) error
}
