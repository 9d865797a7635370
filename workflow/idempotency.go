package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrJobInProgress = errors.New("job in progress")

const (
	jobStarted   = "STARTED"
	jobSucceeded = "SUCCEEDED"
)

// Deduper makes at-least-once job delivery safe.
type Deduper interface {
	// Begin claims key. skip is true when the job already succeeded.
	Begin(ctx context.Context, key string) (skip bool, err error)
	Succeeded(ctx context.Context, key string) error
	Failed(ctx context.Context, key string) error
}

// RedisDeduper keeps job keys in Redis for TTL. A STARTED key older than
// StartedTTL is treated as abandoned and may be claimed again.
type RedisDeduper struct {
	Client     *redis.Client
	TTL        time.Duration
	StartedTTL time.Duration
}

func NewRedisDeduper(client *redis.Client) *RedisDeduper {
	return &RedisDeduper{Client: client, TTL: 24 * time.Hour, StartedTTL: 5 * time.Minute}
}

func (d *RedisDeduper) Begin(ctx context.Context, key string) (bool, error) {
	ok, err := d.Client.SetNX(ctx, key, jobStarted, d.StartedTTL).Result()
	if err != nil {
		return false, err
	}
	if ok {
		return false, nil
	}
	state, err := d.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		// expired between the two calls
		return d.Begin(ctx, key)
	}
	if err != nil {
		return false, err
	}
	if state == jobSucceeded {
		return true, nil
	}
	return false, ErrJobInProgress
}

func (d *RedisDeduper) Succeeded(ctx context.Context, key string) error {
	return d.Client.Set(ctx, key, jobSucceeded, d.TTL).Err()
}

func (d *RedisDeduper) Failed(ctx context.Context, key string) error {
	return d.Client.Del(ctx, key).Err()
}
