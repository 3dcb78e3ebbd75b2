// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "votegate:ratelimit:"

// Redis keeps counters in Redis so every server instance shares them.
// Each identity is one key whose TTL is the remaining window.
type Redis struct {
	client *redis.Client
	window time.Duration
	max    int
	now    func() time.Time
}

// NewRedis creates a Redis-backed limiter
func NewRedis(client *redis.Client, window time.Duration, max int) *Redis {
	if window <= 0 {
		window = DefaultWindow
	}
	if max <= 0 {
		max = DefaultMax
	}
	return &Redis{client: client, window: window, max: max, now: time.Now}
}

// OpenRedis parses url and pings the server
func OpenRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func (r *Redis) Check(ctx context.Context, identity string) (Result, error) {
	key := redisKeyPrefix + identity

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		ttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("rate limit check failed: %w", err)
	}

	now := r.now()
	remaining := ttl.Val()
	// A fresh key has no TTL yet: start the window
	if remaining <= 0 {
		if err := r.client.PExpire(ctx, key, r.window).Err(); err != nil {
			return Result{}, fmt.Errorf("rate limit expire failed: %w", err)
		}
		remaining = r.window
	}

	return r.result(int(incr.Val()), now.Add(remaining)), nil
}

func (r *Redis) Status(ctx context.Context, identity string) (Result, error) {
	key := redisKeyPrefix + identity
	now := r.now()

	count, err := r.client.Get(ctx, key).Int()
	if errors.Is(err, redis.Nil) {
		return Result{Allowed: true, Remaining: r.max, ResetAt: now.Add(r.window)}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("rate limit status failed: %w", err)
	}

	ttl, err := r.client.PTTL(ctx, key).Result()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit status failed: %w", err)
	}
	if ttl <= 0 {
		ttl = r.window
	}

	return r.result(count, now.Add(ttl)), nil
}

func (r *Redis) result(count int, resetAt time.Time) Result {
	return Result{
		Allowed:   count <= r.max,
		Count:     count,
		Remaining: max(r.max-count, 0),
		ResetAt:   resetAt,
	}
}

var _ Limiter = (*Redis)(nil)
