// Package redis provides a token-bucket limiter shared by every processor
// instance, so outbound calls to a marketplace stay under its rate limit no
// matter how many workers run.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	r "github.com/redis/go-redis/v9"

	"github.com/cornjacket/marketplace-sync/internal/shared/domain/marketplace"
)

// tokenBucket refills at rate tokens/s up to burst and takes one token.
// It returns 0 when a token was taken, otherwise the milliseconds until one
// is available. Server time is used so instances with skewed clocks agree.
var tokenBucket = r.NewScript(`
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local t = redis.call("TIME")
local now = tonumber(t[1]) * 1000 + math.floor(tonumber(t[2]) / 1000)

local state = redis.call("HMGET", key, "tokens", "ts")
local tokens = tonumber(state[1])
local ts = tonumber(state[2])
if tokens == nil then
  tokens = burst
  ts = now
end

tokens = math.min(burst, tokens + (now - ts) * rate / 1000)
local wait = 0
if tokens >= 1 then
  tokens = tokens - 1
else
  wait = math.ceil((1 - tokens) * 1000 / rate)
end

redis.call("HSET", key, "tokens", tokens, "ts", now)
redis.call("PEXPIRE", key, math.ceil(burst * 1000 / rate) + 1000)
return wait
`)

// Limiter throttles outbound calls per marketplace using Redis.
type Limiter struct {
	rdb    *r.Client
	rate   float64
	burst  int
	prefix string
	logger *slog.Logger
}

// NewLimiter creates a limiter allowing rate calls per second per provider
// with the given burst.
func NewLimiter(rdb *r.Client, rate float64, burst int, logger *slog.Logger) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		rdb:    rdb,
		rate:   rate,
		burst:  burst,
		prefix: "marketplace:ratelimit:",
		logger: logger.With("component", "redis-limiter"),
	}
}

// Wait blocks until provider has a token or ctx is done.
func (l *Limiter) Wait(ctx context.Context, provider marketplace.Provider) error {
	if l.rate <= 0 {
		return nil
	}
	key := l.prefix + provider.String()
	for {
		waitMs, err := tokenBucket.Run(ctx, l.rdb, []string{key}, l.rate, l.burst).Int64()
		if err != nil {
			return fmt.Errorf("rate limiter unavailable: %w", err)
		}
		if waitMs <= 0 {
			return nil
		}

		l.logger.Debug("throttling outbound call", "provider", provider, "wait_ms", waitMs)
		timer := time.NewTimer(time.Duration(waitMs) * time.Millisecond)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, addr, password string) (*r.Client, error) {
	rdb := r.NewClient(&r.Options{Addr: addr, Password: password})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", addr, err)
	}
	return rdb, nil
}
