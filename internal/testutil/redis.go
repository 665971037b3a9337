//go:build integration || component

package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
)

const defaultRedisAddr = "localhost:6379"

// RedisAddr returns the test Redis address.
// Override with MKT_TEST_REDIS_ADDR environment variable.
func RedisAddr() string {
	if addr := os.Getenv("MKT_TEST_REDIS_ADDR"); addr != "" {
		return addr
	}
	return defaultRedisAddr
}

// NewTestRedis connects to the test Redis instance and flushes the current DB.
func NewTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	rdb := redis.NewClient(&redis.Options{Addr: RedisAddr()})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		_ = rdb.Close()
		t.Fatalf("failed to ping test redis (is docker-compose running?): %v", err)
	}
	if err := rdb.FlushDB(context.Background()).Err(); err != nil {
		t.Fatalf("failed to flush test redis: %v", err)
	}

	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}
