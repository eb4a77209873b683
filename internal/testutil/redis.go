//go:build integration

package testutil

import (
	"context"
	"testing"

	"github.com/go-redis/redis/v8"
)

// FlushDB flushes a specific Redis database.
func FlushDB(t *testing.T, addr string, db int) {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	defer client.Close()

	if err := client.FlushDB(context.Background()).Err(); err != nil {
		t.Fatalf("flushing DB %d: %v", db, err)
	}
}

// KeyCount returns the number of keys under prefix in a Redis database.
func KeyCount(t *testing.T, addr string, db int, prefix string) int {
	t.Helper()

	return len(Keys(t, addr, db, prefix))
}

// Keys returns all keys under prefix in a Redis database (for debugging).
func Keys(t *testing.T, addr string, db int, prefix string) []string {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	defer client.Close()

	keys, err := client.Keys(context.Background(), prefix+"*").Result()
	if err != nil {
		t.Fatalf("listing keys in DB %d: %v", db, err)
	}
	return keys
}
