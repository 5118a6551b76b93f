// ClashOps - Deck Analysis Cache Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clashops

package store

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
)

// TestRedisStoreConformance runs against a real server when REDIS_ADDR is
// set, e.g. REDIS_ADDR=localhost:6379 go test ./internal/store/.
func TestRedisStoreConformance(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	runConformance(t, func(t *testing.T) Backend {
		s, err := OpenRedis(context.Background(), RedisConfig{
			Addr:      addr,
			KeyPrefix: "clashops-test-" + uuid.NewString()[:8] + ":",
		})
		if err != nil {
			t.Fatalf("OpenRedis: %v", err)
		}
		t.Cleanup(func() {
			ctx := context.Background()
			iter := s.rdb.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
			for iter.Next(ctx) {
				s.rdb.Del(ctx, iter.Val())
			}
			_ = s.Close()
		})
		return s
	})
}

func TestOpenRedisRequiresAddr(t *testing.T) {
	t.Parallel()

	if _, err := OpenRedis(context.Background(), RedisConfig{}); err == nil {
		t.Fatal("expected error for empty address")
	}
}
