// Package cooldown throttles repeat alerts. A Redis key is set the first
// time a findings set is alerted; while the key lives, the same set is not
// alerted again. Without a configured Redis address the store is disabled
// and every alert is allowed.
package cooldown

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"terminwatch/packages/domain"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "terminwatch:alert:"

type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis at addr. An empty addr returns a disabled store.
func New(ctx context.Context, addr, password string, db int, ttl time.Duration) (*Store, error) {
	if addr == "" {
		slog.Info("Alert cooldown disabled; no Redis address configured")
		return &Store{}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	slog.Info("Alert cooldown enabled", "addr", addr, "ttl", ttl.String())
	return &Store{client: client, ttl: ttl}, nil
}

func (s *Store) Close() {
	if s.client != nil {
		_ = s.client.Close()
	}
}

// Allow reports whether an alert for key may be sent now and, if so,
// starts its cooldown window. A Redis error allows the alert; losing a
// duplicate suppression beats losing a real alert.
func (s *Store) Allow(ctx context.Context, key string) bool {
	if s == nil || s.client == nil {
		return true
	}

	ok, err := s.client.SetNX(ctx, keyPrefix+key, 1, s.ttl).Result()
	if err != nil {
		slog.Error("Cooldown check failed; allowing alert", "error", err)
		return true
	}
	if !ok {
		slog.Info("Alert suppressed by cooldown", "key", key)
	}
	return ok
}

// FindingsKey derives a stable cooldown key from the set of pages that
// produced findings. Order and timestamps do not matter; the same pages
// alerting again within the window hash identically.
func FindingsKey(findings []domain.Finding) string {
	parts := make([]string, 0, len(findings))
	for _, f := range findings {
		parts = append(parts, f.Location+"|"+f.URL)
	}
	sort.Strings(parts)

	sum := sha256.Sum256([]byte(strings.Join(parts, "\n")))
	return hex.EncodeToString(sum[:])
}
