// Package limits enforces per-caller daily generation quotas.
//
// Quotas are counted per calendar day (UTC) under a caller key — an IP
// address for anonymous callers or a user ID for authenticated ones. Two
// backends exist: an in-process map for single-instance deployments and
// Redis for multi-instance ones. Which one runs is a deploy-time choice
// (REDIS_URL set or not), so both sit behind one small interface.
package limits

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store counts daily generations per caller key.
type Store interface {
	// Consume records one generation for key and reports whether it fit
	// within limit, plus how many remain afterwards.
	Consume(ctx context.Context, key string, limit int) (allowed bool, remaining int, err error)

	// Peek reports the remaining quota without consuming any.
	Peek(ctx context.Context, key string, limit int) (remaining int, err error)
}

// NewStore selects a backend: Redis when redisURL is set, in-memory
// otherwise.
func NewStore(redisURL string) (Store, error) {
	if redisURL == "" {
		log.Println("📦 Daily limits: in-memory store")
		return NewMemoryStore(), nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Println("📦 Daily limits: Redis store")
	return &RedisStore{client: client}, nil
}

// dayKey namespaces a caller key by UTC date so counts reset at midnight
// without any explicit reset step.
func dayKey(key string, now time.Time) string {
	return fmt.Sprintf("limit:%s:%s", now.UTC().Format("2006-01-02"), key)
}

// --- In-memory backend ---

// MemoryStore counts quotas in a process-local map. Stale day buckets are
// swept by a background goroutine so the map doesn't grow forever.
type MemoryStore struct {
	mu     sync.Mutex
	counts map[string]int

	// Overridable in tests.
	now func() time.Time
}

// NewMemoryStore creates an in-memory store and starts its sweeper.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		counts: make(map[string]int),
		now:    time.Now,
	}
	go s.sweep()
	return s
}

func (s *MemoryStore) Consume(_ context.Context, key string, limit int) (bool, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := dayKey(key, s.now())
	if s.counts[k] >= limit {
		return false, 0, nil
	}
	s.counts[k]++
	return true, limit - s.counts[k], nil
}

func (s *MemoryStore) Peek(_ context.Context, key string, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	remaining := limit - s.counts[dayKey(key, s.now())]
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// sweep drops buckets from previous days.
func (s *MemoryStore) sweep() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		today := s.now().UTC().Format("2006-01-02")
		s.mu.Lock()
		for k := range s.counts {
			// Keys look like "limit:2026-08-31:<caller>".
			if len(k) < 16 || k[6:16] != today {
				delete(s.counts, k)
			}
		}
		s.mu.Unlock()
	}
}

// --- Redis backend ---

// RedisStore counts quotas in Redis so multiple API instances share them.
// Counters expire shortly after the UTC day ends.
type RedisStore struct {
	client *redis.Client
}

func (s *RedisStore) Consume(ctx context.Context, key string, limit int) (bool, int, error) {
	k := dayKey(key, time.Now())

	count, err := s.client.Incr(ctx, k).Result()
	if err != nil {
		return false, 0, fmt.Errorf("failed to increment quota: %w", err)
	}
	if count == 1 {
		// First hit of the day sets the expiry. 25h gives slack past midnight.
		if err := s.client.Expire(ctx, k, 25*time.Hour).Err(); err != nil {
			log.Printf("⚠️  Failed to set quota expiry for %s: %v", k, err)
		}
	}

	if int(count) > limit {
		// Over the line — undo so repeated denied attempts don't inflate
		// the counter.
		s.client.Decr(ctx, k)
		return false, 0, nil
	}
	return true, limit - int(count), nil
}

func (s *RedisStore) Peek(ctx context.Context, key string, limit int) (int, error) {
	count, err := s.client.Get(ctx, dayKey(key, time.Now())).Int()
	if err != nil && err != redis.Nil {
		return 0, fmt.Errorf("failed to read quota: %w", err)
	}

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}
