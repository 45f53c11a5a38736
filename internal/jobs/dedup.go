package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Deduper remembers which alerts were already sent.
type Deduper interface {
	// FirstSeen records key and reports whether it was new.
	FirstSeen(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RedisDeduper shares alert state between instances.
type RedisDeduper struct {
	Client *redis.Client
	Prefix string
}

func (d *RedisDeduper) FirstSeen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return d.Client.SetNX(ctx, d.Prefix+key, 1, ttl).Result()
}

// MemoryDeduper is used when Redis is unavailable. Entries expire lazily.
type MemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{seen: make(map[string]time.Time), now: time.Now}
}

func (d *MemoryDeduper) FirstSeen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for k, exp := range d.seen {
		if now.After(exp) {
			delete(d.seen, k)
		}
	}
	if _, ok := d.seen[key]; ok {
		return false, nil
	}
	d.seen[key] = now.Add(ttl)
	return true, nil
}
