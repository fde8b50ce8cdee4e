package throttle

import (
	"context"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Throttle rate-limits low-priority maintenance enqueues per key: the
// first caller inside a window wins, later callers are suppressed until
// the window lapses.
type Throttle interface {
	Allow(ctx context.Context, key string, minInterval time.Duration) (bool, error)
}

type localThrottle struct {
	mu   sync.Mutex
	last map[string]time.Time
}

func NewLocal() Throttle {
	return &localThrottle{last: make(map[string]time.Time)}
}

func (t *localThrottle) Allow(_ context.Context, key string, minInterval time.Duration) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	if last, ok := t.last[key]; ok && now.Sub(last) < minInterval {
		return false, nil
	}
	t.last[key] = now
	return true, nil
}

type redisThrottle struct {
	rdb *goredis.Client
}

// NewRedis shares the suppression window across service instances by
// abusing SET NX EX: the key exists for exactly one window.
func NewRedis(rdb *goredis.Client) Throttle {
	return &redisThrottle{rdb: rdb}
}

func (t *redisThrottle) Allow(ctx context.Context, key string, minInterval time.Duration) (bool, error) {
	return t.rdb.SetNX(ctx, "throttle:"+key, 1, minInterval).Result()
}
