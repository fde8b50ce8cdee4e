package locks

import (
	"context"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/studyloop/reviewquiz-backend/internal/logger"
)

// redisLocker holds keys via SET NX PX with an owner token so a release
// after TTL expiry cannot drop someone else's lock. The TTL is a crash
// backstop, not a lease to renew: reconciliations finish in seconds.
type redisLocker struct {
	log *logger.Logger
	rdb *goredis.Client
	ttl time.Duration
}

const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`

func NewRedis(log *logger.Logger, rdb *goredis.Client, ttl time.Duration) Locker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &redisLocker{
		log: log.With("component", "RedisLocker"),
		rdb: rdb,
		ttl: ttl,
	}
}

func (l *redisLocker) TryAcquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, "lock:"+key, token, l.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrContended
	}
	release := func() {
		// Release happens on a fresh context: the caller's ctx may
		// already be canceled by the time the deferred release runs.
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.rdb.Eval(rctx, releaseScript, []string{"lock:" + key}, token).Err(); err != nil {
			l.log.Warn("Lock release failed", "key", key, "error", err)
		}
	}
	return release, nil
}
