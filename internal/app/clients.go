package app

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/studyloop/reviewquiz-backend/internal/lms"
	"github.com/studyloop/reviewquiz-backend/internal/locks"
	"github.com/studyloop/reviewquiz-backend/internal/logger"
	"github.com/studyloop/reviewquiz-backend/internal/throttle"
)

type Clients struct {
	LMS      lms.Client
	Redis    *goredis.Client
	Locker   locks.Locker
	Throttle throttle.Throttle
}

// wireClients builds the outward-facing clients. Redis is optional: without
// REDIS_ADDR the locker and throttle fall back to in-process versions,
// which is fine for a single-instance deployment.
func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	lmsClient, err := lms.NewRESTClient(log)
	if err != nil {
		return Clients{}, err
	}

	clients := Clients{LMS: lmsClient}
	if cfg.RedisAddr != "" {
		rdb := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			log.Warn("Redis unreachable, falling back to local locks", "addr", cfg.RedisAddr, "error", err)
		} else {
			clients.Redis = rdb
			clients.Locker = locks.NewRedis(log, rdb, cfg.LockTTL)
			clients.Throttle = throttle.NewRedis(rdb)
		}
	}
	if clients.Locker == nil {
		clients.Locker = locks.NewLocal()
		clients.Throttle = throttle.NewLocal()
	}
	return clients, nil
}
