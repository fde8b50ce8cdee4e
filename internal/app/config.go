package app

import (
	"strings"
	"time"

	"github.com/studyloop/reviewquiz-backend/internal/logger"
	"github.com/studyloop/reviewquiz-backend/internal/platform/envutil"
)

type Config struct {
	ServiceName  string
	Environment  string
	Version      string
	JWTSecretKey string
	JWTIssuer    string
	AllowOrigins []string

	WorkerPoolSize int
	LockTTL        time.Duration
	RedisAddr      string
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		ServiceName:    envutil.Str("SERVICE_NAME", "reviewquiz-backend"),
		Environment:    envutil.Str("ENVIRONMENT", "development"),
		Version:        envutil.Str("SERVICE_VERSION", "dev"),
		JWTSecretKey:   envutil.Str("JWT_SECRET_KEY", "defaultsecret"),
		JWTIssuer:      envutil.Str("JWT_ISSUER", "lms"),
		WorkerPoolSize: envutil.Int("WORKER_POOL_SIZE", 2),
		LockTTL:        envutil.Duration("RECONCILE_LOCK_TTL", 2*time.Minute),
		RedisAddr:      envutil.Str("REDIS_ADDR", ""),
	}
	origins := envutil.Str("CORS_ALLOW_ORIGINS", "http://localhost:3000")
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowOrigins = append(cfg.AllowOrigins, o)
		}
	}
	if cfg.JWTSecretKey == "defaultsecret" {
		log.Warn("JWT_SECRET_KEY not set, using default secret")
	}
	return cfg
}
