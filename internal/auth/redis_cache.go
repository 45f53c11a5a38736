package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"seller-portal/internal/config"
	"seller-portal/internal/logger"
)

// InitializeRedis connects to Redis and checks the connection with a ping.
func InitializeRedis(cfg config.RedisConfig, log *logger.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: 10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Error("REDIS", fmt.Sprintf("Failed to connect to Redis at %s: %v", cfg.Addr, err))
		client.Close()
		return nil, err
	}

	log.Info("REDIS", fmt.Sprintf("Connected to Redis at %s (DB: %d)", cfg.Addr, cfg.DB))
	return client, nil
}

// NewVerifier builds the verifier selected by cfg.Mode and wraps it with
// the Redis cache when a client is given.
func NewVerifier(ctx context.Context, cfg config.AuthConfig, client *redis.Client, log *logger.Logger) (Verifier, error) {
	var v Verifier
	switch cfg.Mode {
	case "hmac":
		hv, err := NewHMACVerifier(cfg.JWTSecret)
		if err != nil {
			return nil, err
		}
		log.Warn("AUTH", "Using HMAC token verification, not for production")
		v = hv
	case "oidc", "":
		if cfg.OIDCIssuer == "" {
			return nil, fmt.Errorf("OIDC_ISSUER is not set")
		}
		ov, err := NewOIDCVerifier(ctx, cfg.OIDCIssuer, cfg.OIDCClientID)
		if err != nil {
			return nil, err
		}
		log.Info("AUTH", fmt.Sprintf("OIDC verifier ready for issuer %s", cfg.OIDCIssuer))
		v = ov
	default:
		return nil, fmt.Errorf("unknown AUTH_MODE %q", cfg.Mode)
	}

	if client != nil && cfg.CacheTTL > 0 {
		v = NewCachingVerifier(v, client, cfg.CacheTTL, log)
	}
	return v, nil
}
