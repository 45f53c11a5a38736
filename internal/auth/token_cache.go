package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"seller-portal/internal/logger"
)

const (
	// IdentityKeyPrefix namespaces cached verification results in Redis.
	IdentityKeyPrefix = "auth:identity:"
	// TokenExpiryBuffer stops reusing a result shortly before the token expires.
	TokenExpiryBuffer = 30 * time.Second
)

// CachingVerifier remembers successful verifications in Redis, keyed by a
// hash of the token. Redis failures fall back to the wrapped verifier.
type CachingVerifier struct {
	Next   Verifier
	Client *redis.Client
	TTL    time.Duration
	Logger *logger.Logger
	Now    func() time.Time
}

func NewCachingVerifier(next Verifier, client *redis.Client, ttl time.Duration, log *logger.Logger) *CachingVerifier {
	return &CachingVerifier{Next: next, Client: client, TTL: ttl, Logger: log, Now: time.Now}
}

func cacheKey(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return IdentityKeyPrefix + hex.EncodeToString(sum[:])
}

func (c *CachingVerifier) Verify(ctx context.Context, rawToken string) (Identity, error) {
	key := cacheKey(rawToken)

	if id, ok := c.lookup(ctx, key); ok {
		return id, nil
	}

	id, err := c.Next.Verify(ctx, rawToken)
	if err != nil {
		return Identity{}, err
	}

	ttl := c.TTL
	if !id.ExpiresAt.IsZero() {
		if untilExpiry := id.ExpiresAt.Sub(c.Now()) - TokenExpiryBuffer; untilExpiry < ttl {
			ttl = untilExpiry
		}
	}
	if ttl > 0 {
		if err := c.store(ctx, key, id, ttl); err != nil {
			c.Logger.Warn("AUTH", fmt.Sprintf("Failed to cache identity for %s: %v", id.UserID, err))
		}
	}
	return id, nil
}

func (c *CachingVerifier) lookup(ctx context.Context, key string) (Identity, bool) {
	raw, err := c.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return Identity{}, false
	}
	if err != nil {
		c.Logger.Warn("AUTH", fmt.Sprintf("Identity cache read failed: %v", err))
		return Identity{}, false
	}

	var id Identity
	if err := json.Unmarshal([]byte(raw), &id); err != nil {
		return Identity{}, false
	}
	if !id.ExpiresAt.IsZero() && !c.Now().Add(TokenExpiryBuffer).Before(id.ExpiresAt) {
		return Identity{}, false
	}
	return id, true
}

func (c *CachingVerifier) store(ctx context.Context, key string, id Identity, ttl time.Duration) error {
	payload, err := json.Marshal(id)
	if err != nil {
		return fmt.Errorf("failed to marshal identity: %w", err)
	}
	if err := c.Client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store identity in Redis: %w", err)
	}
	return nil
}
