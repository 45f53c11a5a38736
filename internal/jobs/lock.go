package jobs

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// RunLock keeps a scheduled pass to one instance at a time.
type RunLock interface {
	TryLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, name, owner string) error
}

// releaseScript deletes the key only while it still holds owner, so an
// instance whose lock expired cannot release its successor's.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLock struct {
	Client *redis.Client
	Prefix string
}

func (l *RedisLock) TryLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	return l.Client.SetNX(ctx, l.Prefix+name, owner, ttl).Result()
}

func (l *RedisLock) Unlock(ctx context.Context, name, owner string) error {
	err := releaseScript.Run(ctx, l.Client, []string{l.Prefix + name}, owner).Err()
	if err == redis.Nil {
		return nil
	}
	return err
}

// holder reports who currently holds name, or "" when it is free.
func (l *RedisLock) holder(ctx context.Context, name string) (string, error) {
	val, err := l.Client.Get(ctx, l.Prefix+name).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}
