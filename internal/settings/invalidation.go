package settings

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"seller-portal/internal/logger"
)

// InvalidationChannel carries the key of every setting written by any
// instance.
const InvalidationChannel = "sellerportal:settings:invalidate"

type Notifier interface {
	Notify(ctx context.Context, key string) error
}

type RedisNotifier struct {
	Client *redis.Client
}

func (n *RedisNotifier) Notify(ctx context.Context, key string) error {
	return n.Client.Publish(ctx, InvalidationChannel, key).Err()
}

// Watch calls onInvalidate for every key announced on the channel until ctx
// is done. The returned channel is closed once the subscription is live.
func Watch(ctx context.Context, client *redis.Client, log *logger.Logger, onInvalidate func(key string)) (<-chan struct{}, error) {
	pubsub := client.Subscribe(ctx, InvalidationChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", InvalidationChannel, err)
	}
	log.Info("REDIS", fmt.Sprintf("Subscribed to %s", InvalidationChannel))

	ready := make(chan struct{})
	go func() {
		defer pubsub.Close()
		msgs := pubsub.Channel()
		close(ready)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				log.Debug("REDIS", fmt.Sprintf("Setting %s changed elsewhere, invalidating", msg.Payload))
				onInvalidate(msg.Payload)
			}
		}
	}()
	return ready, nil
}
