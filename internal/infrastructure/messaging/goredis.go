package messaging

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// GoRedisClient adapts a go-redis client to RedisClient.
type GoRedisClient struct {
	client *redis.Client
	pubsub *redis.PubSub
}

// NewGoRedisClient wraps client. Close closes only the subscription, not client.
func NewGoRedisClient(client *redis.Client) *GoRedisClient {
	return &GoRedisClient{client: client}
}

// Publish implements RedisClient.
func (c *GoRedisClient) Publish(ctx context.Context, channel string, message string) error {
	return c.client.Publish(ctx, channel, message).Err()
}

// Subscribe implements RedisClient.
func (c *GoRedisClient) Subscribe(ctx context.Context, channel string) (<-chan RedisMessage, error) {
	c.pubsub = c.client.Subscribe(ctx, channel)
	if _, err := c.pubsub.Receive(ctx); err != nil {
		_ = c.pubsub.Close()
		return nil, err
	}

	out := make(chan RedisMessage)
	go func() {
		defer close(out)
		for msg := range c.pubsub.Channel() {
			select {
			case out <- RedisMessage{Channel: msg.Channel, Payload: msg.Payload}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close implements RedisClient.
func (c *GoRedisClient) Close() error {
	if c.pubsub == nil {
		return nil
	}
	return c.pubsub.Close()
}
