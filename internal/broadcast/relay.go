package broadcast

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"shelf/api/internal/wire"
)

// RedisRelay publishes events to a Redis channel and feeds everything on
// that channel into the local hub, so viewers attached to any API instance
// see every mutation.
type RedisRelay struct {
	client  *redis.Client
	channel string
	hub     *Hub
	ready   chan struct{}
}

func NewRedisRelay(redisURL, channel string, hub *Hub) (*RedisRelay, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisRelayWithClient(client, channel, hub), nil
}

func NewRedisRelayWithClient(client *redis.Client, channel string, hub *Hub) *RedisRelay {
	return &RedisRelay{client: client, channel: channel, hub: hub, ready: make(chan struct{})}
}

func (r *RedisRelay) Publish(ctx context.Context, event wire.Event) error {
	payload, err := wire.EncodeEvent(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Ready is closed once Run holds an active subscription.
func (r *RedisRelay) Ready() <-chan struct{} {
	return r.ready
}

// Run forwards channel messages to the hub until ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	close(r.ready)
	log.Printf("broadcast: relaying redis channel %s", r.channel)

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return fmt.Errorf("subscription to %s closed", r.channel)
			}
			if _, err := wire.DecodeEvent([]byte(msg.Payload)); err != nil {
				log.Printf("broadcast: skipping relayed message: %v", err)
				continue
			}
			r.hub.Broadcast([]byte(msg.Payload))
		}
	}
}

func (r *RedisRelay) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRelay) Close() error {
	return r.client.Close()
}
