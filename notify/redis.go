package notify

import (
	"context"
	"fmt"

	redis "github.com/redis/go-redis/v9"
)

// DefaultChannel is the pub/sub channel used when none is configured.
const DefaultChannel = "discipline.notifications"

// Publisher is the minimal surface needed from a Redis client.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// GoRedisPublisher implements Publisher with github.com/redis/go-redis/v9.
type GoRedisPublisher struct{ c *redis.Client }

// RedisOptions selects the Redis server.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

func NewGoRedisPublisher(opts RedisOptions) *GoRedisPublisher {
	return &GoRedisPublisher{c: redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})}
}

func (g *GoRedisPublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	return g.c.Publish(ctx, channel, payload).Err()
}

// Ping checks connectivity.
func (g *GoRedisPublisher) Ping(ctx context.Context) error {
	return g.c.Ping(ctx).Err()
}

func (g *GoRedisPublisher) Close() error {
	return g.c.Close()
}

// RedisSender publishes each message as JSON on a channel.
type RedisSender struct {
	client  Publisher
	channel string
}

func NewRedisSender(client Publisher, channel string) *RedisSender {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisSender{client: client, channel: channel}
}

func (s *RedisSender) Send(ctx context.Context, msg Message) error {
	payload, err := msg.Encode()
	if err != nil {
		return err
	}
	if err := s.client.Publish(ctx, s.channel, payload); err != nil {
		return fmt.Errorf("redis publish channel=%s record=%s: %w", s.channel, msg.RecordID, err)
	}
	return nil
}
