package syncbus

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisStore keeps the durable slots as plain redis keys.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMissing
	}
	return v, err
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.rdb.Set(ctx, s.prefix+key, value, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.prefix+key).Err()
}

// Close is a no-op; the client belongs to the caller.
func (s *RedisStore) Close() error { return nil }

// RedisBroadcaster is the live channel over redis pub/sub.
type RedisBroadcaster struct {
	rdb     *redis.Client
	channel string
}

// DefaultChannel is used when NewRedisBroadcaster gets an empty channel.
const DefaultChannel = "duel:live"

func NewRedisBroadcaster(rdb *redis.Client, channel string) *RedisBroadcaster {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisBroadcaster{rdb: rdb, channel: channel}
}

func (b *RedisBroadcaster) Broadcast(ctx context.Context, payload []byte) error {
	return b.rdb.Publish(ctx, b.channel, payload).Err()
}

// Listen subscribes and feeds every message to fn until ctx ends or the
// subscription breaks.
func (b *RedisBroadcaster) Listen(ctx context.Context, fn func([]byte)) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()

	// wait for the subscription confirmation so nothing published after
	// Listen returns ready is missed
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return errors.New("syncbus: redis subscription closed")
			}
			fn([]byte(msg.Payload))
		}
	}
}
