package push

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/strayhub/chat-core/internal/domain"
	"github.com/strayhub/chat-core/pkg/log"
)

// RedisConfig holds connection settings for the live push transport.
type RedisConfig struct {
	Address      string        `mapstructure:"address"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// RedisPush implements Publisher and Subscriber over Redis pub/sub.
// Redis pub/sub keeps no backlog, which matches the live channel's
// best-effort contract exactly.
type RedisPush struct {
	client *redis.Client
}

// NewRedisPush connects to Redis and verifies the connection.
func NewRedisPush(cfg RedisConfig) (*RedisPush, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisPush{client: client}, nil
}

// Publish sends the message to its room's channel.
func (r *RedisPush) Publish(ctx context.Context, msg *domain.WireMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal push payload: %w", err)
	}

	return r.client.Publish(ctx, RoomChannel(msg.RoomID), data).Err()
}

// SubscribeAllRooms pattern-subscribes to every room channel and
// decodes payloads onto the returned channel until ctx is cancelled.
func (r *RedisPush) SubscribeAllRooms(ctx context.Context) (<-chan *domain.WireMessage, error) {
	pubsub := r.client.PSubscribe(ctx, roomChannelPattern)

	// Fail fast if the subscription could not be established.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to room channels: %w", err)
	}

	out := make(chan *domain.WireMessage, 100)

	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-ch:
				if !ok {
					return
				}

				var msg domain.WireMessage
				if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
					log.L().Warn().Err(err).Str("channel", raw.Channel).Msg("failed to decode push payload")
					continue
				}

				select {
				case out <- &msg:
				default:
					// Receiver is full; the channel is best-effort.
				}
			}
		}
	}()

	return out, nil
}

// Close closes the Redis client.
func (r *RedisPush) Close() error {
	return r.client.Close()
}
