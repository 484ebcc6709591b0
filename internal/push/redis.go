package push

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/weiawesome/duwdu-messenger/internal/config"
	"github.com/weiawesome/duwdu-messenger/pkg/log"
)

// RedisNudger emits a nudge for every message published on a chat's
// channel. Bursts collapse into a single pending nudge.
type RedisNudger struct {
	client *redis.Client
	prefix string
}

// NewRedisNudger connects and pings the server.
func NewRedisNudger(ctx context.Context, cfg config.SessionRedisConfig) (*RedisNudger, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisNudgerFromClient(client, cfg.KeyPrefix), nil
}

// NewRedisNudgerFromClient wraps an existing client. prefix is prepended to
// every channel name.
func NewRedisNudgerFromClient(client *redis.Client, prefix string) *RedisNudger {
	return &RedisNudger{client: client, prefix: prefix}
}

func (r *RedisNudger) channel(chatID int64) string {
	return r.prefix + ChatMessagesChannel(chatID)
}

// Nudges subscribes to chatID's channel. The subscription is confirmed
// before Nudges returns; the channel closes when ctx ends.
func (r *RedisNudger) Nudges(ctx context.Context, chatID int64) (<-chan struct{}, error) {
	name := r.channel(chatID)
	sub := r.client.Subscribe(ctx, name)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", name, err)
	}

	out := make(chan struct{}, 1)
	go r.forward(ctx, sub, chatID, out)
	return out, nil
}

func (r *RedisNudger) forward(ctx context.Context, sub *redis.PubSub, chatID int64, out chan<- struct{}) {
	defer close(out)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				l := log.L()
				l.Debug().Int64(log.FieldChatID, chatID).Msg("push subscription closed")
				return
			}
			select {
			case out <- struct{}{}:
			default:
				// A nudge is already pending.
			}
		}
	}
}

// Publish announces a new message in chatID.
func (r *RedisNudger) Publish(ctx context.Context, chatID, messageID int64) error {
	return r.client.Publish(ctx, r.channel(chatID), messageID).Err()
}

func (r *RedisNudger) Close() error {
	return r.client.Close()
}
