package push

import (
	"context"
	"fmt"

	"github.com/weiawesome/duwdu-messenger/internal/config"
	"github.com/weiawesome/duwdu-messenger/internal/thread"
)

const (
	DriverNone  = "none"
	DriverRedis = "redis"
)

// Broker listens for and announces new messages in a chat.
type Broker interface {
	thread.Nudger
	Publish(ctx context.Context, chatID, messageID int64) error
}

// New returns the configured broker, or nil when push is disabled. The
// returned close func is always safe to call.
func New(ctx context.Context, cfg config.PushConfig) (Broker, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Driver {
	case "", DriverNone:
		return nil, noop, nil
	case DriverRedis:
		n, err := NewRedisNudger(ctx, cfg.Redis)
		if err != nil {
			return nil, noop, err
		}
		return n, n.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown push driver %q", cfg.Driver)
	}
}
