package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/weiawesome/duwdu-messenger/internal/config"
	"github.com/weiawesome/duwdu-messenger/internal/domain"
	"github.com/weiawesome/duwdu-messenger/pkg/log"
)

// Store persists the logged-in identity across restarts.
type Store interface {
	// Restore returns the saved session, or nil when there is none or the
	// stored blob cannot be decoded.
	Restore(ctx context.Context) (*domain.Session, error)
	// Save overwrites the stored session.
	Save(ctx context.Context, s *domain.Session) error
	// Clear removes the stored session.
	Clear(ctx context.Context) error
	Close() error
}

// New builds the store selected by cfg.Driver.
func New(ctx context.Context, cfg config.SessionConfig) (Store, error) {
	switch cfg.Driver {
	case "", "file":
		return NewFileStore(cfg.File.Dir)
	case "pebble":
		return NewPebbleStore(cfg.Pebble.Dir)
	case "redis":
		return NewRedisStore(ctx, cfg.Redis)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported session driver: %s", cfg.Driver)
	}
}

func encode(s *domain.Session) ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("refusing to save incomplete session")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}
	return data, nil
}

// decode never fails: a blob that does not hold a usable session is
// reported as no session.
func decode(ctx context.Context, data []byte) *domain.Session {
	if len(data) == 0 {
		return nil
	}
	l := log.Ctx(ctx)

	var s domain.Session
	if err := json.Unmarshal(data, &s); err != nil {
		l.Warn().Err(err).Msg("ignoring malformed stored session")
		return nil
	}
	if !s.Valid() {
		l.Warn().Msg("ignoring incomplete stored session")
		return nil
	}
	return &s
}
