package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cockroachdb/pebble/v2"

	"github.com/weiawesome/duwdu-messenger/internal/domain"
)

// PebbleStore keeps the session in an embedded Pebble database.
type PebbleStore struct {
	db *pebble.DB
}

// NewPebbleStore opens (or creates) the database at dir.
func NewPebbleStore(dir string) (*PebbleStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("session pebble dir is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create session dir: %w", err)
	}
	db, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble db: %w", err)
	}
	return &PebbleStore{db: db}, nil
}

func (p *PebbleStore) Restore(ctx context.Context) (*domain.Session, error) {
	data, closer, err := p.db.Get([]byte(domain.SessionKey))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	defer closer.Close()

	// data is only valid until closer is closed.
	buf := make([]byte, len(data))
	copy(buf, data)
	return decode(ctx, buf), nil
}

func (p *PebbleStore) Save(ctx context.Context, s *domain.Session) error {
	data, err := encode(s)
	if err != nil {
		return err
	}
	return p.db.Set([]byte(domain.SessionKey), data, pebble.Sync)
}

func (p *PebbleStore) Clear(ctx context.Context) error {
	return p.db.Delete([]byte(domain.SessionKey), pebble.Sync)
}

func (p *PebbleStore) Close() error {
	return p.db.Close()
}

var _ Store = (*PebbleStore)(nil)
