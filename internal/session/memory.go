package session

import (
	"context"
	"sync"

	"github.com/weiawesome/duwdu-messenger/internal/domain"
)

// MemoryStore keeps the encoded session in process memory.
type MemoryStore struct {
	mu   sync.Mutex
	blob []byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Restore(ctx context.Context) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return decode(ctx, m.blob), nil
}

func (m *MemoryStore) Save(ctx context.Context, s *domain.Session) error {
	data, err := encode(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.blob = data
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.blob = nil
	m.mu.Unlock()
	return nil
}

// SetRaw replaces the stored blob verbatim.
func (m *MemoryStore) SetRaw(data []byte) {
	m.mu.Lock()
	m.blob = append([]byte(nil), data...)
	m.mu.Unlock()
}

func (m *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
