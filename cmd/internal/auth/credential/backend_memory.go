package credential

import (
	"context"
	"sync"
)

// MemoryBackend is the session-scoped tier: the credential lives as long as the process.
type MemoryBackend struct {
	mu    sync.RWMutex
	slots map[string]Credential
}

var _ Backend = (*MemoryBackend)(nil)

// NewMemoryBackend constructs an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{slots: make(map[string]Credential)}
}

func (m *MemoryBackend) Load(_ context.Context, slot string) (Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.slots[slot]
	if !ok {
		return Credential{}, ErrNotFound
	}
	return c, nil
}

func (m *MemoryBackend) Store(_ context.Context, slot string, c Credential) error {
	m.mu.Lock()
	m.slots[slot] = c
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, slot string) error {
	m.mu.Lock()
	delete(m.slots, slot)
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) Close() error { return nil }
