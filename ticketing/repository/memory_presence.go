package repository

import (
	"context"
	"sync"
)

// MemoryPresenceStore implementa PresenceStore en memoria. Suficiente para
// despliegues de un solo servidor; con varios servidores usar Valkey.
type MemoryPresenceStore struct {
	mu     sync.RWMutex
	online map[string]struct{}
}

// NewMemoryPresenceStore crea una nueva instancia de MemoryPresenceStore.
func NewMemoryPresenceStore() *MemoryPresenceStore {
	return &MemoryPresenceStore{
		online: make(map[string]struct{}),
	}
}

func presenceKey(tenantID, userID string) string {
	return tenantID + ":" + userID
}

func (m *MemoryPresenceStore) SetOnline(ctx context.Context, tenantID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.online[presenceKey(tenantID, userID)] = struct{}{}
	return nil
}

func (m *MemoryPresenceStore) SetOffline(ctx context.Context, tenantID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.online, presenceKey(tenantID, userID))
	return nil
}

func (m *MemoryPresenceStore) IsOnline(ctx context.Context, tenantID, userID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.online[presenceKey(tenantID, userID)]
	return ok
}
