package store

import (
	"context"
	"sync"
)

// Memory is a process-local Blobs implementation for tests and throwaway
// sessions.
type Memory struct {
	mu    sync.RWMutex
	blobs map[string]string
	locks *keyedMutex
}

// NewMemory creates an empty in-memory blob store.
func NewMemory() *Memory {
	return &Memory{blobs: make(map[string]string), locks: newKeyedMutex()}
}

// GetBlob returns the stored blob for userID.
func (m *Memory) GetBlob(_ context.Context, userID string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	raw, ok := m.blobs[userID]
	return raw, ok, nil
}

// PutBlob overwrites the blob for userID.
func (m *Memory) PutBlob(_ context.Context, userID, raw string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[userID] = raw
	return nil
}

// UpdateBlob runs one read-modify-write cycle under the user's lock.
func (m *Memory) UpdateBlob(ctx context.Context, userID string, fn UpdateFunc) error {
	unlock := m.locks.Lock(userID)
	defer unlock()

	current, _, err := m.GetBlob(ctx, userID)
	if err != nil {
		return err
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	return m.PutBlob(ctx, userID, next)
}
