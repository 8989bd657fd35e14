// Package store persists one opaque blob per user plus the small user
// directory that API keys and passphrase verifiers live in.
//
// The store never interprets a blob. It only guarantees that UpdateBlob
// cycles for the same user run one at a time within a process; two
// processes sharing a database file are last-writer-wins.
package store

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned when a user lookup matches nothing.
var ErrNotFound = errors.New("store: not found")

// UpdateFunc receives the current blob ("" when absent) and returns the
// blob to write. Returning an error aborts the cycle without writing.
type UpdateFunc func(current string) (string, error)

// Blobs is the blob persistence contract consumed by the dispatcher.
type Blobs interface {
	GetBlob(ctx context.Context, userID string) (raw string, found bool, err error)
	PutBlob(ctx context.Context, userID, raw string) error
	UpdateBlob(ctx context.Context, userID string, fn UpdateFunc) error
}

// ─── Per-user locking ────────────────────────────────────────────────────────

// keyedMutex hands out one mutex per key and forgets it once nobody holds
// or waits on it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedEntry)}
}

// Lock blocks until key is free and returns the matching unlock func.
func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
