package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps history in process memory
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string][]Snapshot
	now   func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string][]Snapshot),
		now:   time.Now,
	}
}

func (m *MemoryStore) Append(ctx context.Context, user string, snapshot *Snapshot) error {
	if err := stamp(user, snapshot, m.now()); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[user] = append(m.items[user], *snapshot)
	return nil
}

func (m *MemoryStore) List(ctx context.Context, user string) ([]Snapshot, error) {
	if user == "" {
		return nil, ErrEmptyUser
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Snapshot, len(m.items[user]))
	copy(out, m.items[user])
	return out, nil
}

func (m *MemoryStore) Clear(ctx context.Context, user string) (int, error) {
	if user == "" {
		return 0, ErrEmptyUser
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.items[user])
	delete(m.items, user)
	return n, nil
}

func (m *MemoryStore) Prune(ctx context.Context, olderThan time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for user, snapshots := range m.items {
		kept := snapshots[:0]
		for _, s := range snapshots {
			if s.Date.Before(olderThan) {
				removed++
				continue
			}
			kept = append(kept, s)
		}
		if len(kept) == 0 {
			delete(m.items, user)
		} else {
			m.items[user] = kept
		}
	}
	return removed, nil
}

func (m *MemoryStore) Close() error { return nil }
