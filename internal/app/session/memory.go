package session

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	data      Session
	expiresAt time.Time
}

// MemoryStore keeps sessions in process. Expired entries are dropped on
// Load and by Sweep.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

var _ Store = (*MemoryStore)(nil)
var _ Sweeper = (*MemoryStore)(nil)

// NewMemoryStore creates a store whose sessions live for ttl after each save.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryStore) Load(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !m.now().Before(entry.expiresAt) {
		delete(m.entries, id)
		return nil, ErrNotFound
	}
	s := clone(entry.data)
	return &s, nil
}

func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	s.UpdatedAt = now.UTC()
	m.entries[s.ID] = memoryEntry{data: clone(*s), expiresAt: now.Add(m.ttl)}
	s.MarkClean()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	return nil
}

// Sweep drops expired sessions and returns how many were removed.
func (m *MemoryStore) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, entry := range m.entries {
		if !now.Before(entry.expiresAt) {
			delete(m.entries, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored sessions, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func clone(s Session) Session {
	out := s
	out.Cart = append([]int64(nil), s.Cart...)
	out.Flashes = append([]Flash(nil), s.Flashes...)
	out.dirty = false
	return out
}
