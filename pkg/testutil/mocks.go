// Package testutil provides common testing fixtures and mock implementations.
package testutil

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// PNG returns the signature and IHDR chunk of a 1x1 PNG, enough for content sniffing.
func PNG() []byte {
	return []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")
}

// MockImageStore keeps saved images in memory.
type MockImageStore struct {
	mu      sync.RWMutex
	files   map[string][]byte
	removed []string
	seq     int

	// SaveErr, when set, is returned by Save.
	SaveErr error
}

// NewMockImageStore creates an empty image store.
func NewMockImageStore() *MockImageStore {
	return &MockImageStore{files: make(map[string][]byte)}
}

// Save stores the body under a numbered copy of filename.
func (m *MockImageStore) Save(filename string, r io.Reader) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return "", m.SaveErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", errors.New("empty image")
	}
	m.seq++
	name := fmt.Sprintf("%d_%s", m.seq, filename)
	m.files[name] = data
	return name, nil
}

// Remove deletes a stored image.
func (m *MockImageStore) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[name]; !ok {
		return fmt.Errorf("image %q not found", name)
	}
	delete(m.files, name)
	m.removed = append(m.removed, name)
	return nil
}

// Has reports whether name is stored.
func (m *MockImageStore) Has(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.files[name]
	return ok
}

// Removed lists removed names in removal order.
func (m *MockImageStore) Removed() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.removed...)
}

// Count returns the number of stored images.
func (m *MockImageStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts at t.
func NewClock(t time.Time) *Clock { return &Clock{now: t} }

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
