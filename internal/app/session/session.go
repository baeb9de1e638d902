// Package session holds visitor state (signed-in user, cart, flash messages)
// server-side, keyed by an id carried in a signed cookie.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by stores for unknown or expired sessions.
var ErrNotFound = errors.New("session: not found")

// Flash categories understood by the templates.
const (
	FlashSuccess = "success"
	FlashDanger  = "danger"
	FlashWarning = "warning"
	FlashInfo    = "info"
)

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// Session is the per-visitor state.
type Session struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id,omitempty"`
	Cart      []int64   `json:"cart,omitempty"`
	Flashes   []Flash   `json:"flashes,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`

	dirty bool
}

// New returns an empty session with a fresh id.
func New() *Session {
	return &Session{ID: uuid.NewString(), dirty: true}
}

// Dirty reports whether the session changed since it was loaded.
func (s *Session) Dirty() bool { return s.dirty }

// MarkClean is called by stores after a successful save.
func (s *Session) MarkClean() { s.dirty = false }

// Authenticated reports whether a user is signed in.
func (s *Session) Authenticated() bool { return s.UserID != 0 }

// SetUser records the signed-in user; zero signs out.
func (s *Session) SetUser(id int64) {
	if s.UserID != id {
		s.UserID = id
		s.dirty = true
	}
}

// AddFlash queues a message for the next page.
func (s *Session) AddFlash(category, message string) {
	s.Flashes = append(s.Flashes, Flash{Category: category, Message: message})
	s.dirty = true
}

// PopFlashes returns and clears queued messages.
func (s *Session) PopFlashes() []Flash {
	if len(s.Flashes) == 0 {
		return nil
	}
	out := s.Flashes
	s.Flashes = nil
	s.dirty = true
	return out
}

// AddToCart appends productID. The same product may be added more than once.
func (s *Session) AddToCart(productID int64) {
	s.Cart = append(s.Cart, productID)
	s.dirty = true
}

// RemoveFromCart drops the first occurrence of productID and reports whether it was present.
func (s *Session) RemoveFromCart(productID int64) bool {
	for i, id := range s.Cart {
		if id == productID {
			s.Cart = append(s.Cart[:i], s.Cart[i+1:]...)
			s.dirty = true
			return true
		}
	}
	return false
}

// CartIDs returns the distinct product ids in the cart, in first-added order.
func (s *Session) CartIDs() []int64 {
	seen := make(map[int64]struct{}, len(s.Cart))
	out := make([]int64, 0, len(s.Cart))
	for _, id := range s.Cart {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// ClearCart empties the cart.
func (s *Session) ClearCart() {
	if len(s.Cart) > 0 {
		s.Cart = nil
		s.dirty = true
	}
}

// Rotate assigns a new id, keeping the contents. The caller deletes the old id.
func (s *Session) Rotate() (oldID string) {
	oldID = s.ID
	s.ID = uuid.NewString()
	s.dirty = true
	return oldID
}

// Store persists sessions.
type Store interface {
	Load(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

// Sweeper is implemented by stores that need periodic expiry.
type Sweeper interface {
	Sweep(now time.Time) int
}
