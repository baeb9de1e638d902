// Package memory provides a thread-safe in-memory implementation of the
// storage interfaces. It backs tests and runs without DATABASE_URL.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/R3E-Network/storefront/internal/app/domain/order"
	"github.com/R3E-Network/storefront/internal/app/domain/product"
	"github.com/R3E-Network/storefront/internal/app/domain/user"
	"github.com/R3E-Network/storefront/internal/app/storage"
)

// Store keeps every aggregate in maps guarded by one mutex.
type Store struct {
	mu       sync.RWMutex
	nextID   int64
	users    map[int64]user.User
	products map[int64]product.Product
	orders   map[int64]order.Order
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.ProductStore = (*Store)(nil)
var _ storage.OrderStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:   1,
		users:    make(map[int64]user.User),
		products: make(map[int64]product.Product),
		orders:   make(map[int64]order.Order),
	}
}

func (s *Store) nextIDLocked() int64 {
	id := s.nextID
	s.nextID++
	return id
}

// --- UserStore ---------------------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkUniqueLocked(0, u.Username, u.Email); err != nil {
		return user.User{}, err
	}
	if u.Role == "" {
		u.Role = user.RoleBuyer
	}
	now := time.Now().UTC()
	u.ID = s.nextIDLocked()
	u.CreatedAt = now
	if u.LastActivity.IsZero() {
		u.LastActivity = now
	}
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) UpdateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[u.ID]
	if !ok {
		return user.User{}, fmt.Errorf("user %d: %w", u.ID, storage.ErrNotFound)
	}
	if err := s.checkUniqueLocked(u.ID, u.Username, u.Email); err != nil {
		return user.User{}, err
	}
	u.CreatedAt = existing.CreatedAt
	if u.LastActivity.IsZero() {
		u.LastActivity = existing.LastActivity
	}
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) checkUniqueLocked(selfID int64, username, email string) error {
	for id, other := range s.users {
		if id == selfID {
			continue
		}
		if other.Username == username {
			return fmt.Errorf("username %q: %w", username, storage.ErrDuplicate)
		}
		if other.Email == email {
			return fmt.Errorf("email %q: %w", email, storage.ErrDuplicate)
		}
	}
	return nil
}

func (s *Store) GetUser(_ context.Context, id int64) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, fmt.Errorf("user %d: %w", id, storage.ErrNotFound)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return user.User{}, fmt.Errorf("user %q: %w", email, storage.ErrNotFound)
}

func (s *Store) ListUsers(_ context.Context) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]user.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) DeleteUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return fmt.Errorf("user %d: %w", id, storage.ErrNotFound)
	}
	for pid, p := range s.products {
		if p.SellerID == id {
			s.deleteProductLocked(pid)
		}
	}
	for oid, o := range s.orders {
		if o.UserID == id {
			delete(s.orders, oid)
		}
	}
	delete(s.users, id)
	return nil
}

func (s *Store) TouchUser(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("user %d: %w", id, storage.ErrNotFound)
	}
	u.LastActivity = at.UTC()
	s.users[id] = u
	return nil
}

// --- ProductStore ------------------------------------------------------------

func (s *Store) CreateProduct(_ context.Context, p product.Product) (product.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[p.SellerID]; !ok {
		return product.Product{}, fmt.Errorf("seller %d: %w", p.SellerID, storage.ErrNotFound)
	}
	p.ID = s.nextIDLocked()
	p.SellerName = ""
	s.products[p.ID] = p
	return s.withSellerLocked(p), nil
}

func (s *Store) UpdateProduct(_ context.Context, p product.Product) (product.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[p.ID]
	if !ok {
		return product.Product{}, fmt.Errorf("product %d: %w", p.ID, storage.ErrNotFound)
	}
	p.SellerID = existing.SellerID
	p.SellerName = ""
	s.products[p.ID] = p
	return s.withSellerLocked(p), nil
}

func (s *Store) GetProduct(_ context.Context, id int64) (product.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return product.Product{}, fmt.Errorf("product %d: %w", id, storage.ErrNotFound)
	}
	return s.withSellerLocked(p), nil
}

func (s *Store) ListProducts(_ context.Context, filter product.Filter) ([]product.Product, error) {
	return s.collectProducts(func(p product.Product) bool {
		if filter.Category != "" && p.Category != filter.Category {
			return false
		}
		if filter.SellerID != 0 && p.SellerID != filter.SellerID {
			return false
		}
		return true
	}), nil
}

func (s *Store) GetProducts(_ context.Context, ids []int64) ([]product.Product, error) {
	want := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	return s.collectProducts(func(p product.Product) bool {
		_, ok := want[p.ID]
		return ok
	}), nil
}

func (s *Store) SearchProducts(_ context.Context, query string) ([]product.Product, error) {
	needle := strings.ToLower(query)
	return s.collectProducts(func(p product.Product) bool {
		return strings.Contains(strings.ToLower(p.Name), needle) ||
			strings.Contains(strings.ToLower(p.ShortDescription), needle)
	}), nil
}

func (s *Store) CountProducts(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products), nil
}

func (s *Store) DeleteProduct(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return fmt.Errorf("product %d: %w", id, storage.ErrNotFound)
	}
	s.deleteProductLocked(id)
	return nil
}

func (s *Store) deleteProductLocked(id int64) {
	for oid, o := range s.orders {
		if o.ProductID == id {
			delete(s.orders, oid)
		}
	}
	delete(s.products, id)
}

func (s *Store) collectProducts(keep func(product.Product) bool) []product.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]product.Product, 0)
	for _, p := range s.products {
		if keep(p) {
			out = append(out, s.withSellerLocked(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) withSellerLocked(p product.Product) product.Product {
	if u, ok := s.users[p.SellerID]; ok {
		p.SellerName = u.Username
	}
	return p
}

// --- OrderStore --------------------------------------------------------------

func (s *Store) CreateOrders(_ context.Context, orders []order.Order) ([]order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range orders {
		if _, ok := s.products[o.ProductID]; !ok {
			return nil, fmt.Errorf("product %d: %w", o.ProductID, storage.ErrNotFound)
		}
		if _, ok := s.users[o.UserID]; !ok {
			return nil, fmt.Errorf("user %d: %w", o.UserID, storage.ErrNotFound)
		}
	}

	now := time.Now().UTC()
	out := make([]order.Order, 0, len(orders))
	for _, o := range orders {
		o.ID = s.nextIDLocked()
		o.CreatedAt = now
		o.ProductName, o.ProductPrice = "", 0
		s.orders[o.ID] = o
		out = append(out, s.withProductLocked(o))
	}
	return out, nil
}

func (s *Store) GetOrder(_ context.Context, id int64) (order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return order.Order{}, fmt.Errorf("order %d: %w", id, storage.ErrNotFound)
	}
	return s.withProductLocked(o), nil
}

func (s *Store) ListOrdersByUser(_ context.Context, userID int64) ([]order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]order.Order, 0)
	for _, o := range s.orders {
		if o.UserID == userID {
			out = append(out, s.withProductLocked(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) DeleteOrder(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[id]; !ok {
		return fmt.Errorf("order %d: %w", id, storage.ErrNotFound)
	}
	delete(s.orders, id)
	return nil
}

func (s *Store) withProductLocked(o order.Order) order.Order {
	if p, ok := s.products[o.ProductID]; ok {
		o.ProductName = p.Name
		o.ProductPrice = p.Price
	}
	return o
}
