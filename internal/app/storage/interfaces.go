package storage

import (
	"context"
	"errors"
	"time"

	"github.com/R3E-Network/storefront/internal/app/domain/order"
	"github.com/R3E-Network/storefront/internal/app/domain/product"
	"github.com/R3E-Network/storefront/internal/app/domain/user"
)

var (
	// ErrNotFound is returned when the addressed row does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrDuplicate is returned when a unique column would collide.
	ErrDuplicate = errors.New("storage: duplicate")
)

// UserStore persists user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id int64) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
	ListUsers(ctx context.Context) ([]user.User, error)
	// DeleteUser removes the user together with their products and orders.
	DeleteUser(ctx context.Context, id int64) error
	TouchUser(ctx context.Context, id int64, at time.Time) error
}

// ProductStore persists product listings.
type ProductStore interface {
	CreateProduct(ctx context.Context, p product.Product) (product.Product, error)
	UpdateProduct(ctx context.Context, p product.Product) (product.Product, error)
	GetProduct(ctx context.Context, id int64) (product.Product, error)
	ListProducts(ctx context.Context, filter product.Filter) ([]product.Product, error)
	// GetProducts returns the products whose ids appear in ids, ordered by id.
	GetProducts(ctx context.Context, ids []int64) ([]product.Product, error)
	SearchProducts(ctx context.Context, query string) ([]product.Product, error)
	CountProducts(ctx context.Context) (int, error)
	// DeleteProduct removes the product and its orders.
	DeleteProduct(ctx context.Context, id int64) error
}

// OrderStore persists orders.
type OrderStore interface {
	// CreateOrders stores all orders or none.
	CreateOrders(ctx context.Context, orders []order.Order) ([]order.Order, error)
	GetOrder(ctx context.Context, id int64) (order.Order, error)
	ListOrdersByUser(ctx context.Context, userID int64) ([]order.Order, error)
	DeleteOrder(ctx context.Context, id int64) error
}

// Pinger is implemented by stores with a backing connection.
type Pinger interface {
	Ping(ctx context.Context) error
}
