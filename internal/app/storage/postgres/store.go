package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/R3E-Network/storefront/internal/app/domain/order"
	"github.com/R3E-Network/storefront/internal/app/domain/product"
	"github.com/R3E-Network/storefront/internal/app/domain/user"
	"github.com/R3E-Network/storefront/internal/app/storage"
)

// uniqueViolation is the postgres SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.ProductStore = (*Store)(nil)
var _ storage.OrderStore = (*Store)(nil)
var _ storage.Pinger = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return fmt.Errorf("%s: %w", pqErr.Constraint, storage.ErrDuplicate)
	}
	return err
}

func requireRow(result sql.Result) error {
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// --- UserStore ----------------------------------------------------------------

const userColumns = `id, username, email, password_hash, role, last_activity, created_at`

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.Role == "" {
		u.Role = user.RoleBuyer
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	if u.LastActivity.IsZero() {
		u.LastActivity = now
	}

	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO storefront_users (username, email, password_hash, role, last_activity, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, u.Username, u.Email, u.PasswordHash, u.Role, u.LastActivity, u.CreatedAt).Scan(&u.ID)
	if err != nil {
		return user.User{}, mapErr(err)
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE storefront_users
		SET username = $2, email = $3, password_hash = $4, role = $5
		WHERE id = $1
	`, u.ID, u.Username, u.Email, u.PasswordHash, u.Role)
	if err != nil {
		return user.User{}, mapErr(err)
	}
	if err := requireRow(result); err != nil {
		return user.User{}, err
	}
	return s.GetUser(ctx, u.ID)
}

func (s *Store) GetUser(ctx context.Context, id int64) (user.User, error) {
	var u user.User
	err := s.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM storefront_users WHERE id = $1`, id)
	return u, mapErr(err)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User
	err := s.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM storefront_users WHERE email = $1`, email)
	return u, mapErr(err)
}

func (s *Store) ListUsers(ctx context.Context) ([]user.User, error) {
	users := []user.User{}
	err := s.db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM storefront_users ORDER BY id`)
	return users, mapErr(err)
}

// DeleteUser relies on ON DELETE CASCADE for products and orders.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM storefront_users WHERE id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	return requireRow(result)
}

func (s *Store) TouchUser(ctx context.Context, id int64, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `UPDATE storefront_users SET last_activity = $2 WHERE id = $1`, id, at.UTC())
	if err != nil {
		return mapErr(err)
	}
	return requireRow(result)
}

// --- ProductStore -------------------------------------------------------------

const productSelect = `
	SELECT p.id, p.name, p.short_description, p.long_description, p.price,
	       p.category, p.image_url, p.seller_id, COALESCE(u.username, '') AS seller_name
	FROM storefront_products p
	LEFT JOIN storefront_users u ON u.id = p.seller_id`

func (s *Store) CreateProduct(ctx context.Context, p product.Product) (product.Product, error) {
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO storefront_products (name, short_description, long_description, price, category, image_url, seller_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, p.Name, p.ShortDescription, p.LongDescription, p.Price, p.Category, p.ImageURL, p.SellerID).Scan(&p.ID)
	if err != nil {
		return product.Product{}, mapErr(err)
	}
	return s.GetProduct(ctx, p.ID)
}

func (s *Store) UpdateProduct(ctx context.Context, p product.Product) (product.Product, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE storefront_products
		SET name = $2, short_description = $3, long_description = $4, price = $5, category = $6, image_url = $7
		WHERE id = $1
	`, p.ID, p.Name, p.ShortDescription, p.LongDescription, p.Price, p.Category, p.ImageURL)
	if err != nil {
		return product.Product{}, mapErr(err)
	}
	if err := requireRow(result); err != nil {
		return product.Product{}, err
	}
	return s.GetProduct(ctx, p.ID)
}

func (s *Store) GetProduct(ctx context.Context, id int64) (product.Product, error) {
	var p product.Product
	err := s.db.GetContext(ctx, &p, productSelect+` WHERE p.id = $1`, id)
	return p, mapErr(err)
}

func (s *Store) ListProducts(ctx context.Context, filter product.Filter) ([]product.Product, error) {
	products := []product.Product{}
	err := s.db.SelectContext(ctx, &products, productSelect+`
		WHERE ($1::text = '' OR p.category = $1::text) AND ($2::bigint = 0 OR p.seller_id = $2::bigint)
		ORDER BY p.id
	`, filter.Category, filter.SellerID)
	return products, mapErr(err)
}

func (s *Store) GetProducts(ctx context.Context, ids []int64) ([]product.Product, error) {
	products := []product.Product{}
	if len(ids) == 0 {
		return products, nil
	}
	query, args, err := sqlx.In(productSelect+` WHERE p.id IN (?) ORDER BY p.id`, ids)
	if err != nil {
		return nil, err
	}
	err = s.db.SelectContext(ctx, &products, s.db.Rebind(query), args...)
	return products, mapErr(err)
}

func (s *Store) SearchProducts(ctx context.Context, query string) ([]product.Product, error) {
	products := []product.Product{}
	err := s.db.SelectContext(ctx, &products, productSelect+`
		WHERE p.name ILIKE '%' || $1 || '%' OR p.short_description ILIKE '%' || $1 || '%'
		ORDER BY p.id
	`, escapeLike(query))
	return products, mapErr(err)
}

func (s *Store) CountProducts(ctx context.Context) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM storefront_products`)
	return n, mapErr(err)
}

func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM storefront_products WHERE id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	return requireRow(result)
}

// --- OrderStore ---------------------------------------------------------------

const orderSelect = `
	SELECT o.id, o.product_id, o.user_id, o.address, o.phone, o.size, o.email, o.created_at,
	       COALESCE(p.name, '') AS product_name, COALESCE(p.price, 0) AS product_price
	FROM storefront_orders o
	LEFT JOIN storefront_products p ON p.id = o.product_id`

func (s *Store) CreateOrders(ctx context.Context, orders []order.Order) ([]order.Order, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	now := time.Now().UTC()
	out := make([]order.Order, 0, len(orders))
	for _, o := range orders {
		o.CreatedAt = now
		err := tx.QueryRowxContext(ctx, `
			INSERT INTO storefront_orders (product_id, user_id, address, phone, size, email, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`, o.ProductID, o.UserID, o.Address, o.Phone, o.Size, o.Email, o.CreatedAt).Scan(&o.ID)
		if err != nil {
			return nil, fmt.Errorf("insert order for product %d: %w", o.ProductID, mapErr(err))
		}
		out = append(out, o)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) GetOrder(ctx context.Context, id int64) (order.Order, error) {
	var o order.Order
	err := s.db.GetContext(ctx, &o, orderSelect+` WHERE o.id = $1`, id)
	return o, mapErr(err)
}

func (s *Store) ListOrdersByUser(ctx context.Context, userID int64) ([]order.Order, error) {
	orders := []order.Order{}
	err := s.db.SelectContext(ctx, &orders, orderSelect+` WHERE o.user_id = $1 ORDER BY o.id`, userID)
	return orders, mapErr(err)
}

func (s *Store) DeleteOrder(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM storefront_orders WHERE id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	return requireRow(result)
}

func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '%' || r == '_' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
