package postgres

import (
	"context"
	"errors"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/storefront/internal/app/domain/order"
	"github.com/R3E-Network/storefront/internal/app/domain/product"
	"github.com/R3E-Network/storefront/internal/app/domain/user"
	"github.com/R3E-Network/storefront/internal/app/storage"
	"github.com/R3E-Network/storefront/internal/platform/migrations"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "postgres")), mock
}

func TestCreateUserReturnsID(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO storefront_users")).
		WithArgs("alice", "alice@example.com", "hash", "buyer", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	u, err := store.CreateUser(context.Background(), user.User{Username: "alice", Email: "alice@example.com", PasswordHash: "hash"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), u.ID)
	assert.Equal(t, user.RoleBuyer, u.Role)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserMapsUniqueViolation(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO storefront_users")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "storefront_users_email_key"})

	_, err := store.CreateUser(context.Background(), user.User{Username: "alice", Email: "alice@example.com"})
	assert.True(t, errors.Is(err, storage.ErrDuplicate))
	assert.Contains(t, err.Error(), "storefront_users_email_key")
}

func TestGetUserNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM storefront_users WHERE id = $1")).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.GetUser(context.Background(), 3)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestGetUserByEmailScansRow(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM storefront_users WHERE email = $1")).
		WithArgs("admin@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "password_hash", "role", "last_activity", "created_at"}).
			AddRow(1, "admin", "admin@example.com", "hash", "admin", now, now))

	u, err := store.GetUserByEmail(context.Background(), "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.RoleAdmin, u.Role)
	assert.Equal(t, now, u.LastActivity)
}

func TestDeleteUserZeroRows(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM storefront_users")).
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.DeleteUser(context.Background(), 9)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestGetProductsExpandsIn(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE p.id IN ($1, $2) ORDER BY p.id")).
		WithArgs(int64(2), int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "short_description", "long_description", "price", "category", "image_url", "seller_id", "seller_name"}).
			AddRow(2, "Часы 1", "d", "", 5000.0, "Часы", "watches/watches1.png", 1, "admin").
			AddRow(5, "Сумка 1", "d", "", 1000.0, "Сумки", "bags/bags1.png", 1, "admin"))

	products, err := store.GetProducts(context.Background(), []int64{2, 5})
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "admin", products[0].SellerName)
	assert.Equal(t, 1000.0, products[1].Price)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProductsEmptySkipsQuery(t *testing.T) {
	store, mock := newMockStore(t)
	products, err := store.GetProducts(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, products)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchEscapesWildcards(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("ILIKE")).
		WithArgs(`50\%`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.SearchProducts(context.Background(), "50%")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrdersCommitsOnce(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO storefront_orders")).
		WithArgs(int64(1), int64(9), "addr", "555", "M", "b@example.com", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO storefront_orders")).
		WithArgs(int64(2), int64(9), "addr", "555", "M", "b@example.com", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(12))
	mock.ExpectCommit()

	base := order.Order{UserID: 9, Address: "addr", Phone: "555", Size: "M", Email: "b@example.com"}
	first, second := base, base
	first.ProductID, second.ProductID = 1, 2

	out, err := store.CreateOrders(context.Background(), []order.Order{first, second})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, int64(11), out[0].ID)
	assert.Equal(t, int64(12), out[1].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrdersRollsBackOnFailure(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO storefront_orders")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO storefront_orders")).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := store.CreateOrders(context.Background(), []order.Order{{ProductID: 1, UserID: 9}, {ProductID: 2, UserID: 9}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "product 2")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	db, err := sqlx.Open("postgres", dsn)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, migrations.Apply(db.DB))

	store := New(db)
	ctx := context.Background()
	suffix := time.Now().Format("150405.000000")

	seller, err := store.CreateUser(ctx, user.User{Username: "seller-" + suffix, Email: "seller-" + suffix + "@example.com", PasswordHash: "x", Role: user.RoleSeller})
	require.NoError(t, err)
	p, err := store.CreateProduct(ctx, product.Product{Name: "Часы " + suffix, Category: "Часы", Price: 10, SellerID: seller.ID})
	require.NoError(t, err)
	assert.Equal(t, seller.Username, p.SellerName)

	orders, err := store.CreateOrders(ctx, []order.Order{{ProductID: p.ID, UserID: seller.ID, Address: "a", Phone: "1", Size: "M", Email: seller.Email}})
	require.NoError(t, err)

	require.NoError(t, store.DeleteUser(ctx, seller.ID))
	_, err = store.GetOrder(ctx, orders[0].ID)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}
