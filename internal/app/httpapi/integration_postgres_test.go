//go:build integration && postgres

package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	app "github.com/R3E-Network/storefront/internal/app"
	"github.com/R3E-Network/storefront/internal/app/mail"
	"github.com/R3E-Network/storefront/internal/app/seed"
	"github.com/R3E-Network/storefront/internal/app/session"
	"github.com/R3E-Network/storefront/internal/app/storage"
	"github.com/R3E-Network/storefront/internal/app/storage/postgres"
	"github.com/R3E-Network/storefront/internal/app/uploads"
	"github.com/R3E-Network/storefront/internal/config"
	"github.com/R3E-Network/storefront/internal/platform/database"
	"github.com/R3E-Network/storefront/internal/platform/migrations"
	"github.com/R3E-Network/storefront/pkg/logger"
)

// Integration test against Postgres to ensure migrations + checkout work with persistence.
func TestIntegrationPostgres(t *testing.T) {
	_ = godotenv.Load() // allow .env for local runs
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping Postgres integration")
	}

	ctx := context.Background()
	db, err := database.Open(ctx, dsn, database.Options{})
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, migrations.Apply(db.DB))
	_, err = db.ExecContext(ctx, `TRUNCATE storefront_orders, storefront_products, storefront_users RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	store := postgres.New(db)
	up, err := uploads.New(t.TempDir(), 1<<20)
	require.NoError(t, err)
	rec := &mail.Recorder{}
	application, err := app.New(app.Stores{Users: store, Products: store, Orders: store}, app.Options{
		Mailer:       rec,
		MailSender:   "shop@example.com",
		Uploads:      up,
		HashCost:     bcrypt.MinCost,
		LoginRate:    100,
		LoginBurst:   100,
		HealthChecks: map[string]storage.Pinger{"database": store},
	}, logger.Discard())
	require.NoError(t, err)

	res, err := seed.Populate(ctx, application.Accounts, store, config.DefaultCatalog(), logger.Discard())
	require.NoError(t, err)
	require.True(t, res.AdminCreated)
	require.Equal(t, 16, res.ProductsCreated)

	handler, err := NewHandler(application, Options{
		Codec: session.NewCodec("integration-secret-key", time.Hour, false),
		Log:   logger.Discard(),
	})
	require.NoError(t, err)
	server := httptest.NewServer(handler)
	defer server.Close()
	f := &fixture{t: t, app: application, mailer: rec, server: server}

	// Health reports the database check
	b := f.browser()
	health := b.get("/healthz")
	require.Equal(t, http.StatusOK, health.status, health.body)

	res2 := b.post("/register", url.Values{
		"username": {"pg-buyer"},
		"email":    {"pg-buyer@example.com"},
		"password": {testPassword},
		"role":     {"buyer"},
	})
	require.Equal(t, http.StatusFound, res2.status)
	buyer, err := store.GetUserByEmail(ctx, "pg-buyer@example.com")
	require.NoError(t, err)
	b.login(buyer)

	products, err := application.Catalog.ListAll(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, products)
	require.Equal(t, http.StatusFound, b.post(withID("/add_to_cart/{id}", products[0].ID), nil).status)
	require.Equal(t, http.StatusFound, b.post(withID("/add_to_cart/{id}", products[1].ID), nil).status)

	checkout := b.post("/checkout", url.Values{"size": {"M"}, "address": {"Москва"}, "phone": {"+7 900"}, "email": {"pg-buyer@example.com"}})
	require.Equal(t, http.StatusFound, checkout.status, checkout.body)

	orders, err := store.ListOrdersByUser(ctx, buyer.ID)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	require.Len(t, rec.Messages(), 1)

	// Deleting the user cascades to their orders
	require.NoError(t, application.Accounts.Delete(ctx, buyer.ID))
	orders, err = store.ListOrdersByUser(ctx, buyer.ID)
	require.NoError(t, err)
	require.Empty(t, orders)
}
