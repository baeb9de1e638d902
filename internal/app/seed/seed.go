// Package seed fills an empty database with the admin account and the
// catalog's sample products.
package seed

import (
	"context"
	"fmt"

	"github.com/R3E-Network/storefront/internal/app/domain/product"
	"github.com/R3E-Network/storefront/internal/app/services/accounts"
	"github.com/R3E-Network/storefront/internal/app/storage"
	"github.com/R3E-Network/storefront/internal/config"
	"github.com/R3E-Network/storefront/pkg/logger"
)

const (
	AdminUsername = "admin"
	AdminEmail    = "admin@example.com"
	AdminPassword = "admin"
)

// Result reports what Populate changed.
type Result struct {
	AdminCreated    bool
	ProductsCreated int
}

// Populate ensures the admin account exists and, when the product table is
// empty, inserts the catalog's products owned by the admin. Running it again
// changes nothing.
func Populate(ctx context.Context, users *accounts.Service, products storage.ProductStore, catalog *config.Catalog, log *logger.Logger) (Result, error) {
	if log == nil {
		log = logger.NewDefault("seed")
	}
	if catalog == nil {
		catalog = config.DefaultCatalog()
	}

	admin, created, err := users.EnsureAdmin(ctx, AdminUsername, AdminEmail, AdminPassword)
	if err != nil {
		return Result{}, fmt.Errorf("ensure admin: %w", err)
	}
	res := Result{AdminCreated: created}

	count, err := products.CountProducts(ctx)
	if err != nil {
		return res, fmt.Errorf("count products: %w", err)
	}
	if count > 0 {
		log.WithField("products", count).Info("products present; skipping sample data")
		return res, nil
	}

	for _, sp := range catalog.Products {
		if _, err := products.CreateProduct(ctx, product.Product{
			Name:             sp.Name,
			ShortDescription: sp.ShortDescription,
			LongDescription:  sp.LongDescription,
			Price:            sp.Price,
			Category:         sp.Category,
			ImageURL:         sp.ImageURL,
			SellerID:         admin.ID,
		}); err != nil {
			return res, fmt.Errorf("create product %q: %w", sp.Name, err)
		}
		res.ProductsCreated++
	}
	log.WithField("admin_created", res.AdminCreated).
		WithField("products", res.ProductsCreated).
		Info("database populated")
	return res, nil
}
