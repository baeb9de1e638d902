package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/R3E-Network/storefront/internal/app/domain/product"
	"github.com/R3E-Network/storefront/internal/app/domain/user"
	"github.com/R3E-Network/storefront/internal/app/session"
	"github.com/R3E-Network/storefront/internal/app/storage"
	"github.com/R3E-Network/storefront/internal/app/storage/memory"
	"github.com/R3E-Network/storefront/pkg/logger"
)

func TestService_CartFlow(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	seller, err := store.CreateUser(ctx, user.User{Username: "s", Email: "s@example.com", Role: user.RoleSeller})
	if err != nil {
		t.Fatalf("create seller: %v", err)
	}
	a, err := store.CreateProduct(ctx, product.Product{Name: "a", Category: "Часы", Price: 10, SellerID: seller.ID})
	if err != nil {
		t.Fatalf("create product a: %v", err)
	}
	b, err := store.CreateProduct(ctx, product.Product{Name: "b", Category: "Часы", Price: 20, SellerID: seller.ID})
	if err != nil {
		t.Fatalf("create product b: %v", err)
	}
	svc := New(store, logger.Discard())
	sess := session.New()

	for _, id := range []int64{a.ID, b.ID, a.ID} {
		if _, err := svc.Add(ctx, sess, id); err != nil {
			t.Fatalf("add %d: %v", id, err)
		}
	}
	if _, err := svc.Add(ctx, sess, 999); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found for missing product, got %v", err)
	}

	products, err := svc.Products(ctx, sess)
	if err != nil {
		t.Fatalf("products: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("expected 2 distinct products, got %d", len(products))
	}

	if err := svc.Remove(sess, a.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(sess.Cart) != 2 {
		t.Fatalf("remove should drop one occurrence, cart=%v", sess.Cart)
	}
	if err := svc.Remove(sess, 999); !errors.Is(err, ErrNotInCart) {
		t.Fatalf("expected not in cart, got %v", err)
	}

	if err := store.DeleteProduct(ctx, b.ID); err != nil {
		t.Fatalf("delete product: %v", err)
	}
	products, _ = svc.Products(ctx, sess)
	if len(products) != 1 {
		t.Fatalf("deleted products should be skipped, got %d", len(products))
	}

	svc.Clear(sess)
	if products, _ := svc.Products(ctx, sess); len(products) != 0 {
		t.Fatalf("cart not cleared")
	}
}
