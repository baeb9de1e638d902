package cart

import (
	"context"
	"errors"

	"github.com/R3E-Network/storefront/internal/app/domain/product"
	"github.com/R3E-Network/storefront/internal/app/session"
	"github.com/R3E-Network/storefront/internal/app/storage"
	"github.com/R3E-Network/storefront/pkg/logger"
)

// ErrNotInCart is returned when removing a product the cart does not hold.
var ErrNotInCart = errors.New("cart: product not in cart")

// Service manipulates the cart held in a visitor's session.
type Service struct {
	products storage.ProductStore
	log      *logger.Logger
}

func New(products storage.ProductStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("cart")
	}
	return &Service{products: products, log: log}
}

// Add appends productID to the cart. The product must exist.
func (s *Service) Add(ctx context.Context, sess *session.Session, productID int64) (product.Product, error) {
	p, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return product.Product{}, err
	}
	sess.AddToCart(p.ID)
	s.log.WithField("session_id", sess.ID).WithField("product_id", p.ID).Debug("added to cart")
	return p, nil
}

// Remove drops one occurrence of productID.
func (s *Service) Remove(sess *session.Session, productID int64) error {
	if !sess.RemoveFromCart(productID) {
		return ErrNotInCart
	}
	return nil
}

// Products resolves the distinct products in the cart. Products deleted
// since they were added are skipped.
func (s *Service) Products(ctx context.Context, sess *session.Session) ([]product.Product, error) {
	ids := sess.CartIDs()
	if len(ids) == 0 {
		return nil, nil
	}
	return s.products.GetProducts(ctx, ids)
}

func (s *Service) Clear(sess *session.Session) {
	sess.ClearCart()
}
