package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/R3E-Network/storefront/internal/app/domain/product"
	"github.com/R3E-Network/storefront/internal/app/domain/user"
	"github.com/R3E-Network/storefront/internal/app/storage"
	"github.com/R3E-Network/storefront/internal/config"
	svcerrors "github.com/R3E-Network/storefront/internal/errors"
	"github.com/R3E-Network/storefront/internal/validation"
	"github.com/R3E-Network/storefront/pkg/logger"
)

var (
	// ErrNotOwner is returned when a seller touches another seller's product.
	ErrNotOwner = svcerrors.Forbidden("catalog: product belongs to another seller")
	// ErrNotSeller is returned when a non-seller tries to list a product.
	ErrNotSeller = svcerrors.Forbidden("catalog: only sellers can add products")
	// ErrUnknownCategory is returned for a category outside the catalog.
	ErrUnknownCategory = svcerrors.NotFound("catalog: unknown category", nil)
)

// ImageStore persists product images.
type ImageStore interface {
	Save(filename string, r io.Reader) (string, error)
	Remove(name string) error
}

// Image is an uploaded file awaiting storage.
type Image struct {
	Filename string
	Body     io.Reader
}

// Input is the product form.
type Input struct {
	Name             string  `form:"name" validate:"required,max=64"`
	ShortDescription string  `form:"short_description" validate:"required,max=128"`
	LongDescription  string  `form:"long_description" validate:"required"`
	Price            float64 `form:"price" validate:"gt=0"`
}

// ParsePrice reads a decimal price, accepting a comma as the separator.
func ParsePrice(raw string) (float64, error) {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	if raw == "" {
		return 0, svcerrors.Validation("Проверьте правильность заполнения формы.").WithField("price", "Обязательное поле.")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, svcerrors.Validation("Проверьте правильность заполнения формы.").WithField("price", "Введите число.")
	}
	return v, nil
}

// Section is one category on the storefront.
type Section struct {
	Category string
	Products []product.Product
}

// Service owns product listings.
type Service struct {
	store   storage.ProductStore
	images  ImageStore
	catalog *config.Catalog
	log     *logger.Logger
}

// New constructs a catalog service.
func New(store storage.ProductStore, images ImageStore, catalog *config.Catalog, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("catalog")
	}
	if catalog == nil {
		catalog = config.DefaultCatalog()
	}
	return &Service{store: store, images: images, catalog: catalog, log: log}
}

// Categories lists the configured categories in display order.
func (s *Service) Categories() []string {
	return append([]string(nil), s.catalog.Categories...)
}

// Storefront groups products by category. Sellers see only their own listings.
func (s *Service) Storefront(ctx context.Context, viewer *user.User) ([]Section, error) {
	var filter product.Filter
	if viewer != nil && viewer.IsSeller() {
		filter.SellerID = viewer.ID
	}
	all, err := s.store.ListProducts(ctx, filter)
	if err != nil {
		return nil, err
	}
	byCategory := make(map[string][]product.Product, len(s.catalog.Categories))
	for _, p := range all {
		byCategory[p.Category] = append(byCategory[p.Category], p)
	}
	sections := make([]Section, 0, len(s.catalog.Categories))
	for _, cat := range s.catalog.Categories {
		sections = append(sections, Section{Category: cat, Products: byCategory[cat]})
	}
	return sections, nil
}

// Search matches q against product names and short descriptions.
func (s *Service) Search(ctx context.Context, q string) ([]product.Product, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, nil
	}
	return s.store.SearchProducts(ctx, q)
}

func (s *Service) Get(ctx context.Context, id int64) (product.Product, error) {
	return s.store.GetProduct(ctx, id)
}

// ByIDs resolves the distinct products behind ids. Unknown ids are skipped.
func (s *Service) ByIDs(ctx context.Context, ids []int64) ([]product.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.store.GetProducts(ctx, ids)
}

func (s *Service) ListBySeller(ctx context.Context, sellerID int64) ([]product.Product, error) {
	return s.store.ListProducts(ctx, product.Filter{SellerID: sellerID})
}

func (s *Service) ListAll(ctx context.Context) ([]product.Product, error) {
	return s.store.ListProducts(ctx, product.Filter{})
}

// Create lists a new product for seller in category.
func (s *Service) Create(ctx context.Context, seller user.User, category string, in Input, img *Image) (product.Product, error) {
	if !seller.IsSeller() {
		return product.Product{}, ErrNotSeller
	}
	if !s.catalog.HasCategory(category) {
		return product.Product{}, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	in = trimInput(in)
	if err := validation.Struct(in); err != nil {
		return product.Product{}, err
	}
	if img == nil || img.Body == nil {
		return product.Product{}, svcerrors.Validation("Проверьте правильность заполнения формы.").WithField("image", "Обязательное поле.")
	}
	name, err := s.saveImage(img)
	if err != nil {
		return product.Product{}, err
	}

	p, err := s.store.CreateProduct(ctx, product.Product{
		Name:             in.Name,
		ShortDescription: in.ShortDescription,
		LongDescription:  in.LongDescription,
		Price:            in.Price,
		Category:         category,
		ImageURL:         name,
		SellerID:         seller.ID,
	})
	if err != nil {
		s.discardImage(name)
		return product.Product{}, err
	}
	s.log.WithField("product_id", p.ID).
		WithField("seller_id", seller.ID).
		WithField("category", category).
		Info("product created")
	return p, nil
}

// Update edits a product owned by actor. A nil img keeps the current image.
func (s *Service) Update(ctx context.Context, actor user.User, id int64, in Input, img *Image) (product.Product, error) {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return product.Product{}, err
	}
	if p.SellerID != actor.ID {
		return product.Product{}, ErrNotOwner
	}
	in = trimInput(in)
	if err := validation.Struct(in); err != nil {
		return product.Product{}, err
	}
	p.Name = in.Name
	p.ShortDescription = in.ShortDescription
	p.LongDescription = in.LongDescription
	p.Price = in.Price

	var stored string
	if img != nil && img.Body != nil {
		if stored, err = s.saveImage(img); err != nil {
			return product.Product{}, err
		}
		p.ImageURL = stored
	}
	p, err = s.store.UpdateProduct(ctx, p)
	if err != nil {
		if stored != "" {
			s.discardImage(stored)
		}
		return product.Product{}, err
	}
	s.log.WithField("product_id", p.ID).Info("product updated")
	return p, nil
}

// Delete removes a product owned by actor.
func (s *Service) Delete(ctx context.Context, actor user.User, id int64) error {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	if p.SellerID != actor.ID {
		return ErrNotOwner
	}
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.log.WithField("product_id", id).Info("product deleted")
	return nil
}

// AdminDelete removes any product.
func (s *Service) AdminDelete(ctx context.Context, id int64) (product.Product, error) {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return product.Product{}, err
	}
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return product.Product{}, err
	}
	s.log.WithField("product_id", id).Info("product deleted by admin")
	return p, nil
}

func (s *Service) saveImage(img *Image) (string, error) {
	if s.images == nil {
		return "", errors.New("catalog: image storage not configured")
	}
	name, err := s.images.Save(img.Filename, img.Body)
	if err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}
	return name, nil
}

func (s *Service) discardImage(name string) {
	if err := s.images.Remove(name); err != nil {
		s.log.WithError(err).WithField("image", name).Warn("remove orphaned image")
	}
}

func trimInput(in Input) Input {
	in.Name = strings.TrimSpace(in.Name)
	in.ShortDescription = strings.TrimSpace(in.ShortDescription)
	in.LongDescription = strings.TrimSpace(in.LongDescription)
	return in
}
