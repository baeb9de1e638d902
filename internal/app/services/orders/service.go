package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/R3E-Network/storefront/internal/app/domain/order"
	"github.com/R3E-Network/storefront/internal/app/domain/product"
	"github.com/R3E-Network/storefront/internal/app/domain/user"
	"github.com/R3E-Network/storefront/internal/app/mail"
	"github.com/R3E-Network/storefront/internal/app/metrics"
	"github.com/R3E-Network/storefront/internal/app/storage"
	svcerrors "github.com/R3E-Network/storefront/internal/errors"
	"github.com/R3E-Network/storefront/internal/validation"
	"github.com/R3E-Network/storefront/pkg/logger"
)

var (
	// ErrEmptyCart is returned when checking out a cart with no existing products.
	ErrEmptyCart = errors.New("orders: cart is empty")
	// ErrNotOwner is returned when cancelling someone else's order.
	ErrNotOwner = svcerrors.Forbidden("orders: order belongs to another user")
	// ErrConfirmationNotSent accompanies a successful checkout whose email failed.
	ErrConfirmationNotSent = errors.New("orders: confirmation email not sent")
)

const confirmationSubject = "Подтверждение заказа"

// Details is the checkout form.
type Details struct {
	Size    string `form:"size" validate:"required,max=20"`
	Address string `form:"address" validate:"required,max=200"`
	Phone   string `form:"phone" validate:"required,max=20"`
	Email   string `form:"email" validate:"required,email,max=120"`
}

// Receipt is the outcome of a checkout.
type Receipt struct {
	Orders   []order.Order
	Products []product.Product
}

// Service places and cancels orders.
type Service struct {
	products storage.ProductStore
	orders   storage.OrderStore
	mailer   mail.Sender
	sender   string
	log      *logger.Logger
}

// New constructs an orders service. sender is the From address of confirmation emails.
func New(products storage.ProductStore, orders storage.OrderStore, mailer mail.Sender, sender string, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("orders")
	}
	return &Service{products: products, orders: orders, mailer: mailer, sender: sender, log: log}
}

// Checkout creates one order per distinct product in cart and emails a
// confirmation. When the email fails the orders stand and the returned error
// wraps ErrConfirmationNotSent alongside a populated Receipt.
func (s *Service) Checkout(ctx context.Context, buyer user.User, cart []int64, d Details) (Receipt, error) {
	d = trimDetails(d)

	var products []product.Product
	if len(cart) > 0 {
		var err error
		if products, err = s.products.GetProducts(ctx, cart); err != nil {
			return Receipt{}, err
		}
	}
	if len(products) == 0 {
		return Receipt{}, ErrEmptyCart
	}
	if err := validation.Struct(d); err != nil {
		return Receipt{}, err
	}

	rows := make([]order.Order, 0, len(products))
	for _, p := range products {
		rows = append(rows, order.Order{
			ProductID: p.ID,
			UserID:    buyer.ID,
			Address:   d.Address,
			Phone:     d.Phone,
			Size:      d.Size,
			Email:     d.Email,
		})
	}
	created, err := s.orders.CreateOrders(ctx, rows)
	if err != nil {
		return Receipt{}, fmt.Errorf("create orders: %w", err)
	}
	metrics.RecordCheckout(len(created))
	receipt := Receipt{Orders: created, Products: products}

	log := s.log.WithField("user_id", buyer.ID).WithField("orders", len(created))
	if err := s.sendConfirmation(ctx, d, len(products)); err != nil {
		metrics.RecordOrderEmail(false)
		log.WithError(err).Warn("order confirmation not sent")
		return receipt, fmt.Errorf("%w: %v", ErrConfirmationNotSent, err)
	}
	metrics.RecordOrderEmail(true)
	log.Info("checkout completed")
	return receipt, nil
}

// ConfirmationBody renders the confirmation text for n products.
func ConfirmationBody(n int, d Details) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ваш заказ на %d товаров успешно оформлен.\n\n", n)
	fmt.Fprintf(&b, "Адрес доставки: %s\n", d.Address)
	fmt.Fprintf(&b, "Номер телефона: %s\n", d.Phone)
	fmt.Fprintf(&b, "Размер: %s\n\n", d.Size)
	b.WriteString("Спасибо за ваш заказ!")
	return b.String()
}

func (s *Service) sendConfirmation(ctx context.Context, d Details, n int) error {
	if s.mailer == nil {
		return errors.New("no mail sender configured")
	}
	return s.mailer.Send(ctx, mail.Message{
		From:    s.sender,
		To:      []string{d.Email},
		Subject: confirmationSubject,
		Body:    ConfirmationBody(n, d),
	})
}

func (s *Service) ListForUser(ctx context.Context, userID int64) ([]order.Order, error) {
	return s.orders.ListOrdersByUser(ctx, userID)
}

// Cancel deletes an order owned by actor.
func (s *Service) Cancel(ctx context.Context, actor user.User, orderID int64) error {
	o, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if o.UserID != actor.ID {
		return ErrNotOwner
	}
	if err := s.orders.DeleteOrder(ctx, orderID); err != nil {
		return err
	}
	s.log.WithField("order_id", orderID).WithField("user_id", actor.ID).Info("order cancelled")
	return nil
}

func trimDetails(d Details) Details {
	d.Size = strings.TrimSpace(d.Size)
	d.Address = strings.TrimSpace(d.Address)
	d.Phone = strings.TrimSpace(d.Phone)
	d.Email = strings.TrimSpace(d.Email)
	return d
}
