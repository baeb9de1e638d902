package httpapi

import (
	"errors"
	"net/http"

	"github.com/R3E-Network/storefront/internal/app/domain/order"
	"github.com/R3E-Network/storefront/internal/app/domain/product"
	"github.com/R3E-Network/storefront/internal/app/services/cart"
	"github.com/R3E-Network/storefront/internal/app/services/orders"
	"github.com/R3E-Network/storefront/internal/app/session"
)

type cartPage struct {
	Products []product.Product
	Total    float64
}

type ordersPage struct {
	Orders []order.Order
}

func (h *handler) addToCart(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		h.notFound(w, r)
		return
	}
	if _, err := h.app.Cart.Add(r.Context(), sessionFrom(r.Context()), id); err != nil {
		h.fail(w, r, err)
		return
	}
	h.redirect(w, r, "/cart", session.FlashSuccess, msgAddedToCart)
}

func (h *handler) removeFromCart(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		h.notFound(w, r)
		return
	}
	if err := h.app.Cart.Remove(sessionFrom(r.Context()), id); err != nil {
		if errors.Is(err, cart.ErrNotInCart) {
			h.redirect(w, r, "/cart", session.FlashDanger, msgNotInCart)
			return
		}
		h.serverError(w, r, err)
		return
	}
	h.redirect(w, r, "/cart", session.FlashSuccess, msgRemovedFromCart)
}

func (h *handler) cart(w http.ResponseWriter, r *http.Request) {
	products, err := h.app.Cart.Products(r.Context(), sessionFrom(r.Context()))
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "cart", newCartPage(products))
}

func (h *handler) checkout(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	buyer, _ := currentUser(r.Context())
	products, err := h.app.Cart.Products(r.Context(), sess)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if len(products) == 0 {
		h.redirect(w, r, "/cart", session.FlashWarning, msgCartEmpty)
		return
	}
	page := newCartPage(products)

	if r.Method == http.MethodGet {
		f := newForm(nil)
		f.Values.Set("email", buyer.Email)
		h.renderForm(w, r, http.StatusOK, "checkout", page, f)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	_, err = h.app.Orders.Checkout(r.Context(), buyer, sess.CartIDs(), orders.Details{
		Size:    r.PostForm.Get("size"),
		Address: r.PostForm.Get("address"),
		Phone:   r.PostForm.Get("phone"),
		Email:   r.PostForm.Get("email"),
	})
	f := newForm(r.PostForm)
	switch {
	case err == nil:
		h.app.Cart.Clear(sess)
		h.redirect(w, r, "/my_orders", session.FlashSuccess, msgOrderPlaced)
	case errors.Is(err, orders.ErrConfirmationNotSent):
		h.app.Cart.Clear(sess)
		h.redirect(w, r, "/my_orders", session.FlashWarning, msgOrderNoEmail)
	case errors.Is(err, orders.ErrEmptyCart):
		h.redirect(w, r, "/cart", session.FlashWarning, msgCartEmpty)
	case f.absorb(err):
		h.flash(r, session.FlashDanger, msgFormInvalid)
		h.renderForm(w, r, http.StatusBadRequest, "checkout", page, f)
	default:
		h.fail(w, r, err)
	}
}

func (h *handler) myOrders(w http.ResponseWriter, r *http.Request) {
	u, _ := currentUser(r.Context())
	list, err := h.app.Orders.ListForUser(r.Context(), u.ID)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "my_orders", ordersPage{Orders: list})
}

func (h *handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		h.notFound(w, r)
		return
	}
	u, _ := currentUser(r.Context())
	err := h.app.Orders.Cancel(r.Context(), u, id)
	switch {
	case err == nil:
		h.redirect(w, r, "/my_orders", session.FlashSuccess, msgOrderCancelled)
	case errors.Is(err, orders.ErrNotOwner):
		h.redirect(w, r, "/my_orders", session.FlashDanger, msgCancelForbidden)
	default:
		h.fail(w, r, err)
	}
}

func (h *handler) buyerDashboard(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "buyer_dashboard", nil)
}

func newCartPage(products []product.Product) cartPage {
	page := cartPage{Products: products}
	for _, p := range products {
		page.Total += p.Price
	}
	return page
}
