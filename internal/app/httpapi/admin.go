package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/R3E-Network/storefront/internal/app/domain/product"
	"github.com/R3E-Network/storefront/internal/app/domain/user"
	"github.com/R3E-Network/storefront/internal/app/services/accounts"
	"github.com/R3E-Network/storefront/internal/app/session"
	"github.com/R3E-Network/storefront/internal/app/system"
)

type adminPage struct {
	Users    []user.User
	Products []product.Product
	Audit    []AuditEntry
	Host     system.HostStats
}

type editUserPage struct {
	Target user.User
}

func (h *handler) adminDashboard(w http.ResponseWriter, r *http.Request) {
	users, err := h.app.Accounts.List(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	products, err := h.app.Catalog.ListAll(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "admin_dashboard", adminPage{
		Users:    users,
		Products: products,
		Audit:    h.audit.Recent(50),
		Host:     system.CollectHostStats(r.Context()),
	})
}

func (h *handler) editUserForm(w http.ResponseWriter, r *http.Request) {
	target, ok := h.userOr404(w, r)
	if !ok {
		return
	}
	f := newForm(nil)
	f.Values.Set("username", target.Username)
	f.Values.Set("email", target.Email)
	f.Values.Set("role", string(target.Role))
	h.renderForm(w, r, http.StatusOK, "edit_user", editUserPage{Target: target}, f)
}

func (h *handler) editUser(w http.ResponseWriter, r *http.Request) {
	target, ok := h.userOr404(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f := newForm(r.PostForm)
	_, err := h.app.Accounts.AdminUpdate(r.Context(), target.ID, accounts.AdminEdit{
		Username: r.PostForm.Get("username"),
		Email:    r.PostForm.Get("email"),
		Role:     user.Role(r.PostForm.Get("role")),
	})
	switch {
	case err == nil:
		h.redirect(w, r, "/admin_dashboard", session.FlashSuccess, msgUserUpdated)
	case errors.Is(err, accounts.ErrDuplicateAccount):
		h.flash(r, session.FlashDanger, msgUserConflict)
		h.renderForm(w, r, http.StatusConflict, "edit_user", editUserPage{Target: target}, f)
	case f.absorb(err):
		h.flash(r, session.FlashDanger, msgFormInvalid)
		h.renderForm(w, r, http.StatusBadRequest, "edit_user", editUserPage{Target: target}, f)
	default:
		h.fail(w, r, err)
	}
}

func (h *handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		h.notFound(w, r)
		return
	}
	if actor, _ := currentUser(r.Context()); actor.ID == id {
		h.redirect(w, r, "/admin_dashboard", session.FlashDanger, msgCannotDeleteSelf)
		return
	}
	if err := h.app.Accounts.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	h.redirect(w, r, "/admin_dashboard", session.FlashDanger, msgUserDeleted)
}

func (h *handler) adminDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		h.notFound(w, r)
		return
	}
	if _, err := h.app.Catalog.AdminDelete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	h.redirect(w, r, "/admin_dashboard", session.FlashDanger, msgAdminProductDeleted)
}

func (h *handler) userOr404(w http.ResponseWriter, r *http.Request) (user.User, bool) {
	id, ok := idParam(r)
	if !ok {
		h.notFound(w, r)
		return user.User{}, false
	}
	u, err := h.app.Accounts.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return user.User{}, false
	}
	return u, true
}

func targetLabel(r *http.Request) string {
	id, ok := idParam(r)
	if !ok {
		return ""
	}
	return strconv.FormatInt(id, 10)
}
