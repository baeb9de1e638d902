package httpapi

import (
	"errors"
	"net/http"

	"github.com/R3E-Network/storefront/internal/app/domain/user"
	"github.com/R3E-Network/storefront/internal/app/metrics"
	"github.com/R3E-Network/storefront/internal/app/services/accounts"
	"github.com/R3E-Network/storefront/internal/app/session"
)

func (h *handler) registerForm(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, http.StatusOK, "register", nil, newForm(nil))
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f := newForm(r.PostForm)
	f.Values.Del("password")

	u, err := h.app.Accounts.Register(r.Context(), accounts.Registration{
		Username: r.PostForm.Get("username"),
		Email:    r.PostForm.Get("email"),
		Password: r.PostForm.Get("password"),
		Role:     user.Role(r.PostForm.Get("role")),
	})
	switch {
	case err == nil:
		metrics.RecordRegistration(string(u.Role))
		h.redirect(w, r, "/login", session.FlashSuccess, msgRegistered)
	case errors.Is(err, accounts.ErrDuplicateAccount):
		h.redirect(w, r, "/register", session.FlashDanger, msgDuplicateEmail)
	case f.absorb(err):
		h.flash(r, session.FlashDanger, msgFormInvalid)
		h.renderForm(w, r, http.StatusBadRequest, "register", nil, f)
	default:
		h.fail(w, r, err)
	}
}

func (h *handler) loginForm(w http.ResponseWriter, r *http.Request) {
	f := newForm(nil)
	f.Values.Set("next", safeNext(r.URL.Query().Get("next")))
	h.renderForm(w, r, http.StatusOK, "login", nil, f)
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	u, err := h.app.Accounts.Authenticate(r.Context(), r.PostForm.Get("email"), r.PostForm.Get("password"))
	if err != nil {
		if !errors.Is(err, accounts.ErrInvalidCredentials) {
			h.serverError(w, r, err)
			return
		}
		metrics.RecordLogin(false)
		h.log.WithField("remote", r.RemoteAddr).Info("login failed")
		f := newForm(r.PostForm)
		f.Values.Del("password")
		f.Values.Set("next", safeNext(r.PostForm.Get("next")))
		h.flash(r, session.FlashDanger, msgBadCredentials)
		h.renderForm(w, r, http.StatusOK, "login", nil, f)
		return
	}

	metrics.RecordLogin(true)
	h.signIn(r, u)
	target := safeNext(r.PostForm.Get("next"))
	if target == "" {
		target = "/"
	}
	h.redirect(w, r, target, session.FlashSuccess, msgLoggedIn)
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	sessionFrom(r.Context()).SetUser(0)
	h.redirect(w, r, "/", session.FlashSuccess, msgLoggedOut)
}

func (h *handler) editProfile(w http.ResponseWriter, r *http.Request) {
	u, _ := currentUser(r.Context())
	if r.Method == http.MethodGet {
		f := newForm(nil)
		f.Values.Set("username", u.Username)
		f.Values.Set("email", u.Email)
		h.renderForm(w, r, http.StatusOK, "edit_profile", nil, f)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f := newForm(r.PostForm)
	f.Values.Del("password")
	_, err := h.app.Accounts.UpdateProfile(r.Context(), u.ID, accounts.Profile{
		Username: r.PostForm.Get("username"),
		Email:    r.PostForm.Get("email"),
		Password: r.PostForm.Get("password"),
	})
	switch {
	case err == nil:
		h.redirect(w, r, "/edit_profile", session.FlashSuccess, msgProfileUpdated)
	case errors.Is(err, accounts.ErrDuplicateAccount):
		h.flash(r, session.FlashDanger, msgProfileConflict)
		h.renderForm(w, r, http.StatusConflict, "edit_profile", nil, f)
	case f.absorb(err):
		h.flash(r, session.FlashDanger, msgFormInvalid)
		h.renderForm(w, r, http.StatusBadRequest, "edit_profile", nil, f)
	default:
		h.fail(w, r, err)
	}
}
