package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	app "github.com/R3E-Network/storefront/internal/app"
	"github.com/R3E-Network/storefront/internal/app/domain/user"
	"github.com/R3E-Network/storefront/internal/app/metrics"
	"github.com/R3E-Network/storefront/internal/app/session"
	"github.com/R3E-Network/storefront/internal/app/storage"
	svcerrors "github.com/R3E-Network/storefront/internal/errors"
	"github.com/R3E-Network/storefront/internal/middleware"
	"github.com/R3E-Network/storefront/pkg/logger"
)

// Options configures the HTTP surface.
type Options struct {
	Codec *session.Codec
	Log   *logger.Logger
	// Audit records admin actions. Nil keeps an in-memory ring only.
	Audit *AuditLog
	// MaxUploadBytes bounds multipart bodies on product forms.
	MaxUploadBytes int64
}

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app   *app.Application
	codec *session.Codec
	log   *logger.Logger
	audit *AuditLog
	pages *pages

	maxUpload int64
}

// NewHandler returns the storefront router wrapped in recovery and request logging.
func NewHandler(application *app.Application, opts Options) (http.Handler, error) {
	if opts.Codec == nil {
		return nil, fmt.Errorf("session codec is required")
	}
	if opts.Log == nil {
		opts.Log = logger.NewDefault("httpapi")
	}
	if opts.Audit == nil {
		opts.Audit = NewAuditLog(200, nil)
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	tmpl, err := loadPages()
	if err != nil {
		return nil, err
	}
	h := &handler{
		app:       application,
		codec:     opts.Codec,
		log:       opts.Log,
		audit:     opts.Audit,
		pages:     tmpl,
		maxUpload: opts.MaxUploadBytes,
	}

	router := mux.NewRouter()
	router.StrictSlash(false)
	router.Use(metrics.InstrumentHandler)

	router.Handle("/healthz", http.HandlerFunc(h.health)).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	router.PathPrefix("/uploads/").Handler(http.StripPrefix("/uploads/", application.Uploads.Handler())).Methods(http.MethodGet, http.MethodHead)

	site := router.PathPrefix("/").Subrouter()
	site.Use(h.sessions)
	h.routes(site)

	router.NotFoundHandler = h.sessions(http.HandlerFunc(h.notFound))
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return withRequestLogging(router, h.log), nil
}

// withRequestLogging assigns trace ids outside panic recovery so panic
// reports carry the request's trace id.
func withRequestLogging(next http.Handler, log *logger.Logger) http.Handler {
	return middleware.LoggingMiddleware(log)(middleware.Recovery(log)(next))
}

func (h *handler) routes(r *mux.Router) {
	login := middleware.RequireLogin(h.loginRequired)
	role := func(roles ...user.Role) mux.MiddlewareFunc {
		names := make([]string, len(roles))
		for i, ro := range roles {
			names[i] = string(ro)
		}
		return middleware.RequireRole(h.loginRequired, h.forbidden, names...)
	}
	buyer, seller, admin := role(user.RoleBuyer), role(user.RoleSeller), role(user.RoleAdmin)
	limited := h.app.LoginLimiter.Handler
	h.app.LoginLimiter.OnLimited = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.fail(w, r, svcerrors.RateLimited(msgTooManyRequests))
	})

	r.HandleFunc("/", h.index).Methods(http.MethodGet)
	r.HandleFunc("/register", h.registerForm).Methods(http.MethodGet)
	r.Handle("/register", limited(http.HandlerFunc(h.register))).Methods(http.MethodPost)
	r.HandleFunc("/login", h.loginForm).Methods(http.MethodGet)
	r.Handle("/login", limited(http.HandlerFunc(h.login))).Methods(http.MethodPost)
	r.Handle("/logout", login(http.HandlerFunc(h.logout))).Methods(http.MethodGet)
	r.Handle("/edit_profile", login(http.HandlerFunc(h.editProfile))).Methods(http.MethodGet, http.MethodPost)

	r.HandleFunc("/search", h.search).Methods(http.MethodGet)
	r.HandleFunc("/product/{id:[0-9]+}", h.productDetail).Methods(http.MethodGet)

	r.Handle("/add_to_cart/{id:[0-9]+}", login(http.HandlerFunc(h.addToCart))).Methods(http.MethodPost)
	r.Handle("/remove_from_cart/{id:[0-9]+}", login(http.HandlerFunc(h.removeFromCart))).Methods(http.MethodGet)
	r.Handle("/cart", login(http.HandlerFunc(h.cart))).Methods(http.MethodGet)
	r.Handle("/checkout", login(http.HandlerFunc(h.checkout))).Methods(http.MethodGet, http.MethodPost)
	r.Handle("/my_orders", buyer(http.HandlerFunc(h.myOrders))).Methods(http.MethodGet)
	r.Handle("/cancel_order/{id:[0-9]+}", login(http.HandlerFunc(h.cancelOrder))).Methods(http.MethodPost)
	r.Handle("/buyer_dashboard", buyer(http.HandlerFunc(h.buyerDashboard))).Methods(http.MethodGet)

	r.Handle("/seller_dashboard", seller(http.HandlerFunc(h.sellerDashboard))).Methods(http.MethodGet)
	r.Handle("/my_products", seller(http.HandlerFunc(h.myProducts))).Methods(http.MethodGet)
	r.Handle("/add_product/{category}", seller(http.HandlerFunc(h.addProduct))).Methods(http.MethodGet, http.MethodPost)
	r.Handle("/edit_product/{id:[0-9]+}", login(http.HandlerFunc(h.editProduct))).Methods(http.MethodGet, http.MethodPost)
	r.Handle("/delete_product/{id:[0-9]+}", login(http.HandlerFunc(h.deleteProduct))).Methods(http.MethodPost)

	audited := func(action string, next http.HandlerFunc) http.Handler {
		return admin(h.audited(action, next))
	}
	r.Handle("/admin_dashboard", admin(http.HandlerFunc(h.adminDashboard))).Methods(http.MethodGet)
	r.Handle("/edit_user/{id:[0-9]+}", admin(http.HandlerFunc(h.editUserForm))).Methods(http.MethodGet)
	r.Handle("/edit_user/{id:[0-9]+}", audited("edit_user", h.editUser)).Methods(http.MethodPost)
	r.Handle("/delete_user/{id:[0-9]+}", audited("delete_user", h.deleteUser)).Methods(http.MethodGet)
	r.Handle("/admin_delete_product/{id:[0-9]+}", audited("delete_product", h.adminDeleteProduct)).Methods(http.MethodGet)
}

// loginRequired sends anonymous visitors to the login page.
func (h *handler) loginRequired(w http.ResponseWriter, r *http.Request) {
	next := r.URL.RequestURI()
	target := "/login"
	if r.Method == http.MethodGet && next != "/" {
		target += "?next=" + url.QueryEscape(next)
	}
	h.redirect(w, r, target, session.FlashWarning, msgLoginRequired)
}

func (h *handler) forbidden(w http.ResponseWriter, r *http.Request) {
	h.redirect(w, r, "/", session.FlashDanger, msgNoAccess)
}

func (h *handler) tooManyRequests(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Retry-After", "1")
	h.render(w, r, http.StatusTooManyRequests, "error", errorPage{Status: http.StatusTooManyRequests, Message: msgTooManyRequests})
}

func (h *handler) notFound(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusNotFound, "error", errorPage{Status: http.StatusNotFound, Message: msgNotFound})
}

// fail answers with the page matching err's status.
func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		h.notFound(w, r)
		return
	}
	switch svcerrors.StatusOf(err) {
	case http.StatusNotFound:
		h.notFound(w, r)
	case http.StatusForbidden, http.StatusUnauthorized:
		h.forbidden(w, r)
	case http.StatusTooManyRequests:
		h.tooManyRequests(w, r)
	default:
		h.serverError(w, r, err)
	}
}

func (h *handler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	h.log.WithError(err).
		WithField("trace_id", middleware.GetTraceID(r.Context())).
		WithField("path", r.URL.Path).
		Error("request failed")
	h.render(w, r, http.StatusInternalServerError, "error", errorPage{Status: http.StatusInternalServerError, Message: msgServerError})
}

// redirect queues a flash, when message is non-empty, and answers 302.
func (h *handler) redirect(w http.ResponseWriter, r *http.Request, target, category, message string) {
	if message != "" {
		if sess := sessionFrom(r.Context()); sess != nil {
			sess.AddFlash(category, message)
		}
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// flash queues a message shown by the page rendered in this response.
func (h *handler) flash(r *http.Request, category, message string) {
	if sess := sessionFrom(r.Context()); sess != nil {
		sess.AddFlash(category, message)
	}
}

func idParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id, err == nil && id > 0
}

// safeNext accepts only local absolute paths.
func safeNext(raw string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return ""
	}
	return raw
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
