package httpapi

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/R3E-Network/storefront/internal/app/domain/user"
	"github.com/R3E-Network/storefront/internal/app/session"
	svcerrors "github.com/R3E-Network/storefront/internal/errors"
)

//go:embed templates/*.html
var templateFS embed.FS

// pages holds one template set per page, each combined with the layout.
type pages struct {
	sets map[string]*template.Template
}

var funcs = template.FuncMap{
	"price": func(v float64) string {
		return strings.Replace(fmt.Sprintf("%.2f", v), ".", ",", 1) + " ₽"
	},
	"upload": func(name string) string {
		if name == "" {
			return ""
		}
		return "/uploads/" + (&url.URL{Path: name}).EscapedPath()
	},
	"datetime": func(t time.Time) string {
		if t.IsZero() {
			return "—"
		}
		return t.UTC().Format("02.01.2006 15:04")
	},
	"roleLabel": roleLabel,
	"roles":     user.Roles,
	"bytes":     humanBytes,
}

func loadPages() (*pages, error) {
	layout, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	files, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	p := &pages{sets: make(map[string]*template.Template, len(files))}
	for _, file := range files {
		name := strings.TrimSuffix(path.Base(file), ".html")
		if name == "layout" {
			continue
		}
		set, err := layout.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := set.ParseFS(templateFS, file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		p.sets[name] = set
	}
	return p, nil
}

// view is what every page template receives.
type view struct {
	Title      string
	User       *user.User
	Flashes    []session.Flash
	CartCount  int
	Categories []string
	Query      string
	Form       *form
	Data       interface{}
}

// form carries submitted values and field errors back into a page.
type form struct {
	Values url.Values
	Errors map[string]string
}

// newForm copies values so edits to the echoed form never reach the request.
func newForm(values url.Values) *form {
	copied := make(url.Values, len(values))
	for k, v := range values {
		copied[k] = append([]string(nil), v...)
	}
	return &form{Values: copied, Errors: map[string]string{}}
}

func (f *form) Get(name string) string {
	if f == nil {
		return ""
	}
	return f.Values.Get(name)
}

func (f *form) Error(name string) string {
	if f == nil {
		return ""
	}
	return f.Errors[name]
}

// absorb copies per-field validation messages from err. It reports whether
// err was a validation failure.
func (f *form) absorb(err error) bool {
	se := svcerrors.GetServiceError(err)
	if se == nil || se.Code != svcerrors.CodeValidation {
		return false
	}
	for k, v := range se.Fields {
		f.Errors[k] = v
	}
	return true
}

type errorPage struct {
	Status  int
	Message string
}

var titles = map[string]string{
	"index":            "Главная",
	"register":         "Регистрация",
	"login":            "Вход",
	"edit_profile":     "Профиль",
	"search_results":   "Результаты поиска",
	"product_detail":   "Товар",
	"cart":             "Корзина",
	"checkout":         "Оформление заказа",
	"my_orders":        "Мои заказы",
	"buyer_dashboard":  "Кабинет покупателя",
	"seller_dashboard": "Кабинет продавца",
	"my_products":      "Мои товары",
	"add_product":      "Добавить товар",
	"edit_product":     "Редактировать товар",
	"admin_dashboard":  "Администрирование",
	"edit_user":        "Редактировать пользователя",
	"error":            "Ошибка",
}

func (h *handler) render(w http.ResponseWriter, r *http.Request, status int, name string, data interface{}) {
	h.renderForm(w, r, status, name, data, nil)
}

// renderForm executes page name into a buffer first so template errors
// become a clean 500.
func (h *handler) renderForm(w http.ResponseWriter, r *http.Request, status int, name string, data interface{}, f *form) {
	set, ok := h.pages.sets[name]
	if !ok {
		h.log.WithField("page", name).Error("unknown page")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	v := view{
		Title:      titles[name],
		Categories: h.app.Catalog.Categories(),
		Query:      r.URL.Query().Get("q"),
		Form:       f,
		Data:       data,
	}
	if u, ok := currentUser(r.Context()); ok {
		v.User = &u
	}
	if sess := sessionFrom(r.Context()); sess != nil {
		v.CartCount = len(sess.Cart)
		v.Flashes = sess.PopFlashes()
	}

	var buf bytes.Buffer
	if err := set.ExecuteTemplate(&buf, "layout", v); err != nil {
		h.log.WithError(err).WithField("page", name).Error("render page")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func roleLabel(r user.Role) string {
	switch r {
	case user.RoleBuyer:
		return "Покупатель"
	case user.RoleSeller:
		return "Продавец"
	case user.RoleAdmin:
		return "Администратор"
	}
	return string(r)
}

func humanBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
