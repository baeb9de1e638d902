package httpapi

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"golang.org/x/crypto/bcrypt"

	app "github.com/R3E-Network/storefront/internal/app"
	"github.com/R3E-Network/storefront/internal/app/domain/product"
	"github.com/R3E-Network/storefront/internal/app/domain/user"
	"github.com/R3E-Network/storefront/internal/app/mail"
	"github.com/R3E-Network/storefront/internal/app/services/accounts"
	"github.com/R3E-Network/storefront/internal/app/session"
	"github.com/R3E-Network/storefront/internal/app/storage"
	"github.com/R3E-Network/storefront/internal/app/storage/memory"
	"github.com/R3E-Network/storefront/internal/app/uploads"
	"github.com/R3E-Network/storefront/pkg/logger"
	"github.com/R3E-Network/storefront/pkg/testutil"
)

const testPassword = "secret-pass"

var pngBytes = testutil.PNG()

type fixture struct {
	t      *testing.T
	app    *app.Application
	store  *memory.Store
	mailer *mail.Recorder
	audit  *AuditLog
	server *httptest.Server
}

func newFixture(t *testing.T, tweak ...func(*app.Options)) *fixture {
	t.Helper()
	up, err := uploads.New(t.TempDir(), 1<<20)
	require.NoError(t, err)

	store := memory.New()
	rec := &mail.Recorder{}
	opts := app.Options{
		Mailer:     rec,
		MailSender: "shop@example.com",
		Uploads:    up,
		HashCost:   bcrypt.MinCost,
		LoginRate:  1000,
		LoginBurst: 1000,
	}
	for _, fn := range tweak {
		fn(&opts)
	}
	application, err := app.New(app.Stores{Users: store, Products: store, Orders: store}, opts, logger.Discard())
	require.NoError(t, err)

	audit := NewAuditLog(20, nil)
	handler, err := NewHandler(application, Options{
		Codec: session.NewCodec("handler-test-secret-key", time.Hour, false),
		Log:   logger.Discard(),
		Audit: audit,
	})
	require.NoError(t, err)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &fixture{t: t, app: application, store: store, mailer: rec, audit: audit, server: srv}
}

func (f *fixture) user(name string, role user.Role) user.User {
	f.t.Helper()
	ctx := context.Background()
	if role == user.RoleAdmin {
		u, _, err := f.app.Accounts.EnsureAdmin(ctx, name, name+"@example.com", testPassword)
		require.NoError(f.t, err)
		return u
	}
	u, err := f.app.Accounts.Register(ctx, accounts.Registration{
		Username: name,
		Email:    name + "@example.com",
		Password: testPassword,
		Role:     role,
	})
	require.NoError(f.t, err)
	return u
}

func (f *fixture) product(seller user.User, name string) product.Product {
	f.t.Helper()
	p, err := f.store.CreateProduct(context.Background(), product.Product{
		Name:             name,
		ShortDescription: name + " short",
		LongDescription:  name + " long",
		Price:            1500,
		Category:         "Футболки",
		ImageURL:         "tshirts/tshirt1.png",
		SellerID:         seller.ID,
	})
	require.NoError(f.t, err)
	return p
}

// browser keeps cookies and never follows redirects.
type browser struct {
	f      *fixture
	client *http.Client
}

type page struct {
	status   int
	location string
	body     string
}

func (f *fixture) browser() *browser {
	jar, err := cookiejar.New(nil)
	require.NoError(f.t, err)
	return &browser{f: f, client: &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}}
}

func (b *browser) do(req *http.Request) page {
	b.f.t.Helper()
	resp, err := b.client.Do(req)
	require.NoError(b.f.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(b.f.t, err)
	return page{status: resp.StatusCode, location: resp.Header.Get("Location"), body: string(body)}
}

func (b *browser) get(path string) page {
	b.f.t.Helper()
	req, err := http.NewRequest(http.MethodGet, b.f.server.URL+path, nil)
	require.NoError(b.f.t, err)
	return b.do(req)
}

func (b *browser) post(path string, values url.Values) page {
	b.f.t.Helper()
	req, err := http.NewRequest(http.MethodPost, b.f.server.URL+path, strings.NewReader(values.Encode()))
	require.NoError(b.f.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func (b *browser) postMultipart(path string, values url.Values, filename string, file []byte) page {
	b.f.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, vs := range values {
		for _, v := range vs {
			require.NoError(b.f.t, mw.WriteField(k, v))
		}
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("image", filename)
		require.NoError(b.f.t, err)
		_, err = fw.Write(file)
		require.NoError(b.f.t, err)
	}
	require.NoError(b.f.t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, b.f.server.URL+path, &buf)
	require.NoError(b.f.t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return b.do(req)
}

func (b *browser) login(u user.User) {
	b.f.t.Helper()
	res := b.post("/login", url.Values{"email": {u.Email}, "password": {testPassword}})
	require.Equal(b.f.t, http.StatusFound, res.status, res.body)
	require.Equal(b.f.t, "/", res.location)
}

func withID(format string, id int64) string {
	return strings.Replace(format, "{id}", strconv.FormatInt(id, 10), 1)
}

func TestRegisterLoginLogout(t *testing.T) {
	f := newFixture(t)
	b := f.browser()

	res := b.get("/register")
	require.Equal(t, http.StatusOK, res.status)

	res = b.post("/register", url.Values{
		"username": {"ivan"},
		"email":    {"Ivan@Example.com"},
		"password": {testPassword},
		"role":     {"buyer"},
	})
	require.Equal(t, http.StatusFound, res.status)
	require.Equal(t, "/login", res.location)
	assert.Contains(t, b.get("/login").body, msgRegistered)

	res = b.post("/register", url.Values{
		"username": {"ivan2"},
		"email":    {"ivan@example.com"},
		"password": {testPassword},
		"role":     {"buyer"},
	})
	require.Equal(t, http.StatusFound, res.status)
	require.Equal(t, "/register", res.location)
	assert.Contains(t, b.get("/register").body, msgDuplicateEmail)

	res = b.post("/login", url.Values{"email": {"ivan@example.com"}, "password": {"wrong"}})
	require.Equal(t, http.StatusOK, res.status)
	assert.Contains(t, res.body, msgBadCredentials)

	res = b.post("/login", url.Values{"email": {"ivan@example.com"}, "password": {testPassword}})
	require.Equal(t, http.StatusFound, res.status)
	home := b.get("/")
	assert.Contains(t, home.body, msgLoggedIn)
	assert.Contains(t, home.body, "ivan")
	assert.Contains(t, home.body, "/logout")

	res = b.get("/logout")
	require.Equal(t, http.StatusFound, res.status)
	home = b.get("/")
	assert.Contains(t, home.body, msgLoggedOut)
	assert.NotContains(t, home.body, "/logout")
}

func TestRegisteredAccountCanSignIn(t *testing.T) {
	f := newFixture(t)
	b := f.browser()

	res := b.post("/register", url.Values{
		"username": {"olga"},
		"email":    {"olga@example.com"},
		"password": {testPassword},
		"role":     {"seller"},
	})
	require.Equal(t, http.StatusFound, res.status, res.body)

	u, err := f.app.Accounts.Authenticate(context.Background(), "olga@example.com", testPassword)
	require.NoError(t, err)
	assert.Equal(t, user.RoleSeller, u.Role)
	b.login(u)
}

func TestEditProfileChangesPassword(t *testing.T) {
	f := newFixture(t)
	buyer := f.user("buyer", user.RoleBuyer)
	b := f.browser()
	b.login(buyer)

	res := b.post("/edit_profile", url.Values{
		"username": {"buyer-renamed"},
		"email":    {buyer.Email},
		"password": {"brand-new-pass"},
	})
	require.Equal(t, http.StatusFound, res.status, res.body)
	assert.Equal(t, "/edit_profile", res.location)
	page := b.get("/edit_profile")
	assert.Contains(t, page.body, msgProfileUpdated)
	assert.NotContains(t, page.body, "brand-new-pass")

	ctx := context.Background()
	_, err := f.app.Accounts.Authenticate(ctx, buyer.Email, testPassword)
	assert.ErrorIs(t, err, accounts.ErrInvalidCredentials)
	u, err := f.app.Accounts.Authenticate(ctx, buyer.Email, "brand-new-pass")
	require.NoError(t, err)
	assert.Equal(t, "buyer-renamed", u.Username)

	// A blank password keeps the current one.
	res = b.post("/edit_profile", url.Values{"username": {"buyer-renamed"}, "email": {buyer.Email}})
	require.Equal(t, http.StatusFound, res.status, res.body)
	_, err = f.app.Accounts.Authenticate(ctx, buyer.Email, "brand-new-pass")
	require.NoError(t, err)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	b := f.browser()

	res := b.post("/register", url.Values{
		"username": {"ivan"},
		"email":    {"not-an-email"},
		"password": {testPassword},
		"role":     {"admin"},
	})
	require.Equal(t, http.StatusBadRequest, res.status)
	assert.Contains(t, res.body, "Некорректный email.")
	assert.Contains(t, res.body, "Недопустимое значение.")
	assert.Contains(t, res.body, `value="ivan"`)
	assert.NotContains(t, res.body, testPassword)
}

func TestLoginRequiredRedirect(t *testing.T) {
	f := newFixture(t)
	buyer := f.user("buyer", user.RoleBuyer)
	b := f.browser()

	res := b.get("/cart")
	require.Equal(t, http.StatusFound, res.status)
	assert.Equal(t, "/login?next=%2Fcart", res.location)

	form := b.get(res.location)
	assert.Contains(t, form.body, msgLoginRequired)
	assert.Contains(t, form.body, `value="/cart"`)

	res = b.post("/login", url.Values{"email": {buyer.Email}, "password": {testPassword}, "next": {"/cart"}})
	require.Equal(t, http.StatusFound, res.status)
	assert.Equal(t, "/cart", res.location)

	other := f.browser()
	res = other.post("/login", url.Values{"email": {buyer.Email}, "password": {testPassword}, "next": {"//evil.example"}})
	require.Equal(t, http.StatusFound, res.status)
	assert.Equal(t, "/", res.location)
}

func TestRoleGuards(t *testing.T) {
	f := newFixture(t)
	buyer := f.user("buyer", user.RoleBuyer)
	seller := f.user("seller", user.RoleSeller)

	b := f.browser()
	b.login(buyer)
	for _, p := range []string{"/seller_dashboard", "/my_products", "/admin_dashboard"} {
		res := b.get(p)
		require.Equal(t, http.StatusFound, res.status, p)
		assert.Equal(t, "/", res.location, p)
	}
	assert.Contains(t, b.get("/").body, msgNoAccess)

	s := f.browser()
	s.login(seller)
	res := s.get("/my_orders")
	require.Equal(t, http.StatusFound, res.status)
	assert.Equal(t, http.StatusOK, s.get("/seller_dashboard").status)
	assert.Equal(t, http.StatusOK, b.get("/buyer_dashboard").status)
}

func TestStorefrontAndSearch(t *testing.T) {
	f := newFixture(t)
	seller := f.user("seller", user.RoleSeller)
	other := f.user("other", user.RoleSeller)
	f.product(seller, "Красная футболка")
	f.product(other, "Синяя футболка")

	anon := f.browser()
	home := anon.get("/")
	require.Equal(t, http.StatusOK, home.status)
	assert.Contains(t, home.body, "Красная футболка")
	assert.Contains(t, home.body, "Синяя футболка")
	assert.Contains(t, home.body, "1500,00 ₽")

	s := f.browser()
	s.login(seller)
	home = s.get("/")
	assert.Contains(t, home.body, "Красная футболка")
	assert.NotContains(t, home.body, "Синяя футболка")

	res := anon.get("/search?q=" + url.QueryEscape("СИНЯЯ"))
	require.Equal(t, http.StatusOK, res.status)
	assert.Contains(t, res.body, "Синяя футболка")
	assert.NotContains(t, res.body, "Красная футболка")
}

func TestProductDetailNotFound(t *testing.T) {
	f := newFixture(t)
	b := f.browser()

	res := b.get("/product/999")
	require.Equal(t, http.StatusNotFound, res.status)
	assert.Contains(t, res.body, msgNotFound)

	res = b.get("/no/such/page")
	require.Equal(t, http.StatusNotFound, res.status)
	assert.Contains(t, res.body, msgNotFound)
}

func TestCartAndCheckout(t *testing.T) {
	f := newFixture(t)
	seller := f.user("seller", user.RoleSeller)
	buyer := f.user("buyer", user.RoleBuyer)
	shirt := f.product(seller, "Футболка")
	belt := f.product(seller, "Ремень")

	b := f.browser()
	b.login(buyer)

	res := b.get("/checkout")
	require.Equal(t, http.StatusFound, res.status)
	assert.Equal(t, "/cart", res.location)

	for _, id := range []int64{shirt.ID, shirt.ID, belt.ID} {
		res = b.post(withID("/add_to_cart/{id}", id), nil)
		require.Equal(t, http.StatusFound, res.status)
		assert.Equal(t, "/cart", res.location)
	}
	cartPage := b.get("/cart")
	require.Equal(t, http.StatusOK, cartPage.status)
	assert.Contains(t, cartPage.body, msgAddedToCart)
	assert.Contains(t, cartPage.body, "Корзина (3)")
	assert.Contains(t, cartPage.body, "3000,00 ₽")

	res = b.post("/add_to_cart/999", nil)
	assert.Equal(t, http.StatusNotFound, res.status)
	assert.Contains(t, b.get("/cart").body, "Корзина (3)")

	res = b.get(withID("/remove_from_cart/{id}", shirt.ID))
	require.Equal(t, http.StatusFound, res.status)
	assert.Contains(t, b.get("/cart").body, msgRemovedFromCart)
	res = b.get("/remove_from_cart/999")
	require.Equal(t, http.StatusFound, res.status)
	assert.Contains(t, b.get("/cart").body, msgNotInCart)

	form := b.get("/checkout")
	require.Equal(t, http.StatusOK, form.status)
	assert.Contains(t, form.body, `value="buyer@example.com"`)

	res = b.post("/checkout", url.Values{"size": {"M"}, "address": {""}, "phone": {"+7 900"}, "email": {"buyer@example.com"}})
	require.Equal(t, http.StatusBadRequest, res.status)
	assert.Contains(t, res.body, "Обязательное поле.")

	res = b.post("/checkout", url.Values{"size": {"M"}, "address": {"Москва, ул. Ленина 1"}, "phone": {"+7 900"}, "email": {"buyer@example.com"}})
	require.Equal(t, http.StatusFound, res.status)
	assert.Equal(t, "/my_orders", res.location)

	msgs := f.mailer.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, []string{"buyer@example.com"}, msgs[0].To)
	assert.Equal(t, "Подтверждение заказа", msgs[0].Subject)
	assert.Contains(t, msgs[0].Body, "Москва, ул. Ленина 1")

	orders := b.get("/my_orders")
	require.Equal(t, http.StatusOK, orders.status)
	assert.Contains(t, orders.body, msgOrderPlaced)
	assert.Contains(t, orders.body, "Футболка")
	assert.Contains(t, orders.body, "Ремень")
	assert.Contains(t, orders.body, "Корзина (0)")

	placed, err := f.store.ListOrdersByUser(context.Background(), buyer.ID)
	require.NoError(t, err)
	require.Len(t, placed, 2)
}

func TestCheckoutMailFailureKeepsOrders(t *testing.T) {
	f := newFixture(t)
	seller := f.user("seller", user.RoleSeller)
	buyer := f.user("buyer", user.RoleBuyer)
	shirt := f.product(seller, "Футболка")
	f.mailer.Err = errors.New("smtp down")

	b := f.browser()
	b.login(buyer)
	b.post(withID("/add_to_cart/{id}", shirt.ID), nil)

	res := b.post("/checkout", url.Values{"size": {"L"}, "address": {"Казань"}, "phone": {"123"}, "email": {"buyer@example.com"}})
	require.Equal(t, http.StatusFound, res.status)
	assert.Equal(t, "/my_orders", res.location)
	assert.Contains(t, b.get("/my_orders").body, msgOrderNoEmail)

	placed, err := f.store.ListOrdersByUser(context.Background(), buyer.ID)
	require.NoError(t, err)
	assert.Len(t, placed, 1)
}

func TestCancelOrder(t *testing.T) {
	f := newFixture(t)
	seller := f.user("seller", user.RoleSeller)
	buyer := f.user("buyer", user.RoleBuyer)
	intruder := f.user("intruder", user.RoleBuyer)
	shirt := f.product(seller, "Футболка")

	b := f.browser()
	b.login(buyer)
	b.post(withID("/add_to_cart/{id}", shirt.ID), nil)
	b.post("/checkout", url.Values{"size": {"L"}, "address": {"Казань"}, "phone": {"123"}, "email": {"buyer@example.com"}})
	placed, err := f.store.ListOrdersByUser(context.Background(), buyer.ID)
	require.NoError(t, err)
	require.Len(t, placed, 1)
	orderID := placed[0].ID

	x := f.browser()
	x.login(intruder)
	res := x.post(withID("/cancel_order/{id}", orderID), nil)
	require.Equal(t, http.StatusFound, res.status)
	assert.Contains(t, x.get("/my_orders").body, msgCancelForbidden)

	res = b.post(withID("/cancel_order/{id}", orderID), nil)
	require.Equal(t, http.StatusFound, res.status)
	assert.Contains(t, b.get("/my_orders").body, msgOrderCancelled)

	res = b.post(withID("/cancel_order/{id}", orderID), nil)
	assert.Equal(t, http.StatusNotFound, res.status)
}

func TestSellerProductLifecycle(t *testing.T) {
	f := newFixture(t)
	seller := f.user("seller", user.RoleSeller)
	rival := f.user("rival", user.RoleSeller)

	s := f.browser()
	s.login(seller)

	form := s.get("/add_product/" + url.PathEscape("Футболки"))
	require.Equal(t, http.StatusOK, form.status)
	assert.Equal(t, http.StatusNotFound, s.get("/add_product/unknown").status)

	fields := url.Values{
		"name":              {"Новая футболка"},
		"short_description": {"Хлопок"},
		"long_description":  {"Стопроцентный хлопок"},
		"price":             {"999,50"},
	}
	res := s.postMultipart("/add_product/"+url.PathEscape("Футболки"), fields, "", nil)
	require.Equal(t, http.StatusBadRequest, res.status)

	res = s.postMultipart("/add_product/"+url.PathEscape("Футболки"), fields, "notes.txt", []byte("plain text"))
	require.Equal(t, http.StatusBadRequest, res.status)
	assert.Contains(t, res.body, msgImageUnsupported)

	res = s.postMultipart("/add_product/"+url.PathEscape("Футболки"), fields, "new shirt.png", pngBytes)
	require.Equal(t, http.StatusFound, res.status, res.body)
	assert.Equal(t, "/", res.location)

	mine, err := f.app.Catalog.ListBySeller(context.Background(), seller.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	p := mine[0]
	assert.Equal(t, 999.5, p.Price)
	assert.Equal(t, "new_shirt.png", p.ImageURL)

	img := s.get("/uploads/" + p.ImageURL)
	require.Equal(t, http.StatusOK, img.status)
	assert.Equal(t, string(pngBytes), img.body)

	r := f.browser()
	r.login(rival)
	res = r.get(withID("/edit_product/{id}", p.ID))
	require.Equal(t, http.StatusFound, res.status)
	assert.Contains(t, r.get("/my_products").body, msgEditForbidden)
	res = r.post(withID("/delete_product/{id}", p.ID), nil)
	require.Equal(t, http.StatusFound, res.status)
	assert.Contains(t, r.get("/my_products").body, msgDeleteForbidden)

	edit := s.get(withID("/edit_product/{id}", p.ID))
	require.Equal(t, http.StatusOK, edit.status)
	assert.Contains(t, edit.body, `value="999.5"`)

	fields.Set("name", "Обновлённая футболка")
	fields.Set("price", "1200")
	res = s.postMultipart(withID("/edit_product/{id}", p.ID), fields, "", nil)
	require.Equal(t, http.StatusFound, res.status, res.body)
	updated, err := f.app.Catalog.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Обновлённая футболка", updated.Name)
	assert.Equal(t, p.ImageURL, updated.ImageURL)

	res = s.post(withID("/delete_product/{id}", p.ID), nil)
	require.Equal(t, http.StatusFound, res.status)
	assert.Contains(t, s.get("/my_products").body, msgProductDeleted)
	_, err = f.app.Catalog.Get(context.Background(), p.ID)
	assert.Error(t, err)
}

func TestAdminActionsAreAudited(t *testing.T) {
	f := newFixture(t)
	admin := f.user("admin", user.RoleAdmin)
	buyer := f.user("buyer", user.RoleBuyer)
	seller := f.user("seller", user.RoleSeller)
	shirt := f.product(seller, "Футболка")

	a := f.browser()
	a.login(admin)

	dash := a.get("/admin_dashboard")
	require.Equal(t, http.StatusOK, dash.status)
	assert.Contains(t, dash.body, "buyer@example.com")
	assert.Contains(t, dash.body, "Футболка")

	edit := a.get(withID("/edit_user/{id}", buyer.ID))
	require.Equal(t, http.StatusOK, edit.status)
	res := a.post(withID("/edit_user/{id}", buyer.ID), url.Values{
		"username": {"buyer"},
		"email":    {"buyer@example.com"},
		"role":     {"seller"},
	})
	require.Equal(t, http.StatusFound, res.status)
	assert.Equal(t, "/admin_dashboard", res.location)
	promoted, err := f.app.Accounts.Get(context.Background(), buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, user.RoleSeller, promoted.Role)

	res = a.get(withID("/delete_user/{id}", admin.ID))
	require.Equal(t, http.StatusFound, res.status)
	assert.Contains(t, a.get("/admin_dashboard").body, msgCannotDeleteSelf)

	res = a.get(withID("/admin_delete_product/{id}", shirt.ID))
	require.Equal(t, http.StatusFound, res.status)
	res = a.get(withID("/delete_user/{id}", buyer.ID))
	require.Equal(t, http.StatusFound, res.status)
	dash = a.get("/admin_dashboard")
	assert.Contains(t, dash.body, msgUserDeleted)
	assert.NotContains(t, dash.body, "buyer@example.com")

	entries := f.audit.Recent(10)
	require.Len(t, entries, 4)
	assert.Equal(t, "delete_user", entries[0].Action)
	assert.Equal(t, strconv.FormatInt(buyer.ID, 10), entries[0].Target)
	assert.Equal(t, "delete_product", entries[1].Action)
	assert.Equal(t, "edit_user", entries[3].Action)
	assert.Equal(t, admin.ID, entries[3].UserID)
	assert.Equal(t, http.StatusFound, entries[3].Status)
}

func TestDeletedUserSessionIsDropped(t *testing.T) {
	f := newFixture(t)
	buyer := f.user("buyer", user.RoleBuyer)
	b := f.browser()
	b.login(buyer)

	require.NoError(t, f.app.Accounts.Delete(context.Background(), buyer.ID))
	res := b.get("/cart")
	require.Equal(t, http.StatusFound, res.status)
	assert.True(t, strings.HasPrefix(res.location, "/login"))
}

func TestTamperedCookieStartsFreshSession(t *testing.T) {
	f := newFixture(t)
	b := f.browser()
	u, err := url.Parse(f.server.URL)
	require.NoError(t, err)
	b.client.Jar.SetCookies(u, []*http.Cookie{{Name: session.CookieName, Value: "garbage", Path: "/"}})

	res := b.get("/cart")
	require.Equal(t, http.StatusFound, res.status)
	assert.True(t, strings.HasPrefix(res.location, "/login"))
}

func TestLoginRateLimited(t *testing.T) {
	f := newFixture(t, func(o *app.Options) {
		o.LoginRate = 0.001
		o.LoginBurst = 2
	})
	b := f.browser()
	for i := 0; i < 2; i++ {
		res := b.post("/login", url.Values{"email": {"x@example.com"}, "password": {"nope"}})
		require.Equal(t, http.StatusOK, res.status)
	}
	res := b.post("/login", url.Values{"email": {"x@example.com"}, "password": {"nope"}})
	require.Equal(t, http.StatusTooManyRequests, res.status)
	assert.Contains(t, res.body, msgTooManyRequests)
	assert.Equal(t, http.StatusOK, b.get("/login").status)
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	b := f.browser()

	res := b.get("/healthz")
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "ok", gjson.Get(res.body, "status").String())
	var names []string
	for _, v := range gjson.Get(res.body, "services").Array() {
		names = append(names, v.String())
	}
	assert.Equal(t, []string{"janitor"}, names)
}

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealthzDegraded(t *testing.T) {
	f := newFixture(t, func(o *app.Options) {
		o.HealthChecks = map[string]storage.Pinger{"database": downPinger{}}
	})

	res := f.browser().get("/healthz")
	require.Equal(t, http.StatusServiceUnavailable, res.status)
	assert.Equal(t, "degraded", gjson.Get(res.body, "status").String())
	assert.Equal(t, "down", gjson.Get(res.body, "checks.database.status").String())
	assert.Equal(t, "connection refused", gjson.Get(res.body, "checks.database.error").String())
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t)
	req, err := http.NewRequest(http.MethodDelete, f.server.URL+"/cart", nil)
	require.NoError(t, err)
	res := f.browser().do(req)
	assert.Equal(t, http.StatusMethodNotAllowed, res.status)
}
