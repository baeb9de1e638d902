package httpapi

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/R3E-Network/storefront/internal/app/domain/product"
	"github.com/R3E-Network/storefront/internal/app/domain/user"
	"github.com/R3E-Network/storefront/internal/app/services/catalog"
	"github.com/R3E-Network/storefront/internal/app/session"
	"github.com/R3E-Network/storefront/internal/app/uploads"
)

type indexPage struct {
	Sections []catalog.Section
	IsSeller bool
}

type productsPage struct {
	Products []product.Product
}

type productPage struct {
	Product product.Product
}

type productFormPage struct {
	Category string
	Product  product.Product
}

func (h *handler) index(w http.ResponseWriter, r *http.Request) {
	var viewer *user.User
	if u, ok := currentUser(r.Context()); ok {
		viewer = &u
	}
	sections, err := h.app.Catalog.Storefront(r.Context(), viewer)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "index", indexPage{Sections: sections, IsSeller: viewer != nil && viewer.IsSeller()})
}

func (h *handler) search(w http.ResponseWriter, r *http.Request) {
	products, err := h.app.Catalog.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "search_results", productsPage{Products: products})
}

func (h *handler) productDetail(w http.ResponseWriter, r *http.Request) {
	p, ok := h.productOr404(w, r)
	if !ok {
		return
	}
	h.render(w, r, http.StatusOK, "product_detail", productPage{Product: p})
}

func (h *handler) sellerDashboard(w http.ResponseWriter, r *http.Request) {
	h.ownProducts(w, r, "seller_dashboard")
}

func (h *handler) myProducts(w http.ResponseWriter, r *http.Request) {
	h.ownProducts(w, r, "my_products")
}

func (h *handler) ownProducts(w http.ResponseWriter, r *http.Request, page string) {
	u, _ := currentUser(r.Context())
	products, err := h.app.Catalog.ListBySeller(r.Context(), u.ID)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, page, productsPage{Products: products})
}

func (h *handler) addProduct(w http.ResponseWriter, r *http.Request) {
	category := mux.Vars(r)["category"]
	if !h.app.Categories.HasCategory(category) {
		h.notFound(w, r)
		return
	}
	data := productFormPage{Category: category}
	if r.Method == http.MethodGet {
		h.renderForm(w, r, http.StatusOK, "add_product", data, newForm(nil))
		return
	}

	in, img, f, ok := h.parseProductForm(w, r)
	if !ok {
		return
	}
	defer closeImage(img)
	if f != nil {
		h.renderForm(w, r, http.StatusBadRequest, "add_product", data, f)
		return
	}
	seller, _ := currentUser(r.Context())
	_, err := h.app.Catalog.Create(r.Context(), seller, category, in, img)
	if err != nil {
		if f := h.productFormError(r, err); f != nil {
			h.renderForm(w, r, http.StatusBadRequest, "add_product", data, f)
			return
		}
		h.fail(w, r, err)
		return
	}
	h.redirect(w, r, "/", session.FlashSuccess, msgProductAdded)
}

func (h *handler) editProduct(w http.ResponseWriter, r *http.Request) {
	p, ok := h.productOr404(w, r)
	if !ok {
		return
	}
	actor, _ := currentUser(r.Context())
	if p.SellerID != actor.ID {
		h.redirect(w, r, "/my_products", session.FlashDanger, msgEditForbidden)
		return
	}
	data := productFormPage{Category: p.Category, Product: p}
	if r.Method == http.MethodGet {
		f := newForm(nil)
		f.Values.Set("name", p.Name)
		f.Values.Set("short_description", p.ShortDescription)
		f.Values.Set("long_description", p.LongDescription)
		f.Values.Set("price", strconv.FormatFloat(p.Price, 'f', -1, 64))
		h.renderForm(w, r, http.StatusOK, "edit_product", data, f)
		return
	}

	in, img, f, ok := h.parseProductForm(w, r)
	if !ok {
		return
	}
	defer closeImage(img)
	if f != nil {
		h.renderForm(w, r, http.StatusBadRequest, "edit_product", data, f)
		return
	}
	_, err := h.app.Catalog.Update(r.Context(), actor, p.ID, in, img)
	switch {
	case err == nil:
		h.redirect(w, r, "/my_products", session.FlashSuccess, msgProductUpdated)
	case errors.Is(err, catalog.ErrNotOwner):
		h.redirect(w, r, "/my_products", session.FlashDanger, msgEditForbidden)
	default:
		if f := h.productFormError(r, err); f != nil {
			h.renderForm(w, r, http.StatusBadRequest, "edit_product", data, f)
			return
		}
		h.fail(w, r, err)
	}
}

func (h *handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		h.notFound(w, r)
		return
	}
	actor, _ := currentUser(r.Context())
	err := h.app.Catalog.Delete(r.Context(), actor, id)
	switch {
	case err == nil:
		h.redirect(w, r, "/my_products", session.FlashSuccess, msgProductDeleted)
	case errors.Is(err, catalog.ErrNotOwner):
		h.redirect(w, r, "/my_products", session.FlashDanger, msgDeleteForbidden)
	default:
		h.fail(w, r, err)
	}
}

// parseProductForm reads the multipart product form. A non-nil form means
// the price did not parse and the page should be shown again.
func (h *handler) parseProductForm(w http.ResponseWriter, r *http.Request) (catalog.Input, *catalog.Image, *form, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+1<<20)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			f := newForm(nil)
			f.Errors["image"] = msgImageTooLarge
			h.flash(r, session.FlashDanger, msgFormInvalid)
			return catalog.Input{}, nil, f, true
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return catalog.Input{}, nil, nil, false
	}

	in := catalog.Input{
		Name:             r.PostFormValue("name"),
		ShortDescription: r.PostFormValue("short_description"),
		LongDescription:  r.PostFormValue("long_description"),
	}
	var img *catalog.Image
	if file, header, err := r.FormFile("image"); err == nil {
		img = &catalog.Image{Filename: header.Filename, Body: file}
	}

	price, err := catalog.ParsePrice(r.PostFormValue("price"))
	if err != nil {
		closeImage(img)
		f := newForm(r.PostForm)
		f.absorb(err)
		h.flash(r, session.FlashDanger, msgFormInvalid)
		return catalog.Input{}, nil, f, true
	}
	in.Price = price
	return in, img, nil, true
}

// productFormError maps create/update failures that belong on the form.
func (h *handler) productFormError(r *http.Request, err error) *form {
	f := newForm(r.PostForm)
	switch {
	case f.absorb(err):
	case errors.Is(err, uploads.ErrTooLarge):
		f.Errors["image"] = msgImageTooLarge
	case errors.Is(err, uploads.ErrUnsupportedType):
		f.Errors["image"] = msgImageUnsupported
	case errors.Is(err, uploads.ErrEmpty):
		f.Errors["image"] = msgImageEmpty
	default:
		return nil
	}
	h.flash(r, session.FlashDanger, msgFormInvalid)
	return f
}

func (h *handler) productOr404(w http.ResponseWriter, r *http.Request) (product.Product, bool) {
	id, ok := idParam(r)
	if !ok {
		h.notFound(w, r)
		return product.Product{}, false
	}
	p, err := h.app.Catalog.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return product.Product{}, false
	}
	return p, true
}

func closeImage(img *catalog.Image) {
	if img == nil {
		return
	}
	if c, ok := img.Body.(multipart.File); ok {
		_ = c.Close()
	}
}
