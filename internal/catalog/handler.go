package catalog

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/falconrep/falconrep/internal/platform/httpx"
)

// Handler serves the catalog browse endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/categories", h.listCategories)
	r.Get("/categories/{id}/subcategories", h.listSubCategories)
	r.Get("/categories/{id}/products", h.listProductsByCategory)
	r.Get("/subcategories/{id}/products", h.listProductsBySubCategory)
	r.Get("/products/{id}", h.showProduct)
	r.Get("/products", h.listProducts)
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.service.Categories(r.Context())
	if err != nil {
		h.logger.Error("list categories failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, cats)
}

func (h *Handler) listSubCategories(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid category id")
		return
	}
	subs, err := h.service.SubCategories(r.Context(), id)
	if err != nil {
		h.logger.Error("list subcategories failed", slog.Int64("category_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, subs)
}

func (h *Handler) listProductsByCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid category id")
		return
	}
	products, err := h.service.ProductsByMainCategory(r.Context(), id)
	if err != nil {
		h.logger.Error("list products by category failed", slog.Int64("category_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, products)
}

func (h *Handler) listProductsBySubCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid subcategory id")
		return
	}
	products, err := h.service.ProductsBySubCategory(r.Context(), id)
	if err != nil {
		h.logger.Error("list products by subcategory failed", slog.Int64("sub_category_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, products)
}

func (h *Handler) showProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
		return
	}
	product, err := h.service.Product(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

// listProducts serves the full catalog, or a filtered view when a search
// term is given.
func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	var (
		products []Product
		err      error
	)
	if term := r.URL.Query().Get("search"); term != "" {
		products, err = h.service.Search(r.Context(), term)
	} else {
		products, err = h.service.AllProducts(r.Context())
	}
	if err != nil {
		if !errors.Is(err, httpx.ErrValidation) {
			h.logger.Error("list products failed", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, products)
}
