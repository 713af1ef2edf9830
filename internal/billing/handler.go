package billing

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/falconrep/falconrep/internal/customers"
	"github.com/falconrep/falconrep/internal/platform/httpx"
	"github.com/falconrep/falconrep/internal/session"
)

var validate = validator.New()

// Handler serves the cart and order endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	sessions *session.Store
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *session.Store) *Handler {
	return &Handler{logger: logger, service: service, sessions: sessions}
}

// MountRoutes registers billing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/cart", h.showCart)
	r.Post("/cart/items", h.addItem)
	r.Put("/cart/items/{variantID}", h.updateItem)
	r.Delete("/cart/items/{variantID}", h.removeItem)
	r.Put("/cart/customer", h.setCustomer)
	r.Put("/cart/discount", h.setDiscount)
	r.Delete("/cart", h.clearCart)
	r.Post("/checkout", h.checkout)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.showOrder)
}

type cartView struct {
	Customer     *customers.CustomerRef `json:"customer_id,omitempty"`
	Lines        []Line                 `json:"lines"`
	BillDiscount float64                `json:"bill_discount"`
	Subtotal     float64                `json:"subtotal"`
	Total        float64                `json:"total"`
}

func (h *Handler) cartView() cartView {
	bill := h.service.Bill()
	view := cartView{
		Lines:        bill.Lines(),
		BillDiscount: bill.BillDiscount(),
		Subtotal:     bill.Subtotal(),
		Total:        bill.Total(),
	}
	if ref, ok := bill.Customer(); ok {
		view.Customer = &ref
	}
	if view.Lines == nil {
		view.Lines = []Line{}
	}
	return view
}

func (h *Handler) showCart(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.cartView())
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	var in struct {
		VariantID int64 `json:"variant_id" validate:"required,gt=0"`
		Quantity  int   `json:"quantity" validate:"required,gt=0"`
	}
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := validate.Struct(in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.AddVariant(r.Context(), in.VariantID, in.Quantity); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.cartView())
}

func variantIDFromPath(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "variantID"), 10, 64)
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	variantID, err := variantIDFromPath(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid variant id")
		return
	}
	var in struct {
		Quantity    *int     `json:"quantity,omitempty"`
		CustomPrice *float64 `json:"custom_price,omitempty"`
		ResetPrice  bool     `json:"reset_price,omitempty"`
		DiscountPct *float64 `json:"discount_pct,omitempty"`
	}
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}

	bill := h.service.Bill()
	if in.Quantity != nil {
		if err := bill.SetQuantity(variantID, *in.Quantity); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	if in.CustomPrice != nil || in.ResetPrice {
		price := in.CustomPrice
		if in.ResetPrice {
			price = nil
		}
		if err := bill.SetCustomPrice(variantID, price); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	if in.DiscountPct != nil {
		if err := bill.SetLineDiscount(variantID, *in.DiscountPct); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	httpx.JSON(w, http.StatusOK, h.cartView())
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	variantID, err := variantIDFromPath(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid variant id")
		return
	}
	if err := h.service.Bill().Remove(variantID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.cartView())
}

func (h *Handler) setCustomer(w http.ResponseWriter, r *http.Request) {
	var in struct {
		CustomerID int64 `json:"customer_id" validate:"required"`
	}
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := validate.Struct(in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	h.service.Bill().SetCustomer(customers.RefFromWire(in.CustomerID))
	httpx.JSON(w, http.StatusOK, h.cartView())
}

func (h *Handler) setDiscount(w http.ResponseWriter, r *http.Request) {
	var in struct {
		DiscountPct float64 `json:"discount_pct"`
	}
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.service.Bill().SetBillDiscount(in.DiscountPct); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.cartView())
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	h.service.Bill().Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	rep, err := h.sessions.Current(r.Context())
	if err != nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	order, err := h.service.Checkout(r.Context(), rep.RepID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

// listOrders serves all stored orders, or today's still-pending bills when
// status=pending is given.
func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	var orders []Order
	var err error
	if r.URL.Query().Get("status") == StatusPending {
		orders, err = h.service.Pending(r.Context())
	} else {
		orders, err = h.service.Orders(r.Context())
	}
	if err != nil {
		h.logger.Error("list orders failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if orders == nil {
		orders = []Order{}
	}
	httpx.JSON(w, http.StatusOK, orders)
}

func (h *Handler) showOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid order id")
		return
	}
	order, err := h.service.Order(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}
