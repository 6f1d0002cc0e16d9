package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/andreasstove999/shop-service-go/internal/order"
)

// OrderService is the collaborator contract the transport depends on: a call
// that returns either a committed order or one of the typed order errors.
type OrderService interface {
	Create(ctx context.Context, req order.CreateRequest) (*order.Order, error)
	GetByID(ctx context.Context, id string) (*order.Order, error)
	List(ctx context.Context) ([]order.Order, error)
}

type OrderHandler struct {
	svc OrderService
}

func NewOrderHandler(svc OrderService) *OrderHandler {
	return &OrderHandler{svc: svc}
}

func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req order.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad-input", "invalid JSON body")
		return
	}

	o, err := h.svc.Create(r.Context(), req)
	if err != nil {
		writeOrderError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, o)
}

func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	o, err := h.svc.GetByID(r.Context(), orderID)
	if err != nil {
		writeOrderError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to load orders")
		return
	}
	if orders == nil {
		orders = []order.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

// writeOrderError translates the typed order errors into stable status codes
// so clients can tell "retry is safe" (conflict, timeout) from "request must
// change" (bad-input, not-found, insufficient-stock).
func writeOrderError(w http.ResponseWriter, err error) {
	var (
		vErr     *order.ValidationError
		nfErr    *order.NotFoundError
		stockErr *order.InsufficientStockError
	)
	switch {
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusBadRequest, apiError{
			Code:    "bad-input",
			Message: vErr.Message,
		})
	case errors.As(err, &nfErr):
		writeJSON(w, http.StatusNotFound, apiError{
			Code:    "not-found",
			Message: nfErr.Error(),
			Entity:  nfErr.Entity,
			ID:      nfErr.ID,
		})
	case errors.As(err, &stockErr):
		writeJSON(w, http.StatusConflict, apiError{
			Code:      "insufficient-stock",
			Message:   stockErr.Error(),
			ProductID: stockErr.ProductID,
			Available: &stockErr.Available,
			Requested: &stockErr.Requested,
		})
	case errors.Is(err, order.ErrConflict):
		writeJSON(w, http.StatusConflict, apiError{
			Code:      "conflict",
			Message:   "concurrent transaction conflict",
			Retryable: true,
		})
	case errors.Is(err, order.ErrTimeout):
		writeJSON(w, http.StatusGatewayTimeout, apiError{
			Code:      "timeout",
			Message:   "order transaction timed out",
			Retryable: true,
		})
	default:
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
