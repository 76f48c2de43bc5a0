package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"foodorder/internal/model"
	"foodorder/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// keepAliveInterval is how often an idle event stream sends a comment line.
const keepAliveInterval = 15 * time.Second

// PlaceOrderResponse is returned when an order has been placed.
type PlaceOrderResponse struct {
	Order *model.Order `json:"order"`
	// Warning is set when the order was stored but the cart could not be
	// emptied; clearing the cart again is safe.
	Warning string `json:"warning,omitempty"`
}

// OrderHandler handles order-related HTTP requests.
type OrderHandler struct {
	orders service.OrderService
	carts  service.CartService
	logger zerolog.Logger
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(orders service.OrderService, carts service.CartService, logger zerolog.Logger) *OrderHandler {
	return &OrderHandler{
		orders: orders,
		carts:  carts,
		logger: logger.With().Str("handler", "order").Logger(),
	}
}

// Place handles POST /api/branches/{branchID}/orders requests.
func (h *OrderHandler) Place(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r, h.logger)
	if !ok {
		return
	}

	var req model.PlaceOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}
	if missing := missingContactField(req.Contact); missing != "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeMissingField, "contact "+missing+" is required", h.logger)
		return
	}

	cart, err := h.carts.GetOrCreateCart(r.Context(), p.ID, chi.URLParam(r, "branchID"))
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	order, err := h.orders.PlaceOrder(r.Context(), cart, req.Contact)
	if err != nil {
		if order == nil {
			writeServiceError(w, r, err, h.logger)
			return
		}
		h.logger.Warn().Err(err).Str("order_id", order.ID).Msg("order placed with stale cart")
		writeJSON(w, http.StatusCreated, PlaceOrderResponse{Order: order, Warning: "cart could not be cleared"})
		return
	}

	writeJSON(w, http.StatusCreated, PlaceOrderResponse{Order: order})
}

func missingContactField(c model.Contact) string {
	switch {
	case strings.TrimSpace(c.Name) == "":
		return "name"
	case strings.TrimSpace(c.Phone) == "":
		return "phone"
	case strings.TrimSpace(c.Address) == "":
		return "address"
	}
	return ""
}

// List handles GET /api/orders requests.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r, h.logger)
	if !ok {
		return
	}

	var filter model.OrderFilter
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := model.ParseStatus(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidParameter, "invalid status parameter", h.logger)
			return
		}
		filter.Status = status
	}

	orders, err := h.orders.ListOrders(r.Context(), p, filter)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, orders)
}

// GetByID handles GET /api/orders/{id} requests.
func (h *OrderHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r, h.logger)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// Transition handles POST /api/orders/{id}/transitions requests.
func (h *OrderHandler) Transition(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r, h.logger)
	if !ok {
		return
	}

	var req model.TransitionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}
	if req.From == "" || req.To == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeMissingField, "from and to are required", h.logger)
		return
	}

	order, err := h.orders.Transition(r.Context(), p, chi.URLParam(r, "id"), req)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// Claim handles POST /api/orders/{id}/claim requests.
func (h *OrderHandler) Claim(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r, h.logger)
	if !ok {
		return
	}

	order, err := h.orders.Claim(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// Complete handles POST /api/orders/{id}/complete requests.
func (h *OrderHandler) Complete(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r, h.logger)
	if !ok {
		return
	}

	order, err := h.orders.Complete(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// Events handles GET /api/orders/{id}/events requests by streaming the
// order as server-sent events until the client goes away.
func (h *OrderHandler) Events(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r, h.logger)
	if !ok {
		return
	}

	orderID := chi.URLParam(r, "id")
	updates, err := h.orders.WatchOrder(r.Context(), p, orderID)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	rc := http.NewResponseController(w)
	// The stream outlives the server write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_ = rc.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case order, ok := <-updates:
			if !ok {
				return
			}
			data, err := json.Marshal(order)
			if err != nil {
				h.logger.Error().Err(err).Str("order_id", orderID).Msg("failed to encode order event")
				return
			}
			if _, err := fmt.Fprintf(w, "event: order\ndata: %s\n\n", data); err != nil {
				return
			}
			_ = rc.Flush()

		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			_ = rc.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
