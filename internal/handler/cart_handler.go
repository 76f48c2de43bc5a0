package handler

import (
	"net/http"

	"foodorder/internal/model"
	"foodorder/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// CartResponse is returned by cart mutations.
type CartResponse struct {
	Changed bool        `json:"changed"`
	Cart    *model.Cart `json:"cart"`
}

// CartHandler handles the signed-in customer's cart at a branch.
type CartHandler struct {
	service service.CartService
	logger  zerolog.Logger
}

// NewCartHandler creates a new cart handler.
func NewCartHandler(service service.CartService, logger zerolog.Logger) *CartHandler {
	return &CartHandler{
		service: service,
		logger:  logger.With().Str("handler", "cart").Logger(),
	}
}

// loadCart resolves the caller's cart for the branch in the URL.
func (h *CartHandler) loadCart(w http.ResponseWriter, r *http.Request) (*model.Cart, bool) {
	p, ok := principal(w, r, h.logger)
	if !ok {
		return nil, false
	}

	cart, err := h.service.GetOrCreateCart(r.Context(), p.ID, chi.URLParam(r, "branchID"))
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return nil, false
	}
	return cart, true
}

// Get handles GET /api/branches/{branchID}/cart requests.
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	cart, ok := h.loadCart(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

// PutItem handles PUT /api/branches/{branchID}/cart/items/{menuItemID} requests.
func (h *CartHandler) PutItem(w http.ResponseWriter, r *http.Request) {
	var req model.CartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	cart, ok := h.loadCart(w, r)
	if !ok {
		return
	}

	changed, err := h.service.AddMenuItem(r.Context(), cart, chi.URLParam(r, "menuItemID"), req.Quantity)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, CartResponse{Changed: changed, Cart: cart})
}

// DeleteItem handles DELETE /api/branches/{branchID}/cart/items/{menuItemID} requests.
func (h *CartHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	cart, ok := h.loadCart(w, r)
	if !ok {
		return
	}

	changed, err := h.service.RemoveItem(r.Context(), cart, chi.URLParam(r, "menuItemID"))
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, CartResponse{Changed: changed, Cart: cart})
}

// Clear handles DELETE /api/branches/{branchID}/cart requests.
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	cart, ok := h.loadCart(w, r)
	if !ok {
		return
	}

	changed, err := h.service.Clear(r.Context(), cart)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, CartResponse{Changed: changed, Cart: cart})
}
