package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type CartHandler struct {
	nc      Requester
	timeout time.Duration
}

func NewCartHandler(nc Requester, timeout time.Duration) *CartHandler {
	return &CartHandler{
		nc:      nc,
		timeout: timeout,
	}
}

type addItemRequestDTO struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Price     float64   `json:"price"`
}

type updateQuantityRequestDTO struct {
	Quantity *int `json:"quantity"`
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	if userID == uuid.Nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req addItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID == uuid.Nil {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a valid uuid")
		return
	}
	if req.Quantity < 1 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be at least 1")
		return
	}

	relay(r.Context(), w, h.nc, h.timeout, "cart.add.item.one", map[string]any{
		"idUser":    userID,
		"idProduct": req.ProductID,
		"quantity":  req.Quantity,
		"price":     req.Price,
	}, http.StatusCreated)
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	if userID == uuid.Nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	relay(r.Context(), w, h.nc, h.timeout, "cart.find.all", map[string]any{
		"idUser": userID,
	}, http.StatusOK)
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	if userID == uuid.Nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	productID, err := uuid.Parse(chi.URLParam(r, "product_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a valid uuid")
		return
	}

	var req updateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Quantity == nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "quantity is required")
		return
	}
	// Zero is allowed and removes the line.
	if *req.Quantity < 0 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must not be negative")
		return
	}

	relay(r.Context(), w, h.nc, h.timeout, "cart.update.item", map[string]any{
		"idUser":    userID,
		"idProduct": productID,
		"quantity":  *req.Quantity,
	}, http.StatusOK)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	if userID == uuid.Nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	itemID, err := uuid.Parse(chi.URLParam(r, "item_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_item_id", "item_id must be a valid uuid")
		return
	}

	relay(r.Context(), w, h.nc, h.timeout, "cart.remove.item", map[string]any{
		"idCartItem": itemID,
	}, http.StatusOK)
}
