package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type OrdersHandler struct {
	nc      Requester
	timeout time.Duration
}

func NewOrdersHandler(nc Requester, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		nc:      nc,
		timeout: timeout,
	}
}

type orderItemDTO struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

type createOrderRequestDTO struct {
	AddressID uuid.UUID      `json:"address_id"`
	Items     []orderItemDTO `json:"items"`
}

type changeStatusRequestDTO struct {
	Status string `json:"status"`
}

func (h *OrdersHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	if userID == uuid.Nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req createOrderRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.AddressID == uuid.Nil {
		respondError(w, http.StatusBadRequest, "invalid_address_id", "address_id must be a valid uuid")
		return
	}
	if len(req.Items) == 0 {
		respondError(w, http.StatusBadRequest, "invalid_items", "items must not be empty")
		return
	}

	items := make([]map[string]any, len(req.Items))
	for i, item := range req.Items {
		items[i] = map[string]any{
			"idProduct": item.ProductID,
			"quantity":  item.Quantity,
		}
	}

	relay(r.Context(), w, h.nc, h.timeout, "order.create", map[string]any{
		"createdBy":     userID,
		"idUserAddress": req.AddressID,
		"items":         items,
	}, http.StatusCreated)
}

func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))

	relay(r.Context(), w, h.nc, h.timeout, "order.find.all", map[string]any{
		"limit":       limit,
		"page":        page,
		"orderStatus": r.URL.Query().Get("status"),
	}, http.StatusOK)
}

func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "order_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id must be a valid uuid")
		return
	}

	relay(r.Context(), w, h.nc, h.timeout, "order.find.one", map[string]any{
		"idOrder": orderID,
	}, http.StatusOK)
}

func (h *OrdersHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "order_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id must be a valid uuid")
		return
	}

	var req changeStatusRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "status is required")
		return
	}

	relay(r.Context(), w, h.nc, h.timeout, "order.update.status", map[string]any{
		"idOrder":     orderID,
		"orderStatus": req.Status,
	}, http.StatusOK)
}
