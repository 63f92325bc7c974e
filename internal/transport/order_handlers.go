package transport

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/jpalmad/go_orders/internal/domain"
	"github.com/jpalmad/go_orders/internal/service"
)

type createOrderRequest struct {
	CreatedBy uuid.UUID                  `json:"createdBy"`
	AddressID uuid.UUID                  `json:"idUserAddress"`
	Items     []service.OrderItemRequest `json:"items"`
}

type createOrderResponse struct {
	Order          *domain.Order   `json:"order"`
	PaymentSession json.RawMessage `json:"paymentSession"`
}

type orderPaginationRequest struct {
	Limit       int    `json:"limit"`
	Page        int    `json:"page"`
	OrderStatus string `json:"orderStatus,omitempty"`
}

type findOrderRequest struct {
	OrderID uuid.UUID `json:"idOrder"`
}

type changeStatusRequest struct {
	OrderID     uuid.UUID `json:"idOrder"`
	OrderStatus string    `json:"orderStatus"`
}

type paidOrderRequest struct {
	OrderID    uuid.UUID `json:"orderId"`
	PaymentID  string    `json:"paymentId"`
	ReceiptURL string    `json:"receiptUrl"`
}

func (h *Handler) handleOrderCreate(ctx context.Context, data []byte) (any, error) {
	var req createOrderRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, service.Validationf("invalid order.create payload")
	}
	if req.CreatedBy == uuid.Nil || req.AddressID == uuid.Nil {
		return nil, service.Validationf("createdBy and idUserAddress must be valid uuids")
	}

	order, err := h.orders.Create(ctx, req.CreatedBy, req.AddressID, req.Items)
	if err != nil {
		return nil, err
	}

	session, err := h.orders.CreatePaymentSession(ctx, order)
	if err != nil {
		return nil, err
	}

	return createOrderResponse{Order: order, PaymentSession: session}, nil
}

func (h *Handler) handleOrderFindAll(ctx context.Context, data []byte) (any, error) {
	var req orderPaginationRequest
	if len(data) > 0 {
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, service.Validationf("invalid order.find.all payload")
		}
	}

	var status *domain.OrderStatus
	if req.OrderStatus != "" {
		s := domain.OrderStatus(req.OrderStatus)
		status = &s
	}
	return h.orders.FindAll(ctx, req.Limit, req.Page, status)
}

func (h *Handler) handleOrderFindOne(ctx context.Context, data []byte) (any, error) {
	var req findOrderRequest
	if err := json.Unmarshal(data, &req); err != nil || req.OrderID == uuid.Nil {
		return nil, service.Validationf("idOrder must be a valid uuid")
	}
	return h.orders.FindOne(ctx, req.OrderID)
}

func (h *Handler) handleOrderUpdateStatus(ctx context.Context, data []byte) (any, error) {
	var req changeStatusRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, service.Validationf("invalid order.update.status payload")
	}
	if req.OrderID == uuid.Nil {
		return nil, service.Validationf("idOrder must be a valid uuid")
	}
	return h.orders.ChangeStatus(ctx, req.OrderID, domain.OrderStatus(req.OrderStatus))
}

func (h *Handler) handleOrderPaid(ctx context.Context, data []byte) (any, error) {
	var req paidOrderRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, service.Validationf("invalid order.paid.succeeded payload")
	}
	if req.OrderID == uuid.Nil {
		return nil, service.Validationf("orderId must be a valid uuid")
	}
	return h.orders.MarkPaid(ctx, req.OrderID, req.PaymentID, req.ReceiptURL)
}
