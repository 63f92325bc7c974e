package transport

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/jpalmad/go_orders/internal/service"
)

type cartUserRequest struct {
	UserID uuid.UUID `json:"idUser"`
}

type addCartItemRequest struct {
	UserID    uuid.UUID `json:"idUser"`
	ProductID uuid.UUID `json:"idProduct"`
	Quantity  int       `json:"quantity"`
	// Price is accepted for wire compatibility but the validated catalog
	// price is what gets stored.
	Price float64 `json:"price"`
}

type updateCartItemRequest struct {
	UserID    uuid.UUID `json:"idUser"`
	ProductID uuid.UUID `json:"idProduct"`
	Quantity  int       `json:"quantity"`
}

type removeCartItemRequest struct {
	ItemID uuid.UUID `json:"idCartItem"`
}

func (h *Handler) handleCartCreate(ctx context.Context, data []byte) (any, error) {
	var req cartUserRequest
	if err := json.Unmarshal(data, &req); err != nil || req.UserID == uuid.Nil {
		return nil, service.Validationf("idUser must be a valid uuid")
	}
	return h.carts.EnsureCart(ctx, req.UserID)
}

func (h *Handler) handleCartAddItem(ctx context.Context, data []byte) (any, error) {
	var req addCartItemRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, service.Validationf("invalid cart.add.item.one payload")
	}
	if req.UserID == uuid.Nil || req.ProductID == uuid.Nil {
		return nil, service.Validationf("idUser and idProduct must be valid uuids")
	}
	return h.carts.AddItem(ctx, req.UserID, req.ProductID, req.Quantity)
}

func (h *Handler) handleCartFindAll(ctx context.Context, data []byte) (any, error) {
	var req cartUserRequest
	if err := json.Unmarshal(data, &req); err != nil || req.UserID == uuid.Nil {
		return nil, service.Validationf("idUser must be a valid uuid")
	}
	return h.carts.ListItems(ctx, req.UserID)
}

func (h *Handler) handleCartUpdateItem(ctx context.Context, data []byte) (any, error) {
	var req updateCartItemRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, service.Validationf("invalid cart.update.item payload")
	}
	if req.UserID == uuid.Nil || req.ProductID == uuid.Nil {
		return nil, service.Validationf("idUser and idProduct must be valid uuids")
	}
	return h.carts.UpdateItem(ctx, req.UserID, req.ProductID, req.Quantity)
}

func (h *Handler) handleCartRemoveItem(ctx context.Context, data []byte) (any, error) {
	var req removeCartItemRequest
	if err := json.Unmarshal(data, &req); err != nil || req.ItemID == uuid.Nil {
		return nil, service.Validationf("idCartItem must be a valid uuid")
	}
	return h.carts.RemoveItem(ctx, req.ItemID)
}
