package domain

import (
	"time"

	"github.com/google/uuid"
)

// Cart exists at most once per user and is created lazily on first mutation.
type Cart struct {
	ID        uuid.UUID `json:"idCart"`
	UserID    uuid.UUID `json:"idUser"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CartItem is unique per (cart, product). Its price is the catalog price
// captured at add-time and is provisional until an order freezes it.
type CartItem struct {
	ID        uuid.UUID `json:"idCartItem"`
	CartID    uuid.UUID `json:"-"`
	ProductID uuid.UUID `json:"idProduct"`
	Quantity  int       `json:"quantity"`
	Price     float64   `json:"price"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CartItemView is a cart line enriched with catalog display data for listing.
type CartItemView struct {
	CartItem
	ProductName  string `json:"productName"`
	ProductImage string `json:"productImage,omitempty"`
}
