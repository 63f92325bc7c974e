package domain

import "github.com/google/uuid"

type PaymentSessionItem struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// PaymentSessionRequest is built strictly from an order's frozen line items.
type PaymentSessionRequest struct {
	OrderID  uuid.UUID            `json:"orderId"`
	Currency string               `json:"currency"`
	Items    []PaymentSessionItem `json:"items"`
}
