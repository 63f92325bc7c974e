package domain

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// OrderStatusList is used in validation error messages.
var OrderStatusList = []OrderStatus{OrderStatusPending, OrderStatusPaid, OrderStatusCancelled}

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusCancelled:
		return true
	}
	return false
}

// String representation (for logging)
func (s OrderStatus) String() string {
	return string(s)
}

// OrderItem carries the price frozen at order-creation time. It is never
// re-read from the catalog afterwards.
type OrderItem struct {
	ProductID   uuid.UUID `json:"idProduct"`
	ProductName string    `json:"name,omitempty"`
	Quantity    int       `json:"quantity"`
	Price       float64   `json:"price"`
}

// OrderAddress is a denormalized copy of the shipping address captured when
// the order was created. It carries no reference to the live address row.
type OrderAddress struct {
	StreetName     string `json:"streetName"`
	ExteriorNumber string `json:"exteriorNumber"`
	InteriorNumber string `json:"interiorNumber,omitempty"`
	Neighborhood   string `json:"neighborhood"`
	City           string `json:"city"`
	State          string `json:"state"`
	Country        string `json:"country"`
	ZipCode        string `json:"zipCode"`
}

// UserAddress is the live, user-owned address row. Orders only ever read it.
type UserAddress struct {
	ID     uuid.UUID `json:"idUserAddress"`
	UserID uuid.UUID `json:"idUser"`
	OrderAddress
}

// Snapshot drops the ownership keys, leaving only the fields an order keeps.
func (a *UserAddress) Snapshot() OrderAddress {
	return a.OrderAddress
}

type Order struct {
	ID              uuid.UUID     `json:"idOrder"`
	CreatedBy       uuid.UUID     `json:"createdBy"`
	Status          OrderStatus   `json:"orderStatus"`
	TotalAmount     float64       `json:"totalAmount"`
	TotalItems      int           `json:"totalItems"`
	DiscountApplied float64       `json:"discountApplied"`
	CouponUsed      bool          `json:"couponUsed"`
	IsPaid          bool          `json:"isPaid"`
	PaidAt          *time.Time    `json:"paidAt,omitempty"`
	PaymentID       string        `json:"paymentId,omitempty"`
	Items           []OrderItem   `json:"items,omitempty"`
	Address         *OrderAddress `json:"address,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// OrderReceipt is written once, when the order transitions to PAID.
type OrderReceipt struct {
	OrderID    uuid.UUID `json:"idOrder"`
	ReceiptURL string    `json:"receiptUrl"`
	CreatedAt  time.Time `json:"createdAt"`
}
