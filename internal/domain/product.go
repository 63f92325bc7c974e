package domain

import "github.com/google/uuid"

// ValidatedProduct is the catalog collaborator's answer for one product id:
// the authoritative current price, display data and availability.
type ValidatedProduct struct {
	ID        uuid.UUID `json:"idProduct"`
	Name      string    `json:"productName"`
	Image     string    `json:"productImage,omitempty"`
	Price     float64   `json:"price"`
	Available bool      `json:"available"`
}
