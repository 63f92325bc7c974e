package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/jpalmad/go_orders/internal/domain"
)

// Requester is the slice of *nats.Conn the collaborator clients need.
type Requester interface {
	RequestWithContext(ctx context.Context, subj string, data []byte) (*nats.Msg, error)
}

// ProductValidator resolves a set of product ids to their authoritative
// catalog data, or reports which ids the catalog does not know.
type ProductValidator interface {
	Validate(ctx context.Context, ids []uuid.UUID) ([]domain.ValidatedProduct, error)
}

// PaymentSessions creates a payment session with the external payment
// collaborator. The returned handle is opaque and passed through untouched.
type PaymentSessions interface {
	CreateSession(ctx context.Context, req domain.PaymentSessionRequest) (json.RawMessage, error)
}

// ProductsNotFoundError reports the ids the catalog could not resolve. Found
// keeps the products it did resolve, so read paths can still enrich partially.
type ProductsNotFoundError struct {
	Missing []uuid.UUID
	Found   []domain.ValidatedProduct
}

func (e *ProductsNotFoundError) Error() string {
	ids := make([]string, len(e.Missing))
	for i, id := range e.Missing {
		ids[i] = id.String()
	}
	return fmt.Sprintf("products not found: [%s]", strings.Join(ids, ", "))
}

// collaboratorError is the {status, message} reply shape collaborators use
// for failures instead of transport-level faults.
type collaboratorError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}
