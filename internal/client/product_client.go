package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"

	"github.com/jpalmad/go_orders/internal/domain"
)

const subjectProductsValidate = "products.validate"

// ProductClient asks the product catalog service to validate a set of product
// ids over the message bus. Requests go through a circuit breaker so a dead
// catalog fails fast instead of piling up timed-out requests.
type ProductClient struct {
	nc      Requester
	breaker *gobreaker.CircuitBreaker[[]domain.ValidatedProduct]
	timeout time.Duration
}

func NewProductClient(nc Requester, timeout time.Duration) *ProductClient {
	return &ProductClient{
		nc: nc,
		breaker: gobreaker.NewCircuitBreaker[[]domain.ValidatedProduct](gobreaker.Settings{
			Name: "products-validate",
		}),
		timeout: timeout,
	}
}

func (c *ProductClient) Validate(ctx context.Context, ids []uuid.UUID) ([]domain.ValidatedProduct, error) {
	deduped := dedupe(ids)

	payload, err := json.Marshal(deduped)
	if err != nil {
		return nil, fmt.Errorf("marshal product ids: %w", err)
	}

	products, err := c.breaker.Execute(func() ([]domain.ValidatedProduct, error) {
		reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		msg, err := c.nc.RequestWithContext(reqCtx, subjectProductsValidate, payload)
		if err != nil {
			return nil, fmt.Errorf("request %s: %w", subjectProductsValidate, err)
		}

		var result []domain.ValidatedProduct
		if err := json.Unmarshal(msg.Data, &result); err != nil {
			var fault collaboratorError
			if e2 := json.Unmarshal(msg.Data, &fault); e2 == nil && fault.Message != "" {
				return nil, fmt.Errorf("product service replied %d: %s", fault.Status, fault.Message)
			}
			return nil, fmt.Errorf("decode %s reply: %w", subjectProductsValidate, err)
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}

	// All-or-signal-missing: a reply smaller than the de-duplicated request
	// means some ids are unknown to the catalog.
	if len(products) < len(deduped) {
		returned := make(map[uuid.UUID]bool, len(products))
		for _, p := range products {
			returned[p.ID] = true
		}
		var missing []uuid.UUID
		for _, id := range deduped {
			if !returned[id] {
				missing = append(missing, id)
			}
		}
		return nil, &ProductsNotFoundError{Missing: missing, Found: products}
	}

	return products, nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
