package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/jpalmad/go_orders/internal/domain"
)

const subjectCreatePaymentSession = "create.payment.session"

// PaymentClient requests a payment session from the external payment
// collaborator. It does not interpret the returned handle.
type PaymentClient struct {
	nc      Requester
	breaker *gobreaker.CircuitBreaker[json.RawMessage]
	timeout time.Duration
}

func NewPaymentClient(nc Requester, timeout time.Duration) *PaymentClient {
	return &PaymentClient{
		nc: nc,
		breaker: gobreaker.NewCircuitBreaker[json.RawMessage](gobreaker.Settings{
			Name: "create-payment-session",
		}),
		timeout: timeout,
	}
}

func (c *PaymentClient) CreateSession(ctx context.Context, req domain.PaymentSessionRequest) (json.RawMessage, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal payment session request: %w", err)
	}

	return c.breaker.Execute(func() (json.RawMessage, error) {
		reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		msg, err := c.nc.RequestWithContext(reqCtx, subjectCreatePaymentSession, payload)
		if err != nil {
			return nil, fmt.Errorf("request %s: %w", subjectCreatePaymentSession, err)
		}

		var fault collaboratorError
		if e2 := json.Unmarshal(msg.Data, &fault); e2 == nil && fault.Status >= 400 && fault.Message != "" {
			return nil, fmt.Errorf("payment service replied %d: %s", fault.Status, fault.Message)
		}

		return json.RawMessage(msg.Data), nil
	})
}
