// Package consumer drives orders to PAID from the payment provider's event
// stream. Confirmations can also arrive on the bus as order.paid.succeeded;
// MarkPaid is idempotent, so dual delivery is harmless.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/jpalmad/go_orders/internal/domain"
)

// PaymentSucceededEvent is the payload published by the payment collaborator
// when a charge completes.
type PaymentSucceededEvent struct {
	OrderID    string `json:"orderId"`
	PaymentID  string `json:"paymentId"`
	ReceiptURL string `json:"receiptUrl"`
}

type orderMarker interface {
	MarkPaid(ctx context.Context, id uuid.UUID, paymentID, receiptURL string) (*domain.Order, error)
}

type Consumer struct {
	orders orderMarker
	reader *kafka.Reader
}

func NewConsumer(orders orderMarker, brokers ...string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    "payment-events",
		GroupID:  "orders-service",
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{orders: orders, reader: reader}
}

func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.processMessage(ctx)
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		log.Printf("error closing kafka reader: %v", err)
	}
}

func (c *Consumer) processMessage(ctx context.Context) {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Printf("error reading payment event: %v", err)
		return
	}

	c.processEvent(ctx, m.Value)
}

func (c *Consumer) processEvent(ctx context.Context, value []byte) {
	var event PaymentSucceededEvent
	if err := json.Unmarshal(value, &event); err != nil {
		log.Printf("error parsing payment event: %v", err)
		return
	}

	orderID, err := uuid.Parse(event.OrderID)
	if err != nil {
		log.Printf("invalid orderId %q in payment event: %v", event.OrderID, err)
		return
	}

	order, err := c.orders.MarkPaid(ctx, orderID, event.PaymentID, event.ReceiptURL)
	if err != nil {
		log.Printf("failed to mark order %s paid: %v", orderID, err)
		return
	}

	log.Printf("order %s confirmed paid, payment %s", order.ID, event.PaymentID)
}
