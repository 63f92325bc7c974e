// Package transport exposes the service operations as request/reply handlers
// on the message bus, one handler per subject pattern. Successful calls reply
// with the payload JSON; failures reply with {status, message}.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/jpalmad/go_orders/internal/domain"
	"github.com/jpalmad/go_orders/internal/service"
)

const queueGroup = "orders-service"

// CartOperations and OrderOperations are what the transport needs from the
// services; they exist so handlers can be exercised against fakes.
type CartOperations interface {
	EnsureCart(ctx context.Context, userID uuid.UUID) (*domain.Cart, error)
	AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*domain.CartItem, error)
	UpdateItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*domain.CartItem, error)
	RemoveItem(ctx context.Context, itemID uuid.UUID) (*domain.CartItem, error)
	ListItems(ctx context.Context, userID uuid.UUID) ([]domain.CartItemView, error)
}

type OrderOperations interface {
	Create(ctx context.Context, createdBy, addressID uuid.UUID, items []service.OrderItemRequest) (*domain.Order, error)
	CreatePaymentSession(ctx context.Context, order *domain.Order) (json.RawMessage, error)
	FindAll(ctx context.Context, limit, page int, status *domain.OrderStatus) (*service.OrderPage, error)
	FindOne(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ChangeStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) (*domain.Order, error)
	MarkPaid(ctx context.Context, id uuid.UUID, paymentID, receiptURL string) (*domain.Order, error)
}

type Handler struct {
	carts   CartOperations
	orders  OrderOperations
	timeout time.Duration
}

func NewHandler(carts CartOperations, orders OrderOperations, timeout time.Duration) *Handler {
	return &Handler{
		carts:   carts,
		orders:  orders,
		timeout: timeout,
	}
}

type handlerFunc func(ctx context.Context, data []byte) (any, error)

func (h *Handler) subjects() map[string]handlerFunc {
	return map[string]handlerFunc{
		"cart.create":          h.handleCartCreate,
		"cart.add.item.one":    h.handleCartAddItem,
		"cart.find.all":        h.handleCartFindAll,
		"cart.update.item":     h.handleCartUpdateItem,
		"cart.remove.item":     h.handleCartRemoveItem,
		"order.create":         h.handleOrderCreate,
		"order.find.all":       h.handleOrderFindAll,
		"order.find.one":       h.handleOrderFindOne,
		"order.update.status":  h.handleOrderUpdateStatus,
		"order.paid.succeeded": h.handleOrderPaid,
	}
}

// Subscribe registers every subject on a shared queue group, so multiple
// instances split the request load.
func (h *Handler) Subscribe(nc *nats.Conn) error {
	for subject, fn := range h.subjects() {
		if _, err := nc.QueueSubscribe(subject, queueGroup, h.wrap(subject, fn)); err != nil {
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
	}
	return nil
}

func (h *Handler) wrap(subject string, fn handlerFunc) nats.MsgHandler {
	return func(msg *nats.Msg) {
		ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
		defer cancel()

		result, err := fn(ctx, msg.Data)
		var payload []byte
		if err != nil {
			log.Printf("%s failed: %v", subject, err)
			payload = encodeError(err)
		} else {
			payload, err = json.Marshal(result)
			if err != nil {
				log.Printf("%s: encode reply: %v", subject, err)
				payload = encodeError(err)
			}
		}

		if err := msg.Respond(payload); err != nil {
			log.Printf("%s: respond: %v", subject, err)
		}
	}
}

// encodeError turns any error into the {status, message} reply. Errors that
// are not part of the taxonomy become an opaque 500 so internals never leak.
func encodeError(err error) []byte {
	rpcErr, ok := service.AsRPCError(err)
	if !ok {
		rpcErr = &service.RPCError{Status: http.StatusInternalServerError, Message: "internal server error"}
	}
	data, marshalErr := json.Marshal(rpcErr)
	if marshalErr != nil {
		return []byte(`{"status":500,"message":"internal server error"}`)
	}
	return data
}
