package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math"

	"github.com/google/uuid"

	"github.com/jpalmad/go_orders/internal/client"
	"github.com/jpalmad/go_orders/internal/domain"
	"github.com/jpalmad/go_orders/internal/repository"
)

// Currency the payment collaborator charges in.
const paymentCurrency = "mxn"

const (
	defaultPageLimit = 10
	defaultPage      = 1
)

// OrderService prices and creates orders, drives their payment lifecycle and
// orchestrates payment sessions. Collaborators are injected as interfaces so
// the engine runs against fakes in tests.
type OrderService struct {
	repo     repository.OrderRepository
	products client.ProductValidator
	payments client.PaymentSessions
}

func NewOrderService(repo repository.OrderRepository, products client.ProductValidator, payments client.PaymentSessions) *OrderService {
	return &OrderService{
		repo:     repo,
		products: products,
		payments: payments,
	}
}

type OrderItemRequest struct {
	ProductID uuid.UUID `json:"idProduct"`
	Quantity  int       `json:"quantity"`
}

// Create converts line-item requests into an immutable, price-frozen order.
// Product validation runs before the storage transaction opens; the order,
// its items and the address snapshot commit or roll back together.
func (s *OrderService) Create(ctx context.Context, createdBy, addressID uuid.UUID, items []OrderItemRequest) (*domain.Order, error) {
	if len(items) == 0 {
		return nil, Validationf("order must contain at least one item")
	}
	for _, item := range items {
		if item.Quantity < 1 {
			return nil, Validationf("quantity for product [%s] must be at least 1", item.ProductID)
		}
	}

	address, err := s.repo.GetUserAddress(ctx, addressID)
	if errors.Is(err, repository.ErrAddressNotFound) {
		return nil, NotFoundf("address with id [%s] was not found", addressID)
	}
	if err != nil {
		log.Printf("resolve address %s: %v", addressID, err)
		return nil, Upstreamf("could not resolve shipping address")
	}

	ids := make([]uuid.UUID, len(items))
	for i, item := range items {
		ids[i] = item.ProductID
	}

	verified, err := s.products.Validate(ctx, ids)
	if err != nil {
		var notFound *client.ProductsNotFoundError
		if errors.As(err, &notFound) {
			return nil, Validationf("%s", notFound.Error())
		}
		log.Printf("validate order products: %v", err)
		return nil, Upstreamf("product validation failed")
	}

	byID := make(map[uuid.UUID]domain.ValidatedProduct, len(verified))
	for _, p := range verified {
		byID[p.ID] = p
	}

	// Freeze prices. Totals come from the validated catalog prices only,
	// never from anything the caller sent.
	var totalAmount float64
	var totalItems int
	orderItems := make([]domain.OrderItem, len(items))
	for i, item := range items {
		p := byID[item.ProductID]
		orderItems[i] = domain.OrderItem{
			ProductID:   item.ProductID,
			ProductName: p.Name,
			Quantity:    item.Quantity,
			Price:       p.Price,
		}
		totalAmount += p.Price * float64(item.Quantity)
		totalItems += item.Quantity
	}

	order := &domain.Order{
		ID:          uuid.New(),
		CreatedBy:   createdBy,
		Status:      domain.OrderStatusPending,
		TotalAmount: totalAmount,
		TotalItems:  totalItems,
		Items:       orderItems,
	}

	if err := s.repo.CreateOrder(ctx, order, address.Snapshot()); err != nil {
		log.Printf("persist order for user %s: %v", createdBy, err)
		return nil, Upstreamf("could not persist order")
	}

	return order, nil
}

// CreatePaymentSession builds the payment request strictly from the order's
// frozen line items and returns the collaborator's opaque handle.
func (s *OrderService) CreatePaymentSession(ctx context.Context, order *domain.Order) (json.RawMessage, error) {
	req := domain.PaymentSessionRequest{
		OrderID:  order.ID,
		Currency: paymentCurrency,
		Items:    make([]domain.PaymentSessionItem, len(order.Items)),
	}
	for i, item := range order.Items {
		req.Items[i] = domain.PaymentSessionItem{
			Name:     item.ProductName,
			Price:    item.Price,
			Quantity: item.Quantity,
		}
	}

	session, err := s.payments.CreateSession(ctx, req)
	if err != nil {
		log.Printf("create payment session for order %s: %v", order.ID, err)
		return nil, Upstreamf("could not create payment session for order [%s]", order.ID)
	}
	return session, nil
}

type OrderPage struct {
	Data []domain.Order `json:"data"`
	Meta PageMeta       `json:"meta"`
}

type PageMeta struct {
	Page     int `json:"page"`
	Total    int `json:"total"`
	LastPage int `json:"lastPage"`
}

func (s *OrderService) FindAll(ctx context.Context, limit, page int, status *domain.OrderStatus) (*OrderPage, error) {
	if limit < 1 {
		limit = defaultPageLimit
	}
	if page < 1 {
		page = defaultPage
	}
	if status != nil && !status.IsValid() {
		return nil, Validationf("correct status are: %v", domain.OrderStatusList)
	}

	orders, total, err := s.repo.ListOrders(ctx, status, limit, page)
	if err != nil {
		log.Printf("list orders: %v", err)
		return nil, Upstreamf("could not list orders")
	}
	if orders == nil {
		orders = []domain.Order{}
	}

	return &OrderPage{
		Data: orders,
		Meta: PageMeta{
			Page:     page,
			Total:    total,
			LastPage: int(math.Ceil(float64(total) / float64(limit))),
		},
	}, nil
}

// FindOne returns the order with its line items annotated with current
// catalog names. Names for products gone from the catalog are left empty;
// the frozen prices are what matter.
func (s *OrderService) FindOne(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	order, err := s.repo.GetOrder(ctx, id)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, NotFoundf("order with id [%s] not found", id)
	}
	if err != nil {
		log.Printf("get order %s: %v", id, err)
		return nil, Upstreamf("could not fetch order")
	}

	if len(order.Items) == 0 {
		return order, nil
	}

	ids := make([]uuid.UUID, len(order.Items))
	for i, item := range order.Items {
		ids[i] = item.ProductID
	}

	verified, err := s.products.Validate(ctx, ids)
	if err != nil {
		var notFound *client.ProductsNotFoundError
		if !errors.As(err, &notFound) {
			log.Printf("validate order products for %s: %v", id, err)
			return nil, Upstreamf("product validation failed")
		}
		verified = notFound.Found
	}

	byID := make(map[uuid.UUID]domain.ValidatedProduct, len(verified))
	for _, p := range verified {
		byID[p.ID] = p
	}
	for i := range order.Items {
		if p, ok := byID[order.Items[i].ProductID]; ok {
			order.Items[i].ProductName = p.Name
		}
	}

	return order, nil
}

// ChangeStatus applies any valid status. A same-status call is a no-op that
// returns the order unchanged, without touching timestamps. Beyond that the
// layer is deliberately permissive: it does not encode a transition table.
func (s *OrderService) ChangeStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) (*domain.Order, error) {
	if !status.IsValid() {
		return nil, Validationf("correct status are: %v", domain.OrderStatusList)
	}

	order, err := s.repo.GetOrder(ctx, id)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, NotFoundf("order with id [%s] not found", id)
	}
	if err != nil {
		log.Printf("get order %s: %v", id, err)
		return nil, Upstreamf("could not fetch order")
	}

	if order.Status == status {
		return order, nil
	}

	updated, err := s.repo.UpdateStatus(ctx, id, status)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, NotFoundf("order with id [%s] not found", id)
	}
	if err != nil {
		log.Printf("update order %s status: %v", id, err)
		return nil, Upstreamf("could not update order status")
	}
	return updated, nil
}

// MarkPaid is the idempotent paid-confirmation path: status PAID, receipt
// stored, retry with the same payment reference applies nothing twice.
func (s *OrderService) MarkPaid(ctx context.Context, id uuid.UUID, paymentID, receiptURL string) (*domain.Order, error) {
	if paymentID == "" {
		return nil, Validationf("payment reference must not be empty")
	}

	order, err := s.repo.MarkPaid(ctx, id, paymentID, receiptURL)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, NotFoundf("order with id [%s] not found", id)
	}
	if err != nil {
		log.Printf("mark order %s paid: %v", id, err)
		return nil, Upstreamf("could not mark order as paid")
	}

	log.Printf("order %s paid, payment %s", id, paymentID)
	return order, nil
}
