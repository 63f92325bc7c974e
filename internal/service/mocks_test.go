package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmad/go_orders/internal/client"
	"github.com/jpalmad/go_orders/internal/domain"
	"github.com/jpalmad/go_orders/internal/repository"
)

// mockCartRepository implements repository.CartRepository with the same
// merge semantics the SQL upsert has.
type mockCartRepository struct {
	m     sync.Mutex
	cart  *domain.Cart
	items map[uuid.UUID]*domain.CartItem // keyed by product id
	err   error
}

func newMockCartRepository(userID uuid.UUID) *mockCartRepository {
	return &mockCartRepository{
		cart: &domain.Cart{
			ID:        uuid.New(),
			UserID:    userID,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		},
		items: make(map[uuid.UUID]*domain.CartItem),
	}
}

func (m *mockCartRepository) EnsureCart(context.Context, uuid.UUID) (*domain.Cart, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.cart, nil
}

func (m *mockCartRepository) UpsertItem(_ context.Context, cartID, productID uuid.UUID, quantity int, price float64) (*domain.CartItem, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if existing, ok := m.items[productID]; ok {
		existing.Quantity += quantity
		existing.UpdatedAt = time.Now()
		return existing, nil
	}
	item := &domain.CartItem{
		ID:        uuid.New(),
		CartID:    cartID,
		ProductID: productID,
		Quantity:  quantity,
		Price:     price,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	m.items[productID] = item
	return item, nil
}

func (m *mockCartRepository) GetItem(_ context.Context, _, productID uuid.UUID) (*domain.CartItem, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if item, ok := m.items[productID]; ok {
		return item, nil
	}
	return nil, repository.ErrCartItemNotFound
}

func (m *mockCartRepository) SetItemQuantity(_ context.Context, itemID uuid.UUID, quantity int) (*domain.CartItem, error) {
	m.m.Lock()
	defer m.m.Unlock()
	for _, item := range m.items {
		if item.ID == itemID {
			item.Quantity = quantity
			item.UpdatedAt = time.Now()
			return item, nil
		}
	}
	return nil, repository.ErrCartItemNotFound
}

func (m *mockCartRepository) DeleteItem(_ context.Context, itemID uuid.UUID) (*domain.CartItem, error) {
	m.m.Lock()
	defer m.m.Unlock()
	for productID, item := range m.items {
		if item.ID == itemID {
			delete(m.items, productID)
			return item, nil
		}
	}
	return nil, repository.ErrCartItemNotFound
}

func (m *mockCartRepository) ListItems(context.Context, uuid.UUID) ([]domain.CartItem, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var items []domain.CartItem
	for _, item := range m.items {
		items = append(items, *item)
	}
	return items, nil
}

// mockValidator answers from a fixed catalog and reports missing ids the way
// the real client does.
type mockValidator struct {
	products map[uuid.UUID]domain.ValidatedProduct
	err      error
	calls    int
	lastIDs  []uuid.UUID
}

func (m *mockValidator) Validate(_ context.Context, ids []uuid.UUID) ([]domain.ValidatedProduct, error) {
	m.calls++
	m.lastIDs = ids
	if m.err != nil {
		return nil, m.err
	}

	seen := make(map[uuid.UUID]bool, len(ids))
	var found []domain.ValidatedProduct
	var missing []uuid.UUID
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if p, ok := m.products[id]; ok {
			found = append(found, p)
		} else {
			missing = append(missing, id)
		}
	}

	if len(missing) > 0 {
		return nil, &client.ProductsNotFoundError{Missing: missing, Found: found}
	}
	return found, nil
}

// mockPaymentSessions captures the request it was handed.
type mockPaymentSessions struct {
	request *domain.PaymentSessionRequest
	session json.RawMessage
	err     error
}

func (m *mockPaymentSessions) CreateSession(_ context.Context, req domain.PaymentSessionRequest) (json.RawMessage, error) {
	m.request = &req
	if m.err != nil {
		return nil, m.err
	}
	return m.session, nil
}

// mockOrderRepository implements repository.OrderRepository in memory with
// the same idempotency guarantees the SQL implementation has.
type mockOrderRepository struct {
	address    *domain.UserAddress
	addressErr error

	createErr      error
	createdOrder   *domain.Order
	createdAddress *domain.OrderAddress

	order  *domain.Order
	getErr error

	updateCalls int
	paidCalls   int
	receipts    map[uuid.UUID]string // order id -> receipt url

	listOrders []domain.Order
	listTotal  int

	events    []*repository.OutboxEvent
	processed []int64
}

func newMockOrderRepository() *mockOrderRepository {
	return &mockOrderRepository{receipts: make(map[uuid.UUID]string)}
}

func (m *mockOrderRepository) GetUserAddress(context.Context, uuid.UUID) (*domain.UserAddress, error) {
	if m.addressErr != nil {
		return nil, m.addressErr
	}
	if m.address == nil {
		return nil, repository.ErrAddressNotFound
	}
	return m.address, nil
}

func (m *mockOrderRepository) CreateOrder(_ context.Context, order *domain.Order, address domain.OrderAddress) error {
	if m.createErr != nil {
		return m.createErr
	}
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	m.createdOrder = order
	m.createdAddress = &address
	return nil
}

func (m *mockOrderRepository) GetOrder(context.Context, uuid.UUID) (*domain.Order, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.order == nil {
		return nil, repository.ErrOrderNotFound
	}
	copied := *m.order
	return &copied, nil
}

func (m *mockOrderRepository) ListOrders(context.Context, *domain.OrderStatus, int, int) ([]domain.Order, int, error) {
	return m.listOrders, m.listTotal, nil
}

func (m *mockOrderRepository) UpdateStatus(_ context.Context, _ uuid.UUID, status domain.OrderStatus) (*domain.Order, error) {
	m.updateCalls++
	if m.order == nil {
		return nil, repository.ErrOrderNotFound
	}
	m.order.Status = status
	m.order.UpdatedAt = time.Now()
	copied := *m.order
	return &copied, nil
}

func (m *mockOrderRepository) MarkPaid(_ context.Context, id uuid.UUID, paymentID, receiptURL string) (*domain.Order, error) {
	m.paidCalls++
	if m.order == nil || m.order.ID != id {
		return nil, repository.ErrOrderNotFound
	}
	if m.order.IsPaid && m.order.PaymentID == paymentID {
		copied := *m.order
		return &copied, nil
	}
	now := time.Now()
	m.order.Status = domain.OrderStatusPaid
	m.order.IsPaid = true
	m.order.PaidAt = &now
	m.order.PaymentID = paymentID
	if _, ok := m.receipts[id]; !ok {
		m.receipts[id] = receiptURL
	}
	copied := *m.order
	return &copied, nil
}

func (m *mockOrderRepository) GetUnprocessedEvents(context.Context, int) ([]*repository.OutboxEvent, error) {
	return m.events, nil
}

func (m *mockOrderRepository) MarkEventAsProcessed(_ context.Context, id int64) error {
	m.processed = append(m.processed, id)
	return nil
}
