package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/jpalmad/go_orders/internal/domain"
)

func setupTestDB(t *testing.T) (*Repository, func()) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)

	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	creds := &Credentials{
		Host:              host,
		Port:              port.Int(),
		User:              "testuser",
		Password:          "testpass",
		DBName:            "testdb",
		MigrationsDirPath: "./migrations",
	}

	repo, err := NewRepository(creds)
	require.NoError(t, err)

	err = repo.RunMigrations(creds)
	require.NoError(t, err)

	cleanup := func() {
		repo.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return repo, cleanup
}

func insertTestAddress(t *testing.T, repo *Repository, userID uuid.UUID) *domain.UserAddress {
	t.Helper()
	addr := &domain.UserAddress{
		ID:     uuid.New(),
		UserID: userID,
		OrderAddress: domain.OrderAddress{
			StreetName:     "Av. Reforma",
			ExteriorNumber: "123",
			Neighborhood:   "Centro",
			City:           "CDMX",
			State:          "CDMX",
			Country:        "MX",
			ZipCode:        "06000",
		},
	}
	_, err := repo.db.Exec(
		`INSERT INTO user_addresses (id, user_id, street_name, exterior_number, neighborhood, city, state, country, zip_code)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		addr.ID, addr.UserID, addr.StreetName, addr.ExteriorNumber,
		addr.Neighborhood, addr.City, addr.State, addr.Country, addr.ZipCode,
	)
	require.NoError(t, err)
	return addr
}

func newTestOrder(createdBy uuid.UUID) *domain.Order {
	return &domain.Order{
		ID:          uuid.New(),
		CreatedBy:   createdBy,
		Status:      domain.OrderStatusPending,
		TotalAmount: 45.00,
		TotalItems:  3,
		Items: []domain.OrderItem{
			{ProductID: uuid.New(), Quantity: 2, Price: 10.00},
			{ProductID: uuid.New(), Quantity: 1, Price: 25.00},
		},
	}
}

func TestEnsureCart_SameCartOnRepeat(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	userID := uuid.New()

	first, err := repo.EnsureCart(ctx, userID)
	require.NoError(t, err)

	second, err := repo.EnsureCart(ctx, userID)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, userID, second.UserID)
}

func TestEnsureCart_DifferentUsersGetDifferentCarts(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	cartA, err := repo.EnsureCart(ctx, uuid.New())
	require.NoError(t, err)
	cartB, err := repo.EnsureCart(ctx, uuid.New())
	require.NoError(t, err)

	assert.NotEqual(t, cartA.ID, cartB.ID)
}

func TestUpsertItem_IncrementsExistingLine(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	cart, err := repo.EnsureCart(ctx, uuid.New())
	require.NoError(t, err)
	productID := uuid.New()

	first, err := repo.UpsertItem(ctx, cart.ID, productID, 5, 10.00)
	require.NoError(t, err)
	assert.Equal(t, 5, first.Quantity)

	second, err := repo.UpsertItem(ctx, cart.ID, productID, 3, 99.00)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "merge must not create a second line")
	assert.Equal(t, 8, second.Quantity)
	assert.Equal(t, 10.00, second.Price, "stored price stays on increment")

	items, err := repo.ListItems(ctx, cart.ID)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestSetItemQuantity(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	cart, err := repo.EnsureCart(ctx, uuid.New())
	require.NoError(t, err)

	item, err := repo.UpsertItem(ctx, cart.ID, uuid.New(), 5, 10.00)
	require.NoError(t, err)

	updated, err := repo.SetItemQuantity(ctx, item.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Quantity)
}

func TestSetItemQuantity_NotFound(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := repo.SetItemQuantity(context.Background(), uuid.New(), 2)
	assert.ErrorIs(t, err, ErrCartItemNotFound)
}

func TestDeleteItem_ReturnsDeletedLine(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	cart, err := repo.EnsureCart(ctx, uuid.New())
	require.NoError(t, err)

	item, err := repo.UpsertItem(ctx, cart.ID, uuid.New(), 1, 10.00)
	require.NoError(t, err)

	deleted, err := repo.DeleteItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.ID, deleted.ID)

	items, err := repo.ListItems(ctx, cart.ID)
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = repo.DeleteItem(ctx, item.ID)
	assert.ErrorIs(t, err, ErrCartItemNotFound)
}

func TestCreateOrder_PersistsEverythingWithOutboxEvent(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	userID := uuid.New()
	addr := insertTestAddress(t, repo, userID)
	order := newTestOrder(userID)

	err := repo.CreateOrder(ctx, order, addr.Snapshot())
	require.NoError(t, err)
	assert.False(t, order.CreatedAt.IsZero())

	fetched, err := repo.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, fetched.ID)
	assert.Equal(t, order.CreatedBy, fetched.CreatedBy)
	assert.Equal(t, domain.OrderStatusPending, fetched.Status)
	assert.Equal(t, 45.00, fetched.TotalAmount)
	assert.Equal(t, 3, fetched.TotalItems)
	assert.False(t, fetched.IsPaid)
	assert.Len(t, fetched.Items, 2)

	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, order.ID.String(), events[0].AggregateID)
	assert.Equal(t, "order.created", events[0].EventType)
}

func TestGetOrder_NotFound(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := repo.GetOrder(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestGetUserAddress_NotFound(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := repo.GetUserAddress(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrAddressNotFound)
}

func TestListOrders_FilterAndPagination(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	userID := uuid.New()
	addr := insertTestAddress(t, repo, userID)

	var paidOrder *domain.Order
	for i := 0; i < 3; i++ {
		order := newTestOrder(userID)
		require.NoError(t, repo.CreateOrder(ctx, order, addr.Snapshot()))
		if i == 0 {
			paidOrder = order
		}
	}
	_, err := repo.MarkPaid(ctx, paidOrder.ID, "py_123", "https://pay.example/r/1")
	require.NoError(t, err)

	all, total, err := repo.ListOrders(ctx, nil, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, all, 2)

	rest, total, err := repo.ListOrders(ctx, nil, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, rest, 1)

	paid := domain.OrderStatusPaid
	paidOnly, total, err := repo.ListOrders(ctx, &paid, 10, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, paidOnly, 1)
	assert.Equal(t, paidOrder.ID, paidOnly[0].ID)
}

func TestUpdateStatus(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	userID := uuid.New()
	addr := insertTestAddress(t, repo, userID)
	order := newTestOrder(userID)
	require.NoError(t, repo.CreateOrder(ctx, order, addr.Snapshot()))

	updated, err := repo.UpdateStatus(ctx, order.ID, domain.OrderStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, updated.Status)
	assert.True(t, updated.UpdatedAt.After(order.UpdatedAt))
}

func TestMarkPaid_Idempotent(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	userID := uuid.New()
	addr := insertTestAddress(t, repo, userID)
	order := newTestOrder(userID)
	require.NoError(t, repo.CreateOrder(ctx, order, addr.Snapshot()))

	first, err := repo.MarkPaid(ctx, order.ID, "py_123", "https://pay.example/r/1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPaid, first.Status)
	assert.True(t, first.IsPaid)
	require.NotNil(t, first.PaidAt)
	assert.Equal(t, "py_123", first.PaymentID)

	second, err := repo.MarkPaid(ctx, order.ID, "py_123", "https://pay.example/r/1")
	require.NoError(t, err)
	assert.Equal(t, first.PaidAt.Unix(), second.PaidAt.Unix())

	var receipts int
	require.NoError(t, repo.db.QueryRow(`SELECT count(*) FROM order_receipts WHERE order_id = $1`, order.ID).Scan(&receipts))
	assert.Equal(t, 1, receipts)

	// order.created plus exactly one order.paid, the retry applied nothing.
	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestMarkPaid_OrderNotFound(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := repo.MarkPaid(context.Background(), uuid.New(), "py_123", "")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestOutboxEvents_ProcessedAreExcluded(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	userID := uuid.New()
	addr := insertTestAddress(t, repo, userID)
	order := newTestOrder(userID)
	require.NoError(t, repo.CreateOrder(ctx, order, addr.Snapshot()))

	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)

	require.NoError(t, repo.MarkEventAsProcessed(ctx, events[0].ID))

	events, err = repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}
