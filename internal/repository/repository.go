package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/jpalmad/go_orders/internal/domain"
)

var (
	ErrCartItemNotFound = errors.New("cart item not found")
	ErrOrderNotFound    = errors.New("order not found")
	ErrAddressNotFound  = errors.New("address not found")
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// OutboxEvent is a lifecycle event written in the same transaction as the
// state change it describes, published to Kafka by the outbox poller.
type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}

type CartRepository interface {
	// EnsureCart finds or creates the user's cart as one atomic statement.
	EnsureCart(ctx context.Context, userID uuid.UUID) (*domain.Cart, error)
	// UpsertItem inserts a line or, if one exists for (cart, product),
	// increments its quantity by the given amount. The stored price is kept
	// on increment.
	UpsertItem(ctx context.Context, cartID, productID uuid.UUID, quantity int, price float64) (*domain.CartItem, error)
	GetItem(ctx context.Context, cartID, productID uuid.UUID) (*domain.CartItem, error)
	SetItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) (*domain.CartItem, error)
	DeleteItem(ctx context.Context, itemID uuid.UUID) (*domain.CartItem, error)
	ListItems(ctx context.Context, cartID uuid.UUID) ([]domain.CartItem, error)
}

type OrderRepository interface {
	GetUserAddress(ctx context.Context, id uuid.UUID) (*domain.UserAddress, error)
	// CreateOrder persists the order, its line items and the address snapshot
	// in a single transaction, together with an order.created outbox event.
	CreateOrder(ctx context.Context, order *domain.Order, address domain.OrderAddress) error
	GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListOrders(ctx context.Context, status *domain.OrderStatus, limit, page int) ([]domain.Order, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) (*domain.Order, error)
	// MarkPaid transitions the order to PAID and writes the receipt. Applying
	// it again with the same payment id returns the order unchanged.
	MarkPaid(ctx context.Context, id uuid.UUID, paymentID, receiptURL string) (*domain.Order, error)
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
}

type Repository struct {
	db *sql.DB
}

func NewRepository(cred *Credentials) (*Repository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "orders_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}
