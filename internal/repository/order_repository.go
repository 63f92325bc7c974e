package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jpalmad/go_orders/internal/domain"
)

const orderColumns = `id, created_by, status, total_amount, total_items, discount_applied,
	coupon_used, is_paid, paid_at, payment_id, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*domain.Order, error) {
	var order domain.Order
	var paidAt sql.NullTime
	var paymentID sql.NullString
	err := row.Scan(
		&order.ID,
		&order.CreatedBy,
		&order.Status,
		&order.TotalAmount,
		&order.TotalItems,
		&order.DiscountApplied,
		&order.CouponUsed,
		&order.IsPaid,
		&paidAt,
		&paymentID,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if paidAt.Valid {
		order.PaidAt = &paidAt.Time
	}
	order.PaymentID = paymentID.String
	return &order, nil
}

func (r *Repository) GetUserAddress(ctx context.Context, id uuid.UUID) (*domain.UserAddress, error) {
	query := `SELECT id, user_id, street_name, exterior_number, interior_number,
	                 neighborhood, city, state, country, zip_code
	          FROM user_addresses WHERE id = $1`

	var addr domain.UserAddress
	var interior sql.NullString
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&addr.ID,
		&addr.UserID,
		&addr.StreetName,
		&addr.ExteriorNumber,
		&interior,
		&addr.Neighborhood,
		&addr.City,
		&addr.State,
		&addr.Country,
		&addr.ZipCode,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAddressNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user address: %w", err)
	}
	addr.InteriorNumber = interior.String
	return &addr, nil
}

func (r *Repository) CreateOrder(ctx context.Context, order *domain.Order, address domain.OrderAddress) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin order tx: %w", err)
	}
	defer tx.Rollback()

	insertOrder := `INSERT INTO orders (id, created_by, status, total_amount, total_items, discount_applied, coupon_used)
	                VALUES ($1, $2, $3, $4, $5, $6, $7)
	                RETURNING created_at, updated_at`

	err = tx.QueryRowContext(ctx, insertOrder,
		order.ID,
		order.CreatedBy,
		order.Status,
		order.TotalAmount,
		order.TotalItems,
		order.DiscountApplied,
		order.CouponUsed,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	insertItem := `INSERT INTO order_items (order_id, product_id, quantity, price)
	               VALUES ($1, $2, $3, $4)`
	for _, item := range order.Items {
		if _, err := tx.ExecContext(ctx, insertItem, order.ID, item.ProductID, item.Quantity, item.Price); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	insertAddress := `INSERT INTO order_addresses (order_id, street_name, exterior_number, interior_number,
	                                               neighborhood, city, state, country, zip_code)
	                  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err = tx.ExecContext(ctx, insertAddress,
		order.ID,
		address.StreetName,
		address.ExteriorNumber,
		nullIfEmpty(address.InteriorNumber),
		address.Neighborhood,
		address.City,
		address.State,
		address.Country,
		address.ZipCode,
	)
	if err != nil {
		return fmt.Errorf("insert order address: %w", err)
	}

	if err := insertOutboxEvent(ctx, tx, order.ID.String(), "order.created", order); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order tx: %w", err)
	}
	order.Address = &address
	return nil
}

func (r *Repository) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}

	itemsQuery := `SELECT product_id, quantity, price FROM order_items WHERE order_id = $1`
	rows, err := r.db.QueryContext(ctx, itemsQuery, id)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.Price); err != nil {
			return nil, fmt.Errorf("scan order item row: %w", err)
		}
		order.Items = append(order.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return order, nil
}

func (r *Repository) ListOrders(ctx context.Context, status *domain.OrderStatus, limit, page int) ([]domain.Order, int, error) {
	var total int
	countQuery := `SELECT count(*) FROM orders WHERE ($1::text IS NULL OR status = $1)`
	var statusArg any
	if status != nil {
		statusArg = string(*status)
	}
	if err := r.db.QueryRowContext(ctx, countQuery, statusArg).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	query := `SELECT ` + orderColumns + `
	          FROM orders
	          WHERE ($1::text IS NULL OR status = $1)
	          ORDER BY created_at DESC
	          LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, statusArg, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("row iteration error: %w", err)
	}

	return orders, total, nil
}

func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) (*domain.Order, error) {
	query := `UPDATE orders SET status = $2, updated_at = now()
	          WHERE id = $1
	          RETURNING ` + orderColumns

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id, status))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	return order, nil
}

// MarkPaid locks the order row, so a concurrent retry observes either the
// unpaid order or the fully applied payment, never something in between. The
// receipt insert is ON CONFLICT DO NOTHING to keep it one-to-one on retries.
func (r *Repository) MarkPaid(ctx context.Context, id uuid.UUID, paymentID, receiptURL string) (*domain.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin paid tx: %w", err)
	}
	defer tx.Rollback()

	lockQuery := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`
	order, err := scanOrder(tx.QueryRowContext(ctx, lockQuery, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock order: %w", err)
	}

	if order.IsPaid && order.PaymentID == paymentID {
		// Duplicate confirmation, nothing to apply.
		return order, tx.Commit()
	}

	updateQuery := `UPDATE orders
	                SET status = $2, is_paid = TRUE, paid_at = now(), payment_id = $3, updated_at = now()
	                WHERE id = $1
	                RETURNING ` + orderColumns
	order, err = scanOrder(tx.QueryRowContext(ctx, updateQuery, id, domain.OrderStatusPaid, paymentID))
	if err != nil {
		return nil, fmt.Errorf("mark order paid: %w", err)
	}

	receiptQuery := `INSERT INTO order_receipts (order_id, receipt_url)
	                 VALUES ($1, $2)
	                 ON CONFLICT (order_id) DO NOTHING`
	if _, err := tx.ExecContext(ctx, receiptQuery, id, receiptURL); err != nil {
		return nil, fmt.Errorf("insert order receipt: %w", err)
	}

	if err := insertOutboxEvent(ctx, tx, order.ID.String(), "order.paid", order); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit paid tx: %w", err)
	}
	return order, nil
}

func (r *Repository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	query := `SELECT id, aggregate_id, event_type, payload, created_at
	          FROM outbox_events
	          WHERE NOT processed
	          ORDER BY id
	          LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var event OutboxEvent
		if err := rows.Scan(&event.ID, &event.AggregateID, &event.EventType, &event.Payload, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return events, nil
}

func (r *Repository) MarkEventAsProcessed(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE outbox_events SET processed = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark outbox event processed: %w", err)
	}
	return nil
}

func insertOutboxEvent(ctx context.Context, tx *sql.Tx, aggregateID, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}
	query := `INSERT INTO outbox_events (aggregate_id, event_type, payload) VALUES ($1, $2, $3)`
	if _, err := tx.ExecContext(ctx, query, aggregateID, eventType, data); err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
