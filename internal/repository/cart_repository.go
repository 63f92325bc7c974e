package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jpalmad/go_orders/internal/domain"
)

const cartItemColumns = `id, cart_id, product_id, quantity, price, created_at, updated_at`

func scanCartItem(row interface{ Scan(...any) error }) (*domain.CartItem, error) {
	var item domain.CartItem
	err := row.Scan(
		&item.ID,
		&item.CartID,
		&item.ProductID,
		&item.Quantity,
		&item.Price,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// EnsureCart is a single insert-or-touch statement, so two concurrent calls
// for the same user cannot both insert. The no-op update is what makes
// RETURNING yield the existing row on conflict, and it also bumps updated_at
// the way repeated cart.create calls always did.
func (r *Repository) EnsureCart(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	query := `INSERT INTO carts (user_id)
	          VALUES ($1)
	          ON CONFLICT (user_id) DO UPDATE SET updated_at = now()
	          RETURNING id, user_id, created_at, updated_at`

	var cart domain.Cart
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&cart.ID,
		&cart.UserID,
		&cart.CreatedAt,
		&cart.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("ensure cart: %w", err)
	}
	return &cart, nil
}

// UpsertItem closes the read-then-write race on cart merge: insert and
// increment are one statement. The stored price is left untouched when the
// line already exists.
func (r *Repository) UpsertItem(ctx context.Context, cartID, productID uuid.UUID, quantity int, price float64) (*domain.CartItem, error) {
	query := `INSERT INTO cart_items (cart_id, product_id, quantity, price)
	          VALUES ($1, $2, $3, $4)
	          ON CONFLICT (cart_id, product_id)
	          DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = now()
	          RETURNING ` + cartItemColumns

	item, err := scanCartItem(r.db.QueryRowContext(ctx, query, cartID, productID, quantity, price))
	if err != nil {
		return nil, fmt.Errorf("upsert cart item: %w", err)
	}
	return item, nil
}

func (r *Repository) GetItem(ctx context.Context, cartID, productID uuid.UUID) (*domain.CartItem, error) {
	query := `SELECT ` + cartItemColumns + ` FROM cart_items WHERE cart_id = $1 AND product_id = $2`

	item, err := scanCartItem(r.db.QueryRowContext(ctx, query, cartID, productID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCartItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query cart item: %w", err)
	}
	return item, nil
}

func (r *Repository) SetItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) (*domain.CartItem, error) {
	query := `UPDATE cart_items SET quantity = $2, updated_at = now()
	          WHERE id = $1
	          RETURNING ` + cartItemColumns

	item, err := scanCartItem(r.db.QueryRowContext(ctx, query, itemID, quantity))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCartItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update cart item quantity: %w", err)
	}
	return item, nil
}

func (r *Repository) DeleteItem(ctx context.Context, itemID uuid.UUID) (*domain.CartItem, error) {
	query := `DELETE FROM cart_items WHERE id = $1 RETURNING ` + cartItemColumns

	item, err := scanCartItem(r.db.QueryRowContext(ctx, query, itemID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCartItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("delete cart item: %w", err)
	}
	return item, nil
}

func (r *Repository) ListItems(ctx context.Context, cartID uuid.UUID) ([]domain.CartItem, error) {
	query := `SELECT ` + cartItemColumns + ` FROM cart_items WHERE cart_id = $1 ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("query cart items: %w", err)
	}
	defer rows.Close()

	var items []domain.CartItem
	for rows.Next() {
		item, err := scanCartItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cart item row: %w", err)
		}
		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return items, nil
}
