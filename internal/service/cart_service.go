package service

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/jpalmad/go_orders/internal/client"
	"github.com/jpalmad/go_orders/internal/domain"
	"github.com/jpalmad/go_orders/internal/repository"
)

// CartService owns the single active cart per user. Every mutation reads
// current state from the store; nothing is cached across requests.
type CartService struct {
	repo     repository.CartRepository
	products client.ProductValidator
	sfg      singleflight.Group // collapses concurrent ensure-cart calls per user
}

func NewCartService(repo repository.CartRepository, products client.ProductValidator) *CartService {
	return &CartService{
		repo:     repo,
		products: products,
	}
}

// EnsureCart fetches the user's cart, creating it on first use. Safe to call
// repeatedly; an existing cart only gets its updated_at bumped.
func (s *CartService) EnsureCart(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	v, err, _ := s.sfg.Do(userID.String(), func() (interface{}, error) {
		return s.repo.EnsureCart(ctx, userID)
	})
	if err != nil {
		log.Printf("ensure cart for user %s: %v", userID, err)
		return nil, Upstreamf("could not resolve cart for user [%s]", userID)
	}
	return v.(*domain.Cart), nil
}

// AddItem merges quantity-additively: re-adding a product increments the
// existing line instead of duplicating it. The client-supplied price is
// advisory only; the validated catalog price is what gets stored.
func (s *CartService) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*domain.CartItem, error) {
	if quantity < 1 {
		return nil, Validationf("quantity must be at least 1")
	}

	cart, err := s.EnsureCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	verified, err := s.products.Validate(ctx, []uuid.UUID{productID})
	if err != nil {
		var notFound *client.ProductsNotFoundError
		if errors.As(err, &notFound) {
			return nil, NotFoundf("product with id [%s] was not found", productID)
		}
		log.Printf("validate product %s: %v", productID, err)
		return nil, Upstreamf("product validation failed")
	}

	item, err := s.repo.UpsertItem(ctx, cart.ID, productID, quantity, verified[0].Price)
	if err != nil {
		log.Printf("add cart item for user %s: %v", userID, err)
		return nil, Upstreamf("could not add item to cart")
	}
	return item, nil
}

// UpdateItem sets the quantity directly (replace, not merge). Quantity zero
// removes the line instead of persisting a zero-quantity row.
func (s *CartService) UpdateItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*domain.CartItem, error) {
	if quantity < 0 {
		return nil, Validationf("quantity must not be negative")
	}

	cart, err := s.EnsureCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	item, err := s.repo.GetItem(ctx, cart.ID, productID)
	if errors.Is(err, repository.ErrCartItemNotFound) {
		return nil, NotFoundf("can not update quantity, item was not found")
	}
	if err != nil {
		log.Printf("get cart item for user %s: %v", userID, err)
		return nil, Upstreamf("could not update cart item")
	}

	if quantity == 0 {
		return s.RemoveItem(ctx, item.ID)
	}

	updated, err := s.repo.SetItemQuantity(ctx, item.ID, quantity)
	if errors.Is(err, repository.ErrCartItemNotFound) {
		return nil, NotFoundf("can not update quantity, item was not found")
	}
	if err != nil {
		log.Printf("set cart item quantity for user %s: %v", userID, err)
		return nil, Upstreamf("could not update cart item")
	}
	return updated, nil
}

// RemoveItem deletes the line unconditionally and returns the deleted line.
func (s *CartService) RemoveItem(ctx context.Context, itemID uuid.UUID) (*domain.CartItem, error) {
	item, err := s.repo.DeleteItem(ctx, itemID)
	if errors.Is(err, repository.ErrCartItemNotFound) {
		return nil, NotFoundf("cart item with id [%s] not found", itemID)
	}
	if err != nil {
		log.Printf("delete cart item %s: %v", itemID, err)
		return nil, Upstreamf("could not remove cart item")
	}
	return item, nil
}

// ListItems returns the cart lines enriched with catalog display data. Lines
// whose product has since vanished from the catalog are returned without
// enrichment rather than failing the whole listing.
func (s *CartService) ListItems(ctx context.Context, userID uuid.UUID) ([]domain.CartItemView, error) {
	cart, err := s.EnsureCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.ListItems(ctx, cart.ID)
	if err != nil {
		log.Printf("list cart items for user %s: %v", userID, err)
		return nil, Upstreamf("could not list cart items")
	}
	if len(items) == 0 {
		return []domain.CartItemView{}, nil
	}

	ids := make([]uuid.UUID, len(items))
	for i, item := range items {
		ids[i] = item.ProductID
	}

	verified, err := s.products.Validate(ctx, ids)
	if err != nil {
		var notFound *client.ProductsNotFoundError
		if !errors.As(err, &notFound) {
			log.Printf("validate cart products for user %s: %v", userID, err)
			return nil, Upstreamf("product validation failed")
		}
		verified = notFound.Found
	}

	byID := make(map[uuid.UUID]domain.ValidatedProduct, len(verified))
	for _, p := range verified {
		byID[p.ID] = p
	}

	views := make([]domain.CartItemView, len(items))
	for i, item := range items {
		views[i] = domain.CartItemView{CartItem: item}
		if p, ok := byID[item.ProductID]; ok {
			views[i].ProductName = p.Name
			views[i].ProductImage = p.Image
		}
	}
	return views, nil
}
