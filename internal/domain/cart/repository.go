package cart

import (
	"context"

	"github.com/google/uuid"
)

// CartRepository persists carts
type CartRepository interface {
	// FindByCustomer returns the customer's cart, creating an empty one
	// if none exists yet
	FindByCustomer(ctx context.Context, customerID uuid.UUID) (*Cart, error)
	Save(ctx context.Context, cart *Cart) error
	// Delete removes the cart and its items. Used after checkout.
	Delete(ctx context.Context, cartID uuid.UUID) error
}
