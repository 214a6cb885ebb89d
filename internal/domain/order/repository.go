package order

import (
	"context"

	"github.com/google/uuid"

	"github.com/pawmarket/backend/internal/domain/shared"
)

// OrderRepository defines the interface for order persistence
type OrderRepository interface {
	// FindByID finds an order by ID with its items
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)

	// FindByOrderNumber finds an order by its order number
	FindByOrderNumber(ctx context.Context, orderNumber string) (*Order, error)

	// FindByCustomer finds a customer's orders, newest first
	FindByCustomer(ctx context.Context, customerID uuid.UUID, filter shared.Filter) ([]Order, error)

	// FindBySeller finds orders containing at least one item from the
	// seller, newest first
	FindBySeller(ctx context.Context, sellerID uuid.UUID, filter shared.Filter) ([]Order, error)

	// FindByStatus finds orders by fulfillment status
	FindByStatus(ctx context.Context, status OrderStatus, filter shared.Filter) ([]Order, error)

	// FindAll lists orders with filtering
	FindAll(ctx context.Context, filter shared.Filter) ([]Order, error)

	// Save creates or updates an order
	Save(ctx context.Context, order *Order) error

	// SaveWithLock saves with optimistic locking (version check). Fails
	// with shared.ErrConcurrencyConflict when the stored version moved.
	SaveWithLock(ctx context.Context, order *Order) error

	// CountByCustomer counts a customer's orders
	CountByCustomer(ctx context.Context, customerID uuid.UUID) (int64, error)

	// CountByStatus counts orders in a fulfillment status
	CountByStatus(ctx context.Context, status OrderStatus) (int64, error)
}
