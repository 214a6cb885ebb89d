package cart

import (
	"context"

	"github.com/google/uuid"

	"github.com/pawmarket/backend/internal/domain/cart"
	"github.com/pawmarket/backend/internal/domain/catalog"
)

// CartService handles cart business operations
type CartService struct {
	cartRepo    cart.CartRepository
	productRepo catalog.ProductRepository
	policy      cart.PricingPolicy
}

// NewCartService creates a new CartService
func NewCartService(cartRepo cart.CartRepository, productRepo catalog.ProductRepository, policy cart.PricingPolicy) *CartService {
	return &CartService{
		cartRepo:    cartRepo,
		productRepo: productRepo,
		policy:      policy,
	}
}

// Get returns the customer's cart reconciled against current catalog
// state. Any adjustments made during reconciliation are persisted and
// reported as issues on the response.
func (s *CartService) Get(ctx context.Context, customerID uuid.UUID) (*CartResponse, error) {
	c, err := s.cartRepo.FindByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	issues, err := s.revalidate(ctx, c)
	if err != nil {
		return nil, err
	}

	resp := ToCartResponse(c, issues)
	return &resp, nil
}

// AddItem adds a product to the customer's cart
func (s *CartService) AddItem(ctx context.Context, customerID uuid.UUID, req AddItemRequest) (*CartResponse, error) {
	c, err := s.cartRepo.FindByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	product, err := s.productRepo.FindByID(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	if err := c.AddItem(product, req.Quantity, s.policy); err != nil {
		return nil, err
	}
	if err := s.cartRepo.Save(ctx, c); err != nil {
		return nil, err
	}

	resp := ToCartResponse(c, nil)
	return &resp, nil
}

// UpdateItem changes a line's quantity; zero removes the line
func (s *CartService) UpdateItem(ctx context.Context, customerID, productID uuid.UUID, req UpdateItemRequest) (*CartResponse, error) {
	c, err := s.cartRepo.FindByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	var stock int64
	if req.Quantity > 0 {
		product, err := s.productRepo.FindByID(ctx, productID)
		if err != nil {
			return nil, err
		}
		stock = product.Stock
	}

	if err := c.UpdateItemQuantity(productID, req.Quantity, stock, s.policy); err != nil {
		return nil, err
	}
	if err := s.cartRepo.Save(ctx, c); err != nil {
		return nil, err
	}

	resp := ToCartResponse(c, nil)
	return &resp, nil
}

// RemoveItem deletes a line from the customer's cart
func (s *CartService) RemoveItem(ctx context.Context, customerID, productID uuid.UUID) (*CartResponse, error) {
	c, err := s.cartRepo.FindByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	if err := c.RemoveItem(productID, s.policy); err != nil {
		return nil, err
	}
	if err := s.cartRepo.Save(ctx, c); err != nil {
		return nil, err
	}

	resp := ToCartResponse(c, nil)
	return &resp, nil
}

// Clear empties the customer's cart
func (s *CartService) Clear(ctx context.Context, customerID uuid.UUID) error {
	c, err := s.cartRepo.FindByCustomer(ctx, customerID)
	if err != nil {
		return err
	}
	c.Clear(s.policy)
	return s.cartRepo.Save(ctx, c)
}

// Validate reconciles the cart against the catalog and reports what
// changed. Used by the storefront before presenting checkout.
func (s *CartService) Validate(ctx context.Context, customerID uuid.UUID) (*CartResponse, error) {
	return s.Get(ctx, customerID)
}

// revalidate reconciles a loaded cart with catalog state, persisting it
// when anything changed
func (s *CartService) revalidate(ctx context.Context, c *cart.Cart) ([]cart.ValidationIssue, error) {
	if c.IsEmpty() {
		return nil, nil
	}

	ids := make([]uuid.UUID, 0, len(c.Items))
	for i := range c.Items {
		ids = append(ids, c.Items[i].ProductID)
	}

	products, err := s.productRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*catalog.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	issues := c.Validate(byID, s.policy)
	if len(issues) > 0 {
		if err := s.cartRepo.Save(ctx, c); err != nil {
			return nil, err
		}
	}
	return issues, nil
}
