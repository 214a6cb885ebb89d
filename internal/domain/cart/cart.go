package cart

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pawmarket/backend/internal/domain/catalog"
	"github.com/pawmarket/backend/internal/domain/shared"
)

// Cart is the pending selection of a single customer. There is at most
// one cart per customer; it is created lazily on first access.
type Cart struct {
	shared.BaseAggregateRoot
	CustomerID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex" json:"customer_id"`
	Items      []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE" json:"items"`

	// Derived columns, recomputed on every mutation
	Subtotal decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"subtotal"`
	Tax      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"tax"`
	Shipping decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"shipping"`
	Total    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total"`
}

// CartItem is one product line in a cart. Price and display fields are
// snapshots taken when the line was added; Validate refreshes them.
type CartItem struct {
	shared.BaseEntity
	CartID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"cart_id"`
	ProductID uuid.UUID       `gorm:"type:uuid;not null" json:"product_id"`
	SellerID  uuid.UUID       `gorm:"type:uuid;not null" json:"seller_id"`
	Name      string          `gorm:"size:255;not null" json:"name"`
	Category  string          `gorm:"size:100" json:"category"`
	ImageURL  string          `gorm:"size:500" json:"image_url"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	Quantity  int64           `gorm:"not null" json:"quantity"`
}

// LineTotal returns unit price times quantity
func (i *CartItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(i.Quantity))
}

func (Cart) TableName() string     { return "carts" }
func (CartItem) TableName() string { return "cart_items" }

// NewCart creates an empty cart for a customer
func NewCart(customerID uuid.UUID) (*Cart, error) {
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "customer id is required")
	}
	return &Cart{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		CustomerID:        customerID,
		Subtotal:          decimal.Zero,
		Tax:               decimal.Zero,
		Shipping:          decimal.Zero,
		Total:             decimal.Zero,
	}, nil
}

// AddItem adds a product to the cart, merging with an existing line for
// the same product. Stock is checked against the resulting quantity.
func (c *Cart) AddItem(product *catalog.Product, quantity int64, policy PricingPolicy) error {
	if product == nil {
		return shared.ErrNotFound
	}
	if quantity < 1 {
		return shared.NewDomainError("VALIDATION_ERROR", "quantity must be at least 1")
	}
	if !product.Active {
		return shared.NewDomainError("VALIDATION_ERROR", "product is no longer available")
	}

	for i := range c.Items {
		if c.Items[i].ProductID == product.ID {
			newQty := c.Items[i].Quantity + quantity
			if !product.InStock(newQty) {
				return shared.ErrInsufficientStock
			}
			c.Items[i].Quantity = newQty
			c.RecomputeTotals(policy)
			c.IncrementVersion()
			return nil
		}
	}

	if !product.InStock(quantity) {
		return shared.ErrInsufficientStock
	}

	c.Items = append(c.Items, CartItem{
		BaseEntity: shared.NewBaseEntity(),
		CartID:     c.ID,
		ProductID:  product.ID,
		SellerID:   product.SellerID,
		Name:       product.Name,
		Category:   product.Category,
		ImageURL:   product.ImageURL,
		UnitPrice:  product.EffectivePrice(),
		Quantity:   quantity,
	})
	c.RecomputeTotals(policy)
	c.IncrementVersion()
	return nil
}

// UpdateItemQuantity sets the quantity of an existing line. Zero removes
// the line.
func (c *Cart) UpdateItemQuantity(productID uuid.UUID, quantity int64, stock int64, policy PricingPolicy) error {
	if quantity < 0 {
		return shared.NewDomainError("VALIDATION_ERROR", "quantity cannot be negative")
	}
	if quantity == 0 {
		return c.RemoveItem(productID, policy)
	}
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			if quantity > stock {
				return shared.ErrInsufficientStock
			}
			c.Items[i].Quantity = quantity
			c.RecomputeTotals(policy)
			c.IncrementVersion()
			return nil
		}
	}
	return shared.ErrNotFound
}

// RemoveItem deletes a line from the cart
func (c *Cart) RemoveItem(productID uuid.UUID, policy PricingPolicy) error {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			c.RecomputeTotals(policy)
			c.IncrementVersion()
			return nil
		}
	}
	return shared.ErrNotFound
}

// Clear removes every line
func (c *Cart) Clear(policy PricingPolicy) {
	c.Items = nil
	c.RecomputeTotals(policy)
	c.IncrementVersion()
}

// IsEmpty reports whether the cart has no lines
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// RecomputeTotals rederives the pricing columns from the lines. Called
// after every mutation so the stored totals never drift from the items.
func (c *Cart) RecomputeTotals(policy PricingPolicy) {
	subtotal := decimal.Zero
	for i := range c.Items {
		subtotal = subtotal.Add(c.Items[i].LineTotal())
	}
	t := policy.Compute(subtotal)
	c.Subtotal = t.Subtotal
	c.Tax = t.Tax
	c.Shipping = t.Shipping
	c.Total = t.Total
}

// Validation issue types reported by Validate
const (
	IssueRemoved          = "removed"
	IssueOutOfStock       = "out_of_stock"
	IssueQuantityAdjusted = "quantity_adjusted"
	IssuePriceChanged     = "price_changed"
)

// ValidationIssue describes one adjustment Validate made to the cart
type ValidationIssue struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Type        string          `json:"type"`
	OldQuantity int64           `json:"old_quantity,omitempty"`
	NewQuantity int64           `json:"new_quantity,omitempty"`
	OldPrice    decimal.Decimal `json:"old_price,omitempty"`
	NewPrice    decimal.Decimal `json:"new_price,omitempty"`
}

// Validate reconciles the cart against current catalog state and mutates
// it to a consistent, orderable shape. Lines whose product disappeared or
// went inactive are removed, quantities are clamped to available stock,
// and stale price snapshots are refreshed. The returned issues describe
// every change made; an empty slice means the cart was already valid.
// Running Validate twice in a row yields no further issues.
func (c *Cart) Validate(products map[uuid.UUID]*catalog.Product, policy PricingPolicy) []ValidationIssue {
	issues := []ValidationIssue{}
	kept := c.Items[:0]

	for i := range c.Items {
		item := c.Items[i]
		product, ok := products[item.ProductID]
		if !ok || !product.Active {
			issues = append(issues, ValidationIssue{
				ProductID:   item.ProductID,
				ProductName: item.Name,
				Type:        IssueRemoved,
			})
			continue
		}
		if product.Stock <= 0 {
			issues = append(issues, ValidationIssue{
				ProductID:   item.ProductID,
				ProductName: item.Name,
				Type:        IssueOutOfStock,
			})
			continue
		}
		if item.Quantity > product.Stock {
			issues = append(issues, ValidationIssue{
				ProductID:   item.ProductID,
				ProductName: item.Name,
				Type:        IssueQuantityAdjusted,
				OldQuantity: item.Quantity,
				NewQuantity: product.Stock,
			})
			item.Quantity = product.Stock
		}
		if current := product.EffectivePrice(); !item.UnitPrice.Equal(current) {
			issues = append(issues, ValidationIssue{
				ProductID:   item.ProductID,
				ProductName: item.Name,
				Type:        IssuePriceChanged,
				OldPrice:    item.UnitPrice,
				NewPrice:    current,
			})
			item.UnitPrice = current
		}
		kept = append(kept, item)
	}

	c.Items = kept
	c.RecomputeTotals(policy)
	if len(issues) > 0 {
		c.IncrementVersion()
	}
	return issues
}

// SellerIDs returns the distinct sellers represented in the cart, in
// first-appearance order
func (c *Cart) SellerIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(c.Items))
	var out []uuid.UUID
	for i := range c.Items {
		id := c.Items[i].SellerID
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Summary returns a short human description of the cart contents
func (c *Cart) Summary() string {
	if c.IsEmpty() {
		return "empty cart"
	}
	names := make([]string, 0, len(c.Items))
	for i := range c.Items {
		names = append(names, c.Items[i].Name)
	}
	return strings.Join(names, ", ")
}
