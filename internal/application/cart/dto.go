package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pawmarket/backend/internal/domain/cart"
)

// AddItemRequest represents a request to add a product to the cart
type AddItemRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Quantity  int64     `json:"quantity" binding:"required,min=1"`
}

// UpdateItemRequest represents a request to change a line's quantity.
// Zero removes the line.
type UpdateItemRequest struct {
	Quantity int64 `json:"quantity" binding:"min=0"`
}

// CartItemResponse represents one cart line
type CartItemResponse struct {
	ProductID uuid.UUID       `json:"product_id"`
	SellerID  uuid.UUID       `json:"seller_id"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	ImageURL  string          `json:"image_url,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int64           `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// CartResponse represents the full cart with derived totals
type CartResponse struct {
	ID         uuid.UUID              `json:"id"`
	CustomerID uuid.UUID              `json:"customer_id"`
	Items      []CartItemResponse     `json:"items"`
	Subtotal   decimal.Decimal        `json:"subtotal"`
	Tax        decimal.Decimal        `json:"tax"`
	Shipping   decimal.Decimal        `json:"shipping"`
	Total      decimal.Decimal        `json:"total"`
	Issues     []cart.ValidationIssue `json:"issues,omitempty"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// ToCartResponse converts a cart aggregate to its response DTO
func ToCartResponse(c *cart.Cart, issues []cart.ValidationIssue) CartResponse {
	items := make([]CartItemResponse, 0, len(c.Items))
	for i := range c.Items {
		line := c.Items[i]
		items = append(items, CartItemResponse{
			ProductID: line.ProductID,
			SellerID:  line.SellerID,
			Name:      line.Name,
			Category:  line.Category,
			ImageURL:  line.ImageURL,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
			LineTotal: line.LineTotal(),
		})
	}
	return CartResponse{
		ID:         c.ID,
		CustomerID: c.CustomerID,
		Items:      items,
		Subtotal:   c.Subtotal,
		Tax:        c.Tax,
		Shipping:   c.Shipping,
		Total:      c.Total,
		Issues:     issues,
		UpdatedAt:  c.UpdatedAt,
	}
}
