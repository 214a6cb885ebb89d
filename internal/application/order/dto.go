package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pawmarket/backend/internal/domain/cart"
	"github.com/pawmarket/backend/internal/domain/order"
)

// ShippingAddressInput carries the address fields of a checkout request
type ShippingAddressInput struct {
	Street  string `json:"street" binding:"required,min=1,max=200"`
	City    string `json:"city" binding:"required,min=1,max=100"`
	State   string `json:"state" binding:"required,min=1,max=100"`
	ZipCode string `json:"zip_code" binding:"required"`
	Country string `json:"country" binding:"required,min=2,max=100"`
}

// CheckoutRequest represents a request to convert the cart to an order
type CheckoutRequest struct {
	ShippingAddress ShippingAddressInput `json:"shipping_address" binding:"required"`
	PaymentMethod   order.PaymentMethod  `json:"payment_method" binding:"required"`
}

// CancelOrderRequest represents a request to cancel an order
type CancelOrderRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// UpdatePaymentStatusRequest represents a payment status update
type UpdatePaymentStatusRequest struct {
	PaymentStatus order.PaymentStatus `json:"payment_status" binding:"required"`
}

// TransitionRequest represents an explicit status transition
type TransitionRequest struct {
	Status order.OrderStatus `json:"status" binding:"required"`
}

// OrderListFilter represents filter options for order lists
type OrderListFilter struct {
	Status   *order.OrderStatus `form:"status"`
	Page     int                `form:"page"`
	PageSize int                `form:"page_size"`
}

// OrderItemResponse represents one frozen order line
type OrderItemResponse struct {
	ProductID uuid.UUID       `json:"product_id"`
	SellerID  uuid.UUID       `json:"seller_id"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	ImageURL  string          `json:"image_url,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int64           `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// OrderResponse represents an order
type OrderResponse struct {
	ID              uuid.UUID           `json:"id"`
	OrderNumber     string              `json:"order_number"`
	CustomerID      uuid.UUID           `json:"customer_id"`
	Items           []OrderItemResponse `json:"items"`
	ShippingAddress ShippingAddressInput `json:"shipping_address"`
	PaymentMethod   order.PaymentMethod `json:"payment_method"`
	PaymentStatus   order.PaymentStatus `json:"payment_status"`
	Status          order.OrderStatus   `json:"status"`
	Subtotal        decimal.Decimal     `json:"subtotal"`
	Tax             decimal.Decimal     `json:"tax"`
	Shipping        decimal.Decimal     `json:"shipping"`
	Total           decimal.Decimal     `json:"total"`
	ProcessedAt     *time.Time          `json:"processed_at,omitempty"`
	ShippedAt       *time.Time          `json:"shipped_at,omitempty"`
	DeliveredAt     *time.Time          `json:"delivered_at,omitempty"`
	CancelledAt     *time.Time          `json:"cancelled_at,omitempty"`
	CancelledBy     *uuid.UUID          `json:"cancelled_by,omitempty"`
	CancelReason    string              `json:"cancel_reason,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
}

// CheckoutBlockedResponse reports why checkout could not proceed
type CheckoutBlockedResponse struct {
	Issues []cart.ValidationIssue `json:"issues"`
}

// ToOrderResponse converts an order aggregate to its response DTO
func ToOrderResponse(o *order.Order) OrderResponse {
	items := make([]OrderItemResponse, 0, len(o.Items))
	for i := range o.Items {
		line := o.Items[i]
		items = append(items, OrderItemResponse{
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
	return OrderResponse{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		CustomerID:  o.CustomerID,
		Items:       items,
		ShippingAddress: ShippingAddressInput{
			Street:  o.ShippingAddress.Street,
			City:    o.ShippingAddress.City,
			State:   o.ShippingAddress.State,
			ZipCode: o.ShippingAddress.ZipCode,
			Country: o.ShippingAddress.Country,
		},
		PaymentMethod: o.PaymentMethod,
		PaymentStatus: o.PaymentStatus,
		Status:        o.Status,
		Subtotal:      o.Subtotal,
		Tax:           o.Tax,
		Shipping:      o.Shipping,
		Total:         o.Total,
		ProcessedAt:   o.ProcessedAt,
		ShippedAt:     o.ShippedAt,
		DeliveredAt:   o.DeliveredAt,
		CancelledAt:   o.CancelledAt,
		CancelledBy:   o.CancelledBy,
		CancelReason:  o.CancelReason,
		CreatedAt:     o.CreatedAt,
	}
}

// ToOrderResponses converts a slice of orders
func ToOrderResponses(orders []order.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, ToOrderResponse(&orders[i]))
	}
	return out
}
