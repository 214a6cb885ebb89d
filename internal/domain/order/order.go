package order

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pawmarket/backend/internal/domain/cart"
	"github.com/pawmarket/backend/internal/domain/shared"
	"github.com/pawmarket/backend/internal/domain/shared/valueobject"
)

// OrderStatus represents the fulfillment state of an order
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// IsValid checks if the status is a valid OrderStatus
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of OrderStatus
func (s OrderStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further transitions are possible
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanTransitionTo checks if the status can transition to the target status.
// Fulfillment moves strictly forward; cancellation is reachable from any
// non-terminal state.
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	switch s {
	case OrderStatusPending:
		return target == OrderStatusProcessing || target == OrderStatusCancelled
	case OrderStatusProcessing:
		return target == OrderStatusShipped || target == OrderStatusCancelled
	case OrderStatusShipped:
		return target == OrderStatusDelivered || target == OrderStatusCancelled
	case OrderStatusDelivered, OrderStatusCancelled:
		return false
	}
	return false
}

// Next returns the forward fulfillment step from this status, or empty
// when there is none
func (s OrderStatus) Next() OrderStatus {
	switch s {
	case OrderStatusPending:
		return OrderStatusProcessing
	case OrderStatusProcessing:
		return OrderStatusShipped
	case OrderStatusShipped:
		return OrderStatusDelivered
	}
	return ""
}

// PaymentMethod is how the customer pays for an order
type PaymentMethod string

const (
	PaymentMethodCard    PaymentMethod = "card"
	PaymentMethodPaypal  PaymentMethod = "paypal"
	PaymentMethodCOD     PaymentMethod = "cod"
	PaymentMethodBalance PaymentMethod = "balance"
)

// IsValid checks if the payment method is recognized
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCard, PaymentMethodPaypal, PaymentMethodCOD, PaymentMethodBalance:
		return true
	}
	return false
}

// PaymentStatus tracks payment collection separately from fulfillment
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// IsValid checks if the payment status is recognized
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

// OrderItem is an immutable snapshot of one purchased line. Catalog
// changes after checkout never alter it.
type OrderItem struct {
	shared.BaseEntity
	OrderID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"order_id"`
	ProductID uuid.UUID       `gorm:"type:uuid;not null" json:"product_id"`
	SellerID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"seller_id"`
	Name      string          `gorm:"size:255;not null" json:"name"`
	Category  string          `gorm:"size:100" json:"category"`
	ImageURL  string          `gorm:"size:500" json:"image_url"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	Quantity  int64           `gorm:"not null" json:"quantity"`
}

// LineTotal returns unit price times quantity
func (i *OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(i.Quantity))
}

// Order is the order aggregate root. It owns the fulfillment state
// machine and the frozen pricing captured at checkout.
type Order struct {
	shared.BaseAggregateRoot
	OrderNumber string      `gorm:"size:32;not null;uniqueIndex" json:"order_number"`
	CustomerID  uuid.UUID   `gorm:"type:uuid;not null;index" json:"customer_id"`
	Items       []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`

	ShippingAddress valueobject.ShippingAddress `gorm:"type:jsonb" json:"shipping_address"`
	PaymentMethod   PaymentMethod               `gorm:"size:20;not null" json:"payment_method"`
	PaymentStatus   PaymentStatus               `gorm:"size:20;not null" json:"payment_status"`
	Status          OrderStatus                 `gorm:"size:20;not null;index" json:"status"`

	Subtotal decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	Tax      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"tax"`
	Shipping decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"shipping"`
	Total    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`

	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
	ShippedAt    *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt  *time.Time `json:"delivered_at,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CancelledBy  *uuid.UUID `gorm:"type:uuid" json:"cancelled_by,omitempty"`
	CancelReason string     `gorm:"size:500" json:"cancel_reason,omitempty"`
}

func (Order) TableName() string     { return "orders" }
func (OrderItem) TableName() string { return "order_items" }

// NewOrderFromCart freezes a validated cart into a pending order. The
// cart must already be reconciled against the catalog; this constructor
// copies its lines and totals verbatim.
func NewOrderFromCart(orderNumber string, c *cart.Cart, address valueobject.ShippingAddress, method PaymentMethod) (*Order, error) {
	if orderNumber == "" {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "order number cannot be empty")
	}
	if c == nil || c.IsEmpty() {
		return nil, shared.NewDomainError("EMPTY_CART", "cannot create an order from an empty cart")
	}
	if !method.IsValid() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", fmt.Sprintf("unknown payment method %q", method))
	}
	if address.IsEmpty() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "shipping address is required")
	}

	o := &Order{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		OrderNumber:       orderNumber,
		CustomerID:        c.CustomerID,
		ShippingAddress:   address,
		PaymentMethod:     method,
		PaymentStatus:     PaymentStatusPending,
		Status:            OrderStatusPending,
		Subtotal:          c.Subtotal,
		Tax:               c.Tax,
		Shipping:          c.Shipping,
		Total:             c.Total,
	}

	o.Items = make([]OrderItem, 0, len(c.Items))
	for i := range c.Items {
		line := c.Items[i]
		o.Items = append(o.Items, OrderItem{
			BaseEntity: shared.NewBaseEntity(),
			OrderID:    o.ID,
			ProductID:  line.ProductID,
			SellerID:   line.SellerID,
			Name:       line.Name,
			Category:   line.Category,
			ImageURL:   line.ImageURL,
			UnitPrice:  line.UnitPrice,
			Quantity:   line.Quantity,
		})
	}

	o.AddDomainEvent(NewOrderCreatedEvent(o))

	return o, nil
}

// Advance moves the order one step forward through fulfillment:
// pending -> processing -> shipped -> delivered.
func (o *Order) Advance() error {
	next := o.Status.Next()
	if next == "" {
		return shared.NewDomainError("INVALID_TRANSITION", fmt.Sprintf("cannot advance order in %s status", o.Status))
	}
	return o.transitionTo(next)
}

// TransitionTo moves the order to an explicit target status. Skipping
// steps is not allowed.
func (o *Order) TransitionTo(target OrderStatus) error {
	if !target.IsValid() {
		return shared.NewDomainError("VALIDATION_ERROR", fmt.Sprintf("unknown order status %q", target))
	}
	if target == OrderStatusCancelled {
		return shared.NewDomainError("VALIDATION_ERROR", "use Cancel to cancel an order")
	}
	return o.transitionTo(target)
}

func (o *Order) transitionTo(target OrderStatus) error {
	if !o.Status.CanTransitionTo(target) {
		return shared.NewDomainError("INVALID_TRANSITION",
			fmt.Sprintf("cannot transition order from %s to %s", o.Status, target))
	}

	now := time.Now()
	o.Status = target
	switch target {
	case OrderStatusProcessing:
		o.ProcessedAt = &now
	case OrderStatusShipped:
		o.ShippedAt = &now
	case OrderStatusDelivered:
		o.DeliveredAt = &now
		if o.PaymentMethod == PaymentMethodCOD && o.PaymentStatus == PaymentStatusPending {
			o.PaymentStatus = PaymentStatusPaid
		}
		o.AddDomainEvent(NewOrderDeliveredEvent(o))
	}
	o.UpdatedAt = now
	o.IncrementVersion()

	return nil
}

// Cancel cancels the order from any non-terminal state and records who
// did it. A paid order flips to refunded in the same step so the whole
// cancellation is one version bump. Stock release and the balance
// re-credit are handled by the application service.
func (o *Order) Cancel(actorID uuid.UUID, reason string) error {
	if !o.Status.CanTransitionTo(OrderStatusCancelled) {
		return shared.NewDomainError("INVALID_TRANSITION", fmt.Sprintf("cannot cancel order in %s status", o.Status))
	}
	if actorID == uuid.Nil {
		return shared.NewDomainError("VALIDATION_ERROR", "cancelling actor is required")
	}

	wasPaid := o.PaymentStatus == PaymentStatusPaid
	now := time.Now()
	o.Status = OrderStatusCancelled
	o.CancelledAt = &now
	o.CancelledBy = &actorID
	o.CancelReason = reason
	if wasPaid {
		o.PaymentStatus = PaymentStatusRefunded
	}
	o.UpdatedAt = now
	o.IncrementVersion()

	o.AddDomainEvent(NewOrderCancelledEvent(o, wasPaid))

	return nil
}

// UpdatePaymentStatus records the outcome of payment collection
func (o *Order) UpdatePaymentStatus(status PaymentStatus) error {
	if !status.IsValid() {
		return shared.NewDomainError("VALIDATION_ERROR", fmt.Sprintf("unknown payment status %q", status))
	}
	if o.PaymentStatus == PaymentStatusRefunded {
		return shared.NewDomainError("INVALID_TRANSITION", "payment is already refunded")
	}
	if status == PaymentStatusRefunded && o.PaymentStatus != PaymentStatusPaid {
		return shared.NewDomainError("INVALID_TRANSITION", "only a paid order can be refunded")
	}

	o.PaymentStatus = status
	o.UpdatedAt = time.Now()
	o.IncrementVersion()

	return nil
}

// SellerShares returns, per distinct seller, that seller's share of the
// order subtotal. Used at delivery to split the settlement.
func (o *Order) SellerShares() map[uuid.UUID]decimal.Decimal {
	shares := make(map[uuid.UUID]decimal.Decimal)
	for i := range o.Items {
		line := o.Items[i]
		shares[line.SellerID] = shares[line.SellerID].Add(line.LineTotal())
	}
	return shares
}

// SellerIDs returns the distinct sellers in item order
func (o *Order) SellerIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(o.Items))
	var out []uuid.UUID
	for i := range o.Items {
		id := o.Items[i].SellerID
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// TotalQuantity returns the sum of all item quantities
func (o *Order) TotalQuantity() int64 {
	var total int64
	for i := range o.Items {
		total += o.Items[i].Quantity
	}
	return total
}

// NewOrderNumber generates a unique human-readable order number,
// e.g. ORD-20260831-1A2B3C4D
func NewOrderNumber() string {
	id := uuid.New()
	return fmt.Sprintf("ORD-%s-%X", time.Now().UTC().Format("20060102"), id[:4])
}
