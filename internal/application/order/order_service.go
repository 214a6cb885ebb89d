package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pawmarket/backend/internal/domain/cart"
	"github.com/pawmarket/backend/internal/domain/catalog"
	"github.com/pawmarket/backend/internal/domain/ledger"
	"github.com/pawmarket/backend/internal/domain/order"
	"github.com/pawmarket/backend/internal/domain/shared"
	"github.com/pawmarket/backend/internal/domain/shared/valueobject"
)

// conflictRetries bounds how often a lost optimistic-lock race is retried
const conflictRetries = 3

// CheckoutBlockedError is returned when the cart changed between being
// viewed and being checked out. The caller gets the reconciled issues
// and must re-present the cart.
type CheckoutBlockedError struct {
	Issues []cart.ValidationIssue
}

// Error implements the error interface
func (e *CheckoutBlockedError) Error() string {
	return fmt.Sprintf("cart changed during checkout: %d issue(s)", len(e.Issues))
}

// OrderService handles checkout and the order lifecycle
type OrderService struct {
	scope     TransactionScope
	orderRepo order.OrderRepository
	policy    cart.PricingPolicy
}

// NewOrderService creates a new OrderService
func NewOrderService(scope TransactionScope, orderRepo order.OrderRepository, policy cart.PricingPolicy) *OrderService {
	return &OrderService{
		scope:     scope,
		orderRepo: orderRepo,
		policy:    policy,
	}
}

// Checkout converts the customer's cart into a pending order. Within one
// transaction it revalidates the cart, reserves stock line by line,
// collects payment, freezes the order and empties the cart. Any failed
// step rolls the whole checkout back, including already reserved lines.
func (s *OrderService) Checkout(ctx context.Context, customerID uuid.UUID, req CheckoutRequest) (*OrderResponse, error) {
	address, err := valueobject.NewShippingAddress(
		req.ShippingAddress.Street,
		req.ShippingAddress.City,
		req.ShippingAddress.State,
		req.ShippingAddress.ZipCode,
		req.ShippingAddress.Country,
	)
	if err != nil {
		return nil, err
	}
	if !req.PaymentMethod.IsValid() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", fmt.Sprintf("unknown payment method %q", req.PaymentMethod))
	}

	var created *order.Order
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		c, err := repos.CartRepo().FindByCustomer(ctx, customerID)
		if err != nil {
			return err
		}
		if c.IsEmpty() {
			return shared.NewDomainError("EMPTY_CART", "cannot check out an empty cart")
		}

		issues, err := revalidateCart(ctx, repos.ProductRepo(), c, s.policy)
		if err != nil {
			return err
		}
		if len(issues) > 0 {
			// persist the reconciled cart so the retry starts clean
			if err := repos.CartRepo().Save(ctx, c); err != nil {
				return err
			}
			return &CheckoutBlockedError{Issues: issues}
		}

		for i := range c.Items {
			line := c.Items[i]
			if err := repos.ProductRepo().Reserve(ctx, line.ProductID, line.Quantity); err != nil {
				return err
			}
		}

		o, err := order.NewOrderFromCart(order.NewOrderNumber(), c, address, req.PaymentMethod)
		if err != nil {
			return err
		}

		if err := collectPayment(ctx, repos, o); err != nil {
			return err
		}

		if err := repos.OrderRepo().Save(ctx, o); err != nil {
			return err
		}
		if err := repos.CartRepo().Delete(ctx, c.ID); err != nil {
			return err
		}

		created = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp := ToOrderResponse(created)
	return &resp, nil
}

// collectPayment settles payment at checkout time. Balance payments
// debit the customer's accumulated balance and append the ledger entry
// that justifies the debit in the same transaction; card and paypal
// are captured by the external gateway before checkout is called; cash
// on delivery stays pending until the order is delivered.
func collectPayment(ctx context.Context, repos TransactionalRepositories, o *order.Order) error {
	switch o.PaymentMethod {
	case order.PaymentMethodBalance:
		if err := repos.UserRepo().AdjustBalance(ctx, o.CustomerID, o.Total.Neg()); err != nil {
			return err
		}
		charge, err := ledger.NewBalanceChargeTransaction(
			o.CustomerID, o.Total, o.ID,
			fmt.Sprintf("balance payment for order %s", o.OrderNumber),
		)
		if err != nil {
			return err
		}
		if err := repos.TransactionRepo().Save(ctx, charge); err != nil {
			return err
		}
		return o.UpdatePaymentStatus(order.PaymentStatusPaid)
	case order.PaymentMethodCard, order.PaymentMethodPaypal:
		return o.UpdatePaymentStatus(order.PaymentStatusPaid)
	case order.PaymentMethodCOD:
		return nil
	}
	return shared.NewDomainError("VALIDATION_ERROR", fmt.Sprintf("unknown payment method %q", o.PaymentMethod))
}

// Advance moves an order one step forward. Reaching delivered settles
// the order: one sale ledger entry per distinct seller, seller balances
// credited, and the revenue rollups of all granularities updated, all in
// the same transaction as the status change.
func (s *OrderService) Advance(ctx context.Context, orderID uuid.UUID) (*OrderResponse, error) {
	var result *order.Order
	err := s.withConflictRetry(func() error {
		return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			o, err := repos.OrderRepo().FindByID(ctx, orderID)
			if err != nil {
				return err
			}
			if err := o.Advance(); err != nil {
				return err
			}
			if o.Status == order.OrderStatusDelivered {
				if err := s.settle(ctx, repos, o); err != nil {
					return err
				}
			}
			if err := repos.OrderRepo().SaveWithLock(ctx, o); err != nil {
				return err
			}
			result = o
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	resp := ToOrderResponse(result)
	return &resp, nil
}

// TransitionTo moves an order to an explicit forward status
func (s *OrderService) TransitionTo(ctx context.Context, orderID uuid.UUID, target order.OrderStatus) (*OrderResponse, error) {
	var result *order.Order
	err := s.withConflictRetry(func() error {
		return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			o, err := repos.OrderRepo().FindByID(ctx, orderID)
			if err != nil {
				return err
			}
			if err := o.TransitionTo(target); err != nil {
				return err
			}
			if o.Status == order.OrderStatusDelivered {
				if err := s.settle(ctx, repos, o); err != nil {
					return err
				}
			}
			if err := repos.OrderRepo().SaveWithLock(ctx, o); err != nil {
				return err
			}
			result = o
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	resp := ToOrderResponse(result)
	return &resp, nil
}

// Cancel cancels an order from any non-terminal state. Reserved stock is
// returned and balance payments are refunded in the same transaction.
func (s *OrderService) Cancel(ctx context.Context, orderID, actorID uuid.UUID, req CancelOrderRequest) (*OrderResponse, error) {
	var result *order.Order
	err := s.withConflictRetry(func() error {
		return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			o, err := repos.OrderRepo().FindByID(ctx, orderID)
			if err != nil {
				return err
			}

			wasPaid := o.PaymentStatus == order.PaymentStatusPaid
			if err := o.Cancel(actorID, req.Reason); err != nil {
				return err
			}

			for i := range o.Items {
				line := o.Items[i]
				if err := repos.ProductRepo().Release(ctx, line.ProductID, line.Quantity); err != nil {
					return err
				}
			}

			if wasPaid && o.PaymentMethod == order.PaymentMethodBalance {
				if err := repos.UserRepo().AdjustBalance(ctx, o.CustomerID, o.Total); err != nil {
					return err
				}
				refund, err := ledger.NewBalanceRefundTransaction(
					o.CustomerID, o.Total, o.ID,
					fmt.Sprintf("balance refund for cancelled order %s", o.OrderNumber),
				)
				if err != nil {
					return err
				}
				if err := repos.TransactionRepo().Save(ctx, refund); err != nil {
					return err
				}
			}

			if err := repos.OrderRepo().SaveWithLock(ctx, o); err != nil {
				return err
			}
			result = o
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	resp := ToOrderResponse(result)
	return &resp, nil
}

// UpdatePaymentStatus records the outcome of an external payment capture
func (s *OrderService) UpdatePaymentStatus(ctx context.Context, orderID uuid.UUID, req UpdatePaymentStatusRequest) (*OrderResponse, error) {
	o, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := o.UpdatePaymentStatus(req.PaymentStatus); err != nil {
		return nil, err
	}
	if err := s.orderRepo.SaveWithLock(ctx, o); err != nil {
		return nil, err
	}
	resp := ToOrderResponse(o)
	return &resp, nil
}

// GetByID retrieves an order by ID
func (s *OrderService) GetByID(ctx context.Context, orderID uuid.UUID) (*OrderResponse, error) {
	o, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	resp := ToOrderResponse(o)
	return &resp, nil
}

// GetByNumber retrieves an order by its order number
func (s *OrderService) GetByNumber(ctx context.Context, orderNumber string) (*OrderResponse, error) {
	o, err := s.orderRepo.FindByOrderNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	resp := ToOrderResponse(o)
	return &resp, nil
}

// ListByCustomer lists a customer's orders, newest first
func (s *OrderService) ListByCustomer(ctx context.Context, customerID uuid.UUID, f OrderListFilter) ([]OrderResponse, error) {
	orders, err := s.orderRepo.FindByCustomer(ctx, customerID, toFilter(f))
	if err != nil {
		return nil, err
	}
	return ToOrderResponses(orders), nil
}

// ListBySeller lists orders containing the seller's products
func (s *OrderService) ListBySeller(ctx context.Context, sellerID uuid.UUID, f OrderListFilter) ([]OrderResponse, error) {
	orders, err := s.orderRepo.FindBySeller(ctx, sellerID, toFilter(f))
	if err != nil {
		return nil, err
	}
	return ToOrderResponses(orders), nil
}

// List lists all orders with filtering (admin view)
func (s *OrderService) List(ctx context.Context, f OrderListFilter) ([]OrderResponse, error) {
	filter := toFilter(f)
	if f.Status != nil {
		orders, err := s.orderRepo.FindByStatus(ctx, *f.Status, filter)
		if err != nil {
			return nil, err
		}
		return ToOrderResponses(orders), nil
	}
	orders, err := s.orderRepo.FindAll(ctx, filter)
	if err != nil {
		return nil, err
	}
	return ToOrderResponses(orders), nil
}

// settle appends one sale ledger entry per distinct seller and folds the
// order into the revenue rollups. Tax and shipping are split across
// sellers in proportion to their subtotal share; rounding remainders land
// on the last seller so the entries always sum to the order total.
func (s *OrderService) settle(ctx context.Context, repos TransactionalRepositories, o *order.Order) error {
	shares := o.SellerShares()
	sellers := o.SellerIDs()

	weights := make([]decimal.Decimal, 0, len(sellers))
	for _, sellerID := range sellers {
		weights = append(weights, shares[sellerID])
	}

	taxParts, err := valueobject.NewMoneyUSD(o.Tax).Allocate(weights)
	if err != nil {
		return err
	}
	shippingParts, err := valueobject.NewMoneyUSD(o.Shipping).Allocate(weights)
	if err != nil {
		return err
	}

	totalCommission := decimal.Zero
	for i, sellerID := range sellers {
		share := shares[sellerID]
		tax := taxParts[i].Amount()
		amount := share.Add(tax).Add(shippingParts[i].Amount())
		commission := s.policy.Commission(share)
		totalCommission = totalCommission.Add(commission)

		tx, err := ledger.NewSaleTransaction(
			sellerID, amount, tax, commission,
			ledger.ReferenceTypeOrder, o.ID,
			fmt.Sprintf("settlement of order %s", o.OrderNumber),
		)
		if err != nil {
			return err
		}
		if err := repos.TransactionRepo().Save(ctx, tx); err != nil {
			return err
		}
		if err := repos.UserRepo().AdjustBalance(ctx, sellerID, tx.NetAmount); err != nil {
			return err
		}
	}

	breakdown := make(map[string]decimal.Decimal)
	for i := range o.Items {
		line := o.Items[i]
		category := line.Category
		if category == "" {
			category = "uncategorized"
		}
		breakdown[category] = breakdown[category].Add(line.LineTotal())
	}

	delta := ledger.RevenueDelta{
		Orders:            1,
		ProductGross:      o.Subtotal,
		CategoryBreakdown: breakdown,
		Tax:               o.Tax,
		Shipping:          o.Shipping,
		Commission:        totalCommission,
	}
	return applyRevenueDelta(ctx, repos.RevenueRepo(), *o.DeliveredAt, delta)
}

// applyRevenueDelta folds a settlement into the rollup row of every
// granularity, keyed by the settlement timestamp
func applyRevenueDelta(ctx context.Context, repo ledger.RevenuePeriodRepository, at time.Time, delta ledger.RevenueDelta) error {
	for _, periodType := range ledger.AllPeriodTypes {
		period, err := repo.GetOrCreate(ctx, periodType, ledger.PeriodKeyFor(periodType, at))
		if err != nil {
			return err
		}
		period.ApplyDelta(delta)
		if err := repo.Save(ctx, period); err != nil {
			return err
		}
	}
	return nil
}

// withConflictRetry retries fn when it lost an optimistic-lock race
func (s *OrderService) withConflictRetry(fn func() error) error {
	var err error
	for attempt := 0; attempt < conflictRetries; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, shared.ErrConcurrencyConflict) {
			return err
		}
	}
	return err
}

// revalidateCart reconciles a cart against catalog state using the
// transaction's product repository
func revalidateCart(ctx context.Context, products catalog.ProductRepository, c *cart.Cart, policy cart.PricingPolicy) ([]cart.ValidationIssue, error) {
	ids := make([]uuid.UUID, 0, len(c.Items))
	for i := range c.Items {
		ids = append(ids, c.Items[i].ProductID)
	}
	found, err := products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*catalog.Product, len(found))
	for i := range found {
		byID[found[i].ID] = &found[i]
	}
	return c.Validate(byID, policy), nil
}

func toFilter(f OrderListFilter) shared.Filter {
	filter := shared.DefaultFilter()
	if f.Page > 0 {
		filter.Page = f.Page
	}
	if f.PageSize > 0 {
		filter.PageSize = f.PageSize
	}
	return filter
}
