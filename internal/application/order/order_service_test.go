package order

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pawmarket/backend/internal/domain/cart"
	"github.com/pawmarket/backend/internal/domain/catalog"
	"github.com/pawmarket/backend/internal/domain/identity"
	"github.com/pawmarket/backend/internal/domain/ledger"
	"github.com/pawmarket/backend/internal/domain/order"
	"github.com/pawmarket/backend/internal/domain/shared"
	"github.com/pawmarket/backend/internal/domain/shared/valueobject"
)

// MockCartRepository is a mock implementation of cart.CartRepository
type MockCartRepository struct {
	mock.Mock
}

func (m *MockCartRepository) FindByCustomer(ctx context.Context, customerID uuid.UUID) (*cart.Cart, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cart.Cart), args.Error(1)
}

func (m *MockCartRepository) Save(ctx context.Context, c *cart.Cart) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockCartRepository) Delete(ctx context.Context, cartID uuid.UUID) error {
	args := m.Called(ctx, cartID)
	return args.Error(0)
}

// MockOrderRepository is a mock implementation of order.OrderRepository
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepository) FindByOrderNumber(ctx context.Context, orderNumber string) (*order.Order, error) {
	args := m.Called(ctx, orderNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepository) FindByCustomer(ctx context.Context, customerID uuid.UUID, filter shared.Filter) ([]order.Order, error) {
	args := m.Called(ctx, customerID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.Order), args.Error(1)
}

func (m *MockOrderRepository) FindBySeller(ctx context.Context, sellerID uuid.UUID, filter shared.Filter) ([]order.Order, error) {
	args := m.Called(ctx, sellerID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.Order), args.Error(1)
}

func (m *MockOrderRepository) FindByStatus(ctx context.Context, status order.OrderStatus, filter shared.Filter) ([]order.Order, error) {
	args := m.Called(ctx, status, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.Order), args.Error(1)
}

func (m *MockOrderRepository) FindAll(ctx context.Context, filter shared.Filter) ([]order.Order, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.Order), args.Error(1)
}

func (m *MockOrderRepository) Save(ctx context.Context, o *order.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockOrderRepository) SaveWithLock(ctx context.Context, o *order.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockOrderRepository) CountByCustomer(ctx context.Context, customerID uuid.UUID) (int64, error) {
	args := m.Called(ctx, customerID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOrderRepository) CountByStatus(ctx context.Context, status order.OrderStatus) (int64, error) {
	args := m.Called(ctx, status)
	return args.Get(0).(int64), args.Error(1)
}

// MockProductRepository is a mock implementation of catalog.ProductRepository
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockProductRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]catalog.Product, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Product), args.Error(1)
}

func (m *MockProductRepository) Reserve(ctx context.Context, id uuid.UUID, qty int64) error {
	args := m.Called(ctx, id, qty)
	return args.Error(0)
}

func (m *MockProductRepository) Release(ctx context.Context, id uuid.UUID, qty int64) error {
	args := m.Called(ctx, id, qty)
	return args.Error(0)
}

// MockUserRepository is a mock implementation of identity.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*identity.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.User), args.Error(1)
}

func (m *MockUserRepository) Save(ctx context.Context, u *identity.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockUserRepository) AdjustBalance(ctx context.Context, id uuid.UUID, delta decimal.Decimal) error {
	args := m.Called(ctx, id, delta)
	return args.Error(0)
}

// MockTransactionRepository is a mock implementation of ledger.TransactionRepository
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) FindByPayee(ctx context.Context, payeeUserID uuid.UUID, filter shared.Filter) ([]ledger.Transaction, error) {
	args := m.Called(ctx, payeeUserID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ledger.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) FindByReference(ctx context.Context, refType ledger.ReferenceType, refID uuid.UUID) ([]ledger.Transaction, error) {
	args := m.Called(ctx, refType, refID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ledger.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) FindByType(ctx context.Context, txType ledger.TransactionType, from, to time.Time, filter shared.Filter) ([]ledger.Transaction, error) {
	args := m.Called(ctx, txType, from, to, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ledger.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) Save(ctx context.Context, tx *ledger.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockTransactionRepository) MarkReversed(ctx context.Context, tx *ledger.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockTransactionRepository) SumNetByPayee(ctx context.Context, payeeUserID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, payeeUserID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockTransactionRepository) CountByPayee(ctx context.Context, payeeUserID uuid.UUID) (int64, error) {
	args := m.Called(ctx, payeeUserID)
	return args.Get(0).(int64), args.Error(1)
}

// MockRevenuePeriodRepository is a mock implementation of ledger.RevenuePeriodRepository
type MockRevenuePeriodRepository struct {
	mock.Mock
}

func (m *MockRevenuePeriodRepository) GetOrCreate(ctx context.Context, periodType ledger.PeriodType, key string) (*ledger.RevenuePeriod, error) {
	args := m.Called(ctx, periodType, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.RevenuePeriod), args.Error(1)
}

func (m *MockRevenuePeriodRepository) FindByKey(ctx context.Context, periodType ledger.PeriodType, key string) (*ledger.RevenuePeriod, error) {
	args := m.Called(ctx, periodType, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.RevenuePeriod), args.Error(1)
}

func (m *MockRevenuePeriodRepository) FindRange(ctx context.Context, periodType ledger.PeriodType, fromKey, toKey string) ([]ledger.RevenuePeriod, error) {
	args := m.Called(ctx, periodType, fromKey, toKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ledger.RevenuePeriod), args.Error(1)
}

func (m *MockRevenuePeriodRepository) Save(ctx context.Context, period *ledger.RevenuePeriod) error {
	args := m.Called(ctx, period)
	return args.Error(0)
}

type serviceFixture struct {
	cartRepo    *MockCartRepository
	orderRepo   *MockOrderRepository
	productRepo *MockProductRepository
	userRepo    *MockUserRepository
	txRepo      *MockTransactionRepository
	revenueRepo *MockRevenuePeriodRepository
	svc         *OrderService
}

func newFixture() *serviceFixture {
	f := &serviceFixture{
		cartRepo:    new(MockCartRepository),
		orderRepo:   new(MockOrderRepository),
		productRepo: new(MockProductRepository),
		userRepo:    new(MockUserRepository),
		txRepo:      new(MockTransactionRepository),
		revenueRepo: new(MockRevenuePeriodRepository),
	}
	scope := NewNoOpTransactionScope(f.cartRepo, f.orderRepo, f.productRepo, f.userRepo, f.txRepo, f.revenueRepo)
	f.svc = NewOrderService(scope, f.orderRepo, cart.DefaultPricingPolicy())
	return f
}

func fixtureProduct(name string, price, stock int64, sellerID uuid.UUID) *catalog.Product {
	return &catalog.Product{
		BaseEntity: shared.NewBaseEntity(),
		Name:       name,
		Category:   "toys",
		Price:      decimal.NewFromInt(price),
		Stock:      stock,
		SellerID:   sellerID,
		Active:     true,
	}
}

func fixtureCart(t *testing.T, customerID uuid.UUID, products ...*catalog.Product) *cart.Cart {
	t.Helper()
	c, err := cart.NewCart(customerID)
	require.NoError(t, err)
	for _, p := range products {
		require.NoError(t, c.AddItem(p, 2, cart.DefaultPricingPolicy()))
	}
	return c
}

func checkoutRequest(method order.PaymentMethod) CheckoutRequest {
	return CheckoutRequest{
		ShippingAddress: ShippingAddressInput{
			Street:  "1 Bark St",
			City:    "Dogtown",
			State:   "CA",
			ZipCode: "90210",
			Country: "US",
		},
		PaymentMethod: method,
	}
}

func TestOrderServiceCheckout(t *testing.T) {
	customerID := uuid.New()

	t.Run("reserves stock, freezes order, empties cart", func(t *testing.T) {
		f := newFixture()
		product := fixtureProduct("Chew Toy", 100, 10, uuid.New())
		c := fixtureCart(t, customerID, product)

		f.cartRepo.On("FindByCustomer", mock.Anything, customerID).Return(c, nil)
		f.productRepo.On("FindByIDs", mock.Anything, mock.Anything).Return([]catalog.Product{*product}, nil)
		f.productRepo.On("Reserve", mock.Anything, product.ID, int64(2)).Return(nil)
		f.orderRepo.On("Save", mock.Anything, mock.AnythingOfType("*order.Order")).Return(nil)
		f.cartRepo.On("Delete", mock.Anything, c.ID).Return(nil)

		resp, err := f.svc.Checkout(context.Background(), customerID, checkoutRequest(order.PaymentMethodCard))
		require.NoError(t, err)

		assert.Equal(t, order.OrderStatusPending, resp.Status)
		assert.Equal(t, order.PaymentStatusPaid, resp.PaymentStatus)
		assert.True(t, resp.Subtotal.Equal(decimal.NewFromInt(200)))
		f.productRepo.AssertExpectations(t)
		f.cartRepo.AssertExpectations(t)
	})

	t.Run("empty cart is rejected", func(t *testing.T) {
		f := newFixture()
		c, _ := cart.NewCart(customerID)
		f.cartRepo.On("FindByCustomer", mock.Anything, customerID).Return(c, nil)

		_, err := f.svc.Checkout(context.Background(), customerID, checkoutRequest(order.PaymentMethodCard))
		require.Error(t, err)
		var derr *shared.DomainError
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, "EMPTY_CART", derr.Code)
	})

	t.Run("stale cart blocks checkout with issues", func(t *testing.T) {
		f := newFixture()
		product := fixtureProduct("Chew Toy", 100, 10, uuid.New())
		c := fixtureCart(t, customerID, product)
		product.Stock = 1 // cart wants 2

		f.cartRepo.On("FindByCustomer", mock.Anything, customerID).Return(c, nil)
		f.productRepo.On("FindByIDs", mock.Anything, mock.Anything).Return([]catalog.Product{*product}, nil)
		f.cartRepo.On("Save", mock.Anything, c).Return(nil)

		_, err := f.svc.Checkout(context.Background(), customerID, checkoutRequest(order.PaymentMethodCard))
		var blocked *CheckoutBlockedError
		require.ErrorAs(t, err, &blocked)
		require.Len(t, blocked.Issues, 1)
		assert.Equal(t, cart.IssueQuantityAdjusted, blocked.Issues[0].Type)
		f.productRepo.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("reservation race fails the checkout", func(t *testing.T) {
		f := newFixture()
		product := fixtureProduct("Chew Toy", 100, 10, uuid.New())
		c := fixtureCart(t, customerID, product)

		f.cartRepo.On("FindByCustomer", mock.Anything, customerID).Return(c, nil)
		f.productRepo.On("FindByIDs", mock.Anything, mock.Anything).Return([]catalog.Product{*product}, nil)
		f.productRepo.On("Reserve", mock.Anything, product.ID, int64(2)).Return(shared.ErrInsufficientStock)

		_, err := f.svc.Checkout(context.Background(), customerID, checkoutRequest(order.PaymentMethodCard))
		assert.ErrorIs(t, err, shared.ErrInsufficientStock)
		f.orderRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("balance payment debits the customer and appends the charge entry", func(t *testing.T) {
		f := newFixture()
		product := fixtureProduct("Chew Toy", 100, 10, uuid.New())
		c := fixtureCart(t, customerID, product)

		f.cartRepo.On("FindByCustomer", mock.Anything, customerID).Return(c, nil)
		f.productRepo.On("FindByIDs", mock.Anything, mock.Anything).Return([]catalog.Product{*product}, nil)
		f.productRepo.On("Reserve", mock.Anything, product.ID, int64(2)).Return(nil)
		// subtotal 200 + tax 20 + shipping 50
		f.userRepo.On("AdjustBalance", mock.Anything, customerID, mock.MatchedBy(func(d decimal.Decimal) bool {
			return d.Equal(decimal.NewFromInt(-270))
		})).Return(nil)
		var charge *ledger.Transaction
		f.txRepo.On("Save", mock.Anything, mock.AnythingOfType("*ledger.Transaction")).
			Run(func(args mock.Arguments) {
				charge = args.Get(1).(*ledger.Transaction)
			}).Return(nil)
		f.orderRepo.On("Save", mock.Anything, mock.AnythingOfType("*order.Order")).Return(nil)
		f.cartRepo.On("Delete", mock.Anything, c.ID).Return(nil)

		resp, err := f.svc.Checkout(context.Background(), customerID, checkoutRequest(order.PaymentMethodBalance))
		require.NoError(t, err)
		assert.Equal(t, order.PaymentStatusPaid, resp.PaymentStatus)

		// the debit is paired with a ledger entry referencing the order
		require.NotNil(t, charge)
		assert.Equal(t, customerID, charge.PayeeUserID)
		assert.True(t, charge.NetAmount.Equal(decimal.NewFromInt(-270)))
		assert.Equal(t, ledger.ReferenceTypeOrder, charge.ReferenceType)
		require.NotNil(t, charge.ReferenceID)
		assert.Equal(t, resp.ID, *charge.ReferenceID)
		f.userRepo.AssertExpectations(t)
	})

	t.Run("insufficient balance fails the checkout", func(t *testing.T) {
		f := newFixture()
		product := fixtureProduct("Chew Toy", 100, 10, uuid.New())
		c := fixtureCart(t, customerID, product)

		f.cartRepo.On("FindByCustomer", mock.Anything, customerID).Return(c, nil)
		f.productRepo.On("FindByIDs", mock.Anything, mock.Anything).Return([]catalog.Product{*product}, nil)
		f.productRepo.On("Reserve", mock.Anything, product.ID, int64(2)).Return(nil)
		f.userRepo.On("AdjustBalance", mock.Anything, customerID, mock.Anything).Return(shared.ErrInsufficientBalance)

		_, err := f.svc.Checkout(context.Background(), customerID, checkoutRequest(order.PaymentMethodBalance))
		assert.ErrorIs(t, err, shared.ErrInsufficientBalance)
	})

	t.Run("cod stays pending", func(t *testing.T) {
		f := newFixture()
		product := fixtureProduct("Chew Toy", 100, 10, uuid.New())
		c := fixtureCart(t, customerID, product)

		f.cartRepo.On("FindByCustomer", mock.Anything, customerID).Return(c, nil)
		f.productRepo.On("FindByIDs", mock.Anything, mock.Anything).Return([]catalog.Product{*product}, nil)
		f.productRepo.On("Reserve", mock.Anything, product.ID, int64(2)).Return(nil)
		f.orderRepo.On("Save", mock.Anything, mock.AnythingOfType("*order.Order")).Return(nil)
		f.cartRepo.On("Delete", mock.Anything, c.ID).Return(nil)

		resp, err := f.svc.Checkout(context.Background(), customerID, checkoutRequest(order.PaymentMethodCOD))
		require.NoError(t, err)
		assert.Equal(t, order.PaymentStatusPending, resp.PaymentStatus)
	})
}

func deliverableOrder(t *testing.T, sellers ...uuid.UUID) *order.Order {
	t.Helper()
	customerID := uuid.New()
	products := make([]*catalog.Product, 0, len(sellers))
	for i, sellerID := range sellers {
		products = append(products, fixtureProduct("Product", int64(100*(i+1)), 10, sellerID))
	}
	c := fixtureCart(t, customerID, products...)

	o, err := order.NewOrderFromCart(order.NewOrderNumber(), c, mustTestAddress(t), order.PaymentMethodCard)
	require.NoError(t, err)
	require.NoError(t, o.UpdatePaymentStatus(order.PaymentStatusPaid))
	require.NoError(t, o.Advance()) // processing
	require.NoError(t, o.Advance()) // shipped
	return o
}

func mustTestAddress(t *testing.T) valueobject.ShippingAddress {
	t.Helper()
	addr, err := valueobject.NewShippingAddress("1 Bark St", "Dogtown", "CA", "90210", "US")
	require.NoError(t, err)
	return addr
}

func TestOrderServiceAdvance(t *testing.T) {
	t.Run("delivery settles one sale per seller", func(t *testing.T) {
		f := newFixture()
		s1, s2 := uuid.New(), uuid.New()
		o := deliverableOrder(t, s1, s2)

		var saved []*ledger.Transaction
		f.orderRepo.On("FindByID", mock.Anything, o.ID).Return(o, nil)
		f.txRepo.On("Save", mock.Anything, mock.AnythingOfType("*ledger.Transaction")).
			Run(func(args mock.Arguments) {
				saved = append(saved, args.Get(1).(*ledger.Transaction))
			}).Return(nil)
		f.userRepo.On("AdjustBalance", mock.Anything, s1, mock.Anything).Return(nil)
		f.userRepo.On("AdjustBalance", mock.Anything, s2, mock.Anything).Return(nil)
		for _, pt := range ledger.AllPeriodTypes {
			period, err := ledger.NewRevenuePeriod(pt, ledger.PeriodKeyFor(pt, time.Now()))
			require.NoError(t, err)
			f.revenueRepo.On("GetOrCreate", mock.Anything, pt, mock.Anything).Return(period, nil)
		}
		f.revenueRepo.On("Save", mock.Anything, mock.AnythingOfType("*ledger.RevenuePeriod")).Return(nil)
		f.orderRepo.On("SaveWithLock", mock.Anything, o).Return(nil)

		resp, err := f.svc.Advance(context.Background(), o.ID)
		require.NoError(t, err)
		assert.Equal(t, order.OrderStatusDelivered, resp.Status)

		// seller shares: 200 and 400; tax 60 split 20/40; shipping 0 (subtotal 600)
		require.Len(t, saved, 2)
		bySeller := map[uuid.UUID]*ledger.Transaction{}
		for _, tx := range saved {
			bySeller[tx.PayeeUserID] = tx
		}
		require.Contains(t, bySeller, s1)
		require.Contains(t, bySeller, s2)
		assert.True(t, bySeller[s1].Amount.Equal(decimal.NewFromInt(220)), "got %s", bySeller[s1].Amount)
		assert.True(t, bySeller[s2].Amount.Equal(decimal.NewFromInt(440)), "got %s", bySeller[s2].Amount)
		// default commission is zero, so net credit equals gross
		assert.True(t, bySeller[s1].NetAmount.Equal(bySeller[s1].Amount))

		// entries sum to the order total
		sum := bySeller[s1].Amount.Add(bySeller[s2].Amount)
		assert.True(t, sum.Equal(o.Total), "sum %s total %s", sum, o.Total)

		f.revenueRepo.AssertNumberOfCalls(t, "GetOrCreate", 3)
		f.revenueRepo.AssertNumberOfCalls(t, "Save", 3)
	})

	t.Run("delivery revenue reconciles with the sale entries", func(t *testing.T) {
		f := newFixture()
		sellerID := uuid.New()
		customerID := uuid.New()
		// subtotal 1000 (500 x 2), tax 100 at the default 10% rate
		product := fixtureProduct("Aquarium Kit", 500, 10, sellerID)
		c := fixtureCart(t, customerID, product)
		o, err := order.NewOrderFromCart(order.NewOrderNumber(), c, mustTestAddress(t), order.PaymentMethodCard)
		require.NoError(t, err)
		require.NoError(t, o.UpdatePaymentStatus(order.PaymentStatusPaid))
		require.NoError(t, o.Advance())
		require.NoError(t, o.Advance())

		var saved []*ledger.Transaction
		daily, err := ledger.NewRevenuePeriod(ledger.PeriodTypeDaily, ledger.PeriodKeyFor(ledger.PeriodTypeDaily, time.Now()))
		require.NoError(t, err)
		revenueBefore := daily.Summarize().TotalRevenue

		f.orderRepo.On("FindByID", mock.Anything, o.ID).Return(o, nil)
		f.txRepo.On("Save", mock.Anything, mock.AnythingOfType("*ledger.Transaction")).
			Run(func(args mock.Arguments) {
				saved = append(saved, args.Get(1).(*ledger.Transaction))
			}).Return(nil)
		f.userRepo.On("AdjustBalance", mock.Anything, sellerID, mock.Anything).Return(nil)
		f.revenueRepo.On("GetOrCreate", mock.Anything, ledger.PeriodTypeDaily, mock.Anything).Return(daily, nil)
		for _, pt := range []ledger.PeriodType{ledger.PeriodTypeWeekly, ledger.PeriodTypeMonthly} {
			period, err := ledger.NewRevenuePeriod(pt, ledger.PeriodKeyFor(pt, time.Now()))
			require.NoError(t, err)
			f.revenueRepo.On("GetOrCreate", mock.Anything, pt, mock.Anything).Return(period, nil)
		}
		f.revenueRepo.On("Save", mock.Anything, mock.AnythingOfType("*ledger.RevenuePeriod")).Return(nil)
		f.orderRepo.On("SaveWithLock", mock.Anything, o).Return(nil)

		_, err = f.svc.Advance(context.Background(), o.ID)
		require.NoError(t, err)

		// the sale entries sum to the order total, tax included
		entrySum := decimal.Zero
		for _, tx := range saved {
			entrySum = entrySum.Add(tx.Amount)
		}
		require.True(t, entrySum.Equal(o.Total), "entries %s total %s", entrySum, o.Total)

		// and the day's revenue rises by exactly that figure
		rise := daily.Summarize().TotalRevenue.Sub(revenueBefore)
		assert.True(t, rise.Equal(o.Total), "revenue rose by %s, want %s", rise, o.Total)
	})

	t.Run("non-delivery steps do not touch the ledger", func(t *testing.T) {
		f := newFixture()
		o := deliverableOrder(t, uuid.New())
		// rewind to pending
		pendingOrder, err := order.NewOrderFromCart(order.NewOrderNumber(),
			fixtureCart(t, uuid.New(), fixtureProduct("Toy", 100, 10, uuid.New())),
			o.ShippingAddress, order.PaymentMethodCard)
		require.NoError(t, err)

		f.orderRepo.On("FindByID", mock.Anything, pendingOrder.ID).Return(pendingOrder, nil)
		f.orderRepo.On("SaveWithLock", mock.Anything, pendingOrder).Return(nil)

		resp, err := f.svc.Advance(context.Background(), pendingOrder.ID)
		require.NoError(t, err)
		assert.Equal(t, order.OrderStatusProcessing, resp.Status)
		f.txRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("lost lock race is retried then surfaced", func(t *testing.T) {
		f := newFixture()
		orderID := uuid.New()
		f.orderRepo.On("FindByID", mock.Anything, orderID).Return(nil, shared.ErrConcurrencyConflict)

		_, err := f.svc.Advance(context.Background(), orderID)
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		f.orderRepo.AssertNumberOfCalls(t, "FindByID", 3)
	})
}

// versionedOrderRepo enforces the optimistic-lock contract of the real
// store: a locked save lands only when the incoming version is exactly
// one ahead of the stored row. The embedded mock answers everything the
// contract does not cover.
type versionedOrderRepo struct {
	MockOrderRepository
	stored *order.Order
}

func (r *versionedOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*order.Order, error) {
	if r.stored == nil || r.stored.ID != id {
		return nil, shared.ErrNotFound
	}
	loaded := *r.stored
	return &loaded, nil
}

func (r *versionedOrderRepo) SaveWithLock(_ context.Context, o *order.Order) error {
	if r.stored == nil || o.Version != r.stored.Version+1 {
		return shared.ErrConcurrencyConflict
	}
	updated := *o
	r.stored = &updated
	return nil
}

func TestOrderServiceCancel(t *testing.T) {
	t.Run("releases stock, refunds balance payment and appends the refund entry", func(t *testing.T) {
		f := newFixture()
		customerID := uuid.New()
		product := fixtureProduct("Chew Toy", 100, 10, uuid.New())
		c := fixtureCart(t, customerID, product)
		o, err := order.NewOrderFromCart(order.NewOrderNumber(), c, mustTestAddress(t), order.PaymentMethodBalance)
		require.NoError(t, err)
		require.NoError(t, o.UpdatePaymentStatus(order.PaymentStatusPaid))
		actor := uuid.New()

		var refund *ledger.Transaction
		f.orderRepo.On("FindByID", mock.Anything, o.ID).Return(o, nil)
		f.productRepo.On("Release", mock.Anything, product.ID, int64(2)).Return(nil)
		f.userRepo.On("AdjustBalance", mock.Anything, customerID, o.Total).Return(nil)
		f.txRepo.On("Save", mock.Anything, mock.AnythingOfType("*ledger.Transaction")).
			Run(func(args mock.Arguments) {
				refund = args.Get(1).(*ledger.Transaction)
			}).Return(nil)
		f.orderRepo.On("SaveWithLock", mock.Anything, o).Return(nil)

		resp, err := f.svc.Cancel(context.Background(), o.ID, actor, CancelOrderRequest{Reason: "changed my mind"})
		require.NoError(t, err)

		assert.Equal(t, order.OrderStatusCancelled, resp.Status)
		assert.Equal(t, order.PaymentStatusRefunded, resp.PaymentStatus)
		require.NotNil(t, resp.CancelledBy)
		assert.Equal(t, actor, *resp.CancelledBy)

		// the re-credit is paired with a ledger entry
		require.NotNil(t, refund)
		assert.Equal(t, ledger.TransactionTypeRefund, refund.Type)
		assert.True(t, refund.NetAmount.Equal(o.Total))
		f.productRepo.AssertExpectations(t)
		f.userRepo.AssertExpectations(t)
	})

	t.Run("paid order cancellation lands against the version check", func(t *testing.T) {
		customerID := uuid.New()
		product := fixtureProduct("Chew Toy", 100, 10, uuid.New())
		c := fixtureCart(t, customerID, product)
		o, err := order.NewOrderFromCart(order.NewOrderNumber(), c, mustTestAddress(t), order.PaymentMethodBalance)
		require.NoError(t, err)
		require.NoError(t, o.UpdatePaymentStatus(order.PaymentStatusPaid))

		repo := &versionedOrderRepo{stored: o}
		cartRepo := new(MockCartRepository)
		productRepo := new(MockProductRepository)
		userRepo := new(MockUserRepository)
		txRepo := new(MockTransactionRepository)
		revenueRepo := new(MockRevenuePeriodRepository)
		scope := NewNoOpTransactionScope(cartRepo, repo, productRepo, userRepo, txRepo, revenueRepo)
		svc := NewOrderService(scope, repo, cart.DefaultPricingPolicy())

		productRepo.On("Release", mock.Anything, product.ID, int64(2)).Return(nil)
		userRepo.On("AdjustBalance", mock.Anything, customerID, o.Total).Return(nil)
		txRepo.On("Save", mock.Anything, mock.AnythingOfType("*ledger.Transaction")).Return(nil)

		resp, err := svc.Cancel(context.Background(), o.ID, uuid.New(), CancelOrderRequest{Reason: "changed my mind"})
		require.NoError(t, err)

		assert.Equal(t, order.OrderStatusCancelled, resp.Status)
		assert.Equal(t, order.PaymentStatusRefunded, resp.PaymentStatus)
		assert.Equal(t, order.OrderStatusCancelled, repo.stored.Status)
		assert.Equal(t, order.PaymentStatusRefunded, repo.stored.PaymentStatus)
	})

	t.Run("delivered orders cannot be cancelled", func(t *testing.T) {
		f := newFixture()
		o := deliverableOrder(t, uuid.New())
		require.NoError(t, o.Advance()) // delivered

		f.orderRepo.On("FindByID", mock.Anything, o.ID).Return(o, nil)

		_, err := f.svc.Cancel(context.Background(), o.ID, uuid.New(), CancelOrderRequest{})
		require.Error(t, err)
		var derr *shared.DomainError
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, "INVALID_TRANSITION", derr.Code)
		f.productRepo.AssertNotCalled(t, "Release", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestOrderServiceQueries(t *testing.T) {
	f := newFixture()
	customerID := uuid.New()
	product := fixtureProduct("Chew Toy", 100, 10, uuid.New())
	o, err := order.NewOrderFromCart(order.NewOrderNumber(),
		fixtureCart(t, customerID, product), mustTestAddress(t), order.PaymentMethodCard)
	require.NoError(t, err)

	f.orderRepo.On("FindByOrderNumber", mock.Anything, o.OrderNumber).Return(o, nil)
	f.orderRepo.On("FindByCustomer", mock.Anything, customerID, mock.Anything).Return([]order.Order{*o}, nil)

	byNumber, err := f.svc.GetByNumber(context.Background(), o.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, o.ID, byNumber.ID)

	list, err := f.svc.ListByCustomer(context.Background(), customerID, OrderListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
}
