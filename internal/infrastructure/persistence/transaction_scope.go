package persistence

import (
	"context"

	appfinance "github.com/pawmarket/backend/internal/application/finance"
	apporder "github.com/pawmarket/backend/internal/application/order"
	"github.com/pawmarket/backend/internal/domain/cart"
	"github.com/pawmarket/backend/internal/domain/catalog"
	"github.com/pawmarket/backend/internal/domain/identity"
	"github.com/pawmarket/backend/internal/domain/ledger"
	"github.com/pawmarket/backend/internal/domain/order"
	"gorm.io/gorm"
)

// GormTransactionScope implements both the order and finance transaction
// scopes using GORM transactions. Checkout, settlement, payouts and
// reversals each cross several aggregates; running their repository
// operations inside one database transaction is what keeps cart, order,
// stock, balance, ledger and rollup writes atomic.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos apporder.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

// Finance returns a view of the same scope satisfying the finance
// application's narrower repository set
func (s *GormTransactionScope) Finance() appfinance.TransactionScope {
	return &gormFinanceScope{db: s.db}
}

// gormTransactionalRepositories provides access to all repositories
// within a transaction
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

// CartRepo returns the cart repository scoped to the current transaction
func (r *gormTransactionalRepositories) CartRepo() cart.CartRepository {
	return NewGormCartRepository(r.tx)
}

// OrderRepo returns the order repository scoped to the current transaction
func (r *gormTransactionalRepositories) OrderRepo() order.OrderRepository {
	return NewGormOrderRepository(r.tx)
}

// ProductRepo returns the product repository scoped to the current transaction
func (r *gormTransactionalRepositories) ProductRepo() catalog.ProductRepository {
	return NewGormProductRepository(r.tx)
}

// UserRepo returns the user repository scoped to the current transaction
func (r *gormTransactionalRepositories) UserRepo() identity.UserRepository {
	return NewGormUserRepository(r.tx)
}

// TransactionRepo returns the ledger repository scoped to the current transaction
func (r *gormTransactionalRepositories) TransactionRepo() ledger.TransactionRepository {
	return NewGormTransactionRepository(r.tx)
}

// RevenueRepo returns the revenue rollup repository scoped to the current transaction
func (r *gormTransactionalRepositories) RevenueRepo() ledger.RevenuePeriodRepository {
	return NewGormRevenuePeriodRepository(r.tx)
}

// gormFinanceScope adapts the same database to the finance application's
// transaction scope interface
type gormFinanceScope struct {
	db *gorm.DB
}

// Execute runs the given function within a database transaction
func (s *gormFinanceScope) Execute(ctx context.Context, fn func(repos appfinance.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

// Ensure the scopes satisfy their application contracts
var _ apporder.TransactionScope = (*GormTransactionScope)(nil)
var _ appfinance.TransactionScope = (*gormFinanceScope)(nil)
var _ apporder.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
var _ appfinance.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
