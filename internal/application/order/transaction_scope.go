package order

import (
	"context"

	"github.com/pawmarket/backend/internal/domain/cart"
	"github.com/pawmarket/backend/internal/domain/catalog"
	"github.com/pawmarket/backend/internal/domain/identity"
	"github.com/pawmarket/backend/internal/domain/ledger"
	"github.com/pawmarket/backend/internal/domain/order"
)

// TransactionScope provides transactional access to the repositories
// touched by checkout and settlement. When a function is executed within
// a scope, all repository operations share one database transaction and
// commit or roll back atomically.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to the repositories within a
// transaction. All repositories returned share the same underlying
// database transaction.
//
// Checkout crosses four aggregates (cart, order, product stock, user
// balance) and settlement adds the ledger and revenue rollups; the scope
// is what keeps a failure at any step from leaving partial state behind.
type TransactionalRepositories interface {
	CartRepo() cart.CartRepository
	OrderRepo() order.OrderRepository
	ProductRepo() catalog.ProductRepository
	UserRepo() identity.UserRepository
	TransactionRepo() ledger.TransactionRepository
	RevenueRepo() ledger.RevenuePeriodRepository
}

// NoOpTransactionScope is a transaction scope that doesn't actually use
// transactions. Useful for testing.
type NoOpTransactionScope struct {
	cartRepo        cart.CartRepository
	orderRepo       order.OrderRepository
	productRepo     catalog.ProductRepository
	userRepo        identity.UserRepository
	transactionRepo ledger.TransactionRepository
	revenueRepo     ledger.RevenuePeriodRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories
func NewNoOpTransactionScope(
	cartRepo cart.CartRepository,
	orderRepo order.OrderRepository,
	productRepo catalog.ProductRepository,
	userRepo identity.UserRepository,
	transactionRepo ledger.TransactionRepository,
	revenueRepo ledger.RevenuePeriodRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		cartRepo:        cartRepo,
		orderRepo:       orderRepo,
		productRepo:     productRepo,
		userRepo:        userRepo,
		transactionRepo: transactionRepo,
		revenueRepo:     revenueRepo,
	}
}

// Execute runs the function without a real transaction
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

func (s *NoOpTransactionScope) CartRepo() cart.CartRepository { return s.cartRepo }

func (s *NoOpTransactionScope) OrderRepo() order.OrderRepository { return s.orderRepo }

func (s *NoOpTransactionScope) ProductRepo() catalog.ProductRepository { return s.productRepo }

func (s *NoOpTransactionScope) UserRepo() identity.UserRepository { return s.userRepo }

func (s *NoOpTransactionScope) TransactionRepo() ledger.TransactionRepository {
	return s.transactionRepo
}

func (s *NoOpTransactionScope) RevenueRepo() ledger.RevenuePeriodRepository { return s.revenueRepo }

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
