package finance

import (
	"context"

	"github.com/pawmarket/backend/internal/domain/identity"
	"github.com/pawmarket/backend/internal/domain/ledger"
)

// TransactionScope provides transactional access to the financial
// repositories. Ledger appends, balance adjustments and revenue rollup
// updates always travel together; the scope makes them atomic.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to the financial
// repositories within a transaction
type TransactionalRepositories interface {
	UserRepo() identity.UserRepository
	TransactionRepo() ledger.TransactionRepository
	RevenueRepo() ledger.RevenuePeriodRepository
}

// NoOpTransactionScope is a transaction scope that doesn't actually use
// transactions. Useful for testing.
type NoOpTransactionScope struct {
	userRepo        identity.UserRepository
	transactionRepo ledger.TransactionRepository
	revenueRepo     ledger.RevenuePeriodRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories
func NewNoOpTransactionScope(
	userRepo identity.UserRepository,
	transactionRepo ledger.TransactionRepository,
	revenueRepo ledger.RevenuePeriodRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		userRepo:        userRepo,
		transactionRepo: transactionRepo,
		revenueRepo:     revenueRepo,
	}
}

// Execute runs the function without a real transaction
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

func (s *NoOpTransactionScope) UserRepo() identity.UserRepository { return s.userRepo }

func (s *NoOpTransactionScope) TransactionRepo() ledger.TransactionRepository {
	return s.transactionRepo
}

func (s *NoOpTransactionScope) RevenueRepo() ledger.RevenuePeriodRepository { return s.revenueRepo }

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
