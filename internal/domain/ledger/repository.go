package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pawmarket/backend/internal/domain/shared"
)

// TransactionRepository persists ledger entries. Entries are append-only;
// the only in-place update is marking a row reversed.
type TransactionRepository interface {
	// FindByID finds a transaction by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Transaction, error)

	// FindByPayee lists a payee's entries, newest first
	FindByPayee(ctx context.Context, payeeUserID uuid.UUID, filter shared.Filter) ([]Transaction, error)

	// FindByReference lists entries settling a business object
	FindByReference(ctx context.Context, refType ReferenceType, refID uuid.UUID) ([]Transaction, error)

	// FindByType lists entries of one type within a time range
	FindByType(ctx context.Context, txType TransactionType, from, to time.Time, filter shared.Filter) ([]Transaction, error)

	// Save appends a new entry
	Save(ctx context.Context, tx *Transaction) error

	// MarkReversed persists the reversed status of an original entry
	MarkReversed(ctx context.Context, tx *Transaction) error

	// SumNetByPayee returns the sum of net amounts for a payee, which is
	// the authoritative balance the cached projection must agree with
	SumNetByPayee(ctx context.Context, payeeUserID uuid.UUID) (decimal.Decimal, error)

	// CountByPayee counts a payee's entries
	CountByPayee(ctx context.Context, payeeUserID uuid.UUID) (int64, error)
}

// RevenuePeriodRepository persists revenue rollups
type RevenuePeriodRepository interface {
	// GetOrCreate returns the rollup row for (periodType, key), creating
	// an empty one when absent. Implementations must take a row lock so
	// concurrent settlements serialize on the same period.
	GetOrCreate(ctx context.Context, periodType PeriodType, key string) (*RevenuePeriod, error)

	// FindByKey returns the rollup for a period, or shared.ErrNotFound
	FindByKey(ctx context.Context, periodType PeriodType, key string) (*RevenuePeriod, error)

	// FindRange lists rollups of a granularity whose keys fall in
	// [fromKey, toKey], ordered by key
	FindRange(ctx context.Context, periodType PeriodType, fromKey, toKey string) ([]RevenuePeriod, error)

	// Save persists the rollup
	Save(ctx context.Context, period *RevenuePeriod) error
}
