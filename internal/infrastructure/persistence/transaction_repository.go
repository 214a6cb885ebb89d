package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pawmarket/backend/internal/domain/ledger"
	"github.com/pawmarket/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormTransactionRepository implements TransactionRepository using GORM.
// Ledger entries are append-only; the only in-place update is marking a
// row reversed.
type GormTransactionRepository struct {
	db *gorm.DB
}

// NewGormTransactionRepository creates a new GormTransactionRepository
func NewGormTransactionRepository(db *gorm.DB) *GormTransactionRepository {
	return &GormTransactionRepository{db: db}
}

// FindByID finds a transaction by ID
func (r *GormTransactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	var tx ledger.Transaction
	if err := r.db.WithContext(ctx).First(&tx, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &tx, nil
}

// FindByPayee lists a payee's entries, newest first
func (r *GormTransactionRepository) FindByPayee(ctx context.Context, payeeUserID uuid.UUID, filter shared.Filter) ([]ledger.Transaction, error) {
	var txs []ledger.Transaction
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&ledger.Transaction{}).
			Where("payee_user_id = ?", payeeUserID),
		filter,
	)

	if err := query.Find(&txs).Error; err != nil {
		return nil, err
	}
	return txs, nil
}

// FindByReference lists entries settling a business object
func (r *GormTransactionRepository) FindByReference(ctx context.Context, refType ledger.ReferenceType, refID uuid.UUID) ([]ledger.Transaction, error) {
	var txs []ledger.Transaction
	if err := r.db.WithContext(ctx).
		Where("reference_type = ? AND reference_id = ?", refType, refID).
		Order("created_at ASC").
		Find(&txs).Error; err != nil {
		return nil, err
	}
	return txs, nil
}

// FindByType lists entries of one type within a time range
func (r *GormTransactionRepository) FindByType(ctx context.Context, txType ledger.TransactionType, from, to time.Time, filter shared.Filter) ([]ledger.Transaction, error) {
	var txs []ledger.Transaction
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&ledger.Transaction{}).
			Where("type = ? AND created_at >= ? AND created_at <= ?", txType, from, to),
		filter,
	)

	if err := query.Find(&txs).Error; err != nil {
		return nil, err
	}
	return txs, nil
}

// Save appends a new entry
func (r *GormTransactionRepository) Save(ctx context.Context, tx *ledger.Transaction) error {
	return r.db.WithContext(ctx).Create(tx).Error
}

// MarkReversed persists the reversed status of an original entry
func (r *GormTransactionRepository) MarkReversed(ctx context.Context, tx *ledger.Transaction) error {
	result := r.db.WithContext(ctx).
		Model(&ledger.Transaction{}).
		Where("id = ? AND status = ?", tx.ID, ledger.TransactionStatusCompleted).
		Updates(map[string]interface{}{
			"status":      tx.Status,
			"reversed_at": tx.ReversedAt,
			"updated_at":  time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrInvalidTransition
	}
	return nil
}

// SumNetByPayee returns the sum of net amounts for a payee
func (r *GormTransactionRepository) SumNetByPayee(ctx context.Context, payeeUserID uuid.UUID) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	if err := r.db.WithContext(ctx).
		Model(&ledger.Transaction{}).
		Select("COALESCE(SUM(net_amount), 0) as total").
		Where("payee_user_id = ?", payeeUserID).
		Scan(&result).Error; err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

// CountByPayee counts a payee's entries
func (r *GormTransactionRepository) CountByPayee(ctx context.Context, payeeUserID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&ledger.Transaction{}).
		Where("payee_user_id = ?", payeeUserID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// applyFilter applies filter options to the query
func (r *GormTransactionRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	for key, value := range filter.Filters {
		switch key {
		case "type":
			query = query.Where("type = ?", value)
		case "status":
			query = query.Where("status = ?", value)
		case "reference_type":
			query = query.Where("reference_type = ?", value)
		}
	}

	orderBy := ValidateSortField(filter.OrderBy, TransactionSortFields, "created_at")
	orderDir := "DESC"
	if strings.EqualFold(filter.OrderDir, "asc") {
		orderDir = "ASC"
	}
	query = query.Order(orderBy + " " + orderDir)

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	return query
}

// Ensure GormTransactionRepository implements TransactionRepository
var _ ledger.TransactionRepository = (*GormTransactionRepository)(nil)
