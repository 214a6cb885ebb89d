package persistence

import (
	"context"
	"errors"

	"github.com/pawmarket/backend/internal/domain/ledger"
	"github.com/pawmarket/backend/internal/domain/shared"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormRevenuePeriodRepository implements RevenuePeriodRepository using GORM
type GormRevenuePeriodRepository struct {
	db *gorm.DB
}

// NewGormRevenuePeriodRepository creates a new GormRevenuePeriodRepository
func NewGormRevenuePeriodRepository(db *gorm.DB) *GormRevenuePeriodRepository {
	return &GormRevenuePeriodRepository{db: db}
}

// GetOrCreate returns the rollup row for (periodType, key), creating an
// empty one when absent. The returned row is read with FOR UPDATE so
// concurrent settlements serialize on the same period; callers are
// expected to run inside a transaction.
func (r *GormRevenuePeriodRepository) GetOrCreate(ctx context.Context, periodType ledger.PeriodType, key string) (*ledger.RevenuePeriod, error) {
	fresh, err := ledger.NewRevenuePeriod(periodType, key)
	if err != nil {
		return nil, err
	}

	// Insert-if-absent so two settlements racing on a new period both land
	// on the same row
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "period_type"}, {Name: "period_key"}},
			DoNothing: true,
		}).
		Create(fresh).Error; err != nil {
		return nil, err
	}

	var period ledger.RevenuePeriod
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("period_type = ? AND period_key = ?", periodType, key).
		First(&period).Error; err != nil {
		return nil, err
	}
	return &period, nil
}

// FindByKey returns the rollup for a period, or shared.ErrNotFound
func (r *GormRevenuePeriodRepository) FindByKey(ctx context.Context, periodType ledger.PeriodType, key string) (*ledger.RevenuePeriod, error) {
	var period ledger.RevenuePeriod
	if err := r.db.WithContext(ctx).
		Where("period_type = ? AND period_key = ?", periodType, key).
		First(&period).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &period, nil
}

// FindRange lists rollups of a granularity whose keys fall in
// [fromKey, toKey], ordered by key
func (r *GormRevenuePeriodRepository) FindRange(ctx context.Context, periodType ledger.PeriodType, fromKey, toKey string) ([]ledger.RevenuePeriod, error) {
	var periods []ledger.RevenuePeriod
	if err := r.db.WithContext(ctx).
		Where("period_type = ? AND period_key >= ? AND period_key <= ?", periodType, fromKey, toKey).
		Order("period_key ASC").
		Find(&periods).Error; err != nil {
		return nil, err
	}
	return periods, nil
}

// Save persists the rollup
func (r *GormRevenuePeriodRepository) Save(ctx context.Context, period *ledger.RevenuePeriod) error {
	return r.db.WithContext(ctx).Save(period).Error
}

// Ensure GormRevenuePeriodRepository implements RevenuePeriodRepository
var _ ledger.RevenuePeriodRepository = (*GormRevenuePeriodRepository)(nil)
