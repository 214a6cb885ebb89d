package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pawmarket/backend/internal/domain/ledger"
	"github.com/pawmarket/backend/internal/domain/shared"
)

// RevenueService serves the pre-aggregated revenue rollups. It is
// read-only: rollup rows are written by the settlement paths, in the
// same transaction as the ledger entries that feed them.
type RevenueService struct {
	revenueRepo ledger.RevenuePeriodRepository
	now         func() time.Time
}

// NewRevenueService creates a new RevenueService
func NewRevenueService(revenueRepo ledger.RevenuePeriodRepository) *RevenueService {
	return &RevenueService{
		revenueRepo: revenueRepo,
		now:         time.Now,
	}
}

// Get returns the summary of one period. An untouched period reads as
// an all-zero summary rather than an error.
func (s *RevenueService) Get(ctx context.Context, periodType ledger.PeriodType, key string) (*ledger.RevenueSummary, error) {
	if !periodType.IsValid() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", fmt.Sprintf("unknown period type %q", periodType))
	}
	if key == "" {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "period key is required")
	}

	period, err := s.revenueRepo.FindByKey(ctx, periodType, key)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			empty, err := ledger.NewRevenuePeriod(periodType, key)
			if err != nil {
				return nil, err
			}
			summary := empty.Summarize()
			return &summary, nil
		}
		return nil, err
	}

	summary := period.Summarize()
	return &summary, nil
}

// Current returns the summary of the period containing now
func (s *RevenueService) Current(ctx context.Context, periodType ledger.PeriodType) (*ledger.RevenueSummary, error) {
	return s.Get(ctx, periodType, ledger.PeriodKeyFor(periodType, s.now()))
}

// Range returns the summaries of the periods between two timestamps,
// inclusive, at one granularity. Only periods that saw activity are
// returned.
func (s *RevenueService) Range(ctx context.Context, periodType ledger.PeriodType, from, to time.Time) ([]ledger.RevenueSummary, error) {
	if !periodType.IsValid() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", fmt.Sprintf("unknown period type %q", periodType))
	}
	if to.Before(from) {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "range end precedes range start")
	}

	periods, err := s.revenueRepo.FindRange(ctx, periodType,
		ledger.PeriodKeyFor(periodType, from), ledger.PeriodKeyFor(periodType, to))
	if err != nil {
		return nil, err
	}

	summaries := make([]ledger.RevenueSummary, 0, len(periods))
	for i := range periods {
		summaries = append(summaries, periods[i].Summarize())
	}
	return summaries, nil
}
