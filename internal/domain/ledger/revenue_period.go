package ledger

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pawmarket/backend/internal/domain/shared"
)

// PeriodType is the granularity of a revenue aggregate row
type PeriodType string

const (
	PeriodTypeDaily   PeriodType = "daily"
	PeriodTypeWeekly  PeriodType = "weekly"
	PeriodTypeMonthly PeriodType = "monthly"
)

// AllPeriodTypes lists every granularity a ledger event rolls into
var AllPeriodTypes = []PeriodType{PeriodTypeDaily, PeriodTypeWeekly, PeriodTypeMonthly}

// IsValid checks if the period type is recognized
func (p PeriodType) IsValid() bool {
	switch p {
	case PeriodTypeDaily, PeriodTypeWeekly, PeriodTypeMonthly:
		return true
	}
	return false
}

// PeriodKeyFor derives the canonical key of the period containing ts:
// 2006-01-02 for daily, 2006-W02 for ISO weeks, 2006-01 for monthly.
// Timestamps are bucketed in UTC.
func PeriodKeyFor(p PeriodType, ts time.Time) string {
	ts = ts.UTC()
	switch p {
	case PeriodTypeDaily:
		return ts.Format("2006-01-02")
	case PeriodTypeWeekly:
		year, week := ts.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	case PeriodTypeMonthly:
		return ts.Format("2006-01")
	}
	return ""
}

// BreakdownMap is a category -> amount mapping stored as a JSONB column
type BreakdownMap map[string]decimal.Decimal

// Value implements driver.Valuer
func (m BreakdownMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner
func (m *BreakdownMap) Scan(value any) error {
	if value == nil {
		*m = BreakdownMap{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into BreakdownMap", value)
	}
	if len(data) == 0 {
		*m = BreakdownMap{}
		return nil
	}
	return json.Unmarshal(data, m)
}

// Add accumulates an amount under a category
func (m BreakdownMap) Add(category string, amount decimal.Decimal) {
	m[category] = m[category].Add(amount)
}

// RevenuePeriod is the pre-aggregated revenue rollup for one period at
// one granularity. Rows are unique on (PeriodType, PeriodKey) and are
// updated in the same transaction as the ledger entry that feeds them,
// so reads never need to scan the transactions table.
type RevenuePeriod struct {
	shared.BaseAggregateRoot
	PeriodType PeriodType `gorm:"size:10;not null;uniqueIndex:idx_revenue_period,priority:1" json:"period_type"`
	PeriodKey  string     `gorm:"size:10;not null;uniqueIndex:idx_revenue_period,priority:2" json:"period_key"`

	// Product sales
	OrderCount        int64           `gorm:"not null;default:0" json:"order_count"`
	ProductGross      decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"product_gross"`
	CategoryBreakdown BreakdownMap    `gorm:"type:jsonb" json:"category_breakdown"`

	// Adoptions
	AdoptionCount int64           `gorm:"not null;default:0" json:"adoption_count"`
	AdoptionTotal decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"adoption_total"`

	// Veterinary appointments
	AppointmentCount int64           `gorm:"not null;default:0" json:"appointment_count"`
	AppointmentTotal decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"appointment_total"`

	// Cross-cutting totals
	TotalTax        decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"total_tax"`
	TotalShipping   decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"total_shipping"`
	TotalCommission decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"total_commission"`
	TotalRefunds    decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"total_refunds"`
	TotalPayouts    decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"total_payouts"`
}

func (RevenuePeriod) TableName() string { return "revenue_periods" }

// NewRevenuePeriod creates an empty rollup row for a period
func NewRevenuePeriod(periodType PeriodType, key string) (*RevenuePeriod, error) {
	if !periodType.IsValid() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", fmt.Sprintf("unknown period type %q", periodType))
	}
	if key == "" {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "period key cannot be empty")
	}
	return &RevenuePeriod{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		PeriodType:        periodType,
		PeriodKey:         key,
		ProductGross:      decimal.Zero,
		CategoryBreakdown: BreakdownMap{},
		AdoptionTotal:     decimal.Zero,
		AppointmentTotal:  decimal.Zero,
		TotalTax:          decimal.Zero,
		TotalShipping:     decimal.Zero,
		TotalCommission:   decimal.Zero,
		TotalRefunds:      decimal.Zero,
		TotalPayouts:      decimal.Zero,
	}, nil
}

// RevenueDelta is the incremental contribution of one settlement to a
// revenue period. Fields left zero do not affect the rollup.
type RevenueDelta struct {
	Orders            int64
	ProductGross      decimal.Decimal
	CategoryBreakdown map[string]decimal.Decimal
	Adoptions         int64
	AdoptionTotal     decimal.Decimal
	Appointments      int64
	AppointmentTotal  decimal.Decimal
	Tax               decimal.Decimal
	Shipping          decimal.Decimal
	Commission        decimal.Decimal
	Refunds           decimal.Decimal
	Payouts           decimal.Decimal
}

// ApplyDelta folds one settlement into the rollup
func (r *RevenuePeriod) ApplyDelta(d RevenueDelta) {
	r.OrderCount += d.Orders
	r.ProductGross = r.ProductGross.Add(d.ProductGross)
	if len(d.CategoryBreakdown) > 0 {
		if r.CategoryBreakdown == nil {
			r.CategoryBreakdown = BreakdownMap{}
		}
		for category, amount := range d.CategoryBreakdown {
			r.CategoryBreakdown.Add(category, amount)
		}
	}
	r.AdoptionCount += d.Adoptions
	r.AdoptionTotal = r.AdoptionTotal.Add(d.AdoptionTotal)
	r.AppointmentCount += d.Appointments
	r.AppointmentTotal = r.AppointmentTotal.Add(d.AppointmentTotal)
	r.TotalTax = r.TotalTax.Add(d.Tax)
	r.TotalShipping = r.TotalShipping.Add(d.Shipping)
	r.TotalCommission = r.TotalCommission.Add(d.Commission)
	r.TotalRefunds = r.TotalRefunds.Add(d.Refunds)
	r.TotalPayouts = r.TotalPayouts.Add(d.Payouts)
	r.UpdatedAt = time.Now()
	r.IncrementVersion()
}

// RevenueSummary is the derived view of a period
type RevenueSummary struct {
	PeriodType        PeriodType                 `json:"period_type"`
	PeriodKey         string                     `json:"period_key"`
	TotalRevenue      decimal.Decimal            `json:"total_revenue"`
	OrderCount        int64                      `json:"order_count"`
	AverageOrderValue decimal.Decimal            `json:"average_order_value"`
	ProductGross      decimal.Decimal            `json:"product_gross"`
	CategoryBreakdown map[string]decimal.Decimal `json:"category_breakdown"`
	AdoptionCount     int64                      `json:"adoption_count"`
	AdoptionTotal     decimal.Decimal            `json:"adoption_total"`
	AppointmentCount  int64                      `json:"appointment_count"`
	AppointmentTotal  decimal.Decimal            `json:"appointment_total"`
	TotalTax          decimal.Decimal            `json:"total_tax"`
	TotalShipping     decimal.Decimal            `json:"total_shipping"`
	TotalCommission   decimal.Decimal            `json:"total_commission"`
	TotalRefunds      decimal.Decimal            `json:"total_refunds"`
	TotalPayouts      decimal.Decimal            `json:"total_payouts"`
	NetRevenue        decimal.Decimal            `json:"net_revenue"`
}

// Summarize derives the reporting view. Total revenue spans all three
// streams plus the collected tax and shipping, so the figure reconciles
// with the sale ledger entries, which carry each seller's tax and
// shipping allocation. Net revenue subtracts refunds. Average order
// value guards the zero-order case.
func (r *RevenuePeriod) Summarize() RevenueSummary {
	total := r.ProductGross.Add(r.TotalTax).Add(r.TotalShipping).
		Add(r.AdoptionTotal).Add(r.AppointmentTotal)

	avg := decimal.Zero
	if r.OrderCount > 0 {
		avg = r.ProductGross.Div(decimal.NewFromInt(r.OrderCount)).Round(2)
	}

	return RevenueSummary{
		PeriodType:        r.PeriodType,
		PeriodKey:         r.PeriodKey,
		TotalRevenue:      total,
		OrderCount:        r.OrderCount,
		AverageOrderValue: avg,
		ProductGross:      r.ProductGross,
		CategoryBreakdown: r.CategoryBreakdown,
		AdoptionCount:     r.AdoptionCount,
		AdoptionTotal:     r.AdoptionTotal,
		AppointmentCount:  r.AppointmentCount,
		AppointmentTotal:  r.AppointmentTotal,
		TotalTax:          r.TotalTax,
		TotalShipping:     r.TotalShipping,
		TotalCommission:   r.TotalCommission,
		TotalRefunds:      r.TotalRefunds,
		TotalPayouts:      r.TotalPayouts,
		NetRevenue:        total.Sub(r.TotalRefunds),
	}
}
