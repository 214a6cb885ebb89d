package cart

import (
	"github.com/shopspring/decimal"
)

// PricingPolicy holds the order pricing rules. The source systems this
// platform grew out of disagreed on the exact constants, so they are
// configuration rather than literals; the defaults below are applied
// uniformly at every call site.
type PricingPolicy struct {
	TaxRate               decimal.Decimal // fraction of subtotal, e.g. 0.10
	FreeShippingThreshold decimal.Decimal // subtotal above which shipping is free
	ShippingFlatFee       decimal.Decimal
	CommissionRate        decimal.Decimal // platform cut of seller sales, fraction
}

// DefaultPricingPolicy returns the standard platform pricing rules
func DefaultPricingPolicy() PricingPolicy {
	return PricingPolicy{
		TaxRate:               decimal.RequireFromString("0.10"),
		FreeShippingThreshold: decimal.NewFromInt(500),
		ShippingFlatFee:       decimal.NewFromInt(50),
		CommissionRate:        decimal.Zero,
	}
}

// Totals is the derived pricing of a cart or order
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
}

// Compute derives totals from a subtotal. Pure function: totals are
// never stored as truth, only recomputed at mutation boundaries.
func (p PricingPolicy) Compute(subtotal decimal.Decimal) Totals {
	tax := subtotal.Mul(p.TaxRate).Round(2)

	shipping := p.ShippingFlatFee
	if subtotal.IsZero() || subtotal.GreaterThan(p.FreeShippingThreshold) {
		shipping = decimal.Zero
	}

	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Total:    subtotal.Add(tax).Add(shipping),
	}
}

// Commission returns the platform commission on an amount
func (p PricingPolicy) Commission(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(p.CommissionRate).Round(2)
}
