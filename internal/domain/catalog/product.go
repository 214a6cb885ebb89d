package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/pawmarket/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Product is the read model this subsystem consumes from the catalog
// context. Only price, stock and ownership are of interest here; the
// catalog owns the full entity and its CRUD lifecycle.
type Product struct {
	shared.BaseEntity
	Name      string          `gorm:"size:255;not null"`
	Category  string          `gorm:"size:100;index"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	SalePrice decimal.Decimal `gorm:"type:decimal(12,2)"`
	OnSale    bool            `gorm:"not null;default:false"`
	Stock     int64           `gorm:"not null;default:0"`
	ImageURL  string          `gorm:"size:500"`
	SellerID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	Active    bool            `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (Product) TableName() string { return "products" }

// EffectivePrice returns the sale price when the product is on sale,
// otherwise the list price.
func (p *Product) EffectivePrice() decimal.Decimal {
	if p.OnSale && p.SalePrice.IsPositive() {
		return p.SalePrice
	}
	return p.Price
}

// InStock returns true if at least qty units are available
func (p *Product) InStock(qty int64) bool {
	return p.Active && p.Stock >= qty
}

// ProductRepository is the catalog-facing contract. Reserve and Release
// form the inventory ledger: both must be implemented as single
// conditional updates so that two concurrent checkouts can never both
// pass a stale stock check.
type ProductRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Product, error)

	// Reserve atomically decrements stock by qty. It fails with
	// shared.ErrInsufficientStock when fewer than qty units remain and
	// with shared.ErrNotFound when the product does not exist. Stock can
	// never go negative through this call.
	Reserve(ctx context.Context, id uuid.UUID, qty int64) error

	// Release atomically increments stock by qty (order cancellation).
	Release(ctx context.Context, id uuid.UUID, qty int64) error
}
