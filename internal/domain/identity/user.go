package identity

import (
	"context"

	"github.com/google/uuid"
	"github.com/pawmarket/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Role represents an actor role on the platform
type Role string

const (
	RoleCustomer   Role = "CUSTOMER"
	RoleSeller     Role = "SELLER"
	RoleVeterinary Role = "VETERINARY"
	RoleAdmin      Role = "ADMIN"
)

// IsValid checks if the role is a known Role
func (r Role) IsValid() bool {
	switch r {
	case RoleCustomer, RoleSeller, RoleVeterinary, RoleAdmin:
		return true
	}
	return false
}

// String returns the string representation of Role
func (r Role) String() string {
	return string(r)
}

// Earns returns true for roles that accrue a payable balance
func (r Role) Earns() bool {
	return r == RoleSeller || r == RoleVeterinary
}

// ApprovalStatus represents account vetting state
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

// ApprovalStatusFor returns the initial approval status for a role.
// Sellers and veterinarians require vetting before they can trade;
// everyone else is approved on creation.
func ApprovalStatusFor(role Role) ApprovalStatus {
	if role.Earns() {
		return ApprovalPending
	}
	return ApprovalApproved
}

// User is the authenticated principal this subsystem receives from the
// auth collaborator, extended with the payable balance it owns. Balance
// is a cached projection of the transaction ledger: every write to it
// must be paired, in the same atomic unit, with the ledger entry that
// justifies it.
type User struct {
	shared.BaseAggregateRoot
	Name           string          `gorm:"size:255;not null"`
	Email          string          `gorm:"size:255;not null;uniqueIndex"`
	Role           Role            `gorm:"size:20;not null;index"`
	ApprovalStatus ApprovalStatus  `gorm:"size:20;not null"`
	Balance        decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
}

// TableName returns the table name for GORM
func (User) TableName() string { return "users" }

// NewUser creates a user with the role-appropriate approval status
func NewUser(name, email string, role Role) (*User, error) {
	if name == "" {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Name is required")
	}
	if email == "" {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Email is required")
	}
	if !role.IsValid() {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Unknown role")
	}

	return &User{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              name,
		Email:             email,
		Role:              role,
		ApprovalStatus:    ApprovalStatusFor(role),
		Balance:           decimal.Zero,
	}, nil
}

// IsAdmin returns true for platform administrators
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// CanReceivePayout returns true if the user accrues a balance and is approved
func (u *User) CanReceivePayout() bool {
	return u.Role.Earns() && u.ApprovalStatus == ApprovalApproved
}

// UserRepository provides access to users and their cached balances.
// AdjustBalance must be an atomic in-database increment; debits
// (negative delta) must be conditional on sufficient balance so the
// balance can never go negative under concurrent payouts.
type UserRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	Save(ctx context.Context, user *User) error

	// AdjustBalance applies delta to the user's balance in a single
	// conditional update. A negative delta fails with
	// shared.ErrInsufficientBalance when balance + delta would drop
	// below zero, and shared.ErrNotFound when the user is missing.
	AdjustBalance(ctx context.Context, id uuid.UUID, delta decimal.Decimal) error
}
