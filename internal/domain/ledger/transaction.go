package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pawmarket/backend/internal/domain/shared"
)

// TransactionType classifies a ledger entry
type TransactionType string

const (
	TransactionTypeSale          TransactionType = "sale"
	TransactionTypeRefund        TransactionType = "refund"
	TransactionTypePayout        TransactionType = "payout"
	TransactionTypeCommissionFee TransactionType = "commission_fee"
	TransactionTypeTaxPayment    TransactionType = "tax_payment"
)

// IsValid checks if the transaction type is recognized
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeSale, TransactionTypeRefund, TransactionTypePayout,
		TransactionTypeCommissionFee, TransactionTypeTaxPayment:
		return true
	}
	return false
}

// TransactionStatus is the lifecycle state of a ledger entry. Entries
// are append-only: a completed entry is never edited, only reversed by
// a compensating entry.
type TransactionStatus string

const (
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusReversed  TransactionStatus = "reversed"
)

// ReferenceType names the business object a ledger entry settles
type ReferenceType string

const (
	ReferenceTypeOrder       ReferenceType = "order"
	ReferenceTypeAdoption    ReferenceType = "adoption"
	ReferenceTypeAppointment ReferenceType = "appointment"
	ReferenceTypePayout      ReferenceType = "payout"
)

// Transaction is one immutable row of the financial ledger. Amount is
// the gross value of the movement; NetAmount is the signed effect on the
// payee's balance (negative for money leaving the platform toward the
// payee's bank, as in payouts).
type Transaction struct {
	shared.BaseEntity
	Type        TransactionType   `gorm:"size:20;not null;index" json:"type"`
	Status      TransactionStatus `gorm:"size:20;not null" json:"status"`
	PayeeUserID uuid.UUID         `gorm:"type:uuid;not null;index" json:"payee_user_id"`

	Amount     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Tax        decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"tax"`
	Commission decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"commission"`
	NetAmount  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"net_amount"`

	ReferenceType ReferenceType `gorm:"size:20;index:idx_transactions_ref" json:"reference_type,omitempty"`
	ReferenceID   *uuid.UUID    `gorm:"type:uuid;index:idx_transactions_ref" json:"reference_id,omitempty"`

	// How the money moved for entries that touch an external rail
	// (payouts), and the caller-supplied reference for tracing it there.
	Method      string `gorm:"size:30" json:"method,omitempty"`
	ExternalRef string `gorm:"size:100" json:"external_ref,omitempty"`

	Description string `gorm:"size:500" json:"description,omitempty"`

	// Set when this entry compensates another
	ReversalOf *uuid.UUID `gorm:"type:uuid" json:"reversal_of,omitempty"`
	// Set on the original when it has been compensated
	ReversedAt *time.Time `json:"reversed_at,omitempty"`
}

func (Transaction) TableName() string { return "transactions" }

func newTransaction(txType TransactionType, payee uuid.UUID) (*Transaction, error) {
	if payee == uuid.Nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "payee user id is required")
	}
	return &Transaction{
		BaseEntity:  shared.NewBaseEntity(),
		Type:        txType,
		Status:      TransactionStatusCompleted,
		PayeeUserID: payee,
		Tax:         decimal.Zero,
		Commission:  decimal.Zero,
	}, nil
}

// NewSaleTransaction records a seller's share of a settled sale. Amount
// is the gross credited amount including the seller's allocation of tax
// and shipping; commission is deducted to form the net balance effect.
// Tax is carried for reporting and remitted separately.
func NewSaleTransaction(sellerID uuid.UUID, amount, tax, commission decimal.Decimal, refType ReferenceType, refID uuid.UUID, description string) (*Transaction, error) {
	if !amount.IsPositive() {
		return nil, shared.ErrInvalidAmount
	}
	if tax.IsNegative() || commission.IsNegative() {
		return nil, shared.ErrInvalidAmount
	}
	if commission.GreaterThan(amount) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "commission cannot exceed the sale amount")
	}

	tx, err := newTransaction(TransactionTypeSale, sellerID)
	if err != nil {
		return nil, err
	}
	tx.Amount = amount
	tx.Tax = tax
	tx.Commission = commission
	tx.NetAmount = amount.Sub(commission)
	tx.ReferenceType = refType
	tx.ReferenceID = &refID
	tx.Description = description
	return tx, nil
}

// NewRefundTransaction records money returned to a customer. The net
// effect on the payee (the seller funding the refund) is negative.
func NewRefundTransaction(sellerID uuid.UUID, amount decimal.Decimal, refType ReferenceType, refID uuid.UUID, description string) (*Transaction, error) {
	if !amount.IsPositive() {
		return nil, shared.ErrInvalidAmount
	}
	tx, err := newTransaction(TransactionTypeRefund, sellerID)
	if err != nil {
		return nil, err
	}
	tx.Amount = amount
	tx.NetAmount = amount.Neg()
	tx.ReferenceType = refType
	tx.ReferenceID = &refID
	tx.Description = description
	return tx, nil
}

// NewPayoutTransaction records a withdrawal of accumulated balance to
// the payee's external account. NetAmount is negative: the balance
// decreases by the full amount. Method names the rail the money left
// on; externalRef is the caller's handle for it there.
func NewPayoutTransaction(payeeID uuid.UUID, amount decimal.Decimal, method, externalRef, description string) (*Transaction, error) {
	if !amount.IsPositive() {
		return nil, shared.ErrInvalidAmount
	}
	if method == "" {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "payout method is required")
	}
	tx, err := newTransaction(TransactionTypePayout, payeeID)
	if err != nil {
		return nil, err
	}
	tx.Amount = amount
	tx.NetAmount = amount.Neg()
	tx.ReferenceType = ReferenceTypePayout
	tx.Method = method
	tx.ExternalRef = externalRef
	tx.Description = description
	return tx, nil
}

// NewBalanceChargeTransaction records a customer paying for an order
// out of their accumulated balance. It pairs the balance debit with a
// ledger entry in the same atomic unit; NetAmount is negative on the
// customer's account.
func NewBalanceChargeTransaction(customerID uuid.UUID, amount decimal.Decimal, orderID uuid.UUID, description string) (*Transaction, error) {
	if !amount.IsPositive() {
		return nil, shared.ErrInvalidAmount
	}
	tx, err := newTransaction(TransactionTypePayout, customerID)
	if err != nil {
		return nil, err
	}
	tx.Amount = amount
	tx.NetAmount = amount.Neg()
	tx.ReferenceType = ReferenceTypeOrder
	tx.ReferenceID = &orderID
	tx.Method = "balance"
	tx.Description = description
	return tx, nil
}

// NewBalanceRefundTransaction records a balance payment being returned
// to the customer when the order is cancelled. NetAmount is positive on
// the customer's account.
func NewBalanceRefundTransaction(customerID uuid.UUID, amount decimal.Decimal, orderID uuid.UUID, description string) (*Transaction, error) {
	if !amount.IsPositive() {
		return nil, shared.ErrInvalidAmount
	}
	tx, err := newTransaction(TransactionTypeRefund, customerID)
	if err != nil {
		return nil, err
	}
	tx.Amount = amount
	tx.NetAmount = amount
	tx.ReferenceType = ReferenceTypeOrder
	tx.ReferenceID = &orderID
	tx.Method = "balance"
	tx.Description = description
	return tx, nil
}

// NewCommissionTransaction records the platform fee retained from a sale
func NewCommissionTransaction(platformAccountID uuid.UUID, amount decimal.Decimal, refType ReferenceType, refID uuid.UUID) (*Transaction, error) {
	if !amount.IsPositive() {
		return nil, shared.ErrInvalidAmount
	}
	tx, err := newTransaction(TransactionTypeCommissionFee, platformAccountID)
	if err != nil {
		return nil, err
	}
	tx.Amount = amount
	tx.NetAmount = amount
	tx.ReferenceType = refType
	tx.ReferenceID = &refID
	return tx, nil
}

// NewTaxPaymentTransaction records tax remitted to the authorities from
// collected tax. NetAmount is negative on the remitting account.
func NewTaxPaymentTransaction(accountID uuid.UUID, amount decimal.Decimal, description string) (*Transaction, error) {
	if !amount.IsPositive() {
		return nil, shared.ErrInvalidAmount
	}
	tx, err := newTransaction(TransactionTypeTaxPayment, accountID)
	if err != nil {
		return nil, err
	}
	tx.Amount = amount
	tx.NetAmount = amount.Neg()
	tx.Description = description
	return tx, nil
}

// Reverse produces the compensating entry for this transaction and
// marks this one reversed. The compensating entry negates the net
// balance effect; the original row is otherwise untouched.
func (t *Transaction) Reverse(reason string) (*Transaction, error) {
	if t.Status == TransactionStatusReversed {
		return nil, shared.NewDomainError("INVALID_TRANSITION", "transaction is already reversed")
	}
	if t.ReversalOf != nil {
		return nil, shared.NewDomainError("INVALID_TRANSITION", "a reversal entry cannot itself be reversed")
	}

	now := time.Now()
	rev := &Transaction{
		BaseEntity:    shared.NewBaseEntity(),
		Type:          t.Type,
		Status:        TransactionStatusCompleted,
		PayeeUserID:   t.PayeeUserID,
		Amount:        t.Amount,
		Tax:           t.Tax.Neg(),
		Commission:    t.Commission.Neg(),
		NetAmount:     t.NetAmount.Neg(),
		ReferenceType: t.ReferenceType,
		ReferenceID:   t.ReferenceID,
		Method:        t.Method,
		ExternalRef:   t.ExternalRef,
		Description:   fmt.Sprintf("reversal of %s: %s", t.ID, reason),
		ReversalOf:    &t.ID,
	}

	t.Status = TransactionStatusReversed
	t.ReversedAt = &now
	t.UpdatedAt = now

	return rev, nil
}

// IsReversal reports whether this entry compensates another
func (t *Transaction) IsReversal() bool {
	return t.ReversalOf != nil
}

// ReversalDelta returns the revenue-rollup adjustment that backing out
// the given original entry requires, keyed on what the entry settled.
// The second return is false for entry kinds that never fed a rollup
// (balance charges, refunds, commission fees, tax remittances).
func ReversalDelta(original *Transaction) (RevenueDelta, bool) {
	switch original.Type {
	case TransactionTypeSale:
		switch original.ReferenceType {
		case ReferenceTypeOrder:
			return RevenueDelta{
				Refunds:    original.Amount,
				Commission: original.Commission.Neg(),
			}, true
		case ReferenceTypeAdoption:
			return RevenueDelta{
				Adoptions:     -1,
				AdoptionTotal: original.Amount.Neg(),
			}, true
		case ReferenceTypeAppointment:
			return RevenueDelta{
				Appointments:     -1,
				AppointmentTotal: original.Amount.Neg(),
			}, true
		}
	case TransactionTypePayout:
		// Balance charges share the payout type but settle an order and
		// never fed TotalPayouts.
		if original.ReferenceType == ReferenceTypePayout {
			return RevenueDelta{Payouts: original.Amount.Neg()}, true
		}
	}
	return RevenueDelta{}, false
}
