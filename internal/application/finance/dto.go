package finance

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pawmarket/backend/internal/domain/ledger"
)

// RecordAdoptionRequest settles a completed pet adoption
type RecordAdoptionRequest struct {
	ShelterUserID uuid.UUID       `json:"shelter_user_id" binding:"required"`
	AdoptionID    uuid.UUID       `json:"adoption_id" binding:"required"`
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	Description   string          `json:"description" binding:"max=500"`
}

// RecordAppointmentRequest settles a completed veterinary appointment
type RecordAppointmentRequest struct {
	VetUserID     uuid.UUID       `json:"vet_user_id" binding:"required"`
	AppointmentID uuid.UUID       `json:"appointment_id" binding:"required"`
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	Description   string          `json:"description" binding:"max=500"`
}

// ReverseTransactionRequest compensates a posted ledger entry
type ReverseTransactionRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500"`
}

// PayoutRequest withdraws accumulated balance to an external account
type PayoutRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
	// Method names the rail the money leaves on (bank_transfer, paypal, ...)
	Method string `json:"method" binding:"required,max=30"`
	// Reference is the caller's handle for the transfer on that rail; optional
	Reference string `json:"reference" binding:"max=100"`
	// IdempotencyKey deduplicates retried requests; optional
	IdempotencyKey string `json:"idempotency_key" binding:"max=64"`
}

// TransactionListFilter represents filter options for ledger queries
type TransactionListFilter struct {
	Page     int `form:"page"`
	PageSize int `form:"page_size"`
}

// TransactionResponse represents one ledger entry
type TransactionResponse struct {
	ID            uuid.UUID                `json:"id"`
	Type          ledger.TransactionType   `json:"type"`
	Status        ledger.TransactionStatus `json:"status"`
	PayeeUserID   uuid.UUID                `json:"payee_user_id"`
	Amount        decimal.Decimal          `json:"amount"`
	Tax           decimal.Decimal          `json:"tax"`
	Commission    decimal.Decimal          `json:"commission"`
	NetAmount     decimal.Decimal          `json:"net_amount"`
	ReferenceType ledger.ReferenceType     `json:"reference_type,omitempty"`
	ReferenceID   *uuid.UUID               `json:"reference_id,omitempty"`
	Method        string                   `json:"method,omitempty"`
	ExternalRef   string                   `json:"external_ref,omitempty"`
	Description   string                   `json:"description,omitempty"`
	ReversalOf    *uuid.UUID               `json:"reversal_of,omitempty"`
	ReversedAt    *time.Time               `json:"reversed_at,omitempty"`
	CreatedAt     time.Time                `json:"created_at"`
}

// EarningsResponse summarizes a payee's financial position
type EarningsResponse struct {
	UserID           uuid.UUID       `json:"user_id"`
	Balance          decimal.Decimal `json:"balance"`
	LedgerNet        decimal.Decimal `json:"ledger_net"`
	TransactionCount int64           `json:"transaction_count"`
}

// ToTransactionResponse converts a ledger entry to its response DTO
func ToTransactionResponse(tx *ledger.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:            tx.ID,
		Type:          tx.Type,
		Status:        tx.Status,
		PayeeUserID:   tx.PayeeUserID,
		Amount:        tx.Amount,
		Tax:           tx.Tax,
		Commission:    tx.Commission,
		NetAmount:     tx.NetAmount,
		ReferenceType: tx.ReferenceType,
		ReferenceID:   tx.ReferenceID,
		Method:        tx.Method,
		ExternalRef:   tx.ExternalRef,
		Description:   tx.Description,
		ReversalOf:    tx.ReversalOf,
		ReversedAt:    tx.ReversedAt,
		CreatedAt:     tx.CreatedAt,
	}
}

// ToTransactionResponses converts a slice of ledger entries
func ToTransactionResponses(txs []ledger.Transaction) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(txs))
	for i := range txs {
		out = append(out, ToTransactionResponse(&txs[i]))
	}
	return out
}
