package ledger

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawmarket/backend/internal/domain/shared"
)

func TestNewSaleTransaction(t *testing.T) {
	seller := uuid.New()
	orderID := uuid.New()

	t.Run("net is amount minus commission", func(t *testing.T) {
		tx, err := NewSaleTransaction(seller, decimal.NewFromInt(1000), decimal.NewFromInt(100), decimal.NewFromInt(50), ReferenceTypeOrder, orderID, "order settlement")
		require.NoError(t, err)

		assert.Equal(t, TransactionTypeSale, tx.Type)
		assert.Equal(t, TransactionStatusCompleted, tx.Status)
		assert.Equal(t, seller, tx.PayeeUserID)
		assert.True(t, tx.NetAmount.Equal(decimal.NewFromInt(950)))
		assert.True(t, tx.Tax.Equal(decimal.NewFromInt(100)))
		require.NotNil(t, tx.ReferenceID)
		assert.Equal(t, orderID, *tx.ReferenceID)
	})

	t.Run("zero commission keeps net equal to amount", func(t *testing.T) {
		tx, err := NewSaleTransaction(seller, decimal.NewFromInt(1000), decimal.NewFromInt(100), decimal.Zero, ReferenceTypeOrder, orderID, "")
		require.NoError(t, err)
		assert.True(t, tx.NetAmount.Equal(decimal.NewFromInt(1000)))
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		_, err := NewSaleTransaction(seller, decimal.Zero, decimal.Zero, decimal.Zero, ReferenceTypeOrder, orderID, "")
		assert.ErrorIs(t, err, shared.ErrInvalidAmount)
	})

	t.Run("rejects commission above amount", func(t *testing.T) {
		_, err := NewSaleTransaction(seller, decimal.NewFromInt(10), decimal.Zero, decimal.NewFromInt(20), ReferenceTypeOrder, orderID, "")
		assert.Error(t, err)
	})

	t.Run("rejects nil payee", func(t *testing.T) {
		_, err := NewSaleTransaction(uuid.Nil, decimal.NewFromInt(10), decimal.Zero, decimal.Zero, ReferenceTypeOrder, orderID, "")
		assert.Error(t, err)
	})
}

func TestNewPayoutTransaction(t *testing.T) {
	tx, err := NewPayoutTransaction(uuid.New(), decimal.NewFromInt(500), "bank_transfer", "WIRE-2041", "weekly payout")
	require.NoError(t, err)

	assert.Equal(t, TransactionTypePayout, tx.Type)
	assert.True(t, tx.Amount.Equal(decimal.NewFromInt(500)))
	assert.True(t, tx.NetAmount.Equal(decimal.NewFromInt(-500)))
	assert.Equal(t, ReferenceTypePayout, tx.ReferenceType)
	assert.Equal(t, "bank_transfer", tx.Method)
	assert.Equal(t, "WIRE-2041", tx.ExternalRef)

	_, err = NewPayoutTransaction(uuid.New(), decimal.NewFromInt(-1), "bank_transfer", "", "")
	assert.ErrorIs(t, err, shared.ErrInvalidAmount)

	_, err = NewPayoutTransaction(uuid.New(), decimal.NewFromInt(10), "", "", "")
	assert.Error(t, err)
}

func TestBalanceTransactions(t *testing.T) {
	customer := uuid.New()
	orderID := uuid.New()

	t.Run("charge debits the customer and references the order", func(t *testing.T) {
		tx, err := NewBalanceChargeTransaction(customer, decimal.NewFromInt(270), orderID, "balance payment")
		require.NoError(t, err)

		assert.Equal(t, TransactionTypePayout, tx.Type)
		assert.Equal(t, ReferenceTypeOrder, tx.ReferenceType)
		require.NotNil(t, tx.ReferenceID)
		assert.Equal(t, orderID, *tx.ReferenceID)
		assert.Equal(t, "balance", tx.Method)
		assert.True(t, tx.NetAmount.Equal(decimal.NewFromInt(-270)))
	})

	t.Run("refund credits the customer back", func(t *testing.T) {
		tx, err := NewBalanceRefundTransaction(customer, decimal.NewFromInt(270), orderID, "cancelled order")
		require.NoError(t, err)

		assert.Equal(t, TransactionTypeRefund, tx.Type)
		assert.Equal(t, ReferenceTypeOrder, tx.ReferenceType)
		assert.True(t, tx.NetAmount.Equal(decimal.NewFromInt(270)))
	})

	t.Run("non-positive amounts are rejected", func(t *testing.T) {
		_, err := NewBalanceChargeTransaction(customer, decimal.Zero, orderID, "")
		assert.ErrorIs(t, err, shared.ErrInvalidAmount)
		_, err = NewBalanceRefundTransaction(customer, decimal.NewFromInt(-3), orderID, "")
		assert.ErrorIs(t, err, shared.ErrInvalidAmount)
	})
}

func TestNewRefundTransaction(t *testing.T) {
	orderID := uuid.New()
	tx, err := NewRefundTransaction(uuid.New(), decimal.NewFromInt(120), ReferenceTypeOrder, orderID, "cancelled order")
	require.NoError(t, err)

	assert.Equal(t, TransactionTypeRefund, tx.Type)
	assert.True(t, tx.NetAmount.Equal(decimal.NewFromInt(-120)))
}

func TestNewTaxPaymentTransaction(t *testing.T) {
	tx, err := NewTaxPaymentTransaction(uuid.New(), decimal.NewFromInt(80), "Q3 remittance")
	require.NoError(t, err)
	assert.True(t, tx.NetAmount.Equal(decimal.NewFromInt(-80)))
}

func TestTransactionReverse(t *testing.T) {
	seller := uuid.New()
	orderID := uuid.New()

	t.Run("reversal negates the net effect", func(t *testing.T) {
		tx, err := NewSaleTransaction(seller, decimal.NewFromInt(1000), decimal.NewFromInt(100), decimal.NewFromInt(50), ReferenceTypeOrder, orderID, "")
		require.NoError(t, err)

		rev, err := tx.Reverse("duplicate settlement")
		require.NoError(t, err)

		assert.Equal(t, TransactionStatusReversed, tx.Status)
		assert.NotNil(t, tx.ReversedAt)
		assert.True(t, rev.NetAmount.Equal(decimal.NewFromInt(-950)))
		assert.Equal(t, TransactionStatusCompleted, rev.Status)
		require.NotNil(t, rev.ReversalOf)
		assert.Equal(t, tx.ID, *rev.ReversalOf)
		assert.True(t, rev.IsReversal())
	})

	t.Run("double reversal fails", func(t *testing.T) {
		tx, _ := NewSaleTransaction(seller, decimal.NewFromInt(100), decimal.Zero, decimal.Zero, ReferenceTypeOrder, orderID, "")
		_, err := tx.Reverse("first")
		require.NoError(t, err)
		_, err = tx.Reverse("second")
		assert.Error(t, err)
	})

	t.Run("reversal entries cannot be reversed", func(t *testing.T) {
		tx, _ := NewSaleTransaction(seller, decimal.NewFromInt(100), decimal.Zero, decimal.Zero, ReferenceTypeOrder, orderID, "")
		rev, err := tx.Reverse("oops")
		require.NoError(t, err)
		_, err = rev.Reverse("oops again")
		assert.Error(t, err)
	})
}

func TestReversalDelta(t *testing.T) {
	payee := uuid.New()
	refID := uuid.New()

	t.Run("order sale backs out as a refund and returns the commission", func(t *testing.T) {
		tx, err := NewSaleTransaction(payee, decimal.NewFromInt(1000), decimal.NewFromInt(100), decimal.NewFromInt(50), ReferenceTypeOrder, refID, "")
		require.NoError(t, err)

		delta, ok := ReversalDelta(tx)
		require.True(t, ok)
		assert.True(t, delta.Refunds.Equal(decimal.NewFromInt(1000)))
		assert.True(t, delta.Commission.Equal(decimal.NewFromInt(-50)))
	})

	t.Run("adoption sale shrinks the adoption stream", func(t *testing.T) {
		tx, err := NewSaleTransaction(payee, decimal.NewFromInt(150), decimal.Zero, decimal.Zero, ReferenceTypeAdoption, refID, "")
		require.NoError(t, err)

		delta, ok := ReversalDelta(tx)
		require.True(t, ok)
		assert.Equal(t, int64(-1), delta.Adoptions)
		assert.True(t, delta.AdoptionTotal.Equal(decimal.NewFromInt(-150)))
	})

	t.Run("appointment sale shrinks the appointment stream", func(t *testing.T) {
		tx, err := NewSaleTransaction(payee, decimal.NewFromInt(90), decimal.Zero, decimal.Zero, ReferenceTypeAppointment, refID, "")
		require.NoError(t, err)

		delta, ok := ReversalDelta(tx)
		require.True(t, ok)
		assert.Equal(t, int64(-1), delta.Appointments)
		assert.True(t, delta.AppointmentTotal.Equal(decimal.NewFromInt(-90)))
	})

	t.Run("payout lowers total payouts", func(t *testing.T) {
		tx, err := NewPayoutTransaction(payee, decimal.NewFromInt(300), "bank_transfer", "", "")
		require.NoError(t, err)

		delta, ok := ReversalDelta(tx)
		require.True(t, ok)
		assert.True(t, delta.Payouts.Equal(decimal.NewFromInt(-300)))
	})

	t.Run("balance charges and refunds never fed a rollup", func(t *testing.T) {
		charge, err := NewBalanceChargeTransaction(payee, decimal.NewFromInt(270), refID, "")
		require.NoError(t, err)
		_, ok := ReversalDelta(charge)
		assert.False(t, ok)

		refund, err := NewBalanceRefundTransaction(payee, decimal.NewFromInt(270), refID, "")
		require.NoError(t, err)
		_, ok = ReversalDelta(refund)
		assert.False(t, ok)

		remit, err := NewTaxPaymentTransaction(payee, decimal.NewFromInt(80), "")
		require.NoError(t, err)
		_, ok = ReversalDelta(remit)
		assert.False(t, ok)
	})
}
