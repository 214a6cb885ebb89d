package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pawmarket/backend/internal/domain/ledger"
	"github.com/pawmarket/backend/internal/domain/shared"
)

// payoutIdempotencyTTL bounds how long a payout request key blocks replays
const payoutIdempotencyTTL = 24 * time.Hour

// PayoutService withdraws accumulated balances to external accounts.
// The debit is a conditional atomic update, so two concurrent payout
// requests can never overdraw the same balance: the slower one fails
// with INSUFFICIENT_BALANCE instead.
type PayoutService struct {
	scope          TransactionScope
	idempotency    shared.IdempotencyStore
	idempotencyTTL time.Duration
}

// NewPayoutService creates a new PayoutService
func NewPayoutService(scope TransactionScope, idempotency shared.IdempotencyStore) *PayoutService {
	return &PayoutService{
		scope:          scope,
		idempotency:    idempotency,
		idempotencyTTL: payoutIdempotencyTTL,
	}
}

// WithIdempotencyTTL overrides the replay window for payout request keys
func (s *PayoutService) WithIdempotencyTTL(ttl time.Duration) *PayoutService {
	if ttl > 0 {
		s.idempotencyTTL = ttl
	}
	return s
}

// ProcessPayout debits the payee's balance and appends the payout ledger
// entry atomically. Requests carrying an idempotency key are processed
// at most once within the key's TTL: the key is acquired before the
// transaction and released again if the payout does not commit, so a
// failed attempt never burns the caller's key.
func (s *PayoutService) ProcessPayout(ctx context.Context, payeeUserID uuid.UUID, req PayoutRequest) (*TransactionResponse, error) {
	if !req.Amount.IsPositive() {
		return nil, shared.ErrInvalidAmount
	}

	var acquiredKey string
	if req.IdempotencyKey != "" && s.idempotency != nil {
		key := payoutKey(payeeUserID, req.IdempotencyKey)
		fresh, err := s.idempotency.MarkProcessed(ctx, key, s.idempotencyTTL)
		if err != nil {
			return nil, err
		}
		if !fresh {
			return nil, shared.NewDomainError("ALREADY_EXISTS", "payout request was already processed")
		}
		acquiredKey = key
	}

	var created *ledger.Transaction
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		user, err := repos.UserRepo().FindByID(ctx, payeeUserID)
		if err != nil {
			return err
		}
		if !user.CanReceivePayout() {
			return shared.ErrForbidden
		}

		if err := repos.UserRepo().AdjustBalance(ctx, payeeUserID, req.Amount.Neg()); err != nil {
			return err
		}

		tx, err := ledger.NewPayoutTransaction(payeeUserID, req.Amount,
			req.Method, req.Reference, fmt.Sprintf("payout to %s", user.Name))
		if err != nil {
			return err
		}
		if err := repos.TransactionRepo().Save(ctx, tx); err != nil {
			return err
		}

		created = tx
		return applyRevenueDelta(ctx, repos.RevenueRepo(), tx.CreatedAt, ledger.RevenueDelta{
			Payouts: req.Amount,
		})
	})
	if err != nil {
		if acquiredKey != "" {
			// Best effort: a lost release only delays the retry by the TTL.
			_ = s.idempotency.Release(ctx, acquiredKey)
		}
		return nil, err
	}

	resp := ToTransactionResponse(created)
	return &resp, nil
}

func payoutKey(payeeUserID uuid.UUID, key string) string {
	return fmt.Sprintf("payout:%s:%s", payeeUserID, key)
}
