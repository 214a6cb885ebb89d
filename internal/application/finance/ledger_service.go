package finance

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pawmarket/backend/internal/domain/identity"
	"github.com/pawmarket/backend/internal/domain/ledger"
	"github.com/pawmarket/backend/internal/domain/shared"
)

// LedgerService appends and queries financial ledger entries. Product
// sale settlement lives in the order service (it runs inside the
// delivery transition); this service owns the other revenue streams,
// reversals and tax remittance.
type LedgerService struct {
	scope    TransactionScope
	txRepo   ledger.TransactionRepository
	userRepo identity.UserRepository
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(scope TransactionScope, txRepo ledger.TransactionRepository, userRepo identity.UserRepository) *LedgerService {
	return &LedgerService{
		scope:    scope,
		txRepo:   txRepo,
		userRepo: userRepo,
	}
}

// RecordAdoption settles a completed adoption: the shelter is credited
// and the adoption revenue stream updated, atomically.
func (s *LedgerService) RecordAdoption(ctx context.Context, req RecordAdoptionRequest) (*TransactionResponse, error) {
	var created *ledger.Transaction
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := requireEarningUser(ctx, repos.UserRepo(), req.ShelterUserID); err != nil {
			return err
		}

		tx, err := ledger.NewSaleTransaction(
			req.ShelterUserID, req.Amount, decimal.Zero, decimal.Zero,
			ledger.ReferenceTypeAdoption, req.AdoptionID, req.Description,
		)
		if err != nil {
			return err
		}
		if err := repos.TransactionRepo().Save(ctx, tx); err != nil {
			return err
		}
		if err := repos.UserRepo().AdjustBalance(ctx, req.ShelterUserID, tx.NetAmount); err != nil {
			return err
		}

		created = tx
		return applyRevenueDelta(ctx, repos.RevenueRepo(), tx.CreatedAt, ledger.RevenueDelta{
			Adoptions:     1,
			AdoptionTotal: req.Amount,
		})
	})
	if err != nil {
		return nil, err
	}

	resp := ToTransactionResponse(created)
	return &resp, nil
}

// RecordAppointment settles a completed veterinary appointment
func (s *LedgerService) RecordAppointment(ctx context.Context, req RecordAppointmentRequest) (*TransactionResponse, error) {
	var created *ledger.Transaction
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := requireEarningUser(ctx, repos.UserRepo(), req.VetUserID); err != nil {
			return err
		}

		tx, err := ledger.NewSaleTransaction(
			req.VetUserID, req.Amount, decimal.Zero, decimal.Zero,
			ledger.ReferenceTypeAppointment, req.AppointmentID, req.Description,
		)
		if err != nil {
			return err
		}
		if err := repos.TransactionRepo().Save(ctx, tx); err != nil {
			return err
		}
		if err := repos.UserRepo().AdjustBalance(ctx, req.VetUserID, tx.NetAmount); err != nil {
			return err
		}

		created = tx
		return applyRevenueDelta(ctx, repos.RevenueRepo(), tx.CreatedAt, ledger.RevenueDelta{
			Appointments:     1,
			AppointmentTotal: req.Amount,
		})
	})
	if err != nil {
		return nil, err
	}

	resp := ToTransactionResponse(created)
	return &resp, nil
}

// Reverse compensates a posted entry: a new entry negating the balance
// effect is appended, the original is marked reversed, and the payee's
// balance is adjusted back. Rollups that the original fed are backed
// out in the same step: an order sale counts as a refund, adoption and
// appointment sales shrink their stream totals, and a payout reversal
// lowers the period's total payouts.
func (s *LedgerService) Reverse(ctx context.Context, transactionID uuid.UUID, req ReverseTransactionRequest) (*TransactionResponse, error) {
	var reversal *ledger.Transaction
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		original, err := repos.TransactionRepo().FindByID(ctx, transactionID)
		if err != nil {
			return err
		}

		rev, err := original.Reverse(req.Reason)
		if err != nil {
			return err
		}

		if err := repos.TransactionRepo().Save(ctx, rev); err != nil {
			return err
		}
		if err := repos.TransactionRepo().MarkReversed(ctx, original); err != nil {
			return err
		}
		if err := repos.UserRepo().AdjustBalance(ctx, original.PayeeUserID, rev.NetAmount); err != nil {
			return err
		}

		reversal = rev
		if delta, ok := ledger.ReversalDelta(original); ok {
			return applyRevenueDelta(ctx, repos.RevenueRepo(), time.Now(), delta)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp := ToTransactionResponse(reversal)
	return &resp, nil
}

// RemitTax records tax remitted to the authorities from the platform
// account
func (s *LedgerService) RemitTax(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, description string) (*TransactionResponse, error) {
	var created *ledger.Transaction
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		tx, err := ledger.NewTaxPaymentTransaction(accountID, amount, description)
		if err != nil {
			return err
		}
		if err := repos.TransactionRepo().Save(ctx, tx); err != nil {
			return err
		}
		created = tx
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp := ToTransactionResponse(created)
	return &resp, nil
}

// GetByID retrieves a ledger entry
func (s *LedgerService) GetByID(ctx context.Context, id uuid.UUID) (*TransactionResponse, error) {
	tx, err := s.txRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToTransactionResponse(tx)
	return &resp, nil
}

// ListByPayee lists a payee's ledger entries, newest first
func (s *LedgerService) ListByPayee(ctx context.Context, payeeUserID uuid.UUID, f TransactionListFilter) ([]TransactionResponse, error) {
	filter := shared.DefaultFilter()
	if f.Page > 0 {
		filter.Page = f.Page
	}
	if f.PageSize > 0 {
		filter.PageSize = f.PageSize
	}
	txs, err := s.txRepo.FindByPayee(ctx, payeeUserID, filter)
	if err != nil {
		return nil, err
	}
	return ToTransactionResponses(txs), nil
}

// ListByReference lists the entries settling a business object
func (s *LedgerService) ListByReference(ctx context.Context, refType ledger.ReferenceType, refID uuid.UUID) ([]TransactionResponse, error) {
	txs, err := s.txRepo.FindByReference(ctx, refType, refID)
	if err != nil {
		return nil, err
	}
	return ToTransactionResponses(txs), nil
}

// Earnings returns a payee's cached balance alongside the ledger-derived
// net, letting operators spot projection drift.
func (s *LedgerService) Earnings(ctx context.Context, userID uuid.UUID) (*EarningsResponse, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	net, err := s.txRepo.SumNetByPayee(ctx, userID)
	if err != nil {
		return nil, err
	}
	count, err := s.txRepo.CountByPayee(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &EarningsResponse{
		UserID:           userID,
		Balance:          user.Balance,
		LedgerNet:        net,
		TransactionCount: count,
	}, nil
}

// requireEarningUser ensures the payee exists and is approved to earn
func requireEarningUser(ctx context.Context, users identity.UserRepository, id uuid.UUID) error {
	user, err := users.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !user.CanReceivePayout() {
		return shared.ErrForbidden
	}
	return nil
}

// applyRevenueDelta folds a settlement into the rollup row of every
// granularity
func applyRevenueDelta(ctx context.Context, repo ledger.RevenuePeriodRepository, at time.Time, delta ledger.RevenueDelta) error {
	for _, periodType := range ledger.AllPeriodTypes {
		period, err := repo.GetOrCreate(ctx, periodType, ledger.PeriodKeyFor(periodType, at))
		if err != nil {
			return err
		}
		period.ApplyDelta(delta)
		if err := repo.Save(ctx, period); err != nil {
			return err
		}
	}
	return nil
}
