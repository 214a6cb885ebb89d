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

// ledgerWorld is an in-memory stand-in for the financial repositories
// that holds real state, so rollback behavior can be asserted where the
// call-recording mocks cannot hold any.
type ledgerWorld struct {
	users   map[uuid.UUID]identity.User
	entries []ledger.Transaction
	periods map[string]ledger.RevenuePeriod
}

func newLedgerWorld(users ...*identity.User) *ledgerWorld {
	w := &ledgerWorld{
		users:   make(map[uuid.UUID]identity.User),
		periods: make(map[string]ledger.RevenuePeriod),
	}
	for _, u := range users {
		w.users[u.ID] = *u
	}
	return w
}

func (w *ledgerWorld) balanceOf(id uuid.UUID) decimal.Decimal {
	return w.users[id].Balance
}

func (w *ledgerWorld) snapshot() ledgerWorld {
	s := ledgerWorld{
		users:   make(map[uuid.UUID]identity.User, len(w.users)),
		entries: append([]ledger.Transaction(nil), w.entries...),
		periods: make(map[string]ledger.RevenuePeriod, len(w.periods)),
	}
	for id, u := range w.users {
		s.users[id] = u
	}
	for k, p := range w.periods {
		s.periods[k] = p
	}
	return s
}

func (w *ledgerWorld) restore(s ledgerWorld) {
	w.users = s.users
	w.entries = s.entries
	w.periods = s.periods
}

func periodKey(periodType ledger.PeriodType, key string) string {
	return string(periodType) + "|" + key
}

// faultyCommitScope runs the scoped function against the world and, when
// commitErr is set, fails the commit afterwards, undoing every write the
// function made. A nil commitErr behaves like a committing transaction.
type faultyCommitScope struct {
	world     *ledgerWorld
	commitErr error
}

func (s *faultyCommitScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	before := s.world.snapshot()
	err := fn(worldRepos{s.world})
	if err == nil {
		err = s.commitErr
	}
	if err != nil {
		s.world.restore(before)
		return err
	}
	return nil
}

type worldRepos struct{ w *ledgerWorld }

func (r worldRepos) UserRepo() identity.UserRepository           { return worldUsers{r.w} }
func (r worldRepos) TransactionRepo() ledger.TransactionRepository { return worldLedger{r.w} }
func (r worldRepos) RevenueRepo() ledger.RevenuePeriodRepository { return worldRevenue{r.w} }

type worldUsers struct{ w *ledgerWorld }

func (r worldUsers) FindByID(_ context.Context, id uuid.UUID) (*identity.User, error) {
	u, ok := r.w.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &u, nil
}

func (r worldUsers) Save(_ context.Context, user *identity.User) error {
	r.w.users[user.ID] = *user
	return nil
}

func (r worldUsers) AdjustBalance(_ context.Context, id uuid.UUID, delta decimal.Decimal) error {
	u, ok := r.w.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	next := u.Balance.Add(delta)
	if next.IsNegative() {
		return shared.ErrInsufficientBalance
	}
	u.Balance = next
	r.w.users[id] = u
	return nil
}

type worldLedger struct{ w *ledgerWorld }

func (r worldLedger) FindByID(_ context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	for i := range r.w.entries {
		if r.w.entries[i].ID == id {
			tx := r.w.entries[i]
			return &tx, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r worldLedger) FindByPayee(_ context.Context, payeeUserID uuid.UUID, _ shared.Filter) ([]ledger.Transaction, error) {
	var out []ledger.Transaction
	for i := range r.w.entries {
		if r.w.entries[i].PayeeUserID == payeeUserID {
			out = append(out, r.w.entries[i])
		}
	}
	return out, nil
}

func (r worldLedger) FindByReference(_ context.Context, refType ledger.ReferenceType, refID uuid.UUID) ([]ledger.Transaction, error) {
	var out []ledger.Transaction
	for i := range r.w.entries {
		e := r.w.entries[i]
		if e.ReferenceType == refType && e.ReferenceID != nil && *e.ReferenceID == refID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r worldLedger) FindByType(_ context.Context, txType ledger.TransactionType, from, to time.Time, _ shared.Filter) ([]ledger.Transaction, error) {
	var out []ledger.Transaction
	for i := range r.w.entries {
		e := r.w.entries[i]
		if e.Type == txType && !e.CreatedAt.Before(from) && !e.CreatedAt.After(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r worldLedger) Save(_ context.Context, tx *ledger.Transaction) error {
	r.w.entries = append(r.w.entries, *tx)
	return nil
}

func (r worldLedger) MarkReversed(_ context.Context, tx *ledger.Transaction) error {
	for i := range r.w.entries {
		if r.w.entries[i].ID == tx.ID {
			r.w.entries[i].Status = tx.Status
			r.w.entries[i].ReversedAt = tx.ReversedAt
			return nil
		}
	}
	return shared.ErrNotFound
}

func (r worldLedger) SumNetByPayee(_ context.Context, payeeUserID uuid.UUID) (decimal.Decimal, error) {
	sum := decimal.Zero
	for i := range r.w.entries {
		if r.w.entries[i].PayeeUserID == payeeUserID {
			sum = sum.Add(r.w.entries[i].NetAmount)
		}
	}
	return sum, nil
}

func (r worldLedger) CountByPayee(_ context.Context, payeeUserID uuid.UUID) (int64, error) {
	var n int64
	for i := range r.w.entries {
		if r.w.entries[i].PayeeUserID == payeeUserID {
			n++
		}
	}
	return n, nil
}

type worldRevenue struct{ w *ledgerWorld }

func (r worldRevenue) GetOrCreate(_ context.Context, periodType ledger.PeriodType, key string) (*ledger.RevenuePeriod, error) {
	if p, ok := r.w.periods[periodKey(periodType, key)]; ok {
		return &p, nil
	}
	return ledger.NewRevenuePeriod(periodType, key)
}

func (r worldRevenue) FindByKey(_ context.Context, periodType ledger.PeriodType, key string) (*ledger.RevenuePeriod, error) {
	if p, ok := r.w.periods[periodKey(periodType, key)]; ok {
		return &p, nil
	}
	return nil, shared.ErrNotFound
}

func (r worldRevenue) FindRange(_ context.Context, periodType ledger.PeriodType, fromKey, toKey string) ([]ledger.RevenuePeriod, error) {
	var out []ledger.RevenuePeriod
	for _, p := range r.w.periods {
		if p.PeriodType == periodType && p.PeriodKey >= fromKey && p.PeriodKey <= toKey {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r worldRevenue) Save(_ context.Context, period *ledger.RevenuePeriod) error {
	r.w.periods[periodKey(period.PeriodType, period.PeriodKey)] = *period
	return nil
}

var _ TransactionScope = (*faultyCommitScope)(nil)
var _ TransactionalRepositories = (worldRepos{})
