package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kikoba/kikoba/pkg/domain"
	"github.com/kikoba/kikoba/pkg/domain/ledger"
	"github.com/kikoba/kikoba/pkg/domain/member"
	"github.com/kikoba/kikoba/pkg/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loanTx(memberID uuid.UUID, date time.Time) *ledger.Transaction {
	return &ledger.Transaction{
		ID:       uuid.New(),
		Type:     ledger.TypeLoan,
		Category: ledger.CategoryDharura,
		Amount:   decimal.NewFromInt(100000),
		MemberID: memberID,
		Date:     date,
		Status:   ledger.StatusCompleted,
		Version:  1,
	}
}

func TestUoW_CommitAndRollback(t *testing.T) {
	ctx := context.Background()
	uow := NewUoW(New())
	txRepo, err := uow.TransactionRepository()
	require.NoError(t, err)

	committed := loanTx(uuid.New(), time.Now())
	err = uow.Do(ctx, func(u repository.UnitOfWork) error {
		repo, err := u.TransactionRepository()
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, committed))

		// visible inside the unit before commit
		got, err := repo.Get(ctx, committed.ID)
		require.NoError(t, err)
		assert.Equal(t, committed.ID, got.ID)

		_, err = txRepo.Get(ctx, committed.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound, "not visible outside before commit")
		return nil
	})
	require.NoError(t, err)
	_, err = txRepo.Get(ctx, committed.ID)
	require.NoError(t, err)

	rolledBack := loanTx(uuid.New(), time.Now())
	boom := errors.New("boom")
	err = uow.Do(ctx, func(u repository.UnitOfWork) error {
		repo, _ := u.TransactionRepository()
		require.NoError(t, repo.Create(ctx, rolledBack))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	_, err = txRepo.Get(ctx, rolledBack.ID)
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
}

func TestUpdate_ConditionalOnVersion(t *testing.T) {
	ctx := context.Background()
	uow := NewUoW(New())
	repo, _ := uow.TransactionRepository()

	tx := loanTx(uuid.New(), time.Now())
	require.NoError(t, repo.Create(ctx, tx))

	first, _ := repo.Get(ctx, tx.ID)
	second, _ := repo.Get(ctx, tx.ID)

	require.NoError(t, first.ApplyPenalty(decimal.NewFromInt(60000), time.Now()))
	require.NoError(t, repo.Update(ctx, first, 1))
	assert.EqualValues(t, 2, first.Version)

	require.NoError(t, second.ApplyPenalty(decimal.NewFromInt(60000), time.Now()))
	err := repo.Update(ctx, second, 1)
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)
	assert.ErrorIs(t, err, domain.ErrStateConflict)

	stored, _ := repo.Get(ctx, tx.ID)
	assert.Equal(t, "160000", stored.Amount.String())
}

func TestCommit_DetectsLostRace(t *testing.T) {
	ctx := context.Background()
	uow := NewUoW(New())
	outside, _ := uow.TransactionRepository()
	tx := loanTx(uuid.New(), time.Now())
	require.NoError(t, outside.Create(ctx, tx))

	err := uow.Do(ctx, func(u repository.UnitOfWork) error {
		repo, _ := u.TransactionRepository()
		mine, err := repo.GetForUpdate(ctx, tx.ID)
		require.NoError(t, err)
		require.NoError(t, mine.ApplyPenalty(decimal.NewFromInt(60000), time.Now()))
		require.NoError(t, repo.Update(ctx, mine, 1))

		// another writer commits first
		theirs, _ := outside.Get(ctx, tx.ID)
		require.NoError(t, theirs.ApplyPenalty(decimal.NewFromInt(60000), time.Now()))
		require.NoError(t, outside.Update(ctx, theirs, 1))
		return nil
	})
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)

	stored, _ := outside.Get(ctx, tx.ID)
	assert.Equal(t, "160000", stored.Amount.String(), "only one penalty lands")
	assert.EqualValues(t, 2, stored.Version)
}

func TestCreate_UniqueLoanPerRequest(t *testing.T) {
	ctx := context.Background()
	uow := NewUoW(New())
	repo, _ := uow.TransactionRepository()
	reqID := uuid.New()

	a := loanTx(uuid.New(), time.Now())
	a.RequestID = &reqID
	b := loanTx(uuid.New(), time.Now())
	b.RequestID = &reqID

	require.NoError(t, repo.Create(ctx, a))
	assert.ErrorIs(t, repo.Create(ctx, b), domain.ErrAlreadyExists)

	got, err := repo.List(ctx, repository.TransactionFilter{RequestID: &reqID})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestTransactionList_FiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	uow := NewUoW(New())
	repo, _ := uow.TransactionRepository()
	memberID := uuid.New()
	now := time.Now()

	newer := loanTx(memberID, now)
	older := loanTx(memberID, now.AddDate(0, -1, 0))
	penalized := loanTx(memberID, now.AddDate(0, -2, 0))
	penalized.PenaltyApplied = true
	other := loanTx(uuid.New(), now)
	for _, tx := range []*ledger.Transaction{newer, older, penalized, other} {
		require.NoError(t, repo.Create(ctx, tx))
	}

	notApplied := false
	got, err := repo.List(ctx, repository.TransactionFilter{MemberID: &memberID, PenaltyApplied: &notApplied})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, older.ID, got[0].ID)
	assert.Equal(t, newer.ID, got[1].ID)

	got, err = repo.List(ctx, repository.TransactionFilter{Type: ledger.TypeLoan, Limit: 3})
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestMemberAndGroupCode(t *testing.T) {
	ctx := context.Background()
	uow := NewUoW(New())
	members, _ := uow.MemberRepository()
	codes, _ := uow.GroupCodeRepository()

	m, err := member.New("m-1", "Asha", "", time.Now())
	require.NoError(t, err)
	require.NoError(t, members.Create(ctx, m))
	dup, _ := member.New("M-1", "Other", "", time.Now())
	assert.ErrorIs(t, members.Create(ctx, dup), domain.ErrAlreadyExists)

	got, err := members.GetByCode(ctx, " M-1 ")
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)
	_, err = members.GetByCode(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrMemberNotFound)

	admins, err := members.List(ctx, repository.MemberFilter{Role: member.RoleAdmin})
	require.NoError(t, err)
	assert.Empty(t, admins)

	code := &member.GroupCode{ID: uuid.New(), Code: "JOIN", IsActive: true, Version: 1}
	require.NoError(t, codes.Create(ctx, code))
	g, err := codes.GetByCode(ctx, "join")
	require.NoError(t, err)
	require.NoError(t, g.Redeem(time.Now()))
	require.NoError(t, codes.Update(ctx, g, 1))
	assert.ErrorIs(t, codes.Update(ctx, g, 1), domain.ErrConcurrentModification)
}

func TestDo_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := NewUoW(New()).Do(ctx, func(repository.UnitOfWork) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
