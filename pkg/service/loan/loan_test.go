package loan

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	infraeventbus "github.com/kikoba/kikoba/infra/eventbus"
	"github.com/kikoba/kikoba/infra/repository/memory"
	"github.com/kikoba/kikoba/pkg/config"
	"github.com/kikoba/kikoba/pkg/domain"
	"github.com/kikoba/kikoba/pkg/domain/ledger"
	"github.com/kikoba/kikoba/pkg/domain/loan"
	"github.com/kikoba/kikoba/pkg/domain/member"
	"github.com/kikoba/kikoba/pkg/eventbus"
	"github.com/kikoba/kikoba/pkg/notify"
	"github.com/kikoba/kikoba/pkg/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []notify.Message
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
	return n.err
}

func (n *recordingNotifier) kinds() []notify.Kind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notify.Kind, 0, len(n.msgs))
	for _, m := range n.msgs {
		out = append(out, m.Kind)
	}
	return out
}

type fixture struct {
	svc       *Service
	uow       repository.UnitOfWork
	bus       *infraeventbus.MemoryBus
	notifier  *recordingNotifier
	applicant *member.Member
	admins    []*member.Member
}

func newFixture(t *testing.T, adminCount int) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	uow := memory.NewUoW(memory.New())
	bus := infraeventbus.NewWithMemory(logger)
	n := &recordingNotifier{}

	members, err := uow.MemberRepository()
	require.NoError(t, err)
	applicant, err := member.New("M-001", "Asha", "", time.Now())
	require.NoError(t, err)
	require.NoError(t, members.Create(ctx, applicant))

	f := &fixture{uow: uow, bus: bus, notifier: n, applicant: applicant}
	for i := 0; i < adminCount; i++ {
		a, err := member.New(uuid.NewString()[:8], "Admin", "", time.Now())
		require.NoError(t, err)
		a.Role = member.RoleAdmin
		require.NoError(t, members.Create(ctx, a))
		f.admins = append(f.admins, a)
	}
	inactive, _ := member.New("M-OLD", "Retired Admin", "", time.Now())
	inactive.Role = member.RoleAdmin
	inactive.Status = member.StatusInactive
	require.NoError(t, members.Create(ctx, inactive))

	f.svc = NewService(config.Deps{Uow: uow, EventBus: bus, Notifier: n, Logger: logger})
	return f
}

func (f *fixture) submit(t *testing.T, typ loan.Type, amount int64) *loan.Request {
	t.Helper()
	req, err := f.svc.Submit(context.Background(), SubmitCommand{
		MemberID:    f.applicant.ID,
		Amount:      decimal.NewFromInt(amount),
		Type:        typ,
		Description: "school fees",
	})
	require.NoError(t, err)
	return req
}

func (f *fixture) vote(admin *member.Member, req *loan.Request, d loan.Decision) (*loan.Request, error) {
	return f.svc.CastVote(context.Background(), VoteCommand{RequestID: req.ID, AdminID: admin.ID, Decision: d})
}

func (f *fixture) loans(t *testing.T) []*ledger.Transaction {
	t.Helper()
	repo, err := f.uow.TransactionRepository()
	require.NoError(t, err)
	txs, err := repo.List(context.Background(), repository.TransactionFilter{Type: ledger.TypeLoan})
	require.NoError(t, err)
	return txs
}

func TestSubmit_SnapshotsActiveAdmins(t *testing.T) {
	f := newFixture(t, 2)
	req := f.submit(t, loan.TypeStandard, 50000)

	assert.Equal(t, loan.StatusPending, req.Status)
	require.Len(t, req.Approvals, 2)
	for _, a := range f.admins {
		assert.Equal(t, loan.DecisionPending, req.Approvals[a.ID])
		assert.Equal(t, "Admin", req.AdminNames[a.ID])
	}
	assert.Equal(t, "M-001", req.RequesterMemberCode)
	assert.Equal(t, []notify.Kind{notify.KindLoanSubmitted}, f.notifier.kinds())
	require.Len(t, f.bus.Published(), 1)
	assert.Equal(t, eventbus.CollectionLoanRequests, f.bus.Published()[0].Collection)

	stored, err := f.svc.Get(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, req.ID, stored.ID)
}

func TestSubmit_Errors(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, SubmitCommand{MemberID: f.applicant.ID, Amount: decimal.Zero, Type: loan.TypeStandard, Description: "x"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.Submit(ctx, SubmitCommand{MemberID: uuid.New(), Amount: decimal.NewFromInt(10), Type: loan.TypeStandard, Description: "x"})
	assert.ErrorIs(t, err, domain.ErrMemberNotFound)

	none := newFixture(t, 0)
	_, err = none.svc.Submit(ctx, SubmitCommand{MemberID: none.applicant.ID, Amount: decimal.NewFromInt(10), Type: loan.TypeDharura, Description: "x"})
	assert.ErrorIs(t, err, domain.ErrNoApprovers)

	_, err = f.svc.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrRequestNotFound)
}

func TestEndToEnd_DharuraApprovalThenRejection(t *testing.T) {
	f := newFixture(t, 2)
	adminA, adminB := f.admins[0], f.admins[1]

	first := f.submit(t, loan.TypeDharura, 100000)

	got, err := f.vote(adminA, first, loan.DecisionApproved)
	require.NoError(t, err)
	assert.Equal(t, loan.StatusPending, got.Status)
	assert.Empty(t, f.loans(t))

	got, err = f.vote(adminB, first, loan.DecisionApproved)
	require.NoError(t, err)
	assert.Equal(t, loan.StatusApproved, got.Status)
	require.NotNil(t, got.TransactionID)

	loans := f.loans(t)
	require.Len(t, loans, 1)
	assert.Equal(t, "100000", loans[0].Amount.String())
	assert.Equal(t, "100000", loans[0].OriginalAmount.String())
	assert.True(t, loans[0].InterestRate.IsZero())
	assert.Equal(t, ledger.CategoryDharura, loans[0].Category)
	assert.Equal(t, *got.TransactionID, loans[0].ID)
	require.NotNil(t, loans[0].RequestID)
	assert.Equal(t, first.ID, *loans[0].RequestID)

	second := f.submit(t, loan.TypeDharura, 100000)
	got, err = f.vote(adminA, second, loan.DecisionRejected)
	require.NoError(t, err)
	assert.Equal(t, loan.StatusRejected, got.Status)
	assert.Equal(t, loan.DefaultRejectionReason, got.RejectionReason)
	assert.Equal(t, loan.DecisionPending, got.Approvals[adminB.ID])

	_, err = f.vote(adminB, second, loan.DecisionApproved)
	assert.ErrorIs(t, err, domain.ErrAlreadyDecided)
	assert.Len(t, f.loans(t), 1)

	assert.Contains(t, f.notifier.kinds(), notify.KindLoanApproved)
	assert.Contains(t, f.notifier.kinds(), notify.KindLoanRejected)
}

func TestCastVote_StandardInterest(t *testing.T) {
	f := newFixture(t, 1)
	req := f.submit(t, loan.TypeStandard, 100000)

	got, err := f.vote(f.admins[0], req, loan.DecisionApproved)
	require.NoError(t, err)
	assert.Equal(t, loan.StatusApproved, got.Status)

	loans := f.loans(t)
	require.Len(t, loans, 1)
	assert.Equal(t, "110000", loans[0].Amount.String())
	assert.Equal(t, "100000", loans[0].OriginalAmount.String())
	assert.Equal(t, "10", loans[0].InterestRate.String())
}

func TestCastVote_TerminalNeverMutates(t *testing.T) {
	f := newFixture(t, 1)
	req := f.submit(t, loan.TypeStandard, 1000)
	_, err := f.vote(f.admins[0], req, loan.DecisionApproved)
	require.NoError(t, err)
	before, err := f.svc.Get(context.Background(), req.ID)
	require.NoError(t, err)

	_, err = f.vote(f.admins[0], req, loan.DecisionRejected)
	assert.ErrorIs(t, err, domain.ErrAlreadyDecided)
	assert.ErrorIs(t, err, domain.ErrStateConflict)

	after, err := f.svc.Get(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Len(t, f.loans(t), 1)
}

func TestCastVote_Errors(t *testing.T) {
	f := newFixture(t, 1)
	req := f.submit(t, loan.TypeStandard, 1000)

	_, err := f.svc.CastVote(context.Background(), VoteCommand{RequestID: uuid.New(), AdminID: f.admins[0].ID, Decision: loan.DecisionApproved})
	assert.ErrorIs(t, err, domain.ErrRequestNotFound)

	_, err = f.vote(f.applicant, req, loan.DecisionApproved)
	assert.ErrorIs(t, err, domain.ErrVoterNotEligible)

	_, err = f.vote(f.admins[0], req, loan.Decision("abstain"))
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCastVote_AdminAddedAfterSubmissionCannotVote(t *testing.T) {
	f := newFixture(t, 1)
	req := f.submit(t, loan.TypeDharura, 1000)

	members, _ := f.uow.MemberRepository()
	late, _ := member.New("M-LATE", "Late Admin", "", time.Now())
	late.Role = member.RoleAdmin
	require.NoError(t, members.Create(context.Background(), late))

	_, err := f.vote(late, req, loan.DecisionRejected)
	assert.ErrorIs(t, err, domain.ErrVoterNotEligible)

	got, err := f.vote(f.admins[0], req, loan.DecisionApproved)
	require.NoError(t, err)
	assert.Equal(t, loan.StatusApproved, got.Status)
}

func TestCastVote_ConcurrentApprovalsFinalizeOnce(t *testing.T) {
	const admins = 5
	f := newFixture(t, admins)
	f.svc.maxRetries = admins + 1
	req := f.submit(t, loan.TypeStandard, 20000)

	var wg sync.WaitGroup
	errs := make(chan error, admins)
	for _, a := range f.admins {
		wg.Add(1)
		go func(a *member.Member) {
			defer wg.Done()
			_, err := f.vote(a, req, loan.DecisionApproved)
			errs <- err
		}(a)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := f.svc.Get(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, loan.StatusApproved, got.Status)
	for _, a := range f.admins {
		assert.Equal(t, loan.DecisionApproved, got.Approvals[a.ID], "no vote may be clobbered")
	}
	loans := f.loans(t)
	require.Len(t, loans, 1)
	assert.Equal(t, "22000", loans[0].Amount.String())
}

func TestCastVote_ConcurrentApproveAndReject(t *testing.T) {
	f := newFixture(t, 2)
	f.svc.maxRetries = 5
	req := f.submit(t, loan.TypeDharura, 5000)

	var wg sync.WaitGroup
	for i, d := range []loan.Decision{loan.DecisionApproved, loan.DecisionRejected} {
		wg.Add(1)
		go func(a *member.Member, d loan.Decision) {
			defer wg.Done()
			_, _ = f.vote(a, req, d)
		}(f.admins[i], d)
	}
	wg.Wait()

	got, err := f.svc.Get(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, loan.StatusRejected, got.Status)
	assert.Empty(t, f.loans(t))
}

func TestList(t *testing.T) {
	f := newFixture(t, 2)
	f.svc.now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	first := f.submit(t, loan.TypeStandard, 1000)
	f.svc.now = func() time.Time { return time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC) }
	second := f.submit(t, loan.TypeDharura, 2000)

	_, err := f.vote(f.admins[0], first, loan.DecisionApproved)
	require.NoError(t, err)

	ctx := context.Background()
	all, err := f.svc.List(ctx, ListQuery{MemberID: &f.applicant.ID})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID, "newest first")

	pending, err := f.svc.List(ctx, ListQuery{PendingFor: &f.admins[0].ID})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)

	pending, err = f.svc.List(ctx, ListQuery{PendingFor: &f.admins[1].ID, Status: loan.StatusPending})
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestNotificationFailuresAreLogged(t *testing.T) {
	f := newFixture(t, 1)
	var buf bytes.Buffer
	f.svc.logger = slog.New(slog.NewTextHandler(&buf, nil))
	f.notifier.err = errors.New("broker down")

	req := f.submit(t, loan.TypeDharura, 100000)
	assert.Contains(t, buf.String(), "admin notification failed")

	decided, err := f.vote(f.admins[0], req, loan.DecisionApproved)
	require.NoError(t, err)
	assert.Equal(t, loan.StatusApproved, decided.Status)
	assert.Contains(t, buf.String(), "decision notification failed")
	assert.Contains(t, buf.String(), "broker down")
	assert.Len(t, f.loans(t), 1)
}
