//go:build integration

package infra_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kikoba/kikoba/infra"
	infraeventbus "github.com/kikoba/kikoba/infra/eventbus"
	infrarepo "github.com/kikoba/kikoba/infra/repository"
	"github.com/kikoba/kikoba/pkg/app"
	"github.com/kikoba/kikoba/pkg/config"
	"github.com/kikoba/kikoba/pkg/domain"
	"github.com/kikoba/kikoba/pkg/domain/ledger"
	"github.com/kikoba/kikoba/pkg/domain/loan"
	"github.com/kikoba/kikoba/pkg/domain/member"
	"github.com/kikoba/kikoba/pkg/repository"
	"github.com/kikoba/kikoba/pkg/service/bulk"
	loansvc "github.com/kikoba/kikoba/pkg/service/loan"
	membersvc "github.com/kikoba/kikoba/pkg/service/member"
	"github.com/kikoba/kikoba/webapi"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
)

// PostgresSuite runs the services against a real Postgres started with Testcontainers.
type PostgresSuite struct {
	suite.Suite
	pgContainer *tcpostgres.PostgresContainer
	db          *gorm.DB
	app         *app.App
}

func TestPostgresSuite(t *testing.T) {
	suite.Run(t, new(PostgresSuite))
}

func (s *PostgresSuite) SetupSuite() {
	ctx := context.Background()
	pg, err := tcpostgres.Run(
		ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("kikoba"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(60*time.Second),
		),
	)
	s.Require().NoError(err)
	s.pgContainer = pg

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)
	s.db, err = infra.NewDBConnection(&config.DB{Url: dsn}, "test")
	s.Require().NoError(err)
	s.Require().NoError(infra.RunMigrations(s.db))
	// A second run is a no-op.
	s.Require().NoError(infra.RunMigrations(s.db))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.app = app.New(&config.Deps{
		Uow:      infrarepo.NewUoW(s.db),
		EventBus: infraeventbus.NewWithMemory(logger),
		Logger:   logger,
		Config: &config.App{
			Auth:      &config.Auth{Jwt: &config.Jwt{Secret: "integration"}},
			RateLimit: &config.RateLimit{},
		},
	})
}

func (s *PostgresSuite) TearDownSuite() {
	if s.pgContainer != nil {
		_ = s.pgContainer.Terminate(context.Background())
	}
}

func (s *PostgresSuite) SetupTest() {
	s.Require().NoError(s.db.Exec(
		"TRUNCATE penalty_audits, transactions, loan_requests, members, group_codes",
	).Error)
}

func (s *PostgresSuite) seedMember(code, name string, role member.Role) *member.Member {
	m, err := member.New(code, name, "", time.Now().UTC())
	s.Require().NoError(err)
	m.Role = role
	repo, err := s.app.Deps.Uow.MemberRepository()
	s.Require().NoError(err)
	s.Require().NoError(repo.Create(context.Background(), m))
	return m
}

func (s *PostgresSuite) TestLoanApprovalToPenalty() {
	ctx := context.Background()
	amina := s.seedMember("A-001", "Amina", member.RoleAdmin)
	baraka := s.seedMember("A-002", "Baraka", member.RoleAdmin)
	neema := s.seedMember("M-014", "Neema", member.RoleMember)

	req, err := s.app.LoanService.Submit(ctx, loansvc.SubmitCommand{
		MemberID:    neema.ID,
		Amount:      decimal.NewFromInt(100000),
		Type:        loan.TypeDharura,
		Description: "hospital bill",
	})
	s.Require().NoError(err)

	pending, err := s.app.LoanService.List(ctx, loansvc.ListQuery{PendingFor: &baraka.ID})
	s.Require().NoError(err)
	s.Require().Len(pending, 1)

	for _, admin := range []*member.Member{amina, baraka} {
		req, err = s.app.LoanService.CastVote(ctx, loansvc.VoteCommand{
			RequestID: req.ID, AdminID: admin.ID, Decision: loan.DecisionApproved,
		})
		s.Require().NoError(err)
	}
	s.Equal(loan.StatusApproved, req.Status)
	s.Require().NotNil(req.TransactionID)

	_, err = s.app.LoanService.CastVote(ctx, loansvc.VoteCommand{
		RequestID: req.ID, AdminID: amina.ID, Decision: loan.DecisionRejected,
	})
	s.ErrorIs(err, domain.ErrAlreadyDecided)

	// Thirty one days later, overlapping runs penalize the loan once.
	later := time.Now().UTC().AddDate(0, 0, 31)
	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.app.PenaltyService.Run(ctx, later)
			s.NoError(err)
		}()
	}
	wg.Wait()
	res, err := s.app.PenaltyService.Run(ctx, later)
	s.Require().NoError(err)
	s.Zero(res.Applied)

	balances, err := s.app.LedgerService.Balances(ctx, neema.ID)
	s.Require().NoError(err)
	s.Equal("160000", balances.Loans[ledger.CategoryDharura].Outstanding.String())

	audits, err := s.app.PenaltyService.History(ctx, *req.TransactionID)
	s.Require().NoError(err)
	s.Len(audits, 1)
}

func (s *PostgresSuite) TestBulkCommitSameDayBatches() {
	ctx := context.Background()
	s.seedMember("M-014", "Neema", member.RoleMember)
	batch := bulk.FromRecords([][]string{
		{"Date", "Member ID", "Hisa", "Jamii", "Standard Repay", "Dharura Repay"},
		{"2025-03-01", "M-014", "5000", "1000", "0", "0"},
		{"2025-03-01", "M-014", "0", "0", "2000", "0"},
	})

	report, res, err := s.app.BulkService.Import(ctx, batch, "A-001")
	s.Require().NoError(err)
	s.Len(report.Invalid, 1)
	s.Require().Len(res.Committed, 1)
	s.Len(res.Committed[0].TransactionIDs, 2)

	later := bulk.FromRecords([][]string{
		{"Date", "Member ID", "Hisa", "Jamii", "Standard Repay", "Dharura Repay"},
		{"2025-03-01", "M-014", "0", "2500", "0", "0"},
	})
	report, res, err = s.app.BulkService.Import(ctx, later, "A-001")
	s.Require().NoError(err)
	s.Empty(report.Duplicates)
	s.Require().Len(res.Committed, 1)
	s.Equal("BULK-2025-03-01-M-014", res.Committed[0].Reference)
}

func (s *PostgresSuite) TestJoinExhaustsCode() {
	ctx := context.Background()
	_, err := s.app.MemberService.IssueCode(ctx, membersvc.IssueCodeCommand{Code: "JIUNGE", MaxRedemptions: 1})
	s.Require().NoError(err)

	_, err = s.app.MemberService.Join(ctx, membersvc.JoinCommand{Code: "jiunge", MemberCode: "M-020", DisplayName: "Zawadi"})
	s.Require().NoError(err)
	_, err = s.app.MemberService.Join(ctx, membersvc.JoinCommand{Code: "jiunge", MemberCode: "M-021", DisplayName: "Juma"})
	s.ErrorIs(err, member.ErrCodeExhausted)

	m, err := s.app.MemberService.GetByCode(ctx, "m-020")
	s.Require().NoError(err)
	s.Equal("Zawadi", m.DisplayName)
}

func (s *PostgresSuite) TestTransactionVersionConflict() {
	ctx := context.Background()
	neema := s.seedMember("M-014", "Neema", member.RoleMember)
	tx, err := ledger.NewLoan(ledger.LoanTerms{
		RequestID: uuid.New(), MemberID: neema.ID, MemberName: neema.DisplayName,
		Principal: decimal.NewFromInt(1000), Category: ledger.CategoryDharura,
		ApprovedBy: "A-001", ApprovedAt: time.Now().UTC(),
	})
	s.Require().NoError(err)
	repo, err := s.app.Deps.Uow.TransactionRepository()
	s.Require().NoError(err)
	s.Require().NoError(repo.Create(ctx, tx))

	stale := tx.Clone()
	s.Require().NoError(tx.ApplyPenalty(decimal.NewFromInt(60000), time.Now().UTC()))
	s.Require().NoError(repo.Update(ctx, tx, 1))
	s.Require().NoError(stale.ApplyPenalty(decimal.NewFromInt(60000), time.Now().UTC()))
	s.ErrorIs(repo.Update(ctx, stale, 1), domain.ErrConcurrentModification)

	txs, err := repo.List(ctx, repository.TransactionFilter{MemberID: &neema.ID})
	s.Require().NoError(err)
	s.Require().Len(txs, 1)
	s.Equal(int64(2), txs[0].Version)
}

func (s *PostgresSuite) TestHTTPRootRoute() {
	fiberApp := webapi.SetupApp(s.app)
	req, err := http.NewRequest(http.MethodGet, "/", nil)
	s.Require().NoError(err)
	resp, err := fiberApp.Test(req)
	s.Require().NoError(err)
	defer resp.Body.Close() //nolint: errcheck
	s.Equal(http.StatusOK, resp.StatusCode)
}
