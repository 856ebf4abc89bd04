package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	infraeventbus "github.com/kikoba/kikoba/infra/eventbus"
	"github.com/kikoba/kikoba/infra/repository/memory"
	"github.com/kikoba/kikoba/pkg/app"
	"github.com/kikoba/kikoba/pkg/config"
	"github.com/kikoba/kikoba/pkg/domain/ledger"
	"github.com/kikoba/kikoba/pkg/domain/member"
	"github.com/kikoba/kikoba/pkg/repository"
	"github.com/kikoba/kikoba/pkg/service/bulk"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	records [][]string
	err     error
}

func (s staticSource) Fetch(context.Context) (bulk.Batch, error) {
	if s.err != nil {
		return bulk.Batch{}, s.err
	}
	return bulk.FromRecords(s.records), nil
}

func newCLI(t *testing.T, src staticSource) (*cli, *bytes.Buffer, *config.Deps) {
	t.Helper()
	color.NoColor = true
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	deps := &config.Deps{
		Uow:      memory.NewUoW(memory.New()),
		EventBus: infraeventbus.NewWithMemory(logger),
		Logger:   logger,
	}
	var out bytes.Buffer
	return &cli{
		app: app.New(deps),
		out: &out,
		source: func(context.Context, string) (bulk.Source, error) {
			return src, nil
		},
	}, &out, deps
}

func seedMember(t *testing.T, deps *config.Deps, code string) *member.Member {
	t.Helper()
	m, err := member.New(code, "Neema", "", time.Now().UTC())
	require.NoError(t, err)
	repo, err := deps.Uow.MemberRepository()
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), m))
	return m
}

func seedLoan(t *testing.T, deps *config.Deps, m *member.Member, age time.Duration) *ledger.Transaction {
	t.Helper()
	tx, err := ledger.NewLoan(ledger.LoanTerms{
		RequestID:  uuid.New(),
		MemberID:   m.ID,
		MemberName: m.DisplayName,
		Principal:  decimal.NewFromInt(100000),
		Category:   ledger.CategoryDharura,
		ApprovedBy: "seed",
		ApprovedAt: time.Now().UTC().Add(-age),
	})
	require.NoError(t, err)
	repo, err := deps.Uow.TransactionRepository()
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), tx))
	return tx
}

func TestDispatch_Usage(t *testing.T) {
	c, _, _ := newCLI(t, staticSource{})
	for _, args := range [][]string{{"penalties"}, {"bulk"}, {"balances"}, {"deposit", "x"}} {
		assert.ErrorIs(t, c.dispatch(context.Background(), args), errUsage, args)
	}
}

func TestDispatch_PenaltiesRun(t *testing.T) {
	c, out, deps := newCLI(t, staticSource{})
	m := seedMember(t, deps, "M-014")
	loan := seedLoan(t, deps, m, 40*24*time.Hour)

	require.NoError(t, c.dispatch(context.Background(), []string{"penalties", "run"}))
	assert.Contains(t, out.String(), "applied:    1")
	assert.Contains(t, out.String(), "penalized "+loan.ID.String())
}

func TestDispatch_Balances(t *testing.T) {
	c, out, deps := newCLI(t, staticSource{})
	m := seedMember(t, deps, "M-014")
	seedLoan(t, deps, m, time.Hour)

	require.NoError(t, c.dispatch(context.Background(), []string{"balances", "m-014"}))
	assert.Contains(t, out.String(), "M-014 Neema")
	assert.Contains(t, out.String(), "Dharura   borrowed 100000  repaid 0  outstanding 100000")
}

func TestDispatch_BulkValidateDoesNotWrite(t *testing.T) {
	src := staticSource{records: [][]string{
		{"date", "member_id", "hisa", "jamii", "standard_repay", "dharura_repay"},
		{"2025-03-01", "M-014", "5000", "0", "0", "0"},
		{"2025-03-01", "M-404", "5000", "0", "0", "0"},
	}}
	c, out, deps := newCLI(t, src)
	seedMember(t, deps, "M-014")

	require.NoError(t, c.dispatch(context.Background(), []string{"bulk", "validate", "Import!A1:F"}))
	assert.Contains(t, out.String(), "2 rows: 1 valid, 1 invalid, 0 duplicates")
	assert.Contains(t, out.String(), `invalid line 3 M-404: unknown member "M-404"`)

	repo, err := deps.Uow.TransactionRepository()
	require.NoError(t, err)
	txs, err := repo.List(context.Background(), repository.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestDispatch_BulkCommit(t *testing.T) {
	src := staticSource{records: [][]string{
		{"date", "member_id", "hisa", "jamii", "standard_repay", "dharura_repay"},
		{"2025-03-01", "M-014", "5000", "1000", "0", "0"},
	}}
	c, out, deps := newCLI(t, src)
	seedMember(t, deps, "M-014")

	require.NoError(t, c.dispatch(context.Background(), []string{"bulk", "commit", "", "A-001"}))
	assert.Contains(t, out.String(), "Committed 1 rows")

	repo, err := deps.Uow.TransactionRepository()
	require.NoError(t, err)
	txs, err := repo.List(context.Background(), repository.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "A-001", txs[0].CreatedBy)
}

func TestDispatch_BulkSourceError(t *testing.T) {
	c, _, _ := newCLI(t, staticSource{err: errors.New("quota exceeded")})
	err := c.dispatch(context.Background(), []string{"bulk", "validate"})
	assert.ErrorContains(t, err, "quota exceeded")
}
