package app_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	infra_eventbus "github.com/kikoba/kikoba/infra/eventbus"
	"github.com/kikoba/kikoba/infra/repository/memory"
	"github.com/kikoba/kikoba/pkg/app"
	"github.com/kikoba/kikoba/pkg/config"
	"github.com/kikoba/kikoba/pkg/domain/ledger"
	"github.com/kikoba/kikoba/pkg/service/member"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ServicesShareTheStore(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	deps := &config.Deps{
		Uow:      memory.NewUoW(memory.New()),
		EventBus: infra_eventbus.NewWithMemory(logger),
		Logger:   logger,
	}
	a := app.New(deps)
	require.NotNil(t, a.LedgerService)
	require.NotNil(t, a.LoanService)
	require.NotNil(t, a.PenaltyService)
	require.NotNil(t, a.BulkService)
	require.NotNil(t, a.MemberService)

	code, err := a.MemberService.IssueCode(context.Background(), member.IssueCodeCommand{Code: "JIUNGE", MaxRedemptions: 1})
	require.NoError(t, err)
	m, err := a.MemberService.Join(context.Background(), member.JoinCommand{
		Code: code.Code, MemberCode: "M-100", DisplayName: "Zawadi",
	})
	require.NoError(t, err)

	balances, err := a.LedgerService.Balances(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, balances.MemberID)
	assert.True(t, balances.Loans[ledger.CategoryDharura].Outstanding.IsZero())
}
