package app

import (
	"github.com/kikoba/kikoba/pkg/config"
	"github.com/kikoba/kikoba/pkg/service/bulk"
	"github.com/kikoba/kikoba/pkg/service/ledger"
	"github.com/kikoba/kikoba/pkg/service/loan"
	"github.com/kikoba/kikoba/pkg/service/member"
	"github.com/kikoba/kikoba/pkg/service/penalty"
)

// App bundles the engine's services, all built from the same dependencies so they
// share one store, change bus and notifier.
type App struct {
	Deps           *config.Deps
	Config         *config.App
	LedgerService  *ledger.Service
	LoanService    *loan.Service
	PenaltyService *penalty.Service
	BulkService    *bulk.Service
	MemberService  *member.Service
}

func New(deps *config.Deps) *App {
	return &App{
		Deps:           deps,
		Config:         deps.Config,
		LedgerService:  ledger.NewService(*deps),
		LoanService:    loan.NewService(*deps),
		PenaltyService: penalty.NewService(*deps),
		BulkService:    bulk.NewService(*deps),
		MemberService:  member.NewService(*deps),
	}
}
