package penalty

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kikoba/kikoba/pkg/config"
	"github.com/kikoba/kikoba/pkg/dto"
	"github.com/kikoba/kikoba/pkg/middleware"
	membersvc "github.com/kikoba/kikoba/pkg/service/member"
	penaltysvc "github.com/kikoba/kikoba/pkg/service/penalty"
	"github.com/kikoba/kikoba/webapi/common"
)

// Routes registers the penalty accrual endpoints.
//
// Routes:
//   - POST /penalties/run                 : Run accrual now (admin).
//   - GET  /penalties/overdue             : Loans a run would penalize now (admin).
//   - GET  /transactions/:id/penalties    : Audit trail of one loan.
func Routes(app *fiber.App, penaltySvc *penaltysvc.Service, memberSvc *membersvc.Service, cfg *config.App) {
	protected := middleware.JwtProtected(cfg.Auth.Jwt)
	app.Post("/penalties/run", protected, Run(penaltySvc, memberSvc))
	app.Get("/penalties/overdue", protected, Overdue(penaltySvc, memberSvc))
	app.Get("/transactions/:id/penalties", protected, History(penaltySvc))
}

// Run returns a Fiber handler that triggers an accrual run. Concurrent triggers
// share one run.
// @Summary Run penalty accrual
// @Description Applies the flat penalty once to every completed Dharura loan older than the threshold.
// @Tags penalties
// @Produce json
// @Success 200 {object} common.Response "Run result"
// @Failure 403 {object} common.ProblemDetails "Admin role required"
// @Failure 502 {object} common.ProblemDetails "Store unavailable"
// @Router /penalties/run [post]
// @Security Bearer
func Run(penaltySvc *penaltysvc.Service, memberSvc *membersvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, err := common.RequireAdmin(c, memberSvc); err != nil {
			return common.ProblemDetailsJSON(c, "Not allowed to run penalties", err)
		}
		res, err := penaltySvc.Run(c.UserContext(), time.Now().UTC())
		if err != nil {
			return common.ProblemDetailsJSON(c, "Penalty run failed", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Penalty run finished", res)
	}
}

// Overdue returns a Fiber handler listing current penalty candidates without
// changing anything.
// @Summary List overdue Dharura loans
// @Tags penalties
// @Produce json
// @Success 200 {object} common.Response "Candidates"
// @Failure 403 {object} common.ProblemDetails "Admin role required"
// @Router /penalties/overdue [get]
// @Security Bearer
func Overdue(penaltySvc *penaltysvc.Service, memberSvc *membersvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, err := common.RequireAdmin(c, memberSvc); err != nil {
			return common.ProblemDetailsJSON(c, "Not allowed to list overdue loans", err)
		}
		txs, err := penaltySvc.Overdue(c.UserContext(), time.Now().UTC())
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to list overdue loans", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Overdue loans fetched", dto.FromTransactions(txs))
	}
}

// History returns a Fiber handler with the penalty audit records of a loan.
// @Summary Penalty history of a loan
// @Tags penalties
// @Produce json
// @Param id path string true "Transaction ID"
// @Success 200 {object} common.Response "Audit records"
// @Failure 400 {object} common.ProblemDetails "Invalid ID"
// @Router /transactions/{id}/penalties [get]
// @Security Bearer
func History(penaltySvc *penaltysvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := common.ParseID(c, "id")
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid transaction ID", err)
		}
		audits, err := penaltySvc.History(c.UserContext(), id)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to get penalty history", err)
		}
		out := make([]dto.PenaltyAuditRead, 0, len(audits))
		for _, a := range audits {
			out = append(out, dto.FromPenaltyAudit(a))
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Penalty history fetched", out)
	}
}
