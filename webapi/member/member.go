package member

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/kikoba/kikoba/pkg/config"
	"github.com/kikoba/kikoba/pkg/domain"
	"github.com/kikoba/kikoba/pkg/domain/ledger"
	"github.com/kikoba/kikoba/pkg/dto"
	"github.com/kikoba/kikoba/pkg/middleware"
	"github.com/kikoba/kikoba/pkg/repository"
	ledgersvc "github.com/kikoba/kikoba/pkg/service/ledger"
	membersvc "github.com/kikoba/kikoba/pkg/service/member"
	"github.com/kikoba/kikoba/webapi/common"
)

// Routes registers the member and ledger endpoints.
//
// Routes:
//   - POST /members/join                 : Join with a group code (public).
//   - GET  /members/me                   : The calling member.
//   - GET  /members/:id/balances         : Derived balances (self or admin).
//   - GET  /members/:id/transactions     : Ledger history (self or admin).
//   - POST /members/:id/transactions     : Record a manual entry (admin).
//   - POST /group-codes                  : Issue a group code (admin).
func Routes(app *fiber.App, memberSvc *membersvc.Service, ledgerSvc *ledgersvc.Service, cfg *config.App) {
	protected := middleware.JwtProtected(cfg.Auth.Jwt)
	app.Post("/members/join", Join(memberSvc))
	app.Get("/members/me", protected, Me(memberSvc))
	app.Get("/members/:id/balances", protected, Balances(memberSvc, ledgerSvc))
	app.Get("/members/:id/transactions", protected, Transactions(memberSvc, ledgerSvc))
	app.Post("/members/:id/transactions", protected, Record(memberSvc, ledgerSvc))
	app.Post("/group-codes", protected, IssueCode(memberSvc))
}

// Join returns a Fiber handler that admits a new member with a group code.
// @Summary Join the group
// @Description Redeems a group code and creates an active member.
// @Tags members
// @Accept json
// @Produce json
// @Param request body JoinRequest true "Join request"
// @Success 201 {object} common.Response "Member created"
// @Failure 400 {object} common.ProblemDetails "Invalid or expired code"
// @Failure 404 {object} common.ProblemDetails "Unknown code"
// @Failure 409 {object} common.ProblemDetails "Code exhausted or member code taken"
// @Router /members/join [post]
func Join(memberSvc *membersvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		input, err := common.BindAndValidate[JoinRequest](c)
		if input == nil {
			return err // error response already written
		}
		m, err := memberSvc.Join(c.UserContext(), membersvc.JoinCommand{
			Code:        input.Code,
			MemberCode:  input.MemberCode,
			DisplayName: input.DisplayName,
			Email:       input.Email,
		})
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to join", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusCreated, "Member created", dto.FromMember(m))
	}
}

// Me returns a Fiber handler with the calling member.
// @Summary Get the calling member
// @Tags members
// @Produce json
// @Success 200 {object} common.Response "Member"
// @Failure 404 {object} common.ProblemDetails "Member not found"
// @Router /members/me [get]
// @Security Bearer
func Me(memberSvc *membersvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		m, err := common.Caller(c, memberSvc)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to get member", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Member fetched", dto.FromMember(m))
	}
}

// Balances returns a Fiber handler with a member's derived balances.
// @Summary Get member balances
// @Description Loan balances per category plus contribution totals, derived from the full history.
// @Tags members
// @Produce json
// @Param id path string true "Member ID"
// @Success 200 {object} common.Response "Balances"
// @Failure 403 {object} common.ProblemDetails "Not the member or an admin"
// @Failure 404 {object} common.ProblemDetails "Member not found"
// @Router /members/{id}/balances [get]
// @Security Bearer
func Balances(memberSvc *membersvc.Service, ledgerSvc *ledgersvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := selfOrAdmin(c, memberSvc)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to get balances", err)
		}
		balances, err := ledgerSvc.Balances(c.UserContext(), id)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to get balances", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Balances fetched", balances)
	}
}

// Transactions returns a Fiber handler with a member's ledger history in date order.
// @Summary List member transactions
// @Tags members
// @Produce json
// @Param id path string true "Member ID"
// @Param type query string false "Contribution, Loan or LoanRepayment"
// @Param category query string false "Hisa, Jamii, Standard or Dharura"
// @Param limit query int false "Maximum number of results"
// @Success 200 {object} common.Response "Transactions"
// @Failure 403 {object} common.ProblemDetails "Not the member or an admin"
// @Router /members/{id}/transactions [get]
// @Security Bearer
func Transactions(memberSvc *membersvc.Service, ledgerSvc *ledgersvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := selfOrAdmin(c, memberSvc)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to list transactions", err)
		}
		f := repository.TransactionFilter{
			MemberID: &id,
			Type:     ledger.Type(c.Query("type")),
			Category: ledger.Category(c.Query("category")),
		}
		if s := c.Query("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				return common.ProblemDetailsJSON(c, "Invalid filter", domain.Validation("limit must be a non-negative integer"))
			}
			f.Limit = n
		}
		txs, err := ledgerSvc.Transactions(c.UserContext(), f)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to list transactions", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Transactions fetched", dto.FromTransactions(txs))
	}
}

// Record returns a Fiber handler that appends a manual contribution or repayment.
// @Summary Record a manual entry
// @Tags members
// @Accept json
// @Produce json
// @Param id path string true "Member ID"
// @Param request body RecordRequest true "Entry"
// @Success 201 {object} common.Response "Transaction recorded"
// @Failure 400 {object} common.ProblemDetails "Invalid entry or no active balance"
// @Failure 403 {object} common.ProblemDetails "Admin role required"
// @Router /members/{id}/transactions [post]
// @Security Bearer
func Record(memberSvc *membersvc.Service, ledgerSvc *ledgersvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		admin, err := common.RequireAdmin(c, memberSvc)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Not allowed to record entries", err)
		}
		id, err := common.ParseID(c, "id")
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid member ID", err)
		}
		input, err := common.BindAndValidate[RecordRequest](c)
		if input == nil {
			return err // error response already written
		}
		cmd := ledgersvc.RecordCommand{
			MemberID:  id,
			Type:      ledger.Type(input.Type),
			Category:  ledger.Category(input.Category),
			Amount:    input.Amount,
			CreatedBy: admin.Code,
			Reference: input.Reference,
		}
		if input.Date != nil {
			cmd.Date = input.Date.UTC()
		}
		tx, err := ledgerSvc.Record(c.UserContext(), cmd)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to record entry", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusCreated, "Transaction recorded", dto.FromTransaction(tx))
	}
}

// IssueCode returns a Fiber handler that issues a group code.
// @Summary Issue a group code
// @Tags members
// @Accept json
// @Produce json
// @Param request body IssueCodeRequest true "Group code"
// @Success 201 {object} common.Response "Code issued"
// @Failure 403 {object} common.ProblemDetails "Admin role required"
// @Router /group-codes [post]
// @Security Bearer
func IssueCode(memberSvc *membersvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, err := common.RequireAdmin(c, memberSvc); err != nil {
			return common.ProblemDetailsJSON(c, "Not allowed to issue codes", err)
		}
		input, err := common.BindAndValidate[IssueCodeRequest](c)
		if input == nil {
			return err // error response already written
		}
		g, err := memberSvc.IssueCode(c.UserContext(), membersvc.IssueCodeCommand{
			Code:           input.Code,
			MaxRedemptions: input.MaxRedemptions,
			ExpiresAt:      input.ExpiresAt,
		})
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to issue code", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusCreated, "Group code issued", fiber.Map{
			"id":              g.ID,
			"code":            g.Code,
			"max_redemptions": g.MaxRedemptions,
			"expires_at":      g.ExpiresAt,
		})
	}
}

// selfOrAdmin returns the :id member if it is the caller, or if the caller is an
// active admin.
func selfOrAdmin(c *fiber.Ctx, memberSvc *membersvc.Service) (uuid.UUID, error) {
	id, err := common.ParseID(c, "id")
	if err != nil {
		return uuid.Nil, err
	}
	callerID, err := middleware.CallerID(c)
	if err != nil {
		return uuid.Nil, err
	}
	if callerID == id {
		return id, nil
	}
	if _, err := common.RequireAdmin(c, memberSvc); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}
