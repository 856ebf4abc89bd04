package loan

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/kikoba/kikoba/pkg/config"
	"github.com/kikoba/kikoba/pkg/domain"
	"github.com/kikoba/kikoba/pkg/domain/loan"
	"github.com/kikoba/kikoba/pkg/dto"
	"github.com/kikoba/kikoba/pkg/middleware"
	loansvc "github.com/kikoba/kikoba/pkg/service/loan"
	"github.com/kikoba/kikoba/webapi/common"
)

// Routes registers the loan governance endpoints. All of them need a verified token.
//
// Routes:
//   - POST /loans            : Submit a loan request as the calling member.
//   - GET  /loans            : List loan requests (status, member_id, pending_for filters).
//   - GET  /loans/:id        : Get one loan request.
//   - POST /loans/:id/votes  : Cast the calling admin's vote.
func Routes(app *fiber.App, loanSvc *loansvc.Service, cfg *config.App) {
	protected := middleware.JwtProtected(cfg.Auth.Jwt)
	app.Post("/loans", protected, Submit(loanSvc))
	app.Get("/loans", protected, List(loanSvc))
	app.Get("/loans/:id", protected, Get(loanSvc))
	app.Post("/loans/:id/votes", protected, Vote(loanSvc))
}

// Submit returns a Fiber handler that submits a loan request for the caller.
// @Summary Submit a loan request
// @Description Creates a Pending request whose approvers are the admins active right now. Every one of them must approve.
// @Tags loans
// @Accept json
// @Produce json
// @Param request body SubmitLoanRequest true "Loan request"
// @Success 201 {object} common.Response "Loan request submitted"
// @Failure 400 {object} common.ProblemDetails "Invalid request or no approvers"
// @Failure 401 {object} common.ProblemDetails "Unauthorized"
// @Failure 404 {object} common.ProblemDetails "Member not found"
// @Router /loans [post]
// @Security Bearer
func Submit(loanSvc *loansvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		callerID, err := middleware.CallerID(c)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Unauthorized", err)
		}
		input, err := common.BindAndValidate[SubmitLoanRequest](c)
		if input == nil {
			return err // error response already written
		}
		req, err := loanSvc.Submit(c.UserContext(), loansvc.SubmitCommand{
			MemberID:    callerID,
			Amount:      input.Amount,
			Type:        loan.Type(input.Type),
			Description: input.Description,
		})
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to submit loan request", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusCreated, "Loan request submitted", dto.FromLoanRequest(req))
	}
}

// Get returns a Fiber handler that reads one loan request.
// @Summary Get a loan request
// @Tags loans
// @Produce json
// @Param id path string true "Loan request ID"
// @Success 200 {object} common.Response "Loan request"
// @Failure 400 {object} common.ProblemDetails "Invalid ID"
// @Failure 404 {object} common.ProblemDetails "Loan request not found"
// @Router /loans/{id} [get]
// @Security Bearer
func Get(loanSvc *loansvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := common.ParseID(c, "id")
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid loan request ID", err)
		}
		req, err := loanSvc.Get(c.UserContext(), id)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to get loan request", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Loan request fetched", dto.FromLoanRequest(req))
	}
}

// List returns a Fiber handler that lists loan requests newest first.
// pending_for=me lists the requests waiting for the caller's vote.
// @Summary List loan requests
// @Tags loans
// @Produce json
// @Param status query string false "Pending, Approved or Rejected"
// @Param member_id query string false "Applicant member ID"
// @Param pending_for query string false "Admin ID or 'me'"
// @Param limit query int false "Maximum number of results"
// @Success 200 {object} common.Response "Loan requests"
// @Failure 400 {object} common.ProblemDetails "Invalid filter"
// @Router /loans [get]
// @Security Bearer
func List(loanSvc *loansvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q, err := listQuery(c)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid filter", err)
		}
		reqs, err := loanSvc.List(c.UserContext(), q)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to list loan requests", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Loan requests fetched", dto.FromLoanRequests(reqs))
	}
}

func listQuery(c *fiber.Ctx) (loansvc.ListQuery, error) {
	var q loansvc.ListQuery
	if s := c.Query("status"); s != "" {
		st := loan.Status(s)
		if st != loan.StatusPending && !st.Terminal() {
			return q, domain.Validation("unknown status %q", s)
		}
		q.Status = st
	}
	if s := c.Query("member_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			return q, domain.Validation("member_id must be a valid UUID")
		}
		q.MemberID = &id
	}
	if s := c.Query("pending_for"); s != "" {
		var id uuid.UUID
		if s == "me" {
			callerID, err := middleware.CallerID(c)
			if err != nil {
				return q, err
			}
			id = callerID
		} else {
			parsed, err := uuid.Parse(s)
			if err != nil {
				return q, domain.Validation("pending_for must be a valid UUID or 'me'")
			}
			id = parsed
		}
		q.PendingFor = &id
	}
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return q, domain.Validation("limit must be a non-negative integer")
		}
		q.Limit = n
	}
	return q, nil
}

// Vote returns a Fiber handler that records the calling admin's decision. Eligibility
// is decided by the request's approver snapshot, not the caller's current role.
// @Summary Vote on a loan request
// @Description Approves or rejects. The first rejection is final; unanimous approval appends the loan to the ledger.
// @Tags loans
// @Accept json
// @Produce json
// @Param id path string true "Loan request ID"
// @Param request body VoteRequest true "Vote"
// @Success 200 {object} common.Response "Vote recorded"
// @Failure 400 {object} common.ProblemDetails "Invalid request"
// @Failure 403 {object} common.ProblemDetails "Caller is not an approver"
// @Failure 404 {object} common.ProblemDetails "Loan request not found"
// @Failure 409 {object} common.ProblemDetails "Already decided or concurrent modification"
// @Router /loans/{id}/votes [post]
// @Security Bearer
func Vote(loanSvc *loansvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := common.ParseID(c, "id")
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid loan request ID", err)
		}
		callerID, err := middleware.CallerID(c)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Unauthorized", err)
		}
		input, err := common.BindAndValidate[VoteRequest](c)
		if input == nil {
			return err // error response already written
		}
		req, err := loanSvc.CastVote(c.UserContext(), loansvc.VoteCommand{
			RequestID: id,
			AdminID:   callerID,
			Decision:  loan.Decision(input.Decision),
			Reason:    input.Reason,
		})
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to record vote", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Vote recorded", dto.FromLoanRequest(req))
	}
}
