package bulk

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/kikoba/kikoba/pkg/config"
	"github.com/kikoba/kikoba/pkg/domain"
	"github.com/kikoba/kikoba/pkg/middleware"
	bulksvc "github.com/kikoba/kikoba/pkg/service/bulk"
	membersvc "github.com/kikoba/kikoba/pkg/service/member"
	"github.com/kikoba/kikoba/webapi/common"
)

// Routes registers the bulk import endpoints. Both are admin only.
//
// Routes:
//   - POST /bulk/validate : Dry run, returns the validation report.
//   - POST /bulk/commit   : Validates and commits the valid rows.
func Routes(app *fiber.App, bulkSvc *bulksvc.Service, memberSvc *membersvc.Service, cfg *config.App) {
	protected := middleware.JwtProtected(cfg.Auth.Jwt)
	app.Post("/bulk/validate", protected, Validate(bulkSvc, memberSvc))
	app.Post("/bulk/commit", protected, Commit(bulkSvc, memberSvc))
}

// Validate returns a Fiber handler that checks an import without writing anything.
// @Summary Validate a bulk import
// @Description Checks every row against the member directory and the live balances. Nothing is written.
// @Tags bulk
// @Accept json
// @Produce json
// @Param request body ImportRequest true "Header row followed by data rows"
// @Success 200 {object} common.Response "Validation report"
// @Failure 400 {object} common.ProblemDetails "Missing columns or no valid rows"
// @Failure 403 {object} common.ProblemDetails "Admin role required"
// @Router /bulk/validate [post]
// @Security Bearer
func Validate(bulkSvc *bulksvc.Service, memberSvc *membersvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, err := common.RequireAdmin(c, memberSvc); err != nil {
			return common.ProblemDetailsJSON(c, "Not allowed to import", err)
		}
		input, err := common.BindAndValidate[ImportRequest](c)
		if input == nil {
			return err // error response already written
		}
		report, err := bulkSvc.Validate(c.UserContext(), bulksvc.FromRecords(input.Records))
		if err != nil {
			return reportProblem(c, "Import is not valid", report, err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Import validated", report)
	}
}

// Commit returns a Fiber handler that validates an import and commits its valid rows.
// Rows fail independently; failures are listed in the response.
// @Summary Commit a bulk import
// @Tags bulk
// @Accept json
// @Produce json
// @Param request body ImportRequest true "Header row followed by data rows"
// @Success 200 {object} common.Response "Report and commit result"
// @Failure 400 {object} common.ProblemDetails "Missing columns or no valid rows"
// @Failure 403 {object} common.ProblemDetails "Admin role required"
// @Router /bulk/commit [post]
// @Security Bearer
func Commit(bulkSvc *bulksvc.Service, memberSvc *membersvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		admin, err := common.RequireAdmin(c, memberSvc)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Not allowed to import", err)
		}
		input, err := common.BindAndValidate[ImportRequest](c)
		if input == nil {
			return err // error response already written
		}
		report, res, err := bulkSvc.Import(c.UserContext(), bulksvc.FromRecords(input.Records), admin.Code)
		if err != nil {
			return reportProblem(c, "Import failed", report, err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Import committed", ImportResponse{Report: report, Commit: res})
	}
}

// reportProblem attaches the report to validation failures so the caller can see
// which rows were rejected.
func reportProblem(c *fiber.Ctx, title string, report *bulksvc.Report, err error) error {
	if report != nil && errors.Is(err, domain.ErrValidation) {
		return common.ProblemDetailsJSON(c, title, err, report)
	}
	return common.ProblemDetailsJSON(c, title, err)
}
