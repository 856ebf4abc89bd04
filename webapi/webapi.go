// Package webapi provides the HTTP surface of the kikoba engine.
// It is organized into sub-packages per area:
// - loan: loan requests and votes
// - penalty: penalty runs and audit history
// - bulk: tabular imports
// - member: joining, balances and the ledger history
// - stream: server-sent change events
package webapi

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	_ "github.com/kikoba/kikoba/docs"
	"github.com/kikoba/kikoba/pkg/app"
	bulkweb "github.com/kikoba/kikoba/webapi/bulk"
	"github.com/kikoba/kikoba/webapi/common"
	loanweb "github.com/kikoba/kikoba/webapi/loan"
	memberweb "github.com/kikoba/kikoba/webapi/member"
	penaltyweb "github.com/kikoba/kikoba/webapi/penalty"
	streamweb "github.com/kikoba/kikoba/webapi/stream"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupApp Initialize Fiber with custom configuration
func SetupApp(app *app.App) *fiber.App {
	cfg := app.Config

	fiberApp := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return common.ProblemDetailsJSON(c, "Internal Server Error", err)
		},
	})
	fiberApp.Get("/swagger/*", swagger.New(swagger.Config{
		TryItOutEnabled:      true,
		PersistAuthorization: true,
	}))

	if cfg.RateLimit != nil && cfg.RateLimit.MaxRequests > 0 {
		fiberApp.Use(limiter.New(limiter.Config{
			Max:        cfg.RateLimit.MaxRequests,
			Expiration: cfg.RateLimit.Window,
			Next: func(c *fiber.Ctx) bool {
				// Long-lived streams and scrapes are not rate limited.
				return strings.HasPrefix(c.Path(), "/stream/") || c.Path() == "/metrics"
			},
			KeyGenerator: clientKey,
			LimitReached: func(c *fiber.Ctx) error {
				return common.ProblemDetailsJSON(
					c,
					"Too Many Requests",
					errors.New("rate limit exceeded"),
					fiber.StatusTooManyRequests,
				)
			},
		}))
	}
	fiberApp.Use(recover.New())
	fiberApp.Use(logger.New())

	// Health check endpoint
	fiberApp.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("kikoba API is running")
	})
	fiberApp.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	loanweb.Routes(fiberApp, app.LoanService, cfg)
	penaltyweb.Routes(fiberApp, app.PenaltyService, app.MemberService, cfg)
	bulkweb.Routes(fiberApp, app.BulkService, app.MemberService, cfg)
	memberweb.Routes(fiberApp, app.MemberService, app.LedgerService, cfg)
	streamweb.Routes(fiberApp, app.Deps.EventBus, app.MemberService, cfg, app.Deps.Logger)
	return fiberApp
}

// clientKey uses X-Forwarded-For when behind a proxy, then X-Real-IP, then the
// direct IP.
func clientKey(c *fiber.Ctx) string {
	if forwardedFor := c.Get("X-Forwarded-For"); forwardedFor != "" {
		if i := strings.Index(forwardedFor, ","); i != -1 {
			return strings.TrimSpace(forwardedFor[:i])
		}
		return strings.TrimSpace(forwardedFor)
	}
	if realIP := c.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return c.IP()
}
