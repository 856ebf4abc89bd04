// Package stream serves change events from the change bus as server-sent events.
package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kikoba/kikoba/pkg/config"
	"github.com/kikoba/kikoba/pkg/domain"
	"github.com/kikoba/kikoba/pkg/eventbus"
	"github.com/kikoba/kikoba/pkg/middleware"
	membersvc "github.com/kikoba/kikoba/pkg/service/member"
	"github.com/kikoba/kikoba/webapi/common"
	"github.com/valyala/fasthttp"
)

const (
	bufferSize        = 64
	keepAliveInterval = 15 * time.Second
)

var collections = map[string]bool{
	eventbus.CollectionTransactions:  true,
	eventbus.CollectionLoanRequests:  true,
	eventbus.CollectionMembers:       true,
	eventbus.CollectionPenaltyAudits: true,
}

// Routes registers the change stream endpoint.
//
// Routes:
//   - GET /stream/:collection : Server-sent change events. Query parameters filter on
//     change attributes (member_id, status, type, ...).
func Routes(app *fiber.App, bus eventbus.Bus, memberSvc *membersvc.Service, cfg *config.App, logger *slog.Logger) {
	app.Get("/stream/:collection", middleware.JwtProtected(cfg.Auth.Jwt), Stream(bus, memberSvc, logger))
}

// Stream returns a Fiber handler that relays matching changes until the client
// goes away. Non-admin callers only see changes about themselves.
// @Summary Subscribe to changes
// @Tags stream
// @Produce text/event-stream
// @Param collection path string true "transactions, loan_requests, members or penalty_audits"
// @Success 200 {string} string "Event stream"
// @Failure 404 {object} common.ProblemDetails "Unknown collection"
// @Router /stream/{collection} [get]
// @Security Bearer
func Stream(bus eventbus.Bus, memberSvc *membersvc.Service, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		collection := c.Params("collection")
		if !collections[collection] {
			return common.ProblemDetailsJSON(c, "Unknown collection", fmt.Errorf("%w: collection %q", domain.ErrNotFound, collection))
		}
		caller, err := common.Caller(c, memberSvc)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to subscribe", err)
		}
		filter := filterFrom(c)
		if !caller.IsActiveAdmin() {
			if collection == eventbus.CollectionMembers {
				return common.ProblemDetailsJSON(c, "Failed to subscribe", fmt.Errorf("%w: admin role required", domain.ErrAuthorization))
			}
			filter["member_id"] = caller.ID.String()
		}

		ctx, cancel := context.WithCancel(context.Background())
		events := make(chan eventbus.Change, bufferSize)
		unsubscribe, err := bus.Subscribe(ctx, collection, filter, func(_ context.Context, ch eventbus.Change) error {
			select {
			case events <- ch:
			default:
				logger.Warn("stream buffer full, dropping change", "collection", ch.Collection, "id", ch.ID)
			}
			return nil
		})
		if err != nil {
			cancel()
			return common.ProblemDetailsJSON(c, "Failed to subscribe", domain.External("subscribe", err))
		}

		c.Set(fiber.HeaderContentType, "text/event-stream")
		c.Set(fiber.HeaderCacheControl, "no-cache")
		c.Set(fiber.HeaderConnection, "keep-alive")
		c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
			defer cancel()
			defer unsubscribe()
			logger.Debug("stream opened", "collection", collection, "member_id", caller.ID)
			if err := relay(ctx, w, events, keepAliveInterval); err != nil {
				logger.Debug("stream closed", "collection", collection, "member_id", caller.ID, "reason", err)
			}
		}))
		return nil
	}
}

// relay writes events until ctx is done or a write fails, which is how a
// disconnected client shows up.
func relay(ctx context.Context, w *bufio.Writer, events <-chan eventbus.Change, keepAlive time.Duration) error {
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ch := <-events:
			if err := writeEvent(w, ch); err != nil {
				return err
			}
		case <-ticker.C:
			if _, err := w.WriteString(": keep-alive\n\n"); err != nil {
				return err
			}
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
}

func writeEvent(w *bufio.Writer, ch eventbus.Change) error {
	data, err := json.Marshal(ch)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", ch.ID, ch.Op, data)
	return err
}

func filterFrom(c *fiber.Ctx) eventbus.Filter {
	f := eventbus.Filter{}
	for k, v := range c.Queries() {
		if v != "" {
			f[k] = v
		}
	}
	return f
}
