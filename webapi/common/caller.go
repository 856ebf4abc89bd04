package common

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/kikoba/kikoba/pkg/domain"
	"github.com/kikoba/kikoba/pkg/domain/member"
	"github.com/kikoba/kikoba/pkg/middleware"
	membersvc "github.com/kikoba/kikoba/pkg/service/member"
)

// Caller resolves the authenticated member.
func Caller(c *fiber.Ctx, members *membersvc.Service) (*member.Member, error) {
	id, err := middleware.CallerID(c)
	if err != nil {
		return nil, err
	}
	m, err := members.Get(c.UserContext(), id)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// RequireAdmin resolves the caller and fails with ErrAuthorization unless they
// are an active admin.
func RequireAdmin(c *fiber.Ctx, members *membersvc.Service) (*member.Member, error) {
	m, err := Caller(c, members)
	if err != nil {
		return nil, err
	}
	if !m.IsActiveAdmin() {
		return nil, fmt.Errorf("%w: admin role required", domain.ErrAuthorization)
	}
	return m, nil
}

// ParseID reads a uuid path parameter.
func ParseID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, domain.Validation("%s must be a valid UUID", name)
	}
	return id, nil
}
