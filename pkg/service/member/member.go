// Package member provides admission of new members through group codes and the
// member directory reads used by the other services.
package member

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kikoba/kikoba/pkg/config"
	"github.com/kikoba/kikoba/pkg/domain"
	"github.com/kikoba/kikoba/pkg/domain/member"
	"github.com/kikoba/kikoba/pkg/eventbus"
	"github.com/kikoba/kikoba/pkg/repository"
)

const joinMaxRetries = 3

// Service manages the member directory.
type Service struct {
	uow    repository.UnitOfWork
	bus    eventbus.Bus
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new Service with the provided dependencies.
func NewService(deps config.Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		uow:    deps.Uow,
		bus:    deps.EventBus,
		logger: logger.With("service", "member"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// JoinCommand admits a new member with a group code.
type JoinCommand struct {
	Code        string
	MemberCode  string
	DisplayName string
	Email       string
}

// Join redeems the group code and creates an active member in one atomic unit.
// Redemptions racing on the same code are retried.
func (s *Service) Join(ctx context.Context, cmd JoinCommand) (*member.Member, error) {
	logger := s.logger.With("member_code", cmd.MemberCode)
	if strings.TrimSpace(cmd.Code) == "" {
		return nil, domain.Validation("group code is required")
	}

	var (
		m   *member.Member
		err error
	)
	for attempt := 1; ; attempt++ {
		m, err = s.joinOnce(ctx, cmd)
		if err == nil || !errors.Is(err, domain.ErrConcurrentModification) || attempt >= joinMaxRetries {
			break
		}
		logger.Warn("Join conflicted, retrying", "attempt", attempt)
	}
	if err != nil {
		logger.Warn("Join failed", "error", err)
		return nil, domain.External("join group", err)
	}

	logger.Info("member joined", "member_id", m.ID)
	eventbus.Emit(ctx, s.bus, logger, eventbus.MemberChange(m, eventbus.OpCreate))
	return m, nil
}

func (s *Service) joinOnce(ctx context.Context, cmd JoinCommand) (*member.Member, error) {
	var m *member.Member
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		codes, err := uow.GroupCodeRepository()
		if err != nil {
			return err
		}
		g, err := codes.GetByCode(ctx, cmd.Code)
		if err != nil {
			return err
		}
		now := s.now()
		m, err = member.New(cmd.MemberCode, cmd.DisplayName, cmd.Email, now)
		if err != nil {
			return err
		}
		expected := g.Version
		if err := g.Redeem(now); err != nil {
			return err
		}
		if err := codes.Update(ctx, g, expected); err != nil {
			return err
		}
		members, err := uow.MemberRepository()
		if err != nil {
			return err
		}
		return members.Create(ctx, m)
	})
	return m, err
}

// IssueCodeCommand creates a group code. Zero MaxRedemptions means unlimited.
type IssueCodeCommand struct {
	Code           string
	MaxRedemptions int
	ExpiresAt      *time.Time
}

// IssueCode creates an active group code.
func (s *Service) IssueCode(ctx context.Context, cmd IssueCodeCommand) (*member.GroupCode, error) {
	code := member.NormalizeCode(cmd.Code)
	if code == "" {
		return nil, domain.Validation("group code is required")
	}
	if cmd.MaxRedemptions < 0 {
		return nil, domain.Validation("max redemptions must not be negative")
	}
	g := &member.GroupCode{
		ID:             uuid.New(),
		Code:           code,
		IsActive:       true,
		ExpiresAt:      cmd.ExpiresAt,
		MaxRedemptions: cmd.MaxRedemptions,
		Version:        1,
		CreatedAt:      s.now(),
	}
	codes, err := s.uow.GroupCodeRepository()
	if err != nil {
		return nil, err
	}
	if err := codes.Create(ctx, g); err != nil {
		return nil, domain.External("issue group code", err)
	}
	s.logger.Info("group code issued", "code", g.Code, "max_redemptions", g.MaxRedemptions)
	return g, nil
}

// Get returns a member by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*member.Member, error) {
	members, err := s.uow.MemberRepository()
	if err != nil {
		return nil, err
	}
	m, err := members.Get(ctx, id)
	if err != nil {
		return nil, domain.External("get member", err)
	}
	return m, nil
}

// GetByCode returns a member by member code.
func (s *Service) GetByCode(ctx context.Context, code string) (*member.Member, error) {
	members, err := s.uow.MemberRepository()
	if err != nil {
		return nil, err
	}
	m, err := members.GetByCode(ctx, code)
	if err != nil {
		return nil, domain.External("get member by code", err)
	}
	return m, nil
}

// ListAdmins returns the active admins, the approver pool for new loan requests.
func (s *Service) ListAdmins(ctx context.Context) ([]*member.Member, error) {
	members, err := s.uow.MemberRepository()
	if err != nil {
		return nil, err
	}
	out, err := members.List(ctx, repository.MemberFilter{Role: member.RoleAdmin, Status: member.StatusActive})
	if err != nil {
		return nil, domain.External("list admins", err)
	}
	return out, nil
}
