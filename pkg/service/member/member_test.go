package member_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kikoba/kikoba/infra/repository/memory"
	"github.com/kikoba/kikoba/pkg/config"
	"github.com/kikoba/kikoba/pkg/domain"
	"github.com/kikoba/kikoba/pkg/domain/member"
	membersvc "github.com/kikoba/kikoba/pkg/service/member"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService() *membersvc.Service {
	return membersvc.NewService(config.Deps{
		Uow:    memory.NewUoW(memory.New()),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestJoin(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	_, err := svc.IssueCode(ctx, membersvc.IssueCodeCommand{Code: "kikoba-2025", MaxRedemptions: 1})
	require.NoError(t, err)

	m, err := svc.Join(ctx, membersvc.JoinCommand{Code: "KIKOBA-2025", MemberCode: "M-020", DisplayName: "Zawadi"})
	require.NoError(t, err)
	assert.Equal(t, member.StatusActive, m.Status)
	assert.Equal(t, member.RoleMember, m.Role)

	got, err := svc.GetByCode(ctx, "m-020")
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)

	_, err = svc.Join(ctx, membersvc.JoinCommand{Code: "KIKOBA-2025", MemberCode: "M-021", DisplayName: "Imani"})
	assert.ErrorIs(t, err, member.ErrCodeExhausted)
	_, err = svc.GetByCode(ctx, "M-021")
	assert.ErrorIs(t, err, domain.ErrMemberNotFound)
}

func TestJoin_Errors(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	expired := time.Now().Add(-time.Hour)
	_, err := svc.IssueCode(ctx, membersvc.IssueCodeCommand{Code: "OLD", ExpiresAt: &expired})
	require.NoError(t, err)
	_, err = svc.IssueCode(ctx, membersvc.IssueCodeCommand{Code: "OPEN"})
	require.NoError(t, err)

	_, err = svc.Join(ctx, membersvc.JoinCommand{Code: "", MemberCode: "M-1", DisplayName: "A"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.Join(ctx, membersvc.JoinCommand{Code: "NOPE", MemberCode: "M-1", DisplayName: "A"})
	assert.ErrorIs(t, err, domain.ErrGroupCodeNotFound)
	_, err = svc.Join(ctx, membersvc.JoinCommand{Code: "OLD", MemberCode: "M-1", DisplayName: "A"})
	assert.ErrorIs(t, err, member.ErrCodeExpired)

	_, err = svc.Join(ctx, membersvc.JoinCommand{Code: "OPEN", MemberCode: "M-1", DisplayName: "A"})
	require.NoError(t, err)
	_, err = svc.Join(ctx, membersvc.JoinCommand{Code: "OPEN", MemberCode: "m-1", DisplayName: "B"})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	_, err = svc.IssueCode(ctx, membersvc.IssueCodeCommand{Code: "open"})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	_, err = svc.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrMemberNotFound)
}

func TestJoin_ConcurrentRedemptionsRespectLimit(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	_, err := svc.IssueCode(ctx, membersvc.IssueCodeCommand{Code: "FEW", MaxRedemptions: 2})
	require.NoError(t, err)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		joined int
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Join(ctx, membersvc.JoinCommand{Code: "FEW", MemberCode: fmt.Sprintf("M-%02d", i), DisplayName: "Member"})
			if err == nil {
				mu.Lock()
				joined++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, joined, 2)
	assert.GreaterOrEqual(t, joined, 1)
}

func TestListAdmins(t *testing.T) {
	uow := memory.NewUoW(memory.New())
	members, _ := uow.MemberRepository()
	ctx := context.Background()
	admin, _ := member.New("A-1", "Admin", "", time.Now())
	admin.Role = member.RoleAdmin
	require.NoError(t, members.Create(ctx, admin))
	regular, _ := member.New("M-1", "Member", "", time.Now())
	require.NoError(t, members.Create(ctx, regular))

	svc := membersvc.NewService(config.Deps{Uow: uow})
	admins, err := svc.ListAdmins(ctx)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, admin.ID, admins[0].ID)
}
