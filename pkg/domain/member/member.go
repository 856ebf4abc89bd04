package member

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kikoba/kikoba/pkg/domain"
)

// Role of a member within the group.
type Role string

const (
	RoleAdmin  Role = "Admin"
	RoleMember Role = "Member"
)

// Status of a member.
type Status string

const (
	StatusActive   Status = "Active"
	StatusInactive Status = "Inactive"
)

// Member is an entry of the member directory. Code is the human-readable member
// number used by imports and shown to people.
type Member struct {
	ID          uuid.UUID
	Code        string
	DisplayName string
	Email       string
	Role        Role
	Status      Status
	JoinedAt    time.Time
}

// IsActiveAdmin reports whether the member can approve loan requests.
func (m *Member) IsActiveAdmin() bool {
	return m.Role == RoleAdmin && m.Status == StatusActive
}

// New validates and builds an active regular member.
func New(code, displayName, email string, now time.Time) (*Member, error) {
	code = strings.TrimSpace(code)
	displayName = strings.TrimSpace(displayName)
	if code == "" {
		return nil, domain.Validation("member code is required")
	}
	if displayName == "" {
		return nil, domain.Validation("display name is required")
	}
	return &Member{
		ID:          uuid.New(),
		Code:        code,
		DisplayName: displayName,
		Email:       strings.TrimSpace(email),
		Role:        RoleMember,
		Status:      StatusActive,
		JoinedAt:    now,
	}, nil
}

// NormalizeCode canonicalizes an external member identifier for lookups.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
