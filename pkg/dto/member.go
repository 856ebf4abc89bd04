package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/kikoba/kikoba/pkg/domain/member"
)

// MemberRead represents a read-optimized view of a member.
type MemberRead struct {
	ID          uuid.UUID `json:"id"`
	Code        string    `json:"code"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email,omitempty"`
	Role        string    `json:"role"`
	Status      string    `json:"status"`
	JoinedAt    time.Time `json:"joined_at"`
}

// FromMember maps a directory entry to its read model.
func FromMember(m *member.Member) MemberRead {
	return MemberRead{
		ID:          m.ID,
		Code:        m.Code,
		DisplayName: m.DisplayName,
		Email:       m.Email,
		Role:        string(m.Role),
		Status:      string(m.Status),
		JoinedAt:    m.JoinedAt,
	}
}
