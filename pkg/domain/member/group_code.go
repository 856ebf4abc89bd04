package member

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kikoba/kikoba/pkg/domain"
)

var (
	ErrCodeInactive  = fmt.Errorf("%w: group code is not active", domain.ErrValidation)
	ErrCodeExpired   = fmt.Errorf("%w: group code has expired", domain.ErrValidation)
	ErrCodeExhausted = fmt.Errorf("%w: group code has no redemptions left", domain.ErrStateConflict)
)

// GroupCode gates admission of new members. RedeemedCount only ever increases and,
// when MaxRedemptions is set, never exceeds it.
type GroupCode struct {
	ID             uuid.UUID
	Code           string
	IsActive       bool
	ExpiresAt      *time.Time
	MaxRedemptions int
	RedeemedCount  int
	Version        int64
	CreatedAt      time.Time
}

// Redeem consumes one redemption.
func (g *GroupCode) Redeem(now time.Time) error {
	if !g.IsActive {
		return ErrCodeInactive
	}
	if g.ExpiresAt != nil && !now.Before(*g.ExpiresAt) {
		return ErrCodeExpired
	}
	if g.MaxRedemptions > 0 && g.RedeemedCount >= g.MaxRedemptions {
		return ErrCodeExhausted
	}
	g.RedeemedCount++
	return nil
}

// Remaining returns how many redemptions are left, or -1 when unlimited.
func (g *GroupCode) Remaining() int {
	if g.MaxRedemptions <= 0 {
		return -1
	}
	return g.MaxRedemptions - g.RedeemedCount
}

// IsRedeemError reports whether err is one of the redemption refusals.
func IsRedeemError(err error) bool {
	return errors.Is(err, ErrCodeInactive) || errors.Is(err, ErrCodeExpired) || errors.Is(err, ErrCodeExhausted)
}
