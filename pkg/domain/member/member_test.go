package member_test

import (
	"testing"
	"time"

	"github.com/kikoba/kikoba/pkg/domain"
	"github.com/kikoba/kikoba/pkg/domain/member"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()
	m, err := member.New(" M-014 ", " Juma ", "juma@example.com", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "M-014", m.Code)
	assert.Equal(t, "Juma", m.DisplayName)
	assert.Equal(t, member.RoleMember, m.Role)
	assert.False(t, m.IsActiveAdmin())

	_, err = member.New("", "Juma", "", time.Now())
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = member.New("M-1", " ", "", time.Now())
	assert.ErrorIs(t, err, domain.ErrValidation)

	assert.Equal(t, "M-014", member.NormalizeCode(" m-014 "))
}

func TestGroupCode_Redeem(t *testing.T) {
	t.Parallel()
	now := time.Now()
	expires := now.Add(time.Hour)

	code := &member.GroupCode{Code: "KIKOBA", IsActive: true, ExpiresAt: &expires, MaxRedemptions: 2}
	require.NoError(t, code.Redeem(now))
	assert.Equal(t, 1, code.Remaining())
	require.NoError(t, code.Redeem(now))
	assert.Equal(t, 0, code.Remaining())

	err := code.Redeem(now)
	assert.ErrorIs(t, err, member.ErrCodeExhausted)
	assert.True(t, member.IsRedeemError(err))
	assert.Equal(t, 2, code.RedeemedCount)

	assert.ErrorIs(t, code.Redeem(expires), member.ErrCodeExpired)

	code.IsActive = false
	assert.ErrorIs(t, code.Redeem(now), member.ErrCodeInactive)

	unlimited := &member.GroupCode{Code: "OPEN", IsActive: true}
	for i := 0; i < 5; i++ {
		require.NoError(t, unlimited.Redeem(now))
	}
	assert.Equal(t, -1, unlimited.Remaining())
	assert.False(t, member.IsRedeemError(domain.ErrNotFound))
}
