package policy_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/policy"
	"github.com/warp/attendance-engine/store/sqlite"
)

var (
	admin = generic.Actor{UserID: "admin-1", Role: generic.RoleAdmin}
	staff = generic.Actor{UserID: "u1", Role: generic.RoleUser}
)

func newTestService(t *testing.T) (*policy.Service, *sqlite.Store, *generic.FixedClock) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clock := &generic.FixedClock{At: time.Date(2025, time.March, 10, 2, 0, 0, 0, time.UTC)}
	return policy.NewService(store, clock, []byte("test-qr-secret")), store, clock
}

func intp(n int) *int { return &n }

func validInput() policy.RulesInput {
	return policy.RulesInput{
		StartTime: "07:30", EndTime: "09:00", DismissalTime: "16:30",
		MaxWorkLeave: intp(12), MaxSickLeave: intp(10),
	}
}

// =============================================================================
// BOOTSTRAP & CACHE
// =============================================================================

func TestService_Bootstrap_CreatesOnceWithSignedToken(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Current(ctx)
	assert.ErrorIs(t, err, generic.ErrNotFound)

	p, created, err := svc.Bootstrap(ctx, policy.DefaultRules())
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "08:00", p.StartTime)
	assert.Equal(t, 14, p.MaxSickLeave)
	require.NotEmpty(t, p.QRToken)

	claims, err := svc.ParseQR(p.QRToken)
	require.NoError(t, err)
	assert.Equal(t, policy.DefaultID, claims.PolicyID)
	assert.NotEmpty(t, claims.ID)

	again, created, err := svc.Bootstrap(ctx, policy.DefaultRules())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, p.QRToken, again.QRToken)
}

func TestService_CacheChangesOnlyOnRefresh(t *testing.T) {
	// GIVEN: A bootstrapped, cached policy
	// WHEN: The row changes behind the service's back
	// THEN: Cached still returns the old value until Refresh

	svc, store, clock := newTestService(t)
	ctx := context.Background()

	_, ok := svc.Cached()
	assert.False(t, ok)

	_, _, err := svc.Bootstrap(ctx, policy.DefaultRules())
	require.NoError(t, err)

	require.NoError(t, store.UpdatePolicyRules(ctx, generic.PolicyRules{
		StartTime: "06:00", EndTime: "07:00", DismissalTime: "15:00",
	}, clock.Now()))

	cached, ok := svc.Cached()
	require.True(t, ok)
	assert.Equal(t, "08:00", cached.StartTime)

	fresh, err := svc.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, "06:00", fresh.StartTime)

	p, err := svc.Policy(ctx)
	require.NoError(t, err)
	assert.Equal(t, "06:00", p.StartTime)
}

// =============================================================================
// UPDATE RULES
// =============================================================================

func TestService_UpdateRules(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	boot, _, err := svc.Bootstrap(ctx, policy.DefaultRules())
	require.NoError(t, err)

	_, err = svc.UpdateRules(ctx, staff, validInput())
	assert.ErrorIs(t, err, generic.ErrForbidden)

	p, err := svc.UpdateRules(ctx, admin, validInput())
	require.NoError(t, err)
	assert.Equal(t, "07:30", p.StartTime)
	assert.Equal(t, "16:30", p.DismissalTime)
	assert.Equal(t, 12, p.MaxWorkLeave)
	assert.Equal(t, boot.QRToken, p.QRToken, "rules update leaves the token alone")

	cached, _ := svc.Cached()
	assert.Equal(t, p, cached)
}

func TestRulesInput_Validate(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(in *policy.RulesInput)
		field string
	}{
		{"missing start", func(in *policy.RulesInput) { in.StartTime = "" }, "start_time"},
		{"single digit hour", func(in *policy.RulesInput) { in.StartTime = "7:30" }, "start_time"},
		{"hour out of range", func(in *policy.RulesInput) { in.EndTime = "24:00" }, "end_time"},
		{"minute out of range", func(in *policy.RulesInput) { in.DismissalTime = "16:60" }, "dismissal_time"},
		{"end before start", func(in *policy.RulesInput) { in.EndTime = "07:00" }, "end_time"},
		{"dismissal before end", func(in *policy.RulesInput) { in.DismissalTime = "08:59" }, "dismissal_time"},
		{"missing quota", func(in *policy.RulesInput) { in.MaxWorkLeave = nil }, "max_work_leave"},
		{"negative quota", func(in *policy.RulesInput) { in.MaxSickLeave = intp(-1) }, "max_sick_leave"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.edit(&in)

			_, err := in.Validate()
			var verr *generic.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	rules, err := validInput().Validate()
	require.NoError(t, err)
	assert.Equal(t, 10, rules.MaxSickLeave)

	zero := validInput()
	zero.MaxWorkLeave = intp(0)
	_, err = zero.Validate()
	assert.NoError(t, err, "zero quota is allowed")
}

// =============================================================================
// QR ROTATION
// =============================================================================

func TestService_RotateQRToken(t *testing.T) {
	// GIVEN: A bootstrapped policy with token T1
	// WHEN: An admin rotates the code
	// THEN: A different signed token is stored; rules are untouched

	svc, _, clock := newTestService(t)
	ctx := context.Background()
	boot, _, err := svc.Bootstrap(ctx, policy.DefaultRules())
	require.NoError(t, err)

	_, err = svc.RotateQRToken(ctx, staff)
	assert.ErrorIs(t, err, generic.ErrForbidden)

	clock.Set(clock.Now().Add(time.Hour))
	p, err := svc.RotateQRToken(ctx, admin)
	require.NoError(t, err)
	assert.NotEqual(t, boot.QRToken, p.QRToken)
	assert.Equal(t, boot.StartTime, p.StartTime)
	assert.True(t, p.QRRotatedAt.Equal(clock.Now()))

	qr, err := svc.PublicQR(ctx)
	require.NoError(t, err)
	assert.Equal(t, p.QRToken, qr)
}

func TestService_ParseQR_RejectsForeignSignature(t *testing.T) {
	svc, store, _ := newTestService(t)
	other := policy.NewService(store, nil, []byte("another-secret"))
	ctx := context.Background()

	p, _, err := other.Bootstrap(ctx, policy.DefaultRules())
	require.NoError(t, err)

	_, err = svc.ParseQR(p.QRToken)
	assert.ErrorIs(t, err, generic.ErrInvalidToken)

	_, err = svc.ParseQR("not-a-jwt")
	assert.ErrorIs(t, err, generic.ErrInvalidToken)
}
