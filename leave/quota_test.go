package leave_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/generic"
)

func TestQuota_CountsOnlyAcceptedRequestsInYear(t *testing.T) {
	// GIVEN: Accepted annual leave in 2024 and 2025, one pending, one rejected
	// WHEN: Taking the 2025 snapshot
	// THEN: Only the accepted 2025 request counts

	f := newFixture(t)
	ctx := context.Background()

	for _, date := range []string{"2024-12-31", "2025-01-02"} {
		req := f.submit(t, ana, annual(date))
		_, err := f.workflow.Decide(ctx, admin, req.ID, generic.LeaveAccepted)
		require.NoError(t, err)
	}
	f.submit(t, ana, annual("2025-02-03"))
	rejected := f.submit(t, ana, annual("2025-02-04"))
	_, err := f.workflow.Decide(ctx, admin, rejected.ID, generic.LeaveRejected)
	require.NoError(t, err)

	snap, err := f.quota.Snapshot(ctx, "ana", 2025, policy())
	require.NoError(t, err)
	assert.Equal(t, 2025, snap.Year)
	assert.Equal(t, 1, snap.UsedAnnual)
	assert.Equal(t, 0, snap.UsedSick)
	assert.Equal(t, 14, snap.LimitAnnual)
	assert.Equal(t, 14, snap.RemainingSick)
}

func TestQuota_RemainingGoesNegativeWhenOverLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := policy()
	p.MaxSickLeave = 1

	for _, date := range []string{"2025-03-10", "2025-03-11"} {
		req := f.submit(t, ana, sick(date))
		_, err := f.workflow.Decide(ctx, admin, req.ID, generic.LeaveAccepted)
		require.NoError(t, err)
	}

	snap, err := f.quota.Snapshot(ctx, "ana", 2025, p)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.UsedSick)
	assert.Equal(t, -1, snap.RemainingSick)
	assert.Equal(t, "2.00", snap.SickUtilization.StringFixed(2))
}

func TestQuota_ZeroLimitHasZeroUtilization(t *testing.T) {
	f := newFixture(t)
	p := policy()
	p.MaxWorkLeave = 0

	snap, err := f.quota.Snapshot(context.Background(), "ana", 2025, p)
	require.NoError(t, err)
	assert.True(t, snap.AnnualUtilization.IsZero())
	assert.Equal(t, 0, snap.RemainingAnnual)
}
