package leave

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// QUOTA SNAPSHOT
// =============================================================================

// Snapshot is a user's leave usage for one calendar year. Limits are
// advisory: Remaining goes negative when usage exceeds the policy.
type Snapshot struct {
	Year            int
	UsedAnnual      int
	UsedSick        int
	LimitAnnual     int
	LimitSick       int
	RemainingAnnual int
	RemainingSick   int

	// Used / limit, two decimal places. Zero when the limit is zero.
	AnnualUtilization decimal.Decimal
	SickUtilization   decimal.Decimal
}

// Quota computes snapshots from accepted requests. Nothing is cached.
type Quota struct {
	store generic.Store
}

func NewQuota(store generic.Store) *Quota {
	return &Quota{store: store}
}

// Snapshot counts accepted requests dated within year, per type.
func (q *Quota) Snapshot(ctx context.Context, userID generic.UserID, year int, policy generic.PolicyConfig) (Snapshot, error) {
	from, to := generic.YearRange(year)
	accepted := []generic.LeaveStatus{generic.LeaveAccepted}

	usedAnnual, err := q.store.CountLeaves(ctx, generic.LeaveFilter{
		UserID: userID, Type: generic.AnnualLeave, Statuses: accepted, FromDay: from, ToDay: to,
	})
	if err != nil {
		return Snapshot{}, err
	}
	usedSick, err := q.store.CountLeaves(ctx, generic.LeaveFilter{
		UserID: userID, Type: generic.SickLeave, Statuses: accepted, FromDay: from, ToDay: to,
	})
	if err != nil {
		return Snapshot{}, err
	}

	return Snapshot{
		Year:              year,
		UsedAnnual:        usedAnnual,
		UsedSick:          usedSick,
		LimitAnnual:       policy.MaxWorkLeave,
		LimitSick:         policy.MaxSickLeave,
		RemainingAnnual:   policy.MaxWorkLeave - usedAnnual,
		RemainingSick:     policy.MaxSickLeave - usedSick,
		AnnualUtilization: ratio(usedAnnual, policy.MaxWorkLeave),
		SickUtilization:   ratio(usedSick, policy.MaxSickLeave),
	}, nil
}

func ratio(used, limit int) decimal.Decimal {
	if limit <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(used)).DivRound(decimal.NewFromInt(int64(limit)), 2)
}
