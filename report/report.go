/*
Package report builds the read-only summaries shown on the user and admin
home screens.

PURPOSE:
  Nothing here writes. Every figure is recomputed from the store on each
  call, grouped by the same calendar days the ledger writes.

OVERVIEW (per user):
  - Check-ins this month (leave-derived included)
  - Today's scan times (leave-derived records excluded)
  - Late check-ins this year
  - Pending leave requests
  - Quota snapshot for this year
  - Attendance rate: check-ins / elapsed weekdays this month

DASHBOARD (admin):
  - Total users, records written today, pending requests
*/
package report

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/leave"
)

type Reporter struct {
	store generic.Store
	quota *leave.Quota
	clock generic.Clock
	loc   *time.Location
}

func NewReporter(store generic.Store, ledger *attendance.Ledger, quota *leave.Quota, clock generic.Clock) *Reporter {
	if clock == nil {
		clock = generic.SystemClock{}
	}
	return &Reporter{store: store, quota: quota, clock: clock, loc: ledger.Location()}
}

// =============================================================================
// USER OVERVIEW
// =============================================================================

type Overview struct {
	User            generic.User
	MonthCheckIns   int
	TodayCheckIn    *time.Time
	TodayCheckOut   *time.Time
	LateThisYear    int
	PendingRequests int
	Quota           leave.Snapshot
	AttendanceRate  decimal.Decimal
}

// Overview summarises the actor's own attendance and leave.
func (r *Reporter) Overview(ctx context.Context, actor generic.Actor, policy generic.PolicyConfig) (Overview, error) {
	if actor.UserID == "" {
		return Overview{}, &generic.ForbiddenError{Actor: actor, Op: "read an overview"}
	}
	user, err := r.store.GetUser(ctx, actor.UserID)
	if err != nil {
		return Overview{}, err
	}
	if user == nil {
		return Overview{}, &generic.NotFoundError{Kind: "user", ID: string(actor.UserID)}
	}
	user.PasswordHash = ""

	today := generic.CalendarDay(r.clock.Now(), r.loc)
	monthFrom, monthTo := generic.MonthRange(today.Year(), today.Month())
	yearFrom, yearTo := generic.YearRange(today.Year())

	ov := Overview{User: *user}

	ov.MonthCheckIns, err = r.store.CountAttendance(ctx, generic.AttendanceFilter{
		UserID: actor.UserID, Type: generic.CheckIn, FromDay: monthFrom, ToDay: monthTo,
	})
	if err != nil {
		return Overview{}, err
	}

	todays, err := r.store.FindAttendance(ctx, generic.AttendanceFilter{
		UserID: actor.UserID, FromDay: today, ToDay: today,
	})
	if err != nil {
		return Overview{}, err
	}
	for _, rec := range todays {
		if rec.Status.IsLeave() {
			continue
		}
		t := rec.Time.In(r.loc)
		switch rec.Type {
		case generic.CheckIn:
			ov.TodayCheckIn = &t
		case generic.CheckOut:
			ov.TodayCheckOut = &t
		}
	}

	ov.LateThisYear, err = r.store.CountAttendance(ctx, generic.AttendanceFilter{
		UserID: actor.UserID, Status: generic.StatusLate, FromDay: yearFrom, ToDay: yearTo,
	})
	if err != nil {
		return Overview{}, err
	}

	ov.PendingRequests, err = r.store.CountLeaves(ctx, generic.LeaveFilter{
		UserID: actor.UserID, Statuses: []generic.LeaveStatus{generic.LeavePending},
	})
	if err != nil {
		return Overview{}, err
	}

	ov.Quota, err = r.quota.Snapshot(ctx, actor.UserID, today.Year(), policy)
	if err != nil {
		return Overview{}, err
	}

	ov.AttendanceRate = rate(ov.MonthCheckIns, elapsedWeekdays(monthFrom, today))
	return ov, nil
}

// elapsedWeekdays counts Monday-Friday days in [from, to].
func elapsedWeekdays(from, to generic.DayKey) int {
	n := 0
	for d := from; d <= to; d = d.AddDays(1) {
		if !d.IsWeekend() {
			n++
		}
	}
	return n
}

func rate(num, den int) decimal.Decimal {
	if den == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(num)).DivRound(decimal.NewFromInt(int64(den)), 2)
}

// =============================================================================
// ADMIN DASHBOARD
// =============================================================================

// Dashboard totals. TotalUsers includes deleted accounts, ActiveUsers
// does not.
type Dashboard struct {
	TotalUsers      int
	ActiveUsers     int
	TodayAttendance int
	PendingLeaves   int
}

func (r *Reporter) Dashboard(ctx context.Context, actor generic.Actor) (Dashboard, error) {
	if err := actor.RequireAdmin("read the dashboard"); err != nil {
		return Dashboard{}, err
	}
	today := generic.CalendarDay(r.clock.Now(), r.loc)

	var (
		d   Dashboard
		err error
	)
	if d.TotalUsers, err = r.store.CountUsers(ctx, generic.UserFilter{IncludeDeleted: true}); err != nil {
		return Dashboard{}, err
	}
	if d.ActiveUsers, err = r.store.CountUsers(ctx, generic.UserFilter{}); err != nil {
		return Dashboard{}, err
	}
	if d.TodayAttendance, err = r.store.CountAttendance(ctx, generic.AttendanceFilter{FromDay: today, ToDay: today}); err != nil {
		return Dashboard{}, err
	}
	if d.PendingLeaves, err = r.store.CountLeaves(ctx, generic.LeaveFilter{Statuses: []generic.LeaveStatus{generic.LeavePending}}); err != nil {
		return Dashboard{}, err
	}
	return d, nil
}
