package attendance

import (
	"context"

	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// DAY STATUS - Stored or derived, never persisted
// =============================================================================

type DayStatusKind int

const (
	// Recorded: a record exists; Status holds its stored status.
	Recorded DayStatusKind = iota
	// AwaitingCheckIn: today, inside [start, end), no check-in yet.
	AwaitingCheckIn
	// Absent: no record and not awaiting.
	Absent
)

// DayStatus is what a roster shows for one user on one day.
type DayStatus struct {
	Kind   DayStatusKind
	Status generic.AttendanceStatus
	Record *generic.AttendanceRecord
}

func (d DayStatus) String() string {
	switch d.Kind {
	case Recorded:
		return string(d.Status)
	case AwaitingCheckIn:
		return "awaiting_check_in"
	default:
		return "absent"
	}
}

func recorded(rec generic.AttendanceRecord) DayStatus {
	return DayStatus{Kind: Recorded, Status: rec.Status, Record: &rec}
}

// derive decides the status for a user with no record of typ on day.
func (l *Ledger) derive(day generic.DayKey, typ generic.AttendanceType, policy generic.PolicyConfig) DayStatus {
	if typ != generic.CheckIn {
		return DayStatus{Kind: Absent}
	}
	now := l.clock.Now()
	if generic.CalendarDay(now, l.loc) != day {
		return DayStatus{Kind: Absent}
	}
	start, end, _, err := policy.Window()
	if err != nil {
		return DayStatus{Kind: Absent}
	}
	m := generic.MinutesOfDay(now, l.loc)
	if m >= start.Minutes() && m < end.Minutes() {
		return DayStatus{Kind: AwaitingCheckIn}
	}
	return DayStatus{Kind: Absent}
}

func normalizeType(typ generic.AttendanceType) generic.AttendanceType {
	if typ == "" {
		return generic.CheckIn
	}
	return typ
}

// DailyStatus returns the status of one user on one day for typ
// (check-in when empty).
func (l *Ledger) DailyStatus(ctx context.Context, userID generic.UserID, day generic.DayKey, typ generic.AttendanceType, policy generic.PolicyConfig) (DayStatus, error) {
	typ = normalizeType(typ)
	if !typ.Valid() {
		return DayStatus{}, generic.Invalid("type", "unknown attendance type %q", typ)
	}
	recs, err := l.store.FindAttendance(ctx, generic.AttendanceFilter{
		UserID: userID, Type: typ, FromDay: day, ToDay: day, Limit: 1,
	})
	if err != nil {
		return DayStatus{}, err
	}
	if len(recs) > 0 {
		return recorded(recs[0]), nil
	}
	return l.derive(day, typ, policy), nil
}

// =============================================================================
// ROSTER
// =============================================================================

type RosterEntry struct {
	User   generic.User
	Status DayStatus
}

// Roster lists every user with their status for typ on day.
func (l *Ledger) Roster(ctx context.Context, day generic.DayKey, typ generic.AttendanceType, policy generic.PolicyConfig) ([]RosterEntry, error) {
	typ = normalizeType(typ)
	if !typ.Valid() {
		return nil, generic.Invalid("type", "unknown attendance type %q", typ)
	}

	users, err := l.store.ListUsers(ctx, generic.UserFilter{})
	if err != nil {
		return nil, err
	}
	recs, err := l.store.FindAttendance(ctx, generic.AttendanceFilter{Type: typ, FromDay: day, ToDay: day})
	if err != nil {
		return nil, err
	}

	byUser := make(map[generic.UserID]generic.AttendanceRecord, len(recs))
	for _, r := range recs {
		byUser[r.UserID] = r
	}

	entries := make([]RosterEntry, 0, len(users))
	for _, u := range users {
		st := l.derive(day, typ, policy)
		if rec, ok := byUser[u.ID]; ok {
			st = recorded(rec)
		}
		entries = append(entries, RosterEntry{User: u, Status: st})
	}
	return entries, nil
}
