/*
Package attendance records scans and answers "what happened on this day".

PURPOSE:
  The Ledger is the only writer of attendance records. It owns three
  rules:
  1. A scan must present the current QR token
  2. A scan is classified against the policy window (classifier.go)
  3. At most one record per (user, calendar day, type)

  Rule 3 is a check-then-insert inside generic.TxStore.WithTx. The store's
  unique index backs it up; a violation from either path surfaces as a
  DuplicateScanError (scans) or ConflictError (leave-derived records).

DAY BOUNDARIES:
  Every record carries Day = generic.CalendarDay(Time, loc). Duplicate
  checks, rosters and counts all filter on Day, never on raw timestamps.

SEE ALSO:
  - classifier.go: Scan classification
  - roster.go: Derived day statuses
  - leave/workflow.go: Calls RecordLeaveDerived on acceptance
*/
package attendance

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/warp/attendance-engine/generic"
)

// Ledger records attendance events.
type Ledger struct {
	store generic.TxStore
	clock generic.Clock
	loc   *time.Location
	newID func() string
}

// NewLedger creates a ledger. loc is the policy timezone; nil means UTC.
func NewLedger(store generic.TxStore, clock generic.Clock, loc *time.Location) *Ledger {
	if clock == nil {
		clock = generic.SystemClock{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Ledger{store: store, clock: clock, loc: loc, newID: uuid.NewString}
}

func (l *Ledger) Location() *time.Location { return l.loc }

// Today returns the current calendar day in the policy timezone.
func (l *Ledger) Today() generic.DayKey { return generic.CalendarDay(l.clock.Now(), l.loc) }

// =============================================================================
// SCANS
// =============================================================================

// RecordScan validates the token, classifies the scan and stores it.
func (l *Ledger) RecordScan(ctx context.Context, userID generic.UserID, token string, policy generic.PolicyConfig) (*generic.AttendanceRecord, error) {
	if userID == "" {
		return nil, generic.Invalid("user_id", "is required")
	}
	if !tokenMatches(token, policy.QRToken) {
		return nil, &generic.InvalidTokenError{}
	}

	now := l.clock.Now()
	c, err := Classify(now, policy, l.loc)
	if err != nil {
		return nil, err
	}

	rec := generic.AttendanceRecord{
		ID:          generic.RecordID(l.newID()),
		UserID:      userID,
		Time:        now,
		Day:         generic.CalendarDay(now, l.loc),
		Type:        c.Type,
		Status:      c.Status,
		LateMinutes: c.LateMinutes,
		Source:      generic.SourceScan,
		CreatedAt:   now,
	}

	err = l.store.WithTx(ctx, func(tx generic.Store) error {
		existing, err := tx.FindAttendance(ctx, generic.AttendanceFilter{
			UserID:  userID,
			Type:    rec.Type,
			FromDay: rec.Day,
			ToDay:   rec.Day,
			Limit:   1,
		})
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return &generic.DuplicateScanError{UserID: userID, Day: rec.Day, Type: rec.Type, ExistingID: existing[0].ID}
		}

		err = tx.InsertAttendance(ctx, rec)
		if errors.Is(err, generic.ErrDuplicateAttendance) {
			return &generic.DuplicateScanError{UserID: userID, Day: rec.Day, Type: rec.Type}
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func tokenMatches(presented, current string) bool {
	if presented == "" || current == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(current)) == 1
}

// =============================================================================
// LEAVE-DERIVED RECORDS
// =============================================================================

// RecordLeaveDerived writes the check-in that stands for an accepted leave
// day. It runs on the caller's transactional store so the record commits or
// rolls back with the decision that produced it.
func (l *Ledger) RecordLeaveDerived(ctx context.Context, tx generic.Store, userID generic.UserID, day generic.DayKey, leaveType generic.LeaveType, requestID generic.RequestID) (*generic.AttendanceRecord, error) {
	if !leaveType.Valid() {
		return nil, generic.Invalid("type", "unknown leave type %q", leaveType)
	}

	rec := generic.AttendanceRecord{
		ID:             generic.RecordID(l.newID()),
		UserID:         userID,
		Time:           day.Start(l.loc),
		Day:            day,
		Type:           generic.CheckIn,
		Status:         leaveType.AttendanceStatus(),
		Source:         generic.SourceLeave,
		LeaveRequestID: requestID,
		CreatedAt:      l.clock.Now(),
	}

	err := tx.InsertAttendance(ctx, rec)
	if errors.Is(err, generic.ErrDuplicateAttendance) {
		return nil, &generic.ConflictError{UserID: userID, Day: day, Reason: "attendance already recorded for that day"}
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// =============================================================================
// QUERIES
// =============================================================================

// History is a user's attendance split by type, newest first.
type History struct {
	CheckIns  []generic.AttendanceRecord
	CheckOuts []generic.AttendanceRecord
}

func (l *Ledger) History(ctx context.Context, userID generic.UserID) (History, error) {
	ins, err := l.store.FindAttendance(ctx, generic.AttendanceFilter{UserID: userID, Type: generic.CheckIn})
	if err != nil {
		return History{}, err
	}
	outs, err := l.store.FindAttendance(ctx, generic.AttendanceFilter{UserID: userID, Type: generic.CheckOut})
	if err != nil {
		return History{}, err
	}
	return History{CheckIns: ins, CheckOuts: outs}, nil
}

// RangeCount is the number of check-ins and check-outs over a day range.
type RangeCount struct {
	CheckIns  int
	CheckOuts int
}

// CountByRange counts records with from <= Day <= to.
func (l *Ledger) CountByRange(ctx context.Context, from, to generic.DayKey) (RangeCount, error) {
	if from.IsZero() || to.IsZero() {
		return RangeCount{}, generic.Invalid("range", "start and end dates are required")
	}
	if to < from {
		return RangeCount{}, generic.Invalid("range", "end date %s is before start date %s", to, from)
	}

	var rc RangeCount
	var err error
	rc.CheckIns, err = l.store.CountAttendance(ctx, generic.AttendanceFilter{Type: generic.CheckIn, FromDay: from, ToDay: to})
	if err != nil {
		return RangeCount{}, fmt.Errorf("count check-ins: %w", err)
	}
	rc.CheckOuts, err = l.store.CountAttendance(ctx, generic.AttendanceFilter{Type: generic.CheckOut, FromDay: from, ToDay: to})
	if err != nil {
		return RangeCount{}, fmt.Errorf("count check-outs: %w", err)
	}
	return rc, nil
}
