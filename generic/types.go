/*
Package generic provides the shared kernel of the attendance engine.

PURPOSE:
  This package holds the entities, identifiers, error taxonomy, calendar
  helpers and persistence contracts that every domain package builds on.
  It contains no business rules: classification lives in attendance/,
  the leave state machine and quota accounting live in leave/, policy
  maintenance lives in policy/.

KEY CONCEPTS IN THIS FILE (types.go):
  - PolicyConfig: The organisation's work-hour policy and QR token
  - AttendanceRecord: One check-in or check-out event for a user on a day
  - LeaveRequest: A single-day annual or sick leave application
  - User / Actor: Who owns data and who is acting on it

DESIGN PRINCIPLES:
  1. Records are never edited: attendance is append-only, leave requests
     only move Pending -> Accepted/Rejected once
  2. Day-level grouping always goes through CalendarDay (time.go)
  3. Capabilities are explicit: every workflow call receives an Actor

SEE ALSO:
  - errors.go: Error taxonomy
  - store.go: Persistence contracts
  - time.go: DayKey, TimeOfDay and Clock
*/
package generic

import "time"

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type RecordID string
type RequestID string

// =============================================================================
// ROLES & ACTORS
// =============================================================================

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

func (r Role) Valid() bool { return r == RoleAdmin || r == RoleUser }

// Actor is the identity a request runs as. The authentication collaborator
// resolves it; domain methods only check its capabilities.
type Actor struct {
	UserID UserID
	Role   Role
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// RequireAdmin returns a ForbiddenError unless the actor is an administrator.
func (a Actor) RequireAdmin(op string) error {
	if a.IsAdmin() {
		return nil
	}
	return &ForbiddenError{Actor: a, Op: op}
}

// CanAccess reports whether the actor may read data owned by owner.
func (a Actor) CanAccess(owner UserID) bool {
	return a.IsAdmin() || a.UserID == owner
}

// User is the account owning attendance and leave data. Deleted users
// keep their history but can no longer log in.
type User struct {
	ID           UserID
	Name         string
	Email        string
	StaffNumber  string
	Position     string
	Role         Role
	PasswordHash string
	Deleted      bool
	CreatedAt    time.Time
}

// =============================================================================
// POLICY CONFIG - Singleton work-hour policy
// =============================================================================

// PolicyConfig is the organisation's attendance policy. There is exactly one.
// StartTime/EndTime/DismissalTime are "HH:MM" wall-clock strings in the
// policy timezone.
type PolicyConfig struct {
	ID            string
	StartTime     string
	EndTime       string
	DismissalTime string
	MaxWorkLeave  int
	MaxSickLeave  int
	QRToken       string
	UpdatedAt     time.Time
	QRRotatedAt   time.Time
}

// PolicyRules is the field group replaced atomically by an admin update.
// The QR token is rotated separately.
type PolicyRules struct {
	StartTime     string
	EndTime       string
	DismissalTime string
	MaxWorkLeave  int
	MaxSickLeave  int
}

func (p PolicyConfig) Rules() PolicyRules {
	return PolicyRules{
		StartTime:     p.StartTime,
		EndTime:       p.EndTime,
		DismissalTime: p.DismissalTime,
		MaxWorkLeave:  p.MaxWorkLeave,
		MaxSickLeave:  p.MaxSickLeave,
	}
}

// Window parses the three policy thresholds.
func (p PolicyConfig) Window() (start, end, dismissal TimeOfDay, err error) {
	if start, err = ParseTimeOfDay(p.StartTime); err != nil {
		return
	}
	if end, err = ParseTimeOfDay(p.EndTime); err != nil {
		return
	}
	dismissal, err = ParseTimeOfDay(p.DismissalTime)
	return
}

// =============================================================================
// ATTENDANCE RECORD
// =============================================================================

type AttendanceType string

const (
	CheckIn  AttendanceType = "check_in"
	CheckOut AttendanceType = "check_out"
)

func (t AttendanceType) Valid() bool { return t == CheckIn || t == CheckOut }

type AttendanceStatus string

const (
	StatusPresent         AttendanceStatus = "present"
	StatusLate            AttendanceStatus = "late"
	StatusOnApprovedLeave AttendanceStatus = "on_approved_leave"
	StatusOnSickLeave     AttendanceStatus = "on_sick_leave"
)

// IsLeave reports whether the status was produced by an accepted leave request.
func (s AttendanceStatus) IsLeave() bool {
	return s == StatusOnApprovedLeave || s == StatusOnSickLeave
}

type RecordSource string

const (
	SourceScan  RecordSource = "scan"
	SourceLeave RecordSource = "leave"
)

type AttendanceRecord struct {
	ID             RecordID
	UserID         UserID
	Time           time.Time
	Day            DayKey
	Type           AttendanceType
	Status         AttendanceStatus
	LateMinutes    int
	Source         RecordSource
	LeaveRequestID RequestID
	CreatedAt      time.Time
}

// =============================================================================
// LEAVE REQUEST
// =============================================================================

type LeaveType string

const (
	AnnualLeave LeaveType = "annual"
	SickLeave   LeaveType = "sick"
)

func (t LeaveType) Valid() bool { return t == AnnualLeave || t == SickLeave }

// AttendanceStatus is the status a derived attendance record gets when a
// request of this type is accepted.
func (t LeaveType) AttendanceStatus() AttendanceStatus {
	if t == AnnualLeave {
		return StatusOnApprovedLeave
	}
	return StatusOnSickLeave
}

type LeaveStatus string

const (
	LeavePending  LeaveStatus = "pending"
	LeaveAccepted LeaveStatus = "accepted"
	LeaveRejected LeaveStatus = "rejected"
)

func (s LeaveStatus) Valid() bool {
	return s == LeavePending || s == LeaveAccepted || s == LeaveRejected
}

// IsTerminal reports whether no further transition is allowed.
func (s LeaveStatus) IsTerminal() bool { return s == LeaveAccepted || s == LeaveRejected }

// Blocking reports whether a request in this status occupies its day.
func (s LeaveStatus) Blocking() bool { return s == LeavePending || s == LeaveAccepted }

type LeaveRequest struct {
	ID         RequestID
	UserID     UserID
	Reason     string
	Type       LeaveType
	Date       DayKey
	Attachment string
	Status     LeaveStatus
	DecidedBy  UserID
	DecidedAt  *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
