/*
store.go - Persistence contracts for users, policy, attendance and leave

PURPOSE:
  Defines the interface between the domain logic and the database.
  Domain packages never see SQL; they call these methods and, where an
  invariant spans a read and a write, run them inside WithTx.

KEY INTERFACES:
  Store:   Reads and writes over the four entities
  TxStore: Store plus WithTx for atomic check-then-insert

ATOMICITY:
  Three operations need a serialisation point:
  - Scan:     "no record of this type today" + insert
  - Submit:   "no attendance, no blocking request that day" + insert
  - Decide:   Pending -> decision CAS + derived attendance insert
  Implementations guarantee that the Store handed to fn inside WithTx
  sees its own writes and that fn's writes commit or roll back together.
  Both implementations also carry a unique index on
  (user_id, day, type) for attendance as the last line of defence.

MISSING ROWS:
  Getters return (nil, nil) when the row does not exist. Domain packages
  turn that into a NotFoundError.

SOFT DELETE:
  Users are never removed; User.Deleted hides them from ListUsers and
  CountUsers. Their email stays taken.

IMPLEMENTATIONS:
  - store/sqlite:   Default embedded store (go-sqlite3)
  - store/postgres: gorm + pgx for server deployments
*/
package generic

import (
	"context"
	"time"
)

// =============================================================================
// FILTERS
// =============================================================================

// UserFilter selects users. Soft-deleted users are skipped unless
// IncludeDeleted is set.
type UserFilter struct {
	IncludeDeleted bool
}

// AttendanceFilter selects attendance records. Zero fields do not filter.
// FromDay/ToDay are inclusive.
type AttendanceFilter struct {
	UserID  UserID
	Type    AttendanceType
	Status  AttendanceStatus
	Source  RecordSource
	FromDay DayKey
	ToDay   DayKey
	Limit   int
}

// LeaveFilter selects leave requests. Zero fields do not filter.
type LeaveFilter struct {
	UserID   UserID
	Type     LeaveType
	Statuses []LeaveStatus
	FromDay  DayKey
	ToDay    DayKey
	Limit    int
}

// =============================================================================
// STORE
// =============================================================================

type Store interface {
	// Users
	SaveUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, id UserID) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	// GetUser and GetUserByEmail also return soft-deleted users.
	ListUsers(ctx context.Context, f UserFilter) ([]User, error)
	CountUsers(ctx context.Context, f UserFilter) (int, error)

	// Policy (singleton)
	GetPolicy(ctx context.Context) (*PolicyConfig, error)
	CreatePolicy(ctx context.Context, p PolicyConfig) error
	UpdatePolicyRules(ctx context.Context, rules PolicyRules, at time.Time) error
	UpdateQRToken(ctx context.Context, token string, at time.Time) error

	// Attendance (append-only)
	InsertAttendance(ctx context.Context, rec AttendanceRecord) error
	FindAttendance(ctx context.Context, f AttendanceFilter) ([]AttendanceRecord, error)
	CountAttendance(ctx context.Context, f AttendanceFilter) (int, error)

	// Leave requests
	InsertLeave(ctx context.Context, req LeaveRequest) error
	GetLeave(ctx context.Context, id RequestID) (*LeaveRequest, error)
	FindLeaves(ctx context.Context, f LeaveFilter) ([]LeaveRequest, error)
	CountLeaves(ctx context.Context, f LeaveFilter) (int, error)

	// TransitionLeave moves a request from one status to another only if it
	// is still in `from`. Returns false when the guard did not match.
	TransitionLeave(ctx context.Context, id RequestID, from, to LeaveStatus, by UserID, at time.Time) (bool, error)

	// DeleteLeave deletes a request only if it is in `status`.
	DeleteLeave(ctx context.Context, id RequestID, status LeaveStatus) (bool, error)
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
