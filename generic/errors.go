/*
errors.go - Error taxonomy shared by every domain package

PURPOSE:
  All error kinds in one place. Each structured error unwraps to a
  sentinel so callers (mostly the API layer) can branch with errors.Is
  and still print a useful message.

ERROR CATEGORIES:
  1. Validation   - malformed or missing input
  2. Conflict     - a uniqueness invariant would be violated
  3. NotFound     - referenced entity absent
  4. InvalidStatus - operation not permitted in current state
  5. InvalidToken - scanned QR token is stale or unknown
  6. TooEarly     - scan before the policy window opens
  7. Forbidden    - actor lacks the capability

  Anything else is an infrastructure failure, wrapped with %w by the
  store and surfaced as a generic failure.

USAGE:
  if errors.Is(err, generic.ErrConflict) {
      // show message, let the user pick another date
  }
*/
package generic

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrValidation    = errors.New("validation failed")
	ErrConflict      = errors.New("conflict")
	ErrNotFound      = errors.New("not found")
	ErrInvalidStatus = errors.New("invalid status")
	ErrInvalidToken  = errors.New("invalid qr token")
	ErrTooEarly      = errors.New("too early")
	ErrForbidden     = errors.New("forbidden")
)

// ErrDuplicateAttendance is the storage-level signal that the
// (user, day, type) unique index rejected an insert. It is a conflict.
var ErrDuplicateAttendance = fmt.Errorf("duplicate attendance on same day: %w", ErrConflict)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func Invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ConflictError is returned when a write would break a uniqueness invariant.
type ConflictError struct {
	UserID UserID
	Day    DayKey
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s: %s", e.Day, e.Reason)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// DuplicateScanError is the conflict raised when a user scans twice for the
// same attendance type on one calendar day.
type DuplicateScanError struct {
	UserID     UserID
	Day        DayKey
	Type       AttendanceType
	ExistingID RecordID
}

func (e *DuplicateScanError) Error() string {
	if e.ExistingID == "" {
		return fmt.Sprintf("already recorded %s on %s", e.Type, e.Day)
	}
	return fmt.Sprintf("already recorded %s on %s (record: %s)", e.Type, e.Day, e.ExistingID)
}

func (e *DuplicateScanError) Unwrap() []error {
	return []error{ErrConflict, ErrDuplicateAttendance}
}

type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Kind + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

type InvalidStatusError struct {
	RequestID RequestID
	Status    LeaveStatus
	Op        string
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("cannot %s request %s in status %s", e.Op, e.RequestID, e.Status)
}

func (e *InvalidStatusError) Unwrap() error { return ErrInvalidStatus }

type InvalidTokenError struct{}

func (e *InvalidTokenError) Error() string  { return "qr code not recognized" }
func (e *InvalidTokenError) Unwrap() error { return ErrInvalidToken }

type TooEarlyError struct {
	At      time.Time
	OpensAt TimeOfDay
}

func (e *TooEarlyError) Error() string {
	return fmt.Sprintf("check-in opens at %s, scanned at %s", e.OpensAt, e.At.Format("15:04"))
}

func (e *TooEarlyError) Unwrap() error { return ErrTooEarly }

type ForbiddenError struct {
	Actor Actor
	Op    string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("%s %s may not %s", e.Actor.Role, e.Actor.UserID, e.Op)
}

func (e *ForbiddenError) Unwrap() error { return ErrForbidden }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is part of the domain taxonomy
// (as opposed to an infrastructure failure).
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrTooEarly) ||
		errors.Is(err, ErrForbidden)
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }
