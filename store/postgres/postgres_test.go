package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// ERROR TRANSLATION
// =============================================================================

func TestTranslate_UniqueViolations(t *testing.T) {
	tests := []struct {
		name       string
		constraint string
		check      func(t *testing.T, err error)
	}{
		{
			name:       "attendance day index",
			constraint: "idx_unique_attendance_day",
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, generic.ErrDuplicateAttendance)
			},
		},
		{
			name:       "blocking leave index",
			constraint: "idx_unique_blocking_leave",
			check: func(t *testing.T, err error) {
				var conflict *generic.ConflictError
				require.ErrorAs(t, err, &conflict)
				assert.Equal(t, generic.UserID("u1"), conflict.UserID)
			},
		},
		{
			name:       "email index",
			constraint: "idx_users_email",
			check: func(t *testing.T, err error) {
				assert.True(t, generic.IsConflict(err))
				assert.Contains(t, err.Error(), "email")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pgErr := &pgconn.PgError{Code: codeUniqueViolation, ConstraintName: tt.constraint}
			tt.check(t, translate(fmt.Errorf("insert: %w", pgErr), "u1"))
		})
	}
}

func TestTranslate_SerializationFailureIsConflict(t *testing.T) {
	err := translate(&pgconn.PgError{Code: codeSerializationFailure}, "u1")
	assert.True(t, generic.IsConflict(err))
}

func TestTranslate_PassesThroughDomainAndWrapsOthers(t *testing.T) {
	domain := &generic.InvalidStatusError{RequestID: "l1", Status: generic.LeaveAccepted, Op: "decide"}
	assert.Same(t, domain, translate(domain, ""))

	boom := errors.New("connection reset")
	err := translate(boom, "")
	assert.ErrorIs(t, err, boom)
	assert.False(t, generic.IsClientError(err))

	assert.NoError(t, translate(nil, ""))
}

// =============================================================================
// INTEGRATION (requires TEST_DATABASE_URL)
// =============================================================================

func newIntegrationStore(t *testing.T) *Store {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	store, err := New(dsn, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_Integration_AttendanceAndLeaveGuards(t *testing.T) {
	// GIVEN: A fresh user with one check-in and one pending request
	// WHEN: Duplicates are inserted and the request is decided twice
	// THEN: Indexes and the status guard reject the second attempts

	store := newIntegrationStore(t)
	ctx := context.Background()
	user := generic.UserID(uuid.NewString())
	day := generic.DayKey("2025-03-10")
	now := time.Date(2025, time.March, 10, 2, 0, 0, 0, time.UTC)

	rec := generic.AttendanceRecord{
		ID: generic.RecordID(uuid.NewString()), UserID: user, Time: now, Day: day,
		Type: generic.CheckIn, Status: generic.StatusPresent, Source: generic.SourceScan,
	}
	require.NoError(t, store.InsertAttendance(ctx, rec))
	rec.ID = generic.RecordID(uuid.NewString())
	assert.ErrorIs(t, store.InsertAttendance(ctx, rec), generic.ErrDuplicateAttendance)

	req := generic.LeaveRequest{
		ID: generic.RequestID(uuid.NewString()), UserID: user, Reason: "r",
		Type: generic.AnnualLeave, Date: day.AddDays(1), Status: generic.LeavePending,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, store.InsertLeave(ctx, req))

	dup := req
	dup.ID = generic.RequestID(uuid.NewString())
	assert.True(t, generic.IsConflict(store.InsertLeave(ctx, dup)))

	err := store.WithTx(ctx, func(tx generic.Store) error {
		ok, err := tx.TransitionLeave(ctx, req.ID, generic.LeavePending, generic.LeaveAccepted, "admin", now)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("expected transition")
		}
		return nil
	})
	require.NoError(t, err)

	ok, err := store.TransitionLeave(ctx, req.ID, generic.LeavePending, generic.LeaveRejected, "admin", now)
	require.NoError(t, err)
	assert.False(t, ok)
}
