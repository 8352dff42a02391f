/*
Package leave implements the leave request lifecycle and quota accounting.

PURPOSE:
  A leave request covers one calendar day. Users submit it, an
  administrator accepts or rejects it once, and an accepted request turns
  into a leave-derived check-in on the attendance ledger.

STATE MACHINE:

    submit ──► Pending ──decide──► Accepted  (derived check-in written)
                  │      └──────► Rejected
                  └──delete──► (gone)

  Accepted and Rejected are terminal: they can be neither re-decided nor
  deleted. Transitions are compare-and-swap on the stored status.

INVARIANTS (all checked inside one transaction):
  - No request for a day that already has any attendance record
  - At most one Pending/Accepted request per (user, day)
  - Accepting writes exactly one derived record; if that write conflicts,
    the decision rolls back with it

CAPABILITIES:
  Every method takes the acting generic.Actor and checks it here:
  submit/list-mine for anyone, decide/delete/list-all for admins, get for
  admins or the owner.

SEE ALSO:
  - quota.go: Yearly usage vs. policy limits
  - attendance/ledger.go: RecordLeaveDerived
*/
package leave

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
)

var blockingStatuses = []generic.LeaveStatus{generic.LeavePending, generic.LeaveAccepted}

// Workflow drives leave requests through their lifecycle.
type Workflow struct {
	store  generic.TxStore
	ledger *attendance.Ledger
	clock  generic.Clock
	loc    *time.Location
	newID  func() string
}

func NewWorkflow(store generic.TxStore, ledger *attendance.Ledger, clock generic.Clock) *Workflow {
	if clock == nil {
		clock = generic.SystemClock{}
	}
	return &Workflow{
		store:  store,
		ledger: ledger,
		clock:  clock,
		loc:    ledger.Location(),
		newID:  uuid.NewString,
	}
}

// =============================================================================
// SUBMIT
// =============================================================================

// SubmitInput is the raw submission. Date accepts YYYY-MM-DD or RFC3339.
type SubmitInput struct {
	Reason     string
	Type       string
	Date       string
	Attachment string
}

func (in SubmitInput) parse(loc *time.Location) (generic.LeaveType, generic.DayKey, string, error) {
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return "", "", "", generic.Invalid("reason", "is required")
	}
	if in.Type == "" {
		return "", "", "", generic.Invalid("type", "is required")
	}
	lt := generic.LeaveType(strings.ToLower(in.Type))
	if !lt.Valid() {
		return "", "", "", generic.Invalid("type", "must be %q or %q", generic.AnnualLeave, generic.SickLeave)
	}
	if in.Date == "" {
		return "", "", "", generic.Invalid("date", "is required")
	}
	day, err := generic.ParseDate(in.Date, loc)
	if err != nil {
		return "", "", "", generic.Invalid("date", "%v", err)
	}
	return lt, day, reason, nil
}

// Submit files a Pending request for the actor.
func (w *Workflow) Submit(ctx context.Context, actor generic.Actor, in SubmitInput) (*generic.LeaveRequest, error) {
	if actor.UserID == "" || !actor.Role.Valid() {
		return nil, &generic.ForbiddenError{Actor: actor, Op: "submit leave requests"}
	}
	lt, day, reason, err := in.parse(w.loc)
	if err != nil {
		return nil, err
	}

	now := w.clock.Now()
	req := generic.LeaveRequest{
		ID:         generic.RequestID(w.newID()),
		UserID:     actor.UserID,
		Reason:     reason,
		Type:       lt,
		Date:       day,
		Attachment: in.Attachment,
		Status:     generic.LeavePending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = w.store.WithTx(ctx, func(tx generic.Store) error {
		n, err := tx.CountAttendance(ctx, generic.AttendanceFilter{UserID: actor.UserID, FromDay: day, ToDay: day})
		if err != nil {
			return err
		}
		if n > 0 {
			return &generic.ConflictError{UserID: actor.UserID, Day: day, Reason: "attendance already recorded for that day"}
		}

		n, err = tx.CountLeaves(ctx, generic.LeaveFilter{UserID: actor.UserID, Statuses: blockingStatuses, FromDay: day, ToDay: day})
		if err != nil {
			return err
		}
		if n > 0 {
			return &generic.ConflictError{UserID: actor.UserID, Day: day, Reason: "a pending or accepted request already exists"}
		}

		return tx.InsertLeave(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// =============================================================================
// DECIDE & DELETE
// =============================================================================

// Decide moves a Pending request to Accepted or Rejected.
func (w *Workflow) Decide(ctx context.Context, actor generic.Actor, id generic.RequestID, decision generic.LeaveStatus) (*generic.LeaveRequest, error) {
	if err := actor.RequireAdmin("decide leave requests"); err != nil {
		return nil, err
	}
	if decision != generic.LeaveAccepted && decision != generic.LeaveRejected {
		return nil, generic.Invalid("status", "must be %q or %q", generic.LeaveAccepted, generic.LeaveRejected)
	}

	var decided generic.LeaveRequest
	err := w.store.WithTx(ctx, func(tx generic.Store) error {
		req, err := tx.GetLeave(ctx, id)
		if err != nil {
			return err
		}
		if req == nil {
			return &generic.NotFoundError{Kind: "leave request", ID: string(id)}
		}
		if req.Status != generic.LeavePending {
			return &generic.InvalidStatusError{RequestID: id, Status: req.Status, Op: "decide"}
		}

		now := w.clock.Now()
		ok, err := tx.TransitionLeave(ctx, id, generic.LeavePending, decision, actor.UserID, now)
		if err != nil {
			return err
		}
		if !ok {
			return w.statusError(ctx, tx, id, "decide")
		}

		if decision == generic.LeaveAccepted {
			if _, err := w.ledger.RecordLeaveDerived(ctx, tx, req.UserID, req.Date, req.Type, req.ID); err != nil {
				return err
			}
		}

		decided = *req
		decided.Status = decision
		decided.DecidedBy = actor.UserID
		decided.DecidedAt = &now
		decided.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &decided, nil
}

// Delete removes a Pending request.
func (w *Workflow) Delete(ctx context.Context, actor generic.Actor, id generic.RequestID) error {
	if err := actor.RequireAdmin("delete leave requests"); err != nil {
		return err
	}

	return w.store.WithTx(ctx, func(tx generic.Store) error {
		req, err := tx.GetLeave(ctx, id)
		if err != nil {
			return err
		}
		if req == nil {
			return &generic.NotFoundError{Kind: "leave request", ID: string(id)}
		}
		if req.Status != generic.LeavePending {
			return &generic.InvalidStatusError{RequestID: id, Status: req.Status, Op: "delete"}
		}

		ok, err := tx.DeleteLeave(ctx, id, generic.LeavePending)
		if err != nil {
			return err
		}
		if !ok {
			return w.statusError(ctx, tx, id, "delete")
		}
		return nil
	})
}

// statusError explains why a status-guarded write matched no row.
func (w *Workflow) statusError(ctx context.Context, tx generic.Store, id generic.RequestID, op string) error {
	req, err := tx.GetLeave(ctx, id)
	if err != nil {
		return err
	}
	if req == nil {
		return &generic.NotFoundError{Kind: "leave request", ID: string(id)}
	}
	return &generic.InvalidStatusError{RequestID: id, Status: req.Status, Op: op}
}

// =============================================================================
// READS
// =============================================================================

// Get returns a request to an admin or to its owner. Other users get
// NotFoundError so ids of foreign requests are not confirmed.
func (w *Workflow) Get(ctx context.Context, actor generic.Actor, id generic.RequestID) (*generic.LeaveRequest, error) {
	req, err := w.store.GetLeave(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil || !actor.CanAccess(req.UserID) {
		return nil, &generic.NotFoundError{Kind: "leave request", ID: string(id)}
	}
	return req, nil
}

// ListMine returns the actor's requests, newest first.
func (w *Workflow) ListMine(ctx context.Context, actor generic.Actor) ([]generic.LeaveRequest, error) {
	if actor.UserID == "" {
		return nil, &generic.ForbiddenError{Actor: actor, Op: "list leave requests"}
	}
	return w.store.FindLeaves(ctx, generic.LeaveFilter{UserID: actor.UserID})
}

// ListAll returns every request matching f, newest first.
func (w *Workflow) ListAll(ctx context.Context, actor generic.Actor, f generic.LeaveFilter) ([]generic.LeaveRequest, error) {
	if err := actor.RequireAdmin("list all leave requests"); err != nil {
		return nil, err
	}
	for _, st := range f.Statuses {
		if !st.Valid() {
			return nil, generic.Invalid("status", "unknown status %q", st)
		}
	}
	return w.store.FindLeaves(ctx, f)
}

// PendingCount is the number of requests awaiting a decision.
func (w *Workflow) PendingCount(ctx context.Context, userID generic.UserID) (int, error) {
	return w.store.CountLeaves(ctx, generic.LeaveFilter{UserID: userID, Statuses: []generic.LeaveStatus{generic.LeavePending}})
}
