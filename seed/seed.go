/*
Package seed fills an empty database with demo data.

PURPOSE:
  Gives a fresh install something to log in with: the default policy, an
  admin and a regular user, and a short leave history for the user. The
  history goes through the real workflow (submit, then decide), so the
  derived attendance records exist exactly as they would in production.

ACCOUNTS:
  admin@example.com / 12345678   (admin)
  user@example.com  / 12345678   (user)

IDEMPOTENCE:
  The policy is bootstrapped on every run; it is a no-op when present.
  Users and history are only created when the store has no users.
*/
package seed

import (
	"context"
	"fmt"
	"log"

	"github.com/warp/attendance-engine/account"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/leave"
	"github.com/warp/attendance-engine/policy"
)

const DemoPassword = "12345678"

type Seeder struct {
	Store    generic.Store
	Accounts *account.Service
	Policy   *policy.Service
	Leaves   *leave.Workflow
	Ledger   *attendance.Ledger
}

// Result reports what Run created.
type Result struct {
	PolicyCreated bool
	UsersCreated  bool
	Requests      int
}

// Run seeds the store. It is safe to call on every startup.
func (s *Seeder) Run(ctx context.Context) (Result, error) {
	var res Result

	_, created, err := s.Policy.Bootstrap(ctx, policy.DefaultRules())
	if err != nil {
		return res, fmt.Errorf("bootstrap policy: %w", err)
	}
	res.PolicyCreated = created

	n, err := s.Store.CountUsers(ctx, generic.UserFilter{IncludeDeleted: true})
	if err != nil {
		return res, err
	}
	if n > 0 {
		log.Printf("seed: %d users present, skipping demo accounts", n)
		return res, nil
	}

	admin, err := s.Accounts.Provision(ctx, account.CreateInput{
		Name:        "Administrator",
		Email:       "admin@example.com",
		StaffNumber: "ADM-001",
		Position:    "HR Manager",
		Role:        generic.RoleAdmin,
		Password:    DemoPassword,
	})
	if err != nil {
		return res, fmt.Errorf("seed admin: %w", err)
	}
	user, err := s.Accounts.Provision(ctx, account.CreateInput{
		Name:        "Demo User",
		Email:       "user@example.com",
		StaffNumber: "EMP-001",
		Position:    "Software Engineer",
		Role:        generic.RoleUser,
		Password:    DemoPassword,
	})
	if err != nil {
		return res, fmt.Errorf("seed user: %w", err)
	}
	res.UsersCreated = true

	res.Requests, err = s.history(ctx,
		generic.Actor{UserID: admin.ID, Role: admin.Role},
		generic.Actor{UserID: user.ID, Role: user.Role},
	)
	if err != nil {
		return res, err
	}
	log.Printf("seed: created demo accounts and %d leave requests", res.Requests)
	return res, nil
}

type demoRequest struct {
	offset   int
	typ      generic.LeaveType
	reason   string
	decision generic.LeaveStatus
}

var demoHistory = []demoRequest{
	{offset: -21, typ: generic.AnnualLeave, reason: "Family visit", decision: generic.LeaveAccepted},
	{offset: -10, typ: generic.SickLeave, reason: "Flu", decision: generic.LeaveAccepted},
	{offset: -4, typ: generic.AnnualLeave, reason: "Personal errand", decision: generic.LeaveRejected},
	{offset: 7, typ: generic.AnnualLeave, reason: "Holiday trip"},
}

func (s *Seeder) history(ctx context.Context, admin, user generic.Actor) (int, error) {
	today := s.Ledger.Today()
	for _, d := range demoHistory {
		req, err := s.Leaves.Submit(ctx, user, leave.SubmitInput{
			Reason: d.reason,
			Type:   string(d.typ),
			Date:   weekday(today.AddDays(d.offset)).String(),
		})
		if err != nil {
			return 0, fmt.Errorf("seed leave %s: %w", d.reason, err)
		}
		if d.decision == "" {
			continue
		}
		if _, err := s.Leaves.Decide(ctx, admin, req.ID, d.decision); err != nil {
			return 0, fmt.Errorf("seed decision %s: %w", d.reason, err)
		}
	}
	return len(demoHistory), nil
}

// weekday moves a weekend day forward to Monday.
func weekday(d generic.DayKey) generic.DayKey {
	for d.IsWeekend() {
		d = d.AddDays(1)
	}
	return d
}
