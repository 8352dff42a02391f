/*
Package account manages the users that own attendance and leave data.

PURPOSE:
  Admins create accounts; the service generates an initial password,
  stores only its bcrypt hash and hands the plain text to the Notifier.
  Login resolves an email/password pair to a user for the API's token
  issuer. Sessions and password resets are not handled here.

UNIQUENESS:
  Email (case-insensitive) and staff number are unique across all users,
  deleted ones included. Both are checked inside one transaction; the
  email index in the store backs it up.

LIFECYCLE:
  Create  -> user stored and credential sent, or neither
  Update  -> admin edits any field, at least one per call
  Delete  -> soft delete; history stays, login and rosters drop the user
  Profile -> users edit their own name, email and position and change
             their password
*/
package account

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/notify"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned by Authenticate for any mismatch.
var ErrInvalidCredentials = errors.New("invalid email or password")

const passwordAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789"

type Service struct {
	store    generic.TxStore
	notifier notify.Notifier
	clock    generic.Clock

	// HashCost is the bcrypt cost for new passwords.
	HashCost int
}

func NewService(store generic.TxStore, notifier notify.Notifier, clock generic.Clock) *Service {
	if clock == nil {
		clock = generic.SystemClock{}
	}
	return &Service{store: store, notifier: notifier, clock: clock, HashCost: bcrypt.DefaultCost}
}

// =============================================================================
// CREATE
// =============================================================================

type CreateInput struct {
	Name        string
	Email       string
	StaffNumber string
	Position    string
	Role        generic.Role
	// Password is generated when empty.
	Password string
}

func (in *CreateInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.StaffNumber = strings.TrimSpace(in.StaffNumber)
	in.Position = strings.TrimSpace(in.Position)

	switch {
	case in.Name == "":
		return generic.Invalid("name", "is required")
	case in.Email == "":
		return generic.Invalid("email", "is required")
	case !strings.Contains(in.Email, "@"):
		return generic.Invalid("email", "is not an email address")
	case in.StaffNumber == "":
		return generic.Invalid("staff_number", "is required")
	case in.Position == "":
		return generic.Invalid("position", "is required")
	}
	if in.Role == "" {
		in.Role = generic.RoleUser
	}
	if !in.Role.Valid() {
		return generic.Invalid("role", "must be %q or %q", generic.RoleAdmin, generic.RoleUser)
	}
	return nil
}

// Create adds a user on behalf of an admin and sends the initial
// credential through the Notifier. The credential is sent inside the
// transaction, so a delivery failure leaves no user behind.
func (s *Service) Create(ctx context.Context, actor generic.Actor, in CreateInput) (*generic.User, error) {
	if err := actor.RequireAdmin("create users"); err != nil {
		return nil, err
	}
	if in.Password == "" {
		pw, err := generatePassword(12)
		if err != nil {
			return nil, err
		}
		in.Password = pw
	}

	password := in.Password
	return s.provision(ctx, in, func(ctx context.Context, u generic.User) error {
		if s.notifier == nil {
			return nil
		}
		cred := notify.Credential{Name: u.Name, Email: u.Email, Password: password}
		if err := s.notifier.SendCredential(ctx, cred); err != nil {
			return fmt.Errorf("send credential: %w", err)
		}
		return nil
	})
}

// Provision stores a user without a capability check or notification.
// Used by seeding, where no admin exists yet.
func (s *Service) Provision(ctx context.Context, in CreateInput) (*generic.User, error) {
	return s.provision(ctx, in, nil)
}

func (s *Service) provision(ctx context.Context, in CreateInput, afterSave func(context.Context, generic.User) error) (*generic.User, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	if err := checkPassword(in.Password); err != nil {
		return nil, err
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, err
	}

	u := generic.User{
		ID:           generic.UserID(uuid.NewString()),
		Name:         in.Name,
		Email:        in.Email,
		StaffNumber:  in.StaffNumber,
		Position:     in.Position,
		Role:         in.Role,
		PasswordHash: hash,
		CreatedAt:    s.clock.Now(),
	}

	err = s.store.WithTx(ctx, func(tx generic.Store) error {
		if err := checkUnique(ctx, tx, u); err != nil {
			return err
		}
		if err := tx.SaveUser(ctx, u); err != nil {
			return err
		}
		if afterSave != nil {
			return afterSave(ctx, u)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// checkUnique fails when another user, deleted or not, already holds u's
// email or staff number.
func checkUnique(ctx context.Context, tx generic.Store, u generic.User) error {
	existing, err := tx.ListUsers(ctx, generic.UserFilter{IncludeDeleted: true})
	if err != nil {
		return err
	}
	for _, e := range existing {
		if e.ID == u.ID {
			continue
		}
		if strings.EqualFold(e.Email, u.Email) {
			return &generic.ConflictError{UserID: e.ID, Reason: "email already registered"}
		}
		if u.StaffNumber != "" && e.StaffNumber == u.StaffNumber {
			return &generic.ConflictError{UserID: e.ID, Reason: "staff number already registered"}
		}
	}
	return nil
}

func checkPassword(pw string) error {
	if len(pw) < 8 {
		return generic.Invalid("password", "must be at least 8 characters")
	}
	return nil
}

func (s *Service) hash(pw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), s.HashCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func generatePassword(n int) (string, error) {
	limit := big.NewInt(int64(len(passwordAlphabet)))
	b := make([]byte, n)
	for i := range b {
		k, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		b[i] = passwordAlphabet[k.Int64()]
	}
	return string(b), nil
}

// =============================================================================
// READS
// =============================================================================

// Summary is a user row on the admin user list.
type Summary struct {
	User           generic.User
	PendingLeaves  int
	ApprovedLeaves int
}

// List returns every active user with their leave counts. Password
// hashes are cleared.
func (s *Service) List(ctx context.Context, actor generic.Actor) ([]Summary, error) {
	if err := actor.RequireAdmin("list users"); err != nil {
		return nil, err
	}
	users, err := s.store.ListUsers(ctx, generic.UserFilter{})
	if err != nil {
		return nil, err
	}

	out := make([]Summary, 0, len(users))
	for _, u := range users {
		u.PasswordHash = ""
		pending, err := s.store.CountLeaves(ctx, generic.LeaveFilter{UserID: u.ID, Statuses: []generic.LeaveStatus{generic.LeavePending}})
		if err != nil {
			return nil, err
		}
		approved, err := s.store.CountLeaves(ctx, generic.LeaveFilter{UserID: u.ID, Statuses: []generic.LeaveStatus{generic.LeaveAccepted}})
		if err != nil {
			return nil, err
		}
		out = append(out, Summary{User: u, PendingLeaves: pending, ApprovedLeaves: approved})
	}
	return out, nil
}

// Authenticate checks an email/password pair. Deleted users cannot log in.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*generic.User, error) {
	u, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, err
	}
	if u == nil || u.Deleted {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// Active returns the user behind a token, or NotFound when the user no
// longer exists or was deleted.
func (s *Service) Active(ctx context.Context, id generic.UserID) (*generic.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil || u.Deleted {
		return nil, &generic.NotFoundError{Kind: "user", ID: string(id)}
	}
	return u, nil
}

// Detail is one user with their attendance and leave history.
type Detail struct {
	User       generic.User
	Attendance []generic.AttendanceRecord
	Leaves     []generic.LeaveRequest
}

// Get returns an active user with their history.
func (s *Service) Get(ctx context.Context, actor generic.Actor, id generic.UserID) (*Detail, error) {
	if err := actor.RequireAdmin("view users"); err != nil {
		return nil, err
	}
	u, err := s.Active(ctx, id)
	if err != nil {
		return nil, err
	}
	u.PasswordHash = ""

	recs, err := s.store.FindAttendance(ctx, generic.AttendanceFilter{UserID: id})
	if err != nil {
		return nil, err
	}
	leaves, err := s.store.FindLeaves(ctx, generic.LeaveFilter{UserID: id})
	if err != nil {
		return nil, err
	}
	return &Detail{User: *u, Attendance: recs, Leaves: leaves}, nil
}

// Profile returns the actor's own account.
func (s *Service) Profile(ctx context.Context, actor generic.Actor) (*generic.User, error) {
	u, err := s.Active(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	u.PasswordHash = ""
	return u, nil
}

// =============================================================================
// UPDATES
// =============================================================================

// UpdateInput is a partial edit. Nil fields are left unchanged.
type UpdateInput struct {
	Name        *string
	Email       *string
	StaffNumber *string
	Position    *string
	Role        *generic.Role
}

func (in UpdateInput) empty() bool {
	return in.Name == nil && in.Email == nil && in.StaffNumber == nil && in.Position == nil && in.Role == nil
}

// apply copies the set fields onto u and validates the result.
func (in UpdateInput) apply(u *generic.User) error {
	if in.Name != nil {
		u.Name = *in.Name
	}
	if in.Email != nil {
		u.Email = *in.Email
	}
	if in.StaffNumber != nil {
		u.StaffNumber = *in.StaffNumber
	}
	if in.Position != nil {
		u.Position = *in.Position
	}
	if in.Role != nil {
		u.Role = *in.Role
	}

	norm := CreateInput{Name: u.Name, Email: u.Email, StaffNumber: u.StaffNumber, Position: u.Position, Role: u.Role}
	if err := norm.normalize(); err != nil {
		return err
	}
	u.Name, u.Email, u.StaffNumber, u.Position, u.Role = norm.Name, norm.Email, norm.StaffNumber, norm.Position, norm.Role
	return nil
}

// Update edits another user's account on behalf of an admin.
func (s *Service) Update(ctx context.Context, actor generic.Actor, id generic.UserID, in UpdateInput) (*generic.User, error) {
	if err := actor.RequireAdmin("update users"); err != nil {
		return nil, err
	}
	if in.empty() {
		return nil, generic.Invalid("", "at least one field must be provided")
	}
	return s.edit(ctx, id, in.apply)
}

// ProfileInput replaces the fields a user may edit on their own account.
type ProfileInput struct {
	Name     string
	Email    string
	Position string
}

// UpdateProfile edits the actor's own account. Staff number and role stay
// with the admin.
func (s *Service) UpdateProfile(ctx context.Context, actor generic.Actor, in ProfileInput) (*generic.User, error) {
	return s.edit(ctx, actor.UserID, func(u *generic.User) error {
		switch {
		case strings.TrimSpace(in.Name) == "":
			return generic.Invalid("name", "is required")
		case strings.TrimSpace(in.Email) == "":
			return generic.Invalid("email", "is required")
		case strings.TrimSpace(in.Position) == "":
			return generic.Invalid("position", "is required")
		}
		return UpdateInput{Name: &in.Name, Email: &in.Email, Position: &in.Position}.apply(u)
	})
}

// ChangePassword replaces the actor's password after checking the current
// one. A wrong current password is a validation error, not a login failure.
func (s *Service) ChangePassword(ctx context.Context, actor generic.Actor, current, next string) error {
	if current == "" {
		return generic.Invalid("current_password", "is required")
	}
	if err := checkPassword(next); err != nil {
		return generic.Invalid("new_password", "must be at least 8 characters")
	}
	hash, err := s.hash(next)
	if err != nil {
		return err
	}
	_, err = s.edit(ctx, actor.UserID, func(u *generic.User) error {
		if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)) != nil {
			return generic.Invalid("current_password", "is incorrect")
		}
		u.PasswordHash = hash
		return nil
	})
	return err
}

// Delete soft-deletes a user. Their attendance and leave history is kept.
func (s *Service) Delete(ctx context.Context, actor generic.Actor, id generic.UserID) error {
	if err := actor.RequireAdmin("delete users"); err != nil {
		return err
	}
	if id == actor.UserID {
		return generic.Invalid("id", "admins cannot delete their own account")
	}
	_, err := s.edit(ctx, id, func(u *generic.User) error {
		u.Deleted = true
		return nil
	})
	return err
}

// edit loads an active user, applies fn and saves the result in one
// transaction. Uniqueness is rechecked against the edited values.
func (s *Service) edit(ctx context.Context, id generic.UserID, fn func(*generic.User) error) (*generic.User, error) {
	var out generic.User
	err := s.store.WithTx(ctx, func(tx generic.Store) error {
		u, err := tx.GetUser(ctx, id)
		if err != nil {
			return err
		}
		if u == nil || u.Deleted {
			return &generic.NotFoundError{Kind: "user", ID: string(id)}
		}
		if err := fn(u); err != nil {
			return err
		}
		if err := checkUnique(ctx, tx, *u); err != nil {
			return err
		}
		if err := tx.SaveUser(ctx, *u); err != nil {
			return err
		}
		out = *u
		return nil
	})
	if err != nil {
		return nil, err
	}
	out.PasswordHash = ""
	return &out, nil
}
