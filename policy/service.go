/*
Package policy maintains the singleton work-hour policy and its QR token.

PURPOSE:
  The policy is read on every scan and roster, and written rarely by an
  administrator. The Service keeps the last loaded value in an atomic
  cache; callers read Cached/Policy per request and nothing refreshes
  behind their back. Every write goes through the store then refreshes
  the cache.

FIELD GROUPS:
  Rules (times + quotas) and the QR token are updated by separate
  statements, so a token rotation never clobbers a concurrent rules edit
  and vice versa. Within a group the last writer wins.

QR TOKENS:
  A token is an HS256 JWT signed with the QR secret:
    { "pid": <policy id>, "iat": <unix>, "jti": <uuid> }
  The jti makes every rotation unique. Scans compare the presented token
  with the stored one (attendance.Ledger); the signature lets a kiosk or
  gateway reject forged codes without a database round trip.

SEE ALSO:
  - generic/types.go: PolicyConfig, PolicyRules
  - attendance/classifier.go: Consumes the window
*/
package policy

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/warp/attendance-engine/generic"
)

// DefaultID is the id of the singleton row.
const DefaultID = "default"

// DefaultRules are used when bootstrapping an empty database.
func DefaultRules() generic.PolicyRules {
	return generic.PolicyRules{
		StartTime:     "08:00",
		EndTime:       "12:00",
		DismissalTime: "17:00",
		MaxWorkLeave:  14,
		MaxSickLeave:  14,
	}
}

// Service reads and maintains the policy.
type Service struct {
	store  generic.Store
	clock  generic.Clock
	secret []byte
	cache  atomic.Pointer[generic.PolicyConfig]
}

func NewService(store generic.Store, clock generic.Clock, qrSecret []byte) *Service {
	if clock == nil {
		clock = generic.SystemClock{}
	}
	return &Service{store: store, clock: clock, secret: qrSecret}
}

// =============================================================================
// READS
// =============================================================================

// Current loads the policy from the store without touching the cache.
func (s *Service) Current(ctx context.Context) (generic.PolicyConfig, error) {
	p, err := s.store.GetPolicy(ctx)
	if err != nil {
		return generic.PolicyConfig{}, err
	}
	if p == nil {
		return generic.PolicyConfig{}, &generic.NotFoundError{Kind: "policy"}
	}
	return *p, nil
}

// Refresh reloads the cache from the store.
func (s *Service) Refresh(ctx context.Context) (generic.PolicyConfig, error) {
	p, err := s.Current(ctx)
	if err != nil {
		return generic.PolicyConfig{}, err
	}
	s.cache.Store(&p)
	return p, nil
}

// Cached returns the last refreshed policy.
func (s *Service) Cached() (generic.PolicyConfig, bool) {
	p := s.cache.Load()
	if p == nil {
		return generic.PolicyConfig{}, false
	}
	return *p, true
}

// Policy returns the cached policy, loading it on first use.
func (s *Service) Policy(ctx context.Context) (generic.PolicyConfig, error) {
	if p, ok := s.Cached(); ok {
		return p, nil
	}
	return s.Refresh(ctx)
}

// PublicQR returns the current token for display on the scan kiosk.
func (s *Service) PublicQR(ctx context.Context) (string, error) {
	p, err := s.Policy(ctx)
	if err != nil {
		return "", err
	}
	if p.QRToken == "" {
		return "", &generic.NotFoundError{Kind: "qr code"}
	}
	return p.QRToken, nil
}

// =============================================================================
// WRITES
// =============================================================================

// RulesInput is an admin edit. Every field is required; nil quotas are
// reported as missing.
type RulesInput struct {
	StartTime     string
	EndTime       string
	DismissalTime string
	MaxWorkLeave  *int
	MaxSickLeave  *int
}

// Validate checks the input and returns the rules it describes.
func (in RulesInput) Validate() (generic.PolicyRules, error) {
	times := []struct {
		field, value string
	}{
		{"start_time", in.StartTime},
		{"end_time", in.EndTime},
		{"dismissal_time", in.DismissalTime},
	}
	parsed := make([]generic.TimeOfDay, len(times))
	for i, t := range times {
		if t.value == "" {
			return generic.PolicyRules{}, generic.Invalid(t.field, "is required")
		}
		tod, err := generic.ParseTimeOfDay(t.value)
		if err != nil {
			return generic.PolicyRules{}, generic.Invalid(t.field, "%v", err)
		}
		parsed[i] = tod
	}
	if parsed[0].Minutes() > parsed[1].Minutes() {
		return generic.PolicyRules{}, generic.Invalid("end_time", "must not be before start_time")
	}
	if parsed[1].Minutes() > parsed[2].Minutes() {
		return generic.PolicyRules{}, generic.Invalid("dismissal_time", "must not be before end_time")
	}

	if in.MaxWorkLeave == nil {
		return generic.PolicyRules{}, generic.Invalid("max_work_leave", "is required")
	}
	if in.MaxSickLeave == nil {
		return generic.PolicyRules{}, generic.Invalid("max_sick_leave", "is required")
	}
	if *in.MaxWorkLeave < 0 {
		return generic.PolicyRules{}, generic.Invalid("max_work_leave", "must not be negative")
	}
	if *in.MaxSickLeave < 0 {
		return generic.PolicyRules{}, generic.Invalid("max_sick_leave", "must not be negative")
	}

	return generic.PolicyRules{
		StartTime:     parsed[0].String(),
		EndTime:       parsed[1].String(),
		DismissalTime: parsed[2].String(),
		MaxWorkLeave:  *in.MaxWorkLeave,
		MaxSickLeave:  *in.MaxSickLeave,
	}, nil
}

// UpdateRules replaces times and quotas together.
func (s *Service) UpdateRules(ctx context.Context, actor generic.Actor, in RulesInput) (generic.PolicyConfig, error) {
	if err := actor.RequireAdmin("update the policy"); err != nil {
		return generic.PolicyConfig{}, err
	}
	rules, err := in.Validate()
	if err != nil {
		return generic.PolicyConfig{}, err
	}
	if err := s.store.UpdatePolicyRules(ctx, rules, s.clock.Now()); err != nil {
		return generic.PolicyConfig{}, err
	}
	return s.Refresh(ctx)
}

// RotateQRToken issues a new token and invalidates the previous one.
func (s *Service) RotateQRToken(ctx context.Context, actor generic.Actor) (generic.PolicyConfig, error) {
	if err := actor.RequireAdmin("rotate the qr code"); err != nil {
		return generic.PolicyConfig{}, err
	}
	current, err := s.Current(ctx)
	if err != nil {
		return generic.PolicyConfig{}, err
	}
	token, err := s.signToken(current.ID)
	if err != nil {
		return generic.PolicyConfig{}, err
	}
	if err := s.store.UpdateQRToken(ctx, token, s.clock.Now()); err != nil {
		return generic.PolicyConfig{}, err
	}
	return s.Refresh(ctx)
}

// Bootstrap creates the policy from rules if none exists. It reports
// whether it created one.
func (s *Service) Bootstrap(ctx context.Context, rules generic.PolicyRules) (generic.PolicyConfig, bool, error) {
	existing, err := s.store.GetPolicy(ctx)
	if err != nil {
		return generic.PolicyConfig{}, false, err
	}
	if existing != nil {
		p, err := s.Refresh(ctx)
		return p, false, err
	}

	in := RulesInput{
		StartTime:     rules.StartTime,
		EndTime:       rules.EndTime,
		DismissalTime: rules.DismissalTime,
		MaxWorkLeave:  &rules.MaxWorkLeave,
		MaxSickLeave:  &rules.MaxSickLeave,
	}
	if rules, err = in.Validate(); err != nil {
		return generic.PolicyConfig{}, false, err
	}

	token, err := s.signToken(DefaultID)
	if err != nil {
		return generic.PolicyConfig{}, false, err
	}
	now := s.clock.Now()
	p := generic.PolicyConfig{
		ID:            DefaultID,
		StartTime:     rules.StartTime,
		EndTime:       rules.EndTime,
		DismissalTime: rules.DismissalTime,
		MaxWorkLeave:  rules.MaxWorkLeave,
		MaxSickLeave:  rules.MaxSickLeave,
		QRToken:       token,
		UpdatedAt:     now,
		QRRotatedAt:   now,
	}
	err = s.store.CreatePolicy(ctx, p)
	if generic.IsConflict(err) {
		// Lost a bootstrap race; use the winner.
		p, err = s.Refresh(ctx)
		return p, false, err
	}
	if err != nil {
		return generic.PolicyConfig{}, false, err
	}
	s.cache.Store(&p)
	return p, true, nil
}

// =============================================================================
// QR TOKENS
// =============================================================================

// QRClaims are the claims carried by a QR token.
type QRClaims struct {
	PolicyID string `json:"pid"`
	jwt.RegisteredClaims
}

var errNoSecret = errors.New("qr secret is not configured")

func (s *Service) signToken(policyID string) (string, error) {
	if len(s.secret) == 0 {
		return "", errNoSecret
	}
	claims := QRClaims{
		PolicyID: policyID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(s.clock.Now()),
			ID:       uuid.NewString(),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign qr token: %w", err)
	}
	return token, nil
}

// ParseQR verifies a token's signature and returns its claims. A valid
// signature does not mean the token is current; the ledger checks that.
func (s *Service) ParseQR(token string) (*QRClaims, error) {
	claims := &QRClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, &generic.InvalidTokenError{}
	}
	return claims, nil
}
