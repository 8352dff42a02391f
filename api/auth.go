/*
auth.go - Bearer token issuing and request authentication

PURPOSE:
  Turns a successful login into a signed JWT and turns a JWT on an
  incoming request back into a generic.Actor stored in the request
  context. Handlers read the actor with ActorFrom and pass it to the
  domain services, which make their own capability checks.

TOKENS:
  HS256, claims: uid, role, iat, exp. The secret and lifetime come from
  config (JWT_SECRET, JWT_EXPIRATION). Tokens are only read from the
  Authorization header.

MIDDLEWARE:
  Authenticate  401 unless a valid bearer token names an active user.
                The role comes from the store, so demotions and deletes
                take effect before the token expires.
  RequireRole   403 unless the actor has one of the given roles

SEE ALSO:
  - server.go: Where the middleware is mounted
  - account/account.go: Password verification
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/warp/attendance-engine/generic"
)

// Claims are the claims carried by a bearer token.
type Claims struct {
	UserID generic.UserID `json:"uid"`
	Role   generic.Role   `json:"role"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies bearer tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	clock  generic.Clock
}

func NewTokens(secret []byte, ttl time.Duration, clock generic.Clock) *Tokens {
	if clock == nil {
		clock = generic.SystemClock{}
	}
	return &Tokens{secret: secret, ttl: ttl, clock: clock}
}

// Issue returns a signed token for u and its expiry.
func (t *Tokens) Issue(u *generic.User) (string, time.Time, error) {
	now := t.clock.Now()
	exp := now.Add(t.ttl)
	claims := &Claims{
		UserID: u.ID,
		Role:   u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(u.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Validate parses a token and checks its signature and expiry.
func (t *Tokens) Validate(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.clock.Now),
	)
	if err != nil {
		return nil, err
	}
	if claims.UserID == "" || !claims.Role.Valid() {
		return nil, errors.New("token carries no identity")
	}
	return claims, nil
}

// =============================================================================
// CONTEXT
// =============================================================================

type contextKey string

const actorKey contextKey = "actor"

func withActor(ctx context.Context, a generic.Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

// ActorFrom returns the authenticated actor, if any.
func ActorFrom(ctx context.Context) (generic.Actor, bool) {
	a, ok := ctx.Value(actorKey).(generic.Actor)
	return a, ok
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

func bearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// Authenticate rejects requests without a valid bearer token for an
// active user.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			writeError(w, http.StatusUnauthorized, "Authentication required", nil)
			return
		}
		claims, err := h.Tokens.Validate(raw)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid or expired token", err)
			return
		}
		u, err := h.Accounts.Active(r.Context(), claims.UserID)
		if generic.IsNotFound(err) {
			writeError(w, http.StatusUnauthorized, "Account no longer active", nil)
			return
		}
		if err != nil {
			respondError(w, err)
			return
		}
		actor := generic.Actor{UserID: u.ID, Role: u.Role}
		next.ServeHTTP(w, r.WithContext(withActor(r.Context(), actor)))
	})
}

// RequireRole only lets actors with one of roles through. Mount it after
// Authenticate.
func RequireRole(roles ...generic.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFrom(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "Authentication required", nil)
				return
			}
			for _, role := range roles {
				if actor.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "Insufficient permissions", nil)
		})
	}
}
