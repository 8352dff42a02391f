/*
handlers_test.go - Tests for the HTTP surface

Tests for:
- Login and token/role gating
- Scan flow through the router (QR token, duplicates, too early)
- Leave submit/decide/get round trip
- Policy update and QR rotation
- User management and profile, deleted users losing access
- Error-to-status mapping
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/account"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/leave"
	"github.com/warp/attendance-engine/policy"
	"github.com/warp/attendance-engine/report"
	"github.com/warp/attendance-engine/store/sqlite"
	"golang.org/x/crypto/bcrypt"
)

var wib = time.FixedZone("WIB", 7*3600)

type testServer struct {
	router *chi.Mux
	clock  *generic.FixedClock
	policy *policy.Service
	tokens *Tokens
	admin  *generic.User
	user   *generic.User
}

func newTestServer(t *testing.T) *testServer {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	clock := &generic.FixedClock{At: time.Date(2025, time.March, 10, 8, 30, 0, 0, wib)}

	ledger := attendance.NewLedger(store, clock, wib)
	workflow := leave.NewWorkflow(store, ledger, clock)
	quota := leave.NewQuota(store)
	policySvc := policy.NewService(store, clock, []byte("qr-secret"))
	accounts := account.NewService(store, nil, clock)
	accounts.HashCost = bcrypt.MinCost

	_, _, err = policySvc.Bootstrap(ctx, policy.DefaultRules())
	require.NoError(t, err)

	adminUser, err := accounts.Provision(ctx, account.CreateInput{
		Name: "Admin", Email: "admin@example.com", StaffNumber: "A-1", Position: "HR",
		Role: generic.RoleAdmin, Password: "12345678",
	})
	require.NoError(t, err)
	staffUser, err := accounts.Provision(ctx, account.CreateInput{
		Name: "Ana", Email: "user@example.com", StaffNumber: "S-1", Position: "Engineer",
		Password: "12345678",
	})
	require.NoError(t, err)

	tokens := NewTokens([]byte("jwt-secret"), time.Hour, clock)
	h := NewHandler(Services{
		Ledger:   ledger,
		Leaves:   workflow,
		Policy:   policySvc,
		Reports:  report.NewReporter(store, ledger, quota, clock),
		Accounts: accounts,
	}, tokens)

	return &testServer{
		router: NewRouter(h, []string{"http://localhost:3000"}),
		clock:  clock,
		policy: policySvc,
		tokens: tokens,
		admin:  adminUser,
		user:   staffUser,
	}
}

func (s *testServer) tokenFor(t *testing.T, u *generic.User) string {
	token, _, err := s.tokens.Issue(u)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) currentQR(t *testing.T) string {
	rec := s.do(t, http.MethodGet, "/api/qr-code", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	return decodeBody[QRCodeDTO](t, rec).QRCode
}

// =============================================================================
// AUTH
// =============================================================================

func TestLogin(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "user@example.com", Password: "12345678"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[LoginResponse](t, rec)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "user", resp.User.Role)

	claims, err := s.tokens.Validate(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, s.user.ID, claims.UserID)

	rec = s.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "user@example.com", Password: "wrong-one"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "not-an-email", Password: "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthGating(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/user/attendance", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/user/attendance", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/admin/dashboard", s.tokenFor(t, s.user), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/admin/dashboard", s.tokenFor(t, s.admin), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTokens_Expired(t *testing.T) {
	s := newTestServer(t)
	token := s.tokenFor(t, s.user)

	s.clock.Set(s.clock.Now().Add(2 * time.Hour))
	_, err := s.tokens.Validate(token)
	assert.Error(t, err)

	rec := s.do(t, http.MethodGet, "/api/user/attendance", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// =============================================================================
// SCAN
// =============================================================================

func TestScan_CheckInThenDuplicate(t *testing.T) {
	// GIVEN: The default policy and a user at 08:30 WIB
	// WHEN: The user scans the current QR code twice
	// THEN: First scan is a present check-in, second is a 409

	s := newTestServer(t)
	token := s.tokenFor(t, s.user)
	qr := s.currentQR(t)

	rec := s.do(t, http.MethodPost, "/api/user/attendance", token, ScanRequest{QRCode: qr})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decodeBody[ScanResponse](t, rec)
	assert.Equal(t, "Checked in", resp.Message)
	assert.Equal(t, "check_in", resp.Record.Type)
	assert.Equal(t, "present", resp.Record.Status)
	assert.Equal(t, "2025-03-10", resp.Record.Date)

	rec = s.do(t, http.MethodPost, "/api/user/attendance", token, ScanRequest{QRCode: qr})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/user/attendance", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	hist := decodeBody[HistoryDTO](t, rec)
	assert.Len(t, hist.CheckIns, 1)
	assert.Empty(t, hist.CheckOuts)
}

func TestScan_LateAndCheckOut(t *testing.T) {
	// GIVEN: A user who logs in at 12:15 and again at 17:00
	// WHEN: Each session scans once
	// THEN: A late check-in, then an on-time check-out

	s := newTestServer(t)
	qr := s.currentQR(t)

	s.clock.Set(time.Date(2025, time.March, 10, 12, 15, 0, 0, wib))
	rec := s.do(t, http.MethodPost, "/api/user/attendance", s.tokenFor(t, s.user), ScanRequest{QRCode: qr})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decodeBody[ScanResponse](t, rec)
	assert.Equal(t, "Checked in late", resp.Message)
	assert.Equal(t, 15, resp.Record.LateMinutes)

	s.clock.Set(time.Date(2025, time.March, 10, 17, 0, 0, 0, wib))
	rec = s.do(t, http.MethodPost, "/api/user/attendance", s.tokenFor(t, s.user), ScanRequest{QRCode: qr})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Checked out", decodeBody[ScanResponse](t, rec).Message)
}

func TestScan_Rejections(t *testing.T) {
	s := newTestServer(t)
	token := s.tokenFor(t, s.user)
	qr := s.currentQR(t)

	rec := s.do(t, http.MethodPost, "/api/user/attendance", token, ScanRequest{QRCode: "forged"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/user/attendance", token, ScanRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	s.clock.Set(time.Date(2025, time.March, 10, 7, 59, 0, 0, wib))
	rec = s.do(t, http.MethodPost, "/api/user/attendance", token, ScanRequest{QRCode: qr})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Rotation invalidates the old token even though its signature is fine.
	s.clock.Set(time.Date(2025, time.March, 10, 8, 30, 0, 0, wib))
	rec = s.do(t, http.MethodPatch, "/api/admin/information", s.tokenFor(t, s.admin), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rotated := decodeBody[PolicyDTO](t, rec).QRCode
	assert.NotEqual(t, qr, rotated)

	rec = s.do(t, http.MethodPost, "/api/user/attendance", token, ScanRequest{QRCode: qr})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(t, http.MethodPost, "/api/user/attendance", token, ScanRequest{QRCode: rotated})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

// =============================================================================
// LEAVE
// =============================================================================

func TestLeave_SubmitDecideGet(t *testing.T) {
	// GIVEN: A user submits an annual leave request
	// WHEN: The admin accepts it
	// THEN: The user sees it accepted, the roster shows leave, a second decision is 409

	s := newTestServer(t)
	userTok := s.tokenFor(t, s.user)
	adminTok := s.tokenFor(t, s.admin)

	rec := s.do(t, http.MethodPost, "/api/user/leave", userTok, SubmitLeaveRequest{Reason: "family", Type: "annual", Date: "2025-03-12"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[LeaveDTO](t, rec)
	assert.Equal(t, "pending", created.Status)

	rec = s.do(t, http.MethodGet, "/api/admin/leave?status=pending", adminTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]LeaveDTO](t, rec), 1)

	rec = s.do(t, http.MethodPut, "/api/admin/leave/"+created.ID, adminTok, DecideLeaveRequest{Status: "accepted"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "accepted", decodeBody[LeaveDTO](t, rec).Status)

	rec = s.do(t, http.MethodPut, "/api/admin/leave/"+created.ID, adminTok, DecideLeaveRequest{Status: "rejected"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/user/leave/"+created.ID, userTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "accepted", decodeBody[LeaveDTO](t, rec).Status)

	rec = s.do(t, http.MethodGet, "/api/admin/attendance?date=2025-03-12", adminTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	roster := decodeBody[RosterDTO](t, rec)
	statuses := map[string]string{}
	for _, e := range roster.Entries {
		statuses[e.User.ID] = e.Status
	}
	assert.Equal(t, "on_approved_leave", statuses[string(s.user.ID)])

	rec = s.do(t, http.MethodDelete, "/api/admin/leave/"+created.ID, adminTok, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLeave_Validation(t *testing.T) {
	s := newTestServer(t)
	token := s.tokenFor(t, s.user)

	rec := s.do(t, http.MethodPost, "/api/user/leave", token, SubmitLeaveRequest{Reason: "r", Type: "vacation", Date: "2025-03-12"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody[ErrorResponse](t, rec).Details, "type")

	rec = s.do(t, http.MethodPost, "/api/user/leave", token, SubmitLeaveRequest{Reason: "r", Type: "sick", Date: "next week"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/admin/leave?status=maybe", s.tokenFor(t, s.admin), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLeave_ForeignRequestIsNotFound(t *testing.T) {
	s := newTestServer(t)
	adminTok := s.tokenFor(t, s.admin)

	rec := s.do(t, http.MethodPost, "/api/user/leave", adminTok, SubmitLeaveRequest{Reason: "r", Type: "annual", Date: "2025-03-14"})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeBody[LeaveDTO](t, rec).ID

	rec = s.do(t, http.MethodGet, "/api/user/leave/"+id, s.tokenFor(t, s.user), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/admin/leave/"+id, adminTok, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

// =============================================================================
// POLICY, REPORTS & USERS
// =============================================================================

func TestInformation(t *testing.T) {
	s := newTestServer(t)
	adminTok := s.tokenFor(t, s.admin)

	rec := s.do(t, http.MethodGet, "/api/user/information", s.tokenFor(t, s.user), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	p := decodeBody[PolicyDTO](t, rec)
	assert.Equal(t, "08:00", p.StartTime)
	assert.Empty(t, p.QRCode)

	rec = s.do(t, http.MethodGet, "/api/admin/information", adminTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decodeBody[PolicyDTO](t, rec).QRCode)

	work, sick := 10, 5
	rec = s.do(t, http.MethodPost, "/api/admin/information", adminTok, UpdatePolicyRequest{
		StartTime: "07:00", EndTime: "08:30", DismissalTime: "16:00", MaxWorkLeave: &work, MaxSickLeave: &sick,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 10, decodeBody[PolicyDTO](t, rec).MaxWorkLeave)

	rec = s.do(t, http.MethodPost, "/api/admin/information", adminTok, UpdatePolicyRequest{
		StartTime: "7:00", EndTime: "08:30", DismissalTime: "16:00", MaxWorkLeave: &work, MaxSickLeave: &sick,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/admin/information", adminTok, UpdatePolicyRequest{
		StartTime: "07:00", EndTime: "08:30", DismissalTime: "16:00", MaxWorkLeave: &work,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody[ErrorResponse](t, rec).Details, "max_sick_leave")
}

func TestOverviewAndCount(t *testing.T) {
	s := newTestServer(t)
	token := s.tokenFor(t, s.user)

	rec := s.do(t, http.MethodPost, "/api/user/attendance", token, ScanRequest{QRCode: s.currentQR(t)})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/user/overview", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	o := decodeBody[OverviewDTO](t, rec)
	assert.Equal(t, 1, o.MonthCheckIns)
	require.NotNil(t, o.TodayCheckIn)
	assert.Nil(t, o.TodayCheckOut)
	assert.Equal(t, 14, o.Quota.RemainingAnnual)

	adminTok := s.tokenFor(t, s.admin)
	rec = s.do(t, http.MethodGet, "/api/admin/attendance/count?startDate=2025-03-01&endDate=2025-03-31", adminTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	count := decodeBody[AttendanceCountDTO](t, rec)
	assert.Equal(t, 1, count.CheckIns)
	assert.Equal(t, 0, count.CheckOuts)

	rec = s.do(t, http.MethodGet, "/api/admin/attendance/count?startDate=2025-03-31&endDate=2025-03-01", adminTok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/admin/attendance/count?startDate=2025-03-01", adminTok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/admin/dashboard", adminTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	d := decodeBody[DashboardDTO](t, rec)
	assert.Equal(t, 2, d.TotalUsers)
	assert.Equal(t, 2, d.ActiveUsers)
	assert.Equal(t, 1, d.TodayAttendance)
}

func TestUsers_CreateAndList(t *testing.T) {
	s := newTestServer(t)
	adminTok := s.tokenFor(t, s.admin)

	rec := s.do(t, http.MethodPost, "/api/admin/user", adminTok, CreateUserRequest{
		Name: "Budi", Email: "budi@example.com", StaffNumber: "S-2", Position: "Designer",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[UserDTO](t, rec)
	assert.Equal(t, "user", created.Role)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = s.do(t, http.MethodPost, "/api/admin/user", adminTok, CreateUserRequest{
		Name: "Budi", Email: "budi@example.com", StaffNumber: "S-3", Position: "Designer",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/admin/user", adminTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]UserSummaryDTO](t, rec), 3)
}

func TestUsers_GetUpdateDelete(t *testing.T) {
	// GIVEN: An admin and a user with one leave request
	// WHEN: The admin reads, edits and deletes the user
	// THEN: Detail carries history, the edit is partial, the delete is soft
	//       and the deleted user's token stops working

	s := newTestServer(t)
	adminTok := s.tokenFor(t, s.admin)
	userTok := s.tokenFor(t, s.user)
	path := "/api/admin/user/" + string(s.user.ID)

	rec := s.do(t, http.MethodPost, "/api/user/leave", userTok, SubmitLeaveRequest{Reason: "trip", Type: "annual", Date: "2025-03-20"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, path, adminTok, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	detail := decodeBody[UserDetailDTO](t, rec)
	assert.Equal(t, "Ana", detail.Name)
	assert.Len(t, detail.Leaves, 1)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = s.do(t, http.MethodGet, path, userTok, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	position := "Lead Engineer"
	rec = s.do(t, http.MethodPut, path, adminTok, UpdateUserRequest{Position: &position})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeBody[UserDTO](t, rec)
	assert.Equal(t, "Lead Engineer", updated.Position)
	assert.Equal(t, "user@example.com", updated.Email)

	rec = s.do(t, http.MethodPut, path, adminTok, UpdateUserRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	taken := "admin@example.com"
	rec = s.do(t, http.MethodPut, path, adminTok, UpdateUserRequest{Email: &taken})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodDelete, path, adminTok, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodDelete, path, adminTok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(t, http.MethodGet, path, adminTok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/user/overview", userTok, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = s.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "user@example.com", Password: "12345678"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/admin/user", adminTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]UserSummaryDTO](t, rec), 1)

	rec = s.do(t, http.MethodGet, "/api/admin/dashboard", adminTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	d := decodeBody[DashboardDTO](t, rec)
	assert.Equal(t, 2, d.TotalUsers)
	assert.Equal(t, 1, d.ActiveUsers)
}

func TestAuth_RoleComesFromStore(t *testing.T) {
	// GIVEN: An admin token issued before the admin is demoted
	// WHEN: The old token calls an admin route
	// THEN: 403, because the role is read per request

	s := newTestServer(t)
	adminTok := s.tokenFor(t, s.admin)

	// A second admin performs the demotion.
	other := s.do(t, http.MethodPost, "/api/admin/user", adminTok, CreateUserRequest{
		Name: "Boss", Email: "boss@example.com", StaffNumber: "A-2", Position: "HR", Role: "admin",
	})
	require.Equal(t, http.StatusCreated, other.Code)
	boss := decodeBody[UserDTO](t, other)
	bossTok := s.tokenFor(t, &generic.User{ID: generic.UserID(boss.ID), Role: generic.RoleAdmin})

	role := "user"
	rec := s.do(t, http.MethodPut, "/api/admin/user/"+string(s.admin.ID), bossTok, UpdateUserRequest{Role: &role})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/admin/dashboard", adminTok, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/user/overview", adminTok, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProfile(t *testing.T) {
	s := newTestServer(t)
	token := s.tokenFor(t, s.user)

	rec := s.do(t, http.MethodGet, "/api/user/profile", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "S-1", decodeBody[UserDTO](t, rec).StaffNumber)

	rec = s.do(t, http.MethodPut, "/api/user/profile", token, UpdateProfileRequest{Name: "Ana", Email: "ana@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/user/profile", token, UpdateProfileRequest{Name: "Ana", Email: "admin@example.com", Position: "Engineer"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/user/profile", token, UpdateProfileRequest{Name: "Ana S", Email: "ana@example.com", Position: "Engineer"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[LoginResponse](t, rec)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "ana@example.com", resp.User.Email)

	rec = s.do(t, http.MethodPatch, "/api/user/profile", resp.Token, ChangePasswordRequest{CurrentPassword: "wrong-pass", NewPassword: "87654321"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, http.MethodPatch, "/api/user/profile", resp.Token, ChangePasswordRequest{CurrentPassword: "12345678", NewPassword: "short"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, http.MethodPatch, "/api/user/profile", resp.Token, ChangePasswordRequest{CurrentPassword: "12345678", NewPassword: "87654321"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "ana@example.com", Password: "87654321"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{generic.Invalid("x", "bad"), http.StatusBadRequest},
		{&generic.TooEarlyError{}, http.StatusBadRequest},
		{&generic.ForbiddenError{}, http.StatusForbidden},
		{&generic.NotFoundError{Kind: "leave request"}, http.StatusNotFound},
		{&generic.InvalidTokenError{}, http.StatusNotFound},
		{&generic.ConflictError{}, http.StatusConflict},
		{generic.ErrDuplicateAttendance, http.StatusConflict},
		{&generic.DuplicateScanError{}, http.StatusConflict},
		{&generic.InvalidStatusError{}, http.StatusConflict},
		{fmt.Errorf("wrapped: %w", generic.ErrConflict), http.StatusConflict},
		{fmt.Errorf("disk on fire"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}
}
