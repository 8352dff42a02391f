/*
handlers.go - HTTP handlers for the attendance API

PURPOSE:
  Translates HTTP requests into calls on the domain services and their
  results back into JSON. Handlers hold no business rules: they decode,
  validate shape, resolve the actor from the context and delegate.

ENDPOINTS:
  Auth:
    POST   /api/auth/login                 Exchange email/password for a token
    GET    /api/qr-code                    Current QR token for the kiosk

  User:
    GET    /api/user/attendance            Own check-in/check-out history
    POST   /api/user/attendance            Scan a QR code
    GET    /api/user/leave                 Own leave requests
    POST   /api/user/leave                 Submit a leave request
    GET    /api/user/leave/{id}            One own request
    GET    /api/user/overview              Personal overview
    GET    /api/user/information           Policy rules (no token)
    GET    /api/user/profile               Own account
    PUT    /api/user/profile               Edit name, email, position (new token)
    PATCH  /api/user/profile               Change password

  Admin:
    GET    /api/admin/dashboard            Totals for today
    GET    /api/admin/attendance           Roster (?date=&type=)
    GET    /api/admin/attendance/count     Totals (?startDate=&endDate=)
    GET    /api/admin/information          Policy including token
    POST   /api/admin/information          Replace policy rules
    PATCH  /api/admin/information          Rotate QR token
    GET    /api/admin/leave                All requests (?status=&user_id=&type=)
    GET    /api/admin/leave/{id}           One request
    PUT    /api/admin/leave/{id}           Accept or reject
    DELETE /api/admin/leave/{id}           Delete a pending request
    GET    /api/admin/user                 Users with leave counts
    POST   /api/admin/user                 Create a user
    GET    /api/admin/user/{id}            One user with history
    PUT    /api/admin/user/{id}            Partial edit
    DELETE /api/admin/user/{id}            Soft delete

REQUEST FLOW:
  1. Authenticate middleware puts the Actor in the context
  2. Handler decodes and validates the body (validator/v10)
  3. Domain service runs, checking capabilities itself
  4. Result is mapped to a DTO

ERROR HANDLING:
  respondError maps the generic error taxonomy to a status code in one
  place (statusFor). Infrastructure errors are logged and answered with
  500 and no details.

SEE ALSO:
  - server.go: Route registration
  - dto.go: Request/response types
  - auth.go: Token middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/warp/attendance-engine/account"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/leave"
	"github.com/warp/attendance-engine/policy"
	"github.com/warp/attendance-engine/report"
)

// Services are the domain collaborators the handlers delegate to.
type Services struct {
	Ledger   *attendance.Ledger
	Leaves   *leave.Workflow
	Policy   *policy.Service
	Reports  *report.Reporter
	Accounts *account.Service
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	Services
	Tokens *Tokens

	validate *validator.Validate
}

// NewHandler creates a handler over the given services.
func NewHandler(s Services, tokens *Tokens) *Handler {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{Services: s, Tokens: tokens, validate: v}
}

// =============================================================================
// AUTH
// =============================================================================

// Login exchanges credentials for a bearer token.
// POST /api/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	u, err := h.Accounts.Authenticate(r.Context(), req.Email, req.Password)
	if errors.Is(err, account.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "Invalid email or password", nil)
		return
	}
	if err != nil {
		respondError(w, err)
		return
	}

	token, exp, err := h.Tokens.Issue(u)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Token: token, ExpiresAt: exp, User: toUserDTO(*u)})
}

// QRCode returns the current token for the scan kiosk.
// GET /api/qr-code
func (h *Handler) QRCode(w http.ResponseWriter, r *http.Request) {
	token, err := h.Policy.PublicQR(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, QRCodeDTO{QRCode: token})
}

// =============================================================================
// USER: ATTENDANCE
// =============================================================================

// MyAttendance returns the caller's history split by type.
// GET /api/user/attendance
func (h *Handler) MyAttendance(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	hist, err := h.Ledger.History(r.Context(), actor.UserID)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, HistoryDTO{
		CheckIns:  toAttendanceDTOs(hist.CheckIns),
		CheckOuts: toAttendanceDTOs(hist.CheckOuts),
	})
}

// Scan records a check-in or check-out from a QR code.
// POST /api/user/attendance
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, _ := ActorFrom(ctx)

	var req ScanRequest
	if !h.decode(w, r, &req) {
		return
	}
	// Forged tokens are refused before touching the store.
	if _, err := h.Policy.ParseQR(req.QRCode); err != nil {
		respondError(w, err)
		return
	}

	p, err := h.Policy.Policy(ctx)
	if err != nil {
		respondError(w, err)
		return
	}
	rec, err := h.Ledger.RecordScan(ctx, actor.UserID, req.QRCode, p)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, ScanResponse{Message: scanMessage(rec), Record: toAttendanceDTO(*rec)})
}

func scanMessage(rec *generic.AttendanceRecord) string {
	switch {
	case rec.Type == generic.CheckOut:
		return "Checked out"
	case rec.Status == generic.StatusLate:
		return "Checked in late"
	default:
		return "Checked in"
	}
}

// =============================================================================
// USER: LEAVE
// =============================================================================

// MyLeaves lists the caller's requests, newest first.
// GET /api/user/leave
func (h *Handler) MyLeaves(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	reqs, err := h.Leaves.ListMine(r.Context(), actor)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveDTOs(reqs))
}

// SubmitLeave files a new request for the caller.
// POST /api/user/leave
func (h *Handler) SubmitLeave(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	var req SubmitLeaveRequest
	if !h.decode(w, r, &req) {
		return
	}
	created, err := h.Leaves.Submit(r.Context(), actor, leave.SubmitInput{
		Reason:     req.Reason,
		Type:       req.Type,
		Date:       req.Date,
		Attachment: req.Attachment,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLeaveDTO(*created))
}

// GetLeave returns one request. Users only see their own; the admin
// route shares this handler.
// GET /api/user/leave/{id}, GET /api/admin/leave/{id}
func (h *Handler) GetLeave(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	req, err := h.Leaves.Get(r.Context(), actor, generic.RequestID(chi.URLParam(r, "id")))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveDTO(*req))
}

// =============================================================================
// USER: OVERVIEW & POLICY
// =============================================================================

// Overview returns the caller's personal summary.
// GET /api/user/overview
func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, _ := ActorFrom(ctx)

	p, err := h.Policy.Policy(ctx)
	if err != nil {
		respondError(w, err)
		return
	}
	o, err := h.Reports.Overview(ctx, actor, p)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOverviewDTO(o))
}

// Information returns the policy. Admins also get the QR token.
// GET /api/user/information, GET /api/admin/information
func (h *Handler) Information(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	p, err := h.Policy.Policy(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPolicyDTO(p, actor.IsAdmin()))
}

// =============================================================================
// ADMIN: DASHBOARD & ATTENDANCE
// =============================================================================

// Dashboard returns organisation totals for today.
// GET /api/admin/dashboard
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	d, err := h.Reports.Dashboard(r.Context(), actor)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DashboardDTO{
		TotalUsers:      d.TotalUsers,
		ActiveUsers:     d.ActiveUsers,
		TodayAttendance: d.TodayAttendance,
		PendingLeaves:   d.PendingLeaves,
	})
}

// Roster returns every user's status for one day and attendance type.
// Defaults: today, check_in.
// GET /api/admin/attendance?date=YYYY-MM-DD&type=check_in|check_out
func (h *Handler) Roster(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	day := h.Ledger.Today()
	if s := q.Get("date"); s != "" {
		d, err := generic.ParseDate(s, h.Ledger.Location())
		if err != nil {
			respondError(w, generic.Invalid("date", "%v", err))
			return
		}
		day = d
	}

	typ := generic.CheckIn
	if s := q.Get("type"); s != "" {
		typ = generic.AttendanceType(s)
		if !typ.Valid() {
			respondError(w, generic.Invalid("type", "must be %q or %q", generic.CheckIn, generic.CheckOut))
			return
		}
	}

	p, err := h.Policy.Policy(ctx)
	if err != nil {
		respondError(w, err)
		return
	}
	entries, err := h.Ledger.Roster(ctx, day, typ, p)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRosterDTO(day, typ, entries))
}

// AttendanceCount totals check-ins and check-outs over an inclusive range.
// GET /api/admin/attendance/count?startDate=&endDate=
func (h *Handler) AttendanceCount(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	loc := h.Ledger.Location()

	from, err := generic.ParseDate(q.Get("startDate"), loc)
	if err != nil {
		respondError(w, generic.Invalid("startDate", "%v", err))
		return
	}
	to, err := generic.ParseDate(q.Get("endDate"), loc)
	if err != nil {
		respondError(w, generic.Invalid("endDate", "%v", err))
		return
	}

	rc, err := h.Ledger.CountByRange(r.Context(), from, to)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AttendanceCountDTO{
		StartDate: from.String(),
		EndDate:   to.String(),
		CheckIns:  rc.CheckIns,
		CheckOuts: rc.CheckOuts,
	})
}

// =============================================================================
// ADMIN: POLICY
// =============================================================================

// UpdateInformation replaces the policy rules.
// POST /api/admin/information
func (h *Handler) UpdateInformation(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	var req UpdatePolicyRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.Policy.UpdateRules(r.Context(), actor, policy.RulesInput{
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		DismissalTime: req.DismissalTime,
		MaxWorkLeave:  req.MaxWorkLeave,
		MaxSickLeave:  req.MaxSickLeave,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPolicyDTO(p, true))
}

// RotateQRCode issues a new QR token; the old one stops working.
// PATCH /api/admin/information
func (h *Handler) RotateQRCode(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	p, err := h.Policy.RotateQRToken(r.Context(), actor)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPolicyDTO(p, true))
}

// =============================================================================
// ADMIN: LEAVE
// =============================================================================

// ListLeaves returns all requests, optionally filtered.
// GET /api/admin/leave?status=pending,accepted&user_id=&type=
func (h *Handler) ListLeaves(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	q := r.URL.Query()

	f := generic.LeaveFilter{UserID: generic.UserID(q.Get("user_id"))}
	if s := q.Get("status"); s != "" {
		for _, part := range strings.Split(s, ",") {
			st := generic.LeaveStatus(strings.TrimSpace(part))
			if !st.Valid() {
				respondError(w, generic.Invalid("status", "unknown status %q", st))
				return
			}
			f.Statuses = append(f.Statuses, st)
		}
	}
	if s := q.Get("type"); s != "" {
		f.Type = generic.LeaveType(s)
		if !f.Type.Valid() {
			respondError(w, generic.Invalid("type", "must be %q or %q", generic.AnnualLeave, generic.SickLeave))
			return
		}
	}

	reqs, err := h.Leaves.ListAll(r.Context(), actor, f)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveDTOs(reqs))
}

// DecideLeave accepts or rejects a pending request.
// PUT /api/admin/leave/{id}
func (h *Handler) DecideLeave(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	var req DecideLeaveRequest
	if !h.decode(w, r, &req) {
		return
	}
	decided, err := h.Leaves.Decide(r.Context(), actor, generic.RequestID(chi.URLParam(r, "id")), generic.LeaveStatus(req.Status))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveDTO(*decided))
}

// DeleteLeave removes a pending request.
// DELETE /api/admin/leave/{id}
func (h *Handler) DeleteLeave(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	if err := h.Leaves.Delete(r.Context(), actor, generic.RequestID(chi.URLParam(r, "id"))); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ADMIN: USERS
// =============================================================================

// ListUsers returns every user with leave counts.
// GET /api/admin/user
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	list, err := h.Accounts.List(r.Context(), actor)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserSummaryDTOs(list))
}

// CreateUser adds a user; the generated password goes to the notifier.
// POST /api/admin/user
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	var req CreateUserRequest
	if !h.decode(w, r, &req) {
		return
	}
	u, err := h.Accounts.Create(r.Context(), actor, account.CreateInput{
		Name:        req.Name,
		Email:       req.Email,
		StaffNumber: req.StaffNumber,
		Position:    req.Position,
		Role:        generic.Role(req.Role),
	})
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserDTO(*u))
}

// GetUser returns one active user with their attendance and leave history.
// GET /api/admin/user/{id}
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	d, err := h.Accounts.Get(r.Context(), actor, generic.UserID(chi.URLParam(r, "id")))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDetailDTO(d))
}

// UpdateUser edits the given fields of a user.
// PUT /api/admin/user/{id}
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	var req UpdateUserRequest
	if !h.decode(w, r, &req) {
		return
	}
	in := account.UpdateInput{
		Name:        req.Name,
		Email:       req.Email,
		StaffNumber: req.StaffNumber,
		Position:    req.Position,
	}
	if req.Role != nil {
		role := generic.Role(*req.Role)
		in.Role = &role
	}
	u, err := h.Accounts.Update(r.Context(), actor, generic.UserID(chi.URLParam(r, "id")), in)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(*u))
}

// DeleteUser soft-deletes a user.
// DELETE /api/admin/user/{id}
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	if err := h.Accounts.Delete(r.Context(), actor, generic.UserID(chi.URLParam(r, "id"))); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// USER: PROFILE
// =============================================================================

// Profile returns the caller's account.
// GET /api/user/profile
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	u, err := h.Accounts.Profile(r.Context(), actor)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(*u))
}

// UpdateProfile edits the caller's account and returns a fresh token.
// PUT /api/user/profile
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	var req UpdateProfileRequest
	if !h.decode(w, r, &req) {
		return
	}
	u, err := h.Accounts.UpdateProfile(r.Context(), actor, account.ProfileInput{
		Name:     req.Name,
		Email:    req.Email,
		Position: req.Position,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	token, exp, err := h.Tokens.Issue(u)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Token: token, ExpiresAt: exp, User: toUserDTO(*u)})
}

// ChangePassword replaces the caller's password.
// PATCH /api/user/profile
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	var req ChangePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.Accounts.ChangePassword(r.Context(), actor, req.CurrentPassword, req.NewPassword); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password updated"})
}

// =============================================================================
// HELPERS
// =============================================================================

// decode reads a JSON body into dst and validates it. On failure it writes
// the response and returns false.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			respondError(w, generic.Invalid(fe.Field(), "failed %q check", fe.Tag()))
			return false
		}
		respondError(w, err)
		return false
	}
	return true
}

// statusFor maps the domain error taxonomy to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, generic.ErrValidation), errors.Is(err, generic.ErrTooEarly):
		return http.StatusBadRequest
	case errors.Is(err, generic.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, generic.ErrNotFound), errors.Is(err, generic.ErrInvalidToken):
		return http.StatusNotFound
	case errors.Is(err, generic.ErrConflict), errors.Is(err, generic.ErrInvalidStatus):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("api: %v", err)
		writeError(w, status, "Internal server error", nil)
		return
	}
	writeError(w, status, http.StatusText(status), err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
