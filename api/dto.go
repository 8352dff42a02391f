/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types keep the
  domain structs out of the wire contract: password hashes never leave the
  server, days travel as "YYYY-MM-DD", decimals as strings.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request types carry validator/v10 tags for shape checks (required,
  email, oneof). Business rules such as time ordering or date parsing stay
  in the domain packages. Field names in validation errors are the JSON
  names.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/account"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/leave"
	"github.com/warp/attendance-engine/report"
)

// =============================================================================
// AUTH & USERS
// =============================================================================

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      UserDTO   `json:"user"`
}

type UserDTO struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	StaffNumber string    `json:"staff_number"`
	Position    string    `json:"position"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

type UserSummaryDTO struct {
	UserDTO
	PendingLeaves  int `json:"pending_leaves"`
	ApprovedLeaves int `json:"approved_leaves"`
}

type CreateUserRequest struct {
	Name        string `json:"name" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	StaffNumber string `json:"staff_number" validate:"required"`
	Position    string `json:"position" validate:"required"`
	Role        string `json:"role" validate:"omitempty,oneof=admin user"`
}

// UpdateUserRequest is a partial edit; absent fields are left unchanged.
type UpdateUserRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1"`
	Email       *string `json:"email" validate:"omitempty,email"`
	StaffNumber *string `json:"staff_number" validate:"omitempty,min=1"`
	Position    *string `json:"position" validate:"omitempty,min=1"`
	Role        *string `json:"role" validate:"omitempty,oneof=admin user"`
}

type UpdateProfileRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Position string `json:"position" validate:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

// UserDetailDTO is one user with their history, for the admin user page.
type UserDetailDTO struct {
	UserDTO
	Attendance []AttendanceDTO `json:"attendance"`
	Leaves     []LeaveDTO      `json:"leaves"`
}

func toUserDTO(u generic.User) UserDTO {
	return UserDTO{
		ID:          string(u.ID),
		Name:        u.Name,
		Email:       u.Email,
		StaffNumber: u.StaffNumber,
		Position:    u.Position,
		Role:        string(u.Role),
		CreatedAt:   u.CreatedAt,
	}
}

func toUserSummaryDTOs(list []account.Summary) []UserSummaryDTO {
	out := make([]UserSummaryDTO, 0, len(list))
	for _, s := range list {
		out = append(out, UserSummaryDTO{
			UserDTO:        toUserDTO(s.User),
			PendingLeaves:  s.PendingLeaves,
			ApprovedLeaves: s.ApprovedLeaves,
		})
	}
	return out
}

func toUserDetailDTO(d *account.Detail) UserDetailDTO {
	return UserDetailDTO{
		UserDTO:    toUserDTO(d.User),
		Attendance: toAttendanceDTOs(d.Attendance),
		Leaves:     toLeaveDTOs(d.Leaves),
	}
}

// =============================================================================
// ATTENDANCE
// =============================================================================

type ScanRequest struct {
	QRCode string `json:"qr_code" validate:"required"`
}

type ScanResponse struct {
	Message string        `json:"message"`
	Record  AttendanceDTO `json:"record"`
}

type AttendanceDTO struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Time           time.Time `json:"time"`
	Date           string    `json:"date"`
	Type           string    `json:"type"`
	Status         string    `json:"status"`
	LateMinutes    int       `json:"late_minutes"`
	Source         string    `json:"source"`
	LeaveRequestID string    `json:"leave_request_id,omitempty"`
}

type HistoryDTO struct {
	CheckIns  []AttendanceDTO `json:"check_ins"`
	CheckOuts []AttendanceDTO `json:"check_outs"`
}

type AttendanceCountDTO struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	CheckIns  int    `json:"check_ins"`
	CheckOuts int    `json:"check_outs"`
}

type RosterEntryDTO struct {
	User   UserDTO        `json:"user"`
	Status string         `json:"status"`
	Record *AttendanceDTO `json:"record,omitempty"`
}

type RosterDTO struct {
	Date    string           `json:"date"`
	Type    string           `json:"type"`
	Entries []RosterEntryDTO `json:"entries"`
}

func toAttendanceDTO(rec generic.AttendanceRecord) AttendanceDTO {
	return AttendanceDTO{
		ID:             string(rec.ID),
		UserID:         string(rec.UserID),
		Time:           rec.Time,
		Date:           rec.Day.String(),
		Type:           string(rec.Type),
		Status:         string(rec.Status),
		LateMinutes:    rec.LateMinutes,
		Source:         string(rec.Source),
		LeaveRequestID: string(rec.LeaveRequestID),
	}
}

func toAttendanceDTOs(recs []generic.AttendanceRecord) []AttendanceDTO {
	out := make([]AttendanceDTO, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toAttendanceDTO(rec))
	}
	return out
}

func toRosterDTO(day generic.DayKey, typ generic.AttendanceType, entries []attendance.RosterEntry) RosterDTO {
	dto := RosterDTO{Date: day.String(), Type: string(typ), Entries: make([]RosterEntryDTO, 0, len(entries))}
	for _, e := range entries {
		entry := RosterEntryDTO{User: toUserDTO(e.User), Status: e.Status.String()}
		if e.Status.Record != nil {
			rec := toAttendanceDTO(*e.Status.Record)
			entry.Record = &rec
		}
		dto.Entries = append(dto.Entries, entry)
	}
	return dto
}

// =============================================================================
// LEAVE
// =============================================================================

type SubmitLeaveRequest struct {
	Reason     string `json:"reason" validate:"required"`
	Type       string `json:"type" validate:"required,oneof=annual sick"`
	Date       string `json:"date" validate:"required"`
	Attachment string `json:"attachment"`
}

type DecideLeaveRequest struct {
	Status string `json:"status" validate:"required,oneof=accepted rejected"`
}

type LeaveDTO struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Reason     string     `json:"reason"`
	Type       string     `json:"type"`
	Date       string     `json:"date"`
	Attachment string     `json:"attachment,omitempty"`
	Status     string     `json:"status"`
	DecidedBy  string     `json:"decided_by,omitempty"`
	DecidedAt  *time.Time `json:"decided_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func toLeaveDTO(req generic.LeaveRequest) LeaveDTO {
	return LeaveDTO{
		ID:         string(req.ID),
		UserID:     string(req.UserID),
		Reason:     req.Reason,
		Type:       string(req.Type),
		Date:       req.Date.String(),
		Attachment: req.Attachment,
		Status:     string(req.Status),
		DecidedBy:  string(req.DecidedBy),
		DecidedAt:  req.DecidedAt,
		CreatedAt:  req.CreatedAt,
		UpdatedAt:  req.UpdatedAt,
	}
}

func toLeaveDTOs(reqs []generic.LeaveRequest) []LeaveDTO {
	out := make([]LeaveDTO, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, toLeaveDTO(req))
	}
	return out
}

// =============================================================================
// POLICY
// =============================================================================

// UpdatePolicyRequest replaces all five rule fields at once.
type UpdatePolicyRequest struct {
	StartTime     string `json:"start_time" validate:"required"`
	EndTime       string `json:"end_time" validate:"required"`
	DismissalTime string `json:"dismissal_time" validate:"required"`
	MaxWorkLeave  *int   `json:"max_work_leave" validate:"required,min=0"`
	MaxSickLeave  *int   `json:"max_sick_leave" validate:"required,min=0"`
}

// PolicyDTO omits QRCode on the user-facing endpoint.
type PolicyDTO struct {
	StartTime     string     `json:"start_time"`
	EndTime       string     `json:"end_time"`
	DismissalTime string     `json:"dismissal_time"`
	MaxWorkLeave  int        `json:"max_work_leave"`
	MaxSickLeave  int        `json:"max_sick_leave"`
	QRCode        string     `json:"qr_code,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
	QRRotatedAt   *time.Time `json:"qr_rotated_at,omitempty"`
}

type QRCodeDTO struct {
	QRCode string `json:"qr_code"`
}

func toPolicyDTO(p generic.PolicyConfig, withToken bool) PolicyDTO {
	dto := PolicyDTO{
		StartTime:     p.StartTime,
		EndTime:       p.EndTime,
		DismissalTime: p.DismissalTime,
		MaxWorkLeave:  p.MaxWorkLeave,
		MaxSickLeave:  p.MaxSickLeave,
		UpdatedAt:     p.UpdatedAt,
	}
	if withToken {
		dto.QRCode = p.QRToken
		if !p.QRRotatedAt.IsZero() {
			rotated := p.QRRotatedAt
			dto.QRRotatedAt = &rotated
		}
	}
	return dto
}

// =============================================================================
// REPORTS
// =============================================================================

type QuotaDTO struct {
	Year              int             `json:"year"`
	UsedAnnual        int             `json:"used_annual"`
	UsedSick          int             `json:"used_sick"`
	LimitAnnual       int             `json:"limit_annual"`
	LimitSick         int             `json:"limit_sick"`
	RemainingAnnual   int             `json:"remaining_annual"`
	RemainingSick     int             `json:"remaining_sick"`
	AnnualUtilization decimal.Decimal `json:"annual_utilization"`
	SickUtilization   decimal.Decimal `json:"sick_utilization"`
}

type OverviewDTO struct {
	User            UserDTO         `json:"user"`
	MonthCheckIns   int             `json:"month_check_ins"`
	TodayCheckIn    *time.Time      `json:"today_check_in"`
	TodayCheckOut   *time.Time      `json:"today_check_out"`
	LateThisYear    int             `json:"late_this_year"`
	PendingRequests int             `json:"pending_requests"`
	Quota           QuotaDTO        `json:"quota"`
	AttendanceRate  decimal.Decimal `json:"attendance_rate"`
}

type DashboardDTO struct {
	TotalUsers      int `json:"total_users"`
	ActiveUsers     int `json:"active_users"`
	TodayAttendance int `json:"today_attendance"`
	PendingLeaves   int `json:"pending_leaves"`
}

func toQuotaDTO(s leave.Snapshot) QuotaDTO {
	return QuotaDTO{
		Year:              s.Year,
		UsedAnnual:        s.UsedAnnual,
		UsedSick:          s.UsedSick,
		LimitAnnual:       s.LimitAnnual,
		LimitSick:         s.LimitSick,
		RemainingAnnual:   s.RemainingAnnual,
		RemainingSick:     s.RemainingSick,
		AnnualUtilization: s.AnnualUtilization,
		SickUtilization:   s.SickUtilization,
	}
}

func toOverviewDTO(o report.Overview) OverviewDTO {
	return OverviewDTO{
		User:            toUserDTO(o.User),
		MonthCheckIns:   o.MonthCheckIns,
		TodayCheckIn:    o.TodayCheckIn,
		TodayCheckOut:   o.TodayCheckOut,
		LateThisYear:    o.LateThisYear,
		PendingRequests: o.PendingRequests,
		Quota:           toQuotaDTO(o.Quota),
		AttendanceRate:  o.AttendanceRate,
	}
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}
