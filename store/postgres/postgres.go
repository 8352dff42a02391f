/*
Package postgres provides a gorm-backed implementation of generic.TxStore.

PURPOSE:
  Server deployments run against PostgreSQL. The semantics match
  store/sqlite exactly; only the mechanics differ:
  - Schema from gorm AutoMigrate plus one raw partial index
  - Transactions run at SERIALIZABLE so the cross-table checks in
    Submit (attendance vs. leave) cannot interleave
  - Unique and serialization failures come back as *pgconn.PgError and
    are mapped onto the generic error taxonomy

ERROR MAPPING:
  23505 on idx_unique_attendance_day -> generic.ErrDuplicateAttendance
  23505 on idx_unique_blocking_leave -> generic.ConflictError
  23505 on users email               -> generic.ConflictError
  40001 serialization failure        -> generic.ConflictError

SEE ALSO:
  - store/sqlite: Embedded store with the same contract
  - generic/store.go: The contract itself
*/
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/warp/attendance-engine/generic"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// =============================================================================
// MODELS
// =============================================================================

type userRow struct {
	ID           string `gorm:"primaryKey"`
	Name         string `gorm:"not null"`
	Email        string `gorm:"uniqueIndex:idx_users_email;not null"`
	StaffNumber  string
	Position     string
	Role         string `gorm:"not null"`
	PasswordHash string `gorm:"not null"`
	Deleted      bool   `gorm:"column:is_deleted;not null;default:false"`
	CreatedAt    time.Time
}

func (userRow) TableName() string { return "users" }

type policyRow struct {
	ID            string `gorm:"primaryKey"`
	StartTime     string `gorm:"not null"`
	EndTime       string `gorm:"not null"`
	DismissalTime string `gorm:"not null"`
	MaxWorkLeave  int    `gorm:"not null"`
	MaxSickLeave  int    `gorm:"not null"`
	QRToken       string `gorm:"column:qr_token;not null;default:''"`
	UpdatedAt     time.Time
	QRRotatedAt   *time.Time `gorm:"column:qr_rotated_at"`
}

func (policyRow) TableName() string { return "policy" }

type attendanceRow struct {
	ID             string    `gorm:"primaryKey"`
	UserID         string    `gorm:"not null;uniqueIndex:idx_unique_attendance_day,priority:1"`
	Day            string    `gorm:"column:day_key;not null;uniqueIndex:idx_unique_attendance_day,priority:2;index:idx_attendance_day_type,priority:1"`
	Type           string    `gorm:"not null;uniqueIndex:idx_unique_attendance_day,priority:3;index:idx_attendance_day_type,priority:2"`
	Time           time.Time `gorm:"not null"`
	Status         string    `gorm:"not null"`
	LateMinutes    int       `gorm:"not null;default:0"`
	Source         string    `gorm:"not null"`
	LeaveRequestID *string
	CreatedAt      time.Time
}

func (attendanceRow) TableName() string { return "attendance" }

type leaveRow struct {
	ID         string `gorm:"primaryKey"`
	UserID     string `gorm:"not null;index:idx_leave_user_date,priority:1"`
	Reason     string `gorm:"not null"`
	Type       string `gorm:"not null"`
	Date       string `gorm:"not null;index:idx_leave_user_date,priority:2"`
	Attachment *string
	Status     string `gorm:"not null;default:pending;index:idx_leave_status"`
	DecidedBy  *string
	DecidedAt  *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (leaveRow) TableName() string { return "leave_requests" }

// gorm's tag syntax cannot express the status predicate.
const blockingLeaveIndex = `
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_blocking_leave
	ON leave_requests (user_id, date)
	WHERE status IN ('pending', 'accepted')
`

// =============================================================================
// STORE
// =============================================================================

// Store implements generic.TxStore on top of gorm.
type Store struct {
	db *gorm.DB
}

var _ generic.TxStore = (*Store)(nil)

// Options tune the connection.
type Options struct {
	// SlowThreshold logs queries slower than this. Zero means 200ms.
	SlowThreshold time.Duration
	// Verbose logs every statement.
	Verbose bool
}

// New connects to dsn, migrates the schema and returns the store.
func New(dsn string, opts Options) (*Store, error) {
	slow := opts.SlowThreshold
	if slow == 0 {
		slow = 200 * time.Millisecond
	}
	level := logger.Warn
	if opts.Verbose {
		level = logger.Info
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger: logger.New(log.New(os.Stdout, "\r\n", log.LstdFlags), logger.Config{
			SlowThreshold:             slow,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *Store) migrate() error {
	if err := s.db.AutoMigrate(&userRow{}, &policyRow{}, &attendanceRow{}, &leaveRow{}); err != nil {
		return err
	}
	return s.db.Exec(blockingLeaveIndex).Error
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WithTx executes fn within a SERIALIZABLE transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store generic.Store) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
	return translate(err, "")
}

// =============================================================================
// USERS
// =============================================================================

func (s *Store) SaveUser(ctx context.Context, u generic.User) error {
	row := userRow{
		ID:           string(u.ID),
		Name:         u.Name,
		Email:        strings.ToLower(u.Email),
		StaffNumber:  u.StaffNumber,
		Position:     u.Position,
		Role:         string(u.Role),
		PasswordHash: u.PasswordHash,
		Deleted:      u.Deleted,
		CreatedAt:    u.CreatedAt,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email", "staff_number", "position", "role", "password_hash", "is_deleted"}),
	}).Create(&row).Error
	if err != nil {
		return translate(err, u.ID)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id generic.UserID) (*generic.User, error) {
	var row userRow
	err := s.db.WithContext(ctx).Where("id = ?", string(id)).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u := row.toUser()
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*generic.User, error) {
	var row userRow
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(email)).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u := row.toUser()
	return &u, nil
}

func (s *Store) users(ctx context.Context, f generic.UserFilter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&userRow{})
	if !f.IncludeDeleted {
		q = q.Where("is_deleted = ?", false)
	}
	return q
}

func (s *Store) ListUsers(ctx context.Context, f generic.UserFilter) ([]generic.User, error) {
	var rows []userRow
	if err := s.users(ctx, f).Order("name, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	users := make([]generic.User, len(rows))
	for i, r := range rows {
		users[i] = r.toUser()
	}
	return users, nil
}

func (s *Store) CountUsers(ctx context.Context, f generic.UserFilter) (int, error) {
	var n int64
	err := s.users(ctx, f).Count(&n).Error
	return int(n), err
}

func (r userRow) toUser() generic.User {
	return generic.User{
		ID:           generic.UserID(r.ID),
		Name:         r.Name,
		Email:        r.Email,
		StaffNumber:  r.StaffNumber,
		Position:     r.Position,
		Role:         generic.Role(r.Role),
		PasswordHash: r.PasswordHash,
		Deleted:      r.Deleted,
		CreatedAt:    r.CreatedAt,
	}
}

// =============================================================================
// POLICY
// =============================================================================

func (s *Store) GetPolicy(ctx context.Context) (*generic.PolicyConfig, error) {
	var row policyRow
	err := s.db.WithContext(ctx).Order("id").Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}
	p := generic.PolicyConfig{
		ID:            row.ID,
		StartTime:     row.StartTime,
		EndTime:       row.EndTime,
		DismissalTime: row.DismissalTime,
		MaxWorkLeave:  row.MaxWorkLeave,
		MaxSickLeave:  row.MaxSickLeave,
		QRToken:       row.QRToken,
		UpdatedAt:     row.UpdatedAt,
	}
	if row.QRRotatedAt != nil {
		p.QRRotatedAt = *row.QRRotatedAt
	}
	return &p, nil
}

func (s *Store) CreatePolicy(ctx context.Context, p generic.PolicyConfig) error {
	row := policyRow{
		ID:            p.ID,
		StartTime:     p.StartTime,
		EndTime:       p.EndTime,
		DismissalTime: p.DismissalTime,
		MaxWorkLeave:  p.MaxWorkLeave,
		MaxSickLeave:  p.MaxSickLeave,
		QRToken:       p.QRToken,
		UpdatedAt:     p.UpdatedAt,
	}
	if !p.QRRotatedAt.IsZero() {
		at := p.QRRotatedAt
		row.QRRotatedAt = &at
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return translate(err, "")
	}
	return nil
}

func (s *Store) UpdatePolicyRules(ctx context.Context, r generic.PolicyRules, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&policyRow{}).Where("1 = 1").Updates(map[string]any{
		"start_time":     r.StartTime,
		"end_time":       r.EndTime,
		"dismissal_time": r.DismissalTime,
		"max_work_leave": r.MaxWorkLeave,
		"max_sick_leave": r.MaxSickLeave,
		"updated_at":     at,
	})
	if res.Error != nil {
		return fmt.Errorf("failed to update policy: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return &generic.NotFoundError{Kind: "policy"}
	}
	return nil
}

func (s *Store) UpdateQRToken(ctx context.Context, token string, at time.Time) error {
	// UpdateColumns leaves updated_at alone; rules and token are separate groups.
	res := s.db.WithContext(ctx).Model(&policyRow{}).Where("1 = 1").UpdateColumns(map[string]any{
		"qr_token":      token,
		"qr_rotated_at": at,
	})
	if res.Error != nil {
		return fmt.Errorf("failed to rotate qr token: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return &generic.NotFoundError{Kind: "policy"}
	}
	return nil
}

// =============================================================================
// ATTENDANCE
// =============================================================================

func (s *Store) InsertAttendance(ctx context.Context, rec generic.AttendanceRecord) error {
	row := attendanceRow{
		ID:          string(rec.ID),
		UserID:      string(rec.UserID),
		Day:         string(rec.Day),
		Type:        string(rec.Type),
		Time:        rec.Time,
		Status:      string(rec.Status),
		LateMinutes: rec.LateMinutes,
		Source:      string(rec.Source),
		CreatedAt:   rec.CreatedAt,
	}
	if rec.LeaveRequestID != "" {
		id := string(rec.LeaveRequestID)
		row.LeaveRequestID = &id
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return translate(err, rec.UserID)
	}
	return nil
}

func (s *Store) attendanceQuery(ctx context.Context, f generic.AttendanceFilter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&attendanceRow{})
	if f.UserID != "" {
		q = q.Where("user_id = ?", string(f.UserID))
	}
	if f.Type != "" {
		q = q.Where("type = ?", string(f.Type))
	}
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	if f.Source != "" {
		q = q.Where("source = ?", string(f.Source))
	}
	if f.FromDay != "" {
		q = q.Where("day_key >= ?", string(f.FromDay))
	}
	if f.ToDay != "" {
		q = q.Where("day_key <= ?", string(f.ToDay))
	}
	return q
}

func (s *Store) FindAttendance(ctx context.Context, f generic.AttendanceFilter) ([]generic.AttendanceRecord, error) {
	q := s.attendanceQuery(ctx, f).Order("time DESC, id")
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var rows []attendanceRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query attendance: %w", err)
	}
	records := make([]generic.AttendanceRecord, len(rows))
	for i, r := range rows {
		records[i] = generic.AttendanceRecord{
			ID:          generic.RecordID(r.ID),
			UserID:      generic.UserID(r.UserID),
			Time:        r.Time,
			Day:         generic.DayKey(r.Day),
			Type:        generic.AttendanceType(r.Type),
			Status:      generic.AttendanceStatus(r.Status),
			LateMinutes: r.LateMinutes,
			Source:      generic.RecordSource(r.Source),
			CreatedAt:   r.CreatedAt,
		}
		if r.LeaveRequestID != nil {
			records[i].LeaveRequestID = generic.RequestID(*r.LeaveRequestID)
		}
	}
	return records, nil
}

func (s *Store) CountAttendance(ctx context.Context, f generic.AttendanceFilter) (int, error) {
	var n int64
	if err := s.attendanceQuery(ctx, f).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count attendance: %w", err)
	}
	return int(n), nil
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

func (s *Store) InsertLeave(ctx context.Context, req generic.LeaveRequest) error {
	row := leaveRow{
		ID:        string(req.ID),
		UserID:    string(req.UserID),
		Reason:    req.Reason,
		Type:      string(req.Type),
		Date:      string(req.Date),
		Status:    string(req.Status),
		DecidedAt: req.DecidedAt,
		CreatedAt: req.CreatedAt,
		UpdatedAt: req.UpdatedAt,
	}
	if req.Attachment != "" {
		row.Attachment = &req.Attachment
	}
	if req.DecidedBy != "" {
		by := string(req.DecidedBy)
		row.DecidedBy = &by
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		err = translate(err, req.UserID)
		var conflict *generic.ConflictError
		if errors.As(err, &conflict) {
			conflict.Day = req.Date
		}
		return err
	}
	return nil
}

func (s *Store) GetLeave(ctx context.Context, id generic.RequestID) (*generic.LeaveRequest, error) {
	var row leaveRow
	err := s.db.WithContext(ctx).Where("id = ?", string(id)).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get leave request: %w", err)
	}
	r := row.toRequest()
	return &r, nil
}

func (s *Store) leaveQuery(ctx context.Context, f generic.LeaveFilter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&leaveRow{})
	if f.UserID != "" {
		q = q.Where("user_id = ?", string(f.UserID))
	}
	if f.Type != "" {
		q = q.Where("type = ?", string(f.Type))
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		q = q.Where("status IN ?", statuses)
	}
	if f.FromDay != "" {
		q = q.Where("date >= ?", string(f.FromDay))
	}
	if f.ToDay != "" {
		q = q.Where("date <= ?", string(f.ToDay))
	}
	return q
}

func (s *Store) FindLeaves(ctx context.Context, f generic.LeaveFilter) ([]generic.LeaveRequest, error) {
	q := s.leaveQuery(ctx, f).Order("created_at DESC, id")
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var rows []leaveRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query leave requests: %w", err)
	}
	reqs := make([]generic.LeaveRequest, len(rows))
	for i, r := range rows {
		reqs[i] = r.toRequest()
	}
	return reqs, nil
}

func (s *Store) CountLeaves(ctx context.Context, f generic.LeaveFilter) (int, error) {
	var n int64
	if err := s.leaveQuery(ctx, f).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count leave requests: %w", err)
	}
	return int(n), nil
}

func (s *Store) TransitionLeave(ctx context.Context, id generic.RequestID, from, to generic.LeaveStatus, by generic.UserID, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&leaveRow{}).
		Where("id = ? AND status = ?", string(id), string(from)).
		Updates(map[string]any{
			"status":     string(to),
			"decided_by": string(by),
			"decided_at": at,
			"updated_at": at,
		})
	if res.Error != nil {
		return false, translate(res.Error, "")
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) DeleteLeave(ctx context.Context, id generic.RequestID, status generic.LeaveStatus) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("id = ? AND status = ?", string(id), string(status)).
		Delete(&leaveRow{})
	if res.Error != nil {
		return false, fmt.Errorf("failed to delete leave request: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r leaveRow) toRequest() generic.LeaveRequest {
	req := generic.LeaveRequest{
		ID:        generic.RequestID(r.ID),
		UserID:    generic.UserID(r.UserID),
		Reason:    r.Reason,
		Type:      generic.LeaveType(r.Type),
		Date:      generic.DayKey(r.Date),
		Status:    generic.LeaveStatus(r.Status),
		DecidedAt: r.DecidedAt,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.Attachment != nil {
		req.Attachment = *r.Attachment
	}
	if r.DecidedBy != nil {
		req.DecidedBy = generic.UserID(*r.DecidedBy)
	}
	return req
}

// =============================================================================
// ERROR TRANSLATION
// =============================================================================

const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
)

// translate maps Postgres constraint failures onto the generic taxonomy.
// Errors that are already part of the taxonomy pass through.
func translate(err error, user generic.UserID) error {
	if err == nil || generic.IsClientError(err) {
		return err
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return fmt.Errorf("postgres: %w", err)
	}
	switch pgErr.Code {
	case codeUniqueViolation:
		switch pgErr.ConstraintName {
		case "idx_unique_attendance_day":
			return generic.ErrDuplicateAttendance
		case "idx_unique_blocking_leave":
			return &generic.ConflictError{UserID: user, Reason: "a pending or accepted request already exists"}
		case "idx_users_email":
			return &generic.ConflictError{UserID: user, Reason: "email already registered"}
		}
		return &generic.ConflictError{UserID: user, Reason: pgErr.Detail}
	case codeSerializationFailure:
		return &generic.ConflictError{UserID: user, Reason: "concurrent update, try again"}
	}
	return fmt.Errorf("postgres: %w", err)
}
