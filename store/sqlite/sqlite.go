/*
Package sqlite provides a SQLite-backed implementation of generic.TxStore.

PURPOSE:
  Default persistence for the attendance engine. Hand-written SQL over
  database/sql and go-sqlite3; the Postgres store (store/postgres) keeps
  the same semantics behind gorm.

KEY TABLES:
  users:          Accounts (email unique, soft-deleted via is_deleted)
  policy:         Singleton work-hour policy and current QR token
  attendance:     Append-only check-in / check-out records
  leave_requests: Single-day leave applications

INDEXES:
  - idx_unique_attendance_day: one record per (user, day, type). The ledger
    checks first inside a transaction; the index catches anything else.
  - idx_unique_blocking_leave: one pending/accepted request per (user, day).
    Rejected rows are outside the partial index so resubmission works.
  - idx_attendance_day_type, idx_leave_user_date, idx_leave_status: rosters,
    quota counts and the admin list.

CONCURRENCY:
  One connection (SetMaxOpenConns(1)) and a sync.RWMutex. Public methods
  take the lock; the Store handed to WithTx callbacks runs on the *sql.Tx
  without touching the mutex, so callbacks can read and write freely while
  the transaction holds the write lock.

TIME FORMAT:
  Instants are stored as fixed-width RFC3339 UTC text, so text order is
  time order. Days are stored as the DayKey string ("YYYY-MM-DD") and
  range filters are plain string compares.

USAGE:
  store, err := sqlite.New("./data/attendance.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/warp/attendance-engine/generic"
)

// Store implements generic.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ generic.TxStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A second connection to ":memory:" would be a different database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		staff_number TEXT,
		position TEXT,
		role TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		is_deleted INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS policy (
		id TEXT PRIMARY KEY,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		dismissal_time TEXT NOT NULL,
		max_work_leave INTEGER NOT NULL,
		max_sick_leave INTEGER NOT NULL,
		qr_token TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL,
		qr_rotated_at TEXT
	);

	CREATE TABLE IF NOT EXISTS attendance (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		time TEXT NOT NULL,
		day_key TEXT NOT NULL,
		type TEXT NOT NULL,
		status TEXT NOT NULL,
		late_minutes INTEGER NOT NULL DEFAULT 0,
		source TEXT NOT NULL,
		leave_request_id TEXT,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_attendance_day
		ON attendance(user_id, day_key, type);
	CREATE INDEX IF NOT EXISTS idx_attendance_day_type
		ON attendance(day_key, type);

	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		reason TEXT NOT NULL,
		type TEXT NOT NULL,
		date TEXT NOT NULL,
		attachment TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		decided_by TEXT,
		decided_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_blocking_leave
		ON leave_requests(user_id, date)
		WHERE status IN ('pending', 'accepted');
	CREATE INDEX IF NOT EXISTS idx_leave_user_date
		ON leave_requests(user_id, date);
	CREATE INDEX IF NOT EXISTS idx_leave_status
		ON leave_requests(status);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	// Databases created before soft delete lack the flag.
	return s.addColumn("users", "is_deleted", "INTEGER NOT NULL DEFAULT 0")
}

func (s *Store) addColumn(table, column, decl string) error {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?", table, column).Scan(&n)
	if err != nil {
		return fmt.Errorf("failed to inspect %s: %w", table, err)
	}
	if n > 0 {
		return nil
	}
	_, err = s.db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, decl))
	return err
}

// =============================================================================
// LOCKING WRAPPERS (generic.Store interface)
// =============================================================================

func (s *Store) read() (*queries, func()) {
	s.mu.RLock()
	return &queries{q: s.db}, s.mu.RUnlock
}

func (s *Store) write() (*queries, func()) {
	s.mu.Lock()
	return &queries{q: s.db}, s.mu.Unlock
}

func (s *Store) SaveUser(ctx context.Context, u generic.User) error {
	q, done := s.write()
	defer done()
	return q.SaveUser(ctx, u)
}

func (s *Store) GetUser(ctx context.Context, id generic.UserID) (*generic.User, error) {
	q, done := s.read()
	defer done()
	return q.GetUser(ctx, id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*generic.User, error) {
	q, done := s.read()
	defer done()
	return q.GetUserByEmail(ctx, email)
}

func (s *Store) ListUsers(ctx context.Context, f generic.UserFilter) ([]generic.User, error) {
	q, done := s.read()
	defer done()
	return q.ListUsers(ctx, f)
}

func (s *Store) CountUsers(ctx context.Context, f generic.UserFilter) (int, error) {
	q, done := s.read()
	defer done()
	return q.CountUsers(ctx, f)
}

func (s *Store) GetPolicy(ctx context.Context) (*generic.PolicyConfig, error) {
	q, done := s.read()
	defer done()
	return q.GetPolicy(ctx)
}

func (s *Store) CreatePolicy(ctx context.Context, p generic.PolicyConfig) error {
	q, done := s.write()
	defer done()
	return q.CreatePolicy(ctx, p)
}

func (s *Store) UpdatePolicyRules(ctx context.Context, rules generic.PolicyRules, at time.Time) error {
	q, done := s.write()
	defer done()
	return q.UpdatePolicyRules(ctx, rules, at)
}

func (s *Store) UpdateQRToken(ctx context.Context, token string, at time.Time) error {
	q, done := s.write()
	defer done()
	return q.UpdateQRToken(ctx, token, at)
}

func (s *Store) InsertAttendance(ctx context.Context, rec generic.AttendanceRecord) error {
	q, done := s.write()
	defer done()
	return q.InsertAttendance(ctx, rec)
}

func (s *Store) FindAttendance(ctx context.Context, f generic.AttendanceFilter) ([]generic.AttendanceRecord, error) {
	q, done := s.read()
	defer done()
	return q.FindAttendance(ctx, f)
}

func (s *Store) CountAttendance(ctx context.Context, f generic.AttendanceFilter) (int, error) {
	q, done := s.read()
	defer done()
	return q.CountAttendance(ctx, f)
}

func (s *Store) InsertLeave(ctx context.Context, req generic.LeaveRequest) error {
	q, done := s.write()
	defer done()
	return q.InsertLeave(ctx, req)
}

func (s *Store) GetLeave(ctx context.Context, id generic.RequestID) (*generic.LeaveRequest, error) {
	q, done := s.read()
	defer done()
	return q.GetLeave(ctx, id)
}

func (s *Store) FindLeaves(ctx context.Context, f generic.LeaveFilter) ([]generic.LeaveRequest, error) {
	q, done := s.read()
	defer done()
	return q.FindLeaves(ctx, f)
}

func (s *Store) CountLeaves(ctx context.Context, f generic.LeaveFilter) (int, error) {
	q, done := s.read()
	defer done()
	return q.CountLeaves(ctx, f)
}

func (s *Store) TransitionLeave(ctx context.Context, id generic.RequestID, from, to generic.LeaveStatus, by generic.UserID, at time.Time) (bool, error) {
	q, done := s.write()
	defer done()
	return q.TransitionLeave(ctx, id, from, to, by, at)
}

func (s *Store) DeleteLeave(ctx context.Context, id generic.RequestID, status generic.LeaveStatus) (bool, error) {
	q, done := s.write()
	defer done()
	return q.DeleteLeave(ctx, id, status)
}

// =============================================================================
// TRANSACTIONAL STORE (generic.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store generic.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&queries{q: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// =============================================================================
// QUERIES - Lock-free SQL shared by *sql.DB and *sql.Tx
// =============================================================================

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	q querier
}

var _ generic.Store = (*queries)(nil)

// ---- users ------------------------------------------------------------------

const userColumns = `id, name, email, staff_number, position, role, password_hash, is_deleted, created_at`

func (s *queries) SaveUser(ctx context.Context, u generic.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			staff_number = excluded.staff_number,
			position = excluded.position,
			role = excluded.role,
			password_hash = excluded.password_hash,
			is_deleted = excluded.is_deleted
	`
	createdAt := u.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.q.ExecContext(ctx, query,
		u.ID, u.Name, strings.ToLower(u.Email), u.StaffNumber, u.Position,
		u.Role, u.PasswordHash, u.Deleted, formatTime(createdAt),
	)
	if isUniqueConstraintError(err) {
		return &generic.ConflictError{UserID: u.ID, Reason: "email already registered"}
	}
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

func (s *queries) GetUser(ctx context.Context, id generic.UserID) (*generic.User, error) {
	row := s.q.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
	return scanUser(row)
}

func (s *queries) GetUserByEmail(ctx context.Context, email string) (*generic.User, error) {
	row := s.q.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", strings.ToLower(email))
	return scanUser(row)
}

func userWhere(f generic.UserFilter) string {
	if f.IncludeDeleted {
		return ""
	}
	return " WHERE is_deleted = 0"
}

func (s *queries) ListUsers(ctx context.Context, f generic.UserFilter) ([]generic.User, error) {
	rows, err := s.q.QueryContext(ctx, "SELECT "+userColumns+" FROM users"+userWhere(f)+" ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []generic.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (s *queries) CountUsers(ctx context.Context, f generic.UserFilter) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM users"+userWhere(f)).Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*generic.User, error) {
	var (
		u                     generic.User
		staffNumber, position sql.NullString
		createdAt             string
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &staffNumber, &position, &u.Role, &u.PasswordHash, &u.Deleted, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	u.StaffNumber = staffNumber.String
	u.Position = position.String
	u.CreatedAt = parseTime(createdAt)
	return &u, nil
}

// ---- policy -----------------------------------------------------------------

func (s *queries) GetPolicy(ctx context.Context) (*generic.PolicyConfig, error) {
	var (
		p           generic.PolicyConfig
		updatedAt   string
		qrRotatedAt sql.NullString
	)
	err := s.q.QueryRowContext(ctx, `
		SELECT id, start_time, end_time, dismissal_time, max_work_leave, max_sick_leave,
		       qr_token, updated_at, qr_rotated_at
		FROM policy ORDER BY id LIMIT 1
	`).Scan(&p.ID, &p.StartTime, &p.EndTime, &p.DismissalTime, &p.MaxWorkLeave, &p.MaxSickLeave,
		&p.QRToken, &updatedAt, &qrRotatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}
	p.UpdatedAt = parseTime(updatedAt)
	if qrRotatedAt.Valid {
		p.QRRotatedAt = parseTime(qrRotatedAt.String)
	}
	return &p, nil
}

func (s *queries) CreatePolicy(ctx context.Context, p generic.PolicyConfig) error {
	var rotated sql.NullString
	if !p.QRRotatedAt.IsZero() {
		rotated = nullString(formatTime(p.QRRotatedAt))
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO policy (id, start_time, end_time, dismissal_time, max_work_leave, max_sick_leave,
		                    qr_token, updated_at, qr_rotated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.StartTime, p.EndTime, p.DismissalTime, p.MaxWorkLeave, p.MaxSickLeave,
		p.QRToken, formatTime(p.UpdatedAt), rotated)
	if isUniqueConstraintError(err) {
		return &generic.ConflictError{Reason: "policy already exists"}
	}
	if err != nil {
		return fmt.Errorf("failed to create policy: %w", err)
	}
	return nil
}

func (s *queries) UpdatePolicyRules(ctx context.Context, r generic.PolicyRules, at time.Time) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE policy SET
			start_time = ?, end_time = ?, dismissal_time = ?,
			max_work_leave = ?, max_sick_leave = ?, updated_at = ?
	`, r.StartTime, r.EndTime, r.DismissalTime, r.MaxWorkLeave, r.MaxSickLeave, formatTime(at))
	if err != nil {
		return fmt.Errorf("failed to update policy: %w", err)
	}
	return requireAffected(res, "policy")
}

func (s *queries) UpdateQRToken(ctx context.Context, token string, at time.Time) error {
	res, err := s.q.ExecContext(ctx,
		"UPDATE policy SET qr_token = ?, qr_rotated_at = ?", token, formatTime(at))
	if err != nil {
		return fmt.Errorf("failed to rotate qr token: %w", err)
	}
	return requireAffected(res, "policy")
}

func requireAffected(res sql.Result, kind string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &generic.NotFoundError{Kind: kind}
	}
	return nil
}

// ---- attendance -------------------------------------------------------------

const attendanceColumns = `id, user_id, time, day_key, type, status, late_minutes, source, leave_request_id, created_at`

func (s *queries) InsertAttendance(ctx context.Context, rec generic.AttendanceRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO attendance (`+attendanceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.UserID, formatTime(rec.Time), rec.Day, rec.Type, rec.Status,
		rec.LateMinutes, rec.Source, nullString(string(rec.LeaveRequestID)), formatTime(createdAt))
	if isUniqueConstraintError(err) && strings.Contains(err.Error(), "attendance.") {
		return generic.ErrDuplicateAttendance
	}
	if err != nil {
		return fmt.Errorf("failed to insert attendance: %w", err)
	}
	return nil
}

func attendanceWhere(f generic.AttendanceFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.Type != "" {
		conds = append(conds, "type = ?")
		args = append(args, f.Type)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, f.Status)
	}
	if f.Source != "" {
		conds = append(conds, "source = ?")
		args = append(args, f.Source)
	}
	if f.FromDay != "" {
		conds = append(conds, "day_key >= ?")
		args = append(args, f.FromDay)
	}
	if f.ToDay != "" {
		conds = append(conds, "day_key <= ?")
		args = append(args, f.ToDay)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// FindAttendance returns matching records, newest first.
func (s *queries) FindAttendance(ctx context.Context, f generic.AttendanceFilter) ([]generic.AttendanceRecord, error) {
	where, args := attendanceWhere(f)
	query := "SELECT " + attendanceColumns + " FROM attendance" + where + " ORDER BY time DESC, id"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance: %w", err)
	}
	defer rows.Close()

	var records []generic.AttendanceRecord
	for rows.Next() {
		var (
			rec            generic.AttendanceRecord
			at, createdAt  string
			leaveRequestID sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.UserID, &at, &rec.Day, &rec.Type, &rec.Status,
			&rec.LateMinutes, &rec.Source, &leaveRequestID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan attendance: %w", err)
		}
		rec.Time = parseTime(at)
		rec.CreatedAt = parseTime(createdAt)
		rec.LeaveRequestID = generic.RequestID(leaveRequestID.String)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *queries) CountAttendance(ctx context.Context, f generic.AttendanceFilter) (int, error) {
	where, args := attendanceWhere(f)
	var n int
	if err := s.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM attendance"+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count attendance: %w", err)
	}
	return n, nil
}

// ---- leave requests ---------------------------------------------------------

const leaveColumns = `id, user_id, reason, type, date, attachment, status, decided_by, decided_at, created_at, updated_at`

func (s *queries) InsertLeave(ctx context.Context, req generic.LeaveRequest) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO leave_requests (`+leaveColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, req.ID, req.UserID, req.Reason, req.Type, req.Date, nullString(req.Attachment),
		req.Status, nullString(string(req.DecidedBy)), nullTime(req.DecidedAt),
		formatTime(req.CreatedAt), formatTime(req.UpdatedAt))
	if isUniqueConstraintError(err) && strings.Contains(err.Error(), "leave_requests.") {
		return &generic.ConflictError{UserID: req.UserID, Day: req.Date, Reason: "a pending or accepted request already exists"}
	}
	if err != nil {
		return fmt.Errorf("failed to insert leave request: %w", err)
	}
	return nil
}

func (s *queries) GetLeave(ctx context.Context, id generic.RequestID) (*generic.LeaveRequest, error) {
	rows, err := s.q.QueryContext(ctx, "SELECT "+leaveColumns+" FROM leave_requests WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get leave request: %w", err)
	}
	reqs, err := scanLeaves(rows)
	if err != nil || len(reqs) == 0 {
		return nil, err
	}
	return &reqs[0], nil
}

func leaveWhere(f generic.LeaveFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.Type != "" {
		conds = append(conds, "type = ?")
		args = append(args, f.Type)
	}
	if len(f.Statuses) > 0 {
		marks := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			marks[i] = "?"
			args = append(args, st)
		}
		conds = append(conds, "status IN ("+strings.Join(marks, ", ")+")")
	}
	if f.FromDay != "" {
		conds = append(conds, "date >= ?")
		args = append(args, f.FromDay)
	}
	if f.ToDay != "" {
		conds = append(conds, "date <= ?")
		args = append(args, f.ToDay)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// FindLeaves returns matching requests, most recently created first.
func (s *queries) FindLeaves(ctx context.Context, f generic.LeaveFilter) ([]generic.LeaveRequest, error) {
	where, args := leaveWhere(f)
	query := "SELECT " + leaveColumns + " FROM leave_requests" + where + " ORDER BY created_at DESC, id"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query leave requests: %w", err)
	}
	return scanLeaves(rows)
}

func (s *queries) CountLeaves(ctx context.Context, f generic.LeaveFilter) (int, error) {
	where, args := leaveWhere(f)
	var n int
	if err := s.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM leave_requests"+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count leave requests: %w", err)
	}
	return n, nil
}

func (s *queries) TransitionLeave(ctx context.Context, id generic.RequestID, from, to generic.LeaveStatus, by generic.UserID, at time.Time) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE leave_requests
		SET status = ?, decided_by = ?, decided_at = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, to, nullString(string(by)), formatTime(at), formatTime(at), id, from)
	if isUniqueConstraintError(err) {
		return false, &generic.ConflictError{Reason: "a pending or accepted request already exists for that day"}
	}
	if err != nil {
		return false, fmt.Errorf("failed to update leave request: %w", err)
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (s *queries) DeleteLeave(ctx context.Context, id generic.RequestID, status generic.LeaveStatus) (bool, error) {
	res, err := s.q.ExecContext(ctx, "DELETE FROM leave_requests WHERE id = ? AND status = ?", id, status)
	if err != nil {
		return false, fmt.Errorf("failed to delete leave request: %w", err)
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func scanLeaves(rows *sql.Rows) ([]generic.LeaveRequest, error) {
	defer rows.Close()

	var reqs []generic.LeaveRequest
	for rows.Next() {
		var (
			r                     generic.LeaveRequest
			attachment, decidedBy sql.NullString
			decidedAt             sql.NullString
			createdAt, updatedAt  string
		)
		if err := rows.Scan(&r.ID, &r.UserID, &r.Reason, &r.Type, &r.Date, &attachment,
			&r.Status, &decidedBy, &decidedAt, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan leave request: %w", err)
		}
		r.Attachment = attachment.String
		r.DecidedBy = generic.UserID(decidedBy.String)
		if decidedAt.Valid {
			t := parseTime(decidedAt.String)
			r.DecidedAt = &t
		}
		r.CreatedAt = parseTime(createdAt)
		r.UpdatedAt = parseTime(updatedAt)
		reqs = append(reqs, r)
	}
	return reqs, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

// Fixed-width so that text order is time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return nullString(formatTime(*t))
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
