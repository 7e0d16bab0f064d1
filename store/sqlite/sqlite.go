/*
Package sqlite provides a SQLite-backed implementation of discipline.TxStore.

PURPOSE:
  Implements every persistence interface the discipline engine consumes
  (rules, accumulations, records, attendance, employees, incidents, audit)
  on a single SQLite database. The same statements port to PostgreSQL with
  minor dialect changes.

KEY TABLES:
  tardiness_rules:           Lateness classification ranges
  disciplinary_action_rules: Escalation tiers per trigger type
  tardiness_accumulations:   One row per (employee, year, month)
  disciplinary_records:      Escalation records with approval status
  attendance:                One row per (employee, date)
  employees:                 Department scoping for incident metrics
  incident_types, incident_configs, incidents: Threshold evaluation
  audit_log:                 Append-only who/what/when

INDEXES:
  - idx_records_dedup: (employee_id, rule_id, applied_date), the
    deduplication guard runs on every escalation
  - idx_attendance_employee_status_date: trailing absence counts
  - UNIQUE(employee_id, date) on attendance, UNIQUE(config_id,
    period_start) on incidents

CONCURRENCY:
  The pool is capped at one connection and transactions start with
  BEGIN IMMEDIATE (_txlock=immediate), so WithTx calls are serialized:
  load-mutate-save of an accumulation row, the dedup check and the record
  insert can never interleave with another writer. SQLITE_BUSY/LOCKED from
  another process surfaces as discipline.ErrConcurrentModification and is
  retried by the engine.

TIME ENCODING:
  Timestamps are stored as fixed-width UTC strings (timeLayout) so that
  string comparison matches chronological order. Attendance dates are
  stored as YYYY-MM-DD.

USAGE:
  store, err := sqlite.New("./data/discipline.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := discipline.NewEngine(store, discipline.Options{})

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - discipline/store.go: Interface definitions
  - discipline/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/discipline-engine/discipline"
)

const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements discipline.TxStore using SQLite.
type Store struct {
	conn
	db *sql.DB
}

var _ discipline.TxStore = (*Store)(nil)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn carries every query method. The Store binds it to the pool, WithTx
// binds a copy to the open transaction.
type conn struct {
	q queryer
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{conn: conn{q: db}, db: db}
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

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Employees
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		department_id TEXT NOT NULL DEFAULT '',
		hire_date TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_employees_department
		ON employees(department_id);

	-- Lateness classification rules
	CREATE TABLE IF NOT EXISTS tardiness_rules (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		start_minutes_late INTEGER NOT NULL,
		end_minutes_late INTEGER,
		accumulation_count INTEGER NOT NULL DEFAULT 0,
		equivalent_formal_tardies INTEGER NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tardiness_rules_active_start
		ON tardiness_rules(is_active, start_minutes_late);

	-- Escalation rules
	CREATE TABLE IF NOT EXISTS disciplinary_action_rules (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		trigger_type TEXT NOT NULL,
		trigger_count INTEGER NOT NULL,
		action_type TEXT NOT NULL,
		suspension_days INTEGER,
		period_days INTEGER NOT NULL DEFAULT 0,
		requires_approval BOOLEAN NOT NULL DEFAULT FALSE,
		notification_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_disciplinary_rules_trigger
		ON disciplinary_action_rules(trigger_type, is_active, trigger_count DESC);

	-- Monthly counters, never deleted
	CREATE TABLE IF NOT EXISTS tardiness_accumulations (
		employee_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		late_arrivals_count INTEGER NOT NULL DEFAULT 0,
		direct_tardiness_count INTEGER NOT NULL DEFAULT 0,
		formal_tardies_count INTEGER NOT NULL DEFAULT 0,
		administrative_acts INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (employee_id, year, month),
		CHECK (late_arrivals_count >= 0 AND direct_tardiness_count >= 0
		       AND formal_tardies_count >= 0 AND administrative_acts >= 0)
	);

	-- Disciplinary records
	CREATE TABLE IF NOT EXISTS disciplinary_records (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		rule_id TEXT NOT NULL,
		action_type TEXT NOT NULL,
		trigger_type TEXT NOT NULL,
		trigger_count INTEGER NOT NULL,
		applied_date TEXT NOT NULL,
		effective_date TEXT,
		expiration_date TEXT,
		suspension_days INTEGER,
		reason TEXT NOT NULL,
		status TEXT NOT NULL,
		approved_by_id TEXT,
		approved_at TEXT,
		notes TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Deduplication guard (hot path)
	CREATE INDEX IF NOT EXISTS idx_records_dedup
		ON disciplinary_records(employee_id, rule_id, applied_date);
	CREATE INDEX IF NOT EXISTS idx_records_employee_applied
		ON disciplinary_records(employee_id, applied_date DESC);
	CREATE INDEX IF NOT EXISTS idx_records_status
		ON disciplinary_records(status);

	-- Attendance facts, one per employee-day
	CREATE TABLE IF NOT EXISTS attendance (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		date TEXT NOT NULL,
		status TEXT NOT NULL,
		check_in_time TEXT,
		scheduled_time TEXT,
		minutes_late INTEGER NOT NULL DEFAULT 0,
		UNIQUE(employee_id, date)
	);

	CREATE INDEX IF NOT EXISTS idx_attendance_employee_status_date
		ON attendance(employee_id, status, date);
	CREATE INDEX IF NOT EXISTS idx_attendance_status_date
		ON attendance(status, date);

	-- Threshold evaluation
	CREATE TABLE IF NOT EXISTS incident_types (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		metric TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS incident_configs (
		id TEXT PRIMARY KEY,
		incident_type_id TEXT NOT NULL,
		threshold_value TEXT NOT NULL,
		operator TEXT NOT NULL,
		period TEXT NOT NULL,
		department_id TEXT,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS incidents (
		id TEXT PRIMARY KEY,
		config_id TEXT NOT NULL,
		incident_type_id TEXT NOT NULL,
		department_id TEXT,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		value TEXT NOT NULL,
		threshold TEXT NOT NULL,
		operator TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE(config_id, period_start)
	);

	CREATE INDEX IF NOT EXISTS idx_incidents_created
		ON incidents(created_at DESC);

	-- Audit log (append-only)
	CREATE TABLE IF NOT EXISTS audit_log (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		timestamp TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		action TEXT NOT NULL,
		employee_id TEXT,
		record_id TEXT,
		payload_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_employee
		ON audit_log(employee_id) WHERE employee_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_audit_record
		ON audit_log(record_id) WHERE record_id IS NOT NULL;
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONS (discipline.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(discipline.Store) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer sqlTx.Rollback()

	if err := fn(conn{q: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return mapError(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// =============================================================================
// RULE STORE
// =============================================================================

const tardinessRuleColumns = `id, name, type, start_minutes_late, end_minutes_late,
	accumulation_count, equivalent_formal_tardies, is_active, created_at, updated_at`

func (c conn) ListTardinessRules(ctx context.Context, activeOnly bool) ([]discipline.TardinessRule, error) {
	query := `SELECT ` + tardinessRuleColumns + ` FROM tardiness_rules`
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY start_minutes_late ASC, id ASC`

	rows, err := c.q.QueryContext(ctx, query)
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to query tardiness rules: %w", err))
	}
	defer rows.Close()

	var rules []discipline.TardinessRule
	for rows.Next() {
		var (
			r                    discipline.TardinessRule
			end                  sql.NullInt64
			createdAt, updatedAt string
		)
		if err := rows.Scan(&r.ID, &r.Name, &r.Type, &r.StartMinutesLate, &end,
			&r.AccumulationCount, &r.EquivalentFormalTardies, &r.IsActive, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tardiness rule: %w", err)
		}
		r.EndMinutesLate = intFromNull(end)
		r.CreatedAt = parseTime(createdAt)
		r.UpdatedAt = parseTime(updatedAt)
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

func (c conn) SaveTardinessRule(ctx context.Context, r discipline.TardinessRule) error {
	query := `
		INSERT INTO tardiness_rules (` + tardinessRuleColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			start_minutes_late = excluded.start_minutes_late,
			end_minutes_late = excluded.end_minutes_late,
			accumulation_count = excluded.accumulation_count,
			equivalent_formal_tardies = excluded.equivalent_formal_tardies,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`
	_, err := c.q.ExecContext(ctx, query,
		r.ID, r.Name, r.Type, r.StartMinutesLate, nullInt(r.EndMinutesLate),
		r.AccumulationCount, r.EquivalentFormalTardies, r.IsActive,
		formatTime(r.CreatedAt), formatTime(r.UpdatedAt),
	)
	if err != nil {
		return mapError(fmt.Errorf("failed to save tardiness rule: %w", err))
	}
	return nil
}

const disciplinaryRuleColumns = `id, name, trigger_type, trigger_count, action_type, suspension_days,
	period_days, requires_approval, notification_enabled, is_active, created_at, updated_at`

func (c conn) ListDisciplinaryRules(ctx context.Context, trigger discipline.TriggerType, activeOnly bool) ([]discipline.DisciplinaryActionRule, error) {
	var (
		where []string
		args  []any
	)
	if trigger != "" {
		where = append(where, "trigger_type = ?")
		args = append(args, trigger)
	}
	if activeOnly {
		where = append(where, "is_active = TRUE")
	}
	query := `SELECT ` + disciplinaryRuleColumns + ` FROM disciplinary_action_rules` +
		whereClause(where) + ` ORDER BY trigger_count DESC, id ASC`

	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to query disciplinary rules: %w", err))
	}
	defer rows.Close()

	var rules []discipline.DisciplinaryActionRule
	for rows.Next() {
		var (
			r                    discipline.DisciplinaryActionRule
			suspensionDays       sql.NullInt64
			createdAt, updatedAt string
		)
		if err := rows.Scan(&r.ID, &r.Name, &r.TriggerType, &r.TriggerCount, &r.ActionType, &suspensionDays,
			&r.PeriodDays, &r.RequiresApproval, &r.NotificationEnabled, &r.IsActive, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan disciplinary rule: %w", err)
		}
		r.SuspensionDays = intFromNull(suspensionDays)
		r.CreatedAt = parseTime(createdAt)
		r.UpdatedAt = parseTime(updatedAt)
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

func (c conn) SaveDisciplinaryRule(ctx context.Context, r discipline.DisciplinaryActionRule) error {
	query := `
		INSERT INTO disciplinary_action_rules (` + disciplinaryRuleColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			trigger_type = excluded.trigger_type,
			trigger_count = excluded.trigger_count,
			action_type = excluded.action_type,
			suspension_days = excluded.suspension_days,
			period_days = excluded.period_days,
			requires_approval = excluded.requires_approval,
			notification_enabled = excluded.notification_enabled,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`
	_, err := c.q.ExecContext(ctx, query,
		r.ID, r.Name, r.TriggerType, r.TriggerCount, r.ActionType, nullInt(r.SuspensionDays),
		r.PeriodDays, r.RequiresApproval, r.NotificationEnabled, r.IsActive,
		formatTime(r.CreatedAt), formatTime(r.UpdatedAt),
	)
	if err != nil {
		return mapError(fmt.Errorf("failed to save disciplinary rule: %w", err))
	}
	return nil
}

// =============================================================================
// ACCUMULATION STORE
// =============================================================================

func (c conn) GetAccumulation(ctx context.Context, key discipline.AccumulationKey) (*discipline.Accumulation, error) {
	var (
		acc                  = discipline.Accumulation{Key: key}
		createdAt, updatedAt string
	)
	err := c.q.QueryRowContext(ctx, `
		SELECT late_arrivals_count, direct_tardiness_count, formal_tardies_count,
		       administrative_acts, created_at, updated_at
		FROM tardiness_accumulations
		WHERE employee_id = ? AND year = ? AND month = ?`,
		key.EmployeeID, key.Period.Year, int(key.Period.Month),
	).Scan(&acc.LateArrivals, &acc.DirectTardiness, &acc.FormalTardies,
		&acc.AdministrativeActs, &createdAt, &updatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to load accumulation: %w", err))
	}
	acc.CreatedAt = parseTime(createdAt)
	acc.UpdatedAt = parseTime(updatedAt)
	return &acc, nil
}

func (c conn) SaveAccumulation(ctx context.Context, acc discipline.Accumulation) error {
	query := `
		INSERT INTO tardiness_accumulations
		(employee_id, year, month, late_arrivals_count, direct_tardiness_count,
		 formal_tardies_count, administrative_acts, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_id, year, month) DO UPDATE SET
			late_arrivals_count = excluded.late_arrivals_count,
			direct_tardiness_count = excluded.direct_tardiness_count,
			formal_tardies_count = excluded.formal_tardies_count,
			administrative_acts = excluded.administrative_acts,
			updated_at = excluded.updated_at
	`
	_, err := c.q.ExecContext(ctx, query,
		acc.Key.EmployeeID, acc.Key.Period.Year, int(acc.Key.Period.Month),
		acc.LateArrivals, acc.DirectTardiness, acc.FormalTardies, acc.AdministrativeActs,
		formatTime(acc.CreatedAt), formatTime(acc.UpdatedAt),
	)
	if err != nil {
		return mapError(fmt.Errorf("failed to save accumulation: %w", err))
	}
	return nil
}

// =============================================================================
// RECORD STORE
// =============================================================================

const recordColumns = `id, employee_id, rule_id, action_type, trigger_type, trigger_count,
	applied_date, effective_date, expiration_date, suspension_days, reason, status,
	approved_by_id, approved_at, notes, created_at, updated_at`

func (c conn) CreateRecord(ctx context.Context, r discipline.DisciplinaryRecord) error {
	query := `INSERT INTO disciplinary_records (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := c.q.ExecContext(ctx, query,
		r.ID, r.EmployeeID, r.RuleID, r.ActionType, r.TriggerType, r.TriggerCount,
		formatTime(r.AppliedDate), nullTime(r.EffectiveDate), nullTime(r.ExpirationDate),
		nullInt(r.SuspensionDays), r.Reason, r.Status,
		nullStringPtr(r.ApprovedByID), nullTime(r.ApprovedAt), nullStringPtr(r.Notes),
		formatTime(r.CreatedAt), formatTime(r.UpdatedAt),
	)
	if err != nil {
		return mapError(fmt.Errorf("failed to insert record: %w", err))
	}
	return nil
}

func (c conn) GetRecord(ctx context.Context, id discipline.RecordID) (*discipline.DisciplinaryRecord, error) {
	row := c.q.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM disciplinary_records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err)
	}
	return &rec, nil
}

// UpdateRecord is a compare-and-set on status.
func (c conn) UpdateRecord(ctx context.Context, r discipline.DisciplinaryRecord, expected discipline.RecordStatus) error {
	res, err := c.q.ExecContext(ctx, `
		UPDATE disciplinary_records SET
			effective_date = ?, expiration_date = ?, status = ?,
			approved_by_id = ?, approved_at = ?, notes = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		nullTime(r.EffectiveDate), nullTime(r.ExpirationDate), r.Status,
		nullStringPtr(r.ApprovedByID), nullTime(r.ApprovedAt), nullStringPtr(r.Notes),
		formatTime(r.UpdatedAt),
		r.ID, expected,
	)
	if err != nil {
		return mapError(fmt.Errorf("failed to update record: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}
	if n == 1 {
		return nil
	}

	var count int
	if err := c.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM disciplinary_records WHERE id = ?`, r.ID).Scan(&count); err != nil {
		return mapError(fmt.Errorf("failed to check record: %w", err))
	}
	if count == 0 {
		return fmt.Errorf("record %s: %w", r.ID, discipline.ErrRecordNotFound)
	}
	return fmt.Errorf("record %s is no longer %s: %w", r.ID, expected, discipline.ErrConcurrentModification)
}

func (c conn) HasRecordSince(ctx context.Context, employeeID discipline.EmployeeID, ruleID discipline.RuleID, since time.Time) (bool, error) {
	var exists bool
	err := c.q.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM disciplinary_records
			WHERE employee_id = ? AND rule_id = ? AND applied_date >= ?
		)`,
		employeeID, ruleID, formatTime(since),
	).Scan(&exists)
	if err != nil {
		return false, mapError(fmt.Errorf("failed to query recent records: %w", err))
	}
	return exists, nil
}

func (c conn) ListRecords(ctx context.Context, f discipline.RecordFilter) ([]discipline.DisciplinaryRecord, error) {
	var (
		where []string
		args  []any
	)
	if f.EmployeeID != "" {
		where = append(where, "employee_id = ?")
		args = append(args, f.EmployeeID)
	}
	if f.Status != nil {
		where = append(where, "status = ?")
		args = append(args, *f.Status)
	}
	if f.From != nil {
		where = append(where, "applied_date >= ?")
		args = append(args, formatTime(*f.From))
	}
	if f.To != nil {
		where = append(where, "applied_date <= ?")
		args = append(args, formatTime(*f.To))
	}
	query := `SELECT ` + recordColumns + ` FROM disciplinary_records` +
		whereClause(where) + ` ORDER BY applied_date DESC, id DESC`

	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to query records: %w", err))
	}
	defer rows.Close()

	var recs []discipline.DisciplinaryRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (discipline.DisciplinaryRecord, error) {
	var (
		r                                         discipline.DisciplinaryRecord
		appliedDate, createdAt, updatedAt         string
		effectiveDate, expirationDate, approvedAt sql.NullString
		approvedBy, notes                         sql.NullString
		suspensionDays                            sql.NullInt64
	)
	err := row.Scan(
		&r.ID, &r.EmployeeID, &r.RuleID, &r.ActionType, &r.TriggerType, &r.TriggerCount,
		&appliedDate, &effectiveDate, &expirationDate, &suspensionDays, &r.Reason, &r.Status,
		&approvedBy, &approvedAt, &notes, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("failed to scan record: %w", err)
	}
	r.AppliedDate = parseTime(appliedDate)
	r.EffectiveDate = timeFromNull(effectiveDate)
	r.ExpirationDate = timeFromNull(expirationDate)
	r.SuspensionDays = intFromNull(suspensionDays)
	r.ApprovedByID = stringFromNull(approvedBy)
	r.ApprovedAt = timeFromNull(approvedAt)
	r.Notes = stringFromNull(notes)
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	return r, nil
}

// =============================================================================
// ATTENDANCE & EMPLOYEES
// =============================================================================

// SaveAttendance upserts on (employee_id, date); the original row ID is kept.
func (c conn) SaveAttendance(ctx context.Context, a discipline.AttendanceRecord) error {
	query := `
		INSERT INTO attendance
		(id, employee_id, date, status, check_in_time, scheduled_time, minutes_late)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_id, date) DO UPDATE SET
			status = excluded.status,
			check_in_time = excluded.check_in_time,
			scheduled_time = excluded.scheduled_time,
			minutes_late = excluded.minutes_late
	`
	_, err := c.q.ExecContext(ctx, query,
		a.ID, a.EmployeeID, formatDate(a.Date), a.Status,
		nullTime(a.CheckInTime), nullTime(a.ScheduledTime), a.MinutesLate,
	)
	if err != nil {
		return mapError(fmt.Errorf("failed to save attendance: %w", err))
	}
	return nil
}

func (c conn) CountAttendance(ctx context.Context, employeeID discipline.EmployeeID, status discipline.AttendanceStatus, from, to time.Time) (int, error) {
	var n int
	err := c.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM attendance
		WHERE employee_id = ? AND status = ? AND date >= ? AND date <= ?`,
		employeeID, status, formatDate(from), formatDate(to),
	).Scan(&n)
	if err != nil {
		return 0, mapError(fmt.Errorf("failed to count attendance: %w", err))
	}
	return n, nil
}

func (c conn) SaveEmployee(ctx context.Context, emp discipline.Employee) error {
	created := emp.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	query := `
		INSERT INTO employees (id, name, email, department_id, hire_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			department_id = excluded.department_id,
			hire_date = excluded.hire_date
	`
	_, err := c.q.ExecContext(ctx, query,
		emp.ID, emp.Name, emp.Email, emp.DepartmentID,
		formatDate(emp.HireDate), formatTime(created),
	)
	if err != nil {
		return mapError(fmt.Errorf("failed to save employee: %w", err))
	}
	return nil
}

func (c conn) GetEmployee(ctx context.Context, id discipline.EmployeeID) (*discipline.Employee, error) {
	row := c.q.QueryRowContext(ctx,
		`SELECT id, name, email, department_id, hire_date, created_at FROM employees WHERE id = ?`, id)
	emp, err := scanEmployee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err)
	}
	return &emp, nil
}

func (c conn) ListEmployees(ctx context.Context) ([]discipline.Employee, error) {
	rows, err := c.q.QueryContext(ctx,
		`SELECT id, name, email, department_id, hire_date, created_at FROM employees ORDER BY id`)
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to query employees: %w", err))
	}
	defer rows.Close()

	var employees []discipline.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, emp)
	}
	return employees, rows.Err()
}

func scanEmployee(row scanner) (discipline.Employee, error) {
	var (
		emp             discipline.Employee
		email, hireDate sql.NullString
		createdAt       string
	)
	if err := row.Scan(&emp.ID, &emp.Name, &email, &emp.DepartmentID, &hireDate, &createdAt); err != nil {
		return emp, err
	}
	emp.Email = email.String
	if hireDate.Valid {
		emp.HireDate = parseDate(hireDate.String)
	}
	emp.CreatedAt = parseTime(createdAt)
	return emp, nil
}

// =============================================================================
// INCIDENT STORE
// =============================================================================

func (c conn) SaveIncidentType(ctx context.Context, t discipline.IncidentType) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO incident_types (id, code, name, metric, description)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			code = excluded.code,
			name = excluded.name,
			metric = excluded.metric,
			description = excluded.description`,
		t.ID, t.Code, t.Name, t.Metric, t.Description,
	)
	if err != nil {
		return mapError(fmt.Errorf("failed to save incident type: %w", err))
	}
	return nil
}

func (c conn) GetIncidentType(ctx context.Context, id string) (*discipline.IncidentType, error) {
	var t discipline.IncidentType
	err := c.q.QueryRowContext(ctx,
		`SELECT id, code, name, metric, description FROM incident_types WHERE id = ?`, id,
	).Scan(&t.ID, &t.Code, &t.Name, &t.Metric, &t.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to load incident type: %w", err))
	}
	return &t, nil
}

func (c conn) ListIncidentTypes(ctx context.Context) ([]discipline.IncidentType, error) {
	rows, err := c.q.QueryContext(ctx,
		`SELECT id, code, name, metric, description FROM incident_types ORDER BY id`)
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to query incident types: %w", err))
	}
	defer rows.Close()

	var types []discipline.IncidentType
	for rows.Next() {
		var t discipline.IncidentType
		if err := rows.Scan(&t.ID, &t.Code, &t.Name, &t.Metric, &t.Description); err != nil {
			return nil, fmt.Errorf("failed to scan incident type: %w", err)
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

func (c conn) SaveIncidentConfig(ctx context.Context, cfg discipline.IncidentConfig) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO incident_configs
		(id, incident_type_id, threshold_value, operator, period, department_id, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			incident_type_id = excluded.incident_type_id,
			threshold_value = excluded.threshold_value,
			operator = excluded.operator,
			period = excluded.period,
			department_id = excluded.department_id,
			is_active = excluded.is_active`,
		cfg.ID, cfg.IncidentTypeID, cfg.ThresholdValue.String(), cfg.Operator, cfg.Period,
		nullStringPtr(cfg.DepartmentID), cfg.IsActive, formatTime(cfg.CreatedAt),
	)
	if err != nil {
		return mapError(fmt.Errorf("failed to save incident config: %w", err))
	}
	return nil
}

func (c conn) ListIncidentConfigs(ctx context.Context, activeOnly bool) ([]discipline.IncidentConfig, error) {
	query := `SELECT id, incident_type_id, threshold_value, operator, period, department_id, is_active, created_at
		FROM incident_configs`
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY id`

	rows, err := c.q.QueryContext(ctx, query)
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to query incident configs: %w", err))
	}
	defer rows.Close()

	var configs []discipline.IncidentConfig
	for rows.Next() {
		var (
			cfg                  discipline.IncidentConfig
			threshold, createdAt string
			department           sql.NullString
		)
		if err := rows.Scan(&cfg.ID, &cfg.IncidentTypeID, &threshold, &cfg.Operator, &cfg.Period,
			&department, &cfg.IsActive, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan incident config: %w", err)
		}
		if cfg.ThresholdValue, err = decimal.NewFromString(threshold); err != nil {
			return nil, fmt.Errorf("config %s: invalid threshold %q: %w", cfg.ID, threshold, err)
		}
		cfg.DepartmentID = stringFromNull(department)
		cfg.CreatedAt = parseTime(createdAt)
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}

func (c conn) CreateIncident(ctx context.Context, inc discipline.Incident) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO incidents
		(id, config_id, incident_type_id, department_id, period_start, period_end,
		 value, threshold, operator, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inc.ID, inc.ConfigID, inc.IncidentTypeID, nullStringPtr(inc.DepartmentID),
		formatTime(inc.PeriodStart), formatTime(inc.PeriodEnd),
		inc.Value.String(), inc.Threshold.String(), inc.Operator, formatTime(inc.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("incident for config %s already raised: %w", inc.ConfigID, discipline.ErrConcurrentModification)
		}
		return mapError(fmt.Errorf("failed to insert incident: %w", err))
	}
	return nil
}

func (c conn) HasIncident(ctx context.Context, configID string, periodStart time.Time) (bool, error) {
	var exists bool
	err := c.q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM incidents WHERE config_id = ? AND period_start = ?)`,
		configID, formatTime(periodStart),
	).Scan(&exists)
	if err != nil {
		return false, mapError(fmt.Errorf("failed to query incidents: %w", err))
	}
	return exists, nil
}

func (c conn) ListIncidents(ctx context.Context, f discipline.IncidentFilter) ([]discipline.Incident, error) {
	var (
		where []string
		args  []any
	)
	if f.ConfigID != "" {
		where = append(where, "config_id = ?")
		args = append(args, f.ConfigID)
	}
	if f.From != nil {
		where = append(where, "period_start >= ?")
		args = append(args, formatTime(*f.From))
	}
	if f.To != nil {
		where = append(where, "period_start <= ?")
		args = append(args, formatTime(*f.To))
	}
	query := `SELECT id, config_id, incident_type_id, department_id, period_start, period_end,
		value, threshold, operator, created_at FROM incidents` +
		whereClause(where) + ` ORDER BY created_at DESC, id DESC`

	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to query incidents: %w", err))
	}
	defer rows.Close()

	var incidents []discipline.Incident
	for rows.Next() {
		var (
			inc                                   discipline.Incident
			department                            sql.NullString
			start, end, value, threshold, created string
		)
		if err := rows.Scan(&inc.ID, &inc.ConfigID, &inc.IncidentTypeID, &department, &start, &end,
			&value, &threshold, &inc.Operator, &created); err != nil {
			return nil, fmt.Errorf("failed to scan incident: %w", err)
		}
		inc.DepartmentID = stringFromNull(department)
		inc.PeriodStart = parseTime(start)
		inc.PeriodEnd = parseTime(end)
		inc.Value, _ = decimal.NewFromString(value)
		inc.Threshold, _ = decimal.NewFromString(threshold)
		inc.CreatedAt = parseTime(created)
		incidents = append(incidents, inc)
	}
	return incidents, rows.Err()
}

// AggregateMetric computes attendance metrics over dates in [From, To] and
// record counts over applied_date in [From, To].
func (c conn) AggregateMetric(ctx context.Context, q discipline.MetricQuery) (decimal.Decimal, error) {
	var (
		query string
		args  []any
	)
	switch q.Metric {
	case discipline.MetricLateArrivals, discipline.MetricAbsences, discipline.MetricMinutesLate:
		status := discipline.AttendanceLate
		if q.Metric == discipline.MetricAbsences {
			status = discipline.AttendanceAbsent
		}
		agg := "COUNT(*)"
		if q.Metric == discipline.MetricMinutesLate {
			agg = "COALESCE(SUM(a.minutes_late), 0)"
		}
		query = `SELECT ` + agg + ` FROM attendance a`
		args = []any{status, formatDate(q.From), formatDate(q.To)}
		where := ` WHERE a.status = ? AND a.date >= ? AND a.date <= ?`
		if q.DepartmentID != nil {
			query += ` JOIN employees e ON e.id = a.employee_id`
			where += ` AND e.department_id = ?`
			args = append(args, *q.DepartmentID)
		}
		query += where
	case discipline.MetricDisciplinaryActions:
		query = `SELECT COUNT(*) FROM disciplinary_records r`
		args = []any{discipline.StatusCancelled, formatTime(q.From), formatTime(q.To)}
		where := ` WHERE r.status != ? AND r.applied_date >= ? AND r.applied_date <= ?`
		if q.DepartmentID != nil {
			query += ` JOIN employees e ON e.id = r.employee_id`
			where += ` AND e.department_id = ?`
			args = append(args, *q.DepartmentID)
		}
		query += where
	default:
		return decimal.Zero, fmt.Errorf("unknown metric %q", q.Metric)
	}

	var total int64
	if err := c.q.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return decimal.Zero, mapError(fmt.Errorf("failed to aggregate %s: %w", q.Metric, err))
	}
	return decimal.NewFromInt(total), nil
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (c conn) AppendAudit(ctx context.Context, e discipline.AuditEntry) error {
	var payload sql.NullString
	if len(e.Payload) > 0 {
		data, err := json.Marshal(e.Payload)
		if err != nil {
			return fmt.Errorf("failed to encode audit payload: %w", err)
		}
		payload = sql.NullString{String: string(data), Valid: true}
	}
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO audit_log (id, timestamp, actor_id, action, employee_id, record_id, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, formatTime(e.Timestamp), e.ActorID, e.Action,
		nullString(string(e.EmployeeID)), nullString(string(e.RecordID)), payload,
	)
	if err != nil {
		return mapError(fmt.Errorf("failed to append audit entry: %w", err))
	}
	return nil
}

func (c conn) QueryAudit(ctx context.Context, f discipline.AuditFilter) ([]discipline.AuditEntry, error) {
	var (
		where []string
		args  []any
	)
	if f.EmployeeID != "" {
		where = append(where, "employee_id = ?")
		args = append(args, f.EmployeeID)
	}
	if f.RecordID != "" {
		where = append(where, "record_id = ?")
		args = append(args, f.RecordID)
	}
	if len(f.Actions) > 0 {
		marks := make([]string, len(f.Actions))
		for i, a := range f.Actions {
			marks[i] = "?"
			args = append(args, a)
		}
		where = append(where, "action IN ("+strings.Join(marks, ", ")+")")
	}
	if f.From != nil {
		where = append(where, "timestamp >= ?")
		args = append(args, formatTime(*f.From))
	}
	if f.To != nil {
		where = append(where, "timestamp <= ?")
		args = append(args, formatTime(*f.To))
	}
	query := `SELECT id, timestamp, actor_id, action, employee_id, record_id, payload_json
		FROM audit_log` + whereClause(where) + ` ORDER BY seq ASC`

	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to query audit log: %w", err))
	}
	defer rows.Close()

	var entries []discipline.AuditEntry
	for rows.Next() {
		var (
			e                             discipline.AuditEntry
			timestamp                     string
			employeeID, recordID, payload sql.NullString
		)
		if err := rows.Scan(&e.ID, &timestamp, &e.ActorID, &e.Action, &employeeID, &recordID, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.Timestamp = parseTime(timestamp)
		e.EmployeeID = discipline.EmployeeID(employeeID.String)
		e.RecordID = discipline.RecordID(recordID.String)
		if payload.Valid && payload.String != "" {
			if err := json.Unmarshal([]byte(payload.String), &e.Payload); err != nil {
				return nil, fmt.Errorf("failed to decode audit payload %s: %w", e.ID, err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	tables := []string{
		"audit_log", "incidents", "incident_configs", "incident_types",
		"attendance", "disciplinary_records", "tardiness_accumulations",
		"disciplinary_action_rules", "tardiness_rules", "employees",
	}
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer sqlTx.Rollback()

	for _, table := range tables {
		if _, err := sqlTx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return mapError(err)
		}
	}
	return sqlTx.Commit()
}

// Helper functions

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func formatDate(t time.Time) string {
	return t.Format(time.DateOnly)
}

func parseDate(s string) time.Time {
	t, _ := time.Parse(time.DateOnly, s)
	return t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringFromNull(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intFromNull(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func timeFromNull(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}

// mapError turns lock contention into discipline.ErrConcurrentModification.
func mapError(err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) && (se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked) {
		return fmt.Errorf("%w: %w", discipline.ErrConcurrentModification, err)
	}
	return err
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
