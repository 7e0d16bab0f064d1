/*
store.go - Persistence interfaces for the discipline engine

PURPOSE:
  Defines the narrow boundary between the engine and the database.
  Implementations: store/sqlite (production), discipline/store (in-memory).

KEY INTERFACES:
  RuleStore:         Lateness and escalation rule sets
  AccumulationStore: Monthly counter rows
  RecordStore:       Disciplinary records (create, CAS update, dedup query)
  AttendanceStore:   Attendance facts (absence counting)
  EmployeeStore:     Employee lookup (department scoping)
  IncidentStore:     Threshold configs, raised incidents, metric aggregation
  AuditLog:          Who did what when
  TxStore:           All of the above plus WithTx

TRANSACTION CONTRACT:
  Every engine operation runs inside WithTx. Implementations must make the
  function's reads and writes serializable with respect to other WithTx
  calls: load-then-mutate-then-persist of an accumulation row, the
  deduplication check and the record insert all commit together or not
  at all. A losing writer surfaces ErrConcurrentModification.

SEE ALSO:
  - engine.go: The only writer of accumulations and records
  - store/sqlite/sqlite.go: Concrete implementation
*/
package discipline

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RULE STORE
// =============================================================================

type RuleStore interface {
	// ListTardinessRules returns rules ordered by StartMinutesLate ascending,
	// ties broken by ID.
	ListTardinessRules(ctx context.Context, activeOnly bool) ([]TardinessRule, error)

	// SaveTardinessRule inserts or replaces a rule by ID.
	SaveTardinessRule(ctx context.Context, rule TardinessRule) error

	// ListDisciplinaryRules returns rules for trigger (all triggers when
	// empty) ordered by TriggerCount descending, ties broken by ID.
	ListDisciplinaryRules(ctx context.Context, trigger TriggerType, activeOnly bool) ([]DisciplinaryActionRule, error)

	// SaveDisciplinaryRule inserts or replaces a rule by ID.
	SaveDisciplinaryRule(ctx context.Context, rule DisciplinaryActionRule) error
}

// =============================================================================
// ACCUMULATION STORE
// =============================================================================

type AccumulationStore interface {
	// GetAccumulation returns nil, nil when the row does not exist.
	GetAccumulation(ctx context.Context, key AccumulationKey) (*Accumulation, error)

	// SaveAccumulation inserts or replaces the row for acc.Key.
	SaveAccumulation(ctx context.Context, acc Accumulation) error
}

// =============================================================================
// RECORD STORE
// =============================================================================

// RecordFilter narrows ListRecords. Zero values mean "any".
type RecordFilter struct {
	EmployeeID EmployeeID
	Status     *RecordStatus
	From       *time.Time // AppliedDate >= From
	To         *time.Time // AppliedDate <= To
}

type RecordStore interface {
	CreateRecord(ctx context.Context, rec DisciplinaryRecord) error

	// GetRecord returns nil, nil when the record does not exist.
	GetRecord(ctx context.Context, id RecordID) (*DisciplinaryRecord, error)

	// UpdateRecord replaces the record only if its stored status equals
	// expected. Returns ErrConcurrentModification otherwise.
	UpdateRecord(ctx context.Context, rec DisciplinaryRecord, expected RecordStatus) error

	// HasRecordSince reports whether a record exists for (employee, rule)
	// with AppliedDate >= since.
	HasRecordSince(ctx context.Context, employeeID EmployeeID, ruleID RuleID, since time.Time) (bool, error)

	// ListRecords returns matching records, newest AppliedDate first.
	ListRecords(ctx context.Context, filter RecordFilter) ([]DisciplinaryRecord, error)
}

// =============================================================================
// ATTENDANCE & EMPLOYEES
// =============================================================================

type AttendanceStore interface {
	// SaveAttendance inserts or replaces the row for (EmployeeID, Date).
	SaveAttendance(ctx context.Context, rec AttendanceRecord) error

	// CountAttendance counts rows with status whose Date is in [from, to].
	CountAttendance(ctx context.Context, employeeID EmployeeID, status AttendanceStatus, from, to time.Time) (int, error)
}

type EmployeeStore interface {
	SaveEmployee(ctx context.Context, emp Employee) error
	// GetEmployee returns nil, nil when the employee does not exist.
	GetEmployee(ctx context.Context, id EmployeeID) (*Employee, error)
	ListEmployees(ctx context.Context) ([]Employee, error)
}

// =============================================================================
// INCIDENT STORE - Metric threshold evaluation
// =============================================================================

// MetricQuery selects an aggregate over [From, To], optionally scoped to a
// department.
type MetricQuery struct {
	Metric       Metric
	From         time.Time
	To           time.Time
	DepartmentID *string
}

// IncidentFilter narrows ListIncidents. Zero values mean "any".
type IncidentFilter struct {
	ConfigID string
	From     *time.Time
	To       *time.Time
}

type IncidentStore interface {
	SaveIncidentType(ctx context.Context, t IncidentType) error
	// GetIncidentType returns nil, nil when the type does not exist.
	GetIncidentType(ctx context.Context, id string) (*IncidentType, error)
	ListIncidentTypes(ctx context.Context) ([]IncidentType, error)

	SaveIncidentConfig(ctx context.Context, c IncidentConfig) error
	ListIncidentConfigs(ctx context.Context, activeOnly bool) ([]IncidentConfig, error)

	CreateIncident(ctx context.Context, inc Incident) error
	// HasIncident reports whether config already raised an incident for the
	// period starting at periodStart.
	HasIncident(ctx context.Context, configID string, periodStart time.Time) (bool, error)
	// ListIncidents returns matching incidents, newest first.
	ListIncidents(ctx context.Context, filter IncidentFilter) ([]Incident, error)

	// AggregateMetric computes the metric from attendance and record rows.
	AggregateMetric(ctx context.Context, q MetricQuery) (decimal.Decimal, error)
}

// =============================================================================
// AUDIT LOG - Separate from records, tracks who did what when
// =============================================================================

type AuditAction string

const (
	AuditRecordCreated         AuditAction = "record_created"
	AuditRecordApproved        AuditAction = "record_approved"
	AuditRecordRejected        AuditAction = "record_rejected"
	AuditRecordCompleted       AuditAction = "record_completed"
	AuditAccumulationCorrected AuditAction = "accumulation_corrected"
	AuditRuleChanged           AuditAction = "rule_changed"
	AuditIncidentRaised        AuditAction = "incident_raised"
)

// AuditEntry records who did what when. Append-only.
type AuditEntry struct {
	ID         string
	Timestamp  time.Time
	ActorID    string
	Action     AuditAction
	EmployeeID EmployeeID
	RecordID   RecordID
	Payload    map[string]any
}

type AuditFilter struct {
	EmployeeID EmployeeID
	RecordID   RecordID
	Actions    []AuditAction
	From       *time.Time
	To         *time.Time
}

type AuditLog interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
	// QueryAudit returns matching entries in chronological order.
	QueryAudit(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}

// =============================================================================
// COMPOSITE STORES
// =============================================================================

type Store interface {
	RuleStore
	AccumulationStore
	RecordStore
	AttendanceStore
	EmployeeStore
	IncidentStore
	AuditLog
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
