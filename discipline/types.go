/*
Package discipline provides the tardiness accumulation and disciplinary
escalation engine.

PURPOSE:
  Converts raw "employee arrived late" events into monthly running counters,
  escalates accumulated lateness into formal tardies through configurable
  rules, and triggers disciplinary actions through a deduplicated,
  approvable workflow.

KEY CONCEPTS IN THIS FILE (types.go):
  - TardinessRule: Classifies minutes-late into LATE_ARRIVAL or DIRECT_TARDINESS
  - Accumulation: Per-employee, per-month counters (the accumulation row)
  - DisciplinaryActionRule: Maps a trigger type + count to an action
  - DisciplinaryRecord: A materialized escalation with an approval status
  - AttendanceRecord: The attendance facts absences are counted from

OPTIONAL FIELDS:
  Nullable attributes (EndMinutesLate, SuspensionDays, EffectiveDate,
  ExpirationDate, ApprovedByID...) are pointers. A nil pointer means
  "not set", never zero.

SEE ALSO:
  - engine.go: Processing facade orchestrating the components
  - accumulator.go: Monthly counter mutations
  - lifecycle.go: Record state machine
*/
package discipline

import (
	"fmt"
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type RuleID string
type RecordID string

// =============================================================================
// TARDINESS RULES - Lateness classification
// =============================================================================

type TardinessType string

const (
	// LateArrival rules accumulate: N occurrences convert into formal tardies.
	LateArrival TardinessType = "LATE_ARRIVAL"
	// DirectTardiness rules produce formal tardies on every match.
	DirectTardiness TardinessType = "DIRECT_TARDINESS"
)

func (t TardinessType) Valid() bool {
	return t == LateArrival || t == DirectTardiness
}

// TardinessRule classifies a minutes-late value.
// The range [StartMinutesLate, EndMinutesLate] is inclusive on both ends;
// a nil EndMinutesLate is unbounded.
type TardinessRule struct {
	ID                      RuleID
	Name                    string
	Type                    TardinessType
	StartMinutesLate        int
	EndMinutesLate          *int
	AccumulationCount       int // only meaningful for LateArrival
	EquivalentFormalTardies int
	IsActive                bool
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// Contains reports whether minutesLate falls within the rule's range.
func (r TardinessRule) Contains(minutesLate int) bool {
	if minutesLate < r.StartMinutesLate {
		return false
	}
	return r.EndMinutesLate == nil || minutesLate <= *r.EndMinutesLate
}

// Overlaps reports whether two rule ranges share at least one minute.
func (r TardinessRule) Overlaps(o TardinessRule) bool {
	if r.EndMinutesLate != nil && *r.EndMinutesLate < o.StartMinutesLate {
		return false
	}
	if o.EndMinutesLate != nil && *o.EndMinutesLate < r.StartMinutesLate {
		return false
	}
	return true
}

// RangeString renders the range as "[start, end]" or "[start, +inf)".
func (r TardinessRule) RangeString() string {
	if r.EndMinutesLate == nil {
		return fmt.Sprintf("[%d, +inf)", r.StartMinutesLate)
	}
	return fmt.Sprintf("[%d, %d]", r.StartMinutesLate, *r.EndMinutesLate)
}

// =============================================================================
// ACCUMULATION - One row per (employee, month, year)
// =============================================================================

// MonthPeriod identifies an accumulation month.
type MonthPeriod struct {
	Month time.Month
	Year  int
}

// MonthOf returns the accumulation month containing t.
func MonthOf(t time.Time) MonthPeriod {
	return MonthPeriod{Month: t.Month(), Year: t.Year()}
}

func (p MonthPeriod) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Valid reports whether the period names a real month.
func (p MonthPeriod) Valid() bool {
	return p.Month >= time.January && p.Month <= time.December && p.Year > 0
}

// AccumulationKey identifies an accumulation row.
type AccumulationKey struct {
	EmployeeID EmployeeID
	Period     MonthPeriod
}

// Counters are the four monthly tallies. All values are non-negative.
type Counters struct {
	LateArrivals       int
	DirectTardiness    int
	FormalTardies      int
	AdministrativeActs int
}

// Validate rejects negative counter values.
func (c Counters) Validate() error {
	fields := []struct {
		name  string
		value int
	}{
		{"late_arrivals_count", c.LateArrivals},
		{"direct_tardiness_count", c.DirectTardiness},
		{"formal_tardies_count", c.FormalTardies},
		{"administrative_acts", c.AdministrativeActs},
	}
	for _, f := range fields {
		if f.value < 0 {
			return &ValidationError{Field: f.name, Value: f.value, Reason: "must be non-negative"}
		}
	}
	return nil
}

// Accumulation is the per-employee monthly counter row.
// It is never deleted; rows are retained for audit and reporting.
type Accumulation struct {
	Key AccumulationKey
	Counters
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewAccumulation returns a zeroed row for key.
func NewAccumulation(key AccumulationKey, at time.Time) Accumulation {
	return Accumulation{Key: key, CreatedAt: at, UpdatedAt: at}
}

// =============================================================================
// DISCIPLINARY RULES - Escalation
// =============================================================================

type TriggerType string

const (
	TriggerFormalTardies       TriggerType = "FORMAL_TARDIES"
	TriggerUnjustifiedAbsences TriggerType = "UNJUSTIFIED_ABSENCES"
)

func (t TriggerType) Valid() bool {
	return t == TriggerFormalTardies || t == TriggerUnjustifiedAbsences
}

type ActionType string

const (
	ActionWarning           ActionType = "WARNING"
	ActionWrittenWarning    ActionType = "WRITTEN_WARNING"
	ActionAdministrativeAct ActionType = "ADMINISTRATIVE_ACT"
	ActionSuspension        ActionType = "SUSPENSION"
	ActionTermination       ActionType = "TERMINATION"
)

func (a ActionType) Valid() bool {
	switch a {
	case ActionWarning, ActionWrittenWarning, ActionAdministrativeAct, ActionSuspension, ActionTermination:
		return true
	}
	return false
}

// DisciplinaryActionRule maps an observed count of a trigger to an action.
// Several rules may share a TriggerType; the one with the highest
// TriggerCount not exceeding the observed count wins.
type DisciplinaryActionRule struct {
	ID                  RuleID
	Name                string
	TriggerType         TriggerType
	TriggerCount        int
	ActionType          ActionType
	SuspensionDays      *int
	PeriodDays          int // deduplication look-back window
	RequiresApproval    bool
	NotificationEnabled bool
	IsActive            bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// =============================================================================
// DISCIPLINARY RECORDS
// =============================================================================

type RecordStatus string

const (
	StatusPending   RecordStatus = "PENDING"
	StatusActive    RecordStatus = "ACTIVE"
	StatusCompleted RecordStatus = "COMPLETED"
	StatusCancelled RecordStatus = "CANCELLED"
)

func (s RecordStatus) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// DisciplinaryRecord is a materialized escalation event.
//
// Lifecycle:
//
//	PENDING --approve--> ACTIVE --(external sweep)--> COMPLETED
//	PENDING --reject---> CANCELLED
//
// Records created from rules without approval start ACTIVE.
type DisciplinaryRecord struct {
	ID             RecordID
	EmployeeID     EmployeeID
	RuleID         RuleID
	ActionType     ActionType
	TriggerType    TriggerType
	TriggerCount   int
	AppliedDate    time.Time
	EffectiveDate  *time.Time
	ExpirationDate *time.Time
	SuspensionDays *int
	Reason         string
	Status         RecordStatus
	ApprovedByID   *string
	ApprovedAt     *time.Time
	Notes          *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// =============================================================================
// ATTENDANCE & EMPLOYEES
// =============================================================================

type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "PRESENT"
	AttendanceLate    AttendanceStatus = "LATE"
	AttendanceAbsent  AttendanceStatus = "ABSENT"
)

func (s AttendanceStatus) Valid() bool {
	return s == AttendancePresent || s == AttendanceLate || s == AttendanceAbsent
}

// AttendanceRecord is one employee-day. At most one row exists per
// (employee, day); writing the same day again replaces the row.
type AttendanceRecord struct {
	ID            string
	EmployeeID    EmployeeID
	Date          time.Time // truncated to the day
	Status        AttendanceStatus
	CheckInTime   *time.Time
	ScheduledTime *time.Time
	MinutesLate   int
}

// Employee is the minimal employee view the engine needs (department scoping).
type Employee struct {
	ID           EmployeeID
	Name         string
	Email        string
	DepartmentID string
	HireDate     time.Time
	CreatedAt    time.Time
}

// =============================================================================
// HELPERS
// =============================================================================

// DayOf truncates t to midnight in its own location.
func DayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// StrPtr returns a pointer to s.
func StrPtr(s string) *string { return &s }

// TimePtr returns a pointer to t.
func TimePtr(t time.Time) *time.Time { return &t }
