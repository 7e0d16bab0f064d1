/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Employee:      EmployeeDTO, CreateEmployeeRequest
  Check-in:      CheckInRequest, TardinessResultDTO, EscalationDTO
  Absence:       AbsenceRequest, AbsenceResultDTO, AttendanceRequest
  Accumulation:  AccumulationDTO, CorrectAccumulationRequest
  Records:       DisciplinaryRecordDTO, DecisionRequest, CompleteRequest
  Rules:         factory.TardinessRuleJSON, factory.DisciplinaryRuleJSON
  Incidents:     IncidentTypeDTO, IncidentConfigDTO, IncidentDTO
  Audit:         AuditEntryDTO
  Scenarios:     ScenarioDTO

DATE FORMATS:
  Calendar dates are "2006-01-02"; instants are RFC 3339.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/rules.go: Rule JSON types
*/
package api

import (
	"time"

	"github.com/warp/discipline-engine/discipline"
)

const dateLayout = "2006-01-02"

// =============================================================================
// EMPLOYEES
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	DepartmentID string `json:"department_id"`
	HireDate     string `json:"hire_date,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
}

// CreateEmployeeRequest is the request to create an employee.
type CreateEmployeeRequest struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	DepartmentID string `json:"department_id"`
	HireDate     string `json:"hire_date"`
}

// =============================================================================
// CHECK-INS & ABSENCES
// =============================================================================

// CheckInRequest submits one check-in. Times are RFC 3339.
type CheckInRequest struct {
	CheckInTime   string `json:"check_in_time"`
	ScheduledTime string `json:"scheduled_time"`
	AttendanceID  string `json:"attendance_id,omitempty"`
}

// TardinessResultDTO is the outcome of a check-in.
type TardinessResultDTO struct {
	MinutesLate                 int              `json:"minutes_late"`
	RuleApplied                 string           `json:"rule_applied,omitempty"`
	RuleID                      string           `json:"rule_id,omitempty"`
	Accumulated                 bool             `json:"accumulated"`
	Counters                    *AccumulationDTO `json:"counters,omitempty"`
	ConversionToFormalTardiness bool             `json:"conversion_to_formal_tardiness"`
	DisciplinaryActionTriggered *EscalationDTO   `json:"disciplinary_action_triggered,omitempty"`
}

// EscalationDTO summarizes an escalation decision.
type EscalationDTO struct {
	RuleApplied   string                 `json:"rule_applied"`
	RuleID        string                 `json:"rule_id"`
	ActionType    string                 `json:"action_type"`
	TriggerType   string                 `json:"trigger_type"`
	TriggerCount  int                    `json:"trigger_count"`
	AlreadyExists bool                   `json:"already_exists"`
	Record        *DisciplinaryRecordDTO `json:"record,omitempty"`
}

// AbsenceRequest reports an unjustified absence.
type AbsenceRequest struct {
	AbsenceDate string `json:"absence_date"`
}

// AbsenceResultDTO is the outcome of an absence report.
type AbsenceResultDTO struct {
	AbsenceCount                int            `json:"absence_count"`
	DisciplinaryActionTriggered *EscalationDTO `json:"disciplinary_action_triggered,omitempty"`
}

// AttendanceRequest stores an attendance fact without escalation.
type AttendanceRequest struct {
	ID          string `json:"id,omitempty"`
	Date        string `json:"date"`
	Status      string `json:"status"`
	MinutesLate int    `json:"minutes_late"`
}

// AttendanceDTO echoes a stored attendance row.
type AttendanceDTO struct {
	ID          string `json:"id"`
	EmployeeID  string `json:"employee_id"`
	Date        string `json:"date"`
	Status      string `json:"status"`
	MinutesLate int    `json:"minutes_late"`
}

// =============================================================================
// ACCUMULATION
// =============================================================================

// AccumulationDTO is one monthly counter row.
type AccumulationDTO struct {
	EmployeeID           string `json:"employee_id"`
	Month                int    `json:"month"`
	Year                 int    `json:"year"`
	LateArrivalsCount    int    `json:"late_arrivals_count"`
	DirectTardinessCount int    `json:"direct_tardiness_count"`
	FormalTardiesCount   int    `json:"formal_tardies_count"`
	AdministrativeActs   int    `json:"administrative_acts"`
	UpdatedAt            string `json:"updated_at,omitempty"`
}

// CorrectAccumulationRequest overwrites a month's counters.
type CorrectAccumulationRequest struct {
	Month                int    `json:"month"`
	Year                 int    `json:"year"`
	LateArrivalsCount    int    `json:"late_arrivals_count"`
	DirectTardinessCount int    `json:"direct_tardiness_count"`
	FormalTardiesCount   int    `json:"formal_tardies_count"`
	AdministrativeActs   int    `json:"administrative_acts"`
	ActorID              string `json:"actor_id"`
}

// =============================================================================
// DISCIPLINARY RECORDS
// =============================================================================

// DisciplinaryRecordDTO represents a record in API responses.
type DisciplinaryRecordDTO struct {
	ID             string  `json:"id"`
	EmployeeID     string  `json:"employee_id"`
	RuleID         string  `json:"rule_id"`
	ActionType     string  `json:"action_type"`
	TriggerType    string  `json:"trigger_type"`
	TriggerCount   int     `json:"trigger_count"`
	AppliedDate    string  `json:"applied_date"`
	EffectiveDate  *string `json:"effective_date,omitempty"`
	ExpirationDate *string `json:"expiration_date,omitempty"`
	SuspensionDays *int    `json:"suspension_days,omitempty"`
	Reason         string  `json:"reason"`
	Status         string  `json:"status"`
	ApprovedByID   *string `json:"approved_by_id,omitempty"`
	ApprovedAt     *string `json:"approved_at,omitempty"`
	Notes          *string `json:"notes,omitempty"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

// DecisionRequest approves or rejects a PENDING record.
type DecisionRequest struct {
	ApproverID string  `json:"approver_id"`
	Approved   bool    `json:"approved"`
	Notes      *string `json:"notes,omitempty"`
}

// CompleteRequest closes an ACTIVE record.
type CompleteRequest struct {
	ActorID string `json:"actor_id"`
}

// =============================================================================
// INCIDENTS
// =============================================================================

// IncidentTypeDTO represents an incident type.
type IncidentTypeDTO struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Metric      string `json:"metric"`
	Description string `json:"description,omitempty"`
}

// IncidentConfigDTO represents a threshold config. ThresholdValue is a
// decimal string.
type IncidentConfigDTO struct {
	ID             string  `json:"id"`
	IncidentTypeID string  `json:"incident_type_id"`
	ThresholdValue string  `json:"threshold_value"`
	Operator       string  `json:"operator"`
	Period         string  `json:"period"`
	DepartmentID   *string `json:"department_id,omitempty"`
	IsActive       *bool   `json:"is_active,omitempty"`
	CreatedAt      string  `json:"created_at,omitempty"`
}

// IncidentDTO represents a raised incident.
type IncidentDTO struct {
	ID             string  `json:"id"`
	ConfigID       string  `json:"config_id"`
	IncidentTypeID string  `json:"incident_type_id"`
	DepartmentID   *string `json:"department_id,omitempty"`
	PeriodStart    string  `json:"period_start"`
	PeriodEnd      string  `json:"period_end"`
	Value          string  `json:"value"`
	Threshold      string  `json:"threshold"`
	Operator       string  `json:"operator"`
	CreatedAt      string  `json:"created_at"`
}

// =============================================================================
// AUDIT & SCENARIOS
// =============================================================================

// AuditEntryDTO represents one audit log entry.
type AuditEntryDTO struct {
	ID         string         `json:"id"`
	Timestamp  string         `json:"timestamp"`
	ActorID    string         `json:"actor_id"`
	Action     string         `json:"action"`
	EmployeeID string         `json:"employee_id,omitempty"`
	RecordID   string         `json:"record_id,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// ErrorResponse is returned for all errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toEmployeeDTO(e discipline.Employee) EmployeeDTO {
	dto := EmployeeDTO{
		ID:           string(e.ID),
		Name:         e.Name,
		Email:        e.Email,
		DepartmentID: e.DepartmentID,
	}
	if !e.HireDate.IsZero() {
		dto.HireDate = e.HireDate.Format(dateLayout)
	}
	if !e.CreatedAt.IsZero() {
		dto.CreatedAt = e.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toAccumulationDTO(a discipline.Accumulation) AccumulationDTO {
	dto := AccumulationDTO{
		EmployeeID:           string(a.Key.EmployeeID),
		Month:                int(a.Key.Period.Month),
		Year:                 a.Key.Period.Year,
		LateArrivalsCount:    a.LateArrivals,
		DirectTardinessCount: a.DirectTardiness,
		FormalTardiesCount:   a.FormalTardies,
		AdministrativeActs:   a.AdministrativeActs,
	}
	if !a.UpdatedAt.IsZero() {
		dto.UpdatedAt = a.UpdatedAt.Format(time.RFC3339)
	}
	return dto
}

func toRecordDTO(r discipline.DisciplinaryRecord) DisciplinaryRecordDTO {
	return DisciplinaryRecordDTO{
		ID:             string(r.ID),
		EmployeeID:     string(r.EmployeeID),
		RuleID:         string(r.RuleID),
		ActionType:     string(r.ActionType),
		TriggerType:    string(r.TriggerType),
		TriggerCount:   r.TriggerCount,
		AppliedDate:    r.AppliedDate.Format(time.RFC3339),
		EffectiveDate:  formatDatePtr(r.EffectiveDate),
		ExpirationDate: formatDatePtr(r.ExpirationDate),
		SuspensionDays: r.SuspensionDays,
		Reason:         r.Reason,
		Status:         string(r.Status),
		ApprovedByID:   r.ApprovedByID,
		ApprovedAt:     formatTimePtr(r.ApprovedAt),
		Notes:          r.Notes,
		CreatedAt:      r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      r.UpdatedAt.Format(time.RFC3339),
	}
}

func toEscalationDTO(o *discipline.EscalationOutcome) *EscalationDTO {
	if o == nil {
		return nil
	}
	dto := &EscalationDTO{
		RuleApplied:   o.RuleApplied,
		RuleID:        string(o.RuleID),
		ActionType:    string(o.ActionType),
		TriggerType:   string(o.TriggerType),
		TriggerCount:  o.TriggerCount,
		AlreadyExists: o.AlreadyExists,
	}
	if o.Record != nil {
		rec := toRecordDTO(*o.Record)
		dto.Record = &rec
	}
	return dto
}

func toTardinessResultDTO(r *discipline.TardinessResult) TardinessResultDTO {
	dto := TardinessResultDTO{
		MinutesLate:                 r.MinutesLate,
		RuleApplied:                 r.RuleApplied,
		Accumulated:                 r.Accumulated,
		ConversionToFormalTardiness: r.ConversionToFormalTardiness,
		DisciplinaryActionTriggered: toEscalationDTO(r.DisciplinaryActionTriggered),
	}
	if r.Rule != nil {
		dto.RuleID = string(r.Rule.ID)
	}
	if r.Counters != nil {
		acc := toAccumulationDTO(*r.Counters)
		dto.Counters = &acc
	}
	return dto
}

func toIncidentTypeDTO(t discipline.IncidentType) IncidentTypeDTO {
	return IncidentTypeDTO{
		ID:          t.ID,
		Code:        t.Code,
		Name:        t.Name,
		Metric:      string(t.Metric),
		Description: t.Description,
	}
}

func toIncidentConfigDTO(c discipline.IncidentConfig) IncidentConfigDTO {
	active := c.IsActive
	return IncidentConfigDTO{
		ID:             c.ID,
		IncidentTypeID: c.IncidentTypeID,
		ThresholdValue: c.ThresholdValue.String(),
		Operator:       string(c.Operator),
		Period:         string(c.Period),
		DepartmentID:   c.DepartmentID,
		IsActive:       &active,
		CreatedAt:      c.CreatedAt.Format(time.RFC3339),
	}
}

func toIncidentDTO(i discipline.Incident) IncidentDTO {
	return IncidentDTO{
		ID:             i.ID,
		ConfigID:       i.ConfigID,
		IncidentTypeID: i.IncidentTypeID,
		DepartmentID:   i.DepartmentID,
		PeriodStart:    i.PeriodStart.Format(time.RFC3339),
		PeriodEnd:      i.PeriodEnd.Format(time.RFC3339),
		Value:          i.Value.String(),
		Threshold:      i.Threshold.String(),
		Operator:       string(i.Operator),
		CreatedAt:      i.CreatedAt.Format(time.RFC3339),
	}
}

func toAuditEntryDTO(e discipline.AuditEntry) AuditEntryDTO {
	return AuditEntryDTO{
		ID:         e.ID,
		Timestamp:  e.Timestamp.Format(time.RFC3339Nano),
		ActorID:    e.ActorID,
		Action:     string(e.Action),
		EmployeeID: string(e.EmployeeID),
		RecordID:   string(e.RecordID),
		Payload:    e.Payload,
	}
}

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
