/*
handlers.go - HTTP request handlers

PURPOSE:
  Implements all REST API endpoints. Handlers decode requests, call the
  discipline engine, and convert results to DTOs.

HANDLER STRUCTURE:
  Each handler follows the pattern:
  1. Parse URL params and request body
  2. Validate input
  3. Call the engine (never the store for writes that escalate)
  4. Convert result to DTO
  5. Return JSON response

ERROR HANDLING:
  writeEngineError maps engine errors to status codes:
  - 400 Bad Request:          validation and overlapping rules
  - 404 Not Found:            unknown record, rule or employee
  - 409 Conflict:             transition from the wrong status
  - 422 Unprocessable Entity: referenced configuration missing
  - 503 Service Unavailable:  retries exhausted on contention
  - 500 Internal Error:       everything else

ACTOR IDENTITY:
  Administrative writes take the actor from the X-Actor-ID header and
  fall back to "admin". There is no authentication layer.

SEE ALSO:
  - server.go: Route definitions
  - dto.go: Request/response types
  - discipline/errors.go: Error taxonomy
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/warp/discipline-engine/discipline"
	"github.com/warp/discipline-engine/factory"
)

const defaultActor = "admin"

// Store is the persistence the handlers need: the transactional store plus
// a reset used by demo scenarios.
type Store interface {
	discipline.TxStore
	Reset(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	Engine  *discipline.Engine
	Store   Store
	Factory *factory.RuleSetFactory
	Clock   discipline.Clock
	Logger  *slog.Logger

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler.
func NewHandler(engine *discipline.Engine, store Store, clock discipline.Clock, logger *slog.Logger) *Handler {
	if clock == nil {
		clock = discipline.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Engine:  engine,
		Store:   store,
		Factory: factory.NewRuleSetFactory(),
		Clock:   clock,
		Logger:  logger,
	}
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateEmployee creates or replaces an employee.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}

	emp := discipline.Employee{
		ID:           discipline.EmployeeID(req.ID),
		Name:         req.Name,
		Email:        req.Email,
		DepartmentID: req.DepartmentID,
		CreatedAt:    h.Clock.Now(),
	}
	if req.HireDate != "" {
		hire, err := time.Parse(dateLayout, req.HireDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid hire_date format (use YYYY-MM-DD)", err)
			return
		}
		emp.HireDate = hire
	}

	if err := h.Store.SaveEmployee(r.Context(), emp); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

// GetEmployee returns one employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	emp, err := h.Store.GetEmployee(r.Context(), discipline.EmployeeID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get employee", err)
		return
	}
	if emp == nil {
		writeError(w, http.StatusNotFound, "employee not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(*emp))
}

// =============================================================================
// CHECK-IN & ABSENCE HANDLERS
// =============================================================================

// SubmitCheckIn classifies a check-in and escalates when warranted.
func (h *Handler) SubmitCheckIn(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")

	var req CheckInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	checkIn, err := time.Parse(time.RFC3339, req.CheckInTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid check_in_time format (use RFC 3339)", err)
		return
	}
	scheduled, err := time.Parse(time.RFC3339, req.ScheduledTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid scheduled_time format (use RFC 3339)", err)
		return
	}

	result, err := h.Engine.ProcessTardiness(r.Context(), discipline.CheckIn{
		EmployeeID:    discipline.EmployeeID(employeeID),
		CheckInTime:   checkIn,
		ScheduledTime: scheduled,
		AttendanceID:  req.AttendanceID,
	})
	if err != nil {
		writeEngineError(w, "failed to process check-in", err)
		return
	}
	writeJSON(w, http.StatusOK, toTardinessResultDTO(result))
}

// ReportAbsence records an unjustified absence and escalates on the
// trailing count.
func (h *Handler) ReportAbsence(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")

	var req AbsenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	day, err := time.Parse(dateLayout, req.AbsenceDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid absence_date format (use YYYY-MM-DD)", err)
		return
	}

	result, err := h.Engine.ProcessUnjustifiedAbsence(r.Context(), discipline.EmployeeID(employeeID), day)
	if err != nil {
		writeEngineError(w, "failed to process absence", err)
		return
	}
	writeJSON(w, http.StatusOK, AbsenceResultDTO{
		AbsenceCount:                result.AbsenceCount,
		DisciplinaryActionTriggered: toEscalationDTO(result.DisciplinaryActionTriggered),
	})
}

// RecordAttendance stores an attendance row without escalation.
func (h *Handler) RecordAttendance(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")

	var req AttendanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	day, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format (use YYYY-MM-DD)", err)
		return
	}

	rec, err := h.Engine.RecordAttendance(r.Context(), discipline.AttendanceRecord{
		ID:          req.ID,
		EmployeeID:  discipline.EmployeeID(employeeID),
		Date:        day,
		Status:      discipline.AttendanceStatus(strings.ToUpper(req.Status)),
		MinutesLate: req.MinutesLate,
	})
	if err != nil {
		writeEngineError(w, "failed to record attendance", err)
		return
	}
	writeJSON(w, http.StatusCreated, AttendanceDTO{
		ID:          rec.ID,
		EmployeeID:  string(rec.EmployeeID),
		Date:        rec.Date.Format(dateLayout),
		Status:      string(rec.Status),
		MinutesLate: rec.MinutesLate,
	})
}

// =============================================================================
// ACCUMULATION HANDLERS
// =============================================================================

// GetAccumulation returns the counters for ?month=&year=, defaulting to the
// current month.
func (h *Handler) GetAccumulation(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")

	var period *discipline.MonthPeriod
	if ms, ys := r.URL.Query().Get("month"), r.URL.Query().Get("year"); ms != "" || ys != "" {
		month, err1 := strconv.Atoi(ms)
		year, err2 := strconv.Atoi(ys)
		if err1 != nil || err2 != nil {
			writeError(w, http.StatusBadRequest, "month and year must both be integers", nil)
			return
		}
		period = &discipline.MonthPeriod{Month: time.Month(month), Year: year}
	}

	acc, err := h.Engine.GetEmployeeAccumulation(r.Context(), discipline.EmployeeID(employeeID), period)
	if err != nil {
		writeEngineError(w, "failed to get accumulation", err)
		return
	}
	writeJSON(w, http.StatusOK, toAccumulationDTO(acc))
}

// CorrectAccumulation overwrites a month's counters.
func (h *Handler) CorrectAccumulation(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")

	var req CorrectAccumulationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	actor := req.ActorID
	if actor == "" {
		actor = actorFrom(r)
	}

	acc, err := h.Engine.CorrectAccumulation(r.Context(),
		discipline.AccumulationKey{
			EmployeeID: discipline.EmployeeID(employeeID),
			Period:     discipline.MonthPeriod{Month: time.Month(req.Month), Year: req.Year},
		},
		discipline.Counters{
			LateArrivals:       req.LateArrivalsCount,
			DirectTardiness:    req.DirectTardinessCount,
			FormalTardies:      req.FormalTardiesCount,
			AdministrativeActs: req.AdministrativeActs,
		},
		actor)
	if err != nil {
		writeEngineError(w, "failed to correct accumulation", err)
		return
	}
	writeJSON(w, http.StatusOK, toAccumulationDTO(acc))
}

// =============================================================================
// DISCIPLINARY RECORD HANDLERS
// =============================================================================

// ListDisciplinaryRecords returns an employee's records, newest first.
// Optional filters: ?status=PENDING&from=2025-01-01&to=2025-01-31.
func (h *Handler) ListDisciplinaryRecords(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")
	q := r.URL.Query()

	var filter discipline.RecordFilter
	if s := q.Get("status"); s != "" {
		status := discipline.RecordStatus(strings.ToUpper(s))
		filter.Status = &status
	}
	from, err := parseOptionalDate(q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from date (use YYYY-MM-DD)", err)
		return
	}
	to, err := parseOptionalDate(q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to date (use YYYY-MM-DD)", err)
		return
	}
	filter.From = from
	if to != nil {
		// Inclusive of the whole day.
		end := to.AddDate(0, 0, 1).Add(-time.Nanosecond)
		filter.To = &end
	}

	records, err := h.Engine.GetEmployeeDisciplinaryRecords(r.Context(), discipline.EmployeeID(employeeID), filter)
	if err != nil {
		writeEngineError(w, "failed to list disciplinary records", err)
		return
	}

	dtos := make([]DisciplinaryRecordDTO, len(records))
	for i, rec := range records {
		dtos[i] = toRecordDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// DecideRecord approves or rejects a PENDING record.
func (h *Handler) DecideRecord(w http.ResponseWriter, r *http.Request) {
	recordID := chi.URLParam(r, "id")

	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	approver := req.ApproverID
	if approver == "" {
		approver = actorFrom(r)
	}

	rec, err := h.Engine.ApproveDisciplinaryRecord(r.Context(), discipline.DecisionInput{
		RecordID:   discipline.RecordID(recordID),
		ApproverID: approver,
		Approved:   req.Approved,
		Notes:      req.Notes,
	})
	if err != nil {
		writeEngineError(w, "failed to decide record", err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTO(rec))
}

// CompleteRecord moves an ACTIVE record to COMPLETED.
func (h *Handler) CompleteRecord(w http.ResponseWriter, r *http.Request) {
	recordID := chi.URLParam(r, "id")

	var req CompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	actor := req.ActorID
	if actor == "" {
		actor = actorFrom(r)
	}

	rec, err := h.Engine.CompleteDisciplinaryRecord(r.Context(), discipline.RecordID(recordID), actor)
	if err != nil {
		writeEngineError(w, "failed to complete record", err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTO(rec))
}

// =============================================================================
// RULE HANDLERS
// =============================================================================

// ListTardinessRules returns all lateness rules. ?active=true hides
// deactivated ones.
func (h *Handler) ListTardinessRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.Store.ListTardinessRules(r.Context(), r.URL.Query().Get("active") == "true")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list tardiness rules", err)
		return
	}
	writeJSON(w, http.StatusOK, h.Factory.ToJSON(discipline.RuleSet{Tardiness: rules}).TardinessRules)
}

// SaveTardinessRule creates or replaces one lateness rule.
func (h *Handler) SaveTardinessRule(w http.ResponseWriter, r *http.Request) {
	var req factory.TardinessRuleJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	set, err := h.Factory.FromJSON(factory.RuleSetJSON{TardinessRules: []factory.TardinessRuleJSON{req}})
	if err != nil {
		writeEngineError(w, "invalid tardiness rule", err)
		return
	}

	saved, err := h.Engine.SaveTardinessRule(r.Context(), set.Tardiness[0], actorFrom(r))
	if err != nil {
		writeEngineError(w, "failed to save tardiness rule", err)
		return
	}
	out := h.Factory.ToJSON(discipline.RuleSet{Tardiness: []discipline.TardinessRule{saved}})
	writeJSON(w, http.StatusCreated, out.TardinessRules[0])
}

// ListDisciplinaryRules returns escalation rules, optionally for one
// ?trigger=FORMAL_TARDIES.
func (h *Handler) ListDisciplinaryRules(w http.ResponseWriter, r *http.Request) {
	trigger := discipline.TriggerType(strings.ToUpper(r.URL.Query().Get("trigger")))
	if trigger != "" && !trigger.Valid() {
		writeError(w, http.StatusBadRequest, "trigger must be FORMAL_TARDIES or UNJUSTIFIED_ABSENCES", nil)
		return
	}
	rules, err := h.Store.ListDisciplinaryRules(r.Context(), trigger, r.URL.Query().Get("active") == "true")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list disciplinary rules", err)
		return
	}
	writeJSON(w, http.StatusOK, h.Factory.ToJSON(discipline.RuleSet{Disciplinary: rules}).DisciplinaryRules)
}

// SaveDisciplinaryRule creates or replaces one escalation rule.
func (h *Handler) SaveDisciplinaryRule(w http.ResponseWriter, r *http.Request) {
	var req factory.DisciplinaryRuleJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	set, err := h.Factory.FromJSON(factory.RuleSetJSON{DisciplinaryRules: []factory.DisciplinaryRuleJSON{req}})
	if err != nil {
		writeEngineError(w, "invalid disciplinary rule", err)
		return
	}

	saved, err := h.Engine.SaveDisciplinaryRule(r.Context(), set.Disciplinary[0], actorFrom(r))
	if err != nil {
		writeEngineError(w, "failed to save disciplinary rule", err)
		return
	}
	out := h.Factory.ToJSON(discipline.RuleSet{Disciplinary: []discipline.DisciplinaryActionRule{saved}})
	writeJSON(w, http.StatusCreated, out.DisciplinaryRules[0])
}

// ImportRules saves a complete rule document atomically.
func (h *Handler) ImportRules(w http.ResponseWriter, r *http.Request) {
	var req factory.RuleSetJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	set, err := h.Factory.FromJSON(req)
	if err != nil {
		writeEngineError(w, "invalid rule set", err)
		return
	}
	if err := h.Engine.ImportRuleSet(r.Context(), set, actorFrom(r)); err != nil {
		writeEngineError(w, "failed to import rule set", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"tardiness_rules":    len(set.Tardiness),
		"disciplinary_rules": len(set.Disciplinary),
	})
}

// =============================================================================
// INCIDENT HANDLERS
// =============================================================================

// ListIncidentTypes returns all incident types.
func (h *Handler) ListIncidentTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.Store.ListIncidentTypes(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list incident types", err)
		return
	}
	dtos := make([]IncidentTypeDTO, len(types))
	for i, t := range types {
		dtos[i] = toIncidentTypeDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveIncidentType creates or replaces an incident type.
func (h *Handler) SaveIncidentType(w http.ResponseWriter, r *http.Request) {
	var req IncidentTypeDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	saved, err := h.Engine.SaveIncidentType(r.Context(), discipline.IncidentType{
		ID:          req.ID,
		Code:        req.Code,
		Name:        req.Name,
		Metric:      discipline.Metric(strings.ToUpper(req.Metric)),
		Description: req.Description,
	})
	if err != nil {
		writeEngineError(w, "failed to save incident type", err)
		return
	}
	writeJSON(w, http.StatusCreated, toIncidentTypeDTO(saved))
}

// ListIncidentConfigs returns threshold configs. ?active=true hides
// deactivated ones.
func (h *Handler) ListIncidentConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := h.Store.ListIncidentConfigs(r.Context(), r.URL.Query().Get("active") == "true")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list incident configs", err)
		return
	}
	dtos := make([]IncidentConfigDTO, len(configs))
	for i, c := range configs {
		dtos[i] = toIncidentConfigDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveIncidentConfig creates or replaces a threshold config.
func (h *Handler) SaveIncidentConfig(w http.ResponseWriter, r *http.Request) {
	var req IncidentConfigDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	threshold, err := decimal.NewFromString(req.ThresholdValue)
	if err != nil {
		writeError(w, http.StatusBadRequest, "threshold_value must be a decimal string", err)
		return
	}
	op, err := discipline.ParseOperator(req.Operator)
	if err != nil {
		writeEngineError(w, "invalid operator", err)
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	saved, err := h.Engine.SaveIncidentConfig(r.Context(), discipline.IncidentConfig{
		ID:             req.ID,
		IncidentTypeID: req.IncidentTypeID,
		ThresholdValue: threshold,
		Operator:       op,
		Period:         discipline.PeriodGranularity(strings.ToUpper(req.Period)),
		DepartmentID:   req.DepartmentID,
		IsActive:       active,
	})
	if err != nil {
		writeEngineError(w, "failed to save incident config", err)
		return
	}
	writeJSON(w, http.StatusCreated, toIncidentConfigDTO(saved))
}

// ListIncidents returns raised incidents, newest first. ?config_id= narrows
// to one config.
func (h *Handler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	incidents, err := h.Store.ListIncidents(r.Context(), discipline.IncidentFilter{
		ConfigID: r.URL.Query().Get("config_id"),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list incidents", err)
		return
	}
	dtos := make([]IncidentDTO, len(incidents))
	for i, inc := range incidents {
		dtos[i] = toIncidentDTO(inc)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// EvaluateThresholds runs every active config now and returns the
// incidents raised by this run.
func (h *Handler) EvaluateThresholds(w http.ResponseWriter, r *http.Request) {
	raised, err := h.Engine.EvaluateThresholds(r.Context())
	if err != nil {
		writeEngineError(w, "failed to evaluate thresholds", err)
		return
	}
	dtos := make([]IncidentDTO, len(raised))
	for i, inc := range raised {
		dtos[i] = toIncidentDTO(inc)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// AUDIT HANDLERS
// =============================================================================

// ListAudit returns audit entries in chronological order.
// Filters: ?employee_id=&record_id=&action=record_created (repeatable).
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := discipline.AuditFilter{
		EmployeeID: discipline.EmployeeID(q.Get("employee_id")),
		RecordID:   discipline.RecordID(q.Get("record_id")),
	}
	for _, a := range q["action"] {
		filter.Actions = append(filter.Actions, discipline.AuditAction(a))
	}

	entries, err := h.Store.QueryAudit(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query audit log", err)
		return
	}
	dtos := make([]AuditEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toAuditEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func actorFrom(r *http.Request) string {
	if a := r.Header.Get("X-Actor-ID"); a != "" {
		return a
	}
	return defaultActor
}

func parseOptionalDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// statusFor classifies an engine error for HTTP.
func statusFor(err error) int {
	switch {
	case discipline.IsClientError(err):
		return http.StatusBadRequest
	case discipline.IsNotFound(err):
		return http.StatusNotFound
	case discipline.IsInvalidState(err):
		return http.StatusConflict
	case discipline.IsConfigurationError(err):
		return http.StatusUnprocessableEntity
	case discipline.IsRetryable(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeEngineError(w http.ResponseWriter, message string, err error) {
	writeError(w, statusFor(err), message, err)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
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
