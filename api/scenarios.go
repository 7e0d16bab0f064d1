/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for demos. Each scenario imports a rule preset, creates employees,
	and replays check-ins or absences through the engine so the resulting
	counters and records are exactly what production traffic would produce.

AVAILABLE SCENARIOS:

	standard-policy:      Standard rules, three employees, no events
	chronic-lateness:     Minor lates then direct tardies, two escalations
	absence-escalation:   Three absences, written warning then pending suspension
	strict-policy:        Zero-tolerance rules, one late check-in
	department-incidents: Late-arrival threshold on one department, evaluated

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Import a rule preset via factory
 3. Create employees
 4. Replay events through the engine (dates in the current month)

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "chronic-lateness"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Engine-backed handlers
  - factory/presets.go: Rule set presets
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/discipline-engine/discipline"
	"github.com/warp/discipline-engine/factory"
)

const scenarioActor = "scenario-loader"

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "standard-policy",
		Name:        "Standard Policy",
		Description: "Standard lateness bands and escalation tiers, three employees, no events yet",
		Category:    "setup",
	},
	{
		ID:          "chronic-lateness",
		Name:        "Chronic Lateness",
		Description: "Three minor late arrivals convert to a warning, direct tardies reach a written warning",
		Category:    "tardiness",
	},
	{
		ID:          "absence-escalation",
		Name:        "Absence Escalation",
		Description: "Three unjustified absences: written warning, then a suspension awaiting approval",
		Category:    "absences",
	},
	{
		ID:          "strict-policy",
		Name:        "Strict Policy",
		Description: "Zero tolerance: a single late check-in is a formal tardy and a warning",
		Category:    "tardiness",
	},
	{
		ID:          "department-incidents",
		Name:        "Department Incidents",
		Description: "Daily late-arrival threshold on operations raises an incident",
		Category:    "incidents",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	loaders := map[string]func(context.Context) error{
		"standard-policy":      h.loadStandardPolicyScenario,
		"chronic-lateness":     h.loadChronicLatenessScenario,
		"absence-escalation":   h.loadAbsenceEscalationScenario,
		"strict-policy":        h.loadStrictPolicyScenario,
		"department-incidents": h.loadDepartmentIncidentsScenario,
	}
	load, ok := loaders[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown scenario", nil)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.currentScenario = ""
	if err := load(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load scenario: %v", err), err)
		return
	}
	h.currentScenario = req.ScenarioID

	h.Logger.Info("scenario loaded", "scenario", req.ScenarioID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadStandardPolicyScenario(ctx context.Context) error {
	if err := h.resetWithRules(ctx, factory.StandardRuleSetJSON()); err != nil {
		return err
	}
	return h.addEmployees(ctx, demoEmployees()...)
}

// Alice: three 10-minute lates make one formal tardy (WARNING), then three
// 45-minute direct tardies bring her to four; the written warning fires at
// three and the fourth is deduplicated.
func (h *Handler) loadChronicLatenessScenario(ctx context.Context) error {
	if err := h.loadStandardPolicyScenario(ctx); err != nil {
		return err
	}
	return h.playLateCheckIns(ctx, "emp-alice", h.monthStart(), 10, 10, 10, 45, 45, 45)
}

// Bob: absences on three consecutive days of the current month.
func (h *Handler) loadAbsenceEscalationScenario(ctx context.Context) error {
	if err := h.loadStandardPolicyScenario(ctx); err != nil {
		return err
	}
	start := h.monthStart()
	for i := 0; i < 3; i++ {
		if _, err := h.Engine.ProcessUnjustifiedAbsence(ctx, "emp-bob", start.AddDate(0, 0, i)); err != nil {
			return fmt.Errorf("absence %d: %w", i+1, err)
		}
	}
	return nil
}

func (h *Handler) loadStrictPolicyScenario(ctx context.Context) error {
	if err := h.resetWithRules(ctx, factory.StrictRuleSetJSON(30)); err != nil {
		return err
	}
	if err := h.addEmployees(ctx, demoEmployees()...); err != nil {
		return err
	}
	return h.playLateCheckIns(ctx, "emp-carol", h.monthStart(), 3)
}

// Every operations employee arrives late today; the DAILY config on
// operations trips at three and an organization-wide MONTHLY config on
// minutes late stays below its threshold.
func (h *Handler) loadDepartmentIncidentsScenario(ctx context.Context) error {
	if err := h.loadStandardPolicyScenario(ctx); err != nil {
		return err
	}
	ops := []discipline.Employee{
		{ID: "emp-dan", Name: "Dan Okafor", Email: "dan@example.com", DepartmentID: "operations"},
		{ID: "emp-erin", Name: "Erin Walsh", Email: "erin@example.com", DepartmentID: "operations"},
	}
	if err := h.addEmployees(ctx, ops...); err != nil {
		return err
	}

	if _, err := h.Engine.SaveIncidentType(ctx, discipline.IncidentType{
		ID: "late-arrivals", Code: "LATE", Name: "Late arrivals",
		Metric: discipline.MetricLateArrivals,
	}); err != nil {
		return err
	}
	if _, err := h.Engine.SaveIncidentType(ctx, discipline.IncidentType{
		ID: "minutes-late", Code: "MIN_LATE", Name: "Minutes late",
		Metric: discipline.MetricMinutesLate,
	}); err != nil {
		return err
	}
	dept := "operations"
	configs := []discipline.IncidentConfig{
		{
			ID: "ops-daily-late", IncidentTypeID: "late-arrivals",
			ThresholdValue: decimal.NewFromInt(3), Operator: discipline.OpGTE,
			Period: discipline.PeriodDaily, DepartmentID: &dept, IsActive: true,
		},
		{
			ID: "org-monthly-minutes", IncidentTypeID: "minutes-late",
			ThresholdValue: decimal.NewFromInt(600), Operator: discipline.OpGT,
			Period: discipline.PeriodMonthly, IsActive: true,
		},
	}
	for _, c := range configs {
		if _, err := h.Engine.SaveIncidentConfig(ctx, c); err != nil {
			return err
		}
	}

	today := discipline.DayOf(h.Clock.Now())
	for _, id := range []discipline.EmployeeID{"emp-bob", "emp-dan", "emp-erin"} {
		if err := h.playLateCheckIns(ctx, id, today, 20); err != nil {
			return err
		}
	}
	_, err := h.Engine.EvaluateThresholds(ctx)
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

func demoEmployees() []discipline.Employee {
	return []discipline.Employee{
		{ID: "emp-alice", Name: "Alice Johnson", Email: "alice@example.com", DepartmentID: "engineering"},
		{ID: "emp-bob", Name: "Bob Martinez", Email: "bob@example.com", DepartmentID: "operations"},
		{ID: "emp-carol", Name: "Carol Chen", Email: "carol@example.com", DepartmentID: "engineering"},
	}
}

func (h *Handler) resetWithRules(ctx context.Context, rulesJSON string) error {
	if err := h.Store.Reset(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	set, err := h.Factory.ParseRuleSet(rulesJSON)
	if err != nil {
		return fmt.Errorf("parse preset: %w", err)
	}
	return h.Engine.ImportRuleSet(ctx, set, scenarioActor)
}

func (h *Handler) addEmployees(ctx context.Context, emps ...discipline.Employee) error {
	now := h.Clock.Now()
	for _, e := range emps {
		e.CreatedAt = now
		e.HireDate = time.Date(now.Year()-1, time.January, 15, 0, 0, 0, 0, time.UTC)
		if err := h.Store.SaveEmployee(ctx, e); err != nil {
			return fmt.Errorf("save employee %s: %w", e.ID, err)
		}
	}
	return nil
}

// playLateCheckIns submits one check-in per consecutive day from start,
// scheduled at 09:00 and arriving the given minutes late.
func (h *Handler) playLateCheckIns(ctx context.Context, employeeID discipline.EmployeeID, start time.Time, minutesLate ...int) error {
	for i, m := range minutesLate {
		day := discipline.DayOf(start).AddDate(0, 0, i)
		scheduled := day.Add(9 * time.Hour)
		_, err := h.Engine.ProcessTardiness(ctx, discipline.CheckIn{
			EmployeeID:    employeeID,
			ScheduledTime: scheduled,
			CheckInTime:   scheduled.Add(time.Duration(m) * time.Minute),
		})
		if err != nil {
			return fmt.Errorf("check-in %d for %s: %w", i+1, employeeID, err)
		}
	}
	return nil
}

func (h *Handler) monthStart() time.Time {
	now := h.Clock.Now()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}
