/*
engine.go - Processing facade

PURPOSE:
  The entry point consumed by the attendance check-in path and the
  administrative screens. Orchestrates classifier, resolvers, accumulator,
  deduplication guard and record lifecycle inside one transaction per event.

CHECK-IN STATE MACHINE:
  Start ─▶ Classified ─┬─▶ NoOp (minutesLate == 0, nothing persisted)
                       │
                       └─▶ RuleMatched? ─┬─ no  ─▶ Done (gap logged, LATE attendance row kept)
                                         │
                                         └─ yes ─▶ Accumulated ─▶ ConversionChecked
                                                                   │
                                        conversion ◀───────────────┘
                                             │
                                             ▼
                                   EscalationChecked ─▶ Done

TRANSACTIONS:
  Attendance row, accumulation mutation, deduplication check, record
  insert, administrative act increment and audit entries all run in one
  WithTx call. A lost race (ErrConcurrentModification) re-runs the whole
  function up to MaxRetries times; nothing partial is ever visible.

  Notifications and observer events are emitted only after commit, so a
  retried attempt never notifies twice.

EXAMPLE:
  eng := discipline.NewEngine(store, discipline.Options{Logger: logger})
  res, err := eng.ProcessTardiness(ctx, discipline.CheckIn{
      EmployeeID:    "emp-001",
      CheckInTime:   checkIn,
      ScheduledTime: scheduled,
  })

SEE ALSO:
  - accumulator.go, rules.go, escalation.go, lifecycle.go: The components
  - threshold.go: Incident evaluation exposed through EvaluateThresholds
*/
package discipline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// OPTIONS
// =============================================================================

const (
	DefaultAbsenceWindowDays = 30
	DefaultMaxRetries        = 3
)

// Options configures an Engine. Zero values select defaults.
type Options struct {
	Clock    Clock
	Notifier Notifier
	Observer Observer
	Logger   *slog.Logger

	// AbsenceWindowDays is the number of calendar days, the absence day
	// included, over which absences are counted.
	AbsenceWindowDays int

	// MaxRetries bounds re-runs after ErrConcurrentModification.
	MaxRetries int

	NewID func() string
}

// =============================================================================
// RESULTS
// =============================================================================

// CheckIn is one attendance check-in event.
type CheckIn struct {
	EmployeeID    EmployeeID
	CheckInTime   time.Time
	ScheduledTime time.Time
	AttendanceID  string // optional; generated when empty
}

// EscalationOutcome summarizes the disciplinary decision for one event.
type EscalationOutcome struct {
	RuleApplied   string
	RuleID        RuleID
	ActionType    ActionType
	TriggerType   TriggerType
	TriggerCount  int
	AlreadyExists bool
	Record        *DisciplinaryRecord // nil when AlreadyExists
}

// TardinessResult is the outcome of ProcessTardiness.
type TardinessResult struct {
	MinutesLate                 int
	RuleApplied                 string // rule name, empty when none
	Rule                        *TardinessRule
	Accumulated                 bool
	Counters                    *Accumulation
	ConversionToFormalTardiness bool
	DisciplinaryActionTriggered *EscalationOutcome
}

// AbsenceResult is the outcome of ProcessUnjustifiedAbsence.
type AbsenceResult struct {
	AbsenceCount                int
	DisciplinaryActionTriggered *EscalationOutcome
}

// RuleSet is a complete rule configuration, imported atomically.
type RuleSet struct {
	Tardiness    []TardinessRule
	Disciplinary []DisciplinaryActionRule
}

type pendingNotification struct {
	rule   DisciplinaryActionRule
	record DisciplinaryRecord
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine is the processing facade. Safe for concurrent use.
type Engine struct {
	store     TxStore
	clock     Clock
	notifier  Notifier
	observer  Observer
	logger    *slog.Logger
	acc       *Accumulator
	lifecycle *RecordLifecycle
	evaluator *ThresholdEvaluator

	absenceWindowDays int
	maxRetries        int
	newID             func() string
}

func NewEngine(store TxStore, opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Notifier == nil {
		opts.Notifier = NopNotifier{}
	}
	if opts.Observer == nil {
		opts.Observer = NopObserver{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.AbsenceWindowDays <= 0 {
		opts.AbsenceWindowDays = DefaultAbsenceWindowDays
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}

	acc := &Accumulator{Clock: opts.Clock}
	return &Engine{
		store:    store,
		clock:    opts.Clock,
		notifier: opts.Notifier,
		observer: opts.Observer,
		logger:   opts.Logger,
		acc:      acc,
		lifecycle: &RecordLifecycle{
			Clock:       opts.Clock,
			Accumulator: acc,
			NewID:       opts.NewID,
		},
		evaluator: &ThresholdEvaluator{
			Store:    store,
			Clock:    opts.Clock,
			Logger:   opts.Logger,
			Observer: opts.Observer,
			NewID:    opts.NewID,
		},
		absenceWindowDays: opts.AbsenceWindowDays,
		maxRetries:        opts.MaxRetries,
		newID:             opts.NewID,
	}
}

// =============================================================================
// CHECK-IN PROCESSING
// =============================================================================

// ProcessTardiness classifies a check-in and applies its consequences.
func (e *Engine) ProcessTardiness(ctx context.Context, in CheckIn) (*TardinessResult, error) {
	if in.EmployeeID == "" {
		return nil, &ValidationError{Field: "employee_id", Value: in.EmployeeID, Reason: "is required"}
	}

	minutes := MinutesLate(in.CheckInTime, in.ScheduledTime)
	if minutes == 0 {
		e.observer.TardinessProcessed(OutcomeOnTime)
		return &TardinessResult{}, nil
	}

	log := e.logger.With(
		slog.String("employee_id", string(in.EmployeeID)),
		slog.Int("minutes_late", minutes))

	var result *TardinessResult
	var notes []pendingNotification
	err := e.inTx(ctx, "process_tardiness", func(s Store) error {
		result = &TardinessResult{MinutesLate: minutes}
		notes = nil

		rule, overlaps, err := ResolveTardinessRule(ctx, s, minutes)
		if err != nil {
			return err
		}
		for _, o := range overlaps {
			log.Warn("overlapping tardiness rules", slog.String("detail", o.Error()))
		}

		attendanceID := in.AttendanceID
		if attendanceID == "" {
			attendanceID = e.newID()
		}
		err = s.SaveAttendance(ctx, AttendanceRecord{
			ID:            attendanceID,
			EmployeeID:    in.EmployeeID,
			Date:          DayOf(in.CheckInTime),
			Status:        AttendanceLate,
			CheckInTime:   TimePtr(in.CheckInTime),
			ScheduledTime: TimePtr(in.ScheduledTime),
			MinutesLate:   minutes,
		})
		if err != nil {
			return fmt.Errorf("failed to save attendance: %w", err)
		}

		if rule == nil {
			return nil
		}
		result.Rule = rule
		result.RuleApplied = rule.Name

		key := AccumulationKey{EmployeeID: in.EmployeeID, Period: MonthOf(in.CheckInTime)}
		snap, err := e.acc.Apply(ctx, s, key, *rule)
		if err != nil {
			return err
		}
		result.Accumulated = true
		result.ConversionToFormalTardiness = snap.ConversionOccurred

		if snap.ConversionOccurred {
			outcome, note, err := e.escalate(ctx, s, in.EmployeeID, TriggerFormalTardies, snap.FormalTardies, key.Period)
			if err != nil {
				return err
			}
			result.DisciplinaryActionTriggered = outcome
			if note != nil {
				notes = append(notes, *note)
			}
		}

		// Re-read: an administrative act may have touched the same row.
		acc, _, err := e.acc.Load(ctx, s, key)
		if err != nil {
			return err
		}
		result.Counters = &acc
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Rule == nil {
		log.Warn("configuration gap: no tardiness rule covers minutes late",
			slog.Any("error", ErrConfigurationGap))
		e.observer.TardinessProcessed(OutcomeGap)
		return result, nil
	}

	e.observer.TardinessProcessed(string(result.Rule.Type))
	if result.ConversionToFormalTardiness {
		e.observer.ConversionOccurred(result.Rule.Type)
		e.reportEscalation(log, TriggerFormalTardies, result.Counters.FormalTardies, result.DisciplinaryActionTriggered)
	}
	log.Info("tardiness processed",
		slog.String("rule", result.RuleApplied),
		slog.Bool("conversion", result.ConversionToFormalTardiness),
		slog.Int("formal_tardies", result.Counters.FormalTardies))

	e.dispatch(ctx, notes)
	return result, nil
}

// ProcessUnjustifiedAbsence records an absence and escalates on the number
// of absences in the trailing window ending on absenceDate.
func (e *Engine) ProcessUnjustifiedAbsence(ctx context.Context, employeeID EmployeeID, absenceDate time.Time) (*AbsenceResult, error) {
	if employeeID == "" {
		return nil, &ValidationError{Field: "employee_id", Value: employeeID, Reason: "is required"}
	}
	if absenceDate.IsZero() {
		return nil, &ValidationError{Field: "absence_date", Value: absenceDate, Reason: "is required"}
	}

	day := DayOf(absenceDate)
	log := e.logger.With(
		slog.String("employee_id", string(employeeID)),
		slog.String("absence_date", day.Format(time.DateOnly)))

	var result *AbsenceResult
	var notes []pendingNotification
	err := e.inTx(ctx, "process_absence", func(s Store) error {
		result = &AbsenceResult{}
		notes = nil

		err := s.SaveAttendance(ctx, AttendanceRecord{
			ID:         e.newID(),
			EmployeeID: employeeID,
			Date:       day,
			Status:     AttendanceAbsent,
		})
		if err != nil {
			return fmt.Errorf("failed to save attendance: %w", err)
		}

		from := day.AddDate(0, 0, -(e.absenceWindowDays - 1))
		count, err := s.CountAttendance(ctx, employeeID, AttendanceAbsent, from, day)
		if err != nil {
			return fmt.Errorf("failed to count absences: %w", err)
		}
		result.AbsenceCount = count

		outcome, note, err := e.escalate(ctx, s, employeeID, TriggerUnjustifiedAbsences, count, MonthOf(day))
		if err != nil {
			return err
		}
		result.DisciplinaryActionTriggered = outcome
		if note != nil {
			notes = append(notes, *note)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.reportEscalation(log, TriggerUnjustifiedAbsences, result.AbsenceCount, result.DisciplinaryActionTriggered)
	log.Info("absence processed", slog.Int("absence_count", result.AbsenceCount))
	e.dispatch(ctx, notes)
	return result, nil
}

// escalate runs resolver, deduplication guard and record creation against
// the transaction-scoped store. A nil outcome means no rule qualifies.
func (e *Engine) escalate(ctx context.Context, s Store, employeeID EmployeeID, trigger TriggerType, count int, period MonthPeriod) (*EscalationOutcome, *pendingNotification, error) {
	rule, err := ResolveDisciplinaryRule(ctx, s, trigger, count)
	if err != nil {
		return nil, nil, err
	}
	if rule == nil {
		return nil, nil, nil
	}

	outcome := &EscalationOutcome{
		RuleApplied:  rule.Name,
		RuleID:       rule.ID,
		ActionType:   rule.ActionType,
		TriggerType:  trigger,
		TriggerCount: count,
	}

	exists, err := HasRecentRecord(ctx, s, employeeID, rule.ID, rule.PeriodDays, e.clock.Now())
	if err != nil {
		return nil, nil, err
	}
	if exists {
		outcome.AlreadyExists = true
		return outcome, nil, nil
	}

	rec, err := e.lifecycle.Create(ctx, s, CreateRecordInput{
		EmployeeID: employeeID,
		Rule:       *rule,
		Count:      count,
		Period:     period,
	})
	if err != nil {
		return nil, nil, err
	}
	outcome.Record = &rec

	if !rule.NotificationEnabled {
		return outcome, nil, nil
	}
	return outcome, &pendingNotification{rule: *rule, record: rec}, nil
}

func (e *Engine) reportEscalation(log *slog.Logger, trigger TriggerType, count int, outcome *EscalationOutcome) {
	switch {
	case outcome == nil:
		log.Warn("configuration gap: no disciplinary rule qualifies",
			slog.String("trigger_type", string(trigger)),
			slog.Int("count", count),
			slog.Any("error", ErrConfigurationGap))
		e.observer.EscalationEvaluated(trigger, OutcomeGap, "")
	case outcome.AlreadyExists:
		log.Info("disciplinary action already applied in window",
			slog.String("rule_id", string(outcome.RuleID)),
			slog.String("action", string(outcome.ActionType)))
		e.observer.EscalationEvaluated(trigger, OutcomeDeduplicated, outcome.ActionType)
	default:
		log.Info("disciplinary action triggered",
			slog.String("rule_id", string(outcome.RuleID)),
			slog.String("action", string(outcome.ActionType)),
			slog.String("record_id", string(outcome.Record.ID)),
			slog.String("status", string(outcome.Record.Status)))
		e.observer.EscalationEvaluated(trigger, OutcomeCreated, outcome.ActionType)
	}
}

func (e *Engine) dispatch(ctx context.Context, notes []pendingNotification) {
	for _, n := range notes {
		if err := e.notifier.Notify(ctx, n.record.EmployeeID, n.rule, n.record); err != nil {
			e.logger.Error("notification failed",
				slog.String("employee_id", string(n.record.EmployeeID)),
				slog.String("record_id", string(n.record.ID)),
				slog.Any("error", err))
		}
	}
}

// =============================================================================
// QUERIES
// =============================================================================

// GetEmployeeAccumulation returns the counters for period (current month
// when nil), zero-filled when no row exists. Never creates a row.
func (e *Engine) GetEmployeeAccumulation(ctx context.Context, employeeID EmployeeID, period *MonthPeriod) (Accumulation, error) {
	p := MonthOf(e.clock.Now())
	if period != nil {
		p = *period
	}
	if !p.Valid() {
		return Accumulation{}, &ValidationError{Field: "period", Value: p.String(), Reason: "month must be 1-12 and year positive"}
	}
	acc, _, err := e.acc.Load(ctx, e.store, AccumulationKey{EmployeeID: employeeID, Period: p})
	return acc, err
}

// GetEmployeeDisciplinaryRecords lists the employee's records, newest first.
func (e *Engine) GetEmployeeDisciplinaryRecords(ctx context.Context, employeeID EmployeeID, filter RecordFilter) ([]DisciplinaryRecord, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, &ValidationError{Field: "status", Value: *filter.Status, Reason: "unknown status"}
	}
	filter.EmployeeID = employeeID
	recs, err := e.store.ListRecords(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list records for %s: %w", employeeID, err)
	}
	return recs, nil
}

// =============================================================================
// RECORD DECISIONS
// =============================================================================

// ApproveDisciplinaryRecord approves or rejects a PENDING record. A second
// decision on the same record fails with InvalidStateError.
func (e *Engine) ApproveDisciplinaryRecord(ctx context.Context, in DecisionInput) (DisciplinaryRecord, error) {
	if in.ApproverID == "" {
		return DisciplinaryRecord{}, &ValidationError{Field: "approver_id", Value: in.ApproverID, Reason: "is required"}
	}
	var rec DisciplinaryRecord
	err := e.inTx(ctx, "decide_record", func(s Store) error {
		var err error
		rec, err = e.lifecycle.Decide(ctx, s, in)
		return err
	})
	if err != nil {
		return DisciplinaryRecord{}, err
	}
	e.observer.RecordDecided(rec.Status)
	e.logger.Info("disciplinary record decided",
		slog.String("record_id", string(rec.ID)),
		slog.String("approver_id", in.ApproverID),
		slog.String("status", string(rec.Status)))
	return rec, nil
}

// CompleteDisciplinaryRecord moves an ACTIVE record to COMPLETED.
func (e *Engine) CompleteDisciplinaryRecord(ctx context.Context, id RecordID, actorID string) (DisciplinaryRecord, error) {
	var rec DisciplinaryRecord
	err := e.inTx(ctx, "complete_record", func(s Store) error {
		var err error
		rec, err = e.lifecycle.Complete(ctx, s, id, actorID)
		return err
	})
	if err != nil {
		return DisciplinaryRecord{}, err
	}
	e.observer.RecordDecided(rec.Status)
	e.logger.Info("disciplinary record completed", slog.String("record_id", string(rec.ID)))
	return rec, nil
}

// =============================================================================
// ADMINISTRATION
// =============================================================================

// CorrectAccumulation overwrites the counters of one row. Negative values
// are rejected before anything is persisted.
func (e *Engine) CorrectAccumulation(ctx context.Context, key AccumulationKey, c Counters, actorID string) (Accumulation, error) {
	if key.EmployeeID == "" {
		return Accumulation{}, &ValidationError{Field: "employee_id", Value: key.EmployeeID, Reason: "is required"}
	}
	if !key.Period.Valid() {
		return Accumulation{}, &ValidationError{Field: "period", Value: key.Period.String(), Reason: "month must be 1-12 and year positive"}
	}
	if err := c.Validate(); err != nil {
		return Accumulation{}, err
	}

	var out Accumulation
	err := e.inTx(ctx, "correct_accumulation", func(s Store) error {
		acc, _, err := e.acc.Load(ctx, s, key)
		if err != nil {
			return err
		}
		before := acc.Counters
		acc.Counters = c
		acc.UpdatedAt = e.clock.Now()
		if err := s.SaveAccumulation(ctx, acc); err != nil {
			return fmt.Errorf("failed to save accumulation: %w", err)
		}
		out = acc
		return s.AppendAudit(ctx, AuditEntry{
			ID:         e.newID(),
			Timestamp:  acc.UpdatedAt,
			ActorID:    actorID,
			Action:     AuditAccumulationCorrected,
			EmployeeID: key.EmployeeID,
			Payload: map[string]any{
				"period": key.Period.String(),
				"before": countersPayload(before),
				"after":  countersPayload(c),
			},
		})
	})
	if err != nil {
		return Accumulation{}, err
	}
	e.logger.Info("accumulation corrected",
		slog.String("employee_id", string(key.EmployeeID)),
		slog.String("period", key.Period.String()),
		slog.String("actor_id", actorID))
	return out, nil
}

// RecordAttendance stores an attendance fact. It never escalates; absences
// that should escalate go through ProcessUnjustifiedAbsence.
func (e *Engine) RecordAttendance(ctx context.Context, rec AttendanceRecord) (AttendanceRecord, error) {
	if rec.EmployeeID == "" {
		return AttendanceRecord{}, &ValidationError{Field: "employee_id", Value: rec.EmployeeID, Reason: "is required"}
	}
	if !rec.Status.Valid() {
		return AttendanceRecord{}, &ValidationError{Field: "status", Value: rec.Status, Reason: "must be PRESENT, LATE or ABSENT"}
	}
	if rec.MinutesLate < 0 {
		return AttendanceRecord{}, &ValidationError{Field: "minutes_late", Value: rec.MinutesLate, Reason: "must be non-negative"}
	}
	if rec.ID == "" {
		rec.ID = e.newID()
	}
	rec.Date = DayOf(rec.Date)
	err := e.inTx(ctx, "record_attendance", func(s Store) error {
		return s.SaveAttendance(ctx, rec)
	})
	if err != nil {
		return AttendanceRecord{}, err
	}
	return rec, nil
}

// SaveTardinessRule creates or replaces a lateness rule. The resulting
// active table must stay free of overlaps.
func (e *Engine) SaveTardinessRule(ctx context.Context, rule TardinessRule, actorID string) (TardinessRule, error) {
	if err := ValidateTardinessRule(rule); err != nil {
		return TardinessRule{}, err
	}
	err := e.inTx(ctx, "save_tardiness_rule", func(s Store) error {
		saved, err := e.saveTardinessRules(ctx, s, []TardinessRule{rule}, actorID)
		if err != nil {
			return err
		}
		rule = saved[0]
		return nil
	})
	if err != nil {
		return TardinessRule{}, err
	}
	return rule, nil
}

// SaveDisciplinaryRule creates or replaces an escalation rule.
func (e *Engine) SaveDisciplinaryRule(ctx context.Context, rule DisciplinaryActionRule, actorID string) (DisciplinaryActionRule, error) {
	if err := ValidateDisciplinaryRule(rule); err != nil {
		return DisciplinaryActionRule{}, err
	}
	err := e.inTx(ctx, "save_disciplinary_rule", func(s Store) error {
		saved, err := e.saveDisciplinaryRules(ctx, s, []DisciplinaryActionRule{rule}, actorID)
		if err != nil {
			return err
		}
		rule = saved[0]
		return nil
	})
	if err != nil {
		return DisciplinaryActionRule{}, err
	}
	return rule, nil
}

// ImportRuleSet saves every rule of set in one transaction. Rules are
// merged by ID with the stored ones; either all are saved or none.
func (e *Engine) ImportRuleSet(ctx context.Context, set RuleSet, actorID string) error {
	for _, r := range set.Tardiness {
		if err := ValidateTardinessRule(r); err != nil {
			return fmt.Errorf("tardiness rule %s: %w", r.ID, err)
		}
	}
	for _, r := range set.Disciplinary {
		if err := ValidateDisciplinaryRule(r); err != nil {
			return fmt.Errorf("disciplinary rule %s: %w", r.ID, err)
		}
	}
	err := e.inTx(ctx, "import_rules", func(s Store) error {
		if len(set.Tardiness) > 0 {
			if _, err := e.saveTardinessRules(ctx, s, set.Tardiness, actorID); err != nil {
				return err
			}
		}
		if len(set.Disciplinary) > 0 {
			if _, err := e.saveDisciplinaryRules(ctx, s, set.Disciplinary, actorID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.logger.Info("rule set imported",
		slog.Int("tardiness_rules", len(set.Tardiness)),
		slog.Int("disciplinary_rules", len(set.Disciplinary)),
		slog.String("actor_id", actorID))
	return nil
}

func (e *Engine) saveTardinessRules(ctx context.Context, s Store, rules []TardinessRule, actorID string) ([]TardinessRule, error) {
	existing, err := s.ListTardinessRules(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to load tardiness rules: %w", err)
	}
	byID := make(map[RuleID]int, len(existing))
	for i, r := range existing {
		byID[r.ID] = i
	}

	now := e.clock.Now()
	saved := make([]TardinessRule, 0, len(rules))
	for _, r := range rules {
		r.UpdatedAt = now
		if i, ok := byID[r.ID]; ok {
			r.CreatedAt = existing[i].CreatedAt
			existing[i] = r
		} else {
			r.CreatedAt = now
			byID[r.ID] = len(existing)
			existing = append(existing, r)
		}
		saved = append(saved, r)
	}
	if err := ValidateTardinessRules(existing); err != nil {
		return nil, err
	}

	for _, r := range saved {
		if err := s.SaveTardinessRule(ctx, r); err != nil {
			return nil, fmt.Errorf("failed to save tardiness rule %s: %w", r.ID, err)
		}
		err := s.AppendAudit(ctx, AuditEntry{
			ID:        e.newID(),
			Timestamp: now,
			ActorID:   actorID,
			Action:    AuditRuleChanged,
			Payload: map[string]any{
				"kind":      "tardiness",
				"rule_id":   string(r.ID),
				"type":      string(r.Type),
				"range":     r.RangeString(),
				"is_active": r.IsActive,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to audit rule change: %w", err)
		}
	}
	return saved, nil
}

func (e *Engine) saveDisciplinaryRules(ctx context.Context, s Store, rules []DisciplinaryActionRule, actorID string) ([]DisciplinaryActionRule, error) {
	existing, err := s.ListDisciplinaryRules(ctx, "", false)
	if err != nil {
		return nil, fmt.Errorf("failed to load disciplinary rules: %w", err)
	}
	created := make(map[RuleID]time.Time, len(existing))
	for _, r := range existing {
		created[r.ID] = r.CreatedAt
	}

	now := e.clock.Now()
	saved := make([]DisciplinaryActionRule, 0, len(rules))
	for _, r := range rules {
		r.UpdatedAt = now
		r.CreatedAt = now
		if at, ok := created[r.ID]; ok {
			r.CreatedAt = at
		}
		if err := s.SaveDisciplinaryRule(ctx, r); err != nil {
			return nil, fmt.Errorf("failed to save disciplinary rule %s: %w", r.ID, err)
		}
		err := s.AppendAudit(ctx, AuditEntry{
			ID:        e.newID(),
			Timestamp: now,
			ActorID:   actorID,
			Action:    AuditRuleChanged,
			Payload: map[string]any{
				"kind":          "disciplinary",
				"rule_id":       string(r.ID),
				"trigger_type":  string(r.TriggerType),
				"trigger_count": r.TriggerCount,
				"action_type":   string(r.ActionType),
				"is_active":     r.IsActive,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to audit rule change: %w", err)
		}
		saved = append(saved, r)
	}
	return saved, nil
}

// =============================================================================
// INCIDENTS
// =============================================================================

// SaveIncidentType creates or replaces an incident type.
func (e *Engine) SaveIncidentType(ctx context.Context, t IncidentType) (IncidentType, error) {
	if err := ValidateIncidentType(t); err != nil {
		return IncidentType{}, err
	}
	err := e.inTx(ctx, "save_incident_type", func(s Store) error {
		return s.SaveIncidentType(ctx, t)
	})
	return t, err
}

// SaveIncidentConfig creates or replaces a threshold config. The referenced
// incident type must exist.
func (e *Engine) SaveIncidentConfig(ctx context.Context, c IncidentConfig) (IncidentConfig, error) {
	if err := ValidateIncidentConfig(c); err != nil {
		return IncidentConfig{}, err
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = e.clock.Now()
	}
	err := e.inTx(ctx, "save_incident_config", func(s Store) error {
		typ, err := s.GetIncidentType(ctx, c.IncidentTypeID)
		if err != nil {
			return fmt.Errorf("failed to load incident type: %w", err)
		}
		if typ == nil {
			return &ConfigurationError{Entity: "incident type", ID: c.IncidentTypeID}
		}
		return s.SaveIncidentConfig(ctx, c)
	})
	if err != nil {
		return IncidentConfig{}, err
	}
	return c, nil
}

// EvaluateThresholds runs every active incident config at the current time.
func (e *Engine) EvaluateThresholds(ctx context.Context) ([]Incident, error) {
	return e.evaluator.Evaluate(ctx, e.clock.Now())
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// inTx runs fn in a transaction, re-running it when the store reports a
// lost race. fn must reset any state it captures.
func (e *Engine) inTx(ctx context.Context, op string, fn func(Store) error) error {
	var err error
	for attempt := 1; attempt <= e.maxRetries; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		err = e.store.WithTx(ctx, fn)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			break
		}
		e.logger.Debug("retrying after concurrent modification",
			slog.String("op", op), slog.Int("attempt", attempt))
	}
	e.observer.OperationFailed(op)
	return err
}

func countersPayload(c Counters) map[string]any {
	return map[string]any{
		"late_arrivals_count":    c.LateArrivals,
		"direct_tardiness_count": c.DirectTardiness,
		"formal_tardies_count":   c.FormalTardies,
		"administrative_acts":    c.AdministrativeActs,
	}
}
