/*
threshold.go - Metric threshold evaluation

PURPOSE:
  Periodically compares an aggregated attendance metric against a
  configured operator/value pair and raises an Incident when the
  comparison holds. Incidents are alerts; they never create disciplinary
  records.

FLOW (per active IncidentConfig):
  1. Load the IncidentType (missing -> ConfigurationError for that config)
  2. Compute the period (DAILY/WEEKLY/MONTHLY) containing the evaluation time
  3. Aggregate the type's metric over the period, optionally per department
  4. value <op> threshold ? raise at most one Incident per (config, period)

OPERATORS:
  GT  value >  threshold
  LT  value <  threshold
  GTE value >= threshold
  LTE value <= threshold
  EQ  value == threshold

SEE ALSO:
  - api/scheduler.go: Runs Evaluate on a ticker
*/
package discipline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// OPERATORS
// =============================================================================

type Operator string

const (
	OpGT  Operator = "GT"
	OpLT  Operator = "LT"
	OpGTE Operator = "GTE"
	OpLTE Operator = "LTE"
	OpEQ  Operator = "EQ"
)

// ParseOperator accepts the operator names case-insensitively.
func ParseOperator(s string) (Operator, error) {
	op := Operator(strings.ToUpper(strings.TrimSpace(s)))
	if !op.Valid() {
		return "", &ValidationError{Field: "operator", Value: s, Reason: "must be one of GT, LT, GTE, LTE, EQ"}
	}
	return op, nil
}

func (o Operator) Valid() bool {
	switch o {
	case OpGT, OpLT, OpGTE, OpLTE, OpEQ:
		return true
	}
	return false
}

// Compare applies the operator as "value <op> threshold".
func (o Operator) Compare(value, threshold decimal.Decimal) bool {
	c := value.Cmp(threshold)
	switch o {
	case OpGT:
		return c > 0
	case OpLT:
		return c < 0
	case OpGTE:
		return c >= 0
	case OpLTE:
		return c <= 0
	case OpEQ:
		return c == 0
	}
	return false
}

// =============================================================================
// PERIODS
// =============================================================================

type PeriodGranularity string

const (
	PeriodDaily   PeriodGranularity = "DAILY"
	PeriodWeekly  PeriodGranularity = "WEEKLY"  // Monday through Sunday
	PeriodMonthly PeriodGranularity = "MONTHLY" // calendar month
)

func (g PeriodGranularity) Valid() bool {
	return g == PeriodDaily || g == PeriodWeekly || g == PeriodMonthly
}

// Bounds returns the period containing t as [start, end], end being the
// last nanosecond before the next period starts.
func (g PeriodGranularity) Bounds(t time.Time) (time.Time, time.Time) {
	day := DayOf(t)
	var start, next time.Time
	switch g {
	case PeriodWeekly:
		offset := (int(day.Weekday()) + 6) % 7 // days since Monday
		start = day.AddDate(0, 0, -offset)
		next = start.AddDate(0, 0, 7)
	case PeriodMonthly:
		start = time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
		next = start.AddDate(0, 1, 0)
	default:
		start = day
		next = day.AddDate(0, 0, 1)
	}
	return start, next.Add(-time.Nanosecond)
}

// =============================================================================
// INCIDENT TYPES, CONFIGS, INCIDENTS
// =============================================================================

// Metric names an aggregate the store can compute.
type Metric string

const (
	MetricLateArrivals        Metric = "LATE_ARRIVALS"        // LATE attendance rows
	MetricAbsences            Metric = "ABSENCES"             // ABSENT attendance rows
	MetricMinutesLate         Metric = "MINUTES_LATE"         // sum of minutes late
	MetricDisciplinaryActions Metric = "DISCIPLINARY_ACTIONS" // non-cancelled records applied
)

func (m Metric) Valid() bool {
	switch m {
	case MetricLateArrivals, MetricAbsences, MetricMinutesLate, MetricDisciplinaryActions:
		return true
	}
	return false
}

type IncidentType struct {
	ID          string
	Code        string
	Name        string
	Metric      Metric
	Description string
}

// IncidentConfig pairs an incident type with a threshold.
// A nil DepartmentID evaluates the whole organization.
type IncidentConfig struct {
	ID             string
	IncidentTypeID string
	ThresholdValue decimal.Decimal
	Operator       Operator
	Period         PeriodGranularity
	DepartmentID   *string
	IsActive       bool
	CreatedAt      time.Time
}

// Incident is a raised alert.
type Incident struct {
	ID             string
	ConfigID       string
	IncidentTypeID string
	DepartmentID   *string
	PeriodStart    time.Time
	PeriodEnd      time.Time
	Value          decimal.Decimal
	Threshold      decimal.Decimal
	Operator       Operator
	CreatedAt      time.Time
}

// ValidateIncidentConfig checks a config's fields. The referenced type is
// resolved at evaluation time, not here.
func ValidateIncidentConfig(c IncidentConfig) error {
	if c.ID == "" {
		return &ValidationError{Field: "id", Value: c.ID, Reason: "is required"}
	}
	if c.IncidentTypeID == "" {
		return &ValidationError{Field: "incident_type_id", Value: c.IncidentTypeID, Reason: "is required"}
	}
	if !c.Operator.Valid() {
		return &ValidationError{Field: "operator", Value: c.Operator, Reason: "must be one of GT, LT, GTE, LTE, EQ"}
	}
	if !c.Period.Valid() {
		return &ValidationError{Field: "period", Value: c.Period, Reason: "must be DAILY, WEEKLY or MONTHLY"}
	}
	return nil
}

// ValidateIncidentType checks a type's fields.
func ValidateIncidentType(t IncidentType) error {
	if t.ID == "" {
		return &ValidationError{Field: "id", Value: t.ID, Reason: "is required"}
	}
	if !t.Metric.Valid() {
		return &ValidationError{Field: "metric", Value: t.Metric, Reason: "unknown metric"}
	}
	return nil
}

// =============================================================================
// EVALUATOR
// =============================================================================

// ThresholdEvaluator raises incidents from active configs.
type ThresholdEvaluator struct {
	Store    TxStore
	Clock    Clock
	Logger   *slog.Logger
	Observer Observer
	NewID    func() string
}

// Evaluate checks every active config at time at. A failing config does
// not stop the others; all failures are joined into the returned error.
func (e *ThresholdEvaluator) Evaluate(ctx context.Context, at time.Time) ([]Incident, error) {
	configs, err := e.Store.ListIncidentConfigs(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list incident configs: %w", err)
	}

	var raised []Incident
	var errs []error
	for _, cfg := range configs {
		inc, err := e.EvaluateConfig(ctx, cfg, at)
		if err != nil {
			e.Logger.Error("threshold evaluation failed",
				slog.String("config_id", cfg.ID), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("config %s: %w", cfg.ID, err))
			continue
		}
		if inc != nil {
			raised = append(raised, *inc)
		}
	}
	return raised, errors.Join(errs...)
}

// EvaluateConfig evaluates one config. Returns nil, nil when the comparison
// does not hold or the period already has an incident.
func (e *ThresholdEvaluator) EvaluateConfig(ctx context.Context, cfg IncidentConfig, at time.Time) (*Incident, error) {
	var raised *Incident
	var metric Metric
	err := e.Store.WithTx(ctx, func(s Store) error {
		raised = nil

		typ, err := s.GetIncidentType(ctx, cfg.IncidentTypeID)
		if err != nil {
			return fmt.Errorf("failed to load incident type: %w", err)
		}
		if typ == nil {
			return &ConfigurationError{Entity: "incident type", ID: cfg.IncidentTypeID}
		}

		metric = typ.Metric
		start, end := cfg.Period.Bounds(at)
		value, err := s.AggregateMetric(ctx, MetricQuery{
			Metric:       typ.Metric,
			From:         start,
			To:           end,
			DepartmentID: cfg.DepartmentID,
		})
		if err != nil {
			return fmt.Errorf("failed to aggregate %s: %w", typ.Metric, err)
		}
		if !cfg.Operator.Compare(value, cfg.ThresholdValue) {
			return nil
		}

		exists, err := s.HasIncident(ctx, cfg.ID, start)
		if err != nil {
			return fmt.Errorf("failed to check existing incident: %w", err)
		}
		if exists {
			return nil
		}

		now := e.Clock.Now()
		inc := Incident{
			ID:             e.NewID(),
			ConfigID:       cfg.ID,
			IncidentTypeID: typ.ID,
			DepartmentID:   cfg.DepartmentID,
			PeriodStart:    start,
			PeriodEnd:      end,
			Value:          value,
			Threshold:      cfg.ThresholdValue,
			Operator:       cfg.Operator,
			CreatedAt:      now,
		}
		if err := s.CreateIncident(ctx, inc); err != nil {
			return fmt.Errorf("failed to create incident: %w", err)
		}
		err = s.AppendAudit(ctx, AuditEntry{
			ID:        e.NewID(),
			Timestamp: now,
			ActorID:   "system",
			Action:    AuditIncidentRaised,
			Payload: map[string]any{
				"incident_id": inc.ID,
				"config_id":   cfg.ID,
				"metric":      string(typ.Metric),
				"value":       value.String(),
				"threshold":   cfg.ThresholdValue.String(),
				"operator":    string(cfg.Operator),
			},
		})
		if err != nil {
			return fmt.Errorf("failed to audit incident: %w", err)
		}
		raised = &inc
		return nil
	})
	if err != nil {
		return nil, err
	}
	if raised != nil {
		e.Observer.IncidentRaised(metric)
		e.Logger.Info("incident raised",
			slog.String("config_id", cfg.ID),
			slog.String("value", raised.Value.String()),
			slog.String("operator", string(cfg.Operator)),
			slog.String("threshold", cfg.ThresholdValue.String()))
	}
	return raised, nil
}
