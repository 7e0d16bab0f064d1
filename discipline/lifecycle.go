/*
lifecycle.go - Disciplinary record state machine

PURPOSE:
  Creates escalation records and moves them through their statuses.

STATE MACHINE:
  ┌──────────┐  approve   ┌──────────┐  complete (external sweep)  ┌───────────┐
  │ PENDING  │──────────▶ │  ACTIVE  │ ──────────────────────────▶ │ COMPLETED │
  └──────────┘            └──────────┘                             └───────────┘
       │ reject
       ▼
  ┌───────────┐
  │ CANCELLED │
  └───────────┘

  Rules without RequiresApproval create records directly in ACTIVE.
  Every transition checks the current status first and fails with
  InvalidStateError otherwise; the store write is a compare-and-set on
  status, so a decided record is never decided again.

SIDE EFFECTS:
  Creating an ADMINISTRATIVE_ACT record increments AdministrativeActs on
  the triggering month's accumulation row, in the caller's transaction.
  Decisions never re-evaluate escalation.
*/
package discipline

import (
	"context"
	"fmt"
	"time"
)

// CreateRecordInput describes the escalation being materialized.
type CreateRecordInput struct {
	EmployeeID EmployeeID
	Rule       DisciplinaryActionRule
	Count      int         // observed trigger count
	Period     MonthPeriod // accumulation month of the triggering event
}

// DecisionInput is an approve/reject request.
type DecisionInput struct {
	RecordID   RecordID
	ApproverID string
	Approved   bool
	Notes      *string // overwrites stored notes only when set
}

// RecordLifecycle creates and transitions disciplinary records.
type RecordLifecycle struct {
	Clock       Clock
	Accumulator *Accumulator
	NewID       func() string
}

// Create persists a new record for rule and applies its side effects.
func (l *RecordLifecycle) Create(ctx context.Context, s Store, in CreateRecordInput) (DisciplinaryRecord, error) {
	now := l.Clock.Now()
	rule := in.Rule

	status := StatusActive
	if rule.RequiresApproval {
		status = StatusPending
	}

	rec := DisciplinaryRecord{
		ID:           RecordID(l.NewID()),
		EmployeeID:   in.EmployeeID,
		RuleID:       rule.ID,
		ActionType:   rule.ActionType,
		TriggerType:  rule.TriggerType,
		TriggerCount: in.Count,
		AppliedDate:  now,
		Reason:       recordReason(rule, in.Count),
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if rule.ActionType == ActionSuspension && rule.SuspensionDays != nil {
		rec.SuspensionDays = IntPtr(*rule.SuspensionDays)
		setSuspensionWindow(&rec, now)
	}

	if err := s.CreateRecord(ctx, rec); err != nil {
		return DisciplinaryRecord{}, fmt.Errorf("failed to create disciplinary record: %w", err)
	}

	if rule.ActionType == ActionAdministrativeAct {
		key := AccumulationKey{EmployeeID: in.EmployeeID, Period: in.Period}
		if _, err := l.Accumulator.IncrementAdministrativeActs(ctx, s, key); err != nil {
			return DisciplinaryRecord{}, err
		}
	}

	err := s.AppendAudit(ctx, AuditEntry{
		ID:         l.NewID(),
		Timestamp:  now,
		ActorID:    "system",
		Action:     AuditRecordCreated,
		EmployeeID: rec.EmployeeID,
		RecordID:   rec.ID,
		Payload: map[string]any{
			"rule_id":       string(rule.ID),
			"action_type":   string(rule.ActionType),
			"trigger_type":  string(rule.TriggerType),
			"trigger_count": in.Count,
			"status":        string(status),
		},
	})
	if err != nil {
		return DisciplinaryRecord{}, fmt.Errorf("failed to audit record creation: %w", err)
	}
	return rec, nil
}

// Decide approves or rejects a PENDING record.
func (l *RecordLifecycle) Decide(ctx context.Context, s Store, in DecisionInput) (DisciplinaryRecord, error) {
	rec, err := l.load(ctx, s, in.RecordID)
	if err != nil {
		return DisciplinaryRecord{}, err
	}
	if rec.Status != StatusPending {
		return DisciplinaryRecord{}, &InvalidStateError{RecordID: rec.ID, Current: rec.Status, Expected: StatusPending}
	}

	now := l.Clock.Now()
	action := AuditRecordRejected
	if in.Approved {
		rec.Status = StatusActive
		action = AuditRecordApproved
		// A suspension runs from the moment it is approved.
		if rec.ActionType == ActionSuspension && rec.SuspensionDays != nil {
			setSuspensionWindow(&rec, now)
		}
	} else {
		rec.Status = StatusCancelled
	}
	rec.ApprovedByID = StrPtr(in.ApproverID)
	rec.ApprovedAt = TimePtr(now)
	if in.Notes != nil {
		rec.Notes = StrPtr(*in.Notes)
	}
	rec.UpdatedAt = now

	if err := s.UpdateRecord(ctx, rec, StatusPending); err != nil {
		return DisciplinaryRecord{}, fmt.Errorf("failed to update record %s: %w", rec.ID, err)
	}

	payload := map[string]any{"status": string(rec.Status)}
	if in.Notes != nil {
		payload["notes"] = *in.Notes
	}
	if err := l.audit(ctx, s, in.ApproverID, action, rec, now, payload); err != nil {
		return DisciplinaryRecord{}, err
	}
	return rec, nil
}

// Complete moves an ACTIVE record to COMPLETED. The engine never calls this
// on its own; it is the hook for an external time-based sweep.
func (l *RecordLifecycle) Complete(ctx context.Context, s Store, id RecordID, actorID string) (DisciplinaryRecord, error) {
	rec, err := l.load(ctx, s, id)
	if err != nil {
		return DisciplinaryRecord{}, err
	}
	if rec.Status != StatusActive {
		return DisciplinaryRecord{}, &InvalidStateError{RecordID: rec.ID, Current: rec.Status, Expected: StatusActive}
	}

	now := l.Clock.Now()
	rec.Status = StatusCompleted
	rec.UpdatedAt = now
	if err := s.UpdateRecord(ctx, rec, StatusActive); err != nil {
		return DisciplinaryRecord{}, fmt.Errorf("failed to update record %s: %w", rec.ID, err)
	}
	if err := l.audit(ctx, s, actorID, AuditRecordCompleted, rec, now, nil); err != nil {
		return DisciplinaryRecord{}, err
	}
	return rec, nil
}

func (l *RecordLifecycle) load(ctx context.Context, s RecordStore, id RecordID) (DisciplinaryRecord, error) {
	rec, err := s.GetRecord(ctx, id)
	if err != nil {
		return DisciplinaryRecord{}, fmt.Errorf("failed to load record %s: %w", id, err)
	}
	if rec == nil {
		return DisciplinaryRecord{}, fmt.Errorf("record %s: %w", id, ErrRecordNotFound)
	}
	return *rec, nil
}

func (l *RecordLifecycle) audit(ctx context.Context, s AuditLog, actor string, action AuditAction, rec DisciplinaryRecord, at time.Time, payload map[string]any) error {
	err := s.AppendAudit(ctx, AuditEntry{
		ID:         l.NewID(),
		Timestamp:  at,
		ActorID:    actor,
		Action:     action,
		EmployeeID: rec.EmployeeID,
		RecordID:   rec.ID,
		Payload:    payload,
	})
	if err != nil {
		return fmt.Errorf("failed to audit %s: %w", action, err)
	}
	return nil
}

func setSuspensionWindow(rec *DisciplinaryRecord, from time.Time) {
	rec.EffectiveDate = TimePtr(from)
	rec.ExpirationDate = TimePtr(from.AddDate(0, 0, *rec.SuspensionDays))
}

func recordReason(rule DisciplinaryActionRule, count int) string {
	return fmt.Sprintf("%s applied: %s reached %d (rule %s, threshold %d)",
		rule.ActionType, rule.TriggerType, count, rule.ID, rule.TriggerCount)
}
