/*
rules.go - Rule resolution and validation

PURPOSE:
  Resolves minutes-late against the lateness rule table and an observed
  count against the escalation rule table.

LATENESS RESOLUTION:
  Active rules form one interval list sorted by StartMinutesLate (ties by
  ID). The first rule whose range contains the value wins. Overlapping
  ranges are rejected when rules are saved (ValidateTardinessRules); a
  table that still overlaps (e.g. loaded directly into the store) is
  resolved by the same first-match order and reported through Overlaps.

ESCALATION RESOLUTION:
  Among active rules of the trigger type with TriggerCount <= count, the
  one with the highest TriggerCount wins: the most severe tier the
  employee currently qualifies for.

NO MATCH:
  Both resolvers return nil without error when nothing matches. That is a
  configuration gap, logged by the engine, never a failure.
*/
package discipline

import (
	"context"
	"fmt"
	"sort"
)

// =============================================================================
// TARDINESS RULE SET - Sorted interval list
// =============================================================================

// TardinessRuleSet is an ordered list of active lateness rules.
type TardinessRuleSet struct {
	rules []TardinessRule
}

// NewTardinessRuleSet keeps the active rules and sorts them by start, then ID.
func NewTardinessRuleSet(rules []TardinessRule) TardinessRuleSet {
	active := make([]TardinessRule, 0, len(rules))
	for _, r := range rules {
		if r.IsActive {
			active = append(active, r)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		if active[i].StartMinutesLate != active[j].StartMinutesLate {
			return active[i].StartMinutesLate < active[j].StartMinutesLate
		}
		return active[i].ID < active[j].ID
	})
	return TardinessRuleSet{rules: active}
}

// Rules returns the ordered rules.
func (s TardinessRuleSet) Rules() []TardinessRule {
	return append([]TardinessRule(nil), s.rules...)
}

// Resolve returns the first rule containing minutesLate, or nil.
func (s TardinessRuleSet) Resolve(minutesLate int) *TardinessRule {
	if minutesLate <= 0 {
		return nil
	}
	for i := range s.rules {
		// Sorted by start: once start exceeds the value nothing later matches.
		if s.rules[i].StartMinutesLate > minutesLate {
			return nil
		}
		if s.rules[i].Contains(minutesLate) {
			r := s.rules[i]
			return &r
		}
	}
	return nil
}

// Overlaps lists every pair of rules whose ranges intersect.
func (s TardinessRuleSet) Overlaps() []*OverlapError {
	var out []*OverlapError
	for i := 0; i < len(s.rules); i++ {
		for j := i + 1; j < len(s.rules); j++ {
			if s.rules[i].Overlaps(s.rules[j]) {
				out = append(out, &OverlapError{First: s.rules[i], Second: s.rules[j]})
			}
		}
	}
	return out
}

// Gaps returns the uncovered minute ranges between 1 and the last bounded
// rule, as [from, to] pairs; to == -1 marks an unbounded tail. An empty set
// reports a single open gap.
func (s TardinessRuleSet) Gaps() [][2]int {
	var gaps [][2]int
	next := 1
	for _, r := range s.rules {
		if r.StartMinutesLate > next {
			gaps = append(gaps, [2]int{next, r.StartMinutesLate - 1})
		}
		if r.EndMinutesLate == nil {
			return gaps
		}
		if *r.EndMinutesLate+1 > next {
			next = *r.EndMinutesLate + 1
		}
	}
	return append(gaps, [2]int{next, -1})
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidateTardinessRule checks a single rule's fields.
func ValidateTardinessRule(r TardinessRule) error {
	if r.ID == "" {
		return &ValidationError{Field: "id", Value: r.ID, Reason: "is required"}
	}
	if !r.Type.Valid() {
		return &ValidationError{Field: "type", Value: r.Type, Reason: "must be LATE_ARRIVAL or DIRECT_TARDINESS"}
	}
	if r.StartMinutesLate < 0 {
		return &ValidationError{Field: "start_minutes_late", Value: r.StartMinutesLate, Reason: "must be non-negative"}
	}
	if r.EndMinutesLate != nil && *r.EndMinutesLate < r.StartMinutesLate {
		return &ValidationError{Field: "end_minutes_late", Value: *r.EndMinutesLate, Reason: "must not be below start_minutes_late"}
	}
	if r.Type == LateArrival && r.AccumulationCount < 1 {
		return &ValidationError{Field: "accumulation_count", Value: r.AccumulationCount, Reason: "must be at least 1 for LATE_ARRIVAL"}
	}
	if r.EquivalentFormalTardies < 0 {
		return &ValidationError{Field: "equivalent_formal_tardies", Value: r.EquivalentFormalTardies, Reason: "must be non-negative"}
	}
	return nil
}

// ValidateTardinessRules validates each rule and rejects overlapping
// active ranges. The first overlap found is returned.
func ValidateTardinessRules(rules []TardinessRule) error {
	for _, r := range rules {
		if err := ValidateTardinessRule(r); err != nil {
			return err
		}
	}
	if overlaps := NewTardinessRuleSet(rules).Overlaps(); len(overlaps) > 0 {
		return overlaps[0]
	}
	return nil
}

// ValidateDisciplinaryRule checks an escalation rule's fields.
func ValidateDisciplinaryRule(r DisciplinaryActionRule) error {
	if r.ID == "" {
		return &ValidationError{Field: "id", Value: r.ID, Reason: "is required"}
	}
	if !r.TriggerType.Valid() {
		return &ValidationError{Field: "trigger_type", Value: r.TriggerType, Reason: "must be FORMAL_TARDIES or UNJUSTIFIED_ABSENCES"}
	}
	if r.TriggerCount < 1 {
		return &ValidationError{Field: "trigger_count", Value: r.TriggerCount, Reason: "must be at least 1"}
	}
	if !r.ActionType.Valid() {
		return &ValidationError{Field: "action_type", Value: r.ActionType, Reason: "unknown action"}
	}
	if r.PeriodDays < 0 {
		return &ValidationError{Field: "period_days", Value: r.PeriodDays, Reason: "must be non-negative"}
	}
	if r.ActionType == ActionSuspension {
		if r.SuspensionDays == nil {
			return &ValidationError{Field: "suspension_days", Value: nil, Reason: "is required for SUSPENSION"}
		}
		if *r.SuspensionDays < 1 {
			return &ValidationError{Field: "suspension_days", Value: *r.SuspensionDays, Reason: "must be at least 1"}
		}
	} else if r.SuspensionDays != nil {
		return &ValidationError{Field: "suspension_days", Value: *r.SuspensionDays, Reason: fmt.Sprintf("not allowed for %s", r.ActionType)}
	}
	return nil
}

// =============================================================================
// RESOLVERS
// =============================================================================

// ResolveTardinessRule loads the active lateness rules and returns the
// applicable rule, or nil. Overlaps found in the stored table are returned
// alongside so the caller can log them.
func ResolveTardinessRule(ctx context.Context, rules RuleStore, minutesLate int) (*TardinessRule, []*OverlapError, error) {
	list, err := rules.ListTardinessRules(ctx, true)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load tardiness rules: %w", err)
	}
	set := NewTardinessRuleSet(list)
	return set.Resolve(minutesLate), set.Overlaps(), nil
}

// ResolveDisciplinaryRule returns the active rule of trigger with the
// highest TriggerCount <= count, or nil.
func ResolveDisciplinaryRule(ctx context.Context, rules RuleStore, trigger TriggerType, count int) (*DisciplinaryActionRule, error) {
	list, err := rules.ListDisciplinaryRules(ctx, trigger, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load disciplinary rules: %w", err)
	}
	return SelectDisciplinaryRule(list, trigger, count), nil
}

// SelectDisciplinaryRule applies the escalation policy to an in-memory list.
// Order of the input does not matter.
func SelectDisciplinaryRule(rules []DisciplinaryActionRule, trigger TriggerType, count int) *DisciplinaryActionRule {
	var best *DisciplinaryActionRule
	for i := range rules {
		r := rules[i]
		if !r.IsActive || r.TriggerType != trigger || r.TriggerCount > count {
			continue
		}
		if best == nil || r.TriggerCount > best.TriggerCount ||
			(r.TriggerCount == best.TriggerCount && r.ID < best.ID) {
			best = &r
		}
	}
	return best
}
