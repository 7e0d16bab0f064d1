/*
Package factory provides JSON to Go rule-set conversion.

PURPOSE:
  Converts JSON rule-set definitions into validated discipline.RuleSet
  values. HR configures lateness ranges and escalation tiers in JSON; the
  factory produces the Go structs the engine imports atomically.

JSON SCHEMA:
  {
    "tardiness_rules": [
      {
        "id": "late-minor",
        "name": "Minor late arrival",
        "type": "LATE_ARRIVAL",
        "start_minutes_late": 1,
        "end_minutes_late": 15,
        "accumulation_count": 3,
        "equivalent_formal_tardies": 1
      },
      {
        "id": "late-severe",
        "name": "Severe lateness",
        "type": "DIRECT_TARDINESS",
        "start_minutes_late": 31,
        "equivalent_formal_tardies": 1
      }
    ],
    "disciplinary_rules": [
      {
        "id": "ft-3",
        "name": "Written warning",
        "trigger_type": "FORMAL_TARDIES",
        "trigger_count": 3,
        "action_type": "WRITTEN_WARNING",
        "period_days": 30,
        "notification_enabled": true
      }
    ]
  }

DEFAULTS:
  - is_active defaults to true
  - end_minutes_late omitted means unbounded
  - period_days omitted means 0 (deduplicate from "now" only)

USAGE:
  f := factory.NewRuleSetFactory()
  set, err := f.ParseRuleSet(factory.StandardRuleSetJSON())
  err = engine.ImportRuleSet(ctx, set, "admin")

SEE ALSO:
  - presets.go: Built-in rule sets
  - discipline/rules.go: Validation applied to every parsed rule
*/
package factory

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/warp/discipline-engine/discipline"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RuleSetJSON is the JSON representation of a complete rule configuration.
type RuleSetJSON struct {
	TardinessRules    []TardinessRuleJSON    `json:"tardiness_rules"`
	DisciplinaryRules []DisciplinaryRuleJSON `json:"disciplinary_rules"`
}

// TardinessRuleJSON represents one lateness range.
type TardinessRuleJSON struct {
	ID                      string `json:"id"`
	Name                    string `json:"name"`
	Type                    string `json:"type"` // LATE_ARRIVAL, DIRECT_TARDINESS
	StartMinutesLate        int    `json:"start_minutes_late"`
	EndMinutesLate          *int   `json:"end_minutes_late,omitempty"`
	AccumulationCount       int    `json:"accumulation_count,omitempty"`
	EquivalentFormalTardies int    `json:"equivalent_formal_tardies"`
	IsActive                *bool  `json:"is_active,omitempty"`
}

// DisciplinaryRuleJSON represents one escalation tier.
type DisciplinaryRuleJSON struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	TriggerType         string `json:"trigger_type"` // FORMAL_TARDIES, UNJUSTIFIED_ABSENCES
	TriggerCount        int    `json:"trigger_count"`
	ActionType          string `json:"action_type"`
	SuspensionDays      *int   `json:"suspension_days,omitempty"`
	PeriodDays          int    `json:"period_days,omitempty"`
	RequiresApproval    bool   `json:"requires_approval,omitempty"`
	NotificationEnabled bool   `json:"notification_enabled,omitempty"`
	IsActive            *bool  `json:"is_active,omitempty"`
}

// =============================================================================
// RULE SET FACTORY
// =============================================================================

// RuleSetFactory converts JSON rule sets to Go structs.
type RuleSetFactory struct{}

// NewRuleSetFactory creates a new rule-set factory.
func NewRuleSetFactory() *RuleSetFactory {
	return &RuleSetFactory{}
}

// ParseRuleSet parses a JSON string into a validated RuleSet.
func (f *RuleSetFactory) ParseRuleSet(jsonStr string) (discipline.RuleSet, error) {
	var rj RuleSetJSON
	if err := json.Unmarshal([]byte(jsonStr), &rj); err != nil {
		return discipline.RuleSet{}, fmt.Errorf("failed to parse rule set JSON: %w", err)
	}
	return f.FromJSON(rj)
}

// FromJSON converts RuleSetJSON to a RuleSet. Every rule is validated and
// active lateness ranges are checked for overlaps.
func (f *RuleSetFactory) FromJSON(rj RuleSetJSON) (discipline.RuleSet, error) {
	var set discipline.RuleSet
	seen := make(map[string]bool)

	for i, tj := range rj.TardinessRules {
		rule := parseTardinessRule(tj)
		if err := discipline.ValidateTardinessRule(rule); err != nil {
			return discipline.RuleSet{}, fmt.Errorf("tardiness_rules[%d]: %w", i, err)
		}
		if seen["t:"+tj.ID] {
			return discipline.RuleSet{}, fmt.Errorf("tardiness_rules[%d]: %w",
				i, &discipline.ValidationError{Field: "id", Value: tj.ID, Reason: "is duplicated"})
		}
		seen["t:"+tj.ID] = true
		set.Tardiness = append(set.Tardiness, rule)
	}
	if err := discipline.ValidateTardinessRules(set.Tardiness); err != nil {
		return discipline.RuleSet{}, err
	}

	for i, dj := range rj.DisciplinaryRules {
		rule := parseDisciplinaryRule(dj)
		if err := discipline.ValidateDisciplinaryRule(rule); err != nil {
			return discipline.RuleSet{}, fmt.Errorf("disciplinary_rules[%d]: %w", i, err)
		}
		if seen["d:"+dj.ID] {
			return discipline.RuleSet{}, fmt.Errorf("disciplinary_rules[%d]: %w",
				i, &discipline.ValidationError{Field: "id", Value: dj.ID, Reason: "is duplicated"})
		}
		seen["d:"+dj.ID] = true
		set.Disciplinary = append(set.Disciplinary, rule)
	}

	return set, nil
}

// ToJSON converts a RuleSet back to its JSON representation.
func (f *RuleSetFactory) ToJSON(set discipline.RuleSet) RuleSetJSON {
	rj := RuleSetJSON{
		TardinessRules:    make([]TardinessRuleJSON, 0, len(set.Tardiness)),
		DisciplinaryRules: make([]DisciplinaryRuleJSON, 0, len(set.Disciplinary)),
	}
	for _, r := range set.Tardiness {
		active := r.IsActive
		rj.TardinessRules = append(rj.TardinessRules, TardinessRuleJSON{
			ID:                      string(r.ID),
			Name:                    r.Name,
			Type:                    string(r.Type),
			StartMinutesLate:        r.StartMinutesLate,
			EndMinutesLate:          r.EndMinutesLate,
			AccumulationCount:       r.AccumulationCount,
			EquivalentFormalTardies: r.EquivalentFormalTardies,
			IsActive:                &active,
		})
	}
	for _, r := range set.Disciplinary {
		active := r.IsActive
		rj.DisciplinaryRules = append(rj.DisciplinaryRules, DisciplinaryRuleJSON{
			ID:                  string(r.ID),
			Name:                r.Name,
			TriggerType:         string(r.TriggerType),
			TriggerCount:        r.TriggerCount,
			ActionType:          string(r.ActionType),
			SuspensionDays:      r.SuspensionDays,
			PeriodDays:          r.PeriodDays,
			RequiresApproval:    r.RequiresApproval,
			NotificationEnabled: r.NotificationEnabled,
			IsActive:            &active,
		})
	}
	return rj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseTardinessRule(tj TardinessRuleJSON) discipline.TardinessRule {
	return discipline.TardinessRule{
		ID:                      discipline.RuleID(tj.ID),
		Name:                    tj.Name,
		Type:                    discipline.TardinessType(normalize(tj.Type)),
		StartMinutesLate:        tj.StartMinutesLate,
		EndMinutesLate:          tj.EndMinutesLate,
		AccumulationCount:       tj.AccumulationCount,
		EquivalentFormalTardies: tj.EquivalentFormalTardies,
		IsActive:                activeOrDefault(tj.IsActive),
	}
}

func parseDisciplinaryRule(dj DisciplinaryRuleJSON) discipline.DisciplinaryActionRule {
	return discipline.DisciplinaryActionRule{
		ID:                  discipline.RuleID(dj.ID),
		Name:                dj.Name,
		TriggerType:         discipline.TriggerType(normalize(dj.TriggerType)),
		TriggerCount:        dj.TriggerCount,
		ActionType:          discipline.ActionType(normalize(dj.ActionType)),
		SuspensionDays:      dj.SuspensionDays,
		PeriodDays:          dj.PeriodDays,
		RequiresApproval:    dj.RequiresApproval,
		NotificationEnabled: dj.NotificationEnabled,
		IsActive:            activeOrDefault(dj.IsActive),
	}
}

// normalize accepts "late_arrival" as well as "LATE_ARRIVAL".
func normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func activeOrDefault(b *bool) bool {
	if b == nil {
		return true
	}
	return *b
}
