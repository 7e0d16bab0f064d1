package factory

import (
	"encoding/json"
)

// =============================================================================
// PRESET RULE SETS
// =============================================================================
//
// Presets build JSON directly so they round-trip through ParseRuleSet exactly
// like a rule set submitted by an administrator.

// StandardRuleSetJSON returns the default company rule set:
//
//	1-15 min late   LATE_ARRIVAL, 3 occurrences = 1 formal tardy
//	16-30 min late  LATE_ARRIVAL, 2 occurrences = 1 formal tardy
//	31+ min late    DIRECT_TARDINESS, 1 formal tardy each
//
// Escalation on formal tardies: warning (1), written warning (3),
// administrative act (5, approval), 2-day suspension (8, approval).
// Escalation on unjustified absences: written warning (1), 1-day
// suspension (3, approval), termination (5, approval).
func StandardRuleSetJSON() string {
	rs := map[string]interface{}{
		"tardiness_rules": []map[string]interface{}{
			{
				"id":                        "late-minor",
				"name":                      "Minor late arrival",
				"type":                      "LATE_ARRIVAL",
				"start_minutes_late":        1,
				"end_minutes_late":          15,
				"accumulation_count":        3,
				"equivalent_formal_tardies": 1,
			},
			{
				"id":                        "late-major",
				"name":                      "Major late arrival",
				"type":                      "LATE_ARRIVAL",
				"start_minutes_late":        16,
				"end_minutes_late":          30,
				"accumulation_count":        2,
				"equivalent_formal_tardies": 1,
			},
			{
				"id":                        "direct",
				"name":                      "Direct tardiness",
				"type":                      "DIRECT_TARDINESS",
				"start_minutes_late":        31,
				"equivalent_formal_tardies": 1,
			},
		},
		"disciplinary_rules": append(
			formalTardyTiers(30),
			absenceTiers(30)...,
		),
	}
	b, _ := json.MarshalIndent(rs, "", "  ")
	return string(b)
}

// StrictRuleSetJSON returns a zero-tolerance rule set: every late check-in
// is a formal tardy and escalation looks back periodDays.
func StrictRuleSetJSON(periodDays int) string {
	rs := map[string]interface{}{
		"tardiness_rules": []map[string]interface{}{
			{
				"id":                        "strict-direct",
				"name":                      "Any lateness",
				"type":                      "DIRECT_TARDINESS",
				"start_minutes_late":        1,
				"equivalent_formal_tardies": 1,
			},
		},
		"disciplinary_rules": append(
			formalTardyTiers(periodDays),
			absenceTiers(periodDays)...,
		),
	}
	b, _ := json.MarshalIndent(rs, "", "  ")
	return string(b)
}

// LenientRuleSetJSON returns a rule set that only ever warns. Lateness up
// to graceMinutes needs ten occurrences for one formal tardy; graceMinutes
// must be at least 1.
func LenientRuleSetJSON(graceMinutes int) string {
	rs := map[string]interface{}{
		"tardiness_rules": []map[string]interface{}{
			{
				"id":                        "lenient-grace",
				"name":                      "Grace period",
				"type":                      "LATE_ARRIVAL",
				"start_minutes_late":        1,
				"end_minutes_late":          graceMinutes,
				"accumulation_count":        10,
				"equivalent_formal_tardies": 1,
			},
			{
				"id":                        "lenient-late",
				"name":                      "Late arrival",
				"type":                      "LATE_ARRIVAL",
				"start_minutes_late":        graceMinutes + 1,
				"accumulation_count":        5,
				"equivalent_formal_tardies": 1,
			},
		},
		"disciplinary_rules": []map[string]interface{}{
			{
				"id":                   "lenient-warning",
				"name":                 "Verbal warning",
				"trigger_type":         "FORMAL_TARDIES",
				"trigger_count":        2,
				"action_type":          "WARNING",
				"period_days":          30,
				"notification_enabled": true,
			},
		},
	}
	b, _ := json.MarshalIndent(rs, "", "  ")
	return string(b)
}

func formalTardyTiers(periodDays int) []map[string]interface{} {
	return []map[string]interface{}{
		{
			"id":            "ft-warning",
			"name":          "Verbal warning",
			"trigger_type":  "FORMAL_TARDIES",
			"trigger_count": 1,
			"action_type":   "WARNING",
			"period_days":   periodDays,
		},
		{
			"id":                   "ft-written",
			"name":                 "Written warning",
			"trigger_type":         "FORMAL_TARDIES",
			"trigger_count":        3,
			"action_type":          "WRITTEN_WARNING",
			"period_days":          periodDays,
			"notification_enabled": true,
		},
		{
			"id":                   "ft-admin-act",
			"name":                 "Administrative act",
			"trigger_type":         "FORMAL_TARDIES",
			"trigger_count":        5,
			"action_type":          "ADMINISTRATIVE_ACT",
			"period_days":          periodDays,
			"requires_approval":    true,
			"notification_enabled": true,
		},
		{
			"id":                   "ft-suspension",
			"name":                 "Suspension",
			"trigger_type":         "FORMAL_TARDIES",
			"trigger_count":        8,
			"action_type":          "SUSPENSION",
			"suspension_days":      2,
			"period_days":          periodDays,
			"requires_approval":    true,
			"notification_enabled": true,
		},
	}
}

func absenceTiers(periodDays int) []map[string]interface{} {
	return []map[string]interface{}{
		{
			"id":                   "abs-written",
			"name":                 "Written warning for absence",
			"trigger_type":         "UNJUSTIFIED_ABSENCES",
			"trigger_count":        1,
			"action_type":          "WRITTEN_WARNING",
			"period_days":          periodDays,
			"notification_enabled": true,
		},
		{
			"id":                   "abs-suspension",
			"name":                 "Suspension for absences",
			"trigger_type":         "UNJUSTIFIED_ABSENCES",
			"trigger_count":        3,
			"action_type":          "SUSPENSION",
			"suspension_days":      1,
			"period_days":          periodDays,
			"requires_approval":    true,
			"notification_enabled": true,
		},
		{
			"id":                   "abs-termination",
			"name":                 "Termination",
			"trigger_type":         "UNJUSTIFIED_ABSENCES",
			"trigger_count":        5,
			"action_type":          "TERMINATION",
			"period_days":          periodDays,
			"requires_approval":    true,
			"notification_enabled": true,
		},
	}
}
