package factory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/discipline-engine/discipline"
	"github.com/warp/discipline-engine/factory"
)

func TestParseRuleSet_StandardPreset(t *testing.T) {
	f := factory.NewRuleSetFactory()

	set, err := f.ParseRuleSet(factory.StandardRuleSetJSON())
	require.NoError(t, err)
	require.Len(t, set.Tardiness, 3)
	require.Len(t, set.Disciplinary, 7)

	rules := discipline.NewTardinessRuleSet(set.Tardiness)
	assert.Empty(t, rules.Overlaps())
	assert.Empty(t, rules.Gaps(), "standard ranges cover every positive minute")

	assert.Equal(t, discipline.RuleID("late-minor"), rules.Resolve(15).ID)
	assert.Equal(t, discipline.RuleID("late-major"), rules.Resolve(16).ID)
	assert.Equal(t, discipline.RuleID("direct"), rules.Resolve(240).ID)

	tier := discipline.SelectDisciplinaryRule(set.Disciplinary, discipline.TriggerFormalTardies, 9)
	require.NotNil(t, tier)
	assert.Equal(t, discipline.ActionSuspension, tier.ActionType)
	assert.Equal(t, 2, *tier.SuspensionDays)
	assert.True(t, tier.RequiresApproval)
	assert.True(t, tier.IsActive, "is_active defaults to true")
}

func TestParseRuleSet_OtherPresets(t *testing.T) {
	f := factory.NewRuleSetFactory()

	strict, err := f.ParseRuleSet(factory.StrictRuleSetJSON(60))
	require.NoError(t, err)
	require.Len(t, strict.Tardiness, 1)
	assert.Nil(t, strict.Tardiness[0].EndMinutesLate)
	for _, r := range strict.Disciplinary {
		assert.Equal(t, 60, r.PeriodDays)
	}

	lenient, err := f.ParseRuleSet(factory.LenientRuleSetJSON(10))
	require.NoError(t, err)
	rules := discipline.NewTardinessRuleSet(lenient.Tardiness)
	assert.Equal(t, discipline.RuleID("lenient-grace"), rules.Resolve(10).ID)
	assert.Equal(t, discipline.RuleID("lenient-late"), rules.Resolve(11).ID)
}

func TestParseRuleSet_Rejects(t *testing.T) {
	f := factory.NewRuleSetFactory()

	tests := []struct {
		name string
		json string
	}{
		{"malformed", `{"tardiness_rules": [`},
		{"overlap", `{"tardiness_rules": [
			{"id": "a", "type": "LATE_ARRIVAL", "start_minutes_late": 1, "end_minutes_late": 20, "accumulation_count": 2},
			{"id": "b", "type": "DIRECT_TARDINESS", "start_minutes_late": 15}
		]}`},
		{"unknown type", `{"tardiness_rules": [{"id": "a", "type": "EARLY", "start_minutes_late": 1}]}`},
		{"suspension without days", `{"disciplinary_rules": [
			{"id": "s", "trigger_type": "FORMAL_TARDIES", "trigger_count": 2, "action_type": "SUSPENSION"}
		]}`},
		{"unknown trigger", `{"disciplinary_rules": [
			{"id": "s", "trigger_type": "LATE_LUNCH", "trigger_count": 2, "action_type": "WARNING"}
		]}`},
		{"duplicate id", `{"disciplinary_rules": [
			{"id": "w", "trigger_type": "FORMAL_TARDIES", "trigger_count": 1, "action_type": "WARNING"},
			{"id": "w", "trigger_type": "FORMAL_TARDIES", "trigger_count": 2, "action_type": "WARNING"}
		]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ParseRuleSet(tt.json)
			assert.Error(t, err)
		})
	}
}

func TestParseRuleSet_InactiveOverlapAllowed(t *testing.T) {
	f := factory.NewRuleSetFactory()

	set, err := f.ParseRuleSet(`{"tardiness_rules": [
		{"id": "a", "type": "late_arrival", "start_minutes_late": 1, "end_minutes_late": 20, "accumulation_count": 2, "equivalent_formal_tardies": 1},
		{"id": "b", "type": "direct_tardiness", "start_minutes_late": 15, "equivalent_formal_tardies": 1, "is_active": false}
	]}`)
	require.NoError(t, err)
	require.Len(t, set.Tardiness, 2)
	assert.Equal(t, discipline.LateArrival, set.Tardiness[0].Type)
	assert.False(t, set.Tardiness[1].IsActive)
}

func TestToJSON_RoundTrip(t *testing.T) {
	f := factory.NewRuleSetFactory()

	set, err := f.ParseRuleSet(factory.StandardRuleSetJSON())
	require.NoError(t, err)

	again, err := f.FromJSON(f.ToJSON(set))
	require.NoError(t, err)
	assert.Equal(t, set, again)
}
