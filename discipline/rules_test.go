package discipline_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/discipline-engine/discipline"
)

func rangeRule(id string, start int, end *int) discipline.TardinessRule {
	return discipline.TardinessRule{
		ID: discipline.RuleID(id), Name: id, Type: discipline.LateArrival,
		StartMinutesLate: start, EndMinutesLate: end,
		AccumulationCount: 1, EquivalentFormalTardies: 1, IsActive: true,
	}
}

func TestMinutesLate(t *testing.T) {
	base := time.Date(2025, time.March, 3, 8, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		checkIn time.Time
		want    int
	}{
		{"on time", base, 0},
		{"early", base.Add(-5 * time.Minute), 0},
		{"59 seconds", base.Add(59 * time.Second), 0},
		{"one minute", base.Add(time.Minute), 1},
		{"partial minute truncated", base.Add(7*time.Minute + 30*time.Second), 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, discipline.MinutesLate(tt.checkIn, base))
		})
	}
}

func TestTardinessRuleSet_Resolve(t *testing.T) {
	set := discipline.NewTardinessRuleSet([]discipline.TardinessRule{
		rangeRule("open", 31, nil),
		rangeRule("low", 1, discipline.IntPtr(15)),
		rangeRule("mid", 16, discipline.IntPtr(30)),
	})

	tests := []struct {
		minutes int
		want    discipline.RuleID
	}{
		{1, "low"},
		{15, "low"},
		{16, "mid"},
		{30, "mid"},
		{31, "open"},
		{600, "open"},
	}
	for _, tt := range tests {
		got := set.Resolve(tt.minutes)
		require.NotNil(t, got, "minutes=%d", tt.minutes)
		assert.Equal(t, tt.want, got.ID, "minutes=%d", tt.minutes)
	}
	assert.Nil(t, set.Resolve(0))
	assert.Nil(t, set.Resolve(-3))
}

func TestTardinessRuleSet_IgnoresInactive(t *testing.T) {
	inactive := rangeRule("off", 1, discipline.IntPtr(10))
	inactive.IsActive = false
	set := discipline.NewTardinessRuleSet([]discipline.TardinessRule{inactive})
	assert.Nil(t, set.Resolve(5))
	assert.Empty(t, set.Rules())
}

func TestTardinessRuleSet_OverlapsAndFirstMatch(t *testing.T) {
	// GIVEN: Two overlapping ranges loaded as-is
	// WHEN: Resolving a value inside both
	// THEN: Lowest start wins and the overlap is reported

	set := discipline.NewTardinessRuleSet([]discipline.TardinessRule{
		rangeRule("b", 10, nil),
		rangeRule("a", 1, discipline.IntPtr(20)),
	})
	assert.Equal(t, discipline.RuleID("a"), set.Resolve(15).ID)

	overlaps := set.Overlaps()
	require.Len(t, overlaps, 1)
	assert.ErrorIs(t, overlaps[0], discipline.ErrOverlappingRules)
	assert.Contains(t, overlaps[0].Error(), "[1, 20]")
	assert.Contains(t, overlaps[0].Error(), "[10, +inf)")
}

func TestTardinessRuleSet_Gaps(t *testing.T) {
	set := discipline.NewTardinessRuleSet([]discipline.TardinessRule{
		rangeRule("a", 1, discipline.IntPtr(15)),
		rangeRule("b", 20, discipline.IntPtr(30)),
	})
	assert.Equal(t, [][2]int{{16, 19}, {31, -1}}, set.Gaps())

	closed := discipline.NewTardinessRuleSet([]discipline.TardinessRule{
		rangeRule("a", 1, discipline.IntPtr(15)),
		rangeRule("b", 16, nil),
	})
	assert.Empty(t, closed.Gaps())

	assert.Equal(t, [][2]int{{1, -1}}, discipline.NewTardinessRuleSet(nil).Gaps())
}

func TestValidateTardinessRule(t *testing.T) {
	good := rangeRule("ok", 1, discipline.IntPtr(5))
	require.NoError(t, discipline.ValidateTardinessRule(good))

	inverted := good
	inverted.EndMinutesLate = discipline.IntPtr(0)
	assert.ErrorIs(t, discipline.ValidateTardinessRule(inverted), discipline.ErrValidation)

	noCount := good
	noCount.AccumulationCount = 0
	assert.ErrorIs(t, discipline.ValidateTardinessRule(noCount), discipline.ErrValidation)

	direct := good
	direct.Type = discipline.DirectTardiness
	direct.AccumulationCount = 0
	assert.NoError(t, discipline.ValidateTardinessRule(direct))

	badType := good
	badType.Type = "SOMETIMES"
	assert.ErrorIs(t, discipline.ValidateTardinessRule(badType), discipline.ErrValidation)
}

func TestValidateDisciplinaryRule(t *testing.T) {
	rule := discipline.DisciplinaryActionRule{
		ID: "r", TriggerType: discipline.TriggerFormalTardies, TriggerCount: 2,
		ActionType: discipline.ActionWarning, PeriodDays: 30, IsActive: true,
	}
	require.NoError(t, discipline.ValidateDisciplinaryRule(rule))

	withDays := rule
	withDays.SuspensionDays = discipline.IntPtr(2)
	assert.ErrorIs(t, discipline.ValidateDisciplinaryRule(withDays), discipline.ErrValidation)

	susp := rule
	susp.ActionType = discipline.ActionSuspension
	assert.ErrorIs(t, discipline.ValidateDisciplinaryRule(susp), discipline.ErrValidation)
	susp.SuspensionDays = discipline.IntPtr(0)
	assert.ErrorIs(t, discipline.ValidateDisciplinaryRule(susp), discipline.ErrValidation)
	susp.SuspensionDays = discipline.IntPtr(5)
	assert.NoError(t, discipline.ValidateDisciplinaryRule(susp))

	zero := rule
	zero.TriggerCount = 0
	assert.ErrorIs(t, discipline.ValidateDisciplinaryRule(zero), discipline.ErrValidation)
}

func TestSelectDisciplinaryRule(t *testing.T) {
	rules := []discipline.DisciplinaryActionRule{
		{ID: "t3", TriggerType: discipline.TriggerFormalTardies, TriggerCount: 3, IsActive: true},
		{ID: "t10", TriggerType: discipline.TriggerFormalTardies, TriggerCount: 10, IsActive: true},
		{ID: "t5-off", TriggerType: discipline.TriggerFormalTardies, TriggerCount: 5, IsActive: false},
		{ID: "abs", TriggerType: discipline.TriggerUnjustifiedAbsences, TriggerCount: 1, IsActive: true},
		{ID: "t1", TriggerType: discipline.TriggerFormalTardies, TriggerCount: 1, IsActive: true},
	}

	assert.Nil(t, discipline.SelectDisciplinaryRule(rules, discipline.TriggerFormalTardies, 0))
	assert.Equal(t, discipline.RuleID("t1"), discipline.SelectDisciplinaryRule(rules, discipline.TriggerFormalTardies, 2).ID)
	assert.Equal(t, discipline.RuleID("t3"), discipline.SelectDisciplinaryRule(rules, discipline.TriggerFormalTardies, 7).ID)
	assert.Equal(t, discipline.RuleID("t10"), discipline.SelectDisciplinaryRule(rules, discipline.TriggerFormalTardies, 99).ID)
	assert.Equal(t, discipline.RuleID("abs"), discipline.SelectDisciplinaryRule(rules, discipline.TriggerUnjustifiedAbsences, 4).ID)
}

func TestApplyRule(t *testing.T) {
	rule := rangeRule("late", 1, discipline.IntPtr(15))
	rule.AccumulationCount = 3
	rule.EquivalentFormalTardies = 2

	var c discipline.Counters
	assert.False(t, discipline.ApplyRule(&c, rule))
	assert.False(t, discipline.ApplyRule(&c, rule))
	assert.Equal(t, 2, c.LateArrivals)
	assert.Zero(t, c.FormalTardies)

	assert.True(t, discipline.ApplyRule(&c, rule))
	assert.Equal(t, discipline.Counters{FormalTardies: 2}, c)

	direct := rule
	direct.Type = discipline.DirectTardiness
	assert.True(t, discipline.ApplyRule(&c, direct))
	assert.Equal(t, discipline.Counters{DirectTardiness: 1, FormalTardies: 4}, c)
}
