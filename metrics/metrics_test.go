package metrics_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/discipline-engine/discipline"
	"github.com/warp/discipline-engine/discipline/store"
	"github.com/warp/discipline-engine/metrics"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue next
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestRegister_Idempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.New()
	require.NoError(t, c.Register(reg))
	require.NoError(t, c.Register(reg))
}

func TestCollectors_CountEngineEvents(t *testing.T) {
	// GIVEN: An engine with a direct-tardiness rule and a warning at 1 formal tardy
	// WHEN: One on-time and two late check-ins
	// THEN: Counters reflect outcomes, conversions and one created + one deduplicated escalation

	ctx := context.Background()
	reg := prometheus.NewRegistry()
	c := metrics.New()
	require.NoError(t, c.Register(reg))

	clock := discipline.NewFixedClock(time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC))
	eng := discipline.NewEngine(store.NewMemory(), discipline.Options{Clock: clock, Observer: c})
	require.NoError(t, eng.ImportRuleSet(ctx, discipline.RuleSet{
		Tardiness: []discipline.TardinessRule{{
			ID: "direct", Name: "Direct", Type: discipline.DirectTardiness,
			StartMinutesLate: 1, EquivalentFormalTardies: 1, IsActive: true,
		}},
		Disciplinary: []discipline.DisciplinaryActionRule{{
			ID: "warn", Name: "Warning", TriggerType: discipline.TriggerFormalTardies,
			TriggerCount: 1, ActionType: discipline.ActionWarning, PeriodDays: 30, IsActive: true,
		}},
	}, "admin"))

	scheduled := time.Date(2025, time.March, 3, 8, 0, 0, 0, time.UTC)
	for i, late := range []time.Duration{0, 5 * time.Minute, 40 * time.Minute} {
		day := scheduled.AddDate(0, 0, i)
		_, err := eng.ProcessTardiness(ctx, discipline.CheckIn{
			EmployeeID: "emp-1", ScheduledTime: day, CheckInTime: day.Add(late),
		})
		require.NoError(t, err)
	}

	assert.Equal(t, 1.0, counterValue(t, reg, "discipline_check_ins_total", map[string]string{"outcome": "on_time"}))
	assert.Equal(t, 2.0, counterValue(t, reg, "discipline_check_ins_total", map[string]string{"outcome": "DIRECT_TARDINESS"}))
	assert.Equal(t, 2.0, counterValue(t, reg, "discipline_formal_tardy_conversions_total", nil))
	assert.Equal(t, 1.0, counterValue(t, reg, "discipline_escalations_total", map[string]string{"outcome": "created"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "discipline_escalations_total", map[string]string{"outcome": "deduplicated"}))

	c.NotificationDropped()
	assert.Equal(t, 1.0, counterValue(t, reg, "discipline_notifications_dropped_total", nil))

	c.OperationFailed("process_tardiness")
	assert.Equal(t, 1.0, counterValue(t, reg, "discipline_operation_failures_total", map[string]string{"operation": "process_tardiness"}))
}
