package sqlite_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/discipline-engine/discipline"
	"github.com/warp/discipline-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var now = time.Date(2025, time.March, 10, 9, 0, 0, 123456789, time.UTC)

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestEngine(t *testing.T, store *sqlite.Store) (*discipline.Engine, *discipline.FixedClock) {
	clock := discipline.NewFixedClock(now)
	eng := discipline.NewEngine(store, discipline.Options{
		Clock:  clock,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return eng, clock
}

func pendingRecord(id string, applied time.Time) discipline.DisciplinaryRecord {
	return discipline.DisciplinaryRecord{
		ID: discipline.RecordID(id), EmployeeID: "emp-1", RuleID: "rule-1",
		ActionType: discipline.ActionSuspension, TriggerType: discipline.TriggerFormalTardies,
		TriggerCount: 3, AppliedDate: applied, SuspensionDays: discipline.IntPtr(2),
		EffectiveDate: discipline.TimePtr(applied), ExpirationDate: discipline.TimePtr(applied.AddDate(0, 0, 2)),
		Reason: "test", Status: discipline.StatusPending, CreatedAt: applied, UpdatedAt: applied,
	}
}

// =============================================================================
// ROUND TRIPS
// =============================================================================

func TestStore_RulesRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.SaveTardinessRule(ctx, discipline.TardinessRule{
		ID: "open", Name: "Open", Type: discipline.DirectTardiness, StartMinutesLate: 31,
		EquivalentFormalTardies: 1, IsActive: true, CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, store.SaveTardinessRule(ctx, discipline.TardinessRule{
		ID: "low", Name: "Low", Type: discipline.LateArrival, StartMinutesLate: 1,
		EndMinutesLate: discipline.IntPtr(15), AccumulationCount: 4, EquivalentFormalTardies: 1,
		IsActive: true, CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, store.SaveTardinessRule(ctx, discipline.TardinessRule{
		ID: "off", Name: "Off", Type: discipline.LateArrival, StartMinutesLate: 16,
		EndMinutesLate: discipline.IntPtr(30), AccumulationCount: 2, IsActive: false,
		CreatedAt: now, UpdatedAt: now,
	}))

	active, err := store.ListTardinessRules(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, discipline.RuleID("low"), active[0].ID)
	require.NotNil(t, active[0].EndMinutesLate)
	assert.Equal(t, 15, *active[0].EndMinutesLate)
	assert.Nil(t, active[1].EndMinutesLate)
	assert.True(t, active[0].CreatedAt.Equal(now))

	all, err := store.ListTardinessRules(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	for _, r := range []discipline.DisciplinaryActionRule{
		{ID: "w", TriggerType: discipline.TriggerFormalTardies, TriggerCount: 1, ActionType: discipline.ActionWarning, IsActive: true},
		{ID: "s", TriggerType: discipline.TriggerFormalTardies, TriggerCount: 5, ActionType: discipline.ActionSuspension, SuspensionDays: discipline.IntPtr(3), RequiresApproval: true, IsActive: true},
		{ID: "a", TriggerType: discipline.TriggerUnjustifiedAbsences, TriggerCount: 2, ActionType: discipline.ActionWrittenWarning, IsActive: true},
	} {
		r.CreatedAt, r.UpdatedAt = now, now
		require.NoError(t, store.SaveDisciplinaryRule(ctx, r))
	}

	ft, err := store.ListDisciplinaryRules(ctx, discipline.TriggerFormalTardies, true)
	require.NoError(t, err)
	require.Len(t, ft, 2)
	assert.Equal(t, discipline.RuleID("s"), ft[0].ID, "highest trigger count first")
	assert.True(t, ft[0].RequiresApproval)
	assert.Equal(t, 3, *ft[0].SuspensionDays)
	assert.Nil(t, ft[1].SuspensionDays)

	everything, err := store.ListDisciplinaryRules(ctx, "", false)
	require.NoError(t, err)
	assert.Len(t, everything, 3)
}

func TestStore_AccumulationUpsert(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	key := discipline.AccumulationKey{EmployeeID: "emp-1", Period: discipline.MonthPeriod{Month: time.March, Year: 2025}}

	got, err := store.GetAccumulation(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)

	acc := discipline.NewAccumulation(key, now)
	acc.LateArrivals = 2
	require.NoError(t, store.SaveAccumulation(ctx, acc))

	acc.LateArrivals = 0
	acc.FormalTardies = 1
	acc.UpdatedAt = now.Add(time.Hour)
	require.NoError(t, store.SaveAccumulation(ctx, acc))

	got, err = store.GetAccumulation(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, discipline.Counters{FormalTardies: 1}, got.Counters)
	assert.True(t, got.CreatedAt.Equal(now))
	assert.True(t, got.UpdatedAt.Equal(now.Add(time.Hour)))
}

func TestStore_RecordCompareAndSet(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	rec := pendingRecord("rec-1", now)
	require.NoError(t, store.CreateRecord(ctx, rec))

	loaded, err := store.GetRecord(ctx, "rec-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.True(t, loaded.AppliedDate.Equal(now), "nanoseconds survive")
	assert.Nil(t, loaded.ApprovedByID)
	assert.Equal(t, 2, *loaded.SuspensionDays)

	approved := *loaded
	approved.Status = discipline.StatusActive
	approved.ApprovedByID = discipline.StrPtr("mgr")
	approved.ApprovedAt = discipline.TimePtr(now.Add(time.Hour))
	require.NoError(t, store.UpdateRecord(ctx, approved, discipline.StatusPending))

	// Second writer expecting PENDING loses.
	err = store.UpdateRecord(ctx, approved, discipline.StatusPending)
	assert.ErrorIs(t, err, discipline.ErrConcurrentModification)

	missing := pendingRecord("nope", now)
	err = store.UpdateRecord(ctx, missing, discipline.StatusPending)
	assert.ErrorIs(t, err, discipline.ErrRecordNotFound)

	got, err := store.GetRecord(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_HasRecordSinceAndList(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.CreateRecord(ctx, pendingRecord("old", now.AddDate(0, 0, -40))))
	require.NoError(t, store.CreateRecord(ctx, pendingRecord("new", now.AddDate(0, 0, -5))))

	yes, err := store.HasRecordSince(ctx, "emp-1", "rule-1", now.AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.True(t, yes)

	no, err := store.HasRecordSince(ctx, "emp-1", "rule-1", now.AddDate(0, 0, -1))
	require.NoError(t, err)
	assert.False(t, no)

	recs, err := store.ListRecords(ctx, discipline.RecordFilter{EmployeeID: "emp-1"})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, discipline.RecordID("new"), recs[0].ID)

	from := now.AddDate(0, 0, -10)
	recs, err = store.ListRecords(ctx, discipline.RecordFilter{EmployeeID: "emp-1", From: &from})
	require.NoError(t, err)
	require.Len(t, recs, 1)

	active := discipline.StatusActive
	recs, err = store.ListRecords(ctx, discipline.RecordFilter{Status: &active})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestStore_AttendanceOnePerDay(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	day := time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveAttendance(ctx, discipline.AttendanceRecord{
		ID: "a1", EmployeeID: "emp-1", Date: day, Status: discipline.AttendanceLate, MinutesLate: 5,
	}))
	require.NoError(t, store.SaveAttendance(ctx, discipline.AttendanceRecord{
		ID: "a2", EmployeeID: "emp-1", Date: day, Status: discipline.AttendanceAbsent,
	}))

	late, err := store.CountAttendance(ctx, "emp-1", discipline.AttendanceLate, day, day)
	require.NoError(t, err)
	assert.Zero(t, late)

	absent, err := store.CountAttendance(ctx, "emp-1", discipline.AttendanceAbsent, day.AddDate(0, 0, -30), day)
	require.NoError(t, err)
	assert.Equal(t, 1, absent)
}

func TestStore_AggregateMetricByDepartment(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	day := time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveEmployee(ctx, discipline.Employee{ID: "emp-1", Name: "A", DepartmentID: "ops"}))
	require.NoError(t, store.SaveEmployee(ctx, discipline.Employee{ID: "emp-2", Name: "B", DepartmentID: "sales"}))
	for i, emp := range []discipline.EmployeeID{"emp-1", "emp-2"} {
		require.NoError(t, store.SaveAttendance(ctx, discipline.AttendanceRecord{
			ID: string(emp), EmployeeID: emp, Date: day, Status: discipline.AttendanceLate, MinutesLate: 10 * (i + 1),
		}))
	}

	from, to := discipline.PeriodMonthly.Bounds(day)
	total, err := store.AggregateMetric(ctx, discipline.MetricQuery{Metric: discipline.MetricMinutesLate, From: from, To: to})
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(30)))

	ops, err := store.AggregateMetric(ctx, discipline.MetricQuery{
		Metric: discipline.MetricLateArrivals, From: from, To: to, DepartmentID: discipline.StrPtr("ops"),
	})
	require.NoError(t, err)
	assert.True(t, ops.Equal(decimal.NewFromInt(1)))

	_, err = store.AggregateMetric(ctx, discipline.MetricQuery{Metric: "BOGUS", From: from, To: to})
	assert.Error(t, err)
}

func TestStore_IncidentUniquePerPeriod(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	start, end := discipline.PeriodDaily.Bounds(now)

	inc := discipline.Incident{
		ID: "i1", ConfigID: "cfg", IncidentTypeID: "late", PeriodStart: start, PeriodEnd: end,
		Value: decimal.NewFromInt(3), Threshold: decimal.RequireFromString("2.5"),
		Operator: discipline.OpGT, CreatedAt: now,
	}
	require.NoError(t, store.CreateIncident(ctx, inc))

	inc.ID = "i2"
	err := store.CreateIncident(ctx, inc)
	assert.ErrorIs(t, err, discipline.ErrConcurrentModification)

	has, err := store.HasIncident(ctx, "cfg", start)
	require.NoError(t, err)
	assert.True(t, has)

	list, err := store.ListIncidents(ctx, discipline.IncidentFilter{ConfigID: "cfg"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "2.5", list[0].Threshold.String())
}

func TestStore_AuditRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.AppendAudit(ctx, discipline.AuditEntry{
		ID: "e1", Timestamp: now, ActorID: "system", Action: discipline.AuditRecordCreated,
		EmployeeID: "emp-1", RecordID: "rec-1", Payload: map[string]any{"trigger_count": 5},
	}))
	require.NoError(t, store.AppendAudit(ctx, discipline.AuditEntry{
		ID: "e2", Timestamp: now, ActorID: "hr", Action: discipline.AuditRuleChanged,
	}))

	entries, err := store.QueryAudit(ctx, discipline.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "e1", entries[0].ID)
	assert.EqualValues(t, 5, entries[0].Payload["trigger_count"])
	assert.Nil(t, entries[1].Payload)

	byAction, err := store.QueryAudit(ctx, discipline.AuditFilter{
		Actions: []discipline.AuditAction{discipline.AuditRuleChanged},
	})
	require.NoError(t, err)
	require.Len(t, byAction, 1)
	assert.Equal(t, "hr", byAction[0].ActorID)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestStore_WithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	key := discipline.AccumulationKey{EmployeeID: "emp-1", Period: discipline.MonthOf(now)}
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(s discipline.Store) error {
		acc := discipline.NewAccumulation(key, now)
		acc.FormalTardies = 4
		if err := s.SaveAccumulation(ctx, acc); err != nil {
			return err
		}
		got, err := s.GetAccumulation(ctx, key)
		require.NoError(t, err)
		require.NotNil(t, got, "visible inside the transaction")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.GetAccumulation(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEngine_OnSQLite(t *testing.T) {
	// GIVEN: Direct tardiness and a 2-tier escalation stored in SQLite
	// WHEN: Three 30-minute-late check-ins
	// THEN: Written warning at 2 formal tardies, deduplicated at 3

	ctx := context.Background()
	store := newTestStore(t)
	eng, clock := newTestEngine(t, store)

	require.NoError(t, eng.ImportRuleSet(ctx, discipline.RuleSet{
		Tardiness: []discipline.TardinessRule{{
			ID: "direct", Name: "Direct", Type: discipline.DirectTardiness,
			StartMinutesLate: 20, EquivalentFormalTardies: 1, IsActive: true,
		}},
		Disciplinary: []discipline.DisciplinaryActionRule{{
			ID: "ww", Name: "Written warning", TriggerType: discipline.TriggerFormalTardies,
			TriggerCount: 2, ActionType: discipline.ActionWrittenWarning, PeriodDays: 30, IsActive: true,
		}},
	}, "admin"))

	checkIn := func(day int) *discipline.TardinessResult {
		scheduled := time.Date(2025, time.March, day, 8, 0, 0, 0, time.UTC)
		res, err := eng.ProcessTardiness(ctx, discipline.CheckIn{
			EmployeeID: "emp-1", ScheduledTime: scheduled, CheckInTime: scheduled.Add(30 * time.Minute),
		})
		require.NoError(t, err)
		return res
	}

	assert.Nil(t, checkIn(3).DisciplinaryActionTriggered)
	clock.Advance(time.Hour)

	second := checkIn(4)
	require.NotNil(t, second.DisciplinaryActionTriggered)
	assert.False(t, second.DisciplinaryActionTriggered.AlreadyExists)
	assert.Equal(t, discipline.StatusActive, second.DisciplinaryActionTriggered.Record.Status)
	clock.Advance(time.Hour)

	third := checkIn(5)
	require.NotNil(t, third.DisciplinaryActionTriggered)
	assert.True(t, third.DisciplinaryActionTriggered.AlreadyExists)
	assert.Equal(t, 3, third.Counters.FormalTardies)
	assert.Equal(t, 3, third.Counters.DirectTardiness)

	recs, err := eng.GetEmployeeDisciplinaryRecords(ctx, "emp-1", discipline.RecordFilter{})
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	require.NoError(t, store.Reset(ctx))
	rules, err := store.ListTardinessRules(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestEngine_OnSQLiteConcurrentCheckIns(t *testing.T) {
	// GIVEN: LATE_ARRIVAL with accumulationCount 3
	// WHEN: 12 check-ins for the same employee race
	// THEN: Exactly 4 conversions, no lost updates

	ctx := context.Background()
	store := newTestStore(t)
	eng, _ := newTestEngine(t, store)

	require.NoError(t, eng.ImportRuleSet(ctx, discipline.RuleSet{
		Tardiness: []discipline.TardinessRule{{
			ID: "late", Name: "Late", Type: discipline.LateArrival,
			StartMinutesLate: 1, EndMinutesLate: discipline.IntPtr(15),
			AccumulationCount: 3, EquivalentFormalTardies: 1, IsActive: true,
		}},
	}, "admin"))

	var wg sync.WaitGroup
	errs := make(chan error, 12)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func(day int) {
			defer wg.Done()
			scheduled := time.Date(2025, time.March, day, 8, 0, 0, 0, time.UTC)
			_, err := eng.ProcessTardiness(ctx, discipline.CheckIn{
				EmployeeID: "emp-1", ScheduledTime: scheduled, CheckInTime: scheduled.Add(5 * time.Minute),
			})
			errs <- err
		}(1 + i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	acc, err := eng.GetEmployeeAccumulation(ctx, "emp-1", &discipline.MonthPeriod{Month: time.March, Year: 2025})
	require.NoError(t, err)
	assert.Equal(t, 4, acc.FormalTardies)
	assert.Equal(t, 0, acc.LateArrivals)
}
