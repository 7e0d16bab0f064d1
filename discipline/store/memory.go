// Package store provides an in-memory discipline.TxStore.
package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/discipline-engine/discipline"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps every table in maps guarded by one RWMutex. WithTx holds the
// write lock for the whole function, so transactions are serialized.
type Memory struct {
	view
	mu sync.RWMutex
	d  data
}

type attendanceKey struct {
	EmployeeID discipline.EmployeeID
	Day        string
}

type incidentKey struct {
	ConfigID    string
	PeriodStart int64
}

type data struct {
	tardinessRules    map[discipline.RuleID]discipline.TardinessRule
	disciplinaryRules map[discipline.RuleID]discipline.DisciplinaryActionRule
	accumulations     map[discipline.AccumulationKey]discipline.Accumulation
	records           map[discipline.RecordID]discipline.DisciplinaryRecord
	attendance        map[attendanceKey]discipline.AttendanceRecord
	employees         map[discipline.EmployeeID]discipline.Employee
	incidentTypes     map[string]discipline.IncidentType
	incidentConfigs   map[string]discipline.IncidentConfig
	incidents         map[incidentKey]discipline.Incident
	audit             []discipline.AuditEntry
}

func newData() data {
	return data{
		tardinessRules:    make(map[discipline.RuleID]discipline.TardinessRule),
		disciplinaryRules: make(map[discipline.RuleID]discipline.DisciplinaryActionRule),
		accumulations:     make(map[discipline.AccumulationKey]discipline.Accumulation),
		records:           make(map[discipline.RecordID]discipline.DisciplinaryRecord),
		attendance:        make(map[attendanceKey]discipline.AttendanceRecord),
		employees:         make(map[discipline.EmployeeID]discipline.Employee),
		incidentTypes:     make(map[string]discipline.IncidentType),
		incidentConfigs:   make(map[string]discipline.IncidentConfig),
		incidents:         make(map[incidentKey]discipline.Incident),
	}
}

// clone copies every table. Stored values are replaced on write, never
// mutated in place, so a shallow copy per map is a full snapshot.
func (d data) clone() data {
	return data{
		tardinessRules:    maps.Clone(d.tardinessRules),
		disciplinaryRules: maps.Clone(d.disciplinaryRules),
		accumulations:     maps.Clone(d.accumulations),
		records:           maps.Clone(d.records),
		attendance:        maps.Clone(d.attendance),
		employees:         maps.Clone(d.employees),
		incidentTypes:     maps.Clone(d.incidentTypes),
		incidentConfigs:   maps.Clone(d.incidentConfigs),
		incidents:         maps.Clone(d.incidents),
		audit:             slices.Clone(d.audit),
	}
}

func NewMemory() *Memory {
	m := &Memory{d: newData()}
	m.view = view{m: m}
	return m
}

var _ discipline.TxStore = (*Memory)(nil)

// Reset clears all data.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.d = newData()
	return nil
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(ctx context.Context, fn func(discipline.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.d.clone()
	if err := fn(view{m: m, inTx: true}); err != nil {
		m.d = snapshot
		return err
	}
	if err := ctx.Err(); err != nil {
		m.d = snapshot
		return err
	}
	return nil
}

// =============================================================================
// VIEW - Shared by the store and its transactions
// =============================================================================

// view implements discipline.Store. Outside a transaction every call takes
// the mutex; inside one the lock is already held by WithTx.
type view struct {
	m    *Memory
	inTx bool
}

func (v view) rlock() func() {
	if v.inTx {
		return func() {}
	}
	v.m.mu.RLock()
	return v.m.mu.RUnlock
}

func (v view) lock() func() {
	if v.inTx {
		return func() {}
	}
	v.m.mu.Lock()
	return v.m.mu.Unlock
}

// --- rules ---

func (v view) ListTardinessRules(_ context.Context, activeOnly bool) ([]discipline.TardinessRule, error) {
	defer v.rlock()()
	var out []discipline.TardinessRule
	for _, r := range v.m.d.tardinessRules {
		if activeOnly && !r.IsActive {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartMinutesLate != out[j].StartMinutesLate {
			return out[i].StartMinutesLate < out[j].StartMinutesLate
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (v view) SaveTardinessRule(_ context.Context, rule discipline.TardinessRule) error {
	defer v.lock()()
	v.m.d.tardinessRules[rule.ID] = rule
	return nil
}

func (v view) ListDisciplinaryRules(_ context.Context, trigger discipline.TriggerType, activeOnly bool) ([]discipline.DisciplinaryActionRule, error) {
	defer v.rlock()()
	var out []discipline.DisciplinaryActionRule
	for _, r := range v.m.d.disciplinaryRules {
		if trigger != "" && r.TriggerType != trigger {
			continue
		}
		if activeOnly && !r.IsActive {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TriggerCount != out[j].TriggerCount {
			return out[i].TriggerCount > out[j].TriggerCount
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (v view) SaveDisciplinaryRule(_ context.Context, rule discipline.DisciplinaryActionRule) error {
	defer v.lock()()
	v.m.d.disciplinaryRules[rule.ID] = rule
	return nil
}

// --- accumulations ---

func (v view) GetAccumulation(_ context.Context, key discipline.AccumulationKey) (*discipline.Accumulation, error) {
	defer v.rlock()()
	acc, ok := v.m.d.accumulations[key]
	if !ok {
		return nil, nil
	}
	return &acc, nil
}

func (v view) SaveAccumulation(_ context.Context, acc discipline.Accumulation) error {
	defer v.lock()()
	v.m.d.accumulations[acc.Key] = acc
	return nil
}

// --- records ---

func (v view) CreateRecord(_ context.Context, rec discipline.DisciplinaryRecord) error {
	defer v.lock()()
	if _, ok := v.m.d.records[rec.ID]; ok {
		return fmt.Errorf("record %s already exists", rec.ID)
	}
	v.m.d.records[rec.ID] = rec
	return nil
}

func (v view) GetRecord(_ context.Context, id discipline.RecordID) (*discipline.DisciplinaryRecord, error) {
	defer v.rlock()()
	rec, ok := v.m.d.records[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (v view) UpdateRecord(_ context.Context, rec discipline.DisciplinaryRecord, expected discipline.RecordStatus) error {
	defer v.lock()()
	cur, ok := v.m.d.records[rec.ID]
	if !ok {
		return fmt.Errorf("record %s: %w", rec.ID, discipline.ErrRecordNotFound)
	}
	if cur.Status != expected {
		return fmt.Errorf("record %s is %s: %w", rec.ID, cur.Status, discipline.ErrConcurrentModification)
	}
	v.m.d.records[rec.ID] = rec
	return nil
}

func (v view) HasRecordSince(_ context.Context, employeeID discipline.EmployeeID, ruleID discipline.RuleID, since time.Time) (bool, error) {
	defer v.rlock()()
	for _, rec := range v.m.d.records {
		if rec.EmployeeID == employeeID && rec.RuleID == ruleID && !rec.AppliedDate.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (v view) ListRecords(_ context.Context, f discipline.RecordFilter) ([]discipline.DisciplinaryRecord, error) {
	defer v.rlock()()
	var out []discipline.DisciplinaryRecord
	for _, rec := range v.m.d.records {
		if f.EmployeeID != "" && rec.EmployeeID != f.EmployeeID {
			continue
		}
		if f.Status != nil && rec.Status != *f.Status {
			continue
		}
		if f.From != nil && rec.AppliedDate.Before(*f.From) {
			continue
		}
		if f.To != nil && rec.AppliedDate.After(*f.To) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AppliedDate.Equal(out[j].AppliedDate) {
			return out[i].AppliedDate.After(out[j].AppliedDate)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// --- attendance & employees ---

func (v view) SaveAttendance(_ context.Context, rec discipline.AttendanceRecord) error {
	defer v.lock()()
	k := attendanceKey{EmployeeID: rec.EmployeeID, Day: rec.Date.Format(time.DateOnly)}
	if cur, ok := v.m.d.attendance[k]; ok {
		rec.ID = cur.ID
	}
	v.m.d.attendance[k] = rec
	return nil
}

func (v view) CountAttendance(_ context.Context, employeeID discipline.EmployeeID, status discipline.AttendanceStatus, from, to time.Time) (int, error) {
	defer v.rlock()()
	n := 0
	for _, rec := range v.m.d.attendance {
		if rec.EmployeeID == employeeID && rec.Status == status && inRange(rec.Date, from, to) {
			n++
		}
	}
	return n, nil
}

func (v view) SaveEmployee(_ context.Context, emp discipline.Employee) error {
	defer v.lock()()
	v.m.d.employees[emp.ID] = emp
	return nil
}

func (v view) GetEmployee(_ context.Context, id discipline.EmployeeID) (*discipline.Employee, error) {
	defer v.rlock()()
	emp, ok := v.m.d.employees[id]
	if !ok {
		return nil, nil
	}
	return &emp, nil
}

func (v view) ListEmployees(_ context.Context) ([]discipline.Employee, error) {
	defer v.rlock()()
	out := make([]discipline.Employee, 0, len(v.m.d.employees))
	for _, e := range v.m.d.employees {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- incidents ---

func (v view) SaveIncidentType(_ context.Context, t discipline.IncidentType) error {
	defer v.lock()()
	v.m.d.incidentTypes[t.ID] = t
	return nil
}

func (v view) GetIncidentType(_ context.Context, id string) (*discipline.IncidentType, error) {
	defer v.rlock()()
	t, ok := v.m.d.incidentTypes[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (v view) ListIncidentTypes(_ context.Context) ([]discipline.IncidentType, error) {
	defer v.rlock()()
	out := make([]discipline.IncidentType, 0, len(v.m.d.incidentTypes))
	for _, t := range v.m.d.incidentTypes {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (v view) SaveIncidentConfig(_ context.Context, c discipline.IncidentConfig) error {
	defer v.lock()()
	v.m.d.incidentConfigs[c.ID] = c
	return nil
}

func (v view) ListIncidentConfigs(_ context.Context, activeOnly bool) ([]discipline.IncidentConfig, error) {
	defer v.rlock()()
	var out []discipline.IncidentConfig
	for _, c := range v.m.d.incidentConfigs {
		if activeOnly && !c.IsActive {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (v view) CreateIncident(_ context.Context, inc discipline.Incident) error {
	defer v.lock()()
	k := incidentKey{ConfigID: inc.ConfigID, PeriodStart: inc.PeriodStart.UnixNano()}
	if _, ok := v.m.d.incidents[k]; ok {
		return fmt.Errorf("incident for config %s at %s: %w", inc.ConfigID, inc.PeriodStart.Format(time.DateOnly), discipline.ErrConcurrentModification)
	}
	v.m.d.incidents[k] = inc
	return nil
}

func (v view) HasIncident(_ context.Context, configID string, periodStart time.Time) (bool, error) {
	defer v.rlock()()
	_, ok := v.m.d.incidents[incidentKey{ConfigID: configID, PeriodStart: periodStart.UnixNano()}]
	return ok, nil
}

func (v view) ListIncidents(_ context.Context, f discipline.IncidentFilter) ([]discipline.Incident, error) {
	defer v.rlock()()
	var out []discipline.Incident
	for _, inc := range v.m.d.incidents {
		if f.ConfigID != "" && inc.ConfigID != f.ConfigID {
			continue
		}
		if f.From != nil && inc.PeriodStart.Before(*f.From) {
			continue
		}
		if f.To != nil && inc.PeriodStart.After(*f.To) {
			continue
		}
		out = append(out, inc)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (v view) AggregateMetric(_ context.Context, q discipline.MetricQuery) (decimal.Decimal, error) {
	defer v.rlock()()

	inScope := func(id discipline.EmployeeID) bool {
		if q.DepartmentID == nil {
			return true
		}
		emp, ok := v.m.d.employees[id]
		return ok && emp.DepartmentID == *q.DepartmentID
	}

	total := decimal.Zero
	switch q.Metric {
	case discipline.MetricLateArrivals, discipline.MetricAbsences, discipline.MetricMinutesLate:
		status := discipline.AttendanceLate
		if q.Metric == discipline.MetricAbsences {
			status = discipline.AttendanceAbsent
		}
		for _, rec := range v.m.d.attendance {
			if rec.Status != status || !inRange(rec.Date, q.From, q.To) || !inScope(rec.EmployeeID) {
				continue
			}
			if q.Metric == discipline.MetricMinutesLate {
				total = total.Add(decimal.NewFromInt(int64(rec.MinutesLate)))
			} else {
				total = total.Add(decimal.NewFromInt(1))
			}
		}
	case discipline.MetricDisciplinaryActions:
		for _, rec := range v.m.d.records {
			if rec.Status == discipline.StatusCancelled || !inRange(rec.AppliedDate, q.From, q.To) || !inScope(rec.EmployeeID) {
				continue
			}
			total = total.Add(decimal.NewFromInt(1))
		}
	default:
		return decimal.Zero, fmt.Errorf("unknown metric %q", q.Metric)
	}
	return total, nil
}

// --- audit ---

func (v view) AppendAudit(_ context.Context, entry discipline.AuditEntry) error {
	defer v.lock()()
	v.m.d.audit = append(v.m.d.audit, entry)
	return nil
}

func (v view) QueryAudit(_ context.Context, f discipline.AuditFilter) ([]discipline.AuditEntry, error) {
	defer v.rlock()()
	var out []discipline.AuditEntry
	for _, e := range v.m.d.audit {
		if f.EmployeeID != "" && e.EmployeeID != f.EmployeeID {
			continue
		}
		if f.RecordID != "" && e.RecordID != f.RecordID {
			continue
		}
		if len(f.Actions) > 0 && !slices.Contains(f.Actions, e.Action) {
			continue
		}
		if f.From != nil && e.Timestamp.Before(*f.From) {
			continue
		}
		if f.To != nil && e.Timestamp.After(*f.To) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func inRange(t, from, to time.Time) bool {
	return !t.Before(from) && !t.After(to)
}
