/*
accumulator.go - Monthly accumulation mutations

PURPOSE:
  Owns the per-(employee, month, year) counters and applies one matched
  lateness rule to them.

MUTATIONS:
  LATE_ARRIVAL:
    lateArrivals += 1
    if lateArrivals >= accumulationCount:
        formalTardies += equivalentFormalTardies
        lateArrivals   = 0                      (conversion)

  DIRECT_TARDINESS:
    directTardiness += 1
    formalTardies   += equivalentFormalTardies  (always a conversion)

ATOMICITY:
  Apply performs load-or-create, mutate and save against the store it is
  given. The engine always passes a transaction-scoped store, so the three
  steps commit together or not at all.
*/
package discipline

import (
	"context"
	"fmt"
	"time"
)

// AccumulationSnapshot is the row after a mutation.
type AccumulationSnapshot struct {
	Accumulation
	ConversionOccurred bool
}

// Accumulator applies lateness rules to accumulation rows.
type Accumulator struct {
	Clock Clock
}

// Load returns the row for key, or a zeroed unsaved row when absent.
func (a *Accumulator) Load(ctx context.Context, s AccumulationStore, key AccumulationKey) (Accumulation, bool, error) {
	acc, err := s.GetAccumulation(ctx, key)
	if err != nil {
		return Accumulation{}, false, fmt.Errorf("failed to load accumulation %s/%s: %w", key.EmployeeID, key.Period, err)
	}
	if acc == nil {
		return NewAccumulation(key, a.now()), false, nil
	}
	return *acc, true, nil
}

// Apply mutates the row for key according to rule and persists it.
func (a *Accumulator) Apply(ctx context.Context, s AccumulationStore, key AccumulationKey, rule TardinessRule) (AccumulationSnapshot, error) {
	acc, _, err := a.Load(ctx, s, key)
	if err != nil {
		return AccumulationSnapshot{}, err
	}

	converted := ApplyRule(&acc.Counters, rule)
	acc.UpdatedAt = a.now()

	if err := s.SaveAccumulation(ctx, acc); err != nil {
		return AccumulationSnapshot{}, fmt.Errorf("failed to save accumulation %s/%s: %w", key.EmployeeID, key.Period, err)
	}
	return AccumulationSnapshot{Accumulation: acc, ConversionOccurred: converted}, nil
}

// IncrementAdministrativeActs adds one administrative act to the row for key.
func (a *Accumulator) IncrementAdministrativeActs(ctx context.Context, s AccumulationStore, key AccumulationKey) (Accumulation, error) {
	acc, _, err := a.Load(ctx, s, key)
	if err != nil {
		return Accumulation{}, err
	}
	acc.AdministrativeActs++
	acc.UpdatedAt = a.now()
	if err := s.SaveAccumulation(ctx, acc); err != nil {
		return Accumulation{}, fmt.Errorf("failed to save accumulation %s/%s: %w", key.EmployeeID, key.Period, err)
	}
	return acc, nil
}

// ApplyRule mutates counters in place and reports whether a conversion
// to formal tardies occurred.
func ApplyRule(c *Counters, rule TardinessRule) bool {
	switch rule.Type {
	case LateArrival:
		c.LateArrivals++
		if c.LateArrivals >= rule.AccumulationCount {
			c.FormalTardies += rule.EquivalentFormalTardies
			c.LateArrivals = 0
			return true
		}
		return false
	case DirectTardiness:
		c.DirectTardiness++
		c.FormalTardies += rule.EquivalentFormalTardies
		return true
	}
	return false
}

func (a *Accumulator) now() time.Time {
	if a.Clock == nil {
		return SystemClock{}.Now()
	}
	return a.Clock.Now()
}
