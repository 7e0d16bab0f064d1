/*
errors.go - Centralized error types for the discipline engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers match with errors.Is against the sentinels; structured errors
  carry context and unwrap to a sentinel.

ERROR CATEGORIES:
  1. Configuration gaps - No rule matches. Non-fatal, logged, absorbed.
  2. Configuration errors - A required reference entity is missing. Fatal
     for that operation.
  3. Concurrency conflicts - Contention on a row. The whole operation is
     rolled back and may be retried.
  4. Invalid state - A state machine transition from the wrong status.
  5. Validation - Malformed input rejected before persistence.

SEE ALSO:
  - engine.go: Propagation policy (gaps absorbed, the rest surfaced)
  - api/handlers.go: HTTP status mapping
*/
package discipline

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrConfigurationGap means no rule covers the observed value. Absorbed
	// by the engine and logged; exported so callers can classify log output.
	ErrConfigurationGap = errors.New("configuration gap")

	// ErrConfigurationError means a referenced configuration entity is missing.
	ErrConfigurationError = errors.New("configuration error")

	// ErrConcurrentModification is returned when a transactional update loses
	// a race. Safe to retry.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrInvalidState is returned by state transitions from a wrong status.
	ErrInvalidState = errors.New("invalid state")

	// ErrValidation is returned for malformed input.
	ErrValidation = errors.New("validation failed")

	// ErrOverlappingRules is returned when an active lateness rule range
	// overlaps another active rule.
	ErrOverlappingRules = errors.New("overlapping tardiness rules")

	ErrRecordNotFound   = errors.New("disciplinary record not found")
	ErrRuleNotFound     = errors.New("rule not found")
	ErrEmployeeNotFound = errors.New("employee not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidStateError reports a transition attempted from the wrong status.
type InvalidStateError struct {
	RecordID RecordID
	Current  RecordStatus
	Expected RecordStatus
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("record %s is %s, expected %s", e.RecordID, e.Current, e.Expected)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// ValidationError describes a rejected field.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s (%v): %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ConfigurationError names the missing entity.
type ConfigurationError struct {
	Entity string
	ID     string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s %q not found", e.Entity, e.ID)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfigurationError }

// OverlapError names two active rules whose ranges intersect.
type OverlapError struct {
	First  TardinessRule
	Second TardinessRule
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("rule %s %s overlaps rule %s %s",
		e.First.ID, e.First.RangeString(), e.Second.ID, e.Second.RangeString())
}

func (e *OverlapError) Unwrap() error { return ErrOverlappingRules }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrOverlappingRules)
}

// IsInvalidState returns true for state machine violations.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound) ||
		errors.Is(err, ErrRuleNotFound) ||
		errors.Is(err, ErrEmployeeNotFound)
}

// IsConfigurationError returns true when a referenced configuration entity
// is missing.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfigurationError)
}
