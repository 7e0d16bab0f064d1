package discipline

import (
	"context"
	"fmt"
	"time"
)

// DedupSince returns the start of the look-back window for periodDays.
func DedupSince(now time.Time, periodDays int) time.Time {
	return now.AddDate(0, 0, -periodDays)
}

// HasRecentRecord reports whether ruleID already produced a record for the
// employee with AppliedDate inside the last periodDays. Records of every
// status count, so a rejected action is not re-raised inside its window.
func HasRecentRecord(ctx context.Context, s RecordStore, employeeID EmployeeID, ruleID RuleID, periodDays int, now time.Time) (bool, error) {
	exists, err := s.HasRecordSince(ctx, employeeID, ruleID, DedupSince(now, periodDays))
	if err != nil {
		return false, fmt.Errorf("failed to check recent records for %s/%s: %w", employeeID, ruleID, err)
	}
	return exists, nil
}
