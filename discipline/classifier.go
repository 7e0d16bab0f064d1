package discipline

import "time"

// MinutesLate returns max(0, checkIn - scheduled) in whole minutes.
// Partial minutes are truncated, so a check-in 59 seconds late is on time.
func MinutesLate(checkIn, scheduled time.Time) int {
	d := checkIn.Sub(scheduled)
	if d <= 0 {
		return 0
	}
	return int(d / time.Minute)
}
