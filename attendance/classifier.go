/*
classifier.go - Maps a scan instant onto (type, status, lateness)

PURPOSE:
  Pure function of the scan time and the policy window. No store access;
  the ledger calls it after validating the QR token.

WINDOW (minutes since local midnight, S/E/D = start/end/dismissal):

    00:00 ........ S ........ E ........ D ........ 23:59
      too early   | check-in  | check-in  | check-out
                  | present   | late      | present

  Boundaries are half-open: a scan at exactly S is present, exactly E is
  late (0 minutes), exactly D is a check-out. Every minute of the day maps
  to exactly one outcome.

SEE ALSO:
  - ledger.go: Token check, duplicate check and insert around Classify
  - generic/time.go: TimeOfDay and MinutesOfDay
*/
package attendance

import (
	"fmt"
	"time"

	"github.com/warp/attendance-engine/generic"
)

// Classification is the outcome of Classify.
type Classification struct {
	Type        generic.AttendanceType
	Status      generic.AttendanceStatus
	LateMinutes int
}

// Classify decides what a scan at now means under policy, in loc.
// Returns a TooEarlyError before the start time.
func Classify(now time.Time, policy generic.PolicyConfig, loc *time.Location) (Classification, error) {
	start, end, dismissal, err := policy.Window()
	if err != nil {
		return Classification{}, fmt.Errorf("policy window: %w", err)
	}

	m := generic.MinutesOfDay(now, loc)

	switch {
	case m < start.Minutes():
		if loc == nil {
			loc = time.UTC
		}
		return Classification{}, &generic.TooEarlyError{At: now.In(loc), OpensAt: start}
	case m < end.Minutes():
		return Classification{Type: generic.CheckIn, Status: generic.StatusPresent}, nil
	case m < dismissal.Minutes():
		return Classification{
			Type:        generic.CheckIn,
			Status:      generic.StatusLate,
			LateMinutes: m - end.Minutes(),
		}, nil
	default:
		return Classification{Type: generic.CheckOut, Status: generic.StatusPresent}, nil
	}
}
