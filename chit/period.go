package chit

import "time"

// =============================================================================
// PERIOD CLOCK - Maps wall-clock time to a group's period index
// =============================================================================

// The period clock is pure: it derives the current period index from
// the group's start date and cadence alone. Stored "current period"
// values go stale as time passes, so callers must re-evaluate on every
// read.
//
// Monthly groups advance on the start-date day-of-month anniversary,
// not on calendar-month boundaries. A group starting Jan 31 rolls into
// period 2 on the last valid day of February (anniversary clamp), not
// on March 1.

// CurrentPeriod returns the 1-based period index for the group at the
// given instant, capped at the group's total periods. Returns 0 if the
// group has not started yet.
func CurrentPeriod(g Group, now time.Time) int {
	start := dayFloor(g.StartDate)
	today := dayFloor(now)
	if today.Before(start) {
		return 0
	}

	var period int
	switch g.Frequency {
	case Daily:
		period = daysBetween(start, today) + 1
	case Weekly:
		period = daysBetween(start, today)/7 + 1
	default: // Monthly
		months := (today.Year()-start.Year())*12 + int(today.Month()) - int(start.Month())
		// Clamp the anchor day to the current month's length so a
		// start day of 31 still anniversaries in shorter months.
		anchor := start.Day()
		if last := daysIn(today.Year(), today.Month()); anchor > last {
			anchor = last
		}
		if today.Day() < anchor {
			months--
		}
		period = months + 1
		if period < 1 {
			period = 1
		}
	}

	if g.TotalPeriods > 0 && period > g.TotalPeriods {
		period = g.TotalPeriods
	}
	return period
}

// PeriodStart returns the calendar date the given 1-based period began,
// by the same anniversary logic applied per-period.
func PeriodStart(g Group, period int) time.Time {
	start := dayFloor(g.StartDate)
	if period <= 1 {
		return start
	}
	switch g.Frequency {
	case Daily:
		return start.AddDate(0, 0, period-1)
	case Weekly:
		return start.AddDate(0, 0, (period-1)*7)
	default:
		return addMonthsClamped(start, period-1)
	}
}

// addMonthsClamped adds whole months keeping the day-of-month anchored,
// clamped to the target month's length. time.AddDate would normalize
// Jan 31 + 1 month into March 3; the anniversary rule wants Feb 28/29.
func addMonthsClamped(t time.Time, months int) time.Time {
	y := t.Year()
	m := int(t.Month()) - 1 + months
	y += m / 12
	m = m % 12
	day := t.Day()
	if last := daysIn(y, time.Month(m+1)); day > last {
		day = last
	}
	return time.Date(y, time.Month(m+1), day, 0, 0, 0, 0, time.UTC)
}

func daysIn(year int, month time.Month) int {
	// Day zero of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func dayFloor(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(dayFloor(to).Sub(dayFloor(from)).Hours() / 24)
}
