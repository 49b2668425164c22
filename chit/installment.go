package chit

import "time"

// =============================================================================
// INSTALLMENT DECOMPOSER - Sub-installment windows inside one period
// =============================================================================

// A subscriber may pay on a finer cadence than the group settles on
// (daily payments into a monthly-settling group). Decomposition splits
// the current period into collectionFactor windows and counts how many
// window deadlines have already elapsed.

// CompletedSubInstallments returns how many sub-installment deadlines
// have elapsed within the current period.
//
// Returns 0 when no decomposition applies: if the subscriber pays on
// the group's own cadence the whole period is one indivisible
// installment, and period-level overdue is handled by the accountant.
//
// Day 0 of a window is the first open day, due end-of-day, so it does
// not count as completed until day 1 has elapsed.
func CompletedSubInstallments(g Group, s Subscription, now time.Time) int {
	factor := factorOf(g, s)
	if s.CollectionPattern == g.Frequency || factor <= 1 {
		return 0
	}
	period := CurrentPeriod(g, now)
	if period == 0 {
		return 0
	}

	days := daysBetween(PeriodStart(g, period), now)
	if days < 0 {
		days = 0
	}

	var completed int
	switch s.CollectionPattern {
	case Daily:
		completed = days
	case Weekly:
		// Weekly pattern only decomposes inside a monthly group.
		completed = days / 7
	default:
		return 0
	}

	if completed > factor {
		completed = factor
	}
	return completed
}

// ActiveSubInstallments counts the installments whose payment window is
// currently open (elapsed deadlines plus the one running now). When no
// decomposition applies the period itself is the single open window.
func ActiveSubInstallments(g Group, s Subscription, now time.Time) int {
	factor := factorOf(g, s)
	if s.CollectionPattern == g.Frequency || factor <= 1 {
		return 1
	}
	active := CompletedSubInstallments(g, s, now) + 1
	if active > factor {
		active = factor
	}
	return active
}
