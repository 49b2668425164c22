package chit

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// OVERDUE ACCOUNTANT - Partition of the unpaid balance
// =============================================================================

// The accountant combines the period clock, the decomposer, and a
// subscription's running totals into a non-overlapping partition of the
// unpaid balance:
//
//   overdue: installments whose deadline has already passed
//   due:     installments whose window is merely open
//
// Both are pure projections over time and persisted totals, recomputed
// on every invocation.

// OverdueAmount returns how much of the unpaid balance is past its
// deadline. Zero if the group has not started.
func OverdueAmount(g Group, s Subscription, now time.Time) decimal.Decimal {
	period := CurrentPeriod(g, now)
	if period == 0 {
		return decimal.Zero
	}
	expected := expectedThrough(g, s, period, CompletedSubInstallments(g, s, now))
	overdue := zeroFloor(Round2(expected.Sub(s.TotalCollected)))
	// Per-installment rounding can overshoot the remaining balance by a
	// cent at period boundaries; overdue never exceeds what is unpaid.
	if remaining := remainingBalance(s); overdue.GreaterThan(remaining) {
		return remaining
	}
	return overdue
}

// DueAmount returns the open-window portion of the unpaid balance: the
// expected amount for all active installments minus collected, minus
// the overdue portion already counted. Due and overdue never overlap
// and together never exceed the unpaid balance.
func DueAmount(g Group, s Subscription, now time.Time) decimal.Decimal {
	period := CurrentPeriod(g, now)
	if period == 0 {
		return decimal.Zero
	}
	expected := expectedThrough(g, s, period, ActiveSubInstallments(g, s, now))
	unpaid := zeroFloor(Round2(expected.Sub(s.TotalCollected)))
	overdue := OverdueAmount(g, s, now)
	due := zeroFloor(unpaid.Sub(overdue))
	if headroom := zeroFloor(remainingBalance(s).Sub(overdue)); due.GreaterThan(headroom) {
		return headroom
	}
	return due
}

// remainingBalance is totalDue - totalCollected, floored at zero.
func remainingBalance(s Subscription) decimal.Decimal {
	return zeroFloor(Round2(s.TotalDue.Sub(s.TotalCollected)))
}

// expectedThrough is the cumulative amount expected once a period has
// advanced: every prior period in full plus n sub-installment shares of
// the current one.
func expectedThrough(g Group, s Subscription, period, installments int) decimal.Decimal {
	fullPeriods := g.ContributionAmount.Mul(s.Units).Mul(decimal.NewFromInt(int64(period - 1)))
	current := perInstallment(g, s).Mul(decimal.NewFromInt(int64(installments)))
	return fullPeriods.Add(current)
}

// Classify returns the subscription's payment standing. A pure
// classifier with no stored state; never cache it.
func Classify(g Group, s Subscription, now time.Time) PaymentStatus {
	if CurrentPeriod(g, now) == 0 {
		return StatusNotStarted
	}
	if OverdueAmount(g, s, now).IsPositive() {
		return StatusOverdue
	}
	if DueAmount(g, s, now).IsPositive() {
		return StatusDue
	}
	return StatusAllClear
}

// PeriodFulfilment reports the collection slots of one period: how many
// of the collectionFactor slots have been filled.
type PeriodFulfilment struct {
	Period     int
	Collected  int
	Total      int
	IsComplete bool
}
