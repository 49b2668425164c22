package chit_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/AppfinityLabs/chitwise/chit"
)

// =============================================================================
// OVERDUE / DUE PARTITION
// =============================================================================

func TestAccountant_NotStarted(t *testing.T) {
	g := monthlyGroup(date(2026, time.January, 10), 52)
	s := subscription(g, chit.Monthly)
	before := date(2026, time.January, 5)

	assert.True(t, chit.OverdueAmount(g, s, before).IsZero())
	assert.True(t, chit.DueAmount(g, s, before).IsZero())
	assert.Equal(t, chit.StatusNotStarted, chit.Classify(g, s, before))
}

func TestAccountant_FirstDay_DueNotOverdue(t *testing.T) {
	// GIVEN: a monthly subscriber on the group's start date
	// THEN:  the first installment's window is open - due, not overdue
	g := monthlyGroup(date(2026, time.January, 10), 52)
	s := subscription(g, chit.Monthly)
	now := date(2026, time.January, 10)

	assert.Equal(t, "0.00", chit.OverdueAmount(g, s, now).StringFixed(2))
	assert.Equal(t, "2000.00", chit.DueAmount(g, s, now).StringFixed(2))
	assert.Equal(t, chit.StatusDue, chit.Classify(g, s, now))
}

func TestAccountant_PaidUp_AllClear(t *testing.T) {
	g := monthlyGroup(date(2026, time.January, 10), 52)
	s := subscription(g, chit.Monthly)
	s.TotalCollected = decimal.NewFromInt(2000)
	now := date(2026, time.January, 10)

	assert.Equal(t, "0.00", chit.OverdueAmount(g, s, now).StringFixed(2))
	assert.Equal(t, "0.00", chit.DueAmount(g, s, now).StringFixed(2))
	assert.Equal(t, chit.StatusAllClear, chit.Classify(g, s, now))
}

func TestAccountant_SecondPeriod_FirstUnpaidIsOverdue(t *testing.T) {
	g := monthlyGroup(date(2026, time.January, 10), 52)
	s := subscription(g, chit.Monthly)
	now := date(2026, time.February, 10) // period 2

	// Period 1 deadline has passed; period 2 window is open.
	assert.Equal(t, "2000.00", chit.OverdueAmount(g, s, now).StringFixed(2))
	assert.Equal(t, "2000.00", chit.DueAmount(g, s, now).StringFixed(2))
	assert.Equal(t, chit.StatusOverdue, chit.Classify(g, s, now))
}

func TestAccountant_DailyPattern_SubInstallmentOverdue(t *testing.T) {
	// GIVEN: a daily-paying subscriber (factor 30, share 66.67) five
	//        days into period 1 with nothing collected
	g := monthlyGroup(date(2026, time.January, 10), 52)
	s := subscription(g, chit.Daily)
	now := date(2026, time.January, 15)

	// 5 elapsed windows x 66.67
	assert.Equal(t, "333.35", chit.OverdueAmount(g, s, now).StringFixed(2))
	// Only the 6th, currently open window is merely due.
	assert.Equal(t, "66.67", chit.DueAmount(g, s, now).StringFixed(2))
	assert.Equal(t, chit.StatusOverdue, chit.Classify(g, s, now))
}

func TestAccountant_PartitionProperties(t *testing.T) {
	// overdue >= 0, due >= 0, and overdue + due never exceeds the
	// unpaid balance - sampled across a year of wall-clock time and
	// several collected totals.
	g := monthlyGroup(date(2026, time.January, 31), 12)
	s := subscription(g, chit.Daily)

	collectedSamples := []decimal.Decimal{
		decimal.Zero,
		decimal.NewFromInt(500),
		decimal.NewFromInt(2000),
		decimal.NewFromFloat(13333.33),
		s.TotalDue,
	}

	for _, collected := range collectedSamples {
		s.TotalCollected = collected
		day := date(2026, time.January, 1)
		for i := 0; i < 400; i++ {
			overdue := chit.OverdueAmount(g, s, day)
			due := chit.DueAmount(g, s, day)
			remaining := s.TotalDue.Sub(s.TotalCollected)

			assert.False(t, overdue.IsNegative(), "overdue < 0 at %s collected=%s", day, collected)
			assert.False(t, due.IsNegative(), "due < 0 at %s collected=%s", day, collected)
			assert.True(t, overdue.Add(due).LessThanOrEqual(remaining.Add(decimal.NewFromFloat(0.01))),
				"overdue+due=%s exceeds remaining=%s at %s", overdue.Add(due), remaining, day)
			day = day.AddDate(0, 0, 1)
		}
	}
}

// =============================================================================
// SUBSCRIPTION AGGREGATE INVARIANTS
// =============================================================================

func TestNewSubscription_TotalDue(t *testing.T) {
	g := monthlyGroup(date(2026, time.January, 10), 52)
	s := chit.NewSubscription("sub-1", g, "member-1", decimal.NewFromInt(1), chit.Monthly, g.StartDate)

	assert.Equal(t, "104000.00", s.TotalDue.StringFixed(2))
	assert.Equal(t, "104000.00", s.PendingAmount.StringFixed(2))
	assert.Equal(t, 1, s.CollectionFactor)
	assert.Equal(t, chit.SubscriptionActive, s.Status)
}

func TestNewSubscription_FractionalUnits(t *testing.T) {
	g := monthlyGroup(date(2026, time.January, 10), 52)
	s := chit.NewSubscription("sub-1", g, "member-1", decimal.NewFromFloat(0.5), chit.Monthly, g.StartDate)

	assert.Equal(t, "52000.00", s.TotalDue.StringFixed(2))
}

func TestReprice_RecomputesTotals(t *testing.T) {
	// GIVEN: a half-share monthly subscriber with 2000 collected
	// WHEN:  an administrative edit doubles the stake and switches to
	//        a daily pattern
	// THEN:  totalDue, pendingAmount, and the factor are re-derived;
	//        collected + pending still equals totalDue
	g := monthlyGroup(date(2026, time.January, 10), 52)
	s := chit.NewSubscription("sub-1", g, "member-1", decimal.NewFromFloat(0.5), chit.Monthly, g.StartDate)
	s.TotalCollected = decimal.NewFromInt(2000)

	s.Reprice(g, decimal.NewFromInt(1), chit.Daily)

	assert.Equal(t, 30, s.CollectionFactor)
	assert.Equal(t, "104000.00", s.TotalDue.StringFixed(2))
	assert.Equal(t, "102000.00", s.PendingAmount.StringFixed(2))
	assert.True(t, s.TotalCollected.Add(s.PendingAmount).Equal(s.TotalDue))
}
