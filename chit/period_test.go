package chit_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/AppfinityLabs/chitwise/chit"
)

// =============================================================================
// TEST FIXTURES
// =============================================================================

func monthlyGroup(startDate time.Time, totalPeriods int) chit.Group {
	return chit.Group{
		ID:                 "grp-monthly",
		Name:               "Monthly 2000",
		Frequency:          chit.Monthly,
		ContributionAmount: decimal.NewFromInt(2000),
		TotalUnits:         decimal.NewFromInt(52),
		TotalPeriods:       totalPeriods,
		StartDate:          startDate,
		Status:             chit.GroupActive,
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// PERIOD CLOCK
// =============================================================================

func TestCurrentPeriod_BeforeStart_IsZero(t *testing.T) {
	g := monthlyGroup(date(2026, time.January, 10), 52)

	assert.Equal(t, 0, chit.CurrentPeriod(g, date(2026, time.January, 9)))
	assert.Equal(t, 0, chit.CurrentPeriod(g, date(2025, time.June, 1)))
}

func TestCurrentPeriod_Monthly_AnniversaryNotCalendarMonth(t *testing.T) {
	g := monthlyGroup(date(2026, time.January, 10), 52)

	assert.Equal(t, 1, chit.CurrentPeriod(g, date(2026, time.January, 10)))
	assert.Equal(t, 1, chit.CurrentPeriod(g, date(2026, time.January, 31)))
	// Feb 1 is a new calendar month but still period 1: the period
	// rolls on the 10th, not the 1st.
	assert.Equal(t, 1, chit.CurrentPeriod(g, date(2026, time.February, 1)))
	assert.Equal(t, 1, chit.CurrentPeriod(g, date(2026, time.February, 9)))
	assert.Equal(t, 2, chit.CurrentPeriod(g, date(2026, time.February, 10)))
	assert.Equal(t, 3, chit.CurrentPeriod(g, date(2026, time.March, 10)))
}

func TestCurrentPeriod_Monthly_Jan31AnniversaryClamp(t *testing.T) {
	// GIVEN: a group starting Jan 31 (2026 is not a leap year)
	// THEN:  period 1 lasts through Feb 27, and period 2 starts on
	//        Feb 28, the last valid day of February - not March 1
	g := monthlyGroup(date(2026, time.January, 31), 52)

	assert.Equal(t, 1, chit.CurrentPeriod(g, date(2026, time.January, 31)))
	assert.Equal(t, 1, chit.CurrentPeriod(g, date(2026, time.February, 27)))
	assert.Equal(t, 2, chit.CurrentPeriod(g, date(2026, time.February, 28)))
	assert.Equal(t, 2, chit.CurrentPeriod(g, date(2026, time.March, 1)))
	assert.Equal(t, 2, chit.CurrentPeriod(g, date(2026, time.March, 30)))
	assert.Equal(t, 3, chit.CurrentPeriod(g, date(2026, time.March, 31)))
}

func TestCurrentPeriod_Daily(t *testing.T) {
	g := monthlyGroup(date(2026, time.January, 10), 100)
	g.Frequency = chit.Daily

	assert.Equal(t, 1, chit.CurrentPeriod(g, date(2026, time.January, 10)))
	assert.Equal(t, 2, chit.CurrentPeriod(g, date(2026, time.January, 11)))
	assert.Equal(t, 22, chit.CurrentPeriod(g, date(2026, time.January, 31)))
}

func TestCurrentPeriod_Weekly(t *testing.T) {
	g := monthlyGroup(date(2026, time.January, 10), 52)
	g.Frequency = chit.Weekly

	assert.Equal(t, 1, chit.CurrentPeriod(g, date(2026, time.January, 10)))
	assert.Equal(t, 1, chit.CurrentPeriod(g, date(2026, time.January, 16)))
	assert.Equal(t, 2, chit.CurrentPeriod(g, date(2026, time.January, 17)))
	assert.Equal(t, 3, chit.CurrentPeriod(g, date(2026, time.January, 24)))
}

func TestCurrentPeriod_CappedAtTotalPeriods(t *testing.T) {
	g := monthlyGroup(date(2026, time.January, 10), 3)
	g.Frequency = chit.Daily

	// Day 50 of a 3-period daily group still reports period 3.
	assert.Equal(t, 3, chit.CurrentPeriod(g, date(2026, time.March, 1)))
}

func TestCurrentPeriod_NonDecreasing(t *testing.T) {
	g := monthlyGroup(date(2026, time.January, 31), 52)

	prev := 0
	day := date(2025, time.December, 1)
	for i := 0; i < 500; i++ {
		p := chit.CurrentPeriod(g, day)
		assert.GreaterOrEqual(t, p, prev, "period went backwards at %s", day)
		prev = p
		day = day.AddDate(0, 0, 1)
	}
}

// =============================================================================
// PERIOD START DATES
// =============================================================================

func TestPeriodStart_Monthly_ClampsShortMonths(t *testing.T) {
	g := monthlyGroup(date(2026, time.January, 31), 52)

	assert.Equal(t, date(2026, time.January, 31), chit.PeriodStart(g, 1))
	assert.Equal(t, date(2026, time.February, 28), chit.PeriodStart(g, 2))
	assert.Equal(t, date(2026, time.March, 31), chit.PeriodStart(g, 3))
	assert.Equal(t, date(2026, time.April, 30), chit.PeriodStart(g, 4))
	// Crossing a year boundary keeps the anchor day.
	assert.Equal(t, date(2027, time.January, 31), chit.PeriodStart(g, 13))
	assert.Equal(t, date(2027, time.February, 28), chit.PeriodStart(g, 14))
}

func TestPeriodStart_DailyAndWeekly(t *testing.T) {
	g := monthlyGroup(date(2026, time.January, 10), 52)

	g.Frequency = chit.Daily
	assert.Equal(t, date(2026, time.January, 12), chit.PeriodStart(g, 3))

	g.Frequency = chit.Weekly
	assert.Equal(t, date(2026, time.January, 24), chit.PeriodStart(g, 3))
}
