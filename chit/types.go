/*
Package chit provides the installment scheduling and overdue-accounting
engine for pooled rotating-savings groups (chit funds).

PURPOSE:
  A group of subscribers each contributes a fixed amount per period into
  a shared pot. This package answers, purely from wall-clock time and a
  group's configured cadence, which payment obligations exist, which
  have become overdue, and records payments against them without
  double-booking.

KEY CONCEPTS IN THIS FILE (types.go):
  - Group: the scheme itself (cadence, contribution, period count)
  - Subscription: one subscriber's stake in one group
  - Collection: one recorded payment event against a subscription
  - Frequency: closed cadence enum (daily/weekly/monthly)
  - Collection factor: sub-installments per group period, derived
    deterministically from (group frequency, subscriber pattern)

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for every currency value, rounded to
     2 places at computation boundaries
  2. Derived state: pendingAmount is always totalDue - totalCollected;
     period indexes and overdue amounts are recomputed on every read,
     never stored
  3. Closed enums: frequency, pattern, and status values are typed
     constants, not free-form strings

SEE ALSO:
  - period.go: period-clock arithmetic
  - installment.go: sub-installment decomposition
  - accountant.go: overdue/due partition and status classification
  - ledger.go: transactional payment recording
*/
package chit

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ENUMS
// =============================================================================

// Frequency is a collection cadence: the group's settlement rhythm or a
// subscriber's own payment rhythm.
type Frequency string

const (
	Daily   Frequency = "DAILY"
	Weekly  Frequency = "WEEKLY"
	Monthly Frequency = "MONTHLY"
)

// ValidFrequency reports whether f is one of the closed cadence values.
func ValidFrequency(f Frequency) bool {
	switch f {
	case Daily, Weekly, Monthly:
		return true
	}
	return false
}

// GroupStatus is the lifecycle state of a group.
type GroupStatus string

const (
	GroupActive GroupStatus = "ACTIVE"
	GroupClosed GroupStatus = "CLOSED"
)

// SubscriptionStatus tracks whether a subscription still owes anything.
// CLOSED when pendingAmount reaches zero; reopened to ACTIVE if a
// reversal makes pendingAmount positive again.
type SubscriptionStatus string

const (
	SubscriptionActive SubscriptionStatus = "ACTIVE"
	SubscriptionClosed SubscriptionStatus = "CLOSED"
)

// CollectionStatus marks a payment record as live or reversed.
type CollectionStatus string

const (
	CollectionPaid CollectionStatus = "PAID"
	CollectionVoid CollectionStatus = "VOID"
)

// PaymentMode is how a payment physically arrived.
type PaymentMode string

const (
	ModeCash         PaymentMode = "CASH"
	ModeUPI          PaymentMode = "UPI"
	ModeBankTransfer PaymentMode = "BANK_TRANSFER"
	ModeCheque       PaymentMode = "CHEQUE"
)

// PaymentStatus classifies a subscription's standing at a point in time.
// Computed on read, never stored.
type PaymentStatus string

const (
	StatusNotStarted PaymentStatus = "NOT_STARTED"
	StatusOverdue    PaymentStatus = "OVERDUE"
	StatusDue        PaymentStatus = "DUE"
	StatusAllClear   PaymentStatus = "ALL_CLEAR"
)

// =============================================================================
// GROUP
// =============================================================================

// Group is one chit scheme. Immutable once periods have begun
// collecting, except administrative edits.
type Group struct {
	ID                 string
	Name               string
	Frequency          Frequency
	ContributionAmount decimal.Decimal // per unit-share per period
	TotalUnits         decimal.Decimal
	TotalPeriods       int
	StartDate          time.Time
	Status             GroupStatus
	CreatedAt          time.Time
}

// =============================================================================
// SUBSCRIPTION
// =============================================================================

// Subscription is one subscriber's stake in one group. Units may be
// fractional (half shares are common).
type Subscription struct {
	ID                string
	GroupID           string
	MemberID          string
	Units             decimal.Decimal
	CollectionPattern Frequency // subscriber's own cadence, may be finer than the group's
	CollectionFactor  int       // sub-installments per group period, derived
	TotalDue          decimal.Decimal
	TotalCollected    decimal.Decimal
	PendingAmount     decimal.Decimal
	Status            SubscriptionStatus
	CreatedAt         time.Time
}

// CollectionFactorFor returns the number of sub-installments a
// subscriber pays per group period.
//
// The pairing table is a confirmed business rule, not a general
// formula: unlisted combinations resolve to 1 (one indivisible
// installment per period).
func CollectionFactorFor(groupFreq, pattern Frequency) int {
	switch groupFreq {
	case Monthly:
		switch pattern {
		case Daily:
			return 30
		case Weekly:
			return 4
		}
	case Weekly:
		if pattern == Daily {
			return 7
		}
	}
	return 1
}

// NewSubscription enrolls a member into a group, deriving the
// collection factor and computing totalDue once at enrollment.
func NewSubscription(id string, g Group, memberID string, units decimal.Decimal, pattern Frequency, now time.Time) Subscription {
	s := Subscription{
		ID:             id,
		GroupID:        g.ID,
		MemberID:       memberID,
		Units:          units,
		TotalCollected: decimal.Zero,
		Status:         SubscriptionActive,
		CreatedAt:      now,
	}
	s.Reprice(g, units, pattern)
	return s
}

// Reprice applies an administrative edit of units and/or pattern,
// recomputing the collection factor, totalDue, pendingAmount, and the
// ACTIVE/CLOSED status from the amounts already collected.
func (s *Subscription) Reprice(g Group, units decimal.Decimal, pattern Frequency) {
	s.Units = units
	s.CollectionPattern = pattern
	s.CollectionFactor = CollectionFactorFor(g.Frequency, pattern)
	s.TotalDue = Round2(g.ContributionAmount.Mul(decimal.NewFromInt(int64(g.TotalPeriods))).Mul(units))
	s.applyCollected(s.TotalCollected)
}

// applyCollected sets totalCollected and re-derives pendingAmount and
// status. pendingAmount is never an independent source of truth.
func (s *Subscription) applyCollected(collected decimal.Decimal) {
	s.TotalCollected = Round2(collected)
	pending := Round2(s.TotalDue.Sub(s.TotalCollected))
	if pending.IsNegative() {
		pending = decimal.Zero
	}
	s.PendingAmount = pending
	if pending.IsPositive() {
		s.Status = SubscriptionActive
	} else {
		s.Status = SubscriptionClosed
	}
}

// factorOf prefers the stored factor but falls back to derivation for
// records persisted before the factor column existed.
func factorOf(g Group, s Subscription) int {
	if s.CollectionFactor > 0 {
		return s.CollectionFactor
	}
	return CollectionFactorFor(g.Frequency, s.CollectionPattern)
}

// =============================================================================
// COLLECTION
// =============================================================================

// Collection is one recorded payment event. Sequence numbers are scoped
// per (subscription, basePeriodNumber) and form a dense set starting at
// 1 for non-voided records.
type Collection struct {
	ID                 string
	GroupMemberID      string // subscription reference
	GroupID            string
	MemberID           string
	BasePeriodNumber   int // 1..group.TotalPeriods
	CollectionSequence int // 1..subscription.CollectionFactor
	PeriodDate         time.Time
	AmountDue          decimal.Decimal
	AmountPaid         decimal.Decimal
	PaymentMode        PaymentMode
	CollectedBy        string
	Remarks            string
	Status             CollectionStatus
	CreatedAt          time.Time
}
