/*
errors.go - Centralized error types for the chit engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Every ledger failure aborts its enclosing transaction fully; these
  types tell the caller whether retrying makes sense.

ERROR CATEGORIES:
  1. Not-found errors - missing group/subscription/collection
  2. Validation errors - period range, group not started, stale slots
  3. Conflict errors - sequence races surfaced by the store backstop

USAGE:
  if chit.IsRetryable(err) {
      // re-run with the same inputs; validation re-derives the
      // sequence number fresh
  }
*/
package chit

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrGroupNotFound is returned when a referenced group doesn't exist.
	ErrGroupNotFound = errors.New("group not found")

	// ErrSubscriptionNotFound is returned when a referenced subscription doesn't exist.
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrCollectionNotFound is returned when a referenced collection doesn't exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrGroupNotStarted is returned when recording against a group whose
	// start date is still in the future.
	ErrGroupNotStarted = errors.New("group not started")

	// ErrPeriodOutOfRange is returned for a period outside [1, totalPeriods].
	ErrPeriodOutOfRange = errors.New("period out of range")

	// ErrFuturePeriod is returned for a period the clock has not reached yet.
	ErrFuturePeriod = errors.New("future period")

	// ErrSlotsExhausted is returned when a period already holds
	// collectionFactor non-voided collections. Signals a stale client view.
	ErrSlotsExhausted = errors.New("period slots exhausted")

	// ErrEditWindowExpired is returned for void/edit attempts outside the
	// 7-day window of a collection's creation.
	ErrEditWindowExpired = errors.New("edit window expired")

	// ErrAlreadyVoid is returned when voiding a collection twice.
	ErrAlreadyVoid = errors.New("collection already void")

	// ErrSequenceConflict is returned when the store's uniqueness backstop
	// rejects a concurrently assigned sequence number. Retry with the same
	// inputs; validation re-derives the sequence fresh.
	ErrSequenceConflict = errors.New("collection sequence conflict")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// SlotsExhaustedError reports a period whose collection slots are full.
type SlotsExhaustedError struct {
	SubscriptionID string
	Period         int
	Factor         int
}

func (e *SlotsExhaustedError) Error() string {
	return fmt.Sprintf("period %d already holds %d collections for subscription %s",
		e.Period, e.Factor, e.SubscriptionID)
}

func (e *SlotsExhaustedError) Unwrap() error { return ErrSlotsExhausted }

// FuturePeriodError reports a period ahead of the clock.
type FuturePeriodError struct {
	Period  int
	Current int
}

func (e *FuturePeriodError) Error() string {
	return fmt.Sprintf("period %d is in the future (current period %d)", e.Period, e.Current)
}

func (e *FuturePeriodError) Unwrap() error { return ErrFuturePeriod }

// PeriodRangeError reports a period outside the group's schedule.
type PeriodRangeError struct {
	Period       int
	TotalPeriods int
}

func (e *PeriodRangeError) Error() string {
	return fmt.Sprintf("period %d outside [1, %d]", e.Period, e.TotalPeriods)
}

func (e *PeriodRangeError) Unwrap() error { return ErrPeriodOutOfRange }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrGroupNotFound) ||
		errors.Is(err, ErrSubscriptionNotFound) ||
		errors.Is(err, ErrCollectionNotFound)
}

// IsClientError returns true if the error is due to invalid client
// input or a stale client view. Not worth retrying unchanged.
func IsClientError(err error) bool {
	return errors.Is(err, ErrGroupNotStarted) ||
		errors.Is(err, ErrPeriodOutOfRange) ||
		errors.Is(err, ErrFuturePeriod) ||
		errors.Is(err, ErrSlotsExhausted) ||
		errors.Is(err, ErrEditWindowExpired) ||
		errors.Is(err, ErrAlreadyVoid)
}

// IsRetryable returns true if the operation might succeed when re-run
// with the same inputs.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrSequenceConflict)
}
