/*
ledger.go - Transactional recording of payments against subscriptions

PURPOSE:
  The ledger is the only writer of Collection records and the only
  mutator of subscription aggregates. Every operation runs its whole
  read-validate-write sequence inside one store transaction: any
  failure aborts all writes, no partial state is ever visible.

RECORDING CONTRACT (single payment):
  1. Load subscription and group (not found -> sentinel errors)
  2. Group must have started
  3. basePeriodNumber within [1, totalPeriods]
  4. basePeriodNumber not ahead of the period clock
  5. Non-voided collections for the period must be below the
     collection factor, else slots are exhausted
  6. Sequence = count + 1; amountDue = per-installment share
  7. Persist the collection as PAID
  8. Fold the paid amount into the subscription's aggregates;
     auto-close when nothing remains pending

CORRECTIONS:
  Collections can be voided or edited only within a 7-day window of
  creation. A void un-applies the amount and reopens a CLOSED
  subscription if the reversal leaves a pending balance.

BULK SETTLEMENT:
  N installments for one subscription settle in a single transaction,
  sorted by period for reproducible sequence assignment, with the
  aggregates updated once for the whole batch.

NOTIFICATIONS:
  Events are emitted only after commit and are fire-and-forget; see
  events.go.
*/
package chit

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EditWindow bounds how long after creation a collection may be voided
// or edited.
const EditWindow = 7 * 24 * time.Hour

// Ledger records payments against subscriptions.
type Ledger struct {
	store   TxStore
	emitter Emitter

	// Now is the wall clock; overridable in tests.
	Now func() time.Time
}

// NewLedger creates a ledger over the given store. A nil emitter
// disables post-commit events.
func NewLedger(store TxStore, emitter Emitter) *Ledger {
	if emitter == nil {
		emitter = NopEmitter{}
	}
	return &Ledger{store: store, emitter: emitter, Now: time.Now}
}

// Store exposes the underlying store for read-path collaborators.
func (l *Ledger) Store() TxStore { return l.store }

// =============================================================================
// RECORD
// =============================================================================

// RecordInput is one payment to record.
type RecordInput struct {
	SubscriptionID   string
	BasePeriodNumber int
	AmountPaid       decimal.Decimal
	PaymentMode      PaymentMode
	CollectedBy      string
	Remarks          string

	// PeriodDate optionally overrides the derived period start date
	// stamped on the collection.
	PeriodDate *time.Time
}

// RecordCollection records a single payment. See the contract above.
func (l *Ledger) RecordCollection(ctx context.Context, in RecordInput) (*Collection, error) {
	now := l.Now()

	var out Collection
	err := l.store.WithTx(ctx, func(s Store) error {
		sub, group, err := l.loadPair(ctx, s, in.SubscriptionID)
		if err != nil {
			return err
		}
		if err := validatePeriod(*group, in.BasePeriodNumber, now); err != nil {
			return err
		}

		c, err := l.insertCollection(ctx, s, *group, *sub, in, now)
		if err != nil {
			return err
		}

		sub.applyCollected(sub.TotalCollected.Add(in.AmountPaid))
		if err := s.UpdateSubscriptionTotals(ctx, sub.ID, sub.TotalCollected, sub.PendingAmount, sub.Status); err != nil {
			return err
		}

		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.emitter.Emit(PaymentEvent{
		Kind:           EventRecorded,
		SubscriptionID: out.GroupMemberID,
		GroupID:        out.GroupID,
		MemberID:       out.MemberID,
		CollectionID:   out.ID,
		Period:         out.BasePeriodNumber,
		Sequence:       out.CollectionSequence,
		Amount:         out.AmountPaid,
		At:             now,
	})
	return &out, nil
}

// insertCollection runs the slot check, sequence assignment, and
// persistence for one collection. Shared by single and bulk recording;
// bulk sees its own earlier inserts through the transaction-scoped
// store, so per-period counts stay correct within a batch.
func (l *Ledger) insertCollection(ctx context.Context, s Store, group Group, sub Subscription, in RecordInput, now time.Time) (Collection, error) {
	factor := factorOf(group, sub)

	count, err := s.CountCollections(ctx, sub.ID, in.BasePeriodNumber)
	if err != nil {
		return Collection{}, err
	}
	if count >= factor {
		return Collection{}, &SlotsExhaustedError{SubscriptionID: sub.ID, Period: in.BasePeriodNumber, Factor: factor}
	}

	periodDate := PeriodStart(group, in.BasePeriodNumber)
	if in.PeriodDate != nil {
		periodDate = dayFloor(*in.PeriodDate)
	}

	c := Collection{
		ID:                 uuid.NewString(),
		GroupMemberID:      sub.ID,
		GroupID:            group.ID,
		MemberID:           sub.MemberID,
		BasePeriodNumber:   in.BasePeriodNumber,
		CollectionSequence: count + 1,
		PeriodDate:         periodDate,
		AmountDue:          perInstallment(group, sub),
		AmountPaid:         Round2(in.AmountPaid),
		PaymentMode:        in.PaymentMode,
		CollectedBy:        in.CollectedBy,
		Remarks:            in.Remarks,
		Status:             CollectionPaid,
		CreatedAt:          now,
	}
	if err := s.InsertCollection(ctx, c); err != nil {
		return Collection{}, err
	}
	return c, nil
}

// =============================================================================
// BULK SETTLEMENT
// =============================================================================

// BulkInstallment names one period to settle at its full per-
// installment share.
type BulkInstallment struct {
	BasePeriodNumber int
}

// BulkInput settles several installments for one subscription.
type BulkInput struct {
	SubscriptionID string
	PaymentMode    PaymentMode
	CollectedBy    string
	Remarks        string
	Installments   []BulkInstallment
}

// BulkResult reports what one batch settled.
type BulkResult struct {
	Collections  []Collection
	TotalSettled decimal.Decimal
	Count        int
}

// RecordBulk settles all installments in one transaction. Installments
// are sorted by period before processing; sequence numbers stay scoped
// to each period. Aggregates are updated once, after the loop. Any
// per-installment validation failure aborts the whole batch.
func (l *Ledger) RecordBulk(ctx context.Context, in BulkInput) (*BulkResult, error) {
	now := l.Now()

	periods := make([]int, len(in.Installments))
	for i, inst := range in.Installments {
		periods[i] = inst.BasePeriodNumber
	}
	sort.Ints(periods)

	var result BulkResult
	err := l.store.WithTx(ctx, func(s Store) error {
		sub, group, err := l.loadPair(ctx, s, in.SubscriptionID)
		if err != nil {
			return err
		}

		total := decimal.Zero
		collections := make([]Collection, 0, len(periods))
		for _, period := range periods {
			if err := validatePeriod(*group, period, now); err != nil {
				return err
			}
			due := perInstallment(*group, *sub)
			c, err := l.insertCollection(ctx, s, *group, *sub, RecordInput{
				SubscriptionID:   sub.ID,
				BasePeriodNumber: period,
				AmountPaid:       due,
				PaymentMode:      in.PaymentMode,
				CollectedBy:      in.CollectedBy,
				Remarks:          in.Remarks,
			}, now)
			if err != nil {
				return err
			}
			collections = append(collections, c)
			total = total.Add(c.AmountPaid)
		}

		// One aggregate write for the whole batch.
		sub.applyCollected(sub.TotalCollected.Add(total))
		if err := s.UpdateSubscriptionTotals(ctx, sub.ID, sub.TotalCollected, sub.PendingAmount, sub.Status); err != nil {
			return err
		}

		result = BulkResult{Collections: collections, TotalSettled: Round2(total), Count: len(collections)}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.emitter.Emit(PaymentEvent{
		Kind:           EventSettled,
		SubscriptionID: in.SubscriptionID,
		Amount:         result.TotalSettled,
		At:             now,
	})
	return &result, nil
}

// =============================================================================
// VOID / EDIT
// =============================================================================

// VoidCollection reverses a collection within the edit window,
// un-applying its amount from the subscription and reopening it if the
// reversal leaves a pending balance.
func (l *Ledger) VoidCollection(ctx context.Context, collectionID string) error {
	now := l.Now()

	var voided Collection
	err := l.store.WithTx(ctx, func(s Store) error {
		c, err := s.Collection(ctx, collectionID)
		if err != nil {
			return err
		}
		if c == nil {
			return ErrCollectionNotFound
		}
		if c.Status == CollectionVoid {
			return ErrAlreadyVoid
		}
		if now.Sub(c.CreatedAt) > EditWindow {
			return ErrEditWindowExpired
		}

		sub, err := s.Subscription(ctx, c.GroupMemberID)
		if err != nil {
			return err
		}
		if sub == nil {
			return ErrSubscriptionNotFound
		}

		if err := s.MarkCollectionVoid(ctx, c.ID); err != nil {
			return err
		}

		sub.applyCollected(sub.TotalCollected.Sub(c.AmountPaid))
		if err := s.UpdateSubscriptionTotals(ctx, sub.ID, sub.TotalCollected, sub.PendingAmount, sub.Status); err != nil {
			return err
		}

		voided = *c
		return nil
	})
	if err != nil {
		return err
	}

	l.emitter.Emit(PaymentEvent{
		Kind:           EventVoided,
		SubscriptionID: voided.GroupMemberID,
		GroupID:        voided.GroupID,
		MemberID:       voided.MemberID,
		CollectionID:   voided.ID,
		Period:         voided.BasePeriodNumber,
		Sequence:       voided.CollectionSequence,
		Amount:         voided.AmountPaid,
		At:             now,
	})
	return nil
}

// EditCollection replaces a collection's paid amount within the edit
// window, reversing the old amount and applying the new one in one
// transaction.
func (l *Ledger) EditCollection(ctx context.Context, collectionID string, newAmountPaid decimal.Decimal) error {
	now := l.Now()

	var edited Collection
	err := l.store.WithTx(ctx, func(s Store) error {
		c, err := s.Collection(ctx, collectionID)
		if err != nil {
			return err
		}
		if c == nil {
			return ErrCollectionNotFound
		}
		if c.Status == CollectionVoid {
			return ErrAlreadyVoid
		}
		if now.Sub(c.CreatedAt) > EditWindow {
			return ErrEditWindowExpired
		}

		sub, err := s.Subscription(ctx, c.GroupMemberID)
		if err != nil {
			return err
		}
		if sub == nil {
			return ErrSubscriptionNotFound
		}

		newAmount := Round2(newAmountPaid)
		if err := s.UpdateCollectionAmount(ctx, c.ID, newAmount); err != nil {
			return err
		}

		sub.applyCollected(sub.TotalCollected.Sub(c.AmountPaid).Add(newAmount))
		if err := s.UpdateSubscriptionTotals(ctx, sub.ID, sub.TotalCollected, sub.PendingAmount, sub.Status); err != nil {
			return err
		}

		edited = *c
		edited.AmountPaid = newAmount
		return nil
	})
	if err != nil {
		return err
	}

	l.emitter.Emit(PaymentEvent{
		Kind:           EventEdited,
		SubscriptionID: edited.GroupMemberID,
		GroupID:        edited.GroupID,
		MemberID:       edited.MemberID,
		CollectionID:   edited.ID,
		Period:         edited.BasePeriodNumber,
		Sequence:       edited.CollectionSequence,
		Amount:         edited.AmountPaid,
		At:             now,
	})
	return nil
}

// =============================================================================
// ENROLLMENT / ADMINISTRATIVE EDITS
// =============================================================================

// Enroll creates a subscription for a member, computing totalDue once.
func (l *Ledger) Enroll(ctx context.Context, groupID, memberID string, units decimal.Decimal, pattern Frequency) (*Subscription, error) {
	group, err := l.store.Group(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, ErrGroupNotFound
	}

	sub := NewSubscription(uuid.NewString(), *group, memberID, units, pattern, l.Now())
	if err := l.store.SaveSubscription(ctx, sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// UpdatePlan applies an administrative edit of a subscription's units
// and pattern, recomputing totalDue and pendingAmount transactionally.
func (l *Ledger) UpdatePlan(ctx context.Context, subscriptionID string, units decimal.Decimal, pattern Frequency) (*Subscription, error) {
	var out Subscription
	err := l.store.WithTx(ctx, func(s Store) error {
		sub, group, err := l.loadPair(ctx, s, subscriptionID)
		if err != nil {
			return err
		}
		sub.Reprice(*group, units, pattern)
		if err := s.SaveSubscription(ctx, *sub); err != nil {
			return err
		}
		out = *sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// =============================================================================
// READ PATHS
// =============================================================================

// NextUnfulfilledPeriod reports, for every period up to the current
// one, how many of its collection slots are filled. Used by "what's
// next" queries.
func (l *Ledger) NextUnfulfilledPeriod(ctx context.Context, subscriptionID string) ([]PeriodFulfilment, error) {
	sub, group, err := l.loadPair(ctx, l.store, subscriptionID)
	if err != nil {
		return nil, err
	}

	current := CurrentPeriod(*group, l.Now())
	factor := factorOf(*group, *sub)

	report := make([]PeriodFulfilment, 0, current)
	for period := 1; period <= current; period++ {
		count, err := l.store.CountCollections(ctx, sub.ID, period)
		if err != nil {
			return nil, err
		}
		report = append(report, PeriodFulfilment{
			Period:     period,
			Collected:  count,
			Total:      factor,
			IsComplete: count >= factor,
		})
	}
	return report, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (l *Ledger) loadPair(ctx context.Context, s Store, subscriptionID string) (*Subscription, *Group, error) {
	sub, err := s.Subscription(ctx, subscriptionID)
	if err != nil {
		return nil, nil, err
	}
	if sub == nil {
		return nil, nil, ErrSubscriptionNotFound
	}
	group, err := s.Group(ctx, sub.GroupID)
	if err != nil {
		return nil, nil, err
	}
	if group == nil {
		return nil, nil, ErrGroupNotFound
	}
	return sub, group, nil
}

// validatePeriod runs steps 2-4 of the recording contract.
func validatePeriod(g Group, period int, now time.Time) error {
	if dayFloor(g.StartDate).After(dayFloor(now)) {
		return ErrGroupNotStarted
	}
	if period < 1 || period > g.TotalPeriods {
		return &PeriodRangeError{Period: period, TotalPeriods: g.TotalPeriods}
	}
	if current := CurrentPeriod(g, now); period > current {
		return &FuturePeriodError{Period: period, Current: current}
	}
	return nil
}
