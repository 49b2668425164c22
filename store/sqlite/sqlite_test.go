package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AppfinityLabs/chitwise/chit"
)

func newTestStore(t *testing.T) *Store {
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testGroup() chit.Group {
	return chit.Group{
		ID:                 "grp-1",
		Name:               "Monthly 2000",
		Frequency:          chit.Monthly,
		ContributionAmount: decimal.NewFromInt(2000),
		TotalUnits:         decimal.NewFromInt(52),
		TotalPeriods:       52,
		StartDate:          time.Date(2026, time.January, 10, 0, 0, 0, 0, time.UTC),
		Status:             chit.GroupActive,
		CreatedAt:          time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
}

func testSubscription(t *testing.T, store *Store, g chit.Group) chit.Subscription {
	ctx := context.Background()
	require.NoError(t, store.SaveGroup(ctx, g))
	sub := chit.NewSubscription("sub-1", g, "member-1", decimal.NewFromInt(1), chit.Monthly, g.StartDate)
	require.NoError(t, store.SaveSubscription(ctx, sub))
	return sub
}

func testCollection(sub chit.Subscription, id string, period, seq int) chit.Collection {
	return chit.Collection{
		ID:                 id,
		GroupMemberID:      sub.ID,
		GroupID:            sub.GroupID,
		MemberID:           sub.MemberID,
		BasePeriodNumber:   period,
		CollectionSequence: seq,
		PeriodDate:         time.Date(2026, time.January, 10, 0, 0, 0, 0, time.UTC),
		AmountDue:          decimal.NewFromInt(2000),
		AmountPaid:         decimal.NewFromInt(2000),
		PaymentMode:        chit.ModeCash,
		CollectedBy:        "agent-1",
		Status:             chit.CollectionPaid,
		CreatedAt:          time.Date(2026, time.January, 10, 9, 30, 0, 0, time.UTC),
	}
}

func TestStore_GroupRoundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	g := testGroup()

	require.NoError(t, store.SaveGroup(ctx, g))

	got, err := store.Group(ctx, g.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, g.ID, got.ID)
	assert.Equal(t, chit.Monthly, got.Frequency)
	assert.True(t, got.ContributionAmount.Equal(g.ContributionAmount))
	assert.True(t, got.StartDate.Equal(g.StartDate))

	missing, err := store.Group(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_SaveGroup_Upserts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	g := testGroup()
	require.NoError(t, store.SaveGroup(ctx, g))

	g.Status = chit.GroupClosed
	require.NoError(t, store.SaveGroup(ctx, g))

	got, err := store.Group(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, chit.GroupClosed, got.Status)
}

func TestStore_SubscriptionRoundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	sub := testSubscription(t, store, testGroup())

	got, err := store.Subscription(ctx, sub.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sub.CollectionFactor, got.CollectionFactor)
	assert.True(t, got.TotalDue.Equal(sub.TotalDue))
	assert.True(t, got.Units.Equal(sub.Units))
	assert.Equal(t, chit.SubscriptionActive, got.Status)

	byGroup, err := store.SubscriptionsByGroup(ctx, sub.GroupID)
	require.NoError(t, err)
	require.Len(t, byGroup, 1)
	assert.Equal(t, sub.ID, byGroup[0].ID)
}

func TestStore_UpdateSubscriptionTotals(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	sub := testSubscription(t, store, testGroup())

	collected := decimal.NewFromInt(2000)
	pending := decimal.NewFromInt(102000)
	require.NoError(t, store.UpdateSubscriptionTotals(ctx, sub.ID, collected, pending, chit.SubscriptionActive))

	got, err := store.Subscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "2000.00", got.TotalCollected.StringFixed(2))
	assert.Equal(t, "102000.00", got.PendingAmount.StringFixed(2))

	err = store.UpdateSubscriptionTotals(ctx, "nope", collected, pending, chit.SubscriptionActive)
	assert.ErrorIs(t, err, chit.ErrSubscriptionNotFound)
}

func TestStore_CollectionRoundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	sub := testSubscription(t, store, testGroup())

	c := testCollection(sub, "col-1", 1, 1)
	c.Remarks = "first installment"
	require.NoError(t, store.InsertCollection(ctx, c))

	got, err := store.Collection(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.BasePeriodNumber)
	assert.Equal(t, 1, got.CollectionSequence)
	assert.Equal(t, "2000.00", got.AmountPaid.StringFixed(2))
	assert.Equal(t, chit.ModeCash, got.PaymentMode)
	assert.Equal(t, "first installment", got.Remarks)
	assert.Equal(t, chit.CollectionPaid, got.Status)
}

func TestStore_CountCollections_ExcludesVoided(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	sub := testSubscription(t, store, testGroup())

	require.NoError(t, store.InsertCollection(ctx, testCollection(sub, "col-1", 1, 1)))
	require.NoError(t, store.InsertCollection(ctx, testCollection(sub, "col-2", 1, 2)))

	n, err := store.CountCollections(ctx, sub.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, store.MarkCollectionVoid(ctx, "col-1"))

	n, err = store.CountCollections(ctx, sub.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Voided rows still show up in the full listing.
	all, err := store.CollectionsBySubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestStore_DuplicateSlotRejected(t *testing.T) {
	// Two non-voided collections may never share
	// (subscription, period, sequence).
	store := newTestStore(t)
	ctx := context.Background()
	sub := testSubscription(t, store, testGroup())

	require.NoError(t, store.InsertCollection(ctx, testCollection(sub, "col-1", 1, 1)))

	err := store.InsertCollection(ctx, testCollection(sub, "col-2", 1, 1))
	assert.ErrorIs(t, err, chit.ErrSequenceConflict)
	assert.True(t, chit.IsRetryable(err))
}

func TestStore_VoidedRowFreesSlot(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	sub := testSubscription(t, store, testGroup())

	require.NoError(t, store.InsertCollection(ctx, testCollection(sub, "col-1", 1, 1)))
	require.NoError(t, store.MarkCollectionVoid(ctx, "col-1"))

	// Same slot is available again once the original is voided.
	require.NoError(t, store.InsertCollection(ctx, testCollection(sub, "col-2", 1, 1)))
}

func TestStore_UpdateCollectionAmount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	sub := testSubscription(t, store, testGroup())

	require.NoError(t, store.InsertCollection(ctx, testCollection(sub, "col-1", 1, 1)))
	require.NoError(t, store.UpdateCollectionAmount(ctx, "col-1", decimal.NewFromInt(1500)))

	got, err := store.Collection(ctx, "col-1")
	require.NoError(t, err)
	assert.Equal(t, "1500.00", got.AmountPaid.StringFixed(2))
	// The scheduled amount is untouched.
	assert.Equal(t, "2000.00", got.AmountDue.StringFixed(2))
}

func TestStore_WithTx_RollsBackOnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	sub := testSubscription(t, store, testGroup())

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(s chit.Store) error {
		if err := s.InsertCollection(ctx, testCollection(sub, "col-1", 1, 1)); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, lerr := store.Collection(ctx, "col-1")
	require.NoError(t, lerr)
	assert.Nil(t, got, "insert must not survive the rollback")
}

func TestStore_WithTx_ReadsSeeUncommittedWrites(t *testing.T) {
	// Sequence derivation inside a batch depends on counts observing
	// rows inserted earlier in the same transaction.
	store := newTestStore(t)
	ctx := context.Background()
	sub := testSubscription(t, store, testGroup())

	err := store.WithTx(ctx, func(s chit.Store) error {
		if err := s.InsertCollection(ctx, testCollection(sub, "col-1", 1, 1)); err != nil {
			return err
		}
		n, err := s.CountCollections(ctx, sub.ID, 1)
		if err != nil {
			return err
		}
		assert.Equal(t, 1, n)
		return nil
	})
	require.NoError(t, err)
}
