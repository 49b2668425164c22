package store

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

func seedSubscription(t *testing.T, m chit.Store) chit.Subscription {
	ctx := context.Background()
	g := chit.Group{
		ID:                 "grp-1",
		Name:               "Monthly 2000",
		Frequency:          chit.Monthly,
		ContributionAmount: decimal.NewFromInt(2000),
		TotalUnits:         decimal.NewFromInt(52),
		TotalPeriods:       52,
		StartDate:          time.Date(2026, time.January, 10, 0, 0, 0, 0, time.UTC),
		Status:             chit.GroupActive,
	}
	require.NoError(t, m.SaveGroup(ctx, g))
	sub := chit.NewSubscription("sub-1", g, "member-1", decimal.NewFromInt(1), chit.Monthly, g.StartDate)
	require.NoError(t, m.SaveSubscription(ctx, sub))
	return sub
}

func collection(sub chit.Subscription, id string, period, seq int) chit.Collection {
	return chit.Collection{
		ID:                 id,
		GroupMemberID:      sub.ID,
		GroupID:            sub.GroupID,
		MemberID:           sub.MemberID,
		BasePeriodNumber:   period,
		CollectionSequence: seq,
		AmountDue:          decimal.NewFromInt(2000),
		AmountPaid:         decimal.NewFromInt(2000),
		PaymentMode:        chit.ModeCash,
		Status:             chit.CollectionPaid,
	}
}

func TestMemory_SequenceBackstop(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	sub := seedSubscription(t, m)

	require.NoError(t, m.InsertCollection(ctx, collection(sub, "col-1", 1, 1)))

	err := m.InsertCollection(ctx, collection(sub, "col-2", 1, 1))
	assert.ErrorIs(t, err, chit.ErrSequenceConflict)

	// Voiding the occupant frees the slot.
	require.NoError(t, m.MarkCollectionVoid(ctx, "col-1"))
	require.NoError(t, m.InsertCollection(ctx, collection(sub, "col-2", 1, 1)))
}

func TestMemory_CountCollections_ExcludesVoided(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	sub := seedSubscription(t, m)

	require.NoError(t, m.InsertCollection(ctx, collection(sub, "col-1", 1, 1)))
	require.NoError(t, m.InsertCollection(ctx, collection(sub, "col-2", 1, 2)))
	require.NoError(t, m.MarkCollectionVoid(ctx, "col-2"))

	n, err := m.CountCollections(ctx, sub.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestTxMemory_RollbackRestoresSnapshot(t *testing.T) {
	tm := NewTxMemory()
	ctx := context.Background()
	sub := seedSubscription(t, tm)

	boom := errors.New("boom")
	err := tm.WithTx(ctx, func(s chit.Store) error {
		if err := s.InsertCollection(ctx, collection(sub, "col-1", 1, 1)); err != nil {
			return err
		}
		if err := s.UpdateSubscriptionTotals(ctx, sub.ID, decimal.NewFromInt(2000), decimal.NewFromInt(102000), chit.SubscriptionActive); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, lerr := tm.Collection(ctx, "col-1")
	require.NoError(t, lerr)
	assert.Nil(t, got)

	after, lerr := tm.Subscription(ctx, sub.ID)
	require.NoError(t, lerr)
	assert.True(t, after.TotalCollected.IsZero())
}

func TestTxMemory_CommitKeepsWrites(t *testing.T) {
	tm := NewTxMemory()
	ctx := context.Background()
	sub := seedSubscription(t, tm)

	err := tm.WithTx(ctx, func(s chit.Store) error {
		if err := s.InsertCollection(ctx, collection(sub, "col-1", 1, 1)); err != nil {
			return err
		}
		// Reads inside the transaction observe the insert.
		n, err := s.CountCollections(ctx, sub.ID, 1)
		if err != nil {
			return err
		}
		assert.Equal(t, 1, n)
		return nil
	})
	require.NoError(t, err)

	got, lerr := tm.Collection(ctx, "col-1")
	require.NoError(t, lerr)
	require.NotNil(t, got)
}
