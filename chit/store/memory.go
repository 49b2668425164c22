// Package store provides an in-memory chit.TxStore for tests and dev.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/AppfinityLabs/chitwise/chit"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu            sync.RWMutex
	groups        map[string]chit.Group
	subscriptions map[string]chit.Subscription
	collections   map[string]chit.Collection
}

func NewMemory() *Memory {
	return &Memory{
		groups:        make(map[string]chit.Group),
		subscriptions: make(map[string]chit.Subscription),
		collections:   make(map[string]chit.Collection),
	}
}

func (m *Memory) Group(_ context.Context, id string) (*chit.Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if g, ok := m.groups[id]; ok {
		return &g, nil
	}
	return nil, nil
}

func (m *Memory) SaveGroup(_ context.Context, g chit.Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups[g.ID] = g
	return nil
}

func (m *Memory) Subscription(_ context.Context, id string) (*chit.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.subscriptions[id]; ok {
		return &s, nil
	}
	return nil, nil
}

func (m *Memory) SaveSubscription(_ context.Context, s chit.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions[s.ID] = s
	return nil
}

func (m *Memory) SubscriptionsByGroup(_ context.Context, groupID string) ([]chit.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var subs []chit.Subscription
	for _, s := range m.subscriptions {
		if s.GroupID == groupID {
			subs = append(subs, s)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID < subs[j].ID })
	return subs, nil
}

func (m *Memory) UpdateSubscriptionTotals(_ context.Context, id string, totalCollected, pendingAmount decimal.Decimal, status chit.SubscriptionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateTotalsLocked(id, totalCollected, pendingAmount, status)
}

func (m *Memory) updateTotalsLocked(id string, totalCollected, pendingAmount decimal.Decimal, status chit.SubscriptionStatus) error {
	s, ok := m.subscriptions[id]
	if !ok {
		return chit.ErrSubscriptionNotFound
	}
	s.TotalCollected = totalCollected
	s.PendingAmount = pendingAmount
	s.Status = status
	m.subscriptions[id] = s
	return nil
}

func (m *Memory) Collection(_ context.Context, id string) (*chit.Collection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.collections[id]; ok {
		return &c, nil
	}
	return nil, nil
}

func (m *Memory) CollectionsBySubscription(_ context.Context, subscriptionID string) ([]chit.Collection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var cs []chit.Collection
	for _, c := range m.collections {
		if c.GroupMemberID == subscriptionID {
			cs = append(cs, c)
		}
	}
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].BasePeriodNumber != cs[j].BasePeriodNumber {
			return cs[i].BasePeriodNumber < cs[j].BasePeriodNumber
		}
		return cs[i].CollectionSequence < cs[j].CollectionSequence
	})
	return cs, nil
}

func (m *Memory) CountCollections(_ context.Context, subscriptionID string, basePeriodNumber int) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.countLocked(subscriptionID, basePeriodNumber), nil
}

func (m *Memory) countLocked(subscriptionID string, basePeriodNumber int) int {
	count := 0
	for _, c := range m.collections {
		if c.GroupMemberID == subscriptionID && c.BasePeriodNumber == basePeriodNumber && c.Status != chit.CollectionVoid {
			count++
		}
	}
	return count
}

func (m *Memory) InsertCollection(_ context.Context, c chit.Collection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(c)
}

func (m *Memory) insertLocked(c chit.Collection) error {
	// Same backstop as the SQLite partial unique index.
	for _, existing := range m.collections {
		if existing.GroupMemberID == c.GroupMemberID &&
			existing.BasePeriodNumber == c.BasePeriodNumber &&
			existing.CollectionSequence == c.CollectionSequence &&
			existing.Status != chit.CollectionVoid && c.Status != chit.CollectionVoid {
			return chit.ErrSequenceConflict
		}
	}
	m.collections[c.ID] = c
	return nil
}

func (m *Memory) MarkCollectionVoid(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[id]
	if !ok {
		return chit.ErrCollectionNotFound
	}
	c.Status = chit.CollectionVoid
	m.collections[id] = c
	return nil
}

func (m *Memory) UpdateCollectionAmount(_ context.Context, id string, amountPaid decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[id]
	if !ok {
		return chit.ErrCollectionNotFound
	}
	c.AmountPaid = amountPaid
	m.collections[id] = c
	return nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction, simulated with a snapshot
// plus rollback on error. Writes inside fn are visible to subsequent
// reads within the same fn, matching real transaction semantics.
func (tm *TxMemory) WithTx(_ context.Context, fn func(chit.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()
	view := &txMemoryView{parent: tm}

	if err := fn(view); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	groups        map[string]chit.Group
	subscriptions map[string]chit.Subscription
	collections   map[string]chit.Collection
}

func (tm *TxMemory) snapshot() memorySnapshot {
	s := memorySnapshot{
		groups:        make(map[string]chit.Group, len(tm.groups)),
		subscriptions: make(map[string]chit.Subscription, len(tm.subscriptions)),
		collections:   make(map[string]chit.Collection, len(tm.collections)),
	}
	for k, v := range tm.groups {
		s.groups[k] = v
	}
	for k, v := range tm.subscriptions {
		s.subscriptions[k] = v
	}
	for k, v := range tm.collections {
		s.collections[k] = v
	}
	return s
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.groups = s.groups
	tm.subscriptions = s.subscriptions
	tm.collections = s.collections
}

// txMemoryView operates on the parent's maps directly without
// re-locking; WithTx holds the write lock for the whole callback.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) Group(_ context.Context, id string) (*chit.Group, error) {
	if g, ok := tv.parent.groups[id]; ok {
		return &g, nil
	}
	return nil, nil
}

func (tv *txMemoryView) SaveGroup(_ context.Context, g chit.Group) error {
	tv.parent.groups[g.ID] = g
	return nil
}

func (tv *txMemoryView) Subscription(_ context.Context, id string) (*chit.Subscription, error) {
	if s, ok := tv.parent.subscriptions[id]; ok {
		return &s, nil
	}
	return nil, nil
}

func (tv *txMemoryView) SaveSubscription(_ context.Context, s chit.Subscription) error {
	tv.parent.subscriptions[s.ID] = s
	return nil
}

func (tv *txMemoryView) SubscriptionsByGroup(ctx context.Context, groupID string) ([]chit.Subscription, error) {
	var subs []chit.Subscription
	for _, s := range tv.parent.subscriptions {
		if s.GroupID == groupID {
			subs = append(subs, s)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID < subs[j].ID })
	return subs, nil
}

func (tv *txMemoryView) UpdateSubscriptionTotals(_ context.Context, id string, totalCollected, pendingAmount decimal.Decimal, status chit.SubscriptionStatus) error {
	return tv.parent.updateTotalsLocked(id, totalCollected, pendingAmount, status)
}

func (tv *txMemoryView) Collection(_ context.Context, id string) (*chit.Collection, error) {
	if c, ok := tv.parent.collections[id]; ok {
		return &c, nil
	}
	return nil, nil
}

func (tv *txMemoryView) CollectionsBySubscription(_ context.Context, subscriptionID string) ([]chit.Collection, error) {
	var cs []chit.Collection
	for _, c := range tv.parent.collections {
		if c.GroupMemberID == subscriptionID {
			cs = append(cs, c)
		}
	}
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].BasePeriodNumber != cs[j].BasePeriodNumber {
			return cs[i].BasePeriodNumber < cs[j].BasePeriodNumber
		}
		return cs[i].CollectionSequence < cs[j].CollectionSequence
	})
	return cs, nil
}

func (tv *txMemoryView) CountCollections(_ context.Context, subscriptionID string, basePeriodNumber int) (int, error) {
	return tv.parent.countLocked(subscriptionID, basePeriodNumber), nil
}

func (tv *txMemoryView) InsertCollection(_ context.Context, c chit.Collection) error {
	return tv.parent.insertLocked(c)
}

func (tv *txMemoryView) MarkCollectionVoid(_ context.Context, id string) error {
	c, ok := tv.parent.collections[id]
	if !ok {
		return chit.ErrCollectionNotFound
	}
	c.Status = chit.CollectionVoid
	tv.parent.collections[id] = c
	return nil
}

func (tv *txMemoryView) UpdateCollectionAmount(_ context.Context, id string, amountPaid decimal.Decimal) error {
	c, ok := tv.parent.collections[id]
	if !ok {
		return chit.ErrCollectionNotFound
	}
	c.AmountPaid = amountPaid
	tv.parent.collections[id] = c
	return nil
}
