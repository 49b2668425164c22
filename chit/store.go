/*
store.go - Persistence interface for groups, subscriptions, collections

PURPOSE:
  Defines the interface between the ledger and the database. The engine
  does not own the persistence technology; it receives an explicit
  store handle whose lifecycle is owned by the caller (init at process
  start, teardown at shutdown).

UNIT OF WORK:
  TxStore.WithTx runs a callback against a transaction-scoped Store.
  Every ledger mutation executes its whole read-validate-write sequence
  inside one such callback: the transaction is the unit of atomicity
  and isolation, committed or aborted exactly once at the outermost
  call.

CONCURRENCY BACKSTOP:
  Implementations MUST enforce uniqueness of (groupMemberId,
  basePeriodNumber, collectionSequence) over non-voided collections,
  surfacing violations as ErrSequenceConflict. Under weak isolation two
  concurrent recordings can both count N existing collections and both
  assign sequence N+1; the constraint converts that race into a
  transaction abort-and-retry instead of silent corruption. This is a
  required correctness property, not optional hardening.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite (WAL, partial unique index)
  - chit/store:   in-memory, for tests and dev
*/
package chit

import (
	"context"

	"github.com/shopspring/decimal"
)

// Store handles persistence of the engine's records. Lookups return
// (nil, nil) when the record does not exist; the ledger maps that to
// the not-found sentinels.
type Store interface {
	// Group retrieves a group by ID.
	Group(ctx context.Context, id string) (*Group, error)

	// SaveGroup inserts or replaces a group.
	SaveGroup(ctx context.Context, g Group) error

	// Subscription retrieves a subscription by ID.
	Subscription(ctx context.Context, id string) (*Subscription, error)

	// SaveSubscription inserts or replaces a subscription.
	SaveSubscription(ctx context.Context, s Subscription) error

	// SubscriptionsByGroup returns all subscriptions of a group.
	SubscriptionsByGroup(ctx context.Context, groupID string) ([]Subscription, error)

	// UpdateSubscriptionTotals atomically rewrites a subscription's
	// running aggregates and lifecycle status.
	UpdateSubscriptionTotals(ctx context.Context, id string, totalCollected, pendingAmount decimal.Decimal, status SubscriptionStatus) error

	// Collection retrieves a collection by ID.
	Collection(ctx context.Context, id string) (*Collection, error)

	// CollectionsBySubscription returns a subscription's collections,
	// ordered by period then sequence. Includes voided records.
	CollectionsBySubscription(ctx context.Context, subscriptionID string) ([]Collection, error)

	// CountCollections counts NON-VOIDED collections for one
	// (subscription, basePeriodNumber) pair.
	CountCollections(ctx context.Context, subscriptionID string, basePeriodNumber int) (int, error)

	// InsertCollection persists a new collection. Returns
	// ErrSequenceConflict if the sequence slot is already taken.
	InsertCollection(ctx context.Context, c Collection) error

	// MarkCollectionVoid flips a collection's status to VOID.
	MarkCollectionVoid(ctx context.Context, id string) error

	// UpdateCollectionAmount rewrites a collection's paid amount.
	UpdateCollectionAmount(ctx context.Context, id string, amountPaid decimal.Decimal) error
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
