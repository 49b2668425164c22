/*
Package sqlite provides a SQLite-backed implementation of chit.TxStore.

PURPOSE:
  Production persistence for groups, subscriptions (group members), and
  collections. The same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

KEY TABLES:
  groups:        scheme definitions (cadence, contribution, periods)
  group_members: subscriptions with running aggregates
  collections:   recorded payment events

INVARIANT BACKSTOP:
  idx_unique_collection_slot enforces uniqueness of
  (group_member_id, base_period_number, collection_sequence) over
  non-voided rows. Two concurrent recordings that both derive the same
  sequence hit this index; the violation surfaces as
  chit.ErrSequenceConflict, converting the race into an
  abort-and-retry instead of silent double-booking.

WAL MODE:
  SQLite is opened with WAL for better concurrency: multiple readers
  don't block, a single writer at a time, better crash recovery.

MONEY COLUMNS:
  Decimal amounts are stored as TEXT via decimal.String() and parsed
  back with chit.MustDecimal, avoiding float drift in storage.

USAGE:
  st, err := sqlite.New("./data/chitwise.db")  // ":memory:" for tests
  defer st.Close()
  ledger := chit.NewLedger(st, emitter)

SEE ALSO:
  - chit/store.go: interface definitions
  - chit/store/memory.go: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/AppfinityLabs/chitwise/chit"
)

// Store implements chit.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS groups (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		frequency TEXT NOT NULL,
		contribution_amount TEXT NOT NULL,
		total_units TEXT NOT NULL,
		total_periods INTEGER NOT NULL,
		start_date TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS group_members (
		id TEXT PRIMARY KEY,
		group_id TEXT NOT NULL REFERENCES groups(id),
		member_id TEXT NOT NULL,
		units TEXT NOT NULL,
		collection_pattern TEXT NOT NULL,
		collection_factor INTEGER NOT NULL,
		total_due TEXT NOT NULL,
		total_collected TEXT NOT NULL,
		pending_amount TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_group_members_group
		ON group_members(group_id);

	CREATE TABLE IF NOT EXISTS collections (
		id TEXT PRIMARY KEY,
		group_member_id TEXT NOT NULL REFERENCES group_members(id),
		group_id TEXT NOT NULL,
		member_id TEXT NOT NULL,
		base_period_number INTEGER NOT NULL,
		collection_sequence INTEGER NOT NULL,
		period_date TEXT NOT NULL,
		amount_due TEXT NOT NULL,
		amount_paid TEXT NOT NULL,
		payment_mode TEXT NOT NULL,
		collected_by TEXT,
		remarks TEXT,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_collections_member_period
		ON collections(group_member_id, base_period_number);

	-- CRITICAL: the sequence-slot backstop. Two concurrent recordings
	-- that derive the same sequence for the same member and period
	-- collide here instead of double-booking.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_collection_slot
		ON collections(group_member_id, base_period_number, collection_sequence)
		WHERE status != 'VOID';
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is the subset of *sql.DB / *sql.Tx the queries need, so every
// statement can run either directly or inside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// GROUPS
// =============================================================================

func (s *Store) Group(ctx context.Context, id string) (*chit.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getGroup(ctx, s.db, id)
}

func getGroup(ctx context.Context, q dbtx, id string) (*chit.Group, error) {
	var (
		g                    chit.Group
		contribution, units  string
		startDate, createdAt string
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, name, frequency, contribution_amount, total_units,
		       total_periods, start_date, status, created_at
		FROM groups WHERE id = ?`, id,
	).Scan(&g.ID, &g.Name, &g.Frequency, &contribution, &units,
		&g.TotalPeriods, &startDate, &g.Status, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load group: %w", err)
	}
	g.ContributionAmount = chit.MustDecimal(contribution)
	g.TotalUnits = chit.MustDecimal(units)
	g.StartDate, _ = time.Parse(time.RFC3339, startDate)
	g.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &g, nil
}

func (s *Store) SaveGroup(ctx context.Context, g chit.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveGroup(ctx, s.db, g)
}

func saveGroup(ctx context.Context, q dbtx, g chit.Group) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO groups
		(id, name, frequency, contribution_amount, total_units, total_periods, start_date, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			frequency = excluded.frequency,
			contribution_amount = excluded.contribution_amount,
			total_units = excluded.total_units,
			total_periods = excluded.total_periods,
			start_date = excluded.start_date,
			status = excluded.status`,
		g.ID, g.Name, g.Frequency, g.ContributionAmount.String(), g.TotalUnits.String(),
		g.TotalPeriods, g.StartDate.UTC().Format(time.RFC3339), g.Status,
		g.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// =============================================================================
// SUBSCRIPTIONS (group members)
// =============================================================================

const subscriptionColumns = `id, group_id, member_id, units, collection_pattern, collection_factor,
	total_due, total_collected, pending_amount, status, created_at`

func (s *Store) Subscription(ctx context.Context, id string) (*chit.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getSubscription(ctx, s.db, id)
}

func getSubscription(ctx context.Context, q dbtx, id string) (*chit.Subscription, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM group_members WHERE id = ?`, id)
	sub, err := scanSubscriptionRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	return sub, nil
}

func scanSubscriptionRow(scan func(...any) error) (*chit.Subscription, error) {
	var (
		sub                            chit.Subscription
		units, due, collected, pending string
		createdAt                      string
	)
	err := scan(&sub.ID, &sub.GroupID, &sub.MemberID, &units, &sub.CollectionPattern,
		&sub.CollectionFactor, &due, &collected, &pending, &sub.Status, &createdAt)
	if err != nil {
		return nil, err
	}
	sub.Units = chit.MustDecimal(units)
	sub.TotalDue = chit.MustDecimal(due)
	sub.TotalCollected = chit.MustDecimal(collected)
	sub.PendingAmount = chit.MustDecimal(pending)
	sub.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &sub, nil
}

func (s *Store) SaveSubscription(ctx context.Context, sub chit.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveSubscription(ctx, s.db, sub)
}

func saveSubscription(ctx context.Context, q dbtx, sub chit.Subscription) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO group_members
		(id, group_id, member_id, units, collection_pattern, collection_factor,
		 total_due, total_collected, pending_amount, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			units = excluded.units,
			collection_pattern = excluded.collection_pattern,
			collection_factor = excluded.collection_factor,
			total_due = excluded.total_due,
			total_collected = excluded.total_collected,
			pending_amount = excluded.pending_amount,
			status = excluded.status`,
		sub.ID, sub.GroupID, sub.MemberID, sub.Units.String(), sub.CollectionPattern,
		sub.CollectionFactor, sub.TotalDue.String(), sub.TotalCollected.String(),
		sub.PendingAmount.String(), sub.Status, sub.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) SubscriptionsByGroup(ctx context.Context, groupID string) ([]chit.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listSubscriptions(ctx, s.db, groupID)
}

func listSubscriptions(ctx context.Context, q dbtx, groupID string) ([]chit.Subscription, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+subscriptionColumns+` FROM group_members WHERE group_id = ? ORDER BY id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []chit.Subscription
	for rows.Next() {
		sub, err := scanSubscriptionRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

func (s *Store) UpdateSubscriptionTotals(ctx context.Context, id string, totalCollected, pendingAmount decimal.Decimal, status chit.SubscriptionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateTotals(ctx, s.db, id, totalCollected, pendingAmount, status)
}

func updateTotals(ctx context.Context, q dbtx, id string, totalCollected, pendingAmount decimal.Decimal, status chit.SubscriptionStatus) error {
	res, err := q.ExecContext(ctx, `
		UPDATE group_members
		SET total_collected = ?, pending_amount = ?, status = ?
		WHERE id = ?`,
		totalCollected.String(), pendingAmount.String(), status, id)
	if err != nil {
		return fmt.Errorf("failed to update subscription totals: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return chit.ErrSubscriptionNotFound
	}
	return nil
}

// =============================================================================
// COLLECTIONS
// =============================================================================

const collectionColumns = `id, group_member_id, group_id, member_id, base_period_number,
	collection_sequence, period_date, amount_due, amount_paid, payment_mode,
	collected_by, remarks, status, created_at`

func (s *Store) Collection(ctx context.Context, id string) (*chit.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getCollection(ctx, s.db, id)
}

func getCollection(ctx context.Context, q dbtx, id string) (*chit.Collection, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+collectionColumns+` FROM collections WHERE id = ?`, id)
	c, err := scanCollectionRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load collection: %w", err)
	}
	return c, nil
}

func scanCollectionRow(scan func(...any) error) (*chit.Collection, error) {
	var (
		c                     chit.Collection
		periodDate, createdAt string
		due, paid             string
		collectedBy, remarks  sql.NullString
	)
	err := scan(&c.ID, &c.GroupMemberID, &c.GroupID, &c.MemberID, &c.BasePeriodNumber,
		&c.CollectionSequence, &periodDate, &due, &paid, &c.PaymentMode,
		&collectedBy, &remarks, &c.Status, &createdAt)
	if err != nil {
		return nil, err
	}
	c.PeriodDate, _ = time.Parse(time.RFC3339, periodDate)
	c.AmountDue = chit.MustDecimal(due)
	c.AmountPaid = chit.MustDecimal(paid)
	c.CollectedBy = collectedBy.String
	c.Remarks = remarks.String
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &c, nil
}

func (s *Store) CollectionsBySubscription(ctx context.Context, subscriptionID string) ([]chit.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listCollections(ctx, s.db, subscriptionID)
}

func listCollections(ctx context.Context, q dbtx, subscriptionID string) ([]chit.Collection, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+collectionColumns+` FROM collections
		WHERE group_member_id = ?
		ORDER BY base_period_number ASC, collection_sequence ASC`, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query collections: %w", err)
	}
	defer rows.Close()

	var cs []chit.Collection
	for rows.Next() {
		c, err := scanCollectionRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		cs = append(cs, *c)
	}
	return cs, rows.Err()
}

func (s *Store) CountCollections(ctx context.Context, subscriptionID string, basePeriodNumber int) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return countCollections(ctx, s.db, subscriptionID, basePeriodNumber)
}

func countCollections(ctx context.Context, q dbtx, subscriptionID string, basePeriodNumber int) (int, error) {
	var count int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM collections
		WHERE group_member_id = ? AND base_period_number = ? AND status != 'VOID'`,
		subscriptionID, basePeriodNumber,
	).Scan(&count)
	return count, err
}

func (s *Store) InsertCollection(ctx context.Context, c chit.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertCollection(ctx, s.db, c)
}

func insertCollection(ctx context.Context, q dbtx, c chit.Collection) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO collections
		(id, group_member_id, group_id, member_id, base_period_number, collection_sequence,
		 period_date, amount_due, amount_paid, payment_mode, collected_by, remarks, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.GroupMemberID, c.GroupID, c.MemberID, c.BasePeriodNumber, c.CollectionSequence,
		c.PeriodDate.UTC().Format(time.RFC3339), c.AmountDue.String(), c.AmountPaid.String(),
		c.PaymentMode, nullString(c.CollectedBy), nullString(c.Remarks), c.Status,
		c.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return chit.ErrSequenceConflict
		}
		return fmt.Errorf("failed to insert collection: %w", err)
	}
	return nil
}

func (s *Store) MarkCollectionVoid(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return markVoid(ctx, s.db, id)
}

func markVoid(ctx context.Context, q dbtx, id string) error {
	res, err := q.ExecContext(ctx,
		`UPDATE collections SET status = 'VOID' WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to void collection: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return chit.ErrCollectionNotFound
	}
	return nil
}

func (s *Store) UpdateCollectionAmount(ctx context.Context, id string, amountPaid decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateAmount(ctx, s.db, id, amountPaid)
}

func updateAmount(ctx context.Context, q dbtx, id string, amountPaid decimal.Decimal) error {
	res, err := q.ExecContext(ctx,
		`UPDATE collections SET amount_paid = ? WHERE id = ?`, amountPaid.String(), id)
	if err != nil {
		return fmt.Errorf("failed to update collection amount: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return chit.ErrCollectionNotFound
	}
	return nil
}

// =============================================================================
// TRANSACTIONS (chit.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction. Reads inside fn go
// through the transaction handle, so writes made earlier in the same
// callback are visible to later validation (bulk settlement relies on
// this for per-period counts).
func (s *Store) WithTx(ctx context.Context, fn func(chit.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore binds every query to the open transaction. No re-locking:
// WithTx holds the store's write lock for the whole callback.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) Group(ctx context.Context, id string) (*chit.Group, error) {
	return getGroup(ctx, ts.tx, id)
}

func (ts *txStore) SaveGroup(ctx context.Context, g chit.Group) error {
	return saveGroup(ctx, ts.tx, g)
}

func (ts *txStore) Subscription(ctx context.Context, id string) (*chit.Subscription, error) {
	return getSubscription(ctx, ts.tx, id)
}

func (ts *txStore) SaveSubscription(ctx context.Context, sub chit.Subscription) error {
	return saveSubscription(ctx, ts.tx, sub)
}

func (ts *txStore) SubscriptionsByGroup(ctx context.Context, groupID string) ([]chit.Subscription, error) {
	return listSubscriptions(ctx, ts.tx, groupID)
}

func (ts *txStore) UpdateSubscriptionTotals(ctx context.Context, id string, totalCollected, pendingAmount decimal.Decimal, status chit.SubscriptionStatus) error {
	return updateTotals(ctx, ts.tx, id, totalCollected, pendingAmount, status)
}

func (ts *txStore) Collection(ctx context.Context, id string) (*chit.Collection, error) {
	return getCollection(ctx, ts.tx, id)
}

func (ts *txStore) CollectionsBySubscription(ctx context.Context, subscriptionID string) ([]chit.Collection, error) {
	return listCollections(ctx, ts.tx, subscriptionID)
}

func (ts *txStore) CountCollections(ctx context.Context, subscriptionID string, basePeriodNumber int) (int, error) {
	return countCollections(ctx, ts.tx, subscriptionID, basePeriodNumber)
}

func (ts *txStore) InsertCollection(ctx context.Context, c chit.Collection) error {
	return insertCollection(ctx, ts.tx, c)
}

func (ts *txStore) MarkCollectionVoid(ctx context.Context, id string) error {
	return markVoid(ctx, ts.tx, id)
}

func (ts *txStore) UpdateCollectionAmount(ctx context.Context, id string, amountPaid decimal.Decimal) error {
	return updateAmount(ctx, ts.tx, id, amountPaid)
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
