/*
Package sqlite provides the SQLite-backed implementation of reconcile.TxStore.

PURPOSE:
  Persists the receive reconciliation tables and the FIFO ledger with sqlx
  over mattn/go-sqlite3. In production the same schema runs on any SQL
  database with minor dialect changes (upsert, RETURNING).

INTERFACES IMPLEMENTED:
  reconcile.TxStore: everything the service reads and writes
  fifo.Store:        ledger inserts, always inside a WithTx
  fifo.Reader:       ledger reads for the layers endpoint and linkage checks

APPEND-ONLY TABLES:
  receive_diff_events, fifo_transactions, fifo_layers, landed_prices
  - no UPDATE, no DELETE statements exist for them in this package

KEY CONSTRAINTS:
  fifo_transactions.ref_key              UNIQUE -> fifo.ErrDuplicateRefKey
  receive_diff_events(logistic_num, seq) UNIQUE -> reconcile.ErrDuplicateEventSeq
  shipment_items(logistic_num, sku)      UNIQUE
  purchase_order_items(po_num, sku)      UNIQUE

  The ledger tables carry no foreign keys; fifo.CheckLinkage verifies their
  linkage.

CONNECTIONS:
  ":memory:" is pinned to one connection, otherwise every pooled
  connection would see its own empty database. Transactions begin
  IMMEDIATE so a writer holds the write lock from its first statement.

USAGE:
  store, err := sqlite.New("./data/receive.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := reconcile.NewService(store, lock.NewLocal(), logger)

MIGRATION:
  Schema is auto-migrated on New().
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"github.com/warp/receive-engine/fifo"
	"github.com/warp/receive-engine/reconcile"
)

var (
	_ reconcile.TxStore = (*Store)(nil)
	_ reconcile.Store   = (*txStore)(nil)
	_ fifo.Reader       = (*Store)(nil)
)

// Store is the database handle. Its query methods run outside any
// transaction; use WithTx for writes.
type Store struct {
	*queries
	db *sqlx.DB
}

// New opens (and migrates) the database at path. Use ":memory:" for an
// in-memory database.
func New(path string) (*Store, error) {
	dsn := path + "?_foreign_keys=on&_journal_mode=WAL&_loc=UTC&_txlock=immediate&_busy_timeout=5000"
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	s := &Store{queries: &queries{q: db}, db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection; used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(schema)
	return err
}

const schema = `
	-- Upstream-owned shipments, mutated by corrections
	CREATE TABLE IF NOT EXISTS shipments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		logistic_num TEXT NOT NULL UNIQUE,
		parent_logistic_num TEXT NOT NULL DEFAULT '',
		sent_date DATE,
		note TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_shipments_parent
		ON shipments(parent_logistic_num) WHERE parent_logistic_num <> '';

	CREATE TABLE IF NOT EXISTS shipment_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		shipment_id INTEGER NOT NULL REFERENCES shipments(id),
		logistic_num TEXT NOT NULL,
		po_num TEXT NOT NULL,
		sku TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		unit_price TEXT NOT NULL DEFAULT '0',
		UNIQUE (logistic_num, sku)
	);

	CREATE TABLE IF NOT EXISTS purchase_order_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		po_num TEXT NOT NULL,
		sku TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		unit_price TEXT NOT NULL DEFAULT '0',
		UNIQUE (po_num, sku)
	);

	-- Receives
	CREATE TABLE IF NOT EXISTS receives (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		logistic_num TEXT NOT NULL,
		po_num TEXT NOT NULL,
		sku TEXT NOT NULL,
		sent_quantity INTEGER NOT NULL,
		receive_quantity INTEGER NOT NULL,
		unit_price TEXT NOT NULL,
		receive_date DATE NOT NULL,
		operator TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_receives_logistic_num
		ON receives(logistic_num);

	-- Diffs: one per mismatched receive, never physically deleted
	CREATE TABLE IF NOT EXISTS receive_diffs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		receive_id INTEGER NOT NULL REFERENCES receives(id),
		logistic_num TEXT NOT NULL,
		po_num TEXT NOT NULL,
		sku TEXT NOT NULL,
		sent_quantity INTEGER NOT NULL,
		receive_quantity INTEGER NOT NULL,
		diff_quantity INTEGER NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('pending', 'resolved')),
		resolution_note TEXT NOT NULL DEFAULT '',
		deleted_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_receive_diffs_logistic_num
		ON receive_diffs(logistic_num);
	CREATE INDEX IF NOT EXISTS idx_receive_diffs_receive
		ON receive_diffs(receive_id);
	CREATE INDEX IF NOT EXISTS idx_receive_diffs_pending
		ON receive_diffs(status) WHERE status = 'pending';

	-- Events (append-only, gapless seq per logistic_num)
	CREATE TABLE IF NOT EXISTS receive_diff_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		uid TEXT NOT NULL UNIQUE,
		logistic_num TEXT NOT NULL,
		event_type TEXT NOT NULL,
		event_seq INTEGER NOT NULL,
		changes TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		operator TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		UNIQUE (logistic_num, event_seq)
	);

	-- FIFO ledger (append-only)
	CREATE TABLE IF NOT EXISTS fifo_transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ref_key TEXT NOT NULL UNIQUE,
		sku TEXT NOT NULL,
		"action" TEXT NOT NULL,
		tran_type TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		unit_price TEXT NOT NULL,
		tran_date DATE NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS fifo_layers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		in_tran_id INTEGER NOT NULL,
		sku TEXT NOT NULL,
		qty_in INTEGER NOT NULL,
		qty_remaining INTEGER NOT NULL,
		unit_cost TEXT NOT NULL,
		landed_cost TEXT NOT NULL,
		in_date DATE NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_fifo_layers_sku_date
		ON fifo_layers(sku, in_date);

	CREATE TABLE IF NOT EXISTS landed_prices (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		fifo_tran_id INTEGER NOT NULL,
		fifo_layer_id INTEGER NOT NULL,
		logistic_num TEXT NOT NULL,
		po_num TEXT NOT NULL,
		sku TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		base_price_usd TEXT NOT NULL,
		landed_price_usd TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_landed_prices_layer
		ON landed_prices(fifo_layer_id);
`

// =============================================================================
// TRANSACTIONAL STORE (reconcile.TxStore interface)
// =============================================================================

// WithTx executes fn within one database transaction. fn must only use the
// store it is handed.
func (s *Store) WithTx(ctx context.Context, fn func(reconcile.Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&txStore{queries: &queries{q: tx}}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type txStore struct {
	*queries
}

// queries holds every statement. It runs against either the pool or an
// open transaction.
type queries struct {
	q sqlx.ExtContext
}

// =============================================================================
// HELPERS
// =============================================================================

// get runs a single-row query. A missing row is reported as found=false.
func (qs *queries) get(ctx context.Context, dest any, query string, args ...any) (bool, error) {
	err := sqlx.GetContext(ctx, qs.q, dest, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (qs *queries) selectAll(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, qs.q, dest, query, args...)
}

// insert runs a named INSERT and returns the generated row id.
func (qs *queries) insert(ctx context.Context, query string, arg any) (int64, error) {
	res, err := sqlx.NamedExecContext(ctx, qs.q, query, arg)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// exec runs an UPDATE that must touch exactly one row.
func (qs *queries) exec(ctx context.Context, what string, query string, args ...any) error {
	res, err := qs.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", what, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("failed to update %s: %d rows affected", what, n)
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
