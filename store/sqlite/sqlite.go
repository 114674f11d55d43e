/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements the ledger and reference-data interfaces using SQLite. In
  production the same patterns apply to PostgreSQL with only minor SQL
  dialect differences.

INTERFACES IMPLEMENTED:
  ledger.Store:        Transaction persistence
  ledger.RecentLister: Admin listing of the latest records
  ledger.CatalogStore: Inventory catalog
  ledger.QuoteStore:   Historical quotes

APPEND-ONLY ENFORCEMENT:
  The Store enforces append-only semantics:
  - No UPDATE statements on transactions table
  - No DELETE statements on transactions table
  - Ids come from INTEGER PRIMARY KEY AUTOINCREMENT, never reused

KEY TABLES:
  transactions: Immutable ledger of all stock and cash movements
  inventory:    Catalog items (reference data)
  quotes:       Historical quotes (reference data)

DATES:
  transaction_date and order_date are stored as YYYY-MM-DD text, so the
  inclusive cutoff is a plain string comparison that uses the index.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. An in-memory database is pinned to a
  single connection because every new connection to ":memory:" would open
  a different, empty database.

USAGE:
  store, err := sqlite.New("./data/supply.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  l := ledger.NewLedger(store)

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/ledger.go: Higher-level ledger using Store
  - ledger/store/memory.go: In-memory implementation for testing
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
	"github.com/warp/supply-engine/ledger"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ ledger.Store        = (*Store)(nil)
	_ ledger.RecentLister = (*Store)(nil)
	_ ledger.CatalogStore = (*Store)(nil)
	_ ledger.QuoteStore   = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
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

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Transactions (append-only ledger)
	CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		item_name TEXT,
		transaction_type TEXT NOT NULL CHECK (transaction_type IN ('stock_order', 'sale')),
		units INTEGER,
		price TEXT NOT NULL,
		transaction_date TEXT NOT NULL,
		reference_id TEXT,
		idempotency_key TEXT UNIQUE,
		created_at TEXT NOT NULL
	);

	-- Projection cutoffs (hot path)
	CREATE INDEX IF NOT EXISTS idx_transactions_date
		ON transactions(transaction_date);
	CREATE INDEX IF NOT EXISTS idx_transactions_item_date
		ON transactions(item_name, transaction_date);

	-- For order tracking
	CREATE INDEX IF NOT EXISTS idx_transactions_reference
		ON transactions(reference_id) WHERE reference_id IS NOT NULL;

	-- Catalog
	CREATE TABLE IF NOT EXISTS inventory (
		item_name TEXT PRIMARY KEY,
		category TEXT NOT NULL,
		unit_price TEXT NOT NULL,
		current_stock INTEGER NOT NULL DEFAULT 0,
		min_stock_level INTEGER NOT NULL DEFAULT 0
	);

	-- Quote history
	CREATE TABLE IF NOT EXISTS quotes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		original_request TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		quote_explanation TEXT,
		job_type TEXT,
		order_size TEXT,
		event_type TEXT,
		order_date TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_quotes_order_date
		ON quotes(order_date DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTION STORE (ledger.Store interface)
// =============================================================================

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Append adds a transaction to the ledger.
func (s *Store) Append(ctx context.Context, tx ledger.Transaction) (ledger.TransactionID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.appendTx(ctx, s.db, tx)
}

func (s *Store) appendTx(ctx context.Context, db execer, tx ledger.Transaction) (ledger.TransactionID, error) {
	createdAt := tx.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO transactions
		(item_name, transaction_type, units, price, transaction_date,
		 reference_id, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := db.ExecContext(ctx, query,
		nullString(tx.ItemName),
		string(tx.Type),
		nullUnits(tx),
		tx.Price.String(),
		tx.Date.String(),
		nullString(tx.ReferenceID),
		nullString(tx.IdempotencyKey),
		createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return 0, ledger.ErrDuplicateIdempotencyKey
		}
		return 0, &ledger.StoreError{Op: "append transaction", Err: err}
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, &ledger.StoreError{Op: "read transaction id", Err: err}
	}
	return ledger.TransactionID(id), nil
}

// AppendBatch adds multiple transactions atomically.
func (s *Store) AppendBatch(ctx context.Context, txs []ledger.Transaction) ([]ledger.TransactionID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Check for duplicate idempotency keys within the batch first
	idempotencyKeys := make(map[string]bool)
	for _, tx := range txs {
		if tx.IdempotencyKey != "" {
			if idempotencyKeys[tx.IdempotencyKey] {
				return nil, ledger.ErrDuplicateIdempotencyKey
			}
			idempotencyKeys[tx.IdempotencyKey] = true
		}
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &ledger.StoreError{Op: "begin transaction", Err: err}
	}
	defer sqlTx.Rollback()

	ids := make([]ledger.TransactionID, 0, len(txs))
	for _, tx := range txs {
		id, err := s.appendTx(ctx, sqlTx, tx)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := sqlTx.Commit(); err != nil {
		return nil, &ledger.StoreError{Op: "commit transaction", Err: err}
	}
	return ids, nil
}

const transactionColumns = `
	id, item_name, transaction_type, units, price, transaction_date,
	reference_id, idempotency_key, created_at`

// LoadUntil returns all transactions dated on or before cutoff.
func (s *Store) LoadUntil(ctx context.Context, cutoff ledger.Date) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT` + transactionColumns + `
		FROM transactions
		WHERE transaction_date <= ?
		ORDER BY id ASC
	`
	return s.queryTransactions(ctx, query, cutoff.String())
}

// LoadItemUntil returns one item's transactions dated on or before cutoff.
func (s *Store) LoadItemUntil(ctx context.Context, itemName string, cutoff ledger.Date) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT` + transactionColumns + `
		FROM transactions
		WHERE item_name = ? AND transaction_date <= ?
		ORDER BY id ASC
	`
	return s.queryTransactions(ctx, query, itemName, cutoff.String())
}

// Exists checks if an idempotency key exists.
func (s *Store) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transactions WHERE idempotency_key = ?",
		idempotencyKey,
	).Scan(&count)
	if err != nil {
		return false, &ledger.StoreError{Op: "check idempotency key", Err: err}
	}

	return count > 0, nil
}

// Recent returns the latest transactions, newest first (for admin view).
func (s *Store) Recent(ctx context.Context, limit int) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT` + transactionColumns + `
		FROM transactions
		ORDER BY id DESC
		LIMIT ?
	`
	return s.queryTransactions(ctx, query, limit)
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]ledger.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &ledger.StoreError{Op: "query transactions", Err: err}
	}
	defer rows.Close()

	var txs []ledger.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, &ledger.StoreError{Op: "scan transaction", Err: err}
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, &ledger.StoreError{Op: "query transactions", Err: err}
	}

	return txs, nil
}

func scanTransaction(rows *sql.Rows) (ledger.Transaction, error) {
	var (
		tx                              ledger.Transaction
		itemName, refID, idemKey        sql.NullString
		units                           sql.NullInt64
		txType, price, date, createdAt string
	)

	err := rows.Scan(&tx.ID, &itemName, &txType, &units, &price, &date, &refID, &idemKey, &createdAt)
	if err != nil {
		return tx, err
	}

	tx.ItemName = itemName.String
	tx.Type = ledger.TransactionType(txType)
	tx.Units = units.Int64
	tx.ReferenceID = refID.String
	tx.IdempotencyKey = idemKey.String

	if tx.Price, err = decimal.NewFromString(price); err != nil {
		return tx, fmt.Errorf("transaction %d price: %w", tx.ID, err)
	}
	if tx.Date, err = ledger.ParseDate(date); err != nil {
		return tx, fmt.Errorf("transaction %d date: %w", tx.ID, err)
	}
	if tx.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return tx, fmt.Errorf("transaction %d created_at: %w", tx.ID, err)
	}

	return tx, nil
}

// =============================================================================
// CATALOG STORE (ledger.CatalogStore interface)
// =============================================================================

// SaveItems inserts or replaces catalog items by name.
func (s *Store) SaveItems(ctx context.Context, items []ledger.InventoryItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &ledger.StoreError{Op: "begin transaction", Err: err}
	}
	defer sqlTx.Rollback()

	query := `
		INSERT INTO inventory (item_name, category, unit_price, current_stock, min_stock_level)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(item_name) DO UPDATE SET
			category = excluded.category,
			unit_price = excluded.unit_price,
			current_stock = excluded.current_stock,
			min_stock_level = excluded.min_stock_level
	`
	for _, item := range items {
		_, err := sqlTx.ExecContext(ctx, query,
			item.ItemName,
			item.Category,
			item.UnitPrice.String(),
			item.CurrentStock,
			item.MinStockLevel,
		)
		if err != nil {
			return &ledger.StoreError{Op: "save item " + item.ItemName, Err: err}
		}
	}

	if err := sqlTx.Commit(); err != nil {
		return &ledger.StoreError{Op: "commit transaction", Err: err}
	}
	return nil
}

// ListItems returns every catalog item ordered by name.
func (s *Store) ListItems(ctx context.Context) ([]ledger.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT item_name, category, unit_price, current_stock, min_stock_level
		FROM inventory
		ORDER BY item_name ASC
	`)
	if err != nil {
		return nil, &ledger.StoreError{Op: "list items", Err: err}
	}
	defer rows.Close()

	var items []ledger.InventoryItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, &ledger.StoreError{Op: "scan item", Err: err}
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, &ledger.StoreError{Op: "list items", Err: err}
	}
	return items, nil
}

// GetItem returns nil, nil when the item does not exist.
func (s *Store) GetItem(ctx context.Context, itemName string) (*ledger.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT item_name, category, unit_price, current_stock, min_stock_level
		FROM inventory
		WHERE item_name = ?
	`, itemName)

	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &ledger.StoreError{Op: "get item", Err: err}
	}
	return &item, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (ledger.InventoryItem, error) {
	var (
		item  ledger.InventoryItem
		price string
	)
	if err := row.Scan(&item.ItemName, &item.Category, &price, &item.CurrentStock, &item.MinStockLevel); err != nil {
		return item, err
	}
	unitPrice, err := decimal.NewFromString(price)
	if err != nil {
		return item, fmt.Errorf("item %q unit price: %w", item.ItemName, err)
	}
	item.UnitPrice = unitPrice
	return item, nil
}

// =============================================================================
// QUOTE STORE (ledger.QuoteStore interface)
// =============================================================================

// SaveQuotes appends historical quotes.
func (s *Store) SaveQuotes(ctx context.Context, quotes []ledger.QuoteRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &ledger.StoreError{Op: "begin transaction", Err: err}
	}
	defer sqlTx.Rollback()

	query := `
		INSERT INTO quotes
		(original_request, total_amount, quote_explanation, job_type, order_size, event_type, order_date)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	for _, q := range quotes {
		_, err := sqlTx.ExecContext(ctx, query,
			q.OriginalRequest,
			q.TotalAmount.String(),
			q.QuoteExplanation,
			q.JobType,
			q.OrderSize,
			q.EventType,
			q.OrderDate.String(),
		)
		if err != nil {
			return &ledger.StoreError{Op: "save quote", Err: err}
		}
	}

	if err := sqlTx.Commit(); err != nil {
		return &ledger.StoreError{Op: "commit transaction", Err: err}
	}
	return nil
}

// CountQuotes returns the number of rows in the quote history.
func (s *Store) CountQuotes(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM quotes`).Scan(&n); err != nil {
		return 0, &ledger.StoreError{Op: "count quotes", Err: err}
	}
	return n, nil
}

// SearchQuotes returns quotes whose request or explanation contains every
// term, case-insensitive, most recent first.
func (s *Store) SearchQuotes(ctx context.Context, terms []string, limit int) ([]ledger.QuoteRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		conditions []string
		args       []any
	)
	for _, term := range terms {
		pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
		conditions = append(conditions,
			`(LOWER(original_request) LIKE ? ESCAPE '\' OR LOWER(COALESCE(quote_explanation, '')) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}

	query := `
		SELECT original_request, total_amount, quote_explanation, job_type, order_size, event_type, order_date
		FROM quotes`
	if len(conditions) > 0 {
		query += "\n\t\tWHERE " + strings.Join(conditions, " AND ")
	}
	query += "\n\t\tORDER BY order_date DESC, id ASC"
	if limit > 0 {
		query += "\n\t\tLIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &ledger.StoreError{Op: "search quotes", Err: err}
	}
	defer rows.Close()

	var quotes []ledger.QuoteRecord
	for rows.Next() {
		var (
			q                                 ledger.QuoteRecord
			total, date                       string
			explanation, jobType, size, event sql.NullString
		)
		if err := rows.Scan(&q.OriginalRequest, &total, &explanation, &jobType, &size, &event, &date); err != nil {
			return nil, &ledger.StoreError{Op: "scan quote", Err: err}
		}
		q.QuoteExplanation = explanation.String
		q.JobType = jobType.String
		q.OrderSize = size.String
		q.EventType = event.String
		if q.TotalAmount, err = decimal.NewFromString(total); err != nil {
			return nil, &ledger.StoreError{Op: "scan quote", Err: err}
		}
		if q.OrderDate, err = ledger.ParseDate(date); err != nil {
			return nil, &ledger.StoreError{Op: "scan quote", Err: err}
		}
		quotes = append(quotes, q)
	}
	if err := rows.Err(); err != nil {
		return nil, &ledger.StoreError{Op: "search quotes", Err: err}
	}
	return quotes, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullUnits stores the cash seed's missing unit count as NULL.
func nullUnits(tx ledger.Transaction) sql.NullInt64 {
	if !tx.HasItem() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: tx.Units, Valid: true}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
