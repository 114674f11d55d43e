/*
store.go - Persistence interfaces for the ledger and reference data

PURPOSE:
  Defines the boundary between the engine and the database. The Store
  handles persistence while maintaining append-only semantics. Reference
  data (catalog, quote history) has its own small interfaces so read-only
  components do not depend on the write path.

KEY INTERFACES:
  Store:        Transaction persistence (append, load up to a cutoff)
  CatalogStore: Inventory catalog (seeded once, read by name)
  QuoteStore:   Historical quotes (seeded once, searched by term)

APPEND-ONLY CONTRACT:
  - Append(): Single record, id assigned by the store
  - AppendBatch(): All-or-nothing multi-record write
  - NO Update() or Delete() methods exist

ID ASSIGNMENT:
  Ids are strictly increasing. Stores serialize id assignment so that no
  two concurrent appends can observe the same id, and a record is visible
  to readers only once fully written.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Durable SQLite store
  - ledger/store/memory.go: In-memory store for tests and demos
*/
package ledger

import "context"

// =============================================================================
// STORE - Interface for transaction persistence (append-only)
// =============================================================================

// Store handles persistence of transactions.
// IMPORTANT: Store is APPEND-ONLY. No Update, No Delete. Ever.
type Store interface {
	// Append persists a transaction and returns its assigned id.
	// Returns ErrDuplicateIdempotencyKey if the key already exists.
	Append(ctx context.Context, tx Transaction) (TransactionID, error)

	// AppendBatch persists multiple transactions atomically.
	// Either all succeed or none do. Ids are returned in input order.
	AppendBatch(ctx context.Context, txs []Transaction) ([]TransactionID, error)

	// LoadUntil returns every transaction dated on or before cutoff, in id order.
	LoadUntil(ctx context.Context, cutoff Date) ([]Transaction, error)

	// LoadItemUntil returns the item's transactions dated on or before cutoff.
	LoadItemUntil(ctx context.Context, itemName string, cutoff Date) ([]Transaction, error)

	// Exists checks if idempotency key already exists.
	Exists(ctx context.Context, idempotencyKey string) (bool, error)
}

// RecentLister is implemented by stores that can list the latest records
// regardless of date (admin view).
type RecentLister interface {
	Recent(ctx context.Context, limit int) ([]Transaction, error)
}

// =============================================================================
// REFERENCE DATA STORES
// =============================================================================

// CatalogStore persists the inventory catalog.
type CatalogStore interface {
	SaveItems(ctx context.Context, items []InventoryItem) error

	// ListItems returns all items ordered by name.
	ListItems(ctx context.Context) ([]InventoryItem, error)

	// GetItem returns nil, nil when the item does not exist.
	GetItem(ctx context.Context, itemName string) (*InventoryItem, error)
}

// QuoteStore persists historical quotes.
type QuoteStore interface {
	SaveQuotes(ctx context.Context, quotes []QuoteRecord) error

	// CountQuotes returns the number of stored quotes.
	CountQuotes(ctx context.Context) (int, error)

	// SearchQuotes returns quotes whose request text or explanation contains
	// every term (case-insensitive), most recent first, at most limit rows.
	SearchQuotes(ctx context.Context, terms []string, limit int) ([]QuoteRecord, error)
}
