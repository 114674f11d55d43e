/*
ledger.go - Append-only transaction log

PURPOSE:
  The Ledger is the immutable source of truth for stock and cash.
  Every restock and every sale is recorded here. Stock and cash are always
  computed by replaying transactions - there's no separate "balance" field
  that can get out of sync.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete. EVER.
  2. IMMUTABLE: Once written, transactions cannot be modified
  3. VALIDATED: Malformed records never reach the store
  4. IDEMPOTENT: Same idempotency key = same transaction (no duplicates)

NOT A BUSINESS GATE:
  Append does not check stock or cash. Overselling is prevented by the
  order orchestrator before it appends, under its own lock.

EXAMPLE FLOW:
  1. Seed: sale (no item) +50000 cash
  2. Seed: stock_order A4 paper 500 units, 25.00
  3. Order: sale A4 paper 200 units, 9.00

  Stock(A4 paper) = 500 - 200 = 300
  Cash            = 50000 - 25.00 + 9.00 = 49984.00

SEE ALSO:
  - store.go: Low-level persistence interface
  - projection.go: Folds over the ledger
*/
package ledger

import "context"

// =============================================================================
// LEDGER - Append-only transaction log
// =============================================================================

// Ledger is the source of truth for all stock and cash movements.
type Ledger interface {
	// Append validates and adds a transaction, returning its id.
	// This is the ONLY single-record write operation.
	Append(ctx context.Context, tx Transaction) (TransactionID, error)

	// AppendBatch validates and adds multiple transactions atomically.
	// Used when an order restocks and sells in one step.
	AppendBatch(ctx context.Context, txs []Transaction) ([]TransactionID, error)

	// Transactions returns all transactions dated on or before cutoff.
	Transactions(ctx context.Context, cutoff Date) ([]Transaction, error)

	// ItemTransactions returns an item's transactions dated on or before cutoff.
	ItemTransactions(ctx context.Context, itemName string, cutoff Date) ([]Transaction, error)
}

// =============================================================================
// DEFAULT LEDGER - Implementation using Store
// =============================================================================

type DefaultLedger struct {
	Store Store
}

func NewLedger(store Store) *DefaultLedger {
	return &DefaultLedger{Store: store}
}

func (l *DefaultLedger) Append(ctx context.Context, tx Transaction) (TransactionID, error) {
	if err := Validate(tx); err != nil {
		return 0, err
	}
	if tx.IdempotencyKey != "" {
		exists, err := l.Store.Exists(ctx, tx.IdempotencyKey)
		if err != nil {
			return 0, err
		}
		if exists {
			return 0, ErrDuplicateIdempotencyKey
		}
	}
	return l.Store.Append(ctx, tx)
}

func (l *DefaultLedger) AppendBatch(ctx context.Context, txs []Transaction) ([]TransactionID, error) {
	// Validate and check all idempotency keys first
	seen := make(map[string]bool)
	for _, tx := range txs {
		if err := Validate(tx); err != nil {
			return nil, err
		}
		if tx.IdempotencyKey == "" {
			continue
		}
		if seen[tx.IdempotencyKey] {
			return nil, ErrDuplicateIdempotencyKey
		}
		seen[tx.IdempotencyKey] = true
		exists, err := l.Store.Exists(ctx, tx.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, ErrDuplicateIdempotencyKey
		}
	}
	return l.Store.AppendBatch(ctx, txs)
}

func (l *DefaultLedger) Transactions(ctx context.Context, cutoff Date) ([]Transaction, error) {
	return l.Store.LoadUntil(ctx, cutoff)
}

func (l *DefaultLedger) ItemTransactions(ctx context.Context, itemName string, cutoff Date) ([]Transaction, error) {
	return l.Store.LoadItemUntil(ctx, itemName, cutoff)
}

// Validate checks the structural rules every record must satisfy before it
// is written. It does not look at stock or cash.
func Validate(tx Transaction) error {
	if !tx.Type.Valid() {
		return &ValidationError{Field: "transaction_type", Message: "must be stock_order or sale"}
	}
	if tx.Date.IsZero() {
		return &ValidationError{Field: "transaction_date", Message: "is required"}
	}
	if tx.Price.IsNegative() {
		return &ValidationError{Field: "price", Message: "must not be negative"}
	}
	if tx.Units < 0 {
		return &ValidationError{Field: "units", Message: "must not be negative"}
	}
	if tx.HasItem() && tx.Units == 0 {
		return &ValidationError{Field: "units", Message: "item transactions need a positive unit count"}
	}
	if !tx.HasItem() && tx.Units != 0 {
		return &ValidationError{Field: "item_name", Message: "units given without an item"}
	}
	return nil
}
