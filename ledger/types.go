/*
Package ledger provides the core state engine of the supply system.

PURPOSE:
  Every change to stock and cash is recorded as an immutable Transaction in a
  single append-only log. Stock levels, cash balance and inventory valuation
  are never stored; they are recomputed by folding the log up to a cutoff
  date. Reference data (catalog items, historical quotes) lives next to the
  log but is never mutated by orders.

KEY CONCEPTS IN THIS FILE (types.go):
  - Transaction: An immutable ledger record (stock_order or sale)
  - TransactionType: Direction of the cash/stock movement
  - InventoryItem: Catalog entry (name, category, unit price, seed levels)
  - QuoteRecord: Historical quote used as pricing signal

DESIGN PRINCIPLES:
  1. Immutability: Transactions are never modified or deleted
  2. Precision: Money uses decimal.Decimal, never float64
  3. Day precision: Transaction dates carry no time of day
  4. Re-derivation: Every projection is a total re-fold of the log

USAGE:
  tx := ledger.Transaction{
      ItemName: "A4 paper",
      Type:     ledger.TxSale,
      Units:    200,
      Price:    decimal.RequireFromString("9.00"),
      Date:     ledger.NewDate(2025, time.April, 1),
  }
  id, err := l.Append(ctx, tx)

SEE ALSO:
  - ledger.go: Append-only Ledger interface
  - projection.go: Stock, cash and valuation folds
  - errors.go: Error taxonomy
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TRANSACTION - Immutable ledger record
// =============================================================================

type TransactionID int64

type TransactionType string

const (
	TxStockOrder TransactionType = "stock_order" // Supplier restock: +units, cash outflow
	TxSale       TransactionType = "sale"        // Customer sale: -units, cash inflow
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	return t == TxStockOrder || t == TxSale
}

// Transaction is a single ledger record.
//
// ItemName is empty only for the opening cash seed, which also carries zero
// Units. Price is the total for the record and is never negative; its sign
// is implied by Type.
type Transaction struct {
	ID       TransactionID
	ItemName string
	Type     TransactionType
	Units    int64
	Price    decimal.Decimal
	Date     Date

	// Audit fields
	ReferenceID    string // Order that produced this record
	IdempotencyKey string
	CreatedAt      time.Time
}

// HasItem reports whether the record belongs to a catalog item.
func (tx Transaction) HasItem() bool { return tx.ItemName != "" }

// StockDelta returns the signed unit movement of the record.
func (tx Transaction) StockDelta() int64 {
	switch tx.Type {
	case TxStockOrder:
		return tx.Units
	case TxSale:
		return -tx.Units
	}
	return 0
}

// CashDelta returns the signed cash movement of the record.
func (tx Transaction) CashDelta() decimal.Decimal {
	switch tx.Type {
	case TxSale:
		return tx.Price
	case TxStockOrder:
		return tx.Price.Neg()
	}
	return decimal.Zero
}

// =============================================================================
// REFERENCE DATA - Loaded once at startup
// =============================================================================

// InventoryItem is a catalog entry. CurrentStock and MinStockLevel are seed
// values: after seeding, stock is only ever read from the ledger.
type InventoryItem struct {
	ItemName      string
	Category      string
	UnitPrice     decimal.Decimal
	CurrentStock  int64
	MinStockLevel int64
}

// QuoteRecord is a historical quote. Read-only after load.
type QuoteRecord struct {
	OriginalRequest  string
	TotalAmount      decimal.Decimal
	QuoteExplanation string
	JobType          string
	OrderSize        string
	EventType        string
	OrderDate        Date
}
