/*
projection.go - Point-in-time folds over the ledger

PURPOSE:
  Answers "what did the company have on date D?" for stock, cash and
  inventory value. Every answer is a total re-fold of the ledger up to and
  including D. Nothing is cached between calls, so a projection can always
  be re-derived and can never drift from the log.

FOLDS:
  Stock(item) = Σ stock_order.units - Σ sale.units      (item records only)
  Cash        = Σ sale.price        - Σ stock_order.price (all records)
  Inventory   = Σ over catalog of Stock(item) × unit_price

NEGATIVE STOCK:
  A negative stock fold means more was sold than was ever stocked. That is
  a broken invariant, not a business state, and surfaces as a
  DataIntegrityError instead of a silently clamped number.

AVAILABILITY:
  A record dated D changes every balance from D onward. What can still be
  sold or spent on D is therefore the lowest end-of-day balance from D to
  the end of the ledger, not the balance on D alone:

    day 1  +200 stock          balance 200
    day 10 -100 sale           balance 100
    => available on day 5 is 100, not 200

TOP SELLERS:
  Sale records with an item are grouped by item and ordered by revenue
  descending; equal revenue is ordered by item name ascending so the
  report is deterministic.

PURE vs STORE-BACKED:
  The Fold* functions are pure over a slice of transactions. Projector
  loads the slice from the Ledger on every call and applies them.

SEE ALSO:
  - ledger.go: Source of the transactions
  - fulfillment/orchestrator.go: Reads stock and cash before committing
*/
package ledger

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
)

// TopSellingLimit is the number of products listed in a financial report.
const TopSellingLimit = 5

// =============================================================================
// PURE FOLDS
// =============================================================================

// FoldStock returns the net units of item across txs, filtered by cutoff.
func FoldStock(txs []Transaction, itemName string, cutoff Date) int64 {
	var stock int64
	for _, tx := range txs {
		if tx.ItemName != itemName || tx.Date.After(cutoff) {
			continue
		}
		stock += tx.StockDelta()
	}
	return stock
}

// FoldAllStock returns net units per item, including zero and negative items.
func FoldAllStock(txs []Transaction, cutoff Date) map[string]int64 {
	stock := make(map[string]int64)
	for _, tx := range txs {
		if !tx.HasItem() || tx.Date.After(cutoff) {
			continue
		}
		stock[tx.ItemName] += tx.StockDelta()
	}
	return stock
}

// FoldCash returns sales minus stock orders, filtered by cutoff.
func FoldCash(txs []Transaction, cutoff Date) decimal.Decimal {
	cash := decimal.Zero
	for _, tx := range txs {
		if tx.Date.After(cutoff) {
			continue
		}
		cash = cash.Add(tx.CashDelta())
	}
	return cash
}

// FoldStockFloor returns the lowest end-of-day stock of item on any day from
// from onward. Records after from are included regardless of any cutoff.
func FoldStockFloor(txs []Transaction, itemName string, from Date) int64 {
	var stock int64
	var later []Transaction
	for _, tx := range txs {
		if tx.ItemName != itemName {
			continue
		}
		if tx.Date.After(from) {
			later = append(later, tx)
			continue
		}
		stock += tx.StockDelta()
	}

	floor := stock
	for i, tx := range byDate(later) {
		stock += tx.StockDelta()
		if endOfDay(later, i) && stock < floor {
			floor = stock
		}
	}
	return floor
}

// FoldCashFloor returns the lowest end-of-day cash on any day from from onward.
func FoldCashFloor(txs []Transaction, from Date) decimal.Decimal {
	cash := decimal.Zero
	var later []Transaction
	for _, tx := range txs {
		if tx.Date.After(from) {
			later = append(later, tx)
			continue
		}
		cash = cash.Add(tx.CashDelta())
	}

	floor := cash
	for i, tx := range byDate(later) {
		cash = cash.Add(tx.CashDelta())
		if endOfDay(later, i) && cash.LessThan(floor) {
			floor = cash
		}
	}
	return floor
}

func byDate(txs []Transaction) []Transaction {
	sort.SliceStable(txs, func(i, j int) bool { return txs[i].Date.Before(txs[j].Date) })
	return txs
}

// endOfDay reports whether txs[i] is the last record of its day.
func endOfDay(txs []Transaction, i int) bool {
	return i+1 == len(txs) || !txs[i+1].Date.Equal(txs[i].Date)
}

// ProductSales is a top-seller row.
type ProductSales struct {
	ItemName     string
	TotalUnits   int64
	TotalRevenue decimal.Decimal
}

// FoldTopSelling groups item sales up to cutoff and returns at most limit rows
// by revenue descending, ties broken by item name ascending.
func FoldTopSelling(txs []Transaction, cutoff Date, limit int) []ProductSales {
	byItem := make(map[string]*ProductSales)
	for _, tx := range txs {
		if tx.Type != TxSale || !tx.HasItem() || tx.Date.After(cutoff) {
			continue
		}
		row, ok := byItem[tx.ItemName]
		if !ok {
			row = &ProductSales{ItemName: tx.ItemName, TotalRevenue: decimal.Zero}
			byItem[tx.ItemName] = row
		}
		row.TotalUnits += tx.Units
		row.TotalRevenue = row.TotalRevenue.Add(tx.Price)
	}

	rows := make([]ProductSales, 0, len(byItem))
	for _, row := range byItem {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if c := rows[i].TotalRevenue.Cmp(rows[j].TotalRevenue); c != 0 {
			return c > 0
		}
		return rows[i].ItemName < rows[j].ItemName
	})
	if limit >= 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

// =============================================================================
// PROJECTOR - Store-backed projections
// =============================================================================

// Projector computes projections from the ledger and the catalog.
type Projector struct {
	Ledger  Ledger
	Catalog CatalogStore
}

func NewProjector(l Ledger, catalog CatalogStore) *Projector {
	return &Projector{Ledger: l, Catalog: catalog}
}

// StockAsOf returns the item's stock on date. Unknown items have 0 stock.
func (p *Projector) StockAsOf(ctx context.Context, itemName string, date Date) (int64, error) {
	txs, err := p.Ledger.ItemTransactions(ctx, itemName, date)
	if err != nil {
		return 0, err
	}
	stock := FoldStock(txs, itemName, date)
	if stock < 0 {
		return 0, &DataIntegrityError{ItemName: itemName, AsOf: date, Stock: stock}
	}
	return stock, nil
}

// AllStockAsOf returns stock per item on date, only for items with stock > 0.
// Absence from the map does not mean an item is stocked anywhere else.
func (p *Projector) AllStockAsOf(ctx context.Context, date Date) (map[string]int64, error) {
	txs, err := p.Ledger.Transactions(ctx, date)
	if err != nil {
		return nil, err
	}
	result := make(map[string]int64)
	for item, stock := range FoldAllStock(txs, date) {
		if stock > 0 {
			result[item] = stock
		}
	}
	return result, nil
}

// CashBalanceAsOf returns cash on date. An empty ledger has zero cash.
func (p *Projector) CashBalanceAsOf(ctx context.Context, date Date) (decimal.Decimal, error) {
	txs, err := p.Ledger.Transactions(ctx, date)
	if err != nil {
		return decimal.Zero, err
	}
	return FoldCash(txs, date), nil
}

// InventoryValueAsOf returns Σ stock × unit_price over the catalog on date.
func (p *Projector) InventoryValueAsOf(ctx context.Context, date Date) (decimal.Decimal, error) {
	txs, err := p.Ledger.Transactions(ctx, date)
	if err != nil {
		return decimal.Zero, err
	}
	_, total, err := p.valuate(ctx, txs, date)
	return total, err
}

// AvailableStockFrom returns how many units of item can be sold on date
// without any balance from date onward going negative.
func (p *Projector) AvailableStockFrom(ctx context.Context, itemName string, date Date) (int64, error) {
	txs, err := p.Ledger.ItemTransactions(ctx, itemName, MaxDate)
	if err != nil {
		return 0, err
	}
	floor := FoldStockFloor(txs, itemName, date)
	if floor < 0 {
		return 0, &DataIntegrityError{ItemName: itemName, AsOf: date, Stock: floor}
	}
	return floor, nil
}

// AvailableCashFrom returns how much can be spent on date without cash on
// any day from date onward going negative.
func (p *Projector) AvailableCashFrom(ctx context.Context, date Date) (decimal.Decimal, error) {
	txs, err := p.Ledger.Transactions(ctx, MaxDate)
	if err != nil {
		return decimal.Zero, err
	}
	return FoldCashFloor(txs, date), nil
}

// =============================================================================
// FINANCIAL REPORT
// =============================================================================

// ItemValuation is one catalog row of the inventory summary.
type ItemValuation struct {
	ItemName  string
	Stock     int64
	UnitPrice decimal.Decimal
	Value     decimal.Decimal
}

// FinancialReport is the structured state of the company on a date.
type FinancialReport struct {
	AsOf             Date
	CashBalance      decimal.Decimal
	InventoryValue   decimal.Decimal
	TotalAssets      decimal.Decimal
	InventorySummary []ItemValuation
	TopSelling       []ProductSales
}

// FinancialReport folds one ledger snapshot into cash, valuation and top
// sellers, so all figures in the report agree with each other.
func (p *Projector) FinancialReport(ctx context.Context, date Date) (*FinancialReport, error) {
	txs, err := p.Ledger.Transactions(ctx, date)
	if err != nil {
		return nil, err
	}
	summary, inventory, err := p.valuate(ctx, txs, date)
	if err != nil {
		return nil, err
	}
	cash := FoldCash(txs, date)
	return &FinancialReport{
		AsOf:             date,
		CashBalance:      cash,
		InventoryValue:   inventory,
		TotalAssets:      cash.Add(inventory),
		InventorySummary: summary,
		TopSelling:       FoldTopSelling(txs, date, TopSellingLimit),
	}, nil
}

func (p *Projector) valuate(ctx context.Context, txs []Transaction, date Date) ([]ItemValuation, decimal.Decimal, error) {
	items, err := p.Catalog.ListItems(ctx)
	if err != nil {
		return nil, decimal.Zero, err
	}
	stock := FoldAllStock(txs, date)

	total := decimal.Zero
	summary := make([]ItemValuation, 0, len(items))
	for _, item := range items {
		units := stock[item.ItemName]
		if units < 0 {
			return nil, decimal.Zero, &DataIntegrityError{ItemName: item.ItemName, AsOf: date, Stock: units}
		}
		value := item.UnitPrice.Mul(decimal.NewFromInt(units))
		total = total.Add(value)
		summary = append(summary, ItemValuation{
			ItemName:  item.ItemName,
			Stock:     units,
			UnitPrice: item.UnitPrice,
			Value:     value,
		})
	}
	return summary, total, nil
}
