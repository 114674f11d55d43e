package fulfillment

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/warp/supply-engine/ledger"
	"github.com/warp/supply-engine/lock"
)

// =============================================================================
// REPLENISHER - Tops up items that fell below their minimum stock level
// =============================================================================

// ReplenishmentOrder is one stock_order placed by a replenishment run.
type ReplenishmentOrder struct {
	ItemName      string
	Units         int64
	Cost          decimal.Decimal
	TransactionID ledger.TransactionID
	DeliveryDate  ledger.Date
}

// ReplenishmentReport summarizes one run.
type ReplenishmentReport struct {
	Date       ledger.Date
	Orders     []ReplenishmentOrder
	Skipped    []string // below minimum but unaffordable
	CashBefore decimal.Decimal
	CashAfter  decimal.Decimal
}

// Replenisher restocks every catalog item whose projected stock is below
// MinStockLevel up to TargetMultiple × MinStockLevel, while cash allows.
// Items are visited in catalog (name) order.
type Replenisher struct {
	Ledger         ledger.Ledger
	Projector      *ledger.Projector
	Catalog        ledger.CatalogStore
	Locker         lock.Locker
	TargetMultiple int64
	Logger         zerolog.Logger
}

func NewReplenisher(l ledger.Ledger, catalog ledger.CatalogStore, locker lock.Locker, logger zerolog.Logger) *Replenisher {
	return &Replenisher{
		Ledger:         l,
		Projector:      ledger.NewProjector(l, catalog),
		Catalog:        catalog,
		Locker:         locker,
		TargetMultiple: 2,
		Logger:         logger.With().Str("component", "replenisher").Logger(),
	}
}

// Run plans and commits all replenishment orders for date in one batch.
func (r *Replenisher) Run(ctx context.Context, date ledger.Date) (*ReplenishmentReport, error) {
	held, err := r.Locker.Obtain(ctx, lock.LedgerKey)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := held.Release(context.WithoutCancel(ctx)); err != nil {
			r.Logger.Warn().Err(err).Str("date", date.String()).Msg("release ledger lock")
		}
	}()

	items, err := r.Catalog.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	txs, err := r.Ledger.Transactions(ctx, ledger.MaxDate)
	if err != nil {
		return nil, err
	}
	cash := ledger.FoldCash(txs, date)
	stock := ledger.FoldAllStock(txs, date)
	// Spending is capped by the lowest later balance
	budget := ledger.FoldCashFloor(txs, date)

	report := &ReplenishmentReport{Date: date, CashBefore: cash}
	var batch []ledger.Transaction
	for _, item := range items {
		units := stock[item.ItemName]
		if units < 0 {
			return nil, &ledger.DataIntegrityError{ItemName: item.ItemName, AsOf: date, Stock: units}
		}
		if item.MinStockLevel <= 0 || units >= item.MinStockLevel {
			continue
		}

		need := r.TargetMultiple*item.MinStockLevel - units
		cost := item.UnitPrice.Mul(decimal.NewFromInt(need)).Round(2)
		if budget.LessThan(cost) {
			report.Skipped = append(report.Skipped, item.ItemName)
			continue
		}
		budget = budget.Sub(cost)
		cash = cash.Sub(cost)

		batch = append(batch, ledger.Transaction{
			ItemName: item.ItemName,
			Type:     ledger.TxStockOrder,
			Units:    need,
			Price:    cost,
			Date:     date,
		})
		report.Orders = append(report.Orders, ReplenishmentOrder{
			ItemName:     item.ItemName,
			Units:        need,
			Cost:         cost,
			DeliveryDate: EstimateDelivery(date, need),
		})
	}
	report.CashAfter = cash

	if len(batch) > 0 {
		ids, err := r.Ledger.AppendBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		for i := range report.Orders {
			report.Orders[i].TransactionID = ids[i]
		}
	}

	r.Logger.Info().
		Str("date", date.String()).
		Int("orders", len(report.Orders)).
		Int("skipped", len(report.Skipped)).
		Str("cash_after", cash.StringFixed(2)).
		Msg("replenishment run")

	return report, nil
}
