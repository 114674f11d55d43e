/*
orchestrator.go - Order lifecycle from intent to ledger record

PURPOSE:
  Takes one resolved intent and drives it to a terminal state. This is the
  only place that decides whether a sale is allowed; the ledger itself
  accepts any well-formed record.

ORDER FLOW:
  ┌──────────────────────────────────────────────────────────────────┐
  │                                                                  │
  │  Intent ──▶ Validate ──▶ CheckStock ──▶ Price ──▶ Commit ──▶ OK  │
  │                │             │            │          │           │
  │                ▼             ▼            ▼          ▼           │
  │            Rejected     Rejected or   Rejected    Failed         │
  │           (validation,   Restock     (funds)    (store error)    │
  │            not_found)  (out_of_stock)                            │
  │                                                                  │
  └──────────────────────────────────────────────────────────────────┘

TERMINAL STATES:
  confirmed: sale (and any restock) appended, Confirmation returned
  rejected:  expected business outcome, nothing appended
  failed:    data-integrity or store error, returned as an error too

LOCKING:
  CheckStock through Commit runs under the ledger lock. Without it two
  concurrent orders could both read the same stock and oversell.

BACKDATED ORDERS:
  Stock and cash are read as the lowest balance from the order date to the
  end of the ledger. An order dated before existing sales can only use what
  those sales left over, so no later projection goes negative.

RESTOCK:
  With RestockOnShortage, a shortfall becomes a stock_order for exactly the
  missing units, priced at the catalog unit price and dated on the order
  date. It is committed in the same batch as the sale, so the ledger never
  holds a restock without its sale or a sale without its restock.

SEE ALSO:
  - pricing.go: Price estimation
  - delivery.go: Lead times
  - ledger/projection.go: Stock and cash reads
*/
package fulfillment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/warp/supply-engine/ledger"
	"github.com/warp/supply-engine/lock"
)

// =============================================================================
// RESULT TYPES
// =============================================================================

type OrderStatus string

const (
	StatusConfirmed OrderStatus = "confirmed"
	StatusRejected  OrderStatus = "rejected"
	StatusFailed    OrderStatus = "failed"
)

type RejectReason string

const (
	ReasonValidation        RejectReason = "validation"
	ReasonNotFound          RejectReason = "not_found"
	ReasonOutOfStock        RejectReason = "out_of_stock"
	ReasonInsufficientFunds RejectReason = "insufficient_funds"
	ReasonDuplicate         RejectReason = "duplicate"
	ReasonUnresolved        RejectReason = "unresolved"
)

// Restock describes a supplier order placed to cover a shortfall.
type Restock struct {
	TransactionID ledger.TransactionID
	Units         int64
	Cost          decimal.Decimal
	DeliveryDate  ledger.Date
}

// Confirmation is the structured receipt of a confirmed order.
type Confirmation struct {
	OrderID           string
	ItemName          string
	Quantity          int64
	UnitPrice         decimal.Decimal
	Total             decimal.Decimal
	BulkDiscount      bool
	Date              ledger.Date
	DeliveryDate      ledger.Date
	SaleTransactionID ledger.TransactionID
	Restock           *Restock
}

// Result is the terminal state of one order.
type Result struct {
	OrderID      string
	Status       OrderStatus
	Reason       RejectReason // set when rejected
	Err          error        // rejection or failure cause
	Confirmation *Confirmation
}

func (r *Result) Confirmed() bool { return r.Status == StatusConfirmed }

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// OrderPolicy controls optional orchestrator behavior.
type OrderPolicy struct {
	// RestockOnShortage orders the missing units from the supplier instead
	// of rejecting the order.
	RestockOnShortage bool
}

// Orchestrator sequences CheckStock -> Price -> Commit -> Confirm.
type Orchestrator struct {
	Ledger    ledger.Ledger
	Projector *ledger.Projector
	Catalog   ledger.CatalogStore
	Pricing   *Estimator
	Locker    lock.Locker
	Policy    OrderPolicy
	Logger    zerolog.Logger

	// Clock supplies the order date when an intent has none.
	Clock func() ledger.Date
	// NewOrderID generates order ids; defaults to random UUIDs.
	NewOrderID func() string
}

func NewOrchestrator(
	l ledger.Ledger,
	catalog ledger.CatalogStore,
	pricing *Estimator,
	locker lock.Locker,
	policy OrderPolicy,
	logger zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		Ledger:     l,
		Projector:  ledger.NewProjector(l, catalog),
		Catalog:    catalog,
		Pricing:    pricing,
		Locker:     locker,
		Policy:     policy,
		Logger:     logger.With().Str("component", "orchestrator").Logger(),
		Clock:      ledger.Today,
		NewOrderID: func() string { return uuid.NewString() },
	}
}

// Process drives one intent to a terminal state. A non-nil error is
// returned only for failures (data integrity, store, lock); rejections are
// reported in the Result with a nil error.
func (o *Orchestrator) Process(ctx context.Context, intent Intent) (*Result, error) {
	start := time.Now()
	res := o.process(ctx, intent)
	o.logResult(intent, res, time.Since(start))

	if res.Status == StatusFailed {
		return res, res.Err
	}
	return res, nil
}

func (o *Orchestrator) process(ctx context.Context, intent Intent) *Result {
	orderID := o.NewOrderID()
	date := intent.Date
	if date.IsZero() {
		date = o.Clock()
	}

	// Validate
	if intent.ItemName == "" {
		return reject(orderID, ReasonValidation, &ledger.ValidationError{Field: "item_name", Message: "is required"})
	}
	if intent.Quantity <= 0 {
		return reject(orderID, ReasonValidation, &ledger.ValidationError{Field: "quantity", Message: "must be positive"})
	}
	item, err := o.Catalog.GetItem(ctx, intent.ItemName)
	if err != nil {
		return fail(orderID, err)
	}
	if item == nil {
		return reject(orderID, ReasonNotFound, &ledger.NotFoundError{ItemName: intent.ItemName})
	}

	held, err := o.Locker.Obtain(ctx, lock.LedgerKey)
	if err != nil {
		return fail(orderID, err)
	}
	defer func() {
		if err := held.Release(context.WithoutCancel(ctx)); err != nil {
			o.Logger.Warn().Err(err).Str("order_id", orderID).Msg("release ledger lock")
		}
	}()

	// CheckStock
	stock, err := o.Projector.AvailableStockFrom(ctx, item.ItemName, date)
	if err != nil {
		return fail(orderID, err)
	}
	var restock *Restock
	if shortfall := intent.Quantity - stock; shortfall > 0 {
		if !o.Policy.RestockOnShortage {
			return reject(orderID, ReasonOutOfStock, &ledger.OutOfStockError{
				ItemName:  item.ItemName,
				Available: stock,
				Requested: intent.Quantity,
			})
		}
		restock = &Restock{
			Units:        shortfall,
			Cost:         item.UnitPrice.Mul(decimal.NewFromInt(shortfall)).Round(2),
			DeliveryDate: EstimateDelivery(date, shortfall),
		}
	}

	// Price
	quote, err := o.Pricing.Estimate(ctx, item.ItemName, intent.Quantity)
	if err != nil {
		return fail(orderID, err)
	}
	cash, err := o.Projector.AvailableCashFrom(ctx, date)
	if err != nil {
		return fail(orderID, err)
	}
	// Restock is paid first
	if restock != nil && cash.LessThan(restock.Cost) {
		return reject(orderID, ReasonInsufficientFunds, &ledger.InsufficientFundsError{Available: cash, Required: restock.Cost})
	}
	if cash.LessThan(quote.Total) {
		return reject(orderID, ReasonInsufficientFunds, &ledger.InsufficientFundsError{Available: cash, Required: quote.Total})
	}

	// Commit
	sale := ledger.Transaction{
		ItemName:       item.ItemName,
		Type:           ledger.TxSale,
		Units:          intent.Quantity,
		Price:          quote.Total,
		Date:           date,
		ReferenceID:    orderID,
		IdempotencyKey: intent.IdempotencyKey,
	}
	batch := []ledger.Transaction{sale}
	if restock != nil {
		batch = []ledger.Transaction{{
			ItemName:       item.ItemName,
			Type:           ledger.TxStockOrder,
			Units:          restock.Units,
			Price:          restock.Cost,
			Date:           date,
			ReferenceID:    orderID,
			IdempotencyKey: derivedKey(intent.IdempotencyKey, "restock"),
		}, sale}
	}

	ids, err := o.Ledger.AppendBatch(ctx, batch)
	if errors.Is(err, ledger.ErrDuplicateIdempotencyKey) {
		return reject(orderID, ReasonDuplicate, err)
	}
	if err != nil {
		return fail(orderID, err)
	}
	if restock != nil {
		restock.TransactionID = ids[0]
	}

	// Confirm
	return &Result{
		OrderID: orderID,
		Status:  StatusConfirmed,
		Confirmation: &Confirmation{
			OrderID:           orderID,
			ItemName:          item.ItemName,
			Quantity:          intent.Quantity,
			UnitPrice:         quote.UnitPrice,
			Total:             quote.Total,
			BulkDiscount:      quote.BulkDiscount,
			Date:              date,
			DeliveryDate:      EstimateDelivery(date, intent.Quantity),
			SaleTransactionID: ids[len(ids)-1],
			Restock:           restock,
		},
	}
}

func (o *Orchestrator) logResult(intent Intent, res *Result, elapsed time.Duration) {
	var event *zerolog.Event
	switch res.Status {
	case StatusConfirmed:
		event = o.Logger.Info()
	case StatusRejected:
		event = o.Logger.Info().Str("reason", string(res.Reason)).AnErr("cause", res.Err)
	default:
		event = o.Logger.Error().Err(res.Err)
	}
	event.
		Str("order_id", res.OrderID).
		Str("item", intent.ItemName).
		Int64("quantity", intent.Quantity).
		Str("status", string(res.Status)).
		Dur("elapsed", elapsed)
	if c := res.Confirmation; c != nil {
		event = event.Str("total", c.Total.StringFixed(2)).Bool("restocked", c.Restock != nil)
	}
	event.Msg("order processed")
}

func reject(orderID string, reason RejectReason, err error) *Result {
	return &Result{OrderID: orderID, Status: StatusRejected, Reason: reason, Err: err}
}

func fail(orderID string, err error) *Result {
	return &Result{OrderID: orderID, Status: StatusFailed, Err: err}
}

func derivedKey(key, suffix string) string {
	if key == "" {
		return ""
	}
	return key + ":" + suffix
}
