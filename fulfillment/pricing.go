/*
pricing.go - Quote estimation from quote history

PURPOSE:
  Turns (item, quantity) into a price using what the company quoted for
  similar requests before.

RULES:
  1. Search history for the item name (case-insensitive substring over the
     request text and the quote explanation), most recent first.
  2. No match: unit price = DefaultUnitPrice.
  3. Matches: unit price = mean of TotalAmount. History is loaded on a
     per-unit basis, so the mean is used as a unit price directly.
  4. Quantity >= BulkThreshold: unit price × (1 - BulkDiscountRate),
     applied after averaging.
  5. UnitPrice and Total = raw unit × quantity are rounded to cents once,
     at the end. Total is NOT UnitPrice × quantity.
*/
package fulfillment

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/warp/supply-engine/ledger"
)

// PricingPolicy holds the tunable pricing constants.
type PricingPolicy struct {
	DefaultUnitPrice decimal.Decimal
	BulkThreshold    int64
	BulkDiscountRate decimal.Decimal
	SearchLimit      int
}

// DefaultPricingPolicy returns the stock pricing rules: 1.00 fallback,
// 10% off from 100 units, five most recent quotes.
func DefaultPricingPolicy() PricingPolicy {
	return PricingPolicy{
		DefaultUnitPrice: decimal.NewFromInt(1),
		BulkThreshold:    100,
		BulkDiscountRate: decimal.NewFromFloat(0.1),
		SearchLimit:      5,
	}
}

// Quote is a price estimate for one item and quantity.
type Quote struct {
	ItemName     string
	Quantity     int64
	UnitPrice    decimal.Decimal
	Total        decimal.Decimal
	BulkDiscount bool
	Fallback     bool                 // no history matched
	History      []ledger.QuoteRecord // matched quotes, most recent first
}

// Estimator prices orders from quote history.
type Estimator struct {
	Quotes ledger.QuoteStore
	Policy PricingPolicy
}

func NewEstimator(quotes ledger.QuoteStore, policy PricingPolicy) *Estimator {
	return &Estimator{Quotes: quotes, Policy: policy}
}

// Estimate prices quantity units of itemName.
func (e *Estimator) Estimate(ctx context.Context, itemName string, quantity int64) (*Quote, error) {
	if itemName == "" {
		return nil, &ledger.ValidationError{Field: "item_name", Message: "is required"}
	}
	if quantity <= 0 {
		return nil, &ledger.ValidationError{Field: "quantity", Message: "must be positive"}
	}

	history, err := e.Quotes.SearchQuotes(ctx, []string{itemName}, e.Policy.SearchLimit)
	if err != nil {
		return nil, err
	}

	q := &Quote{ItemName: itemName, Quantity: quantity, History: history}

	unit := e.Policy.DefaultUnitPrice
	if len(history) == 0 {
		q.Fallback = true
	} else {
		unit = meanTotal(history)
	}

	if quantity >= e.Policy.BulkThreshold {
		unit = unit.Mul(decimal.NewFromInt(1).Sub(e.Policy.BulkDiscountRate))
		q.BulkDiscount = true
	}

	q.UnitPrice = unit.Round(2)
	q.Total = unit.Mul(decimal.NewFromInt(quantity)).Round(2)
	return q, nil
}

func meanTotal(quotes []ledger.QuoteRecord) decimal.Decimal {
	sum := decimal.Zero
	for _, q := range quotes {
		sum = sum.Add(q.TotalAmount)
	}
	return sum.Div(decimal.NewFromInt(int64(len(quotes))))
}
