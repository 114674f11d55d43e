package catalog

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/shopspring/decimal"
	"github.com/warp/supply-engine/ledger"
)

// Sample inventory ranges, upper bounds exclusive.
const (
	minSeedStock = 200
	maxSeedStock = 800
	minSeedLevel = 50
	maxSeedLevel = 150
)

// GenerateSampleInventory stocks exactly int(len(supplies) × coverage)
// distinct supplies, chosen and sized by a PRNG seeded with seed. The same
// seed always yields the same inventory.
func GenerateSampleInventory(supplies []Supply, coverage float64, seed int64) []ledger.InventoryItem {
	n := int(float64(len(supplies)) * coverage)
	if n > len(supplies) {
		n = len(supplies)
	}
	if n <= 0 {
		return nil
	}

	rng := rand.New(rand.NewSource(seed))
	picked := rng.Perm(len(supplies))[:n]

	items := make([]ledger.InventoryItem, 0, n)
	for _, i := range picked {
		s := supplies[i]
		items = append(items, ledger.InventoryItem{
			ItemName:      s.ItemName,
			Category:      s.Category,
			UnitPrice:     s.UnitPrice,
			CurrentStock:  minSeedStock + rng.Int63n(maxSeedStock-minSeedStock),
			MinStockLevel: minSeedLevel + rng.Int63n(maxSeedLevel-minSeedLevel),
		})
	}
	return items
}

// Seed is the initial state of a new ledger.
type Seed struct {
	Items        []ledger.InventoryItem
	Quotes       []ledger.QuoteRecord
	StartDate    ledger.Date
	StartingCash decimal.Decimal
}

// Seed idempotency keys. Their presence marks a ledger as seeded.
const (
	cashSeedKey   = "seed:cash"
	stockSeedKeyF = "seed:stock:%s"
)

// SeedTransactions returns the opening records: one itemless cash sale,
// then one stock_order per item with stock, priced at stock × unit price.
func SeedTransactions(seed Seed) []ledger.Transaction {
	txs := []ledger.Transaction{{
		Type:           ledger.TxSale,
		Price:          seed.StartingCash,
		Date:           seed.StartDate,
		IdempotencyKey: cashSeedKey,
	}}
	for _, item := range seed.Items {
		if item.CurrentStock <= 0 {
			continue
		}
		txs = append(txs, ledger.Transaction{
			ItemName:       item.ItemName,
			Type:           ledger.TxStockOrder,
			Units:          item.CurrentStock,
			Price:          item.UnitPrice.Mul(decimal.NewFromInt(item.CurrentStock)),
			Date:           seed.StartDate,
			IdempotencyKey: fmt.Sprintf(stockSeedKeyF, item.ItemName),
		})
	}
	return txs
}

// SeedLedger writes the reference tables and then the opening records. It
// returns false with a nil error when the ledger was already seeded.
//
// The opening records go last and mark the ledger as seeded, so a failure
// part way leaves the ledger unseeded and the next call finishes the job.
// Items are upserted on every call; quotes are only written into an empty
// quote table.
func SeedLedger(ctx context.Context, l ledger.Ledger, items ledger.CatalogStore, quotes ledger.QuoteStore, seed Seed) (bool, error) {
	if err := items.SaveItems(ctx, seed.Items); err != nil {
		return false, fmt.Errorf("seed catalog: %w", err)
	}
	if len(seed.Quotes) > 0 {
		n, err := quotes.CountQuotes(ctx)
		if err != nil {
			return false, fmt.Errorf("seed quotes: %w", err)
		}
		if n == 0 {
			if err := quotes.SaveQuotes(ctx, seed.Quotes); err != nil {
				return false, fmt.Errorf("seed quotes: %w", err)
			}
		}
	}

	_, err := l.AppendBatch(ctx, SeedTransactions(seed))
	if errors.Is(err, ledger.ErrDuplicateIdempotencyKey) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("seed transactions: %w", err)
	}
	return true, nil
}
