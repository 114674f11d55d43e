package fulfillment_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/supply-engine/fulfillment"
	"github.com/warp/supply-engine/ledger"
	"github.com/warp/supply-engine/lock"
)

// =============================================================================
// REPLENISHER
// =============================================================================

func TestReplenisher_TopsUpBelowMinimum(t *testing.T) {
	// GIVEN: A4 paper sold down to 200 (min 300) and Poster paper at 0 (min 100)
	ctx := context.Background()
	f := newFixture(t, "140.00", fulfillment.OrderPolicy{})
	require.NoError(t, f.mem.SaveItems(ctx, []ledger.InventoryItem{
		{ItemName: "A4 paper", Category: "paper", UnitPrice: money("0.05"), MinStockLevel: 300},
		{ItemName: "Poster paper", Category: "large_format", UnitPrice: money("1.00"), MinStockLevel: 100},
	}))
	_, err := f.ledger.Append(ctx, ledger.Transaction{
		ItemName: "A4 paper", Type: ledger.TxSale, Units: 300, Price: money("10.00"), Date: day(2),
	})
	require.NoError(t, err)
	// cash: 140 - 40 + 10 = 110

	r := fulfillment.NewReplenisher(f.ledger, f.mem, lock.NewLocal(), zerolog.Nop())

	// WHEN: Replenishing on April 3
	report, err := r.Run(ctx, day(3))
	require.NoError(t, err)

	// THEN: A4 paper is topped up to twice its minimum, Poster paper is unaffordable
	require.Len(t, report.Orders, 1)
	order := report.Orders[0]
	assert.Equal(t, "A4 paper", order.ItemName)
	assert.Equal(t, int64(400), order.Units)
	assert.Equal(t, "20.00", order.Cost.StringFixed(2))
	assert.NotZero(t, order.TransactionID)
	assert.Equal(t, []string{"Poster paper"}, report.Skipped)
	assert.Equal(t, "110.00", report.CashBefore.StringFixed(2))
	assert.Equal(t, "90.00", report.CashAfter.StringFixed(2))

	assert.Equal(t, int64(600), f.stock(t, "A4 paper"))
	assert.Equal(t, int64(100), f.stock(t, "Cardstock"), "at or above minimum is left alone")

	// Running again is a no-op for A4 paper
	again, err := r.Run(ctx, day(3))
	require.NoError(t, err)
	assert.Empty(t, again.Orders)
}

// expiredLocker hands out locks whose release reports an expired TTL.
type expiredLocker struct{}

type expiredLock struct{}

func (expiredLocker) Obtain(context.Context, string) (lock.Lock, error) { return expiredLock{}, nil }

func (expiredLock) Release(context.Context) error { return errors.New("lock expired") }

func TestReplenisher_LogsFailedRelease(t *testing.T) {
	// GIVEN: A lock that has expired by the time the run finishes
	var buf bytes.Buffer
	f := newFixture(t, "50000", fulfillment.OrderPolicy{})
	r := fulfillment.NewReplenisher(f.ledger, f.mem, expiredLocker{}, zerolog.New(&buf))

	// WHEN: Replenishing
	_, err := r.Run(context.Background(), day(3))

	// THEN: The run succeeds and the release failure is logged as a warning
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), "release ledger lock")
	assert.Contains(t, buf.String(), "lock expired")
}

func TestReplenisher_BudgetSeesLaterSpending(t *testing.T) {
	// GIVEN: 110.00 cash on April 3 but only 15.00 left after an April 10 purchase
	ctx := context.Background()
	f := newFixture(t, "150.00", fulfillment.OrderPolicy{})
	require.NoError(t, f.mem.SaveItems(ctx, []ledger.InventoryItem{
		{ItemName: "Poster paper", Category: "large_format", UnitPrice: money("1.00"), MinStockLevel: 10},
	}))
	_, err := f.ledger.Append(ctx, ledger.Transaction{
		ItemName: "A4 paper", Type: ledger.TxStockOrder, Units: 1900, Price: money("95.00"), Date: day(10),
	})
	require.NoError(t, err)
	r := fulfillment.NewReplenisher(f.ledger, f.mem, lock.NewLocal(), zerolog.Nop())

	// WHEN: Replenishing on April 3
	report, err := r.Run(ctx, day(3))

	// THEN: Poster paper (20.00) is skipped so April 10 cash stays non-negative
	require.NoError(t, err)
	assert.Empty(t, report.Orders)
	assert.Equal(t, []string{"Poster paper"}, report.Skipped)
	assert.Equal(t, "110.00", report.CashBefore.StringFixed(2))
}

// =============================================================================
// RUNNER
// =============================================================================

// keywordResolver is a stand-in for an external intent resolver.
func keywordResolver() fulfillment.IntentResolver {
	return fulfillment.ResolverFunc(func(_ context.Context, text string) (*fulfillment.Intent, error) {
		switch {
		case strings.Contains(text, "cardstock"):
			return &fulfillment.Intent{ItemName: "Cardstock", Quantity: 20}, nil
		case strings.Contains(text, "A4"):
			return &fulfillment.Intent{ItemName: "A4 paper", Quantity: 100}, nil
		}
		return nil, nil
	})
}

func TestRunner_ReplaysInDateOrder(t *testing.T) {
	// GIVEN: Requests submitted out of date order, one unresolvable
	f := newFixture(t, "50000", fulfillment.OrderPolicy{})
	runner := fulfillment.NewRunner(f.orch, keywordResolver(), zerolog.Nop())

	requests := []fulfillment.Request{
		{ID: "r3", Date: day(5), Text: "need A4 sheets"},
		{ID: "r1", Date: day(2), Text: "some cardstock please"},
		{ID: "r2", Date: day(3), Text: "balloons for a party"},
		{ID: "r4", Date: day(6), Intent: &fulfillment.Intent{ItemName: "Cardstock", Quantity: 500}},
	}

	// WHEN: Running the batch
	summary, err := runner.Run(context.Background(), requests)
	require.NoError(t, err)

	// THEN: Outcomes follow request dates
	require.Len(t, summary.Outcomes, 4)
	ids := []string{}
	for _, o := range summary.Outcomes {
		ids = append(ids, o.RequestID)
	}
	assert.Equal(t, []string{"r1", "r2", "r3", "r4"}, ids)

	assert.Equal(t, 2, summary.Confirmed)
	assert.Equal(t, 2, summary.Rejected)
	assert.Equal(t, fulfillment.ReasonUnresolved, summary.Outcomes[1].Result.Reason)
	assert.Equal(t, fulfillment.ReasonOutOfStock, summary.Outcomes[3].Result.Reason)

	// Cardstock 20 × 1.00 on April 2
	assert.Equal(t, "49980.00", summary.Outcomes[0].CashBalance.StringFixed(2))
	assert.Equal(t, day(2), summary.Outcomes[0].Result.Confirmation.Date)

	// Final report is taken on the last request date
	require.NotNil(t, summary.Final)
	assert.Equal(t, day(6), summary.Final.AsOf)
	assert.True(t, summary.Final.CashBalance.Equal(summary.Outcomes[3].CashBalance))
}

func TestRunner_UndatedRequestsSortByClock(t *testing.T) {
	// GIVEN: Today is April 8, an undated order listed before an April 5 order
	f := newFixture(t, "50000", fulfillment.OrderPolicy{})
	f.orch.Clock = func() ledger.Date { return day(8) }
	runner := fulfillment.NewRunner(f.orch, nil, zerolog.Nop())

	requests := []fulfillment.Request{
		{ID: "today", Intent: &fulfillment.Intent{ItemName: "Cardstock", Quantity: 100}},
		{ID: "fifth", Date: day(5), Intent: &fulfillment.Intent{ItemName: "Cardstock", Quantity: 60}},
	}

	// WHEN: Running the batch
	summary, err := runner.Run(context.Background(), requests)
	require.NoError(t, err)

	// THEN: The April 5 order runs first and the undated one sees what it left
	require.Len(t, summary.Outcomes, 2)
	assert.Equal(t, "fifth", summary.Outcomes[0].RequestID)
	assert.True(t, summary.Outcomes[0].Result.Confirmed())
	assert.Equal(t, "today", summary.Outcomes[1].RequestID)
	assert.Equal(t, day(8), summary.Outcomes[1].Date)
	assert.Equal(t, fulfillment.ReasonOutOfStock, summary.Outcomes[1].Result.Reason)

	// And the ledger still folds on every day
	require.NotNil(t, summary.Final)
	assert.Equal(t, day(8), summary.Final.AsOf)
	assert.Equal(t, int64(40), f.stock(t, "Cardstock"))
}
