/*
scheduler.go - Automated replenishment scheduler

PURPOSE:
  Periodically restocks every catalog item whose projected stock has
  fallen below its minimum level, dated today.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs once immediately on start
  - Each run commits one batch under the ledger lock (see Replenisher)

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewReplenishmentScheduler(replenisher, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerReplenishment endpoint (manual run)
  - fulfillment/replenish.go: Replenisher
*/
package api

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/warp/supply-engine/fulfillment"
	"github.com/warp/supply-engine/ledger"
)

// ReplenishmentScheduler runs the replenisher on a ticker.
type ReplenishmentScheduler struct {
	Replenisher   *fulfillment.Replenisher
	CheckInterval time.Duration
	Enabled       bool
	Logger        zerolog.Logger
	Clock         func() ledger.Date

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
	runs   atomic.Int64
}

// NewReplenishmentScheduler creates a new scheduler.
func NewReplenishmentScheduler(replenisher *fulfillment.Replenisher, logger zerolog.Logger) *ReplenishmentScheduler {
	return &ReplenishmentScheduler{
		Replenisher:   replenisher,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		Logger:        logger.With().Str("component", "scheduler").Logger(),
		Clock:         ledger.Today,
	}
}

// Start begins the scheduler.
func (rs *ReplenishmentScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.Logger.Info().Msg("disabled, not starting")
		return
	}
	if rs.ticker != nil {
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.stop = make(chan struct{})
	rs.wg.Add(1)

	go rs.run(rs.ticker, rs.stop)

	rs.Logger.Info().Dur("interval", rs.CheckInterval).Msg("started")
}

// Stop stops the scheduler and waits for an in-flight run to finish.
func (rs *ReplenishmentScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		rs.ticker = nil
		rs.Logger.Info().Msg("stopped")
	}
}

func (rs *ReplenishmentScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer rs.wg.Done()

	// Run immediately on start
	rs.RunNow()

	for {
		select {
		case <-ticker.C:
			rs.RunNow()
		case <-stop:
			return
		}
	}
}

// RunNow triggers an immediate replenishment (for testing/admin).
func (rs *ReplenishmentScheduler) RunNow() {
	ctx, cancel := context.WithTimeout(context.Background(), rs.CheckInterval)
	defer cancel()

	report, err := rs.Replenisher.Run(ctx, rs.Clock())
	rs.runs.Add(1)

	if err != nil {
		rs.Logger.Error().Err(err).Msg("replenishment failed")
		return
	}
	if len(report.Orders) > 0 || len(report.Skipped) > 0 {
		rs.Logger.Info().
			Int("ordered", len(report.Orders)).
			Strs("skipped", report.Skipped).
			Str("cash_after", report.CashAfter.StringFixed(2)).
			Msg("replenishment complete")
	}
}

// Runs reports how many checks have completed.
func (rs *ReplenishmentScheduler) Runs() int64 {
	return rs.runs.Load()
}
