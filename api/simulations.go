/*
simulations.go - Batch replay of dated orders on a scratch ledger

PURPOSE:
  Runs a list of dated orders through a complete fulfillment pipeline
  without touching the live ledger, and reports cash and inventory after
  each order plus a final financial report.

HOW A SIMULATION WORKS:
 1. Create an in-memory store (ledger + catalog)
 2. Seed it from the live catalog's seed stock, start date and cash
 3. Build an orchestrator that prices from the live quote history
 4. Replay the requests in date order with fulfillment.Runner

USAGE VIA API:

	POST /api/simulations
	{"start_date": "2025-04-01", "requests": [
	  {"id": "r1", "date": "2025-04-02", "item_name": "A4 paper", "quantity": 200}
	]}

NOTE:

	The live ledger is append-only, so simulations never reset it. Each
	request gets its own scratch store that is discarded afterwards.

SEE ALSO:
  - fulfillment/runner.go: Replay loop
  - catalog/seed.go: Opening records
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/warp/supply-engine/catalog"
	"github.com/warp/supply-engine/fulfillment"
	"github.com/warp/supply-engine/ledger"
	"github.com/warp/supply-engine/ledger/store"
	"github.com/warp/supply-engine/lock"
)

// RunSimulation handles POST /api/simulations
func (h *Handler) RunSimulation(w http.ResponseWriter, r *http.Request) {
	var req SimulationRequest
	if !decodeBody(w, r, &req) {
		return
	}

	seed, requests, err := h.simulationInput(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid simulation", err)
		return
	}

	summary, err := h.simulate(r.Context(), seed, requests)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSimulationResponse(summary))
}

func (h *Handler) simulationInput(req SimulationRequest) (catalog.Seed, []fulfillment.Request, error) {
	seed := catalog.Seed{StartDate: h.StartDate, StartingCash: h.StartingCash}
	if req.StartDate != "" {
		d, err := ledger.ParseDate(req.StartDate)
		if err != nil {
			return seed, nil, err
		}
		seed.StartDate = d
	}
	if req.StartingCash != "" {
		cash, err := decimal.NewFromString(req.StartingCash)
		if err != nil || cash.IsNegative() {
			return seed, nil, &ledger.ValidationError{Field: "starting_cash", Message: "must be a non-negative decimal"}
		}
		seed.StartingCash = cash
	}

	requests := make([]fulfillment.Request, 0, len(req.Requests))
	for i, o := range req.Requests {
		id := o.ID
		if id == "" {
			id = fmt.Sprintf("request-%d", i+1)
		}
		in := fulfillment.Request{
			ID:     id,
			Intent: &fulfillment.Intent{ItemName: o.ItemName, Quantity: o.Quantity},
		}
		if o.Date != "" {
			d, err := ledger.ParseDate(o.Date)
			if err != nil {
				return seed, nil, fmt.Errorf("request %s: %w", id, err)
			}
			if d.Before(seed.StartDate) {
				return seed, nil, &ledger.ValidationError{Field: "requests[" + id + "].date", Message: "is before the start date"}
			}
			in.Date = d
		}
		requests = append(requests, in)
	}
	return seed, requests, nil
}

func (h *Handler) simulate(ctx context.Context, seed catalog.Seed, requests []fulfillment.Request) (*fulfillment.Summary, error) {
	items, err := h.Orders.Catalog.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	seed.Items = items

	scratch := store.NewMemory()
	l := ledger.NewLedger(scratch)
	if _, err := catalog.SeedLedger(ctx, l, scratch, scratch, seed); err != nil {
		return nil, err
	}

	logger := h.Logger.With().Bool("simulation", true).Logger()
	orders := fulfillment.NewOrchestrator(
		l,
		scratch,
		fulfillment.NewEstimator(h.Quotes, h.Orders.Pricing.Policy),
		lock.NewLocal(),
		h.Orders.Policy,
		logger,
	)
	orders.Clock = func() ledger.Date { return seed.StartDate }

	return fulfillment.NewRunner(orders, nil, logger).Run(ctx, requests)
}
