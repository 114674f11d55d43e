package fulfillment

import (
	"context"
	"sort"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/warp/supply-engine/ledger"
)

// =============================================================================
// RUNNER - Replays a batch of dated requests through the orchestrator
// =============================================================================

// Request is one entry of a batch. Either Intent is set, or Text is resolved
// through the runner's IntentResolver.
type Request struct {
	ID     string
	Date   ledger.Date
	Text   string
	Intent *Intent
}

func (req Request) date() ledger.Date {
	if req.Date.IsZero() && req.Intent != nil {
		return req.Intent.Date
	}
	return req.Date
}

// Outcome is a request's result plus the company state right after it.
type Outcome struct {
	RequestID      string
	Date           ledger.Date
	Result         *Result
	CashBalance    decimal.Decimal
	InventoryValue decimal.Decimal
}

// Summary is the result of a batch run.
type Summary struct {
	Outcomes  []Outcome
	Confirmed int
	Rejected  int
	Final     *ledger.FinancialReport
}

type Runner struct {
	Orchestrator *Orchestrator
	Resolver     IntentResolver // optional
	Logger       zerolog.Logger
}

func NewRunner(o *Orchestrator, resolver IntentResolver, logger zerolog.Logger) *Runner {
	return &Runner{
		Orchestrator: o,
		Resolver:     resolver,
		Logger:       logger.With().Str("component", "runner").Logger(),
	}
}

type datedRequest struct {
	Request
	on ledger.Date
}

// Run processes requests in date order (input order within a day). Undated
// requests take the orchestrator's clock date and sort by it. It stops at the
// first failure and returns the outcomes gathered so far with it.
func (r *Runner) Run(ctx context.Context, requests []Request) (*Summary, error) {
	today := r.Orchestrator.Clock()
	ordered := make([]datedRequest, len(requests))
	for i, req := range requests {
		ordered[i] = datedRequest{Request: req, on: req.date()}
		if ordered[i].on.IsZero() {
			ordered[i].on = today
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].on.Before(ordered[j].on)
	})

	projector := r.Orchestrator.Projector
	summary := &Summary{}
	last := today

	for _, req := range ordered {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		date := req.on
		last = date

		res, err := r.handle(ctx, req.Request, date)
		if err != nil {
			return summary, err
		}
		switch res.Status {
		case StatusConfirmed:
			summary.Confirmed++
		case StatusRejected:
			summary.Rejected++
		}

		cash, err := projector.CashBalanceAsOf(ctx, date)
		if err != nil {
			return summary, err
		}
		inventory, err := projector.InventoryValueAsOf(ctx, date)
		if err != nil {
			return summary, err
		}
		summary.Outcomes = append(summary.Outcomes, Outcome{
			RequestID:      req.ID,
			Date:           date,
			Result:         res,
			CashBalance:    cash,
			InventoryValue: inventory,
		})
	}

	final, err := projector.FinancialReport(ctx, last)
	if err != nil {
		return summary, err
	}
	summary.Final = final

	r.Logger.Info().
		Int("requests", len(ordered)).
		Int("confirmed", summary.Confirmed).
		Int("rejected", summary.Rejected).
		Str("final_cash", final.CashBalance.StringFixed(2)).
		Msg("batch complete")

	return summary, nil
}

func (r *Runner) handle(ctx context.Context, req Request, date ledger.Date) (*Result, error) {
	intent := req.Intent
	if intent == nil && r.Resolver != nil && req.Text != "" {
		resolved, err := r.Resolver.Resolve(ctx, req.Text)
		if err != nil {
			return nil, err
		}
		intent = resolved
	}
	if intent == nil {
		r.Logger.Info().Str("request_id", req.ID).Msg("request not resolved to an item")
		return &Result{Status: StatusRejected, Reason: ReasonUnresolved}, nil
	}

	in := *intent
	in.Date = date
	return r.Orchestrator.Process(ctx, in)
}
