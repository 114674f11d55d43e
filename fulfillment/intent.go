package fulfillment

import (
	"context"

	"github.com/warp/supply-engine/ledger"
)

// Intent is a resolved customer request.
type Intent struct {
	ItemName string
	Quantity int64
	Date     ledger.Date // zero means today

	// IdempotencyKey makes a retried order safe to resubmit.
	IdempotencyKey string
}

// IntentResolver turns free text into an Intent. It returns nil, nil when
// the text does not name an item and quantity. Implementations live outside
// this module; fulfillment only consumes the result.
type IntentResolver interface {
	Resolve(ctx context.Context, text string) (*Intent, error)
}

// ResolverFunc adapts a function to IntentResolver.
type ResolverFunc func(ctx context.Context, text string) (*Intent, error)

func (f ResolverFunc) Resolve(ctx context.Context, text string) (*Intent, error) {
	return f(ctx, text)
}
