package fulfillment

import "github.com/warp/supply-engine/ledger"

// LeadTimeDays maps an order size to supplier lead time:
//
//	<= 10      same day
//	11-100     1 day
//	101-1000   4 days
//	> 1000     7 days
func LeadTimeDays(quantity int64) int {
	switch {
	case quantity <= 10:
		return 0
	case quantity <= 100:
		return 1
	case quantity <= 1000:
		return 4
	default:
		return 7
	}
}

// EstimateDelivery returns the delivery date for an order placed on base.
func EstimateDelivery(base ledger.Date, quantity int64) ledger.Date {
	return base.AddDays(LeadTimeDays(quantity))
}

// EstimateDeliveryFrom parses base and estimates delivery. An unparseable
// date is an InvalidDateError; it never falls back to today.
func EstimateDeliveryFrom(base string, quantity int64) (ledger.Date, error) {
	d, err := ledger.ParseDate(base)
	if err != nil {
		return ledger.Date{}, err
	}
	return EstimateDelivery(d, quantity), nil
}
