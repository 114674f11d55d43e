/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Domain types carry
  decimals and dates; DTOs carry fixed two-place money strings and
  YYYY-MM-DD dates so clients never see float rounding.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Request shape (date formats, sizes) is declared in validate tags and
  checked by decodeBody. Business rules stay in the orchestrator.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/supply-engine/fulfillment"
	"github.com/warp/supply-engine/ledger"
)

// =============================================================================
// ORDERS
// =============================================================================

// PlaceOrderRequest is a structured order intent.
type PlaceOrderRequest struct {
	ItemName       string `json:"item_name"`
	Quantity       int64  `json:"quantity"`
	Date           string `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"` // empty means today
	IdempotencyKey string `json:"idempotency_key,omitempty" validate:"max=128"`
}

// OrderResultDTO is the terminal state of an order.
type OrderResultDTO struct {
	OrderID      string           `json:"order_id"`
	Status       string           `json:"status"`
	Reason       string           `json:"reason,omitempty"`
	Error        string           `json:"error,omitempty"`
	Confirmation *ConfirmationDTO `json:"confirmation,omitempty"`
}

// ConfirmationDTO describes a confirmed sale.
type ConfirmationDTO struct {
	ItemName          string      `json:"item_name"`
	Quantity          int64       `json:"quantity"`
	UnitPrice         string      `json:"unit_price"`
	Total             string      `json:"total"`
	BulkDiscount      bool        `json:"bulk_discount"`
	Date              string      `json:"date"`
	DeliveryDate      string      `json:"delivery_date"`
	SaleTransactionID int64       `json:"sale_transaction_id"`
	Restock           *RestockDTO `json:"restock,omitempty"`
}

// RestockDTO is the supplier order placed to cover a shortfall.
type RestockDTO struct {
	TransactionID int64  `json:"transaction_id"`
	Units         int64  `json:"units"`
	Cost          string `json:"cost"`
	DeliveryDate  string `json:"delivery_date"`
}

// =============================================================================
// PROJECTIONS
// =============================================================================

// StockDTO is one item's projected stock.
type StockDTO struct {
	ItemName string `json:"item_name"`
	Stock    int64  `json:"stock"`
	AsOf     string `json:"as_of"`
}

// InventoryDTO lists every item with positive stock.
type InventoryDTO struct {
	AsOf  string     `json:"as_of"`
	Items []StockDTO `json:"items"`
}

// CashDTO is the projected cash balance.
type CashDTO struct {
	AsOf    string `json:"as_of"`
	Balance string `json:"balance"`
}

// FinancialReportDTO mirrors ledger.FinancialReport.
type FinancialReportDTO struct {
	AsOf             string             `json:"as_of"`
	CashBalance      string             `json:"cash_balance"`
	InventoryValue   string             `json:"inventory_value"`
	TotalAssets      string             `json:"total_assets"`
	InventorySummary []ItemValuationDTO `json:"inventory_summary"`
	TopSelling       []ProductSalesDTO  `json:"top_selling_products"`
}

type ItemValuationDTO struct {
	ItemName  string `json:"item_name"`
	Stock     int64  `json:"stock"`
	UnitPrice string `json:"unit_price"`
	Value     string `json:"value"`
}

type ProductSalesDTO struct {
	ItemName     string `json:"item_name"`
	TotalUnits   int64  `json:"total_units"`
	TotalRevenue string `json:"total_revenue"`
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

// CatalogItemDTO is a catalog entry. Stock fields are seed values only.
type CatalogItemDTO struct {
	ItemName      string `json:"item_name"`
	Category      string `json:"category"`
	UnitPrice     string `json:"unit_price"`
	SeedStock     int64  `json:"seed_stock"`
	MinStockLevel int64  `json:"min_stock_level"`
}

// QuoteDTO is a price estimate with the history it was built from.
type QuoteDTO struct {
	ItemName     string           `json:"item_name"`
	Quantity     int64            `json:"quantity"`
	UnitPrice    string           `json:"unit_price"`
	Total        string           `json:"total"`
	BulkDiscount bool             `json:"bulk_discount"`
	Fallback     bool             `json:"fallback"`
	History      []QuoteRecordDTO `json:"history"`
}

type QuoteRecordDTO struct {
	OriginalRequest  string `json:"original_request"`
	TotalAmount      string `json:"total_amount"`
	QuoteExplanation string `json:"quote_explanation,omitempty"`
	JobType          string `json:"job_type,omitempty"`
	OrderSize        string `json:"order_size,omitempty"`
	EventType        string `json:"event_type,omitempty"`
	OrderDate        string `json:"order_date"`
}

// DeliveryDTO is a delivery estimate.
type DeliveryDTO struct {
	OrderDate    string `json:"order_date"`
	Quantity     int64  `json:"quantity"`
	LeadTimeDays int    `json:"lead_time_days"`
	DeliveryDate string `json:"delivery_date"`
}

// TransactionDTO is a ledger record in the admin listing.
type TransactionDTO struct {
	ID             int64  `json:"id"`
	ItemName       string `json:"item_name,omitempty"`
	Type           string `json:"transaction_type"`
	Units          int64  `json:"units"`
	Price          string `json:"price"`
	Date           string `json:"transaction_date"`
	ReferenceID    string `json:"reference_id,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// =============================================================================
// REPLENISHMENT & SIMULATION
// =============================================================================

type ReplenishmentRequest struct {
	Date string `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

type ReplenishmentOrderDTO struct {
	ItemName      string `json:"item_name"`
	Units         int64  `json:"units"`
	Cost          string `json:"cost"`
	TransactionID int64  `json:"transaction_id"`
	DeliveryDate  string `json:"delivery_date"`
}

type ReplenishmentReportDTO struct {
	Date       string                  `json:"date"`
	Orders     []ReplenishmentOrderDTO `json:"orders"`
	Skipped    []string                `json:"skipped"`
	CashBefore string                  `json:"cash_before"`
	CashAfter  string                  `json:"cash_after"`
}

// SimulationRequest replays dated orders against a freshly seeded ledger.
// StartDate and StartingCash default to the server's seed settings.
type SimulationRequest struct {
	StartDate    string                   `json:"start_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	StartingCash string                   `json:"starting_cash,omitempty" validate:"omitempty,numeric"`
	Requests     []SimulationOrderRequest `json:"requests" validate:"max=10000,dive"`
}

type SimulationOrderRequest struct {
	ID       string `json:"id"`
	Date     string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	ItemName string `json:"item_name"`
	Quantity int64  `json:"quantity"`
}

type SimulationOutcomeDTO struct {
	RequestID      string         `json:"request_id"`
	Date           string         `json:"date"`
	Result         OrderResultDTO `json:"result"`
	CashBalance    string         `json:"cash_balance"`
	InventoryValue string         `json:"inventory_value"`
}

type SimulationResponse struct {
	Outcomes  []SimulationOutcomeDTO `json:"outcomes"`
	Confirmed int                    `json:"confirmed"`
	Rejected  int                    `json:"rejected"`
	Final     *FinancialReportDTO    `json:"final,omitempty"`
}

// ErrorResponse is the body of every non-2xx response except rejected
// orders, which return an OrderResultDTO.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"` // field path: failed rule
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func toOrderResultDTO(res *fulfillment.Result) OrderResultDTO {
	dto := OrderResultDTO{
		OrderID: res.OrderID,
		Status:  string(res.Status),
		Reason:  string(res.Reason),
	}
	if res.Err != nil {
		dto.Error = res.Err.Error()
	}
	if c := res.Confirmation; c != nil {
		dto.Confirmation = &ConfirmationDTO{
			ItemName:          c.ItemName,
			Quantity:          c.Quantity,
			UnitPrice:         money(c.UnitPrice),
			Total:             money(c.Total),
			BulkDiscount:      c.BulkDiscount,
			Date:              c.Date.String(),
			DeliveryDate:      c.DeliveryDate.String(),
			SaleTransactionID: int64(c.SaleTransactionID),
		}
		if r := c.Restock; r != nil {
			dto.Confirmation.Restock = &RestockDTO{
				TransactionID: int64(r.TransactionID),
				Units:         r.Units,
				Cost:          money(r.Cost),
				DeliveryDate:  r.DeliveryDate.String(),
			}
		}
	}
	return dto
}

func toInventoryDTO(asOf ledger.Date, stock map[string]int64) InventoryDTO {
	dto := InventoryDTO{AsOf: asOf.String(), Items: make([]StockDTO, 0, len(stock))}
	for name, units := range stock {
		dto.Items = append(dto.Items, StockDTO{ItemName: name, Stock: units, AsOf: asOf.String()})
	}
	sort.Slice(dto.Items, func(i, j int) bool { return dto.Items[i].ItemName < dto.Items[j].ItemName })
	return dto
}

func toFinancialReportDTO(r *ledger.FinancialReport) *FinancialReportDTO {
	dto := &FinancialReportDTO{
		AsOf:             r.AsOf.String(),
		CashBalance:      money(r.CashBalance),
		InventoryValue:   money(r.InventoryValue),
		TotalAssets:      money(r.TotalAssets),
		InventorySummary: make([]ItemValuationDTO, 0, len(r.InventorySummary)),
		TopSelling:       make([]ProductSalesDTO, 0, len(r.TopSelling)),
	}
	for _, v := range r.InventorySummary {
		dto.InventorySummary = append(dto.InventorySummary, ItemValuationDTO{
			ItemName:  v.ItemName,
			Stock:     v.Stock,
			UnitPrice: money(v.UnitPrice),
			Value:     money(v.Value),
		})
	}
	for _, s := range r.TopSelling {
		dto.TopSelling = append(dto.TopSelling, ProductSalesDTO{
			ItemName:     s.ItemName,
			TotalUnits:   s.TotalUnits,
			TotalRevenue: money(s.TotalRevenue),
		})
	}
	return dto
}

func toCatalogItemDTO(item ledger.InventoryItem) CatalogItemDTO {
	return CatalogItemDTO{
		ItemName:      item.ItemName,
		Category:      item.Category,
		UnitPrice:     money(item.UnitPrice),
		SeedStock:     item.CurrentStock,
		MinStockLevel: item.MinStockLevel,
	}
}

func toQuoteDTO(q *fulfillment.Quote) QuoteDTO {
	dto := QuoteDTO{
		ItemName:     q.ItemName,
		Quantity:     q.Quantity,
		UnitPrice:    money(q.UnitPrice),
		Total:        money(q.Total),
		BulkDiscount: q.BulkDiscount,
		Fallback:     q.Fallback,
		History:      make([]QuoteRecordDTO, 0, len(q.History)),
	}
	for _, r := range q.History {
		dto.History = append(dto.History, QuoteRecordDTO{
			OriginalRequest:  r.OriginalRequest,
			TotalAmount:      money(r.TotalAmount),
			QuoteExplanation: r.QuoteExplanation,
			JobType:          r.JobType,
			OrderSize:        r.OrderSize,
			EventType:        r.EventType,
			OrderDate:        r.OrderDate.String(),
		})
	}
	return dto
}

func toTransactionDTO(tx ledger.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:             int64(tx.ID),
		ItemName:       tx.ItemName,
		Type:           string(tx.Type),
		Units:          tx.Units,
		Price:          money(tx.Price),
		Date:           tx.Date.String(),
		ReferenceID:    tx.ReferenceID,
		IdempotencyKey: tx.IdempotencyKey,
	}
}

func toReplenishmentReportDTO(r *fulfillment.ReplenishmentReport) ReplenishmentReportDTO {
	dto := ReplenishmentReportDTO{
		Date:       r.Date.String(),
		Orders:     make([]ReplenishmentOrderDTO, 0, len(r.Orders)),
		Skipped:    r.Skipped,
		CashBefore: money(r.CashBefore),
		CashAfter:  money(r.CashAfter),
	}
	if dto.Skipped == nil {
		dto.Skipped = []string{}
	}
	for _, o := range r.Orders {
		dto.Orders = append(dto.Orders, ReplenishmentOrderDTO{
			ItemName:      o.ItemName,
			Units:         o.Units,
			Cost:          money(o.Cost),
			TransactionID: int64(o.TransactionID),
			DeliveryDate:  o.DeliveryDate.String(),
		})
	}
	return dto
}

func toSimulationResponse(s *fulfillment.Summary) SimulationResponse {
	resp := SimulationResponse{
		Outcomes:  make([]SimulationOutcomeDTO, 0, len(s.Outcomes)),
		Confirmed: s.Confirmed,
		Rejected:  s.Rejected,
	}
	for _, o := range s.Outcomes {
		resp.Outcomes = append(resp.Outcomes, SimulationOutcomeDTO{
			RequestID:      o.RequestID,
			Date:           o.Date.String(),
			Result:         toOrderResultDTO(o.Result),
			CashBalance:    money(o.CashBalance),
			InventoryValue: money(o.InventoryValue),
		})
	}
	if s.Final != nil {
		resp.Final = toFinancialReportDTO(s.Final)
	}
	return resp
}
