/*
handlers_test.go - HTTP tests for API handlers

Tests for:
- Order placement and the status code of every terminal state
- Point-in-time projections and as_of parsing
- Catalog, quote and delivery lookups
- Transaction listing, replenishment and simulations
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/supply-engine/catalog"
	"github.com/warp/supply-engine/fulfillment"
	"github.com/warp/supply-engine/ledger"
	"github.com/warp/supply-engine/lock"
	"github.com/warp/supply-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func day(d int) ledger.Date {
	return ledger.NewDate(2025, time.April, d)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type testServer struct {
	store   *sqlite.Store
	handler *Handler
	router  http.Handler
}

// setupTestServer seeds a SQLite ledger on April 1 and pins "today" to
// April 2:
//
//	cash seed          +50000.00
//	A4 paper   500 u   -25.00   (unit 0.05, min 100, quotes average 0.07)
//	Cardstock  100 u   -15.00   (unit 0.15, min 50, no quotes)
func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	l := ledger.NewLedger(store)
	seeded, err := catalog.SeedLedger(ctx, l, store, store, catalog.Seed{
		Items: []ledger.InventoryItem{
			{ItemName: "A4 paper", Category: "paper", UnitPrice: dec("0.05"), CurrentStock: 500, MinStockLevel: 100},
			{ItemName: "Cardstock", Category: "paper", UnitPrice: dec("0.15"), CurrentStock: 100, MinStockLevel: 50},
		},
		Quotes: []ledger.QuoteRecord{
			{OriginalRequest: "A4 paper for a seminar", TotalAmount: dec("0.06"), OrderDate: day(1)},
			{OriginalRequest: "Flyers", QuoteExplanation: "printed on A4 paper", TotalAmount: dec("0.08"), OrderDate: day(1)},
		},
		StartDate:    day(1),
		StartingCash: decimal.NewFromInt(50000),
	})
	require.NoError(t, err)
	require.True(t, seeded)

	locker := lock.NewLocal()
	pricing := fulfillment.NewEstimator(store, fulfillment.DefaultPricingPolicy())
	orders := fulfillment.NewOrchestrator(l, store, pricing, locker, fulfillment.OrderPolicy{}, zerolog.Nop())
	orders.Clock = func() ledger.Date { return day(2) }
	replenisher := fulfillment.NewReplenisher(l, store, locker, zerolog.Nop())

	h := NewHandler(orders, replenisher, store, store, zerolog.Nop())
	h.Clock = func() ledger.Date { return day(2) }
	h.StartDate = day(1)

	return &testServer{store: store, handler: h, router: NewRouter(h)}
}

func (s *testServer) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) cash(t *testing.T, asOf string) string {
	t.Helper()
	rec := s.do(t, http.MethodGet, "/api/cash?as_of="+asOf, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	return decode[CashDTO](t, rec).Balance
}

// =============================================================================
// ORDERS
// =============================================================================

func TestPlaceOrder_Confirmed(t *testing.T) {
	// GIVEN: 500 A4 paper in stock and quote history averaging 0.07
	s := setupTestServer(t)

	// WHEN: Ordering 200 units on April 2
	rec := s.do(t, http.MethodPost, "/api/orders", PlaceOrderRequest{ItemName: "A4 paper", Quantity: 200, Date: "2025-04-02"})

	// THEN: 201 with the bulk-discounted total and a 4-day delivery
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[OrderResultDTO](t, rec)
	assert.Equal(t, "confirmed", res.Status)
	assert.NotEmpty(t, res.OrderID)
	require.NotNil(t, res.Confirmation)
	assert.Equal(t, "0.06", res.Confirmation.UnitPrice)
	assert.Equal(t, "12.60", res.Confirmation.Total)
	assert.True(t, res.Confirmation.BulkDiscount)
	assert.Equal(t, "2025-04-06", res.Confirmation.DeliveryDate)
	assert.NotZero(t, res.Confirmation.SaleTransactionID)
	assert.Nil(t, res.Confirmation.Restock)

	// AND: Cash moved on April 2 only
	assert.Equal(t, "49960.00", s.cash(t, "2025-04-01"))
	assert.Equal(t, "49972.60", s.cash(t, "2025-04-02"))
}

func TestPlaceOrder_DefaultsToToday(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/orders", PlaceOrderRequest{ItemName: "Cardstock", Quantity: 10})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[OrderResultDTO](t, rec)
	assert.Equal(t, "2025-04-02", res.Confirmation.Date)
	assert.Equal(t, "10.00", res.Confirmation.Total, "no quote history: default unit price")
}

func TestPlaceOrder_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		req    PlaceOrderRequest
		status int
		reason string
	}{
		{"zero quantity", PlaceOrderRequest{ItemName: "A4 paper", Quantity: 0}, http.StatusBadRequest, "validation"},
		{"missing item", PlaceOrderRequest{Quantity: 5}, http.StatusBadRequest, "validation"},
		{"unknown item", PlaceOrderRequest{ItemName: "Glitter", Quantity: 5}, http.StatusNotFound, "not_found"},
		{"out of stock", PlaceOrderRequest{ItemName: "Cardstock", Quantity: 150}, http.StatusUnprocessableEntity, "out_of_stock"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := setupTestServer(t)

			rec := s.do(t, http.MethodPost, "/api/orders", tt.req)

			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			res := decode[OrderResultDTO](t, rec)
			assert.Equal(t, "rejected", res.Status)
			assert.Equal(t, tt.reason, res.Reason)
			assert.NotEmpty(t, res.Error)
			assert.Nil(t, res.Confirmation)

			// Nothing was appended
			assert.Equal(t, "49960.00", s.cash(t, "2025-04-30"))
		})
	}
}

func TestPlaceOrder_BackdatedOrderCannotOversell(t *testing.T) {
	// GIVEN: All 100 Cardstock sold on April 10
	s := setupTestServer(t)
	later := PlaceOrderRequest{ItemName: "Cardstock", Quantity: 100, Date: "2025-04-10"}
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/orders", later).Code)

	// WHEN: Ordering the same 100 dated April 5
	rec := s.do(t, http.MethodPost, "/api/orders", PlaceOrderRequest{ItemName: "Cardstock", Quantity: 100, Date: "2025-04-05"})

	// THEN: It is out of stock and the April 10 report still folds
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	assert.Equal(t, "out_of_stock", decode[OrderResultDTO](t, rec).Reason)
	report := s.do(t, http.MethodGet, "/api/reports/financial?as_of=2025-04-10", nil)
	assert.Equal(t, http.StatusOK, report.Code, report.Body.String())
}

func TestPlaceOrder_DuplicateKey(t *testing.T) {
	// GIVEN: A confirmed order with an idempotency key
	s := setupTestServer(t)
	req := PlaceOrderRequest{ItemName: "A4 paper", Quantity: 10, IdempotencyKey: "order-42"}
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/orders", req).Code)

	// WHEN: The client retries
	rec := s.do(t, http.MethodPost, "/api/orders", req)

	// THEN: 409 and the sale is recorded once
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "duplicate", decode[OrderResultDTO](t, rec).Reason)
	assert.Equal(t, "49960.70", s.cash(t, "2025-04-02"))
}

func TestPlaceOrder_BadInput(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/orders", PlaceOrderRequest{ItemName: "A4 paper", Quantity: 1, Date: "April 2"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "invalid request", resp.Error)
	assert.Equal(t, map[string]string{"date": "datetime"}, resp.Fields)

	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewBufferString("{"))
	raw := httptest.NewRecorder()
	s.router.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)
}

// =============================================================================
// PROJECTIONS
// =============================================================================

func TestGetInventory(t *testing.T) {
	// GIVEN: 450 of 500 A4 paper sold on April 2
	s := setupTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/orders", PlaceOrderRequest{ItemName: "A4 paper", Quantity: 450}).Code)

	// WHEN: Reading stock before and after the sale
	before := decode[InventoryDTO](t, s.do(t, http.MethodGet, "/api/inventory?as_of=2025-04-01", nil))
	after := decode[InventoryDTO](t, s.do(t, http.MethodGet, "/api/inventory", nil))

	// THEN: Each snapshot only sees records up to its date
	assert.Equal(t, []StockDTO{
		{ItemName: "A4 paper", Stock: 500, AsOf: "2025-04-01"},
		{ItemName: "Cardstock", Stock: 100, AsOf: "2025-04-01"},
	}, before.Items)
	assert.Equal(t, "2025-04-02", after.AsOf)
	assert.Equal(t, int64(50), after.Items[0].Stock)
}

func TestGetItemStock(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/inventory/A4%20paper?as_of=2025-04-01", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StockDTO{ItemName: "A4 paper", Stock: 500, AsOf: "2025-04-01"}, decode[StockDTO](t, rec))

	// Before the seed date nothing exists yet
	rec = s.do(t, http.MethodGet, "/api/inventory/A4%20paper?as_of=2025-03-31", nil)
	assert.Zero(t, decode[StockDTO](t, rec).Stock)

	// Unknown items have no stock rather than an error
	rec = s.do(t, http.MethodGet, "/api/inventory/Glitter", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, decode[StockDTO](t, rec).Stock)
}

func TestGetCash_InvalidDate(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/cash?as_of=04/01/2025", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid as_of date", decode[ErrorResponse](t, rec).Error)
}

func TestGetFinancialReport(t *testing.T) {
	// GIVEN: One A4 paper sale and one Cardstock sale on April 2
	s := setupTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/orders", PlaceOrderRequest{ItemName: "A4 paper", Quantity: 200}).Code)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/orders", PlaceOrderRequest{ItemName: "Cardstock", Quantity: 20}).Code)

	// WHEN: Reporting as of April 2
	rec := s.do(t, http.MethodGet, "/api/reports/financial?as_of=2025-04-02", nil)

	// THEN: Cash, valuation and top sellers agree
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[FinancialReportDTO](t, rec)
	assert.Equal(t, "2025-04-02", report.AsOf)
	assert.Equal(t, "49992.60", report.CashBalance) // 49960 + 12.60 + 20.00
	assert.Equal(t, "27.00", report.InventoryValue)  // 300 × 0.05 + 80 × 0.15
	assert.Equal(t, "50019.60", report.TotalAssets)
	require.Len(t, report.InventorySummary, 2)
	assert.Equal(t, ItemValuationDTO{ItemName: "A4 paper", Stock: 300, UnitPrice: "0.05", Value: "15.00"}, report.InventorySummary[0])
	assert.Equal(t, []ProductSalesDTO{
		{ItemName: "Cardstock", TotalUnits: 20, TotalRevenue: "20.00"},
		{ItemName: "A4 paper", TotalUnits: 200, TotalRevenue: "12.60"},
	}, report.TopSelling)

	// AND: The seed date report has no sales
	seed := decode[FinancialReportDTO](t, s.do(t, http.MethodGet, "/api/reports/financial?as_of=2025-04-01", nil))
	assert.Equal(t, "50000.00", seed.TotalAssets)
	assert.Empty(t, seed.TopSelling)
}

func TestGetFinancialReport_DataIntegrity(t *testing.T) {
	// GIVEN: A sale appended directly that drives Cardstock negative
	s := setupTestServer(t)
	_, err := s.store.Append(context.Background(), ledger.Transaction{
		ItemName: "Cardstock", Type: ledger.TxSale, Units: 150, Price: dec("15.00"), Date: day(2),
	})
	require.NoError(t, err)

	// WHEN: Projecting the corrupted date
	rec := s.do(t, http.MethodGet, "/api/reports/financial?as_of=2025-04-02", nil)

	// THEN: 500, never a negative valuation
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", decode[ErrorResponse](t, rec).Error)
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

func TestCatalog(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/catalog", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode[[]CatalogItemDTO](t, rec)
	require.Len(t, items, 2)
	assert.Equal(t, "A4 paper", items[0].ItemName)

	rec = s.do(t, http.MethodGet, "/api/catalog/Cardstock", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, CatalogItemDTO{ItemName: "Cardstock", Category: "paper", UnitPrice: "0.15", SeedStock: 100, MinStockLevel: 50}, decode[CatalogItemDTO](t, rec))

	rec = s.do(t, http.MethodGet, "/api/catalog/Glitter", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Error, "Glitter")
}

func TestGetQuote(t *testing.T) {
	s := setupTestServer(t)

	tests := []struct {
		quantity  string
		unitPrice string
		total     string
		bulk      bool
	}{
		{"99", "0.07", "6.93", false},
		{"100", "0.06", "6.30", true},
	}
	for _, tt := range tests {
		t.Run(tt.quantity, func(t *testing.T) {
			rec := s.do(t, http.MethodGet, "/api/quotes?item=A4%20paper&quantity="+tt.quantity, nil)

			require.Equal(t, http.StatusOK, rec.Code)
			q := decode[QuoteDTO](t, rec)
			assert.Equal(t, tt.unitPrice, q.UnitPrice)
			assert.Equal(t, tt.total, q.Total)
			assert.Equal(t, tt.bulk, q.BulkDiscount)
			assert.False(t, q.Fallback)
			assert.Len(t, q.History, 2)
		})
	}

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/quotes?item=A4%20paper&quantity=lots", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/quotes?quantity=5", nil).Code)
}

func TestGetDelivery(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/delivery?date=2025-04-01&quantity=50", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, DeliveryDTO{OrderDate: "2025-04-01", Quantity: 50, LeadTimeDays: 1, DeliveryDate: "2025-04-02"}, decode[DeliveryDTO](t, rec))

	rec = s.do(t, http.MethodGet, "/api/delivery?quantity=5000", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2025-04-09", decode[DeliveryDTO](t, rec).DeliveryDate)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/delivery?date=tomorrow&quantity=5", nil).Code)
}

// =============================================================================
// ADMIN
// =============================================================================

func TestListTransactions(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/transactions?limit=2", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	txs := decode[[]TransactionDTO](t, rec)
	require.Len(t, txs, 2)
	assert.Equal(t, "Cardstock", txs[0].ItemName, "newest first")
	assert.Equal(t, "stock_order", txs[0].Type)
	assert.Equal(t, "15.00", txs[0].Price)
	assert.Equal(t, "seed:stock:Cardstock", txs[0].IdempotencyKey)

	all := decode[[]TransactionDTO](t, s.do(t, http.MethodGet, "/api/transactions", nil))
	assert.Len(t, all, 3)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/transactions?limit=0", nil).Code)
}

func TestListTransactions_NotSupported(t *testing.T) {
	s := setupTestServer(t)
	s.handler.Recent = nil

	assert.Equal(t, http.StatusNotImplemented, s.do(t, http.MethodGet, "/api/transactions", nil).Code)
}

func TestTriggerReplenishment(t *testing.T) {
	// GIVEN: A4 paper sold down to 50 (min 100)
	s := setupTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/orders", PlaceOrderRequest{ItemName: "A4 paper", Quantity: 450}).Code)

	// WHEN: Replenishing on April 2
	rec := s.do(t, http.MethodPost, "/api/replenishment", ReplenishmentRequest{Date: "2025-04-02"})

	// THEN: A4 paper is topped up to twice its minimum
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decode[ReplenishmentReportDTO](t, rec)
	require.Len(t, report.Orders, 1)
	assert.Equal(t, "A4 paper", report.Orders[0].ItemName)
	assert.Equal(t, int64(150), report.Orders[0].Units)
	assert.Equal(t, "7.50", report.Orders[0].Cost)
	assert.Empty(t, report.Skipped)

	stock := decode[StockDTO](t, s.do(t, http.MethodGet, "/api/inventory/A4%20paper", nil))
	assert.Equal(t, int64(200), stock.Stock)
}

func TestHealth(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/health", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])
	assert.NotEmpty(t, rec.Header().Get("Content-Type"))
}

// =============================================================================
// SIMULATIONS
// =============================================================================

func TestRunSimulation(t *testing.T) {
	// GIVEN: Three dated orders submitted out of order against 1000 cash
	s := setupTestServer(t)
	req := SimulationRequest{
		StartDate:    "2025-04-01",
		StartingCash: "1000",
		Requests: []SimulationOrderRequest{
			{ID: "r2", Date: "2025-04-03", ItemName: "Cardstock", Quantity: 20},
			{ID: "r1", Date: "2025-04-02", ItemName: "A4 paper", Quantity: 200},
			{ID: "r3", Date: "2025-04-04", ItemName: "A4 paper", Quantity: 1000},
		},
	}

	// WHEN: Simulating
	rec := s.do(t, http.MethodPost, "/api/simulations", req)

	// THEN: Orders replay in date order on a fresh ledger
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[SimulationResponse](t, rec)
	require.Len(t, resp.Outcomes, 3)
	assert.Equal(t, "r1", resp.Outcomes[0].RequestID)
	assert.Equal(t, "972.60", resp.Outcomes[0].CashBalance)
	assert.Equal(t, "r2", resp.Outcomes[1].RequestID)
	assert.Equal(t, "992.60", resp.Outcomes[1].CashBalance)
	assert.Equal(t, "out_of_stock", resp.Outcomes[2].Result.Reason)
	assert.Equal(t, 2, resp.Confirmed)
	assert.Equal(t, 1, resp.Rejected)

	require.NotNil(t, resp.Final)
	assert.Equal(t, "2025-04-04", resp.Final.AsOf)
	assert.Equal(t, "27.00", resp.Final.InventoryValue)

	// AND: The live ledger is untouched
	assert.Equal(t, "49960.00", s.cash(t, "2025-04-30"))
}

func TestRunSimulation_Invalid(t *testing.T) {
	s := setupTestServer(t)

	tests := []struct {
		name string
		req  SimulationRequest
	}{
		{"bad start date", SimulationRequest{StartDate: "1 April"}},
		{"negative cash", SimulationRequest{StartingCash: "-5"}},
		{"bad request date", SimulationRequest{Requests: []SimulationOrderRequest{{Date: "soon", ItemName: "A4 paper", Quantity: 1}}}},
		{"before start", SimulationRequest{StartDate: "2025-04-05", Requests: []SimulationOrderRequest{{Date: "2025-04-01", ItemName: "A4 paper", Quantity: 1}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/simulations", tt.req).Code)
		})
	}
}

func TestRunSimulation_FieldErrors(t *testing.T) {
	s := setupTestServer(t)
	req := SimulationRequest{
		StartingCash: "lots",
		Requests:     []SimulationOrderRequest{{ID: "r1", Date: "2025-04-02"}, {ID: "r2", Date: "2025/04/03"}},
	}

	rec := s.do(t, http.MethodPost, "/api/simulations", req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, map[string]string{
		"starting_cash":    "numeric",
		"requests[1].date": "datetime",
	}, decode[ErrorResponse](t, rec).Fields)
}
