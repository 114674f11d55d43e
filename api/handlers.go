/*
handlers.go - HTTP API handlers for the supply engine

PURPOSE:
  Exposes order fulfillment and ledger projections via REST API. Handles
  HTTP request/response and JSON serialization, and delegates everything
  else to the fulfillment and ledger packages.

ENDPOINTS:
  Orders:
    POST   /api/orders                 Place an order from a structured intent

  Projections (as_of defaults to today, inclusive):
    GET    /api/inventory              Stock of every item on hand
    GET    /api/inventory/{item}       Stock of one item
    GET    /api/cash                   Cash balance
    GET    /api/reports/financial      Cash, valuation and top sellers

  Reference data:
    GET    /api/catalog                Catalog items
    GET    /api/catalog/{item}         Price lookup
    GET    /api/quotes                 Price estimate with matched history
    GET    /api/delivery               Delivery estimate

  Admin:
    GET    /api/transactions           Latest ledger records
    POST   /api/replenishment          Restock items below minimum now
    POST   /api/simulations            Replay dated orders on a scratch ledger

ERROR HANDLING:
  - 400: Validation errors, invalid dates
  - 404: Unknown item
  - 409: Duplicate idempotency key
  - 422: Out of stock, insufficient funds
  - 500: Data integrity and store errors
  Rejected orders return the order result body with the mapped status so
  clients always get the order id and reason.

SEE ALSO:
  - dto.go: Request/response data structures
  - simulations.go: Batch replay
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/shopspring/decimal"
	"github.com/warp/supply-engine/fulfillment"
	"github.com/warp/supply-engine/ledger"
)

// DefaultTransactionLimit caps GET /api/transactions without a limit.
const DefaultTransactionLimit = 50

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Orders      *fulfillment.Orchestrator
	Replenisher *fulfillment.Replenisher
	Quotes      ledger.QuoteStore
	Recent      ledger.RecentLister // nil: /transactions returns 501

	// Simulation seed defaults
	StartDate    ledger.Date
	StartingCash decimal.Decimal

	Logger zerolog.Logger
	Clock  func() ledger.Date
}

// NewHandler creates a handler around a running orchestrator.
func NewHandler(
	orders *fulfillment.Orchestrator,
	replenisher *fulfillment.Replenisher,
	quotes ledger.QuoteStore,
	recent ledger.RecentLister,
	logger zerolog.Logger,
) *Handler {
	return &Handler{
		Orders:       orders,
		Replenisher:  replenisher,
		Quotes:       quotes,
		Recent:       recent,
		StartDate:    ledger.Today(),
		StartingCash: decimal.NewFromInt(50000),
		Logger:       logger.With().Str("component", "api").Logger(),
		Clock:        ledger.Today,
	}
}

// =============================================================================
// ORDERS
// =============================================================================

// PlaceOrder handles POST /api/orders
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}

	intent := fulfillment.Intent{
		ItemName:       req.ItemName,
		Quantity:       req.Quantity,
		IdempotencyKey: req.IdempotencyKey,
	}
	if req.Date != "" {
		date, err := ledger.ParseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date", err)
			return
		}
		intent.Date = date
	}

	res, err := h.Orders.Process(r.Context(), intent)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("order_id", res.OrderID).Msg("order failed")
		writeError(w, http.StatusInternalServerError, "order failed", err)
		return
	}

	writeJSON(w, orderStatusCode(res), toOrderResultDTO(res))
}

func orderStatusCode(res *fulfillment.Result) int {
	switch res.Status {
	case fulfillment.StatusConfirmed:
		return http.StatusCreated
	case fulfillment.StatusRejected:
		switch res.Reason {
		case fulfillment.ReasonValidation, fulfillment.ReasonUnresolved:
			return http.StatusBadRequest
		case fulfillment.ReasonNotFound:
			return http.StatusNotFound
		case fulfillment.ReasonDuplicate:
			return http.StatusConflict
		default:
			return http.StatusUnprocessableEntity
		}
	}
	return http.StatusInternalServerError
}

// =============================================================================
// PROJECTIONS
// =============================================================================

// GetInventory handles GET /api/inventory
func (h *Handler) GetInventory(w http.ResponseWriter, r *http.Request) {
	asOf, ok := h.asOf(w, r)
	if !ok {
		return
	}
	stock, err := h.Orders.Projector.AllStockAsOf(r.Context(), asOf)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toInventoryDTO(asOf, stock))
}

// GetItemStock handles GET /api/inventory/{item}
func (h *Handler) GetItemStock(w http.ResponseWriter, r *http.Request) {
	asOf, ok := h.asOf(w, r)
	if !ok {
		return
	}
	item := chi.URLParam(r, "item")
	stock, err := h.Orders.Projector.StockAsOf(r.Context(), item, asOf)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StockDTO{ItemName: item, Stock: stock, AsOf: asOf.String()})
}

// GetCash handles GET /api/cash
func (h *Handler) GetCash(w http.ResponseWriter, r *http.Request) {
	asOf, ok := h.asOf(w, r)
	if !ok {
		return
	}
	cash, err := h.Orders.Projector.CashBalanceAsOf(r.Context(), asOf)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CashDTO{AsOf: asOf.String(), Balance: money(cash)})
}

// GetFinancialReport handles GET /api/reports/financial
func (h *Handler) GetFinancialReport(w http.ResponseWriter, r *http.Request) {
	asOf, ok := h.asOf(w, r)
	if !ok {
		return
	}
	report, err := h.Orders.Projector.FinancialReport(r.Context(), asOf)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toFinancialReportDTO(report))
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

// ListCatalog handles GET /api/catalog
func (h *Handler) ListCatalog(w http.ResponseWriter, r *http.Request) {
	items, err := h.Orders.Catalog.ListItems(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	dtos := make([]CatalogItemDTO, 0, len(items))
	for _, item := range items {
		dtos = append(dtos, toCatalogItemDTO(item))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCatalogItem handles GET /api/catalog/{item}
func (h *Handler) GetCatalogItem(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "item")
	item, err := h.Orders.Catalog.GetItem(r.Context(), name)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if item == nil {
		h.writeDomainError(w, r, &ledger.NotFoundError{ItemName: name})
		return
	}
	writeJSON(w, http.StatusOK, toCatalogItemDTO(*item))
}

// GetQuote handles GET /api/quotes?item=&quantity=
func (h *Handler) GetQuote(w http.ResponseWriter, r *http.Request) {
	quantity, ok := quantityParam(w, r)
	if !ok {
		return
	}
	quote, err := h.Orders.Pricing.Estimate(r.Context(), r.URL.Query().Get("item"), quantity)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toQuoteDTO(quote))
}

// GetDelivery handles GET /api/delivery?date=&quantity=
func (h *Handler) GetDelivery(w http.ResponseWriter, r *http.Request) {
	quantity, ok := quantityParam(w, r)
	if !ok {
		return
	}
	base := h.Clock().String()
	if s := r.URL.Query().Get("date"); s != "" {
		base = s
	}
	delivery, err := fulfillment.EstimateDeliveryFrom(base, quantity)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date", err)
		return
	}
	writeJSON(w, http.StatusOK, DeliveryDTO{
		OrderDate:    base,
		Quantity:     quantity,
		LeadTimeDays: fulfillment.LeadTimeDays(quantity),
		DeliveryDate: delivery.String(),
	})
}

// =============================================================================
// ADMIN
// =============================================================================

// ListTransactions handles GET /api/transactions?limit=
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	if h.Recent == nil {
		writeError(w, http.StatusNotImplemented, "transaction listing not supported by this store", nil)
		return
	}

	limit := DefaultTransactionLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer", err)
			return
		}
		limit = n
	}

	txs, err := h.Recent.Recent(r.Context(), limit)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	dtos := make([]TransactionDTO, 0, len(txs))
	for _, tx := range txs {
		dtos = append(dtos, toTransactionDTO(tx))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// TriggerReplenishment handles POST /api/replenishment
func (h *Handler) TriggerReplenishment(w http.ResponseWriter, r *http.Request) {
	var req ReplenishmentRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}

	date := h.Clock()
	if req.Date != "" {
		d, err := ledger.ParseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date", err)
			return
		}
		date = d
	}

	report, err := h.Replenisher.Run(r.Context(), date)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReplenishmentReportDTO(report))
}

// Health handles GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "date": h.Clock().String()})
}

// =============================================================================
// HELPERS
// =============================================================================

// asOf reads the as_of query parameter, defaulting to today. It writes a
// 400 and returns false when the date is invalid.
func (h *Handler) asOf(w http.ResponseWriter, r *http.Request) (ledger.Date, bool) {
	s := r.URL.Query().Get("as_of")
	if s == "" {
		return h.Clock(), true
	}
	d, err := ledger.ParseDate(s)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid as_of date", err)
		return ledger.Date{}, false
	}
	return d, true
}

func quantityParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	n, err := strconv.ParseInt(r.URL.Query().Get("quantity"), 10, 64)
	if err != nil || n <= 0 {
		writeError(w, http.StatusBadRequest, "quantity must be a positive integer", err)
		return 0, false
	}
	return n, true
}

// statusCode maps the ledger error taxonomy onto HTTP.
func statusCode(err error) int {
	switch {
	case errors.Is(err, ledger.ErrDuplicateIdempotencyKey):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrValidation):
		return http.StatusBadRequest
	case ledger.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrOutOfStock), errors.Is(err, ledger.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusCode(err)
	if status >= http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
		writeError(w, status, "internal error", err)
		return
	}
	writeError(w, status, err.Error(), nil)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
