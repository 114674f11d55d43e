package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/supply-engine/ledger"
	"github.com/xuri/excelize/v2"
)

// =============================================================================
// LOADERS - CSV and XLSX reference data
// =============================================================================
//
// Both formats share one tabular layout: a header row naming the columns,
// one record per row. Column order is free; names are case-insensitive.
//
//	inventory: item_name, unit_price [, category, current_stock, min_stock_level]
//	quotes:    total_amount, original_request|response [, quote_explanation,
//	           job_type, order_size, event_type, request_metadata, order_date]
//
// Quote amounts are per unit. Quotes without an order_date get defaultDate.

// Workbook sheet names.
const (
	SheetInventory = "inventory"
	SheetQuotes    = "quotes"
)

// LoadItemsCSV reads catalog items from CSV.
func LoadItemsCSV(r io.Reader) ([]ledger.InventoryItem, error) {
	rows, err := readCSV(r)
	if err != nil {
		return nil, err
	}
	return parseItems(rows)
}

// LoadQuotesCSV reads historical quotes from CSV.
func LoadQuotesCSV(r io.Reader, defaultDate ledger.Date) ([]ledger.QuoteRecord, error) {
	rows, err := readCSV(r)
	if err != nil {
		return nil, err
	}
	return parseQuotes(rows, defaultDate)
}

// LoadWorkbook reads the inventory and quotes sheets of an XLSX workbook.
// A missing quotes sheet yields no quotes; a missing inventory sheet is an
// error.
func LoadWorkbook(r io.Reader, defaultDate ledger.Date) ([]ledger.InventoryItem, []ledger.QuoteRecord, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := make(map[string]string)
	for _, name := range f.GetSheetList() {
		sheets[strings.ToLower(name)] = name
	}

	invSheet, ok := sheets[SheetInventory]
	if !ok {
		return nil, nil, &ledger.ValidationError{Field: "workbook", Message: "missing sheet " + SheetInventory}
	}
	rows, err := f.GetRows(invSheet)
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet %s: %w", invSheet, err)
	}
	items, err := parseItems(rows)
	if err != nil {
		return nil, nil, err
	}

	quoteSheet, ok := sheets[SheetQuotes]
	if !ok {
		return items, nil, nil
	}
	rows, err = f.GetRows(quoteSheet)
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet %s: %w", quoteSheet, err)
	}
	quotes, err := parseQuotes(rows, defaultDate)
	if err != nil {
		return nil, nil, err
	}
	return items, quotes, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rows, nil
}

// =============================================================================
// ROW PARSING
// =============================================================================

type table struct {
	name    string
	columns map[string]int
}

func newTable(name string, header []string, required ...string) (*table, error) {
	t := &table{name: name, columns: make(map[string]int)}
	for i, col := range header {
		t.columns[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, col := range required {
		if _, ok := t.columns[col]; !ok {
			return nil, &ledger.ValidationError{Field: name, Message: "missing column " + col}
		}
	}
	return t, nil
}

// get returns the trimmed cell of the first present column. Short rows
// (XLSX drops trailing empty cells) read as empty.
func (t *table) get(row []string, cols ...string) string {
	for _, col := range cols {
		if i, ok := t.columns[col]; ok && i < len(row) {
			if v := strings.TrimSpace(row[i]); v != "" {
				return v
			}
		}
	}
	return ""
}

func (t *table) rowError(n int, field, msg string) error {
	return &ledger.ValidationError{Field: fmt.Sprintf("%s row %d %s", t.name, n, field), Message: msg}
}

func parseItems(rows [][]string) ([]ledger.InventoryItem, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	t, err := newTable(SheetInventory, rows[0], "item_name", "unit_price")
	if err != nil {
		return nil, err
	}

	var items []ledger.InventoryItem
	for i, row := range rows[1:] {
		n := i + 2 // 1-based, after header
		name := t.get(row, "item_name")
		if name == "" {
			continue
		}
		price, err := decimal.NewFromString(t.get(row, "unit_price"))
		if err != nil || price.IsNegative() {
			return nil, t.rowError(n, "unit_price", "must be a non-negative decimal")
		}
		stock, err := parseCount(t.get(row, "current_stock"))
		if err != nil {
			return nil, t.rowError(n, "current_stock", err.Error())
		}
		level, err := parseCount(t.get(row, "min_stock_level"))
		if err != nil {
			return nil, t.rowError(n, "min_stock_level", err.Error())
		}
		items = append(items, ledger.InventoryItem{
			ItemName:      name,
			Category:      t.get(row, "category"),
			UnitPrice:     price,
			CurrentStock:  stock,
			MinStockLevel: level,
		})
	}
	return items, nil
}

func parseQuotes(rows [][]string, defaultDate ledger.Date) ([]ledger.QuoteRecord, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	t, err := newTable(SheetQuotes, rows[0], "total_amount")
	if err != nil {
		return nil, err
	}

	var quotes []ledger.QuoteRecord
	for i, row := range rows[1:] {
		n := i + 2
		raw := t.get(row, "total_amount")
		if raw == "" {
			continue
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil || amount.IsNegative() {
			return nil, t.rowError(n, "total_amount", "must be a non-negative decimal")
		}

		date := defaultDate
		if s := t.get(row, "order_date"); s != "" {
			if date, err = ledger.ParseDate(s); err != nil {
				return nil, fmt.Errorf("%s row %d: %w", t.name, n, err)
			}
		}

		meta := parseMetadata(t.get(row, "request_metadata"))
		quotes = append(quotes, ledger.QuoteRecord{
			OriginalRequest:  t.get(row, "original_request", "response", "request"),
			TotalAmount:      amount,
			QuoteExplanation: t.get(row, "quote_explanation"),
			JobType:          firstNonEmpty(t.get(row, "job_type"), meta["job_type"]),
			OrderSize:        firstNonEmpty(t.get(row, "order_size"), meta["order_size"]),
			EventType:        firstNonEmpty(t.get(row, "event_type"), meta["event_type"]),
			OrderDate:        date,
		})
	}
	return quotes, nil
}

func parseCount(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return n, nil
}

// metadataPair matches 'key': 'value' pairs of an exported metadata dict,
// e.g. {'job_type': 'office manager', 'order_size': 'small'}.
var metadataPair = regexp.MustCompile(`['"](\w+)['"]\s*:\s*['"]([^'"]*)['"]`)

func parseMetadata(s string) map[string]string {
	meta := make(map[string]string)
	for _, m := range metadataPair.FindAllStringSubmatch(s, -1) {
		meta[m[1]] = strings.TrimSpace(m[2])
	}
	return meta
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
