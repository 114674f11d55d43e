// Package store provides in-memory Store implementations.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/warp/supply-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements ledger.Store, ledger.CatalogStore and ledger.QuoteStore.
type Memory struct {
	mu           sync.RWMutex
	transactions []ledger.Transaction // id order
	byItem       map[string][]int     // item -> indexes into transactions
	idempotency  map[string]bool
	nextID       ledger.TransactionID

	items  map[string]ledger.InventoryItem
	quotes []ledger.QuoteRecord
}

var (
	_ ledger.Store        = (*Memory)(nil)
	_ ledger.RecentLister = (*Memory)(nil)
	_ ledger.CatalogStore = (*Memory)(nil)
	_ ledger.QuoteStore   = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{
		byItem:      make(map[string][]int),
		idempotency: make(map[string]bool),
		nextID:      1,
		items:       make(map[string]ledger.InventoryItem),
	}
}

// Append adds a single transaction. Append-only.
func (m *Memory) Append(_ context.Context, tx ledger.Transaction) (ledger.TransactionID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tx.IdempotencyKey != "" && m.idempotency[tx.IdempotencyKey] {
		return 0, ledger.ErrDuplicateIdempotencyKey
	}
	return m.appendLocked(tx), nil
}

// AppendBatch adds multiple transactions atomically.
func (m *Memory) AppendBatch(_ context.Context, txs []ledger.Transaction) ([]ledger.TransactionID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Check all idempotency keys first (atomic check)
	batch := make(map[string]bool)
	for _, tx := range txs {
		if tx.IdempotencyKey == "" {
			continue
		}
		if m.idempotency[tx.IdempotencyKey] || batch[tx.IdempotencyKey] {
			return nil, ledger.ErrDuplicateIdempotencyKey
		}
		batch[tx.IdempotencyKey] = true
	}

	ids := make([]ledger.TransactionID, len(txs))
	for i, tx := range txs {
		ids[i] = m.appendLocked(tx)
	}
	return ids, nil
}

func (m *Memory) appendLocked(tx ledger.Transaction) ledger.TransactionID {
	tx.ID = m.nextID
	m.nextID++
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	m.transactions = append(m.transactions, tx)
	if tx.HasItem() {
		m.byItem[tx.ItemName] = append(m.byItem[tx.ItemName], len(m.transactions)-1)
	}
	if tx.IdempotencyKey != "" {
		m.idempotency[tx.IdempotencyKey] = true
	}
	return tx.ID
}

func (m *Memory) LoadUntil(_ context.Context, cutoff ledger.Date) ([]ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.Transaction
	for _, tx := range m.transactions {
		if tx.Date.BeforeOrEqual(cutoff) {
			result = append(result, tx)
		}
	}
	return result, nil
}

func (m *Memory) LoadItemUntil(_ context.Context, itemName string, cutoff ledger.Date) ([]ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.Transaction
	for _, i := range m.byItem[itemName] {
		if tx := m.transactions[i]; tx.Date.BeforeOrEqual(cutoff) {
			result = append(result, tx)
		}
	}
	return result, nil
}

func (m *Memory) Exists(_ context.Context, idempotencyKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idempotency[idempotencyKey], nil
}

// Recent returns the latest transactions, newest first.
func (m *Memory) Recent(_ context.Context, limit int) ([]ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.Transaction
	for i := len(m.transactions) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, m.transactions[i])
	}
	return result, nil
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

func (m *Memory) SaveItems(_ context.Context, items []ledger.InventoryItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range items {
		m.items[item.ItemName] = item
	}
	return nil
}

func (m *Memory) ListItems(_ context.Context) ([]ledger.InventoryItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]ledger.InventoryItem, 0, len(m.items))
	for _, item := range m.items {
		result = append(result, item)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ItemName < result[j].ItemName })
	return result, nil
}

func (m *Memory) GetItem(_ context.Context, itemName string) (*ledger.InventoryItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.items[itemName]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (m *Memory) SaveQuotes(_ context.Context, quotes []ledger.QuoteRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotes = append(m.quotes, quotes...)
	return nil
}

func (m *Memory) CountQuotes(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.quotes), nil
}

func (m *Memory) SearchQuotes(_ context.Context, terms []string, limit int) ([]ledger.QuoteRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.QuoteRecord
	for _, q := range m.quotes {
		if quoteMatches(q, terms) {
			result = append(result, q)
		}
	}
	// Most recent first; stable keeps load order within a day
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].OrderDate.After(result[j].OrderDate)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func quoteMatches(q ledger.QuoteRecord, terms []string) bool {
	request := strings.ToLower(q.OriginalRequest)
	explanation := strings.ToLower(q.QuoteExplanation)
	for _, term := range terms {
		t := strings.ToLower(term)
		if !strings.Contains(request, t) && !strings.Contains(explanation, t) {
			return false
		}
	}
	return true
}
