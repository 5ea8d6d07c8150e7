package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/anuradhakorde/candlestick-patterns/pkg/contracts/domain"
)

type candleKey struct {
	stockID int64
	date    string
}

func keyFor(stockID int64, date time.Time) candleKey {
	return candleKey{stockID: stockID, date: date.Format("2006-01-02")}
}

// MemoryStore is a map-backed Store with the same unit-of-work semantics
// as Postgres: writes stage inside the unit and become visible only on
// Commit. It backs tests and the CLI dry-run mode.
type MemoryStore struct {
	mu           sync.Mutex
	stocks       map[string]Stock
	candles      map[candleKey]Candlestick
	ingestions   []IngestionLog
	nextStockID  int64
	nextCandleID int64

	// Error injection for exercising rollback paths in tests. Zero
	// values disable it.
	UpsertErr error
	InsertErr error
	RecordErr error
	CommitErr error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		stocks:  make(map[string]Stock),
		candles: make(map[candleKey]Candlestick),
	}
}

// Begin opens a staged unit of work.
func (m *MemoryStore) Begin(ctx context.Context) (UnitOfWork, error) {
	return &memoryUnitOfWork{
		store:         m,
		stagedStocks:  make(map[string]Stock),
		stagedCandles: make(map[candleKey]Candlestick),
	}, nil
}

// StockCount returns the number of committed stocks.
func (m *MemoryStore) StockCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stocks)
}

// CandleCount returns the number of committed candlesticks.
func (m *MemoryStore) CandleCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.candles)
}

// StockBySymbol returns the committed stock for symbol, if any.
func (m *MemoryStore) StockBySymbol(symbol string) (Stock, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.stocks[symbol]
	return rec, ok
}

// CandleBySymbolDate returns the committed candlestick for (symbol, date),
// if any.
func (m *MemoryStore) CandleBySymbolDate(symbol string, date time.Time) (Candlestick, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stock, ok := m.stocks[symbol]
	if !ok {
		return Candlestick{}, false
	}
	rec, ok := m.candles[keyFor(stock.StockID, date)]
	return rec, ok
}

// AllCandles returns the committed candlesticks ordered by insertion.
func (m *MemoryStore) AllCandles() []Candlestick {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Candlestick, 0, len(m.candles))
	for _, rec := range m.candles {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CandleID < out[j].CandleID })
	return out
}

// Ingestions returns the committed audit rows in commit order.
func (m *MemoryStore) Ingestions() []IngestionLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]IngestionLog, len(m.ingestions))
	copy(out, m.ingestions)
	return out
}

type memoryUnitOfWork struct {
	store            *MemoryStore
	stagedStocks     map[string]Stock
	stagedCandles    map[candleKey]Candlestick
	stagedIngestions []IngestionLog
	done             bool
}

func (u *memoryUnitOfWork) UpsertStock(ctx context.Context, draft domain.StockDraft) (StockResult, error) {
	if u.store.UpsertErr != nil {
		return StockResult{}, u.store.UpsertErr
	}

	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	current, ok := u.stagedStocks[draft.Symbol]
	if !ok {
		current, ok = u.store.stocks[draft.Symbol]
	}
	if !ok {
		u.store.nextStockID++
		rec := newStock(draft)
		rec.StockID = u.store.nextStockID
		now := time.Now()
		rec.CreatedAt = now
		rec.UpdatedAt = now
		u.stagedStocks[draft.Symbol] = rec
		return StockResult{ID: rec.StockID, Created: true}, nil
	}

	if current.Name == draft.Name && current.Exchange == draft.Exchange && current.Group == draft.Group {
		return StockResult{ID: current.StockID}, nil
	}

	current.Name = draft.Name
	current.Exchange = draft.Exchange
	current.Group = draft.Group
	current.UpdatedAt = time.Now()
	u.stagedStocks[draft.Symbol] = current
	return StockResult{ID: current.StockID, Updated: true}, nil
}

func (u *memoryUnitOfWork) InsertCandle(ctx context.Context, stockID int64, draft domain.CandleDraft) (bool, error) {
	if u.store.InsertErr != nil {
		return false, u.store.InsertErr
	}

	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	key := keyFor(stockID, draft.Date)
	if _, ok := u.stagedCandles[key]; ok {
		return false, nil
	}
	if _, ok := u.store.candles[key]; ok {
		return false, nil
	}

	u.store.nextCandleID++
	rec := newCandlestick(stockID, draft)
	rec.CandleID = u.store.nextCandleID
	rec.CreatedAt = time.Now()
	u.stagedCandles[key] = rec
	return true, nil
}

func (u *memoryUnitOfWork) RecordIngestion(ctx context.Context, rec domain.IngestionRecord) error {
	if u.store.RecordErr != nil {
		return u.store.RecordErr
	}
	u.stagedIngestions = append(u.stagedIngestions, newIngestionLog(rec))
	return nil
}

func (u *memoryUnitOfWork) Commit() error {
	if u.done {
		return nil
	}
	u.done = true

	if u.store.CommitErr != nil {
		return u.store.CommitErr
	}

	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	for symbol, rec := range u.stagedStocks {
		u.store.stocks[symbol] = rec
	}
	for key, rec := range u.stagedCandles {
		u.store.candles[key] = rec
	}
	for _, row := range u.stagedIngestions {
		row.IngestionID = int64(len(u.store.ingestions) + 1)
		u.store.ingestions = append(u.store.ingestions, row)
	}
	return nil
}

func (u *memoryUnitOfWork) Rollback() error {
	u.done = true
	u.stagedStocks = nil
	u.stagedCandles = nil
	u.stagedIngestions = nil
	return nil
}
