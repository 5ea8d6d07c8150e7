// Package storage persists stocks, candlesticks and ingestion audit rows.
// The pipeline sees only the Store and UnitOfWork interfaces; Postgres and
// the in-memory implementation are interchangeable behind them.
package storage

import (
	"context"

	"github.com/anuradhakorde/candlestick-patterns/pkg/contracts/domain"
)

// Store opens per-file units of work.
type Store interface {
	Begin(ctx context.Context) (UnitOfWork, error)
}

// UnitOfWork is one file's transaction. All writes stage inside it until
// Commit; Rollback discards them. The file ingestor is the only caller of
// Commit and Rollback.
type UnitOfWork interface {
	// UpsertStock creates the stock for draft.Symbol or refreshes its
	// display fields when they changed.
	UpsertStock(ctx context.Context, draft domain.StockDraft) (StockResult, error)

	// InsertCandle inserts one candlestick for (stockID, draft.Date).
	// It reports false without error when the pair already exists; the
	// existing row is never modified.
	InsertCandle(ctx context.Context, stockID int64, draft domain.CandleDraft) (bool, error)

	// RecordIngestion stages the audit row for a successfully ingested
	// file.
	RecordIngestion(ctx context.Context, rec domain.IngestionRecord) error

	Commit() error
	Rollback() error
}

// StockResult reports what UpsertStock did.
type StockResult struct {
	ID      int64
	Created bool
	Updated bool
}
