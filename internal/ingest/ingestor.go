package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	apperrors "github.com/anuradhakorde/candlestick-patterns/internal/errors"
	"github.com/anuradhakorde/candlestick-patterns/internal/exchange"
	"github.com/anuradhakorde/candlestick-patterns/internal/storage"
	"github.com/anuradhakorde/candlestick-patterns/pkg/contracts/domain"
)

// Ingestor loads one bhavcopy file into storage. Each file runs in its
// own transaction: either every row effect plus the audit row commits,
// or nothing from the file is persisted.
type Ingestor struct {
	store       storage.Store
	parser      *Parser
	maxFileSize int64
	logger      *slog.Logger
}

// NewIngestor creates a file ingestor. A nil parser gets a default one;
// a nil logger falls back to slog.Default().
func NewIngestor(store storage.Store, parser *Parser, maxFileSize int64, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	if parser == nil {
		parser = NewParser(logger)
	}
	return &Ingestor{
		store:       store,
		parser:      parser,
		maxFileSize: maxFileSize,
		logger:      logger,
	}
}

// IngestFile runs the per-file pipeline: filename validation, size
// check, parse, persist. It never returns an error; every failure mode
// lands in the result's Failure field with the transaction rolled back.
func (ing *Ingestor) IngestFile(ctx context.Context, src Source) domain.ProcessingResult {
	result := domain.ProcessingResult{
		Filename: src.Name(),
		Outcome:  domain.OutcomeSucceeded,
	}

	spec, date, err := exchange.ParseFilename(src.Name())
	if err != nil {
		return ing.fail(ctx, result, err)
	}
	result.Exchange = spec.Exchange
	result.TradeDate = date

	content, err := ing.read(src)
	if err != nil {
		return ing.fail(ctx, result, err)
	}

	parsed, err := ing.parser.Parse(bytes.NewReader(content), spec, date)
	if parsed != nil {
		result.Warnings = parsed.Warnings
	}
	if err != nil {
		return ing.fail(ctx, result, err)
	}

	if err := ing.persist(ctx, &result, parsed.Drafts); err != nil {
		return ing.fail(ctx, result, err)
	}

	ing.logger.InfoContext(ctx, "file ingested",
		"file", result.Filename,
		"exchange", result.Exchange,
		"trade_date", result.TradeDate.Format("2006-01-02"),
		"stocks_created", result.Counts.StocksCreated,
		"stocks_updated", result.Counts.StocksUpdated,
		"candles_created", result.Counts.CandlesCreated,
		"candles_skipped", result.Counts.CandlesSkipped,
		"warnings", len(result.Warnings))
	return result
}

// read loads the source content under the per-file size limit.
func (ing *Ingestor) read(src Source) ([]byte, error) {
	rc, err := src.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", src.Name(), err)
	}
	defer rc.Close()

	content, err := io.ReadAll(io.LimitReader(rc, ing.maxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", src.Name(), err)
	}
	if int64(len(content)) > ing.maxFileSize {
		return nil, apperrors.NewFileTooLarge(src.Name(), int64(len(content)), ing.maxFileSize)
	}
	return content, nil
}

// persist writes the drafts and the audit row inside one unit of work,
// updating result counts and duplicate warnings as it goes. Any storage
// error rolls the whole file back.
func (ing *Ingestor) persist(ctx context.Context, result *domain.ProcessingResult, drafts []domain.CandleDraft) error {
	uow, err := ing.store.Begin(ctx)
	if err != nil {
		return apperrors.NewPersistenceFailure(err)
	}
	committed := false
	defer func() {
		if !committed {
			uow.Rollback()
		}
	}()

	var counts domain.IngestCounts
	for _, draft := range drafts {
		stock, err := uow.UpsertStock(ctx, draft.Stock)
		if err != nil {
			return apperrors.NewPersistenceFailure(err)
		}
		if stock.Created {
			counts.StocksCreated++
		}
		if stock.Updated {
			counts.StocksUpdated++
		}

		inserted, err := uow.InsertCandle(ctx, stock.ID, draft)
		if err != nil {
			return apperrors.NewPersistenceFailure(err)
		}
		if inserted {
			counts.CandlesCreated++
		} else {
			counts.CandlesSkipped++
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("duplicate candle for %s on %s skipped",
					draft.Stock.Symbol, draft.Date.Format("2006-01-02")))
		}
	}

	rec := domain.IngestionRecord{
		Filename:       result.Filename,
		Exchange:       result.Exchange,
		TradeDate:      result.TradeDate,
		StocksCreated:  counts.StocksCreated,
		CandlesCreated: counts.CandlesCreated,
		CandlesSkipped: counts.CandlesSkipped,
		LoadedAt:       time.Now().UTC(),
	}
	if err := uow.RecordIngestion(ctx, rec); err != nil {
		return apperrors.NewPersistenceFailure(err)
	}
	if err := uow.Commit(); err != nil {
		return apperrors.NewPersistenceFailure(err)
	}
	committed = true

	result.Counts = counts
	return nil
}

func (ing *Ingestor) fail(ctx context.Context, result domain.ProcessingResult, err error) domain.ProcessingResult {
	result.Outcome = domain.OutcomeFailed
	result.Failure = failureFromErr(err)
	ing.logger.WarnContext(ctx, "file rejected",
		"file", result.Filename,
		"code", result.Failure.Code,
		"reason", result.Failure.Message)
	return result
}

// failureFromErr maps an error to the stable code plus message pair
// reported to callers. Errors without an application code fall back to
// the generic ERROR code.
func failureFromErr(err error) *domain.FailureReason {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return &domain.FailureReason{Code: string(appErr.Code), Message: appErr.Detail()}
	}
	return &domain.FailureReason{Code: "ERROR", Message: err.Error()}
}
