package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/anuradhakorde/candlestick-patterns/internal/archive"
	"github.com/anuradhakorde/candlestick-patterns/internal/exchange"
	"github.com/anuradhakorde/candlestick-patterns/internal/infrastructure"
	"github.com/anuradhakorde/candlestick-patterns/pkg/contracts/domain"
)

// Orchestrator drives whole ingestion runs, a ZIP archive or a list of
// loose CSV files, each run under a fresh batch ID that tags every log
// line the run emits.
type Orchestrator struct {
	extractor *archive.Extractor
	ingestor  *Ingestor
	logger    *slog.Logger
}

// NewOrchestrator creates a batch orchestrator. A nil logger falls back
// to slog.Default().
func NewOrchestrator(extractor *archive.Extractor, ingestor *Ingestor, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		extractor: extractor,
		ingestor:  ingestor,
		logger:    logger,
	}
}

// IngestArchive unpacks a ZIP and ingests every qualifying entry
// sequentially in archive order. Entries the extractor refused for size
// appear in the summary as failed results at their archive position.
// Archive-level problems (too large, corrupt, path traversal, empty)
// abort the run: no summary, nothing persisted.
func (o *Orchestrator) IngestArchive(ctx context.Context, data []byte) (*domain.BatchSummary, error) {
	summary, ctx := o.beginBatch(ctx)
	o.logger.InfoContext(ctx, "archive batch started", "archive_size", len(data))

	x, err := o.extractor.Extract(data)
	if err != nil {
		o.logger.ErrorContext(ctx, "archive rejected", "error", err)
		return nil, err
	}
	defer x.Close()

	for _, item := range x.Items() {
		if item.Rejected != nil {
			summary.Record(o.preFailed(ctx, item.Rejected))
			continue
		}
		summary.Record(o.ingestor.IngestFile(ctx, *item.Entry))
	}

	o.finishBatch(ctx, summary)
	return summary, nil
}

// IngestFiles ingests loose CSV sources in the order given.
func (o *Orchestrator) IngestFiles(ctx context.Context, sources []Source) (*domain.BatchSummary, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("no files to ingest")
	}

	summary, ctx := o.beginBatch(ctx)
	o.logger.InfoContext(ctx, "file batch started", "files", len(sources))

	for _, src := range sources {
		summary.Record(o.ingestor.IngestFile(ctx, src))
	}

	o.finishBatch(ctx, summary)
	return summary, nil
}

// preFailed turns an extraction rejection into a failed result so the
// entry still occupies its slot in the summary.
func (o *Orchestrator) preFailed(ctx context.Context, rej *archive.Rejection) domain.ProcessingResult {
	result := domain.ProcessingResult{
		Filename: rej.Name,
		Outcome:  domain.OutcomeFailed,
		Failure:  failureFromErr(rej.Reason),
	}
	if spec, date, err := exchange.ParseFilename(rej.Name); err == nil {
		result.Exchange = spec.Exchange
		result.TradeDate = date
	}
	o.logger.WarnContext(ctx, "file rejected",
		"file", result.Filename,
		"code", result.Failure.Code,
		"reason", result.Failure.Message)
	return result
}

func (o *Orchestrator) beginBatch(ctx context.Context) (*domain.BatchSummary, context.Context) {
	batchID := uuid.NewString()
	ctx = infrastructure.WithBatchID(ctx, batchID)
	summary := &domain.BatchSummary{
		BatchID:   batchID,
		StartedAt: time.Now().UTC(),
	}
	return summary, ctx
}

func (o *Orchestrator) finishBatch(ctx context.Context, s *domain.BatchSummary) {
	s.CompletedAt = time.Now().UTC()
	o.logger.InfoContext(ctx, "batch completed",
		"total_files", s.TotalFiles,
		"succeeded", s.Succeeded,
		"failed", s.Failed,
		"stocks_created", s.Totals.StocksCreated,
		"stocks_updated", s.Totals.StocksUpdated,
		"candles_created", s.Totals.CandlesCreated,
		"candles_skipped", s.Totals.CandlesSkipped,
		"duration", s.CompletedAt.Sub(s.StartedAt).String())
}
