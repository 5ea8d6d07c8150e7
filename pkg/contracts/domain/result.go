package domain

import (
	"time"
)

// Outcome is the terminal state of one file's ingestion.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// IngestCounts aggregates the persistence effects of processing one or
// more files.
type IngestCounts struct {
	StocksCreated  int `json:"stocks_created"`
	StocksUpdated  int `json:"stocks_updated"`
	CandlesCreated int `json:"candles_created"`
	CandlesSkipped int `json:"candles_skipped"`
}

// Add accumulates another set of counts into c.
func (c *IngestCounts) Add(other IngestCounts) {
	c.StocksCreated += other.StocksCreated
	c.StocksUpdated += other.StocksUpdated
	c.CandlesCreated += other.CandlesCreated
	c.CandlesSkipped += other.CandlesSkipped
}

// FailureReason explains why a file failed, as a stable machine-readable
// code plus a human-readable message.
type FailureReason struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ProcessingResult is the per-file outcome handed back to the caller.
// Warnings preserve row order; a failed file carries a FailureReason and
// guarantees that nothing from the file was persisted.
type ProcessingResult struct {
	Filename  string         `json:"filename" validate:"required"`
	Exchange  string         `json:"exchange,omitempty"`
	TradeDate time.Time      `json:"trade_date"`
	Outcome   Outcome        `json:"outcome" validate:"required,oneof=succeeded failed"`
	Counts    IngestCounts   `json:"counts"`
	Warnings  []string       `json:"warnings,omitempty"`
	Failure   *FailureReason `json:"failure,omitempty"`
}

// Failed reports whether the file was rejected as a whole.
func (r ProcessingResult) Failed() bool {
	return r.Outcome == OutcomeFailed
}

// BatchSummary aggregates an entire ingestion run. Results appear in
// processing order and every presented file appears exactly once.
type BatchSummary struct {
	BatchID     string             `json:"batch_id"`
	StartedAt   time.Time          `json:"started_at"`
	CompletedAt time.Time          `json:"completed_at"`
	TotalFiles  int                `json:"total_files"`
	Succeeded   int                `json:"succeeded"`
	Failed      int                `json:"failed"`
	Totals      IngestCounts       `json:"totals"`
	Results     []ProcessingResult `json:"results"`
}

// Record appends one file result and keeps the aggregate counters in step.
func (s *BatchSummary) Record(r ProcessingResult) {
	s.Results = append(s.Results, r)
	s.TotalFiles++
	if r.Failed() {
		s.Failed++
	} else {
		s.Succeeded++
	}
	s.Totals.Add(r.Counts)
}

// IngestionRecord is the audit row written alongside a successfully
// ingested file, inside the same transaction.
type IngestionRecord struct {
	Filename       string    `json:"filename"`
	Exchange       string    `json:"exchange"`
	TradeDate      time.Time `json:"trade_date"`
	StocksCreated  int       `json:"stocks_created"`
	CandlesCreated int       `json:"candles_created"`
	CandlesSkipped int       `json:"candles_skipped"`
	LoadedAt       time.Time `json:"loaded_at"`
}
