// Package ingest is the loading pipeline: it parses exchange CSV files
// into candle drafts, persists each file in its own transaction, and
// drives whole batches of files or ZIP archives.
package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/anuradhakorde/candlestick-patterns/internal/errors"
	"github.com/anuradhakorde/candlestick-patterns/internal/exchange"
	"github.com/anuradhakorde/candlestick-patterns/pkg/contracts/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseResult carries everything learned from one CSV file: the rows
// that survived validation, a warning per row that did not, and the
// number of data rows seen.
type ParseResult struct {
	Drafts   []domain.CandleDraft
	Warnings []string
	RowsRead int
}

// Parser turns exchange CSV content into normalized candle drafts
// according to the exchange's format spec.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a parser. A nil logger falls back to slog.Default().
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// Parse reads one bhavcopy file. Row-level problems become warnings and
// the row is dropped; the file as a whole fails only with
// MISSING_COLUMNS (header lacks required columns, result is nil) or
// NO_VALID_ROWS (every row dropped, the partial result is returned
// alongside the error so the caller keeps the warnings).
func (p *Parser) Parse(r io.Reader, spec exchange.FormatSpec, fileDate time.Time) (*ParseResult, error) {
	br := bufio.NewReader(r)
	stripBOM(br)
	delim := sniffDelimiter(br)

	reader := csv.NewReader(br)
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, apperrors.NewMissingColumns(spec.RequiredColumns)
	}

	index := make(map[string]int, len(header))
	for i, cell := range header {
		name := strings.TrimSpace(cell)
		if _, exists := index[name]; !exists {
			index[name] = i
		}
	}
	var missing []string
	for _, col := range spec.RequiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, apperrors.NewMissingColumns(missing)
	}

	result := &ParseResult{}
	rowNum := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		rowNum++
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				result.RowsRead++
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("row %d: malformed CSV row: %v", rowNum, err))
				continue
			}
			return nil, fmt.Errorf("failed to read CSV content: %w", err)
		}
		result.RowsRead++

		draft, warnings, ok := parseRow(record, index, spec, fileDate, rowNum)
		result.Warnings = append(result.Warnings, warnings...)
		if ok {
			result.Drafts = append(result.Drafts, draft)
		}
	}

	if len(result.Drafts) == 0 {
		return result, apperrors.NewNoValidRows(result.RowsRead)
	}

	p.logger.Debug("file parsed",
		"exchange", spec.Exchange,
		"rows", result.RowsRead,
		"valid", len(result.Drafts),
		"warnings", len(result.Warnings))
	return result, nil
}

// parseRow maps one CSV record to a candle draft. A failed validation
// returns ok=false with a single warning naming the row; an out-of-range
// price relationship keeps the row but adds a warning.
func parseRow(record []string, index map[string]int, spec exchange.FormatSpec, fileDate time.Time, rowNum int) (domain.CandleDraft, []string, bool) {
	field := func(col string) string {
		i, ok := index[col]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	symbol := field(spec.SymbolColumn)
	if symbol == "" {
		return domain.CandleDraft{}, []string{fmt.Sprintf("row %d: missing stock symbol", rowNum)}, false
	}

	reject := func(format string, args ...interface{}) (domain.CandleDraft, []string, bool) {
		msg := fmt.Sprintf("row %d (%s): %s", rowNum, symbol, fmt.Sprintf(format, args...))
		return domain.CandleDraft{}, []string{msg}, false
	}

	draft := domain.CandleDraft{
		Stock: domain.StockDraft{
			Symbol:   symbol,
			Name:     field(spec.NameColumn),
			Group:    field(spec.GroupColumn),
			Exchange: spec.Exchange,
		},
		Date: fileDate,
	}

	prices := []struct {
		col string
		dst *decimal.Decimal
	}{
		{spec.OpenColumn, &draft.Open},
		{spec.HighColumn, &draft.High},
		{spec.LowColumn, &draft.Low},
		{spec.CloseColumn, &draft.Close},
		{spec.PrevCloseColumn, &draft.PrevClose},
	}
	for _, f := range prices {
		raw := field(f.col)
		if raw == "" {
			return reject("missing required %s", f.col)
		}
		value, err := decimal.NewFromString(raw)
		if err != nil {
			return reject("invalid %s value %q", f.col, raw)
		}
		if value.IsNegative() {
			return reject("negative %s value %q", f.col, raw)
		}
		*f.dst = value
	}

	counts := []struct {
		col string
		dst **int64
	}{
		{spec.TradesColumn, &draft.Trades},
		{spec.SharesColumn, &draft.Shares},
	}
	for _, f := range counts {
		raw := field(f.col)
		if raw == "" {
			continue
		}
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return reject("invalid %s value %q", f.col, raw)
		}
		if value < 0 {
			return reject("negative %s value %q", f.col, raw)
		}
		v := value
		*f.dst = &v
	}

	if raw := field(spec.TurnoverColumn); raw != "" {
		value, err := decimal.NewFromString(raw)
		if err != nil {
			return reject("invalid %s value %q", spec.TurnoverColumn, raw)
		}
		if value.IsNegative() {
			return reject("negative %s value %q", spec.TurnoverColumn, raw)
		}
		draft.Turnover = decimal.NullDecimal{Decimal: value, Valid: true}
	}

	if spec.HasRowDate() {
		raw := field(spec.RowDateColumn)
		rowDate, err := spec.ParseRowDate(raw)
		if err != nil {
			return reject("invalid %s value %q", spec.RowDateColumn, raw)
		}
		if !rowDate.Equal(fileDate) {
			return reject("row date %s does not match filename date %s",
				rowDate.Format("2006-01-02"), fileDate.Format("2006-01-02"))
		}
	}

	var warnings []string
	if !draft.PriceRangeOK() {
		warnings = append(warnings,
			fmt.Sprintf("row %d (%s): prices outside the low/high range", rowNum, symbol))
	}
	return draft, warnings, true
}

// stripBOM discards a leading UTF-8 byte order mark so the first header
// cell compares clean.
func stripBOM(br *bufio.Reader) {
	lead, err := br.Peek(len(utf8BOM))
	if err == nil && bytes.Equal(lead, utf8BOM) {
		br.Discard(len(utf8BOM))
	}
}

// sniffDelimiter picks comma or tab by inspecting the header line. NSE
// distributes both variants; comma wins when both appear.
func sniffDelimiter(br *bufio.Reader) rune {
	sample, _ := br.Peek(1024)
	if i := bytes.IndexByte(sample, '\n'); i >= 0 {
		sample = sample[:i]
	}
	if bytes.ContainsRune(sample, ',') {
		return ','
	}
	if bytes.ContainsRune(sample, '\t') {
		return '\t'
	}
	return ','
}
