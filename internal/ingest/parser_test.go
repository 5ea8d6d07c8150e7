package ingest

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/anuradhakorde/candlestick-patterns/internal/errors"
	"github.com/anuradhakorde/candlestick-patterns/internal/exchange"
)

const (
	bseHeader = "SC_CODE,SC_NAME,SC_GROUP,SC_TYPE,OPEN,HIGH,LOW,CLOSE,LAST,PREVCLOSE,NO_TRADES,NO_OF_SHRS,NET_TURNOV,TDCLOINDI"
	nseHeader = "SYMBOL,SERIES,OPEN,HIGH,LOW,CLOSE,LAST,PREVCLOSE,TOTTRDQTY,TOTTRDVAL,TIMESTAMP,TOTALTRADES,ISIN"

	bseGoodRow = "500325,RELIANCE INDUSTRIES,A,Q,2856.00,2890.50,2840.10,2875.35,2875.00,2850.75,125431,4521890,12987654321.50,N"
	nseGoodRow = "RELIANCE,EQ,2856.00,2890.50,2840.10,2875.35,2875.00,2850.75,4521890,12987654321.50,02-JAN-2025,125431,INE002A01018"
)

func testParser() *Parser {
	return NewParser(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func mustSpec(t *testing.T, token string) exchange.FormatSpec {
	t.Helper()
	spec, ok := exchange.Lookup(token)
	require.True(t, ok, "exchange %s must be registered", token)
	return spec
}

func tradeDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func TestParse_BSEFile(t *testing.T) {
	content := strings.Join([]string{
		bseHeader,
		bseGoodRow,
		"500112,STATE BANK OF INDIA,A,Q,812.00,825.40,810.15,823.90,823.50,811.20,98012,7812345,6421890123.25,N",
	}, "\n")

	result, err := testParser().Parse(strings.NewReader(content), mustSpec(t, "BSE"), tradeDate(2025, time.January, 2))
	require.NoError(t, err)

	require.Len(t, result.Drafts, 2)
	assert.Equal(t, 2, result.RowsRead)
	assert.Empty(t, result.Warnings)

	d := result.Drafts[0]
	assert.Equal(t, "500325", d.Stock.Symbol)
	assert.Equal(t, "RELIANCE INDUSTRIES", d.Stock.Name)
	assert.Equal(t, "A", d.Stock.Group)
	assert.Equal(t, "BSE", d.Stock.Exchange)
	assert.Equal(t, tradeDate(2025, time.January, 2), d.Date)
	assert.True(t, d.Open.Equal(decimal.RequireFromString("2856.00")))
	assert.True(t, d.High.Equal(decimal.RequireFromString("2890.50")))
	assert.True(t, d.Low.Equal(decimal.RequireFromString("2840.10")))
	assert.True(t, d.Close.Equal(decimal.RequireFromString("2875.35")))
	assert.True(t, d.PrevClose.Equal(decimal.RequireFromString("2850.75")))
	require.NotNil(t, d.Trades)
	assert.EqualValues(t, 125431, *d.Trades)
	require.NotNil(t, d.Shares)
	assert.EqualValues(t, 4521890, *d.Shares)
	require.True(t, d.Turnover.Valid)
	assert.True(t, d.Turnover.Decimal.Equal(decimal.RequireFromString("12987654321.50")))
}

func TestParse_NSEFile(t *testing.T) {
	content := strings.Join([]string{nseHeader, nseGoodRow}, "\n")

	result, err := testParser().Parse(strings.NewReader(content), mustSpec(t, "NSE"), tradeDate(2025, time.January, 2))
	require.NoError(t, err)

	require.Len(t, result.Drafts, 1)
	d := result.Drafts[0]
	assert.Equal(t, "RELIANCE", d.Stock.Symbol)
	assert.Equal(t, "RELIANCE", d.Stock.Name)
	assert.Equal(t, "EQ", d.Stock.Group)
	assert.Equal(t, "NSE", d.Stock.Exchange)
	require.NotNil(t, d.Trades)
	assert.EqualValues(t, 125431, *d.Trades)
	require.NotNil(t, d.Shares)
	assert.EqualValues(t, 4521890, *d.Shares)
}

func TestParse_UTF8BOMAndCRLF(t *testing.T) {
	content := "\xEF\xBB\xBF" + bseHeader + "\r\n" + bseGoodRow + "\r\n"

	result, err := testParser().Parse(strings.NewReader(content), mustSpec(t, "BSE"), tradeDate(2025, time.January, 2))
	require.NoError(t, err)
	require.Len(t, result.Drafts, 1)
	assert.Equal(t, "500325", result.Drafts[0].Stock.Symbol)
}

func TestParse_TabDelimited(t *testing.T) {
	header := strings.ReplaceAll(nseHeader, ",", "\t")
	row := strings.ReplaceAll(nseGoodRow, ",", "\t")
	content := header + "\n" + row + "\n"

	result, err := testParser().Parse(strings.NewReader(content), mustSpec(t, "NSE"), tradeDate(2025, time.January, 2))
	require.NoError(t, err)
	require.Len(t, result.Drafts, 1)
	assert.Equal(t, "RELIANCE", result.Drafts[0].Stock.Symbol)
}

func TestParse_MissingColumns(t *testing.T) {
	header := "SC_CODE,SC_NAME,SC_GROUP,SC_TYPE,OPEN,HIGH,LOW,CLOSE,LAST,PREVCLOSE,NO_TRADES,NO_OF_SHRS"
	content := header + "\n500325,RELIANCE INDUSTRIES,A,Q,1,2,1,2,2,1,5,10\n"

	result, err := testParser().Parse(strings.NewReader(content), mustSpec(t, "BSE"), tradeDate(2025, time.January, 2))
	assert.Nil(t, result)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeMissingColumns, apperrors.CodeOf(err))
	assert.Contains(t, err.Error(), "NET_TURNOV")
	assert.Contains(t, err.Error(), "TDCLOINDI")
}

func TestParse_EmptyContent(t *testing.T) {
	result, err := testParser().Parse(strings.NewReader(""), mustSpec(t, "BSE"), tradeDate(2025, time.January, 2))
	assert.Nil(t, result)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeMissingColumns, apperrors.CodeOf(err))
}

func TestParse_RowErrors(t *testing.T) {
	tests := []struct {
		name        string
		row         string
		wantWarning string
	}{
		{
			name:        "missing symbol",
			row:         ",RELIANCE INDUSTRIES,A,Q,2856.00,2890.50,2840.10,2875.35,2875.00,2850.75,125431,4521890,12987654321.50,N",
			wantWarning: "row 3: missing stock symbol",
		},
		{
			name:        "blank open price",
			row:         "500325,RELIANCE INDUSTRIES,A,Q,,2890.50,2840.10,2875.35,2875.00,2850.75,125431,4521890,12987654321.50,N",
			wantWarning: "missing required OPEN",
		},
		{
			name:        "non numeric high",
			row:         "500325,RELIANCE INDUSTRIES,A,Q,2856.00,abc,2840.10,2875.35,2875.00,2850.75,125431,4521890,12987654321.50,N",
			wantWarning: `invalid HIGH value "abc"`,
		},
		{
			name:        "negative low",
			row:         "500325,RELIANCE INDUSTRIES,A,Q,2856.00,2890.50,-5,2875.35,2875.00,2850.75,125431,4521890,12987654321.50,N",
			wantWarning: `negative LOW value "-5"`,
		},
		{
			name:        "fractional trade count",
			row:         "500325,RELIANCE INDUSTRIES,A,Q,2856.00,2890.50,2840.10,2875.35,2875.00,2850.75,12.5,4521890,12987654321.50,N",
			wantWarning: `invalid NO_TRADES value "12.5"`,
		},
		{
			name:        "negative share count",
			row:         "500325,RELIANCE INDUSTRIES,A,Q,2856.00,2890.50,2840.10,2875.35,2875.00,2850.75,125431,-10,12987654321.50,N",
			wantWarning: `negative NO_OF_SHRS value "-10"`,
		},
		{
			name:        "negative turnover",
			row:         "500325,RELIANCE INDUSTRIES,A,Q,2856.00,2890.50,2840.10,2875.35,2875.00,2850.75,125431,4521890,-1.50,N",
			wantWarning: `negative NET_TURNOV value "-1.50"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := strings.Join([]string{bseHeader, bseGoodRow, tt.row}, "\n")

			result, err := testParser().Parse(strings.NewReader(content), mustSpec(t, "BSE"), tradeDate(2025, time.January, 2))
			require.NoError(t, err)

			require.Len(t, result.Drafts, 1, "good row must survive")
			assert.Equal(t, 2, result.RowsRead)
			require.Len(t, result.Warnings, 1)
			assert.Contains(t, result.Warnings[0], tt.wantWarning)
		})
	}
}

func TestParse_NSERowDate(t *testing.T) {
	tests := []struct {
		name        string
		timestamp   string
		wantKept    bool
		wantWarning string
	}{
		{name: "uppercase month", timestamp: "02-JAN-2025", wantKept: true},
		{name: "lowercase month", timestamp: "02-jan-2025", wantKept: true},
		{name: "title case month", timestamp: "02-Jan-2025", wantKept: true},
		{
			name:        "date mismatch",
			timestamp:   "03-JAN-2025",
			wantWarning: "row date 2025-01-03 does not match filename date 2025-01-02",
		},
		{
			name:        "unparseable date",
			timestamp:   "2025/01/02",
			wantWarning: `invalid TIMESTAMP value "2025/01/02"`,
		},
		{
			name:        "blank date",
			timestamp:   "",
			wantWarning: `invalid TIMESTAMP value ""`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := "RELIANCE,EQ,2856.00,2890.50,2840.10,2875.35,2875.00,2850.75,4521890,12987654321.50," + tt.timestamp + ",125431,INE002A01018"
			content := nseHeader + "\n" + row + "\n"

			result, err := testParser().Parse(strings.NewReader(content), mustSpec(t, "NSE"), tradeDate(2025, time.January, 2))
			if tt.wantKept {
				require.NoError(t, err)
				require.Len(t, result.Drafts, 1)
				assert.Empty(t, result.Warnings)
				return
			}

			require.Error(t, err)
			assert.Equal(t, apperrors.CodeNoValidRows, apperrors.CodeOf(err))
			require.NotNil(t, result)
			require.Len(t, result.Warnings, 1)
			assert.Contains(t, result.Warnings[0], tt.wantWarning)
		})
	}
}

func TestParse_PriceRangeWarningKeepsRow(t *testing.T) {
	// CLOSE above HIGH is suspicious but exchanges have shipped such
	// rows, so it loads with a warning.
	row := "500325,RELIANCE INDUSTRIES,A,Q,2856.00,2890.50,2840.10,2999.99,2875.00,2850.75,125431,4521890,12987654321.50,N"
	content := bseHeader + "\n" + row + "\n"

	result, err := testParser().Parse(strings.NewReader(content), mustSpec(t, "BSE"), tradeDate(2025, time.January, 2))
	require.NoError(t, err)

	require.Len(t, result.Drafts, 1)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "prices outside the low/high range")
}

func TestParse_BlankOptionalFields(t *testing.T) {
	row := "500325,RELIANCE INDUSTRIES,A,Q,2856.00,2890.50,2840.10,2875.35,2875.00,2850.75,,,,N"
	content := bseHeader + "\n" + row + "\n"

	result, err := testParser().Parse(strings.NewReader(content), mustSpec(t, "BSE"), tradeDate(2025, time.January, 2))
	require.NoError(t, err)

	require.Len(t, result.Drafts, 1)
	d := result.Drafts[0]
	assert.Nil(t, d.Trades)
	assert.Nil(t, d.Shares)
	assert.False(t, d.Turnover.Valid)
}

func TestParse_NoValidRows(t *testing.T) {
	tests := []struct {
		name         string
		content      string
		wantRowsRead int
		wantWarnings int
	}{
		{
			name:         "header only",
			content:      bseHeader + "\n",
			wantRowsRead: 0,
			wantWarnings: 0,
		},
		{
			name: "every row rejected",
			content: strings.Join([]string{
				bseHeader,
				",RELIANCE INDUSTRIES,A,Q,1,2,1,2,2,1,5,10,100,N",
				"500325,RELIANCE INDUSTRIES,A,Q,bad,2,1,2,2,1,5,10,100,N",
			}, "\n"),
			wantRowsRead: 2,
			wantWarnings: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := testParser().Parse(strings.NewReader(tt.content), mustSpec(t, "BSE"), tradeDate(2025, time.January, 2))

			require.Error(t, err)
			assert.Equal(t, apperrors.CodeNoValidRows, apperrors.CodeOf(err))
			require.NotNil(t, result, "warnings must survive the failure")
			assert.Empty(t, result.Drafts)
			assert.Equal(t, tt.wantRowsRead, result.RowsRead)
			assert.Len(t, result.Warnings, tt.wantWarnings)
		})
	}
}

func TestParse_TrailingBlankLines(t *testing.T) {
	content := bseHeader + "\n" + bseGoodRow + "\n\n\n"

	result, err := testParser().Parse(strings.NewReader(content), mustSpec(t, "BSE"), tradeDate(2025, time.January, 2))
	require.NoError(t, err)
	require.Len(t, result.Drafts, 1)
	assert.Equal(t, 1, result.RowsRead)
}
