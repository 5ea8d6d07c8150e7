package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockDraft carries the stock attributes parsed from a single quote row.
// Identity is the exchange ticker symbol; the remaining fields are display
// attributes refreshed on every ingest.
type StockDraft struct {
	Symbol   string `json:"symbol" validate:"required"`
	Name     string `json:"name"`
	Group    string `json:"group"`
	Exchange string `json:"exchange" validate:"required"`
}

// CandleDraft is the normalized form of one daily quote row, ready for
// persistence. Prices are fixed-point decimals end to end; trade count,
// share volume and turnover are optional because the exchanges publish
// blanks for untraded securities.
type CandleDraft struct {
	Stock     StockDraft          `json:"stock" validate:"required"`
	Date      time.Time           `json:"date" validate:"required"`
	Open      decimal.Decimal     `json:"open"`
	High      decimal.Decimal     `json:"high"`
	Low       decimal.Decimal     `json:"low"`
	Close     decimal.Decimal     `json:"close"`
	PrevClose decimal.Decimal     `json:"prev_close"`
	Trades    *int64              `json:"trades,omitempty"`
	Shares    *int64              `json:"shares,omitempty"`
	Turnover  decimal.NullDecimal `json:"turnover,omitempty"`
}

// PriceRangeOK reports whether open, close and previous close all sit
// inside the [low, high] band. Violations are suspicious but not fatal;
// exchanges do publish such rows on adjustment days.
func (c CandleDraft) PriceRangeOK() bool {
	if c.Low.GreaterThan(c.High) {
		return false
	}
	for _, p := range []decimal.Decimal{c.Open, c.Close, c.PrevClose} {
		if p.LessThan(c.Low) || p.GreaterThan(c.High) {
			return false
		}
	}
	return true
}
