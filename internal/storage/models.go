package storage

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/anuradhakorde/candlestick-patterns/pkg/contracts/domain"
)

// Stock is one listed security, unique by ticker symbol.
type Stock struct {
	StockID   int64     `gorm:"column:stock_id;primaryKey;autoIncrement"`
	Symbol    string    `gorm:"column:stock_symbol;size:32;not null;uniqueIndex:idx_stocks_symbol"`
	Name      string    `gorm:"column:stock_name;size:255"`
	Exchange  string    `gorm:"column:stock_exchange;size:8"`
	Group     string    `gorm:"column:stock_group;size:8"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName overrides the default table name
func (Stock) TableName() string {
	return "stocks"
}

// Candlestick is one stock's daily quote, unique per (stock, date).
// Prices are NUMERIC columns scanned into fixed-point decimals; the
// count and turnover columns are nullable because exchanges publish
// blanks for untraded securities.
type Candlestick struct {
	CandleID       int64               `gorm:"column:candle_id;primaryKey;autoIncrement"`
	StockID        int64               `gorm:"column:stock_id;not null;uniqueIndex:idx_candles_stock_date,priority:1"`
	CandleDate     time.Time           `gorm:"column:candle_date;type:date;not null;uniqueIndex:idx_candles_stock_date,priority:2"`
	OpenPrice      decimal.Decimal     `gorm:"column:open_price;type:numeric(16,4);not null"`
	HighPrice      decimal.Decimal     `gorm:"column:high_price;type:numeric(16,4);not null"`
	LowPrice       decimal.Decimal     `gorm:"column:low_price;type:numeric(16,4);not null"`
	ClosePrice     decimal.Decimal     `gorm:"column:close_price;type:numeric(16,4);not null"`
	PrevClosePrice decimal.Decimal     `gorm:"column:prev_close_price;type:numeric(16,4);not null"`
	NumberOfTrades *int64              `gorm:"column:number_of_trades"`
	NumberOfShares *int64              `gorm:"column:number_of_shares"`
	NetTurnover    decimal.NullDecimal `gorm:"column:net_turnover;type:numeric(20,4)"`
	CreatedAt      time.Time           `gorm:"column:created_at"`

	Stock *Stock `gorm:"foreignKey:StockID;references:StockID;constraint:OnDelete:CASCADE"`
}

// TableName overrides the default table name
func (Candlestick) TableName() string {
	return "candlesticks"
}

// IngestionLog is the audit row written with each successfully ingested
// file, inside the file's own transaction.
type IngestionLog struct {
	IngestionID    int64     `gorm:"column:ingestion_id;primaryKey;autoIncrement"`
	Filename       string    `gorm:"column:filename;size:255;not null"`
	Exchange       string    `gorm:"column:exchange;size:8"`
	TradeDate      time.Time `gorm:"column:trade_date;type:date"`
	StocksCreated  int       `gorm:"column:stocks_created"`
	CandlesCreated int       `gorm:"column:candles_created"`
	CandlesSkipped int       `gorm:"column:candles_skipped"`
	LoadedAt       time.Time `gorm:"column:loaded_at"`
}

// TableName overrides the default table name
func (IngestionLog) TableName() string {
	return "ingestions"
}

// newStock maps a draft onto a fresh stock row.
func newStock(draft domain.StockDraft) Stock {
	return Stock{
		Symbol:   draft.Symbol,
		Name:     draft.Name,
		Exchange: draft.Exchange,
		Group:    draft.Group,
	}
}

// newCandlestick maps a draft onto a candlestick row for stockID.
func newCandlestick(stockID int64, draft domain.CandleDraft) Candlestick {
	return Candlestick{
		StockID:        stockID,
		CandleDate:     draft.Date,
		OpenPrice:      draft.Open,
		HighPrice:      draft.High,
		LowPrice:       draft.Low,
		ClosePrice:     draft.Close,
		PrevClosePrice: draft.PrevClose,
		NumberOfTrades: draft.Trades,
		NumberOfShares: draft.Shares,
		NetTurnover:    draft.Turnover,
	}
}

// newIngestionLog maps an audit record onto its row.
func newIngestionLog(rec domain.IngestionRecord) IngestionLog {
	return IngestionLog{
		Filename:       rec.Filename,
		Exchange:       rec.Exchange,
		TradeDate:      rec.TradeDate,
		StocksCreated:  rec.StocksCreated,
		CandlesCreated: rec.CandlesCreated,
		CandlesSkipped: rec.CandlesSkipped,
		LoadedAt:       rec.LoadedAt,
	}
}
