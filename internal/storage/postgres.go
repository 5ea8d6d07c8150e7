package storage

import (
	"context"
	"errors"
	"log/slog"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "github.com/anuradhakorde/candlestick-patterns/internal/errors"
	"github.com/anuradhakorde/candlestick-patterns/pkg/contracts/domain"
)

// PostgresStore is the production Store backed by PostgreSQL through GORM.
type PostgresStore struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewPostgresStore connects to the database behind dsn. A nil logger
// falls back to slog.Default().
func NewPostgresStore(dsn string, logger *slog.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, apperrors.NewStorageError("failed to connect to postgres", err)
	}

	return &PostgresStore{db: db, logger: logger}, nil
}

// Migrate creates or updates the stocks, candlesticks and ingestions
// tables.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	err := s.db.WithContext(ctx).AutoMigrate(&Stock{}, &Candlestick{}, &IngestionLog{})
	if err != nil {
		return apperrors.NewStorageError("failed to migrate schema", err)
	}
	return nil
}

// Ping verifies the connection is alive.
func (s *PostgresStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return apperrors.NewStorageError("failed to access connection pool", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return apperrors.NewStorageError("database is unreachable", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return apperrors.NewStorageError("failed to access connection pool", err)
	}
	return sqlDB.Close()
}

// Begin opens one file's transaction.
func (s *PostgresStore) Begin(ctx context.Context) (UnitOfWork, error) {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, apperrors.NewStorageError("failed to begin transaction", tx.Error)
	}
	return &postgresUnitOfWork{tx: tx}, nil
}

type postgresUnitOfWork struct {
	tx *gorm.DB
}

func (u *postgresUnitOfWork) UpsertStock(ctx context.Context, draft domain.StockDraft) (StockResult, error) {
	tx := u.tx.WithContext(ctx)

	var existing Stock
	err := tx.Where("stock_symbol = ?", draft.Symbol).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		rec := newStock(draft)
		if err := tx.Create(&rec).Error; err != nil {
			return StockResult{}, apperrors.NewStorageError("failed to create stock", err).
				WithContext("symbol", draft.Symbol)
		}
		return StockResult{ID: rec.StockID, Created: true}, nil
	}
	if err != nil {
		return StockResult{}, apperrors.NewStorageError("failed to look up stock", err).
			WithContext("symbol", draft.Symbol)
	}

	if existing.Name == draft.Name && existing.Exchange == draft.Exchange && existing.Group == draft.Group {
		return StockResult{ID: existing.StockID}, nil
	}

	updates := map[string]interface{}{
		"stock_name":     draft.Name,
		"stock_exchange": draft.Exchange,
		"stock_group":    draft.Group,
	}
	if err := tx.Model(&Stock{}).Where("stock_id = ?", existing.StockID).Updates(updates).Error; err != nil {
		return StockResult{}, apperrors.NewStorageError("failed to update stock", err).
			WithContext("symbol", draft.Symbol)
	}
	return StockResult{ID: existing.StockID, Updated: true}, nil
}

func (u *postgresUnitOfWork) InsertCandle(ctx context.Context, stockID int64, draft domain.CandleDraft) (bool, error) {
	rec := newCandlestick(stockID, draft)

	result := u.tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "stock_id"}, {Name: "candle_date"}},
		DoNothing: true,
	}).Create(&rec)
	if result.Error != nil {
		return false, apperrors.NewStorageError("failed to insert candlestick", result.Error).
			WithContext("stock_id", stockID).
			WithContext("date", draft.Date.Format("2006-01-02"))
	}

	// RowsAffected == 0 means the (stock, date) pair already exists and
	// the conflict clause swallowed the insert.
	return result.RowsAffected > 0, nil
}

func (u *postgresUnitOfWork) RecordIngestion(ctx context.Context, rec domain.IngestionRecord) error {
	row := newIngestionLog(rec)
	if err := u.tx.WithContext(ctx).Create(&row).Error; err != nil {
		return apperrors.NewStorageError("failed to record ingestion", err).
			WithContext("filename", rec.Filename)
	}
	return nil
}

func (u *postgresUnitOfWork) Commit() error {
	if err := u.tx.Commit().Error; err != nil {
		return apperrors.NewStorageError("failed to commit transaction", err)
	}
	return nil
}

func (u *postgresUnitOfWork) Rollback() error {
	if err := u.tx.Rollback().Error; err != nil {
		return apperrors.NewStorageError("failed to roll back transaction", err)
	}
	return nil
}
