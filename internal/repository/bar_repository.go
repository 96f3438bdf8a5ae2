package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/yourorg/backtest-service/internal/model"
)

// BarRepository reads historical OHLCV bars from the service database.
// Bars are returned sorted ascending by date with no duplicate dates per
// symbol; they are treated as immutable reference data during runs.
type BarRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewBarRepository creates a new bar repository
func NewBarRepository(db *sqlx.DB, logger *zap.Logger) *BarRepository {
	return &BarRepository{
		db:     db,
		logger: logger,
	}
}

// GetOHLCV retrieves the bars for a symbol within the date range, inclusive.
func (r *BarRepository) GetOHLCV(ctx context.Context, symbol string, startDate, endDate time.Time) ([]model.Bar, error) {
	query := `
		SELECT symbol, bar_date, open, high, low, close, volume
		FROM ohlcv_bars
		WHERE symbol = $1 AND bar_date >= $2 AND bar_date <= $3
		ORDER BY bar_date
	`

	var bars []model.Bar
	err := r.db.SelectContext(ctx, &bars, query, symbol, startDate, endDate)
	if err != nil {
		r.logger.Error("Failed to get OHLCV bars",
			zap.Error(err),
			zap.String("symbol", symbol))
		return nil, fmt.Errorf("failed to get bars for %s: %w", symbol, err)
	}

	return bars, nil
}

// GetDataRange returns the first and last bar dates stored for a symbol.
func (r *BarRepository) GetDataRange(ctx context.Context, symbol string) (*model.DateRange, error) {
	query := `
		SELECT MIN(bar_date) AS start, MAX(bar_date) AS "end"
		FROM ohlcv_bars
		WHERE symbol = $1
	`

	var dataRange struct {
		Start *time.Time `db:"start"`
		End   *time.Time `db:"end"`
	}
	err := r.db.GetContext(ctx, &dataRange, query, symbol)
	if err != nil {
		r.logger.Error("Failed to get data range",
			zap.Error(err),
			zap.String("symbol", symbol))
		return nil, fmt.Errorf("failed to get data range for %s: %w", symbol, err)
	}

	if dataRange.Start == nil || dataRange.End == nil {
		return nil, nil
	}
	return &model.DateRange{Start: *dataRange.Start, End: *dataRange.End}, nil
}

// InsertBars inserts a batch of bars, upserting on (symbol, bar_date).
// Used by the batch import endpoint; the engine itself never writes bars.
func (r *BarRepository) InsertBars(ctx context.Context, bars []model.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		r.logger.Error("Failed to begin transaction", zap.Error(err))
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO ohlcv_bars (symbol, bar_date, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (symbol, bar_date)
		DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume
	`)
	if err != nil {
		r.logger.Error("Failed to prepare statement", zap.Error(err))
		return err
	}
	defer stmt.Close()

	for _, bar := range bars {
		_, err = stmt.ExecContext(ctx,
			bar.Symbol,
			bar.Date,
			bar.Open,
			bar.High,
			bar.Low,
			bar.Close,
			bar.Volume,
		)
		if err != nil {
			r.logger.Error("Failed to insert bar",
				zap.Error(err),
				zap.String("symbol", bar.Symbol))
			return fmt.Errorf("failed to insert bar for %s: %w", bar.Symbol, err)
		}
	}

	return tx.Commit()
}
