package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/yourorg/backtest-service/internal/model"
)

// BacktestRepository persists completed backtest runs: the summary row,
// metrics JSON, the trade log, and the equity curve.
type BacktestRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewBacktestRepository creates a new backtest repository
func NewBacktestRepository(db *sqlx.DB, logger *zap.Logger) *BacktestRepository {
	return &BacktestRepository{
		db:     db,
		logger: logger,
	}
}

// SaveResult stores a completed run in a single transaction. Results are
// append-only; a run is never updated after completion.
func (r *BacktestRepository) SaveResult(ctx context.Context, result *model.BacktestResult) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		r.logger.Error("Failed to begin transaction", zap.Error(err))
		return err
	}
	defer tx.Rollback()

	symbolsJSON, err := json.Marshal(result.Symbols)
	if err != nil {
		return fmt.Errorf("failed to marshal symbols: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO backtests (
			backtest_id, name, strategy_name, symbols, start_date, end_date,
			initial_capital, final_equity, metrics, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
	`,
		result.BacktestID,
		result.Name,
		result.StrategyName,
		symbolsJSON,
		result.StartDate,
		result.EndDate,
		result.InitialCapital,
		result.FinalEquity,
		result.Metrics,
	)
	if err != nil {
		r.logger.Error("Failed to insert backtest",
			zap.Error(err),
			zap.String("backtest_id", result.BacktestID))
		return fmt.Errorf("failed to insert backtest: %w", err)
	}

	tradeStmt, err := tx.PreparexContext(ctx, `
		INSERT INTO backtest_trades (backtest_id, symbol, side, quantity, price, commission, trade_date, seq)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`)
	if err != nil {
		return err
	}
	defer tradeStmt.Close()

	for i, trade := range result.Trades {
		if _, err := tradeStmt.ExecContext(ctx,
			result.BacktestID, trade.Symbol, trade.Side, trade.Quantity,
			trade.Price, trade.Commission, trade.Date, i,
		); err != nil {
			return fmt.Errorf("failed to insert trade %d: %w", i, err)
		}
	}

	pointStmt, err := tx.PreparexContext(ctx, `
		INSERT INTO equity_points (backtest_id, point_date, equity, cash, seq)
		VALUES ($1, $2, $3, $4, $5)
	`)
	if err != nil {
		return err
	}
	defer pointStmt.Close()

	for i, point := range result.EquityCurve {
		if _, err := pointStmt.ExecContext(ctx,
			result.BacktestID, point.Date, point.Equity, point.Cash, i,
		); err != nil {
			return fmt.Errorf("failed to insert equity point %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// GetResult reassembles a stored run. Returns nil when the ID is unknown.
func (r *BacktestRepository) GetResult(ctx context.Context, backtestID string) (*model.BacktestResult, error) {
	var row struct {
		BacktestID     string                   `db:"backtest_id"`
		Name           string                   `db:"name"`
		StrategyName   string                   `db:"strategy_name"`
		Symbols        []byte                   `db:"symbols"`
		StartDate      string                   `db:"start_date"`
		EndDate        string                   `db:"end_date"`
		InitialCapital float64                  `db:"initial_capital"`
		FinalEquity    float64                  `db:"final_equity"`
		Metrics        model.PerformanceMetrics `db:"metrics"`
	}

	err := r.db.GetContext(ctx, &row, `
		SELECT backtest_id, name, strategy_name, symbols,
		       to_char(start_date, 'YYYY-MM-DD') AS start_date,
		       to_char(end_date, 'YYYY-MM-DD') AS end_date,
		       initial_capital, final_equity, metrics
		FROM backtests
		WHERE backtest_id = $1
	`, backtestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get backtest",
			zap.Error(err),
			zap.String("backtest_id", backtestID))
		return nil, fmt.Errorf("failed to get backtest: %w", err)
	}

	result := &model.BacktestResult{
		BacktestID:     row.BacktestID,
		Name:           row.Name,
		StrategyName:   row.StrategyName,
		StartDate:      row.StartDate,
		EndDate:        row.EndDate,
		InitialCapital: row.InitialCapital,
		FinalEquity:    row.FinalEquity,
		Metrics:        row.Metrics,
	}
	if err := json.Unmarshal(row.Symbols, &result.Symbols); err != nil {
		return nil, fmt.Errorf("failed to unmarshal symbols: %w", err)
	}

	err = r.db.SelectContext(ctx, &result.Trades, `
		SELECT symbol, side, quantity, price, commission,
		       to_char(trade_date, 'YYYY-MM-DD') AS trade_date
		FROM backtest_trades
		WHERE backtest_id = $1
		ORDER BY seq
	`, backtestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get trades: %w", err)
	}

	err = r.db.SelectContext(ctx, &result.EquityCurve, `
		SELECT to_char(point_date, 'YYYY-MM-DD') AS point_date, equity, cash
		FROM equity_points
		WHERE backtest_id = $1
		ORDER BY seq
	`, backtestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get equity curve: %w", err)
	}

	return result, nil
}

// ListResults returns stored run summaries, newest first.
func (r *BacktestRepository) ListResults(ctx context.Context, page, limit int) ([]model.BacktestSummary, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}
	offset := (page - 1) * limit

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM backtests`); err != nil {
		return nil, 0, fmt.Errorf("failed to count backtests: %w", err)
	}

	rows, err := r.db.QueryxContext(ctx, `
		SELECT backtest_id, name, strategy_name, symbols,
		       to_char(start_date, 'YYYY-MM-DD') AS start_date,
		       to_char(end_date, 'YYYY-MM-DD') AS end_date,
		       initial_capital, final_equity, created_at
		FROM backtests
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list backtests", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to list backtests: %w", err)
	}
	defer rows.Close()

	var summaries []model.BacktestSummary
	for rows.Next() {
		var summary model.BacktestSummary
		var symbolsJSON []byte
		if err := rows.Scan(
			&summary.BacktestID, &summary.Name, &summary.StrategyName, &symbolsJSON,
			&summary.StartDate, &summary.EndDate,
			&summary.InitialCapital, &summary.FinalEquity, &summary.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan backtest summary: %w", err)
		}
		if err := json.Unmarshal(symbolsJSON, &summary.Symbols); err != nil {
			return nil, 0, fmt.Errorf("failed to unmarshal symbols: %w", err)
		}
		summaries = append(summaries, summary)
	}

	return summaries, total, rows.Err()
}

// DeleteResult removes a stored run and its trades and equity points.
func (r *BacktestRepository) DeleteResult(ctx context.Context, backtestID string) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM backtest_trades WHERE backtest_id = $1`, backtestID); err != nil {
		return false, fmt.Errorf("failed to delete trades: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM equity_points WHERE backtest_id = $1`, backtestID); err != nil {
		return false, fmt.Errorf("failed to delete equity points: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM backtests WHERE backtest_id = $1`, backtestID)
	if err != nil {
		return false, fmt.Errorf("failed to delete backtest: %w", err)
	}
	affected, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return affected > 0, nil
}
