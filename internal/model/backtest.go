package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// BacktestRequest represents the input parameters for a backtest run
type BacktestRequest struct {
	Name           string                 `json:"name,omitempty"`
	StrategyName   string                 `json:"strategy_name" binding:"required"`
	Symbols        []string               `json:"symbols" binding:"required,min=1"`
	StartDate      time.Time              `json:"start_date" binding:"required" time_format:"2006-01-02"`
	EndDate        time.Time              `json:"end_date" binding:"required" time_format:"2006-01-02"`
	InitialCapital float64                `json:"initial_capital" binding:"required,gt=0"`
	CommissionRate float64                `json:"commission_rate" binding:"commission_rate"`
	StrategyParams map[string]interface{} `json:"strategy_params,omitempty"`
}

// PerformanceMetrics represents the computed performance statistics of a run
type PerformanceMetrics struct {
	TotalReturn          float64 `json:"total_return" db:"total_return"`
	TotalReturnPct       float64 `json:"total_return_pct" db:"total_return_pct"`
	AnnualizedReturnPct  float64 `json:"annualized_return_pct" db:"annualized_return_pct"`
	MaxDrawdownPct       float64 `json:"max_drawdown_pct" db:"max_drawdown_pct"`
	WinRate              float64 `json:"win_rate" db:"win_rate"`
	TotalTrades          int     `json:"total_trades" db:"total_trades"`
	WinningTrades        int     `json:"winning_trades" db:"winning_trades"`
	LosingTrades         int     `json:"losing_trades" db:"losing_trades"`
	SharpeRatio          float64 `json:"sharpe_ratio" db:"sharpe_ratio"`
	ProfitFactor         float64 `json:"profit_factor" db:"profit_factor"`
	AvgTradeReturnPct    float64 `json:"avg_trade_return_pct" db:"avg_trade_return_pct"`
	MaxConsecutiveWins   int     `json:"max_consecutive_wins" db:"max_consecutive_wins"`
	MaxConsecutiveLosses int     `json:"max_consecutive_losses" db:"max_consecutive_losses"`
}

// Value implements the driver.Valuer interface for PerformanceMetrics
func (m PerformanceMetrics) Value() (driver.Value, error) {
	return json.Marshal(m)
}

// Scan implements the sql.Scanner interface for PerformanceMetrics
func (m *PerformanceMetrics) Scan(value interface{}) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(b, m)
}

// TradeRecord represents a single executed trade on the wire
type TradeRecord struct {
	Symbol     string  `json:"symbol" db:"symbol"`
	Side       string  `json:"side" db:"side"`
	Quantity   float64 `json:"quantity" db:"quantity"`
	Price      float64 `json:"price" db:"price"`
	Commission float64 `json:"commission" db:"commission"`
	Date       string  `json:"date" db:"trade_date"`
}

// EquityPoint represents one equity snapshot taken at a bar close
type EquityPoint struct {
	Date   string  `json:"date" db:"point_date"`
	Equity float64 `json:"equity" db:"equity"`
	Cash   float64 `json:"cash" db:"cash"`
}

// BacktestResult represents the complete, immutable result of a backtest run
type BacktestResult struct {
	BacktestID     string             `json:"backtest_id"`
	Name           string             `json:"name"`
	StrategyName   string             `json:"strategy_name"`
	Symbols        []string           `json:"symbols"`
	StartDate      string             `json:"start_date"`
	EndDate        string             `json:"end_date"`
	InitialCapital float64            `json:"initial_capital"`
	FinalEquity    float64            `json:"final_equity"`
	Metrics        PerformanceMetrics `json:"metrics"`
	Trades         []TradeRecord      `json:"trades"`
	EquityCurve    []EquityPoint      `json:"equity_curve"`
}

// BacktestSummary represents a stored backtest for listing
type BacktestSummary struct {
	BacktestID     string    `json:"backtest_id" db:"backtest_id"`
	Name           string    `json:"name" db:"name"`
	StrategyName   string    `json:"strategy_name" db:"strategy_name"`
	Symbols        []string  `json:"symbols" db:"-"`
	StartDate      string    `json:"start_date" db:"start_date"`
	EndDate        string    `json:"end_date" db:"end_date"`
	InitialCapital float64   `json:"initial_capital" db:"initial_capital"`
	FinalEquity    float64   `json:"final_equity" db:"final_equity"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
