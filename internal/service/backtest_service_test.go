package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/backtest-service/internal/config"
	"github.com/yourorg/backtest-service/internal/model"
	"github.com/yourorg/backtest-service/internal/strategy"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

type stubBarSource struct {
	bars map[string][]model.Bar
	err  error
}

func (s *stubBarSource) GetOHLCV(ctx context.Context, symbol string, startDate, endDate time.Time) ([]model.Bar, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.bars[symbol], nil
}

func trendingBars(symbol string, start time.Time, n int) []model.Bar {
	bars := make([]model.Bar, n)
	price := 100.0
	for i := 0; i < n; i++ {
		if i%4 == 3 {
			price -= 1
		} else {
			price += 2
		}
		bars[i] = model.Bar{
			Symbol: symbol,
			Date:   start.AddDate(0, 0, i),
			Open:   price,
			High:   price + 1,
			Low:    price - 1,
			Close:  price,
			Volume: 10000,
		}
	}
	return bars
}

func testConfig() config.BacktestConfig {
	return config.BacktestConfig{
		DefaultInitialCapital: 100000,
		DefaultCommissionRate: 0.001,
		MaxSymbols:            20,
		RunTimeout:            time.Minute,
	}
}

func testRequest() *model.BacktestRequest {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return &model.BacktestRequest{
		StrategyName:   "sma_crossover",
		Symbols:        []string{"AAPL"},
		StartDate:      start,
		EndDate:        start.AddDate(0, 0, 29),
		InitialCapital: 100000,
		CommissionRate: 0.001,
		StrategyParams: map[string]interface{}{
			"short_period": float64(3),
			"long_period":  float64(8),
		},
	}
}

func TestRunBacktestEndToEnd(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	source := &stubBarSource{bars: map[string][]model.Bar{
		"AAPL": trendingBars("AAPL", start, 30),
	}}
	svc := NewBacktestService(source, nil, nil, nil, testConfig(), testLogger())

	result, err := svc.RunBacktest(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("RunBacktest failed: %v", err)
	}

	if result.BacktestID == "" {
		t.Error("backtest ID must be assigned")
	}
	if result.Name != "SMA Crossover Backtest" {
		t.Errorf("default name = %q", result.Name)
	}
	if result.StrategyName != "sma_crossover" {
		t.Errorf("strategy name = %q", result.StrategyName)
	}
	if result.StartDate != "2024-01-01" {
		t.Errorf("start date = %q, want 2024-01-01", result.StartDate)
	}
	if len(result.EquityCurve) != 30 {
		t.Errorf("equity curve has %d points, want 30", len(result.EquityCurve))
	}
	if result.Metrics.TotalReturn == 0 && len(result.Trades) > 0 {
		t.Log("zero total return with trades is suspicious but not impossible")
	}
}

func TestRunBacktestUnknownStrategy(t *testing.T) {
	svc := NewBacktestService(&stubBarSource{}, nil, nil, nil, testConfig(), testLogger())

	request := testRequest()
	request.StrategyName = "no_such_strategy"

	if _, err := svc.RunBacktest(context.Background(), request); !errors.Is(err, strategy.ErrUnknown) {
		t.Fatalf("expected strategy.ErrUnknown, got: %v", err)
	}
}

func TestRunBacktestInvalidDateRange(t *testing.T) {
	svc := NewBacktestService(&stubBarSource{}, nil, nil, nil, testConfig(), testLogger())

	request := testRequest()
	request.StartDate, request.EndDate = request.EndDate, request.StartDate

	if _, err := svc.RunBacktest(context.Background(), request); err == nil {
		t.Fatal("inverted date range must be rejected")
	}
}

func TestRunBacktestTooManySymbols(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSymbols = 2
	svc := NewBacktestService(&stubBarSource{}, nil, nil, nil, cfg, testLogger())

	request := testRequest()
	request.Symbols = []string{"AAPL", "MSFT", "NVDA"}

	if _, err := svc.RunBacktest(context.Background(), request); err == nil {
		t.Fatal("symbol limit must be enforced")
	}
}

func TestRunBacktestBarSourceFailure(t *testing.T) {
	source := &stubBarSource{err: errors.New("connection refused")}
	svc := NewBacktestService(source, nil, nil, nil, testConfig(), testLogger())

	if _, err := svc.RunBacktest(context.Background(), testRequest()); err == nil {
		t.Fatal("bar source failure must abort the run")
	}
}

func TestRunBacktestMissingSymbolData(t *testing.T) {
	// A symbol with no bars ends the run flat; it does not abort it.
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	source := &stubBarSource{bars: map[string][]model.Bar{
		"AAPL": trendingBars("AAPL", start, 30),
	}}
	svc := NewBacktestService(source, nil, nil, nil, testConfig(), testLogger())

	request := testRequest()
	request.Symbols = []string{"AAPL", "UNKNOWN"}

	result, err := svc.RunBacktest(context.Background(), request)
	if err != nil {
		t.Fatalf("RunBacktest failed: %v", err)
	}
	for _, trade := range result.Trades {
		if trade.Symbol == "UNKNOWN" {
			t.Errorf("no trade may occur for a symbol without data: %+v", trade)
		}
	}
}

func TestRunBacktestAppliesDefaults(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	source := &stubBarSource{bars: map[string][]model.Bar{
		"AAPL": trendingBars("AAPL", start, 10),
	}}
	svc := NewBacktestService(source, nil, nil, nil, testConfig(), testLogger())

	request := testRequest()
	request.InitialCapital = 0

	result, err := svc.RunBacktest(context.Background(), request)
	if err != nil {
		t.Fatalf("RunBacktest failed: %v", err)
	}
	if result.InitialCapital != 100000 {
		t.Errorf("initial capital = %f, want the configured default", result.InitialCapital)
	}
}
