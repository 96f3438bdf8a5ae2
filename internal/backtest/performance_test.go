package backtest

import (
	"math"
	"testing"
	"time"

	"github.com/yourorg/backtest-service/internal/model"
	"github.com/yourorg/backtest-service/internal/portfolio"
)

func curveFromEquities(equities []float64) []model.EquityPoint {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	points := make([]model.EquityPoint, len(equities))
	for i, equity := range equities {
		points[i] = model.EquityPoint{
			Date:   start.AddDate(0, 0, i).Format(model.DateLayout),
			Equity: equity,
			Cash:   equity,
		}
	}
	return points
}

func buy(symbol string, qty, price, commission float64) portfolio.Trade {
	return portfolio.Trade{Symbol: symbol, Side: portfolio.SideBuy, Quantity: qty, Price: price, Commission: commission}
}

func sell(symbol string, qty, price, commission float64) portfolio.Trade {
	return portfolio.Trade{Symbol: symbol, Side: portfolio.SideSell, Quantity: qty, Price: price, Commission: commission}
}

func TestCalculatePerformanceEmpty(t *testing.T) {
	if m := CalculatePerformance(nil); m != (model.PerformanceMetrics{}) {
		t.Errorf("nil result should yield zero metrics, got %+v", m)
	}
	if m := CalculatePerformance(&Result{InitialCapital: 100000}); m != (model.PerformanceMetrics{}) {
		t.Errorf("empty curve should yield zero metrics, got %+v", m)
	}
}

func TestTotalReturn(t *testing.T) {
	result := &Result{
		InitialCapital: 100000,
		EquityCurve:    curveFromEquities([]float64{99999, 100199, 99898.1}),
	}

	m := CalculatePerformance(result)
	if !almostEqual(m.TotalReturn, -101.9) {
		t.Errorf("total return = %f, want -101.9", m.TotalReturn)
	}
	if !almostEqual(m.TotalReturnPct, -0.1) {
		t.Errorf("total return pct = %f, want -0.1", m.TotalReturnPct)
	}
}

func TestMaxDrawdown(t *testing.T) {
	result := &Result{
		InitialCapital: 100,
		EquityCurve:    curveFromEquities([]float64{100, 110, 99, 105, 120}),
	}

	m := CalculatePerformance(result)
	// Peak 110 down to 99 is exactly -10%.
	if !almostEqual(m.MaxDrawdownPct, -10) {
		t.Errorf("max drawdown = %f, want -10", m.MaxDrawdownPct)
	}
}

func TestMaxDrawdownNonDecreasing(t *testing.T) {
	result := &Result{
		InitialCapital: 100,
		EquityCurve:    curveFromEquities([]float64{100, 100, 105, 110}),
	}

	m := CalculatePerformance(result)
	if m.MaxDrawdownPct != 0 {
		t.Errorf("non-decreasing curve drawdown = %f, want 0", m.MaxDrawdownPct)
	}
}

func TestSharpeZeroVariance(t *testing.T) {
	// A flat curve has identical per-bar returns and zero deviation.
	result := &Result{
		InitialCapital: 100,
		EquityCurve:    curveFromEquities([]float64{100, 100, 100, 100}),
	}

	m := CalculatePerformance(result)
	if m.SharpeRatio != 0 {
		t.Errorf("zero-variance Sharpe = %f, want 0", m.SharpeRatio)
	}
}

func TestSharpeSign(t *testing.T) {
	up := CalculatePerformance(&Result{
		InitialCapital: 100,
		EquityCurve:    curveFromEquities([]float64{100, 102, 103, 107, 108}),
	})
	if up.SharpeRatio <= 0 {
		t.Errorf("rising curve Sharpe = %f, want positive", up.SharpeRatio)
	}

	down := CalculatePerformance(&Result{
		InitialCapital: 100,
		EquityCurve:    curveFromEquities([]float64{100, 98, 97, 93, 92}),
	})
	if down.SharpeRatio >= 0 {
		t.Errorf("falling curve Sharpe = %f, want negative", down.SharpeRatio)
	}
}

func TestAnnualizedReturnFullYear(t *testing.T) {
	// 252 equity points with a 10% total gain annualize to 10%.
	equities := make([]float64, 252)
	for i := range equities {
		equities[i] = 100000 + float64(i)*(10000.0/251.0)
	}
	result := &Result{InitialCapital: 100000, EquityCurve: curveFromEquities(equities)}

	m := CalculatePerformance(result)
	if math.Abs(m.AnnualizedReturnPct-10) > 0.01 {
		t.Errorf("annualized return = %f, want ~10", m.AnnualizedReturnPct)
	}
}

func TestTradeStatisticsAvgCostBasis(t *testing.T) {
	// Two buys at 10 and 20 blend to an average cost of 15; selling 100 at
	// 18 is a 20% round trip against that blended basis.
	trades := []portfolio.Trade{
		buy("AAPL", 100, 10, 0),
		buy("AAPL", 100, 20, 0),
		sell("AAPL", 100, 18, 0),
	}
	result := &Result{
		InitialCapital: 100000,
		Trades:         trades,
		EquityCurve:    curveFromEquities([]float64{100000, 100300}),
	}

	m := CalculatePerformance(result)
	if m.TotalTrades != 1 {
		t.Fatalf("round trips = %d, want 1", m.TotalTrades)
	}
	if !almostEqual(m.AvgTradeReturnPct, 20) {
		t.Errorf("avg trade return = %f, want 20", m.AvgTradeReturnPct)
	}
	if m.WinningTrades != 1 || m.LosingTrades != 0 {
		t.Errorf("win/loss split = %d/%d, want 1/0", m.WinningTrades, m.LosingTrades)
	}
}

func TestTradeStatisticsCommissionInBasis(t *testing.T) {
	// Buy 100 at 10 with a 1.00 commission: basis 1001. Selling at 10.01
	// grosses 1001 but the sell commission makes it a losing round trip.
	trades := []portfolio.Trade{
		buy("AAPL", 100, 10, 1),
		sell("AAPL", 100, 10.01, 1.001),
	}
	result := &Result{
		InitialCapital: 100000,
		Trades:         trades,
		EquityCurve:    curveFromEquities([]float64{100000, 99998}),
	}

	m := CalculatePerformance(result)
	if m.LosingTrades != 1 || m.WinningTrades != 0 {
		t.Errorf("win/loss split = %d/%d, want 0/1", m.WinningTrades, m.LosingTrades)
	}
}

func TestBreakevenCountsAsLoss(t *testing.T) {
	trades := []portfolio.Trade{
		buy("AAPL", 100, 10, 0),
		sell("AAPL", 100, 10, 0),
	}
	result := &Result{
		InitialCapital: 100000,
		Trades:         trades,
		EquityCurve:    curveFromEquities([]float64{100000, 100000}),
	}

	m := CalculatePerformance(result)
	if m.LosingTrades != 1 {
		t.Errorf("breakeven round trip should count as a loss, got %d losses", m.LosingTrades)
	}
	if m.WinRate != 0 {
		t.Errorf("win rate = %f, want 0", m.WinRate)
	}
}

func TestProfitFactorUndefined(t *testing.T) {
	// All-winning logs have zero gross loss; profit factor reports 0.
	trades := []portfolio.Trade{
		buy("AAPL", 100, 10, 0),
		sell("AAPL", 100, 12, 0),
	}
	result := &Result{
		InitialCapital: 100000,
		Trades:         trades,
		EquityCurve:    curveFromEquities([]float64{100000, 100200}),
	}

	m := CalculatePerformance(result)
	if m.ProfitFactor != 0 {
		t.Errorf("profit factor with no losses = %f, want 0", m.ProfitFactor)
	}
	if m.WinRate != 100 {
		t.Errorf("win rate = %f, want 100", m.WinRate)
	}
}

func TestPartialSellsCloseMultipleRoundTrips(t *testing.T) {
	trades := []portfolio.Trade{
		buy("AAPL", 100, 10, 0),
		sell("AAPL", 50, 12, 0),
		sell("AAPL", 50, 8, 0),
	}
	result := &Result{
		InitialCapital: 100000,
		Trades:         trades,
		EquityCurve:    curveFromEquities([]float64{100000, 100000}),
	}

	m := CalculatePerformance(result)
	if m.TotalTrades != 2 {
		t.Fatalf("round trips = %d, want 2", m.TotalTrades)
	}
	if m.WinningTrades != 1 || m.LosingTrades != 1 {
		t.Errorf("win/loss split = %d/%d, want 1/1", m.WinningTrades, m.LosingTrades)
	}
	if !almostEqual(m.WinRate, 50) {
		t.Errorf("win rate = %f, want 50", m.WinRate)
	}
}

func TestSellWithoutPositionIgnored(t *testing.T) {
	trades := []portfolio.Trade{
		sell("AAPL", 100, 10, 0),
	}
	result := &Result{
		InitialCapital: 100000,
		Trades:         trades,
		EquityCurve:    curveFromEquities([]float64{100000, 100000}),
	}

	m := CalculatePerformance(result)
	if m.TotalTrades != 0 {
		t.Errorf("sell with no basis should close no round trips, got %d", m.TotalTrades)
	}
}

func TestConsecutiveStreaks(t *testing.T) {
	wins, losses := consecutiveStreaks([]float64{5, 3, -1, 2, -4, -2, -6, 1})
	if wins != 2 {
		t.Errorf("max consecutive wins = %d, want 2", wins)
	}
	if losses != 3 {
		t.Errorf("max consecutive losses = %d, want 3", losses)
	}

	wins, losses = consecutiveStreaks(nil)
	if wins != 0 || losses != 0 {
		t.Errorf("empty streaks = %d/%d, want 0/0", wins, losses)
	}
}

func TestRounding(t *testing.T) {
	if got := round2(-0.10194); !almostEqual(got, -0.1) {
		t.Errorf("round2 = %f, want -0.1", got)
	}
	if got := round4(1.23456); !almostEqual(got, 1.2346) {
		t.Errorf("round4 = %f, want 1.2346", got)
	}
}
