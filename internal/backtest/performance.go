package backtest

import (
	"math"

	"github.com/yourorg/backtest-service/internal/model"
	"github.com/yourorg/backtest-service/internal/portfolio"
)

// tradingDaysPerYear is the annualization convention used throughout:
// 252 trading sessions per year, so annualized return is
// (final/initial)^(252/bars)-1 and Sharpe scales by sqrt(252).
const tradingDaysPerYear = 252

// CalculatePerformance derives the standardized performance statistics from
// a completed run's equity curve and trade log. Conventions:
//
//   - Sharpe assumes a zero risk-free rate and is 0 when the return
//     standard deviation is 0 or fewer than two equity points exist.
//   - Round trips pair each SELL with the average-cost basis (commission
//     included) held at the time of sale. Breakeven round trips count as
//     losses.
//   - Profit factor is reported as 0 when gross loss is 0 (undefined).
func CalculatePerformance(result *Result) model.PerformanceMetrics {
	if result == nil || len(result.EquityCurve) == 0 {
		return model.PerformanceMetrics{}
	}

	initial := result.InitialCapital
	finalEquity := result.EquityCurve[len(result.EquityCurve)-1].Equity
	totalReturn := finalEquity - initial

	metrics := model.PerformanceMetrics{
		TotalReturn:         round2(totalReturn),
		TotalReturnPct:      round2(totalReturn / initial * 100),
		AnnualizedReturnPct: round2(annualizedReturn(result.EquityCurve, initial)),
		MaxDrawdownPct:      round2(maxDrawdown(result.EquityCurve)),
		SharpeRatio:         round4(sharpeRatio(result.EquityCurve)),
	}

	stats := tradeStatistics(result.Trades)
	metrics.WinRate = round2(stats.winRate)
	metrics.TotalTrades = stats.totalTrades
	metrics.WinningTrades = stats.winningTrades
	metrics.LosingTrades = stats.losingTrades
	metrics.ProfitFactor = round4(stats.profitFactor)
	metrics.AvgTradeReturnPct = round2(stats.avgTradeReturnPct)
	metrics.MaxConsecutiveWins = stats.maxConsecutiveWins
	metrics.MaxConsecutiveLosses = stats.maxConsecutiveLosses

	return metrics
}

// annualizedReturn compounds the total return over the elapsed trading
// period, with the year fixed at 252 sessions.
func annualizedReturn(curve []model.EquityPoint, initialCapital float64) float64 {
	if len(curve) < 2 || initialCapital <= 0 {
		return 0
	}

	finalEquity := curve[len(curve)-1].Equity
	ratio := finalEquity / initialCapital
	years := float64(len(curve)) / tradingDaysPerYear

	if years <= 0 || ratio <= 0 {
		return 0
	}
	return (math.Pow(ratio, 1.0/years) - 1.0) * 100
}

// maxDrawdown reports the most negative percentage decline from the running
// peak. It is always <= 0, and 0 when equity never declines.
func maxDrawdown(curve []model.EquityPoint) float64 {
	if len(curve) == 0 {
		return 0
	}

	peak := curve[0].Equity
	maxDD := 0.0
	for _, point := range curve {
		if point.Equity > peak {
			peak = point.Equity
		}
		if peak <= 0 {
			continue
		}
		dd := (point.Equity - peak) / peak * 100
		if dd < maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// sharpeRatio is mean over standard deviation of per-bar equity returns,
// annualized by sqrt(252). Zero risk-free rate.
func sharpeRatio(curve []model.EquityPoint) float64 {
	if len(curve) < 2 {
		return 0
	}

	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			continue
		}
		returns = append(returns, curve[i].Equity/prev-1)
	}
	if len(returns) < 2 {
		return 0
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		diff := r - mean
		variance += diff * diff
	}
	variance /= float64(len(returns) - 1)

	std := math.Sqrt(variance)
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(tradingDaysPerYear)
}

type tradeStats struct {
	winRate              float64
	totalTrades          int
	winningTrades        int
	losingTrades         int
	profitFactor         float64
	avgTradeReturnPct    float64
	maxConsecutiveWins   int
	maxConsecutiveLosses int
}

// tradeStatistics replays the trade log against a per-symbol average-cost
// basis and closes one round trip per SELL. The basis includes buy
// commissions; sell proceeds are net of the sell commission.
func tradeStatistics(trades []portfolio.Trade) tradeStats {
	type basis struct {
		quantity float64
		cost     float64 // total cost including commissions
	}

	open := make(map[string]*basis)
	var roundTrips []float64

	for _, trade := range trades {
		switch trade.Side {
		case portfolio.SideBuy:
			b := open[trade.Symbol]
			if b == nil {
				b = &basis{}
				open[trade.Symbol] = b
			}
			b.quantity += trade.Quantity
			b.cost += trade.Quantity*trade.Price + trade.Commission

		case portfolio.SideSell:
			b := open[trade.Symbol]
			if b == nil || b.quantity <= 0 {
				continue
			}
			avgCost := b.cost / b.quantity
			costOfSold := trade.Quantity * avgCost
			proceeds := trade.Quantity*trade.Price - trade.Commission
			if costOfSold > 0 {
				roundTrips = append(roundTrips, (proceeds-costOfSold)/costOfSold*100)
			}
			b.quantity -= trade.Quantity
			b.cost -= costOfSold
			if b.quantity < 1e-9 {
				b.quantity = 0
				b.cost = 0
			}
		}
	}

	total := len(roundTrips)
	if total == 0 {
		return tradeStats{}
	}

	var winning, losing int
	var gains, losses, sum float64
	for _, r := range roundTrips {
		sum += r
		if r > 0 {
			winning++
			gains += r
		} else {
			losing++
			losses += -r
		}
	}

	profitFactor := 0.0
	if losses > 0 {
		profitFactor = gains / losses
	}

	maxWins, maxLosses := consecutiveStreaks(roundTrips)

	return tradeStats{
		winRate:              float64(winning) / float64(total) * 100,
		totalTrades:          total,
		winningTrades:        winning,
		losingTrades:         losing,
		profitFactor:         profitFactor,
		avgTradeReturnPct:    sum / float64(total),
		maxConsecutiveWins:   maxWins,
		maxConsecutiveLosses: maxLosses,
	}
}

// consecutiveStreaks scans the ordered round-trip outcomes once and returns
// the longest winning and losing streaks.
func consecutiveStreaks(returns []float64) (int, int) {
	var maxWins, maxLosses, curWins, curLosses int
	for _, r := range returns {
		if r > 0 {
			curWins++
			curLosses = 0
			if curWins > maxWins {
				maxWins = curWins
			}
		} else {
			curLosses++
			curWins = 0
			if curLosses > maxLosses {
				maxLosses = curLosses
			}
		}
	}
	return maxWins, maxLosses
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
