package strategy

import (
	"fmt"
	"time"

	"github.com/yourorg/backtest-service/internal/indicator"
	"github.com/yourorg/backtest-service/internal/portfolio"
)

func init() {
	mustRegister("rsi_mean_reversion", func(params Params) (Strategy, error) {
		return NewRSIMeanReversion(params), nil
	})
}

// RSIMeanReversion buys when RSI drops below the oversold threshold and
// sells the whole position when it rises above the overbought threshold.
//
// Parameters: rsi_period (default 14), oversold (default 30),
// overbought (default 70), position_size in shares per entry (default 100).
type RSIMeanReversion struct {
	rsiPeriod    int
	oversold     float64
	overbought   float64
	positionSize float64
}

// NewRSIMeanReversion builds the strategy from caller parameters.
func NewRSIMeanReversion(params Params) *RSIMeanReversion {
	return &RSIMeanReversion{
		rsiPeriod:    params.Int("rsi_period", 14),
		oversold:     params.Float("oversold", 30),
		overbought:   params.Float("overbought", 70),
		positionSize: params.Float("position_size", 100),
	}
}

func (s *RSIMeanReversion) Name() string {
	return "RSI Mean Reversion"
}

func (s *RSIMeanReversion) Indicators() []indicator.Config {
	return []indicator.Config{
		{Name: "rsi", Params: indicator.Params{"period": float64(s.rsiPeriod)}},
	}
}

func (s *RSIMeanReversion) OnStart(symbols []string, p *portfolio.Portfolio) error {
	return nil
}

func (s *RSIMeanReversion) OnBar(date time.Time, data map[string]*Snapshot, p *portfolio.Portfolio) error {
	key := fmt.Sprintf("rsi_%d", s.rsiPeriod)

	for _, symbol := range SortedSymbols(data) {
		bar := data[symbol]
		rsi, ok := bar.Indicator(key)
		if !ok {
			continue
		}

		position := p.Position(symbol)

		if rsi < s.oversold && !position.IsOpen() {
			p.Buy(symbol, s.positionSize, bar.Close, date)
		} else if rsi > s.overbought && position.IsOpen() {
			p.Sell(symbol, position.Quantity, bar.Close, date)
		}
	}
	return nil
}

func (s *RSIMeanReversion) OnEnd(p *portfolio.Portfolio) error {
	return nil
}
