package strategy

import (
	"fmt"
	"time"

	"github.com/yourorg/backtest-service/internal/indicator"
	"github.com/yourorg/backtest-service/internal/portfolio"
)

func init() {
	mustRegister("sma_crossover", func(params Params) (Strategy, error) {
		return NewSMACrossover(params), nil
	})
}

// SMACrossover is a classic trend-following strategy: buy when the short
// SMA is above the long SMA (golden cross), sell the whole position when
// it drops below (death cross).
//
// Parameters: short_period (default 50), long_period (default 200),
// position_size in shares per entry (default 100).
type SMACrossover struct {
	shortPeriod  int
	longPeriod   int
	positionSize float64
}

// NewSMACrossover builds the strategy from caller parameters.
func NewSMACrossover(params Params) *SMACrossover {
	return &SMACrossover{
		shortPeriod:  params.Int("short_period", 50),
		longPeriod:   params.Int("long_period", 200),
		positionSize: params.Float("position_size", 100),
	}
}

func (s *SMACrossover) Name() string {
	return "SMA Crossover"
}

func (s *SMACrossover) Indicators() []indicator.Config {
	return []indicator.Config{
		{Name: "sma", Params: indicator.Params{"period": float64(s.shortPeriod)}},
		{Name: "sma", Params: indicator.Params{"period": float64(s.longPeriod)}},
	}
}

func (s *SMACrossover) OnStart(symbols []string, p *portfolio.Portfolio) error {
	return nil
}

func (s *SMACrossover) OnBar(date time.Time, data map[string]*Snapshot, p *portfolio.Portfolio) error {
	shortKey := smaKey(s.shortPeriod)
	longKey := smaKey(s.longPeriod)

	// Sorted iteration keeps the order of fills stable when cash can only
	// cover some of the signals on a bar.
	for _, symbol := range SortedSymbols(data) {
		bar := data[symbol]
		smaShort, okShort := bar.Indicator(shortKey)
		smaLong, okLong := bar.Indicator(longKey)
		if !okShort || !okLong {
			continue
		}

		position := p.Position(symbol)

		if smaShort > smaLong && !position.IsOpen() {
			// Rejections (e.g. not enough cash) are non-fatal; skip the bar.
			p.Buy(symbol, s.positionSize, bar.Close, date)
		} else if smaShort < smaLong && position.IsOpen() {
			p.Sell(symbol, position.Quantity, bar.Close, date)
		}
	}
	return nil
}

func (s *SMACrossover) OnEnd(p *portfolio.Portfolio) error {
	return nil
}

func smaKey(period int) string {
	return fmt.Sprintf("sma_%d", period)
}
