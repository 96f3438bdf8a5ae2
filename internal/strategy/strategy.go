package strategy

import (
	"sort"
	"time"

	"github.com/yourorg/backtest-service/internal/indicator"
	"github.com/yourorg/backtest-service/internal/portfolio"
)

// Snapshot is the read-only view of one symbol's market state on one bar:
// the OHLCV fields plus every precomputed indicator value as of that bar.
// Values from later bars are never present.
type Snapshot struct {
	Symbol string
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64

	// Indicators maps column keys (e.g. "sma_50") to the value at this bar.
	Indicators map[string]indicator.Value
}

// Indicator returns the named indicator value at this bar. The second
// return is false while the indicator is still warming up or the key was
// never requested.
func (s *Snapshot) Indicator(key string) (float64, bool) {
	v, ok := s.Indicators[key]
	if !ok || !v.Valid {
		return 0, false
	}
	return v.Float64, true
}

// Strategy is the capability contract for author-supplied trading logic.
// The engine treats implementations purely through this interface.
//
// OnBar is invoked once per timeline date with a snapshot per symbol that
// has data on that date, in ascending date order. Orders placed through
// the portfolio execute immediately at the prices the strategy passes
// (conventionally the snapshot close). An error from any hook aborts the
// run.
//
// Go map iteration order is random, so a strategy that ranges over the
// snapshot map directly can fill orders in a different sequence on every
// run when cash constrains which signals execute. Implementations must
// impose their own symbol order (see SortedSymbols) to keep runs over
// identical inputs reproducible.
type Strategy interface {
	// Name returns the strategy's identifying label.
	Name() string

	// Indicators declares the indicator series to precompute per symbol
	// before the run starts.
	Indicators() []indicator.Config

	// OnStart is called once before the first bar.
	OnStart(symbols []string, p *portfolio.Portfolio) error

	// OnBar is called for every timeline date with the per-symbol snapshots.
	OnBar(date time.Time, data map[string]*Snapshot, p *portfolio.Portfolio) error

	// OnEnd is called once after the last bar.
	OnEnd(p *portfolio.Portfolio) error
}

// SortedSymbols returns the snapshot map's symbols in ascending order.
// The built-in strategies iterate symbols this way so a run over identical
// inputs always fills orders in the same sequence.
func SortedSymbols(data map[string]*Snapshot) []string {
	symbols := make([]string, 0, len(data))
	for symbol := range data {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}
