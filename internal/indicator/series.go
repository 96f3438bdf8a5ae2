package indicator

import (
	"math"
	"time"

	"github.com/yourorg/backtest-service/internal/model"
)

// Value is a single indicator observation. Valid is false during the
// indicator's warm-up window (or when the input history is too short),
// so a strategy never mistakes a missing value for zero.
type Value struct {
	Float64 float64
	Valid   bool
}

// Series holds one symbol's OHLCV history split into parallel columns,
// sorted ascending by date.
type Series struct {
	Dates  []time.Time
	Open   []float64
	High   []float64
	Low    []float64
	Close  []float64
	Volume []float64
}

// NewSeries builds a Series from bars. The bars are expected to be sorted
// ascending by date with no duplicates, as returned by the bar repository.
func NewSeries(bars []model.Bar) Series {
	n := len(bars)
	s := Series{
		Dates:  make([]time.Time, n),
		Open:   make([]float64, n),
		High:   make([]float64, n),
		Low:    make([]float64, n),
		Close:  make([]float64, n),
		Volume: make([]float64, n),
	}
	for i, bar := range bars {
		s.Dates[i] = bar.Date.UTC()
		s.Open[i] = bar.Open
		s.High[i] = bar.High
		s.Low[i] = bar.Low
		s.Close[i] = bar.Close
		s.Volume[i] = bar.Volume
	}
	return s
}

// Len returns the number of bars in the series.
func (s Series) Len() int {
	return len(s.Close)
}

// Column returns the named price column, defaulting to close for an
// empty or unknown name.
func (s Series) Column(name string) []float64 {
	switch name {
	case "open":
		return s.Open
	case "high":
		return s.High
	case "low":
		return s.Low
	case "volume":
		return s.Volume
	default:
		return s.Close
	}
}

// maskWarmup converts a raw indicator output into Values, marking the
// first warmup entries (and any NaN) as not valid.
func maskWarmup(raw []float64, warmup int) []Value {
	out := make([]Value, len(raw))
	for i, v := range raw {
		if i < warmup || math.IsNaN(v) || math.IsInf(v, 0) {
			out[i] = Value{}
			continue
		}
		out[i] = Value{Float64: v, Valid: true}
	}
	return out
}
