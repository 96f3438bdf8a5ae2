package backtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/backtest-service/internal/indicator"
	"github.com/yourorg/backtest-service/internal/model"
	"github.com/yourorg/backtest-service/internal/portfolio"
	"github.com/yourorg/backtest-service/internal/strategy"
)

// ErrStrategyExecution wraps any failure raised by a strategy hook. The run
// aborts immediately and the partial trade/equity history is discarded.
var ErrStrategyExecution = errors.New("backtest: strategy execution failed")

// Config defines the parameters of one backtest run.
type Config struct {
	Name           string
	Symbols        []string
	StartDate      time.Time
	EndDate        time.Time
	InitialCapital float64
	CommissionRate float64
}

func (c Config) normalize() Config {
	cfg := c
	if cfg.InitialCapital <= 0 {
		cfg.InitialCapital = 100_000
	}
	if cfg.CommissionRate < 0 {
		cfg.CommissionRate = 0
	}
	return cfg
}

// Result holds the completed run's history. It is immutable once returned.
type Result struct {
	Symbols        []string
	StartDate      time.Time
	EndDate        time.Time
	InitialCapital float64
	FinalEquity    float64
	Trades         []portfolio.Trade
	EquityCurve    []model.EquityPoint
}

// Engine walks historical bars in time order, feeding each bar's market
// state to the strategy and recording trades and equity snapshots.
//
// A run is strictly single-threaded: the callback for one date never starts
// before the previous date's callback and equity snapshot have completed,
// which is what prevents look-ahead bias. The context is only consulted
// between bars, so a caller embedding the engine can impose a timeout or
// cancellation boundary around Run.
type Engine struct {
	cfg        Config
	strat      strategy.Strategy
	indicators *indicator.Registry
	logger     *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithRegistry overrides the indicator registry used for precomputation.
func WithRegistry(r *indicator.Registry) Option {
	return func(e *Engine) { e.indicators = r }
}

// NewEngine builds a backtest engine for one strategy instance. The engine
// takes exclusive ownership of the portfolio it creates; engines must not
// be shared across concurrent runs.
func NewEngine(cfg Config, strat strategy.Strategy, logger *zap.Logger, opts ...Option) (*Engine, error) {
	if strat == nil {
		return nil, fmt.Errorf("backtest: strategy cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		cfg:    cfg.normalize(),
		strat:  strat,
		logger: logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// symbolFrame is one symbol's prepared history: its bars, a date index, and
// every precomputed indicator column.
type symbolFrame struct {
	bars    []model.Bar
	index   map[string]int
	columns map[string][]indicator.Value
}

// Run executes the backtest over the given per-symbol bar series. Each
// series must be sorted ascending by date with no duplicate dates. Symbols
// with no bars are skipped; they end the run with a flat position and no
// trades. An empty overall timeline produces a result with zero trades and
// final equity equal to the initial capital.
func (e *Engine) Run(ctx context.Context, data map[string][]model.Bar) (*Result, error) {
	frames, err := e.prepare(data)
	if err != nil {
		return nil, err
	}

	timeline := e.timeline(frames)
	pf := portfolio.New(e.cfg.InitialCapital, e.cfg.CommissionRate, e.logger)

	symbols := make([]string, 0, len(frames))
	for symbol := range frames {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	e.logger.Info("Starting backtest",
		zap.String("strategy", e.strat.Name()),
		zap.Int("symbols", len(symbols)),
		zap.Int("trading_days", len(timeline)))

	if err := e.strat.OnStart(symbols, pf); err != nil {
		return nil, fmt.Errorf("%w: on_start: %v", ErrStrategyExecution, err)
	}

	equityCurve := make([]model.EquityPoint, 0, len(timeline))

	// Valuation prices persist across dates: on a union-timeline date where
	// a held symbol has no bar, its open position is marked at the last
	// known close instead of dropping to zero.
	prices := make(map[string]float64, len(symbols))

	for _, date := range timeline {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("backtest: run cancelled: %w", err)
		}

		dateKey := date.Format(model.DateLayout)
		snapshots := make(map[string]*strategy.Snapshot)

		for _, symbol := range symbols {
			frame := frames[symbol]
			i, ok := frame.index[dateKey]
			if !ok {
				continue
			}
			snapshots[symbol] = frame.snapshot(i)
			prices[symbol] = frame.bars[i].Close
		}

		if len(snapshots) > 0 {
			if err := e.strat.OnBar(date, snapshots, pf); err != nil {
				return nil, fmt.Errorf("%w: on_bar at %s: %v", ErrStrategyExecution, dateKey, err)
			}
		}

		equityCurve = append(equityCurve, model.EquityPoint{
			Date:   dateKey,
			Equity: pf.TotalEquity(prices),
			Cash:   pf.Cash(),
		})
	}

	if err := e.strat.OnEnd(pf); err != nil {
		return nil, fmt.Errorf("%w: on_end: %v", ErrStrategyExecution, err)
	}

	finalEquity := e.cfg.InitialCapital
	if len(equityCurve) > 0 {
		finalEquity = equityCurve[len(equityCurve)-1].Equity
	}

	e.logger.Info("Backtest complete",
		zap.String("strategy", e.strat.Name()),
		zap.Int("trades", len(pf.Trades())),
		zap.Float64("final_equity", finalEquity))

	return &Result{
		Symbols:        symbols,
		StartDate:      e.cfg.StartDate,
		EndDate:        e.cfg.EndDate,
		InitialCapital: e.cfg.InitialCapital,
		FinalEquity:    finalEquity,
		Trades:         pf.Trades(),
		EquityCurve:    equityCurve,
	}, nil
}

// prepare computes every declared indicator once per symbol, up front. An
// unknown indicator name surfaces here, before any bar is processed.
func (e *Engine) prepare(data map[string][]model.Bar) (map[string]*symbolFrame, error) {
	configs := e.strat.Indicators()
	frames := make(map[string]*symbolFrame, len(data))

	for symbol, bars := range data {
		if len(bars) == 0 {
			e.logger.Warn("Skipping symbol with no bars", zap.String("symbol", symbol))
			continue
		}

		frame := &symbolFrame{
			bars:    bars,
			index:   make(map[string]int, len(bars)),
			columns: make(map[string][]indicator.Value),
		}
		for i, bar := range bars {
			frame.index[bar.Date.UTC().Format(model.DateLayout)] = i
		}

		series := indicator.NewSeries(bars)
		for _, cfg := range configs {
			output, err := e.compute(series, cfg)
			if err != nil {
				return nil, fmt.Errorf("backtest: precomputing %q for %s: %w", cfg.Name, symbol, err)
			}
			for key, values := range output {
				frame.columns[key] = values
			}
		}

		frames[symbol] = frame
	}

	return frames, nil
}

func (e *Engine) compute(s indicator.Series, cfg indicator.Config) (indicator.Output, error) {
	if e.indicators != nil {
		return e.indicators.Compute(s, cfg)
	}
	return indicator.Compute(s, cfg)
}

// timeline returns the union of all trading dates across symbols, sorted
// ascending. A symbol lacking a bar on a date is simply absent from that
// date's snapshot; only equity valuation carries its last close forward.
func (e *Engine) timeline(frames map[string]*symbolFrame) []time.Time {
	seen := make(map[string]time.Time)
	for _, frame := range frames {
		for _, bar := range frame.bars {
			d := bar.Date.UTC()
			seen[d.Format(model.DateLayout)] = d
		}
	}

	dates := make([]time.Time, 0, len(seen))
	for _, d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// snapshot assembles the read-only view of bar i. Only values at or before
// the bar's date are reachable through it.
func (f *symbolFrame) snapshot(i int) *strategy.Snapshot {
	bar := f.bars[i]
	indicators := make(map[string]indicator.Value, len(f.columns))
	for key, values := range f.columns {
		if i < len(values) {
			indicators[key] = values[i]
		}
	}

	return &strategy.Snapshot{
		Symbol:     bar.Symbol,
		Date:       bar.Date.UTC(),
		Open:       bar.Open,
		High:       bar.High,
		Low:        bar.Low,
		Close:      bar.Close,
		Volume:     bar.Volume,
		Indicators: indicators,
	}
}
