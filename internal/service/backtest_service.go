package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yourorg/backtest-service/internal/backtest"
	"github.com/yourorg/backtest-service/internal/cache"
	"github.com/yourorg/backtest-service/internal/config"
	"github.com/yourorg/backtest-service/internal/event"
	"github.com/yourorg/backtest-service/internal/indicator"
	"github.com/yourorg/backtest-service/internal/model"
	"github.com/yourorg/backtest-service/internal/repository"
	"github.com/yourorg/backtest-service/internal/strategy"
)

// BarSource retrieves historical OHLCV bars, sorted ascending by date with
// no duplicate dates per symbol. Implemented by the bar repository and the
// HTTP market data client.
type BarSource interface {
	GetOHLCV(ctx context.Context, symbol string, startDate, endDate time.Time) ([]model.Bar, error)
}

// BacktestService runs backtests end to end: strategy resolution, bar
// loading, engine execution, metric calculation, persistence, and event
// publication.
type BacktestService struct {
	barSource    BarSource
	backtestRepo *repository.BacktestRepository
	producer     *event.Producer
	resultCache  *cache.ResultCache
	cfg          config.BacktestConfig
	logger       *zap.Logger
}

// NewBacktestService creates a new backtest service. The producer and
// result cache are optional and may be nil.
func NewBacktestService(
	barSource BarSource,
	backtestRepo *repository.BacktestRepository,
	producer *event.Producer,
	resultCache *cache.ResultCache,
	cfg config.BacktestConfig,
	logger *zap.Logger,
) *BacktestService {
	return &BacktestService{
		barSource:    barSource,
		backtestRepo: backtestRepo,
		producer:     producer,
		resultCache:  resultCache,
		cfg:          cfg,
		logger:       logger,
	}
}

// RunBacktest executes a complete backtest workflow and returns the
// immutable result. A failed run is reported as failed: no partial trade
// or equity history is stored.
func (s *BacktestService) RunBacktest(ctx context.Context, request *model.BacktestRequest) (*model.BacktestResult, error) {
	if request.EndDate.Before(request.StartDate) {
		return nil, errors.New("end date must be after start date")
	}
	if s.cfg.MaxSymbols > 0 && len(request.Symbols) > s.cfg.MaxSymbols {
		return nil, fmt.Errorf("too many symbols: %d exceeds limit of %d", len(request.Symbols), s.cfg.MaxSymbols)
	}

	initialCapital := request.InitialCapital
	if initialCapital <= 0 {
		initialCapital = s.cfg.DefaultInitialCapital
	}
	commissionRate := request.CommissionRate
	if commissionRate < 0 {
		commissionRate = s.cfg.DefaultCommissionRate
	}

	strat, err := strategy.New(request.StrategyName, request.StrategyParams)
	if err != nil {
		return nil, err
	}

	data, err := s.loadBars(ctx, request.Symbols, request.StartDate, request.EndDate)
	if err != nil {
		return nil, err
	}

	name := request.Name
	if name == "" {
		name = strat.Name() + " Backtest"
	}

	engine, err := backtest.NewEngine(backtest.Config{
		Name:           name,
		Symbols:        request.Symbols,
		StartDate:      request.StartDate,
		EndDate:        request.EndDate,
		InitialCapital: initialCapital,
		CommissionRate: commissionRate,
	}, strat, s.logger)
	if err != nil {
		return nil, err
	}

	// The engine itself imposes no timeout; this is the cancellation
	// boundary around a single run.
	runCtx := ctx
	if s.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.cfg.RunTimeout)
		defer cancel()
	}

	runResult, err := engine.Run(runCtx, data)
	if err != nil {
		s.publishFailed(request, err)
		return nil, err
	}

	result := s.assembleResult(name, request.StrategyName, runResult)
	result.Metrics = backtest.CalculatePerformance(runResult)

	if s.backtestRepo != nil {
		if err := s.backtestRepo.SaveResult(ctx, result); err != nil {
			// The run itself succeeded; persistence failure should not
			// destroy the computed result.
			s.logger.Error("Failed to persist backtest result",
				zap.String("backtest_id", result.BacktestID),
				zap.Error(err))
		}
	}

	if s.resultCache != nil {
		s.resultCache.Set(ctx, result)
	}

	s.publishCompleted(result)

	return result, nil
}

// GetBacktest retrieves a stored run, consulting the cache first. Returns
// nil when the ID is unknown.
func (s *BacktestService) GetBacktest(ctx context.Context, backtestID string) (*model.BacktestResult, error) {
	if s.resultCache != nil {
		if result := s.resultCache.Get(ctx, backtestID); result != nil {
			return result, nil
		}
	}

	result, err := s.backtestRepo.GetResult(ctx, backtestID)
	if err != nil {
		return nil, err
	}
	if result != nil && s.resultCache != nil {
		s.resultCache.Set(ctx, result)
	}
	return result, nil
}

// ListBacktests returns stored run summaries, newest first.
func (s *BacktestService) ListBacktests(ctx context.Context, page, limit int) ([]model.BacktestSummary, int, error) {
	return s.backtestRepo.ListResults(ctx, page, limit)
}

// DeleteBacktest removes a stored run.
func (s *BacktestService) DeleteBacktest(ctx context.Context, backtestID string) (bool, error) {
	deleted, err := s.backtestRepo.DeleteResult(ctx, backtestID)
	if err != nil {
		return false, err
	}
	if deleted && s.resultCache != nil {
		s.resultCache.Delete(ctx, backtestID)
	}
	return deleted, nil
}

// ListIndicators returns the registered indicator names.
func (s *BacktestService) ListIndicators() []string {
	return indicator.Names()
}

// ListStrategies returns the registered strategy names.
func (s *BacktestService) ListStrategies() []string {
	return strategy.Names()
}

// Close releases the service's external connections.
func (s *BacktestService) Close() error {
	var err error
	if s.producer != nil {
		err = multierr.Append(err, s.producer.Close())
	}
	if s.resultCache != nil {
		err = multierr.Append(err, s.resultCache.Close())
	}
	return err
}

// loadBars fetches each symbol's bars concurrently. A symbol with no data
// in the range stays in the result with an empty series: it ends the run
// flat with no trades, but does not abort it.
func (s *BacktestService) loadBars(ctx context.Context, symbols []string, startDate, endDate time.Time) (map[string][]model.Bar, error) {
	var mu sync.Mutex
	data := make(map[string][]model.Bar, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	for _, symbol := range symbols {
		symbol := symbol
		g.Go(func() error {
			bars, err := s.barSource.GetOHLCV(gctx, symbol, startDate, endDate)
			if err != nil {
				return err
			}
			if len(bars) == 0 {
				s.logger.Warn("No bars in range for symbol", zap.String("symbol", symbol))
			}
			mu.Lock()
			data[symbol] = bars
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load market data: %w", err)
	}

	return data, nil
}

func (s *BacktestService) assembleResult(name, strategyName string, run *backtest.Result) *model.BacktestResult {
	trades := make([]model.TradeRecord, len(run.Trades))
	for i, trade := range run.Trades {
		trades[i] = model.TradeRecord{
			Symbol:     trade.Symbol,
			Side:       string(trade.Side),
			Quantity:   trade.Quantity,
			Price:      trade.Price,
			Commission: trade.Commission,
			Date:       trade.Date.Format(model.DateLayout),
		}
	}

	return &model.BacktestResult{
		BacktestID:     uuid.NewString(),
		Name:           name,
		StrategyName:   strategyName,
		Symbols:        run.Symbols,
		StartDate:      run.StartDate.Format(model.DateLayout),
		EndDate:        run.EndDate.Format(model.DateLayout),
		InitialCapital: run.InitialCapital,
		FinalEquity:    run.FinalEquity,
		Trades:         trades,
		EquityCurve:    run.EquityCurve,
	}
}

func (s *BacktestService) publishCompleted(result *model.BacktestResult) {
	if s.producer == nil {
		return
	}

	// Event publication is best effort and must not fail the run.
	pubCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.producer.Publish(pubCtx, event.BacktestEvent{
		Type:         event.TypeBacktestCompleted,
		BacktestID:   result.BacktestID,
		Name:         result.Name,
		StrategyName: result.StrategyName,
		Symbols:      result.Symbols,
		FinalEquity:  result.FinalEquity,
		TotalTrades:  len(result.Trades),
		OccurredAt:   time.Now().UTC(),
	})
}

func (s *BacktestService) publishFailed(request *model.BacktestRequest, runErr error) {
	if s.producer == nil {
		return
	}

	pubCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.producer.Publish(pubCtx, event.BacktestEvent{
		Type:         event.TypeBacktestFailed,
		StrategyName: request.StrategyName,
		Symbols:      request.Symbols,
		Error:        runErr.Error(),
		OccurredAt:   time.Now().UTC(),
	})
}
