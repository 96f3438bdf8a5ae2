package portfolio

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Trade is an immutable record of a single executed order.
type Trade struct {
	Symbol     string
	Side       Side
	Quantity   float64
	Price      float64
	Commission float64
	Date       time.Time
}

// Portfolio owns the cash balance and per-symbol positions of one backtest
// run. It is single-owner mutable state: exactly one engine run holds it,
// and it must never be shared across concurrent runs.
//
// Rejected orders leave the portfolio untouched and are reported through
// the returned error; they are logged but never recorded as trades.
type Portfolio struct {
	initialCapital float64
	commissionRate float64
	cash           float64
	positions      map[string]*Position
	trades         []Trade
	logger         *zap.Logger
}

// New creates a portfolio with the given starting cash and commission rate.
func New(initialCapital, commissionRate float64, logger *zap.Logger) *Portfolio {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Portfolio{
		initialCapital: initialCapital,
		commissionRate: commissionRate,
		cash:           initialCapital,
		positions:      make(map[string]*Position),
		logger:         logger,
	}
}

// Buy executes a buy order at the given price, debiting cash for cost plus
// commission and recomputing the position's average entry price as a
// weighted average. Returns ErrInsufficientFunds if cash cannot cover the
// order; the portfolio is unchanged in that case.
func (p *Portfolio) Buy(symbol string, quantity, price float64, date time.Time) (Trade, error) {
	if quantity <= 0 {
		return Trade{}, fmt.Errorf("portfolio: buy quantity must be positive, got %f", quantity)
	}
	if price <= 0 {
		return Trade{}, fmt.Errorf("portfolio: buy price must be positive, got %f", price)
	}

	cost := quantity * price
	commission := cost * p.commissionRate
	totalCost := cost + commission

	if totalCost > p.cash {
		p.logger.Debug("Buy order rejected",
			zap.String("symbol", symbol),
			zap.Float64("quantity", quantity),
			zap.Float64("price", price),
			zap.Float64("required", totalCost),
			zap.Float64("cash", p.cash))
		return Trade{}, fmt.Errorf("%w: need %.2f, have %.2f", ErrInsufficientFunds, totalCost, p.cash)
	}

	p.cash -= totalCost
	pos := p.position(symbol)
	pos.CostBasis += cost
	pos.Quantity += quantity
	pos.AvgPrice = pos.CostBasis / pos.Quantity

	trade := Trade{
		Symbol:     symbol,
		Side:       SideBuy,
		Quantity:   quantity,
		Price:      price,
		Commission: commission,
		Date:       date,
	}
	p.trades = append(p.trades, trade)
	return trade, nil
}

// Sell executes a sell order at the given price, crediting cash net of
// commission and reducing the position. The average entry price is
// unchanged by sells; the cost basis shrinks proportionally. Returns
// ErrInsufficientPosition if the order exceeds the held quantity.
func (p *Portfolio) Sell(symbol string, quantity, price float64, date time.Time) (Trade, error) {
	if quantity <= 0 {
		return Trade{}, fmt.Errorf("portfolio: sell quantity must be positive, got %f", quantity)
	}
	if price <= 0 {
		return Trade{}, fmt.Errorf("portfolio: sell price must be positive, got %f", price)
	}

	pos := p.position(symbol)
	if quantity > pos.Quantity {
		p.logger.Debug("Sell order rejected",
			zap.String("symbol", symbol),
			zap.Float64("quantity", quantity),
			zap.Float64("held", pos.Quantity))
		return Trade{}, fmt.Errorf("%w: selling %f, holding %f of %s",
			ErrInsufficientPosition, quantity, pos.Quantity, symbol)
	}

	revenue := quantity * price
	commission := revenue * p.commissionRate
	p.cash += revenue - commission

	sellRatio := quantity / pos.Quantity
	pos.CostBasis -= pos.CostBasis * sellRatio
	pos.Quantity -= quantity

	if pos.Quantity < 1e-9 {
		pos.Quantity = 0
		pos.CostBasis = 0
		pos.AvgPrice = 0
	}

	trade := Trade{
		Symbol:     symbol,
		Side:       SideSell,
		Quantity:   quantity,
		Price:      price,
		Commission: commission,
		Date:       date,
	}
	p.trades = append(p.trades, trade)
	return trade, nil
}

// Position returns a copy of the current position for a symbol. Symbols
// never traded yield a flat position, never a nil.
func (p *Portfolio) Position(symbol string) Position {
	if pos, ok := p.positions[symbol]; ok {
		return *pos
	}
	return Position{Symbol: symbol}
}

// Positions returns copies of all positions ever opened, sorted by symbol.
func (p *Portfolio) Positions() []Position {
	out := make([]Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, *pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Cash returns the current cash balance.
func (p *Portfolio) Cash() float64 {
	return p.cash
}

// InitialCapital returns the starting cash amount.
func (p *Portfolio) InitialCapital() float64 {
	return p.initialCapital
}

// CommissionRate returns the per-order commission rate.
func (p *Portfolio) CommissionRate() float64 {
	return p.commissionRate
}

// Trades returns a copy of the executed trade log in execution order.
func (p *Portfolio) Trades() []Trade {
	return append([]Trade(nil), p.trades...)
}

// TotalEquity returns cash plus the market value of open positions at the
// given prices. Pure computation, no mutation.
func (p *Portfolio) TotalEquity(currentPrices map[string]float64) float64 {
	equity := p.cash
	for symbol, pos := range p.positions {
		if price, ok := currentPrices[symbol]; ok && pos.IsOpen() {
			equity += pos.MarketValue(price)
		}
	}
	return equity
}

func (p *Portfolio) position(symbol string) *Position {
	if pos, ok := p.positions[symbol]; ok {
		return pos
	}
	pos := &Position{Symbol: symbol}
	p.positions[symbol] = pos
	return pos
}
