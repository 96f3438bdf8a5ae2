package portfolio

// Position tracks the held quantity and average entry price for one symbol.
// A position with zero quantity is flat. Positions are mutated only through
// Portfolio.Buy and Portfolio.Sell.
type Position struct {
	Symbol    string  `json:"symbol"`
	Quantity  float64 `json:"quantity"`
	AvgPrice  float64 `json:"avg_price"`
	CostBasis float64 `json:"cost_basis"`
}

// IsOpen reports whether any quantity is held.
func (p Position) IsOpen() bool {
	return p.Quantity > 0
}

// MarketValue returns the position's value at the given price.
func (p Position) MarketValue(price float64) float64 {
	return p.Quantity * price
}

// UnrealizedPnL returns the gain or loss versus cost basis at the given price.
func (p Position) UnrealizedPnL(price float64) float64 {
	return p.MarketValue(price) - p.CostBasis
}
