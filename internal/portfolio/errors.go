package portfolio

import "errors"

var (
	// ErrInsufficientFunds is returned when a buy order's cost plus
	// commission exceeds available cash.
	ErrInsufficientFunds = errors.New("portfolio: insufficient funds")

	// ErrInsufficientPosition is returned when a sell order exceeds the
	// held quantity, including any sell against a flat position.
	ErrInsufficientPosition = errors.New("portfolio: insufficient position")
)
