package model

import (
	"time"
)

// DateLayout is the wire format for trading dates. Bars are daily, so the
// time-of-day component is always midnight UTC.
const DateLayout = "2006-01-02"

// Bar represents a single OHLCV bar for one symbol on one trading date.
// Bars are immutable once ingested.
type Bar struct {
	Symbol string    `json:"symbol" db:"symbol"`
	Date   time.Time `json:"date" db:"bar_date"`
	Open   float64   `json:"open" db:"open"`
	High   float64   `json:"high" db:"high"`
	Low    float64   `json:"low" db:"low"`
	Close  float64   `json:"close" db:"close"`
	Volume float64   `json:"volume" db:"volume"`
}

// BarQuery represents a query for OHLCV bars
type BarQuery struct {
	Symbol    string     `json:"symbol" form:"symbol" binding:"required"`
	StartDate *time.Time `json:"start_date" form:"start_date" time_format:"2006-01-02"`
	EndDate   *time.Time `json:"end_date" form:"end_date" time_format:"2006-01-02"`
	Limit     *int       `json:"limit" form:"limit"`
}

// DateRange represents a range of trading dates
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
