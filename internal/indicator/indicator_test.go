package indicator

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/yourorg/backtest-service/internal/model"
)

func barsFromCloses(closes []float64) []model.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]model.Bar, len(closes))
	for i, c := range closes {
		bars[i] = model.Bar{
			Symbol: "TEST",
			Date:   start.AddDate(0, 0, i),
			Open:   c,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 1000,
		}
	}
	return bars
}

func constantCloses(n int, price float64) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = price
	}
	return closes
}

func TestSMAConstantPrices(t *testing.T) {
	s := NewSeries(barsFromCloses(constantCloses(30, 50)))

	out, err := Compute(s, Config{Name: "sma", Params: Params{"period": 20}})
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}

	values, ok := out["sma_20"]
	if !ok {
		t.Fatalf("expected column sma_20, got %v", out)
	}
	if len(values) != 30 {
		t.Fatalf("expected 30 values, got %d", len(values))
	}

	for i := 0; i < 19; i++ {
		if values[i].Valid {
			t.Errorf("value at %d should be invalid during warm-up", i)
		}
	}
	for i := 19; i < 30; i++ {
		if !values[i].Valid {
			t.Errorf("value at %d should be valid", i)
			continue
		}
		if math.Abs(values[i].Float64-50) > 1e-9 {
			t.Errorf("value at %d = %f, want 50", i, values[i].Float64)
		}
	}
}

func TestSMAWarmupBoundary(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5, 6}
	s := NewSeries(barsFromCloses(closes))

	out, err := Compute(s, Config{Name: "sma", Params: Params{"period": 5}})
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}

	values := out["sma_5"]
	if values[3].Valid {
		t.Error("value before the first full window should be invalid")
	}
	if !values[4].Valid || math.Abs(values[4].Float64-3) > 1e-9 {
		t.Errorf("first full window = %+v, want 3", values[4])
	}
	if !values[5].Valid || math.Abs(values[5].Float64-4) > 1e-9 {
		t.Errorf("second window = %+v, want 4", values[5])
	}
}

func TestShortSeriesAllInvalid(t *testing.T) {
	s := NewSeries(barsFromCloses(constantCloses(5, 10)))

	out, err := Compute(s, Config{Name: "sma", Params: Params{"period": 20}})
	if err != nil {
		t.Fatalf("short series must not be an error, got: %v", err)
	}

	values := out["sma_20"]
	if len(values) != 5 {
		t.Fatalf("expected 5 values, got %d", len(values))
	}
	for i, v := range values {
		if v.Valid {
			t.Errorf("value at %d should be invalid for a too-short series", i)
		}
	}
}

func TestUnknownIndicator(t *testing.T) {
	s := NewSeries(barsFromCloses(constantCloses(10, 10)))

	_, err := Compute(s, Config{Name: "no_such_indicator"})
	if !errors.Is(err, ErrUnknown) {
		t.Fatalf("expected ErrUnknown, got: %v", err)
	}
}

func TestInvalidPeriod(t *testing.T) {
	s := NewSeries(barsFromCloses(constantCloses(10, 10)))

	if _, err := Compute(s, Config{Name: "sma", Params: Params{"period": -1}}); err == nil {
		t.Fatal("expected error for negative period")
	}
	if _, err := Compute(s, Config{Name: "macd", Params: Params{"fast_period": 26, "slow_period": 12}}); err == nil {
		t.Fatal("expected error when fast period is not shorter than slow period")
	}
}

func TestDuplicateRegistration(t *testing.T) {
	r := NewRegistry()
	fn := func(s Series, cfg Config) (Output, error) { return Output{}, nil }

	if err := r.Register("custom", fn); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	if err := r.Register("custom", fn); err == nil {
		t.Fatal("duplicate registration must fail")
	}
}

func TestRSIBounds(t *testing.T) {
	closes := make([]float64, 40)
	price := 100.0
	for i := range closes {
		if i%2 == 0 {
			price += 3
		} else {
			price -= 1
		}
		closes[i] = price
	}
	s := NewSeries(barsFromCloses(closes))

	out, err := Compute(s, Config{Name: "rsi", Params: Params{"period": 14}})
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}

	values := out["rsi_14"]
	for i := 0; i < 14; i++ {
		if values[i].Valid {
			t.Errorf("rsi at %d should be invalid during warm-up", i)
		}
	}
	sawValid := false
	for i, v := range values {
		if !v.Valid {
			continue
		}
		sawValid = true
		if v.Float64 < 0 || v.Float64 > 100 {
			t.Errorf("rsi at %d = %f, outside [0, 100]", i, v.Float64)
		}
	}
	if !sawValid {
		t.Fatal("expected valid RSI values after warm-up")
	}
}

func TestMACDColumns(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	s := NewSeries(barsFromCloses(closes))

	out, err := Compute(s, Config{Name: "macd"})
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}

	for _, key := range []string{"macd_line", "signal_line", "histogram"} {
		if _, ok := out[key]; !ok {
			t.Errorf("missing column %s", key)
		}
	}

	// Defaults 12/26/9: line warms up at bar 25, signal at bar 33.
	line := out["macd_line"]
	if line[24].Valid {
		t.Error("macd line should be invalid before the slow window fills")
	}
	if !line[25].Valid {
		t.Error("macd line should be valid at the end of the slow window")
	}
	signal := out["signal_line"]
	if signal[32].Valid {
		t.Error("signal line should be invalid before its window fills")
	}
	if !signal[33].Valid {
		t.Error("signal line should be valid once its window fills")
	}
}

func TestBollingerBandsOrdering(t *testing.T) {
	closes := make([]float64, 30)
	price := 100.0
	for i := range closes {
		if i%3 == 0 {
			price += 2
		} else {
			price -= 0.5
		}
		closes[i] = price
	}
	s := NewSeries(barsFromCloses(closes))

	out, err := Compute(s, Config{Name: "bollinger_bands", Params: Params{"period": 20}})
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}

	upper, middle, lower := out["bb_upper"], out["bb_middle"], out["bb_lower"]
	for i := 19; i < 30; i++ {
		if !upper[i].Valid || !middle[i].Valid || !lower[i].Valid {
			t.Fatalf("bands at %d should all be valid", i)
		}
		if upper[i].Float64 < middle[i].Float64 || middle[i].Float64 < lower[i].Float64 {
			t.Errorf("bands at %d out of order: %f %f %f",
				i, upper[i].Float64, middle[i].Float64, lower[i].Float64)
		}
	}
}

func TestVWAP(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := []model.Bar{
		{Symbol: "TEST", Date: start, High: 12, Low: 8, Close: 10, Volume: 100},
		{Symbol: "TEST", Date: start.AddDate(0, 0, 1), High: 24, Low: 16, Close: 20, Volume: 300},
	}
	s := NewSeries(bars)

	out, err := Compute(s, Config{Name: "vwap"})
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}

	values := out["vwap"]
	if !values[0].Valid || math.Abs(values[0].Float64-10) > 1e-9 {
		t.Errorf("vwap[0] = %+v, want 10", values[0])
	}
	// (10*100 + 20*300) / 400
	if !values[1].Valid || math.Abs(values[1].Float64-17.5) > 1e-9 {
		t.Errorf("vwap[1] = %+v, want 17.5", values[1])
	}
}

func TestVWAPZeroVolume(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := []model.Bar{
		{Symbol: "TEST", Date: start, High: 12, Low: 8, Close: 10, Volume: 0},
		{Symbol: "TEST", Date: start.AddDate(0, 0, 1), High: 12, Low: 8, Close: 10, Volume: 500},
	}
	s := NewSeries(bars)

	out, err := Compute(s, Config{Name: "vwap"})
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}

	values := out["vwap"]
	if values[0].Valid {
		t.Error("vwap should be invalid before any volume trades")
	}
	if !values[1].Valid || math.Abs(values[1].Float64-10) > 1e-9 {
		t.Errorf("vwap[1] = %+v, want 10", values[1])
	}
}

func TestColumnSelection(t *testing.T) {
	s := NewSeries(barsFromCloses(constantCloses(10, 10)))

	if got := s.Column("high")[0]; got != 11 {
		t.Errorf("high column = %f, want 11", got)
	}
	if got := s.Column("")[0]; got != 10 {
		t.Errorf("default column = %f, want close 10", got)
	}
	if got := s.Column("unknown")[0]; got != 10 {
		t.Errorf("unknown column = %f, want close 10", got)
	}
}

func TestNames(t *testing.T) {
	names := Names()
	want := map[string]bool{
		"sma": false, "ema": false, "rsi": false, "macd": false,
		"bollinger_bands": false, "atr": false, "stochastic_oscillator": false, "vwap": false,
	}
	for _, name := range names {
		if _, ok := want[name]; ok {
			want[name] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("built-in %s not registered", name)
		}
	}
}
