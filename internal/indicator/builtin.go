package indicator

import (
	"fmt"

	talib "github.com/markcheno/go-talib"
)

// Built-in technical indicators. Each produces column keys the strategies
// read back from bar snapshots (e.g. sma_20, rsi_14, macd_line).
//
// Windowed indicators report Valid=false for their warm-up window. When the
// whole series is shorter than the warm-up window the output is entirely
// invalid rather than an error: that is a data-quality condition the
// strategy observes through the values themselves.
func init() {
	mustRegister("sma", computeSMA)
	mustRegister("ema", computeEMA)
	mustRegister("rsi", computeRSI)
	mustRegister("macd", computeMACD)
	mustRegister("bollinger_bands", computeBollingerBands)
	mustRegister("atr", computeATR)
	mustRegister("stochastic_oscillator", computeStochastic)
	mustRegister("vwap", computeVWAP)
}

func computeSMA(s Series, cfg Config) (Output, error) {
	period := cfg.Params.Int("period", 20)
	if err := validatePeriod("sma", period); err != nil {
		return nil, err
	}

	key := periodKey("sma", period)
	if s.Len() < period {
		return allInvalid(s.Len(), key), nil
	}
	raw := talib.Sma(s.Column(cfg.Column), period)
	return Output{key: maskWarmup(raw, period-1)}, nil
}

func computeEMA(s Series, cfg Config) (Output, error) {
	period := cfg.Params.Int("period", 20)
	if err := validatePeriod("ema", period); err != nil {
		return nil, err
	}

	key := periodKey("ema", period)
	if s.Len() < period {
		return allInvalid(s.Len(), key), nil
	}
	raw := talib.Ema(s.Column(cfg.Column), period)
	return Output{key: maskWarmup(raw, period-1)}, nil
}

func computeRSI(s Series, cfg Config) (Output, error) {
	period := cfg.Params.Int("period", 14)
	if err := validatePeriod("rsi", period); err != nil {
		return nil, err
	}

	key := periodKey("rsi", period)
	// RSI needs period price changes, so period+1 bars.
	if s.Len() < period+1 {
		return allInvalid(s.Len(), key), nil
	}
	raw := talib.Rsi(s.Column(cfg.Column), period)
	return Output{key: maskWarmup(raw, period)}, nil
}

func computeMACD(s Series, cfg Config) (Output, error) {
	fast := cfg.Params.Int("fast_period", 12)
	slow := cfg.Params.Int("slow_period", 26)
	signal := cfg.Params.Int("signal_period", 9)
	if fast <= 0 || slow <= 0 || signal <= 0 {
		return nil, fmt.Errorf("indicator: macd periods must be positive (fast=%d slow=%d signal=%d)", fast, slow, signal)
	}
	if fast >= slow {
		return nil, fmt.Errorf("indicator: macd fast period %d must be shorter than slow period %d", fast, slow)
	}

	lineWarmup := slow - 1
	signalWarmup := slow + signal - 2
	if s.Len() < signalWarmup+1 {
		return allInvalid(s.Len(), "macd_line", "signal_line", "histogram"), nil
	}

	line, sig, hist := talib.Macd(s.Column(cfg.Column), fast, slow, signal)
	return Output{
		"macd_line":   maskWarmup(line, lineWarmup),
		"signal_line": maskWarmup(sig, signalWarmup),
		"histogram":   maskWarmup(hist, signalWarmup),
	}, nil
}

func computeBollingerBands(s Series, cfg Config) (Output, error) {
	period := cfg.Params.Int("period", 20)
	numStd := cfg.Params.Float("num_std", 2.0)
	if err := validatePeriod("bollinger_bands", period); err != nil {
		return nil, err
	}

	if s.Len() < period {
		return allInvalid(s.Len(), "bb_upper", "bb_middle", "bb_lower"), nil
	}
	upper, middle, lower := talib.BBands(s.Column(cfg.Column), period, numStd, numStd, talib.SMA)
	warmup := period - 1
	return Output{
		"bb_upper":  maskWarmup(upper, warmup),
		"bb_middle": maskWarmup(middle, warmup),
		"bb_lower":  maskWarmup(lower, warmup),
	}, nil
}

func computeATR(s Series, cfg Config) (Output, error) {
	period := cfg.Params.Int("period", 14)
	if err := validatePeriod("atr", period); err != nil {
		return nil, err
	}

	key := periodKey("atr", period)
	// ATR needs a previous close, so period+1 bars.
	if s.Len() < period+1 {
		return allInvalid(s.Len(), key), nil
	}
	raw := talib.Atr(s.High, s.Low, s.Close, period)
	return Output{key: maskWarmup(raw, period)}, nil
}

func computeStochastic(s Series, cfg Config) (Output, error) {
	kPeriod := cfg.Params.Int("k_period", 14)
	dPeriod := cfg.Params.Int("d_period", 3)
	if kPeriod <= 0 || dPeriod <= 0 {
		return nil, fmt.Errorf("indicator: stochastic periods must be positive (k=%d d=%d)", kPeriod, dPeriod)
	}

	kWarmup := kPeriod - 1
	dWarmup := kPeriod + dPeriod - 2
	if s.Len() < dWarmup+1 {
		return allInvalid(s.Len(), "stoch_k", "stoch_d"), nil
	}

	// Raw %K over k_period, %D as an SMA of %K over d_period.
	fastK, fastD := talib.StochF(s.High, s.Low, s.Close, kPeriod, dPeriod, talib.SMA)
	return Output{
		"stoch_k": maskWarmup(fastK, kWarmup),
		"stoch_d": maskWarmup(fastD, dWarmup),
	}, nil
}

// computeVWAP is the cumulative volume weighted average price over the
// whole series. talib has no VWAP, so it is computed directly from the
// typical price. Bars before any volume has traded are invalid.
func computeVWAP(s Series, cfg Config) (Output, error) {
	n := s.Len()
	values := make([]Value, n)

	var cumPV, cumVol float64
	for i := 0; i < n; i++ {
		typical := (s.High[i] + s.Low[i] + s.Close[i]) / 3.0
		cumPV += typical * s.Volume[i]
		cumVol += s.Volume[i]
		if cumVol > 0 {
			values[i] = Value{Float64: cumPV / cumVol, Valid: true}
		}
	}
	return Output{"vwap": values}, nil
}

func validatePeriod(name string, period int) error {
	if period <= 0 {
		return fmt.Errorf("indicator: %s period must be positive, got %d", name, period)
	}
	return nil
}

func allInvalid(n int, keys ...string) Output {
	out := make(Output, len(keys))
	for _, key := range keys {
		out[key] = make([]Value, n)
	}
	return out
}
