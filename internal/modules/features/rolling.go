package features

import (
	"math"

	talib "github.com/markcheno/go-talib"
)

// nanSlice returns a slice of n NaN sentinels.
func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// rollingMean computes the trailing mean per index. Warmup indices carry
// NaN. talib needs at least period inputs, so shorter series stay all-NaN.
func rollingMean(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if len(values) < period {
		return out
	}

	sma := talib.Sma(values, period)
	for i := period - 1; i < len(sma); i++ {
		out[i] = sma[i]
	}
	return out
}

// rollingStd computes the trailing population standard deviation per
// index, NaN through the warmup prefix.
func rollingStd(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if len(values) < period {
		return out
	}

	std := talib.StdDev(values, period, 1.0)
	for i := period - 1; i < len(std); i++ {
		out[i] = std[i]
	}
	return out
}

// momentum computes the percent change against the value lag periods
// back. The first lag indices carry NaN, as does any index whose lagged
// base value is zero.
func momentum(values []float64, lag int) []float64 {
	out := nanSlice(len(values))
	if len(values) <= lag {
		return out
	}

	roc := talib.Roc(values, lag)
	for i := lag; i < len(roc); i++ {
		if isFinite(roc[i]) {
			out[i] = roc[i]
		}
	}
	return out
}
