package stats

import (
	"errors"
	"math"

	"backtester/types"
)

// TradingDaysPerYear annualizes daily return volatility.
const TradingDaysPerYear = 252

var (
	ErrNoPrices         = errors.New("price series is empty")
	ErrNonPositivePrice = errors.New("prices must be positive for log returns")
)

// PriceStats summarizes a close price series and its log returns.
// Standard deviations are sample deviations (n-1).
type PriceStats struct {
	CurrentPrice float64
	PriceMean    float64
	PriceStd     float64
	ReturnMean   float64
	ReturnStd    float64
	Volatility   float64
	DataPoints   int
}

// Closes extracts the close prices of candles in order.
func Closes(candles []types.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close.InexactFloat64()
	}
	return out
}

// LogReturns returns ln(p[t]/p[t-1]) for every consecutive pair, so the
// result is one shorter than closes.
func LogReturns(closes []float64) ([]float64, error) {
	if len(closes) < 2 {
		return nil, nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] <= 0 || closes[i] <= 0 {
			return nil, ErrNonPositivePrice
		}
		out = append(out, math.Log(closes[i]/closes[i-1]))
	}
	return out, nil
}

// AnnualizedVolatility scales the sample standard deviation of daily
// returns by sqrt(252). Fewer than two returns give zero.
func AnnualizedVolatility(returns []float64) float64 {
	return stdDev(returns) * math.Sqrt(TradingDaysPerYear)
}

// Compute builds PriceStats for a close series.
func Compute(closes []float64) (PriceStats, error) {
	if len(closes) == 0 {
		return PriceStats{}, ErrNoPrices
	}
	returns, err := LogReturns(closes)
	if err != nil {
		return PriceStats{}, err
	}
	return PriceStats{
		CurrentPrice: closes[len(closes)-1],
		PriceMean:    mean(closes),
		PriceStd:     stdDev(closes),
		ReturnMean:   mean(returns),
		ReturnStd:    stdDev(returns),
		Volatility:   AnnualizedVolatility(returns),
		DataPoints:   len(closes),
	}, nil
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}
