package stats

import (
	"math"
	"testing"
	"time"

	"backtester/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogReturns(t *testing.T) {
	assert := assert.New(t)

	got, err := LogReturns([]float64{100, 110, 121})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.InDelta(math.Log(1.1), got[0], 1e-12)
	assert.InDelta(math.Log(1.1), got[1], 1e-12)

	// a single price has no return
	got, err = LogReturns([]float64{100})
	assert.NoError(err)
	assert.Empty(got)

	_, err = LogReturns([]float64{100, 0, 50})
	assert.ErrorIs(err, ErrNonPositivePrice)
}

func TestAnnualizedVolatility(t *testing.T) {
	assert := assert.New(t)

	returns := []float64{math.Log(2), -math.Log(2)}
	want := math.Log(2) * math.Sqrt(2) * math.Sqrt(252)
	assert.InDelta(want, AnnualizedVolatility(returns), 1e-9)

	assert.Zero(AnnualizedVolatility(nil))
	assert.Zero(AnnualizedVolatility([]float64{0.01}))
	assert.Zero(AnnualizedVolatility([]float64{0.01, 0.01, 0.01}))
}

func TestCompute(t *testing.T) {
	assert := assert.New(t)

	got, err := Compute([]float64{1, 2, 3, 4, 5})
	require.NoError(t, err)

	returns, _ := LogReturns([]float64{1, 2, 3, 4, 5})
	assert.Equal(5.0, got.CurrentPrice)
	assert.InDelta(3.0, got.PriceMean, 1e-12)
	assert.InDelta(math.Sqrt(2.5), got.PriceStd, 1e-12)
	assert.InDelta(math.Log(5)/4, got.ReturnMean, 1e-12)
	assert.InDelta(stdDev(returns), got.ReturnStd, 1e-12)
	assert.InDelta(got.ReturnStd*math.Sqrt(252), got.Volatility, 1e-12)
	assert.Equal(5, got.DataPoints)
}

func TestCompute_Edges(t *testing.T) {
	_, err := Compute(nil)
	assert.ErrorIs(t, err, ErrNoPrices)

	got, err := Compute([]float64{42})
	require.NoError(t, err)
	assert.Equal(t, PriceStats{CurrentPrice: 42, PriceMean: 42, DataPoints: 1}, got)

	_, err = Compute([]float64{10, -1})
	assert.ErrorIs(t, err, ErrNonPositivePrice)
}

func TestCloses(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	candles := []types.Candle{
		{Ticker: "AAPL", Close: decimal.RequireFromString("185.64"), Timestamp: start},
		{Ticker: "AAPL", Close: decimal.RequireFromString("184.25"), Timestamp: start.AddDate(0, 0, 1)},
	}
	assert.Equal(t, []float64{185.64, 184.25}, Closes(candles))
	assert.Empty(t, Closes(nil))
}
