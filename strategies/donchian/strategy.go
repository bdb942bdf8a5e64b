package donchian

import (
	"errors"

	"backtester/internal/engine"
	"backtester/types"

	"github.com/markcheno/go-talib"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var ErrInvalidParams = errors.New("invalid donchian parameters")

type Params struct {
	// Lookback is the number of completed bars forming the channel.
	Lookback        int
	AtrPeriod       int
	AtrMultiplier   decimal.Decimal
	PositionPercent decimal.Decimal
}

// Strategy buys a close above the highest high of the preceding Lookback
// bars and exits on a close below the lowest low, or below the ATR stop
// set at entry.
type Strategy struct {
	params    Params
	allocator *LongOnlyAllocator
	log       logrus.FieldLogger

	history   map[string][]types.Candle
	portfolio engine.PortfolioApi
	stopLoss  map[string]decimal.Decimal
}

func New(params Params, log logrus.FieldLogger) (*Strategy, error) {
	if params.Lookback < 2 || params.AtrPeriod < 1 {
		return nil, ErrInvalidParams
	}
	if !params.PositionPercent.IsPositive() || params.AtrMultiplier.IsNegative() {
		return nil, ErrInvalidParams
	}
	return &Strategy{
		params:    params,
		allocator: NewLongOnlyAllocator(params.PositionPercent),
		log:       log,
	}, nil
}

func (s *Strategy) Init(api engine.PortfolioApi) error {
	s.portfolio = api
	s.history = make(map[string][]types.Candle)
	s.stopLoss = make(map[string]decimal.Decimal)
	return nil
}

func (s *Strategy) OnCandle(candle types.Candle) []*engine.Order {
	hist := append(s.history[candle.Ticker], candle)
	if keep := s.maxHistory(); len(hist) > keep {
		hist = hist[len(hist)-keep:]
	}
	s.history[candle.Ticker] = hist

	if len(hist) < s.params.Lookback+1 || len(hist) < s.params.AtrPeriod+1 {
		return nil
	}
	if s.portfolio.HasPendingOrders(candle.Ticker) {
		return nil
	}

	highestHigh, lowestLow := donchianHighLow(hist[:len(hist)-1], s.params.Lookback)

	var sig *signal
	switch stop, ok := s.stopLoss[candle.Ticker]; {
	case candle.Close.GreaterThan(highestHigh):
		sig = &signal{types.DirectionLong, candle.Close, "close above channel high"}
	case candle.Close.LessThan(lowestLow):
		sig = &signal{types.DirectionShort, candle.Close, "close below channel low"}
	case ok && candle.Close.LessThan(stop):
		sig = &signal{types.DirectionShort, candle.Close, "ATR stop-loss"}
	}
	if sig == nil {
		return nil
	}

	orders, err := s.allocator.Allocate(candle, *sig, s.portfolio.GetPortfolioSnapshot())
	if err != nil {
		s.log.WithError(err).WithField("symbol", candle.Ticker).Warn("allocation failed")
		return nil
	}
	if len(orders) == 0 {
		return nil
	}

	switch sig.direction {
	case types.DirectionLong:
		atr := calcATR(hist, s.params.AtrPeriod)
		s.stopLoss[candle.Ticker] = candle.Close.Sub(atr.Mul(s.params.AtrMultiplier))
	case types.DirectionShort:
		delete(s.stopLoss, candle.Ticker)
	}

	s.log.WithFields(logrus.Fields{
		"symbol": candle.Ticker,
		"time":   candle.Timestamp,
		"price":  candle.Close,
		"orders": len(orders),
	}).Debug(sig.reason)
	return orders
}

func (s *Strategy) maxHistory() int {
	// Wilder smoothing warms up over several periods.
	return max(s.params.Lookback+1, s.params.AtrPeriod*5+1)
}

// donchianHighLow returns the channel over the last lookback candles.
func donchianHighLow(candles []types.Candle, lookback int) (decimal.Decimal, decimal.Decimal) {
	if len(candles) < lookback || lookback < 2 {
		return decimal.Zero, decimal.Zero
	}
	highs, lows := make([]float64, len(candles)), make([]float64, len(candles))
	for i, c := range candles {
		highs[i] = c.High.InexactFloat64()
		lows[i] = c.Low.InexactFloat64()
	}
	last := len(candles) - 1
	return decimal.NewFromFloat(talib.Max(highs, lookback)[last]),
		decimal.NewFromFloat(talib.Min(lows, lookback)[last])
}

func calcATR(candles []types.Candle, period int) decimal.Decimal {
	if len(candles) < period+1 {
		return decimal.Zero // need enough data (prev candle + period)
	}
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	closes := make([]float64, len(candles))
	for i, c := range candles {
		highs[i] = c.High.InexactFloat64()
		lows[i] = c.Low.InexactFloat64()
		closes[i] = c.Close.InexactFloat64()
	}
	atr := talib.Atr(highs, lows, closes, period)
	return decimal.NewFromFloat(atr[len(atr)-1])
}
