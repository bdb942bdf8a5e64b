package donchian

import (
	"backtester/internal/engine"
	"backtester/types"

	"github.com/shopspring/decimal"
)

type signal struct {
	direction types.Direction
	price     decimal.Decimal
	reason    string
}

// LongOnlyAllocator turns breakout signals into market orders. It never
// opens a short: sell signals only close an existing long.
type LongOnlyAllocator struct {
	positionPercent decimal.Decimal
}

func NewLongOnlyAllocator(positionPercent decimal.Decimal) *LongOnlyAllocator {
	return &LongOnlyAllocator{
		positionPercent: positionPercent,
	}
}

func (a *LongOnlyAllocator) Allocate(candle types.Candle, sig signal, view types.PortfolioView) ([]*engine.Order, error) {
	curPos := view.Positions[candle.Ticker]
	opts := []engine.OrderOption{
		engine.WithOpenPrice(sig.price),
		engine.WithOpenTime(candle.Timestamp),
	}

	// Case 1: flat
	if curPos.Quantity.IsZero() {
		if sig.direction != types.DirectionLong {
			return nil, nil
		}
		qty := getQuantityForPrice(sig.price, view.Cash.Mul(a.positionPercent))
		if qty.IsZero() {
			return nil, nil
		}
		order, err := engine.NewOrder(candle.Ticker, engine.Market(), types.DirectionLong, qty, opts...)
		if err != nil {
			return nil, err
		}
		return []*engine.Order{order}, nil
	}

	// Case 2: existing long, no pyramiding
	if curPos.Quantity.IsPositive() {
		if sig.direction != types.DirectionShort {
			return nil, nil
		}
		order, err := engine.NewOrder(candle.Ticker, engine.Market(), types.DirectionShort, curPos.Quantity, opts...)
		if err != nil {
			return nil, err
		}
		return []*engine.Order{order}, nil
	}

	// Case 3: existing short, left over from orders placed outside this allocator
	if sig.direction != types.DirectionLong {
		return nil, nil
	}
	closeShort, err := engine.NewOrder(candle.Ticker, engine.Market(), types.DirectionLong, curPos.Quantity.Abs(), opts...)
	if err != nil {
		return nil, err
	}
	orders := []*engine.Order{closeShort}

	// Cash after buying back the short funds the new long.
	cash := view.Cash.Sub(curPos.Quantity.Abs().Mul(sig.price))
	if qty := getQuantityForPrice(sig.price, cash.Mul(a.positionPercent)); qty.IsPositive() {
		open, err := engine.NewOrder(candle.Ticker, engine.Market(), types.DirectionLong, qty, opts...)
		if err != nil {
			return nil, err
		}
		orders = append(orders, open)
	}
	return orders, nil
}

func getQuantityForPrice(stockPrice, capitalToUse decimal.Decimal) decimal.Decimal {
	if !stockPrice.IsPositive() || !capitalToUse.IsPositive() {
		return decimal.Zero
	}
	return capitalToUse.Div(stockPrice).Floor()
}
