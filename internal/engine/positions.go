package engine

import (
	"backtester/types"

	"github.com/shopspring/decimal"
)

type Position struct {
	Symbol        string
	Quantity      decimal.Decimal
	AvgCost       decimal.Decimal
	LastPrice     decimal.Decimal
	MarketValue   decimal.Decimal
	UnrealizedPnL decimal.Decimal
}

func (p *Position) mark(price decimal.Decimal) {
	p.LastPrice = price
	p.MarketValue = p.Quantity.Mul(price)
	p.UnrealizedPnL = price.Sub(p.AvgCost).Mul(p.Quantity)
}

func (p *Position) snapshot() types.PositionSnapshot {
	return types.PositionSnapshot{
		Symbol:        p.Symbol,
		Quantity:      p.Quantity,
		AvgEntryPrice: p.AvgCost,
		LastPrice:     p.LastPrice,
		MarketValue:   p.MarketValue,
		UnrealizedPnL: p.UnrealizedPnL,
	}
}

// positionBook tracks live average cost per symbol. Symbols stay in the book
// once opened, in the order they were first filled.
type positionBook struct {
	positions map[string]*Position
	symbols   []string
}

func newPositionBook() *positionBook {
	return &positionBook{positions: make(map[string]*Position)}
}

// applyFill updates the position for symbol. The caller has already checked
// solvency.
func (b *positionBook) applyFill(symbol string, direction types.Direction, quantity, fillPrice decimal.Decimal) error {
	sign := direction.Sign()
	if sign == 0 {
		return ErrUnknownDirection
	}
	signedQty := quantity.Mul(decimal.NewFromInt(sign))

	pos := b.positions[symbol]
	if pos == nil {
		pos = &Position{
			Symbol:   symbol,
			Quantity: signedQty,
			AvgCost:  fillPrice,
		}
		b.positions[symbol] = pos
		b.symbols = append(b.symbols, symbol)
		pos.mark(fillPrice)
		return nil
	}

	oldQty := pos.Quantity
	newQty := oldQty.Add(signedQty)

	switch {
	case newQty.IsZero():
		pos.AvgCost = decimal.Zero

	case !flipped(oldQty, newQty):
		pos.AvgCost = weightedAvg(pos.AvgCost, oldQty.Abs(), fillPrice, quantity, newQty.Abs())

	default:
		// Flip through zero: the surviving side is not blended.
		if newQty.Abs().GreaterThan(oldQty.Abs()) {
			pos.AvgCost = fillPrice
		}
	}

	pos.Quantity = newQty
	pos.mark(fillPrice)
	return nil
}

// revalue marks every quoted position to market and returns the total market
// value of the book. Unquoted positions keep their last market value.
func (b *positionBook) revalue(prices map[string]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, sym := range b.symbols {
		pos := b.positions[sym]
		if price, ok := prices[sym]; ok {
			pos.mark(price)
		}
		total = total.Add(pos.MarketValue)
	}
	return total
}

func (b *positionBook) get(symbol string) (*Position, bool) {
	pos, ok := b.positions[symbol]
	return pos, ok
}

func (b *positionBook) len() int {
	return len(b.symbols)
}

func (b *positionBook) marketValue() decimal.Decimal {
	total := decimal.Zero
	for _, pos := range b.positions {
		total = total.Add(pos.MarketValue)
	}
	return total
}

func (b *positionBook) unrealizedPnL() decimal.Decimal {
	total := decimal.Zero
	for _, pos := range b.positions {
		total = total.Add(pos.UnrealizedPnL)
	}
	return total
}

func (b *positionBook) snapshots() []types.PositionSnapshot {
	out := make([]types.PositionSnapshot, 0, len(b.symbols))
	for _, sym := range b.symbols {
		out = append(out, b.positions[sym].snapshot())
	}
	return out
}

func flipped(a, b decimal.Decimal) bool {
	return (a.IsPositive() && b.IsNegative()) || (a.IsNegative() && b.IsPositive())
}

func weightedAvg(existingAvgPrice, existingQty, newPrice, newQty, totalQty decimal.Decimal) decimal.Decimal {
	if totalQty.IsZero() {
		return newPrice
	}
	return existingAvgPrice.Mul(existingQty).
		Add(newPrice.Mul(newQty)).
		Div(totalQty)
}
